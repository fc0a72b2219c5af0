// Package history converts caller-supplied conversation history and a new
// prompt into the input shape each backend expects. History is owned by the
// caller, read-only here, and never persisted.
package history

import (
	"strings"

	"github.com/shaneholloman/automaker/internal/domain"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one prior conversation turn. Content is either plain Text or a
// Blocks array; Text wins when both are set.
type Message struct {
	Role   string                `json:"role"`
	Text   string                `json:"text,omitempty"`
	Blocks []domain.ContentBlock `json:"blocks,omitempty"`
}

func UserText(text string) Message {
	return Message{Role: RoleUser, Text: text}
}

func AssistantText(text string) Message {
	return Message{Role: RoleAssistant, Text: text}
}

// PlainText returns the message's textual content. Non-text blocks are
// dropped, never an error.
func (m Message) PlainText() string {
	if m.Text != "" {
		return m.Text
	}
	return FlattenBlocks(m.Blocks)
}

// FlattenBlocks concatenates the text blocks of a content-block array.
// Image and other non-text blocks are dropped; block order is preserved.
func FlattenBlocks(blocks []domain.ContentBlock) string {
	var b strings.Builder
	for _, blk := range blocks {
		if blk.Type == domain.BlockText {
			b.WriteString(blk.Text)
		}
	}
	return b.String()
}

// PromptText resolves a prompt that may arrive as plain text or as a
// content-block array into a single string.
func PromptText(text string, blocks []domain.ContentBlock) string {
	if len(blocks) > 0 {
		return FlattenBlocks(blocks)
	}
	return text
}

// UserOnly filters history to user-authored turns, for replay channels
// that accept only user records. Assistant turns are dropped rather than
// rejected; conversational context is best effort.
func UserOnly(msgs []Message) []Message {
	var out []Message
	for _, m := range msgs {
		if m.Role == RoleUser {
			out = append(out, m)
		}
	}
	return out
}

// Transcript renders history as a text transcript followed by the new
// prompt, for backends whose input channel is a single text blob. Empty
// history yields the prompt verbatim. The rendered string always ends with
// the literal prompt text.
func Transcript(msgs []Message, prompt string) string {
	if len(msgs) == 0 {
		return prompt
	}

	var b strings.Builder
	for _, m := range msgs {
		switch m.Role {
		case RoleUser:
			b.WriteString("User: ")
		case RoleAssistant:
			b.WriteString("Assistant: ")
		default:
			continue
		}
		b.WriteString(m.PlainText())
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(prompt)
	return b.String()
}

// WithSystemPrompt prepends a system prompt, separated from the input, when
// one is present.
func WithSystemPrompt(systemPrompt, input string) string {
	if systemPrompt == "" {
		return input
	}
	return systemPrompt + "\n\n" + input
}

