package gemini

import (
	"context"
	"encoding/base64"
	"strings"

	"google.golang.org/genai"

	"github.com/shaneholloman/automaker/internal/domain"
	"github.com/shaneholloman/automaker/internal/history"
	"github.com/shaneholloman/automaker/internal/provider"
)

// executeDirect runs over the Gemini API without a subprocess. Selected
// only when tools are explicitly disabled and a credential is present.
func (a *Adapter) executeDirect(ctx context.Context, opts provider.ExecuteOptions, apiKey, model string) *domain.MessageStream {
	stream := domain.NewMessageStream()
	go a.pumpDirect(ctx, stream, opts, apiKey, model)
	return stream
}

func (a *Adapter) pumpDirect(ctx context.Context, stream *domain.MessageStream, opts provider.ExecuteOptions, apiKey, model string) {
	defer stream.Finish()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		c := provider.Classify(err)
		stream.Send(ctx, domain.NewErrorMessage(c.Kind, c.Message))
		return
	}

	config := &genai.GenerateContentConfig{}
	if opts.SystemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(opts.SystemPrompt, "user")
	}

	// Chunks are partial deltas; they aggregate to message granularity and
	// emit once the generation is complete.
	var thoughts, answer strings.Builder
	for resp, err := range client.Models.GenerateContentStream(ctx, model, buildContents(opts), config) {
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c := provider.Classify(err)
			stream.Send(ctx, domain.NewErrorMessage(c.Kind, c.Message))
			return
		}
		collectParts(resp, &thoughts, &answer)
	}

	if thoughts.Len() > 0 {
		if !stream.Send(ctx, domain.NewAssistantMessage(domain.ThinkingBlock(thoughts.String()))) {
			return
		}
	}
	if answer.Len() > 0 {
		if !stream.Send(ctx, domain.NewAssistantText(answer.String())) {
			return
		}
	}
	stream.Send(ctx, domain.NewResultMessage(answer.String()))
}

// collectParts separates thought summaries from answer text.
func collectParts(resp *genai.GenerateContentResponse, thoughts, answer *strings.Builder) {
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil || part.Text == "" {
				continue
			}
			if part.Thought {
				thoughts.WriteString(part.Text)
			} else {
				answer.WriteString(part.Text)
			}
		}
	}
}

// buildContents assembles the role-tagged conversation: prior history
// replayed as user and model turns, then the prompt as the final user turn.
func buildContents(opts provider.ExecuteOptions) []*genai.Content {
	var contents []*genai.Content
	for _, turn := range opts.History {
		text := turn.PlainText()
		if text == "" {
			continue
		}
		if turn.Role == history.RoleAssistant {
			contents = append(contents, genai.NewContentFromText(text, "model"))
		} else {
			contents = append(contents, genai.NewContentFromText(text, "user"))
		}
	}
	return append(contents, promptContent(opts))
}

// promptContent builds the final user turn, preserving block order. Image
// blocks become inline data parts; undecodable image data is skipped.
func promptContent(opts provider.ExecuteOptions) *genai.Content {
	if len(opts.PromptBlocks) == 0 {
		return genai.NewContentFromText(opts.Prompt, "user")
	}

	var parts []*genai.Part
	for _, block := range opts.PromptBlocks {
		switch block.Type {
		case domain.BlockText:
			if block.Text != "" {
				parts = append(parts, &genai.Part{Text: block.Text})
			}
		case domain.BlockImage:
			if block.Source == nil {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(block.Source.Data)
			if err != nil {
				continue
			}
			parts = append(parts, &genai.Part{
				InlineData: &genai.Blob{MIMEType: block.Source.MediaType, Data: data},
			})
		}
	}
	if len(parts) == 0 {
		return genai.NewContentFromText(opts.Prompt, "user")
	}
	return &genai.Content{Role: "user", Parts: parts}
}
