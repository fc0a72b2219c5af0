package domain

import "time"

// MessageType discriminates canonical records. Every backend's native stream
// is normalized into this vocabulary before it reaches a caller.
type MessageType string

const (
	MessageUser      MessageType = "user"
	MessageAssistant MessageType = "assistant"
	MessageSystem    MessageType = "system"
	MessageResult    MessageType = "result"
	MessageError     MessageType = "error"
)

// BlockType discriminates the typed fragments of a user or assistant turn.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockThinking   BlockType = "thinking"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
	BlockImage      BlockType = "image"
)

// ResultSuccess is the subtype carried by a terminal result message.
const ResultSuccess = "success"

// ErrorKind is the advisory failure taxonomy attached to terminal error
// messages. It never changes whether a message is terminal.
type ErrorKind string

const (
	ErrorKindAuthentication ErrorKind = "authentication"
	ErrorKindCancellation   ErrorKind = "cancellation"
	ErrorKindExecution      ErrorKind = "execution"
	ErrorKindUnknown        ErrorKind = "unknown"
)

// ImageSource holds inline image data for an image block.
type ImageSource struct {
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// ContentBlock is one typed fragment of a turn. Field use depends on Type:
// text/thinking use Text; tool_use uses Name, Input and CorrelationID;
// tool_result uses CorrelationID and Content; image uses Source.
type ContentBlock struct {
	Type          BlockType      `json:"type"`
	Text          string         `json:"text,omitempty"`
	Name          string         `json:"name,omitempty"`
	Input         map[string]any `json:"input,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Content       string         `json:"content,omitempty"`
	Source        *ImageSource   `json:"source,omitempty"`
}

func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

func ThinkingBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockThinking, Text: text}
}

func ToolUseBlock(correlationID, name string, input map[string]any) ContentBlock {
	return ContentBlock{Type: BlockToolUse, CorrelationID: correlationID, Name: name, Input: input}
}

func ToolResultBlock(correlationID, content string) ContentBlock {
	return ContentBlock{Type: BlockToolResult, CorrelationID: correlationID, Content: content}
}

func ImageBlock(mediaType, data string) ContentBlock {
	return ContentBlock{Type: BlockImage, Source: &ImageSource{MediaType: mediaType, Data: data}}
}

// ProviderMessage is the canonical record. The JSON shape is the layer's
// compatibility contract: stable across backends, discriminated by Type.
//
// Delivery invariant: messages for one execution are emitted in the order
// their underlying native events arrived, with at most one record of
// lookahead between producer and consumer.
type ProviderMessage struct {
	Type      MessageType    `json:"type"`
	Subtype   string         `json:"subtype,omitempty"`
	Content   []ContentBlock `json:"content,omitempty"`
	Text      string         `json:"text,omitempty"`
	Result    string         `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	ErrorKind ErrorKind      `json:"error_kind,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// IsTerminal reports whether the message ends an execution.
func (m ProviderMessage) IsTerminal() bool {
	return m.Type == MessageResult || m.Type == MessageError
}

// PlainText concatenates the text of all text blocks in the message.
func (m ProviderMessage) PlainText() string {
	out := ""
	for _, b := range m.Content {
		if b.Type == BlockText {
			out += b.Text
		}
	}
	return out
}

func NewUserMessage(blocks ...ContentBlock) ProviderMessage {
	return ProviderMessage{
		Type:      MessageUser,
		Content:   blocks,
		Timestamp: time.Now(),
	}
}

func NewAssistantMessage(blocks ...ContentBlock) ProviderMessage {
	return ProviderMessage{
		Type:      MessageAssistant,
		Content:   blocks,
		Timestamp: time.Now(),
	}
}

func NewAssistantText(text string) ProviderMessage {
	return NewAssistantMessage(TextBlock(text))
}

func NewSystemMessage(text string) ProviderMessage {
	return ProviderMessage{
		Type:      MessageSystem,
		Text:      text,
		Timestamp: time.Now(),
	}
}

// NewResultMessage marks terminal success with the final textual answer, if any.
func NewResultMessage(finalText string) ProviderMessage {
	return ProviderMessage{
		Type:      MessageResult,
		Subtype:   ResultSuccess,
		Result:    finalText,
		Timestamp: time.Now(),
	}
}

// NewErrorMessage marks terminal failure with a readable message and an
// advisory kind.
func NewErrorMessage(kind ErrorKind, message string) ProviderMessage {
	return ProviderMessage{
		Type:      MessageError,
		Error:     message,
		ErrorKind: kind,
		Timestamp: time.Now(),
	}
}
