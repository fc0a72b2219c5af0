package claude

import (
	"github.com/shaneholloman/automaker/internal/domain"
	"github.com/shaneholloman/automaker/internal/provider"
)

// translate converts one CLI record into at most one canonical message.
// Records with nothing to say, and partial stream_event frames, are
// dropped; dropping never ends a run.
func translate(rec Record, corr *provider.Correlator) (domain.ProviderMessage, bool) {
	switch rec.Type {
	case "system":
		return translateSystem(rec)
	case "assistant":
		return translateAssistant(rec, corr)
	case "user":
		return translateUser(rec, corr)
	case "result":
		return translateResult(rec)
	case "error":
		return translateError(rec)
	case "stream_event":
		// Partial deltas; complete messages follow.
		return domain.ProviderMessage{}, false
	default:
		if text, ok := rec.GetString("text"); ok && text != "" {
			return domain.NewAssistantText(text), true
		}
		return domain.ProviderMessage{}, false
	}
}

func translateSystem(rec Record) (domain.ProviderMessage, bool) {
	text, _ := rec.GetString("model")
	msg := domain.NewSystemMessage(text)
	if subtype, ok := rec.GetString("subtype"); ok {
		msg.Subtype = subtype
	}
	return msg, true
}

func translateAssistant(rec Record, corr *provider.Correlator) (domain.ProviderMessage, bool) {
	items, ok := rec.GetArray("message", "content")
	if !ok {
		return domain.ProviderMessage{}, false
	}

	var blocks []domain.ContentBlock
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		switch m["type"] {
		case "text":
			if text, ok := m["text"].(string); ok && text != "" {
				blocks = append(blocks, domain.TextBlock(text))
			}
		case "thinking":
			if text, ok := m["thinking"].(string); ok && text != "" {
				blocks = append(blocks, domain.ThinkingBlock(text))
			}
		case "tool_use":
			id, _ := m["id"].(string)
			name, _ := m["name"].(string)
			input, _ := m["input"].(map[string]any)
			blocks = append(blocks, domain.ToolUseBlock(corr.Mint(id), name, input))
		}
	}
	if len(blocks) == 0 {
		return domain.ProviderMessage{}, false
	}
	return domain.NewAssistantMessage(blocks...), true
}

// translateUser handles the CLI's tool-result echoes, which arrive as
// user-role records referencing an earlier tool_use id.
func translateUser(rec Record, corr *provider.Correlator) (domain.ProviderMessage, bool) {
	items, ok := rec.GetArray("message", "content")
	if !ok {
		return domain.ProviderMessage{}, false
	}

	var blocks []domain.ContentBlock
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok || m["type"] != "tool_result" {
			continue
		}
		id, _ := m["tool_use_id"].(string)
		blocks = append(blocks, domain.ToolResultBlock(corr.Mint(id), flattenContent(m["content"])))
	}
	if len(blocks) == 0 {
		return domain.ProviderMessage{}, false
	}
	return domain.NewUserMessage(blocks...), true
}

func translateResult(rec Record) (domain.ProviderMessage, bool) {
	subtype, _ := rec.GetString("subtype")
	isError, _ := rec.GetBool("is_error")
	result, _ := rec.GetString("result")

	if subtype == "success" && !isError {
		return domain.NewResultMessage(result), true
	}

	message := result
	if message == "" {
		message = subtype
	}
	c := provider.ClassifyMessage(message)
	return domain.NewErrorMessage(c.Kind, c.Message), true
}

func translateError(rec Record) (domain.ProviderMessage, bool) {
	message, ok := rec.GetString("error", "message")
	if !ok {
		message, _ = rec.GetString("message")
	}
	c := provider.ClassifyMessage(message)
	return domain.NewErrorMessage(c.Kind, c.Message), true
}

// flattenContent reduces a tool result body, which the CLI delivers as
// either a plain string or a list of text items, to one string.
func flattenContent(v any) string {
	switch content := v.(type) {
	case string:
		return content
	case []any:
		out := ""
		for _, item := range content {
			m, ok := item.(map[string]any)
			if !ok || m["type"] != "text" {
				continue
			}
			if text, ok := m["text"].(string); ok {
				out += text
			}
		}
		return out
	default:
		return ""
	}
}
