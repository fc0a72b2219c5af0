package cursor

import (
	"encoding/json"

	"github.com/shaneholloman/automaker/internal/domain"
	"github.com/shaneholloman/automaker/internal/provider"
)

// NDJSON record shapes emitted by the agent in stream-json mode.

type rawRecord struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype"`
}

type systemRecord struct {
	Subtype   string `json:"subtype"`
	SessionID string `json:"session_id"`
	Model     string `json:"model"`
	CWD       string `json:"cwd"`
}

type assistantRecord struct {
	Message struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"message"`
}

// toolCallRecord carries a single-key map: tool name to its detail
// object, which holds args and, once completed, a result.
type toolCallRecord struct {
	Subtype  string                    `json:"subtype"`
	CallID   string                    `json:"call_id"`
	ToolCall map[string]map[string]any `json:"tool_call"`
}

type resultRecord struct {
	Subtype    string `json:"subtype"`
	IsError    bool   `json:"is_error"`
	Result     string `json:"result"`
	DurationMs int64  `json:"duration_ms"`
}

// translator folds agent records into canonical messages. Tool calls
// arrive as started/completed pairs sharing a call_id; both sides map
// to the same minted correlation id.
type translator struct {
	corr *provider.Correlator
}

func newTranslator() *translator {
	return &translator{corr: provider.NewCorrelator()}
}

func (t *translator) translate(raw json.RawMessage) (domain.ProviderMessage, bool) {
	var head rawRecord
	if err := json.Unmarshal(raw, &head); err != nil {
		return domain.ProviderMessage{}, false
	}

	switch head.Type {
	case "system":
		if head.Subtype != "init" {
			return domain.ProviderMessage{}, false
		}
		var rec systemRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return domain.ProviderMessage{}, false
		}
		msg := domain.NewSystemMessage(rec.Model)
		msg.Subtype = rec.Subtype
		return msg, true

	case "assistant", "thinking":
		var rec assistantRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return domain.ProviderMessage{}, false
		}
		var blocks []domain.ContentBlock
		for _, c := range rec.Message.Content {
			if c.Type != "text" || c.Text == "" {
				continue
			}
			if head.Type == "thinking" {
				blocks = append(blocks, domain.ThinkingBlock(c.Text))
			} else {
				blocks = append(blocks, domain.TextBlock(c.Text))
			}
		}
		if len(blocks) == 0 {
			return domain.ProviderMessage{}, false
		}
		return domain.NewAssistantMessage(blocks...), true

	case "tool_call":
		var rec toolCallRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return domain.ProviderMessage{}, false
		}
		return t.toolCall(rec)

	case "result":
		var rec resultRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return domain.ProviderMessage{}, false
		}
		if rec.IsError {
			c := provider.ClassifyMessage(rec.Result)
			return domain.NewErrorMessage(c.Kind, c.Message), true
		}
		return domain.NewResultMessage(rec.Result), true

	case "user":
		// Prompt echo; the caller already has it.
		return domain.ProviderMessage{}, false

	default:
		return textFallback(raw)
	}
}

func (t *translator) toolCall(rec toolCallRecord) (domain.ProviderMessage, bool) {
	name, detail := toolEntry(rec.ToolCall)
	if name == "" {
		return domain.ProviderMessage{}, false
	}

	switch rec.Subtype {
	case "started":
		id := t.corr.Mint(rec.CallID)
		args, _ := detail["args"].(map[string]any)
		return domain.NewAssistantMessage(domain.ToolUseBlock(id, name, args)), true
	case "completed":
		id := t.corr.Mint(rec.CallID)
		return domain.NewAssistantMessage(domain.ToolResultBlock(id, renderResult(detail["result"]))), true
	default:
		return domain.ProviderMessage{}, false
	}
}

func toolEntry(call map[string]map[string]any) (string, map[string]any) {
	for name, detail := range call {
		return name, detail
	}
	return "", nil
}

func renderResult(v any) string {
	switch r := v.(type) {
	case nil:
		return ""
	case string:
		return r
	default:
		b, err := json.Marshal(r)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// textFallback surfaces unknown record types that still carry text.
// Unmarshal fills matching fields even when others mismatch.
func textFallback(raw json.RawMessage) (domain.ProviderMessage, bool) {
	var rec struct {
		Text    string `json:"text"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(raw, &rec)
	if rec.Text != "" {
		return domain.NewAssistantText(rec.Text), true
	}
	if rec.Message != "" {
		return domain.NewAssistantText(rec.Message), true
	}
	return domain.ProviderMessage{}, false
}
