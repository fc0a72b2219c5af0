package codex

import (
	"fmt"
	"strings"

	"github.com/shaneholloman/automaker/internal/domain"
	"github.com/shaneholloman/automaker/internal/provider"
)

// toolItemTypes are the item kinds that announce themselves before
// completing. Their started record mints the correlation id that the
// completed record reuses.
var toolItemTypes = map[string]bool{
	"command_execution": true,
	"mcp_tool_call":     true,
	"web_search":        true,
}

// translator folds the codex exec event stream into canonical messages.
// One turn per process: turn.completed is the session's successful end
// and carries the last agent message as the result text.
type translator struct {
	corr     *provider.Correlator
	lastText string
}

func newTranslator() *translator {
	return &translator{corr: provider.NewCorrelator()}
}

func (t *translator) translate(obj map[string]any) (domain.ProviderMessage, bool) {
	switch getString(obj, "type") {
	case "thread.started", "turn.started":
		return domain.ProviderMessage{}, false
	case "item.started":
		return t.itemStarted(getMap(obj, "item"))
	case "item.completed":
		return t.itemCompleted(getMap(obj, "item"))
	case "turn.completed":
		return domain.NewResultMessage(t.lastText), true
	case "turn.failed":
		message := getString(getMap(obj, "error"), "message")
		if message == "" {
			message = "turn failed"
		}
		c := provider.ClassifyMessage(message)
		return domain.NewErrorMessage(c.Kind, c.Message), true
	case "error":
		c := provider.ClassifyMessage(getString(obj, "message"))
		return domain.NewErrorMessage(c.Kind, c.Message), true
	default:
		return textFallback(obj)
	}
}

func (t *translator) itemStarted(item map[string]any) (domain.ProviderMessage, bool) {
	itemType := getString(item, "type")
	if !toolItemTypes[itemType] {
		return domain.ProviderMessage{}, false
	}
	id := t.corr.Mint(getString(item, "id"))
	return domain.NewAssistantMessage(domain.ToolUseBlock(id, toolName(item, itemType), toolInput(item, itemType))), true
}

func (t *translator) itemCompleted(item map[string]any) (domain.ProviderMessage, bool) {
	itemType := getString(item, "type")
	switch itemType {
	case "agent_message":
		text := getString(item, "text")
		if text == "" {
			return domain.ProviderMessage{}, false
		}
		t.lastText = text
		return domain.NewAssistantText(text), true

	case "reasoning":
		text := getString(item, "text")
		if text == "" {
			return domain.ProviderMessage{}, false
		}
		return domain.NewAssistantMessage(domain.ThinkingBlock(text)), true

	case "command_execution":
		id := t.corr.Mint(getString(item, "id"))
		return domain.NewAssistantMessage(domain.ToolResultBlock(id, getString(item, "aggregated_output"))), true

	case "mcp_tool_call", "web_search":
		id := t.corr.Mint(getString(item, "id"))
		return domain.NewAssistantMessage(domain.ToolResultBlock(id, toolOutput(item, itemType))), true

	case "file_change", "file_changes":
		summary := renderFileChanges(item)
		if summary == "" {
			return domain.ProviderMessage{}, false
		}
		return domain.NewAssistantText(summary), true

	case "todo_list":
		list := renderTodoList(item)
		if list == "" {
			return domain.ProviderMessage{}, false
		}
		return domain.NewAssistantText(list), true

	case "error":
		message := getString(item, "message")
		if message == "" {
			message = getString(item, "text")
		}
		c := provider.ClassifyMessage(message)
		return domain.NewErrorMessage(c.Kind, c.Message), true

	default:
		return textFallback(item)
	}
}

func toolName(item map[string]any, itemType string) string {
	if itemType == "mcp_tool_call" {
		for _, key := range []string{"name", "tool_name", "tool"} {
			if name := getString(item, key); name != "" {
				return name
			}
		}
	}
	return itemType
}

func toolInput(item map[string]any, itemType string) map[string]any {
	switch itemType {
	case "command_execution":
		return map[string]any{"command": getString(item, "command")}
	case "web_search":
		return map[string]any{"query": getString(item, "query")}
	case "mcp_tool_call":
		input := map[string]any{"server": getString(item, "server")}
		if args, ok := item["arguments"]; ok {
			input["arguments"] = args
		}
		return input
	default:
		return nil
	}
}

func toolOutput(item map[string]any, itemType string) string {
	if itemType == "web_search" {
		return getString(item, "query")
	}
	for _, key := range []string{"result", "output", "aggregated_output"} {
		if out := getString(item, key); out != "" {
			return out
		}
	}
	return ""
}

// renderFileChanges summarizes changed paths, one per line. The CLI has
// shipped both {"changes":[{path,kind}]} and {"files":[...]} shapes.
func renderFileChanges(item map[string]any) string {
	var lines []string
	for _, entry := range getArray(item, "changes") {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		path := getString(m, "path")
		if path == "" {
			continue
		}
		if kind := getString(m, "kind"); kind != "" {
			lines = append(lines, kind+" "+path)
		} else {
			lines = append(lines, path)
		}
	}
	for _, entry := range getArray(item, "files") {
		if path, ok := entry.(string); ok && path != "" {
			lines = append(lines, path)
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return "Files changed:\n" + strings.Join(lines, "\n")
}

// renderTodoList flattens the plan into a numbered list.
func renderTodoList(item map[string]any) string {
	var lines []string
	for i, entry := range getArray(item, "items") {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		text := getString(m, "text")
		if text == "" {
			continue
		}
		line := fmt.Sprintf("%d. %s", i+1, text)
		if done, _ := m["completed"].(bool); done {
			line += " (done)"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func textFallback(obj map[string]any) (domain.ProviderMessage, bool) {
	for _, key := range []string{"text", "message"} {
		if text := getString(obj, key); text != "" {
			return domain.NewAssistantText(text), true
		}
	}
	return domain.ProviderMessage{}, false
}

func getString(obj map[string]any, key string) string {
	if obj == nil {
		return ""
	}
	s, _ := obj[key].(string)
	return s
}

func getMap(obj map[string]any, key string) map[string]any {
	if obj == nil {
		return nil
	}
	m, _ := obj[key].(map[string]any)
	return m
}

func getArray(obj map[string]any, key string) []any {
	if obj == nil {
		return nil
	}
	a, _ := obj[key].([]any)
	return a
}
