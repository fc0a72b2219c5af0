package domain

import (
	"encoding/json"
	"testing"
)

func TestMessageConstructors(t *testing.T) {
	tests := []struct {
		name         string
		msg          ProviderMessage
		wantType     MessageType
		wantTerminal bool
	}{
		{"user", NewUserMessage(TextBlock("hi")), MessageUser, false},
		{"assistant text", NewAssistantText("hello"), MessageAssistant, false},
		{"system", NewSystemMessage("session started"), MessageSystem, false},
		{"result", NewResultMessage("done"), MessageResult, true},
		{"error", NewErrorMessage(ErrorKindExecution, "boom"), MessageError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.msg.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", tt.msg.Type, tt.wantType)
			}
			if tt.msg.IsTerminal() != tt.wantTerminal {
				t.Errorf("IsTerminal() = %v, want %v", tt.msg.IsTerminal(), tt.wantTerminal)
			}
			if tt.msg.Timestamp.IsZero() {
				t.Error("Timestamp not set")
			}
		})
	}
}

func TestResultMessageSubtype(t *testing.T) {
	msg := NewResultMessage("final answer")
	if msg.Subtype != ResultSuccess {
		t.Errorf("Subtype = %q, want %q", msg.Subtype, ResultSuccess)
	}
	if msg.Result != "final answer" {
		t.Errorf("Result = %q, want %q", msg.Result, "final answer")
	}
}

func TestErrorMessageKind(t *testing.T) {
	msg := NewErrorMessage(ErrorKindAuthentication, "set OPENAI_API_KEY or run login")
	if msg.ErrorKind != ErrorKindAuthentication {
		t.Errorf("ErrorKind = %q, want %q", msg.ErrorKind, ErrorKindAuthentication)
	}
	if msg.Error == "" {
		t.Error("Error message empty")
	}
}

func TestContentBlockWireShape(t *testing.T) {
	tests := []struct {
		name  string
		block ContentBlock
		want  map[string]any
	}{
		{
			name:  "text",
			block: TextBlock("hello"),
			want:  map[string]any{"type": "text", "text": "hello"},
		},
		{
			name:  "thinking",
			block: ThinkingBlock("hmm"),
			want:  map[string]any{"type": "thinking", "text": "hmm"},
		},
		{
			name:  "tool_use",
			block: ToolUseBlock("corr-1", "bash", map[string]any{"command": "ls"}),
			want: map[string]any{
				"type":           "tool_use",
				"correlation_id": "corr-1",
				"name":           "bash",
				"input":          map[string]any{"command": "ls"},
			},
		},
		{
			name:  "tool_result",
			block: ToolResultBlock("corr-1", "file.txt"),
			want: map[string]any{
				"type":           "tool_result",
				"correlation_id": "corr-1",
				"content":        "file.txt",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(tt.block)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			var got map[string]any
			if err := json.Unmarshal(raw, &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("fields = %v, want %v", got, tt.want)
			}
			for k := range tt.want {
				if _, ok := got[k]; !ok {
					t.Errorf("missing field %q in %v", k, got)
				}
			}
		})
	}
}

func TestProviderMessageJSONDiscriminator(t *testing.T) {
	raw, err := json.Marshal(NewAssistantMessage(
		ToolUseBlock("id-1", "read", map[string]any{"path": "/tmp/x"}),
	))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded struct {
		Type    string         `json:"type"`
		Content []ContentBlock `json:"content"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Type != "assistant" {
		t.Errorf("type = %q, want assistant", decoded.Type)
	}
	if len(decoded.Content) != 1 || decoded.Content[0].Type != BlockToolUse {
		t.Errorf("content = %+v, want one tool_use block", decoded.Content)
	}
}

func TestPlainText(t *testing.T) {
	msg := NewAssistantMessage(
		TextBlock("part one "),
		ThinkingBlock("ignored"),
		TextBlock("part two"),
	)
	if got := msg.PlainText(); got != "part one part two" {
		t.Errorf("PlainText() = %q", got)
	}
}
