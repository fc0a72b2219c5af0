package cursor

import (
	"slices"
	"strings"
	"testing"

	"github.com/shaneholloman/automaker/internal/history"
	"github.com/shaneholloman/automaker/internal/provider"
)

func TestBuildChatArgs(t *testing.T) {
	t.Run("base invocation", func(t *testing.T) {
		args := buildChatArgs(provider.ExecuteOptions{Prompt: "list files", Model: "composer-1"}, false, false, false)
		if args[0] != "chat" || args[1] != "-p" || args[2] != "list files" {
			t.Errorf("args = %v", args)
		}
		i := slices.Index(args, "--output-format")
		if i < 0 || args[i+1] != "stream-json" {
			t.Errorf("args %v missing stream-json output", args)
		}
		i = slices.Index(args, "--model")
		if i < 0 || args[i+1] != "composer-1" {
			t.Errorf("args %v missing model", args)
		}
	})

	t.Run("trust flags", func(t *testing.T) {
		args := buildChatArgs(provider.ExecuteOptions{Prompt: "go"}, true, true, true)
		for _, want := range []string{"--force", "--trust", "--sandbox"} {
			if !slices.Contains(args, want) {
				t.Errorf("args %v missing %q", args, want)
			}
		}
	})

	t.Run("flags off by default", func(t *testing.T) {
		args := buildChatArgs(provider.ExecuteOptions{Prompt: "go"}, false, false, false)
		for _, flag := range []string{"--force", "--trust", "--sandbox", "--model"} {
			if slices.Contains(args, flag) {
				t.Errorf("args %v has unexpected %q", args, flag)
			}
		}
	})

	t.Run("history and system prompt flatten into the prompt", func(t *testing.T) {
		args := buildChatArgs(provider.ExecuteOptions{
			Prompt:       "and double it?",
			SystemPrompt: "answer briefly",
			History: []history.Message{
				history.UserText("what is 2+2?"),
				history.AssistantText("4"),
			},
		}, false, false, false)
		prompt := args[2]
		for _, want := range []string{"answer briefly", "User: what is 2+2?", "Assistant: 4"} {
			if !strings.Contains(prompt, want) {
				t.Errorf("prompt %q missing %q", prompt, want)
			}
		}
		if !strings.HasSuffix(prompt, "and double it?") {
			t.Errorf("prompt %q does not end with the new request", prompt)
		}
	})
}
