package cursor

import (
	"github.com/shaneholloman/automaker/internal/history"
	"github.com/shaneholloman/automaker/internal/provider"
)

// buildChatArgs assembles the one-shot chat invocation. The agent takes
// a single text prompt, so history and system prompt flatten into it.
func buildChatArgs(opts provider.ExecuteOptions, force, trust, sandbox bool) []string {
	prompt := history.WithSystemPrompt(opts.SystemPrompt,
		history.Transcript(opts.History, history.PromptText(opts.Prompt, opts.PromptBlocks)))

	args := []string{
		"chat",
		"-p", prompt,
		"--output-format", "stream-json",
	}

	if opts.Model != "" {
		args = append(args, "--model", opts.Model)
	}
	if force {
		args = append(args, "--force")
	}
	if trust {
		args = append(args, "--trust")
	}
	if sandbox {
		args = append(args, "--sandbox")
	}

	return args
}
