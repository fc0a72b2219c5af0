package codex

import (
	"github.com/shaneholloman/automaker/internal/history"
	"github.com/shaneholloman/automaker/internal/provider"
)

// buildExecArgs assembles the `codex exec` invocation. The prompt rides
// in the argument vector after the -- separator; codex takes no stdin.
func buildExecArgs(opts provider.ExecuteOptions, sandbox string, fullAuto bool, mcpArgs []string) []string {
	args := []string{"exec", "--json"}

	if opts.Model != "" {
		args = append(args, "-m", opts.Model)
	}

	if fullAuto {
		args = append(args, "--full-auto")
	} else if sandbox != "" {
		args = append(args, "--sandbox", sandbox)
	}

	args = append(args, mcpArgs...)

	prompt := history.Transcript(opts.History, history.PromptText(opts.Prompt, opts.PromptBlocks))
	args = append(args, "--", history.WithSystemPrompt(opts.SystemPrompt, prompt))

	return args
}
