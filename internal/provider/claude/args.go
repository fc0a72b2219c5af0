package claude

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shaneholloman/automaker/internal/domain"
	"github.com/shaneholloman/automaker/internal/history"
	"github.com/shaneholloman/automaker/internal/provider"
)

// buildArgs assembles the CLI invocation for one execution call. The
// prompt and any replayed history travel on stdin as stream-json user
// records.
func buildArgs(opts provider.ExecuteOptions, permissionMode string, skipPermissions bool, mcpConfig string) []string {
	args := []string{
		"-p",
		"--output-format=stream-json",
		"--input-format=stream-json",
		"--verbose",
	}

	if opts.Model != "" {
		args = append(args, "--model", opts.Model)
	}
	if opts.SystemPrompt != "" {
		args = append(args, "--system-prompt", opts.SystemPrompt)
	}

	// nil means backend-default tooling; a non-nil list is passed through,
	// including the empty list, which disables tools outright.
	if opts.AllowedTools != nil {
		args = append(args, "--allowed-tools", strings.Join(opts.AllowedTools, ","))
	}

	if opts.MaxTurns > 0 {
		args = append(args, "--max-turns", strconv.Itoa(opts.MaxTurns))
	}

	if mcpConfig != "" {
		args = append(args, "--mcp-config", mcpConfig, "--strict-mcp-config")
	}

	if permissionMode != "" {
		args = append(args, "--permission-mode", permissionMode)
	}
	if skipPermissions {
		args = append(args, "--dangerously-skip-permissions")
	}

	return args
}

// buildStdinPayload replays prior turns and the new prompt as stream-json
// user records, one per line, newest last. The CLI's stream-json input
// accepts only user-authored records, so assistant turns are dropped.
func buildStdinPayload(opts provider.ExecuteOptions) ([]byte, error) {
	var buf bytes.Buffer

	for _, turn := range history.UserOnly(opts.History) {
		text := turn.PlainText()
		if text == "" {
			continue
		}
		if err := writeUserRecord(&buf, []map[string]any{textItem(text)}); err != nil {
			return nil, err
		}
	}

	if err := writeUserRecord(&buf, promptContent(opts)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// promptContent renders the new prompt as content items, keeping image
// blocks when the caller supplied a block array.
func promptContent(opts provider.ExecuteOptions) []map[string]any {
	if len(opts.PromptBlocks) == 0 {
		return []map[string]any{textItem(opts.Prompt)}
	}

	var content []map[string]any
	for _, block := range opts.PromptBlocks {
		switch block.Type {
		case domain.BlockText:
			content = append(content, textItem(block.Text))
		case domain.BlockImage:
			if block.Source != nil {
				content = append(content, map[string]any{
					"type": "image",
					"source": map[string]any{
						"type":       "base64",
						"media_type": block.Source.MediaType,
						"data":       block.Source.Data,
					},
				})
			}
		}
	}
	return content
}

func writeUserRecord(buf *bytes.Buffer, content []map[string]any) error {
	line, err := json.Marshal(map[string]any{
		"type": "user",
		"message": map[string]any{
			"role":    "user",
			"content": content,
		},
	})
	if err != nil {
		return err
	}
	buf.Write(line)
	buf.WriteByte('\n')
	return nil
}

func textItem(text string) map[string]any {
	return map[string]any{"type": "text", "text": text}
}
