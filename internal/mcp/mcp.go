// Package mcp validates auxiliary tool-server configurations and renders
// them into the shapes each backend CLI accepts.
//
// Configs are trusted: users run automaker on their own machines against
// their own servers. Validation catches misconfiguration and resource
// abuse, not hostile input. Interpreters like python or node are fine;
// a non-MCP process fails the protocol handshake on its own.
package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/shaneholloman/automaker/internal/provider"
)

var (
	ErrInvalidName = errors.New("tool server name is invalid")
	ErrInvalidPath = errors.New("tool server command path is not absolute")
	ErrTooManyArgs = errors.New("tool server has too many arguments")
	ErrArgTooLong  = errors.New("tool server argument exceeds maximum length")
	ErrInvalidArg  = errors.New("tool server argument contains invalid characters")
)

const (
	MaxArgs      = 50
	MaxArgLength = 4096
)

var validName = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Validate checks one tool-server configuration.
func Validate(cfg provider.ToolServerConfig) error {
	if !validName.MatchString(cfg.Name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, cfg.Name)
	}
	if !filepath.IsAbs(cfg.Command) {
		return fmt.Errorf("%w: %s", ErrInvalidPath, cfg.Command)
	}
	if len(cfg.Args) > MaxArgs {
		return fmt.Errorf("%w: got %d, max %d", ErrTooManyArgs, len(cfg.Args), MaxArgs)
	}
	for _, arg := range cfg.Args {
		if len(arg) > MaxArgLength {
			return fmt.Errorf("%w: length %d exceeds max %d", ErrArgTooLong, len(arg), MaxArgLength)
		}
		if strings.ContainsRune(arg, 0) {
			return fmt.Errorf("%w: contains NUL byte", ErrInvalidArg)
		}
	}
	return nil
}

// Filter splits servers into the valid set and one error per rejected
// server. Callers log the rejects and run with what remains; a bad tool
// server never fails an execution.
func Filter(servers []provider.ToolServerConfig) ([]provider.ToolServerConfig, []error) {
	var valid []provider.ToolServerConfig
	var errs []error
	for _, cfg := range servers {
		if err := Validate(cfg); err != nil {
			errs = append(errs, fmt.Errorf("tool server %q: %w", cfg.Name, err))
			continue
		}
		valid = append(valid, cfg)
	}
	return valid, errs
}

// ClaudeConfig renders the --mcp-config JSON document for the claude CLI.
// The returned string is empty when no server survives validation.
func ClaudeConfig(servers []provider.ToolServerConfig) (string, []error) {
	valid, errs := Filter(servers)
	if len(valid) == 0 {
		return "", errs
	}
	entries := make(map[string]any, len(valid))
	for _, cfg := range valid {
		entry := map[string]any{"command": cfg.Command}
		if len(cfg.Args) > 0 {
			entry["args"] = cfg.Args
		}
		if len(cfg.Env) > 0 {
			entry["env"] = cfg.Env
		}
		entries[cfg.Name] = entry
	}
	doc, err := json.Marshal(map[string]any{"mcpServers": entries})
	if err != nil {
		return "", append(errs, fmt.Errorf("encode mcp config: %w", err))
	}
	return string(doc), errs
}

// CodexArgs renders repeated -c overrides for the codex CLI, one triple
// of command, args and env per server. Output order is stable.
func CodexArgs(servers []provider.ToolServerConfig) ([]string, []error) {
	valid, errs := Filter(servers)
	sort.Slice(valid, func(i, j int) bool { return valid[i].Name < valid[j].Name })

	var args []string
	for _, cfg := range valid {
		prefix := "mcp_servers." + cfg.Name
		args = append(args, "-c", prefix+".command="+jsonValue(cfg.Command))
		if len(cfg.Args) > 0 {
			args = append(args, "-c", prefix+".args="+jsonValue(cfg.Args))
		}
		if len(cfg.Env) > 0 {
			args = append(args, "-c", prefix+".env="+jsonValue(cfg.Env))
		}
	}
	return args, errs
}

// jsonValue encodes a codex -c override value. Codex parses the right
// hand side of key=value as JSON.
func jsonValue(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `""`
	}
	return string(b)
}
