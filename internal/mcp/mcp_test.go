package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/shaneholloman/automaker/internal/provider"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     provider.ToolServerConfig
		wantErr error
	}{
		{
			name: "valid server",
			cfg:  provider.ToolServerConfig{Name: "files", Command: "/usr/bin/mcp-files", Args: []string{"--root", "/tmp"}},
		},
		{
			name:    "relative command",
			cfg:     provider.ToolServerConfig{Name: "files", Command: "mcp-files"},
			wantErr: ErrInvalidPath,
		},
		{
			name:    "empty name",
			cfg:     provider.ToolServerConfig{Name: "", Command: "/usr/bin/mcp-files"},
			wantErr: ErrInvalidName,
		},
		{
			name:    "name with spaces",
			cfg:     provider.ToolServerConfig{Name: "my files", Command: "/usr/bin/mcp-files"},
			wantErr: ErrInvalidName,
		},
		{
			name:    "too many args",
			cfg:     provider.ToolServerConfig{Name: "files", Command: "/usr/bin/mcp-files", Args: make([]string, MaxArgs+1)},
			wantErr: ErrTooManyArgs,
		},
		{
			name:    "oversized arg",
			cfg:     provider.ToolServerConfig{Name: "files", Command: "/usr/bin/mcp-files", Args: []string{strings.Repeat("x", MaxArgLength+1)}},
			wantErr: ErrArgTooLong,
		},
		{
			name:    "NUL in arg",
			cfg:     provider.ToolServerConfig{Name: "files", Command: "/usr/bin/mcp-files", Args: []string{"a\x00b"}},
			wantErr: ErrInvalidArg,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.cfg)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestClaudeConfig(t *testing.T) {
	servers := []provider.ToolServerConfig{
		{Name: "files", Command: "/usr/bin/mcp-files", Args: []string{"--root", "/tmp"}, Env: map[string]string{"LOG": "debug"}},
		{Name: "bad one", Command: "/usr/bin/other"},
	}

	doc, errs := ClaudeConfig(servers)
	if len(errs) != 1 {
		t.Fatalf("got %d validation errors, want 1: %v", len(errs), errs)
	}

	var parsed struct {
		MCPServers map[string]struct {
			Command string            `json:"command"`
			Args    []string          `json:"args"`
			Env     map[string]string `json:"env"`
		} `json:"mcpServers"`
	}
	if err := json.Unmarshal([]byte(doc), &parsed); err != nil {
		t.Fatalf("config is not valid JSON: %v", err)
	}
	entry, ok := parsed.MCPServers["files"]
	if !ok {
		t.Fatalf("files server missing from %s", doc)
	}
	if entry.Command != "/usr/bin/mcp-files" || len(entry.Args) != 2 || entry.Env["LOG"] != "debug" {
		t.Errorf("unexpected entry: %+v", entry)
	}
	if _, ok := parsed.MCPServers["bad one"]; ok {
		t.Error("invalid server leaked into config")
	}

	doc, _ = ClaudeConfig(nil)
	if doc != "" {
		t.Errorf("no servers produced config %q", doc)
	}
}

func TestCodexArgs(t *testing.T) {
	servers := []provider.ToolServerConfig{
		{Name: "search", Command: "/usr/bin/mcp-search"},
		{Name: "files", Command: "/usr/bin/mcp-files", Args: []string{"--root", "/tmp"}},
	}

	args, errs := CodexArgs(servers)
	if len(errs) != 0 {
		t.Fatalf("unexpected validation errors: %v", errs)
	}

	joined := strings.Join(args, " ")
	wantFragments := []string{
		`mcp_servers.files.command="/usr/bin/mcp-files"`,
		`mcp_servers.files.args=["--root","/tmp"]`,
		`mcp_servers.search.command="/usr/bin/mcp-search"`,
	}
	for _, frag := range wantFragments {
		if !strings.Contains(joined, frag) {
			t.Errorf("args %q missing %q", joined, frag)
		}
	}

	// Stable order: files sorts before search.
	if strings.Index(joined, "mcp_servers.files") > strings.Index(joined, "mcp_servers.search") {
		t.Errorf("overrides not sorted: %q", joined)
	}
	for i := 0; i < len(args); i += 2 {
		if args[i] != "-c" {
			t.Fatalf("arg %d = %q, want -c", i, args[i])
		}
	}
}

func TestProbeRejectsInvalidConfig(t *testing.T) {
	_, err := Probe(context.Background(), provider.ToolServerConfig{Name: "files", Command: "relative"})
	if !errors.Is(err, ErrInvalidPath) {
		t.Errorf("Probe() error = %v, want ErrInvalidPath", err)
	}
}

func TestProbeMissingBinary(t *testing.T) {
	_, err := Probe(context.Background(), provider.ToolServerConfig{Name: "ghost", Command: "/no/such/mcp-server"})
	if err == nil {
		t.Error("Probe() succeeded against a missing binary")
	}
}
