// Package config parses automaker.toml settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/shaneholloman/automaker/internal/provider"
)

// DefaultAddr is the bind address the relay server uses when the settings
// file does not name one.
const DefaultAddr = "127.0.0.1:8420"

// Config is the top-level automaker.toml configuration.
type Config struct {
	Server    ServerConfig              `toml:"server"`
	Providers map[string]ProviderConfig `toml:"providers"`
	MCP       MCPConfig                 `toml:"mcp"`
	Limits    LimitsConfig              `toml:"limits"`
}

// ServerConfig controls the HTTP/WS relay server.
type ServerConfig struct {
	Addr     string `toml:"addr"`
	StateDir string `toml:"state_dir"` // run-record directory; empty = ~/.automaker
}

// ProviderConfig carries per-backend settings. Each backend reads the
// knobs it understands and ignores the rest; cli_path and model apply to
// all of them.
type ProviderConfig struct {
	CLIPath         string `toml:"cli_path"`
	Model           string `toml:"model"`
	BaseURL         string `toml:"base_url"`         // codex direct path endpoint override
	PermissionMode  string `toml:"permission_mode"`  // claude
	SkipPermissions bool   `toml:"skip_permissions"` // claude
	FullAuto        bool   `toml:"full_auto"`        // codex
	Sandbox         string `toml:"sandbox"`          // codex sandbox mode
	Force           bool   `toml:"force"`            // cursor
	Trust           bool   `toml:"trust"`            // cursor
	Sandboxed       bool   `toml:"sandboxed"`        // cursor
	MaxTurns        int    `toml:"max_turns"`
}

// MCPConfig declares auxiliary tool servers offered to every execution.
type MCPConfig struct {
	Servers map[string]MCPServerConfig `toml:"servers"`
}

// MCPServerConfig is one stdio tool-server definition.
type MCPServerConfig struct {
	Command string            `toml:"command"`
	Args    []string          `toml:"args"`
	Env     map[string]string `toml:"env"`
}

// LimitsConfig bounds executions that do not bring their own limits.
type LimitsConfig struct {
	StallTimeoutSeconds int `toml:"stall_timeout_seconds"` // 0 = per-backend default
	MaxTurns            int `toml:"max_turns"`             // 0 = unlimited
}

// permissionModes is the claude CLI's --permission-mode vocabulary.
var permissionModes = map[string]bool{
	"default":           true,
	"acceptEdits":       true,
	"plan":              true,
	"bypassPermissions": true,
}

// sandboxModes is the codex CLI's --sandbox vocabulary.
var sandboxModes = map[string]bool{
	"read-only":          true,
	"workspace-write":    true,
	"danger-full-access": true,
}

// Validate checks the configuration for issues that would cause confusing
// runtime failures. It returns all found issues joined together. Tool-server
// definitions are checked where they are consumed; a bad server degrades an
// execution rather than the whole settings file.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, fmt.Errorf("server.addr must not be empty"))
	}

	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		pc := c.Providers[name]
		if pc.PermissionMode != "" && !permissionModes[pc.PermissionMode] {
			errs = append(errs, fmt.Errorf("providers.%s.permission_mode %q is not a claude permission mode", name, pc.PermissionMode))
		}
		if pc.Sandbox != "" && !sandboxModes[pc.Sandbox] {
			errs = append(errs, fmt.Errorf("providers.%s.sandbox %q is not a codex sandbox mode", name, pc.Sandbox))
		}
		if pc.MaxTurns < 0 {
			errs = append(errs, fmt.Errorf("providers.%s.max_turns must be >= 0 (0 = unlimited)", name))
		}
	}

	if c.Limits.StallTimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("limits.stall_timeout_seconds must be >= 0 (0 = per-backend default)"))
	}
	if c.Limits.MaxTurns < 0 {
		errs = append(errs, fmt.Errorf("limits.max_turns must be >= 0 (0 = unlimited)"))
	}

	return errors.Join(errs...)
}

// Defaults returns the configuration used when no file is present.
func Defaults() Config {
	return Config{
		Server: ServerConfig{Addr: DefaultAddr},
	}
}

// Load reads automaker.toml from the given path. If path is empty, it walks
// up from the current working directory looking for automaker.toml. Returns
// an error if the file contains unknown keys (likely typos).
func Load(path string) (*Config, error) {
	if path == "" {
		found, err := findConfig()
		if err != nil {
			return nil, err
		}
		path = found
	}

	cfg := Defaults()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("config: unknown keys in %s: %s (possible typos?)", path, strings.Join(keys, ", "))
	}

	return &cfg, nil
}

// LoadOrDefaults behaves like Load but falls back to Defaults when no
// settings file exists anywhere up the tree. An unreadable or invalid file
// is still an error; only absence is forgiven.
func LoadOrDefaults(path string) (*Config, error) {
	if path == "" {
		found, err := findConfig()
		if err != nil {
			cfg := Defaults()
			return &cfg, nil
		}
		path = found
	}
	return Load(path)
}

// Provider returns the settings for one backend, or the zero value when
// the file has no section for it.
func (c *Config) Provider(name string) ProviderConfig {
	return c.Providers[name]
}

// StallTimeout converts the configured limit; zero means the per-backend
// default applies.
func (c *Config) StallTimeout() time.Duration {
	return time.Duration(c.Limits.StallTimeoutSeconds) * time.Second
}

// EffectiveMaxTurns resolves the turn budget for one execution. A
// per-provider setting wins over the caller's requested value; the limits
// section fills in when neither speaks.
func (c *Config) EffectiveMaxTurns(providerName string, requested int) int {
	if pc := c.Providers[providerName]; pc.MaxTurns > 0 {
		return pc.MaxTurns
	}
	if requested > 0 {
		return requested
	}
	return c.Limits.MaxTurns
}

// ToolServers renders the configured MCP servers in name order.
func (c *Config) ToolServers() []provider.ToolServerConfig {
	names := make([]string, 0, len(c.MCP.Servers))
	for name := range c.MCP.Servers {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]provider.ToolServerConfig, 0, len(names))
	for _, name := range names {
		sc := c.MCP.Servers[name]
		out = append(out, provider.ToolServerConfig{
			Name:    name,
			Command: sc.Command,
			Args:    sc.Args,
			Env:     sc.Env,
		})
	}
	return out
}

// ResolveStateDir expands the run-record directory, defaulting to
// ~/.automaker.
func (c *Config) ResolveStateDir() (string, error) {
	if c.Server.StateDir != "" {
		return c.Server.StateDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve state dir: %w", err)
	}
	return filepath.Join(home, ".automaker"), nil
}

// findConfig walks up from the current directory looking for automaker.toml.
func findConfig() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("config: get working directory: %w", err)
	}

	for {
		candidate := filepath.Join(dir, "automaker.toml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("config: automaker.toml not found (searched up from %s)", dir)
		}
		dir = parent
	}
}

// InitFile writes a default automaker.toml template to the given directory.
func InitFile(dir string) (string, error) {
	path := filepath.Join(dir, "automaker.toml")
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("config: automaker.toml already exists at %s", path)
	}

	content := `# automaker.toml: provider execution settings
# Credentials are never stored here; backends read their own environment
# variables (ANTHROPIC_API_KEY, OPENAI_API_KEY, CURSOR_API_KEY,
# GEMINI_API_KEY).

[server]
addr = "` + DefaultAddr + `"
state_dir = ""  # run records; empty = ~/.automaker

[limits]
stall_timeout_seconds = 0  # kill a silent backend after this; 0 = per-backend default
max_turns = 0              # 0 = unlimited agentic turns

[providers.claude]
cli_path = ""         # empty = resolve from AUTOMAKER_CLAUDE_BIN or PATH
model = ""            # empty = backend default
permission_mode = ""  # default | acceptEdits | plan | bypassPermissions
skip_permissions = false

[providers.codex]
cli_path = ""
model = ""
full_auto = false
sandbox = ""  # read-only | workspace-write | danger-full-access

[providers.cursor]
cli_path = ""
model = ""
force = false
trust = false
sandboxed = false

[providers.gemini]
cli_path = ""
model = ""

# [mcp.servers.files]
# command = "/usr/local/bin/file-server"
# args = ["--root", "/home/me/projects"]
# env = { LOG_LEVEL = "warn" }
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("config: write %s: %w", path, err)
	}
	return path, nil
}
