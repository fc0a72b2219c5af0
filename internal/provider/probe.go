package provider

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Environ looks up one environment variable. Adapters take an Environ
// at construction so probes and credential checks are injectable;
// credential variables are only ever read through it, never written.
type Environ func(key string) string

const versionTimeout = 2 * time.Second

// wellKnownDirs are checked after PATH when locating a backend CLI.
var wellKnownDirs = []string{
	"/usr/local/bin",
	"/opt/homebrew/bin",
}

// ResolveCommand locates a backend CLI binary. Resolution order:
// explicit settings override, environment variable override, PATH,
// well-known install directories. An empty path means not found;
// method is one of "config", "env", "path", "local" or "none".
func ResolveCommand(name, override, envVar string, getenv Environ) (path, method string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if override != "" {
		return override, "config"
	}
	if envVar != "" {
		if p := getenv(envVar); p != "" {
			return p, "env"
		}
	}
	if p, err := exec.LookPath(name); err == nil {
		return p, "path"
	}
	dirs := wellKnownDirs
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append([]string{filepath.Join(home, ".local", "bin")}, dirs...)
	}
	for _, dir := range dirs {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, "local"
		}
	}
	return "", "none"
}

// CaptureVersion runs the binary's version command and returns the
// first output line. Failures return the empty string; a version is
// informational only.
func CaptureVersion(ctx context.Context, path string, args ...string) string {
	if path == "" {
		return ""
	}
	if len(args) == 0 {
		args = []string{"--version"}
	}
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, path, args...).Output()
	if err != nil {
		return ""
	}
	line := string(out)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(line)
}

// HasAnyEnv reports whether any of the keys is set and non-empty.
func HasAnyEnv(getenv Environ, keys ...string) bool {
	if getenv == nil {
		getenv = os.Getenv
	}
	for _, key := range keys {
		if getenv(key) != "" {
			return true
		}
	}
	return false
}

// HomeFileExists reports whether a file exists under the user's home
// directory, for login-state checks such as persisted OAuth tokens.
func HomeFileExists(rel string) bool {
	home, err := os.UserHomeDir()
	if err != nil {
		return false
	}
	info, err := os.Stat(filepath.Join(home, rel))
	return err == nil && !info.IsDir()
}
