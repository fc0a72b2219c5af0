package main

import (
	"log/slog"

	"github.com/shaneholloman/automaker/internal/config"
	"github.com/shaneholloman/automaker/internal/provider"
	"github.com/shaneholloman/automaker/internal/provider/claude"
	"github.com/shaneholloman/automaker/internal/provider/codex"
	"github.com/shaneholloman/automaker/internal/provider/cursor"
	"github.com/shaneholloman/automaker/internal/provider/gemini"
)

// newRegistry builds the four backend adapters from settings. Every knob
// is optional; an adapter built with no options uses its own defaults.
func newRegistry(cfg *config.Config, logger *slog.Logger) *provider.Registry {
	stall := cfg.StallTimeout()
	reg := provider.NewRegistry()

	claudeCfg := cfg.Provider("claude")
	claudeOpts := []claude.Option{claude.WithLogger(logger)}
	if claudeCfg.CLIPath != "" {
		claudeOpts = append(claudeOpts, claude.WithBinary(claudeCfg.CLIPath))
	}
	if claudeCfg.PermissionMode != "" {
		claudeOpts = append(claudeOpts, claude.WithPermissionMode(claudeCfg.PermissionMode))
	}
	if claudeCfg.SkipPermissions {
		claudeOpts = append(claudeOpts, claude.WithSkipPermissions(true))
	}
	if stall > 0 {
		claudeOpts = append(claudeOpts, claude.WithStallTimeout(stall))
	}
	reg.Register(claude.New(claudeOpts...))

	codexCfg := cfg.Provider("codex")
	codexOpts := []codex.Option{codex.WithLogger(logger)}
	if codexCfg.CLIPath != "" {
		codexOpts = append(codexOpts, codex.WithBinary(codexCfg.CLIPath))
	}
	if codexCfg.BaseURL != "" {
		codexOpts = append(codexOpts, codex.WithBaseURL(codexCfg.BaseURL))
	}
	if codexCfg.Sandbox != "" {
		codexOpts = append(codexOpts, codex.WithSandbox(codexCfg.Sandbox))
	}
	if codexCfg.FullAuto {
		codexOpts = append(codexOpts, codex.WithFullAuto(true))
	}
	if stall > 0 {
		codexOpts = append(codexOpts, codex.WithStallTimeout(stall))
	}
	reg.Register(codex.New(codexOpts...))

	geminiCfg := cfg.Provider("gemini")
	geminiOpts := []gemini.Option{gemini.WithLogger(logger)}
	if geminiCfg.CLIPath != "" {
		geminiOpts = append(geminiOpts, gemini.WithBinary(geminiCfg.CLIPath))
	}
	reg.Register(gemini.New(geminiOpts...))

	cursorCfg := cfg.Provider("cursor")
	cursorOpts := []cursor.Option{cursor.WithLogger(logger)}
	if cursorCfg.CLIPath != "" {
		cursorOpts = append(cursorOpts, cursor.WithBinary(cursorCfg.CLIPath))
	}
	if cursorCfg.Force {
		cursorOpts = append(cursorOpts, cursor.WithForce(true))
	}
	if cursorCfg.Trust {
		cursorOpts = append(cursorOpts, cursor.WithTrust(true))
	}
	if cursorCfg.Sandboxed {
		cursorOpts = append(cursorOpts, cursor.WithSandbox(true))
	}
	if stall > 0 {
		cursorOpts = append(cursorOpts, cursor.WithStallTimeout(stall))
	}
	reg.Register(cursor.New(cursorOpts...))

	return reg
}
