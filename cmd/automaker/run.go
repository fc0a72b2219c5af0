package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaneholloman/automaker/internal/config"
	"github.com/shaneholloman/automaker/internal/domain"
	"github.com/shaneholloman/automaker/internal/mcp"
	"github.com/shaneholloman/automaker/internal/provider"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <prompt>",
		Short: "Execute one task and print the canonical stream as NDJSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := oneShotOptions{prompt: strings.Join(args, " ")}
			opts.configPath, _ = cmd.Flags().GetString("config")
			opts.provider, _ = cmd.Flags().GetString("provider")
			opts.model, _ = cmd.Flags().GetString("model")
			opts.dir, _ = cmd.Flags().GetString("dir")
			opts.tools, _ = cmd.Flags().GetStringArray("tool")
			opts.noTools, _ = cmd.Flags().GetBool("no-tools")
			opts.maxTurns, _ = cmd.Flags().GetInt("max-turns")
			opts.timeout, _ = cmd.Flags().GetDuration("timeout")
			opts.system, _ = cmd.Flags().GetString("system")
			return runOneShot(opts)
		},
	}
	cmd.Flags().StringP("provider", "p", "claude", "backend to execute with")
	cmd.Flags().StringP("model", "m", "", "model id (default: settings, then the backend catalog)")
	cmd.Flags().StringP("dir", "d", "", "working directory for the execution")
	cmd.Flags().StringArray("tool", nil, "allowed tool, repeatable")
	cmd.Flags().Bool("no-tools", false, "disable tool use (routes hybrid backends to their direct API path)")
	cmd.Flags().Int("max-turns", 0, "agentic turn budget (0 = use settings)")
	cmd.Flags().Duration("timeout", 0, "overall execution timeout (0 = none)")
	cmd.Flags().String("system", "", "system prompt override")
	cmd.Flags().String("config", "", "path to automaker.toml (default: walk up from cwd)")
	return cmd
}

type oneShotOptions struct {
	configPath string
	prompt     string
	provider   string
	model      string
	dir        string
	tools      []string
	noTools    bool
	maxTurns   int
	timeout    time.Duration
	system     string
}

// runOneShot executes a single prompt against one backend and writes each
// canonical message to stdout as one JSON line. The exit status reflects
// the terminal record: an error message fails the command.
func runOneShot(opts oneShotOptions) error {
	cfg, err := config.LoadOrDefaults(opts.configPath)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	registry := newRegistry(cfg, logger)

	prov, err := registry.Get(opts.provider)
	if err != nil {
		return err
	}

	model := opts.model
	if model == "" {
		model = cfg.Provider(opts.provider).Model
	}
	if model == "" {
		if def, ok := provider.DefaultModel(prov.AvailableModels()); ok {
			model = def.ID
		}
	}

	allowed := opts.tools
	if opts.noTools {
		allowed = []string{}
	}

	servers, serverErrs := mcp.Filter(cfg.ToolServers())
	for _, serr := range serverErrs {
		logger.Warn("skipping tool server", "error", serr)
	}

	ctx, stop := signalContext()
	defer stop()
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	stream := prov.ExecuteQuery(ctx, provider.ExecuteOptions{
		Prompt:       opts.prompt,
		Model:        model,
		WorkingDir:   opts.dir,
		SystemPrompt: opts.system,
		AllowedTools: allowed,
		MaxTurns:     cfg.EffectiveMaxTurns(opts.provider, opts.maxTurns),
		ToolServers:  servers,
	})
	defer stream.Close()

	enc := json.NewEncoder(os.Stdout)
	var failed *domain.ProviderMessage
	for {
		msg, ok := stream.Next(ctx)
		if !ok {
			break
		}
		if err := enc.Encode(msg); err != nil {
			return fmt.Errorf("encode message: %w", err)
		}
		if msg.Type == domain.MessageError {
			m := msg
			failed = &m
		}
	}

	if failed != nil {
		return fmt.Errorf("run failed (%s): %s", failed.ErrorKind, failed.Error)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("execution timed out after %s", opts.timeout)
	}
	return nil
}
