package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaneholloman/automaker/internal/config"
	"github.com/shaneholloman/automaker/internal/mcp"
	"github.com/shaneholloman/automaker/internal/provider"
)

const probeTimeout = 15 * time.Second

func modelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models [provider]",
		Short: "List the model catalog per backend",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return showModels(cfgPath, name)
		},
	}
	cmd.Flags().String("config", "", "path to automaker.toml (default: walk up from cwd)")
	return cmd
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [provider]",
		Short: "Probe backend installation and credentials",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return showStatus(cfgPath, name)
		},
	}
	cmd.Flags().String("config", "", "path to automaker.toml (default: walk up from cwd)")
	return cmd
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create automaker.toml in the current directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("get working directory: %w", err)
			}
			path, err := config.InitFile(dir)
			if err != nil {
				return err
			}
			fmt.Printf("Created %s\n", path)
			return nil
		},
	}
}

// quietRegistry builds the adapters with warnings-only logging so command
// output stays clean.
func quietRegistry(cfgPath string) (*config.Config, *provider.Registry, error) {
	cfg, err := config.LoadOrDefaults(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	return cfg, newRegistry(cfg, logger), nil
}

// providerNames resolves the optional positional argument: empty means
// every registered backend.
func providerNames(reg *provider.Registry, name string) ([]string, error) {
	if name == "" {
		return reg.Names(), nil
	}
	if _, err := reg.Get(name); err != nil {
		return nil, err
	}
	return []string{name}, nil
}

func showModels(cfgPath, name string) error {
	_, reg, err := quietRegistry(cfgPath)
	if err != nil {
		return err
	}
	names, err := providerNames(reg, name)
	if err != nil {
		return err
	}

	for _, n := range names {
		p, err := reg.Get(n)
		if err != nil {
			continue
		}
		fmt.Println(n)
		for _, m := range p.AvailableModels() {
			marker := " "
			if m.IsDefault {
				marker = "*"
			}
			fmt.Printf("  %s %-28s %-24s %s\n", marker, m.ID, m.DisplayName, m.Tier)
		}
		fmt.Println()
	}
	return nil
}

func showStatus(cfgPath, name string) error {
	cfg, reg, err := quietRegistry(cfgPath)
	if err != nil {
		return err
	}
	names, err := providerNames(reg, name)
	if err != nil {
		return err
	}

	sigCtx, stop := signalContext()
	defer stop()
	ctx, cancel := context.WithTimeout(sigCtx, probeTimeout)
	defer cancel()

	for _, n := range names {
		p, err := reg.Get(n)
		if err != nil {
			continue
		}
		st := p.DetectInstallation(ctx)
		if !st.Installed {
			fmt.Printf("%-8s not installed\n", n)
			continue
		}
		line := st.Path
		if st.Version != "" {
			line += " (" + st.Version + ")"
		}
		fmt.Printf("%-8s %s\n", n, line)
		fmt.Printf("         method=%s credential=%t authenticated=%t\n",
			st.Method, st.HasCredential, st.Authenticated)
	}

	// Probing every backend means probing the shared tool servers too.
	if name == "" {
		printToolServerStatus(ctx, cfg)
	}
	return nil
}

func printToolServerStatus(ctx context.Context, cfg *config.Config) {
	servers := cfg.ToolServers()
	if len(servers) == 0 {
		return
	}
	fmt.Println()
	fmt.Println("tool servers")
	for _, sc := range servers {
		tools, err := mcp.Probe(ctx, sc)
		if err != nil {
			fmt.Printf("  %-12s unreachable: %v\n", sc.Name, err)
			continue
		}
		fmt.Printf("  %-12s %s\n", sc.Name, strings.Join(tools, ", "))
	}
}
