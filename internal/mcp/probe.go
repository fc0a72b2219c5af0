package mcp

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/shaneholloman/automaker/internal/provider"
)

const probeTimeout = 10 * time.Second

// Probe spawns one tool server over stdio, performs the protocol
// handshake and returns the tool names it advertises. Status surfaces
// use it to report server health; execution paths never wait on it.
func Probe(ctx context.Context, cfg provider.ToolServerConfig) ([]string, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
	cmd.Env = os.Environ()
	for k, v := range cfg.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "automaker", Version: "1.0"}, nil)
	session, err := client.Connect(ctx, &mcpsdk.CommandTransport{Command: cmd}, nil)
	if err != nil {
		return nil, fmt.Errorf("connect to tool server %q: %w", cfg.Name, err)
	}
	defer session.Close()

	res, err := session.ListTools(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("list tools on %q: %w", cfg.Name, err)
	}

	names := make([]string, 0, len(res.Tools))
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	return names, nil
}
