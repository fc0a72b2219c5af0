// Package cursor adapts the Cursor agent CLI. The agent is one-shot:
// each execution spawns one `cursor-agent chat` process with the prompt
// in argv and reads stream-json records until the result.
package cursor

import (
	"context"
	"log/slog"
	"time"

	"github.com/shaneholloman/automaker/internal/domain"
	"github.com/shaneholloman/automaker/internal/provider"
	"github.com/shaneholloman/automaker/internal/provider/process"
)

const (
	binaryName    = "cursor-agent"
	binaryEnvVar  = "AUTOMAKER_CURSOR_BIN"
	credentialVar = "CURSOR_API_KEY"
	loginStateRel = ".cursor/cli-config.json"
)

// Adapter runs tasks through the Cursor agent. Safe for concurrent use.
type Adapter struct {
	binOverride  string
	force        bool
	trust        bool
	sandbox      bool
	stallTimeout time.Duration
	getenv       provider.Environ
	log          *slog.Logger
}

type Option func(*Adapter)

// WithBinary pins the CLI path instead of resolving it.
func WithBinary(path string) Option {
	return func(a *Adapter) { a.binOverride = path }
}

// WithForce lets the agent apply edits without confirmation.
func WithForce(on bool) Option {
	return func(a *Adapter) { a.force = on }
}

// WithTrust marks the working directory as trusted.
func WithTrust(on bool) Option {
	return func(a *Adapter) { a.trust = on }
}

// WithSandbox runs agent commands sandboxed.
func WithSandbox(on bool) Option {
	return func(a *Adapter) { a.sandbox = on }
}

// WithStallTimeout overrides the output stall watchdog.
func WithStallTimeout(d time.Duration) Option {
	return func(a *Adapter) { a.stallTimeout = d }
}

// WithEnviron injects the environment lookup used for probing.
func WithEnviron(getenv provider.Environ) Option {
	return func(a *Adapter) { a.getenv = getenv }
}

func WithLogger(log *slog.Logger) Option {
	return func(a *Adapter) { a.log = log }
}

func New(opts ...Option) *Adapter {
	a := &Adapter{log: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Name() string { return "cursor" }

func (a *Adapter) AvailableModels() []provider.ModelDefinition { return models }

func (a *Adapter) SupportsFeature(feature string) bool {
	switch feature {
	case provider.FeatureTools, provider.FeatureStreaming, provider.FeatureHistory:
		return true
	default:
		return false
	}
}

func (a *Adapter) DetectInstallation(ctx context.Context) provider.InstallationStatus {
	path, method := provider.ResolveCommand(binaryName, a.binOverride, binaryEnvVar, a.getenv)
	status := provider.InstallationStatus{Method: method}
	if path == "" {
		return status
	}
	status.Installed = true
	status.Path = path
	status.Version = provider.CaptureVersion(ctx, path)
	status.HasCredential = provider.HasAnyEnv(a.getenv, credentialVar)
	status.Authenticated = status.HasCredential || provider.HomeFileExists(loginStateRel)
	return status
}

func (a *Adapter) ExecuteQuery(ctx context.Context, opts provider.ExecuteOptions) *domain.MessageStream {
	path, _ := provider.ResolveCommand(binaryName, a.binOverride, binaryEnvVar, a.getenv)
	if path == "" {
		return provider.ErrorStream(domain.ErrorKindExecution,
			"cursor agent CLI not found; install it or set "+binaryEnvVar)
	}
	if !provider.HasAnyEnv(a.getenv, credentialVar) && !provider.HomeFileExists(loginStateRel) {
		return provider.ErrorStream(domain.ErrorKindAuthentication,
			"cursor agent is not authenticated; set "+credentialVar+" or run cursor-agent login")
	}

	execOpts := opts
	if execOpts.Model == "" {
		if def, ok := provider.DefaultModel(models); ok {
			execOpts.Model = def.ID
		}
	}

	if len(opts.ToolServers) > 0 {
		// The agent reads tool servers from its own mcp.json, not argv.
		a.log.Warn("tool servers are not configurable per call", "provider", a.Name())
	}

	sup, err := process.Start(ctx, process.Config{
		Command:      path,
		Args:         buildChatArgs(execOpts, a.force, a.trust, a.sandbox),
		WorkingDir:   opts.WorkingDir,
		StallTimeout: a.stallTimeout,
	})
	if err != nil {
		return provider.ErrorStream(domain.ErrorKindExecution, "start cursor agent: "+err.Error())
	}

	stream := domain.NewMessageStream()
	go a.pump(ctx, sup, stream)
	return stream
}

func (a *Adapter) pump(ctx context.Context, sup *process.Supervisor, stream *domain.MessageStream) {
	defer stream.Finish()
	defer sup.Stop()

	tr := newTranslator()
	terminal := false

	for rec := range sup.Records() {
		msg, ok := tr.translate(rec.Raw)
		if !ok {
			continue
		}
		if msg.IsTerminal() {
			terminal = true
		}
		if !stream.Send(ctx, msg) {
			return
		}
	}

	err := sup.Err()
	if err == nil || terminal || ctx.Err() != nil {
		return
	}
	c := provider.Classify(err)
	stream.Send(ctx, domain.NewErrorMessage(c.Kind, c.Message))
}
