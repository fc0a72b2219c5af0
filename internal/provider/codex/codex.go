// Package codex adapts the OpenAI codex backend. It is a hybrid: tool
// work runs through the codex CLI as a supervised subprocess, while
// tool-less calls with a credential go straight to the Responses API.
package codex

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shaneholloman/automaker/internal/domain"
	"github.com/shaneholloman/automaker/internal/mcp"
	"github.com/shaneholloman/automaker/internal/provider"
	"github.com/shaneholloman/automaker/internal/provider/process"
)

const (
	binaryName    = "codex"
	binaryEnvVar  = "AUTOMAKER_CODEX_BIN"
	credentialVar = "OPENAI_API_KEY"
	loginStateRel = ".codex/auth.json"
)

// Adapter runs tasks through codex. Safe for concurrent use.
type Adapter struct {
	binOverride  string
	baseURL      string
	sandbox      string
	fullAuto     bool
	stallTimeout time.Duration
	getenv       provider.Environ
	log          *slog.Logger
}

type Option func(*Adapter)

// WithBinary pins the CLI path instead of resolving it.
func WithBinary(path string) Option {
	return func(a *Adapter) { a.binOverride = path }
}

// WithBaseURL points the direct path at a different API endpoint.
func WithBaseURL(url string) Option {
	return func(a *Adapter) { a.baseURL = url }
}

// WithSandbox sets the CLI sandbox mode (read-only, workspace-write,
// danger-full-access). Ignored when full-auto is on.
func WithSandbox(mode string) Option {
	return func(a *Adapter) { a.sandbox = mode }
}

// WithFullAuto lets the CLI approve its own commands.
func WithFullAuto(on bool) Option {
	return func(a *Adapter) { a.fullAuto = on }
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

func (a *Adapter) Name() string { return "codex" }

func (a *Adapter) AvailableModels() []provider.ModelDefinition { return models }

func (a *Adapter) SupportsFeature(feature string) bool {
	switch feature {
	case provider.FeatureTools, provider.FeatureStreaming, provider.FeatureHistory:
		return true
	default:
		return false
	}
}

func (a *Adapter) env(key string) string {
	if a.getenv != nil {
		return a.getenv(key)
	}
	return os.Getenv(key)
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
	hasCredential := provider.HasAnyEnv(a.getenv, credentialVar)
	if provider.SelectStrategy(opts.AllowedTools, hasCredential, true) == provider.StrategyDirect {
		return a.runDirect(ctx, opts)
	}
	return a.runExec(ctx, opts, hasCredential)
}

func (a *Adapter) runExec(ctx context.Context, opts provider.ExecuteOptions, hasCredential bool) *domain.MessageStream {
	path, _ := provider.ResolveCommand(binaryName, a.binOverride, binaryEnvVar, a.getenv)
	if path == "" {
		return provider.ErrorStream(domain.ErrorKindExecution,
			"codex CLI not found; install it or set "+binaryEnvVar)
	}
	if !hasCredential && !provider.HomeFileExists(loginStateRel) {
		return provider.ErrorStream(domain.ErrorKindAuthentication,
			"codex is not authenticated; set "+credentialVar+" or run codex login")
	}

	execOpts := opts
	if execOpts.Model == "" {
		if def, ok := provider.DefaultModel(models); ok {
			execOpts.Model = def.ID
		}
	}

	mcpArgs, mcpErrs := mcp.CodexArgs(opts.ToolServers)
	for _, cfgErr := range mcpErrs {
		a.log.Warn("skipping tool server", "provider", a.Name(), "error", cfgErr)
	}

	sup, err := process.Start(ctx, process.Config{
		Command:      path,
		Args:         buildExecArgs(execOpts, a.sandbox, a.fullAuto, mcpArgs),
		WorkingDir:   opts.WorkingDir,
		StallTimeout: a.stallTimeout,
	})
	if err != nil {
		return provider.ErrorStream(domain.ErrorKindExecution, "start codex: "+err.Error())
	}

	stream := domain.NewMessageStream()
	go a.pumpExec(ctx, sup, stream)
	return stream
}

func (a *Adapter) pumpExec(ctx context.Context, sup *process.Supervisor, stream *domain.MessageStream) {
	defer stream.Finish()
	defer sup.Stop()

	tr := newTranslator()
	terminal := false

	for rec := range sup.Records() {
		obj, ok := rec.Object()
		if !ok {
			continue
		}
		msg, ok := tr.translate(obj)
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
