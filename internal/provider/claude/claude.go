// Package claude adapts the claude CLI's stream-json interface to the
// canonical message protocol. The CLI runs in programmatic mode (-p);
// the prompt is fed over stdin and each stdout line is one native
// record.
package claude

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"github.com/shaneholloman/automaker/internal/domain"
	"github.com/shaneholloman/automaker/internal/mcp"
	"github.com/shaneholloman/automaker/internal/provider"
	"github.com/shaneholloman/automaker/internal/provider/process"
)

const (
	binaryName    = "claude"
	binaryEnvVar  = "AUTOMAKER_CLAUDE_BIN"
	credentialVar = "ANTHROPIC_API_KEY"
	loginStateRel = ".claude/.credentials.json"
)

// Adapter runs tasks through the claude CLI. Safe for concurrent use;
// per-call state lives inside ExecuteQuery.
type Adapter struct {
	binOverride     string
	permissionMode  string
	skipPermissions bool
	stallTimeout    time.Duration
	getenv          provider.Environ
	log             *slog.Logger
}

type Option func(*Adapter)

// WithBinary pins the CLI path instead of resolving it.
func WithBinary(path string) Option {
	return func(a *Adapter) { a.binOverride = path }
}

// WithPermissionMode sets the CLI permission mode for every call.
func WithPermissionMode(mode string) Option {
	return func(a *Adapter) { a.permissionMode = mode }
}

// WithSkipPermissions bypasses the CLI's permission prompts.
func WithSkipPermissions(skip bool) Option {
	return func(a *Adapter) { a.skipPermissions = skip }
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

func (a *Adapter) Name() string { return "claude" }

func (a *Adapter) AvailableModels() []provider.ModelDefinition { return models }

func (a *Adapter) SupportsFeature(feature string) bool {
	switch feature {
	case provider.FeatureTools, provider.FeatureVision, provider.FeatureStreaming, provider.FeatureHistory:
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
			"claude CLI not found; install it or set "+binaryEnvVar)
	}
	if !provider.HasAnyEnv(a.getenv, credentialVar) && !provider.HomeFileExists(loginStateRel) {
		return provider.ErrorStream(domain.ErrorKindAuthentication,
			"claude is not authenticated; set "+credentialVar+" or run claude login")
	}

	payload, err := buildStdinPayload(opts)
	if err != nil {
		return provider.ErrorStream(domain.ErrorKindExecution, "encode prompt: "+err.Error())
	}

	mcpConfig, mcpErrs := mcp.ClaudeConfig(opts.ToolServers)
	for _, cfgErr := range mcpErrs {
		a.log.Warn("skipping tool server", "provider", a.Name(), "error", cfgErr)
	}

	args := buildArgs(opts, a.permissionMode, a.skipPermissions, mcpConfig)

	sup, err := process.Start(ctx, process.Config{
		Command:      path,
		Args:         args,
		WorkingDir:   opts.WorkingDir,
		Stdin:        bytes.NewReader(payload),
		StallTimeout: a.stallTimeout,
	})
	if err != nil {
		return provider.ErrorStream(domain.ErrorKindExecution, "start claude: "+err.Error())
	}

	stream := domain.NewMessageStream()
	go a.pump(ctx, sup, stream)
	return stream
}

// pump forwards translated records until the child's stream ends, then
// settles the canonical stream: at most one terminal error, nothing
// extra after cancellation.
func (a *Adapter) pump(ctx context.Context, sup *process.Supervisor, stream *domain.MessageStream) {
	defer stream.Finish()
	defer sup.Stop()

	corr := provider.NewCorrelator()
	terminal := false

	for rec := range sup.Records() {
		dec, ok := decodeRecord(rec)
		if !ok {
			continue
		}
		msg, ok := translate(dec, corr)
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
