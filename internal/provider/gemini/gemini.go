// Package gemini adapts Google's Gemini backend. It is a hybrid: tool-less
// calls with a credential go straight to the Gemini API, everything else
// bridges the gemini CLI's agent protocol (ACP over stdio) into canonical
// messages.
package gemini

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/shaneholloman/automaker/internal/domain"
	"github.com/shaneholloman/automaker/internal/provider"
	"github.com/shaneholloman/automaker/internal/provider/process"
)

const (
	binaryName          = "gemini"
	binaryEnvVar        = "AUTOMAKER_GEMINI_BIN"
	credentialVar       = "GEMINI_API_KEY"
	legacyCredentialVar = "GOOGLE_API_KEY"
	loginStateRel       = ".gemini/oauth_creds.json"
)

// Adapter runs tasks through Gemini. Safe for concurrent use.
type Adapter struct {
	binOverride string
	killGrace   time.Duration
	getenv      provider.Environ
	log         *slog.Logger
}

type Option func(*Adapter)

// WithBinary pins the CLI path instead of resolving it.
func WithBinary(path string) Option {
	return func(a *Adapter) { a.binOverride = path }
}

// WithKillGrace overrides the TERM-to-KILL escalation delay for the
// bridged CLI.
func WithKillGrace(d time.Duration) Option {
	return func(a *Adapter) { a.killGrace = d }
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

func (a *Adapter) Name() string { return "gemini" }

func (a *Adapter) AvailableModels() []provider.ModelDefinition { return models }

func (a *Adapter) SupportsFeature(feature string) bool {
	switch feature {
	case provider.FeatureTools, provider.FeatureStreaming, provider.FeatureHistory, provider.FeatureVision:
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

// apiKey returns the configured credential, preferring the CLI's own
// variable over the older SDK one.
func (a *Adapter) apiKey() string {
	if key := a.env(credentialVar); key != "" {
		return key
	}
	return a.env(legacyCredentialVar)
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
	status.HasCredential = provider.HasAnyEnv(a.getenv, credentialVar, legacyCredentialVar)
	status.Authenticated = status.HasCredential || provider.HomeFileExists(loginStateRel)
	return status
}

func (a *Adapter) ExecuteQuery(ctx context.Context, opts provider.ExecuteOptions) *domain.MessageStream {
	apiKey := a.apiKey()

	model := opts.Model
	if model == "" {
		if def, ok := provider.DefaultModel(models); ok {
			model = def.ID
		}
	}

	if provider.SelectStrategy(opts.AllowedTools, apiKey != "", true) == provider.StrategyDirect {
		return a.executeDirect(ctx, opts, apiKey, model)
	}
	return a.runBridge(ctx, opts, apiKey != "", model)
}

func (a *Adapter) runBridge(ctx context.Context, opts provider.ExecuteOptions, hasCredential bool, model string) *domain.MessageStream {
	path, _ := provider.ResolveCommand(binaryName, a.binOverride, binaryEnvVar, a.getenv)
	if path == "" {
		return provider.ErrorStream(domain.ErrorKindExecution,
			"gemini CLI not found; install it or set "+binaryEnvVar)
	}
	if !hasCredential && !provider.HomeFileExists(loginStateRel) {
		return provider.ErrorStream(domain.ErrorKindAuthentication,
			"gemini is not authenticated; set "+credentialVar+" or run gemini to sign in")
	}

	if opts.MaxTurns > 0 {
		// The agent protocol has no turn budget; the CLI runs its own loop.
		a.log.Warn("turn budget is not configurable per call", "provider", a.Name())
	}

	pipe, err := process.StartPipe(ctx, process.Config{
		Command:    path,
		Args:       buildBridgeArgs(model),
		WorkingDir: opts.WorkingDir,
		KillGrace:  a.killGrace,
	})
	if err != nil {
		return provider.ErrorStream(domain.ErrorKindExecution, "start gemini: "+err.Error())
	}

	stream := domain.NewMessageStream()
	go a.pumpBridge(ctx, pipe, stream, opts)
	return stream
}

func buildBridgeArgs(model string) []string {
	args := []string{"--experimental-acp"}
	if model != "" {
		args = append(args, "-m", model)
	}
	return args
}

func (a *Adapter) pumpBridge(ctx context.Context, pipe *process.Pipe, stream *domain.MessageStream, opts provider.ExecuteOptions) {
	defer stream.Finish()
	defer func() {
		pipe.Stop()
		_ = pipe.Wait()
	}()

	br := newBridge(ctx, stream, opts.WorkingDir, a.log)
	err := br.run(pipe.Stdin(), pipe.Stdout(), opts)
	if err == nil || ctx.Err() != nil {
		return
	}

	// A dying CLI surfaces as a broken RPC call; the reason is usually on
	// its stderr, so classification reads both.
	detail := err.Error()
	if tail := strings.TrimSpace(pipe.StderrTail()); tail != "" {
		detail += " (" + tail + ")"
	}
	c := provider.ClassifyMessage(detail)
	stream.Send(ctx, domain.NewErrorMessage(c.Kind, c.Message))
}
