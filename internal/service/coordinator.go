// Package service coordinates concurrent provider runs: it resolves the
// backend, drives the execution stream, fans messages out to watchers and
// persists run metadata on every state change.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaneholloman/automaker/internal/config"
	"github.com/shaneholloman/automaker/internal/domain"
	"github.com/shaneholloman/automaker/internal/history"
	"github.com/shaneholloman/automaker/internal/mcp"
	"github.com/shaneholloman/automaker/internal/provider"
	"github.com/shaneholloman/automaker/internal/provider/circuit"
	"github.com/shaneholloman/automaker/internal/session"
	"github.com/shaneholloman/automaker/internal/storage"
)

var (
	ErrRunNotFound         = errors.New("run not found")
	ErrRunFinished         = errors.New("run already finished")
	ErrProviderNotFound    = errors.New("provider not found")
	ErrProviderCooling     = errors.New("provider is cooling down after repeated failures")
	ErrOperationTimeout    = errors.New("operation timed out")
	ErrCoordinatorShutdown = errors.New("coordinator is shutting down")
)

const (
	DefaultOperationTimeout = 30 * time.Second
	DefaultBreakerThreshold = 5
	DefaultBreakerCooldown  = time.Minute
)

// StartRunRequest carries everything one execution call needs. History is
// the caller's prior conversation; this layer never stores it.
type StartRunRequest struct {
	Provider     string
	Model        string
	Prompt       string
	WorkingDir   string
	SystemPrompt string
	History      []history.Message
	AllowedTools []string
	MaxTurns     int
}

type runContext struct {
	run    *domain.Run
	fanout *session.Stream
	cancel context.CancelFunc
	done   chan struct{}
}

func (rc *runContext) finished() bool {
	select {
	case <-rc.done:
		return true
	default:
		return false
	}
}

type Coordinator struct {
	runs     map[string]*runContext
	mu       sync.RWMutex
	registry *provider.Registry
	store    storage.Storage
	settings *config.Config
	logger   *slog.Logger

	breakers  map[string]*circuit.Breaker
	breakerMu sync.Mutex
	threshold int
	cooldown  time.Duration

	opTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type CoordinatorConfig struct {
	Registry         *provider.Registry
	Storage          storage.Storage
	Settings         *config.Config
	Logger           *slog.Logger
	OperationTimeout time.Duration
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())

	settings := cfg.Settings
	if settings == nil {
		defaults := config.Defaults()
		settings = &defaults
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opTimeout := cfg.OperationTimeout
	if opTimeout <= 0 {
		opTimeout = DefaultOperationTimeout
	}

	threshold := cfg.BreakerThreshold
	if threshold <= 0 {
		threshold = DefaultBreakerThreshold
	}

	cooldown := cfg.BreakerCooldown
	if cooldown <= 0 {
		cooldown = DefaultBreakerCooldown
	}

	return &Coordinator{
		runs:      make(map[string]*runContext),
		registry:  cfg.Registry,
		store:     cfg.Storage,
		settings:  settings,
		logger:    logger,
		breakers:  make(map[string]*circuit.Breaker),
		threshold: threshold,
		cooldown:  cooldown,
		opTimeout: opTimeout,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// StartRun creates a run and begins executing it in the background. The
// returned snapshot is the run in its pending state; callers follow
// progress through Watch or GetRun.
func (c *Coordinator) StartRun(ctx context.Context, req StartRunRequest) (domain.RunSnapshot, error) {
	select {
	case <-c.ctx.Done():
		return domain.RunSnapshot{}, ErrCoordinatorShutdown
	default:
	}

	prov, err := c.registry.Get(req.Provider)
	if err != nil {
		return domain.RunSnapshot{}, fmt.Errorf("%w: %s", ErrProviderNotFound, req.Provider)
	}

	breaker := c.breakerFor(req.Provider)
	if breaker.IsInCooldown() {
		return domain.RunSnapshot{}, fmt.Errorf("%w: %s (retry in %s)",
			ErrProviderCooling, req.Provider, breaker.CooldownRemaining().Round(time.Second))
	}

	// Resolve a concrete model up front so the run record names the model
	// that actually served it: explicit request, then settings, then the
	// backend's catalog default.
	model := req.Model
	if model == "" {
		model = c.settings.Provider(req.Provider).Model
	}
	if model == "" {
		if def, ok := provider.DefaultModel(prov.AvailableModels()); ok {
			model = def.ID
		}
	}

	servers, serverErrs := mcp.Filter(c.settings.ToolServers())
	for _, serr := range serverErrs {
		c.logger.Warn("skipping tool server", "error", serr)
	}

	opts := provider.ExecuteOptions{
		Prompt:       req.Prompt,
		History:      req.History,
		Model:        model,
		WorkingDir:   req.WorkingDir,
		SystemPrompt: req.SystemPrompt,
		AllowedTools: req.AllowedTools,
		MaxTurns:     c.settings.EffectiveMaxTurns(req.Provider, req.MaxTurns),
		ToolServers:  servers,
	}

	run := domain.NewRun(uuid.NewString(), req.Provider, model, req.Prompt, req.WorkingDir)
	c.persist(run)

	runCtx, runCancel := context.WithCancel(c.ctx)
	rc := &runContext{
		run:    run,
		fanout: session.NewStream(),
		cancel: runCancel,
		done:   make(chan struct{}),
	}

	c.mu.Lock()
	c.runs[run.ID] = rc
	c.mu.Unlock()

	c.wg.Add(1)
	go c.execute(runCtx, rc, prov, opts)

	return run.Snapshot(), nil
}

func (c *Coordinator) execute(ctx context.Context, rc *runContext, prov provider.Provider, opts provider.ExecuteOptions) {
	defer c.wg.Done()
	defer close(rc.done)
	defer rc.cancel()
	defer rc.fanout.Close()

	run := rc.run
	run.Begin()
	c.persist(run)
	c.logger.Info("provider run started",
		"run_id", run.ID, "provider", run.Provider, "model", run.Model)

	stream := prov.ExecuteQuery(ctx, opts)

	var lastText string
	sawTerminal := false
	for {
		msg, ok := stream.Next(ctx)
		if !ok {
			break
		}

		rc.fanout.Publish(msg)

		switch msg.Type {
		case domain.MessageAssistant:
			if text := msg.PlainText(); text != "" {
				lastText = text
			}
		case domain.MessageResult:
			run.Complete(msg.Result)
			sawTerminal = true
		case domain.MessageError:
			if msg.ErrorKind == domain.ErrorKindCancellation {
				run.Cancel()
			} else {
				run.Fail(msg.ErrorKind, msg.Error)
			}
			sawTerminal = true
		}
	}

	if !sawTerminal {
		// A silent end is cancellation if our context died, otherwise a
		// clean completion that produced no result record.
		if ctx.Err() != nil {
			run.Cancel()
		} else {
			run.Complete(lastText)
		}
	}

	switch run.GetState() {
	case domain.RunStateFailed:
		if c.breakerFor(run.Provider).RecordFailure() {
			c.logger.Warn("provider entering cooldown",
				"provider", run.Provider, "cooldown", c.cooldown)
		}
	case domain.RunStateCompleted:
		c.breakerFor(run.Provider).Reset()
	}

	c.persist(run)

	c.logger.Info("provider run finished",
		"run_id", run.ID, "provider", run.Provider, "state", run.GetState().String())
}

// GetRun returns the run's current snapshot, falling back to the store
// for runs that already finished.
func (c *Coordinator) GetRun(id string) (domain.RunSnapshot, error) {
	c.mu.RLock()
	rc, live := c.runs[id]
	c.mu.RUnlock()

	if live {
		return rc.run.Snapshot(), nil
	}

	if c.store == nil {
		return domain.RunSnapshot{}, ErrRunNotFound
	}

	snap, err := c.store.Load(id)
	if err != nil {
		if errors.Is(err, storage.ErrRunNotFound) {
			return domain.RunSnapshot{}, ErrRunNotFound
		}
		return domain.RunSnapshot{}, err
	}
	return snap, nil
}

// ListRuns merges live runs with stored ones; the live snapshot wins for
// ids present in both.
func (c *Coordinator) ListRuns() []domain.RunSnapshot {
	c.mu.RLock()
	snaps := make([]domain.RunSnapshot, 0, len(c.runs))
	seen := make(map[string]struct{}, len(c.runs))
	for id, rc := range c.runs {
		seen[id] = struct{}{}
		snaps = append(snaps, rc.run.Snapshot())
	}
	c.mu.RUnlock()

	if c.store == nil {
		return snaps
	}

	stored, _ := c.store.List()
	for _, snap := range stored {
		if _, ok := seen[snap.ID]; ok {
			continue
		}
		snaps = append(snaps, snap)
	}

	return snaps
}

// CancelRun asks a live run to stop and waits for it to wind down. The
// adapter kills its subprocess and the stream ends without a trailing
// error; the run records the cancelled state.
func (c *Coordinator) CancelRun(ctx context.Context, id string) error {
	c.mu.RLock()
	rc, live := c.runs[id]
	c.mu.RUnlock()

	if !live {
		snap, err := c.GetRun(id)
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: %s is %s", ErrRunFinished, id, snap.State)
	}

	if rc.finished() {
		return fmt.Errorf("%w: %s is %s", ErrRunFinished, id, rc.run.GetState())
	}

	rc.cancel()

	select {
	case <-rc.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.opTimeout):
		return ErrOperationTimeout
	}
}

// Watch attaches a best-effort observer to a live run's message stream.
// Messages published before the watcher attached are not replayed.
func (c *Coordinator) Watch(id string) (*session.Receiver, error) {
	c.mu.RLock()
	rc, live := c.runs[id]
	c.mu.RUnlock()

	if live && !rc.finished() {
		return rc.fanout.Subscribe(0), nil
	}

	if _, err := c.GetRun(id); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %s", ErrRunFinished, id)
}

// Shutdown cancels every live run and waits for them to finish, up to the
// given context's deadline.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) breakerFor(providerName string) *circuit.Breaker {
	c.breakerMu.Lock()
	defer c.breakerMu.Unlock()

	b, ok := c.breakers[providerName]
	if !ok {
		b = circuit.NewBreaker(c.threshold, c.cooldown)
		c.breakers[providerName] = b
	}
	return b
}

func (c *Coordinator) persist(run *domain.Run) {
	if c.store == nil {
		return
	}
	if err := c.store.Save(run.Snapshot()); err != nil {
		c.logger.Warn("failed to persist run", "run_id", run.ID, "error", err)
	}
}
