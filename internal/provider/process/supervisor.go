package process

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

const (
	// DefaultStallTimeout is the maximum inter-line silence tolerated on the
	// child's stdout before it is forcibly terminated.
	DefaultStallTimeout = 30 * time.Second

	// DefaultKillGrace is how long a stopped process gets between SIGTERM
	// and SIGKILL.
	DefaultKillGrace = 2 * time.Second

	// stderrTailLimit bounds the captured stderr kept for diagnostics.
	stderrTailLimit = 4096

	scannerInitialBuffer = 64 * 1024
	scannerMaxLine       = 1024 * 1024
)

// ErrStalled reports that the child produced no output line within the
// configured stall timeout and was killed.
var ErrStalled = errors.New("process stalled")

// ExitError reports a non-zero child exit, carrying the captured stderr tail.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("process exited with code %d: %s", e.Code, e.Stderr)
	}
	return fmt.Sprintf("process exited with code %d", e.Code)
}

// Config holds everything needed to spawn and supervise one child process.
type Config struct {
	Command     string
	Args        []string
	WorkingDir  string
	Environment map[string]string

	// Stdin, when non-nil, is fed to the child; the child sees EOF once it
	// is exhausted. Used by backends that take their input on stdin rather
	// than in the argument vector.
	Stdin io.Reader

	// StallTimeout overrides DefaultStallTimeout when positive.
	StallTimeout time.Duration

	// KillGrace overrides DefaultKillGrace when positive.
	KillGrace time.Duration
}

// Record is one line of child stdout that parsed as JSON.
type Record struct {
	Value any
	Raw   json.RawMessage
	Seq   int
}

// Object returns the record's value as a JSON object, if it is one.
func (r Record) Object() (map[string]any, bool) {
	obj, ok := r.Value.(map[string]any)
	return obj, ok
}

// Supervisor owns exactly one child process and exposes its stdout as a
// lazy sequence of parsed JSON records.
//
// Lines that fail to parse are dropped; the stream never aborts over one
// bad line. A stall timer resets on every line arrival, parsed or not, and
// kills the child when it fires. The records channel holds at most one
// record, so the supervisor never reads unboundedly ahead of the consumer.
// The child is terminated on every exit path: normal completion, stall,
// cancellation, and consumer abandonment via Stop.
type Supervisor struct {
	cmd       *exec.Cmd
	records   chan Record
	done      chan struct{}
	stopCh    chan struct{}
	stopOnce  sync.Once
	stopping  atomic.Bool
	stalled   atomic.Bool
	err       error
	stderr    *tailBuffer
	stall     time.Duration
	killGrace time.Duration
	cmdDone   chan struct{}
	log       *slog.Logger
}

// Start spawns the child and begins supervising it. The returned
// Supervisor's Records channel closes when the sequence ends; Err then
// reports how it ended.
func Start(ctx context.Context, config Config) (*Supervisor, error) {
	if config.Command == "" {
		return nil, errors.New("command cannot be empty")
	}

	stall := config.StallTimeout
	if stall <= 0 {
		stall = DefaultStallTimeout
	}
	killGrace := config.KillGrace
	if killGrace <= 0 {
		killGrace = DefaultKillGrace
	}

	cmd := exec.Command(config.Command, config.Args...)
	if config.WorkingDir != "" {
		cmd.Dir = config.WorkingDir
	}
	cmd.Env = os.Environ()
	for k, v := range config.Environment {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	if config.Stdin != nil {
		cmd.Stdin = config.Stdin
	}
	setProcAttr(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	tail := &tailBuffer{limit: stderrTailLimit}
	cmd.Stderr = tail

	if err := cmd.Start(); err != nil {
		_ = stdout.Close()
		return nil, fmt.Errorf("failed to start %s: %w", config.Command, err)
	}

	s := &Supervisor{
		cmd:       cmd,
		records:   make(chan Record, 1),
		done:      make(chan struct{}),
		stopCh:    make(chan struct{}),
		stderr:    tail,
		stall:     stall,
		killGrace: killGrace,
		cmdDone:   make(chan struct{}),
		log:       slog.Default(),
	}

	go s.watchContext(ctx)
	go s.run(stdout)

	return s, nil
}

// Records returns the sequence of parsed records. The channel closes when
// the child exits, stalls, or is stopped.
func (s *Supervisor) Records() <-chan Record {
	return s.records
}

// Err blocks until the sequence has ended and reports how: nil for a clean
// exit or graceful stop, ErrStalled for a stall kill, *ExitError for a
// non-zero exit.
func (s *Supervisor) Err() error {
	<-s.done
	return s.err
}

// StderrTail returns the captured tail of the child's stderr.
func (s *Supervisor) StderrTail() string {
	return s.stderr.String()
}

// Stop terminates the child gracefully: SIGTERM to the process group, then
// SIGKILL after the kill grace. Safe to call more than once and after exit.
// A stopped sequence ends without error.
func (s *Supervisor) Stop() {
	s.stopOnce.Do(func() {
		s.stopping.Store(true)
		close(s.stopCh)

		signalGroup(s.cmd.Process, syscall.SIGTERM)

		select {
		case <-s.cmdDone:
			return
		case <-time.After(s.killGrace):
		}

		s.log.Warn("process ignored SIGTERM, escalating", "command", s.cmd.Path)
		killGroup(s.cmd.Process)
	})
}

func (s *Supervisor) watchContext(ctx context.Context) {
	select {
	case <-ctx.Done():
		s.Stop()
	case <-s.done:
	}
}

func (s *Supervisor) run(stdout io.ReadCloser) {
	stallTimer := time.AfterFunc(s.stall, func() {
		s.stalled.Store(true)
		killGroup(s.cmd.Process)
	})

	scanner := bufio.NewScanner(stdout)
	buf := make([]byte, 0, scannerInitialBuffer)
	scanner.Buffer(buf, scannerMaxLine)

	seq := 0
	for scanner.Scan() {
		stallTimer.Reset(s.stall)

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var value any
		if err := json.Unmarshal(line, &value); err != nil {
			s.log.Debug("dropping unparseable output line", "command", s.cmd.Path)
			continue
		}

		seq++
		raw := make(json.RawMessage, len(line))
		copy(raw, line)

		select {
		case s.records <- Record{Value: value, Raw: raw, Seq: seq}:
		case <-s.stopCh:
			stallTimer.Stop()
			s.finish(scanner.Err())
			return
		}
	}
	stallTimer.Stop()
	s.finish(scanner.Err())
}

// finish waits for the child, classifies how the sequence ended and closes
// the records channel. Runs exactly once, at the end of the read loop.
func (s *Supervisor) finish(scanErr error) {
	waitErr := s.cmd.Wait()
	close(s.cmdDone)

	switch {
	case s.stopping.Load():
		// Graceful stop or cancellation. Never a failure.
		s.err = nil
	case s.stalled.Load():
		s.err = fmt.Errorf("%w: no output for %s", ErrStalled, s.stall)
	case waitErr != nil:
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			s.err = &ExitError{Code: exitErr.ExitCode(), Stderr: s.stderr.String()}
		} else {
			s.err = fmt.Errorf("process wait: %w", waitErr)
		}
	case scanErr != nil:
		s.err = fmt.Errorf("reading process output: %w", scanErr)
	default:
		s.err = nil
	}

	close(s.records)
	close(s.done)
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.limit {
		t.buf = t.buf[len(t.buf)-t.limit:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
