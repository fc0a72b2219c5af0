package process

import (
	"context"
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

// Pipe owns one child process whose stdin and stdout carry a bidirectional
// protocol rather than line records. The caller drives both ends; the Pipe
// supervises lifetime only: process-group termination with TERM-then-KILL
// escalation, context cancellation, and a stderr tail for diagnostics.
//
// Wait must be called on every path to reap the child. Config.Stdin and
// Config.StallTimeout do not apply here; request/response protocols carry
// their own liveness.
type Pipe struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr *tailBuffer

	killGrace time.Duration
	closeOnce sync.Once
	stopOnce  sync.Once
	stopping  atomic.Bool
	waitOnce  sync.Once
	waitErr   error
	cmdDone   chan struct{}

	mu        sync.Mutex
	killTimer *time.Timer

	log *slog.Logger
}

// StartPipe spawns the child with both stdio ends exposed.
func StartPipe(ctx context.Context, config Config) (*Pipe, error) {
	if config.Command == "" {
		return nil, errors.New("command cannot be empty")
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
	setProcAttr(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = stdin.Close()
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	tail := &tailBuffer{limit: stderrTailLimit}
	cmd.Stderr = tail

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		_ = stdout.Close()
		return nil, fmt.Errorf("failed to start %s: %w", config.Command, err)
	}

	p := &Pipe{
		cmd:       cmd,
		stdin:     stdin,
		stdout:    stdout,
		stderr:    tail,
		killGrace: killGrace,
		cmdDone:   make(chan struct{}),
		log:       slog.Default(),
	}

	go p.watchContext(ctx)

	return p, nil
}

// Stdin is the writer feeding the child's standard input.
func (p *Pipe) Stdin() io.WriteCloser { return p.stdin }

// Stdout is the reader carrying the child's standard output.
func (p *Pipe) Stdout() io.Reader { return p.stdout }

// StderrTail returns the captured tail of the child's stderr.
func (p *Pipe) StderrTail() string {
	return p.stderr.String()
}

// CloseStdin signals end of input to the child. Safe to call more than
// once; Stop closes it as well.
func (p *Pipe) CloseStdin() error {
	var err error
	p.closeOnce.Do(func() { err = p.stdin.Close() })
	return err
}

// Stop begins graceful termination: stdin is closed, the process group gets
// SIGTERM, and SIGKILL follows after the kill grace unless the child exits
// first. Stop does not block and does not reap; call Wait for that.
func (p *Pipe) Stop() {
	p.stopOnce.Do(func() {
		p.stopping.Store(true)
		_ = p.CloseStdin()

		signalGroup(p.cmd.Process, syscall.SIGTERM)

		p.mu.Lock()
		p.killTimer = time.AfterFunc(p.killGrace, func() {
			p.log.Warn("process ignored SIGTERM, escalating", "command", p.cmd.Path)
			killGroup(p.cmd.Process)
		})
		p.mu.Unlock()
	})
}

// Wait reaps the child and reports how it ended: nil for a clean exit or
// any exit after Stop, *ExitError with the stderr tail for a non-zero exit.
// Safe to call more than once; later calls return the first result.
func (p *Pipe) Wait() error {
	p.waitOnce.Do(func() {
		waitErr := p.cmd.Wait()
		close(p.cmdDone)

		p.mu.Lock()
		if p.killTimer != nil {
			p.killTimer.Stop()
		}
		p.mu.Unlock()

		switch {
		case p.stopping.Load():
			p.waitErr = nil
		case waitErr == nil:
			p.waitErr = nil
		default:
			var exitErr *exec.ExitError
			if errors.As(waitErr, &exitErr) {
				p.waitErr = &ExitError{Code: exitErr.ExitCode(), Stderr: p.stderr.String()}
			} else {
				p.waitErr = fmt.Errorf("process wait: %w", waitErr)
			}
		}
	})
	return p.waitErr
}

func (p *Pipe) watchContext(ctx context.Context) {
	select {
	case <-ctx.Done():
		p.Stop()
	case <-p.cmdDone:
	}
}
