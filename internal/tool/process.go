package tool

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"streamrelay/internal/domain"
)

// stderrTail keeps the last bytes a child wrote to stderr.
type stderrTail struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func newStderrTail(limit int) *stderrTail {
	return &stderrTail{limit: limit}
}

func (t *stderrTail) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *stderrTail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(bytes.TrimSpace(t.buf))
}

// failureFunc converts a non-zero exit into a domain error.
type failureFunc func(stderr string, err error) error

// process is the Stream implementation backed by exec.Cmd.
type process struct {
	ctx      context.Context
	cmd      *exec.Cmd
	stdout   io.ReadCloser
	stderr   *stderrTail
	cancel   context.CancelFunc
	classify failureFunc

	killed atomic.Bool

	mu     sync.Mutex
	waited bool
	err    error
}

// startProcess launches name with args. The child is terminated with SIGTERM
// when ctx ends or Kill is called, and hard killed grace later.
func startProcess(ctx context.Context, name string, args []string, stdin io.Reader, grace time.Duration, classify failureFunc) (*process, error) {
	procCtx, cancel := context.WithCancel(ctx)

	cmd := exec.CommandContext(procCtx, name, args...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = grace
	cmd.Stdin = stdin

	stderr := newStderrTail(8 * 1024)
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, domain.Relay(err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, startError(err)
	}

	return &process{
		ctx:      procCtx,
		cmd:      cmd,
		stdout:   stdout,
		stderr:   stderr,
		cancel:   cancel,
		classify: classify,
	}, nil
}

func (p *process) Read(b []byte) (int, error) {
	return p.stdout.Read(b)
}

func (p *process) Kill() error {
	p.killed.Store(true)
	p.cancel()
	return nil
}

func (p *process) Wait() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.waited {
		return p.err
	}
	p.waited = true

	err := p.cmd.Wait()
	stopped := p.killed.Load() || p.ctx.Err() != nil
	p.cancel()

	switch {
	case err == nil:
		p.err = nil
	case stopped:
		p.err = domain.Relay(errors.Join(context.Canceled, err))
	default:
		p.err = p.classify(p.stderr.String(), err)
	}
	return p.err
}

// Stderr returns the captured tail of the child's diagnostics.
func (p *process) Stderr() string {
	return p.stderr.String()
}

// startError maps launch failures. A missing binary gets its own message.
func startError(err error) error {
	if isMissingBinary(err) {
		return domain.NewError(domain.KindInternal, domain.MsgExtractorMissing, err)
	}
	return domain.Relay(err)
}

func isMissingBinary(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}

// runOutput runs a short-lived command to completion and returns its stdout.
func runOutput(ctx context.Context, name string, args []string, timeout time.Duration, grace time.Duration, classify failureFunc) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = grace

	var stdout bytes.Buffer
	stderr := newStderrTail(8 * 1024)
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	if err := cmd.Run(); err != nil {
		if isMissingBinary(err) {
			return nil, startError(err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, classify(stderr.String(), errors.Join(ctxErr, err))
		}
		return nil, classify(stderr.String(), err)
	}

	return stdout.Bytes(), nil
}

// extractionFailure classifies extractor diagnostics.
func extractionFailure(stderr string, err error) error {
	return domain.ClassifyExtraction(stderr, err)
}
