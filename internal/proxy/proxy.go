package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/bft-labs/stdio-inspect/internal/domain"
	"github.com/bft-labs/stdio-inspect/internal/ports"
	"github.com/bft-labs/stdio-inspect/pkg/log"
)

// DefaultDrainTimeout bounds how long Run waits for child output still in
// the pipes after the child has exited.
const DefaultDrainTimeout = 100 * time.Millisecond

// Proxy owns one child process and its three stream loops.
type Proxy struct {
	publisher    ports.FramePublisher
	stdin        io.Reader
	stdout       io.Writer
	stderr       io.Writer
	logger       log.Logger
	drainTimeout time.Duration
}

// Option configures optional behavior of a Proxy.
type Option func(*Proxy)

// WithStdio replaces the local terminal endpoints.
func WithStdio(stdin io.Reader, stdout, stderr io.Writer) Option {
	return func(p *Proxy) {
		p.stdin, p.stdout, p.stderr = stdin, stdout, stderr
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger log.Logger) Option {
	return func(p *Proxy) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithDrainTimeout sets how long Run waits for output loops after the
// child exits. Zero means do not wait.
func WithDrainTimeout(d time.Duration) Option {
	return func(p *Proxy) {
		if d >= 0 {
			p.drainTimeout = d
		}
	}
}

type discardPublisher struct{}

func (discardPublisher) Publish(domain.Frame) {}

// New creates a proxy that publishes every chunk it relays to publisher.
func New(publisher ports.FramePublisher, opts ...Option) *Proxy {
	if publisher == nil {
		publisher = discardPublisher{}
	}
	p := &Proxy{
		publisher:    publisher,
		stdin:        os.Stdin,
		stdout:       os.Stdout,
		stderr:       os.Stderr,
		logger:       log.NewNoopLogger(),
		drainTimeout: DefaultDrainTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run spawns name with args and relays its streams until it exits.
//
// It returns the child's exit code, or 0 when the child was killed by a
// signal. An error is returned when the child cannot be spawned, when a
// loop fails to read or write (the child is killed), or when ctx ends
// before the child exits (the child is killed).
func (p *Proxy) Run(ctx context.Context, name string, args ...string) (int, error) {
	pp, err := newPipes()
	if err != nil {
		return 0, err
	}

	cmd := exec.Command(name, args...)
	cmd.Stdin = pp.childStdin
	cmd.Stdout = pp.childStdout
	cmd.Stderr = pp.childStderr
	if err := cmd.Start(); err != nil {
		pp.closeAll()
		return 0, fmt.Errorf("spawn %s: %w", name, err)
	}
	pp.closeChildEnds()
	p.logger.Debug("child started", log.String("command", name), log.Int("pid", cmd.Process.Pid))

	loopCtx, stopLoops := context.WithCancel(ctx)
	defer func() {
		stopLoops()
		pp.closeParentEnds()
	}()

	fatal := make(chan error, 3)
	go p.pumpInput(loopCtx, inputFor(p.stdin), pp.stdin, fatal)

	var outputs sync.WaitGroup
	outputs.Add(2)
	go func() {
		defer outputs.Done()
		p.pump(loopCtx, pp.stdout, p.stdout, domain.Stdout, fatal)
	}()
	go func() {
		defer outputs.Done()
		p.pump(loopCtx, pp.stderr, p.stderr, domain.Stderr, fatal)
	}()
	drained := make(chan struct{})
	go func() {
		outputs.Wait()
		close(drained)
	}()

	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	var waitErr error
	select {
	case waitErr = <-exited:
	case err := <-fatal:
		p.kill(cmd, exited)
		return 0, err
	case <-ctx.Done():
		p.kill(cmd, exited)
		return 0, context.Cause(ctx)
	}

	if p.drainTimeout > 0 {
		timer := time.NewTimer(p.drainTimeout)
		defer timer.Stop()
		select {
		case <-drained:
		case <-timer.C:
			p.logger.Debug("child output still pending at exit, discarding")
		}
	}
	select {
	case err := <-fatal:
		return 0, err
	default:
	}

	return exitCode(name, waitErr)
}

func (p *Proxy) kill(cmd *exec.Cmd, exited <-chan error) {
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		p.logger.Warn("kill child failed", log.Err(err))
	}
	<-exited
}

func exitCode(name string, waitErr error) (int, error) {
	if waitErr == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		// -1 means the child was terminated by a signal.
		if code := exitErr.ExitCode(); code >= 0 {
			return code, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("wait %s: %w", name, waitErr)
}
