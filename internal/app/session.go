package app

import (
	"context"
	"fmt"
	"io"
	"net/netip"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bft-labs/stdio-inspect/internal/adapters/udp"
	"github.com/bft-labs/stdio-inspect/internal/domain"
	"github.com/bft-labs/stdio-inspect/internal/framebus"
	"github.com/bft-labs/stdio-inspect/internal/ports"
	"github.com/bft-labs/stdio-inspect/internal/proxy"
	"github.com/bft-labs/stdio-inspect/internal/relay"
	"github.com/bft-labs/stdio-inspect/pkg/log"
)

// SessionConfig describes one proxied run.
type SessionConfig struct {
	Command string
	Args    []string

	// Target is where the relay sends datagrams. The zero value disables
	// the relay; the child is still proxied.
	Target netip.AddrPort

	Relay       relay.Config
	BusCapacity int

	// DrainTimeout bounds the wait for child output after exit. Zero
	// means proxy.DefaultDrainTimeout; negative means do not wait.
	DrainTimeout time.Duration

	// Terminal endpoints. Nil means the process's own standard streams.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Session runs the stream proxy and, when a target is configured, the
// batching relay fed by the frame bus.
type Session struct {
	cfg       SessionConfig
	id        string
	logger    log.Logger
	lifecycle *Lifecycle
	newSender func(netip.AddrPort, log.Logger) (ports.PacketSender, error)

	mu    sync.Mutex
	relay *relay.Relay
}

// NewSession creates a session in StateStopped.
func NewSession(cfg SessionConfig, logger log.Logger) *Session {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	if cfg.Stdin == nil {
		cfg.Stdin = os.Stdin
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}
	id := uuid.NewString()
	logger = logger.With(log.String("session", id))
	return &Session{
		cfg:       cfg,
		id:        id,
		logger:    logger,
		lifecycle: NewLifecycle(logger),
		newSender: func(target netip.AddrPort, logger log.Logger) (ports.PacketSender, error) {
			return udp.NewSender(target, logger)
		},
	}
}

// ID returns the session identifier used in log lines.
func (s *Session) ID() string {
	return s.id
}

// State returns the session's lifecycle state.
func (s *Session) State() State {
	return s.lifecycle.State()
}

// Run proxies the configured command and returns its exit code.
//
// The relay subscribes to the bus before the child is spawned, so it sees
// every frame. When the child exits the bus is closed and the relay is
// given ShutdownTimeout to stop. A relay failure kills the child and is
// returned as the error.
func (s *Session) Run(ctx context.Context) (int, error) {
	if !s.lifecycle.CanStart() {
		return 0, domain.ErrAlreadyRunning
	}
	if err := s.lifecycle.TransitionTo(StateStarting, "Run() called"); err != nil {
		return 0, err
	}

	bus := framebus.New(s.cfg.BusCapacity)
	runCtx, cancelRun := context.WithCancelCause(ctx)
	defer cancelRun(nil)
	relayCtx, stopRelay := context.WithCancel(context.Background())
	defer stopRelay()

	relayErr := make(chan error, 1)
	if s.cfg.Target.IsValid() {
		sender, err := s.newSender(s.cfg.Target, s.logger)
		if err != nil {
			_ = s.lifecycle.TransitionTo(StateCrashed, "relay socket")
			return 0, fmt.Errorf("start relay: %w", err)
		}
		defer sender.Close()

		r := relay.New(bus.Subscribe(), sender, s.cfg.Relay, relay.WithLogger(s.logger))
		s.mu.Lock()
		s.relay = r
		s.mu.Unlock()

		s.lifecycle.Go(func() {
			if err := r.Run(relayCtx); err != nil {
				relayErr <- err
				cancelRun(err)
			}
		})
	}

	s.logger.Info("session started",
		log.String("command", s.cfg.Command),
		log.Bool("relay", s.cfg.Target.IsValid()),
		log.String("target", targetString(s.cfg.Target)),
	)
	_ = s.lifecycle.TransitionTo(StateRunning, "child spawning")

	opts := []proxy.Option{
		proxy.WithStdio(s.cfg.Stdin, s.cfg.Stdout, s.cfg.Stderr),
		proxy.WithLogger(s.logger),
	}
	switch {
	case s.cfg.DrainTimeout > 0:
		opts = append(opts, proxy.WithDrainTimeout(s.cfg.DrainTimeout))
	case s.cfg.DrainTimeout < 0:
		opts = append(opts, proxy.WithDrainTimeout(0))
	}
	p := proxy.New(bus, opts...)
	code, err := p.Run(runCtx, s.cfg.Command, s.cfg.Args...)

	_ = s.lifecycle.TransitionTo(StateStopping, "child exited")
	bus.Close()
	if werr := s.lifecycle.WaitWithTimeout(ShutdownTimeout); werr != nil {
		stopRelay()
	}

	select {
	case rerr := <-relayErr:
		err = rerr
	default:
	}
	if err != nil {
		_ = s.lifecycle.TransitionTo(StateCrashed, err.Error())
		return 0, err
	}

	if stats, ok := s.Stats(); ok {
		s.logger.Debug("relay stopped",
			log.Uint64("frames", stats.Frames),
			log.Uint64("packets", stats.Packets),
			log.Uint64("bytes", stats.Bytes),
			log.Uint64("missed", stats.Missed),
			log.Uint64("dropped", stats.Dropped),
		)
	}
	_ = s.lifecycle.TransitionTo(StateStopped, "session complete")
	s.logger.Info("session finished",
		log.Int("exit_code", code),
		log.Uint64("frames_published", bus.Published()),
	)
	return code, nil
}

// SetDebounceInterval updates the idle timeout of the running relay.
// It reports false when no relay is running.
func (s *Session) SetDebounceInterval(d time.Duration) bool {
	s.mu.Lock()
	r := s.relay
	s.mu.Unlock()
	if r == nil {
		return false
	}
	r.SetDebounceInterval(d)
	return true
}

// Stats returns the relay counters, if the session has a relay.
func (s *Session) Stats() (relay.Stats, bool) {
	s.mu.Lock()
	r := s.relay
	s.mu.Unlock()
	if r == nil {
		return relay.Stats{}, false
	}
	return r.Stats(), true
}

func targetString(target netip.AddrPort) string {
	if !target.IsValid() {
		return ""
	}
	return target.String()
}
