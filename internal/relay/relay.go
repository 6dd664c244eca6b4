package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bft-labs/stdio-inspect/internal/domain"
	"github.com/bft-labs/stdio-inspect/internal/framebus"
	"github.com/bft-labs/stdio-inspect/internal/ports"
	"github.com/bft-labs/stdio-inspect/pkg/log"
)

// DefaultSendTimeout bounds a single datagram write.
const DefaultSendTimeout = time.Second

// DefaultOutboxSize is the number of flushed datagrams that may wait for
// the send task before flushes start to block.
const DefaultOutboxSize = 64

var errSourceClosed = errors.New("relay: frame source closed")

// Source yields frames in the order the relay must apply them.
// *framebus.Subscription satisfies it.
type Source interface {
	Recv(ctx context.Context) (domain.Frame, error)
}

// Config tunes the batching policy.
type Config struct {
	// MaxPacket is the buffered datagram length, kind tag included, past
	// which a flush is forced. The flush follows the push that crosses it,
	// so a datagram may carry up to MaxPacket+MaxChunk bytes.
	MaxPacket int

	// DebounceInterval is how long buffered bytes may sit with no new frame.
	DebounceInterval time.Duration

	// CheckInterval is how often the idle deadline is polled. It bounds the
	// jitter of idle flushes independently of DebounceInterval.
	CheckInterval time.Duration

	// SendTimeout bounds each datagram write; expiry drops the datagram.
	SendTimeout time.Duration

	// OutboxSize is the capacity of the queue between flushes and sends.
	OutboxSize int

	// FlushOnStop flushes buffered bytes when the relay stops normally.
	FlushOnStop bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		MaxPacket:        DefaultMaxPacket,
		DebounceInterval: DefaultDebounceInterval,
		CheckInterval:    DefaultCheckInterval,
		SendTimeout:      DefaultSendTimeout,
		OutboxSize:       DefaultOutboxSize,
	}
}

// SetDefaults fills zero values with defaults.
func (c *Config) SetDefaults() {
	d := DefaultConfig()
	if c.MaxPacket <= 0 {
		c.MaxPacket = d.MaxPacket
	}
	if c.DebounceInterval <= 0 {
		c.DebounceInterval = d.DebounceInterval
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = d.CheckInterval
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = d.SendTimeout
	}
	if c.OutboxSize <= 0 {
		c.OutboxSize = d.OutboxSize
	}
}

// Stats counts relay activity.
type Stats struct {
	Frames  uint64 // frames pushed into the accumulator
	Packets uint64 // datagrams sent
	Bytes   uint64 // payload bytes sent, excluding kind tags
	Missed  uint64 // frames lost to bus lag
	Dropped uint64 // datagrams dropped on send timeout
}

// Relay consumes frames from a Source and sends batched datagrams.
type Relay struct {
	cfg    Config
	source Source
	sender ports.PacketSender
	logger log.Logger
	now    func() time.Time

	outbox chan []byte
	acc    *Accumulator
	ticker *Ticker

	frames  atomic.Uint64
	packets atomic.Uint64
	bytes   atomic.Uint64
	missed  atomic.Uint64
	dropped atomic.Uint64
}

// Option configures optional behavior of a Relay.
type Option func(*Relay)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger log.Logger) Option {
	return func(r *Relay) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a relay. Call Run to start it.
func New(source Source, sender ports.PacketSender, cfg Config, opts ...Option) *Relay {
	cfg.SetDefaults()
	r := &Relay{
		cfg:    cfg,
		source: source,
		sender: sender,
		logger: log.NewNoopLogger(),
		now:    time.Now,
		outbox: make(chan []byte, cfg.OutboxSize),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.acc = NewAccumulator(cfg.MaxPacket, r.outbox)
	r.ticker = NewTicker(cfg.DebounceInterval, r.now())
	return r
}

// Run starts the push, check and send tasks and blocks until they stop.
// The tasks stop together: when ctx is cancelled, when the source is
// closed, or when a send fails with anything other than a timeout.
// Only the last case is returned as an error.
func (r *Relay) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.pushLoop(gctx) })
	g.Go(func() error { return r.checkLoop(gctx) })
	g.Go(func() error { return r.sendLoop(gctx) })

	err := g.Wait()
	if errors.Is(err, errSourceClosed) || (ctx.Err() != nil && errors.Is(err, ctx.Err())) {
		r.drain()
		return nil
	}
	return err
}

// SetDebounceInterval changes the idle timeout of a running relay.
func (r *Relay) SetDebounceInterval(d time.Duration) {
	r.ticker.SetInterval(d)
}

// Stats returns a snapshot of the relay counters.
func (r *Relay) Stats() Stats {
	return Stats{
		Frames:  r.frames.Load(),
		Packets: r.packets.Load(),
		Bytes:   r.bytes.Load(),
		Missed:  r.missed.Load(),
		Dropped: r.dropped.Load(),
	}
}

func (r *Relay) pushLoop(ctx context.Context) error {
	for {
		frame, err := r.source.Recv(ctx)
		if err != nil {
			if missed, ok := framebus.IsLagged(err); ok {
				r.missed.Add(missed)
				r.logger.Warn("relay fell behind, frames dropped", log.Uint64("missed", missed))
				continue
			}
			if errors.Is(err, framebus.ErrClosed) {
				return errSourceClosed
			}
			return err
		}

		r.frames.Add(1)
		// Move the deadline first so a check running concurrently cannot
		// flush the frame being pushed.
		r.ticker.Reset(r.now())
		if err := r.acc.Push(ctx, frame); err != nil {
			return err
		}
	}
}

func (r *Relay) checkLoop(ctx context.Context) error {
	t := time.NewTicker(r.cfg.CheckInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}

		observed := r.ticker.Deadline()
		now := r.now()
		if now.Before(observed) {
			continue
		}
		// A push may have moved the deadline since it was read.
		if !r.ticker.Fire(observed, now) {
			continue
		}
		if err := r.acc.Tick(ctx); err != nil {
			return err
		}
	}
}

func (r *Relay) sendLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case datagram := <-r.outbox:
			if err := r.send(ctx, datagram); err != nil {
				return err
			}
		}
	}
}

// send writes one datagram. A send already started is not interrupted by
// ctx; only SendTimeout bounds it. Timeouts drop the datagram; other
// failures are returned.
func (r *Relay) send(ctx context.Context, datagram []byte) error {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.SendTimeout)
	defer cancel()

	err := r.sender.Send(sctx, datagram)
	if err == nil {
		r.packets.Add(1)
		r.bytes.Add(uint64(len(datagram) - domain.HeaderSize))
		return nil
	}
	if isTimeout(err) {
		r.dropped.Add(1)
		r.logger.Warn("datagram dropped, send timed out",
			log.Int("bytes", len(datagram)),
			log.Duration("timeout", r.cfg.SendTimeout),
		)
		return nil
	}
	return fmt.Errorf("send datagram: %w", err)
}

// drain sends what is already in the outbox and, with FlushOnStop, the
// accumulator's remaining bytes. Failures are logged, not returned.
func (r *Relay) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.SendTimeout)
	defer cancel()

	r.sendPending(ctx)
	if !r.cfg.FlushOnStop {
		return
	}
	if err := r.acc.Flush(ctx); err != nil {
		r.logger.Warn("final flush failed", log.Err(err))
		return
	}
	r.sendPending(ctx)
}

func (r *Relay) sendPending(ctx context.Context) {
	for {
		select {
		case datagram := <-r.outbox:
			if err := r.send(ctx, datagram); err != nil {
				r.logger.Warn("datagram lost at shutdown", log.Err(err))
				return
			}
		default:
			return
		}
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
