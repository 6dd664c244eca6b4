package relay

import (
	"context"
	"sync"

	"github.com/bft-labs/stdio-inspect/internal/domain"
)

// DefaultMaxPacket is the buffered length past which a flush is forced.
const DefaultMaxPacket = 32768

// bufferCapacity is the initial capacity of every fresh buffer.
const bufferCapacity = domain.HeaderSize + 4*domain.MaxChunk

// Accumulator holds the bytes of the current run of same-kind frames.
//
// Invariant: when hasKind is set, buf[0] is kind's tag and buf holds at
// least one payload byte after it, in arrival order. When hasKind is
// unset, buf holds only the reserved header byte.
type Accumulator struct {
	maxPacket int
	out       chan<- []byte

	mu      sync.Mutex
	kind    domain.StreamKind
	hasKind bool
	buf     []byte
}

// NewAccumulator creates an accumulator that flushes into out. A flush
// blocks while out is full, which keeps datagrams in flush order.
func NewAccumulator(maxPacket int, out chan<- []byte) *Accumulator {
	if maxPacket <= 0 {
		maxPacket = DefaultMaxPacket
	}
	return &Accumulator{
		maxPacket: maxPacket,
		out:       out,
		buf:       newBuffer(),
	}
}

func newBuffer() []byte {
	return make([]byte, domain.HeaderSize, bufferCapacity)
}

// Push appends frame to the buffer. A kind switch flushes the existing
// buffer before any byte of the new kind is buffered; crossing the
// packet size limit flushes immediately after the append.
func (a *Accumulator) Push(ctx context.Context, frame domain.Frame) error {
	if frame.Len() == 0 {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.hasKind && a.kind != frame.Kind() {
		if err := a.flushLocked(ctx); err != nil {
			return err
		}
	}
	if !a.hasKind {
		a.kind = frame.Kind()
		a.hasKind = true
		a.buf[0] = byte(frame.Kind())
	}
	a.buf = frame.AppendPayload(a.buf)

	if len(a.buf) > a.maxPacket {
		return a.flushLocked(ctx)
	}
	return nil
}

// Tick flushes the buffer if it holds anything. It is called when the
// idle deadline passes.
func (a *Accumulator) Tick(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.flushLocked(ctx)
}

// Flush is Tick under the name used for shutdown.
func (a *Accumulator) Flush(ctx context.Context) error {
	return a.Tick(ctx)
}

// currentKind returns the kind currently buffered, if any.
func (a *Accumulator) currentKind() (domain.StreamKind, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.kind, a.hasKind
}

// buffered returns the number of payload bytes waiting to be flushed.
func (a *Accumulator) buffered() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buf) - domain.HeaderSize
}

// flushLocked hands the buffer to the outbox and replaces it with a fresh
// one, so the outgoing datagram is never touched by later pushes. If ctx
// ends while the outbox is full, the buffer is kept and ctx.Err returned.
func (a *Accumulator) flushLocked(ctx context.Context) error {
	if !a.hasKind {
		return nil
	}
	select {
	case a.out <- a.buf:
	case <-ctx.Done():
		return ctx.Err()
	}
	a.buf = newBuffer()
	a.hasKind = false
	return nil
}
