package domain

import "fmt"

// Frame represents one bounded read of bytes from one stream.
// A Frame is a plain comparable value with a fixed footprint; the payload
// lives inline so frames can be copied to every bus subscriber without
// heap allocation.
type Frame struct {
	kind StreamKind
	n    int
	data [MaxChunk]byte
}

// NewFrame copies payload into a new Frame of the given kind.
// It panics if payload is longer than MaxChunk: callers read at most
// MaxChunk bytes, so a longer payload is a programming error.
func NewFrame(kind StreamKind, payload []byte) Frame {
	if len(payload) > MaxChunk {
		panic(fmt.Sprintf("domain: frame payload of %d bytes exceeds MaxChunk (%d)", len(payload), MaxChunk))
	}
	f := Frame{kind: kind, n: len(payload)}
	copy(f.data[:], payload)
	return f
}

// Kind returns the stream the frame was read from.
func (f Frame) Kind() StreamKind {
	return f.kind
}

// Len returns the payload length.
func (f Frame) Len() int {
	return f.n
}

// Payload returns a copy of the frame's bytes.
func (f Frame) Payload() []byte {
	return append([]byte(nil), f.data[:f.n]...)
}

// AppendPayload appends the frame's bytes to dst and returns the result.
func (f *Frame) AppendPayload(dst []byte) []byte {
	return append(dst, f.data[:f.n]...)
}
