// Package relay batches captured frames into datagrams.
//
// The [Accumulator] collects consecutive frames of the same stream kind
// into one buffer and flushes it when:
//
//   - the buffer grows past the packet size limit,
//   - a frame of a different kind arrives (the old buffer is flushed first),
//   - the [Ticker]'s idle deadline passes with no new frame.
//
// A flushed buffer is a complete datagram: one kind tag byte followed by
// the payload. Flushes go into an ordered outbox; the [Relay] sends them
// from its own goroutine so network writes never hold the accumulator lock.
package relay
