// Package domain contains the core value types for stdio-inspect.
//
// This package has no dependencies on infrastructure concerns (processes,
// sockets, logging) and contains only the data model shared by the proxy,
// the frame bus and the relay.
//
// # Types
//
//   - [StreamKind]: which of the three standard streams a byte run belongs to
//   - [Frame]: one bounded read of bytes from one stream, at most [MaxChunk] bytes
//   - [Packet]: a decoded datagram as sent by the relay
//
// # Design Principles
//
// Frames are fixed-size values. They are copied, never shared, when the
// frame bus fans them out to subscribers, so no subscriber can observe
// another subscriber's mutations.
package domain
