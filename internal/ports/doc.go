// Package ports defines the interfaces that connect the capture pipeline
// to its infrastructure.
//
//   - [FramePublisher]: where the stream proxy sends every chunk it reads
//   - [PacketSender]: where the relay sends every flushed datagram
//
// The proxy and the relay depend only on these interfaces; the frame bus
// and the UDP adapter implement them.
package ports
