package ports

import "context"

// PacketSender transmits one relay datagram. Delivery is not acknowledged.
type PacketSender interface {
	// Send writes datagram as a single packet. Implementations honor the
	// context deadline and return an error wrapping
	// os.ErrDeadlineExceeded or context.DeadlineExceeded on expiry.
	Send(ctx context.Context, datagram []byte) error

	// Close releases the underlying socket.
	Close() error
}
