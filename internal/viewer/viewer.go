package viewer

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/bft-labs/stdio-inspect/internal/adapters/udp"
	"github.com/bft-labs/stdio-inspect/internal/domain"
	"github.com/bft-labs/stdio-inspect/pkg/log"
)

// Viewer prints datagrams read from a packet connection.
type Viewer struct {
	conn   net.PacketConn
	stdout io.Writer
	stderr io.Writer
	logger log.Logger

	received  atomic.Uint64
	malformed atomic.Uint64
}

// New creates a viewer reading from conn.
func New(conn net.PacketConn, stdout, stderr io.Writer, logger log.Logger) *Viewer {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Viewer{conn: conn, stdout: stdout, stderr: stderr, logger: logger}
}

// Run reads datagrams until ctx is cancelled or the connection fails.
// Malformed datagrams are logged and skipped. Cancellation returns nil.
func (v *Viewer) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		_ = v.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	buf := make([]byte, udp.MaxDatagram+1)
	for {
		n, from, err := v.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("receive datagram: %w", err)
		}

		pkt, err := domain.DecodePacket(buf[:n])
		if err != nil {
			v.malformed.Add(1)
			v.logger.Warn("malformed datagram skipped",
				log.Stringer("from", from),
				log.Int("bytes", n),
				log.Err(err),
			)
			continue
		}
		v.received.Add(1)

		w := v.stdout
		if pkt.Kind == domain.Stderr {
			w = v.stderr
		}
		if _, err := w.Write(pkt.Payload); err != nil {
			return fmt.Errorf("write %s payload: %w", pkt.Kind, err)
		}
	}
}

// Received returns the number of datagrams printed.
func (v *Viewer) Received() uint64 {
	return v.received.Load()
}

// Malformed returns the number of datagrams skipped.
func (v *Viewer) Malformed() uint64 {
	return v.malformed.Load()
}
