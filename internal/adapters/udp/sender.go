package udp

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/netip"

	"github.com/bft-labs/stdio-inspect/pkg/log"
)

// MaxDatagram is the largest UDP payload that fits in one IPv4 datagram.
const MaxDatagram = 65507

// Sender implements ports.PacketSender over an unconnected UDP socket.
// Unconnected sockets do not surface ICMP port-unreachable replies, so a
// listener that is not running yet never turns into a send error.
type Sender struct {
	conn   net.PacketConn
	target *net.UDPAddr
	logger log.Logger
}

// NewSender opens an ephemeral local socket for sending to target.
func NewSender(target netip.AddrPort, logger log.Logger) (*Sender, error) {
	if !target.IsValid() {
		return nil, fmt.Errorf("udp sender: invalid target %v", target)
	}
	network := "udp6"
	if target.Addr().Unmap().Is4() {
		network = "udp4"
	}
	conn, err := net.ListenPacket(network, ":0")
	if err != nil {
		return nil, fmt.Errorf("udp sender: bind: %w", err)
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	logger.Debug("udp sender bound",
		log.Stringer("local", conn.LocalAddr()),
		log.Stringer("target", target),
	)
	return &Sender{
		conn:   conn,
		target: net.UDPAddrFromAddrPort(netip.AddrPortFrom(target.Addr().Unmap(), target.Port())),
		logger: logger,
	}, nil
}

// Send writes datagram as one packet. The context deadline, if any,
// becomes the socket write deadline.
func (s *Sender) Send(ctx context.Context, datagram []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	deadline, _ := ctx.Deadline()
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("udp sender: set deadline: %w", err)
	}

	n, err := s.conn.WriteTo(datagram, s.target)
	if err != nil {
		return err
	}
	if n != len(datagram) {
		return fmt.Errorf("udp sender: %w (%d of %d bytes)", io.ErrShortWrite, n, len(datagram))
	}
	return nil
}

// Close releases the socket.
func (s *Sender) Close() error {
	return s.conn.Close()
}

// Listen binds a UDP socket for receiving relay datagrams.
func Listen(addr netip.AddrPort) (net.PacketConn, error) {
	network := "udp"
	if addr.Addr().Is4() {
		network = "udp4"
	}
	conn, err := net.ListenPacket(network, addr.String())
	if err != nil {
		return nil, fmt.Errorf("udp listen %s: %w", addr, err)
	}
	return conn, nil
}
