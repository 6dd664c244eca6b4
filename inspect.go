// Package stdioinspect runs a child process with its standard streams
// mirrored to the caller's, and optionally streams every byte the child
// reads or writes to a UDP listener.
//
// Example usage:
//
//	cfg := stdioinspect.Config{
//	    Command: "./server",
//	    Target:  netip.MustParseAddrPort("[::1]:9000"),
//	    Relay:   stdioinspect.DefaultRelayConfig(),
//	}
//	code, err := stdioinspect.Run(context.Background(), cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.Exit(code)
package stdioinspect

import (
	"context"

	"github.com/bft-labs/stdio-inspect/internal/app"
	"github.com/bft-labs/stdio-inspect/internal/domain"
	"github.com/bft-labs/stdio-inspect/internal/relay"
	"github.com/bft-labs/stdio-inspect/pkg/log"
)

// Config describes one proxied run. A zero Target disables the relay.
type Config = app.SessionConfig

// RelayConfig tunes batching and sending.
type RelayConfig = relay.Config

// Session is a single proxied run; use it to adjust the relay while the
// child is running.
type Session = app.Session

// StreamKind identifies stdin, stdout or stderr in a datagram's first byte.
type StreamKind = domain.StreamKind

// Stream kinds as they appear on the wire.
const (
	Stdin  = domain.Stdin
	Stdout = domain.Stdout
	Stderr = domain.Stderr
)

// DefaultRelayConfig returns the relay defaults with flush on stop enabled.
func DefaultRelayConfig() RelayConfig {
	cfg := relay.DefaultConfig()
	cfg.FlushOnStop = true
	return cfg
}

// NewSession creates a session. A nil logger discards all output.
func NewSession(cfg Config, logger log.Logger) *Session {
	return app.NewSession(cfg, logger)
}

// Run proxies cfg.Command and blocks until it exits, returning its exit
// code. Cancelling ctx kills the child.
func Run(ctx context.Context, cfg Config) (int, error) {
	return app.NewSession(cfg, nil).Run(ctx)
}

// DecodeDatagram splits a relay datagram into its stream kind and payload.
func DecodeDatagram(b []byte) (StreamKind, []byte, error) {
	pkt, err := domain.DecodePacket(b)
	if err != nil {
		return 0, nil, err
	}
	return pkt.Kind, pkt.Payload, nil
}
