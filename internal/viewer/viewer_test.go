package viewer

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bft-labs/stdio-inspect/internal/adapters/udp"
	"github.com/bft-labs/stdio-inspect/internal/domain"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func startViewer(t *testing.T) (*Viewer, net.Conn, *lockedBuffer, *lockedBuffer, <-chan error, context.CancelFunc) {
	t.Helper()
	conn, err := udp.Listen(netip.MustParseAddrPort("127.0.0.1:0"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	stdout, stderr := &lockedBuffer{}, &lockedBuffer{}
	v := New(conn, stdout, stderr, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	done := make(chan error, 1)
	go func() { done <- v.Run(ctx) }()

	client, err := net.Dial("udp", conn.LocalAddr().String())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return v, client, stdout, stderr, done, cancel
}

func TestViewer_RoutesByKind(t *testing.T) {
	v, client, stdout, stderr, _, _ := startViewer(t)

	for _, pkt := range [][]byte{
		domain.EncodePacket(domain.Stdout, []byte("out ")),
		domain.EncodePacket(domain.Stderr, []byte("err")),
		domain.EncodePacket(domain.Stdin, []byte("in")),
	} {
		_, err := client.Write(pkt)
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool { return v.Received() == 3 }, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, "out in", stdout.String())
	require.Equal(t, "err", stderr.String())
}

func TestViewer_SkipsMalformed(t *testing.T) {
	v, client, stdout, _, _, _ := startViewer(t)

	_, err := client.Write([]byte{9, 'x'})
	require.NoError(t, err)
	_, err = client.Write([]byte{})
	require.NoError(t, err)
	_, err = client.Write(domain.EncodePacket(domain.Stdout, []byte("ok")))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return v.Received() == 1 }, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, uint64(2), v.Malformed())
	require.Equal(t, "ok", stdout.String())
}

func TestViewer_StopsOnCancel(t *testing.T) {
	_, _, _, _, done, cancel := startViewer(t)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("viewer did not stop")
	}
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("terminal gone") }

func TestViewer_WriteFailureIsFatal(t *testing.T) {
	conn, err := udp.Listen(netip.MustParseAddrPort("127.0.0.1:0"))
	require.NoError(t, err)
	defer conn.Close()

	v := New(conn, failWriter{}, failWriter{}, nil)
	done := make(chan error, 1)
	go func() { done <- v.Run(context.Background()) }()

	client, err := net.Dial("udp", conn.LocalAddr().String())
	require.NoError(t, err)
	defer client.Close()
	_, err = client.Write(domain.EncodePacket(domain.Stderr, []byte("x")))
	require.NoError(t, err)

	select {
	case err := <-done:
		require.ErrorContains(t, err, "terminal gone")
	case <-time.After(2 * time.Second):
		t.Fatal("viewer did not fail")
	}
}
