package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/bft-labs/stdio-inspect/internal/domain"
	"github.com/bft-labs/stdio-inspect/pkg/log"
)

// pump copies src to dst in chunks of at most domain.MaxChunk bytes,
// publishing each chunk before writing it. It returns on end of stream.
// Failures are reported on fatal unless ctx is already done, in which
// case the proxy is tearing down and they are expected.
func (p *Proxy) pump(ctx context.Context, src io.Reader, dst io.Writer, kind domain.StreamKind, fatal chan<- error) {
	buf := make([]byte, domain.MaxChunk)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			p.publisher.Publish(domain.NewFrame(kind, buf[:n]))
			if _, werr := dst.Write(buf[:n]); werr != nil {
				p.fail(ctx, fatal, fmt.Errorf("write %s: %w", kind, werr))
				return
			}
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			return
		case errors.Is(err, syscall.EINTR):
		default:
			p.fail(ctx, fatal, fmt.Errorf("read %s: %w", kind, err))
			return
		}
	}
}

// pumpInput forwards the shared local input to the child's stdin until
// the input ends, the child stops reading, or ctx is done. A chunk not
// yet taken when ctx ends stays with the input for the next proxy.
func (p *Proxy) pumpInput(ctx context.Context, in *input, dst io.WriteCloser, fatal chan<- error) {
	// The child sees end of input once local stdin ends.
	defer dst.Close()

	for {
		chunk, err := in.next(ctx)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return
		case errors.Is(err, io.EOF):
			return
		default:
			p.fail(ctx, fatal, fmt.Errorf("read %s: %w", domain.Stdin, err))
			return
		}

		p.publisher.Publish(domain.NewFrame(domain.Stdin, chunk))
		if _, werr := dst.Write(chunk); werr != nil {
			if isClosedPipe(werr) {
				p.logger.Debug("child closed its stdin", log.Err(werr))
				return
			}
			p.fail(ctx, fatal, fmt.Errorf("write %s: %w", domain.Stdin, werr))
			return
		}
	}
}

func (p *Proxy) fail(ctx context.Context, fatal chan<- error, err error) {
	if ctx.Err() != nil {
		p.logger.Debug("stream loop stopped during teardown", log.Err(err))
		return
	}
	select {
	case fatal <- err:
	default:
	}
}

// isClosedPipe reports whether a write failed because the reading side
// went away.
func isClosedPipe(err error) bool {
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, os.ErrClosed)
}
