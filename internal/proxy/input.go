package proxy

import (
	"context"
	"errors"
	"io"
	"reflect"
	"sync"
	"syscall"

	"github.com/bft-labs/stdio-inspect/internal/domain"
)

// input reads a local input stream on behalf of every proxy that uses it.
//
// A read blocked on a terminal or pipe cannot be cancelled, so the reader
// goroutine outlives any single proxy. A chunk read after its proxy has
// stopped waits in chunks for the next proxy on the same source instead
// of being lost.
type input struct {
	chunks chan []byte
	done   chan struct{}
	err    error // set before done is closed
}

var inputs = struct {
	sync.Mutex
	m map[io.Reader]*input
}{m: make(map[io.Reader]*input)}

// inputFor returns the shared input for src, starting its reader on first
// use. Sources that cannot be map keys get a private input.
func inputFor(src io.Reader) *input {
	if src == nil {
		in := newInput()
		in.err = io.EOF
		close(in.done)
		return in
	}
	if !reflect.TypeOf(src).Comparable() {
		in := newInput()
		go in.read(src, nil)
		return in
	}

	inputs.Lock()
	defer inputs.Unlock()
	if in, ok := inputs.m[src]; ok {
		return in
	}
	in := newInput()
	inputs.m[src] = in
	go in.read(src, func() {
		inputs.Lock()
		if inputs.m[src] == in {
			delete(inputs.m, src)
		}
		inputs.Unlock()
	})
	return in
}

func newInput() *input {
	return &input{
		chunks: make(chan []byte),
		done:   make(chan struct{}),
	}
}

// read hands chunks of at most domain.MaxChunk bytes to next until src
// fails or ends.
func (in *input) read(src io.Reader, release func()) {
	for {
		buf := make([]byte, domain.MaxChunk)
		n, err := src.Read(buf)
		if n > 0 {
			in.chunks <- buf[:n]
		}
		if err == nil || errors.Is(err, syscall.EINTR) {
			continue
		}
		if release != nil {
			release()
		}
		in.err = err
		close(in.done)
		return
	}
}

// next returns the next chunk. Once the source has ended it returns the
// source's error, io.EOF included, to every caller.
func (in *input) next(ctx context.Context) ([]byte, error) {
	select {
	case b := <-in.chunks:
		return b, nil
	case <-in.done:
		return nil, in.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
