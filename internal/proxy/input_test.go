package proxy

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func TestInputFor_SharesReaderPerSource(t *testing.T) {
	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })

	a, b := inputFor(pr), inputFor(pr)
	if a != b {
		t.Fatal("inputFor returned different inputs for one source")
	}
	if inputFor(strings.NewReader("")) == a {
		t.Fatal("inputFor shared an input across sources")
	}
}

func TestInput_ChunkWaitsForNextConsumer(t *testing.T) {
	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })
	in := inputFor(pr)

	// A consumer that gives up does not take the pending chunk.
	stopped, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := in.next(stopped); !errors.Is(err, context.Canceled) {
		t.Fatalf("next() on cancelled ctx error = %v", err)
	}

	go func() { _, _ = pw.Write([]byte("held")) }()

	ctx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	got, err := in.next(ctx)
	if err != nil {
		t.Fatalf("next() error = %v", err)
	}
	if string(got) != "held" {
		t.Errorf("next() = %q, want %q", got, "held")
	}
}

func TestInput_EndOfSourceReachesEveryCaller(t *testing.T) {
	src := strings.NewReader("x")
	in := inputFor(src)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if got, err := in.next(ctx); err != nil || string(got) != "x" {
		t.Fatalf("next() = %q, %v", got, err)
	}
	for i := 0; i < 2; i++ {
		if _, err := in.next(ctx); !errors.Is(err, io.EOF) {
			t.Fatalf("next() #%d error = %v, want EOF", i, err)
		}
	}
	// The ended source is released, so a later lookup starts fresh.
	inputs.Lock()
	_, ok := inputs.m[src]
	inputs.Unlock()
	if ok {
		t.Error("ended source still registered")
	}
}

func TestInputFor_NilSourceIsEmpty(t *testing.T) {
	in := inputFor(nil)
	if _, err := in.next(context.Background()); !errors.Is(err, io.EOF) {
		t.Errorf("next() error = %v, want EOF", err)
	}
}
