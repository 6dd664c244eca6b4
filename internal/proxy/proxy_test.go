package proxy

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/stdio-inspect/internal/domain"
)

// recorder implements ports.FramePublisher for testing.
type recorder struct {
	mu     sync.Mutex
	frames []domain.Frame
}

func (r *recorder) Publish(f domain.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, f)
}

func (r *recorder) Frames(kind domain.StreamKind) []domain.Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Frame
	for _, f := range r.frames {
		if f.Kind() == kind {
			out = append(out, f)
		}
	}
	return out
}

func (r *recorder) Bytes(kind domain.StreamKind) string {
	var b []byte
	for _, f := range r.Frames(kind) {
		b = f.AppendPayload(b)
	}
	return string(b)
}

func (r *recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

// syncBuffer is a bytes.Buffer safe for concurrent use.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

type shellResult struct {
	code   int
	err    error
	frames *recorder
	stdout *syncBuffer
	stderr *syncBuffer
}

func runShell(t *testing.T, script string, stdin string, opts ...Option) shellResult {
	t.Helper()
	requireShell(t)

	rec := &recorder{}
	stdout, stderr := &syncBuffer{}, &syncBuffer{}
	opts = append([]Option{
		WithStdio(strings.NewReader(stdin), stdout, stderr),
		WithDrainTimeout(2 * time.Second),
	}, opts...)
	p := New(rec, opts...)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	code, err := p.Run(ctx, "sh", "-c", script)
	return shellResult{code: code, err: err, frames: rec, stdout: stdout, stderr: stderr}
}

func TestRun_ExitCodeWithoutOutput(t *testing.T) {
	res := runShell(t, "exit 7", "")
	code, err, rec, stdout, stderr := res.code, res.err, res.frames, res.stdout, res.stderr
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if code != 7 {
		t.Errorf("exit code = %d, want 7", code)
	}
	if rec.Len() != 0 {
		t.Errorf("published %d frames, want 0", rec.Len())
	}
	if stdout.String() != "" || stderr.String() != "" {
		t.Errorf("unexpected output: stdout=%q stderr=%q", stdout.String(), stderr.String())
	}
}

func TestRun_StdoutIsChunkedAndMirrored(t *testing.T) {
	res := runShell(t, "printf ABCDEFGHIJ", "")
	code, err, rec, stdout := res.code, res.err, res.frames, res.stdout
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
	if got := stdout.String(); got != "ABCDEFGHIJ" {
		t.Errorf("local stdout = %q, want ABCDEFGHIJ", got)
	}
	if got := rec.Bytes(domain.Stdout); got != "ABCDEFGHIJ" {
		t.Errorf("published stdout = %q, want ABCDEFGHIJ", got)
	}

	frames := rec.Frames(domain.Stdout)
	for _, f := range frames {
		if f.Len() > domain.MaxChunk {
			t.Errorf("frame of %d bytes exceeds MaxChunk", f.Len())
		}
	}
	if domain.MaxChunk == 8 {
		if len(frames) != 2 || frames[0].Len() != 8 || frames[1].Len() != 2 {
			t.Errorf("frame sizes = %v, want [8 2]", frameSizes(frames))
		}
	}
}

func TestRun_StderrAndExitCode(t *testing.T) {
	res := runShell(t, "printf oops >&2; exit 3", "")
	code, err, rec, stdout, stderr := res.code, res.err, res.frames, res.stdout, res.stderr
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if code != 3 {
		t.Errorf("exit code = %d, want 3", code)
	}
	if stderr.String() != "oops" || stdout.String() != "" {
		t.Errorf("stdout=%q stderr=%q, want stderr=oops", stdout.String(), stderr.String())
	}
	if got := rec.Bytes(domain.Stderr); got != "oops" {
		t.Errorf("published stderr = %q, want oops", got)
	}
}

func TestRun_StdinIsForwarded(t *testing.T) {
	res := runShell(t, "cat", "hello proxy\n")
	code, err, rec, stdout := res.code, res.err, res.frames, res.stdout
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
	if stdout.String() != "hello proxy\n" {
		t.Errorf("local stdout = %q", stdout.String())
	}
	if got := rec.Bytes(domain.Stdin); got != "hello proxy\n" {
		t.Errorf("published stdin = %q", got)
	}
	if got := rec.Bytes(domain.Stdout); got != "hello proxy\n" {
		t.Errorf("published stdout = %q", got)
	}
}

func TestRun_SequentialRunsShareStdin(t *testing.T) {
	requireShell(t)
	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	first := New(&recorder{}, WithStdio(pr, &syncBuffer{}, &syncBuffer{}), WithDrainTimeout(2*time.Second))
	if code, err := first.Run(ctx, "sh", "-c", "exit 0"); err != nil || code != 0 {
		t.Fatalf("first Run() = %d, %v", code, err)
	}

	go func() { _, _ = pw.Write([]byte("abc")) }()

	rec, stdout := &recorder{}, &syncBuffer{}
	second := New(rec, WithStdio(pr, stdout, &syncBuffer{}), WithDrainTimeout(2*time.Second))
	code, err := second.Run(ctx, "head", "-c", "3")
	if err != nil || code != 0 {
		t.Fatalf("second Run() = %d, %v", code, err)
	}
	if stdout.String() != "abc" {
		t.Errorf("local stdout = %q, want %q", stdout.String(), "abc")
	}
	if got := rec.Bytes(domain.Stdin); got != "abc" {
		t.Errorf("published stdin = %q, want %q", got, "abc")
	}
}

func TestRun_LargeOutputPreservesOrder(t *testing.T) {
	res := runShell(t, "i=0; while [ $i -lt 200 ]; do echo line-$i; i=$((i+1)); done", "")
	code, err, rec, stdout := res.code, res.err, res.frames, res.stdout
	if err != nil || code != 0 {
		t.Fatalf("Run() = %d, %v", code, err)
	}
	var want strings.Builder
	for i := 0; i < 200; i++ {
		want.WriteString("line-")
		want.WriteString(strconv.Itoa(i))
		want.WriteString("\n")
	}
	if stdout.String() != want.String() {
		t.Error("local stdout differs from child output")
	}
	if rec.Bytes(domain.Stdout) != want.String() {
		t.Error("published stdout differs from child output")
	}
}

func TestRun_ChildIgnoringStdin(t *testing.T) {
	res := runShell(t, "exit 0", strings.Repeat("x", 1<<16))
	code, err := res.code, res.err
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
}

func TestRun_SignalledChildReportsZero(t *testing.T) {
	res := runShell(t, "kill -TERM $$", "")
	code, err := res.code, res.err
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
}

func TestRun_SpawnFailure(t *testing.T) {
	p := New(&recorder{}, WithStdio(strings.NewReader(""), &syncBuffer{}, &syncBuffer{}))
	_, err := p.Run(context.Background(), "/nonexistent/stdio-inspect-test-binary")
	if err == nil {
		t.Fatal("Run() succeeded for a missing binary")
	}
	if !strings.Contains(err.Error(), "spawn") {
		t.Errorf("error = %v, want spawn error", err)
	}
}

func TestRun_DestinationWriteFailureIsFatal(t *testing.T) {
	requireShell(t)
	p := New(&recorder{},
		WithStdio(strings.NewReader(""), failingWriter{}, &syncBuffer{}),
		WithDrainTimeout(2*time.Second),
	)
	_, err := p.Run(context.Background(), "sh", "-c", "printf x; sleep 5")
	if err == nil {
		t.Fatal("Run() succeeded despite stdout write failure")
	}
	if !strings.Contains(err.Error(), "disk full") {
		t.Errorf("error = %v, want disk full", err)
	}
}

func TestRun_ContextCancelKillsChild(t *testing.T) {
	requireShell(t)
	p := New(&recorder{}, WithStdio(strings.NewReader(""), &syncBuffer{}, &syncBuffer{}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := p.Run(ctx, "sh", "-c", "sleep 10")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() error = %v, want deadline exceeded", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("Run() did not return promptly after cancellation")
	}
}

func frameSizes(frames []domain.Frame) []int {
	sizes := make([]int, len(frames))
	for i, f := range frames {
		sizes[i] = f.Len()
	}
	return sizes
}
