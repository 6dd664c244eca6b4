//go:build !largechunk

package domain

// MaxChunk is the largest payload a single Frame can carry. It is kept
// deliberately small so that batching in the relay is exercised by
// ordinary output. Build with -tags largechunk for production sizing.
const MaxChunk = 8
