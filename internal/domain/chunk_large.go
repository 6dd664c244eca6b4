//go:build largechunk

package domain

// MaxChunk is the largest payload a single Frame can carry.
const MaxChunk = 4096
