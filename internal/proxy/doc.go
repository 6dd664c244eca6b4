// Package proxy spawns a child process and relays its standard streams.
//
// Three loops run while the child is alive:
//
//	local stdin   -> child stdin   (kind stdin)
//	child stdout  -> local stdout  (kind stdout)
//	child stderr  -> local stderr  (kind stderr)
//
// Each loop reads at most domain.MaxChunk bytes at a time, publishes the
// chunk as a Frame and then writes it to its destination, so byte order
// within one stream is preserved. Nothing is promised about ordering
// across streams.
//
// Run returns the child's exit code once it exits. Output loops get a
// short, bounded chance to drain; the stdin loop is never waited for.
//
// A local input source is read by one goroutine for the life of the
// process and shared by every Run that uses it. A chunk read after its
// Run has returned is handed to the next Run on the same source.
package proxy
