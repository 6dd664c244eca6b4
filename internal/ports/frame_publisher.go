package ports

import "github.com/bft-labs/stdio-inspect/internal/domain"

// FramePublisher receives every frame the stream proxy reads.
// Publish must not block on slow consumers and must succeed when
// nobody is listening.
type FramePublisher interface {
	Publish(frame domain.Frame)
}
