package domain

import "fmt"

// StreamKind identifies one of the three standard streams.
// Its numeric value is the kind tag used on the wire.
type StreamKind uint8

const (
	Stdin StreamKind = iota
	Stdout
	Stderr
)

// String returns a human-readable representation of the kind.
func (k StreamKind) String() string {
	switch k {
	case Stdin:
		return "stdin"
	case Stdout:
		return "stdout"
	case Stderr:
		return "stderr"
	default:
		return fmt.Sprintf("StreamKind(%d)", uint8(k))
	}
}

// Valid reports whether k is one of the three known kinds.
func (k StreamKind) Valid() bool {
	return k <= Stderr
}

// ParseStreamKind converts a wire tag into a StreamKind.
func ParseStreamKind(tag byte) (StreamKind, error) {
	k := StreamKind(tag)
	if !k.Valid() {
		return 0, fmt.Errorf("%w: tag %d", ErrUnknownKind, tag)
	}
	return k, nil
}
