package domain

// HeaderSize is the length of the kind tag that prefixes every datagram.
const HeaderSize = 1

// Packet is one decoded relay datagram: a kind tag followed by the
// concatenated payload of one flush.
type Packet struct {
	Kind    StreamKind
	Payload []byte
}

// EncodePacket builds the wire form [kind][payload...].
func EncodePacket(kind StreamKind, payload []byte) []byte {
	b := make([]byte, 0, HeaderSize+len(payload))
	b = append(b, byte(kind))
	return append(b, payload...)
}

// DecodePacket parses a datagram. The returned payload aliases b.
func DecodePacket(b []byte) (Packet, error) {
	if len(b) < HeaderSize {
		return Packet{}, ErrShortPacket
	}
	kind, err := ParseStreamKind(b[0])
	if err != nil {
		return Packet{}, err
	}
	return Packet{Kind: kind, Payload: b[HeaderSize:]}, nil
}
