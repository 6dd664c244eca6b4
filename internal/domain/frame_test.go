package domain

import (
	"bytes"
	"errors"
	"testing"
)

func TestNewFrame(t *testing.T) {
	payload := []byte("abc")
	f := NewFrame(Stdout, payload)

	if f.Kind() != Stdout {
		t.Errorf("Kind() = %v, want stdout", f.Kind())
	}
	if f.Len() != 3 {
		t.Errorf("Len() = %d, want 3", f.Len())
	}

	// The frame owns its bytes.
	payload[0] = 'x'
	if got := f.Payload(); !bytes.Equal(got, []byte("abc")) {
		t.Errorf("Payload() = %q after caller mutation, want %q", got, "abc")
	}
}

func TestNewFrame_FullChunk(t *testing.T) {
	payload := bytes.Repeat([]byte{'z'}, MaxChunk)
	f := NewFrame(Stderr, payload)
	if f.Len() != MaxChunk {
		t.Errorf("Len() = %d, want %d", f.Len(), MaxChunk)
	}
	if got := f.AppendPayload(nil); !bytes.Equal(got, payload) {
		t.Errorf("AppendPayload() returned %d bytes, want the full chunk", len(got))
	}
}

func TestNewFrame_PanicsOverMaxChunk(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("NewFrame did not panic for oversized payload")
		}
	}()
	NewFrame(Stdin, make([]byte, MaxChunk+1))
}

func TestFrame_Comparable(t *testing.T) {
	a := NewFrame(Stdout, []byte("hi"))
	b := NewFrame(Stdout, []byte("hi"))
	c := NewFrame(Stderr, []byte("hi"))
	if a != b {
		t.Error("identical frames compare unequal")
	}
	if a == c {
		t.Error("frames of different kinds compare equal")
	}
}

func TestFrame_AppendPayload(t *testing.T) {
	f := NewFrame(Stdout, []byte("cd"))
	got := f.AppendPayload([]byte("ab"))
	if string(got) != "abcd" {
		t.Errorf("AppendPayload = %q, want abcd", got)
	}
}

func TestStreamKind_String(t *testing.T) {
	tests := []struct {
		kind StreamKind
		want string
	}{
		{Stdin, "stdin"},
		{Stdout, "stdout"},
		{Stderr, "stderr"},
		{StreamKind(9), "StreamKind(9)"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("StreamKind(%d).String() = %s, want %s", tt.kind, got, tt.want)
		}
	}
}

func TestDecodePacket(t *testing.T) {
	tests := []struct {
		name    string
		in      []byte
		want    Packet
		wantErr error
	}{
		{"stdout payload", []byte{1, 'A', 'B'}, Packet{Kind: Stdout, Payload: []byte("AB")}, nil},
		{"stdin empty payload", []byte{0}, Packet{Kind: Stdin, Payload: []byte{}}, nil},
		{"stderr", []byte{2, 'x'}, Packet{Kind: Stderr, Payload: []byte("x")}, nil},
		{"empty datagram", nil, Packet{}, ErrShortPacket},
		{"unknown tag", []byte{3, 'x'}, Packet{}, ErrUnknownKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodePacket(tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("DecodePacket() error = %v, want %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if got.Kind != tt.want.Kind || !bytes.Equal(got.Payload, tt.want.Payload) {
				t.Errorf("DecodePacket() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestEncodePacket(t *testing.T) {
	got := EncodePacket(Stderr, []byte("BB"))
	if !bytes.Equal(got, []byte{2, 'B', 'B'}) {
		t.Errorf("EncodePacket = %v, want [2 66 66]", got)
	}
}
