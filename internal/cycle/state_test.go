package cycle

import (
	"errors"
	"testing"
)

func TestState_MarshalBinary(t *testing.T) {
	data, err := State{Index: 7}.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary() error = %v", err)
	}
	if len(data) != 1 || data[0] != 7 {
		t.Errorf("MarshalBinary() = %v, want [7]", data)
	}

	if _, err := (State{Index: -1}).MarshalBinary(); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("MarshalBinary(-1) error = %v, want ErrIndexOutOfRange", err)
	}
	if _, err := (State{Index: MaxValues}).MarshalBinary(); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("MarshalBinary(MaxValues) error = %v, want ErrIndexOutOfRange", err)
	}
}

func TestDecodeState(t *testing.T) {
	tests := []struct {
		name      string
		raw       []byte
		length    int
		wantIndex int
		wantErr   error
	}{
		{name: "first", raw: []byte{0}, length: 3, wantIndex: 0},
		{name: "last", raw: []byte{2}, length: 3, wantIndex: 2},
		{name: "max table", raw: []byte{254}, length: MaxValues, wantIndex: 254},
		{name: "out of range", raw: []byte{5}, length: 3, wantErr: ErrIndexOutOfRange},
		{name: "table shrunk", raw: []byte{3}, length: 3, wantErr: ErrIndexOutOfRange},
		{name: "empty", raw: []byte{}, length: 3, wantErr: ErrMalformedRecord},
		{name: "oversized", raw: []byte{1, 2}, length: 3, wantErr: ErrMalformedRecord},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := decodeState(tt.raw, tt.length)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("decodeState() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeState() error = %v", err)
			}
			if s.Index != tt.wantIndex {
				t.Errorf("Index = %d, want %d", s.Index, tt.wantIndex)
			}
		})
	}
}
