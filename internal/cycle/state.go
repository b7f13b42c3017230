package cycle

import "fmt"

// recordSize is the size of a persisted State record in bytes.
const recordSize = 1

// State is the persisted part of a controller: the active index.
type State struct {
	Index int
}

// MarshalBinary encodes the state as a single index byte.
func (s State) MarshalBinary() ([]byte, error) {
	if s.Index < 0 || s.Index >= MaxValues {
		return nil, fmt.Errorf("%w: index %d", ErrIndexOutOfRange, s.Index)
	}
	return []byte{byte(s.Index)}, nil
}

// UnmarshalBinary decodes a record produced by MarshalBinary.
// Returns ErrMalformedRecord when the record is not exactly one byte.
func (s *State) UnmarshalBinary(data []byte) error {
	if len(data) != recordSize {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrMalformedRecord, len(data), recordSize)
	}
	s.Index = int(data[0])
	return nil
}

// decodeState decodes raw and checks the index against a table of length n.
func decodeState(raw []byte, n int) (State, error) {
	var s State
	if err := s.UnmarshalBinary(raw); err != nil {
		return State{}, err
	}
	if s.Index >= n {
		return State{}, fmt.Errorf("%w: index %d, table length %d", ErrIndexOutOfRange, s.Index, n)
	}
	return s, nil
}
