package trigger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/nerrad567/attrcycle/internal/cycle"
)

// Message is the JSON trigger payload.
type Message struct {
	Step *int32 `json:"step"`
}

// ParseStep decodes a trigger payload into a step.
func ParseStep(payload []byte) (int32, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return 0, fmt.Errorf("%w: empty", ErrInvalidPayload)
	}

	if trimmed[0] == '{' {
		var msg Message
		if err := json.Unmarshal(trimmed, &msg); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		if msg.Step == nil {
			return 0, fmt.Errorf("%w: missing step", ErrInvalidPayload)
		}
		return *msg.Step, nil
	}

	text := strings.Trim(string(trimmed), `"`)
	switch strings.ToLower(text) {
	case "next":
		return cycle.StepNext, nil
	case "previous", "prev":
		return cycle.StepPrevious, nil
	}

	n, err := strconv.ParseInt(text, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPayload, text)
	}
	return int32(n), nil
}
