package cycle

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"
)

func TestNewTable_Validation(t *testing.T) {
	valid := TableConfig{
		ID:         "fan",
		Key:        "attr_cycle/fan",
		Attribute:  "speed",
		Values:     []int32{1, 2, 3},
		SaveDelay:  time.Second,
		ApplyDelay: time.Second,
		Persist:    true,
	}

	tests := []struct {
		name    string
		mutate  func(*TableConfig)
		wantErr error
		wantMsg string
	}{
		{name: "valid", mutate: func(*TableConfig) {}},
		{name: "single value", mutate: func(c *TableConfig) { c.Values = []int32{7} }},
		{name: "zero delays", mutate: func(c *TableConfig) { c.SaveDelay, c.ApplyDelay = 0, 0 }},
		{
			name:    "empty values",
			mutate:  func(c *TableConfig) { c.Values = nil },
			wantErr: ErrEmptyValues,
		},
		{
			name:    "missing id",
			mutate:  func(c *TableConfig) { c.ID = " " },
			wantErr: ErrInvalidTable,
			wantMsg: "id is required",
		},
		{
			name:    "missing key",
			mutate:  func(c *TableConfig) { c.Key = "" },
			wantErr: ErrInvalidTable,
			wantMsg: "key is required",
		},
		{
			name:    "too many values",
			mutate:  func(c *TableConfig) { c.Values = make([]int32, MaxValues+1) },
			wantErr: ErrInvalidTable,
			wantMsg: "at most 255 values",
		},
		{
			name:    "negative save delay",
			mutate:  func(c *TableConfig) { c.SaveDelay = -time.Millisecond },
			wantErr: ErrInvalidTable,
			wantMsg: "save delay",
		},
		{
			name:    "negative apply delay",
			mutate:  func(c *TableConfig) { c.ApplyDelay = -time.Millisecond },
			wantErr: ErrInvalidTable,
			wantMsg: "apply delay",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			cfg.Values = append([]int32(nil), valid.Values...)
			tt.mutate(&cfg)

			table, err := NewTable(cfg)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("NewTable() error = %v", err)
				}
				if table.Len() != len(cfg.Values) {
					t.Errorf("Len() = %d, want %d", table.Len(), len(cfg.Values))
				}
				return
			}

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("NewTable() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidTable) {
				t.Errorf("error %v does not wrap ErrInvalidTable", err)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
			if table != nil {
				t.Error("expected nil table on error")
			}
		})
	}
}

func TestNewTable_CopiesValues(t *testing.T) {
	values := []int32{10, 20, 30}
	table, err := NewTable(TableConfig{ID: "x", Key: "attr_cycle/x", Values: values})
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}

	values[0] = 99
	if table.Value(0) != 10 {
		t.Errorf("Value(0) = %d after caller mutation, want 10", table.Value(0))
	}

	out := table.Values()
	out[1] = 99
	if table.Value(1) != 20 {
		t.Errorf("Value(1) = %d after Values() mutation, want 20", table.Value(1))
	}
}

// TestTable_StepWraparound checks the floored-modulo property for every
// table length, start index and a spread of steps including the extremes.
func TestTable_StepWraparound(t *testing.T) {
	steps := []int32{
		0, 1, -1, 2, -2, 3, -3, 7, -7, 254, -254, 255, -255, 256, -256,
		1000, -1000, 65537, -65537,
		math.MaxInt32, math.MinInt32, math.MaxInt32 - 1, math.MinInt32 + 1,
	}

	for _, n := range []int{1, 2, 3, 4, 5, 7, 16, 100, MaxValues} {
		table, err := NewTable(TableConfig{ID: "t", Key: "k", Values: make([]int32, n)})
		if err != nil {
			t.Fatalf("NewTable(len %d) error = %v", n, err)
		}

		for start := 0; start < n; start++ {
			for _, step := range steps {
				got := table.Step(start, step)
				if got < 0 || got >= n {
					t.Fatalf("Step(%d, %d) with len %d = %d, out of range", start, step, n, got)
				}

				want := ((int64(start)+int64(step))%int64(n) + int64(n)) % int64(n)
				if int64(got) != want {
					t.Fatalf("Step(%d, %d) with len %d = %d, want %d", start, step, n, got, want)
				}
			}
		}
	}
}

func TestTable_StepSingleValue(t *testing.T) {
	table, err := NewTable(TableConfig{ID: "t", Key: "k", Values: []int32{42}})
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}
	for _, step := range []int32{-5, -1, 0, 1, 5} {
		if got := table.Step(0, step); got != 0 {
			t.Errorf("Step(0, %d) = %d, want 0", step, got)
		}
	}
}
