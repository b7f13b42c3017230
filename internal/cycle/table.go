package cycle

import (
	"fmt"
	"strings"
	"time"
)

// MaxValues is the largest value table supported.
// The persisted record stores the index in a single byte.
const MaxValues = 255

// Attribute names the device attribute a controller sets (e.g. "brightness").
// It is opaque to this package and passed through to the Target.
type Attribute string

// TableConfig is the construction-time configuration of a controller.
type TableConfig struct {
	// ID identifies the instance; it is also the storage key suffix.
	ID string

	// Key is the unique storage key for this instance's record.
	Key string

	// Attribute is the attribute set on the target device.
	Attribute Attribute

	// Values is the ordered list of values to cycle through.
	Values []int32

	// SaveDelay is how long trigger activity must settle before the index is saved.
	SaveDelay time.Duration

	// ApplyDelay is how long to wait after a restore before pushing the value to the device.
	ApplyDelay time.Duration

	// Persist enables saving and restoring the active index.
	Persist bool
}

// Table is the immutable per-instance configuration of a Controller.
// Create one with NewTable; the zero value is not usable.
type Table struct {
	id         string
	key        string
	attribute  Attribute
	values     []int32
	saveDelay  time.Duration
	applyDelay time.Duration
	persist    bool
}

// NewTable validates cfg and returns an immutable Table.
//
// The value list is copied so later changes to cfg.Values have no effect.
// Returns ErrEmptyValues (wrapped in ErrInvalidTable) when no values are given.
func NewTable(cfg TableConfig) (*Table, error) {
	if err := validateTableConfig(cfg); err != nil {
		return nil, err
	}

	values := make([]int32, len(cfg.Values))
	copy(values, cfg.Values)

	return &Table{
		id:         cfg.ID,
		key:        cfg.Key,
		attribute:  cfg.Attribute,
		values:     values,
		saveDelay:  cfg.SaveDelay,
		applyDelay: cfg.ApplyDelay,
		persist:    cfg.Persist,
	}, nil
}

func validateTableConfig(cfg TableConfig) error {
	if len(cfg.Values) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidTable, ErrEmptyValues)
	}

	var errs []string
	if strings.TrimSpace(cfg.ID) == "" {
		errs = append(errs, "id is required")
	}
	if strings.TrimSpace(cfg.Key) == "" {
		errs = append(errs, "key is required")
	}
	if len(cfg.Values) > MaxValues {
		errs = append(errs, fmt.Sprintf("at most %d values are supported, got %d", MaxValues, len(cfg.Values)))
	}
	if cfg.SaveDelay < 0 {
		errs = append(errs, "save delay must not be negative")
	}
	if cfg.ApplyDelay < 0 {
		errs = append(errs, "apply delay must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTable, strings.Join(errs, "; "))
	}
	return nil
}

// ID returns the instance identifier.
func (t *Table) ID() string { return t.id }

// Key returns the storage key.
func (t *Table) Key() string { return t.key }

// Attribute returns the attribute set on the target.
func (t *Table) Attribute() Attribute { return t.attribute }

// Len returns the number of values.
func (t *Table) Len() int { return len(t.values) }

// Value returns the value at index i. The caller must keep i in range.
func (t *Table) Value(i int) int32 { return t.values[i] }

// Values returns a copy of the value list.
func (t *Table) Values() []int32 {
	out := make([]int32, len(t.values))
	copy(out, t.values)
	return out
}

// SaveDelay returns the debounce delay for saves.
func (t *Table) SaveDelay() time.Duration { return t.saveDelay }

// ApplyDelay returns the delay between a restore and re-applying the value.
func (t *Table) ApplyDelay() time.Duration { return t.applyDelay }

// Persist reports whether the index is saved and restored.
func (t *Table) Persist() bool { return t.persist }

// Step returns the index reached by moving step positions from index,
// wrapping in both directions. The result is always in [0, Len()).
//
// Go's % truncates toward zero, so the remainder is normalised explicitly.
// The sum is computed in int64 so extreme steps cannot overflow.
func (t *Table) Step(index int, step int32) int {
	n := int64(len(t.values))
	next := (int64(index) + int64(step)) % n
	if next < 0 {
		next += n
	}
	return int(next)
}
