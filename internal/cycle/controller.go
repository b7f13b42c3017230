package cycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// saveTimeout bounds a single write to the settings store.
const saveTimeout = 5 * time.Second

// Logger defines the logging interface used by controllers and the registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Target is the device whose attribute a controller sets.
//
// A controller may have no target at all; a nil Target behaves like one
// that is never ready.
type Target interface {
	IsReady() bool
	SetAttribute(attr Attribute, value int32) error
}

// Saver persists a controller's state record under its key.
type Saver interface {
	Save(ctx context.Context, key string, data []byte) error
}

// Options holds the collaborators of a Controller. All fields are optional.
type Options struct {
	// Target receives attribute writes. Nil means no device is attached.
	Target Target

	// Saver stores the state record. Required for persistence to take effect.
	Saver Saver

	// Clock drives the save and apply timers. Defaults to the real clock.
	Clock clockwork.Clock

	// Logger defaults to a no-op logger.
	Logger Logger

	// Observer receives cycle events. Defaults to none.
	Observer Observer
}

// Controller cycles the active index of one Table.
//
// All methods are safe for concurrent use. Triggers, restores and the
// deferred save/apply callbacks are serialised per controller.
type Controller struct {
	table    *Table
	target   Target
	saver    Saver
	logger   Logger
	observer Observer

	mu       sync.Mutex
	state    State
	save     *slot
	apply    *slot
	restored bool
	closed   bool
	saveSeq  uint64 // records captured for writing; guarded by mu

	// writeMu orders store writes and is never acquired with mu held.
	writeMu    sync.Mutex
	writtenSeq uint64
}

// NewController creates a controller for table starting at index 0.
func NewController(table *Table, opts Options) *Controller {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	observer := opts.Observer
	if observer == nil {
		observer = noopObserver{}
	}

	c := &Controller{
		table:    table,
		target:   opts.Target,
		saver:    opts.Saver,
		logger:   logger,
		observer: observer,
	}
	c.save = newSlot(&c.mu, clock)
	c.apply = newSlot(&c.mu, clock)
	return c
}

// Table returns the controller's value table.
func (c *Controller) Table() *Table {
	return c.table
}

// Trigger moves the active index by step, wrapping in both directions,
// pushes the new value to the target when it is ready, and schedules a
// debounced save when persistence is enabled.
//
// Trigger never fails: an unready target or a later save failure leaves
// the in-memory index correct.
func (c *Controller) Trigger(step int32) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Index = c.table.Step(c.state.Index, step)
	c.logger.Debug("cycle triggered",
		"cycler", c.table.ID(),
		"step", step,
		"index", c.state.Index,
		"value", c.table.Value(c.state.Index),
	)
	c.emit(EventTrigger, nil)

	c.applyLocked()

	if c.table.Persist() && !c.closed {
		c.save.schedule(c.table.SaveDelay(), c.saveLocked)
	}

	return c.snapshotLocked()
}

// Restore loads a previously saved record.
//
// A record of the wrong size or with an index beyond the table resets the
// index to 0 and schedules nothing; the returned error says why. A valid
// record becomes the active index and the value is pushed to the target
// once, after the table's apply delay.
//
// Restore is a no-op for tables without persistence and may succeed at most
// once per controller.
func (c *Controller) Restore(raw []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.table.Persist() {
		c.logger.Debug("persistence disabled, ignoring stored state", "cycler", c.table.ID())
		return nil
	}
	if c.restored {
		return fmt.Errorf("%w: %s", ErrAlreadyRestored, c.table.ID())
	}
	c.restored = true

	s, err := decodeState(raw, c.table.Len())
	if err != nil {
		c.state.Index = 0
		c.logger.Warn("discarding stored state",
			"cycler", c.table.ID(),
			"error", err,
		)
		c.emit(EventRestoreReset, err)
		return err
	}

	c.state = s
	c.logger.Info("state restored",
		"cycler", c.table.ID(),
		"index", s.Index,
		"apply_delay", c.table.ApplyDelay(),
	)
	c.emit(EventRestored, nil)

	if !c.closed {
		c.apply.schedule(c.table.ApplyDelay(), func() func() {
			c.applyLocked()
			return nil
		})
	}
	return nil
}

// Flush writes a pending save immediately. It does nothing when no save is
// pending. Used on shutdown so the last trigger is not lost.
func (c *Controller) Flush(ctx context.Context) error {
	c.mu.Lock()
	if !c.save.pending() {
		c.mu.Unlock()
		return nil
	}
	c.save.stop()
	rec := c.captureLocked()
	c.mu.Unlock()

	return c.write(ctx, rec)
}

// Close releases pending save and apply callbacks.
// The controller keeps answering Trigger and Snapshot afterwards but
// schedules nothing new.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	c.save.stop()
	c.apply.stop()
}

// Snapshot returns the controller's current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// applyLocked pushes the active value to the target if it is ready.
func (c *Controller) applyLocked() {
	if c.target == nil || !c.target.IsReady() {
		c.logger.Debug("sensor device not present or not ready, skipping attribute set",
			"cycler", c.table.ID(),
		)
		c.emit(EventSkipped, ErrTargetUnready)
		return
	}

	value := c.table.Value(c.state.Index)
	if err := c.target.SetAttribute(c.table.Attribute(), value); err != nil {
		c.logger.Warn("setting attribute failed",
			"cycler", c.table.ID(),
			"attribute", c.table.Attribute(),
			"value", value,
			"error", err,
		)
		c.emit(EventApplyFailed, err)
		return
	}
	c.emit(EventApplied, nil)
}

// saveLocked is the debounced save callback. It captures the record under
// the lock; the store write runs after the lock is released so triggers
// never wait on storage.
func (c *Controller) saveLocked() func() {
	rec := c.captureLocked()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()

		//nolint:errcheck // Failure is logged and observed in write
		c.write(ctx, rec)
	}
}

// pendingRecord is a state record captured for writing.
type pendingRecord struct {
	seq   uint64
	state State
}

func (c *Controller) captureLocked() pendingRecord {
	c.saveSeq++
	return pendingRecord{seq: c.saveSeq, state: c.state}
}

// write stores rec. Writes are serialised per controller; a record older
// than one already written is skipped so a slow write cannot overwrite a
// newer index.
func (c *Controller) write(ctx context.Context, rec pendingRecord) error {
	if c.saver == nil {
		return nil
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if rec.seq <= c.writtenSeq {
		return nil
	}
	c.writtenSeq = rec.seq

	data, err := rec.state.MarshalBinary()
	if err == nil {
		err = c.saver.Save(ctx, c.table.Key(), data)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.logger.Error("failed to save settings",
			"cycler", c.table.ID(),
			"key", c.table.Key(),
			"error", err,
		)
		c.emitIndex(EventSaveFailed, rec.state.Index, err)
		return fmt.Errorf("saving %s: %w", c.table.Key(), err)
	}

	c.logger.Debug("state saved", "cycler", c.table.ID(), "index", rec.state.Index)
	c.emitIndex(EventSaved, rec.state.Index, nil)
	return nil
}

func (c *Controller) emit(kind EventKind, err error) {
	c.emitIndex(kind, c.state.Index, err)
}

// emitIndex reports an event about index, which for saves may differ from
// the active index. Callers hold mu.
func (c *Controller) emitIndex(kind EventKind, index int, err error) {
	c.observer.ObserveCycle(Event{
		ID:    c.table.ID(),
		Kind:  kind,
		Index: index,
		Value: c.table.Value(index),
		Err:   err,
	})
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		ID:           c.table.ID(),
		Key:          c.table.Key(),
		Attribute:    c.table.Attribute(),
		Index:        c.state.Index,
		Value:        c.table.Value(c.state.Index),
		Length:       c.table.Len(),
		Persist:      c.table.Persist(),
		SavePending:  c.save.pending(),
		ApplyPending: c.apply.pending(),
		Restored:     c.restored,
	}
}

// Snapshot is a point-in-time view of a controller.
type Snapshot struct {
	ID           string    `json:"id"`
	Key          string    `json:"key"`
	Attribute    Attribute `json:"attribute"`
	Index        int       `json:"index"`
	Value        int32     `json:"value"`
	Length       int       `json:"length"`
	Persist      bool      `json:"persist"`
	SavePending  bool      `json:"save_pending"`
	ApplyPending bool      `json:"apply_pending"`
	Restored     bool      `json:"restored"`
}

// IsResetError reports whether err is one of the reasons Restore discards a record.
func IsResetError(err error) bool {
	return errors.Is(err, ErrMalformedRecord) || errors.Is(err, ErrIndexOutOfRange)
}
