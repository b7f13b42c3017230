package cycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// DefaultPrefix is the storage key prefix shared by all controllers.
const DefaultPrefix = "attr_cycle"

// maxRecordRead caps how much of a stored record is read during restore.
// Anything longer than recordSize is malformed anyway.
const maxRecordRead = 16

// Loader enumerates stored records under a key prefix at startup.
// It calls handler once per record with the key suffix after "prefix/".
type Loader interface {
	Load(ctx context.Context, prefix string, handler func(suffix string, length int, read func(p []byte) (int, error)) error) error
}

// Registry maps instance IDs to controllers and routes stored records to
// the controller they belong to.
//
// All public methods are thread-safe.
type Registry struct {
	prefix string

	mu    sync.RWMutex
	byID  map[string]*Controller
	keys  map[string]string // storage key -> id
	order []string

	logger Logger
}

// NewRegistry creates an empty registry using prefix for storage keys.
// An empty prefix selects DefaultPrefix.
func NewRegistry(prefix string) *Registry {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Registry{
		prefix: prefix,
		byID:   make(map[string]*Controller),
		keys:   make(map[string]string),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Prefix returns the storage key prefix.
func (r *Registry) Prefix() string {
	return r.prefix
}

// KeyFor returns the storage key of the instance with the given ID.
func (r *Registry) KeyFor(id string) string {
	return r.prefix + "/" + id
}

// Register adds a controller. IDs and storage keys must be unique.
func (r *Registry) Register(c *Controller) error {
	id := c.Table().ID()
	key := c.Table().Key()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[id]; exists {
		return fmt.Errorf("%w: id %q", ErrDuplicateKey, id)
	}
	if other, exists := r.keys[key]; exists {
		return fmt.Errorf("%w: key %q used by %q", ErrDuplicateKey, key, other)
	}

	r.byID[id] = c
	r.keys[key] = id
	r.order = append(r.order, id)
	return nil
}

// Get returns the controller with the given ID.
func (r *Registry) Get(id string) (*Controller, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	return c, ok
}

// List returns all controllers in registration order.
func (r *Registry) List() []*Controller {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Controller, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Count returns the number of registered controllers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Restore loads every stored record under the registry prefix and hands it
// to its controller. Individual bad records are logged, not fatal.
func (r *Registry) Restore(ctx context.Context, loader Loader) error {
	if err := loader.Load(ctx, r.prefix, r.HandleRecord); err != nil {
		return fmt.Errorf("loading %s settings: %w", r.prefix, err)
	}
	return nil
}

// HandleRecord restores one stored record. suffix is the key with the
// prefix removed and identifies the instance; length is the stored size
// and read copies the record into p.
func (r *Registry) HandleRecord(suffix string, length int, read func(p []byte) (int, error)) error {
	r.mu.RLock()
	c, ok := r.lookupSuffix(suffix)
	r.mu.RUnlock()

	if !ok {
		r.logger.Debug("ignoring stored state for unknown instance", "suffix", suffix)
		return fmt.Errorf("%w: %q", ErrUnknownInstance, suffix)
	}
	if !c.Table().Persist() {
		return nil
	}

	size := min(max(length, 0), maxRecordRead)
	buf := make([]byte, size)
	n, err := read(buf)
	if err != nil {
		r.logger.Error("failed to load settings", "suffix", suffix, "error", err)
		//nolint:errcheck // A nil record always resets; the read error is what matters
		c.Restore(nil)
		return fmt.Errorf("reading %s/%s: %w", r.prefix, suffix, err)
	}

	raw := buf[:n]
	if n != length {
		// A short read or an oversized record never decodes.
		raw = nil
	}
	if err := c.Restore(raw); err != nil && !IsResetError(err) {
		return err
	}
	return nil
}

// lookupSuffix finds the controller whose storage key is prefix/suffix.
// Callers must hold r.mu.
func (r *Registry) lookupSuffix(suffix string) (*Controller, bool) {
	id, ok := r.keys[r.KeyFor(suffix)]
	if !ok {
		return nil, false
	}
	c, ok := r.byID[id]
	return c, ok
}

// Flush writes all pending saves immediately.
func (r *Registry) Flush(ctx context.Context) error {
	var errs []error
	for _, c := range r.List() {
		if err := c.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close releases the pending callbacks of every controller.
func (r *Registry) Close() {
	for _, c := range r.List() {
		c.Close()
	}
}
