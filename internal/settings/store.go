package settings

import (
	"context"
	"fmt"
	"strings"
)

// Backend names accepted in configuration.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Handler receives one stored record during Load.
//
// suffix is the key with "prefix/" removed, length the stored size, and
// read copies the record into p, returning the number of bytes copied.
type Handler = func(suffix string, length int, read func(p []byte) (int, error)) error

// Store is a key-addressed record store.
type Store interface {
	// Save writes data under key, replacing any previous record.
	Save(ctx context.Context, key string, data []byte) error

	// Load calls handler once for every record whose key starts with prefix + "/".
	// Handler errors are logged and do not stop the scan.
	Load(ctx context.Context, prefix string, handler Handler) error

	// HealthCheck verifies the backend is reachable.
	HealthCheck(ctx context.Context) error
}

// Logger is the logging interface used by stores.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// ValidateBackend checks that name is a known backend.
func ValidateBackend(name string) error {
	switch name {
	case BackendSQLite, BackendRedis, BackendMemory:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
}

func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.HasSuffix(key, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

func validatePrefix(prefix string) error {
	if prefix == "" || strings.HasSuffix(prefix, "/") {
		return fmt.Errorf("%w: prefix %q", ErrInvalidKey, prefix)
	}
	return nil
}

// record is a loaded key/value pair.
type record struct {
	key  string
	data []byte
}

// dispatch hands loaded records to handler, logging handler errors.
// Records are fully loaded first so handlers may call Save.
func dispatch(logger Logger, prefix string, records []record, handler Handler) {
	for _, rec := range records {
		suffix := strings.TrimPrefix(rec.key, prefix+"/")
		data := rec.data
		read := func(p []byte) (int, error) {
			return copy(p, data), nil
		}
		if err := handler(suffix, len(data), read); err != nil {
			logger.Warn("settings handler rejected record",
				"key", rec.key,
				"error", err,
			)
		}
	}
}
