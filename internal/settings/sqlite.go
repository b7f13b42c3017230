package settings

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLiteStore keeps records in the cycle_settings table.
//
// The table is created by the embedded migrations; see the migrations
// directory at the repository root.
//
// Thread Safety: All methods are safe for concurrent use.
type SQLiteStore struct {
	db     *sql.DB
	logger Logger
}

// NewSQLiteStore creates a store backed by db.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, logger: noopLogger{}}
}

// SetLogger sets the logger for handler errors.
func (s *SQLiteStore) SetLogger(logger Logger) {
	s.logger = logger
}

// Save implements Store using an upsert.
func (s *SQLiteStore) Save(ctx context.Context, key string, data []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if data == nil {
		data = []byte{}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cycle_settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, data, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSaveFailed, key, err)
	}
	return nil
}

// Load implements Store. Records are delivered in key order.
//
// Keys under prefix are selected with a range scan: every key starting
// with "prefix/" sorts between "prefix/" and "prefix0" ('0' follows '/').
func (s *SQLiteStore) Load(ctx context.Context, prefix string, handler Handler) error {
	if err := validatePrefix(prefix); err != nil {
		return err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT key, value FROM cycle_settings
		WHERE key >= ? AND key < ?
		ORDER BY key
	`, prefix+"/", prefix+"0")
	if err != nil {
		return fmt.Errorf("%w: querying %s: %w", ErrLoadFailed, prefix, err)
	}
	defer rows.Close()

	var records []record
	for rows.Next() {
		var rec record
		if err := rows.Scan(&rec.key, &rec.data); err != nil {
			return fmt.Errorf("%w: scanning row: %w", ErrLoadFailed, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: iterating rows: %w", ErrLoadFailed, err)
	}

	// Release the connection before handlers run; they may call Save.
	rows.Close()

	s.logger.Debug("settings loaded", "prefix", prefix, "records", len(records))
	dispatch(s.logger, prefix, records, handler)
	return nil
}

// HealthCheck implements Store.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite settings health check: %w", err)
	}
	return nil
}

// Delete removes the record stored under key. Missing keys are not an error.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM cycle_settings WHERE key = ?", key); err != nil {
		return fmt.Errorf("%w: deleting %s: %w", ErrSaveFailed, key, err)
	}
	return nil
}
