package settings

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	goredis "github.com/redis/go-redis/v9"
)

// scanBatch is the COUNT hint passed to SCAN.
const scanBatch = 100

// RedisStore keeps records as plain Redis string keys.
//
// Thread Safety: All methods are safe for concurrent use.
type RedisStore struct {
	rdb    goredis.UniversalClient
	logger Logger
}

// NewRedisStore creates a store backed by rdb. The caller owns rdb.
func NewRedisStore(rdb goredis.UniversalClient) *RedisStore {
	return &RedisStore{rdb: rdb, logger: noopLogger{}}
}

// SetLogger sets the logger for handler errors.
func (s *RedisStore) SetLogger(logger Logger) {
	s.logger = logger
}

// Save implements Store.
func (s *RedisStore) Save(ctx context.Context, key string, data []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSaveFailed, key, err)
	}
	return nil
}

// Load implements Store. Records are delivered in key order.
func (s *RedisStore) Load(ctx context.Context, prefix string, handler Handler) error {
	if err := validatePrefix(prefix); err != nil {
		return err
	}

	var keys []string
	iter := s.rdb.Scan(ctx, 0, escapeGlob(prefix)+"/*", scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("%w: scanning %s: %w", ErrLoadFailed, prefix, err)
	}
	sort.Strings(keys)

	records := make([]record, 0, len(keys))
	for _, key := range keys {
		data, err := s.rdb.Get(ctx, key).Bytes()
		if errors.Is(err, goredis.Nil) {
			// Deleted between SCAN and GET.
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: reading %s: %w", ErrLoadFailed, key, err)
		}
		records = append(records, record{key: key, data: data})
	}

	s.logger.Debug("settings loaded", "prefix", prefix, "records", len(records))
	dispatch(s.logger, prefix, records, handler)
	return nil
}

// HealthCheck implements Store.
func (s *RedisStore) HealthCheck(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis settings health check: %w", err)
	}
	return nil
}

// escapeGlob escapes Redis glob metacharacters in s.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
