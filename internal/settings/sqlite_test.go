package settings

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/nerrad567/attrcycle/internal/infrastructure/database"
	_ "github.com/nerrad567/attrcycle/migrations"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "settings.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLiteStore(db.DB)
}

func TestSQLiteStore(t *testing.T) {
	exerciseStore(t, openTestStore(t))
}

func TestSQLiteStore_Delete(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, "attr_cycle/a", []byte{1}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Delete(ctx, "attr_cycle/a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Delete(ctx, "attr_cycle/a"); err != nil {
		t.Fatalf("Delete() of missing key error = %v", err)
	}

	var got []loaded
	if err := store.Load(ctx, "attr_cycle", collect(&got)); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Load() after delete = %+v, want none", got)
	}
}

func TestSQLiteStore_EmptyRecord(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, "attr_cycle/empty", nil); err != nil {
		t.Fatalf("Save(nil) error = %v", err)
	}

	var got []loaded
	if err := store.Load(ctx, "attr_cycle", collect(&got)); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 1 || got[0].length != 0 {
		t.Errorf("Load() = %+v, want one empty record", got)
	}
}

func TestSQLiteStore_ClosedDatabase(t *testing.T) {
	store := openTestStore(t)
	if err := store.db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	ctx := context.Background()

	if err := store.Save(ctx, "attr_cycle/a", []byte{1}); !errors.Is(err, ErrSaveFailed) {
		t.Errorf("Save() error = %v, want ErrSaveFailed", err)
	}
	if err := store.Load(ctx, "attr_cycle", collect(new([]loaded))); !errors.Is(err, ErrLoadFailed) {
		t.Errorf("Load() error = %v, want ErrLoadFailed", err)
	}
	if err := store.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck() on closed database returned nil")
	}
}
