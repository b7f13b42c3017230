package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/attrcycle/internal/infrastructure/database"
	_ "github.com/nerrad567/attrcycle/migrations"
)

func openTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "history.db"),
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
	return NewSQLiteRepository(db.DB)
}

func seed(t *testing.T, repo *SQLiteRepository, entries ...Entry) {
	t.Helper()
	for i := range entries {
		if err := repo.Create(context.Background(), &entries[i]); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
}

func TestCreate_GeneratesIDAndTime(t *testing.T) {
	repo := openTestRepo(t)

	e := Entry{Cycler: "hall", Kind: "trigger", Index: 1, Value: 50}
	if err := repo.Create(context.Background(), &e); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(e.ID) != len("evt-")+8 {
		t.Errorf("ID = %q, want evt- plus 8 characters", e.ID)
	}
	if e.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestList_FiltersAndOrder(t *testing.T) {
	repo := openTestRepo(t)
	base := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

	seed(t, repo,
		Entry{Cycler: "hall", Kind: "trigger", Index: 1, CreatedAt: base},
		Entry{Cycler: "hall", Kind: "saved", Index: 1, CreatedAt: base.Add(time.Second)},
		Entry{Cycler: "fan", Kind: "trigger", Index: 2, CreatedAt: base.Add(2 * time.Second)},
		Entry{Cycler: "hall", Kind: "save_failed", Index: 1, Error: "disk full", CreatedAt: base.Add(3 * time.Second)},
	)

	tests := []struct {
		name      string
		filter    Filter
		wantTotal int
		wantKinds []string
	}{
		{"all", Filter{}, 4, []string{"save_failed", "trigger", "saved", "trigger"}},
		{"by cycler", Filter{Cycler: "hall"}, 3, []string{"save_failed", "saved", "trigger"}},
		{"by kind", Filter{Kind: "trigger"}, 2, []string{"trigger", "trigger"}},
		{"both", Filter{Cycler: "fan", Kind: "trigger"}, 1, []string{"trigger"}},
		{"page", Filter{Cycler: "hall", Limit: 1, Offset: 1}, 3, []string{"saved"}},
		{"no match", Filter{Cycler: "attic"}, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := repo.List(context.Background(), tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if res.Total != tt.wantTotal {
				t.Errorf("Total = %d, want %d", res.Total, tt.wantTotal)
			}
			if len(res.Events) != len(tt.wantKinds) {
				t.Fatalf("got %d events, want %d", len(res.Events), len(tt.wantKinds))
			}
			for i, kind := range tt.wantKinds {
				if res.Events[i].Kind != kind {
					t.Errorf("Events[%d].Kind = %q, want %q", i, res.Events[i].Kind, kind)
				}
			}
		})
	}

	res, err := repo.List(context.Background(), Filter{Kind: "save_failed"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if got := res.Events[0]; got.Error != "disk full" || !got.CreatedAt.Equal(base.Add(3*time.Second)) {
		t.Errorf("event = %+v", got)
	}
}

func TestList_ClampsLimit(t *testing.T) {
	repo := openTestRepo(t)

	res, err := repo.List(context.Background(), Filter{Limit: 10_000, Offset: -5})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Limit != maxLimit || res.Offset != 0 {
		t.Errorf("Limit, Offset = %d, %d; want %d, 0", res.Limit, res.Offset, maxLimit)
	}
	if res.Events == nil {
		t.Error("Events is nil, want empty slice")
	}

	res, _ = repo.List(context.Background(), Filter{})
	if res.Limit != defaultLimit {
		t.Errorf("default Limit = %d, want %d", res.Limit, defaultLimit)
	}
}

func TestPrune(t *testing.T) {
	repo := openTestRepo(t)
	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	seed(t, repo,
		Entry{Cycler: "hall", Kind: "trigger", CreatedAt: base},
		Entry{Cycler: "hall", Kind: "trigger", CreatedAt: base.Add(48 * time.Hour)},
	)

	n, err := repo.Prune(context.Background(), base.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Prune() removed %d, want 1", n)
	}

	res, _ := repo.List(context.Background(), Filter{})
	if res.Total != 1 {
		t.Errorf("Total after prune = %d, want 1", res.Total)
	}
}
