package main

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/attrcycle/internal/cycle"
	"github.com/nerrad567/attrcycle/internal/history"
	"github.com/nerrad567/attrcycle/internal/infrastructure/config"
	"github.com/nerrad567/attrcycle/internal/infrastructure/logging"
	"github.com/nerrad567/attrcycle/internal/settings"
	"github.com/nerrad567/attrcycle/internal/target"
)

func testLogger() *logging.Logger {
	return logging.NewWithWriter(config.LoggingConfig{Level: "error", Format: "json"}, "test", io.Discard)
}

type failingPool struct{ calls int }

func (p *failingPool) Get(string) (*target.Device, error) {
	p.calls++
	return nil, errors.New("broker offline")
}

func testConfig() *config.Config {
	return &config.Config{
		Settings: config.SettingsConfig{Backend: settings.BackendMemory, Prefix: "attr_cycle"},
		Cyclers: []config.CyclerConfig{
			{ID: "hall", Device: "hall-light", Attribute: "brightness", Values: []int32{10, 50, 100}, SaveDelayMS: 10, Persistent: true},
			{ID: "fan", Attribute: "speed", Values: []int32{1, 2, 3}},
		},
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("ATTRCYCLE_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

func TestBuildRegistry(t *testing.T) {
	pool := &failingPool{}
	reg, err := buildRegistry(testConfig(), settings.NewMemoryStore(), pool, testLogger(), nil)
	if err != nil {
		t.Fatalf("buildRegistry() error = %v", err)
	}
	t.Cleanup(reg.Close)

	if reg.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", reg.Count())
	}
	if pool.calls != 1 {
		t.Errorf("pool.Get called %d times, want 1 (fan has no device)", pool.calls)
	}

	hall, ok := reg.Get("hall")
	if !ok {
		t.Fatal("hall not registered")
	}
	if hall.Table().Key() != "attr_cycle/hall" {
		t.Errorf("Key() = %q, want attr_cycle/hall", hall.Table().Key())
	}

	// Without a target the trigger still moves the index.
	if snap := hall.Trigger(cycle.StepNext); snap.Value != 50 {
		t.Errorf("Trigger().Value = %d, want 50", snap.Value)
	}
}

func TestBuildRegistry_PersistsThroughStore(t *testing.T) {
	store := settings.NewMemoryStore()
	reg, err := buildRegistry(testConfig(), store, nil, testLogger(), nil)
	if err != nil {
		t.Fatalf("buildRegistry() error = %v", err)
	}
	t.Cleanup(reg.Close)

	hall, _ := reg.Get("hall")
	hall.Trigger(cycle.StepPrevious)
	if err := reg.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	data, ok := store.Get("attr_cycle/hall")
	if !ok || len(data) != 1 || data[0] != 2 {
		t.Fatalf("stored record = %v (ok=%v), want [2]", data, ok)
	}

	// A second service instance picks the index back up.
	reg2, err := buildRegistry(testConfig(), store, nil, testLogger(), nil)
	if err != nil {
		t.Fatalf("buildRegistry() error = %v", err)
	}
	t.Cleanup(reg2.Close)
	if err := reg2.Restore(context.Background(), store); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	hall2, _ := reg2.Get("hall")
	if snap := hall2.Snapshot(); snap.Index != 2 || !snap.Restored {
		t.Errorf("restored snapshot = %+v, want index 2 restored", snap)
	}
}

func TestBuildRegistry_InvalidCycler(t *testing.T) {
	cfg := testConfig()
	cfg.Cyclers = append(cfg.Cyclers, config.CyclerConfig{ID: "hall", Attribute: "x", Values: []int32{1}})

	if _, err := buildRegistry(cfg, settings.NewMemoryStore(), nil, testLogger(), nil); !errors.Is(err, cycle.ErrDuplicateKey) {
		t.Errorf("buildRegistry() error = %v, want ErrDuplicateKey", err)
	}

	cfg = testConfig()
	cfg.Cyclers[0].Values = nil
	if _, err := buildRegistry(cfg, settings.NewMemoryStore(), nil, testLogger(), nil); err == nil {
		t.Error("buildRegistry() with empty values should fail")
	}
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		store, closeFn, err := openStore(ctx, testConfig(), nil, testLogger())
		if err != nil {
			t.Fatalf("openStore() error = %v", err)
		}
		defer closeFn()
		if _, ok := store.(*settings.MemoryStore); !ok {
			t.Errorf("store = %T, want *settings.MemoryStore", store)
		}
	})

	t.Run("sqlite", func(t *testing.T) {
		cfg := testConfig()
		cfg.Settings.Backend = settings.BackendSQLite
		cfg.Database = config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "state.db"), WALMode: true, BusyTimeout: 5}

		db, err := openDatabase(ctx, cfg.Database)
		if err != nil {
			t.Fatalf("openDatabase() error = %v", err)
		}
		defer db.Close()

		store, closeFn, err := openStore(ctx, cfg, db, testLogger())
		if err != nil {
			t.Fatalf("openStore() error = %v", err)
		}
		defer closeFn()

		if err := store.Save(ctx, "attr_cycle/hall", []byte{1}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if err := store.HealthCheck(ctx); err != nil {
			t.Errorf("HealthCheck() error = %v", err)
		}
	})

	t.Run("sqlite without database", func(t *testing.T) {
		cfg := testConfig()
		cfg.Settings.Backend = settings.BackendSQLite
		_, closeFn, err := openStore(ctx, cfg, nil, testLogger())
		closeFn()
		if err == nil {
			t.Error("openStore() without a database should fail")
		}
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := testConfig()
		cfg.Settings.Backend = "etcd"
		_, closeFn, err := openStore(ctx, cfg, nil, testLogger())
		closeFn()
		if !errors.Is(err, settings.ErrUnknownBackend) {
			t.Errorf("openStore() error = %v, want ErrUnknownBackend", err)
		}
	})
}

func TestEventRecorder_NoSinks(t *testing.T) {
	r := newEventRecorder(testLogger(), nil, nil)
	if r.history != nil {
		t.Fatal("history observer set without a recorder")
	}
	r.ObserveCycle(cycle.Event{ID: "hall", Kind: cycle.EventSaveFailed, Err: errors.New("disk full")})
	r.ObserveCycle(cycle.Event{ID: "hall", Kind: cycle.EventApplied, Value: 10})
}

func TestEventRecorder_History(t *testing.T) {
	ctx := context.Background()
	db, err := openDatabase(ctx, config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "events.db"), BusyTimeout: 5})
	if err != nil {
		t.Fatalf("openDatabase() error = %v", err)
	}
	defer db.Close()

	repo := history.NewSQLiteRepository(db.DB)
	rec := history.NewRecorder(repo, 16, nil)
	rec.Start()

	reg, err := buildRegistry(testConfig(), settings.NewMemoryStore(), nil, testLogger(), newEventRecorder(testLogger(), nil, rec))
	if err != nil {
		t.Fatalf("buildRegistry() error = %v", err)
	}
	fan, _ := reg.Get("fan")
	fan.Trigger(cycle.StepNext)
	reg.Close()
	rec.Close()

	res, err := repo.List(ctx, history.Filter{Cycler: "fan"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	// fan has no device: one trigger and one skipped apply.
	if res.Total != 2 {
		t.Fatalf("Total = %d, want 2: %+v", res.Total, res.Events)
	}
	kinds := map[string]bool{}
	for _, e := range res.Events {
		kinds[e.Kind] = true
	}
	if !kinds[string(cycle.EventTrigger)] || !kinds[string(cycle.EventSkipped)] {
		t.Errorf("kinds = %v, want trigger and skipped", kinds)
	}

	if historyLister(nil) != nil {
		t.Error("historyLister(nil) should be a nil interface")
	}
}

func TestPruneHistory(t *testing.T) {
	ctx := context.Background()
	db, err := openDatabase(ctx, config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "prune.db"), BusyTimeout: 5})
	if err != nil {
		t.Fatalf("openDatabase() error = %v", err)
	}
	defer db.Close()

	repo := history.NewSQLiteRepository(db.DB)
	old := history.Entry{Cycler: "hall", Kind: "trigger", CreatedAt: time.Now().AddDate(0, 0, -40)}
	fresh := history.Entry{Cycler: "hall", Kind: "trigger"}
	for _, e := range []*history.Entry{&old, &fresh} {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	pruneHistory(ctx, repo, 0, testLogger())
	if res, _ := repo.List(ctx, history.Filter{}); res.Total != 2 {
		t.Errorf("retention 0 removed events: total = %d", res.Total)
	}

	pruneHistory(ctx, repo, 30, testLogger())
	if res, _ := repo.List(ctx, history.Filter{}); res.Total != 1 {
		t.Errorf("total after prune = %d, want 1", res.Total)
	}
}
