package formation_test

import (
	"errors"
	"testing"

	"github.com/p-n-ai/pai-planner/internal/formation"
	"github.com/p-n-ai/pai-planner/internal/platform/apperr"
	"github.com/p-n-ai/pai-planner/internal/platform/database"
	"github.com/p-n-ai/pai-planner/internal/platform/database/dbtest"
)

func TestMemoryStore(t *testing.T) {
	testStore(t, formation.NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	db, err := database.OpenSQLite(t.Context(), "file::memory:")
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := formation.NewSQLiteStore(db)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	testStore(t, store)
}

func TestPostgresStore(t *testing.T) {
	pool := dbtest.NewPool(t)

	store, err := formation.NewPostgresStore(pool)
	if err != nil {
		t.Fatalf("NewPostgresStore() error = %v", err)
	}
	testStore(t, store)
}

func TestPostgresEventLogger(t *testing.T) {
	pool := dbtest.NewPool(t)
	logger := formation.NewPostgresEventLogger(pool)

	err := logger.LogEvent(t.Context(), formation.Event{
		ExamID:     "E1",
		UserID:     "u1",
		EventType:  formation.EventGenerated,
		Version:    3,
		SourceHash: "abc",
		Data:       map[string]any{"drops": 12},
	})
	if err != nil {
		t.Fatalf("LogEvent() error = %v", err)
	}

	var (
		version int
		hash    string
		drops   int
	)
	if err := pool.QueryRow(t.Context(),
		`SELECT version, source_hash, (data->>'drops')::int FROM planner_events
		 WHERE exam_id = 'E1' AND user_id = 'u1' AND event_type = $1`, formation.EventGenerated,
	).Scan(&version, &hash, &drops); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if version != 3 || hash != "abc" || drops != 12 {
		t.Errorf("event = v%d %q drops %d, want v3 \"abc\" drops 12", version, hash, drops)
	}

	if err := logger.LogEvent(t.Context(), formation.Event{EventType: formation.EventGenerated}); err == nil {
		t.Error("LogEvent() without exam should fail")
	}
}

func TestMemoryEventLogger_RequiresType(t *testing.T) {
	if err := formation.NewMemoryEventLogger().LogEvent(t.Context(), formation.Event{}); err == nil {
		t.Error("LogEvent() without event type should fail")
	}
}

func testStore(t *testing.T, store formation.Store) {
	t.Helper()
	ctx := t.Context()

	if _, err := store.GetActive(ctx, "E1", "u1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("GetActive() on empty store error = %v, want ErrNotFound", err)
	}

	rec := formation.Record{
		ID:         "f-1",
		ExamID:     "E1",
		UserID:     "u1",
		Version:    1,
		SourceHash: "h1",
		Status:     formation.StatusActive,
		Payload: formation.Payload{
			ExamID:  "E1",
			UserID:  "u1",
			Version: 1,
			Drops:   []formation.Drop{{ID: "drop_000000000001", Discipline: "Math", Subtopic: "Fractions", Level: 3, Priority: 0.4, Origin: formation.Origin}},
		},
	}

	if _, err := store.SaveNewVersion(ctx, withVersion(rec, 2)); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("SaveNewVersion(v2) on empty store error = %v, want ErrConflict", err)
	}

	saved, err := store.SaveNewVersion(ctx, rec)
	if err != nil {
		t.Fatalf("SaveNewVersion(v1) error = %v", err)
	}
	if saved.ID != "f-1" || saved.CreatedAt.IsZero() {
		t.Errorf("saved = %+v, want id f-1 with CreatedAt", saved)
	}
	if err := store.AppendHistory(ctx, *saved); err != nil {
		t.Fatalf("AppendHistory(v1) error = %v", err)
	}
	if err := store.AppendHistory(ctx, *saved); err != nil {
		t.Fatalf("AppendHistory(v1) again error = %v", err)
	}

	if _, err := store.SaveNewVersion(ctx, rec); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("SaveNewVersion(v1) twice error = %v, want ErrConflict", err)
	}
	if _, err := store.SaveNewVersion(ctx, withVersion(rec, 3)); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("SaveNewVersion(v3) over v1 error = %v, want ErrConflict", err)
	}

	v2 := withVersion(rec, 2)
	v2.SourceHash = "h2"
	saved2, err := store.SaveNewVersion(ctx, v2)
	if err != nil {
		t.Fatalf("SaveNewVersion(v2) error = %v", err)
	}
	if err := store.AppendHistory(ctx, *saved2); err != nil {
		t.Fatalf("AppendHistory(v2) error = %v", err)
	}

	active, err := store.GetActive(ctx, "E1", "u1")
	if err != nil {
		t.Fatalf("GetActive() error = %v", err)
	}
	if active.Version != 2 || active.SourceHash != "h2" || active.ID != "f-1" {
		t.Errorf("active = v%d %s id %s, want v2 h2 f-1", active.Version, active.SourceHash, active.ID)
	}
	if len(active.Payload.Drops) != 1 || active.Payload.Drops[0].Priority != 0.4 {
		t.Errorf("payload drops = %+v", active.Payload.Drops)
	}

	history, err := store.History(ctx, "E1", "u1")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 || history[0].Version != 1 || history[1].SourceHash != "h2" {
		t.Errorf("history = %+v, want v1 then v2/h2", history)
	}

	other, err := store.History(ctx, "E1", "u2")
	if err != nil {
		t.Fatalf("History(u2) error = %v", err)
	}
	if len(other) != 0 {
		t.Errorf("History(u2) = %d entries, want 0", len(other))
	}
}

func withVersion(rec formation.Record, v int) formation.Record {
	rec.Version = v
	rec.Payload.Version = v
	return rec
}
