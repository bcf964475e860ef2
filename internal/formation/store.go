package formation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/p-n-ai/pai-planner/internal/platform/apperr"
)

// Store persists the active formation per (exam, user) and its version history.
type Store interface {
	// GetActive returns the active record, or an error wrapping apperr.ErrNotFound.
	GetActive(ctx context.Context, examID, userID string) (*Record, error)
	// SaveNewVersion replaces the active record. The save succeeds only when
	// rec.Version is one past the stored version (or 1 with nothing stored);
	// otherwise it returns an error wrapping apperr.ErrConflict.
	SaveNewVersion(ctx context.Context, rec Record) (*Record, error)
	// AppendHistory stores an immutable snapshot of rec. Re-appending a version is a no-op.
	AppendHistory(ctx context.Context, rec Record) error
	// History returns snapshots in ascending version order.
	History(ctx context.Context, examID, userID string) ([]Snapshot, error)
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	active  map[string]Record
	history map[string][]Snapshot
	mu      sync.RWMutex
}

// NewMemoryStore creates a new in-memory formation store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		active:  make(map[string]Record),
		history: make(map[string][]Snapshot),
	}
}

func storeKey(examID, userID string) string {
	return examID + "\x00" + userID
}

func (s *MemoryStore) GetActive(_ context.Context, examID, userID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.active[storeKey(examID, userID)]
	if !ok {
		return nil, fmt.Errorf("formation %s/%s: %w", examID, userID, apperr.ErrNotFound)
	}
	return &rec, nil
}

func (s *MemoryStore) SaveNewVersion(_ context.Context, rec Record) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := storeKey(rec.ExamID, rec.UserID)
	now := time.Now().UTC()

	current, exists := s.active[key]
	switch {
	case !exists && rec.Version != 1:
		return nil, fmt.Errorf("save formation version %d: %w", rec.Version, apperr.ErrConflict)
	case exists && rec.Version != current.Version+1:
		return nil, fmt.Errorf("save formation version %d over %d: %w", rec.Version, current.Version, apperr.ErrConflict)
	}

	if exists {
		rec.ID = current.ID
		rec.CreatedAt = current.CreatedAt
	} else if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	s.active[key] = rec
	return &rec, nil
}

func (s *MemoryStore) AppendHistory(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := storeKey(rec.ExamID, rec.UserID)
	for _, snap := range s.history[key] {
		if snap.Version == rec.Version {
			return nil
		}
	}
	s.history[key] = append(s.history[key], Snapshot{
		FormationID: rec.ID,
		Version:     rec.Version,
		SourceHash:  rec.SourceHash,
		Payload:     rec.Payload,
		CreatedAt:   time.Now().UTC(),
	})
	return nil
}

func (s *MemoryStore) History(_ context.Context, examID, userID string) ([]Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]Snapshot{}, s.history[storeKey(examID, userID)]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}
