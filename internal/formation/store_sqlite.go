package formation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/p-n-ai/pai-planner/internal/platform/apperr"
)

// SQLiteStore is a Store over database/sql for the offline CLI. Timestamps
// are stored as RFC 3339 text.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a store over a database opened with database.OpenSQLite.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) GetActive(ctx context.Context, examID, userID string) (*Record, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rec := &Record{}
	var payload, createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, exam_id, user_id, version, source_hash, status, payload, created_at, updated_at
		 FROM auto_formations
		 WHERE exam_id = ? AND user_id = ?
		 LIMIT 1`,
		examID, userID,
	).Scan(&rec.ID, &rec.ExamID, &rec.UserID, &rec.Version, &rec.SourceHash, &rec.Status, &payload, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("formation %s/%s: %w", examID, userID, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: get formation: %v", apperr.ErrUpstreamUnavailable, err)
	}
	if err := json.Unmarshal([]byte(payload), &rec.Payload); err != nil {
		return nil, fmt.Errorf("decode formation payload: %w", err)
	}
	rec.CreatedAt = parseStamp(createdAt)
	rec.UpdatedAt = parseStamp(updatedAt)
	return rec, nil
}

func (s *SQLiteStore) SaveNewVersion(ctx context.Context, rec Record) (*Record, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal formation payload: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	var row *sql.Row
	if rec.Version == 1 {
		row = s.db.QueryRowContext(ctx,
			`INSERT INTO auto_formations (id, exam_id, user_id, version, source_hash, status, payload, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (exam_id, user_id) DO NOTHING
			 RETURNING id, created_at, updated_at`,
			rec.ID, rec.ExamID, rec.UserID, rec.Version, rec.SourceHash, rec.Status, string(payload), now, now,
		)
	} else {
		row = s.db.QueryRowContext(ctx,
			`UPDATE auto_formations
			 SET version = ?, source_hash = ?, status = ?, payload = ?, updated_at = ?
			 WHERE exam_id = ? AND user_id = ? AND version = ?
			 RETURNING id, created_at, updated_at`,
			rec.Version, rec.SourceHash, rec.Status, string(payload), now, rec.ExamID, rec.UserID, rec.Version-1,
		)
	}

	saved := rec
	var createdAt, updatedAt string
	if err := row.Scan(&saved.ID, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("save formation version %d: %w", rec.Version, apperr.ErrConflict)
		}
		return nil, fmt.Errorf("%w: save formation: %v", apperr.ErrUpstreamUnavailable, err)
	}
	saved.CreatedAt = parseStamp(createdAt)
	saved.UpdatedAt = parseStamp(updatedAt)
	return &saved, nil
}

func (s *SQLiteStore) AppendHistory(ctx context.Context, rec Record) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("marshal formation payload: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO auto_formation_versions (formation_id, version, source_hash, payload, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT DO NOTHING`,
		rec.ID, rec.Version, rec.SourceHash, string(payload), time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("%w: append formation history: %v", apperr.ErrUpstreamUnavailable, err)
	}
	return nil
}

func (s *SQLiteStore) History(ctx context.Context, examID, userID string) ([]Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT v.formation_id, v.version, v.source_hash, v.payload, v.created_at
		 FROM auto_formation_versions v
		 JOIN auto_formations f ON f.id = v.formation_id
		 WHERE f.exam_id = ? AND f.user_id = ?
		 ORDER BY v.version ASC`,
		examID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: query formation history: %v", apperr.ErrUpstreamUnavailable, err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var snap Snapshot
		var payload, createdAt string
		if err := rows.Scan(&snap.FormationID, &snap.Version, &snap.SourceHash, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan formation history: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &snap.Payload); err != nil {
			return nil, fmt.Errorf("decode formation history payload: %w", err)
		}
		snap.CreatedAt = parseStamp(createdAt)
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate formation history: %w", err)
	}
	return out, nil
}

func parseStamp(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
