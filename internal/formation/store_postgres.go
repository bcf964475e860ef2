package formation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/p-n-ai/pai-planner/internal/platform/apperr"
)

const dbTimeout = 5 * time.Second

// PostgresStore is a PostgreSQL-backed Store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed formation store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) GetActive(ctx context.Context, examID, userID string) (*Record, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rec := &Record{}
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, exam_id, user_id, version, source_hash, status, payload, created_at, updated_at
		 FROM auto_formations
		 WHERE exam_id = $1 AND user_id = $2
		 LIMIT 1`,
		examID, userID,
	).Scan(
		&rec.ID,
		&rec.ExamID,
		&rec.UserID,
		&rec.Version,
		&rec.SourceHash,
		&rec.Status,
		&payload,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("formation %s/%s: %w", examID, userID, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: get formation: %v", apperr.ErrUpstreamUnavailable, err)
	}
	if err := json.Unmarshal(payload, &rec.Payload); err != nil {
		return nil, fmt.Errorf("decode formation payload: %w", err)
	}
	return rec, nil
}

// SaveNewVersion inserts version 1 or updates the row holding the previous
// version. Either statement returns no row when another writer got there first.
func (s *PostgresStore) SaveNewVersion(ctx context.Context, rec Record) (*Record, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal formation payload: %w", err)
	}

	var row pgx.Row
	if rec.Version == 1 {
		row = s.pool.QueryRow(ctx,
			`INSERT INTO auto_formations (id, exam_id, user_id, version, source_hash, status, payload)
			 VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb)
			 ON CONFLICT (exam_id, user_id) DO NOTHING
			 RETURNING id, created_at, updated_at`,
			rec.ID, rec.ExamID, rec.UserID, rec.Version, rec.SourceHash, rec.Status, string(payload),
		)
	} else {
		row = s.pool.QueryRow(ctx,
			`UPDATE auto_formations
			 SET version = $3, source_hash = $4, status = $5, payload = $6::jsonb, updated_at = NOW()
			 WHERE exam_id = $1 AND user_id = $2 AND version = $3 - 1
			 RETURNING id, created_at, updated_at`,
			rec.ExamID, rec.UserID, rec.Version, rec.SourceHash, rec.Status, string(payload),
		)
	}

	saved := rec
	if err := row.Scan(&saved.ID, &saved.CreatedAt, &saved.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("save formation version %d: %w", rec.Version, apperr.ErrConflict)
		}
		return nil, fmt.Errorf("%w: save formation: %v", apperr.ErrUpstreamUnavailable, err)
	}
	return &saved, nil
}

func (s *PostgresStore) AppendHistory(ctx context.Context, rec Record) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("marshal formation payload: %w", err)
	}

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO auto_formation_versions (formation_id, version, source_hash, payload)
		 VALUES ($1, $2, $3, $4::jsonb)
		 ON CONFLICT DO NOTHING`,
		rec.ID, rec.Version, rec.SourceHash, string(payload),
	); err != nil {
		return fmt.Errorf("%w: append formation history: %v", apperr.ErrUpstreamUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) History(ctx context.Context, examID, userID string) ([]Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT v.formation_id, v.version, v.source_hash, v.payload, v.created_at
		 FROM auto_formation_versions v
		 JOIN auto_formations f ON f.id = v.formation_id
		 WHERE f.exam_id = $1 AND f.user_id = $2
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
		var payload []byte
		if err := rows.Scan(&snap.FormationID, &snap.Version, &snap.SourceHash, &payload, &snap.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan formation history: %w", err)
		}
		if err := json.Unmarshal(payload, &snap.Payload); err != nil {
			return nil, fmt.Errorf("decode formation history payload: %w", err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate formation history: %w", err)
	}
	return out, nil
}
