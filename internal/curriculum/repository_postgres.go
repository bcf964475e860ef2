package curriculum

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

// PostgresRepository reads exam notices from the exam_notices table.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a PostgreSQL-backed curriculum repository.
func NewPostgresRepository(pool *pgxpool.Pool) (*PostgresRepository, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresRepository{pool: pool}, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, examID string) (*Curriculum, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	c := &Curriculum{}
	var (
		disciplines []byte
		content     []byte
		jobRoles    []byte
		updatedAt   *time.Time
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, COALESCE(code, ''), COALESCE(title, ''), COALESCE(exam_board, ''),
		        disciplines, program_content, COALESCE(exam_date::text, ''), job_roles,
		        created_at, updated_at
		 FROM exam_notices
		 WHERE id = $1
		 LIMIT 1`,
		examID,
	).Scan(
		&c.ID,
		&c.Code,
		&c.Title,
		&c.ExamBoard,
		&disciplines,
		&content,
		&c.ExamDate,
		&jobRoles,
		&c.CreatedAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("curriculum %q: %w", examID, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: get curriculum: %v", apperr.ErrUpstreamUnavailable, err)
	}
	if updatedAt != nil {
		c.UpdatedAt = *updatedAt
	}

	doc, err := columnsDocument(c.ID, map[string][]byte{
		"disciplines":     disciplines,
		"program_content": content,
		"job_roles":       jobRoles,
	})
	if err != nil {
		return nil, err
	}
	if err := ValidateDocument(doc); err != nil {
		return nil, fmt.Errorf("curriculum %q: %w", examID, err)
	}

	if err := unmarshalColumn(disciplines, &c.Disciplines); err != nil {
		return nil, fmt.Errorf("decode disciplines: %w", err)
	}
	if err := unmarshalColumn(content, &c.ProgramContent); err != nil {
		return nil, fmt.Errorf("decode program content: %w", err)
	}
	if err := unmarshalColumn(jobRoles, &c.JobRoles); err != nil {
		return nil, fmt.Errorf("decode job roles: %w", err)
	}

	return c, nil
}

// columnsDocument assembles the JSONB columns into the generic document
// ValidateDocument expects. NULL columns are left out.
func columnsDocument(id string, columns map[string][]byte) (map[string]any, error) {
	doc := map[string]any{"id": id}
	for name, raw := range columns {
		if len(raw) == 0 {
			continue
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		if v != nil {
			doc[name] = v
		}
	}
	return doc, nil
}

// unmarshalColumn decodes a nullable JSONB column; SQL NULL leaves dst untouched.
func unmarshalColumn(data []byte, dst any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, dst)
}
