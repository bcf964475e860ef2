package progress

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/p-n-ai/pai-planner/internal/platform/apperr"
)

const dbTimeout = 5 * time.Second

// topicKeyExpr renders a question's "discipline::subtopic" key. Questions
// without a discipline produce "::subtopic", which normalizes to the bare subtopic.
const topicKeyExpr = `COALESCE(q.discipline, '') || '::' || COALESCE(q.subtopic, q.topic)`

// PostgresStore reads progress data from the assessment tables.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed progress store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) ErrorStatsByTopic(ctx context.Context, userID string) (map[string]ErrorCount, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT `+topicKeyExpr+` AS topic_key,
		        SUM(CASE WHEN aa.is_correct = false THEN 1 ELSE 0 END) AS wrong,
		        COUNT(*) AS total
		 FROM assessment_answers aa
		 JOIN assessment_runs ar ON ar.id = aa.run_id
		 JOIN questions q ON q.id = aa.question_id
		 WHERE ar.user_id = $1
		   AND (q.subtopic IS NOT NULL OR q.topic IS NOT NULL)
		 GROUP BY 1`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: query assessment stats: %v", apperr.ErrUpstreamUnavailable, err)
	}
	defer rows.Close()

	out := make(map[string]ErrorCount)
	for rows.Next() {
		var key string
		var wrong, total int64
		if err := rows.Scan(&key, &wrong, &total); err != nil {
			return nil, fmt.Errorf("scan assessment stats: %w", err)
		}
		c := out[key]
		c.Wrong += int(wrong)
		c.Total += int(total)
		out[key] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assessment stats: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) ErrorCountsByTopic(ctx context.Context, userID string) (map[string]int, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT `+topicKeyExpr+` AS topic_key, COUNT(*) AS wrong
		 FROM missed_questions mq
		 JOIN questions q ON q.id = mq.question_id
		 WHERE mq.user_id = $1
		   AND (q.subtopic IS NOT NULL OR q.topic IS NOT NULL)
		 GROUP BY 1`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: query missed questions: %v", apperr.ErrUpstreamUnavailable, err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var key string
		var wrong int64
		if err := rows.Scan(&key, &wrong); err != nil {
			return nil, fmt.Errorf("scan missed questions: %w", err)
		}
		out[key] += int(wrong)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate missed questions: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) DistinctStudiedTopicKeys(ctx context.Context, userID string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT topic_key FROM user_topic_stats WHERE user_id = $1 AND topic_key IS NOT NULL`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: query studied topics: %v", apperr.ErrUpstreamUnavailable, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan studied topic: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate studied topics: %w", err)
	}
	return keys, nil
}

func (s *PostgresStore) LatestAssessmentTimestamp(ctx context.Context, userID string) (*time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var last *time.Time
	if err := s.pool.QueryRow(ctx,
		`SELECT MAX(finished_at) FROM assessment_results WHERE user_id = $1`,
		userID,
	).Scan(&last); err != nil {
		return nil, fmt.Errorf("%w: query latest assessment: %v", apperr.ErrUpstreamUnavailable, err)
	}
	if last != nil {
		t := last.UTC()
		last = &t
	}
	return last, nil
}
