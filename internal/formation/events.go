package formation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EventGenerated is logged whenever a new formation version is saved.
const EventGenerated = "formation_generated"

// Event records a formation lifecycle change for analytics.
type Event struct {
	ExamID     string
	UserID     string
	EventType  string
	Version    int
	SourceHash string
	Data       map[string]any
	CreatedAt  time.Time
}

func (e Event) validate() error {
	if e.EventType == "" {
		return fmt.Errorf("event_type is required")
	}
	if e.ExamID == "" {
		return fmt.Errorf("exam_id is required")
	}
	return nil
}

// EventLogger receives formation events. Failures never fail a generation.
type EventLogger interface {
	LogEvent(ctx context.Context, event Event) error
}

// NopEventLogger drops every event.
type NopEventLogger struct{}

func (NopEventLogger) LogEvent(context.Context, Event) error { return nil }

// MemoryEventLogger keeps events in memory.
type MemoryEventLogger struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryEventLogger() *MemoryEventLogger {
	return &MemoryEventLogger{}
}

func (l *MemoryEventLogger) LogEvent(_ context.Context, event Event) error {
	if err := event.validate(); err != nil {
		return err
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	l.mu.Lock()
	l.events = append(l.events, event)
	l.mu.Unlock()
	return nil
}

// Events returns a copy of everything logged so far, oldest first.
func (l *MemoryEventLogger) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}

// ForExam returns the events logged for one exam and learner.
func (l *MemoryEventLogger) ForExam(examID, userID string) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Event
	for _, e := range l.events {
		if e.ExamID == examID && e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}

// PostgresEventLogger appends events to planner_events.
type PostgresEventLogger struct {
	pool *pgxpool.Pool
}

func NewPostgresEventLogger(pool *pgxpool.Pool) *PostgresEventLogger {
	return &PostgresEventLogger{pool: pool}
}

func (l *PostgresEventLogger) LogEvent(ctx context.Context, event Event) error {
	if l == nil || l.pool == nil {
		return fmt.Errorf("event logger pool is nil")
	}
	if err := event.validate(); err != nil {
		return err
	}

	data := []byte("{}")
	if len(event.Data) > 0 {
		var err error
		if data, err = json.Marshal(event.Data); err != nil {
			return fmt.Errorf("marshal event data: %w", err)
		}
	}
	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if _, err := l.pool.Exec(ctx,
		`INSERT INTO planner_events (exam_id, user_id, event_type, version, source_hash, data, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7)`,
		event.ExamID, event.UserID, event.EventType, event.Version, event.SourceHash, string(data), createdAt,
	); err != nil {
		return fmt.Errorf("insert %s event: %w", event.EventType, err)
	}

	slog.Debug("formation event logged",
		"type", event.EventType,
		"exam_id", event.ExamID,
		"user_id", event.UserID,
		"version", event.Version,
	)
	return nil
}
