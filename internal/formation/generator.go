package formation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/pai-planner/internal/curriculum"
	"github.com/p-n-ai/pai-planner/internal/platform/apperr"
	"github.com/p-n-ai/pai-planner/internal/progress"
	"github.com/p-n-ai/pai-planner/internal/signals"
)

// Generator produces and versions formations.
type Generator struct {
	curricula curriculum.Repository
	progress  progress.UserProgressRepository
	signals   *signals.Loader
	store     Store
	locker    Locker
	events    EventLogger
	now       func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithLocker replaces the default in-process locker.
func WithLocker(l Locker) Option {
	return func(g *Generator) { g.locker = l }
}

// WithEventLogger sets the analytics event sink.
func WithEventLogger(l EventLogger) Option {
	return func(g *Generator) { g.events = l }
}

// WithClock overrides the clock used for GeneratedAt.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// NewGenerator creates a Generator.
func NewGenerator(
	curricula curriculum.Repository,
	progressRepo progress.UserProgressRepository,
	loader *signals.Loader,
	store Store,
	opts ...Option,
) *Generator {
	g := &Generator{
		curricula: curricula,
		progress:  progressRepo,
		signals:   loader,
		store:     store,
		locker:    NewLocalLocker(),
		events:    NopEventLogger{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Active returns the stored formation without regenerating it.
func (g *Generator) Active(ctx context.Context, examID, userID string) (*Record, error) {
	return g.store.GetActive(ctx, examID, userID)
}

// History returns every stored version of a formation, oldest first.
func (g *Generator) History(ctx context.Context, examID, userID string) ([]Snapshot, error) {
	return g.store.History(ctx, examID, userID)
}

// Generate returns the current formation for examID and userID, building and
// saving a new version when the source inputs changed or force is set.
func (g *Generator) Generate(ctx context.Context, examID, userID string, force bool) (*Record, error) {
	if examID == "" {
		return nil, fmt.Errorf("%w: exam id is required", apperr.ErrInvalidArgument)
	}

	unlock, err := g.locker.Lock(ctx, LockKey(examID, userID))
	if err != nil {
		return nil, fmt.Errorf("%w: acquire formation lock: %v", apperr.ErrUpstreamUnavailable, err)
	}
	defer unlock()

	c, err := g.curricula.FindByID(ctx, examID)
	if err != nil {
		return nil, upstream("load curriculum", err)
	}

	lastAssessment, err := g.latestAssessment(ctx, userID)
	if err != nil {
		return nil, err
	}

	updatedAt := c.LastModified()
	hash := SourceHash(SourceInputs{
		ExamID:           examID,
		CurriculumStamp:  updatedAt,
		ExamDate:         c.ExamDate,
		DisciplineCount:  len(c.Disciplines),
		ContentKeyCount:  len(c.ProgramContent.Keys()),
		LastAssessmentAt: lastAssessment,
	})

	existing, err := g.store.GetActive(ctx, examID, userID)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, upstream("get active formation", err)
	}
	if existing != nil && existing.SourceHash == hash && !force {
		return existing, nil
	}

	stats, source := g.signals.Load(ctx, userID)
	structure := Build(examID, c, stats, source)

	version := 1
	id := uuid.NewString()
	if existing != nil {
		version = existing.Version + 1
		id = existing.ID
	}

	rec := Record{
		ID:         id,
		ExamID:     examID,
		UserID:     userID,
		Version:    version,
		SourceHash: hash,
		Status:     StatusActive,
		Payload: Payload{
			ExamID:      examID,
			UserID:      userID,
			Version:     version,
			GeneratedAt: g.now().UTC(),
			ExamBoard:   c.ExamBoard,
			Modules:     structure.Modules,
			Tracks:      structure.Tracks,
			Blocks:      structure.Blocks,
			Drops:       structure.Drops,
			Summary:     structure.Summary,
			Signals: Signals{
				SourceHash:          hash,
				CurriculumUpdatedAt: timePtr(updatedAt),
				LastAssessmentAt:    lastAssessment,
			},
		},
	}

	saved, err := g.store.SaveNewVersion(ctx, rec)
	if errors.Is(err, apperr.ErrConflict) {
		// Another writer saved first. Its record is as good as ours if it was
		// built from the same inputs.
		winner, gerr := g.store.GetActive(ctx, examID, userID)
		if gerr == nil && winner.SourceHash == hash && !force {
			return winner, nil
		}
		return nil, err
	}
	if err != nil {
		return nil, upstream("save formation", err)
	}

	if err := g.store.AppendHistory(ctx, *saved); err != nil {
		slog.Warn("formation history not recorded",
			"exam_id", examID,
			"user_id", userID,
			"version", saved.Version,
			"error", err,
		)
	}

	if err := g.events.LogEvent(ctx, Event{
		ExamID:     examID,
		UserID:     userID,
		EventType:  EventGenerated,
		Version:    saved.Version,
		SourceHash: saved.SourceHash,
		Data: map[string]any{
			"drops":  len(saved.Payload.Drops),
			"forced": force,
		},
	}); err != nil {
		slog.Warn("failed to log formation event", "exam_id", examID, "user_id", userID, "error", err)
	}

	slog.Info("formation generated",
		"exam_id", examID,
		"user_id", userID,
		"version", saved.Version,
		"drops", len(saved.Payload.Drops),
		"source", saved.Payload.Summary.Personalization.Source,
	)
	return saved, nil
}

func (g *Generator) latestAssessment(ctx context.Context, userID string) (*time.Time, error) {
	if userID == "" || g.progress == nil {
		return nil, nil
	}
	last, err := g.progress.LatestAssessmentTimestamp(ctx, userID)
	if err != nil {
		return nil, upstream("load latest assessment", err)
	}
	return last, nil
}

// upstream classifies err as ErrUpstreamUnavailable unless it already carries a kind.
func upstream(op string, err error) error {
	if apperr.Kind(err) != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %v", apperr.ErrUpstreamUnavailable, op, err)
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	t = t.UTC()
	return &t
}
