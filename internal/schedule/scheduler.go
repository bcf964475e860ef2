package schedule

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/p-n-ai/pai-planner/internal/curriculum"
	"github.com/p-n-ai/pai-planner/internal/formation"
	"github.com/p-n-ai/pai-planner/internal/platform/apperr"
	"github.com/p-n-ai/pai-planner/internal/platform/config"
	"github.com/p-n-ai/pai-planner/internal/progress"
	"github.com/p-n-ai/pai-planner/internal/topickey"
)

const defaultWeight = curriculum.DefaultWeight

// Options are the tunables of the layout.
type Options struct {
	Location            *time.Location
	CoverageRatio       float64
	ConsolidationRatio  float64
	NewMinutesBase      int
	ReviewMinutesBase   int
	PracticeMinutes     int
	DefaultCalendarDays int
	RescheduleCompleted bool
}

// DefaultOptions returns the built-in tunables in UTC.
func DefaultOptions() Options {
	return Options{
		Location:            time.UTC,
		CoverageRatio:       0.6,
		ConsolidationRatio:  0.25,
		NewMinutesBase:      8,
		ReviewMinutesBase:   4,
		PracticeMinutes:     10,
		DefaultCalendarDays: 63,
		RescheduleCompleted: true,
	}
}

// OptionsFromConfig converts loaded configuration into Options.
func OptionsFromConfig(c config.ScheduleConfig) Options {
	return Options{
		Location:            c.Location(),
		CoverageRatio:       c.CoverageRatio,
		ConsolidationRatio:  c.ConsolidationRatio,
		NewMinutesBase:      c.NewMinutesBase,
		ReviewMinutesBase:   c.ReviewMinutesBase,
		PracticeMinutes:     c.PracticeMinutes,
		DefaultCalendarDays: c.DefaultCalendarDays,
		RescheduleCompleted: c.RescheduleCompleted,
	}
}

// FormationSource returns the current formation for a learner, regenerating it when stale.
type FormationSource interface {
	Generate(ctx context.Context, examID, userID string, force bool) (*formation.Record, error)
}

// ResultCache stores computed schedules. *cache.Cache satisfies it.
type ResultCache interface {
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
}

// Scheduler builds macro schedules. It never writes schedule state; results
// are recomputed, or read from the optional cache.
type Scheduler struct {
	curricula  curriculum.Repository
	formations FormationSource
	progress   progress.UserProgressRepository
	opts       Options
	cache      ResultCache
	cacheTTL   time.Duration
	now        func() time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithCache enables result caching for ttl.
func WithCache(c ResultCache, ttl time.Duration) Option {
	return func(s *Scheduler) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

// WithClock overrides the clock used to pick "today".
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New creates a Scheduler.
func New(
	curricula curriculum.Repository,
	formations FormationSource,
	progressRepo progress.UserProgressRepository,
	opts Options,
	options ...Option,
) *Scheduler {
	s := &Scheduler{
		curricula:  curricula,
		formations: formations,
		progress:   progressRepo,
		opts:       opts,
		now:        time.Now,
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// Build returns the macro schedule for req.
func (s *Scheduler) Build(ctx context.Context, req Request) (*Result, error) {
	if req.ExamID == "" {
		return nil, fmt.Errorf("%w: exam id is required", apperr.ErrInvalidArgument)
	}
	start, err := resolveStart(req.StartDate, s.now(), s.opts.Location)
	if err != nil {
		return nil, err
	}

	c, err := s.curricula.FindByID(ctx, req.ExamID)
	if err != nil {
		return nil, upstream("load curriculum", err)
	}

	rec, err := s.formations.Generate(ctx, req.ExamID, req.UserID, false)
	if err != nil {
		return nil, upstream("load formation", err)
	}

	studied := s.studiedKeys(ctx, req.UserID)

	key := s.cacheKey(req, start, rec, studied)
	if s.cache != nil {
		var cached Result
		hit, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			slog.Warn("schedule cache read failed", "exam_id", req.ExamID, "user_id", req.UserID, "error", err)
		}
		if hit {
			return &cached, nil
		}
	}

	in := planInput{
		examID:    req.ExamID,
		userID:    req.UserID,
		examBoard: c.ExamBoard,
		start:     start,
		version:   rec.Version,
		drops:     rec.Payload.Drops,
		weights:   disciplineWeights(c),
		studied:   studied,
	}
	if d, ok := c.ParsedExamDate(); ok {
		in.examDate = &d
	}
	result := plan(in, s.opts)

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, result, s.cacheTTL); err != nil {
			slog.Warn("schedule cache write failed", "exam_id", req.ExamID, "user_id", req.UserID, "error", err)
		}
	}

	slog.Debug("schedule built",
		"exam_id", req.ExamID,
		"user_id", req.UserID,
		"days", result.Summary.DaysAvailable,
		"topics", result.Summary.ScheduledTopics,
		"fallback", result.Summary.FallbackToFullPlan,
	)
	return result, nil
}

// studiedKeys loads the learner's studied topics. Failures degrade to none.
func (s *Scheduler) studiedKeys(ctx context.Context, userID string) []string {
	if userID == "" || s.progress == nil {
		return nil
	}
	keys, err := s.progress.DistinctStudiedTopicKeys(ctx, userID)
	if err != nil {
		slog.Warn("studied topics unavailable, scheduling every topic", "user_id", userID, "error", err)
		return nil
	}
	return keys
}

// cacheKey digests every input of the layout.
func (s *Scheduler) cacheKey(req Request, start time.Time, rec *formation.Record, studied []string) string {
	normalized := make([]string, 0, len(studied))
	for k := range studiedSet(studied) {
		normalized = append(normalized, k)
	}
	slices.Sort(normalized)

	o := s.opts
	parts := []string{
		req.ExamID,
		req.UserID,
		start.Format(time.DateOnly),
		strconv.Itoa(rec.Version),
		rec.SourceHash,
		strings.Join(normalized, "\n"),
		strconv.FormatFloat(o.CoverageRatio, 'g', -1, 64),
		strconv.FormatFloat(o.ConsolidationRatio, 'g', -1, 64),
		strconv.Itoa(o.NewMinutesBase),
		strconv.Itoa(o.ReviewMinutesBase),
		strconv.Itoa(o.PracticeMinutes),
		strconv.Itoa(o.DefaultCalendarDays),
		strconv.FormatBool(o.RescheduleCompleted),
	}
	sum := blake2b.Sum256([]byte(strings.Join(parts, "\x00")))
	return "schedule:" + hex.EncodeToString(sum[:16])
}

func disciplineWeights(c *curriculum.Curriculum) map[string]float64 {
	weights := make(map[string]float64)
	for _, d := range c.ResolvedDisciplines() {
		if name := topickey.Fold(d.Name); name != "" {
			weights[name] = d.ResolvedWeight()
		}
	}
	return weights
}

// upstream classifies err as ErrUpstreamUnavailable unless it already carries a kind.
func upstream(op string, err error) error {
	if apperr.Kind(err) != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %v", apperr.ErrUpstreamUnavailable, op, err)
}
