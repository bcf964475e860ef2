// Package signals aggregates a learner's per-topic error evidence from the
// assessment history and the missed-question log.
package signals

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/p-n-ai/pai-planner/internal/progress"
	"github.com/p-n-ai/pai-planner/internal/topickey"
)

// Source names the evidence behind a set of error stats.
type Source string

const (
	SourceAssessments Source = "assessments"
	SourceMissedLog   Source = "missed_log"
	SourceNone        Source = "none"
)

// ErrorStat is the aggregated wrong/total count for one normalized topic key.
type ErrorStat struct {
	TopicKey   string `json:"topic_key"`
	WrongCount int    `json:"wrong_count"`
	TotalCount int    `json:"total_count"`
}

// ErrorRate returns wrong/total, or 1 when only wrong answers are known.
func (s ErrorStat) ErrorRate() float64 {
	if s.TotalCount > 0 {
		return float64(s.WrongCount) / float64(s.TotalCount)
	}
	if s.WrongCount > 0 {
		return 1
	}
	return 0
}

// Stats maps normalized topic keys to their error stats.
type Stats map[string]ErrorStat

// Lookup finds the stat for a discipline/subtopic pair, falling back to the
// bare subtopic key recorded by sources that do not know the discipline.
func (s Stats) Lookup(discipline, subtopic string) (ErrorStat, bool) {
	if st, ok := s[topickey.Build(discipline, subtopic)]; ok {
		return st, true
	}
	st, ok := s[topickey.Fold(subtopic)]
	return st, ok
}

// Loader merges the two error sources.
type Loader struct {
	assessments progress.AssessmentHistoryRepository
	missed      progress.MissedQuestionLogRepository
}

// NewLoader creates a loader over the given sources. Either may be nil.
func NewLoader(assessments progress.AssessmentHistoryRepository, missed progress.MissedQuestionLogRepository) *Loader {
	return &Loader{assessments: assessments, missed: missed}
}

// Load returns the merged error stats for userID along with the strongest
// source that contributed. A nil Loader returns empty stats. Wrong counts are summed across sources; the total
// is the assessment total when non-zero, else the merged wrong count. Any
// source failure degrades to empty stats.
func (l *Loader) Load(ctx context.Context, userID string) (Stats, Source) {
	if l == nil || userID == "" {
		return Stats{}, SourceNone
	}

	var (
		exact  map[string]progress.ErrorCount
		wrongs map[string]int
	)
	g, gctx := errgroup.WithContext(ctx)
	if l.assessments != nil {
		g.Go(func() error {
			var err error
			exact, err = l.assessments.ErrorStatsByTopic(gctx, userID)
			return err
		})
	}
	if l.missed != nil {
		g.Go(func() error {
			var err error
			wrongs, err = l.missed.ErrorCountsByTopic(gctx, userID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		slog.Warn("error signals unavailable, continuing without personalization",
			"user_id", userID,
			"error", err,
		)
		return Stats{}, SourceNone
	}

	return merge(exact, wrongs)
}

func merge(exact map[string]progress.ErrorCount, wrongs map[string]int) (Stats, Source) {
	type acc struct{ wrong, exactTotal int }
	merged := make(map[string]*acc)
	get := func(raw string) *acc {
		key := topickey.Normalize(raw)
		if key == "" {
			return nil
		}
		a := merged[key]
		if a == nil {
			a = &acc{}
			merged[key] = a
		}
		return a
	}

	source := SourceNone
	for raw, c := range exact {
		if a := get(raw); a != nil {
			a.wrong += c.Wrong
			a.exactTotal += c.Total
			source = SourceAssessments
		}
	}
	for raw, n := range wrongs {
		if a := get(raw); a != nil {
			a.wrong += n
			if source == SourceNone {
				source = SourceMissedLog
			}
		}
	}

	out := make(Stats, len(merged))
	for key, a := range merged {
		total := a.exactTotal
		if total == 0 {
			total = a.wrong
		}
		out[key] = ErrorStat{TopicKey: key, WrongCount: a.wrong, TotalCount: total}
	}
	return out, source
}
