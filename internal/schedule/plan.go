package schedule

import (
	"math"
	"time"

	"github.com/p-n-ai/pai-planner/internal/formation"
	"github.com/p-n-ai/pai-planner/internal/topickey"
)

// ReviewIntervals are the spaced-repetition offsets, in days, after a topic is first studied.
var ReviewIntervals = []int{1, 3, 7, 14, 30}

const finalReviewWindow = 7

// Practice item labels.
const (
	practiceDiscipline = "Practice"
	practiceTopic      = "Questions"
	practiceSubtopic   = "Exam-board drills"
	practiceLevel      = 3
)

// planInput is everything the pure layout step needs.
type planInput struct {
	examID    string
	userID    string
	examBoard string
	examDate  *time.Time
	start     time.Time
	version   int
	drops     []formation.Drop
	weights   map[string]float64 // folded discipline name -> weight
	studied   []string
}

func plan(in planInput, opts Options) *Result {
	days := window(in.start, in.examDate, opts.DefaultCalendarDays)
	phases := splitPhases(days, opts.CoverageRatio, opts.ConsolidationRatio)
	buckets := dayBuckets(in.start, days, phases)

	remaining := FilterCompleted(in.drops, in.studied)
	scheduled := remaining
	fallback := false
	if len(remaining) == 0 && len(in.drops) > 0 && opts.RescheduleCompleted {
		scheduled = in.drops
		fallback = true
	}

	summary := Summary{
		ExamID:             in.examID,
		UserID:             in.userID,
		ExamBoard:          in.examBoard,
		StartDate:          in.start.Format(time.DateOnly),
		FormationVersion:   in.version,
		DaysAvailable:      days,
		TotalTopics:        len(in.drops),
		RemainingTopics:    len(remaining),
		CompletedTopics:    len(in.drops) - len(remaining),
		ScheduledTopics:    len(scheduled),
		PhaseDayCounts:     phases,
		ReviewIntervals:    append([]int(nil), ReviewIntervals...),
		FallbackToFullPlan: fallback,
	}
	if in.examDate != nil && in.examDate.After(in.start) {
		summary.ExamDate = in.examDate.Format(time.DateOnly)
	}
	if len(scheduled) == 0 {
		return &Result{Summary: summary, Days: buckets}
	}

	topics := make([]topic, 0, len(scheduled))
	for _, d := range scheduled {
		w, ok := in.weights[topickey.Fold(d.Discipline)]
		if !ok {
			w = defaultWeight
		}
		topics = append(topics, topic{Drop: d, weight: w})
	}
	rank(topics)
	ordered := interleave(topics)

	newDay := assignNew(buckets, ordered, phases, opts)
	addReviews(buckets, ordered, newDay, phases, opts)
	addPractice(buckets, phases, opts)

	nonReview := 0
	for _, d := range buckets {
		summary.TotalMinutes += d.TotalMinutes
		for _, it := range d.Items {
			if it.Type != ItemReview {
				nonReview += it.Minutes
			}
		}
	}
	summary.MinMinutesPerDay = int(math.Ceil(float64(nonReview) / float64(days)))

	return &Result{Summary: summary, Days: buckets}
}

// assignNew places every topic once as a "new" item and returns the day index of each.
func assignNew(buckets []Day, ordered []topic, phases PhaseDayCounts, opts Options) []int {
	perDay := max(1, int(math.Ceil(float64(len(ordered))/float64(phases.Coverage))))
	// Topics that do not fit in coverage spill into consolidation, then onto the last day.
	newPhaseDays := phases.Coverage + phases.Consolidation
	dayOf := make([]int, len(ordered))
	for i, t := range ordered {
		idx := min(i/perDay, newPhaseDays-1, len(buckets)-1)
		dayOf[i] = idx
		buckets[idx].add(newItem(t, ItemNew, opts.NewMinutesBase+2*(t.Level-1)))
	}
	return dayOf
}

func addReviews(buckets []Day, ordered []topic, dayOf []int, phases PhaseDayCounts, opts Options) {
	last := len(buckets) - 1
	for i, t := range ordered {
		minutes := opts.ReviewMinutesBase + (t.Level-1)/2
		reviewed, inFinal := false, false
		for _, offset := range ReviewIntervals {
			idx := dayOf[i] + offset
			if idx > last {
				continue
			}
			buckets[idx].add(newItem(t, ItemReview, minutes))
			reviewed = true
			if buckets[idx].Phase == PhaseFinal {
				inFinal = true
			}
		}

		switch {
		case phases.Final > 0 && !inFinal:
			w := min(finalReviewWindow, phases.Final)
			idx := len(buckets) - w + i%w
			it := newItem(t, ItemReview, minutes)
			it.Synthetic = true
			buckets[idx].add(it)
		case phases.Final == 0 && !reviewed:
			it := newItem(t, ItemReview, minutes)
			it.Synthetic = true
			buckets[last].add(it)
		}
	}
}

func addPractice(buckets []Day, phases PhaseDayCounts, opts Options) {
	for i := len(buckets) - phases.Final; i < len(buckets); i++ {
		buckets[i].add(Item{
			Discipline: practiceDiscipline,
			Topic:      practiceTopic,
			Subtopic:   practiceSubtopic,
			Level:      practiceLevel,
			Type:       ItemPractice,
			Minutes:    opts.PracticeMinutes,
		})
	}
}

func newItem(t topic, typ ItemType, minutes int) Item {
	return Item{
		Discipline: t.Discipline,
		Topic:      t.Subtopic,
		Subtopic:   t.Subtopic,
		Level:      t.Level,
		Priority:   t.Priority,
		Type:       typ,
		Minutes:    minutes,
	}
}
