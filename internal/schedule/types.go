// Package schedule lays a learner's formation drops out over the days left
// before an exam, as new study, spaced reviews and final-phase practice.
package schedule

// Phase is the stage of the plan a day belongs to.
type Phase string

const (
	PhaseCoverage      Phase = "coverage"
	PhaseConsolidation Phase = "consolidation"
	PhaseFinal         Phase = "final"
)

// ItemType is the kind of work an item asks for.
type ItemType string

const (
	ItemNew      ItemType = "new"
	ItemReview   ItemType = "review"
	ItemPractice ItemType = "practice"
)

// Item is one unit of study on a day.
type Item struct {
	Discipline string   `json:"discipline"`
	Topic      string   `json:"topic"`
	Subtopic   string   `json:"subtopic"`
	Level      int      `json:"level"`
	Priority   float64  `json:"priority"`
	Type       ItemType `json:"type"`
	Minutes    int      `json:"minutes"`
	Synthetic  bool     `json:"synthetic,omitempty"`
}

// Day is the study bucket for one calendar date.
type Day struct {
	Date            string `json:"date"`
	Phase           Phase  `json:"phase"`
	Items           []Item `json:"items"`
	TotalMinutes    int    `json:"total_minutes"`
	NewCount        int    `json:"new_count"`
	ReviewCount     int    `json:"review_count"`
	PracticeMinutes int    `json:"practice_minutes"`
}

func (d *Day) add(it Item) {
	d.Items = append(d.Items, it)
	d.TotalMinutes += it.Minutes
	switch it.Type {
	case ItemNew:
		d.NewCount++
	case ItemReview:
		d.ReviewCount++
	case ItemPractice:
		d.PracticeMinutes += it.Minutes
	}
}

// PhaseDayCounts is the number of days in each phase.
type PhaseDayCounts struct {
	Coverage      int `json:"coverage"`
	Consolidation int `json:"consolidation"`
	Final         int `json:"final"`
}

// Summary describes a schedule as a whole.
type Summary struct {
	ExamID             string         `json:"exam_id"`
	UserID             string         `json:"user_id"`
	ExamBoard          string         `json:"exam_board,omitempty"`
	ExamDate           string         `json:"exam_date,omitempty"`
	StartDate          string         `json:"start_date"`
	FormationVersion   int            `json:"formation_version"`
	DaysAvailable      int            `json:"days_available"`
	TotalTopics        int            `json:"total_topics"`
	RemainingTopics    int            `json:"remaining_topics"`
	CompletedTopics    int            `json:"completed_topics"`
	ScheduledTopics    int            `json:"scheduled_topics"`
	TotalMinutes       int            `json:"total_minutes"`
	MinMinutesPerDay   int            `json:"min_minutes_per_day"`
	PhaseDayCounts     PhaseDayCounts `json:"phase_day_counts"`
	ReviewIntervals    []int          `json:"review_intervals"`
	FallbackToFullPlan bool           `json:"fallback_to_full_plan"`
}

// Result is a complete macro schedule.
type Result struct {
	Summary Summary `json:"summary"`
	Days    []Day   `json:"days"`
}

// Request selects the exam, learner and first day of a schedule.
type Request struct {
	ExamID string
	UserID string
	// StartDate is "2006-01-02" or RFC 3339. Empty means today in the configured zone.
	StartDate string
}
