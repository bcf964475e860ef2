package schedule

import (
	"fmt"
	"math"
	"time"

	"github.com/p-n-ai/pai-planner/internal/curriculum"
	"github.com/p-n-ai/pai-planner/internal/platform/apperr"
)

// Calendar days are carried as midnight UTC so day arithmetic never crosses a DST change.

func resolveStart(raw string, now time.Time, loc *time.Location) (time.Time, error) {
	if raw != "" {
		day, ok := curriculum.ParseDay(raw)
		if !ok {
			return time.Time{}, fmt.Errorf("%w: start date %q", apperr.ErrInvalidArgument, raw)
		}
		return day, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	t := now.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

func daysBetween(a, b time.Time) int {
	return int(math.Round(b.Sub(a).Hours() / 24))
}

// window returns the number of plan days starting at start. The plan ends on
// the day before a future exam, or after defaultDays when there is none.
func window(start time.Time, examDate *time.Time, defaultDays int) int {
	end := start.AddDate(0, 0, defaultDays)
	if examDate != nil && examDate.After(start) {
		end = examDate.AddDate(0, 0, -1)
	}
	return max(1, daysBetween(start, end))
}

// ceilRatio rounds days*ratio up, ignoring float noise such as 0.6*10 = 6.000000000000001.
func ceilRatio(days int, ratio float64) int {
	return int(math.Ceil(float64(days)*ratio - 1e-9))
}

// splitPhases partitions days into coverage, consolidation and final days.
// From two days on, coverage leaves at least one day for consolidation.
func splitPhases(days int, coverageRatio, consolidationRatio float64) PhaseDayCounts {
	coverage := min(max(1, days-1), max(1, ceilRatio(days, coverageRatio)))
	consolidation := 0
	if rest := days - coverage; rest > 0 {
		consolidation = min(rest, max(1, ceilRatio(days, consolidationRatio)))
	}
	return PhaseDayCounts{
		Coverage:      coverage,
		Consolidation: consolidation,
		Final:         days - coverage - consolidation,
	}
}

func (p PhaseDayCounts) phaseOf(index int) Phase {
	switch {
	case index < p.Coverage:
		return PhaseCoverage
	case index < p.Coverage+p.Consolidation:
		return PhaseConsolidation
	}
	return PhaseFinal
}

func dayBuckets(start time.Time, days int, phases PhaseDayCounts) []Day {
	out := make([]Day, days)
	for i := range out {
		out[i] = Day{
			Date:  start.AddDate(0, 0, i).Format(time.DateOnly),
			Phase: phases.phaseOf(i),
			Items: []Item{},
		}
	}
	return out
}
