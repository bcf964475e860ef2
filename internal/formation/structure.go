package formation

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/p-n-ai/pai-planner/internal/curriculum"
	"github.com/p-n-ai/pai-planner/internal/signals"
)

// Level thresholds, highest first. A priority at or above thresholds[i] maps to level 5-i.
var levelThresholds = [...]float64{0.8, 0.6, 0.4, 0.2}

// LevelFor discretizes a priority in [0,1] into a level in 1..5.
func LevelFor(priority float64) int {
	for i, t := range levelThresholds {
		if priority >= t {
			return 5 - i
		}
	}
	return 1
}

// PriorityFor blends discipline weight (40%) and error rate (60%) into [0,1].
func PriorityFor(weight, errorRate float64) float64 {
	return clamp01(0.4*clamp01(weight/10) + 0.6*errorRate)
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}

// Structure is the pure part of formation generation: drops, tracks, blocks,
// modules and the summary for a curriculum and a learner's error stats.
type Structure struct {
	Modules []Module
	Tracks  []Track
	Blocks  []Block
	Drops   []Drop
	Summary Summary
}

// Build structures c for examID using stats as the error evidence.
func Build(examID string, c *curriculum.Curriculum, stats signals.Stats, source signals.Source) Structure {
	var s Structure
	var totalErrors, totalQuestions int

	disciplines := c.ResolvedDisciplines()
	for _, d := range disciplines {
		name := strings.TrimSpace(d.Name)
		if name == "" {
			name = "Discipline"
		}
		weight := d.ResolvedWeight()

		subtopics := curriculum.Subtopics(d, c.ProgramContent)
		drops := make([]Drop, 0, len(subtopics))
		for _, sub := range subtopics {
			st, _ := stats.Lookup(name, sub)
			totalErrors += st.WrongCount
			totalQuestions += st.TotalCount

			priority := PriorityFor(weight, st.ErrorRate())
			level := LevelFor(priority)
			drops = append(drops, Drop{
				ID:         dropID(examID, name, sub, level),
				Discipline: name,
				Subtopic:   sub,
				Level:      level,
				Priority:   priority,
				Origin:     Origin,
			})
		}
		slices.SortStableFunc(drops, func(a, b Drop) int {
			switch {
			case a.Priority > b.Priority:
				return -1
			case a.Priority < b.Priority:
				return 1
			}
			return 0
		})
		s.Drops = append(s.Drops, drops...)

		for level := 1; level <= 5; level++ {
			var ids []string
			for _, dr := range drops {
				if dr.Level == level {
					ids = append(ids, dr.ID)
				}
			}
			if len(ids) == 0 {
				continue
			}
			s.Tracks = append(s.Tracks, Track{
				ID:                 trackID(examID, name, level),
				Name:               fmt.Sprintf("%s - L%d", name, level),
				Discipline:         name,
				Level:              level,
				DropIDs:            ids,
				SuggestedHours:     max(1, int(math.Round(0.6*float64(len(ids))+weight))),
				SuggestedDropCount: len(ids),
			})
			s.Blocks = append(s.Blocks, Block{
				ID:         blockID(examID, name, level),
				Name:       fmt.Sprintf("%s - Block L%d", name, level),
				Discipline: name,
				Level:      level,
				DropIDs:    slices.Clone(ids),
			})
		}
	}

	s.Modules = buildModules(examID, c.JobRoles, s.Tracks)

	if totalErrors == 0 && totalQuestions == 0 {
		source = signals.SourceNone
	}
	s.Summary = Summary{
		Disciplines: len(disciplines),
		Tracks:      len(s.Tracks),
		Blocks:      len(s.Blocks),
		Drops:       len(s.Drops),
		Subtopics:   len(s.Drops),
		Personalization: Personalization{
			TotalErrors:    totalErrors,
			TotalQuestions: totalQuestions,
			Source:         source,
		},
	}
	return s
}

func buildModules(examID string, roles []curriculum.JobRole, tracks []Track) []Module {
	trackIDs := make([]string, 0, len(tracks))
	for _, t := range tracks {
		trackIDs = append(trackIDs, t.ID)
	}

	if len(roles) == 0 {
		return []Module{{
			ID:       moduleID(examID, "base"),
			Name:     "Base",
			TrackIDs: trackIDs,
		}}
	}

	modules := make([]Module, 0, len(roles))
	for i, role := range roles {
		name := strings.TrimSpace(role.Name)
		if name == "" {
			name = fmt.Sprintf("Role %d", i+1)
		}
		modules = append(modules, Module{
			ID:       moduleID(examID, name),
			Name:     name,
			TrackIDs: slices.Clone(trackIDs),
			JobRoles: []string{name},
		})
	}
	return modules
}
