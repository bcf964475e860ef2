package schedule

import (
	"cmp"
	"slices"

	"github.com/p-n-ai/pai-planner/internal/formation"
	"github.com/p-n-ai/pai-planner/internal/topickey"
)

type topic struct {
	formation.Drop
	weight float64
}

// rank orders topics by priority, then discipline weight, then level, all descending.
func rank(topics []topic) {
	slices.SortStableFunc(topics, func(a, b topic) int {
		if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
			return c
		}
		if c := cmp.Compare(b.weight, a.weight); c != 0 {
			return c
		}
		return cmp.Compare(b.Level, a.Level)
	})
}

// interleave deals topics round-robin across disciplines so that consecutive
// days mix subjects. Heavier disciplines deal first; ties go by name.
func interleave(topics []topic) []topic {
	if len(topics) <= 1 {
		return topics
	}

	type group struct {
		name      string
		maxWeight float64
		items     []topic
	}
	byName := make(map[string]*group)
	var groups []*group
	for _, t := range topics {
		name := topickey.Fold(t.Discipline)
		g, ok := byName[name]
		if !ok {
			g = &group{name: name}
			byName[name] = g
			groups = append(groups, g)
		}
		g.items = append(g.items, t)
		g.maxWeight = max(g.maxWeight, t.weight)
	}

	for _, g := range groups {
		slices.SortStableFunc(g.items, func(a, b topic) int {
			return cmp.Compare(b.Priority, a.Priority)
		})
	}
	slices.SortFunc(groups, func(a, b *group) int {
		if c := cmp.Compare(b.maxWeight, a.maxWeight); c != 0 {
			return c
		}
		return cmp.Compare(a.name, b.name)
	})

	out := make([]topic, 0, len(topics))
	for round := 0; len(out) < len(topics); round++ {
		for _, g := range groups {
			if round < len(g.items) {
				out = append(out, g.items[round])
			}
		}
	}
	return out
}
