package schedule

import (
	"github.com/p-n-ai/pai-planner/internal/formation"
	"github.com/p-n-ai/pai-planner/internal/topickey"
)

// FilterCompleted returns the drops whose discipline/subtopic key is not among
// the studied keys. Studied keys are raw upstream keys and are normalized here.
func FilterCompleted(drops []formation.Drop, studied []string) []formation.Drop {
	done := studiedSet(studied)
	out := make([]formation.Drop, 0, len(drops))
	for _, d := range drops {
		if _, ok := done[topickey.Build(d.Discipline, d.Subtopic)]; ok {
			continue
		}
		out = append(out, d)
	}
	return out
}

func studiedSet(keys []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if n := topickey.Normalize(k); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}
