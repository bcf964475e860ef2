package formation_test

import (
	"strings"
	"testing"

	"github.com/p-n-ai/pai-planner/internal/curriculum"
	"github.com/p-n-ai/pai-planner/internal/formation"
	"github.com/p-n-ai/pai-planner/internal/signals"
)

func TestLevelFor(t *testing.T) {
	tests := []struct {
		priority float64
		want     int
	}{
		{1, 5},
		{0.8, 5},
		{0.79999, 4},
		{0.6, 4},
		{0.59999, 3},
		{0.4, 3},
		{0.39999, 2},
		{0.2, 2},
		{0.19999, 1},
		{0, 1},
	}
	for _, tt := range tests {
		if got := formation.LevelFor(tt.priority); got != tt.want {
			t.Errorf("LevelFor(%v) = %d, want %d", tt.priority, got, tt.want)
		}
	}
}

func TestPriorityFor_Bounds(t *testing.T) {
	tests := []struct {
		weight, errorRate float64
		want              float64
	}{
		{0, 0, 0},
		{10, 0, 0.4},
		{25, 0, 0.4},
		{10, 1, 1},
		{10, 3, 1},
		{5, 0.5, 0.5},
	}
	for _, tt := range tests {
		got := formation.PriorityFor(tt.weight, tt.errorRate)
		if got < 0 || got > 1 {
			t.Errorf("PriorityFor(%v, %v) = %v, outside [0,1]", tt.weight, tt.errorRate, got)
		}
		if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("PriorityFor(%v, %v) = %v, want %v", tt.weight, tt.errorRate, got, tt.want)
		}
	}
}

func e1Curriculum() *curriculum.Curriculum {
	return &curriculum.Curriculum{
		ID:       "E1",
		ExamDate: "2024-03-05",
		Disciplines: []curriculum.Discipline{
			{Name: "Math", QuestionCount: 40, Topics: []curriculum.TopicEntry{{Name: "Fractions"}, {Name: "Algebra"}}},
			{Name: "Law", Weight: 8, Topics: []curriculum.TopicEntry{{Name: "Contracts"}}},
		},
	}
}

func TestBuild_E1WithoutErrors(t *testing.T) {
	s := formation.Build("E1", e1Curriculum(), signals.Stats{}, signals.SourceNone)

	if len(s.Drops) != 3 {
		t.Fatalf("len(Drops) = %d, want 3", len(s.Drops))
	}
	for _, d := range s.Drops {
		switch d.Discipline {
		case "Math":
			// weight 10 -> priority 0.4 -> level 3
			if d.Level != 3 || d.Priority != 0.4 {
				t.Errorf("Math drop = level %d priority %v, want 3/0.4", d.Level, d.Priority)
			}
		case "Law":
			// weight 8 -> priority 0.32 -> level 2
			if d.Level != 2 {
				t.Errorf("Law drop level = %d, want 2", d.Level)
			}
		}
		if d.Origin != formation.Origin {
			t.Errorf("Origin = %q, want %q", d.Origin, formation.Origin)
		}
	}

	if len(s.Tracks) != 2 || len(s.Blocks) != 2 {
		t.Fatalf("tracks/blocks = %d/%d, want 2/2", len(s.Tracks), len(s.Blocks))
	}
	math := s.Tracks[0]
	if math.Name != "Math - L3" || math.SuggestedDropCount != 2 {
		t.Errorf("Math track = %+v", math)
	}
	// max(1, round(0.6*2 + 10)) = 11
	if math.SuggestedHours != 11 {
		t.Errorf("Math SuggestedHours = %d, want 11", math.SuggestedHours)
	}
	if s.Blocks[0].Name != "Math - Block L3" || s.Blocks[0].ID == math.ID {
		t.Errorf("Math block = %+v, want separate id namespace", s.Blocks[0])
	}

	if len(s.Modules) != 1 || s.Modules[0].Name != "Base" || len(s.Modules[0].TrackIDs) != 2 {
		t.Errorf("Modules = %+v, want one Base module over both tracks", s.Modules)
	}
	if s.Summary.Personalization.Source != signals.SourceNone {
		t.Errorf("Personalization.Source = %q, want none", s.Summary.Personalization.Source)
	}
	if s.Summary.Disciplines != 2 || s.Summary.Drops != 3 {
		t.Errorf("Summary = %+v", s.Summary)
	}
}

func TestBuild_ErrorsRaisePriority(t *testing.T) {
	stats := signals.Stats{
		"math::algebra": {TopicKey: "math::algebra", WrongCount: 3, TotalCount: 3},
		"contracts":     {TopicKey: "contracts", WrongCount: 1, TotalCount: 2},
	}
	s := formation.Build("E1", e1Curriculum(), stats, signals.SourceAssessments)

	if s.Drops[0].Subtopic != "Algebra" || s.Drops[0].Level != 5 {
		t.Errorf("first Math drop = %+v, want Algebra at level 5", s.Drops[0])
	}
	if s.Drops[1].Subtopic != "Fractions" {
		t.Errorf("second Math drop = %q, want Fractions", s.Drops[1].Subtopic)
	}
	// Law: 0.4*0.8 + 0.6*0.5 = 0.62 via the bare subtopic key.
	law := s.Drops[2]
	if law.Level != 4 {
		t.Errorf("Law drop level = %d, want 4 (priority %v)", law.Level, law.Priority)
	}

	p := s.Summary.Personalization
	if p.TotalErrors != 4 || p.TotalQuestions != 5 || p.Source != signals.SourceAssessments {
		t.Errorf("Personalization = %+v, want 4/5 assessments", p)
	}
}

func TestBuild_DeterministicIDs(t *testing.T) {
	a := formation.Build("E1", e1Curriculum(), nil, signals.SourceNone)
	b := formation.Build("E1", e1Curriculum(), nil, signals.SourceNone)
	other := formation.Build("E2", e1Curriculum(), nil, signals.SourceNone)

	for i := range a.Drops {
		if a.Drops[i].ID != b.Drops[i].ID {
			t.Errorf("drop %d id differs across builds: %s vs %s", i, a.Drops[i].ID, b.Drops[i].ID)
		}
		if a.Drops[i].ID == other.Drops[i].ID {
			t.Errorf("drop %d id does not depend on exam id", i)
		}
		if !strings.HasPrefix(a.Drops[i].ID, "drop_") || len(a.Drops[i].ID) != len("drop_")+12 {
			t.Errorf("drop id %q, want drop_<12 hex>", a.Drops[i].ID)
		}
	}
	for i := range a.Tracks {
		if a.Tracks[i].ID != b.Tracks[i].ID {
			t.Errorf("track %d id differs across builds", i)
		}
	}
}

func TestBuild_JobRoleModules(t *testing.T) {
	c := e1Curriculum()
	c.JobRoles = []curriculum.JobRole{{Name: "Analyst"}, {Name: "  "}}

	s := formation.Build("E1", c, nil, signals.SourceNone)
	if len(s.Modules) != 2 {
		t.Fatalf("len(Modules) = %d, want 2", len(s.Modules))
	}
	if s.Modules[0].Name != "Analyst" || s.Modules[0].JobRoles[0] != "Analyst" {
		t.Errorf("Modules[0] = %+v", s.Modules[0])
	}
	if s.Modules[1].Name != "Role 2" {
		t.Errorf("Modules[1].Name = %q, want Role 2", s.Modules[1].Name)
	}
	if len(s.Modules[1].TrackIDs) != len(s.Tracks) {
		t.Errorf("Modules[1] has %d tracks, want all %d", len(s.Modules[1].TrackIDs), len(s.Tracks))
	}
}

func TestBuild_SynthesizedDisciplinesAndDefaultSubtopic(t *testing.T) {
	c := &curriculum.Curriculum{
		ID: "E3",
		ProgramContent: curriculum.Map(
			curriculum.Entry("History", curriculum.List(curriculum.Text("Empire"), curriculum.Text("empire"), curriculum.Text("Republic"))),
			curriculum.Entry("Ethics", curriculum.Map()),
		),
	}

	s := formation.Build("E3", c, nil, signals.SourceNone)
	if s.Summary.Disciplines != 2 {
		t.Fatalf("Disciplines = %d, want 2 synthesized from content keys", s.Summary.Disciplines)
	}

	var got []string
	for _, d := range s.Drops {
		got = append(got, d.Discipline+"/"+d.Subtopic)
	}
	want := []string{"History/Empire", "History/Republic", "Ethics/" + curriculum.DefaultSubtopic}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("drops = %v, want %v", got, want)
	}
	// Default weight 5 -> priority 0.2 -> level 2.
	if s.Drops[0].Level != 2 {
		t.Errorf("default-weight level = %d, want 2", s.Drops[0].Level)
	}
}
