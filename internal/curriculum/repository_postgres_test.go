package curriculum_test

import (
	"errors"
	"testing"

	"github.com/p-n-ai/pai-planner/internal/curriculum"
	"github.com/p-n-ai/pai-planner/internal/platform/apperr"
	"github.com/p-n-ai/pai-planner/internal/platform/database/dbtest"
)

func TestPostgresRepository_FindByID(t *testing.T) {
	pool := dbtest.NewPool(t)
	ctx := t.Context()

	_, err := pool.Exec(ctx,
		`INSERT INTO exam_notices (id, code, title, exam_board, disciplines, program_content, exam_date, job_roles, updated_at)
		 VALUES
		   ('E1', 'TJ-24', 'Tribunal Analyst 2024', 'FGV', $1::jsonb, $2::jsonb, '2024-03-05', $3::jsonb, '2023-12-01T00:00:00Z'),
		   ('E2', NULL, NULL, NULL, NULL, $4::jsonb, NULL, NULL, NULL),
		   ('E3', NULL, NULL, NULL, $5::jsonb, NULL, NULL, NULL, NULL)`,
		`[{"name": "Math", "question_count": 40}, {"name": "Law", "weight": 8, "topics": ["Contracts", {"name": "Constitutional", "subtopics": ["Rights"]}]}]`,
		`{"Math": {"Sets": 3, "Algebra": {}, "Geometry": {"subtopicos": ["Angles"]}}}`,
		`[{"name": "Analyst"}]`,
		`{"Ethics": {}, "History": ["Empire"]}`,
		`[{"weight": 3}]`,
	)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	repo, err := curriculum.NewPostgresRepository(pool)
	if err != nil {
		t.Fatalf("NewPostgresRepository() error = %v", err)
	}

	// jsonb keeps shorter object keys first, so the seeds list keys in that order.
	t.Run("found", func(t *testing.T) {
		c, err := repo.FindByID(ctx, "E1")
		if err != nil {
			t.Fatalf("FindByID(E1) error = %v", err)
		}
		if c.Code != "TJ-24" || c.ExamBoard != "FGV" || c.ExamDate != "2024-03-05" {
			t.Errorf("curriculum = %q/%q/%q, want TJ-24/FGV/2024-03-05", c.Code, c.ExamBoard, c.ExamDate)
		}
		if c.UpdatedAt.IsZero() || c.CreatedAt.IsZero() {
			t.Errorf("timestamps = %v / %v, want both set", c.CreatedAt, c.UpdatedAt)
		}
		if len(c.Disciplines) != 2 || c.Disciplines[0].ResolvedWeight() != 10 {
			t.Fatalf("Disciplines = %+v, want Math with weight 10 and Law", c.Disciplines)
		}
		if len(c.JobRoles) != 1 || c.JobRoles[0].Name != "Analyst" {
			t.Errorf("JobRoles = %+v, want [Analyst]", c.JobRoles)
		}

		if got, want := curriculum.Subtopics(c.Disciplines[0], c.ProgramContent), []string{"Sets", "Algebra", "Angles"}; !equalStrings(got, want) {
			t.Errorf("Math subtopics = %v, want %v", got, want)
		}
		if got, want := curriculum.Subtopics(c.Disciplines[1], c.ProgramContent), []string{"Contracts", "Constitutional", "Rights"}; !equalStrings(got, want) {
			t.Errorf("Law subtopics = %v, want %v", got, want)
		}
	})

	t.Run("nullable columns", func(t *testing.T) {
		c, err := repo.FindByID(ctx, "E2")
		if err != nil {
			t.Fatalf("FindByID(E2) error = %v", err)
		}
		if c.ExamDate != "" || len(c.Disciplines) != 0 {
			t.Errorf("curriculum = %+v, want no exam date or disciplines", c)
		}
		var names []string
		for _, d := range c.ResolvedDisciplines() {
			names = append(names, d.Name)
		}
		if want := []string{"Ethics", "History"}; !equalStrings(names, want) {
			t.Errorf("ResolvedDisciplines() = %v, want %v", names, want)
		}
	})

	t.Run("not found", func(t *testing.T) {
		if _, err := repo.FindByID(ctx, "E9"); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("FindByID(E9) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("schema violation", func(t *testing.T) {
		if _, err := repo.FindByID(ctx, "E3"); !errors.Is(err, apperr.ErrInvalidArgument) {
			t.Errorf("FindByID(E3) error = %v, want ErrInvalidArgument", err)
		}
	})
}
