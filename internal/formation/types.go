// Package formation turns an exam curriculum into a prioritized hierarchy of
// drops, tracks, blocks and modules, and versions the result per learner.
package formation

import (
	"time"

	"github.com/p-n-ai/pai-planner/internal/signals"
)

// Origin marks drops produced by the structurer.
const Origin = "auto_formation"

// StatusActive is the status of the current record for an (exam, user) pair.
const StatusActive = "active"

// Drop is the smallest schedulable learning unit.
type Drop struct {
	ID         string  `json:"id"`
	Discipline string  `json:"discipline"`
	Subtopic   string  `json:"subtopic"`
	Level      int     `json:"level"`
	Priority   float64 `json:"priority"`
	Origin     string  `json:"origin"`
}

// Track is an ordered bundle of drops for one discipline at one level.
type Track struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Discipline         string   `json:"discipline"`
	Level              int      `json:"level"`
	DropIDs            []string `json:"drop_ids"`
	SuggestedHours     int      `json:"suggested_hours"`
	SuggestedDropCount int      `json:"suggested_drop_count"`
}

// Block groups the same drops as its Track for packaging.
type Block struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Discipline string   `json:"discipline"`
	Level      int      `json:"level"`
	DropIDs    []string `json:"drop_ids"`
}

// Module is a top-level grouping of tracks, usually one per job role.
type Module struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	TrackIDs []string `json:"track_ids"`
	JobRoles []string `json:"job_roles,omitempty"`
}

// Personalization summarizes the error evidence that shaped priorities.
type Personalization struct {
	TotalErrors    int            `json:"total_errors"`
	TotalQuestions int            `json:"total_questions"`
	Source         signals.Source `json:"source"`
}

// Summary holds payload totals.
type Summary struct {
	Disciplines     int             `json:"disciplines"`
	Tracks          int             `json:"tracks"`
	Blocks          int             `json:"blocks"`
	Drops           int             `json:"drops"`
	Subtopics       int             `json:"subtopics"`
	Personalization Personalization `json:"personalization"`
}

// Signals records the inputs behind the source hash.
type Signals struct {
	SourceHash          string     `json:"source_hash"`
	CurriculumUpdatedAt *time.Time `json:"curriculum_updated_at,omitempty"`
	LastAssessmentAt    *time.Time `json:"last_assessment_at,omitempty"`
}

// Payload is the generated formation stored on a Record.
type Payload struct {
	ExamID      string    `json:"exam_id"`
	UserID      string    `json:"user_id"`
	Version     int       `json:"version"`
	GeneratedAt time.Time `json:"generated_at"`
	ExamBoard   string    `json:"exam_board,omitempty"`
	Modules     []Module  `json:"modules"`
	Tracks      []Track   `json:"tracks"`
	Blocks      []Block   `json:"blocks"`
	Drops       []Drop    `json:"drops"`
	Summary     Summary   `json:"summary"`
	Signals     Signals   `json:"signals"`
}

// Record is the active, versioned formation for one (exam, user) pair.
type Record struct {
	ID         string    `json:"id"`
	ExamID     string    `json:"exam_id"`
	UserID     string    `json:"user_id"`
	Version    int       `json:"version"`
	SourceHash string    `json:"source_hash"`
	Status     string    `json:"status"`
	Payload    Payload   `json:"payload"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Snapshot is an immutable history entry for one version.
type Snapshot struct {
	FormationID string    `json:"formation_id"`
	Version     int       `json:"version"`
	SourceHash  string    `json:"source_hash"`
	Payload     Payload   `json:"payload"`
	CreatedAt   time.Time `json:"created_at"`
}
