package curriculum

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultWeight is used when a discipline declares neither a weight nor a question count.
const DefaultWeight = 5

// Curriculum represents an exam notice: the disciplines it covers, its program
// content and the expected exam date.
type Curriculum struct {
	ID             string       `yaml:"id" json:"id"`
	Code           string       `yaml:"code" json:"code,omitempty"`
	Title          string       `yaml:"title" json:"title,omitempty"`
	ExamBoard      string       `yaml:"exam_board" json:"exam_board,omitempty"`
	Disciplines    []Discipline `yaml:"disciplines" json:"disciplines"`
	ProgramContent ContentNode  `yaml:"program_content" json:"program_content"`
	ExamDate       string       `yaml:"exam_date" json:"exam_date,omitempty"`
	JobRoles       []JobRole    `yaml:"job_roles" json:"job_roles,omitempty"`
	CreatedAt      time.Time    `yaml:"created_at" json:"created_at"`
	UpdatedAt      time.Time    `yaml:"updated_at" json:"updated_at"`
}

// Discipline is one subject of the exam.
type Discipline struct {
	Name          string       `yaml:"name" json:"name"`
	Weight        float64      `yaml:"weight" json:"weight,omitempty"`
	QuestionCount int          `yaml:"question_count" json:"question_count,omitempty"`
	Topics        []TopicEntry `yaml:"topics" json:"topics,omitempty"`
}

// JobRole is a position the exam recruits for.
type JobRole struct {
	Name string `yaml:"name" json:"name"`
}

// TopicEntry is an explicit topic declared on a discipline. It is written
// either as a plain string or as {name, subtopics}.
type TopicEntry struct {
	Name      string
	Subtopics []TopicEntry
}

// LastModified returns UpdatedAt, falling back to CreatedAt.
func (c *Curriculum) LastModified() time.Time {
	if !c.UpdatedAt.IsZero() {
		return c.UpdatedAt
	}
	return c.CreatedAt
}

// ResolvedDisciplines returns the declared disciplines, or one discipline per
// top-level program content key when none are declared.
func (c *Curriculum) ResolvedDisciplines() []Discipline {
	if len(c.Disciplines) > 0 {
		return c.Disciplines
	}
	keys := c.ProgramContent.Keys()
	out := make([]Discipline, 0, len(keys))
	for _, k := range keys {
		out = append(out, Discipline{Name: k})
	}
	return out
}

// ParsedExamDate returns the exam date as a UTC calendar day.
func (c *Curriculum) ParsedExamDate() (time.Time, bool) {
	return ParseDay(c.ExamDate)
}

// ParseDay parses "2006-01-02" or an RFC 3339 timestamp and truncates it to
// midnight UTC of the same calendar day.
func ParseDay(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339Nano, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// ResolvedWeight returns the explicit weight when positive, else
// round(questionCount/4) clamped to [1,10], else DefaultWeight.
func (d Discipline) ResolvedWeight() float64 {
	if d.Weight > 0 {
		return d.Weight
	}
	if d.QuestionCount > 0 {
		w := math.Round(float64(d.QuestionCount) / 4)
		return math.Min(10, math.Max(1, w))
	}
	return DefaultWeight
}

func (t TopicEntry) flatten() []string {
	var out []string
	if name := strings.TrimSpace(t.Name); name != "" {
		out = append(out, name)
	}
	for _, sub := range t.Subtopics {
		out = append(out, sub.flatten()...)
	}
	return out
}

type topicEntryFields struct {
	Name      string       `yaml:"name" json:"name"`
	Subtopics []TopicEntry `yaml:"subtopics" json:"subtopics"`
}

func (t *TopicEntry) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		t.Name = value.Value
		t.Subtopics = nil
		return nil
	}
	var f topicEntryFields
	if err := value.Decode(&f); err != nil {
		return fmt.Errorf("decode topic entry: %w", err)
	}
	t.Name, t.Subtopics = f.Name, f.Subtopics
	return nil
}

func (t *TopicEntry) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		t.Name = name
		t.Subtopics = nil
		return nil
	}
	var f topicEntryFields
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("decode topic entry: %w", err)
	}
	t.Name, t.Subtopics = f.Name, f.Subtopics
	return nil
}
