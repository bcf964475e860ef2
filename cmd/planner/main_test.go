package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-planner/internal/formation"
	"github.com/p-n-ai/pai-planner/internal/platform/apperr"
	"github.com/p-n-ai/pai-planner/internal/schedule"
)

func setupEnv(t *testing.T, driver string) {
	t.Helper()
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "e1.yaml"), []byte(`
id: E1
exam_board: FGV
exam_date: "2024-03-05"
updated_at: 2023-12-01T00:00:00Z
disciplines:
  - name: Math
    question_count: 40
    topics: [Fractions, Algebra]
  - name: Law
    weight: 8
    topics: [Contracts]
`), 0o644)
	if err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	t.Setenv("LEARN_DATABASE_DRIVER", driver)
	t.Setenv("LEARN_DATABASE_SQLITE_DSN", "file:"+filepath.Join(dir, "planner.db")+"?mode=rwc")
	t.Setenv("LEARN_CURRICULUM_PATH", dir)
	t.Setenv("LEARN_CACHE_ENABLED", "false")
	t.Setenv("LEARN_SCHEDULE_TIMEZONE", "UTC")
	t.Setenv("LEARN_LOG_LEVEL", "error")
}

func TestRun_Formation(t *testing.T) {
	setupEnv(t, "memory")

	var out bytes.Buffer
	if err := run(t.Context(), []string{"formation", "-exam", "E1", "-user", "u1"}, &out); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	var rec formation.Record
	if err := json.Unmarshal(out.Bytes(), &rec); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if rec.Version != 1 || len(rec.Payload.Drops) != 3 {
		t.Errorf("record = version %d with %d drops, want 1 with 3", rec.Version, len(rec.Payload.Drops))
	}
}

func TestRun_FormationHistorySQLite(t *testing.T) {
	setupEnv(t, "sqlite")

	for range 2 {
		if err := run(t.Context(), []string{"formation", "-exam", "E1", "-user", "u1", "-force"}, &bytes.Buffer{}); err != nil {
			t.Fatalf("run(formation -force) error = %v", err)
		}
	}

	var out bytes.Buffer
	if err := run(t.Context(), []string{"formation", "-exam", "E1", "-user", "u1", "-history"}, &out); err != nil {
		t.Fatalf("run(formation -history) error = %v", err)
	}
	var snaps []formation.Snapshot
	if err := json.Unmarshal(out.Bytes(), &snaps); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(snaps) != 2 || snaps[0].Version != 1 || snaps[1].Version != 2 {
		t.Errorf("history = %+v, want versions 1 and 2", snaps)
	}
}

func TestRun_ScheduleJSON(t *testing.T) {
	setupEnv(t, "memory")

	var out bytes.Buffer
	args := []string{"schedule", "-exam", "E1", "-user", "u1", "-start", "2024-01-01"}
	if err := run(t.Context(), args, &out); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	var r schedule.Result
	if err := json.Unmarshal(out.Bytes(), &r); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if r.Summary.DaysAvailable != 63 || r.Summary.PhaseDayCounts.Final != 9 {
		t.Errorf("summary = %+v, want 63 days with 9 final", r.Summary)
	}
}

func TestRun_ScheduleXLSXFile(t *testing.T) {
	setupEnv(t, "memory")
	path := filepath.Join(t.TempDir(), "plan.xlsx")

	args := []string{"schedule", "-exam", "E1", "-user", "u1", "-start", "2024-01-01", "-format", "xlsx", "-out", path}
	if err := run(t.Context(), args, &bytes.Buffer{}); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	wb, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	defer wb.Close()
	if sheets := wb.GetSheetList(); len(sheets) != 2 || sheets[0] != "Summary" || sheets[1] != "Days" {
		t.Errorf("sheets = %v, want [Summary Days]", sheets)
	}
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		want     error
		wantCode int
	}{
		{"no command", nil, apperr.ErrInvalidArgument, 2},
		{"unknown command", []string{"teach"}, apperr.ErrInvalidArgument, 2},
		{"missing exam", []string{"formation", "-user", "u1"}, apperr.ErrInvalidArgument, 2},
		{"bad format", []string{"schedule", "-exam", "E1", "-format", "csv"}, apperr.ErrInvalidArgument, 2},
		{"bad start", []string{"schedule", "-exam", "E1", "-start", "tomorrow"}, apperr.ErrInvalidArgument, 2},
		{"unknown exam", []string{"schedule", "-exam", "E9", "-start", "2024-01-01"}, apperr.ErrNotFound, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupEnv(t, "memory")
			err := run(t.Context(), tt.args, &bytes.Buffer{})
			if !errors.Is(err, tt.want) {
				t.Fatalf("run() error = %v, want %v", err, tt.want)
			}
			if got := exitCode(err); got != tt.wantCode {
				t.Errorf("exitCode() = %d, want %d", got, tt.wantCode)
			}
		})
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	setupEnv(t, "memory")
	t.Setenv("LEARN_SCHEDULE_COVERAGE_RATIO", "1.5")

	err := run(t.Context(), []string{"schedule", "-exam", "E1"}, &bytes.Buffer{})
	if !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("run() error = %v, want ErrInvalidArgument", err)
	}
}

type failingCloser struct {
	bytes.Buffer
	err error
}

func (f *failingCloser) Close() error { return f.err }

func TestWriteAndClose(t *testing.T) {
	result := &schedule.Result{Days: []schedule.Day{}}
	errDisk := errors.New("disk full")

	tests := []struct {
		name     string
		format   string
		closeErr error
		wantErr  bool
	}{
		{"json", "json", nil, false},
		{"xlsx", "xlsx", nil, false},
		{"json close fails", "json", errDisk, true},
		{"xlsx close fails", "xlsx", errDisk, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &failingCloser{err: tt.closeErr}
			err := writeAndClose(w, "plan.out", tt.format, result)
			if (err != nil) != tt.wantErr {
				t.Fatalf("writeAndClose() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, errDisk) {
				t.Errorf("writeAndClose() error = %v, want wrapped %v", err, errDisk)
			}
			if w.Len() == 0 {
				t.Error("writeAndClose() wrote nothing")
			}
		})
	}
}

func TestRun_ScheduleUnwritableOut(t *testing.T) {
	setupEnv(t, "memory")
	path := filepath.Join(t.TempDir(), "missing", "plan.json")

	args := []string{"schedule", "-exam", "E1", "-user", "u1", "-start", "2024-01-01", "-out", path}
	if err := run(t.Context(), args, &bytes.Buffer{}); err == nil {
		t.Error("run() with an unwritable -out should fail")
	}
}
