package schedule

import (
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"
)

const (
	summarySheet = "Summary"
	daysSheet    = "Days"
)

var daysHeader = []any{"Date", "Phase", "Type", "Discipline", "Topic", "Subtopic", "Level", "Priority", "Minutes", "Synthetic"}

// WriteXLSX renders result as a workbook with a Summary sheet of key/value
// rows and a Days sheet with one row per item.
func WriteXLSX(w io.Writer, result *Result) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(daysSheet); err != nil {
		return fmt.Errorf("create days sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	s := result.Summary
	summaryRows := [][]any{
		{"Exam", s.ExamID},
		{"User", s.UserID},
		{"Exam board", s.ExamBoard},
		{"Exam date", s.ExamDate},
		{"Start date", s.StartDate},
		{"Formation version", s.FormationVersion},
		{"Days available", s.DaysAvailable},
		{"Coverage days", s.PhaseDayCounts.Coverage},
		{"Consolidation days", s.PhaseDayCounts.Consolidation},
		{"Final days", s.PhaseDayCounts.Final},
		{"Total topics", s.TotalTopics},
		{"Remaining topics", s.RemainingTopics},
		{"Completed topics", s.CompletedTopics},
		{"Scheduled topics", s.ScheduledTopics},
		{"Total minutes", s.TotalMinutes},
		{"Min minutes per day", s.MinMinutesPerDay},
		{"Review intervals", fmt.Sprint(s.ReviewIntervals)},
		{"Fallback to full plan", s.FallbackToFullPlan},
	}
	for i, row := range summaryRows {
		if err := setRow(f, summarySheet, i+1, row); err != nil {
			return err
		}
	}
	if err := f.SetColStyle(summarySheet, "A", bold); err != nil {
		return fmt.Errorf("style summary: %w", err)
	}
	if err := f.SetColWidth(summarySheet, "A", "A", 24); err != nil {
		return fmt.Errorf("size summary: %w", err)
	}

	if err := setRow(f, daysSheet, 1, daysHeader); err != nil {
		return err
	}
	if err := f.SetRowStyle(daysSheet, 1, 1, bold); err != nil {
		return fmt.Errorf("style days header: %w", err)
	}
	row := 2
	for _, d := range result.Days {
		for _, it := range d.Items {
			synthetic := ""
			if it.Synthetic {
				synthetic = "yes"
			}
			values := []any{
				d.Date, string(d.Phase), string(it.Type),
				it.Discipline, it.Topic, it.Subtopic,
				it.Level, strconv.FormatFloat(it.Priority, 'f', 3, 64), it.Minutes, synthetic,
			}
			if err := setRow(f, daysSheet, row, values); err != nil {
				return err
			}
			row++
		}
	}
	if err := f.SetColWidth(daysSheet, "A", "F", 16); err != nil {
		return fmt.Errorf("size days: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}
