// Package export renders attempt reports as spreadsheets.
package export

import (
	"fmt"
	"io"
	"time"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Attempts"

var headers = []any{"Student", "Email", "State", "Score", "Max Score", "Started At", "Submitted At", "Duration (s)"}

// XLSX writes one row per attempt to a single-sheet workbook.
type XLSX struct{}

func NewXLSX() XLSX { return XLSX{} }

const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (XLSX) ContentType() string { return ContentType }

func (XLSX) Export(w io.Writer, quiz domain.Quiz, rows []app.AttemptRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetDocProps(&excelize.DocProperties{Title: quiz.Title, Creator: "quiz-attempt-service"}); err != nil {
		return fmt.Errorf("set doc props: %w", err)
	}
	if err := f.SetSheetRow(sheetName, "A1", &headers); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(sheetName, "A1", last, bold); err != nil {
		return fmt.Errorf("apply header style: %w", err)
	}

	maxScore := 0
	for _, q := range quiz.Questions {
		maxScore += q.Points
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []any{
			row.StudentName,
			row.StudentEmail,
			string(row.State()),
			row.TotalScore,
			maxScore,
			row.StartedAt.UTC().Format(time.RFC3339),
		}
		if row.SubmittedAt != nil {
			values = append(values, row.SubmittedAt.UTC().Format(time.RFC3339), row.DurationSeconds)
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
