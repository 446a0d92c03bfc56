package export

import (
	"bytes"
	"testing"
	"time"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExportWritesOneRowPerAttempt(t *testing.T) {
	started := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	submitted := started.Add(90 * time.Second)
	quiz := domain.Quiz{
		ID:    "q1",
		Title: "Capitals",
		Questions: []domain.Question{
			{Text: "France", Points: 5},
			{Text: "Japan", Points: 3},
		},
	}
	rows := []app.AttemptRow{
		{
			Attempt:      domain.Attempt{ID: "a1", TotalScore: 5, StartedAt: started, SubmittedAt: &submitted, DurationSeconds: 90},
			StudentName:  "Ana",
			StudentEmail: "ana@example.com",
		},
		{
			Attempt:      domain.Attempt{ID: "a2", StartedAt: started},
			StudentName:  "Bo",
			StudentEmail: "bo@example.com",
		},
	}

	var buf bytes.Buffer
	require.NoError(t, NewXLSX().Export(&buf, quiz, rows))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{sheetName}, f.GetSheetList())
	got, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "Student", got[0][0])
	assert.Equal(t, []string{"Ana", "ana@example.com", "submitted", "5", "8", "2024-03-01T10:00:00Z", "2024-03-01T10:01:30Z", "90"}, got[1])
	assert.Equal(t, []string{"Bo", "bo@example.com", "in-progress", "0", "8", "2024-03-01T10:00:00Z"}, got[2])
}

func TestExportEmptyReportHasHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewXLSX().Export(&buf, domain.Quiz{Title: "Empty"}, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Len(t, got[0], len(headers))
}
