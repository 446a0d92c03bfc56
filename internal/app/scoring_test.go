package app_test

import (
	"testing"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestGradeIgnoresOrderAndDuplicates(t *testing.T) {
	q := domain.Question{Options: make([]domain.Option, 3), CorrectOptions: []int{0, 1}, Points: 4}

	for _, selected := range [][]int{{1, 0}, {0, 1}, {0, 0, 1}, {1, 1, 0, 0}} {
		correct, points := app.Grade(q, selected)
		assert.True(t, correct, "selection %v", selected)
		assert.Equal(t, 4, points, "selection %v", selected)
	}
	for _, selected := range [][]int{{0}, {0, 1, 2}, {}, nil, {2}} {
		correct, points := app.Grade(q, selected)
		assert.False(t, correct, "selection %v", selected)
		assert.Zero(t, points, "selection %v", selected)
	}
}

func TestGradeWithoutKeyNeverAwards(t *testing.T) {
	correct, points := app.Grade(domain.Question{Points: 3}, nil)
	assert.False(t, correct)
	assert.Zero(t, points)
}

func TestGradeAttemptSkipsOutOfRange(t *testing.T) {
	quiz := domain.Quiz{Questions: []domain.Question{
		{CorrectOptions: []int{1}, Points: 2},
		{CorrectOptions: []int{0}, Points: 3},
	}}
	answers := []domain.Answer{
		{QuestionIndex: 0, SelectedOptions: []int{1}},
		{QuestionIndex: 1, SelectedOptions: []int{1}},
		{QuestionIndex: 7, SelectedOptions: []int{0}},
		{QuestionIndex: -1, SelectedOptions: []int{0}},
	}

	graded, total := app.GradeAttempt(quiz, answers)
	assert.Equal(t, 2, total)
	assert.Len(t, graded, 2)
	assert.Equal(t, domain.Answer{QuestionIndex: 0, SelectedOptions: []int{1}, EarnedPoints: 2, IsCorrect: true}, graded[0])
	assert.Equal(t, domain.Answer{QuestionIndex: 1, SelectedOptions: []int{1}, EarnedPoints: 0, IsCorrect: false}, graded[1])

	again, totalAgain := app.GradeAttempt(quiz, answers)
	assert.Equal(t, graded, again)
	assert.Equal(t, total, totalAgain)
}
