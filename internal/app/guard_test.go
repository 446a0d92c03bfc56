package app_test

import (
	"encoding/json"
	"testing"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keyedQuiz() domain.Quiz {
	return domain.Quiz{
		ID:        "quiz-1",
		CreatorID: author.UserID,
		Questions: []domain.Question{
			{Text: "q0", Options: []domain.Option{{Text: "a"}, {Text: "b"}}, CorrectOptions: []int{1}, Points: 1},
			{Text: "q1", Options: []domain.Option{{Text: "a"}, {Text: "b"}}, CorrectOptions: []int{0, 1}, Points: 2},
		},
	}
}

func TestRedactHidesKeyFromOthers(t *testing.T) {
	quiz := keyedQuiz()

	redacted := app.Redact(quiz, student)
	for i, q := range redacted.Questions {
		assert.Nil(t, q.CorrectOptions, "question %d", i)
	}
	assert.Equal(t, []int{1}, quiz.Questions[0].CorrectOptions, "input must stay intact")

	raw, err := json.Marshal(redacted)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "correctOptions")
}

func TestRedactKeepsKeyForCreatorAndAdmin(t *testing.T) {
	quiz := keyedQuiz()
	for _, p := range []domain.Principal{author, admin} {
		out := app.Redact(quiz, p)
		assert.Equal(t, []int{0, 1}, out.Questions[1].CorrectOptions, "principal %s", p.UserID)

		raw, err := json.Marshal(out)
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"correctOptions":[1]`)
	}
}

func TestRedactAll(t *testing.T) {
	mine := keyedQuiz()
	theirs := keyedQuiz()
	theirs.CreatorID = "someone-else"

	out := app.RedactAll([]domain.Quiz{mine, theirs}, author)
	assert.NotNil(t, out[0].Questions[0].CorrectOptions)
	assert.Nil(t, out[1].Questions[0].CorrectOptions)
}
