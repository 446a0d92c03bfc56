package app

import (
	"slices"

	"quiz-attempt-service/internal/domain"
)

// Grade reports whether selected matches the question's correct set (order and
// duplicates ignored) and the points earned. A question without an answer key never
// awards points.
func Grade(question domain.Question, selected []int) (bool, int) {
	correct := normalize(question.CorrectOptions)
	if len(correct) == 0 {
		return false, 0
	}
	if !slices.Equal(normalize(selected), correct) {
		return false, 0
	}
	return true, question.Points
}

// GradeAttempt grades every answer against the quiz and sums the earned points.
// Answers whose question index is out of range are dropped.
func GradeAttempt(quiz domain.Quiz, answers []domain.Answer) ([]domain.Answer, int) {
	graded := make([]domain.Answer, 0, len(answers))
	total := 0
	for _, answer := range answers {
		if answer.QuestionIndex < 0 || answer.QuestionIndex >= len(quiz.Questions) {
			continue
		}
		correct, points := Grade(quiz.Questions[answer.QuestionIndex], answer.SelectedOptions)
		graded = append(graded, domain.Answer{
			QuestionIndex:   answer.QuestionIndex,
			SelectedOptions: normalize(answer.SelectedOptions),
			EarnedPoints:    points,
			IsCorrect:       correct,
		})
		total += points
	}
	return graded, total
}

// normalize returns a sorted, de-duplicated copy; never nil.
func normalize(indices []int) []int {
	out := append([]int{}, indices...)
	slices.Sort(out)
	return slices.Compact(out)
}

// seedAnswers returns one empty selection per question.
func seedAnswers(questions int) []domain.Answer {
	answers := make([]domain.Answer, questions)
	for i := range answers {
		answers[i] = domain.Answer{QuestionIndex: i, SelectedOptions: []int{}}
	}
	return answers
}

// mergeSubmissions lays submissions over empty seeds for a quiz of n questions.
// Out-of-range indices are ignored and the last submission for an index wins.
func mergeSubmissions(n int, submissions []domain.AnswerSubmission) []domain.Answer {
	answers := seedAnswers(n)
	for _, sub := range submissions {
		if sub.QuestionIndex < 0 || sub.QuestionIndex >= n {
			continue
		}
		answers[sub.QuestionIndex].SelectedOptions = append([]int{}, sub.SelectedOptions...)
	}
	return answers
}
