package app

import "quiz-attempt-service/internal/domain"

// Redact hides the answer key from callers who neither created the quiz nor administer the
// platform. The input quiz is never modified.
func Redact(quiz domain.Quiz, principal domain.Principal) domain.Quiz {
	if principal.IsAdmin() || quiz.OwnedBy(principal.UserID) {
		return quiz
	}
	out := quiz.Clone()
	for i := range out.Questions {
		out.Questions[i].CorrectOptions = nil
	}
	return out
}

// RedactAll applies Redact to every quiz.
func RedactAll(quizzes []domain.Quiz, principal domain.Principal) []domain.Quiz {
	out := make([]domain.Quiz, 0, len(quizzes))
	for _, quiz := range quizzes {
		out = append(out, Redact(quiz, principal))
	}
	return out
}
