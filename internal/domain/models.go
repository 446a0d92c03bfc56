package domain

import (
	"encoding/json"
	"time"
)

// Role is the coarse permission level carried in every credential.
type Role string

const (
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
	RoleAdmin      Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleInstructor, RoleAdmin:
		return true
	}
	return false
}

// User is a registered account. PasswordHash never leaves the service.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Principal is the authenticated caller resolved from a bearer credential.
type Principal struct {
	UserID string
	Role   Role
}

// IsAdmin reports whether the caller holds the admin role.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// Option is a possible answer for a question; only its text is stored.
type Option struct {
	Text string `json:"text"`
}

// Question is identified by its position inside Quiz.Questions.
// A nil CorrectOptions means the answer key has been hidden from the caller.
type Question struct {
	Text           string   `json:"text"`
	Options        []Option `json:"options"`
	CorrectOptions []int    `json:"correctOptions"`
	Points         int      `json:"points"`
	Image          string   `json:"image,omitempty"`
}

type questionJSON Question

// MarshalJSON drops the correctOptions key when the answer key is hidden,
// so a redacted question is distinguishable from one with an empty key.
func (q Question) MarshalJSON() ([]byte, error) {
	if q.CorrectOptions != nil {
		return json.Marshal(questionJSON(q))
	}
	return json.Marshal(struct {
		questionJSON
		CorrectOptions []int `json:"correctOptions,omitempty"`
	}{questionJSON: questionJSON(q)})
}

// Quiz is a published or draft collection of questions owned by its creator.
type Quiz struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	Date             string     `json:"date,omitempty"`
	Questions        []Question `json:"questions"`
	TimeLimitMinutes int        `json:"timeLimitMinutes"`
	CreatorID        string     `json:"creator"`
	IsPublished      bool       `json:"isPublished"`
	CreatedAt        time.Time  `json:"createdAt"`
}

// OwnedBy reports whether userID created the quiz.
func (q Quiz) OwnedBy(userID string) bool { return q.CreatorID == userID }

// Answer is one question's selection inside an attempt.
type Answer struct {
	QuestionIndex   int   `json:"questionIndex"`
	SelectedOptions []int `json:"selectedOptions"`
	EarnedPoints    int   `json:"earnedPoints"`
	IsCorrect       bool  `json:"isCorrect"`
}

// AttemptState is derived from SubmittedAt; SUBMITTED is terminal.
type AttemptState string

const (
	AttemptInProgress AttemptState = "in-progress"
	AttemptSubmitted  AttemptState = "submitted"
)

// Attempt is one user's single pass at a quiz.
type Attempt struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user"`
	QuizID          string     `json:"quiz"`
	Answers         []Answer   `json:"answers"`
	TotalScore      int        `json:"totalScore"`
	StartedAt       time.Time  `json:"startedAt"`
	SubmittedAt     *time.Time `json:"submittedAt,omitempty"`
	DurationSeconds int        `json:"durationSeconds,omitempty"`
}

// State reports the lifecycle state of the attempt.
func (a Attempt) State() AttemptState {
	if a.SubmittedAt != nil {
		return AttemptSubmitted
	}
	return AttemptInProgress
}

// AnswerSubmission is a client-provided selection for one question.
type AnswerSubmission struct {
	QuestionIndex   int   `json:"questionIndex"`
	SelectedOptions []int `json:"selectedOptions"`
}

// LeaderboardEntry is a ranked (display name, score) pair.
type LeaderboardEntry struct {
	UserID string `json:"-"`
	User   string `json:"user"`
	Score  int    `json:"score"`
}

// Leaderboard captures the ordered top scores for a quiz.
type Leaderboard struct {
	QuizID    string             `json:"quizId"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// Clone returns a copy of q that shares no slices with the original.
func (q Quiz) Clone() Quiz {
	out := q
	if q.Questions != nil {
		out.Questions = make([]Question, len(q.Questions))
		for i, question := range q.Questions {
			question.Options = append([]Option(nil), question.Options...)
			if question.CorrectOptions != nil {
				question.CorrectOptions = append([]int{}, question.CorrectOptions...)
			}
			out.Questions[i] = question
		}
	}
	return out
}

// Clone returns a copy of a that shares no slices or pointers with the original.
func (a Attempt) Clone() Attempt {
	out := a
	if a.Answers != nil {
		out.Answers = make([]Answer, len(a.Answers))
		for i, answer := range a.Answers {
			answer.SelectedOptions = append([]int{}, answer.SelectedOptions...)
			out.Answers[i] = answer
		}
	}
	if a.SubmittedAt != nil {
		submitted := *a.SubmittedAt
		out.SubmittedAt = &submitted
	}
	return out
}
