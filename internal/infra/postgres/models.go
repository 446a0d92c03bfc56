package postgres

import (
	"time"

	"quiz-attempt-service/internal/domain"

	"github.com/uptrace/bun"
)

type userRow struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           string      `bun:"id,pk"`
	Name         string      `bun:"name,notnull"`
	Email        string      `bun:"email,notnull"`
	PasswordHash string      `bun:"password_hash,notnull"`
	Role         domain.Role `bun:"role,notnull"`
	CreatedAt    time.Time   `bun:"created_at,notnull"`
}

func newUserRow(u domain.User) *userRow {
	return &userRow{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		CreatedAt:    u.CreatedAt,
	}
}

func (r userRow) toDomain() domain.User {
	return domain.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Role:         r.Role,
		CreatedAt:    r.CreatedAt,
	}
}

type quizRow struct {
	bun.BaseModel `bun:"table:quizzes,alias:q"`

	ID               string            `bun:"id,pk"`
	Title            string            `bun:"title,notnull"`
	Description      string            `bun:"description,notnull"`
	Date             string            `bun:"date,notnull"`
	Questions        []domain.Question `bun:"questions,type:jsonb,notnull"`
	TimeLimitMinutes int               `bun:"time_limit_minutes,notnull"`
	CreatorID        string            `bun:"creator_id,notnull"`
	IsPublished      bool              `bun:"is_published,notnull"`
	CreatedAt        time.Time         `bun:"created_at,notnull"`
}

func newQuizRow(q domain.Quiz) *quizRow {
	return &quizRow{
		ID:               q.ID,
		Title:            q.Title,
		Description:      q.Description,
		Date:             q.Date,
		Questions:        q.Questions,
		TimeLimitMinutes: q.TimeLimitMinutes,
		CreatorID:        q.CreatorID,
		IsPublished:      q.IsPublished,
		CreatedAt:        q.CreatedAt,
	}
}

func (r quizRow) toDomain() domain.Quiz {
	return domain.Quiz{
		ID:               r.ID,
		Title:            r.Title,
		Description:      r.Description,
		Date:             r.Date,
		Questions:        r.Questions,
		TimeLimitMinutes: r.TimeLimitMinutes,
		CreatorID:        r.CreatorID,
		IsPublished:      r.IsPublished,
		CreatedAt:        r.CreatedAt,
	}
}

type attemptRow struct {
	bun.BaseModel `bun:"table:attempts,alias:a"`

	ID              string          `bun:"id,pk"`
	UserID          string          `bun:"user_id,notnull"`
	QuizID          string          `bun:"quiz_id,notnull"`
	Answers         []domain.Answer `bun:"answers,type:jsonb,notnull"`
	TotalScore      int             `bun:"total_score,notnull"`
	StartedAt       time.Time       `bun:"started_at,notnull"`
	SubmittedAt     *time.Time      `bun:"submitted_at"`
	DurationSeconds int             `bun:"duration_seconds,notnull"`
}

func newAttemptRow(a domain.Attempt) *attemptRow {
	answers := a.Answers
	if answers == nil {
		answers = []domain.Answer{}
	}
	return &attemptRow{
		ID:              a.ID,
		UserID:          a.UserID,
		QuizID:          a.QuizID,
		Answers:         answers,
		TotalScore:      a.TotalScore,
		StartedAt:       a.StartedAt,
		SubmittedAt:     a.SubmittedAt,
		DurationSeconds: a.DurationSeconds,
	}
}

func (r attemptRow) toDomain() domain.Attempt {
	return domain.Attempt{
		ID:              r.ID,
		UserID:          r.UserID,
		QuizID:          r.QuizID,
		Answers:         r.Answers,
		TotalScore:      r.TotalScore,
		StartedAt:       r.StartedAt,
		SubmittedAt:     r.SubmittedAt,
		DurationSeconds: r.DurationSeconds,
	}
}
