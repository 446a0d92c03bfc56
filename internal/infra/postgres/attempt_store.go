package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"quiz-attempt-service/internal/domain"

	"github.com/uptrace/bun"
)

// AttemptStore persists attempts. The attempts_user_quiz_key unique constraint is what
// keeps a user to one attempt per quiz under concurrent starts.
type AttemptStore struct {
	db *bun.DB
}

func NewAttemptStore(db *bun.DB) *AttemptStore {
	return &AttemptStore{db: db}
}

func (s *AttemptStore) CreateAttempt(ctx context.Context, attempt domain.Attempt) error {
	_, err := s.db.NewInsert().Model(newAttemptRow(attempt)).Exec(ctx)
	if constraintViolated(err, "attempts_user_quiz_key") {
		return domain.ErrAlreadyAttempted
	}
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

func (s *AttemptStore) GetAttempt(ctx context.Context, id string) (domain.Attempt, error) {
	var row attemptRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("select attempt: %w", err)
	}
	return row.toDomain(), nil
}

func (s *AttemptStore) FindAttempt(ctx context.Context, userID, quizID string) (domain.Attempt, bool, error) {
	var row attemptRow
	err := s.db.NewSelect().
		Model(&row).
		Where("user_id = ?", userID).
		Where("quiz_id = ?", quizID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Attempt{}, false, nil
	}
	if err != nil {
		return domain.Attempt{}, false, fmt.Errorf("select attempt: %w", err)
	}
	return row.toDomain(), true, nil
}

func (s *AttemptStore) ListAttempts(ctx context.Context, quizID string) ([]domain.Attempt, error) {
	var rows []attemptRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("quiz_id = ?", quizID).
		OrderExpr("started_at ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select attempts: %w", err)
	}
	out := make([]domain.Attempt, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (s *AttemptStore) SaveSubmission(ctx context.Context, attempt domain.Attempt, requireInProgress bool) error {
	q := s.db.NewUpdate().
		Model(newAttemptRow(attempt)).
		Column("answers", "total_score", "submitted_at", "duration_seconds").
		WherePK()
	if requireInProgress {
		q = q.Where("submitted_at IS NULL")
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("update attempt: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	exists, err := s.db.NewSelect().Model((*attemptRow)(nil)).Where("id = ?", attempt.ID).Exists(ctx)
	if err != nil {
		return fmt.Errorf("check attempt: %w", err)
	}
	if !exists {
		return domain.ErrAttemptNotFound
	}
	return domain.ErrAlreadySubmitted
}
