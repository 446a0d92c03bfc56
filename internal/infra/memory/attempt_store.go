package memory

import (
	"context"
	"sort"
	"sync"

	"quiz-attempt-service/internal/domain"
)

type attemptKey struct {
	userID string
	quizID string
}

// AttemptStore keeps attempts in memory. The (user, quiz) uniqueness check and the
// insert happen under one lock.
type AttemptStore struct {
	mu       sync.RWMutex
	attempts map[string]domain.Attempt
	byPair   map[attemptKey]string
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{
		attempts: make(map[string]domain.Attempt),
		byPair:   make(map[attemptKey]string),
	}
}

func (s *AttemptStore) CreateAttempt(_ context.Context, attempt domain.Attempt) error {
	key := attemptKey{userID: attempt.UserID, quizID: attempt.QuizID}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byPair[key]; exists {
		return domain.ErrAlreadyAttempted
	}
	s.attempts[attempt.ID] = attempt.Clone()
	s.byPair[key] = attempt.ID
	return nil
}

func (s *AttemptStore) GetAttempt(_ context.Context, id string) (domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempt, ok := s.attempts[id]
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return attempt.Clone(), nil
}

func (s *AttemptStore) FindAttempt(_ context.Context, userID, quizID string) (domain.Attempt, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byPair[attemptKey{userID: userID, quizID: quizID}]
	if !ok {
		return domain.Attempt{}, false, nil
	}
	return s.attempts[id].Clone(), true, nil
}

func (s *AttemptStore) ListAttempts(_ context.Context, quizID string) ([]domain.Attempt, error) {
	s.mu.RLock()
	out := make([]domain.Attempt, 0)
	for _, attempt := range s.attempts {
		if attempt.QuizID == quizID {
			out = append(out, attempt.Clone())
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *AttemptStore) SaveSubmission(_ context.Context, attempt domain.Attempt, requireInProgress bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.attempts[attempt.ID]
	if !ok {
		return domain.ErrAttemptNotFound
	}
	if requireInProgress && current.State() == domain.AttemptSubmitted {
		return domain.ErrAlreadySubmitted
	}
	current.Answers = attempt.Clone().Answers
	current.TotalScore = attempt.TotalScore
	current.SubmittedAt = attempt.Clone().SubmittedAt
	current.DurationSeconds = attempt.DurationSeconds
	s.attempts[attempt.ID] = current
	return nil
}
