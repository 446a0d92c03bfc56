package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"quiz-attempt-service/internal/domain"

	"github.com/rs/zerolog"
)

// ResubmitPolicy decides what happens when an already submitted attempt is submitted again.
type ResubmitPolicy string

const (
	// ResubmitReject answers a second submission with domain.ErrAlreadySubmitted.
	ResubmitReject ResubmitPolicy = "reject"
	// ResubmitRegrade re-grades the new answers and overwrites score and timestamps.
	ResubmitRegrade ResubmitPolicy = "regrade"
)

func ParseResubmitPolicy(s string) (ResubmitPolicy, error) {
	switch ResubmitPolicy(s) {
	case "", ResubmitReject:
		return ResubmitReject, nil
	case ResubmitRegrade:
		return ResubmitRegrade, nil
	}
	return "", fmt.Errorf("unknown resubmit policy %q", s)
}

// StartResult is returned when an attempt begins.
type StartResult struct {
	AttemptID string     `json:"attemptId"`
	StartedAt time.Time  `json:"startedAt"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// SubmitResult is the graded outcome of a submission.
type SubmitResult struct {
	AttemptID       string          `json:"attemptId"`
	TotalScore      int             `json:"totalScore"`
	Answers         []domain.Answer `json:"answers"`
	SubmittedAt     time.Time       `json:"submittedAt"`
	DurationSeconds int             `json:"durationSeconds"`
}

// AttemptDetail is an attempt together with the quiz it belongs to.
type AttemptDetail struct {
	domain.Attempt
	Quiz domain.Quiz `json:"quiz"`
}

// AttemptRow is one line of a quiz's attempt report.
type AttemptRow struct {
	domain.Attempt
	StudentName  string `json:"studentName"`
	StudentEmail string `json:"studentEmail"`
}

// ResultExporter renders an attempt report for a quiz.
type ResultExporter interface {
	// ContentType is the media type of what Export writes.
	ContentType() string
	Export(w io.Writer, quiz domain.Quiz, rows []AttemptRow) error
}

// AttemptService runs the attempt lifecycle: start once, submit, review.
type AttemptService struct {
	quizzes  QuizStore
	keys     AnswerKeyRepository
	attempts AttemptRepository
	users    UserRepository
	observer ScoreObserver
	exporter ResultExporter
	policy   ResubmitPolicy
	log      zerolog.Logger
	rt       runtime
}

// AttemptDeps groups the collaborators of an AttemptService. Observer and Exporter are optional.
type AttemptDeps struct {
	Quizzes  QuizStore
	Keys     AnswerKeyRepository
	Attempts AttemptRepository
	Users    UserRepository
	Observer ScoreObserver
	Exporter ResultExporter
}

func NewAttemptService(deps AttemptDeps, policy ResubmitPolicy, logger zerolog.Logger, opts ...Option) *AttemptService {
	if policy == "" {
		policy = ResubmitReject
	}
	return &AttemptService{
		quizzes:  deps.Quizzes,
		keys:     deps.Keys,
		attempts: deps.Attempts,
		users:    deps.Users,
		observer: deps.Observer,
		exporter: deps.Exporter,
		policy:   policy,
		log:      logger,
		rt:       newRuntime(opts),
	}
}

// Start opens the caller's single attempt at a published quiz.
func (s *AttemptService) Start(ctx context.Context, principal domain.Principal, quizID string) (StartResult, error) {
	quiz, err := s.quizzes.FindQuiz(ctx, quizID)
	if err != nil {
		return StartResult{}, err
	}
	if !quiz.IsPublished {
		return StartResult{}, domain.ErrQuizNotPublished
	}
	if _, found, err := s.attempts.FindAttempt(ctx, principal.UserID, quizID); err != nil {
		return StartResult{}, fmt.Errorf("find attempt: %w", err)
	} else if found {
		return StartResult{}, domain.ErrAlreadyAttempted
	}

	attempt := domain.Attempt{
		ID:        s.rt.newID(),
		UserID:    principal.UserID,
		QuizID:    quizID,
		Answers:   seedAnswers(len(quiz.Questions)),
		StartedAt: s.rt.now().UTC(),
	}
	// The store's uniqueness check is authoritative; the lookup above only fails fast.
	if err := s.attempts.CreateAttempt(ctx, attempt); err != nil {
		if errors.Is(err, domain.ErrAlreadyAttempted) {
			return StartResult{}, err
		}
		return StartResult{}, fmt.Errorf("create attempt: %w", err)
	}

	result := StartResult{AttemptID: attempt.ID, StartedAt: attempt.StartedAt}
	if quiz.TimeLimitMinutes > 0 {
		expires := attempt.StartedAt.Add(time.Duration(quiz.TimeLimitMinutes) * time.Minute)
		result.ExpiresAt = &expires
	}
	s.log.Info().Str("attempt_id", attempt.ID).Str("quiz_id", quizID).Str("user_id", principal.UserID).Msg("attempt started")
	return result, nil
}

// Submit grades the answers against the authoritative key and closes the attempt.
func (s *AttemptService) Submit(ctx context.Context, principal domain.Principal, attemptID string, submissions []domain.AnswerSubmission) (SubmitResult, error) {
	attempt, err := s.attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		return SubmitResult{}, err
	}
	if attempt.UserID != principal.UserID {
		return SubmitResult{}, domain.ErrNotAttemptOwner
	}
	if attempt.State() == domain.AttemptSubmitted && s.policy == ResubmitReject {
		return SubmitResult{}, domain.ErrAlreadySubmitted
	}

	quiz, err := s.keys.GetQuiz(ctx, attempt.QuizID)
	if err != nil {
		return SubmitResult{}, err
	}

	graded, total := GradeAttempt(quiz, mergeSubmissions(len(quiz.Questions), submissions))
	submittedAt := s.rt.now().UTC()
	attempt.Answers = graded
	attempt.TotalScore = total
	attempt.SubmittedAt = &submittedAt
	attempt.DurationSeconds = int(submittedAt.Sub(attempt.StartedAt) / time.Second)

	if err := s.attempts.SaveSubmission(ctx, attempt, s.policy == ResubmitReject); err != nil {
		if errors.Is(err, domain.ErrAlreadySubmitted) {
			return SubmitResult{}, err
		}
		return SubmitResult{}, fmt.Errorf("save submission: %w", err)
	}

	s.log.Info().Str("attempt_id", attempt.ID).Str("quiz_id", attempt.QuizID).Int("score", total).Msg("attempt submitted")
	if s.observer != nil {
		s.observer.ScoresChanged(ctx, attempt.QuizID)
	}
	return SubmitResult{
		AttemptID:       attempt.ID,
		TotalScore:      total,
		Answers:         graded,
		SubmittedAt:     submittedAt,
		DurationSeconds: attempt.DurationSeconds,
	}, nil
}

// Get returns an attempt with its quiz. The owner, the quiz creator and admins may read it.
// The answer key stays hidden from the owner until the attempt is submitted.
func (s *AttemptService) Get(ctx context.Context, principal domain.Principal, attemptID string) (AttemptDetail, error) {
	attempt, err := s.attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		return AttemptDetail{}, err
	}
	quiz, err := s.quizzes.FindQuiz(ctx, attempt.QuizID)
	if err != nil {
		return AttemptDetail{}, err
	}
	if attempt.UserID != principal.UserID && !quiz.OwnedBy(principal.UserID) && !principal.IsAdmin() {
		return AttemptDetail{}, domain.ErrNotAttemptOwner
	}
	if attempt.State() == domain.AttemptInProgress {
		quiz = Redact(quiz, principal)
	}
	return AttemptDetail{Attempt: attempt, Quiz: quiz}, nil
}

// ListForQuiz reports every attempt at a quiz with the student's name and email.
// Only the quiz creator and admins may list.
func (s *AttemptService) ListForQuiz(ctx context.Context, principal domain.Principal, quizID string) ([]AttemptRow, error) {
	_, rows, err := s.report(ctx, principal, quizID)
	return rows, err
}

// ExportForQuiz writes the ListForQuiz report through the configured exporter and
// returns the media type it wrote.
func (s *AttemptService) ExportForQuiz(ctx context.Context, principal domain.Principal, quizID string, w io.Writer) (string, error) {
	if s.exporter == nil {
		return "", errors.New("no result exporter configured")
	}
	quiz, rows, err := s.report(ctx, principal, quizID)
	if err != nil {
		return "", err
	}
	if err := s.exporter.Export(w, quiz, rows); err != nil {
		return "", fmt.Errorf("export attempts: %w", err)
	}
	return s.exporter.ContentType(), nil
}

func (s *AttemptService) report(ctx context.Context, principal domain.Principal, quizID string) (domain.Quiz, []AttemptRow, error) {
	quiz, err := s.quizzes.FindQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, nil, err
	}
	if !quiz.OwnedBy(principal.UserID) && !principal.IsAdmin() {
		return domain.Quiz{}, nil, domain.ErrNotQuizOwner
	}
	attempts, err := s.attempts.ListAttempts(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, nil, fmt.Errorf("list attempts: %w", err)
	}
	ids := make([]string, 0, len(attempts))
	for _, a := range attempts {
		ids = append(ids, a.UserID)
	}
	users, err := s.users.GetUsers(ctx, ids)
	if err != nil {
		return domain.Quiz{}, nil, fmt.Errorf("resolve users: %w", err)
	}
	rows := make([]AttemptRow, 0, len(attempts))
	for _, a := range attempts {
		u := users[a.UserID]
		rows = append(rows, AttemptRow{Attempt: a, StudentName: u.Name, StudentEmail: u.Email})
	}
	return quiz, rows, nil
}
