package app

import (
	"context"
	"time"

	"quiz-attempt-service/internal/domain"

	"github.com/google/uuid"
)

// UserRepository stores accounts. Lookups of unknown users return domain.ErrUserNotFound.
type UserRepository interface {
	CreateUser(ctx context.Context, user domain.User) error
	GetUser(ctx context.Context, id string) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	GetUsers(ctx context.Context, ids []string) (map[string]domain.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// QuizStore is the authoritative quiz document store.
type QuizStore interface {
	CreateQuiz(ctx context.Context, quiz domain.Quiz) error
	FindQuiz(ctx context.Context, id string) (domain.Quiz, error)
	// ListVisibleQuizzes returns quizzes created by userID or published, newest first.
	ListVisibleQuizzes(ctx context.Context, userID string) ([]domain.Quiz, error)
	PublishQuiz(ctx context.Context, id string) error
}

// AnswerKeyRepository serves quizzes for grading (from cache/backing store).
// Returned quizzes always carry their answer key.
type AnswerKeyRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// AttemptRepository stores attempts. CreateAttempt must reject a second attempt for the
// same (user, quiz) pair with domain.ErrAlreadyAttempted, atomically.
type AttemptRepository interface {
	CreateAttempt(ctx context.Context, attempt domain.Attempt) error
	GetAttempt(ctx context.Context, id string) (domain.Attempt, error)
	FindAttempt(ctx context.Context, userID, quizID string) (domain.Attempt, bool, error)
	// ListAttempts returns every attempt for a quiz ordered by start time.
	ListAttempts(ctx context.Context, quizID string) ([]domain.Attempt, error)
	// SaveSubmission writes answers, score and submission timestamps in one update.
	// With requireInProgress set the update only applies to an unsubmitted attempt and
	// domain.ErrAlreadySubmitted is returned otherwise.
	SaveSubmission(ctx context.Context, attempt domain.Attempt, requireInProgress bool) error
}

// MaxOTPFailures is how many wrong guesses a code survives. The last one deletes it
// and is answered with domain.ErrOTPLocked.
const MaxOTPFailures = 5

// OTPStore keeps short-lived password reset codes and the reset grant issued after a
// successful verification. Both are single use, and a code is dropped after
// MaxOTPFailures mismatches.
type OTPStore interface {
	SaveOTP(ctx context.Context, email, code string, ttl time.Duration) error
	ConsumeOTP(ctx context.Context, email, code string) error
	GrantReset(ctx context.Context, email string, ttl time.Duration) error
	ConsumeReset(ctx context.Context, email string) error
}

// OTPMessage is handed to the Notifier for out-of-band delivery.
type OTPMessage struct {
	Email     string    `json:"email"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Notifier delivers one-time codes. Implementations must not block on the actual send.
type Notifier interface {
	NotifyOTP(ctx context.Context, msg OTPMessage) error
}

// PasswordHasher hashes and checks passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// TokenIssuer signs bearer credentials for a user.
type TokenIssuer interface {
	Issue(user domain.User) (string, error)
}

// TokenVerifier resolves a bearer credential to its principal.
type TokenVerifier interface {
	Verify(token string) (domain.Principal, error)
}

// BoardRepository keeps the live leaderboard boards of this process.
type BoardRepository interface {
	GetOrCreate(quizID string) *Board
	Get(quizID string) (*Board, bool)
	DeleteIfEmpty(quizID string)
}

// ScoreObserver is told when a quiz's scores change.
type ScoreObserver interface {
	ScoresChanged(ctx context.Context, quizID string)
}

// Option overrides the clock or id generator of a service; used by tests.
type Option func(*runtime)

type runtime struct {
	now   func() time.Time
	newID func() string
}

func newRuntime(opts []Option) runtime {
	rt := runtime{now: time.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(&rt)
	}
	return rt
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(rt *runtime) { rt.now = now }
}

// WithIDs replaces the UUID generator.
func WithIDs(newID func() string) Option {
	return func(rt *runtime) { rt.newID = newID }
}
