package app_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/auth"
	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/infra/memory"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var (
	author  = domain.Principal{UserID: "author", Role: domain.RoleInstructor}
	student = domain.Principal{UserID: "student", Role: domain.RoleStudent}
	other   = domain.Principal{UserID: "other", Role: domain.RoleStudent}
	admin   = domain.Principal{UserID: "root", Role: domain.RoleAdmin}
)

// testClock advances by one second on every read.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func sequentialIDs(prefix string) func() string {
	var n atomic.Int64
	return func() string { return fmt.Sprintf("%s-%d", prefix, n.Add(1)) }
}

type harness struct {
	users       *memory.UserStore
	quizStore   *memory.QuizStore
	attempts    *memory.AttemptStore
	otps        *memory.OTPStore
	notifier    *recordingNotifier
	tokens      *auth.JWT
	quizzes     *app.QuizService
	attemptSvc  *app.AttemptService
	leaderboard *app.LeaderboardService
	auth        *app.AuthService
}

type harnessConfig struct {
	policy            app.ResubmitPolicy
	includeInProgress bool
}

func newHarness(t *testing.T, cfg harnessConfig) *harness {
	t.Helper()
	clock := newTestClock()
	logger := zerolog.Nop()

	h := &harness{
		users:     memory.NewUserStore(),
		quizStore: memory.NewQuizStore(),
		attempts:  memory.NewAttemptStore(),
		otps:      memory.NewOTPStore(),
		notifier:  &recordingNotifier{},
	}
	tokens, err := auth.NewJWT("test-secret", time.Hour)
	require.NoError(t, err)
	h.tokens = tokens

	for _, p := range []domain.Principal{author, student, other, admin} {
		require.NoError(t, h.users.CreateUser(context.Background(), domain.User{
			ID: p.UserID, Name: "name-" + p.UserID, Email: p.UserID + "@example.com", Role: p.Role,
		}))
	}

	h.quizzes = app.NewQuizService(h.quizStore, logger, app.WithClock(clock.Now), app.WithIDs(sequentialIDs("quiz")))
	h.leaderboard = app.NewLeaderboardService(app.LeaderboardDeps{
		Attempts: h.attempts,
		Users:    h.users,
		Quizzes:  h.quizStore,
		Boards:   memory.NewBoardStore(),
	}, app.LeaderboardOptions{IncludeInProgress: cfg.includeInProgress}, logger, app.WithClock(clock.Now))
	h.attemptSvc = app.NewAttemptService(app.AttemptDeps{
		Quizzes:  h.quizStore,
		Keys:     memory.NewAnswerKeyCache(h.quizStore, time.Minute),
		Attempts: h.attempts,
		Users:    h.users,
		Observer: h.leaderboard,
	}, cfg.policy, logger, app.WithClock(clock.Now), app.WithIDs(sequentialIDs("attempt")))
	h.auth = app.NewAuthService(app.AuthDeps{
		Users:    h.users,
		OTPs:     h.otps,
		Hasher:   auth.Bcrypt{Cost: bcrypt.MinCost},
		Tokens:   tokens,
		Notifier: h.notifier,
	}, 5*time.Minute, logger, app.WithClock(clock.Now), app.WithIDs(sequentialIDs("user")))
	return h
}

// publishedQuiz creates and publishes a quiz owned by author.
func (h *harness) publishedQuiz(t *testing.T, input app.QuizInput) domain.Quiz {
	t.Helper()
	ctx := context.Background()
	quiz, err := h.quizzes.Create(ctx, author, input)
	require.NoError(t, err)
	quiz, err = h.quizzes.Publish(ctx, author, quiz.ID)
	require.NoError(t, err)
	return quiz
}

// scenarioQuiz has one question with options a, b, c; {0,2} correct, worth 5 points.
func scenarioQuiz() app.QuizInput {
	return app.QuizInput{
		Title: "Scenario",
		Questions: []app.QuestionInput{{
			Text:           "Pick a and c",
			Options:        []app.OptionInput{{Text: "a"}, {Text: "b"}, {Text: "c"}},
			CorrectOptions: []int{2, 0},
			Points:         5,
		}},
	}
}

func twoQuestionQuiz() app.QuizInput {
	return app.QuizInput{
		Title:            "Two questions",
		TimeLimitMinutes: 10,
		Questions: []app.QuestionInput{
			{Text: "q0", Options: []app.OptionInput{{Text: "x"}, {Text: "y"}}, CorrectOptions: []int{1}, Points: 2},
			{Text: "q1", Options: []app.OptionInput{{Text: "x"}, {Text: "y"}}, CorrectOptions: []int{0}, Points: 3},
		},
	}
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []app.OTPMessage
	err  error
}

func (n *recordingNotifier) NotifyOTP(_ context.Context, msg app.OTPMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.err
}

func (n *recordingNotifier) last() (app.OTPMessage, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return app.OTPMessage{}, false
	}
	return n.sent[len(n.sent)-1], true
}
