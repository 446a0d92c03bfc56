package redis

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/infra/memory"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestAnswerKeyCacheCachesInRedis(t *testing.T) {
	mr, client := newTestClient(t)
	loader := &countingLoader{QuizLoader: memory.NewQuizStore(sampleQuiz())}
	cache := NewAnswerKeyCache(client, loader, time.Minute)
	ctx := context.Background()

	first, err := cache.GetQuiz(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if got := mr.HGet("quiz:quiz-1:answers", "1"); got != "0,2" {
		t.Fatalf("expected cached key 0,2 for question 1, got %q", got)
	}

	cached, err := cache.GetQuiz(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("get cached quiz: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if len(cached.Questions) != len(first.Questions) {
		t.Fatalf("expected %d questions from cache, got %d", len(first.Questions), len(cached.Questions))
	}
	for i := range first.Questions {
		want, got := first.Questions[i], cached.Questions[i]
		if want.Points != got.Points || len(want.CorrectOptions) != len(got.CorrectOptions) {
			t.Fatalf("question %d: want %+v got %+v", i, want, got)
		}
		for j := range want.CorrectOptions {
			if want.CorrectOptions[j] != got.CorrectOptions[j] {
				t.Fatalf("question %d key mismatch: want %v got %v", i, want.CorrectOptions, got.CorrectOptions)
			}
		}
	}
	if ttl := mr.TTL("quiz:quiz-1:answers"); ttl <= 0 {
		t.Fatalf("expected ttl on cached key, got %v", ttl)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := cache.GetQuiz(ctx, "quiz-1"); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected reload after ttl, loader calls=%d", loader.calls)
	}
}

func TestAnswerKeyCacheReloadsCorruptEntries(t *testing.T) {
	mr, client := newTestClient(t)
	loader := &countingLoader{QuizLoader: memory.NewQuizStore(sampleQuiz())}
	cache := NewAnswerKeyCache(client, loader, time.Minute)

	// only question 1 is present: a gap at index 0
	mr.HSet("quiz:quiz-1:answers", "1", "0")
	if _, err := cache.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected a reload for a partial hash, loader calls=%d", loader.calls)
	}
}

func TestAnswerKeyCacheUnknownQuiz(t *testing.T) {
	_, client := newTestClient(t)
	cache := NewAnswerKeyCache(client, memory.NewQuizStore(), time.Minute)
	if _, err := cache.GetQuiz(context.Background(), "missing"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz not found, got %v", err)
	}
}

func TestScoreRelayRefreshesBoardsOnEveryInstance(t *testing.T) {
	mr, _ := newTestClient(t)
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Both instances share the same durable stores, as they would share Postgres.
	users := memory.NewUserStore()
	quizzes := memory.NewQuizStore(sampleQuiz())
	attempts := memory.NewAttemptStore()
	if err := users.CreateUser(ctx, domain.User{ID: "ann", Name: "Ann", Email: "ann@example.com", Role: domain.RoleStudent}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	type instance struct {
		leaderboard *app.LeaderboardService
		attempts    *app.AttemptService
		done        <-chan struct{}
	}
	start := func() instance {
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		leaderboard := app.NewLeaderboardService(app.LeaderboardDeps{
			Attempts: attempts,
			Users:    users,
			Quizzes:  quizzes,
			Boards:   memory.NewBoardStore(),
		}, app.LeaderboardOptions{}, zerolog.Nop())
		relay := NewScoreRelay(client, "", leaderboard, zerolog.Nop())
		done, err := relay.Listen(ctx)
		if err != nil {
			t.Fatalf("listen: %v", err)
		}
		svc := app.NewAttemptService(app.AttemptDeps{
			Quizzes:  quizzes,
			Keys:     NewAnswerKeyCache(client, quizzes, time.Minute),
			Attempts: attempts,
			Users:    users,
			Observer: relay,
		}, app.ResubmitReject, zerolog.Nop())
		return instance{leaderboard: leaderboard, attempts: svc, done: done}
	}
	a, b := start(), start()

	updatesA, cancelA, err := a.leaderboard.Subscribe(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("subscribe a: %v", err)
	}
	defer cancelA()
	updatesB, cancelB, err := b.leaderboard.Subscribe(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("subscribe b: %v", err)
	}
	defer cancelB()

	ann := domain.Principal{UserID: "ann", Role: domain.RoleStudent}
	started, err := a.attempts.Start(ctx, ann, "quiz-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := a.attempts.Submit(ctx, ann, started.AttemptID, []domain.AnswerSubmission{
		{QuestionIndex: 0, SelectedOptions: []int{1}},
		{QuestionIndex: 1, SelectedOptions: []int{2, 0}},
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	for name, updates := range map[string]<-chan domain.Leaderboard{"a": updatesA, "b": updatesB} {
		waitForScore(t, name, updates, 5)
	}

	stop()
	for _, done := range []<-chan struct{}{a.done, b.done} {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("relay did not stop")
		}
	}
}

func waitForScore(t *testing.T, instance string, updates <-chan domain.Leaderboard, score int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case lb := <-updates:
			if len(lb.Entries) == 1 && lb.Entries[0].Score == score && lb.Entries[0].User == "Ann" {
				return
			}
		case <-deadline:
			t.Fatalf("instance %s never saw score %d", instance, score)
		}
	}
}

func TestScoreRelayFallsBackToLocalWhenPublishFails(t *testing.T) {
	mr, client := newTestClient(t)
	local := &countingObserver{}
	relay := NewScoreRelay(client, "", local, zerolog.Nop())

	relay.ScoresChanged(context.Background(), "quiz-1")
	if local.calls.Load() != 0 {
		t.Fatalf("expected no direct call while redis is up, got %d", local.calls.Load())
	}
	mr.Close()
	relay.ScoresChanged(context.Background(), "quiz-1")
	if local.calls.Load() != 1 {
		t.Fatalf("expected the local board refreshed once, got %d", local.calls.Load())
	}
}

type countingObserver struct {
	calls atomic.Int32
}

func (o *countingObserver) ScoresChanged(context.Context, string) {
	o.calls.Add(1)
}

func TestOTPStore(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewOTPStore(client)
	ctx := context.Background()
	email := "a@example.com"

	if err := store.ConsumeOTP(ctx, email, "123456"); !errors.Is(err, domain.ErrOTPNotRequested) {
		t.Fatalf("expected not requested, got %v", err)
	}
	if err := store.SaveOTP(ctx, email, "123456", 5*time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.ConsumeOTP(ctx, email, "999999"); !errors.Is(err, domain.ErrOTPMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if err := store.ConsumeOTP(ctx, email, "123456"); err != nil {
		t.Fatalf("expected the code to survive a wrong guess, got %v", err)
	}
	if err := store.ConsumeOTP(ctx, email, "123456"); !errors.Is(err, domain.ErrOTPNotRequested) {
		t.Fatalf("expected single use, got %v", err)
	}

	if err := store.SaveOTP(ctx, email, "222222", 5*time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}
	mr.FastForward(6 * time.Minute)
	if err := store.ConsumeOTP(ctx, email, "222222"); !errors.Is(err, domain.ErrOTPNotRequested) {
		t.Fatalf("expected expiry, got %v", err)
	}

	if err := store.ConsumeReset(ctx, email); !errors.Is(err, domain.ErrResetNotVerified) {
		t.Fatalf("expected no grant, got %v", err)
	}
	if err := store.GrantReset(ctx, email, 5*time.Minute); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := store.ConsumeReset(ctx, email); err != nil {
		t.Fatalf("consume grant: %v", err)
	}
	if err := store.ConsumeReset(ctx, email); !errors.Is(err, domain.ErrResetNotVerified) {
		t.Fatalf("expected grant consumed, got %v", err)
	}
}

func TestOTPStoreLocksAfterRepeatedMismatches(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewOTPStore(client)
	ctx := context.Background()
	email := "a@example.com"

	if err := store.SaveOTP(ctx, email, "123456", 5*time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}
	for i := 1; i < app.MaxOTPFailures; i++ {
		if err := store.ConsumeOTP(ctx, email, "000000"); !errors.Is(err, domain.ErrOTPMismatch) {
			t.Fatalf("guess %d: expected mismatch, got %v", i, err)
		}
	}
	if got := mr.HGet("otp:code:"+email, "failures"); got != fmt.Sprint(app.MaxOTPFailures-1) {
		t.Fatalf("expected %d recorded failures, got %q", app.MaxOTPFailures-1, got)
	}
	if err := store.ConsumeOTP(ctx, email, "000000"); !errors.Is(err, domain.ErrOTPLocked) {
		t.Fatalf("expected lockout, got %v", err)
	}
	if mr.Exists("otp:code:" + email) {
		t.Fatalf("expected the code deleted after lockout")
	}
	if err := store.ConsumeOTP(ctx, email, "123456"); !errors.Is(err, domain.ErrOTPNotRequested) {
		t.Fatalf("expected not requested after lockout, got %v", err)
	}

	// Re-requesting resets the count and keeps the ttl.
	if err := store.SaveOTP(ctx, email, "222222", 5*time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}
	if got := mr.HGet("otp:code:"+email, "failures"); got != "0" {
		t.Fatalf("expected failures reset, got %q", got)
	}
	if ttl := mr.TTL("otp:code:" + email); ttl <= 0 {
		t.Fatalf("expected ttl on otp key, got %v", ttl)
	}
	if err := store.ConsumeOTP(ctx, email, "222222"); err != nil {
		t.Fatalf("expected new code accepted, got %v", err)
	}
}

type countingLoader struct {
	QuizLoader
	calls int
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	l.calls++
	return l.QuizLoader.LoadQuiz(ctx, quizID)
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:          "quiz-1",
		IsPublished: true,
		Questions: []domain.Question{
			{Text: "2 + 2?", Options: []domain.Option{{Text: "3"}, {Text: "4"}}, CorrectOptions: []int{1}, Points: 2},
			{Text: "Even numbers", Options: []domain.Option{{Text: "2"}, {Text: "3"}, {Text: "4"}}, CorrectOptions: []int{0, 2}, Points: 3},
		},
	}
}
