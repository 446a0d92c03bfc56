package app

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"quiz-attempt-service/internal/domain"

	"github.com/rs/zerolog"
)

const DefaultLeaderboardLimit = 10

// LeaderboardService ranks attempts per quiz and pushes fresh rankings to live subscribers.
type LeaderboardService struct {
	attempts          AttemptRepository
	users             UserRepository
	quizzes           QuizStore
	boards            BoardRepository
	limit             int
	includeInProgress bool
	log               zerolog.Logger
	rt                runtime
}

// LeaderboardDeps groups the collaborators of a LeaderboardService.
type LeaderboardDeps struct {
	Attempts AttemptRepository
	Users    UserRepository
	Quizzes  QuizStore
	Boards   BoardRepository
}

// LeaderboardOptions configures ranking. A zero Limit means DefaultLeaderboardLimit.
type LeaderboardOptions struct {
	Limit             int
	IncludeInProgress bool
}

func NewLeaderboardService(deps LeaderboardDeps, cfg LeaderboardOptions, logger zerolog.Logger, opts ...Option) *LeaderboardService {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLeaderboardLimit
	}
	return &LeaderboardService{
		attempts:          deps.Attempts,
		users:             deps.Users,
		quizzes:           deps.Quizzes,
		boards:            deps.Boards,
		limit:             cfg.Limit,
		includeInProgress: cfg.IncludeInProgress,
		log:               logger,
		rt:                newRuntime(opts),
	}
}

// TopScores returns up to limit entries sorted by score, ties kept in start order.
// A non-positive limit uses the configured one.
func (s *LeaderboardService) TopScores(ctx context.Context, quizID string, limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = s.limit
	}
	attempts, err := s.attempts.ListAttempts(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}

	ranked := make([]domain.Attempt, 0, len(attempts))
	for _, a := range attempts {
		if s.includeInProgress || a.State() == domain.AttemptSubmitted {
			ranked = append(ranked, a)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].TotalScore > ranked[j].TotalScore
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	ids := make([]string, 0, len(ranked))
	for _, a := range ranked {
		ids = append(ids, a.UserID)
	}
	users, err := s.users.GetUsers(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve users: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(ranked))
	for _, a := range ranked {
		entries = append(entries, domain.LeaderboardEntry{
			UserID: a.UserID,
			User:   users[a.UserID].Name,
			Score:  a.TotalScore,
		})
	}
	return entries, nil
}

// Subscribe returns a channel that receives the current ranking and every later change.
// The board is joined before the ranking is read, so a submission racing the call is
// either in the first snapshot or published to the channel afterwards.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *LeaderboardService) Subscribe(ctx context.Context, quizID string) (<-chan domain.Leaderboard, func(), error) {
	if _, err := s.quizzes.FindQuiz(ctx, quizID); err != nil {
		return nil, nil, err
	}
	board, ch, unsubscribe := s.join(quizID)
	cancel := func() {
		unsubscribe()
		if board.IsEmpty() {
			s.boards.DeleteIfEmpty(quizID)
		}
	}

	if err := s.refresh(ctx, board, quizID); err != nil {
		cancel()
		return nil, nil, err
	}
	return ch, cancel, nil
}

// join subscribes to the quiz's registered board. A board emptied and removed by
// another cancel between lookup and subscribe is retried; once subscribed, a board is
// never removed.
func (s *LeaderboardService) join(quizID string) (*Board, <-chan domain.Leaderboard, func()) {
	for {
		board := s.boards.GetOrCreate(quizID)
		ch, unsubscribe := board.subscribe()
		if current, ok := s.boards.Get(quizID); ok && current == board {
			return board, ch, unsubscribe
		}
		unsubscribe()
	}
}

// ScoresChanged recomputes the ranking and pushes it to the quiz's subscribers, if any.
func (s *LeaderboardService) ScoresChanged(ctx context.Context, quizID string) {
	board, ok := s.boards.Get(quizID)
	if !ok {
		return
	}
	if err := s.refresh(ctx, board, quizID); err != nil {
		s.log.Error().Err(err).Str("quiz_id", quizID).Msg("leaderboard refresh failed")
	}
}

// refresh takes a ticket before reading scores; a snapshot is dropped when one read
// after it has already been published.
func (s *LeaderboardService) refresh(ctx context.Context, board *Board, quizID string) error {
	ticket := board.ticket()
	entries, err := s.TopScores(ctx, quizID, s.limit)
	if err != nil {
		return err
	}
	board.publish(ticket, domain.Leaderboard{QuizID: quizID, Entries: entries, UpdatedAt: s.rt.now().UTC()})
	return nil
}

// Board fans leaderboard snapshots out to the live subscribers of one quiz.
type Board struct {
	mu          sync.Mutex
	issued      uint64
	published   uint64
	last        domain.Leaderboard
	subscribers map[chan domain.Leaderboard]struct{}
}

// NewBoard is exported for infrastructure layers that keep boards.
func NewBoard() *Board {
	return &Board{
		subscribers: make(map[chan domain.Leaderboard]struct{}),
	}
}

// IsEmpty reports whether the board has no subscribers.
func (b *Board) IsEmpty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers) == 0
}

func (b *Board) ticket() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.issued++
	return b.issued
}

// subscribe registers a channel primed with the latest published snapshot, if any.
func (b *Board) subscribe() (<-chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)

	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	if b.published > 0 {
		ch <- b.last
	}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subscribers[ch]; ok {
			delete(b.subscribers, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// publish drops lb when a snapshot with a later ticket already went out.
func (b *Board) publish(ticket uint64, lb domain.Leaderboard) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ticket <= b.published {
		return
	}
	b.published = ticket
	b.last = lb
	for ch := range b.subscribers {
		select {
		case ch <- lb:
		default:
			// Subscriber is behind: replace its oldest snapshot.
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}
