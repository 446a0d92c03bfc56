package memory

import (
	"context"
	"sync"
	"time"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
)

// OTPStore is a single-instance OTP store; entries expire when read after their deadline.
type OTPStore struct {
	mu     sync.Mutex
	clock  func() time.Time
	codes  map[string]expiring
	grants map[string]time.Time
}

type expiring struct {
	code      string
	expiresAt time.Time
	failures  int
}

func NewOTPStore() *OTPStore {
	return NewOTPStoreWithClock(time.Now)
}

// NewOTPStoreWithClock is used by tests to control expiry.
func NewOTPStoreWithClock(clock func() time.Time) *OTPStore {
	return &OTPStore{
		clock:  clock,
		codes:  make(map[string]expiring),
		grants: make(map[string]time.Time),
	}
}

func (s *OTPStore) SaveOTP(_ context.Context, email, code string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[email] = expiring{code: code, expiresAt: s.clock().Add(ttl)}
	return nil
}

// ConsumeOTP deletes the code on a match. A wrong code leaves it in place until
// app.MaxOTPFailures guesses have missed.
func (s *OTPStore) ConsumeOTP(_ context.Context, email, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.codes[email]
	if !ok || !entry.expiresAt.After(s.clock()) {
		delete(s.codes, email)
		return domain.ErrOTPNotRequested
	}
	if entry.code != code {
		entry.failures++
		if entry.failures >= app.MaxOTPFailures {
			delete(s.codes, email)
			return domain.ErrOTPLocked
		}
		s.codes[email] = entry
		return domain.ErrOTPMismatch
	}
	delete(s.codes, email)
	return nil
}

func (s *OTPStore) GrantReset(_ context.Context, email string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[email] = s.clock().Add(ttl)
	return nil
}

func (s *OTPStore) ConsumeReset(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	expiresAt, ok := s.grants[email]
	delete(s.grants, email)
	if !ok || !expiresAt.After(s.clock()) {
		return domain.ErrResetNotVerified
	}
	return nil
}
