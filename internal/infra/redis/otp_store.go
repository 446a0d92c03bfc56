package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"

	"github.com/redis/go-redis/v9"
)

// consumeScript deletes the code when it matches or when ARGV[2] guesses have missed.
// Returns 0 when absent, 1 on mismatch, 2 when consumed, 3 when locked out.
var consumeScript = redis.NewScript(`
local stored = redis.call("HGET", KEYS[1], "code")
if not stored then
	return 0
end
if stored == ARGV[1] then
	redis.call("DEL", KEYS[1])
	return 2
end
local failures = redis.call("HINCRBY", KEYS[1], "failures", 1)
if failures >= tonumber(ARGV[2]) then
	redis.call("DEL", KEYS[1])
	return 3
end
return 1
`)

// OTPStore keeps one-time codes and reset grants in Redis with TTLs.
type OTPStore struct {
	client *redis.Client
}

func NewOTPStore(client *redis.Client) *OTPStore {
	return &OTPStore{client: client}
}

// SaveOTP replaces any pending code for email, resetting its failure count.
func (s *OTPStore) SaveOTP(ctx context.Context, email, code string, ttl time.Duration) error {
	key := otpKey(email)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, "code", code, "failures", 0)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	return err
}

func (s *OTPStore) ConsumeOTP(ctx context.Context, email, code string) error {
	res, err := consumeScript.Run(ctx, s.client, []string{otpKey(email)}, code, app.MaxOTPFailures).Int()
	if err != nil {
		return fmt.Errorf("consume otp: %w", err)
	}
	switch res {
	case 0:
		return domain.ErrOTPNotRequested
	case 1:
		return domain.ErrOTPMismatch
	case 3:
		return domain.ErrOTPLocked
	}
	return nil
}

func (s *OTPStore) GrantReset(ctx context.Context, email string, ttl time.Duration) error {
	return s.client.Set(ctx, resetKey(email), "1", ttl).Err()
}

func (s *OTPStore) ConsumeReset(ctx context.Context, email string) error {
	err := s.client.GetDel(ctx, resetKey(email)).Err()
	if errors.Is(err, redis.Nil) {
		return domain.ErrResetNotVerified
	}
	if err != nil {
		return fmt.Errorf("consume reset grant: %w", err)
	}
	return nil
}

func otpKey(email string) string {
	return "otp:code:" + email
}

func resetKey(email string) string {
	return "otp:reset:" + email
}
