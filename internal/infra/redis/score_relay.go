package redis

import (
	"context"
	"fmt"

	"quiz-attempt-service/internal/app"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const DefaultScoresChannel = "quiz:scores"

// ScoreRelay fans "scores changed" notices out to every instance over Redis Pub/Sub.
// Submissions publish the quiz id; each instance's Listen loop hands it to its local
// leaderboard, so subscribers connected anywhere see the new ranking.
type ScoreRelay struct {
	client  *redis.Client
	channel string
	local   app.ScoreObserver
	log     zerolog.Logger
}

func NewScoreRelay(client *redis.Client, channel string, local app.ScoreObserver, logger zerolog.Logger) *ScoreRelay {
	if channel == "" {
		channel = DefaultScoresChannel
	}
	return &ScoreRelay{client: client, channel: channel, local: local, log: logger}
}

// ScoresChanged publishes the notice. When Redis is unreachable the local
// leaderboard is still refreshed.
func (r *ScoreRelay) ScoresChanged(ctx context.Context, quizID string) {
	if err := r.client.Publish(ctx, r.channel, quizID).Err(); err != nil {
		r.log.Error().Err(err).Str("quiz_id", quizID).Msg("publish scores changed")
		r.local.ScoresChanged(ctx, quizID)
	}
}

// Listen subscribes before returning and forwards notices until ctx is done.
// The returned channel is closed once forwarding has stopped.
func (r *ScoreRelay) Listen(ctx context.Context) (<-chan struct{}, error) {
	sub := r.client.Subscribe(ctx, r.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", r.channel, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				r.local.ScoresChanged(ctx, msg.Payload)
			}
		}
	}()
	return done, nil
}
