package redis

import (
	"context"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"quiz-attempt-service/internal/domain"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// QuizLoader fetches quiz content, answer key included, from a backing store.
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// AnswerKeyCache caches answer keys in Redis (hash per quiz) and falls back to a loader on a miss.
// Keys are stored as:   HSET quiz:{quizID}:answers {questionIndex} "0,2"
// Points are stored as: HSET quiz:{quizID}:points  {questionIndex} {points}
// A quiz rebuilt from the cache carries only what grading reads: keys and points.
type AnswerKeyCache struct {
	client *redis.Client
	loader QuizLoader
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewAnswerKeyCache(client *redis.Client, loader QuizLoader, ttl time.Duration) *AnswerKeyCache {
	return &AnswerKeyCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *AnswerKeyCache) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := c.lookup(ctx, quizID); ok {
		return quiz, nil
	}

	result, err, _ := c.sf.Do(quizID, func() (interface{}, error) {
		// Another caller may have filled the cache meanwhile.
		if quiz, ok := c.lookup(ctx, quizID); ok {
			return quiz, nil
		}
		quiz, err := c.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}
		c.store(ctx, quiz)
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (c *AnswerKeyCache) lookup(ctx context.Context, quizID string) (domain.Quiz, bool) {
	answers, err := c.client.HGetAll(ctx, answersKey(quizID)).Result()
	if err != nil || len(answers) == 0 {
		return domain.Quiz{}, false
	}
	points, _ := c.client.HGetAll(ctx, pointsKey(quizID)).Result()
	return buildQuizFromCache(quizID, answers, points)
}

// store writes the key best-effort; a failed write only costs a later reload.
func (c *AnswerKeyCache) store(ctx context.Context, quiz domain.Quiz) {
	if len(quiz.Questions) == 0 {
		return
	}
	answers := make(map[string]interface{}, len(quiz.Questions))
	points := make(map[string]interface{}, len(quiz.Questions))
	for i, q := range quiz.Questions {
		field := strconv.Itoa(i)
		answers[field] = encodeKey(q.CorrectOptions)
		points[field] = q.Points
	}

	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, answersKey(quiz.ID), answers)
	pipe.HSet(ctx, pointsKey(quiz.ID), points)
	if ttl := c.ttlWithJitter(); ttl > 0 {
		pipe.Expire(ctx, answersKey(quiz.ID), ttl)
		pipe.Expire(ctx, pointsKey(quiz.ID), ttl)
	}
	_, _ = pipe.Exec(ctx)
}

func answersKey(quizID string) string {
	return "quiz:" + quizID + ":answers"
}

func pointsKey(quizID string) string {
	return "quiz:" + quizID + ":points"
}

func encodeKey(options []int) string {
	parts := make([]string, 0, len(options))
	for _, o := range options {
		parts = append(parts, strconv.Itoa(o))
	}
	return strings.Join(parts, ",")
}

func decodeKey(s string) ([]int, bool) {
	out := []int{}
	if s == "" {
		return out, true
	}
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, false
		}
		out = append(out, n)
	}
	return out, true
}

// buildQuizFromCache rejects partial or corrupt hashes so the caller reloads.
func buildQuizFromCache(quizID string, answers, points map[string]string) (domain.Quiz, bool) {
	indices := make([]int, 0, len(answers))
	for field := range answers {
		idx, err := strconv.Atoi(field)
		if err != nil || idx < 0 {
			return domain.Quiz{}, false
		}
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	if indices[len(indices)-1] != len(indices)-1 {
		return domain.Quiz{}, false
	}

	questions := make([]domain.Question, len(indices))
	for _, idx := range indices {
		field := strconv.Itoa(idx)
		key, ok := decodeKey(answers[field])
		if !ok {
			return domain.Quiz{}, false
		}
		p, err := strconv.Atoi(points[field])
		if err != nil || p <= 0 {
			p = 1
		}
		questions[idx] = domain.Question{CorrectOptions: key, Points: p}
	}
	return domain.Quiz{ID: quizID, Questions: questions}, true
}

func (c *AnswerKeyCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
