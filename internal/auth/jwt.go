// Package auth signs and verifies bearer tokens and hashes passwords.
package auth

import (
	"errors"
	"fmt"
	"time"

	"quiz-attempt-service/internal/domain"

	"github.com/golang-jwt/jwt/v4"
)

const DefaultTokenTTL = time.Hour

// Claims is the only token shape the service issues and accepts.
type Claims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// JWT issues and verifies HS256 tokens.
type JWT struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewJWT(secret string, ttl time.Duration) (*JWT, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &JWT{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// WithClock returns a copy that stamps tokens using now.
func (j *JWT) WithClock(now func() time.Time) *JWT {
	out := *j
	out.now = now
	return &out
}

func (j *JWT) Issue(user domain.User) (string, error) {
	issuedAt := j.now()
	claims := Claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(j.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (j *JWT) Verify(token string) (domain.Principal, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return j.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return domain.Principal{}, fmt.Errorf("parse token: %w", err)
	}
	if !parsed.Valid || claims.Subject == "" || !claims.Role.Valid() {
		return domain.Principal{}, errors.New("token claims incomplete")
	}
	if claims.ExpiresAt == nil {
		return domain.Principal{}, errors.New("token has no expiry")
	}
	return domain.Principal{UserID: claims.Subject, Role: claims.Role}, nil
}
