package auth

import (
	"testing"
	"time"

	"quiz-attempt-service/internal/domain"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestJWTRoundTrip(t *testing.T) {
	tokens, err := NewJWT("secret", time.Hour)
	require.NoError(t, err)

	token, err := tokens.Issue(domain.User{ID: "u1", Role: domain.RoleInstructor})
	require.NoError(t, err)

	principal, err := tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, domain.Principal{UserID: "u1", Role: domain.RoleInstructor}, principal)
}

func TestJWTRejectsExpiredToken(t *testing.T) {
	tokens, err := NewJWT("secret", time.Hour)
	require.NoError(t, err)

	past := tokens.WithClock(func() time.Time { return time.Now().Add(-2 * time.Hour) })
	token, err := past.Issue(domain.User{ID: "u1", Role: domain.RoleStudent})
	require.NoError(t, err)

	_, err = tokens.Verify(token)
	assert.Error(t, err)
}

func TestJWTRejectsForeignSignatures(t *testing.T) {
	ours, _ := NewJWT("secret", time.Hour)
	theirs, _ := NewJWT("other-secret", time.Hour)

	token, err := theirs.Issue(domain.User{ID: "u1", Role: domain.RoleAdmin})
	require.NoError(t, err)
	_, err = ours.Verify(token)
	assert.Error(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		Role:             domain.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ours.Verify(unsigned)
	assert.Error(t, err)
}

func TestJWTRejectsUnknownRole(t *testing.T) {
	tokens, _ := NewJWT("secret", time.Hour)
	token, err := tokens.Issue(domain.User{ID: "u1", Role: "superuser"})
	require.NoError(t, err)
	_, err = tokens.Verify(token)
	assert.Error(t, err)
}

func TestNewJWTRequiresSecret(t *testing.T) {
	_, err := NewJWT("", time.Hour)
	assert.Error(t, err)
}

func TestBcrypt(t *testing.T) {
	hasher := Bcrypt{Cost: bcrypt.MinCost}
	hash, err := hasher.Hash("hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", hash)
	assert.NoError(t, hasher.Compare(hash, "hunter22"))
	assert.Error(t, hasher.Compare(hash, "wrong"))
}
