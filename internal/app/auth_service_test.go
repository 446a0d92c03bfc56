package app_test

import (
	"context"
	"errors"
	"testing"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterThenLoginRoundTrip(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, harnessConfig{})

	token, err := h.auth.Register(ctx, app.RegisterInput{Name: "Ada", Email: "  Ada@Example.com ", Password: "secret1"})
	require.NoError(t, err)
	registered, err := h.tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleStudent, registered.Role)

	login, err := h.auth.Login(ctx, app.LoginInput{Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", login.User.Email)
	assert.Equal(t, registered.UserID, login.User.ID)

	principal, err := h.tokens.Verify(login.Token)
	require.NoError(t, err)
	assert.Equal(t, registered.UserID, principal.UserID)
}

func TestRegisterValidationAndConflict(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, harnessConfig{})

	_, err := h.auth.Register(ctx, app.RegisterInput{Name: "A", Email: "not-an-email", Password: "secret1"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = h.auth.Register(ctx, app.RegisterInput{Name: "A", Email: "a@example.com", Password: "short"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = h.auth.Register(ctx, app.RegisterInput{Name: "A", Email: "a@example.com", Password: "secret1", Role: "owner"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = h.auth.Register(ctx, app.RegisterInput{Name: "A", Email: "a@example.com", Password: "secret1", Role: domain.RoleInstructor})
	require.NoError(t, err)
	_, err = h.auth.Register(ctx, app.RegisterInput{Name: "B", Email: "A@example.com", Password: "secret2"})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, harnessConfig{})
	_, err := h.auth.Register(ctx, app.RegisterInput{Name: "A", Email: "a@example.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = h.auth.Login(ctx, app.LoginInput{Email: "a@example.com", Password: "wrong-password"})
	assert.Equal(t, domain.ErrInvalidLogin, err)
	_, err = h.auth.Login(ctx, app.LoginInput{Email: "nobody@example.com", Password: "secret1"})
	assert.Equal(t, domain.ErrInvalidLogin, err)
}

func TestPasswordResetFlow(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, harnessConfig{})
	_, err := h.auth.Register(ctx, app.RegisterInput{Name: "A", Email: "a@example.com", Password: "secret1"})
	require.NoError(t, err)

	err = h.auth.ResetPassword(ctx, app.ResetPasswordInput{Email: "a@example.com", NewPassword: "brand-new"})
	assert.ErrorIs(t, err, domain.ErrResetNotVerified, "reset needs a verified otp")

	require.NoError(t, h.auth.ForgotPassword(ctx, "A@example.com"))
	msg, ok := h.notifier.last()
	require.True(t, ok)
	assert.Equal(t, "a@example.com", msg.Email)
	assert.Len(t, msg.Code, 6)

	wrong := "000000"
	if msg.Code == wrong {
		wrong = "111111"
	}
	assert.ErrorIs(t, h.auth.VerifyOTP(ctx, "a@example.com", wrong), domain.ErrOTPMismatch)
	require.NoError(t, h.auth.VerifyOTP(ctx, "a@example.com", msg.Code))
	assert.ErrorIs(t, h.auth.VerifyOTP(ctx, "a@example.com", msg.Code), domain.ErrOTPNotRequested, "code is single use")

	require.NoError(t, h.auth.ResetPassword(ctx, app.ResetPasswordInput{Email: "a@example.com", NewPassword: "brand-new"}))
	err = h.auth.ResetPassword(ctx, app.ResetPasswordInput{Email: "a@example.com", NewPassword: "again-new"})
	assert.ErrorIs(t, err, domain.ErrResetNotVerified, "grant is single use")

	_, err = h.auth.Login(ctx, app.LoginInput{Email: "a@example.com", Password: "secret1"})
	assert.Equal(t, domain.ErrInvalidLogin, err)
	_, err = h.auth.Login(ctx, app.LoginInput{Email: "a@example.com", Password: "brand-new"})
	assert.NoError(t, err)
}

func TestVerifyOTPLocksOutGuessing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, harnessConfig{})
	require.NoError(t, h.auth.ForgotPassword(ctx, "student@example.com"))
	msg, ok := h.notifier.last()
	require.True(t, ok)

	wrong := "000000"
	if msg.Code == wrong {
		wrong = "111111"
	}
	for i := 1; i < app.MaxOTPFailures; i++ {
		assert.ErrorIs(t, h.auth.VerifyOTP(ctx, "student@example.com", wrong), domain.ErrOTPMismatch, "guess %d", i)
	}
	err := h.auth.VerifyOTP(ctx, "student@example.com", wrong)
	assert.ErrorIs(t, err, domain.ErrOTPLocked)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.ErrorIs(t, h.auth.VerifyOTP(ctx, "student@example.com", msg.Code), domain.ErrOTPNotRequested, "the code is gone")
}

func TestForgotPasswordSurvivesNotifierFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, harnessConfig{})
	h.notifier.err = errors.New("smtp down")

	require.NoError(t, h.auth.ForgotPassword(ctx, "student@example.com"))
	msg, ok := h.notifier.last()
	require.True(t, ok)
	assert.NoError(t, h.auth.VerifyOTP(ctx, "student@example.com", msg.Code))
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	h := newHarness(t, harnessConfig{})
	err := h.auth.ForgotPassword(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
