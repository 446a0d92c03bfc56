package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"quiz-attempt-service/internal/domain"

	"github.com/rs/zerolog"
)

const defaultOTPTTL = 5 * time.Minute

// RegisterInput is the sign-up payload. Role defaults to student.
type RegisterInput struct {
	Name     string      `json:"name" validate:"required"`
	Email    string      `json:"email" validate:"required,email"`
	Password string      `json:"password" validate:"required,min=6"`
	Role     domain.Role `json:"role" validate:"omitempty,oneof=student instructor admin"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ResetPasswordInput struct {
	Email       string `json:"email" validate:"required,email"`
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

// LoginResult carries the signed token and the public part of the account.
type LoginResult struct {
	Token string      `json:"token"`
	User  UserSummary `json:"user"`
}

type UserSummary struct {
	ID    string      `json:"id"`
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

// AuthService handles registration, login and the OTP password reset flow.
type AuthService struct {
	users    UserRepository
	otps     OTPStore
	hasher   PasswordHasher
	tokens   TokenIssuer
	notifier Notifier
	otpTTL   time.Duration
	log      zerolog.Logger
	rt       runtime
}

// AuthDeps groups the collaborators of an AuthService.
type AuthDeps struct {
	Users    UserRepository
	OTPs     OTPStore
	Hasher   PasswordHasher
	Tokens   TokenIssuer
	Notifier Notifier
}

func NewAuthService(deps AuthDeps, otpTTL time.Duration, logger zerolog.Logger, opts ...Option) *AuthService {
	if otpTTL <= 0 {
		otpTTL = defaultOTPTTL
	}
	return &AuthService{
		users:    deps.Users,
		otps:     deps.OTPs,
		hasher:   deps.Hasher,
		tokens:   deps.Tokens,
		notifier: deps.Notifier,
		otpTTL:   otpTTL,
		log:      logger,
		rt:       newRuntime(opts),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account and returns a signed token for it.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (string, error) {
	input.Email = normalizeEmail(input.Email)
	input.Name = strings.TrimSpace(input.Name)
	if err := validateStruct(input); err != nil {
		return "", err
	}
	if input.Role == "" {
		input.Role = domain.RoleStudent
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	user := domain.User{
		ID:           s.rt.newID(),
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: hash,
		Role:         input.Role,
		CreatedAt:    s.rt.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return "", err
		}
		return "", fmt.Errorf("create user: %w", err)
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	s.log.Info().Str("user_id", user.ID).Str("role", string(user.Role)).Msg("user registered")
	return token, nil
}

// Login checks the password and returns a token. Unknown emails and wrong passwords
// are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (LoginResult, error) {
	input.Email = normalizeEmail(input.Email)
	if err := validateStruct(input); err != nil {
		return LoginResult{}, err
	}
	user, err := s.users.GetUserByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return LoginResult{}, domain.ErrInvalidLogin
		}
		return LoginResult{}, fmt.Errorf("find user: %w", err)
	}
	if err := s.hasher.Compare(user.PasswordHash, input.Password); err != nil {
		return LoginResult{}, domain.ErrInvalidLogin
	}
	token, err := s.tokens.Issue(user)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue token: %w", err)
	}
	return LoginResult{
		Token: token,
		User:  UserSummary{ID: user.ID, Email: user.Email, Role: user.Role},
	}, nil
}

// ForgotPassword stores a fresh one-time code for the account and hands it to the
// notifier. A notification failure is logged; the stored code stays valid.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return domain.Validationf("email is required")
	}
	if _, err := s.users.GetUserByEmail(ctx, email); err != nil {
		return err
	}
	code, err := generateOTP()
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}
	if err := s.otps.SaveOTP(ctx, email, code, s.otpTTL); err != nil {
		return fmt.Errorf("save otp: %w", err)
	}
	msg := OTPMessage{Email: email, Code: code, ExpiresAt: s.rt.now().Add(s.otpTTL).UTC()}
	if s.notifier != nil {
		if err := s.notifier.NotifyOTP(ctx, msg); err != nil {
			s.log.Error().Err(err).Str("email", email).Msg("otp notification failed")
		}
	}
	return nil
}

// VerifyOTP consumes a matching code and grants a single password reset.
func (s *AuthService) VerifyOTP(ctx context.Context, email, code string) error {
	email = normalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return domain.Validationf("email and otp are required")
	}
	if err := s.otps.ConsumeOTP(ctx, email, code); err != nil {
		return err
	}
	if err := s.otps.GrantReset(ctx, email, s.otpTTL); err != nil {
		return fmt.Errorf("grant reset: %w", err)
	}
	return nil
}

// ResetPassword replaces the password of a verified account.
func (s *AuthService) ResetPassword(ctx context.Context, input ResetPasswordInput) error {
	input.Email = normalizeEmail(input.Email)
	if err := validateStruct(input); err != nil {
		return err
	}
	if err := s.otps.ConsumeReset(ctx, input.Email); err != nil {
		return err
	}
	user, err := s.users.GetUserByEmail(ctx, input.Email)
	if err != nil {
		return err
	}
	hash, err := s.hasher.Hash(input.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	s.log.Info().Str("user_id", user.ID).Msg("password reset")
	return nil
}

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
