package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Azaz-Gori07/ChatApp/internal/auth"
	"github.com/Azaz-Gori07/ChatApp/internal/domain"
	"github.com/Azaz-Gori07/ChatApp/internal/event"
	"github.com/Azaz-Gori07/ChatApp/internal/mailer"
	"github.com/Azaz-Gori07/ChatApp/internal/repository"
	apperrors "github.com/Azaz-Gori07/ChatApp/pkg/errors"
)

// bcryptCost is the cost factor for bcrypt password hashing.
const bcryptCost = 12

// minPasswordLength is the minimum password length required.
const minPasswordLength = 6

// otpValidity is how long an issued OTP remains usable.
const otpValidity = 10 * time.Minute

// invalidOTPMessage is returned for every OTP verification failure, including
// unknown emails, so callers cannot probe which addresses are registered.
const invalidOTPMessage = "Invalid or expired OTP."

// AuthService implements signup, login, OTP verification, and token refresh.
type AuthService struct {
	userRepo repository.UserRepository
	jwt      *auth.JWTManager
	mailer   mailer.Mailer
	producer *event.Producer
	logger   *slog.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(
	userRepo repository.UserRepository,
	jwt *auth.JWTManager,
	m mailer.Mailer,
	producer *event.Producer,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		jwt:      jwt,
		mailer:   m,
		producer: producer,
		logger:   logger,
	}
}

// SignupInput holds the parameters for creating a new account.
type SignupInput struct {
	Name     string
	Email    string
	Password string
}

// SignupResult reports the outcome of a signup: the account always requires
// OTP verification before it can log in.
type SignupResult struct {
	Email       string `json:"email"`
	RequiresOTP bool   `json:"requires_otp"`
}

// Signup creates an unverified account and emails a verification code. If an
// unverified account already exists for the email, a fresh OTP is issued
// instead of failing, so an interrupted signup can be resumed.
func (s *AuthService) Signup(ctx context.Context, input SignupInput) (*SignupResult, error) {
	email := NormalizeEmail(input.Email)
	if email == "" {
		return nil, apperrors.InvalidInput("email is required")
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, apperrors.InvalidInput("name is required")
	}
	if len(input.Password) < minPasswordLength {
		return nil, apperrors.InvalidInput(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err == nil {
		if existing.IsVerified {
			return nil, apperrors.Conflict("user already exists")
		}
		// Unverified account: resend a fresh code rather than failing.
		if err := s.issueOTP(ctx, existing); err != nil {
			return nil, err
		}
		return &SignupResult{Email: email, RequiresOTP: true}, nil
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New().String(),
		Name:         strings.TrimSpace(input.Name),
		Email:        email,
		PasswordHash: string(hashedPassword),
		IsVerified:   false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	if err := s.issueOTP(ctx, user); err != nil {
		return nil, err
	}

	// Publish registration event (non-blocking on failure).
	if err := s.producer.PublishUserRegistered(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.registered event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user signed up",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return &SignupResult{Email: email, RequiresOTP: true}, nil
}

// Login authenticates a verified user, returning the user and a token pair.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, *domain.TokenPair, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, nil, apperrors.InvalidInput("email is required")
	}
	if password == "" {
		return nil, nil, apperrors.InvalidInput("password is required")
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, nil, apperrors.Unauthorized("invalid email or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, apperrors.Unauthorized("invalid email or password")
	}

	// Unverified accounts cannot authenticate by password; the password check
	// runs first so this branch never leaks which part failed.
	if !user.IsVerified {
		return nil, nil, apperrors.Forbidden("account is not verified")
	}

	tokens, err := s.generateTokenPair(user)
	if err != nil {
		return nil, nil, fmt.Errorf("generate tokens: %w", err)
	}

	s.logger.InfoContext(ctx, "user logged in",
		slog.String("user_id", user.ID),
	)

	return user, tokens, nil
}

// SendOTP issues a fresh verification code for the given email.
func (s *AuthService) SendOTP(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if email == "" {
		return apperrors.InvalidInput("email is required")
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return apperrors.NotFound("user", email)
	}

	return s.issueOTP(ctx, user)
}

// VerifyOTP checks the submitted code and, on success, marks the account
// verified, clears the OTP fields, and issues tokens exactly as login does.
// Every failure mode returns the same error.
func (s *AuthService) VerifyOTP(ctx context.Context, email, otp string) (*domain.User, *domain.TokenPair, error) {
	email = NormalizeEmail(email)
	if email == "" || otp == "" {
		return nil, nil, apperrors.InvalidInput(invalidOTPMessage)
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, nil, apperrors.InvalidInput(invalidOTPMessage)
	}

	if user.OTPCode == "" || user.OTPCode != otp {
		return nil, nil, apperrors.InvalidInput(invalidOTPMessage)
	}
	if user.OTPExpiresAt == nil || time.Now().UTC().After(*user.OTPExpiresAt) {
		return nil, nil, apperrors.InvalidInput(invalidOTPMessage)
	}

	user.IsVerified = true
	user.OTPCode = ""
	user.OTPExpiresAt = nil

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, nil, fmt.Errorf("mark user verified: %w", err)
	}

	tokens, err := s.generateTokenPair(user)
	if err != nil {
		return nil, nil, fmt.Errorf("generate tokens: %w", err)
	}

	if err := s.producer.PublishUserVerified(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.verified event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user verified",
		slog.String("user_id", user.ID),
	)

	return user, tokens, nil
}

// Refresh validates the refresh token and mints a new access token. The
// refresh token itself is not rotated; its expiry is the only invalidation.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", apperrors.Unauthorized("missing refresh token")
	}

	claims, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return "", apperrors.Unauthorized("invalid or expired refresh token")
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		return "", apperrors.Unauthorized("invalid or expired refresh token")
	}

	accessToken, err := s.jwt.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		return "", fmt.Errorf("generate access token: %w", err)
	}

	return accessToken, nil
}

// ValidateAccessToken verifies an access token and returns its claims. Used by
// the HTTP auth middleware and the realtime handshake.
func (s *AuthService) ValidateAccessToken(token string) (*auth.Claims, error) {
	return s.jwt.ValidateAccessToken(token)
}

// issueOTP generates a 6-digit code valid for 10 minutes, persists it on the
// user row, and emails it. The email send is synchronous: if delivery fails
// the caller sees the error, since the user cannot proceed without the code.
func (s *AuthService) issueOTP(ctx context.Context, user *domain.User) error {
	code, err := generateOTP()
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}

	expiresAt := time.Now().UTC().Add(otpValidity)
	user.OTPCode = code
	user.OTPExpiresAt = &expiresAt

	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}

	if err := s.mailer.SendOTP(ctx, user.Email, user.Name, code); err != nil {
		return fmt.Errorf("send otp email: %w", err)
	}

	s.logger.InfoContext(ctx, "otp issued",
		slog.String("user_id", user.ID),
	)

	return nil
}

// generateTokenPair mints an access and refresh token for the user.
func (s *AuthService) generateTokenPair(user *domain.User) (*domain.TokenPair, error) {
	accessToken, err := s.jwt.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	refreshToken, err := s.jwt.GenerateRefreshToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// NormalizeEmail trims surrounding whitespace and lowercases the address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// generateOTP returns a random 6-digit numeric code.
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
