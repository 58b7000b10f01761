package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/praxisdev/identity-api/internal/breach"
	"github.com/praxisdev/identity-api/internal/email"
	"github.com/praxisdev/identity-api/internal/model"
	"github.com/praxisdev/identity-api/internal/repository"
	"github.com/praxisdev/identity-api/internal/service/audit"
	"github.com/praxisdev/identity-api/pkg/auth"
	apperrors "github.com/praxisdev/identity-api/pkg/errors"
	"github.com/praxisdev/identity-api/pkg/security"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account temporarily locked")
	ErrTokenGeneration    = errors.New("failed to generate token")
)

const (
	resetTokenExpiry  = 1 * time.Hour
	verifyTokenExpiry = 48 * time.Hour
	maxLoginAttempts  = 5
	lockoutDuration   = 15 * time.Minute
)

type Service struct {
	userRepo  repository.UserRepository
	tokenRepo repository.TokenRepository
	jwtSvc    auth.JWTService
	emailSvc  email.Service
	hasher    security.PasswordHasher
	checker   *breach.Checker
	auditor   audit.Recorder
	logger    zerolog.Logger
}

func NewService(userRepo repository.UserRepository, tokenRepo repository.TokenRepository,
	jwtSvc auth.JWTService, emailSvc email.Service, hasher security.PasswordHasher,
	checker *breach.Checker, auditor audit.Recorder, logger zerolog.Logger) *Service {
	return &Service{
		userRepo:  userRepo,
		tokenRepo: tokenRepo,
		jwtSvc:    jwtSvc,
		emailSvc:  emailSvc,
		hasher:    hasher,
		checker:   checker,
		auditor:   auditor,
		logger:    logger.With().Str("component", "auth_service").Logger(),
	}
}

// Login authenticates a user. The password is probed against the breach index
// after authentication succeeds; a hit never blocks sign-in, it only marks the
// response so the client can nudge the user toward a change.
func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (*model.TokenResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	if user.Locked(now) {
		return nil, ErrAccountLocked
	}
	if user.Status == model.UserStatusInactive {
		return nil, ErrInvalidCredentials
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		s.recordFailedLogin(ctx, user, now)
		return nil, ErrInvalidCredentials
	}

	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	user.LastLoginAt = &now
	if err := s.userRepo.UpdateLoginState(ctx, user); err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID.String()).Msg("failed to update login state")
	}

	resp, err := s.generateTokens(user)
	if err != nil {
		return nil, err
	}

	if s.checker.SignInCheck(ctx, user, req.Password) {
		resp.PasswordPwned = true
		resp.PasswordPwnedCount = user.Breach.Count
		s.auditor.Record(ctx, user.ID, model.SecurityActionBreachWarned, &audit.RecordOptions{
			Metadata: map[string]interface{}{"count": user.Breach.Count},
		})
	}

	s.auditor.Record(ctx, user.ID, model.SecurityActionLogin, nil)
	return resp, nil
}

func (s *Service) recordFailedLogin(ctx context.Context, user *model.User, now time.Time) {
	user.FailedLoginAttempts++
	if user.FailedLoginAttempts >= maxLoginAttempts {
		until := now.Add(lockoutDuration)
		user.LockedUntil = &until
	}
	if err := s.userRepo.UpdateLoginState(ctx, user); err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID.String()).Msg("failed to update login state")
	}
	s.auditor.Record(ctx, user.ID, model.SecurityActionLoginFailed, &audit.RecordOptions{
		Metadata: map[string]interface{}{"failed_attempts": user.FailedLoginAttempts},
	})
}

// Register creates a new account. The candidate password goes through the
// blocking breach check before anything is hashed or stored.
func (s *Service) Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error) {
	if existing, err := s.userRepo.GetByEmail(ctx, req.Email); err == nil && existing != nil {
		return nil, apperrors.NewConflict("email already registered", nil)
	}

	user := &model.User{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	}

	if err := s.screenPassword(ctx, user); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user.ID = uuid.New()
	user.PasswordHash = hash
	user.Password = ""
	user.Status = model.UserStatusPending
	user.CreatedAt = now
	user.UpdatedAt = now

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.sendVerificationEmail(ctx, user)
	s.auditor.Record(ctx, user.ID, model.SecurityActionUserCreated, nil)
	return user, nil
}

// screenPassword runs the blocking breach check against the candidate
// password carried on user. Lookup failures accept the password; only a
// confirmed breach above the cutoff rejects it.
func (s *Service) screenPassword(ctx context.Context, user *model.User) error {
	s.checker.BeforeValidate(user)
	decision := s.checker.ValidatePassword(ctx, user, user.Password)

	// Fail-open acceptances leave a trace in the audit trail.
	if user.Breach.Erred {
		s.auditor.Record(ctx, user.ID, model.SecurityActionBreachLookupError, nil)
	}

	if decision == breach.DecisionReject {
		s.auditor.Record(ctx, user.ID, model.SecurityActionBreachRejected, &audit.RecordOptions{
			Metadata: map[string]interface{}{"count": user.Breach.Count},
		})
		return apperrors.NewValidation(user.Errors)
	}
	return nil
}

func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (*model.TokenResponse, error) {
	claims, err := s.jwtSvc.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	user, err := s.userRepo.Get(ctx, claims.UserID)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if user.Status == model.UserStatusInactive || user.Locked(time.Now()) {
		return nil, ErrInvalidCredentials
	}

	return s.generateTokens(user)
}

func (s *Service) ValidateToken(token string) (*model.TokenClaims, error) {
	return s.jwtSvc.ValidateToken(token)
}

// ForgotPassword always succeeds for unknown emails so the endpoint cannot
// be used to enumerate accounts.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil
	}

	token := uuid.New().String()
	if err := s.tokenRepo.StoreResetToken(ctx, user.ID, token, time.Now().Add(resetTokenExpiry)); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	if err := s.emailSvc.SendPasswordReset(ctx, user.Email, token); err != nil {
		return fmt.Errorf("failed to send reset email: %w", err)
	}
	return nil
}

// ResetPassword sets a new password for the account behind a valid reset
// token. The replacement goes through the blocking breach check first.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	userID, err := s.tokenRepo.ValidateResetToken(ctx, token)
	if err != nil {
		return apperrors.NewBadRequest("invalid or expired reset token", err)
	}

	user, err := s.userRepo.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}

	user.Password = newPassword
	if err := s.screenPassword(ctx, user); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.userRepo.UpdatePassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	// The reset proves ownership, so any pending lockout is cleared too.
	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	if err := s.userRepo.UpdateLoginState(ctx, user); err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID.String()).Msg("failed to clear lockout")
	}

	if err := s.tokenRepo.InvalidateResetToken(ctx, token); err != nil {
		s.logger.Error().Err(err).Msg("failed to invalidate reset token")
	}

	s.auditor.Record(ctx, user.ID, model.SecurityActionPasswordReset, nil)
	return nil
}

func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	userID, err := s.tokenRepo.ValidateVerificationToken(ctx, token)
	if err != nil {
		return apperrors.NewBadRequest("invalid or expired verification token", err)
	}

	user, err := s.userRepo.Get(ctx, userID)
	if err != nil {
		return apperrors.NewNotFound("user", err)
	}

	if err := s.userRepo.UpdateEmailVerified(ctx, userID, true); err != nil {
		return fmt.Errorf("failed to verify email: %w", err)
	}

	// Verification activates accounts that were waiting on it.
	if user.Status == model.UserStatusPending {
		user.Status = model.UserStatusActive
		if err := s.userRepo.Update(ctx, user); err != nil {
			s.logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to activate account")
		}
	}

	if err := s.tokenRepo.InvalidateVerificationToken(ctx, token); err != nil {
		s.logger.Error().Err(err).Msg("failed to invalidate verification token")
	}

	if err := s.emailSvc.SendWelcome(ctx, user.Email, user.Name); err != nil {
		s.logger.Warn().Err(err).Str("user_id", user.ID.String()).Msg("failed to send welcome email")
	}
	return nil
}

func (s *Service) ResendVerification(ctx context.Context, email string) error {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil
	}
	if user.EmailVerified {
		return apperrors.NewBadRequest("email already verified", nil)
	}

	s.sendVerificationEmail(ctx, user)
	return nil
}

// Logout records the event for the audit trail. Access tokens are stateless
// and stay valid until expiry; clients discard them.
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := s.jwtSvc.ValidateToken(token)
	if err != nil {
		return ErrInvalidCredentials
	}

	s.auditor.Record(ctx, claims.UserID, model.SecurityActionLogout, nil)
	return nil
}

func (s *Service) generateTokens(user *model.User) (*model.TokenResponse, error) {
	accessToken, err := s.jwtSvc.GenerateAccessToken(user)
	if err != nil {
		return nil, ErrTokenGeneration
	}

	refreshToken, err := s.jwtSvc.GenerateRefreshToken(user)
	if err != nil {
		return nil, ErrTokenGeneration
	}

	return &model.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

func (s *Service) sendVerificationEmail(ctx context.Context, user *model.User) {
	token := uuid.New().String()
	if err := s.tokenRepo.StoreVerificationToken(ctx, user.ID, token, time.Now().Add(verifyTokenExpiry)); err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID.String()).Msg("failed to store verification token")
		return
	}

	if err := s.emailSvc.SendVerification(ctx, user.Email, token); err != nil {
		s.logger.Warn().Err(err).Str("user_id", user.ID.String()).Msg("failed to send verification email")
	}
}
