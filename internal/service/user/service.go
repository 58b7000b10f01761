package user

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/praxisdev/identity-api/internal/breach"
	"github.com/praxisdev/identity-api/internal/email"
	"github.com/praxisdev/identity-api/internal/model"
	"github.com/praxisdev/identity-api/internal/repository"
	"github.com/praxisdev/identity-api/internal/service/audit"
	apperrors "github.com/praxisdev/identity-api/pkg/errors"
	"github.com/praxisdev/identity-api/pkg/security"
)

const verifyTokenExpiry = 48 * time.Hour

type UserServicer interface {
	CreateUser(ctx context.Context, req *model.CreateUserRequest) (*model.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
	UpdateUser(ctx context.Context, id uuid.UUID, req *model.UpdateUserRequest) (*model.User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
	ListUsers(ctx context.Context, filter *model.UserFilter) ([]*model.User, error)
	ChangePassword(ctx context.Context, id uuid.UUID, req *model.ChangePasswordRequest) error
}

type Service struct {
	repo      repository.UserRepository
	tokenRepo repository.TokenRepository
	emailSvc  email.Service
	hasher    security.PasswordHasher
	checker   *breach.Checker
	auditor   audit.Recorder
	logger    zerolog.Logger
}

func NewService(repo repository.UserRepository, tokenRepo repository.TokenRepository,
	emailSvc email.Service, hasher security.PasswordHasher, checker *breach.Checker,
	auditor audit.Recorder, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		tokenRepo: tokenRepo,
		emailSvc:  emailSvc,
		hasher:    hasher,
		checker:   checker,
		auditor:   auditor,
		logger:    logger.With().Str("component", "user_service").Logger(),
	}
}

// CreateUser provisions an account on behalf of an operator. The password is
// screened against the breach index before it is hashed.
func (s *Service) CreateUser(ctx context.Context, req *model.CreateUserRequest) (*model.User, error) {
	if existing, err := s.repo.GetByEmail(ctx, req.Email); err == nil && existing != nil {
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
	user.Status = model.UserStatusActive
	user.CreatedAt = now
	user.UpdatedAt = now

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.sendVerificationEmail(ctx, user)
	s.auditor.Record(ctx, user.ID, model.SecurityActionUserCreated, nil)
	return user, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, apperrors.NewNotFound("user", err)
	}
	return user, nil
}

func (s *Service) UpdateUser(ctx context.Context, id uuid.UUID, req *model.UpdateUserRequest) (*model.User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, apperrors.NewNotFound("user", err)
	}

	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.Status != nil {
		user.Status = *req.Status
	}
	if req.Settings != nil {
		user.Settings = req.Settings
	}
	user.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return user, nil
}

func (s *Service) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return apperrors.NewNotFound("user", err)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	s.auditor.Record(ctx, id, model.SecurityActionUserDeleted, nil)
	return nil
}

func (s *Service) ListUsers(ctx context.Context, filter *model.UserFilter) ([]*model.User, error) {
	users, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// ChangePassword swaps the password of a signed-in user. The caller must
// prove the current password, and the replacement goes through the blocking
// breach check with the existing-record cutoff.
func (s *Service) ChangePassword(ctx context.Context, id uuid.UUID, req *model.ChangePasswordRequest) error {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return apperrors.NewNotFound("user", err)
	}

	if err := s.hasher.Compare(user.PasswordHash, req.CurrentPassword); err != nil {
		return apperrors.NewUnauthorized(fmt.Errorf("current password does not match"))
	}

	user.Password = req.NewPassword
	if err := s.screenPassword(ctx, user); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.repo.UpdatePassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	s.auditor.Record(ctx, user.ID, model.SecurityActionPasswordChanged, nil)
	return nil
}

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
