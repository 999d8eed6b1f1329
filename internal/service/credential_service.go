package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	apperrors "fileportal/internal/errors"
	"fileportal/internal/metrics"
	"fileportal/internal/model"
	"fileportal/internal/repository"
)

const (
	bcryptCost = 10

	// bcrypt only reads the first 72 bytes of a password.
	maxPasswordBytes = 72

	// registerAttempts bounds retries of a registration transaction the
	// database aborted as a serialization conflict.
	registerAttempts = 3
)

// dummyHash is compared against when the username is unknown so that both
// failure branches of VerifyCredentials do the same amount of work.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("fileportal-dummy-password"), bcryptCost)

// User-facing messages returned by CredentialService.
const (
	MsgFieldsRequired   = "All fields are required."
	MsgPasswordMismatch = "Passwords do not match."
	MsgPasswordTooLong  = "Password must be at most 72 bytes."
	MsgUsernameTaken    = "Username already exists."
	MsgEmailTaken       = "Email already exists."
	MsgUserNotFound     = "User not found."
	MsgUserHasFiles     = "User owns uploaded files and cannot be removed."
	MsgRegisterBusy     = "Registration is busy. Please try again."
)

// CredentialService manages accounts: registration, password checks and
// the administrator approval workflow.
type CredentialService interface {
	Register(ctx context.Context, username, email, password, confirmPassword string) (*model.User, error)
	VerifyCredentials(ctx context.Context, username, password string) (*model.User, error)
	GetUser(ctx context.Context, id uint) (*model.User, error)
	ListPending(ctx context.Context) ([]model.User, error)
	Approve(ctx context.Context, id uint) (*model.User, error)
	Reject(ctx context.Context, id uint) (*model.User, error)
}

type credentialService struct {
	users   repository.UserRepository
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewCredentialService creates a new credential service.
func NewCredentialService(users repository.UserRepository, m *metrics.Metrics, log zerolog.Logger) CredentialService {
	return &credentialService{
		users:   users,
		metrics: m,
		log:     log.With().Str("component", "credentials").Logger(),
	}
}

// Register validates the form values, hashes the password and stores the
// account. The very first account becomes an approved administrator.
func (s *credentialService) Register(ctx context.Context, username, email, password, confirmPassword string) (*model.User, error) {
	user, err := s.register(ctx, username, email, password, confirmPassword)
	if err != nil {
		s.metrics.Registrations.WithLabelValues(metrics.OutcomeFailure).Inc()
		return nil, err
	}

	outcome := metrics.OutcomePending
	if user.IsAdmin() {
		outcome = metrics.OutcomeSuccess
	}
	s.metrics.Registrations.WithLabelValues(outcome).Inc()
	s.log.Info().Uint("user_id", user.ID).Str("username", user.Username).Str("role", string(user.Role)).Msg("account registered")
	return user, nil
}

func (s *credentialService) register(ctx context.Context, username, email, password, confirmPassword string) (*model.User, error) {
	if username == "" || email == "" || password == "" {
		return nil, apperrors.Validation(MsgFieldsRequired)
	}
	if password != confirmPassword {
		return nil, apperrors.Validation(MsgPasswordMismatch)
	}
	if len(password) > maxPasswordBytes {
		return nil, apperrors.Validation(MsgPasswordTooLong)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hashedPassword),
		Role:         model.RoleTeacher,
		Status:       model.StatusPending,
	}

	// The transaction is serializable, so two concurrent first registrations
	// cannot both count zero users; the loser is aborted and retried.
	for attempt := 1; ; attempt++ {
		user.ID, user.Role, user.Status = 0, model.RoleTeacher, model.StatusPending
		err = s.users.WithTransaction(ctx, func(ctx context.Context, repo repository.UserRepository) error {
			if err := checkAvailable(ctx, repo, username, email); err != nil {
				return err
			}

			count, err := repo.Count(ctx)
			if err != nil {
				return fmt.Errorf("count users: %w", err)
			}
			if count == 0 {
				user.Role = model.RoleAdmin
				user.Status = model.StatusApproved
			}

			return repo.Create(ctx, user)
		})
		if !errors.Is(err, repository.ErrSerialization) {
			break
		}
		s.log.Warn().Err(err).Int("attempt", attempt).Str("username", username).Msg("registration transaction conflicted")
		if attempt == registerAttempts {
			return nil, apperrors.Conflict(MsgRegisterBusy)
		}
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// lost a race with a concurrent registration
		if _, findErr := s.users.FindByUsername(ctx, username); findErr == nil {
			return nil, apperrors.Conflict(MsgUsernameTaken)
		}
		return nil, apperrors.Conflict(MsgEmailTaken)
	}
	if err != nil {
		var appErr *apperrors.Error
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func checkAvailable(ctx context.Context, repo repository.UserRepository, username, email string) error {
	_, err := repo.FindByUsername(ctx, username)
	if err == nil {
		return apperrors.Conflict(MsgUsernameTaken)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("check username: %w", err)
	}

	_, err = repo.FindByEmail(ctx, email)
	if err == nil {
		return apperrors.Conflict(MsgEmailTaken)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("check email: %w", err)
	}
	return nil
}

// VerifyCredentials returns the user whose password matches, regardless of
// approval state. Any mismatch yields ErrInvalidCredentials.
func (s *credentialService) VerifyCredentials(ctx context.Context, username, password string) (*model.User, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("find user: %w", err)
		}
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, apperrors.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperrors.ErrInvalidCredentials
	}
	return user, nil
}

func (s *credentialService) GetUser(ctx context.Context, id uint) (*model.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound(MsgUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

func (s *credentialService) ListPending(ctx context.Context) ([]model.User, error) {
	users, err := s.users.ListByStatus(ctx, model.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("list pending users: %w", err)
	}
	return users, nil
}

// Approve marks the account approved. Approving an approved account is a no-op.
func (s *credentialService) Approve(ctx context.Context, id uint) (*model.User, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.IsApproved() {
		return user, nil
	}

	if err := s.users.UpdateStatus(ctx, id, model.StatusApproved); err != nil {
		return nil, fmt.Errorf("approve user: %w", err)
	}
	user.Status = model.StatusApproved

	s.metrics.Approvals.WithLabelValues("approved").Inc()
	s.log.Info().Uint("user_id", user.ID).Str("username", user.Username).Msg("account approved")
	return user, nil
}

// Reject deletes the account and returns the removed record.
func (s *credentialService) Reject(ctx context.Context, id uint) (*model.User, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	err = s.users.Delete(ctx, id)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, apperrors.NotFound(MsgUserNotFound)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return nil, apperrors.Conflict(MsgUserHasFiles)
	case err != nil:
		return nil, fmt.Errorf("reject user: %w", err)
	}

	s.metrics.Approvals.WithLabelValues("rejected").Inc()
	s.log.Info().Uint("user_id", user.ID).Str("username", user.Username).Msg("account rejected")
	return user, nil
}
