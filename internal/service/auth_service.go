package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"fileportal/internal/auth"
	apperrors "fileportal/internal/errors"
	"fileportal/internal/metrics"
	"fileportal/internal/model"
)

// AuthService establishes, resolves and ends login sessions.
type AuthService interface {
	Login(ctx context.Context, username, password string) (*auth.Session, *model.User, error)
	Logout(ctx context.Context, sess *auth.Session) error
	CurrentUser(ctx context.Context, sess *auth.Session) (*model.User, error)
	ParseSession(token string) (*auth.Session, error)
}

type authService struct {
	credentials CredentialService
	jwtService  *auth.JWTService
	sessions    auth.SessionStore
	metrics     *metrics.Metrics
	log         zerolog.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(credentials CredentialService, jwtService *auth.JWTService, sessions auth.SessionStore, m *metrics.Metrics, log zerolog.Logger) AuthService {
	return &authService{
		credentials: credentials,
		jwtService:  jwtService,
		sessions:    sessions,
		metrics:     m,
		log:         log.With().Str("component", "auth").Logger(),
	}
}

// Login verifies the credentials and opens a session for approved accounts.
// Pending accounts get ErrPendingApproval and no session.
func (s *authService) Login(ctx context.Context, username, password string) (*auth.Session, *model.User, error) {
	user, err := s.credentials.VerifyCredentials(ctx, username, password)
	if errors.Is(err, apperrors.ErrInvalidCredentials) {
		s.metrics.Logins.WithLabelValues(metrics.OutcomeFailure).Inc()
		s.log.Warn().Str("username", username).Msg("login failed")
		return nil, nil, err
	}
	if err != nil {
		return nil, nil, err
	}

	if !user.IsApproved() {
		s.metrics.Logins.WithLabelValues(metrics.OutcomePending).Inc()
		s.log.Info().Uint("user_id", user.ID).Msg("login refused, account pending")
		return nil, nil, apperrors.ErrPendingApproval
	}

	sess, err := s.jwtService.IssueSession(user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("issue session: %w", err)
	}
	if err := s.sessions.Save(ctx, sess.ID, user.ID, s.jwtService.TTL()); err != nil {
		return nil, nil, fmt.Errorf("save session: %w", err)
	}

	s.metrics.Logins.WithLabelValues(metrics.OutcomeSuccess).Inc()
	s.log.Info().Uint("user_id", user.ID).Msg("login succeeded")
	return sess, user, nil
}

// Logout drops the server-side session record. Ending an unknown session is not an error.
func (s *authService) Logout(ctx context.Context, sess *auth.Session) error {
	if sess == nil {
		return nil
	}
	if err := s.sessions.Delete(ctx, sess.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// CurrentUser resolves the account behind a validated token. The session
// must still be live in the store and bound to the same user.
func (s *authService) CurrentUser(ctx context.Context, sess *auth.Session) (*model.User, error) {
	if sess == nil {
		return nil, apperrors.ErrUnauthenticated
	}

	userID, err := s.sessions.Lookup(ctx, sess.ID)
	if errors.Is(err, auth.ErrSessionNotFound) {
		return nil, apperrors.ErrUnauthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	if userID != sess.UserID {
		return nil, apperrors.ErrUnauthenticated
	}

	user, err := s.credentials.GetUser(ctx, userID)
	if errors.Is(err, apperrors.ErrNotFound) {
		// account was rejected while the session was live
		_ = s.sessions.Delete(ctx, sess.ID)
		return nil, apperrors.ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *authService) ParseSession(token string) (*auth.Session, error) {
	sess, err := s.jwtService.ParseSession(token)
	if err != nil {
		return nil, apperrors.ErrUnauthenticated
	}
	return sess, nil
}
