package handler

import (
	"errors"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"fileportal/internal/auth"
	apperrors "fileportal/internal/errors"
	"fileportal/internal/gate"
	"fileportal/internal/model"
	"fileportal/internal/service"
)

// MsgLoginRequired is shown when an anonymous visitor opens a protected page.
const MsgLoginRequired = "Please log in to access this page."

// UserHandlerFunc is a handler that receives the resolved current user. The
// user is nil only for handlers wrapped with Optional.
type UserHandlerFunc func(c echo.Context, user *model.User) error

// Authenticator resolves the current user for each request and applies
// the authorization gate before calling the wrapped handler.
type Authenticator struct {
	authService service.AuthService
	cookies     CookieOptions
	log         zerolog.Logger
}

// NewAuthenticator creates a new authenticator.
func NewAuthenticator(authService service.AuthService, cookies CookieOptions, log zerolog.Logger) *Authenticator {
	return &Authenticator{authService: authService, cookies: cookies, log: log}
}

// Require wraps fn for routes behind the session middleware. Anonymous or
// stale sessions are redirected to the login page; failed checks are 403.
func (a *Authenticator) Require(checks []gate.Check, fn UserHandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess, err := SessionFromContext(c)
		if err != nil {
			return a.RedirectToLogin(c)
		}

		user, err := a.authService.CurrentUser(c.Request().Context(), sess)
		if errors.Is(err, apperrors.ErrUnauthenticated) {
			a.cookies.clearSession(c)
			return a.RedirectToLogin(c)
		}
		if err != nil {
			return err
		}

		if err := gate.Authorize(user, checks...); err != nil {
			a.log.Warn().
				Uint("user_id", user.ID).
				Str("path", c.Request().URL.Path).
				Msg("access denied")
			return err
		}
		return fn(c, user)
	}
}

// Optional wraps fn for public pages. The user is resolved from the
// session cookie when one is present and valid, nil otherwise.
func (a *Authenticator) Optional(fn UserHandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		var user *model.User
		if ck, err := c.Cookie(SessionCookieName); err == nil && ck.Value != "" {
			if sess, err := a.authService.ParseSession(ck.Value); err == nil {
				user, _ = a.authService.CurrentUser(c.Request().Context(), sess)
			}
		}
		return fn(c, user)
	}
}

// RedirectToLogin answers 303 to /login with the login-required notice.
// It doubles as the error handler of the session middleware.
func (a *Authenticator) RedirectToLogin(c echo.Context) error {
	return a.cookies.redirectWithFlash(c, "/login", FlashInfo, MsgLoginRequired)
}

// SessionFromContext returns the session validated by the session middleware.
func SessionFromContext(c echo.Context) (*auth.Session, error) {
	token, ok := c.Get("user").(*jwt.Token)
	if !ok || token == nil {
		return nil, apperrors.ErrUnauthenticated
	}
	claims, ok := token.Claims.(*auth.Claims)
	if !ok {
		return nil, apperrors.ErrUnauthenticated
	}
	return auth.SessionFromClaims(claims, token.Raw)
}

// ErrorHandler renders errors that reach echo as plain text. Domain errors
// are mapped with MapErrorToHTTP; internal failures are logged.
func ErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var (
			status  int
			message string
		)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			message = http.StatusText(he.Code)
			if msg, ok := he.Message.(string); ok {
				message = msg
			}
		} else {
			httpErr := apperrors.MapErrorToHTTP(err)
			status, message = httpErr.StatusCode, httpErr.Message
		}

		if status >= http.StatusInternalServerError {
			log.Error().Err(err).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.String(status, message)
		}
		if err != nil {
			log.Error().Err(err).Msg("write error response")
		}
	}
}
