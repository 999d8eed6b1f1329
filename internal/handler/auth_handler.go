package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	apperrors "fileportal/internal/errors"
	"fileportal/internal/model"
	"fileportal/internal/service"
	"fileportal/internal/web"
)

// Notices shown by the account pages.
const (
	MsgAdminCreated      = "Admin account created successfully. You can now log in."
	MsgRegistrationDone  = "Registration successful! Your account is pending approval from an administrator."
	MsgInvalidLogin      = "Invalid username or password."
	MsgPendingApproval   = "Your account is pending approval. Please wait for an administrator to approve it."
	MsgLoggedOut         = "You have been logged out."
	MsgFieldTooLong      = "Username must be at most 80 characters and email at most 120."
	MsgRegistrationError = "Registration failed. Please try again."
)

// AuthHandler handles registration, login and logout.
type AuthHandler struct {
	credentials service.CredentialService
	authService service.AuthService
	cookies     CookieOptions
	log         zerolog.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(credentials service.CredentialService, authService service.AuthService, cookies CookieOptions, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		credentials: credentials,
		authService: authService,
		cookies:     cookies,
		log:         log,
	}
}

// RegisterRequest is the registration form.
type RegisterRequest struct {
	Username        string `form:"username" validate:"max=80"`
	Email           string `form:"email" validate:"max=120"`
	Password        string `form:"password"`
	ConfirmPassword string `form:"confirm_password"`
}

// LoginRequest is the login form.
type LoginRequest struct {
	Username string `form:"username"`
	Password string `form:"password"`
}

// RegisterForm godoc
// @Summary Registration page
// @Tags auth
// @Produce html
// @Success 200 {string} string "HTML page"
// @Router /register [get]
func (h *AuthHandler) RegisterForm(c echo.Context, user *model.User) error {
	return h.render(c, http.StatusOK, web.PageRegister, user, nil, nil)
}

// Register godoc
// @Summary Register a new account
// @Description The first account becomes an approved administrator; later accounts wait for approval.
// @Tags auth
// @Accept x-www-form-urlencoded
// @Produce html
// @Param username formData string true "Username"
// @Param email formData string true "Email"
// @Param password formData string true "Password"
// @Param confirm_password formData string true "Password confirmation"
// @Param csrf_token formData string true "CSRF token"
// @Success 303 "Redirect to /login"
// @Failure 400 {string} string "Validation error page"
// @Failure 409 {string} string "Username or email taken"
// @Router /register [post]
func (h *AuthHandler) Register(c echo.Context, current *model.User) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}
	form := map[string]string{"username": req.Username, "email": req.Email}

	if err := c.Validate(&req); err != nil {
		return h.render(c, http.StatusBadRequest, web.PageRegister, current, form,
			&web.Flash{Category: FlashError, Message: MsgFieldTooLong})
	}

	user, err := h.credentials.Register(c.Request().Context(), req.Username, req.Email, req.Password, req.ConfirmPassword)
	if err != nil {
		var appErr *apperrors.Error
		if !errors.As(err, &appErr) {
			return err
		}
		return h.render(c, apperrors.MapErrorToHTTP(err).StatusCode, web.PageRegister, current, form,
			&web.Flash{Category: FlashError, Message: apperrors.UserMessage(err, MsgRegistrationError)})
	}

	if user.IsAdmin() {
		return h.cookies.redirectWithFlash(c, "/login", FlashSuccess, MsgAdminCreated)
	}
	return h.cookies.redirectWithFlash(c, "/login", FlashInfo, MsgRegistrationDone)
}

// LoginForm godoc
// @Summary Login page
// @Tags auth
// @Produce html
// @Success 200 {string} string "HTML page"
// @Router /login [get]
func (h *AuthHandler) LoginForm(c echo.Context, user *model.User) error {
	return h.render(c, http.StatusOK, web.PageLogin, user, nil, nil)
}

// Login godoc
// @Summary Log in
// @Description Sets the session cookie for approved accounts.
// @Tags auth
// @Accept x-www-form-urlencoded
// @Produce html
// @Param username formData string true "Username"
// @Param password formData string true "Password"
// @Param csrf_token formData string true "CSRF token"
// @Success 303 "Redirect to /dashboard"
// @Failure 401 {string} string "Invalid credentials page"
// @Failure 403 {string} string "Account pending approval page"
// @Router /login [post]
func (h *AuthHandler) Login(c echo.Context, current *model.User) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}
	form := map[string]string{"username": req.Username}

	sess, _, err := h.authService.Login(c.Request().Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		return h.render(c, http.StatusUnauthorized, web.PageLogin, current, form,
			&web.Flash{Category: FlashError, Message: MsgInvalidLogin})
	case errors.Is(err, apperrors.ErrPendingApproval):
		return h.render(c, http.StatusForbidden, web.PageLogin, current, form,
			&web.Flash{Category: FlashWarning, Message: MsgPendingApproval})
	case err != nil:
		return err
	}

	h.cookies.setSession(c, sess)
	return c.Redirect(http.StatusSeeOther, "/dashboard")
}

// Logout godoc
// @Summary Log out
// @Tags auth
// @Success 303 "Redirect to /"
// @Router /logout [get]
func (h *AuthHandler) Logout(c echo.Context, user *model.User) error {
	sess, err := SessionFromContext(c)
	if err == nil {
		if err := h.authService.Logout(c.Request().Context(), sess); err != nil {
			return err
		}
	}
	h.cookies.clearSession(c)
	h.log.Info().Uint("user_id", user.ID).Msg("logged out")
	return h.cookies.redirectWithFlash(c, "/", FlashInfo, MsgLoggedOut)
}

func (h *AuthHandler) render(c echo.Context, status int, page string, user *model.User, form map[string]string, flash *web.Flash) error {
	if flash == nil {
		flash = h.cookies.popFlash(c)
	}
	return c.Render(status, page, web.Page{
		Title:     pageTitles[page],
		User:      user,
		Flash:     flash,
		CSRFToken: csrfToken(c),
		Form:      form,
	})
}

var pageTitles = map[string]string{
	web.PageIndex:            "",
	web.PageRegister:         "Register",
	web.PageLogin:            "Log in",
	web.PageAdminDashboard:   "Dashboard",
	web.PageTeacherDashboard: "Dashboard",
	web.PageUpload:           "Upload",
}
