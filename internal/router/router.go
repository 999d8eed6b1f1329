package router

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	"fileportal/internal/auth"
	"fileportal/internal/config"
	"fileportal/internal/gate"
	"fileportal/internal/handler"
	"fileportal/internal/metrics"
)

// multipartOverhead is added to the upload limit for the request body limit
// so that multipart framing does not count against the file itself.
const multipartOverhead = 1 << 20

// Handlers groups everything the routes dispatch to.
type Handlers struct {
	Authenticator *handler.Authenticator
	Pages         *handler.PageHandler
	Auth          *handler.AuthHandler
	Admin         *handler.AdminHandler
	Files         *handler.FileHandler
}

// Register wires routes and middleware.
func Register(
	e *echo.Echo,
	cfg *config.Config,
	log zerolog.Logger,
	jwtService *auth.JWTService,
	m *metrics.Metrics,
	h Handlers,
) {
	e.HTTPErrorHandler = handler.ErrorHandler(log)
	e.Validator = &CustomValidator{validator: validator.New()}

	e.Use(middleware.RequestID())
	e.Use(requestLogger(log))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(bodyLimit(cfg.MaxUploadBytes)))
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
	}))
	e.Use(middleware.CSRFWithConfig(middleware.CSRFConfig{
		TokenLookup:    "form:csrf_token,header:X-CSRF-Token",
		CookieName:     "_csrf",
		CookiePath:     "/",
		CookieHTTPOnly: true,
		CookieSecure:   cfg.CookieSecure,
		CookieSameSite: http.SameSiteLaxMode,
		ErrorHandler: func(err error, c echo.Context) error {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
		},
	}))

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(m.Handler()))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	authn := h.Authenticator

	// Public pages
	e.GET("/", authn.Optional(h.Pages.Index))
	e.GET("/register", authn.Optional(h.Auth.RegisterForm))
	e.POST("/register", authn.Optional(h.Auth.Register))
	e.GET("/login", authn.Optional(h.Auth.LoginForm))
	e.POST("/login", authn.Optional(h.Auth.Login))

	// Session routes: the cookie is validated by echo-jwt, then the
	// authenticator checks the server-side session and the gate.
	session := echojwt.WithConfig(echojwt.Config{
		SigningKey:    jwtService.Secret(),
		SigningMethod: echojwt.AlgorithmHS256,
		TokenLookup:   "cookie:" + handler.SessionCookieName,
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(auth.Claims)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return authn.RedirectToLogin(c)
		},
	})

	e.GET("/logout", authn.Require(nil, h.Auth.Logout), session)
	e.GET("/dashboard", authn.Require(gate.Approved(), h.Pages.Dashboard), session)
	e.POST("/admin/approve_user/:id", authn.Require(gate.Admin(), h.Admin.ApproveUser), session)
	e.POST("/admin/reject_user/:id", authn.Require(gate.Admin(), h.Admin.RejectUser), session)
	e.GET("/upload", authn.Require(gate.Admin(), h.Files.UploadForm), session)
	e.POST("/upload", authn.Require(gate.Admin(), h.Files.Upload), session)
	e.GET("/download/:id", authn.Require(gate.Approved(), h.Files.Download), session)
}

// bodyLimit renders the request body limit in the form BodyLimit expects.
func bodyLimit(maxUploadBytes int64) string {
	return fmt.Sprintf("%dK", (maxUploadBytes+multipartOverhead)/1024)
}

// requestLogger logs one line per request through zerolog.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURIPath:   true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := log.Info()
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				event = log.Error().Err(v.Error)
			}
			event.
				Str("ip", v.RemoteIP).
				Str("method", v.Method).
				Str("path", v.URIPath).
				Int("status", v.Status).
				Dur("duration", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// NewServer builds the http.Server around e with transport timeouts.
func NewServer(e *echo.Echo, port string) *http.Server {
	return &http.Server{
		Addr:              ":" + port,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
}
