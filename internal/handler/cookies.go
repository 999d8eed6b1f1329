package handler

import (
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"fileportal/internal/auth"
	"fileportal/internal/web"
)

const (
	// SessionCookieName carries the signed session token.
	SessionCookieName = "session"
	flashCookieName   = "flash"
)

// Flash categories.
const (
	FlashSuccess = "success"
	FlashInfo    = "info"
	FlashWarning = "warning"
	FlashError   = "error"
)

// CookieOptions holds the attributes shared by the portal cookies.
type CookieOptions struct {
	Secure bool
}

func (o CookieOptions) cookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (o CookieOptions) setSession(c echo.Context, sess *auth.Session) {
	ck := o.cookie(SessionCookieName, sess.Token)
	ck.Expires = sess.ExpiresAt
	c.SetCookie(ck)
}

func (o CookieOptions) clearSession(c echo.Context) {
	ck := o.cookie(SessionCookieName, "")
	ck.MaxAge = -1
	ck.Expires = time.Unix(0, 0)
	c.SetCookie(ck)
}

// setFlash stores a notice for the next rendered page.
func (o CookieOptions) setFlash(c echo.Context, category, message string) {
	value := base64.RawURLEncoding.EncodeToString([]byte(category + "\n" + message))
	c.SetCookie(o.cookie(flashCookieName, value))
}

// popFlash returns and clears the pending notice, if any.
func (o CookieOptions) popFlash(c echo.Context) *web.Flash {
	ck, err := c.Cookie(flashCookieName)
	if err != nil || ck.Value == "" {
		return nil
	}
	expired := o.cookie(flashCookieName, "")
	expired.MaxAge = -1
	c.SetCookie(expired)

	raw, err := base64.RawURLEncoding.DecodeString(ck.Value)
	if err != nil {
		return nil
	}
	category, message, ok := strings.Cut(string(raw), "\n")
	if !ok || message == "" {
		return nil
	}
	return &web.Flash{Category: category, Message: message}
}

// redirectWithFlash sets a notice and answers 303 See Other.
func (o CookieOptions) redirectWithFlash(c echo.Context, to, category, message string) error {
	o.setFlash(c, category, message)
	return c.Redirect(http.StatusSeeOther, to)
}

func csrfToken(c echo.Context) string {
	token, _ := c.Get("csrf").(string)
	return token
}
