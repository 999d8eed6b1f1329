package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"fileportal/internal/model"
	"fileportal/internal/service"
	"fileportal/internal/web"
)

// PageHandler serves the landing page and the dashboards.
type PageHandler struct {
	credentials service.CredentialService
	files       service.FileService
	cookies     CookieOptions
}

// NewPageHandler creates a new page handler.
func NewPageHandler(credentials service.CredentialService, files service.FileService, cookies CookieOptions) *PageHandler {
	return &PageHandler{credentials: credentials, files: files, cookies: cookies}
}

// Index godoc
// @Summary Landing page
// @Tags pages
// @Produce html
// @Success 200 {string} string "HTML page"
// @Router / [get]
func (h *PageHandler) Index(c echo.Context, user *model.User) error {
	return c.Render(http.StatusOK, web.PageIndex, web.Page{
		User:      user,
		Flash:     h.cookies.popFlash(c),
		CSRFToken: csrfToken(c),
	})
}

// Dashboard godoc
// @Summary Dashboard
// @Description Administrators see pending accounts and files; teachers see files.
// @Tags pages
// @Produce html
// @Success 200 {string} string "HTML page"
// @Success 303 "Redirect to /login when not signed in"
// @Failure 403 {string} string "forbidden"
// @Router /dashboard [get]
func (h *PageHandler) Dashboard(c echo.Context, user *model.User) error {
	ctx := c.Request().Context()

	files, err := h.files.List(ctx)
	if err != nil {
		return err
	}

	page := web.Page{
		Title:     "Dashboard",
		User:      user,
		Flash:     h.cookies.popFlash(c),
		CSRFToken: csrfToken(c),
		Files:     files,
	}

	if !user.IsAdmin() {
		return c.Render(http.StatusOK, web.PageTeacherDashboard, page)
	}

	page.PendingUsers, err = h.credentials.ListPending(ctx)
	if err != nil {
		return err
	}
	return c.Render(http.StatusOK, web.PageAdminDashboard, page)
}
