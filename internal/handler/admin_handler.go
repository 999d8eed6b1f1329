package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	apperrors "fileportal/internal/errors"
	"fileportal/internal/model"
	"fileportal/internal/service"
)

// AdminHandler handles the account approval workflow.
type AdminHandler struct {
	credentials service.CredentialService
	cookies     CookieOptions
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(credentials service.CredentialService, cookies CookieOptions) *AdminHandler {
	return &AdminHandler{credentials: credentials, cookies: cookies}
}

// ApproveUser godoc
// @Summary Approve a pending account
// @Tags admin
// @Param id path int true "User ID"
// @Param csrf_token formData string true "CSRF token"
// @Success 303 "Redirect to /dashboard"
// @Failure 400 {string} string "invalid request"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "User not found."
// @Router /admin/approve_user/{id} [post]
func (h *AdminHandler) ApproveUser(c echo.Context, admin *model.User) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	user, err := h.credentials.Approve(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return h.cookies.redirectWithFlash(c, "/dashboard", FlashSuccess,
		fmt.Sprintf("User %s has been approved.", user.Username))
}

// RejectUser godoc
// @Summary Reject and remove an account
// @Tags admin
// @Param id path int true "User ID"
// @Param csrf_token formData string true "CSRF token"
// @Success 303 "Redirect to /dashboard"
// @Failure 400 {string} string "invalid request"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "User not found."
// @Router /admin/reject_user/{id} [post]
func (h *AdminHandler) RejectUser(c echo.Context, admin *model.User) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	user, err := h.credentials.Reject(c.Request().Context(), id)
	if errors.Is(err, apperrors.ErrConflict) {
		return h.cookies.redirectWithFlash(c, "/dashboard", FlashError, apperrors.UserMessage(err, "Request failed."))
	}
	if err != nil {
		return err
	}
	return h.cookies.redirectWithFlash(c, "/dashboard", FlashInfo,
		fmt.Sprintf("User %s has been rejected and removed.", user.Username))
}

// parseID reads the :id path parameter. Anything but a positive integer is a 404.
func parseID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusNotFound, "not found")
	}
	return uint(id), nil
}
