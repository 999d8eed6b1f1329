package handler

import (
	"errors"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	apperrors "fileportal/internal/errors"
	"fileportal/internal/model"
	"fileportal/internal/service"
	"fileportal/internal/web"
)

// MsgUploaded is shown after a successful upload.
const MsgUploaded = "File uploaded successfully!"

// FileHandler handles uploads and downloads.
type FileHandler struct {
	files       service.FileService
	cookies     CookieOptions
	maxUploadMB int64
	log         zerolog.Logger
}

// NewFileHandler creates a new file handler.
func NewFileHandler(files service.FileService, cookies CookieOptions, maxUploadBytes int64, log zerolog.Logger) *FileHandler {
	return &FileHandler{
		files:       files,
		cookies:     cookies,
		maxUploadMB: maxUploadBytes >> 20,
		log:         log,
	}
}

// UploadForm godoc
// @Summary Upload page
// @Tags files
// @Produce html
// @Success 200 {string} string "HTML page"
// @Failure 403 {string} string "forbidden"
// @Router /upload [get]
func (h *FileHandler) UploadForm(c echo.Context, user *model.User) error {
	return h.render(c, http.StatusOK, user, h.cookies.popFlash(c))
}

// Upload godoc
// @Summary Upload a file
// @Description Administrators only. Allowed extensions: txt, pdf, png, jpg, jpeg, gif, doc, docx, ppt, pptx, xls, xlsx.
// @Tags files
// @Accept multipart/form-data
// @Produce html
// @Param file formData file true "File to upload"
// @Param csrf_token formData string true "CSRF token"
// @Success 303 "Redirect to /dashboard"
// @Failure 400 {string} string "Validation error page"
// @Failure 403 {string} string "forbidden"
// @Failure 413 {string} string "File is too large."
// @Router /upload [post]
func (h *FileHandler) Upload(c echo.Context, user *model.User) error {
	fh, err := c.FormFile("file")
	switch {
	case err == nil:
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		// no file part; the service reports "No file selected."
		fh = nil
	case errors.Is(err, multipart.ErrMessageTooLarge):
		return apperrors.New(apperrors.ErrPayloadTooLarge, service.MsgFileTooLarge)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}

	if _, err := h.files.Upload(c.Request().Context(), user, fh); err != nil {
		var appErr *apperrors.Error
		if !errors.As(err, &appErr) {
			return err
		}
		status := apperrors.MapErrorToHTTP(err).StatusCode
		return h.render(c, status, user, &web.Flash{Category: FlashError, Message: appErr.Message})
	}
	return h.cookies.redirectWithFlash(c, "/dashboard", FlashSuccess, MsgUploaded)
}

// Download godoc
// @Summary Download a file
// @Description Approved users only. The file is sent as an attachment under its original name.
// @Tags files
// @Produce octet-stream
// @Param id path int true "File ID"
// @Success 200 {file} file
// @Success 303 "Redirect to /dashboard when the file is missing"
// @Failure 403 {string} string "forbidden"
// @Router /download/{id} [get]
func (h *FileHandler) Download(c echo.Context, user *model.User) error {
	id, err := parseID(c)
	if err != nil {
		return h.cookies.redirectWithFlash(c, "/dashboard", FlashError, service.MsgFileNotFound)
	}

	file, obj, err := h.files.Open(c.Request().Context(), user, id)
	if errors.Is(err, apperrors.ErrNotFound) {
		return h.cookies.redirectWithFlash(c, "/dashboard", FlashError, service.MsgFileNotFound)
	}
	if err != nil {
		return err
	}
	defer obj.Body.Close()

	h.log.Info().Uint("file_id", file.ID).Uint("user_id", user.ID).Msg("file downloaded")

	header := c.Response().Header()
	header.Set(echo.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": file.OriginalName}))
	header.Set("X-Content-Type-Options", "nosniff")
	if obj.ContentLength > 0 {
		header.Set(echo.HeaderContentLength, strconv.FormatInt(obj.ContentLength, 10))
	}

	contentType := obj.ContentType
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	return c.Stream(http.StatusOK, contentType, obj.Body)
}

func (h *FileHandler) render(c echo.Context, status int, user *model.User, flash *web.Flash) error {
	return c.Render(status, web.PageUpload, web.Page{
		Title:       "Upload",
		User:        user,
		Flash:       flash,
		CSRFToken:   csrfToken(c),
		MaxUploadMB: h.maxUploadMB,
	})
}
