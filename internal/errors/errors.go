package errors

import (
	"errors"
	"net/http"
)

var (
	// ErrValidation is returned for bad or missing user input.
	ErrValidation = errors.New("validation error")
	// ErrConflict is returned when a uniqueness rule would be violated.
	ErrConflict = errors.New("conflict")
	// ErrNotFound is returned for unknown ids or files missing from storage.
	ErrNotFound = errors.New("not found")
	// ErrUnauthenticated is returned when no valid session is present.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden is returned when an authenticated user may not perform an action.
	ErrForbidden = errors.New("forbidden")
	// ErrPayloadTooLarge is returned when an upload exceeds the size limit.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrInvalidCredentials is returned when username or password is incorrect.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrPendingApproval is returned when the credentials match an account that is not approved yet.
	ErrPendingApproval = errors.New("account pending approval")
)

// Error carries one of the sentinel kinds above together with a message
// that is safe to show to the user.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// New creates an error of the given kind with a user-facing message.
func New(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Validation is shorthand for New(ErrValidation, message).
func Validation(message string) *Error {
	return New(ErrValidation, message)
}

// Conflict is shorthand for New(ErrConflict, message).
func Conflict(message string) *Error {
	return New(ErrConflict, message)
}

// NotFound is shorthand for New(ErrNotFound, message).
func NotFound(message string) *Error {
	return New(ErrNotFound, message)
}

// UserMessage returns the message to display for err. Errors that do not
// carry a user-facing message yield fallback.
func UserMessage(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return fallback
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error: e.Message,
		Code:  e.Code,
	}
}

// MapErrorToHTTP maps domain errors to HTTP errors. Forbidden never says why.
func MapErrorToHTTP(err error) *HTTPError {
	switch {
	case errors.Is(err, ErrForbidden):
		return NewHTTPError(http.StatusForbidden, "forbidden", "FORBIDDEN")
	case errors.Is(err, ErrUnauthenticated):
		return NewHTTPError(http.StatusUnauthorized, "login required", "UNAUTHENTICATED")
	case errors.Is(err, ErrNotFound):
		return NewHTTPError(http.StatusNotFound, UserMessage(err, "not found"), "NOT_FOUND")
	case errors.Is(err, ErrValidation):
		return NewHTTPError(http.StatusBadRequest, UserMessage(err, "invalid input"), "VALIDATION_ERROR")
	case errors.Is(err, ErrConflict):
		return NewHTTPError(http.StatusConflict, UserMessage(err, "already exists"), "CONFLICT")
	case errors.Is(err, ErrPayloadTooLarge):
		return NewHTTPError(http.StatusRequestEntityTooLarge, UserMessage(err, "file too large"), "PAYLOAD_TOO_LARGE")
	case errors.Is(err, ErrInvalidCredentials):
		return NewHTTPError(http.StatusUnauthorized, ErrInvalidCredentials.Error(), "INVALID_CREDENTIALS")
	case errors.Is(err, ErrPendingApproval):
		return NewHTTPError(http.StatusForbidden, ErrPendingApproval.Error(), "PENDING_APPROVAL")
	default:
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}
