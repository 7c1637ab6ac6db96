package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the unified API response format.
type Response struct {
	Code    int         `json:"code"`
	Kind    string      `json:"kind,omitempty"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Error kinds. These are stable machine-readable identifiers; clients match
// on them, so they never change once published.
const (
	KindUnauthorized  = "unauthorized"
	KindUserNotFound  = "user_not_found"
	KindForbidden     = "forbidden"
	KindValidation    = "validation_error"
	KindInvalidState  = "invalid_state"
	KindConflict      = "conflict"
	KindNotFound      = "not_found"
	KindDatabaseError = "database_error"
	KindInternal      = "internal"
)

// AppError represents a structured application error with HTTP status and a
// stable error kind.
type AppError struct {
	HTTPStatus int    // HTTP status code (e.g. 400, 404, 500)
	Kind       string // Machine-readable error kind
	Message    string // Human-readable error message
}

func (e *AppError) Error() string {
	return e.Message
}

// Pre-defined error constructors

func NewUnauthorized(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusUnauthorized, Kind: KindUnauthorized, Message: msg}
}

func NewUserNotFound(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusUnauthorized, Kind: KindUserNotFound, Message: msg}
}

func NewForbidden(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusForbidden, Kind: KindForbidden, Message: msg}
}

func NewValidation(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusBadRequest, Kind: KindValidation, Message: msg}
}

func NewInvalidState(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusBadRequest, Kind: KindInvalidState, Message: msg}
}

func NewConflict(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusConflict, Kind: KindConflict, Message: msg}
}

func NewNotFound(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusNotFound, Kind: KindNotFound, Message: msg}
}

func NewDatabaseError(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusInternalServerError, Kind: KindDatabaseError, Message: msg}
}

func NewInternal(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusInternalServerError, Kind: KindInternal, Message: msg}
}

// --- Gin response helpers ---

// Success sends a 200 OK response with data.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: "ok",
		Data:    data,
	})
}

// Created sends a 201 Created response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    0,
		Message: "created",
		Data:    data,
	})
}

// Error sends an error response. If err is an *AppError, its kind and status
// are used; any other error is treated as an unclassified internal error and
// its details are not exposed to the caller.
func Error(c *gin.Context, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.HTTPStatus, Response{
			Code:    appErr.HTTPStatus,
			Kind:    appErr.Kind,
			Message: appErr.Message,
		})
		return
	}
	c.JSON(http.StatusInternalServerError, Response{
		Code:    http.StatusInternalServerError,
		Kind:    KindInternal,
		Message: "internal server error",
	})
}

// Convenience error response functions

func BadRequest(c *gin.Context, msg string) {
	Error(c, NewValidation(msg))
}

func Unauthorized(c *gin.Context, msg string) {
	Error(c, NewUnauthorized(msg))
}

func Forbidden(c *gin.Context, msg string) {
	Error(c, NewForbidden(msg))
}

func NotFound(c *gin.Context, msg string) {
	Error(c, NewNotFound(msg))
}

func ServerError(c *gin.Context, msg string) {
	Error(c, NewInternal(msg))
}
