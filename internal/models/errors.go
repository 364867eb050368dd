package models

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error codes carried by AppError.
const (
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeSenderNotFound       = "SENDER_NOT_FOUND"
	CodeRecipientNotFound    = "RECIPIENT_NOT_FOUND"
	CodeConversationNotFound = "CONVERSATION_NOT_FOUND"
	CodeForbidden            = "FORBIDDEN"
	CodeEmptyMessage         = "EMPTY_MESSAGE"
	CodeValidation           = "VALIDATION_ERROR"
	CodeNotFound             = "NOT_FOUND"
	CodeRateLimited          = "RATE_LIMITED"
	CodeInternal             = "INTERNAL_ERROR"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{Code: CodeValidation, Message: message}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{Code: CodeUnauthorized, Message: message}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{Code: CodeForbidden, Message: message}
}

func NewSenderNotFoundError() *AppError {
	return &AppError{Code: CodeSenderNotFound, Message: "Sender not found"}
}

func NewRecipientNotFoundError() *AppError {
	return &AppError{Code: CodeRecipientNotFound, Message: "Recipient not found"}
}

func NewConversationNotFoundError() *AppError {
	return &AppError{Code: CodeConversationNotFound, Message: "Conversation not found"}
}

func NewEmptyMessageError() *AppError {
	return &AppError{Code: CodeEmptyMessage, Message: "Message cannot be empty"}
}

func NewRateLimitedError() *AppError {
	return &AppError{Code: CodeRateLimited, Message: "Too many requests"}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// ErrorCode returns the AppError code in err's chain, or CodeInternal.
func ErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// HTTPStatus maps an error to the status code a REST handler should answer with.
func HTTPStatus(err error) int {
	switch ErrorCode(err) {
	case CodeUnauthorized:
		return fiber.StatusUnauthorized
	case CodeForbidden:
		return fiber.StatusForbidden
	case CodeSenderNotFound, CodeRecipientNotFound, CodeConversationNotFound, CodeNotFound:
		return fiber.StatusNotFound
	case CodeEmptyMessage, CodeValidation:
		return fiber.StatusBadRequest
	case CodeRateLimited:
		return fiber.StatusTooManyRequests
	default:
		return fiber.StatusInternalServerError
	}
}

// PublicMessage returns text safe to show a client. Internal causes are never exposed.
func PublicMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "Internal server error"
}

// RespondWithError writes a standardized error body.
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	return c.Status(status).JSON(ErrorResponse{
		Error: PublicMessage(err),
		Code:  ErrorCode(err),
	})
}

// RespondWithAppError writes err with the status derived from its code.
func RespondWithAppError(c *fiber.Ctx, err error) error {
	return RespondWithError(c, HTTPStatus(err), err)
}
