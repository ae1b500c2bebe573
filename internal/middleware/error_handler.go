package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"bizrent_ledger/internal/identity"
	"bizrent_ledger/internal/ledger"
)

// ErrorResponse is the body of every failed API request
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

const internalMessage = "Something went wrong. Please try again later."

// Classify maps an error to its HTTP status and response body
func Classify(err error) (int, ErrorResponse) {
	var validationErr *ledger.ValidationError
	var fileErr *ledger.FileValidationError
	var httpErr *echo.HTTPError

	resp := ErrorResponse{Message: err.Error()}
	switch {
	case errors.As(err, &validationErr):
		resp.Code, resp.Field, resp.Message = "VALIDATION_ERROR", validationErr.Field, validationErr.Message
		return http.StatusBadRequest, resp
	case errors.As(err, &fileErr):
		resp.Code, resp.Reason, resp.Message = "FILE_VALIDATION_ERROR", fileErr.Reason, fileErr.Message
		return http.StatusBadRequest, resp
	case errors.Is(err, ledger.ErrValidation):
		resp.Code = "VALIDATION_ERROR"
		return http.StatusBadRequest, resp
	case errors.Is(err, ledger.ErrFileValidation):
		resp.Code = "FILE_VALIDATION_ERROR"
		return http.StatusBadRequest, resp
	case errors.Is(err, identity.ErrUnauthenticated):
		resp.Code = "UNAUTHORIZED"
		return http.StatusUnauthorized, resp
	case errors.Is(err, identity.ErrForbidden):
		resp.Code = "FORBIDDEN"
		return http.StatusForbidden, resp
	case errors.Is(err, ledger.ErrNotOwner):
		resp.Code = "AUTHORIZATION_ERROR"
		return http.StatusForbidden, resp
	case errors.Is(err, ledger.ErrNotFound):
		resp.Code = "NOT_FOUND"
		return http.StatusNotFound, resp
	case errors.Is(err, ledger.ErrAlreadyProcessed):
		resp.Code = "ALREADY_PROCESSED"
		return http.StatusConflict, resp
	case errors.Is(err, ledger.ErrDuplicateGeneration):
		resp.Code = "DUPLICATE_GENERATION"
		return http.StatusConflict, resp
	case errors.Is(err, ledger.ErrInvalidState):
		resp.Code = "INVALID_STATE"
		return http.StatusConflict, resp
	case errors.Is(err, ledger.ErrEmptyBatch):
		resp.Code = "EMPTY_BATCH"
		return http.StatusUnprocessableEntity, resp
	case errors.As(err, &httpErr):
		return httpErr.Code, httpErrorResponse(httpErr)
	}
	return http.StatusInternalServerError, ErrorResponse{Message: internalMessage, Code: "INTERNAL_ERROR"}
}

func httpErrorResponse(he *echo.HTTPError) ErrorResponse {
	resp := ErrorResponse{Message: http.StatusText(he.Code)}
	if msg, ok := he.Message.(string); ok && msg != "" {
		resp.Message = msg
	}

	switch he.Code {
	case http.StatusBadRequest:
		resp.Code = "VALIDATION_ERROR"
	case http.StatusUnauthorized:
		resp.Code = "UNAUTHORIZED"
	case http.StatusForbidden:
		resp.Code = "FORBIDDEN"
	case http.StatusNotFound:
		resp.Code = "NOT_FOUND"
	case http.StatusRequestEntityTooLarge:
		resp.Code = "FILE_VALIDATION_ERROR"
	default:
		if he.Code >= http.StatusInternalServerError {
			resp.Code = "INTERNAL_ERROR"
			resp.Message = internalMessage
		} else {
			resp.Code = "REQUEST_ERROR"
		}
	}
	return resp
}

// ErrorHandler renders errors as JSON for Echo
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code, resp := Classify(err)
	if code >= http.StatusInternalServerError {
		c.Logger().Error(err)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, resp)
	}
	if err != nil {
		c.Logger().Error(err)
	}
}
