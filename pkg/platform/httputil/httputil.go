package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "pollster/pkg/domain-errors"
)

// ErrorResponse is the envelope for every error the API returns.
// Code is machine-readable; Message is safe to show to end users.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Errors after WriteHeader cannot change the status code, so we ignore encoding errors.
	_ = json.NewEncoder(w).Encode(response)
}

// WriteError centralizes domain error translation to HTTP responses.
func WriteError(w http.ResponseWriter, err error) {
	var domainErr *dErrors.Error
	if !errors.As(err, &domainErr) {
		WriteErrorBody(w, dErrors.CodeInternal, "An unexpected error occurred.")
		return
	}
	msg := domainErr.Message
	if msg == "" || domainErr.Code == dErrors.CodeInternal {
		// Internal messages may carry infrastructure detail.
		msg = defaultMessage(domainErr.Code)
	}
	WriteErrorBody(w, domainErr.Code, msg)
}

// WriteErrorBody writes the standard error envelope for a domain code.
func WriteErrorBody(w http.ResponseWriter, code dErrors.Code, message string) {
	WriteJSON(w, DomainCodeToHTTPStatus(code), ErrorResponse{
		Error:   errorTitle(code),
		Message: message,
		Code:    DomainCodeToHTTPCode(code),
	})
}

// DomainCodeToHTTPStatus translates domain error codes to HTTP status codes.
func DomainCodeToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeBadRequest, dErrors.CodeValidation:
		return http.StatusBadRequest
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeForbidden, dErrors.CodeCSRFInvalid:
		return http.StatusForbidden
	case dErrors.CodeSessionInvalid, dErrors.CodeAuthenticationRequired:
		return http.StatusUnauthorized
	case dErrors.CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// DomainCodeToHTTPCode translates domain error codes to the wire `code` field.
func DomainCodeToHTTPCode(code dErrors.Code) string {
	switch code {
	case dErrors.CodeNotFound:
		return "NOT_FOUND"
	case dErrors.CodeBadRequest, dErrors.CodeValidation:
		return "VALIDATION"
	case dErrors.CodeConflict:
		return "CONFLICT"
	case dErrors.CodeForbidden:
		return "FORBIDDEN"
	case dErrors.CodeCSRFInvalid:
		return "CSRF_INVALID"
	case dErrors.CodeSessionInvalid:
		return "SESSION_INVALID"
	case dErrors.CodeAuthenticationRequired:
		return "AUTHENTICATION_REQUIRED"
	case dErrors.CodeRateLimited:
		return "RATE_LIMIT"
	default:
		return "INTERNAL"
	}
}

func errorTitle(code dErrors.Code) string {
	switch code {
	case dErrors.CodeCSRFInvalid:
		return "CSRF validation failed"
	case dErrors.CodeSessionInvalid:
		return "Session invalid"
	case dErrors.CodeAuthenticationRequired:
		return "Authentication required"
	case dErrors.CodeRateLimited:
		return "Too many requests"
	default:
		return http.StatusText(DomainCodeToHTTPStatus(code))
	}
}

func defaultMessage(code dErrors.Code) string {
	switch code {
	case dErrors.CodeCSRFInvalid:
		return "Your security token is missing or expired. Please refresh and try again."
	case dErrors.CodeSessionInvalid:
		return "Your session has expired. Please sign in again."
	case dErrors.CodeAuthenticationRequired:
		return "You must be signed in to do that."
	case dErrors.CodeRateLimited:
		return "Too many requests. Please try again later."
	case dErrors.CodeInternal:
		return "An unexpected error occurred."
	default:
		return http.StatusText(DomainCodeToHTTPStatus(code))
	}
}
