package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	dErrors "pollster/pkg/domain-errors"
	"pollster/pkg/requestcontext"
	"pollster/pkg/validation"
)

// MaxBodySize bounds JSON request bodies.
const MaxBodySize = 64 * 1024

// Normalizable is implemented by request types that trim or canonicalise input.
type Normalizable interface {
	Normalize()
}

// DecodeJSON decodes a JSON request body into the target type.
// On failure it writes a VALIDATION error response and returns nil, false.
//
// Usage:
//
//	req, ok := httputil.DecodeJSON[models.CreatePollRequest](w, r, h.logger)
//	if !ok {
//	    return
//	}
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*T, bool) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodySize)

	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "failed to decode request body",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return nil, false
	}
	return &req, true
}

// DecodeAndValidate decodes the body, normalizes it when supported, and runs
// struct-tag validation.
func DecodeAndValidate[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*T, bool) {
	req, ok := DecodeJSON[T](w, r, logger)
	if !ok {
		return nil, false
	}
	if n, isNormalizable := any(req).(Normalizable); isNormalizable {
		n.Normalize()
	}
	if err := validation.Validate(req); err != nil {
		ctx := r.Context()
		logger.WarnContext(ctx, "invalid request",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		var domainErr *dErrors.Error
		if errors.As(err, &domainErr) {
			WriteError(w, err)
		} else {
			WriteError(w, dErrors.New(dErrors.CodeValidation, err.Error()))
		}
		return nil, false
	}
	return req, true
}
