package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pollster/internal/csrf/config"
	"pollster/internal/csrf/models"
	dErrors "pollster/pkg/domain-errors"
	"pollster/pkg/platform/httputil"
	"pollster/pkg/requestcontext"
)

// Service issues CSRF tokens.
type Service interface {
	Issue(ctx context.Context, ownerID string) (string, models.Record, error)
}

// Handler serves the token issuance endpoint.
type Handler struct {
	csrf         Service
	logger       *slog.Logger
	secureCookie bool
}

func New(csrf Service, logger *slog.Logger, secureCookie bool) *Handler {
	return &Handler{csrf: csrf, logger: logger, secureCookie: secureCookie}
}

// Register mounts the routes. Authentication is applied by the parent router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/csrf-token", h.HandleIssueToken)
}

// HandleIssueToken implements GET /api/csrf-token.
//
// Output: { "success": true, "token": "<64 hex>", "message": "..." } and the
// csrf-token cookie.
func (h *Handler) HandleIssueToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	identity := requestcontext.CurrentIdentity(ctx)
	if identity == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeAuthenticationRequired, ""))
		return
	}

	token, rec, err := h.csrf.Issue(ctx, identity.UserID.String())
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to issue csrf token",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     config.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(rec.ExpiresAt.Sub(rec.IssuedAt).Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})
	w.Header().Set("Cache-Control", "no-store")
	httputil.WriteJSON(w, http.StatusOK, &models.TokenResponse{
		Success: true,
		Token:   token,
		Message: "CSRF token generated",
	})
}
