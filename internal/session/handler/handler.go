package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	csrfconfig "pollster/internal/csrf/config"
	"pollster/internal/identity"
	"pollster/internal/session/device"
	"pollster/internal/session/models"
	dErrors "pollster/pkg/domain-errors"
	"pollster/pkg/platform/httputil"
	"pollster/pkg/requestcontext"
)

// Service is the session service as seen by the HTTP layer.
type Service interface {
	Start(ctx context.Context, identity *requestcontext.Identity, device string) (*models.Status, error)
	Status(ctx context.Context, identity *requestcontext.Identity) (*models.Status, error)
	SignOut(ctx context.Context, identity *requestcontext.Identity) error
}

// Handler serves the browser's session heartbeat endpoints.
type Handler struct {
	sessions     Service
	logger       *slog.Logger
	secureCookie bool
}

func New(sessions Service, logger *slog.Logger, secureCookie bool) *Handler {
	return &Handler{sessions: sessions, logger: logger, secureCookie: secureCookie}
}

// Register mounts the routes that need only an authenticated caller.
// Authentication and CSRF are applied by the parent router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/session/start", h.HandleStart)
	r.Get("/session/status", h.HandleStatus)
	r.Post("/auth/signout", h.HandleSignOut)
}

// RegisterGuarded mounts the heartbeat, which must sit behind the session
// guard so that the activity is recorded and an ended session is rejected.
func (h *Handler) RegisterGuarded(r chi.Router) {
	r.Post("/session/activity", h.HandleActivity)
}

// HandleStart implements POST /api/session/start.
//
// Called once after hosted sign-in. Replaces any previous session record.
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}

	status, err := h.sessions.Start(ctx, caller, device.Label(requestcontext.UserAgent(ctx)))
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to start session",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, status)
}

// HandleActivity implements POST /api/session/activity.
func (h *Handler) HandleActivity(w http.ResponseWriter, r *http.Request) {
	h.writeStatus(w, r)
}

// HandleStatus implements GET /api/session/status.
//
// Output: { "valid", "reason", "warn", "should_refresh",
// "idle_expires_in_seconds", "session_expires_in_seconds" }
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	h.writeStatus(w, r)
}

// HandleSignOut implements POST /api/auth/signout.
func (h *Handler) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}

	if err := h.sessions.SignOut(ctx, caller); err != nil {
		h.logger.ErrorContext(ctx, "failed to sign out",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	for _, name := range []string{csrfconfig.CookieName, identity.AccessTokenCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   h.secureCookie,
			SameSite: http.SameSiteStrictMode,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, &models.SignOutResponse{
		Success: true,
		Message: "Signed out",
	})
}

func (h *Handler) writeStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}

	status, err := h.sessions.Status(ctx, caller)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to load session status",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}

func (h *Handler) requireIdentity(w http.ResponseWriter, r *http.Request) (*requestcontext.Identity, bool) {
	caller := requestcontext.CurrentIdentity(r.Context())
	if caller == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeAuthenticationRequired, ""))
		return nil, false
	}
	return caller, true
}
