package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"pollster/internal/polls/models"
	id "pollster/pkg/domain"
	dErrors "pollster/pkg/domain-errors"
	"pollster/pkg/platform/httputil"
	"pollster/pkg/requestcontext"
)

// Service is the poll service as seen by the HTTP layer.
type Service interface {
	Create(ctx context.Context, ownerID id.UserID, req *models.CreatePollRequest) (*models.Poll, error)
	List(ctx context.Context, limit int) ([]*models.Poll, error)
	Get(ctx context.Context, pollID id.PollID) (*models.Poll, error)
	Delete(ctx context.Context, callerID id.UserID, pollID id.PollID) error
	Vote(ctx context.Context, callerID id.UserID, pollID id.PollID, optionID id.OptionID) (*models.Results, error)
	Results(ctx context.Context, pollID id.PollID) (*models.Results, error)
}

// Middleware groups the guards applied per route. Nil entries are skipped.
type Middleware struct {
	// Read wraps every GET.
	Read func(http.Handler) http.Handler
	// Create and Vote wrap their single routes ahead of Mutate.
	Create func(http.Handler) http.Handler
	Vote   func(http.Handler) http.Handler
	Delete func(http.Handler) http.Handler
	// Mutate wraps every state-changing route.
	Mutate func(http.Handler) http.Handler
}

// Handler serves /api/polls.
type Handler struct {
	polls  Service
	logger *slog.Logger
}

func New(polls Service, logger *slog.Logger) *Handler {
	return &Handler{polls: polls, logger: logger}
}

// Register mounts the poll routes on r.
func (h *Handler) Register(r chi.Router, mw Middleware) {
	r.Method(http.MethodGet, "/", chain(http.HandlerFunc(h.HandleList), mw.Read))
	r.Method(http.MethodGet, "/{id}", chain(http.HandlerFunc(h.HandleGet), mw.Read))
	r.Method(http.MethodGet, "/{id}/results", chain(http.HandlerFunc(h.HandleResults), mw.Read))
	r.Method(http.MethodPost, "/", chain(http.HandlerFunc(h.HandleCreate), mw.Create, mw.Mutate))
	r.Method(http.MethodPost, "/{id}/votes", chain(http.HandlerFunc(h.HandleVote), mw.Vote, mw.Mutate))
	r.Method(http.MethodDelete, "/{id}", chain(http.HandlerFunc(h.HandleDelete), mw.Delete, mw.Mutate))
}

// chain applies mws so that the first one runs first.
func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			h = mws[i](h)
		}
	}
	return h
}

// HandleList implements GET /api/polls?limit=N.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "limit must be a positive integer"))
			return
		}
		limit = n
	}

	polls, err := h.polls.List(ctx, limit)
	if err != nil {
		h.logError(ctx, "failed to list polls", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &models.PollListResponse{Polls: polls})
}

// HandleGet implements GET /api/polls/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pollID, ok := pollIDParam(w, r)
	if !ok {
		return
	}
	poll, err := h.polls.Get(ctx, pollID)
	if err != nil {
		h.logError(ctx, "failed to get poll", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, poll)
}

// HandleResults implements GET /api/polls/{id}/results.
func (h *Handler) HandleResults(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pollID, ok := pollIDParam(w, r)
	if !ok {
		return
	}
	res, err := h.polls.Results(ctx, pollID)
	if err != nil {
		h.logError(ctx, "failed to load results", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// HandleCreate implements POST /api/polls.
//
// Input: { "question": "...", "options": ["...", "..."] } with 2-10 options.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndValidate[models.CreatePollRequest](w, r, h.logger)
	if !ok {
		return
	}

	poll, err := h.polls.Create(ctx, caller.UserID, req)
	if err != nil {
		h.logError(ctx, "failed to create poll", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, poll)
}

// HandleVote implements POST /api/polls/{id}/votes.
//
// Input: { "option_id": "<uuid>" }. A repeat vote is 409 CONFLICT.
func (h *Handler) HandleVote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	pollID, ok := pollIDParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndValidate[models.VoteRequest](w, r, h.logger)
	if !ok {
		return
	}
	optionID, err := id.ParseOptionID(req.OptionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.polls.Vote(ctx, caller.UserID, pollID, optionID)
	if err != nil {
		h.logError(ctx, "failed to cast vote", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, &models.VoteResponse{Success: true, Results: res})
}

// HandleDelete implements DELETE /api/polls/{id}. Owner only.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	pollID, ok := pollIDParam(w, r)
	if !ok {
		return
	}
	if err := h.polls.Delete(ctx, caller.UserID, pollID); err != nil {
		h.logError(ctx, "failed to delete poll", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) logError(ctx context.Context, msg string, err error) {
	level := slog.LevelWarn
	if dErrors.HasCode(err, dErrors.CodeInternal) {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
}

func pollIDParam(w http.ResponseWriter, r *http.Request) (id.PollID, bool) {
	pollID, err := id.ParsePollID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.PollID{}, false
	}
	return pollID, true
}

func requireIdentity(w http.ResponseWriter, r *http.Request) (*requestcontext.Identity, bool) {
	caller := requestcontext.CurrentIdentity(r.Context())
	if caller == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeAuthenticationRequired, ""))
		return nil, false
	}
	return caller, true
}
