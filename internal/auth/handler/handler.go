// Package handler exposes registration and authentication over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"shardauth/internal/auth/models"
	"shardauth/pkg/platform/httputil"
	"shardauth/pkg/requestcontext"
)

// Service is the auth surface the handler needs.
type Service interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.RegisterResult, error)
	Authenticate(ctx context.Context, req models.AuthenticateRequest) (*models.AuthenticateResult, error)
}

// Handler serves POST /register and POST /authenticate.
type Handler struct {
	auth   Service
	logger *slog.Logger
}

func New(auth Service, logger *slog.Logger) *Handler {
	return &Handler{auth: auth, logger: logger}
}

// Register mounts the auth routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Post("/register", h.handleRegister)
	r.Post("/authenticate", h.handleAuthenticate)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.RegisterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.auth.Register(ctx, *req)
	if err != nil {
		h.logger.ErrorContext(ctx, "registration failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.AuthenticateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.auth.Authenticate(ctx, *req)
	if err != nil {
		h.logger.WarnContext(ctx, "authentication failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}
