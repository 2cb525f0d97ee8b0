package challenge

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"shardauth/pkg/domain"
	dErrors "shardauth/pkg/domain-errors"
	"shardauth/pkg/platform/httputil"
	"shardauth/pkg/requestcontext"
)

// Issuer is the challenge surface the handler needs.
type Issuer interface {
	PreAuthenticate(ctx context.Context, rawUserID string) (*PreAuthResult, error)
}

// Handler serves POST /pre-authenticate.
type Handler struct {
	issuer Issuer
	logger *slog.Logger
}

// NewHandler creates a challenge Handler.
func NewHandler(issuer Issuer, logger *slog.Logger) *Handler {
	return &Handler{issuer: issuer, logger: logger}
}

// Register mounts the challenge route on r.
func (h *Handler) Register(r chi.Router) {
	r.Post("/pre-authenticate", h.handlePreAuthenticate)
}

// PreAuthRequest carries the raw identity to challenge.
type PreAuthRequest struct {
	UserID domain.UserID `json:"userId"`
}

func (r *PreAuthRequest) Validate() error {
	if r.UserID.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "userId is required")
	}
	return nil
}

func (h *Handler) handlePreAuthenticate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[PreAuthRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.issuer.PreAuthenticate(ctx, req.UserID.String())
	if err != nil {
		h.logger.ErrorContext(ctx, "pre-authentication failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}
