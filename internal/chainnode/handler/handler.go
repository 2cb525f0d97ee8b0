// Package handler exposes read-only views of the chain node to operators.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"shardauth/internal/chainnode"
	dErrors "shardauth/pkg/domain-errors"
	"shardauth/pkg/platform/httputil"
	"shardauth/pkg/requestcontext"
)

// Handler serves chain-node inspection endpoints.
type Handler struct {
	node   chainnode.Inspector
	logger *slog.Logger
}

// New creates a chain-node Handler.
func New(node chainnode.Inspector, logger *slog.Logger) *Handler {
	return &Handler{node: node, logger: logger}
}

// Register mounts the node routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/node/1/blockchain", h.handleBlocks)
	r.Get("/node/1/accounts", h.handleAccounts)
}

func (h *Handler) handleBlocks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	blocks, err := h.node.Blocks(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to read chain-node blocks",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeProviderUnavailable, "failed to read chain-node blocks"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, blocks)
}

func (h *Handler) handleAccounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	balances, err := h.node.Balances(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to read chain-node accounts",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeProviderUnavailable, "failed to read chain-node accounts"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, balances)
}
