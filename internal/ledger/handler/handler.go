// Package handler serves read access to the identity ledger.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"shardauth/internal/ledger"
	dErrors "shardauth/pkg/domain-errors"
	"shardauth/pkg/platform/httputil"
	"shardauth/pkg/platform/sentinel"
	"shardauth/pkg/requestcontext"
)

// Reader is the ledger read surface used by the handler.
type Reader interface {
	Blocks(ctx context.Context) []ledger.Block
	FindByHashedIndex(ctx context.Context, hashedID string) (*ledger.Block, error)
}

// Handler serves ledger endpoints. Private keys never leave through it.
type Handler struct {
	ledger Reader
	logger *slog.Logger
}

// New creates a ledger Handler.
func New(l Reader, logger *slog.Logger) *Handler {
	return &Handler{ledger: l, logger: logger}
}

// Register mounts the ledger routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/blockchain", h.handleBlockchain)
	r.Post("/block", h.handleFindBlock)
}

// BlockchainResponse is the full public chain.
type BlockchainResponse struct {
	Blockchain []ledger.Block `json:"blockchain"`
	Length     int            `json:"length"`
}

// FindBlockRequest looks a block up by the sha256 of its index.
type FindBlockRequest struct {
	Index string `json:"index"`
}

func (r *FindBlockRequest) Validate() error {
	r.Index = strings.ToLower(strings.TrimSpace(r.Index))
	if r.Index == "" {
		return dErrors.New(dErrors.CodeValidation, "index is required")
	}
	return nil
}

func (h *Handler) handleBlockchain(w http.ResponseWriter, r *http.Request) {
	blocks := h.ledger.Blocks(r.Context())
	public := make([]ledger.Block, len(blocks))
	for i, b := range blocks {
		public[i] = b.Public()
	}
	httputil.WriteJSON(w, http.StatusOK, BlockchainResponse{Blockchain: public, Length: len(public)})
}

func (h *Handler) handleFindBlock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[FindBlockRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	block, err := h.ledger.FindByHashedIndex(ctx, req.Index)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeNotFound, "block not found"))
			return
		}
		h.logger.ErrorContext(ctx, "failed to look up block",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up block"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, block.Public())
}
