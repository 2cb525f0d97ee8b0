package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shardauth/internal/chainnode"
)

type failingInspector struct{}

func (failingInspector) Balances(context.Context) ([]chainnode.AccountBalance, error) {
	return nil, errors.New("connection refused")
}

func (failingInspector) Blocks(context.Context) ([]chainnode.BlockHeader, error) {
	return nil, errors.New("connection refused")
}

func newRouter(node chainnode.Inspector) chi.Router {
	r := chi.NewRouter()
	New(node, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return r
}

func TestHandleAccounts(t *testing.T) {
	r := newRouter(chainnode.NewSimulated())

	req := httptest.NewRequest(http.MethodGet, "/node/1/accounts", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp []map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp, len(chainnode.DevAccounts))
	assert.Equal(t, string(chainnode.DevAccounts[0]), resp[0]["account"])
	assert.Equal(t, "100 ETH", resp[0]["balance"])
}

func TestHandleBlocks(t *testing.T) {
	node := chainnode.NewSimulated()
	_, err := node.LatestBlock(context.Background())
	require.NoError(t, err)
	r := newRouter(node)

	req := httptest.NewRequest(http.MethodGet, "/node/1/blockchain", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp, 2)
}

func TestNodeUnavailable(t *testing.T) {
	r := newRouter(failingInspector{})

	for _, path := range []string{"/node/1/accounts", "/node/1/blockchain"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
		assert.Contains(t, w.Body.String(), "provider_unavailable")
	}
}
