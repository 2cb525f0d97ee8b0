package challenge

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shardauth/internal/chainnode"
	"shardauth/pkg/digest"
	dErrors "shardauth/pkg/domain-errors"
	"shardauth/pkg/testutil"
)

type issuerFunc func(ctx context.Context, rawUserID string) (*PreAuthResult, error)

func (f issuerFunc) PreAuthenticate(ctx context.Context, rawUserID string) (*PreAuthResult, error) {
	return f(ctx, rawUserID)
}

func newTestRouter(issuer Issuer) chi.Router {
	r := chi.NewRouter()
	NewHandler(issuer, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return r
}

func TestHandlePreAuthenticate(t *testing.T) {
	store := NewMemoryStore()
	svc, err := NewService(chainnode.NewSimulated(), store, DefaultConfig(),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	router := newTestRouter(svc)

	t.Run("numeric user id", func(t *testing.T) {
		req := testutil.NewRequestWithBody(t, http.MethodPost, "/pre-authenticate", `{"userId": 2}`)
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatusOK(t, rr)

		res := testutil.UnmarshalResponse[PreAuthResult](t, rr)
		assert.Equal(t, digest.SHA256Hex("2"), res.RequestAuth.UserID)
		assert.Len(t, res.ChallengeToken, 64)
		assert.Len(t, res.SignedTokens, 3)

		stored, err := store.Get(context.Background(), digest.SHA256Hex("2"))
		require.NoError(t, err)
		assert.Equal(t, res.ChallengeToken, stored)
	})

	t.Run("string user id", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/pre-authenticate", map[string]string{"userId": "2"})
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatusOK(t, rr)
	})

	t.Run("padded string user id hashes as its index", func(t *testing.T) {
		req := testutil.NewRequestWithBody(t, http.MethodPost, "/pre-authenticate", `{"userId": " 02 "}`)
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatusOK(t, rr)
		res := testutil.UnmarshalResponse[PreAuthResult](t, rr)
		assert.Equal(t, digest.SHA256Hex("2"), res.RequestAuth.UserID)
	})

	for _, body := range []string{`{"userId": 1.0}`, `{"userId": 1e0}`, `{"userId": -2}`} {
		t.Run("non-integer user id "+body, func(t *testing.T) {
			req := testutil.NewRequestWithBody(t, http.MethodPost, "/pre-authenticate", body)
			rr := testutil.DoRequest(router, req)
			testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")
		})
	}

	t.Run("missing user id", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/pre-authenticate", map[string]string{})
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")
	})
}

func TestHandlePreAuthenticate_ServiceErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"provider", dErrors.New(dErrors.CodeProviderUnavailable, "node down"), http.StatusServiceUnavailable, "provider_unavailable"},
		{"cache", dErrors.New(dErrors.CodeCacheUnavailable, "redis down"), http.StatusServiceUnavailable, "cache_unavailable"},
		{"unexpected", io.ErrUnexpectedEOF, http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(issuerFunc(func(context.Context, string) (*PreAuthResult, error) {
				return nil, tc.err
			}))
			req := testutil.NewRequestWithBody(t, http.MethodPost, "/pre-authenticate", `{"userId":"1"}`)
			rr := testutil.DoRequest(router, req)
			testutil.AssertStatusAndError(t, rr, tc.status, tc.code)
		})
	}
}
