package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediashare/internal/auth/token"
	"mediashare/internal/platform/httpserver"
	"mediashare/internal/registry/handler"
	"mediashare/pkg/testutil"
)

func TestRouterScaffold(t *testing.T) {
	testutil.Given(t, "the assembled router", func(t *testing.T) {
		cfg := testConfig()
		a, err := build(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
		require.NoError(t, err)
		t.Cleanup(a.Close)
		router := a.Router()

		tokens := token.NewService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience, time.Hour)
		alice, _, err := tokens.Issue("alice")
		require.NoError(t, err)

		testutil.When(t, "probing liveness", func(t *testing.T) {
			rec := testutil.DoRequest(router, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			testutil.Then(t, "it should report ok", func(t *testing.T) {
				testutil.AssertStatus(t, rec, http.StatusOK)
				assert.Equal(t, "ok", testutil.UnmarshalResponse[httpserver.HealthResponse](t, rec).Status)
			})
		})

		testutil.When(t, "transferring without a token", func(t *testing.T) {
			req := testutil.NewJSONRequest(t, http.MethodPost, "/v1/assets/m1/transfers", map[string]any{"to": "bob", "percentage": 10})
			rec := testutil.DoRequest(router, req)

			testutil.Then(t, "it should be unauthorized", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rec, http.StatusUnauthorized, "unauthorized")
			})
		})

		testutil.When(t, "reading an unknown asset", func(t *testing.T) {
			rec := testutil.DoRequest(router, httptest.NewRequest(http.MethodGet, "/v1/assets/nope", nil))

			testutil.Then(t, "it should be not found", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rec, http.StatusNotFound, "not_found")
			})
		})

		testutil.When(t, "alice registers and transfers part of an asset", func(t *testing.T) {
			req := testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodPost, "/v1/assets",
				map[string]any{"asset_id": "m1", "title": "Sunset"}), alice)
			testutil.AssertStatus(t, testutil.DoRequest(router, req), http.StatusCreated)

			req = testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodPost, "/v1/assets/m1/transfers",
				map[string]any{"to": "bob", "percentage": 40}), alice)
			rec := testutil.DoRequest(router, req)

			testutil.Then(t, "the partition should be split", func(t *testing.T) {
				testutil.AssertStatus(t, rec, http.StatusOK)
				asset := testutil.UnmarshalResponse[handler.AssetResponse](t, rec)
				assert.Equal(t, []handler.StakeResponse{{Owner: "alice", Share: 60}, {Owner: "bob", Share: 40}}, asset.Partition)
			})
		})
	})
}
