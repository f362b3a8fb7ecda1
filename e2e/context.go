// Package e2e runs the feature files against the full HTTP stack in process.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/go-chi/chi/v5"

	"mediashare/internal/auth/token"
	"mediashare/internal/registry/cache"
	"mediashare/internal/registry/handler"
	"mediashare/internal/registry/service"
	assetstore "mediashare/internal/registry/store/asset"
	id "mediashare/pkg/domain"
	"mediashare/pkg/platform/audit"
	"mediashare/pkg/platform/audit/publishers/compliance"
	auditmemory "mediashare/pkg/platform/audit/store/memory"
	"mediashare/pkg/platform/middleware/request"
)

const signingKey = "e2e-signing-key"

// TestContext holds one scenario's server and the last response seen.
type TestContext struct {
	router      http.Handler
	tokens      *token.Service
	audit       *auditmemory.InMemoryStore
	accessToken string

	lastStatus int
	lastBody   []byte
}

func NewTestContext() *TestContext {
	tc := &TestContext{
		tokens: token.NewService(signingKey, "mediashare", "mediashare-api", time.Hour),
	}
	tc.Reset()
	return tc
}

// Reset starts the scenario from an empty registry.
func (tc *TestContext) Reset() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tc.audit = auditmemory.NewInMemoryStore()
	svc := service.New(assetstore.NewInMemory(),
		service.WithLogger(logger),
		service.WithAuditPublisher(compliance.New(tc.audit)),
		service.WithCache(cache.NewLocal(time.Minute)),
	)

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.ContentTypeJSON)
	handler.New(svc, token.NewMiddlewareAdapter(tc.tokens), logger).Register(r)

	tc.router = r
	tc.accessToken = ""
	tc.lastStatus = 0
	tc.lastBody = nil
}

// AuthenticateAs mints a token for owner and uses it on later requests.
func (tc *TestContext) AuthenticateAs(owner string) error {
	tok, _, err := tc.tokens.Issue(id.OwnerID(owner))
	if err != nil {
		return err
	}
	tc.accessToken = tok
	return nil
}

func (tc *TestContext) ClearAuthentication() {
	tc.accessToken = ""
}

func (tc *TestContext) POST(path string, body any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return tc.do(req)
}

func (tc *TestContext) GET(path string) error {
	return tc.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (tc *TestContext) do(req *http.Request) error {
	if tc.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+tc.accessToken)
	}
	rec := httptest.NewRecorder()
	tc.router.ServeHTTP(rec, req)
	tc.lastStatus = rec.Code
	tc.lastBody = rec.Body.Bytes()
	return nil
}

func (tc *TestContext) StatusCode() int {
	return tc.lastStatus
}

// DecodeResponse unmarshals the last response body into v.
func (tc *TestContext) DecodeResponse(v any) error {
	if err := json.Unmarshal(tc.lastBody, v); err != nil {
		return fmt.Errorf("decode response %q: %w", tc.lastBody, err)
	}
	return nil
}

func (tc *TestContext) GetResponseField(field string) (any, error) {
	var body map[string]any
	if err := tc.DecodeResponse(&body); err != nil {
		return nil, err
	}
	v, ok := body[field]
	if !ok {
		return nil, fmt.Errorf("field %q not in response %s", field, tc.lastBody)
	}
	return v, nil
}

// AuditActions lists the recorded audit actions for assetID, oldest first.
func (tc *TestContext) AuditActions(assetID string) ([]string, error) {
	events, err := tc.audit.ListBySubject(context.Background(), assetID)
	if err != nil {
		return nil, err
	}
	actions := make([]string, 0, len(events))
	for _, e := range events {
		if e.Category == audit.CategoryCompliance {
			actions = append(actions, e.Action)
		}
	}
	return actions, nil
}
