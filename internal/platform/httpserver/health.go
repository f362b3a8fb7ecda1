package httpserver

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"mediashare/pkg/platform/httputil"
)

// Check reports whether one dependency is reachable.
type Check func(ctx context.Context) error

// HealthResponse is the body of /healthz and /readyz.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

const readyTimeout = 2 * time.Second

// RegisterHealth mounts /healthz, which always succeeds while the process
// serves, and /readyz, which runs every check concurrently.
func RegisterHealth(r chi.Router, checks map[string]Check) {
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		resp, ready := runChecks(r.Context(), checks)
		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, status, resp)
	})
}

func runChecks(ctx context.Context, checks map[string]Check) (HealthResponse, bool) {
	ctx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()

	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]error, len(names))
	var g errgroup.Group
	for i, name := range names {
		check := checks[name]
		g.Go(func() error {
			results[i] = check(ctx)
			return nil
		})
	}
	_ = g.Wait()

	resp := HealthResponse{Status: "ok", Checks: make(map[string]string, len(names))}
	ready := true
	for i, name := range names {
		if results[i] != nil {
			resp.Checks[name] = results[i].Error()
			ready = false
			continue
		}
		resp.Checks[name] = "ok"
	}
	if !ready {
		resp.Status = "unavailable"
	}
	return resp, ready
}
