package httpx

import (
	"context"
	"net/http"
)

// handleHealthz answers with a bare status code. Checks run in order:
// method, payload, path, database.
func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := requireNoPayload(req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if req.URL.Path != "/healthz" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			r.logger.Warn(req.Context(), "database unreachable", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}
