// Package health serves the kiosk's liveness and readiness probes on the
// metrics listener.
//
// /healthz answers 200 whenever the process can serve HTTP. /readyz runs
// one [Checker] per configured external dependency (the knowledge base
// pool, the speech server) and answers 503 as soon as any of them fails,
// so a supervisor can keep the kiosk out of rotation while a dependency is
// down. Both respond with a JSON body carrying "status" and a per-checker
// "checks" map.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// checkTimeout bounds each individual readiness check.
const checkTimeout = 5 * time.Second

// Checker probes one dependency. Check returns nil while the dependency is
// usable and must respect context cancellation.
type Checker struct {
	// Name keys the check in the JSON response, e.g. "knowledge" or "tts".
	Name string

	Check func(ctx context.Context) error
}

// PingChecker wraps a ping function as a named [Checker]. Most dependencies
// expose exactly this shape (pgxpool.Ping and friends), so the call site in
// the kiosk binary stays a one-liner.
func PingChecker(name string, ping func(ctx context.Context) error) Checker {
	return Checker{Name: name, Check: ping}
}

// report is the JSON body of both probes.
type report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler answers the probe endpoints. The checker list is fixed at
// construction, so a Handler is safe for concurrent use.
type Handler struct {
	checkers []Checker
}

// New creates a [Handler] over the given checkers. /readyz evaluates them
// sequentially in the order given.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Healthz is the liveness probe; reaching it at all means alive.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, report{Status: "ok"})
}

// Readyz runs every checker under a [checkTimeout] deadline and answers 503
// when any of them fails, with the per-checker outcomes in the body.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks, ready := h.runChecks(r.Context())

	rep := report{Status: "ok", Checks: checks}
	status := http.StatusOK
	if !ready {
		rep.Status = "fail"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, rep)
}

func (h *Handler) runChecks(ctx context.Context) (map[string]string, bool) {
	checks := make(map[string]string, len(h.checkers))
	ready := true
	for _, c := range h.checkers {
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := c.Check(checkCtx)
		cancel()

		if err != nil {
			checks[c.Name] = "fail: " + err.Error()
			ready = false
			continue
		}
		checks[c.Name] = "ok"
	}
	return checks, ready
}

// Register mounts both probes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
