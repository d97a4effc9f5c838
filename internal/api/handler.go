// Package api is the HTTP binding of the scheduler's operations: submit,
// status, cancel and an out-of-band reap pass, plus health and Prometheus
// metrics endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"jobspool/internal/store"
	logx "jobspool/pkg/logx"
)

// Scheduler is the surface the handlers drive.
type Scheduler interface {
	Submit(ctx context.Context, name, command string, priority int) error
	Cancel(ctx context.Context, name string) error
	ReapOnce(ctx context.Context) int
	Snapshot() store.Snapshot
}

type handler struct {
	sched Scheduler
	log   logx.Logger
}

// NewRouter wires all routes onto a chi mux.
func NewRouter(sched Scheduler, log logx.Logger) *chi.Mux {
	h := &handler{sched: sched, log: log}

	r := chi.NewRouter()
	r.Use(RequestLogger(log))
	r.Use(LimitBody)

	r.Get("/healthz", h.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	// pprof; the server binds loopback by default, so no auth layer here.
	r.Mount("/debug", middleware.Profiler())

	r.Route("/jobs", func(r chi.Router) {
		r.Post("/", h.submit)
		r.Delete("/{name}", h.cancel)
	})
	r.Get("/status", h.status)
	r.Post("/reap", h.reap)

	return r
}

type submitRequest struct {
	Name     string `json:"name"`
	Command  string `json:"command"`
	Priority int    `json:"priority"`
}

func (h *handler) submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	err := h.sched.Submit(r.Context(), req.Name, req.Command, req.Priority)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]string{"name": req.Name, "state": "queued"})
	case errors.Is(err, store.ErrDuplicate):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

func (h *handler) cancel(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	err := h.sched.Cancel(r.Context(), name)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"name": name, "state": "cancelled"})
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sched.Snapshot())
}

func (h *handler) reap(w http.ResponseWriter, r *http.Request) {
	n := h.sched.ReapOnce(r.Context())
	writeJSON(w, http.StatusOK, map[string]int{"reaped": n})
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
