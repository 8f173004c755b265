// Package ops serves the operational HTTP endpoints of the lending service:
// liveness, readiness and a manual trigger for the overdue sweep.
package ops

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/spbu-ds-practicum-2025/example-project/services/lending-service/internal/domain"
)

// Pinger reports whether the storage backend can serve requests.
type Pinger interface {
	Ready(ctx context.Context) error
}

// PingerFunc adapts a function to Pinger.
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) Ready(ctx context.Context) error { return f(ctx) }

// Sweeper runs one overdue sweep.
type Sweeper interface {
	MarkOverdueInstallments(ctx context.Context) (domain.SweepResult, error)
}

const readyTimeout = 2 * time.Second

type handler struct {
	pinger  Pinger
	sweeper Sweeper
	log     logrus.FieldLogger
}

// NewRouter builds the ops router.
func NewRouter(pinger Pinger, sweeper Sweeper, log logrus.FieldLogger) http.Handler {
	h := &handler{pinger: pinger, sweeper: sweeper, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	r.Get("/healthz", h.healthz)
	r.Get("/readyz", h.readyz)
	r.Post("/jobs/overdue-sweep", h.overdueSweep)
	return r
}

func (h *handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := h.pinger.Ready(ctx); err != nil {
		h.log.WithError(err).Warn("readiness check failed")
		sendErrorResponse(w, http.StatusServiceUnavailable, "NOT_READY", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type sweepResponse struct {
	Installments int `json:"installments"`
	Loans        int `json:"loans"`
}

func (h *handler) overdueSweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.sweeper.MarkOverdueInstallments(r.Context())
	if err != nil {
		h.log.WithError(err).Error("manual overdue sweep failed")
		sendErrorResponse(w, http.StatusInternalServerError, "SWEEP_FAILED", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sweepResponse{Installments: result.Installments, Loans: result.Loans})
}

type errorResponse struct {
	ID          uuid.UUID `json:"id"`
	Code        string    `json:"code"`
	Description string    `json:"description"`
}

func sendErrorResponse(w http.ResponseWriter, statusCode int, code, description string) {
	writeJSON(w, statusCode, errorResponse{ID: uuid.New(), Code: code, Description: description})
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// requestLogger logs each request with its status and duration.
func requestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			log.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"duration":   time.Since(start).String(),
				"request_id": middleware.GetReqID(r.Context()),
			}).Debug("http request")
		})
	}
}
