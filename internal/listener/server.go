// Package listener runs the notifier as a long-lived process. Order events
// arrive either on a Pub/Sub pull subscription (Subscriber) or as HTTP POSTs
// (Server), for example from a Pub/Sub push subscription or a database
// webhook. The Server also exposes health and Prometheus metrics.
package listener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ordernotify/internal/app"
	"ordernotify/internal/events"
	"ordernotify/internal/notifications/core"
)

// maxEventBodySize bounds POST /events bodies (1 MB).
const maxEventBodySize = 1 << 20

// Headers read from POST /events requests.
const (
	headerEventID   = "X-Event-Id"
	headerRequestID = "X-Request-Id"
)

// EventHandler handles one raw order event. *app.EventHandler implements it.
type EventHandler interface {
	HandleBody(ctx context.Context, body []byte, meta events.Meta) (*core.CycleReport, error)
}

// Server is the listener's HTTP surface.
type Server struct {
	handler  EventHandler
	gatherer prometheus.Gatherer
	probes   []HealthProbe
	logger   *slog.Logger
	router   *chi.Mux
}

// NewServer builds the router. gatherer may be nil, in which case /metrics
// is not mounted.
func NewServer(handler EventHandler, gatherer prometheus.Gatherer, logger *slog.Logger, probes ...HealthProbe) (*Server, error) {
	if handler == nil {
		return nil, errors.New("event handler must not be nil")
	}
	if logger == nil {
		return nil, errors.New("logger must not be nil")
	}

	s := &Server{
		handler:  handler,
		gatherer: gatherer,
		probes:   probes,
		logger:   logger,
		router:   chi.NewRouter(),
	}
	s.mountRoutes()
	return s, nil
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) mountRoutes() {
	s.router.Use(s.recoverer)
	s.router.Use(requestID)
	s.router.Use(requestLogger(s.logger))

	s.router.Get("/health", s.handleHealth)
	if s.gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	s.router.Post("/events", s.handleEvent)
}

// eventResponse summarizes a completed cycle.
type eventResponse struct {
	OrderID     string   `json:"order_id"`
	CycleID     string   `json:"cycle_id"`
	Skipped     bool     `json:"skipped,omitempty"`
	Sent        int      `json:"sent"`
	Failed      int      `json:"failed"`
	Unreachable []string `json:"unreachable,omitempty"`
}

// rejectedResponse acknowledges an event that can never be notified.
type rejectedResponse struct {
	Status string      `json:"status"`
	Error  ErrorDetail `json:"error"`
}

// handleEvent runs one notification cycle for the POSTed event.
//
// Responses:
//   - 200 with a cycle summary when the cycle completed, including cycles
//     where individual sends failed.
//   - 202 when the event was rejected for good (bad payload, malformed
//     order). Pub/Sub push treats any 2xx as an ack, so these are not
//     redelivered.
//   - 5xx when the cycle should be retried, e.g. the order could not be
//     marked notified.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		Error(w, r, err)
		return
	}

	meta := events.Meta{
		ContentEncoding: r.Header.Get("Content-Encoding"),
		EventID:         r.Header.Get(headerEventID),
	}

	report, err := s.handler.HandleBody(r.Context(), body, meta)
	switch {
	case err == nil:
		JSON(w, r, http.StatusOK, summarize(report))
	case app.Permanent(err):
		JSON(w, r, http.StatusAccepted, rejectedResponse{Status: "rejected", Error: detailOf(r, err)})
	default:
		Error(w, r, err)
	}
}

func summarize(report *core.CycleReport) eventResponse {
	if report == nil {
		return eventResponse{}
	}
	failed := len(report.Failed())
	return eventResponse{
		OrderID:     report.OrderID,
		CycleID:     report.CycleID,
		Skipped:     report.Skipped,
		Sent:        len(report.Outcomes) - failed,
		Failed:      failed,
		Unreachable: report.Unreachable,
	}
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
// within shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}

	s.logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
