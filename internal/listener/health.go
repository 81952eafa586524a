package listener

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// healthCheckTimeout bounds all probes together.
const healthCheckTimeout = 2 * time.Second

// HealthProbe checks one dependency (document store, cache).
type HealthProbe interface {
	Name() string
	Check(ctx context.Context) error
}

type componentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components,omitempty"`
}

// handleHealth runs every probe concurrently. It returns 200 when all pass
// and 503 when any fails, panics, or misses the deadline.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if len(s.probes) == 0 {
		JSON(w, r, http.StatusOK, healthResponse{Status: "healthy"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	// Buffered so late probes never block after the handler returns.
	results := make(chan probeResult, len(s.probes))
	for i, probe := range s.probes {
		go func() {
			results <- probeResult{index: i, err: runProbe(ctx, probe)}
		}()
	}

	errs := make([]error, len(s.probes))
	done := make([]bool, len(s.probes))
collect:
	for range s.probes {
		select {
		case res := <-results:
			errs[res.index] = res.err
			done[res.index] = true
		case <-ctx.Done():
			break collect
		}
	}

	resp := healthResponse{Status: "healthy", Components: make(map[string]componentStatus, len(s.probes))}
	for i, probe := range s.probes {
		switch {
		case !done[i]:
			resp.Status = "unhealthy"
			resp.Components[probe.Name()] = componentStatus{Status: "unhealthy", Message: "health check timed out"}
		case errs[i] != nil:
			resp.Status = "unhealthy"
			resp.Components[probe.Name()] = componentStatus{Status: "unhealthy", Message: errs[i].Error()}
		default:
			resp.Components[probe.Name()] = componentStatus{Status: "healthy"}
		}
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	JSON(w, r, status, resp)
}

type probeResult struct {
	index int
	err   error
}

func runProbe(ctx context.Context, p HealthProbe) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("probe panicked: %v", r)
		}
	}()
	return p.Check(ctx)
}
