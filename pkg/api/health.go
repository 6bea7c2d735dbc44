package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cuemby/bandstand/pkg/metrics"
)

// probeTimeout bounds the hub round trip made by health probes
const probeTimeout = time.Second

// ReadyResponse represents the readiness check response
type ReadyResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
	Message   string            `json:"message,omitempty"`
}

// probeHub checks that the hub loop still answers and refreshes the hub and
// producer components in the health registry
func (s *Server) probeHub(ctx context.Context) (producerConnected bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	st, err := s.hub.Stats(ctx)
	if err != nil {
		metrics.UpdateComponent(metrics.ComponentHub, false, err.Error())
		return false, err
	}

	metrics.UpdateComponent(metrics.ComponentHub, true, "")
	if st.ProducerConnected {
		metrics.UpdateComponent(metrics.ComponentProducer, true, "")
	} else {
		metrics.UpdateComponent(metrics.ComponentProducer, false, "not connected")
	}
	return st.ProducerConnected, nil
}

// healthHandler implements /health. A missing producer degrades the relay
// but it stays healthy enough to serve dashboards.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	_, _ = s.probeHub(r.Context())
	metrics.HealthHandler()(w, r)
}

// readyHandler implements /ready. The relay is ready once the hub answers
// and the API is serving; a producer is not required.
func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	checks := make(map[string]string)
	ready := true
	var message string

	producerConnected, err := s.probeHub(r.Context())
	if err != nil {
		checks["hub"] = fmt.Sprintf("error: %v", err)
		ready = false
		message = "Hub not responding"
	} else {
		checks["hub"] = "ok"
	}

	if producerConnected {
		checks["producer"] = "connected"
	} else {
		checks["producer"] = "not connected"
	}

	readiness := metrics.GetReadiness()
	checks["api"] = readiness.Components[metrics.ComponentAPI]
	if readiness.Status != "ready" {
		ready = false
		if message == "" {
			message = readiness.Message
		}
	}

	status := "ready"
	statusCode := http.StatusOK
	if !ready {
		status = "not ready"
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, ReadyResponse{
		Status:    status,
		Timestamp: time.Now(),
		Checks:    checks,
		Message:   message,
	})
}
