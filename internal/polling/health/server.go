package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/dbwatch/internal/polling/lifecycle"
)

// Summary is the short report served on /health.
type Summary struct {
	Status      SystemStatus    `json:"status"`
	State       lifecycle.State `json:"state"`
	Description string          `json:"description"`
	Reason      string          `json:"reason,omitempty"`
	LastCode    int             `json:"last_code"`
}

// Server exposes agent health and Prometheus metrics over HTTP.
type Server struct {
	monitor *Monitor
	server  *http.Server
}

// NewServer creates a health server listening on port.
func NewServer(monitor *Monitor, port int) *Server {
	s := &Server{monitor: monitor}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the server's routes.
//
//	/health           summary, 503 once the agent has stopped
//	/health/ready     200 only while sections are being polled
//	/health/detailed  full AgentHealth report
//	/metrics          Prometheus exposition
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/ready", s.handleReady)
	mux.HandleFunc("GET /health/detailed", s.handleDetailed)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.monitor.CheckHealth()

	code := http.StatusOK
	if report.Status == StatusCritical {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, Summary{
		Status:      report.Status,
		State:       report.State,
		Description: report.Description,
		Reason:      report.Reason,
		LastCode:    report.LastCode,
	})
}

// handleReady fails until a session is polling, so a fresh agent stuck
// in backoff is not reported ready.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	report := s.monitor.CheckHealth()

	code := http.StatusOK
	if report.State != lifecycle.StateRunning {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"ready": code == http.StatusOK,
		"state": report.State,
	})
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.CheckHealth())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
