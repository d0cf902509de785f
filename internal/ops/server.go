// Package ops exposes the compliance engine's operational HTTP surface:
// a liveness/health endpoint probing the database, and a status endpoint
// reporting per-job guard state. This is the only inbound interface the
// engine has; the product's CRUD API lives elsewhere.
package ops

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"trackdesk/internal/scheduler"
)

// healthCheckTimeout is the maximum time allowed for all health probes to
// complete before the endpoint reports unhealthy.
const healthCheckTimeout = 2 * time.Second

// HealthProbe is a subsystem check run by the health endpoint.
type HealthProbe interface {
	Name() string
	Check(ctx context.Context) error
}

// ProbeFunc adapts a function to the HealthProbe interface.
type ProbeFunc struct {
	ProbeName string
	Fn        func(ctx context.Context) error
}

// Name returns the probe identifier.
func (p ProbeFunc) Name() string { return p.ProbeName }

// Check runs the probe.
func (p ProbeFunc) Check(ctx context.Context) error { return p.Fn(ctx) }

// EngineStatus is the engine-side state the status endpoint reports.
// Implemented by *scheduler.Engine plus the dedup store.
type EngineStatus interface {
	Status() []scheduler.GuardState
}

// DedupSize reports how many tasks currently hold dedup records.
type DedupSize interface {
	Len() int
}

// Server is the ops HTTP server.
type Server struct {
	engine EngineStatus
	dedup  DedupSize
	probes []HealthProbe
	logger *slog.Logger
	http   *http.Server
}

// ServerConfig holds the dependencies for the ops server.
type ServerConfig struct {
	Port   string
	Engine EngineStatus
	Dedup  DedupSize
	Probes []HealthProbe
	Logger *slog.Logger
}

// NewServer creates the ops server with its routes mounted.
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		engine: cfg.Engine,
		dedup:  cfg.Dedup,
		probes: cfg.Probes,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)

	s.http = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// ListenAndServe blocks serving until Shutdown is called or the listener
// fails.
func (s *Server) ListenAndServe() error {
	s.logger.Info("ops server listening", "addr", s.http.Addr)
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// componentStatus represents the health state of a single subsystem.
type componentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// healthResponse is the JSON response body for the health check endpoint.
type healthResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components,omitempty"`
}

// handleHealth executes all registered probes concurrently with a short
// timeout. 200 when every probe passes, 503 otherwise.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if len(s.probes) == 0 {
		writeJSON(w, http.StatusOK, healthResponse{Status: "healthy"})
		return
	}

	type probeResult struct {
		name string
		err  error
	}

	var (
		mu      sync.Mutex
		results = make([]probeResult, 0, len(s.probes))
		wg      sync.WaitGroup
	)

	for _, probe := range s.probes {
		wg.Add(1)
		go func(p HealthProbe) {
			defer wg.Done()
			err := p.Check(ctx)
			mu.Lock()
			results = append(results, probeResult{name: p.Name(), err: err})
			mu.Unlock()
		}(probe)
	}
	wg.Wait()

	resp := healthResponse{
		Status:     "healthy",
		Components: make(map[string]componentStatus, len(results)),
	}
	code := http.StatusOK
	for _, res := range results {
		if res.err != nil {
			resp.Status = "unhealthy"
			code = http.StatusServiceUnavailable
			resp.Components[res.name] = componentStatus{Status: "unhealthy", Message: res.err.Error()}
		} else {
			resp.Components[res.name] = componentStatus{Status: "healthy"}
		}
	}
	writeJSON(w, code, resp)
}

// statusResponse is the JSON body for the status endpoint.
type statusResponse struct {
	Jobs       []scheduler.GuardState `json:"jobs"`
	DedupTasks int                    `json:"dedup_tasks"`
}

// handleStatus reports each job's guard snapshot and the dedup store size.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{}
	if s.engine != nil {
		resp.Jobs = s.engine.Status()
	}
	if s.dedup != nil {
		resp.DedupTasks = s.dedup.Len()
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
