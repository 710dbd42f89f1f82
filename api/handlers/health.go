package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/sanchez314c/agent-chat/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// Health
// =============================================================================

// readyTimeout bounds one /ready evaluation across all probes.
const readyTimeout = 5 * time.Second

// Probe is one readiness dependency: the credential store, the shared
// catalog cache and similar.
type Probe interface {
	Name() string
	Check(ctx context.Context) error
}

// ProbeFunc adapts a ping function to Probe.
type ProbeFunc struct {
	name string
	ping func(ctx context.Context) error
}

// NewProbe names ping.
func NewProbe(name string, ping func(ctx context.Context) error) ProbeFunc {
	return ProbeFunc{name: name, ping: ping}
}

func (p ProbeFunc) Name() string                    { return p.name }
func (p ProbeFunc) Check(ctx context.Context) error { return p.ping(ctx) }

// HealthStatus is the body of the health endpoints.
type HealthStatus struct {
	Status       string                 `json:"status"` // "healthy", "unhealthy"
	Timestamp    time.Time              `json:"timestamp"`
	Conversation types.RunState         `json:"conversation,omitempty"`
	Probes       map[string]ProbeResult `json:"probes,omitempty"`
}

// ProbeResult is the outcome of one probe.
type ProbeResult struct {
	Status  string `json:"status"` // "pass", "fail"
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// HealthHandler serves liveness, readiness and version endpoints. Liveness
// reports the run state; readiness pings every registered probe in
// parallel and answers 503 when any fails.
type HealthHandler struct {
	logger *zap.Logger
	state  func() types.RunState

	mu     sync.RWMutex
	probes []Probe
}

// NewHealthHandler creates a handler with no probes. state may be nil.
func NewHealthHandler(state func() types.RunState, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		logger: logger.With(zap.String("component", "health_handler")),
		state:  state,
	}
}

// AddProbe registers a readiness probe.
func (h *HealthHandler) AddProbe(p Probe) {
	h.mu.Lock()
	h.probes = append(h.probes, p)
	h.mu.Unlock()
}

func (h *HealthHandler) base() HealthStatus {
	st := HealthStatus{Status: "healthy", Timestamp: time.Now()}
	if h.state != nil {
		st.Conversation = h.state()
	}
	return st
}

// HandleHealth serves GET /health and GET /healthz.
// @Router /health [get]
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.base())
}

// HandleReady serves GET /ready.
// @Router /ready [get]
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	h.mu.RLock()
	probes := append([]Probe(nil), h.probes...)
	h.mu.RUnlock()

	results := make([]ProbeResult, len(probes))
	var g errgroup.Group
	for i, p := range probes {
		g.Go(func() error {
			results[i] = h.run(ctx, p)
			return nil
		})
	}
	_ = g.Wait()

	status := h.base()
	if len(probes) > 0 {
		status.Probes = make(map[string]ProbeResult, len(probes))
	}
	for i, p := range probes {
		status.Probes[p.Name()] = results[i]
		if results[i].Status != "pass" {
			status.Status = "unhealthy"
		}
	}

	code := http.StatusOK
	if status.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	WriteJSON(w, code, status)
}

func (h *HealthHandler) run(ctx context.Context, p Probe) ProbeResult {
	start := time.Now()
	err := p.Check(ctx)
	latency := time.Since(start)

	res := ProbeResult{Status: "pass", Latency: latency.String()}
	if err != nil {
		res.Status = "fail"
		res.Message = err.Error()
		h.logger.Warn("readiness probe failed",
			zap.String("probe", p.Name()),
			zap.Duration("latency", latency),
			zap.Error(err))
	}
	return res
}

// HandleVersion serves GET /version.
// @Router /version [get]
func (h *HealthHandler) HandleVersion(version, buildTime, gitCommit string) http.HandlerFunc {
	body := map[string]string{
		"version":    version,
		"build_time": buildTime,
		"git_commit": gitCommit,
	}
	return func(w http.ResponseWriter, r *http.Request) {
		WriteSuccess(w, body)
	}
}
