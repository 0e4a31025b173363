// Package gateway is the HTTP surface executors speak to: register,
// heartbeat, poll for assigned work, and report task outcomes. It holds
// no state of its own beyond the heartbeat TTL sweep loop; every
// request is a thin translation into a statemachine.Machine call.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	ma "github.com/multiformats/go-multiaddr"

	"github.com/vertexflow/coordinator"
	"github.com/vertexflow/coordinator/statemachine"
	"github.com/vertexflow/coordinator/store"
)

// Config holds the Server's dependencies.
type Config struct {
	// Machine applies register/heartbeat/complete commands (required).
	Machine *statemachine.Machine

	// Store is read directly for the poll-for-work endpoint, which is a
	// pure read and does not belong on the State Machine's write path.
	Store store.Store

	// HeartbeatTTL is how long an executor may go without a heartbeat
	// before Sweep marks it Lost. Defaults to 30s.
	HeartbeatTTL time.Duration

	// SweepInterval is how often Sweep runs. Defaults to 10s.
	SweepInterval time.Duration

	// RemovalGrace is how long an executor stays Lost before Sweep
	// removes it outright and reclaims its tasks. Defaults to 5 minutes.
	RemovalGrace time.Duration

	// AuthToken, if non-empty, requires every request to carry
	// "Authorization: Bearer <AuthToken>". Empty disables auth, which is
	// only appropriate behind a trusted network boundary (local dev, a
	// sidecar-terminated mesh).
	AuthToken string

	// DefaultMaxConcurrent is applied to a registering executor that
	// does not declare its own MaxConcurrent. 0 leaves the executor
	// unlimited, matching Go's zero value.
	DefaultMaxConcurrent int

	// Logger is for observability (optional).
	Logger coordinator.Logger

	// Now returns the current time; overridable in tests.
	Now func() time.Time
}

// Server serves the executor-facing HTTP API.
type Server struct {
	cfg Config
}

// New creates a Server, applying defaults for zero-value Config fields.
func New(cfg Config) *Server {
	if cfg.HeartbeatTTL == 0 {
		cfg.HeartbeatTTL = 30 * time.Second
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = 10 * time.Second
	}
	if cfg.RemovalGrace == 0 {
		cfg.RemovalGrace = 5 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = coordinator.NewNoopLogger()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Server{cfg: cfg}
}

// Handler returns the mux serving the gateway's endpoints, wrapped in
// bearer-token auth when Config.AuthToken is set.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/executors/register", s.handleRegister)
	mux.HandleFunc("/v1/executors/", s.handleExecutorScoped)
	mux.HandleFunc("/v1/tasks/", s.handleTaskScoped)
	return s.requireAuth(mux)
}

// requireAuth wraps next so every request must carry
// "Authorization: Bearer <AuthToken>" when an AuthToken is configured. A
// blank AuthToken disables the check entirely rather than rejecting
// every request, since an empty expected token is a deployment choice,
// not a locked-out one.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	if s.cfg.AuthToken == "" {
		return next
	}
	want := "Bearer " + s.cfg.AuthToken
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != want {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type registerRequest struct {
	RunnerName    string   `json:"runner_name"`
	Addr          string   `json:"addr"`
	Labels        []string `json:"labels"`
	MaxConcurrent int      `json:"max_concurrent"`
}

type registerResponse struct {
	ExecutorID string `json:"executor_id"`
	Epoch      string `json:"epoch"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
		return
	}

	addr := req.Addr
	if addr != "" {
		normalized, err := normalizeExecutorAddr(addr)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		addr = normalized
	}

	labels := make(map[coordinator.Label]struct{}, len(req.Labels))
	for _, l := range req.Labels {
		labels[coordinator.Label(l)] = struct{}{}
	}

	maxConcurrent := req.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = s.cfg.DefaultMaxConcurrent
	}

	e, err := s.cfg.Machine.RegisterExecutor(r.Context(), coordinator.Executor{
		RunnerName:    req.RunnerName,
		Addr:          addr,
		Labels:        labels,
		MaxConcurrent: maxConcurrent,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, registerResponse{ExecutorID: e.ID, Epoch: e.Epoch})
}

// handleExecutorScoped dispatches /v1/executors/{id}/heartbeat and
// /v1/executors/{id}/tasks.
func (s *Server) handleExecutorScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 4 || parts[0] != "v1" || parts[1] != "executors" {
		http.NotFound(w, r)
		return
	}
	executorID := parts[2]

	switch parts[3] {
	case "heartbeat":
		s.handleHeartbeat(w, r, executorID)
	case "tasks":
		s.handlePollTasks(w, r, executorID)
	default:
		http.NotFound(w, r)
	}
}

type heartbeatRequest struct {
	RunningTasks []string `json:"running_tasks"`
}

type heartbeatResponse struct {
	RemovedTaskIDs []string `json:"removed_task_ids"`
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request, executorID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req heartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
		return
	}

	removed, err := s.cfg.Machine.Heartbeat(r.Context(), executorID, req.RunningTasks)
	if err != nil {
		if errors.Is(err, coordinator.ErrExecutorNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, heartbeatResponse{RemovedTaskIDs: removed})
}

type taskDTO struct {
	ID             string `json:"id"`
	Namespace      string `json:"namespace"`
	GraphName      string `json:"graph_name"`
	ComputeFnName  string `json:"compute_fn_name"`
	InputContentID string `json:"input_content_id"`
	Attempt        uint32 `json:"attempt"`
}

func (s *Server) handlePollTasks(w http.ResponseWriter, r *http.Request, executorID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tasks, err := s.cfg.Store.ListTasksByExecutor(r.Context(), executorID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	out := make([]taskDTO, 0, len(tasks))
	for _, t := range tasks {
		if t.Outcome != coordinator.TaskOutcomeUnknown {
			continue
		}
		out = append(out, taskDTO{
			ID: t.ID, Namespace: t.Namespace, GraphName: t.GraphName,
			ComputeFnName: t.ComputeFnName, InputContentID: t.InputContentID, Attempt: t.Attempt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// dataPayloadDTO is the wire shape of a single produced content item, as
// reported by an executor completing a Compute task.
type dataPayloadDTO struct {
	StorageURL string `json:"storage_url"`
	Size       int64  `json:"size"`
	SHA256     string `json:"sha256"`
}

type completeRequest struct {
	Outcome string           `json:"outcome"`
	Outputs []dataPayloadDTO `json:"outputs,omitempty"`
	Route   []string         `json:"route,omitempty"`
}

// handleTaskScoped dispatches /v1/tasks/{id}/complete.
func (s *Server) handleTaskScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 4 || parts[0] != "v1" || parts[1] != "tasks" || parts[3] != "complete" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	taskID := parts[2]

	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
		return
	}

	data := make([]coordinator.DataPayload, 0, len(req.Outputs))
	for _, o := range req.Outputs {
		data = append(data, coordinator.DataPayload{StorageURL: o.StorageURL, Size: o.Size, SHA256: o.SHA256})
	}
	kind := coordinator.NodeOutputKindData
	if len(data) == 0 && len(req.Route) > 0 {
		kind = coordinator.NodeOutputKindRouter
	}
	output := coordinator.NodeOutput{
		TaskID: taskID,
		Kind:   kind,
		Data:   data,
		Router: coordinator.RouterOutput{Edges: req.Route},
	}

	if _, err := s.cfg.Machine.CompleteTask(r.Context(), taskID, coordinator.TaskOutcome(req.Outcome), output); err != nil {
		switch {
		case errors.Is(err, coordinator.ErrTaskNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, coordinator.ErrTaskTerminal):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// normalizeExecutorAddr parses addr as a multiaddr and returns its
// canonical string form, giving executors reachable over varied
// transports (TCP, QUIC, a Unix socket in a sidecar mesh) a single
// address shape the coordinator stores and later hands back out on
// poll responses, rather than trusting whatever ad-hoc string an
// executor sent.
func normalizeExecutorAddr(addr string) (string, error) {
	m, err := ma.NewMultiaddr(addr)
	if err != nil {
		return "", fmt.Errorf("bad executor addr %q: %w", addr, err)
	}
	return m.String(), nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Sweep runs the heartbeat-TTL loop until ctx is cancelled: executors
// silent past HeartbeatTTL are marked Lost, and executors that have
// been Lost past RemovalGrace are removed, reclaiming their in-flight
// tasks to the unassigned pool.
func (s *Server) Sweep(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.sweepOnce(ctx); err != nil {
				s.cfg.Logger.Error(ctx, "heartbeat sweep failed", "error", err)
			}
		}
	}
}

func (s *Server) sweepOnce(ctx context.Context) error {
	executors, err := s.cfg.Store.ListExecutors(ctx)
	if err != nil {
		return err
	}
	now := s.cfg.Now()

	for _, e := range executors {
		switch e.State {
		case coordinator.ExecutorStateActive, coordinator.ExecutorStateRegistering:
			if now.Sub(e.LastHeartbeatTS) > s.cfg.HeartbeatTTL {
				if err := s.cfg.Machine.MarkExecutorLost(ctx, e.ID); err != nil {
					return err
				}
			}
		case coordinator.ExecutorStateLost:
			if now.Sub(e.LastHeartbeatTS) > s.cfg.HeartbeatTTL+s.cfg.RemovalGrace {
				if _, err := s.cfg.Machine.RemoveExecutor(ctx, e.ID); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
