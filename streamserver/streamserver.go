// Package streamserver exposes the resumable content-change stream: an
// HTTP/SSE endpoint delivering ContentCreated events to subscribers
// at-least-once, tracking each subscriber's position via changelog's
// per-key offsets so a reconnecting client resumes exactly where it left
// off rather than replaying from the start or missing events.
package streamserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vertexflow/coordinator"
	"github.com/vertexflow/coordinator/changelog"
	"github.com/vertexflow/coordinator/store"
)

// Config holds the Server's dependencies.
type Config struct {
	// Store is the State Store, read directly for change-log scans
	// (this is a read-only surface; it never applies commands).
	Store store.Store

	// PollInterval is how often the stream checks for new changes when
	// caught up to the log tail. Defaults to 1s.
	PollInterval time.Duration

	// KeepAliveInterval is how often a comment frame is sent to keep
	// idle connections (and intermediate proxies) alive. Defaults to
	// 15s.
	KeepAliveInterval time.Duration

	// Logger is for observability (optional).
	Logger coordinator.Logger
}

// Server serves the content-change stream over HTTP/SSE.
type Server struct {
	cfg Config
	log *changelog.Reader
}

// New creates a Server, applying defaults for zero-value Config fields.
func New(cfg Config) *Server {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.KeepAliveInterval == 0 {
		cfg.KeepAliveInterval = 15 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = coordinator.NewNoopLogger()
	}
	return &Server{cfg: cfg, log: changelog.New(cfg.Store)}
}

// Handler returns the mux serving the stream endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/streams/", s.handleStream)
	return mux
}

// contentEvent is the SSE payload delivered for each ContentCreated
// change.
type contentEvent struct {
	ChangeID  uint64 `json:"change_id"`
	ContentID string `json:"content_id"`
	Namespace string `json:"namespace"`
	GraphName string `json:"graph_name"`
}

// handleStream serves GET /v1/streams/{namespace}/{graph}. The
// subscriber key is namespace/graph/subscriber, where subscriber comes
// from the "subscriber" query parameter and defaults to "default", so
// two distinct consumers of the same graph's stream (an indexer and an
// analytics job, say) must pass distinct "subscriber" values, or they
// silently share and race over one offset.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/v1/streams/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		http.Error(w, "path must be /v1/streams/{namespace}/{graph}", http.StatusBadRequest)
		return
	}
	namespace, graphName := parts[0], parts[1]

	subscriber := r.URL.Query().Get("subscriber")
	if subscriber == "" {
		subscriber = "default"
	}
	key := namespace + "/" + graphName + "/" + subscriber

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	cursor, err := s.startCursor(r.Context(), key, r.URL.Query().Get("cursor"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	keepAlive := time.NewTicker(s.cfg.KeepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case <-ticker.C:
			next, err := s.deliver(ctx, w, flusher, namespace, graphName, key, cursor)
			if err != nil {
				s.cfg.Logger.Error(ctx, "stream delivery failed", "subscriber", key, "error", err)
				return
			}
			cursor = next
		}
	}
}

// startCursor resolves the position a newly-connected subscriber should
// resume from: an explicit "cursor" query parameter, the subscriber's
// previously recorded offset, or the log's current tail for a brand new
// subscriber (never a full replay from 0, which would surprise a
// consumer that just wants new events).
func (s *Server) startCursor(ctx context.Context, key, explicit string) (uint64, error) {
	if explicit != "" {
		id, err := strconv.ParseUint(explicit, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid cursor %q: %w", explicit, err)
		}
		return id, nil
	}
	offset, ok, err := s.log.SubscriberOffset(ctx, key)
	if err != nil {
		return 0, err
	}
	if ok {
		return offset, nil
	}
	tail, err := s.log.SchedulerCursor(ctx)
	if err != nil {
		return 0, err
	}
	return tail, nil
}

func (s *Server) deliver(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, namespace, graphName, key string, cursor uint64) (uint64, error) {
	page, err := s.log.Drain(ctx, cursor, changelog.DefaultScanLimit)
	if err != nil {
		return cursor, err
	}

	for _, sc := range page.Items {
		cursor = sc.ID
		if sc.Kind != coordinator.StateChangeContentCreated {
			continue
		}
		payload, ok := sc.Payload.(coordinator.ContentCreatedPayload)
		if !ok {
			continue
		}
		if payload.Namespace != namespace || payload.GraphName != graphName {
			continue
		}

		ev := contentEvent{
			ChangeID:  sc.ID,
			ContentID: payload.ContentID,
			Namespace: payload.Namespace,
			GraphName: payload.GraphName,
		}
		data, err := json.Marshal(ev)
		if err != nil {
			return cursor, err
		}
		fmt.Fprintf(w, "id: %d\nevent: content_created\ndata: %s\n\n", sc.ID, data)
		flusher.Flush()

		if err := s.log.AdvanceSubscriberOffset(ctx, key, sc.ID); err != nil {
			return cursor, err
		}
	}
	return cursor, nil
}
