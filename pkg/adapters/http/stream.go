package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/aretw0/colloquy/internal/logging"
	"github.com/aretw0/colloquy/pkg/domain"
	"github.com/go-chi/chi/v5"
)

// StreamManager fans lifecycle events out to SSE subscribers per session.
type StreamManager struct {
	logger      *slog.Logger
	mu          sync.RWMutex
	subscribers map[string]map[chan<- message]struct{} // SessionID -> Set of Channels
}

type message struct {
	kind    domain.EventType
	payload []byte
}

// NewStreamManager creates an empty StreamManager. A nil logger discards.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		logger:      logger,
		subscribers: make(map[string]map[chan<- message]struct{}),
	}
}

// Subscribe registers a subscriber for sessionID. The returned cancel func
// unregisters it and closes the channel.
func (sm *StreamManager) Subscribe(sessionID string) (<-chan message, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan message, 10)
	if _, ok := sm.subscribers[sessionID]; !ok {
		sm.subscribers[sessionID] = make(map[chan<- message]struct{})
	}
	sm.subscribers[sessionID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[sessionID]; ok {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, sessionID)
			}
		}
	}
}

// Subscribers returns the number of subscribers of sessionID.
func (sm *StreamManager) Subscribers(sessionID string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[sessionID])
}

// Broadcast sends event as JSON to every subscriber of sessionID.
// Slow subscribers lose messages instead of blocking the turn.
func (sm *StreamManager) Broadcast(sessionID string, kind domain.EventType, event any) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	subs, ok := sm.subscribers[sessionID]
	if !ok {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		sm.logger.Error("failed to encode stream event", "session_id", sessionID, "err", err)
		return
	}
	for ch := range subs {
		select {
		case ch <- message{kind: kind, payload: payload}:
		default:
			sm.logger.Warn("SSE: Client buffer full, dropping message", "session_id", sessionID)
		}
	}
}

// Hooks returns lifecycle hooks publishing every event to the subscribers of
// its session.
func (sm *StreamManager) Hooks() domain.LifecycleHooks {
	state := func(ctx context.Context, e *domain.StateEvent) {
		sm.Broadcast(e.SessionID, e.Type, e)
	}
	action := func(ctx context.Context, e *domain.ActionEvent) {
		sm.Broadcast(e.SessionID, e.Type, e)
	}
	return domain.LifecycleHooks{
		OnStateEnter:   state,
		OnStateLeave:   state,
		OnFallback:     state,
		OnActionCall:   action,
		OnActionReturn: action,
	}
}

// SubscribeEvents handles GET /sessions/{id}/events (SSE). The optional
// watch parameter is a comma separated list of event types to forward.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	sessionID := chi.URLParam(r, "id")
	watch := make(map[domain.EventType]bool)
	if raw := r.URL.Query().Get("watch"); raw != "" {
		for _, kind := range strings.Split(raw, ",") {
			watch[domain.EventType(strings.TrimSpace(kind))] = true
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe(sessionID)
	defer cancel()
	s.logger.Info("SSE: Subscribing to session events", "session_id", sessionID)

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE: Client disconnected", "session_id", sessionID)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if len(watch) > 0 && !watch[msg.kind] {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.kind, msg.payload)
			flusher.Flush()
		}
	}
}
