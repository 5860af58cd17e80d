// Package gateway serves the read-only operator status page. Takeover and
// lock reset stay out-of-band (WhatsApp itself and the locks CLI); this
// server only reports.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/vihalabs/giftflow/internal/bus"
	"github.com/vihalabs/giftflow/internal/store"
)

// Server exposes GET /healthz and GET /status over plain HTTP.
type Server struct {
	store     *store.Store
	debouncer *bus.TurnDebouncer
	httpSrv   *http.Server
}

// NewServer creates a status server bound to host:port.
func NewServer(host string, port int, st *store.Store, debouncer *bus.TurnDebouncer) *Server {
	s := &Server{store: st, debouncer: debouncer}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /status", s.handleStatus)

	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", host, port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start begins serving. Blocks until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	slog.Info("status server listening", "addr", s.httpSrv.Addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("status server: %w", err)
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

type conversationStatus struct {
	store.ConversationState
	PendingDepth int  `json:"pending_depth"`
	FirstTurn    bool `json:"first_turn"`
}

type statusResponse struct {
	Conversations []conversationStatus `json:"conversations"`
	TotalLocked   int                  `json:"total_locked"`
	TotalAlerted  int                  `json:"total_alerted"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	snap := s.store.Snapshot()

	resp := statusResponse{Conversations: make([]conversationStatus, 0, len(snap))}
	for _, cs := range snap {
		if cs.Locked {
			resp.TotalLocked++
		}
		if cs.Alerted {
			resp.TotalAlerted++
		}
		resp.Conversations = append(resp.Conversations, conversationStatus{
			ConversationState: cs,
			PendingDepth:      s.debouncer.PendingDepth(cs.ConversationID),
			FirstTurn:         s.debouncer.IsFirstTurn(cs.ConversationID),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Warn("failed to encode status response", "error", err)
	}
}
