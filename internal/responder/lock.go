package responder

import (
	"context"
	"log/slog"

	"github.com/vihalabs/giftflow/internal/backend"
	"github.com/vihalabs/giftflow/internal/store"
)

// LockManager handles human takeover. When an operator types into a customer
// conversation the bot goes permanently silent there; only the admin CLI
// reverses it.
type LockManager struct {
	store   *store.Store
	backend *backend.Client
}

// NewLockManager creates a lock manager. backend may be nil when the
// decision backend is disabled.
func NewLockManager(st *store.Store, client *backend.Client) *LockManager {
	return &LockManager{store: st, backend: client}
}

// Lock marks the conversation human-controlled. The local lock always takes
// effect; the backend is told best-effort so it stops generating too, and a
// failed notify is logged, never retried or reverted. Idempotent.
func (m *LockManager) Lock(ctx context.Context, convID string) {
	if already := m.store.Lock(convID, "operator"); already {
		slog.Debug("conversation already locked", "conversation", convID)
		return
	}
	slog.Info("conversation locked by operator", "conversation", convID)

	if m.backend == nil {
		return
	}
	if err := m.backend.LockConversation(ctx, convID); err != nil {
		slog.Warn("backend lock notify failed, local lock holds", "conversation", convID, "error", err)
	}
}
