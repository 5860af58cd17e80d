// Package responder is the heart of the bot: it turns aggregated customer
// turns into backend calls, executes the backend's decision, escalates to a
// human at most once per episode, and goes permanently silent once an
// operator takes a conversation over.
package responder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vihalabs/giftflow/internal/backend"
	"github.com/vihalabs/giftflow/internal/bus"
	"github.com/vihalabs/giftflow/internal/store"
)

// Responder wires the debouncer, backend client, lock manager, and delivery
// together. One Responder serves all conversations.
type Responder struct {
	store          *store.Store
	client         *backend.Client
	deliver        *Deliverer
	notifier       *Notifier
	locks          *LockManager
	debouncer      *bus.TurnDebouncer
	backendEnabled bool
	tracer         trace.Tracer

	// baseCtx bounds backend calls and sends made from timer goroutines.
	baseCtx context.Context

	mu    sync.Mutex
	addrs map[string]string // conversation id → transport address
}

// New creates a responder. client may be nil only when backendEnabled is
// false.
func New(ctx context.Context, st *store.Store, client *backend.Client, deliver *Deliverer, operatorChatID string, firstWindow, burstWindow time.Duration, backendEnabled bool) *Responder {
	r := &Responder{
		store:          st,
		client:         client,
		deliver:        deliver,
		notifier:       NewNotifier(deliver, st, operatorChatID),
		locks:          NewLockManager(st, client),
		backendEnabled: backendEnabled,
		tracer:         otel.Tracer("giftflow/responder"),
		baseCtx:        ctx,
		addrs:          make(map[string]string),
	}
	r.debouncer = bus.NewTurnDebouncer(firstWindow, burstWindow, r.handleTurn)
	return r
}

// Debouncer exposes the turn debouncer for the status page and config hot
// reload.
func (r *Responder) Debouncer() *bus.TurnDebouncer { return r.debouncer }

// Stop cancels pending aggregation timers.
func (r *Responder) Stop() { r.debouncer.Stop() }

// HandleInbound routes one transport event. Operator-originated messages
// lock the conversation; customer messages in a locked conversation are
// dropped; everything else feeds the debouncer.
func (r *Responder) HandleInbound(ctx context.Context, msg bus.InboundMessage) {
	if msg.ConversationID == "" {
		return
	}

	if msg.OperatorOriginated {
		r.locks.Lock(ctx, msg.ConversationID)
		return
	}

	if r.store.IsLocked(msg.ConversationID) {
		slog.Debug("dropping message for locked conversation", "conversation", msg.ConversationID)
		return
	}

	r.mu.Lock()
	r.addrs[msg.ConversationID] = msg.ChatID
	r.mu.Unlock()

	text := msg.Text
	if msg.ImagePresent {
		text = backend.ImageMarker
		if msg.Caption != "" {
			text += "\n" + msg.Caption
		}
	}
	r.debouncer.Enqueue(msg.ConversationID, text)
}

// addr returns the transport address recorded for a conversation, falling
// back to the conversation id itself.
func (r *Responder) addr(convID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.addrs[convID]; ok && a != "" {
		return a
	}
	return convID
}

// handleTurn processes one aggregated turn. Runs on the debouncer's timer
// goroutine.
func (r *Responder) handleTurn(convID, turn string) {
	// The operator may have taken over while the turn was aggregating.
	if r.store.IsLocked(convID) {
		slog.Debug("discarding aggregated turn for locked conversation", "conversation", convID)
		return
	}

	turnID := uuid.New().String()
	ctx, span := r.tracer.Start(r.baseCtx, "responder.turn",
		trace.WithAttributes(
			attribute.String("conversation.id", convID),
			attribute.String("turn.id", turnID),
			attribute.Int("turn.length", len(turn)),
		))
	defer span.End()

	log := slog.With("conversation", convID, "turn_id", turnID)

	if !r.backendEnabled {
		log.Info("backend disabled, dropping turn")
		return
	}

	log.Info("processing turn", "chars", len(turn))

	resp, err := r.client.Chat(ctx, convID, turn)
	if err != nil {
		log.Error("backend chat failed", "error", err)
	}
	out := backend.Classify(resp, err)

	r.dispatch(ctx, convID, turn, out, log)
}
