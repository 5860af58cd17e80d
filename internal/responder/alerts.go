package responder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vihalabs/giftflow/internal/backend"
	"github.com/vihalabs/giftflow/internal/store"
)

// Notifier delivers escalation notices to the operator chat, at most once
// per conversation episode.
type Notifier struct {
	deliver        *Deliverer
	store          *store.Store
	operatorChatID string
}

// NewNotifier creates a notifier targeting the given operator chat.
func NewNotifier(deliver *Deliverer, st *store.Store, operatorChatID string) *Notifier {
	return &Notifier{deliver: deliver, store: st, operatorChatID: operatorChatID}
}

// EscalateOnce sends the escalation notice unless one already went out this
// episode. The flag flips before the send: a failed delivery does not earn
// the conversation a second alert.
func (n *Notifier) EscalateOnce(ctx context.Context, convID, reason string, reqs *backend.Requirements, lastMessage string) {
	if !n.store.MarkAlerted(convID) {
		slog.Debug("operator already alerted this episode", "conversation", convID)
		return
	}

	notice := buildEscalation(convID, reason, reqs, lastMessage)
	if err := n.deliver.SendText(ctx, n.operatorChatID, notice); err != nil {
		slog.Error("failed to deliver escalation notice", "conversation", convID, "error", err)
		return
	}
	slog.Info("operator escalated", "conversation", convID, "reason", reason)
}

// buildEscalation composes the operator notice.
func buildEscalation(convID, reason string, reqs *backend.Requirements, lastMessage string) string {
	var b strings.Builder
	b.WriteString(escalationHeader)
	b.WriteString("\n\nConversation: ")
	b.WriteString(convID)
	if reason != "" {
		b.WriteString("\nReason: ")
		b.WriteString(reason)
	}

	if reqs != nil {
		var lines []string
		if reqs.Quantity != nil {
			lines = append(lines, fmt.Sprintf("Quantity: %d pieces", *reqs.Quantity))
		}
		if reqs.BudgetPerPiece != nil {
			lines = append(lines, fmt.Sprintf("Budget: ₹%d/piece", *reqs.BudgetPerPiece))
		}
		if reqs.Timeline != "" {
			lines = append(lines, "Timeline: "+reqs.Timeline)
		}
		if reqs.Location != "" {
			lines = append(lines, "Location: "+reqs.Location)
		}
		if len(lines) > 0 {
			b.WriteString("\n\nRequirements:\n")
			b.WriteString(strings.Join(lines, "\n"))
		}
	}

	if lastMessage != "" {
		b.WriteString("\n\nLast message:\n")
		b.WriteString(lastMessage)
	}
	return b.String()
}
