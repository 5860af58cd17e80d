package responder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vihalabs/giftflow/internal/backend"
)

// dispatch executes one classified backend decision. All sends are
// sequential; each waits for the previous one to finish before starting.
func (r *Responder) dispatch(ctx context.Context, convID, turn string, out backend.Outcome, log *slog.Logger) {
	chatID := r.addr(convID)

	switch out.Kind {
	case backend.OutcomeLocked:
		// The backend refuses locked conversations on its own. Local and
		// backend lock state may diverge after a failed notify; no
		// reconciliation, just silence.
		log.Info("backend reports conversation locked, staying silent")

	case backend.OutcomeShowProducts:
		r.showProducts(ctx, convID, chatID, out, log)

	case backend.OutcomeHandoff:
		if reply := strings.TrimSpace(out.Reply); reply != "" {
			if err := r.deliver.SendText(ctx, chatID, reply); err != nil {
				log.Error("handoff reply send failed", "error", err)
			}
		}
		r.notifier.EscalateOnce(ctx, convID, out.Reason, out.Requirements, "")

	case backend.OutcomeReply:
		reply := strings.TrimSpace(out.Reply)
		if reply == "" {
			log.Warn("backend returned empty reply, nothing sent")
			return
		}
		if err := r.deliver.SendText(ctx, chatID, reply); err != nil {
			log.Error("reply send failed", "error", err)
		}

	case backend.OutcomeFailure:
		log.Warn("backend failure, sending fallback", "reason", out.Reason)
		if err := r.deliver.SendText(ctx, chatID, failureText); err != nil {
			log.Error("fallback send failed", "error", err)
		}
		reason := out.Reason
		if reason == "" {
			reason = "bot_error"
		}
		r.notifier.EscalateOnce(ctx, convID, reason, out.Requirements, turn)
	}
}

// showProducts runs the showcase sequence: requirements summary, then each
// product as a captioned image with a fixed delay between items, then the
// closing message, then the one-shot escalation so a human follows up on a
// warm lead.
func (r *Responder) showProducts(ctx context.Context, convID, chatID string, out backend.Outcome, log *slog.Logger) {
	if len(out.Products) == 0 {
		log.Warn("showcase requested with no products")
		if err := r.deliver.SendText(ctx, chatID, checkingText); err != nil {
			log.Error("checking message send failed", "error", err)
		}
		return
	}

	if summary := strings.TrimSpace(out.Summary); summary != "" {
		if err := r.deliver.SendText(ctx, chatID, summary); err != nil {
			log.Error("summary send failed", "error", err)
		}
		pause(ctx, r.deliver.SummaryDelay())
	}

	for i, p := range out.Products {
		if i > 0 {
			pause(ctx, r.deliver.ItemDelay())
		}
		caption := fmt.Sprintf(showcaseCaptionFmt, i+1, p.Name, p.Price)
		if err := r.deliver.SendImage(ctx, chatID, p.ImageURL, caption); err != nil {
			log.Error("product image send failed", "product", p.Name, "error", err)
		}
	}

	pause(ctx, r.deliver.ItemDelay())
	if err := r.deliver.SendText(ctx, chatID, closingText); err != nil {
		log.Error("closing message send failed", "error", err)
	}

	reason := out.Reason
	if reason == "" {
		reason = "products_shown"
	}
	r.notifier.EscalateOnce(ctx, convID, reason, out.Requirements, "")
	log.Info("product showcase sent", "products", len(out.Products))
}
