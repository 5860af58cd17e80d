package responder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Transport is the outbound side of a channel. The WhatsApp channel
// satisfies it; tests substitute a fake.
type Transport interface {
	SendText(ctx context.Context, chatID, text string) error
	SendImage(ctx context.Context, chatID, url, caption string) error
}

// Deliverer wraps a transport with global send pacing and the degrade
// rules for images. WhatsApp throttles chattering accounts, so all sends
// flow through one rate limiter.
type Deliverer struct {
	transport Transport
	limiter   *rate.Limiter

	mu           sync.Mutex
	itemDelay    time.Duration
	summaryDelay time.Duration
}

// NewDeliverer creates a deliverer sending at most sendsPerMinute messages.
func NewDeliverer(transport Transport, sendsPerMinute int, itemDelay, summaryDelay time.Duration) *Deliverer {
	if sendsPerMinute <= 0 {
		sendsPerMinute = 30
	}
	return &Deliverer{
		transport:    transport,
		limiter:      rate.NewLimiter(rate.Limit(float64(sendsPerMinute)/60.0), 5),
		itemDelay:    itemDelay,
		summaryDelay: summaryDelay,
	}
}

// SetDelays updates the inter-message delays. Used by config hot reload.
func (d *Deliverer) SetDelays(item, summary time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.itemDelay = item
	d.summaryDelay = summary
}

// ItemDelay returns the current delay between showcase items.
func (d *Deliverer) ItemDelay() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.itemDelay
}

// SummaryDelay returns the current delay after the requirements summary.
func (d *Deliverer) SummaryDelay() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.summaryDelay
}

// SendText sends a text message. Empty or whitespace-only text is an error,
// never a blank bubble on the customer's screen.
func (d *Deliverer) SendText(ctx context.Context, chatID, text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("refusing to send empty message to %s", chatID)
	}
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	return d.transport.SendText(ctx, chatID, text)
}

// SendImage sends an image with a caption. A missing URL or a transport
// failure degrades to text so the customer still sees the product line.
func (d *Deliverer) SendImage(ctx context.Context, chatID, url, caption string) error {
	if strings.TrimSpace(url) == "" {
		return d.SendText(ctx, chatID, caption)
	}
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := d.transport.SendImage(ctx, chatID, url, caption); err != nil {
		slog.Warn("image send failed, falling back to text", "chat", chatID, "error", err)
		return d.SendText(ctx, chatID, caption+"\n"+imageFallbackNote)
	}
	return nil
}

// pause sleeps for d unless the context ends first.
func pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
