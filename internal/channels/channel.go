// Package channels provides the messaging-platform abstraction. A channel
// connects one external platform to the responder via the message bus:
// inbound customer messages are published to the bus, outbound sends go
// through SendText and SendImage.
package channels

import (
	"context"

	"github.com/vihalabs/giftflow/internal/bus"
)

// Channel is the interface every platform adapter satisfies.
type Channel interface {
	// Name returns the channel identifier (e.g. "whatsapp").
	Name() string

	// Start begins listening for messages. Non-blocking after setup.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the channel.
	Stop(ctx context.Context) error

	// SendText delivers a plain text message to a chat.
	SendText(ctx context.Context, chatID, text string) error

	// SendImage delivers an image by URL with an optional caption.
	SendImage(ctx context.Context, chatID, url, caption string) error

	// IsRunning reports whether the channel is actively processing messages.
	IsRunning() bool
}

// BaseChannel provides shared state for channel implementations, which
// should embed it.
type BaseChannel struct {
	name    string
	bus     *bus.MessageBus
	running bool
}

// NewBaseChannel creates a BaseChannel bound to the given bus.
func NewBaseChannel(name string, msgBus *bus.MessageBus) *BaseChannel {
	return &BaseChannel{name: name, bus: msgBus}
}

// Name returns the channel name.
func (c *BaseChannel) Name() string { return c.name }

// IsRunning returns whether the channel is running.
func (c *BaseChannel) IsRunning() bool { return c.running }

// SetRunning updates the running state.
func (c *BaseChannel) SetRunning(running bool) { c.running = running }

// Publish forwards an inbound message to the bus.
func (c *BaseChannel) Publish(msg bus.InboundMessage) {
	c.bus.PublishInbound(msg)
}

// Truncate shortens a string to maxLen, appending "..." if truncated.
// Used to keep log lines readable.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
