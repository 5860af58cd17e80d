package bus

import (
	"context"
	"log/slog"
)

const inboundBufferSize = 256

// MessageBus decouples transport channels from the responder.
// Channels publish inbound messages; the responder consumes them
// from a single loop.
type MessageBus struct {
	inbound chan InboundMessage
}

// New creates a message bus with a bounded inbound queue.
func New() *MessageBus {
	return &MessageBus{
		inbound: make(chan InboundMessage, inboundBufferSize),
	}
}

// PublishInbound enqueues an inbound message. If the queue is full the
// message is dropped with a warning rather than blocking the transport
// read loop.
func (b *MessageBus) PublishInbound(msg InboundMessage) {
	select {
	case b.inbound <- msg:
	default:
		slog.Warn("inbound queue full, dropping message",
			"conversation_id", msg.ConversationID)
	}
}

// ConsumeInbound blocks until a message is available or ctx is cancelled.
// Returns ok=false on cancellation.
func (b *MessageBus) ConsumeInbound(ctx context.Context) (InboundMessage, bool) {
	select {
	case <-ctx.Done():
		return InboundMessage{}, false
	case msg := <-b.inbound:
		return msg, true
	}
}
