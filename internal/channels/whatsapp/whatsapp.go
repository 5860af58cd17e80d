// Package whatsapp connects to a WhatsApp bridge over WebSocket. The bridge
// (whatsapp-web.js based) speaks the actual WhatsApp protocol; this channel
// exchanges JSON frames with it.
package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vihalabs/giftflow/internal/bus"
	"github.com/vihalabs/giftflow/internal/channels"
	"github.com/vihalabs/giftflow/internal/config"
)

// bridgeFrame is the wire format in both directions.
//
// Inbound: {"type":"message","from":"...","chat":"...","content":"...",
// "from_me":bool,"media":["image"],"caption":"..."}. The bridge sets
// from_me only for messages typed by a human on the business account
// (phone or WhatsApp Web), never for messages it relayed on our behalf.
//
// Outbound: {"type":"message","to","content"} for text and
// {"type":"image","to","url","caption"} for images.
type bridgeFrame struct {
	Type    string   `json:"type"`
	From    string   `json:"from,omitempty"`
	Chat    string   `json:"chat,omitempty"`
	To      string   `json:"to,omitempty"`
	Content string   `json:"content,omitempty"`
	URL     string   `json:"url,omitempty"`
	Caption string   `json:"caption,omitempty"`
	FromMe  bool     `json:"from_me,omitempty"`
	Media   []string `json:"media,omitempty"`
}

// Channel is the WhatsApp bridge adapter.
type Channel struct {
	*channels.BaseChannel
	config config.WhatsAppConfig

	mu     sync.Mutex
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a WhatsApp channel from config.
func New(cfg config.WhatsAppConfig, msgBus *bus.MessageBus) (*Channel, error) {
	if cfg.BridgeURL == "" {
		return nil, fmt.Errorf("whatsapp bridge_url is required")
	}
	return &Channel{
		BaseChannel: channels.NewBaseChannel("whatsapp", msgBus),
		config:      cfg,
	}, nil
}

// Start connects to the bridge WebSocket and begins listening.
func (c *Channel) Start(ctx context.Context) error {
	slog.Info("starting whatsapp channel", "bridge_url", c.config.BridgeURL)

	c.ctx, c.cancel = context.WithCancel(ctx)

	if err := c.connect(); err != nil {
		// Don't fail hard, the reconnect loop will keep trying.
		slog.Warn("initial whatsapp bridge connection failed, will retry", "error", err)
	}

	go c.listenLoop()

	c.SetRunning(true)
	return nil
}

// Stop gracefully shuts down the channel.
func (c *Channel) Stop(_ context.Context) error {
	slog.Info("stopping whatsapp channel")

	if c.cancel != nil {
		c.cancel()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.SetRunning(false)

	return nil
}

// SendText delivers a text message through the bridge.
func (c *Channel) SendText(_ context.Context, chatID, text string) error {
	return c.writeFrame(bridgeFrame{Type: "message", To: chatID, Content: text})
}

// SendImage delivers an image by URL through the bridge.
func (c *Channel) SendImage(_ context.Context, chatID, url, caption string) error {
	return c.writeFrame(bridgeFrame{Type: "image", To: chatID, URL: url, Caption: caption})
}

func (c *Channel) writeFrame(frame bridgeFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("whatsapp bridge not connected")
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal whatsapp frame: %w", err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("send whatsapp frame: %w", err)
	}
	return nil
}

// connect establishes the WebSocket connection to the bridge.
func (c *Channel) connect() error {
	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.Dial(c.config.BridgeURL, nil)
	if err != nil {
		return fmt.Errorf("dial whatsapp bridge %s: %w", c.config.BridgeURL, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	slog.Info("whatsapp bridge connected", "url", c.config.BridgeURL)
	return nil
}

// listenLoop reads frames from the bridge with automatic reconnection.
func (c *Channel) listenLoop() {
	backoff := time.Second

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		if conn == nil {
			slog.Info("attempting whatsapp bridge reconnect", "backoff", backoff)

			select {
			case <-c.ctx.Done():
				return
			case <-time.After(backoff):
			}

			if err := c.connect(); err != nil {
				slog.Warn("whatsapp bridge reconnect failed", "error", err)
				backoff = min(backoff*2, 30*time.Second)
				continue
			}

			backoff = time.Second // reset on success
			continue
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			slog.Warn("whatsapp read error, will reconnect", "error", err)

			c.mu.Lock()
			if c.conn != nil {
				_ = c.conn.Close()
				c.conn = nil
			}
			c.mu.Unlock()

			continue
		}

		var frame bridgeFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			slog.Warn("invalid whatsapp frame JSON", "error", err)
			continue
		}

		if frame.Type == "message" {
			c.handleIncoming(frame)
		}
	}
}

// handleIncoming converts a bridge frame into an inbound bus message.
// Group and broadcast chats are ignored: the responder only serves direct
// customer conversations.
func (c *Channel) handleIncoming(frame bridgeFrame) {
	chatID := frame.Chat
	if chatID == "" {
		chatID = frame.From
	}
	if chatID == "" {
		return
	}

	if strings.HasSuffix(chatID, "@g.us") || strings.HasSuffix(chatID, "@broadcast") {
		return
	}
	if c.config.SelfID != "" && chatID == c.config.SelfID {
		return
	}

	imagePresent := false
	for _, m := range frame.Media {
		if m == "image" {
			imagePresent = true
			break
		}
	}

	if frame.Content == "" && !imagePresent {
		return
	}

	slog.Debug("whatsapp message received",
		"chat_id", chatID,
		"from_me", frame.FromMe,
		"preview", channels.Truncate(frame.Content, 50),
	)

	c.Publish(bus.InboundMessage{
		ConversationID:     chatID,
		ChatID:             chatID,
		Text:               frame.Content,
		ImagePresent:       imagePresent,
		Caption:            frame.Caption,
		OperatorOriginated: frame.FromMe,
	})
}
