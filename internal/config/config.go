package config

import "time"

// Config is the root configuration for the GiftFlow bot.
type Config struct {
	Backend   BackendConfig   `json:"backend"`
	Channels  ChannelsConfig  `json:"channels"`
	Operator  OperatorConfig  `json:"operator"`
	Debounce  DebounceConfig  `json:"debounce"`
	Delivery  DeliveryConfig  `json:"delivery"`
	Store     StoreConfig     `json:"store,omitempty"`
	Gateway   GatewayConfig   `json:"gateway,omitempty"`
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`
}

// BackendConfig configures the decision backend RPC surface.
type BackendConfig struct {
	BaseURL string `json:"base_url"`           // required; process fails fast if absent
	Enabled *bool  `json:"enabled,omitempty"`  // default true; false disables /chat calls entirely
	APIKey  string `json:"-"`                  // from env GIFTFLOW_BACKEND_API_KEY only

	ChatTimeoutMs   int `json:"chat_timeout_ms,omitempty"`   // default 30000
	LockTimeoutMs   int `json:"lock_timeout_ms,omitempty"`   // default 10000
	HealthTimeoutMs int `json:"health_timeout_ms,omitempty"` // default 3000
}

// BackendEnabled reports whether /chat calls are enabled (default true).
func (b BackendConfig) BackendEnabled() bool {
	return b.Enabled == nil || *b.Enabled
}

// ChatTimeout returns the /chat call timeout.
func (b BackendConfig) ChatTimeout() time.Duration { return msOrDefault(b.ChatTimeoutMs, 30000) }

// LockTimeout returns the /lock_conversation call timeout.
func (b BackendConfig) LockTimeout() time.Duration { return msOrDefault(b.LockTimeoutMs, 10000) }

// HealthTimeout returns the /health call timeout.
func (b BackendConfig) HealthTimeout() time.Duration { return msOrDefault(b.HealthTimeoutMs, 3000) }

// ChannelsConfig holds transport channel configuration.
type ChannelsConfig struct {
	WhatsApp WhatsAppConfig `json:"whatsapp"`
}

// WhatsAppConfig configures the WhatsApp bridge channel.
// The bridge (e.g. whatsapp-web.js based) speaks the platform protocol;
// the channel just exchanges JSON frames with it over WebSocket.
type WhatsAppConfig struct {
	BridgeURL string `json:"bridge_url"`        // required, e.g. "ws://localhost:8765"
	SelfID    string `json:"self_id,omitempty"` // the operator's own chat JID; operator messages there never lock
}

// OperatorConfig configures the human-operator escalation target.
type OperatorConfig struct {
	ChatID string `json:"chat_id"` // required; all escalation notices go here, never to customers
}

// DebounceConfig tunes the turn aggregation windows.
type DebounceConfig struct {
	FirstTurnMs int `json:"first_turn_ms,omitempty"` // default 60000: capture a full initial requirement statement
	BurstMs     int `json:"burst_ms,omitempty"`      // default 10000: coalesce rapid follow-up bursts
}

// FirstTurnWindow returns the first-turn debounce window.
func (d DebounceConfig) FirstTurnWindow() time.Duration { return msOrDefault(d.FirstTurnMs, 60000) }

// BurstWindow returns the debounce window for every turn after the first.
func (d DebounceConfig) BurstWindow() time.Duration { return msOrDefault(d.BurstMs, 10000) }

// DeliveryConfig tunes multi-part send sequencing.
type DeliveryConfig struct {
	ItemDelayMs    int `json:"item_delay_ms,omitempty"`    // default 800: pause between showcase items
	SummaryDelayMs int `json:"summary_delay_ms,omitempty"` // default 1000: pause around the summary message
	SendsPerMinute int `json:"sends_per_minute,omitempty"` // default 30: outbound pacing cap
}

// ItemDelay returns the inter-item delay for sequenced sends.
func (d DeliveryConfig) ItemDelay() time.Duration { return msOrDefault(d.ItemDelayMs, 800) }

// SummaryDelay returns the pre/post summary delay.
func (d DeliveryConfig) SummaryDelay() time.Duration { return msOrDefault(d.SummaryDelayMs, 1000) }

// StoreConfig configures conversation-state persistence.
type StoreConfig struct {
	Path string `json:"path,omitempty"` // SQLite file; empty = in-memory only (locks lost on restart)
}

// GatewayConfig configures the read-only operator status server.
type GatewayConfig struct {
	Host string `json:"host,omitempty"` // default "127.0.0.1"
	Port int    `json:"port,omitempty"` // 0 = disabled
}

// TelemetryConfig configures OpenTelemetry export for turn-processing spans.
// When enabled, spans are exported to an OTLP-compatible backend
// (Jaeger, Tempo, Datadog, etc.).
type TelemetryConfig struct {
	Enabled     bool              `json:"enabled,omitempty"`
	Endpoint    string            `json:"endpoint,omitempty"`     // e.g. "localhost:4317" or "https://otel.example.com:4318"
	Protocol    string            `json:"protocol,omitempty"`     // "grpc" (default) or "http"
	Insecure    bool              `json:"insecure,omitempty"`     // skip TLS (local dev)
	ServiceName string            `json:"service_name,omitempty"` // default "giftflow"
	Headers     map[string]string `json:"headers,omitempty"`      // extra headers (auth tokens etc.)
}

func msOrDefault(ms, def int) time.Duration {
	if ms <= 0 {
		ms = def
	}
	return time.Duration(ms) * time.Millisecond
}
