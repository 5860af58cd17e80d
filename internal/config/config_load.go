package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Debounce: DebounceConfig{
			FirstTurnMs: 60000,
			BurstMs:     10000,
		},
		Delivery: DeliveryConfig{
			ItemDelayMs:    800,
			SummaryDelayMs: 1000,
			SendsPerMinute: 30,
		},
		Gateway: GatewayConfig{
			Host: "127.0.0.1",
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars.
// A missing file is not an error: env vars alone can carry a full config.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	envStr("GIFTFLOW_BACKEND_URL", &c.Backend.BaseURL)
	envStr("GIFTFLOW_BACKEND_API_KEY", &c.Backend.APIKey)
	envStr("GIFTFLOW_BRIDGE_URL", &c.Channels.WhatsApp.BridgeURL)
	envStr("GIFTFLOW_SELF_ID", &c.Channels.WhatsApp.SelfID)
	envStr("GIFTFLOW_OPERATOR_CHAT_ID", &c.Operator.ChatID)
	envStr("GIFTFLOW_STORE_PATH", &c.Store.Path)

	envInt("GIFTFLOW_DEBOUNCE_FIRST_TURN_MS", &c.Debounce.FirstTurnMs)
	envInt("GIFTFLOW_DEBOUNCE_BURST_MS", &c.Debounce.BurstMs)
	envInt("GIFTFLOW_ITEM_DELAY_MS", &c.Delivery.ItemDelayMs)
	envInt("GIFTFLOW_GATEWAY_PORT", &c.Gateway.Port)

	if v := os.Getenv("GIFTFLOW_BACKEND_ENABLED"); v != "" {
		enabled := v != "0" && v != "false"
		c.Backend.Enabled = &enabled
	}
}

// Validate checks the required configuration surface. Called once at startup;
// a validation failure is fatal to the process (the core itself never is).
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return errors.New("backend.base_url is required (or GIFTFLOW_BACKEND_URL)")
	}
	if c.Channels.WhatsApp.BridgeURL == "" {
		return errors.New("channels.whatsapp.bridge_url is required (or GIFTFLOW_BRIDGE_URL)")
	}
	if c.Operator.ChatID == "" {
		return errors.New("operator.chat_id is required (or GIFTFLOW_OPERATOR_CHAT_ID)")
	}
	return nil
}
