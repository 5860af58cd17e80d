package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// TestLoad_MissingFileUsesDefaults verifies that a missing config file is not
// an error and produces the default tunables.
func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Debounce.FirstTurnWindow() != 60*time.Second {
		t.Errorf("expected 60s first-turn window, got %v", cfg.Debounce.FirstTurnWindow())
	}
	if cfg.Debounce.BurstWindow() != 10*time.Second {
		t.Errorf("expected 10s burst window, got %v", cfg.Debounce.BurstWindow())
	}
	if cfg.Delivery.ItemDelay() != 800*time.Millisecond {
		t.Errorf("expected 800ms item delay, got %v", cfg.Delivery.ItemDelay())
	}
	if !cfg.Backend.BackendEnabled() {
		t.Error("backend should default to enabled")
	}
}

// TestLoad_FileOverridesDefaults verifies JSON5 parsing including comments.
func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		// local test overrides
		backend: { base_url: "http://localhost:8000", enabled: false },
		debounce: { first_turn_ms: 5000, burst_ms: 1500 },
		operator: { chat_id: "9199@c.us" },
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Backend.BaseURL != "http://localhost:8000" {
		t.Errorf("base_url not loaded: %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.BackendEnabled() {
		t.Error("enabled=false not honored")
	}
	if cfg.Debounce.FirstTurnWindow() != 5*time.Second {
		t.Errorf("first_turn_ms not loaded: %v", cfg.Debounce.FirstTurnWindow())
	}
	if cfg.Operator.ChatID != "9199@c.us" {
		t.Errorf("operator chat_id not loaded: %q", cfg.Operator.ChatID)
	}
}

// TestLoad_EnvOverridesFile verifies env vars take precedence over file values.
func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `{backend: {base_url: "http://from-file"}}`)

	t.Setenv("GIFTFLOW_BACKEND_URL", "http://from-env")
	t.Setenv("GIFTFLOW_DEBOUNCE_BURST_MS", "2500")
	t.Setenv("GIFTFLOW_BACKEND_ENABLED", "false")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Backend.BaseURL != "http://from-env" {
		t.Errorf("env override lost: %q", cfg.Backend.BaseURL)
	}
	if cfg.Debounce.BurstWindow() != 2500*time.Millisecond {
		t.Errorf("burst window env override lost: %v", cfg.Debounce.BurstWindow())
	}
	if cfg.Backend.BackendEnabled() {
		t.Error("GIFTFLOW_BACKEND_ENABLED=false not honored")
	}
}

// TestValidate_RequiredFields verifies fail-fast on each missing required key.
func TestValidate_RequiredFields(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing backend URL")
	}

	cfg.Backend.BaseURL = "http://localhost:8000"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing bridge URL")
	}

	cfg.Channels.WhatsApp.BridgeURL = "ws://localhost:8765"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing operator chat id")
	}

	cfg.Operator.ChatID = "9199@c.us"
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got: %v", err)
	}
}

// TestLoad_MalformedFile verifies a parse error is surfaced, not swallowed.
func TestLoad_MalformedFile(t *testing.T) {
	path := writeConfig(t, `{backend: `)
	if _, err := Load(path); err == nil {
		t.Error("expected parse error for malformed config")
	}
}
