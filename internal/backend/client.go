package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to the decision backend over HTTP with JSON bodies.
// Timeouts are per endpoint: /chat waits for an LLM pipeline, /lock and
// /health must fail fast.
type Client struct {
	baseURL       string
	apiKey        string
	client        *http.Client
	chatTimeout   time.Duration
	lockTimeout   time.Duration
	healthTimeout time.Duration
}

// Option customises a Client.
type Option func(*Client)

// WithTimeouts overrides the per-endpoint timeouts.
func WithTimeouts(chat, lock, health time.Duration) Option {
	return func(c *Client) {
		if chat > 0 {
			c.chatTimeout = chat
		}
		if lock > 0 {
			c.lockTimeout = lock
		}
		if health > 0 {
			c.healthTimeout = health
		}
	}
}

// WithAPIKey sets a bearer token sent on every request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// NewClient creates a backend client for the given base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		client:        &http.Client{},
		chatTimeout:   30 * time.Second,
		lockTimeout:   10 * time.Second,
		healthTimeout: 3 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Chat submits one aggregated turn and returns the backend's decision.
// Any transport, timeout, or decode failure is returned as an error; the
// caller maps it to the failure outcome.
func (c *Client) Chat(ctx context.Context, userID, message string) (*ChatResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.chatTimeout)
	defer cancel()

	body, err := c.post(ctx, "/chat", ChatRequest{UserID: userID, Message: message})
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var resp ChatResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("chat: decode response: %w", err)
	}
	return &resp, nil
}

// LockConversation tells the backend a human operator took over, so it also
// suppresses automated replies. Best-effort: the caller logs failures and
// keeps the local lock regardless.
func (c *Client) LockConversation(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, c.lockTimeout)
	defer cancel()

	body, err := c.post(ctx, "/lock_conversation", LockRequest{UserID: userID})
	if err != nil {
		return err
	}
	body.Close()
	return nil
}

// Health probes GET /health. Used at startup and by `giftflow doctor` only.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("health: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload any) (io.ReadCloser, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: marshal request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("%s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return resp.Body, nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
