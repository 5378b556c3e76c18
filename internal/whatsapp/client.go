// Package whatsapp talks to an Evolution API instance: outbound text and
// presence updates, connection health and inbound webhook parsing.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// Presence states accepted by SetPresence.
const (
	PresenceComposing = "composing"
	PresenceRecording = "recording"
	PresenceAvailable = "available"
)

// APIError is returned for non-2xx responses.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("evolution: status %d: %s", e.Status, e.Body)
}

// Config configures a Client.
type Config struct {
	BaseURL      string
	APIKey       string
	InstanceName string
	Timeout      time.Duration
}

// Client is an Evolution API client bound to one instance.
type Client struct {
	baseURL    string
	apiKey     string
	instance   string
	httpClient *http.Client
}

// NewClient returns a Client. A zero Timeout uses 30s.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		instance:   cfg.InstanceName,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Instance returns the configured instance name.
func (c *Client) Instance() string { return c.instance }

type sendTextRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

type presenceRequest struct {
	Number   string `json:"number"`
	Presence string `json:"presence"`
}

type connectionStateResponse struct {
	State    string `json:"state"`
	Instance *struct {
		State string `json:"state"`
	} `json:"instance,omitempty"`
}

// SendText delivers a text message to a phone number (digits only).
func (c *Client) SendText(ctx context.Context, phone, text string) error {
	return c.post(ctx, "/message/sendText/", sendTextRequest{Number: phone, Text: text})
}

// SetPresence shows a typing/recording/available indicator to phone.
func (c *Client) SetPresence(ctx context.Context, phone, presence string) error {
	return c.post(ctx, "/chat/sendPresence/", presenceRequest{Number: phone, Presence: presence})
}

// ConnectionState reports the instance state; the instance is usable when
// the state is "open".
func (c *Client) ConnectionState(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/instance/connectionState/"), nil)
	if err != nil {
		return "", fmt.Errorf("evolution: create request: %w", err)
	}
	body, err := c.do(req)
	if err != nil {
		return "", err
	}
	var out connectionStateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("evolution: decode connection state: %w", err)
	}
	if out.State == "" && out.Instance != nil {
		return out.Instance.State, nil
	}
	return out.State, nil
}

// Healthy is ConnectionState reduced to a bool.
func (c *Client) Healthy(ctx context.Context) error {
	state, err := c.ConnectionState(ctx)
	if err != nil {
		return err
	}
	if state != "open" {
		return fmt.Errorf("evolution: instance state %q", state)
	}
	return nil
}

func (c *Client) endpoint(path string) string {
	return c.baseURL + path + url.PathEscape(c.instance)
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("evolution: marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("evolution: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	_, err = c.do(req)
	return err
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	req.Header.Set("apikey", c.apiKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("evolution: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("evolution: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}
