// This file implements the wit.ai-backed NLU provider.
package nlu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/pennykit/pennychat/internal/models"
)

// Constants for wit.ai client configuration
const (
	// DefaultWitBaseURL is the wit.ai API endpoint.
	DefaultWitBaseURL = "https://api.wit.ai"
	// DefaultWitVersion pins the wit.ai API version.
	DefaultWitVersion = "20200612"
	// DefaultWitTimeout bounds a single provider round trip.
	DefaultWitTimeout = 15 * time.Second
)

// WitOpts holds configuration options for the wit.ai client.
type WitOpts struct {
	Token      string
	BaseURL    string
	Version    string
	HTTPClient *http.Client
}

// WitOption defines a configuration option for the wit.ai client.
type WitOption func(*WitOpts)

// WithToken sets the wit.ai server access token.
func WithToken(token string) WitOption {
	return func(o *WitOpts) { o.Token = token }
}

// WithBaseURL overrides the wit.ai API endpoint (used in tests).
func WithBaseURL(baseURL string) WitOption {
	return func(o *WitOpts) { o.BaseURL = baseURL }
}

// WithVersion overrides the wit.ai API version.
func WithVersion(version string) WitOption {
	return func(o *WitOpts) { o.Version = version }
}

// WithHTTPClient injects a custom HTTP client.
func WithHTTPClient(client *http.Client) WitOption {
	return func(o *WitOpts) { o.HTTPClient = client }
}

// WitClient queries the wit.ai message and speech endpoints.
type WitClient struct {
	baseURL    string
	version    string
	token      string
	httpClient *http.Client
}

// NewWitClient creates a wit.ai client, falling back to the
// WIT_ACCESS_TOKEN environment variable if no token option is provided.
func NewWitClient(opts ...WitOption) (*WitClient, error) {
	var cfg WitOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Token == "" {
		cfg.Token = os.Getenv("WIT_ACCESS_TOKEN")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultWitBaseURL
	}
	if cfg.Version == "" {
		cfg.Version = DefaultWitVersion
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultWitTimeout}
	}
	slog.Debug("Wit client config loaded", "token_set", cfg.Token != "", "base_url", cfg.BaseURL, "version", cfg.Version)

	if cfg.Token == "" {
		return nil, fmt.Errorf("wit.ai access token must be provided")
	}

	return &WitClient{
		baseURL:    cfg.BaseURL,
		version:    cfg.Version,
		token:      cfg.Token,
		httpClient: cfg.HTTPClient,
	}, nil
}

// Query sends the request to the message endpoint for text input or to
// the speech endpoint for a voice payload.
func (c *WitClient) Query(ctx context.Context, req Request) (*Response, error) {
	switch {
	case req.Text != "":
		return c.queryText(ctx, req.Text, req.Timestamp)
	case len(req.Voice) > 0:
		return c.queryVoice(ctx, req.Voice, req.Timestamp)
	default:
		return nil, models.ErrNoInput
	}
}

func (c *WitClient) queryText(ctx context.Context, text string, timestamp time.Time) (*Response, error) {
	query := url.Values{}
	query.Set("v", c.version)
	query.Set("q", truncateUtterance(text))
	query.Set("context", referenceTimeContext(timestamp))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/message?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build wit message request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("Accept", "application/json")

	return c.do(httpReq)
}

// Voice payloads must already be in MP3 format; see the audio package.
func (c *WitClient) queryVoice(ctx context.Context, voice []byte, timestamp time.Time) (*Response, error) {
	query := url.Values{}
	query.Set("v", c.version)
	query.Set("context", referenceTimeContext(timestamp))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/speech?"+query.Encode(), bytes.NewReader(voice))
	if err != nil {
		return nil, fmt.Errorf("failed to build wit speech request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("Content-Type", "audio/mpeg")
	httpReq.Header.Set("Accept", "application/json")

	return c.do(httpReq)
}

func (c *WitClient) do(req *http.Request) (*Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Error("Wit request failed", "error", err, "url", req.URL.Path)
		return nil, fmt.Errorf("wit request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		slog.Error("Wit request returned non-OK status", "status", resp.StatusCode, "url", req.URL.Path)
		return nil, fmt.Errorf("wit request returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed Response
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		slog.Error("Wit response decode failed", "error", err)
		return nil, fmt.Errorf("failed to decode wit response: %w", err)
	}

	slog.Debug("Wit query succeeded", "intents", len(parsed.Intents), "entity_groups", len(parsed.Entities), "traits", len(parsed.Traits))
	return &parsed, nil
}

// referenceTimeContext builds the request context blob that lets the
// provider resolve relative dates ("yesterday") against the turn's
// timestamp.
func referenceTimeContext(timestamp time.Time) string {
	blob, _ := json.Marshal(map[string]string{
		"reference_time": timestamp.Format(time.RFC3339),
	})
	return string(blob)
}

// truncateUtterance caps the utterance at the provider's query length
// limit without splitting a multi-byte character.
func truncateUtterance(text string) string {
	runes := []rune(text)
	if len(runes) <= models.MaxUtteranceLength {
		return text
	}
	return string(runes[:models.MaxUtteranceLength])
}
