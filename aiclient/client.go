package aiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// Client talks to the AI generation gateway. All content phases go through
// Generate with a named response schema; the gateway returns JSON matching
// that schema.
type Client struct {
	baseURL   string
	apiKey    string
	apiKeyHdr string
	http      *http.Client
	limiter   <-chan time.Time
}

func NewClientFromEnv() (*Client, error) {
	baseURL := strings.TrimSpace(os.Getenv("AI_API_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.draftforge-ai.com"
	}
	apiKeyHeader := strings.TrimSpace(os.Getenv("AI_API_KEY_HEADER"))
	if apiKeyHeader == "" {
		apiKeyHeader = "X-API-Key"
	}
	apiKey := strings.TrimSpace(os.Getenv("AI_API_KEY"))
	if apiKey == "" {
		return nil, errors.New("ai api key is empty")
	}
	rateLimitPerMin := int64(20)
	if v := strings.TrimSpace(os.Getenv("AI_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			rateLimitPerMin = n
		}
	}
	interval := time.Minute / time.Duration(rateLimitPerMin)

	timeout := 120 * time.Second
	if v := strings.TrimSpace(os.Getenv("AI_TIMEOUT_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			timeout = time.Duration(n) * time.Second
		}
	}

	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiKeyHdr: apiKeyHeader,
		http:      &http.Client{Timeout: timeout},
		limiter:   time.Tick(interval),
	}, nil
}

type generateRequest struct {
	Prompt string          `json:"prompt"`
	Schema string          `json:"schema"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Generate posts a prompt with a named response schema and decodes the
// JSON reply into out. Calls are rate limited client-side.
func (c *Client) Generate(ctx context.Context, prompt string, schema string, out interface{}) error {
	body, err := json.Marshal(generateRequest{Prompt: prompt, Schema: schema})
	if err != nil {
		return err
	}
	raw, err := c.postJSON(ctx, "/v1/generate", body)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body []byte) (json.RawMessage, error) {
	if c == nil {
		return nil, errors.New("ai client is not configured")
	}
	select {
	case <-c.limiter:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set(c.apiKeyHdr, c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("ai api error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return respBody, nil
}

func (c *Client) getJSON(ctx context.Context, path string) (json.RawMessage, error) {
	if c == nil {
		return nil, errors.New("ai client is not configured")
	}
	select {
	case <-c.limiter:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(c.apiKeyHdr, c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("ai api error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return respBody, nil
}
