package lookup

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

// FieldValues maps external field keys to their looked-up values for one
// source key.
type FieldValues map[string]string

type AccessTokenProvider func(ctx context.Context) (string, error)

type ClientOptions struct {
	BaseURL       string
	TokenProvider AccessTokenProvider
	HTTPClient    *http.Client
	UserAgent     string
}

// Client resolves batches of source keys against the external lookup
// service. One request per batch, no retries: the caller decides whether a
// failed lookup is fatal.
type Client struct {
	baseURL       string
	tokenProvider AccessTokenProvider
	httpClient    *http.Client
	userAgent     string
}

func NewClient(opts ClientOptions) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("lookup base url is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	return &Client{
		baseURL:       baseURL,
		tokenProvider: opts.TokenProvider,
		httpClient:    httpClient,
		userAgent:     strings.TrimSpace(opts.UserAgent),
	}, nil
}

// Lookup resolves sourceKeys in one batched call. The returned map only
// contains keys the service knows about; absent keys are not an error.
func (c *Client) Lookup(ctx context.Context, sourceKeys []string) (map[string]FieldValues, error) {
	if len(sourceKeys) == 0 {
		return map[string]FieldValues{}, nil
	}
	bodyBytes, err := json.Marshal(map[string]any{"keys": sourceKeys})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/lookup/batch", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.tokenProvider != nil {
		token, err := c.tokenProvider(ctx)
		if err != nil {
			return nil, err
		}
		if token = strings.TrimSpace(token); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lookup request failed: %w", err)
	}
	payloadBytes, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errPayload struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(payloadBytes, &errPayload)
		message := errPayload.Message
		if message == "" {
			message = strings.TrimSpace(string(payloadBytes))
		}
		return nil, fmt.Errorf("lookup failed: status=%d message=%s", resp.StatusCode, message)
	}

	var out struct {
		Results map[string]FieldValues `json:"results"`
	}
	if err := json.Unmarshal(payloadBytes, &out); err != nil {
		return nil, fmt.Errorf("lookup response malformed: %w", err)
	}
	if out.Results == nil {
		out.Results = map[string]FieldValues{}
	}
	return out.Results, nil
}
