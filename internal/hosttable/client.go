package hosttable

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Numeric error codes returned by the host table API.
const (
	CodePermissionDenied = 1254302
	CodeNotFound         = 1254404
	CodeDuplicateField   = 1254036
)

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFound         = errors.New("not found")
	ErrDuplicateField   = errors.New("duplicate field name")
)

// APIError is a non-2xx response from the host table API, carrying the
// host's numeric code alongside the HTTP status.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("host table api: http %d code %d: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("host table api: http %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrPermissionDenied:
		return e.Code == CodePermissionDenied || e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.Code == CodeNotFound || e.StatusCode == http.StatusNotFound
	case ErrDuplicateField:
		return e.Code == CodeDuplicateField
	}
	return false
}

// Field is one column of the host table schema.
type Field struct {
	ID   string `json:"fieldId"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Record is one row, with cell values keyed by field ID.
type Record struct {
	ID    string         `json:"recordId"`
	Cells map[string]any `json:"cells"`
}

type AccessTokenProvider func(ctx context.Context) (string, error)

type ClientOptions struct {
	BaseURL       string
	AppToken      string
	TableID       string
	TokenProvider AccessTokenProvider
	HTTPClient    *http.Client
	UserAgent     string
	MaxRetries    int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
}

// Client talks to one table of the host spreadsheet API.
type Client struct {
	baseURL       string
	appToken      string
	tableID       string
	tokenProvider AccessTokenProvider
	httpClient    *http.Client
	userAgent     string
	maxRetries    int
	baseDelay     time.Duration
	maxDelay      time.Duration
}

func NewClient(opts ClientOptions) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("host table base url is required")
	}
	appToken := strings.TrimSpace(opts.AppToken)
	if appToken == "" {
		return nil, fmt.Errorf("host table app token is required")
	}
	tableID := strings.TrimSpace(opts.TableID)
	if tableID == "" {
		return nil, fmt.Errorf("host table id is required")
	}
	if opts.TokenProvider == nil {
		return nil, fmt.Errorf("host table token provider is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}
	maxDelay := opts.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 2 * time.Second
	}
	return &Client{
		baseURL:       baseURL,
		appToken:      appToken,
		tableID:       tableID,
		tokenProvider: opts.TokenProvider,
		httpClient:    httpClient,
		userAgent:     strings.TrimSpace(opts.UserAgent),
		maxRetries:    maxRetries,
		baseDelay:     baseDelay,
		maxDelay:      maxDelay,
	}, nil
}

func (c *Client) tablePath(suffix string) string {
	return fmt.Sprintf("/v1/apps/%s/tables/%s%s", url.PathEscape(c.appToken), url.PathEscape(c.tableID), suffix)
}

// ListFields enumerates the table's columns, following pagination cursors.
func (c *Client) ListFields(ctx context.Context) ([]Field, error) {
	var fields []Field
	cursor := ""
	for {
		q := url.Values{}
		if cursor != "" {
			q.Set("cursor", cursor)
		}
		var out struct {
			Fields     []Field `json:"fields"`
			NextCursor *string `json:"nextCursor"`
		}
		if err := c.doJSON(ctx, http.MethodGet, c.tablePath("/fields?"+q.Encode()), nil, &out); err != nil {
			return nil, err
		}
		fields = append(fields, out.Fields...)
		if out.NextCursor == nil || *out.NextCursor == "" {
			return fields, nil
		}
		cursor = *out.NextCursor
	}
}

// CreateField creates a column with the given name and type.
func (c *Client) CreateField(ctx context.Context, name, fieldType string) (Field, error) {
	if fieldType == "" {
		fieldType = "text"
	}
	body := map[string]any{
		"name": name,
		"type": fieldType,
	}
	var out struct {
		Field Field `json:"field"`
	}
	if err := c.doJSON(ctx, http.MethodPost, c.tablePath("/fields"), body, &out); err != nil {
		return Field{}, err
	}
	return out.Field, nil
}

// GetRecords reads the cell values of a batch of records.
func (c *Client) GetRecords(ctx context.Context, recordIDs []string) ([]Record, error) {
	body := map[string]any{
		"recordIds": recordIDs,
	}
	var out struct {
		Records []Record `json:"records"`
	}
	if err := c.doJSON(ctx, http.MethodPost, c.tablePath("/records/batchGet"), body, &out); err != nil {
		return nil, err
	}
	return out.Records, nil
}

// SetCellValue writes one cell.
func (c *Client) SetCellValue(ctx context.Context, recordID, fieldID string, value any) error {
	body := map[string]any{
		"fields": map[string]any{fieldID: value},
	}
	path := c.tablePath("/records/" + url.PathEscape(recordID))
	return c.doJSON(ctx, http.MethodPatch, path, body, nil)
}

// ActiveRecordID returns the record currently focused in the host UI,
// or "" when nothing is focused.
func (c *Client) ActiveRecordID(ctx context.Context) (string, error) {
	var out struct {
		RecordID string `json:"recordId"`
	}
	err := c.doJSON(ctx, http.MethodGet, c.tablePath("/selection/active"), nil, &out)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return out.RecordID, nil
}

// SelectRecordIDs asks the host to open its record picker and returns the
// record IDs the user confirmed.
func (c *Client) SelectRecordIDs(ctx context.Context, limit int) ([]string, error) {
	body := map[string]any{}
	if limit > 0 {
		body["limit"] = limit
	}
	var out struct {
		RecordIDs []string `json:"recordIds"`
	}
	if err := c.doJSON(ctx, http.MethodPost, c.tablePath("/selection/pick"), body, &out); err != nil {
		return nil, err
	}
	return out.RecordIDs, nil
}

func (c *Client) doJSON(ctx context.Context, method, requestPath string, body, out any) error {
	token, err := c.tokenProvider(ctx)
	if err != nil {
		return err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("host table token is empty")
	}
	var bodyBytes []byte
	if body != nil {
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}
	for attempt := 0; ; attempt++ {
		var bodyReader io.Reader
		if bodyBytes != nil {
			bodyReader = bytes.NewReader(bodyBytes)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+requestPath, bodyReader)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if attempt < c.maxRetries {
				if waitErr := waitWithContext(ctx, c.retryDelay(attempt+1, "")); waitErr != nil {
					return waitErr
				}
				continue
			}
			return err
		}
		payloadBytes, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return readErr
		}

		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			if out == nil || len(payloadBytes) == 0 {
				return nil
			}
			return json.Unmarshal(payloadBytes, out)
		}

		if (resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode >= 500 && resp.StatusCode <= 599)) && attempt < c.maxRetries {
			if waitErr := waitWithContext(ctx, c.retryDelay(attempt+1, resp.Header.Get("Retry-After"))); waitErr != nil {
				return waitErr
			}
			continue
		}

		var errPayload struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(payloadBytes, &errPayload)
		message := errPayload.Message
		if message == "" {
			message = strings.TrimSpace(string(payloadBytes))
		}
		return &APIError{
			StatusCode: resp.StatusCode,
			Code:       errPayload.Code,
			Message:    message,
		}
	}
}

func (c *Client) retryDelay(attempt int, retryAfterHeader string) time.Duration {
	if retryAfter := parseRetryAfter(retryAfterHeader); retryAfter > 0 {
		if retryAfter > c.maxDelay {
			return c.maxDelay
		}
		return retryAfter
	}
	delay := c.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.maxDelay {
			return c.maxDelay
		}
	}
	if delay > c.maxDelay {
		return c.maxDelay
	}
	return delay
}

func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if ts, err := time.Parse(time.RFC1123, header); err == nil {
		delta := time.Until(ts)
		if delta > 0 {
			return delta
		}
	}
	return 0
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
