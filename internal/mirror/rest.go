package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/erauner12/odoosync/internal/syncx"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// RESTPath is where the table API is mounted under the project URL
const RESTPath = "/rest/v1/"

// RESTClient talks to a PostgREST-style table API (Supabase).
// Every request carries the API key both as apikey and as a bearer token.
type RESTClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewRESTClient creates a client for the project at baseURL
func NewRESTClient(baseURL, apiKey string, httpClient *http.Client) *RESTClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &RESTClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

// Upsert posts rows with on_conflict so existing keys are merged instead of rejected
func (c *RESTClient) Upsert(ctx context.Context, table string, rows []syncx.MirrorRow, conflictKey string) error {
	if len(rows) == 0 {
		return nil
	}
	body, err := json.Marshal(rows)
	if err != nil {
		return WriteError{Table: table, Message: fmt.Sprintf("encode rows: %v", err)}
	}

	params := url.Values{}
	params.Set("on_conflict", conflictKey)
	req, err := c.newRequest(ctx, http.MethodPost, table, params, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "resolution=merge-duplicates,return=minimal")

	resp, err := c.do(req, table)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// Count asks for an exact row count without transferring rows
func (c *RESTClient) Count(ctx context.Context, table string) (int64, error) {
	params := url.Values{}
	params.Set("select", "*")
	req, err := c.newRequest(ctx, http.MethodHead, table, params, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Prefer", "count=exact")

	resp, err := c.do(req, table)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()

	n, ok := parseContentRangeTotal(resp.Header.Get("Content-Range"))
	if !ok {
		return 0, WriteError{
			Table:   table,
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("unparseable Content-Range %q", resp.Header.Get("Content-Range")),
		}
	}
	return n, nil
}

// Select reads rows using query-string filters and Range pagination
func (c *RESTClient) Select(ctx context.Context, q SelectQuery) ([]syncx.MirrorRow, error) {
	params := url.Values{}
	if len(q.Columns) > 0 {
		params.Set("select", strings.Join(q.Columns, ","))
	} else {
		params.Set("select", "*")
	}
	for _, f := range q.Filters {
		switch f.Op {
		case OpEq, OpGte, OpLte:
		default:
			return nil, fmt.Errorf("unsupported filter operator %q", f.Op)
		}
		params.Add(f.Column, f.Op+"."+fmt.Sprint(f.Value))
	}
	if q.Order != "" {
		params.Set("order", restOrder(q.Order))
	}

	req, err := c.newRequest(ctx, http.MethodGet, q.Table, params, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if q.Limit > 0 {
		req.Header.Set("Range-Unit", "items")
		req.Header.Set("Range", fmt.Sprintf("%d-%d", q.Offset, q.Offset+q.Limit-1))
	} else if q.Offset > 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
		req.URL.RawQuery = params.Encode()
	}

	resp, err := c.do(req, q.Table)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var rows []syncx.MirrorRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, WriteError{Table: q.Table, Status: resp.StatusCode, Message: fmt.Sprintf("decode rows: %v", err)}
	}
	return rows, nil
}

func (c *RESTClient) newRequest(ctx context.Context, method, table string, params url.Values, body io.Reader) (*http.Request, error) {
	reqURL := c.baseURL + RESTPath + url.PathEscape(table)
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, WriteError{Table: table, Message: err.Error()}
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	return req, nil
}

// do executes req and maps non-2xx answers to AuthError or WriteError.
// On success the caller owns the response body.
func (c *RESTClient) do(req *http.Request, table string) (*http.Response, error) {
	correlationID := uuid.New().String()
	req.Header.Set("X-Correlation-ID", correlationID)

	logger := log.With().
		Str("method", req.Method).
		Str("table", table).
		Str("correlationId", correlationID).
		Logger()

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		logger.Error().Err(err).Dur("duration", duration).Msg("mirror request failed")
		return nil, WriteError{Table: table, Message: err.Error()}
	}

	logger.Debug().
		Int("status", resp.StatusCode).
		Dur("duration", duration).
		Msg("mirror request completed")

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	msg := readErrorMessage(resp.Body)
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, AuthError{Status: resp.StatusCode, Message: msg}
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return nil, WriteError{
			Table:      table,
			Status:     resp.StatusCode,
			Message:    msg,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	return nil, WriteError{Table: table, Status: resp.StatusCode, Message: msg}
}

// readErrorMessage extracts the PostgREST error message, falling back to the raw body
func readErrorMessage(r io.Reader) string {
	body, _ := io.ReadAll(io.LimitReader(r, 4096))
	var pgErr struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details string `json:"details"`
		Hint    string `json:"hint"`
	}
	if err := json.Unmarshal(body, &pgErr); err == nil && pgErr.Message != "" {
		msg := pgErr.Message
		if pgErr.Code != "" {
			msg = pgErr.Code + ": " + msg
		}
		if pgErr.Details != "" {
			msg += " (" + pgErr.Details + ")"
		}
		return msg
	}
	return strings.TrimSpace(string(body))
}

// parseContentRangeTotal reads the total from "0-24/3573" or "*/0"
func parseContentRangeTotal(value string) (int64, bool) {
	i := strings.LastIndexByte(value, '/')
	if i < 0 {
		return 0, false
	}
	total := value[i+1:]
	if total == "*" {
		return 0, false
	}
	n, err := strconv.ParseInt(total, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// restOrder converts "col desc" to PostgREST's "col.desc"
func restOrder(order string) string {
	parts := strings.Fields(order)
	if len(parts) == 0 {
		return ""
	}
	dir := "asc"
	if len(parts) > 1 && strings.EqualFold(parts[1], "desc") {
		dir = "desc"
	}
	return parts[0] + "." + dir
}

// parseRetryAfter parses the Retry-After header
// Supports both integer seconds and HTTP-date format
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	if t, err := http.ParseTime(value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
