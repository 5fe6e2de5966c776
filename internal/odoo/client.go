package odoo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/erauner12/odoosync/internal/syncx"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// RPCPath is the fixed JSON-RPC endpoint on the ERP host
const RPCPath = "/jsonrpc"

// Session is an authenticated ERP identity. execute_kw is stateless on the
// server side, so every call carries the database, uid and password.
type Session struct {
	Database string
	UID      int64
	password string
}

// NewSession builds a session from an already known uid
func NewSession(database string, uid int64, password string) Session {
	return Session{Database: database, UID: uid, password: password}
}

// Client speaks JSON-RPC 2.0 to the ERP.
// It holds no session state; one client may serve many concurrent runs.
type Client struct {
	baseURL    string
	httpClient *http.Client
	nextID     atomic.Int64
}

// NewClient creates an ERP client. A nil httpClient uses a client with no timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Authenticate exchanges credentials for a uid via common.authenticate.
// Any failure is reported as AuthError; there is no retry.
func (c *Client) Authenticate(ctx context.Context, database, username, password string) (Session, error) {
	var raw json.RawMessage
	err := c.call(ctx, "common", "authenticate", []any{database, username, password, map[string]any{}}, &raw)
	if err != nil {
		return Session{}, AuthError{Database: database, Username: username, Err: err}
	}

	// The ERP answers false for bad credentials instead of an error payload
	var uid int64
	if err := json.Unmarshal(raw, &uid); err != nil || uid <= 0 {
		return Session{}, AuthError{Database: database, Username: username, Reason: "invalid credentials"}
	}

	log.Debug().Str("database", database).Int64("uid", uid).Msg("erp session established")
	return NewSession(database, uid, password), nil
}

// Version returns the server version info from common.version
func (c *Client) Version(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.call(ctx, "common", "version", []any{}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ExecuteKW invokes model.method through object.execute_kw and decodes the result into out
func (c *Client) ExecuteKW(ctx context.Context, s Session, model, method string, args []any, kwargs map[string]any, out any) error {
	if args == nil {
		args = []any{}
	}
	if kwargs == nil {
		kwargs = map[string]any{}
	}
	callArgs := []any{s.Database, s.UID, s.password, model, method, args, kwargs}

	err := c.call(ctx, "object", "execute_kw", callArgs, out)
	if err != nil {
		if re, ok := err.(RemoteError); ok {
			re.Model, re.Method = model, method
			return re
		}
		return err
	}
	return nil
}

// SearchRead returns up to limit records matching domain, starting at offset
func (c *Client) SearchRead(ctx context.Context, s Session, q Query, offset, limit int) ([]syncx.RemoteRecord, error) {
	kwargs := map[string]any{
		"fields": fieldsOrEmpty(q.Fields),
		"offset": offset,
		"limit":  limit,
	}
	if q.Order != "" {
		kwargs["order"] = q.Order
	}

	var recs []syncx.RemoteRecord
	if err := c.ExecuteKW(ctx, s, q.Model, "search_read", []any{q.Domain}, kwargs, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// Search returns record ids matching domain. limit <= 0 means no limit.
func (c *Client) Search(ctx context.Context, s Session, q Query, offset, limit int) ([]int64, error) {
	kwargs := map[string]any{"offset": offset}
	if limit > 0 {
		kwargs["limit"] = limit
	}
	if q.Order != "" {
		kwargs["order"] = q.Order
	}

	var ids []int64
	if err := c.ExecuteKW(ctx, s, q.Model, "search", []any{q.Domain}, kwargs, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// Read fetches the given ids restricted to q.Fields
func (c *Client) Read(ctx context.Context, s Session, q Query, ids []int64) ([]syncx.RemoteRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	kwargs := map[string]any{"fields": fieldsOrEmpty(q.Fields)}

	var recs []syncx.RemoteRecord
	if err := c.ExecuteKW(ctx, s, q.Model, "read", []any{ids}, kwargs, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// SearchCount returns how many records match the domain
func (c *Client) SearchCount(ctx context.Context, s Session, q Query) (int64, error) {
	var n int64
	if err := c.ExecuteKW(ctx, s, q.Model, "search_count", []any{q.Domain}, nil, &n); err != nil {
		return 0, err
	}
	return n, nil
}

// call posts one JSON-RPC request and decodes result into out.
// Every failure comes back as RemoteError.
func (c *Client) call(ctx context.Context, service, method string, args []any, out any) error {
	fail := func(code int, msg string, err error) error {
		return RemoteError{Service: service, Method: method, Code: code, Message: msg, Err: err}
	}

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  "call",
		Params:  rpcParams{Service: service, Method: method, Args: args},
	})
	if err != nil {
		return fail(0, "", fmt.Errorf("encode request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+RPCPath, bytes.NewReader(body))
	if err != nil {
		return fail(0, "", err)
	}
	correlationID := uuid.New().String()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Correlation-ID", correlationID)

	logger := log.With().
		Str("service", service).
		Str("method", method).
		Str("correlationId", correlationID).
		Logger()

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		logger.Error().Err(err).Dur("duration", duration).Msg("erp request failed")
		return fail(0, "", err)
	}
	defer resp.Body.Close()

	logger.Debug().Int("status", resp.StatusCode).Dur("duration", duration).Msg("erp request completed")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		msg := fmt.Sprintf("unexpected HTTP status %d", resp.StatusCode)
		if s := strings.TrimSpace(string(snippet)); s != "" {
			msg += ": " + s
		}
		return fail(resp.StatusCode, msg, nil)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fail(resp.StatusCode, "", fmt.Errorf("decode response: %w", err))
	}
	if rpcResp.Error != nil {
		return fail(rpcResp.Error.Code, rpcResp.Error.text(), nil)
	}
	if !rpcResp.hasResult() {
		return fail(0, "response has neither result nor error", nil)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return fail(0, "", fmt.Errorf("decode result: %w", err))
	}
	return nil
}

func fieldsOrEmpty(fields []string) []string {
	if fields == nil {
		return []string{}
	}
	return fields
}
