package odoo

import "encoding/json"

// rpcRequest is the JSON-RPC 2.0 envelope posted to /jsonrpc
type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      int64     `json:"id"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
}

// rpcParams addresses a service method: common.authenticate, object.execute_kw, ...
type rpcParams struct {
	Service string `json:"service"`
	Method  string `json:"method"`
	Args    []any  `json:"args"`
}

// rpcResponse carries either a result or an error object
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError is the ERP error payload. data.message holds the server-side exception text.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Name    string `json:"name,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"data"`
}

// text returns the most specific message in the payload
func (e *rpcError) text() string {
	if e.Data.Message != "" && e.Data.Message != e.Message {
		return e.Message + ": " + e.Data.Message
	}
	return e.Message
}

// hasResult reports whether a result member was present (JSON null included)
func (r *rpcResponse) hasResult() bool {
	return len(r.Result) > 0
}
