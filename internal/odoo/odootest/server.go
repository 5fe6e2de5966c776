// Package odootest provides an in-process fake of the ERP JSON-RPC endpoint for tests.
package odootest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
)

// Credentials accepted by a new server
const (
	Database = "pharmacy"
	Username = "sync@example.com"
	Password = "secret"
	UID      = int64(7)
)

// Server is a fake ERP. Records are kept per model, ordered by id.
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	models     map[string][]map[string]any
	calls      map[string]int
	failures   map[string]failure
	httpStatus int
	version    map[string]any
}

type failure struct {
	after   int
	message string
}

// NewServer starts a fake ERP and registers its shutdown with the caller's cleanup
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		models:   make(map[string][]map[string]any),
		calls:    make(map[string]int),
		failures: make(map[string]failure),
		version:  map[string]any{"server_version": "17.0", "server_serie": "17.0", "protocol_version": 1},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// AddRecords appends records to a model. Each record must carry an integer "id".
func (s *Server) AddRecords(model string, recs ...map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.models[model] = append(s.models[model], recs...)
	sort.SliceStable(s.models[model], func(i, j int) bool {
		return toFloat(s.models[model][i]["id"]) < toFloat(s.models[model][j]["id"])
	})
}

// Seed fills model with n records with ids 1..n built by fn
func (s *Server) Seed(model string, n int, fn func(id int) map[string]any) {
	recs := make([]map[string]any, 0, n)
	for i := 1; i <= n; i++ {
		rec := fn(i)
		rec["id"] = i
		recs = append(recs, rec)
	}
	s.AddRecords(model, recs...)
}

// FailAfter makes model.method return an RPC error once it has succeeded `after` times
func (s *Server) FailAfter(model, method string, after int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[model+"."+method] = failure{after: after, message: message}
}

// FailHTTP makes every request answer with the given status. Zero restores normal behavior.
func (s *Server) FailHTTP(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.httpStatus = status
}

// Calls returns how many times key was invoked. Keys are "common.authenticate",
// "common.version" or "<model>.<method>".
func (s *Server) Calls(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[key]
}

type request struct {
	ID     json.RawMessage `json:"id"`
	Params struct {
		Service string `json:"service"`
		Method  string `json:"method"`
		Args    []any  `json:"args"`
	} `json:"params"`
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.URL.Path != "/jsonrpc" || r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if s.httpStatus != 0 {
		http.Error(w, "upstream unavailable", s.httpStatus)
		return
	}

	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	result, rpcErr := s.dispatch(req.Params.Service, req.Params.Method, req.Params.Args)

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if rpcErr != "" {
		resp["error"] = map[string]any{
			"code":    200,
			"message": "Odoo Server Error",
			"data":    map[string]any{"name": "odoo.exceptions.UserError", "message": rpcErr},
		}
	} else {
		resp["result"] = result
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) dispatch(service, method string, args []any) (any, string) {
	switch service + "." + method {
	case "common.version":
		s.calls["common.version"]++
		return s.version, ""
	case "common.authenticate":
		s.calls["common.authenticate"]++
		if len(args) < 3 {
			return nil, "authenticate expects db, login, password"
		}
		if args[0] != Database || args[1] != Username || args[2] != Password {
			return false, ""
		}
		return UID, ""
	case "object.execute_kw":
		return s.executeKW(args)
	}
	return nil, fmt.Sprintf("unknown service method %s.%s", service, method)
}

func (s *Server) executeKW(args []any) (any, string) {
	if len(args) < 6 {
		return nil, "execute_kw expects at least 6 arguments"
	}
	if args[0] != Database || toFloat(args[1]) != float64(UID) || args[2] != Password {
		return nil, "Access Denied"
	}
	model, _ := args[3].(string)
	method, _ := args[4].(string)
	callArgs, _ := args[5].([]any)
	kwargs := map[string]any{}
	if len(args) > 6 {
		if kw, ok := args[6].(map[string]any); ok {
			kwargs = kw
		}
	}

	key := model + "." + method
	if f, ok := s.failures[key]; ok && s.calls[key] >= f.after {
		s.calls[key]++
		return nil, f.message
	}
	s.calls[key]++

	recs, known := s.models[model]
	if !known {
		return nil, fmt.Sprintf("Object %s doesn't exist", model)
	}

	switch method {
	case "search_read", "search", "search_count":
		var domain []any
		if len(callArgs) > 0 {
			domain, _ = callArgs[0].([]any)
		}
		matched := filter(recs, domain)
		if method == "search_count" {
			return len(matched), ""
		}
		matched = window(matched, kwargs)
		if method == "search" {
			ids := make([]any, 0, len(matched))
			for _, r := range matched {
				ids = append(ids, r["id"])
			}
			return ids, ""
		}
		return project(matched, kwargs["fields"]), ""
	case "read":
		var ids []any
		if len(callArgs) > 0 {
			ids, _ = callArgs[0].([]any)
		}
		want := make(map[float64]struct{}, len(ids))
		for _, id := range ids {
			want[toFloat(id)] = struct{}{}
		}
		var out []map[string]any
		for _, r := range recs {
			if _, ok := want[toFloat(r["id"])]; ok {
				out = append(out, r)
			}
		}
		return project(out, kwargs["fields"]), ""
	}
	return nil, fmt.Sprintf("method %s not supported", method)
}

func filter(recs []map[string]any, domain []any) []map[string]any {
	out := make([]map[string]any, 0, len(recs))
	for _, r := range recs {
		if matches(r, domain) {
			out = append(out, r)
		}
	}
	return out
}

func matches(rec map[string]any, domain []any) bool {
	for _, term := range domain {
		triple, ok := term.([]any)
		if !ok || len(triple) != 3 {
			continue
		}
		field, _ := triple[0].(string)
		op, _ := triple[1].(string)
		if !compare(rec[field], op, triple[2]) {
			return false
		}
	}
	return true
}

func compare(got any, op string, want any) bool {
	var c int
	gs, gStr := got.(string)
	ws, wStr := want.(string)
	switch {
	case gStr && wStr:
		c = strings.Compare(gs, ws)
	case isNumber(got) && isNumber(want):
		gf, wf := toFloat(got), toFloat(want)
		switch {
		case gf < wf:
			c = -1
		case gf > wf:
			c = 1
		}
	default:
		eq := fmt.Sprint(got) == fmt.Sprint(want)
		switch op {
		case "=":
			return eq
		case "!=":
			return !eq
		}
		return false
	}

	switch op {
	case "=":
		return c == 0
	case "!=":
		return c != 0
	case ">":
		return c > 0
	case ">=":
		return c >= 0
	case "<":
		return c < 0
	case "<=":
		return c <= 0
	}
	return false
}

func window(recs []map[string]any, kwargs map[string]any) []map[string]any {
	offset := int(toFloat(kwargs["offset"]))
	limit := int(toFloat(kwargs["limit"]))
	if offset >= len(recs) {
		return []map[string]any{}
	}
	recs = recs[offset:]
	if limit > 0 && limit < len(recs) {
		recs = recs[:limit]
	}
	return recs
}

func project(recs []map[string]any, fields any) []map[string]any {
	list, _ := fields.([]any)
	out := make([]map[string]any, 0, len(recs))
	for _, r := range recs {
		if len(list) == 0 {
			out = append(out, r)
			continue
		}
		row := map[string]any{"id": r["id"]}
		for _, f := range list {
			name, _ := f.(string)
			// The ERP reports fields it knows about; unknown ones are simply absent here
			if v, ok := r[name]; ok {
				row[name] = v
			}
		}
		out = append(out, row)
	}
	return out
}

func isNumber(v any) bool {
	switch v.(type) {
	case float64, int, int64:
		return true
	}
	return false
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}
