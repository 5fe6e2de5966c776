// Package mirrortest provides an in-memory mirror destination for tests
package mirrortest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/erauner12/odoosync/internal/mirror"
	"github.com/erauner12/odoosync/internal/syncx"
)

// Memory is a mirror.Destination backed by maps. Safe for concurrent use.
type Memory struct {
	mu          sync.Mutex
	tables      map[string]map[string]syncx.MirrorRow
	upserts     map[string]int
	failUpserts map[string]map[int]string
	authFail    bool
}

var _ mirror.Destination = (*Memory)(nil)

// NewMemory creates an empty store
func NewMemory() *Memory {
	return &Memory{
		tables:      make(map[string]map[string]syncx.MirrorRow),
		upserts:     make(map[string]int),
		failUpserts: make(map[string]map[int]string),
	}
}

// FailUpsert makes the n-th (zero-based) upsert call against table fail with message
func (m *Memory) FailUpsert(table string, n int, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpserts[table] == nil {
		m.failUpserts[table] = make(map[int]string)
	}
	m.failUpserts[table][n] = message
}

// RejectCredentials makes every call return an AuthError
func (m *Memory) RejectCredentials() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authFail = true
}

// Upserts returns how many upsert calls table has received
func (m *Memory) Upserts(table string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upserts[table]
}

// Rows returns table's rows ordered by key
func (m *Memory) Rows(table string) []syncx.MirrorRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.tables[table]))
	for k := range m.tables[table] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]syncx.MirrorRow, 0, len(keys))
	for _, k := range keys {
		out = append(out, copyRow(m.tables[table][k]))
	}
	return out
}

func (m *Memory) Upsert(_ context.Context, table string, rows []syncx.MirrorRow, conflictKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.authFail {
		return mirror.AuthError{Status: 401, Message: "Invalid API key"}
	}

	call := m.upserts[table]
	m.upserts[table]++
	if msg, ok := m.failUpserts[table][call]; ok {
		return mirror.WriteError{Table: table, Status: 400, Message: msg}
	}

	t := m.tables[table]
	if t == nil {
		t = make(map[string]syncx.MirrorRow)
		m.tables[table] = t
	}
	for _, r := range rows {
		if !r.HasKey(conflictKey) {
			return mirror.WriteError{Table: table, Status: 400, Message: "null value in conflict column " + conflictKey}
		}
	}
	for _, r := range rows {
		t[fmt.Sprint(r[conflictKey])] = copyRow(r)
	}
	return nil
}

func (m *Memory) Count(_ context.Context, table string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.authFail {
		return 0, mirror.AuthError{Status: 401, Message: "Invalid API key"}
	}
	return int64(len(m.tables[table])), nil
}

// Select supports equality filters only. Without Order rows come back by conflict key.
func (m *Memory) Select(_ context.Context, q mirror.SelectQuery) ([]syncx.MirrorRow, error) {
	m.mu.Lock()
	authFail := m.authFail
	m.mu.Unlock()
	if authFail {
		return nil, mirror.AuthError{Status: 401, Message: "Invalid API key"}
	}

	rows := m.Rows(q.Table)
	out := rows[:0]
	for _, r := range rows {
		keep := true
		for _, f := range q.Filters {
			if f.Op != mirror.OpEq {
				return nil, fmt.Errorf("memory destination supports only %q filters", mirror.OpEq)
			}
			if fmt.Sprint(r[f.Column]) != fmt.Sprint(f.Value) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, r)
		}
	}
	if q.Order != "" {
		col, desc := strings.CutSuffix(q.Order, " desc")
		sort.SliceStable(out, func(i, j int) bool {
			if desc {
				return less(out[j][col], out[i][col])
			}
			return less(out[i][col], out[j][col])
		})
	}
	if q.Offset >= len(out) {
		return []syncx.MirrorRow{}, nil
	}
	out = out[q.Offset:]
	if q.Limit > 0 && q.Limit < len(out) {
		out = out[:q.Limit]
	}
	return out, nil
}

// less orders numbers numerically and everything else by its printed form
func less(a, b any) bool {
	fa, okA := syncx.AsFloat64(a)
	fb, okB := syncx.AsFloat64(b)
	if okA && okB {
		return fa < fb
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}

func copyRow(r syncx.MirrorRow) syncx.MirrorRow {
	c := make(syncx.MirrorRow, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}
