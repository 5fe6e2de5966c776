package syncx

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// RemoteRecord is one row of an ERP collection as decoded from JSON-RPC.
// Relationship fields arrive either as a bare id or as an [id, label] pair.
type RemoteRecord map[string]any

// ID returns the ERP-assigned integer id of the record
func (r RemoteRecord) ID() (int64, bool) {
	return AsInt64(r["id"])
}

// MirrorRow is the flat, destination-shaped record written to the mirror store.
// Values are scalars (string, int64, float64, bool) or nil.
type MirrorRow map[string]any

// HasKey reports whether the row carries a non-null value for the conflict key
func (m MirrorRow) HasKey(key string) bool {
	v, ok := m[key]
	return ok && v != nil
}

// IsUnset reports whether v is the ERP "unset" sentinel.
// The ERP encodes empty many2one, char and date fields as JSON false.
func IsUnset(v any) bool {
	if v == nil {
		return true
	}
	b, ok := v.(bool)
	return ok && !b
}

// RefPair extracts a many2one [id, label] pair.
// Returns ok=false if v is not shaped like a pair.
func RefPair(v any) (int64, string, bool) {
	arr, ok := v.([]any)
	if !ok || len(arr) != 2 {
		return 0, "", false
	}
	id, ok := AsInt64(arr[0])
	if !ok {
		return 0, "", false
	}
	// [7, 9] is a two-id many2many list, not a pair
	var label string
	switch l := arr[1].(type) {
	case string:
		label = l
	case bool:
		if l {
			return 0, "", false
		}
	default:
		return 0, "", false
	}
	return id, label, true
}

// AsInt64 converts JSON-decoded numbers (and numeric strings) to int64.
// Fractional and out-of-range floats are rejected rather than truncated.
func AsInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) || n != math.Trunc(n) {
			return 0, false
		}
		if n < math.MinInt64 || n >= math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	}
	return 0, false
}

// AsFloat64 converts JSON-decoded numbers (and numeric strings) to float64
func AsFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// isScalar reports whether v can be stored in a single mirror column
func isScalar(v any) bool {
	switch v.(type) {
	case nil, string, bool, float64, float32, int, int32, int64, json.Number:
		return true
	}
	return false
}
