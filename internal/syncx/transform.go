package syncx

import "fmt"

// Kind declares how a mirror column's value is normalized
type Kind string

const (
	KindAny      Kind = "any"
	KindString   Kind = "string"
	KindInt      Kind = "int"
	KindFloat    Kind = "float"
	KindBool     Kind = "bool"
	KindRef      Kind = "ref"       // id of an [id, label] pair
	KindRefLabel Kind = "ref_label" // label of an [id, label] pair
)

// Valid reports whether k is a known kind
func (k Kind) Valid() bool {
	switch k {
	case KindAny, KindString, KindInt, KindFloat, KindBool, KindRef, KindRefLabel:
		return true
	}
	return false
}

func (k Kind) numeric() bool {
	return k == KindInt || k == KindFloat
}

// Column maps one destination column to the source field(s) that supply it.
// The first source holding a set value wins.
type Column struct {
	Name        string
	Sources     []string
	Kind        Kind
	NonNegative bool
	Default     any // used when every source is absent (non-numeric columns)
}

// Derived computes a column from the already transformed row
type Derived struct {
	Name string
	Fn   func(MirrorRow) any
}

// FieldMap is the per-collection transform description
type FieldMap struct {
	Columns []Column
	Derived []Derived
}

// SourceFields returns the distinct ERP fields the map reads, in declaration order
func (m FieldMap) SourceFields() []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(m.Columns))
	for _, c := range m.Columns {
		for _, s := range c.Sources {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// Validate checks the map for empty names, unknown kinds and duplicate columns
func (m FieldMap) Validate() error {
	if len(m.Columns) == 0 {
		return fmt.Errorf("field map has no columns")
	}
	names := make(map[string]struct{}, len(m.Columns)+len(m.Derived))
	for _, c := range m.Columns {
		if c.Name == "" {
			return fmt.Errorf("column with empty name")
		}
		if len(c.Sources) == 0 {
			return fmt.Errorf("column %q has no source fields", c.Name)
		}
		if !c.Kind.Valid() {
			return fmt.Errorf("column %q has unknown kind %q", c.Name, c.Kind)
		}
		if _, dup := names[c.Name]; dup {
			return fmt.Errorf("duplicate column %q", c.Name)
		}
		names[c.Name] = struct{}{}
	}
	for _, d := range m.Derived {
		if d.Name == "" || d.Fn == nil {
			return fmt.Errorf("derived column needs a name and a function")
		}
		if _, dup := names[d.Name]; dup {
			return fmt.Errorf("duplicate column %q", d.Name)
		}
		names[d.Name] = struct{}{}
	}
	return nil
}

// Transform shapes a RemoteRecord into a MirrorRow.
// It never fails: malformed or missing input degrades to nil or zero.
func Transform(rec RemoteRecord, m FieldMap) MirrorRow {
	row := make(MirrorRow, len(m.Columns)+len(m.Derived))
	for _, c := range m.Columns {
		row[c.Name] = transformColumn(rec, c)
	}
	for _, d := range m.Derived {
		row[d.Name] = d.Fn(row)
	}
	return row
}

func transformColumn(rec RemoteRecord, c Column) any {
	raw, present := pickSource(rec, c)
	if !present {
		switch c.Kind {
		case KindInt:
			return int64(0)
		case KindFloat:
			return float64(0)
		}
		return c.Default
	}

	// Booleans are the one place where false is a value and not the unset sentinel
	if c.Kind == KindBool {
		b, ok := raw.(bool)
		if !ok {
			return nil
		}
		return b
	}
	if IsUnset(raw) {
		return nil
	}

	if id, label, ok := RefPair(raw); ok {
		if c.Kind == KindRefLabel {
			if label == "" {
				return nil
			}
			return label
		}
		raw = id
	}

	switch c.Kind {
	case KindInt, KindRef:
		n, ok := AsInt64(raw)
		if !ok {
			return nil
		}
		if c.NonNegative && n < 0 {
			return nil
		}
		return n
	case KindFloat:
		f, ok := AsFloat64(raw)
		if !ok {
			return nil
		}
		if c.NonNegative && f < 0 {
			return nil
		}
		return f
	case KindString:
		s, ok := raw.(string)
		if !ok {
			return nil
		}
		return s
	case KindRefLabel:
		// bare id with no label to extract
		return nil
	}

	if !isScalar(raw) {
		return nil
	}
	if c.NonNegative {
		if f, ok := AsFloat64(raw); ok && f < 0 {
			return nil
		}
	}
	return raw
}

// pickSource returns the first set value among the column's sources.
// present is false only when no source field exists on the record at all.
func pickSource(rec RemoteRecord, c Column) (any, bool) {
	var (
		first   any
		present bool
	)
	for _, s := range c.Sources {
		v, ok := rec[s]
		if !ok {
			continue
		}
		if !present {
			first, present = v, true
		}
		if c.Kind == KindBool {
			if _, isBool := v.(bool); isBool {
				return v, true
			}
			continue
		}
		if !IsUnset(v) {
			return v, true
		}
	}
	return first, present
}

// Difference returns a derived-column function computing a - b over numeric columns.
// A nil operand counts as zero; a row where both are nil yields nil.
func Difference(a, b string) func(MirrorRow) any {
	return func(row MirrorRow) any {
		av, aok := AsFloat64(row[a])
		bv, bok := AsFloat64(row[b])
		if !aok && !bok {
			return nil
		}
		return av - bv
	}
}
