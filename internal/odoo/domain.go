package odoo

import "encoding/json"

// Condition is one field/operator/value triple of a search domain
type Condition struct {
	Field    string
	Operator string
	Value    any
}

// MarshalJSON encodes the triple in the ERP's list form: ["date_order", ">=", "2024-11-24"]
func (c Condition) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{c.Field, c.Operator, c.Value})
}

// Domain is a conjunction of conditions. The zero value matches every record.
type Domain []Condition

// MarshalJSON always emits a list, never null
func (d Domain) MarshalJSON() ([]byte, error) {
	if d == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Condition(d))
}

// And returns a new domain with extra conditions appended
func (d Domain) And(conds ...Condition) Domain {
	out := make(Domain, 0, len(d)+len(conds))
	out = append(out, d...)
	return append(out, conds...)
}

// Query names what to read from a collection
type Query struct {
	Model  string
	Domain Domain
	Fields []string
	Order  string // e.g. "id asc"; empty leaves ordering to the ERP
}
