package syncservice

import (
	"fmt"

	"github.com/erauner12/odoosync/internal/odoo"
	"github.com/erauner12/odoosync/internal/syncx"
)

// ReadMode selects how a collection is read from the ERP
type ReadMode string

const (
	// ReadPages issues sequential search_read pages
	ReadPages ReadMode = "pages"
	// ReadIDs searches for ids, then reads them in batches
	ReadIDs ReadMode = "ids"
)

// DefaultOrder keeps offset pagination stable between pages
const DefaultOrder = "id asc"

// Collection declares one ERP model to mirror and how to shape its rows
type Collection struct {
	Name        string
	Model       string
	Domain      odoo.Domain
	DateField   string // optional; the date window applies to this field
	DateLayout  string // layout of DateField values; defaults to syncx.ERPDateTime
	Order       string
	ReadMode    ReadMode
	PageSize    int // records per search_read page, or ids per read batch
	MaxPages    int // pages mode: page cap, <= 0 unbounded
	Limit       int // ids mode: cap on searched ids, <= 0 unbounded
	Table       string
	ConflictKey string
	BatchSize   int // rows per upsert request
	Map         syncx.FieldMap
}

// Validate checks that the collection can be synced
func (c Collection) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("collection has no name")
	}
	if c.Model == "" {
		return fmt.Errorf("collection %s: model is required", c.Name)
	}
	if c.Table == "" {
		return fmt.Errorf("collection %s: table is required", c.Name)
	}
	if c.ConflictKey == "" {
		return fmt.Errorf("collection %s: conflict key is required", c.Name)
	}
	switch c.ReadMode {
	case ReadPages, ReadIDs:
	default:
		return fmt.Errorf("collection %s: unknown read mode %q", c.Name, c.ReadMode)
	}
	if err := c.Map.Validate(); err != nil {
		return fmt.Errorf("collection %s: %w", c.Name, err)
	}

	hasKey := false
	for _, col := range c.Map.Columns {
		if col.Name == c.ConflictKey {
			hasKey = true
			break
		}
	}
	if !hasKey {
		return fmt.Errorf("collection %s: conflict key %q is not a mapped column", c.Name, c.ConflictKey)
	}
	return nil
}

// Fields returns the ERP fields to request
func (c Collection) Fields() []string {
	return c.Map.SourceFields()
}

// Query builds the ERP query, narrowing the domain by the date window when
// the collection declares a date field
func (c Collection) Query(w syncx.Window) odoo.Query {
	domain := c.Domain.And()
	if c.DateField != "" {
		layout := c.DateLayout
		if layout == "" {
			layout = syncx.ERPDateTime
		}
		if !w.Since.IsZero() {
			domain = domain.And(odoo.Condition{Field: c.DateField, Operator: ">=", Value: w.Since.UTC().Format(layout)})
		}
		if !w.Until.IsZero() {
			domain = domain.And(odoo.Condition{Field: c.DateField, Operator: "<", Value: w.Until.UTC().Format(layout)})
		}
	}

	order := c.Order
	if order == "" {
		order = DefaultOrder
	}
	return odoo.Query{
		Model:  c.Model,
		Domain: domain,
		Fields: c.Fields(),
		Order:  order,
	}
}

// withDefaults fills unset sizes from configuration
func (c Collection) withDefaults(d Defaults) Collection {
	if c.PageSize <= 0 {
		c.PageSize = d.PageSize
	}
	if c.MaxPages == 0 {
		c.MaxPages = d.MaxPages
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.ReadMode == "" {
		c.ReadMode = ReadPages
	}
	if c.ConflictKey == "" {
		c.ConflictKey = DefaultConflictKey
	}
	return c
}

// Defaults are the configuration-wide sizes applied to collections that do not set their own
type Defaults struct {
	PageSize  int
	MaxPages  int
	BatchSize int
}
