package syncservice

import (
	"errors"
	"fmt"
	"sort"

	"github.com/erauner12/odoosync/internal/odoo"
	"github.com/erauner12/odoosync/internal/syncx"
)

// DefaultConflictKey is the mirror column every built-in table is keyed on
const DefaultConflictKey = "aumet_id"

// ErrUnknownCollection indicates a collection name not present in the catalog
var ErrUnknownCollection = errors.New("unknown collection")

// keyColumn maps the ERP id onto the conflict key. KindRef keeps a missing id
// null so the row is dropped instead of written under key 0.
func keyColumn() syncx.Column {
	return syncx.Column{Name: DefaultConflictKey, Sources: []string{"id"}, Kind: syncx.KindRef}
}

func col(name string, kind syncx.Kind, sources ...string) syncx.Column {
	if len(sources) == 0 {
		sources = []string{name}
	}
	return syncx.Column{Name: name, Sources: sources, Kind: kind}
}

func amount(name string) syncx.Column {
	return syncx.Column{Name: name, Sources: []string{name}, Kind: syncx.KindFloat, NonNegative: true}
}

// Builtin returns the collections mirrored for the reporting dashboard
func Builtin() []Collection {
	return []Collection{
		{
			Name:      "orders",
			Model:     "pos.order",
			DateField: "date_order",
			ReadMode:  ReadPages,
			Table:     "aumet_sales_orders",
			Map: syncx.FieldMap{Columns: []syncx.Column{
				keyColumn(),
				col("name", syncx.KindString),
				col("date_order", syncx.KindString),
				col("partner_id", syncx.KindRef),
				amount("amount_total"),
				col("state", syncx.KindString),
			}},
		},
		{
			Name:     "customers",
			Model:    "res.partner",
			Domain:   odoo.Domain{{Field: "customer_rank", Operator: ">", Value: 0}},
			ReadMode: ReadIDs,
			Limit:    5000,
			Table:    "aumet_customers",
			Map: syncx.FieldMap{Columns: []syncx.Column{
				keyColumn(),
				col("name", syncx.KindString),
				col("email", syncx.KindString),
				col("phone", syncx.KindString, "phone", "mobile"),
			}},
		},
		{
			Name:     "suppliers",
			Model:    "res.partner",
			Domain:   odoo.Domain{{Field: "supplier_rank", Operator: ">", Value: 0}},
			ReadMode: ReadIDs,
			Limit:    5000,
			Table:    "aumet_suppliers",
			Map: syncx.FieldMap{Columns: []syncx.Column{
				keyColumn(),
				col("name", syncx.KindString),
				col("email", syncx.KindString),
				col("phone", syncx.KindString, "phone", "mobile"),
				col("city", syncx.KindString),
				col("country", syncx.KindRefLabel, "country_id"),
			}},
		},
		{
			Name:     "products",
			Model:    "product.product",
			Domain:   odoo.Domain{{Field: "active", Operator: "=", Value: true}},
			ReadMode: ReadIDs,
			Limit:    5000,
			Table:    "aumet_products",
			Map: syncx.FieldMap{Columns: []syncx.Column{
				keyColumn(),
				col("name", syncx.KindString),
				col("default_code", syncx.KindString),
				amount("list_price"),
			}},
		},
		{
			Name:     "inventory",
			Model:    "stock.quant",
			ReadMode: ReadIDs,
			Limit:    10000,
			Table:    "aumet_inventory",
			Map: syncx.FieldMap{
				Columns: []syncx.Column{
					keyColumn(),
					col("product_id", syncx.KindRef),
					col("product_name", syncx.KindRefLabel, "product_id"),
					col("location", syncx.KindRefLabel, "location_id"),
					col("quantity", syncx.KindFloat),
					col("reserved_quantity", syncx.KindFloat),
				},
				Derived: []syncx.Derived{
					{Name: "available_quantity", Fn: syncx.Difference("quantity", "reserved_quantity")},
				},
			},
		},
		{
			Name:      "purchases",
			Model:     "purchase.order",
			DateField: "date_order",
			ReadMode:  ReadPages,
			Table:     "aumet_purchase_orders",
			Map: syncx.FieldMap{Columns: []syncx.Column{
				keyColumn(),
				col("name", syncx.KindString),
				col("date_order", syncx.KindString),
				col("partner_id", syncx.KindRef),
				col("partner_name", syncx.KindRefLabel, "partner_id"),
				amount("amount_total"),
				col("state", syncx.KindString),
			}},
		},
		{
			Name:       "invoices",
			Model:      "account.move",
			Domain:     odoo.Domain{{Field: "move_type", Operator: "=", Value: "out_invoice"}},
			DateField:  "invoice_date",
			DateLayout: syncx.DateLayout,
			ReadMode:   ReadPages,
			Table:      "aumet_invoices",
			Map: syncx.FieldMap{Columns: []syncx.Column{
				keyColumn(),
				col("name", syncx.KindString),
				col("invoice_date", syncx.KindString),
				col("partner_id", syncx.KindRef),
				amount("amount_total"),
				col("state", syncx.KindString),
			}},
		},
	}
}

// Catalog is the set of collections known to a process, in declaration order
type Catalog struct {
	byName map[string]Collection
	order  []string
}

// NewCatalog validates and indexes collections after applying defaults
func NewCatalog(d Defaults, cols ...Collection) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]Collection, len(cols))}
	for _, col := range cols {
		if err := c.put(col.withDefaults(d)); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalog) put(col Collection) error {
	if err := col.Validate(); err != nil {
		return err
	}
	if _, exists := c.byName[col.Name]; !exists {
		c.order = append(c.order, col.Name)
	}
	c.byName[col.Name] = col
	return nil
}

// Get returns the named collection
func (c *Catalog) Get(name string) (Collection, error) {
	col, ok := c.byName[name]
	if !ok {
		return Collection{}, fmt.Errorf("%w: %q (known: %v)", ErrUnknownCollection, name, c.Names())
	}
	return col, nil
}

// Names lists collection names in declaration order
func (c *Catalog) Names() []string {
	return append([]string(nil), c.order...)
}

// All returns every collection in declaration order
func (c *Catalog) All() []Collection {
	out := make([]Collection, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.byName[name])
	}
	return out
}

// Select resolves names to collections. No names selects all of them.
// Duplicates are collapsed.
func (c *Catalog) Select(names []string) ([]Collection, error) {
	if len(names) == 0 {
		return c.All(), nil
	}
	seen := make(map[string]struct{}, len(names))
	out := make([]Collection, 0, len(names))
	var unknown []string
	for _, name := range names {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		col, ok := c.byName[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		out = append(out, col)
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("%w: %v (known: %v)", ErrUnknownCollection, unknown, c.Names())
	}
	return out, nil
}
