package syncservice

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/erauner12/odoosync/internal/odoo"
	"github.com/erauner12/odoosync/internal/syncx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinCatalog(t *testing.T) {
	cat, err := NewCatalog(Defaults{PageSize: 200, BatchSize: 500}, Builtin()...)
	require.NoError(t, err)

	assert.Equal(t, []string{"orders", "customers", "suppliers", "products", "inventory", "purchases", "invoices"}, cat.Names())
	for _, c := range cat.All() {
		assert.Equal(t, DefaultConflictKey, c.ConflictKey, c.Name)
		assert.Equal(t, 500, c.BatchSize, c.Name)
		assert.Equal(t, 200, c.PageSize, c.Name)
		assert.Contains(t, c.Fields(), "id", c.Name)
	}

	inv, err := cat.Get("inventory")
	require.NoError(t, err)
	assert.Equal(t, ReadIDs, inv.ReadMode)
	assert.Equal(t, 10000, inv.Limit)
}

func TestCatalogSelect(t *testing.T) {
	cat, err := NewCatalog(Defaults{}, Builtin()...)
	require.NoError(t, err)

	all, err := cat.Select(nil)
	require.NoError(t, err)
	assert.Len(t, all, 7)

	cols, err := cat.Select([]string{"products", "orders", "products"})
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, "products", cols[0].Name)
	assert.Equal(t, "orders", cols[1].Name)

	_, err = cat.Select([]string{"orders", "refunds", "leads"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownCollection))
	assert.Contains(t, err.Error(), "[leads refunds]")

	_, err = cat.Get("refunds")
	assert.True(t, errors.Is(err, ErrUnknownCollection))
}

func TestNewCatalog_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		col  Collection
	}{
		{"no model", Collection{Name: "x", Table: "t", Map: syncx.FieldMap{Columns: []syncx.Column{keyColumn()}}}},
		{"no table", Collection{Name: "x", Model: "m", Map: syncx.FieldMap{Columns: []syncx.Column{keyColumn()}}}},
		{"key not mapped", Collection{Name: "x", Model: "m", Table: "t", Map: syncx.FieldMap{Columns: []syncx.Column{col("name", syncx.KindString)}}}},
		{"bad read mode", Collection{Name: "x", Model: "m", Table: "t", ReadMode: "stream", Map: syncx.FieldMap{Columns: []syncx.Column{keyColumn()}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCatalog(Defaults{}, tt.col)
			assert.Error(t, err)
		})
	}
}

func TestCollectionQuery(t *testing.T) {
	cat, err := NewCatalog(Defaults{}, Builtin()...)
	require.NoError(t, err)
	w, err := syncx.DateWindow("2024-11-24", "2024-11-30")
	require.NoError(t, err)

	orders, _ := cat.Get("orders")
	q := orders.Query(w)
	assert.Equal(t, "pos.order", q.Model)
	assert.Equal(t, DefaultOrder, q.Order)
	assert.Equal(t, odoo.Domain{
		{Field: "date_order", Operator: ">=", Value: "2024-11-24 00:00:00"},
		{Field: "date_order", Operator: "<", Value: "2024-12-01 00:00:00"},
	}, q.Domain)

	invoices, _ := cat.Get("invoices")
	q = invoices.Query(w)
	assert.Equal(t, odoo.Domain{
		{Field: "move_type", Operator: "=", Value: "out_invoice"},
		{Field: "invoice_date", Operator: ">=", Value: "2024-11-24"},
		{Field: "invoice_date", Operator: "<", Value: "2024-12-01"},
	}, q.Domain)
	assert.Len(t, invoices.Domain, 1, "window must not mutate the catalog domain")

	products, _ := cat.Get("products")
	q = products.Query(syncx.LookbackWindow(time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), 7))
	assert.Equal(t, products.Domain, q.Domain, "collections without a date field ignore the window")
}

func writeCatalogFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadCatalogFile(t *testing.T) {
	base, err := NewCatalog(Defaults{PageSize: 100, BatchSize: 500}, Builtin()...)
	require.NoError(t, err)

	path := writeCatalogFile(t, `
collections:
  - name: orders
    table: pos_orders_v2
    max_pages: 3
  - name: refunds
    model: account.move
    domain:
      - [move_type, "=", out_refund]
    date_field: invoice_date
    date_layout: "2006-01-02"
    table: aumet_refunds
    conflict_key: aumet_id
    columns:
      - name: aumet_id
        sources: [id]
        kind: ref
      - name: amount_total
        kind: float
        non_negative: true
      - name: residual
        kind: float
      - name: partner
        sources: [partner_id]
        kind: ref_label
    derived:
      - name: paid
        difference: [amount_total, residual]
`)
	cat, err := LoadCatalogFile(path, base, Defaults{PageSize: 100, BatchSize: 500})
	require.NoError(t, err)

	assert.Equal(t, append(base.Names(), "refunds"), cat.Names())

	orders, err := cat.Get("orders")
	require.NoError(t, err)
	assert.Equal(t, "pos_orders_v2", orders.Table)
	assert.Equal(t, 3, orders.MaxPages)
	assert.Equal(t, "pos.order", orders.Model, "unset fields keep built-in values")

	baseOrders, _ := base.Get("orders")
	assert.Equal(t, "aumet_sales_orders", baseOrders.Table, "base catalog is not modified")

	refunds, err := cat.Get("refunds")
	require.NoError(t, err)
	assert.Equal(t, ReadPages, refunds.ReadMode)
	assert.Equal(t, 100, refunds.PageSize)
	assert.Equal(t, odoo.Domain{{Field: "move_type", Operator: "=", Value: "out_refund"}}, refunds.Domain)
	assert.Equal(t, []string{"id", "amount_total", "residual", "partner_id"}, refunds.Fields())

	row := syncx.Transform(syncx.RemoteRecord{
		"id": float64(4), "amount_total": 100.0, "residual": 40.0, "partner_id": []any{float64(2), "Acme"},
	}, refunds.Map)
	assert.Equal(t, syncx.MirrorRow{
		"aumet_id": int64(4), "amount_total": 100.0, "residual": 40.0, "partner": "Acme", "paid": 60.0,
	}, row)
}

func TestLoadCatalogFile_Errors(t *testing.T) {
	base, err := NewCatalog(Defaults{}, Builtin()...)
	require.NoError(t, err)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing name", "collections:\n  - model: x\n", "has no name"},
		{"bad domain", "collections:\n  - name: orders\n    domain:\n      - [state, paid]\n", "domain term 0"},
		{"bad derived", "collections:\n  - name: inventory\n    derived:\n      - name: x\n        difference: [quantity]\n", "exactly two columns"},
		{"incomplete new collection", "collections:\n  - name: leads\n    model: crm.lead\n", "table is required"},
		{"unknown kind", "collections:\n  - name: orders\n    columns:\n      - name: aumet_id\n        sources: [id]\n        kind: money\n", "unknown kind"},
		{"not yaml", "collections: [", "parse catalog file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCatalogFile(writeCatalogFile(t, tt.body), base, Defaults{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err = LoadCatalogFile(filepath.Join(t.TempDir(), "missing.yaml"), base, Defaults{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}
