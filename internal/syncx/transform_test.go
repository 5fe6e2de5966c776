package syncx

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func productMap() FieldMap {
	return FieldMap{
		Columns: []Column{
			{Name: "aumet_id", Sources: []string{"id"}, Kind: KindInt},
			{Name: "name", Sources: []string{"name"}, Kind: KindString, Default: "Unknown"},
			{Name: "default_code", Sources: []string{"default_code"}, Kind: KindString},
			{Name: "list_price", Sources: []string{"list_price"}, Kind: KindFloat, NonNegative: true},
			{Name: "standard_price", Sources: []string{"standard_price"}, Kind: KindFloat, NonNegative: true},
			{Name: "categ_id", Sources: []string{"categ_id"}, Kind: KindRef},
			{Name: "categ_name", Sources: []string{"categ_id"}, Kind: KindRefLabel},
			{Name: "active", Sources: []string{"active"}, Kind: KindBool},
		},
	}
}

func TestTransform(t *testing.T) {
	tests := []struct {
		name string
		rec  RemoteRecord
		m    FieldMap
		want MirrorRow
	}{
		{
			name: "complete product",
			rec: RemoteRecord{
				"id":             float64(42),
				"name":           "Paracetamol 500mg",
				"default_code":   "PARA-500",
				"list_price":     12.5,
				"standard_price": 8.0,
				"categ_id":       []any{float64(7), "Analgesics"},
				"active":         true,
			},
			m: productMap(),
			want: MirrorRow{
				"aumet_id":       int64(42),
				"name":           "Paracetamol 500mg",
				"default_code":   "PARA-500",
				"list_price":     12.5,
				"standard_price": 8.0,
				"categ_id":       int64(7),
				"categ_name":     "Analgesics",
				"active":         true,
			},
		},
		{
			name: "negative price coerced to null",
			rec: RemoteRecord{
				"id":         float64(1),
				"name":       "Returned item",
				"list_price": float64(-5),
			},
			m: productMap(),
			want: MirrorRow{
				"aumet_id":       int64(1),
				"name":           "Returned item",
				"default_code":   nil,
				"list_price":     nil,
				"standard_price": float64(0),
				"categ_id":       nil,
				"categ_name":     nil,
				"active":         nil,
			},
		},
		{
			name: "unset sentinel becomes null everywhere except booleans",
			rec: RemoteRecord{
				"id":             float64(3),
				"name":           false,
				"default_code":   false,
				"list_price":     false,
				"standard_price": false,
				"categ_id":       false,
				"active":         false,
			},
			m: productMap(),
			want: MirrorRow{
				"aumet_id":       int64(3),
				"name":           nil,
				"default_code":   nil,
				"list_price":     nil,
				"standard_price": nil,
				"categ_id":       nil,
				"categ_name":     nil,
				"active":         false,
			},
		},
		{
			name: "absent fields take zero or default",
			rec:  RemoteRecord{"id": float64(9)},
			m:    productMap(),
			want: MirrorRow{
				"aumet_id":       int64(9),
				"name":           "Unknown",
				"default_code":   nil,
				"list_price":     float64(0),
				"standard_price": float64(0),
				"categ_id":       nil,
				"categ_name":     nil,
				"active":         nil,
			},
		},
		{
			name: "malformed values degrade to null",
			rec: RemoteRecord{
				"id":             "not-a-number",
				"name":           map[string]any{"en_US": "x"},
				"default_code":   float64(17),
				"list_price":     "abc",
				"standard_price": "3.25",
				"categ_id":       []any{"x", "y", "z"},
				"active":         "yes",
			},
			m: productMap(),
			want: MirrorRow{
				"aumet_id":       nil,
				"name":           nil,
				"default_code":   nil,
				"list_price":     nil,
				"standard_price": 3.25,
				"categ_id":       nil,
				"categ_name":     nil,
				"active":         nil,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Transform(tt.rec, tt.m)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Transform() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTransform_NullSentinelForAllFields(t *testing.T) {
	m := FieldMap{Columns: []Column{
		{Name: "a", Sources: []string{"a"}, Kind: KindAny},
		{Name: "b", Sources: []string{"b"}, Kind: KindString},
		{Name: "c", Sources: []string{"c"}, Kind: KindInt},
		{Name: "d", Sources: []string{"d"}, Kind: KindFloat},
		{Name: "e", Sources: []string{"e"}, Kind: KindRef},
		{Name: "f", Sources: []string{"f"}, Kind: KindRefLabel},
	}}
	rec := RemoteRecord{"a": false, "b": false, "c": false, "d": false, "e": false, "f": false}

	row := Transform(rec, m)
	for _, c := range m.Columns {
		assert.Nil(t, row[c.Name], "column %s", c.Name)
	}
}

func TestTransform_ReferenceFlattening(t *testing.T) {
	m := FieldMap{Columns: []Column{
		{Name: "partner_id", Sources: []string{"partner_id"}, Kind: KindRef},
		{Name: "session_id", Sources: []string{"session_id"}, Kind: KindAny},
		{Name: "location_id", Sources: []string{"location_id"}, Kind: KindInt},
	}}
	rec := RemoteRecord{
		"partner_id":  []any{float64(1001), "Al Noor Pharmacy"},
		"session_id":  []any{float64(55), "POS/0055"},
		"location_id": float64(8),
	}

	row := Transform(rec, m)
	assert.Equal(t, int64(1001), row["partner_id"])
	assert.Equal(t, int64(55), row["session_id"])
	assert.Equal(t, int64(8), row["location_id"], "bare ids pass through")
}

func TestTransform_TwoIDListIsNotAPair(t *testing.T) {
	m := FieldMap{Columns: []Column{
		{Name: "tag", Sources: []string{"tag_ids"}, Kind: KindAny},
		{Name: "tag_ref", Sources: []string{"tag_ids"}, Kind: KindRef},
		{Name: "warehouse_id", Sources: []string{"warehouse_id"}, Kind: KindRef},
		{Name: "warehouse_name", Sources: []string{"warehouse_id"}, Kind: KindRefLabel},
	}}
	rec := RemoteRecord{
		"tag_ids":      []any{float64(7), float64(9)},
		"warehouse_id": []any{float64(3), false},
	}

	row := Transform(rec, m)
	assert.Nil(t, row["tag"])
	assert.Nil(t, row["tag_ref"])
	assert.Equal(t, int64(3), row["warehouse_id"], "pair with an unset label keeps its id")
	assert.Nil(t, row["warehouse_name"])
}

func TestRefPair(t *testing.T) {
	tests := []struct {
		name  string
		in    any
		id    int64
		label string
		ok    bool
	}{
		{"pair", []any{float64(7), "Analgesics"}, 7, "Analgesics", true},
		{"unset label", []any{float64(7), false}, 7, "", true},
		{"two ids", []any{float64(7), float64(9)}, 0, "", false},
		{"true label", []any{float64(7), true}, 0, "", false},
		{"three items", []any{float64(7), "a", "b"}, 0, "", false},
		{"bare id", float64(7), 0, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, label, ok := RefPair(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.id, id)
			assert.Equal(t, tt.label, label)
		})
	}
}

func TestTransform_MultipleSources(t *testing.T) {
	m := FieldMap{Columns: []Column{
		{Name: "phone", Sources: []string{"phone", "mobile"}, Kind: KindString},
	}}

	tests := []struct {
		name string
		rec  RemoteRecord
		want any
	}{
		{"first source wins", RemoteRecord{"phone": "011", "mobile": "055"}, "011"},
		{"falls back when first unset", RemoteRecord{"phone": false, "mobile": "055"}, "055"},
		{"falls back when first absent", RemoteRecord{"mobile": "055"}, "055"},
		{"all unset", RemoteRecord{"phone": false, "mobile": false}, nil},
		{"all absent", RemoteRecord{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Transform(tt.rec, m)["phone"])
		})
	}
}

func TestTransform_Derived(t *testing.T) {
	m := FieldMap{
		Columns: []Column{
			{Name: "quantity", Sources: []string{"quantity"}, Kind: KindFloat},
			{Name: "reserved_quantity", Sources: []string{"reserved_quantity"}, Kind: KindFloat},
		},
		Derived: []Derived{
			{Name: "available_quantity", Fn: Difference("quantity", "reserved_quantity")},
		},
	}

	row := Transform(RemoteRecord{"quantity": 10.0, "reserved_quantity": 4.0}, m)
	assert.Equal(t, 6.0, row["available_quantity"])

	row = Transform(RemoteRecord{"quantity": false, "reserved_quantity": false}, m)
	assert.Nil(t, row["available_quantity"])
}

func TestFieldMap_SourceFields(t *testing.T) {
	m := FieldMap{Columns: []Column{
		{Name: "aumet_id", Sources: []string{"id"}, Kind: KindInt},
		{Name: "partner_id", Sources: []string{"partner_id"}, Kind: KindRef},
		{Name: "customer_aumet_id", Sources: []string{"partner_id"}, Kind: KindRef},
		{Name: "phone", Sources: []string{"phone", "mobile"}, Kind: KindString},
	}}

	assert.Equal(t, []string{"id", "partner_id", "phone", "mobile"}, m.SourceFields())
}

func TestFieldMap_Validate(t *testing.T) {
	require.NoError(t, productMap().Validate())

	tests := []struct {
		name string
		m    FieldMap
	}{
		{"empty", FieldMap{}},
		{"no sources", FieldMap{Columns: []Column{{Name: "a", Kind: KindInt}}}},
		{"unknown kind", FieldMap{Columns: []Column{{Name: "a", Sources: []string{"a"}, Kind: "money"}}}},
		{"duplicate", FieldMap{Columns: []Column{
			{Name: "a", Sources: []string{"a"}, Kind: KindInt},
			{Name: "a", Sources: []string{"b"}, Kind: KindInt},
		}}},
		{"derived without fn", FieldMap{
			Columns: []Column{{Name: "a", Sources: []string{"a"}, Kind: KindInt}},
			Derived: []Derived{{Name: "b"}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.m.Validate())
		})
	}
}

func TestRemoteRecord_ID(t *testing.T) {
	id, ok := RemoteRecord{"id": float64(12)}.ID()
	require.True(t, ok)
	assert.Equal(t, int64(12), id)

	_, ok = RemoteRecord{"id": false}.ID()
	assert.False(t, ok)

	_, ok = RemoteRecord{"id": 1.5}.ID()
	assert.False(t, ok)

	_, ok = RemoteRecord{"id": 1e19}.ID()
	assert.False(t, ok, "beyond int64 range")
}

func TestTransform_OutOfRangeKeyIsNull(t *testing.T) {
	m := FieldMap{Columns: []Column{{Name: "aumet_id", Sources: []string{"id"}, Kind: KindRef}}}
	assert.Nil(t, Transform(RemoteRecord{"id": 1e19}, m)["aumet_id"])
	assert.Nil(t, Transform(RemoteRecord{"id": -1e19}, m)["aumet_id"])
	assert.Equal(t, int64(-9007199254740992), Transform(RemoteRecord{"id": -9007199254740992.0}, m)["aumet_id"])
}

func TestMirrorRow_HasKey(t *testing.T) {
	assert.True(t, MirrorRow{"aumet_id": int64(1)}.HasKey("aumet_id"))
	assert.False(t, MirrorRow{"aumet_id": nil}.HasKey("aumet_id"))
	assert.False(t, MirrorRow{}.HasKey("aumet_id"))
}
