package odoo

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainMarshal(t *testing.T) {
	tests := []struct {
		name   string
		domain Domain
		want   string
	}{
		{"nil domain", nil, `[]`},
		{"empty domain", Domain{}, `[]`},
		{
			"single condition",
			Domain{{Field: "customer_rank", Operator: ">", Value: 0}},
			`[["customer_rank",">",0]]`,
		},
		{
			"comparison operators",
			Domain{
				{Field: "date_order", Operator: ">=", Value: "2024-11-24 00:00:00"},
				{Field: "date_order", Operator: "<", Value: "2024-11-25 00:00:00"},
			},
			`[["date_order",">=","2024-11-24 00:00:00"],["date_order","<","2024-11-25 00:00:00"]]`,
		},
		{
			"conjunction",
			Domain{
				{Field: "move_type", Operator: "=", Value: "out_invoice"},
				{Field: "active", Operator: "=", Value: true},
			},
			`[["move_type","=","out_invoice"],["active","=",true]]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// encoding/json escapes "<" and ">", so compare decoded values
			got, err := json.Marshal(tt.domain)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestDomainAndDoesNotAlias(t *testing.T) {
	base := make(Domain, 1, 4)
	base[0] = Condition{Field: "active", Operator: "=", Value: true}

	a := base.And(Condition{Field: "id", Operator: ">", Value: 1})
	b := base.And(Condition{Field: "id", Operator: "<", Value: 9})

	if a[1].Operator != ">" || b[1].Operator != "<" {
		t.Errorf("And must copy the receiver: a=%v b=%v", a, b)
	}
	if len(base) != 1 {
		t.Errorf("receiver modified: %v", base)
	}
}

func TestRPCErrorText(t *testing.T) {
	e := &rpcError{Code: 200, Message: "Odoo Server Error"}
	e.Data.Message = "Access Denied"
	if got := e.text(); got != "Odoo Server Error: Access Denied" {
		t.Errorf("unexpected text %q", got)
	}

	same := &rpcError{Message: "boom"}
	same.Data.Message = "boom"
	if got := same.text(); got != "boom" {
		t.Errorf("unexpected text %q", got)
	}
}
