package catalog

import (
	"testing"

	"github.com/andikarap/voucher-shop/internal/shop"
)

func TestParseOverride(t *testing.T) {
	c, err := Parse(`[{"id":"midjourney","name":"Midjourney Basic","unit_price":120000}]`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	p, ok := c.Lookup("midjourney")
	if !ok {
		t.Fatal("midjourney not found")
	}
	if p.UnitPrice != 120000 {
		t.Errorf("unit_price = %d, want 120000", p.UnitPrice)
	}
	if _, ok := c.Lookup("gemini"); ok {
		t.Error("override catalog still contains defaults")
	}
}

func TestParseRejectsBadProducts(t *testing.T) {
	cases := map[string]string{
		"empty list":     `[]`,
		"zero price":     `[{"id":"x","name":"X","unit_price":0}]`,
		"negative price": `[{"id":"x","name":"X","unit_price":-5}]`,
		"missing id":     `[{"name":"X","unit_price":10}]`,
		"duplicate id":   `[{"id":"x","name":"X","unit_price":10},{"id":"x","name":"Y","unit_price":20}]`,
		"not json":       `nope`,
	}
	for name, raw := range cases {
		if _, err := Parse(raw); err == nil {
			t.Errorf("%s: parse accepted %q", name, raw)
		}
	}
}

func TestAllPreservesOrder(t *testing.T) {
	c, err := New([]shop.Product{
		{ID: "b", Name: "B", UnitPrice: 1},
		{ID: "a", Name: "A", UnitPrice: 2},
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	all := c.All()
	if all[0].ID != "b" || all[1].ID != "a" {
		t.Errorf("order not preserved: %v", all)
	}
}

func TestDefaultHasShopProducts(t *testing.T) {
	c := Default()
	for _, id := range []string{"gemini", "chatgpt"} {
		p, ok := c.Lookup(id)
		if !ok {
			t.Errorf("default catalog missing %s", id)
			continue
		}
		if p.UnitPrice <= 0 {
			t.Errorf("%s has non-positive price", id)
		}
	}
}
