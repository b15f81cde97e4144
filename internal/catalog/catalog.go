// Package catalog holds the static product list. Immutable at runtime:
// there is no write path, prices snapshot into orders at checkout.
package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/andikarap/voucher-shop/internal/shop"
)

type Catalog struct {
	byID  map[string]shop.Product
	order []string // preserve listing order
}

// Default mirrors the products the shop actually sells.
func Default() *Catalog {
	c, _ := New([]shop.Product{
		{ID: "gemini", Name: "Gemini AI Pro 1 Tahun", UnitPrice: 25000},
		{ID: "chatgpt", Name: "ChatGPT Plus 1 Bulan", UnitPrice: 30000},
	})
	return c
}

func New(products []shop.Product) (*Catalog, error) {
	if len(products) == 0 {
		return nil, fmt.Errorf("catalog must not be empty")
	}
	c := &Catalog{byID: make(map[string]shop.Product, len(products))}
	for _, p := range products {
		if p.ID == "" || p.Name == "" {
			return nil, fmt.Errorf("product needs id and name: %+v", p)
		}
		if p.UnitPrice <= 0 {
			return nil, fmt.Errorf("product %s: unit_price must be positive", p.ID)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate product id %s", p.ID)
		}
		c.byID[p.ID] = p
		c.order = append(c.order, p.ID)
	}
	return c, nil
}

// Parse builds a catalog from a JSON array, the CATALOG env override format.
func Parse(raw string) (*Catalog, error) {
	var products []shop.Product
	if err := json.Unmarshal([]byte(raw), &products); err != nil {
		return nil, fmt.Errorf("parse catalog json: %w", err)
	}
	return New(products)
}

func (c *Catalog) Lookup(id string) (shop.Product, bool) {
	p, ok := c.byID[id]
	return p, ok
}

func (c *Catalog) All() []shop.Product {
	out := make([]shop.Product, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}
