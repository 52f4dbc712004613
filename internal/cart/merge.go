// Package cart reconciles cart item lists coming from different sources.
package cart

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Item is a cart line as clients send it. Identity may arrive in any of
// DatabaseID, ID or ProductID.
type Item struct {
	DatabaseID string          `json:"_id,omitempty"`
	ID         string          `json:"id,omitempty"`
	ProductID  string          `json:"productId,omitempty"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Quantity   int             `json:"quantity"`
	Variation  string          `json:"variation,omitempty"`
	Image      string          `json:"image,omitempty"`
}

// ResolveProductID returns the first non-empty identifier in precedence
// order DatabaseID, ID, ProductID, or "" when the item has none.
func ResolveProductID(it Item) string {
	for _, id := range []string{it.DatabaseID, it.ID, it.ProductID} {
		if s := strings.TrimSpace(id); s != "" {
			return s
		}
	}
	return ""
}

// NormalizeQuantity treats a missing or non-positive quantity as one.
func NormalizeQuantity(q int) int {
	if q <= 0 {
		return 1
	}
	return q
}

// Merge combines server and client items by product identity. Server items
// are visited first; repeated identities add up their quantities. Items
// without an identity are skipped. The result keeps first-seen order and
// carries the resolved identity in ProductID.
func Merge(server, client []Item) []Item {
	index := make(map[string]int, len(server)+len(client))
	out := make([]Item, 0, len(server)+len(client))

	add := func(it Item) {
		id := ResolveProductID(it)
		if id == "" {
			return
		}
		qty := NormalizeQuantity(it.Quantity)
		if i, ok := index[id]; ok {
			out[i].Quantity += qty
			return
		}
		it.ProductID = id
		it.Quantity = qty
		index[id] = len(out)
		out = append(out, it)
	}

	for _, it := range server {
		add(it)
	}
	for _, it := range client {
		add(it)
	}
	return out
}

// Quantities sums quantities per resolved identity.
func Quantities(items []Item) map[string]int {
	out := make(map[string]int, len(items))
	for _, it := range items {
		if id := ResolveProductID(it); id != "" {
			out[id] += NormalizeQuantity(it.Quantity)
		}
	}
	return out
}
