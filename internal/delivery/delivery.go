// Package delivery looks up Nova Poshta warehouses for the checkout form.
package delivery

import (
	"context"
	"strings"
)

// Warehouse is a pickup point of the delivery partner.
type Warehouse struct {
	ID   string
	Name string
}

// Lookup returns the warehouses of a city. Implementations degrade to an
// empty list on any failure and never return an error.
type Lookup interface {
	Warehouses(ctx context.Context, city string) []Warehouse
}

// normalizeCity trims and lowercases a city name for cache keys.
func normalizeCity(city string) string {
	return strings.ToLower(strings.Join(strings.Fields(city), " "))
}
