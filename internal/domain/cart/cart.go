// Package cart reconciles a visitor's session cart: composite cart keys for
// product + option selections, option validation against the catalog, and
// price recomputation.
//
// A Cart is a value. Operations never mutate their input and return the next
// cart instead; the web layer owns loading and saving it.
package cart

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/candle-shop/internal/domain/catalog"
)

// MaxQuantity bounds the quantity of a single line.
const MaxQuantity = 9999

// Selection is one chosen option value.
type Selection struct {
	OptionID int64
	ValueID  int64
}

// Label is the display text of a chosen option value, captured when the line
// was added so it survives later catalog edits.
type Label struct {
	Option string
	Value  string
}

// Line is one distinct product + option selection in the cart. Quantity is the
// only field that changes after the line is created.
type Line struct {
	ProductID int64
	Quantity  int
	// Options are ordered by option id.
	Options       []Selection
	PriceModifier decimal.Decimal
	Labels        []Label
}

// Cart maps cart keys to lines, preserving insertion order.
type Cart struct {
	keys  []string
	lines map[string]Line
}

// New returns an empty cart.
func New() Cart {
	return Cart{lines: make(map[string]Line)}
}

// Len returns the number of distinct lines.
func (c Cart) Len() int { return len(c.keys) }

// Keys returns the cart keys in insertion order.
func (c Cart) Keys() []string {
	keys := make([]string, len(c.keys))
	copy(keys, c.keys)
	return keys
}

// Line returns the line stored under key.
func (c Cart) Line(key string) (Line, bool) {
	l, ok := c.lines[key]
	return l, ok
}

// Count sums quantities across all lines.
func (c Cart) Count() int {
	total := 0
	for _, key := range c.keys {
		total += c.lines[key].Quantity
	}
	return total
}

func (c Cart) clone() Cart {
	next := Cart{
		keys:  make([]string, len(c.keys), len(c.keys)+1),
		lines: make(map[string]Line, len(c.lines)+1),
	}
	copy(next.keys, c.keys)
	for k, l := range c.lines {
		next.lines[k] = l
	}
	return next
}

// put stores l under key, appending the key when it is new.
func (c *Cart) put(key string, l Line) {
	if c.lines == nil {
		c.lines = make(map[string]Line)
	}
	if _, ok := c.lines[key]; !ok {
		c.keys = append(c.keys, key)
	}
	c.lines[key] = l
}

func (c *Cart) remove(key string) {
	if _, ok := c.lines[key]; !ok {
		return
	}
	delete(c.lines, key)
	for i, k := range c.keys {
		if k == key {
			c.keys = append(c.keys[:i], c.keys[i+1:]...)
			break
		}
	}
}

// Item is a cart line resolved against the live catalog.
type Item struct {
	Key           string
	Product       catalog.Product
	Quantity      int
	UnitPrice     decimal.Decimal
	Subtotal      decimal.Decimal
	PriceModifier decimal.Decimal
	Options       []Selection
	Labels        []Label
}
