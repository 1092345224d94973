package cart

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/candle-shop/internal/domain/catalog"
	"github.com/xenking/candle-shop/internal/domain/pricing"
)

// Action is a quantity change requested for an existing line.
type Action string

const (
	ActionInc    Action = "inc"
	ActionDec    Action = "dec"
	ActionSet    Action = "set"
	ActionRemove Action = "remove"
)

// AddRequest holds the client input for adding a product to the cart.
type AddRequest struct {
	Quantity int
	// Options maps option ids to value ids as sent by the client. Empty
	// values mean "nothing selected".
	Options map[string]string
	// Lang selects the language of the captured option labels.
	Lang catalog.Lang
}

// AddResult is the outcome of a successful AddItem.
type AddResult struct {
	Key        string
	Items      int
	FinalPrice decimal.Decimal
}

// UpdateResult is the outcome of a successful UpdateItem.
type UpdateResult struct {
	// Quantity is 0 when the line was removed.
	Quantity int
	Subtotal decimal.Decimal
	Total    decimal.Decimal
	Items    int
}

// ProductReader loads live product data for price recomputation.
type ProductReader interface {
	GetProducts(ctx context.Context, ids []int64) ([]catalog.Product, error)
}

// Service recomputes cart prices against the live catalog.
type Service struct {
	products ProductReader
}

// NewService creates a cart Service.
func NewService(products ProductReader) *Service {
	return &Service{products: products}
}

// AddItem validates the option selection for p and adds req.Quantity units
// (at least one) to the matching line. A line never holds more than
// MaxQuantity units, and an option selected under two spellings of its id is
// rejected as ErrInvalidOptionFormat. On error the input cart is returned
// unchanged.
func AddItem(c Cart, p *catalog.Product, req AddRequest) (Cart, *AddResult, error) {
	if !p.Available {
		return c, nil, ErrOutOfStock
	}

	chosen, err := validateOptions(p, req.Options)
	if err != nil {
		return c, nil, err
	}

	var (
		options  []Selection
		labels   []Label
		modifier = decimal.Zero
	)
	for _, ch := range chosen {
		options = append(options, Selection{OptionID: ch.option.ID, ValueID: ch.value.ID})
		labels = append(labels, Label{Option: ch.option.Name.In(req.Lang), Value: ch.value.Value.In(req.Lang)})
		modifier = modifier.Add(ch.value.PriceModifier)
	}

	key := Key(p.ID, options)
	next := c.clone()
	line, ok := next.lines[key]
	if !ok {
		line = Line{
			ProductID:     p.ID,
			Options:       options,
			PriceModifier: modifier,
			Labels:        labels,
		}
	}
	qty := max(1, req.Quantity)
	if qty > MaxQuantity-line.Quantity {
		return c, nil, errors.Wrapf(ErrQuantityTooLarge, "%d + %d > %d", line.Quantity, qty, MaxQuantity)
	}
	line.Quantity += qty
	next.put(key, line)

	return next, &AddResult{
		Key:        key,
		Items:      next.Count(),
		FinalPrice: pricing.FinalPrice(p, modifier),
	}, nil
}

// Key builds the canonical cart key: the product id alone, or the product id
// followed by "optionId:valueId" pairs in option id order, joined by "_".
func Key(productID int64, options []Selection) string {
	id := strconv.FormatInt(productID, 10)
	if len(options) == 0 {
		return id
	}
	sorted := make([]Selection, len(options))
	copy(sorted, options)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].OptionID < sorted[j].OptionID })

	parts := make([]string, 0, len(sorted)+1)
	parts = append(parts, id)
	for _, s := range sorted {
		parts = append(parts, strconv.FormatInt(s.OptionID, 10)+":"+strconv.FormatInt(s.ValueID, 10))
	}
	return strings.Join(parts, "_")
}

type choice struct {
	rawOption string
	rawValue  string
	option    *catalog.Option
	value     *catalog.OptionValue
}

// validateOptions checks the client selection in four passes, the first
// failing pass wins: every option with values (or marked required) has a
// selection; every parsable option id belongs to the product; every parsable
// value id belongs to its option; every identifier is an integer.
// Two keys naming the same option ("5" and "05") also fail the last pass
// with ErrInvalidOptionFormat, even when they carry the same value; the
// request has no order that could pick a winner.
func validateOptions(p *catalog.Product, selected map[string]string) ([]choice, error) {
	for i := range p.Options {
		opt := &p.Options[i]
		if !opt.Required && len(opt.Values) == 0 {
			continue
		}
		if strings.TrimSpace(selected[strconv.FormatInt(opt.ID, 10)]) == "" {
			return nil, &MissingOptionError{OptionID: opt.ID, Name: opt.Name}
		}
	}

	keys := make([]string, 0, len(selected))
	for k, v := range selected {
		if strings.TrimSpace(v) == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	choices := make([]choice, len(keys))
	for i, k := range keys {
		choices[i] = choice{rawOption: k, rawValue: selected[k]}
		id, err := parseID(k)
		if err != nil {
			continue
		}
		opt, ok := p.Option(id)
		if !ok {
			return nil, &InvalidOptionError{OptionID: id}
		}
		choices[i].option = opt
	}

	for i := range choices {
		ch := &choices[i]
		if ch.option == nil {
			continue
		}
		id, err := parseID(ch.rawValue)
		if err != nil {
			continue
		}
		v, ok := ch.option.Value(id)
		if !ok {
			return nil, &InvalidValueError{OptionID: ch.option.ID, OptionName: ch.option.Name, ValueID: id}
		}
		ch.value = v
	}

	seen := make(map[int64]struct{}, len(choices))
	for _, ch := range choices {
		if ch.option == nil || ch.value == nil {
			return nil, errors.Wrapf(ErrInvalidOptionFormat, "%q: %q", ch.rawOption, ch.rawValue)
		}
		if _, dup := seen[ch.option.ID]; dup {
			return nil, errors.Wrapf(ErrInvalidOptionFormat, "option %d selected twice", ch.option.ID)
		}
		seen[ch.option.ID] = struct{}{}
	}

	sort.Slice(choices, func(i, j int) bool { return choices[i].option.ID < choices[j].option.ID })
	return choices, nil
}

func parseID(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}

// UpdateItem applies action to the line under key and recomputes the totals
// against the live catalog. A line whose quantity would drop to zero or below
// is removed; one that would exceed MaxQuantity is rejected.
func (s *Service) UpdateItem(ctx context.Context, c Cart, key string, action Action, qty int) (Cart, *UpdateResult, error) {
	line, ok := c.lines[key]
	if !ok {
		return c, nil, ErrItemNotFound
	}

	var newQty int
	switch action {
	case ActionInc:
		if line.Quantity >= MaxQuantity {
			return c, nil, errors.Wrapf(ErrQuantityTooLarge, "%d + 1 > %d", line.Quantity, MaxQuantity)
		}
		newQty = line.Quantity + 1
	case ActionDec:
		if line.Quantity > 1 {
			newQty = line.Quantity - 1
		}
	case ActionSet:
		if qty > MaxQuantity {
			return c, nil, errors.Wrapf(ErrQuantityTooLarge, "%d > %d", qty, MaxQuantity)
		}
		newQty = qty
	case ActionRemove:
		newQty = 0
	default:
		return c, nil, errors.Wrapf(ErrUnknownAction, "%q", action)
	}

	next := c.clone()
	if newQty > 0 {
		line.Quantity = newQty
		next.put(key, line)
	} else {
		newQty = 0
		next.remove(key)
	}

	items, total, err := s.BuildItems(ctx, next)
	if err != nil {
		return c, nil, errors.Wrap(err, "recompute cart")
	}

	subtotal := decimal.Zero
	for _, it := range items {
		if it.Key == key {
			subtotal = it.Subtotal
			break
		}
	}

	return next, &UpdateResult{
		Quantity: newQty,
		Subtotal: subtotal,
		Total:    total,
		Items:    next.Count(),
	}, nil
}

// BuildItems resolves every line against the live catalog and returns the
// items in cart order with the grand total. Lines whose product no longer
// exists are dropped.
func (s *Service) BuildItems(ctx context.Context, c Cart) ([]Item, decimal.Decimal, error) {
	if c.Len() == 0 {
		return nil, decimal.Zero, nil
	}

	ids := make([]int64, 0, c.Len())
	seen := make(map[int64]struct{}, c.Len())
	for _, key := range c.keys {
		id := c.lines[key].ProductID
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	fetched, err := s.products.GetProducts(ctx, ids)
	if err != nil {
		return nil, decimal.Zero, errors.Wrap(err, "get products")
	}
	byID := make(map[int64]catalog.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	items := make([]Item, 0, c.Len())
	total := decimal.Zero
	for _, key := range c.keys {
		line := c.lines[key]
		p, ok := byID[line.ProductID]
		if !ok {
			continue
		}
		unit := pricing.FinalPrice(&p, line.PriceModifier)
		subtotal := pricing.Subtotal(unit, line.Quantity)
		items = append(items, Item{
			Key:           key,
			Product:       p,
			Quantity:      line.Quantity,
			UnitPrice:     unit,
			Subtotal:      subtotal,
			PriceModifier: line.PriceModifier,
			Options:       line.Options,
			Labels:        line.Labels,
		})
		total = total.Add(subtotal)
	}
	return items, total, nil
}
