// Package catalog defines the storefront's product catalog: candles, their
// configurator options, categories, collections and scents.
package catalog

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested catalog entity does not exist.
var ErrNotFound = errors.New("not found")

// PageSize is the number of products on one listing page.
const PageSize = 20

// InputType is the widget used to render an option on the product page.
type InputType string

const (
	InputSelect  InputType = "select"
	InputRadio   InputType = "radio"
	InputButtons InputType = "buttons"
)

// Valid reports whether t is one of the known input types.
func (t InputType) Valid() bool {
	switch t {
	case InputSelect, InputRadio, InputButtons:
		return true
	default:
		return false
	}
}

// Product is a candle available in the storefront.
type Product struct {
	ID          int64
	Name        Text
	Description Text
	Price       decimal.Decimal
	Image       string
	Images      []string
	Available   bool
	Hit         bool
	OnSale      bool
	// DiscountPercent is nil when no discount is configured.
	DiscountPercent *int
	CollectionID    *int64
	Categories      []Category
	Options         []Option
	// HasOptions is set by listings that do not load Options.
	HasOptions bool
	SortOrder  int
}

// Option returns the product option with the given id.
func (p *Product) Option(id int64) (*Option, bool) {
	for i := range p.Options {
		if p.Options[i].ID == id {
			return &p.Options[i], true
		}
	}
	return nil, false
}

// Option is a configurator axis of a product, e.g. scent or wick.
type Option struct {
	ID        int64
	ProductID int64
	Name      Text
	Required  bool
	InputType InputType
	Values    []OptionValue
	SortOrder int
}

// Value returns the option value with the given id.
func (o *Option) Value(id int64) (*OptionValue, bool) {
	for i := range o.Values {
		if o.Values[i].ID == id {
			return &o.Values[i], true
		}
	}
	return nil, false
}

// OptionValue is one selectable choice of an Option.
type OptionValue struct {
	ID            int64
	OptionID      int64
	Value         Text
	PriceModifier decimal.Decimal
	Image         string
	SortOrder     int
}

// CategoryGroup groups categories in navigation.
type CategoryGroup struct {
	ID         int64
	Name       Text
	SortOrder  int
	Categories []Category
}

// Category is a product category.
type Category struct {
	ID          int64
	Name        Text
	Description string
	GroupID     *int64
	SortOrder   int
}

// CategoryTree is the navigation structure of categories.
type CategoryTree struct {
	Groups    []CategoryGroup
	Ungrouped []Category
}

// Collection is a mood collection ("for relax", "for a gift", ...).
type Collection struct {
	ID          int64
	Code        string
	Title       Text
	Description Text
	SortOrder   int
	Items       []Product
}

// Scent describes a fragrance used in candles.
type Scent struct {
	ID          int64
	Name        Text
	Description Text
	Image       string
	SortOrder   int
}

// ScentCategoryGroup groups scent categories.
type ScentCategoryGroup struct {
	ID         int64
	Name       Text
	SortOrder  int
	Categories []ScentCategory
}

// ScentCategory is a fragrance family.
type ScentCategory struct {
	ID        int64
	Name      Text
	GroupID   *int64
	SortOrder int
}

// ScentList is the scent catalog page.
type ScentList struct {
	Scents     []Scent
	Categories []ScentCategory
	Groups     []ScentCategoryGroup
	Ungrouped  []ScentCategory
}

// Banner is a home page banner.
type Banner struct {
	ID        int64
	Media     string
	Link      string
	Active    bool
	SortOrder int
	UpdatedAt time.Time
}

// Home is the home page content.
type Home struct {
	Hits        []Product
	Collections []Collection
	Banners     []Banner
}

// Page is one page of a product listing.
type Page struct {
	Products   []Product
	Number     int
	TotalPages int
	Total      int
}

// Repository defines read operations for the catalog.
type Repository interface {
	GetProduct(ctx context.Context, id int64) (*Product, error)
	GetProducts(ctx context.Context, ids []int64) ([]Product, error)
	GetOption(ctx context.Context, id int64) (*Option, error)
	GetOptionValue(ctx context.Context, id int64) (*OptionValue, error)
	ListProducts(ctx context.Context, f Filter) (*Page, error)
	Home(ctx context.Context) (*Home, error)
	GetCollection(ctx context.Context, code string) (*Collection, error)
	CategoryTree(ctx context.Context) (*CategoryTree, error)
	ListScents(ctx context.Context, categoryID *int64) (*ScentList, error)
}
