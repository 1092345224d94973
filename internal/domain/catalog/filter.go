package catalog

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Sort is a product listing order.
type Sort string

const (
	// SortDefault puts discounted hits first, then discounted, then hits,
	// then everything else, newest first within each bucket.
	SortDefault   Sort = ""
	SortPriceAsc  Sort = "price_asc"
	SortPriceDesc Sort = "price_desc"
	SortNameAsc   Sort = "name_asc"
	SortNameDesc  Sort = "name_desc"
)

// ParseSort returns SortDefault for unknown values.
func ParseSort(s string) Sort {
	switch v := Sort(s); v {
	case SortPriceAsc, SortPriceDesc, SortNameAsc, SortNameDesc:
		return v
	default:
		return SortDefault
	}
}

// Filter narrows a product listing. Zero values disable a criterion.
type Filter struct {
	Query          string
	CollectionCode string
	CategoryID     *int64
	GroupID        *int64
	MinPrice       *decimal.Decimal
	MaxPrice       *decimal.Decimal
	Sort           Sort
	Page           int
}

// FilterParams are raw listing parameters as received from a query string.
type FilterParams struct {
	Query      string
	Collection string
	Category   string
	Group      string
	MinPrice   string
	MaxPrice   string
	Sort       string
	Page       string
}

// ParseFilter builds a Filter, ignoring malformed numeric parameters the way
// the listing page always has: a bad value disables that criterion instead
// of failing the request.
func ParseFilter(p FilterParams) Filter {
	f := Filter{
		Query:          strings.TrimSpace(p.Query),
		CollectionCode: strings.TrimSpace(p.Collection),
		Sort:           ParseSort(p.Sort),
		Page:           1,
	}
	if id, err := strconv.ParseInt(p.Category, 10, 64); err == nil {
		f.CategoryID = &id
	}
	if id, err := strconv.ParseInt(p.Group, 10, 64); err == nil {
		f.GroupID = &id
	}
	// A malformed bound drops both bounds.
	minPrice, minErr := parseBound(p.MinPrice)
	maxPrice, maxErr := parseBound(p.MaxPrice)
	if minErr == nil && maxErr == nil {
		f.MinPrice, f.MaxPrice = minPrice, maxPrice
	}
	if n, err := strconv.Atoi(p.Page); err == nil {
		f.Page = n
	}
	return f
}

func parseBound(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ClampPage returns a valid page number for total items and the page count.
// There is always at least one page.
func ClampPage(requested, total int) (page, pages int) {
	pages = (total + PageSize - 1) / PageSize
	if pages < 1 {
		pages = 1
	}
	switch {
	case requested < 1:
		page = 1
	case requested > pages:
		page = pages
	default:
		page = requested
	}
	return page, pages
}
