package postgres

import (
	"strconv"
	"strings"

	"github.com/xenking/candle-shop/internal/domain/catalog"
)

// sqlArgs collects positional query arguments.
type sqlArgs []any

// add appends v and returns its placeholder.
func (a *sqlArgs) add(v any) string {
	*a = append(*a, v)
	return "$" + strconv.Itoa(len(*a))
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// listWhere renders the WHERE clause of a product listing. Products are
// aliased as p.
func listWhere(f catalog.Filter) (string, sqlArgs) {
	var (
		args  sqlArgs
		conds []string
	)
	if f.Query != "" {
		q := args.add("%" + likeEscaper.Replace(f.Query) + "%")
		conds = append(conds, `(p.name_uk ILIKE `+q+` OR p.name_ru ILIKE `+q+
			` OR p.description_uk ILIKE `+q+` OR p.description_ru ILIKE `+q+
			` OR EXISTS (SELECT 1 FROM product_categories pc JOIN categories c ON c.id = pc.category_id`+
			` WHERE pc.product_id = p.id AND (c.name_uk ILIKE `+q+` OR c.name_ru ILIKE `+q+`)))`)
	}
	if f.CollectionCode != "" {
		conds = append(conds, `p.collection_id IN (SELECT id FROM collections WHERE code = `+args.add(f.CollectionCode)+`)`)
	}
	if f.CategoryID != nil {
		conds = append(conds, `EXISTS (SELECT 1 FROM product_categories pc`+
			` WHERE pc.product_id = p.id AND pc.category_id = `+args.add(*f.CategoryID)+`)`)
	}
	if f.GroupID != nil {
		conds = append(conds, `EXISTS (SELECT 1 FROM product_categories pc JOIN categories c ON c.id = pc.category_id`+
			` WHERE pc.product_id = p.id AND c.group_id = `+args.add(*f.GroupID)+`)`)
	}
	if f.MinPrice != nil {
		conds = append(conds, `p.price >= `+args.add(*f.MinPrice))
	}
	if f.MaxPrice != nil {
		conds = append(conds, `p.price <= `+args.add(*f.MaxPrice))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// listOrder renders the ORDER BY expression for s.
func listOrder(s catalog.Sort) string {
	switch s {
	case catalog.SortPriceAsc:
		return "p.price, p.id"
	case catalog.SortPriceDesc:
		return "p.price DESC, p.id DESC"
	case catalog.SortNameAsc:
		return "p.name_uk, p.id"
	case catalog.SortNameDesc:
		return "p.name_uk DESC, p.id DESC"
	default:
		return "CASE WHEN p.is_hit AND p.is_on_sale THEN 0 WHEN p.is_on_sale THEN 1 WHEN p.is_hit THEN 2 ELSE 3 END, p.id DESC"
	}
}
