package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/candle-shop/internal/domain/catalog"
)

const (
	homeHits        = 6
	collectionItems = 6
)

const productColumns = `p.id, p.name_uk, p.name_ru, p.description_uk, p.description_ru, p.price, p.image,
	p.is_available, p.is_hit, p.is_on_sale, p.discount_percent, p.collection_id, p.sort_order,
	EXISTS (SELECT 1 FROM product_options o WHERE o.product_id = p.id)`

const (
	getProductSQL = `SELECT ` + productColumns + ` FROM products p WHERE p.id = $1`

	getProductsSQL = `SELECT ` + productColumns + ` FROM products p WHERE p.id = ANY($1) ORDER BY p.id`

	optionColumns = `id, product_id, name_uk, name_ru, is_required, input_type, sort_order`

	optionsByProductSQL = `SELECT ` + optionColumns + ` FROM product_options
		WHERE product_id = ANY($1) ORDER BY product_id, sort_order, id`

	getOptionSQL = `SELECT ` + optionColumns + ` FROM product_options WHERE id = $1`

	valueColumns = `id, option_id, value_uk, value_ru, price_modifier, image, sort_order`

	valuesByOptionSQL = `SELECT ` + valueColumns + ` FROM product_option_values
		WHERE option_id = ANY($1) ORDER BY option_id, sort_order, id`

	getOptionValueSQL = `SELECT ` + valueColumns + ` FROM product_option_values WHERE id = $1`

	imagesSQL = `SELECT product_id, image FROM product_images
		WHERE product_id = ANY($1) ORDER BY product_id, sort_order, id`

	productCategoriesSQL = `SELECT pc.product_id, c.id, c.name_uk, c.name_ru, c.description, c.group_id, c.sort_order
		FROM product_categories pc JOIN categories c ON c.id = pc.category_id
		WHERE pc.product_id = ANY($1) ORDER BY c.sort_order, c.name_uk, c.id`

	hitsSQL = `SELECT ` + productColumns + ` FROM products p
		WHERE p.is_hit ORDER BY p.sort_order, p.id DESC LIMIT $1`

	fillHitsSQL = `SELECT ` + productColumns + ` FROM products p
		WHERE NOT (p.id = ANY($1)) ORDER BY p.sort_order, p.id DESC LIMIT $2`

	collectionColumns = `id, code, title_uk, title_ru, description_uk, description_ru, sort_order`

	listCollectionsSQL = `SELECT ` + collectionColumns + ` FROM collections ORDER BY sort_order, code`

	getCollectionSQL = `SELECT ` + collectionColumns + ` FROM collections WHERE code = $1`

	collectionItemsSQL = `SELECT ` + productColumns + ` FROM collection_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.collection_id = $1 ORDER BY ci.sort_order, p.id LIMIT $2`

	bannersSQL = `SELECT id, media, link, is_active, sort_order, updated_at FROM home_banners
		WHERE is_active OR NOT $1 ORDER BY sort_order, updated_at DESC, id DESC`

	categoryGroupsSQL = `SELECT id, name_uk, name_ru, sort_order FROM category_groups
		ORDER BY sort_order, name_uk, id`

	categoriesSQL = `SELECT id, name_uk, name_ru, description, group_id, sort_order FROM categories
		ORDER BY sort_order, name_uk, id`

	scentsSQL = `SELECT s.id, s.name_uk, s.name_ru, s.description_uk, s.description_ru, s.image, s.sort_order
		FROM scents s
		WHERE $1::bigint IS NULL
		   OR EXISTS (SELECT 1 FROM scent_category_links l WHERE l.scent_id = s.id AND l.category_id = $1)
		ORDER BY s.sort_order, s.name_uk, s.id`

	scentGroupsSQL = `SELECT id, name_uk, name_ru, sort_order FROM scent_category_groups
		ORDER BY sort_order, name_uk, id`

	scentCategoriesSQL = `SELECT id, name_uk, name_ru, group_id, sort_order FROM scent_categories
		ORDER BY sort_order, name_uk, id`
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository backed by PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// GetProduct returns a product with its options, values, images and
// categories.
func (r *CatalogRepository) GetProduct(ctx context.Context, id int64) (*catalog.Product, error) {
	rows, err := r.pool.Query(ctx, getProductSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}

	products := []catalog.Product{p}
	if err := r.attachDetails(ctx, products); err != nil {
		return nil, err
	}
	return &products[0], nil
}

// GetProducts returns the products matching ids, without options. Unknown
// ids are skipped.
func (r *CatalogRepository) GetProducts(ctx context.Context, ids []int64) ([]catalog.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, getProductsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetOption returns an option without its values.
func (r *CatalogRepository) GetOption(ctx context.Context, id int64) (*catalog.Option, error) {
	rows, err := r.pool.Query(ctx, getOptionSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting option %d: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOption)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting option %d: %w", id, err)
	}
	return &o, nil
}

// GetOptionValue returns a single option value.
func (r *CatalogRepository) GetOptionValue(ctx context.Context, id int64) (*catalog.OptionValue, error) {
	rows, err := r.pool.Query(ctx, getOptionValueSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting option value %d: %w", id, err)
	}
	v, err := pgx.CollectExactlyOneRow(rows, scanOptionValue)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting option value %d: %w", id, err)
	}
	return &v, nil
}

// ListProducts returns one page of products matching f. Out of range pages
// are clamped to the nearest existing page.
func (r *CatalogRepository) ListProducts(ctx context.Context, f catalog.Filter) (*catalog.Page, error) {
	where, args := listWhere(f)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM products p`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting products: %w", err)
	}
	page, pages := catalog.ClampPage(f.Page, total)

	limit := args.add(catalog.PageSize)
	offset := args.add((page - 1) * catalog.PageSize)
	query := `SELECT ` + productColumns + ` FROM products p` + where +
		` ORDER BY ` + listOrder(f.Sort) + ` LIMIT ` + limit + ` OFFSET ` + offset

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return &catalog.Page{
		Products:   products,
		Number:     page,
		TotalPages: pages,
		Total:      total,
	}, nil
}

// Home returns up to six hits topped up with other products, all
// collections and the active banners (every banner when none is active).
func (r *CatalogRepository) Home(ctx context.Context) (*catalog.Home, error) {
	rows, err := r.pool.Query(ctx, hitsSQL, homeHits)
	if err != nil {
		return nil, fmt.Errorf("listing hits: %w", err)
	}
	hits, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("listing hits: %w", err)
	}
	if len(hits) < homeHits {
		exclude := make([]int64, len(hits))
		for i, p := range hits {
			exclude[i] = p.ID
		}
		rows, err := r.pool.Query(ctx, fillHitsSQL, exclude, homeHits-len(hits))
		if err != nil {
			return nil, fmt.Errorf("filling hits: %w", err)
		}
		fill, err := pgx.CollectRows(rows, scanProduct)
		if err != nil {
			return nil, fmt.Errorf("filling hits: %w", err)
		}
		hits = append(hits, fill...)
	}

	rows, err = r.pool.Query(ctx, listCollectionsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	collections, err := pgx.CollectRows(rows, scanCollection)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}

	banners, err := r.banners(ctx, true)
	if err != nil {
		return nil, err
	}
	if len(banners) == 0 {
		if banners, err = r.banners(ctx, false); err != nil {
			return nil, err
		}
	}
	withMedia := banners[:0]
	for _, b := range banners {
		if b.Media != "" {
			withMedia = append(withMedia, b)
		}
	}

	return &catalog.Home{
		Hits:        hits,
		Collections: collections,
		Banners:     withMedia,
	}, nil
}

func (r *CatalogRepository) banners(ctx context.Context, onlyActive bool) ([]catalog.Banner, error) {
	rows, err := r.pool.Query(ctx, bannersSQL, onlyActive)
	if err != nil {
		return nil, fmt.Errorf("listing banners: %w", err)
	}
	banners, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.Banner, error) {
		var b catalog.Banner
		err := row.Scan(&b.ID, &b.Media, &b.Link, &b.Active, &b.SortOrder, &b.UpdatedAt)
		return b, err
	})
	if err != nil {
		return nil, fmt.Errorf("listing banners: %w", err)
	}
	return banners, nil
}

// GetCollection returns a collection with up to six of its items.
func (r *CatalogRepository) GetCollection(ctx context.Context, code string) (*catalog.Collection, error) {
	rows, err := r.pool.Query(ctx, getCollectionSQL, code)
	if err != nil {
		return nil, fmt.Errorf("getting collection %q: %w", code, err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCollection)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting collection %q: %w", code, err)
	}

	rows, err = r.pool.Query(ctx, collectionItemsSQL, c.ID, collectionItems)
	if err != nil {
		return nil, fmt.Errorf("listing collection %q items: %w", code, err)
	}
	if c.Items, err = pgx.CollectRows(rows, scanProduct); err != nil {
		return nil, fmt.Errorf("listing collection %q items: %w", code, err)
	}
	return &c, nil
}

// CategoryTree returns category groups with their categories, plus the
// categories that belong to no group.
func (r *CatalogRepository) CategoryTree(ctx context.Context) (*catalog.CategoryTree, error) {
	rows, err := r.pool.Query(ctx, categoryGroupsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing category groups: %w", err)
	}
	groups, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.CategoryGroup, error) {
		var g catalog.CategoryGroup
		err := row.Scan(&g.ID, &g.Name.UK, &g.Name.RU, &g.SortOrder)
		return g, err
	})
	if err != nil {
		return nil, fmt.Errorf("listing category groups: %w", err)
	}

	rows, err = r.pool.Query(ctx, categoriesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	categories, err := pgx.CollectRows(rows, scanCategory)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}

	tree := &catalog.CategoryTree{Groups: groups}
	byGroup := make(map[int64]int, len(groups))
	for i, g := range groups {
		byGroup[g.ID] = i
	}
	for _, c := range categories {
		if c.GroupID != nil {
			if i, ok := byGroup[*c.GroupID]; ok {
				tree.Groups[i].Categories = append(tree.Groups[i].Categories, c)
				continue
			}
		}
		tree.Ungrouped = append(tree.Ungrouped, c)
	}
	return tree, nil
}

// ListScents returns scents, optionally only those of one scent category,
// together with the scent category navigation.
func (r *CatalogRepository) ListScents(ctx context.Context, categoryID *int64) (*catalog.ScentList, error) {
	rows, err := r.pool.Query(ctx, scentsSQL, categoryID)
	if err != nil {
		return nil, fmt.Errorf("listing scents: %w", err)
	}
	scents, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.Scent, error) {
		var s catalog.Scent
		err := row.Scan(&s.ID, &s.Name.UK, &s.Name.RU, &s.Description.UK, &s.Description.RU, &s.Image, &s.SortOrder)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("listing scents: %w", err)
	}

	rows, err = r.pool.Query(ctx, scentGroupsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing scent groups: %w", err)
	}
	groups, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.ScentCategoryGroup, error) {
		var g catalog.ScentCategoryGroup
		err := row.Scan(&g.ID, &g.Name.UK, &g.Name.RU, &g.SortOrder)
		return g, err
	})
	if err != nil {
		return nil, fmt.Errorf("listing scent groups: %w", err)
	}

	rows, err = r.pool.Query(ctx, scentCategoriesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing scent categories: %w", err)
	}
	categories, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.ScentCategory, error) {
		var c catalog.ScentCategory
		err := row.Scan(&c.ID, &c.Name.UK, &c.Name.RU, &c.GroupID, &c.SortOrder)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("listing scent categories: %w", err)
	}

	list := &catalog.ScentList{Scents: scents, Categories: categories, Groups: groups}
	byGroup := make(map[int64]int, len(groups))
	for i, g := range groups {
		byGroup[g.ID] = i
	}
	for _, c := range categories {
		if c.GroupID == nil {
			list.Ungrouped = append(list.Ungrouped, c)
			continue
		}
		if i, ok := byGroup[*c.GroupID]; ok {
			list.Groups[i].Categories = append(list.Groups[i].Categories, c)
		}
	}
	return list, nil
}

// attachDetails loads options with values, images and categories for
// products in three round trips regardless of their number.
func (r *CatalogRepository) attachDetails(ctx context.Context, products []catalog.Product) error {
	ids := make([]int64, len(products))
	index := make(map[int64]int, len(products))
	for i, p := range products {
		ids[i] = p.ID
		index[p.ID] = i
	}

	rows, err := r.pool.Query(ctx, optionsByProductSQL, ids)
	if err != nil {
		return fmt.Errorf("listing options: %w", err)
	}
	options, err := pgx.CollectRows(rows, scanOption)
	if err != nil {
		return fmt.Errorf("listing options: %w", err)
	}
	if len(options) > 0 {
		optionIDs := make([]int64, len(options))
		for i, o := range options {
			optionIDs[i] = o.ID
		}
		rows, err := r.pool.Query(ctx, valuesByOptionSQL, optionIDs)
		if err != nil {
			return fmt.Errorf("listing option values: %w", err)
		}
		values, err := pgx.CollectRows(rows, scanOptionValue)
		if err != nil {
			return fmt.Errorf("listing option values: %w", err)
		}
		byOption := make(map[int64][]catalog.OptionValue, len(options))
		for _, v := range values {
			byOption[v.OptionID] = append(byOption[v.OptionID], v)
		}
		for _, o := range options {
			o.Values = byOption[o.ID]
			p := &products[index[o.ProductID]]
			p.Options = append(p.Options, o)
		}
	}

	rows, err = r.pool.Query(ctx, imagesSQL, ids)
	if err != nil {
		return fmt.Errorf("listing images: %w", err)
	}
	type image struct {
		productID int64
		url       string
	}
	images, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (image, error) {
		var img image
		err := row.Scan(&img.productID, &img.url)
		return img, err
	})
	if err != nil {
		return fmt.Errorf("listing images: %w", err)
	}
	for i := range products {
		products[i].Images = appendImage(nil, products[i].Image)
	}
	for _, img := range images {
		p := &products[index[img.productID]]
		p.Images = appendImage(p.Images, img.url)
	}

	rows, err = r.pool.Query(ctx, productCategoriesSQL, ids)
	if err != nil {
		return fmt.Errorf("listing product categories: %w", err)
	}
	type link struct {
		productID int64
		category  catalog.Category
	}
	links, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (link, error) {
		var l link
		c := &l.category
		err := row.Scan(&l.productID, &c.ID, &c.Name.UK, &c.Name.RU, &c.Description, &c.GroupID, &c.SortOrder)
		return l, err
	})
	if err != nil {
		return fmt.Errorf("listing product categories: %w", err)
	}
	for _, l := range links {
		p := &products[index[l.productID]]
		p.Categories = append(p.Categories, l.category)
	}
	return nil
}

// appendImage adds url unless it is empty or already present.
func appendImage(images []string, url string) []string {
	if url == "" {
		return images
	}
	for _, u := range images {
		if u == url {
			return images
		}
	}
	return append(images, url)
}

func scanProduct(row pgx.CollectableRow) (catalog.Product, error) {
	var (
		p        catalog.Product
		discount *int16
	)
	err := row.Scan(
		&p.ID, &p.Name.UK, &p.Name.RU, &p.Description.UK, &p.Description.RU, &p.Price, &p.Image,
		&p.Available, &p.Hit, &p.OnSale, &discount, &p.CollectionID, &p.SortOrder,
		&p.HasOptions,
	)
	if discount != nil {
		pct := int(*discount)
		p.DiscountPercent = &pct
	}
	return p, err
}

func scanOption(row pgx.CollectableRow) (catalog.Option, error) {
	var (
		o         catalog.Option
		inputType string
	)
	err := row.Scan(&o.ID, &o.ProductID, &o.Name.UK, &o.Name.RU, &o.Required, &inputType, &o.SortOrder)
	o.InputType = catalog.InputType(inputType)
	return o, err
}

func scanOptionValue(row pgx.CollectableRow) (catalog.OptionValue, error) {
	var v catalog.OptionValue
	err := row.Scan(&v.ID, &v.OptionID, &v.Value.UK, &v.Value.RU, &v.PriceModifier, &v.Image, &v.SortOrder)
	return v, err
}

func scanCollection(row pgx.CollectableRow) (catalog.Collection, error) {
	var c catalog.Collection
	err := row.Scan(&c.ID, &c.Code, &c.Title.UK, &c.Title.RU, &c.Description.UK, &c.Description.RU, &c.SortOrder)
	return c, err
}

func scanCategory(row pgx.CollectableRow) (catalog.Category, error) {
	var c catalog.Category
	err := row.Scan(&c.ID, &c.Name.UK, &c.Name.RU, &c.Description, &c.GroupID, &c.SortOrder)
	return c, err
}
