package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/candle-shop/internal/domain/catalog"
)

const (
	upsertProductSQL = `INSERT INTO products (id, name_uk, name_ru, description_uk, description_ru, price, image,
		is_available, is_hit, is_on_sale, discount_percent, sort_order)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (id) DO UPDATE SET
		name_uk = EXCLUDED.name_uk, name_ru = EXCLUDED.name_ru,
		description_uk = EXCLUDED.description_uk, description_ru = EXCLUDED.description_ru,
		price = EXCLUDED.price, image = EXCLUDED.image,
		is_available = EXCLUDED.is_available, is_hit = EXCLUDED.is_hit, is_on_sale = EXCLUDED.is_on_sale,
		discount_percent = EXCLUDED.discount_percent, sort_order = EXCLUDED.sort_order`

	pruneOptionsSQL = `DELETE FROM product_options WHERE product_id = $1 AND NOT (id = ANY($2))`

	upsertOptionSQL = `INSERT INTO product_options (id, product_id, name_uk, name_ru, is_required, input_type, sort_order)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (id) DO UPDATE SET
		product_id = EXCLUDED.product_id, name_uk = EXCLUDED.name_uk, name_ru = EXCLUDED.name_ru,
		is_required = EXCLUDED.is_required, input_type = EXCLUDED.input_type, sort_order = EXCLUDED.sort_order`

	pruneValuesSQL = `DELETE FROM product_option_values WHERE option_id = $1 AND NOT (id = ANY($2))`

	upsertValueSQL = `INSERT INTO product_option_values (id, option_id, value_uk, value_ru, price_modifier, image, sort_order)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (id) DO UPDATE SET
		option_id = EXCLUDED.option_id, value_uk = EXCLUDED.value_uk, value_ru = EXCLUDED.value_ru,
		price_modifier = EXCLUDED.price_modifier, image = EXCLUDED.image, sort_order = EXCLUDED.sort_order`

	replaceImagesSQL = `DELETE FROM product_images WHERE product_id = $1`

	insertImageSQL = `INSERT INTO product_images (product_id, image, sort_order) VALUES ($1, $2, $3)`

	// Unknown categories are skipped instead of failing the product.
	linkCategoriesSQL = `INSERT INTO product_categories (product_id, category_id)
	SELECT $1, c.id FROM categories c WHERE c.id = ANY($2)
	ON CONFLICT DO NOTHING`
)

// Tables whose ids are supplied by imports; their sequences must be moved
// past the imported ids.
var importedTables = []string{"products", "product_options", "product_option_values"}

// Importer writes catalog dumps into PostgreSQL.
type Importer struct {
	pool *pgxpool.Pool
}

// NewImporter returns an Importer that uses the given pool.
func NewImporter(pool *pgxpool.Pool) *Importer {
	return &Importer{pool: pool}
}

// UpsertProduct creates or replaces a product together with its options,
// values and gallery in one transaction. Options and values missing from p
// are removed; ids are kept so existing session carts stay valid.
func (im *Importer) UpsertProduct(ctx context.Context, p *catalog.Product) error {
	err := pgx.BeginFunc(ctx, im.pool, func(tx pgx.Tx) error {
		var discount *int16
		if p.DiscountPercent != nil {
			d := int16(*p.DiscountPercent)
			discount = &d
		}
		_, err := tx.Exec(ctx, upsertProductSQL,
			p.ID, p.Name.UK, p.Name.RU, p.Description.UK, p.Description.RU, p.Price, p.Image,
			p.Available, p.Hit, p.OnSale, discount, p.SortOrder,
		)
		if err != nil {
			return fmt.Errorf("upserting product: %w", err)
		}

		optionIDs := make([]int64, len(p.Options))
		for i, o := range p.Options {
			optionIDs[i] = o.ID
		}
		if _, err := tx.Exec(ctx, pruneOptionsSQL, p.ID, optionIDs); err != nil {
			return fmt.Errorf("pruning options: %w", err)
		}
		for _, o := range p.Options {
			inputType := o.InputType
			if !inputType.Valid() {
				inputType = catalog.InputSelect
			}
			_, err := tx.Exec(ctx, upsertOptionSQL,
				o.ID, p.ID, o.Name.UK, o.Name.RU, o.Required, string(inputType), o.SortOrder,
			)
			if err != nil {
				return fmt.Errorf("upserting option %d: %w", o.ID, err)
			}

			valueIDs := make([]int64, len(o.Values))
			for i, v := range o.Values {
				valueIDs[i] = v.ID
			}
			if _, err := tx.Exec(ctx, pruneValuesSQL, o.ID, valueIDs); err != nil {
				return fmt.Errorf("pruning values of option %d: %w", o.ID, err)
			}
			for _, v := range o.Values {
				_, err := tx.Exec(ctx, upsertValueSQL,
					v.ID, o.ID, v.Value.UK, v.Value.RU, v.PriceModifier, v.Image, v.SortOrder,
				)
				if err != nil {
					return fmt.Errorf("upserting option value %d: %w", v.ID, err)
				}
			}
		}

		if _, err := tx.Exec(ctx, replaceImagesSQL, p.ID); err != nil {
			return fmt.Errorf("replacing images: %w", err)
		}
		for i, url := range p.Images {
			if _, err := tx.Exec(ctx, insertImageSQL, p.ID, url, i); err != nil {
				return fmt.Errorf("inserting image: %w", err)
			}
		}

		if len(p.Categories) > 0 {
			ids := make([]int64, len(p.Categories))
			for i, c := range p.Categories {
				ids[i] = c.ID
			}
			if _, err := tx.Exec(ctx, linkCategoriesSQL, p.ID, ids); err != nil {
				return fmt.Errorf("linking categories: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("importing product %d: %w", p.ID, err)
	}
	return nil
}

// SyncSequences moves id sequences past the largest imported ids so rows
// created later do not collide with them.
func (im *Importer) SyncSequences(ctx context.Context) error {
	for _, table := range importedTables {
		query := `SELECT setval(pg_get_serial_sequence('` + table + `', 'id'), COALESCE((SELECT max(id) FROM ` + table + `), 0) + 1, false)`
		if _, err := im.pool.Exec(ctx, query); err != nil {
			return fmt.Errorf("syncing %s sequence: %w", table, err)
		}
	}
	return nil
}
