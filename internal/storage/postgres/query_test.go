package postgres

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/xenking/candle-shop/internal/domain/catalog"
)

func TestListWhere(t *testing.T) {
	t.Run("no filter", func(t *testing.T) {
		where, args := listWhere(catalog.Filter{})
		assert.Empty(t, where)
		assert.Empty(t, args)
	})

	t.Run("query escapes wildcards", func(t *testing.T) {
		where, args := listWhere(catalog.Filter{Query: `50%_off\`})
		assert.Contains(t, where, "p.name_uk ILIKE $1")
		assert.Contains(t, where, "c.name_ru ILIKE $1")
		assert.Equal(t, sqlArgs{`%50\%\_off\\%`}, args)
	})

	t.Run("criteria are numbered in order", func(t *testing.T) {
		category := int64(3)
		group := int64(4)
		lo := decimal.RequireFromString("100")
		hi := decimal.RequireFromString("500")

		where, args := listWhere(catalog.Filter{
			CollectionCode: "relax",
			CategoryID:     &category,
			GroupID:        &group,
			MinPrice:       &lo,
			MaxPrice:       &hi,
		})

		assert.Contains(t, where, "code = $1")
		assert.Contains(t, where, "pc.category_id = $2")
		assert.Contains(t, where, "c.group_id = $3")
		assert.Contains(t, where, "p.price >= $4")
		assert.Contains(t, where, "p.price <= $5")
		assert.Len(t, args, 5)
		assert.Equal(t, "relax", args[0])
	})
}

func TestListOrder(t *testing.T) {
	assert.Equal(t, "p.price, p.id", listOrder(catalog.SortPriceAsc))
	assert.Equal(t, "p.name_uk DESC, p.id DESC", listOrder(catalog.SortNameDesc))
	assert.Contains(t, listOrder(catalog.SortDefault), "WHEN p.is_hit AND p.is_on_sale THEN 0")
}

func TestAppendImage(t *testing.T) {
	images := appendImage(nil, "")
	images = appendImage(images, "main.jpg")
	images = appendImage(images, "side.jpg")
	images = appendImage(images, "main.jpg")

	assert.Equal(t, []string{"main.jpg", "side.jpg"}, images)
}
