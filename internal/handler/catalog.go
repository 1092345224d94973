package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/jx"

	"github.com/xenking/candle-shop/internal/domain/catalog"
	"github.com/xenking/candle-shop/internal/domain/pricing"
)

// Home serves GET /api/home.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	home, err := h.catalog.Home(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	lang := requestLang(r)
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("hits", func(e *jx.Encoder) { encodeProducts(e, home.Hits, lang) })
			e.Field("collections", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for i := range home.Collections {
						encodeCollection(e, &home.Collections[i], lang)
					}
				})
			})
			e.Field("banners", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, b := range home.Banners {
						e.Obj(func(e *jx.Encoder) {
							num(e, "id", b.ID)
							str(e, "media", b.Media)
							str(e, "link", b.Link)
						})
					}
				})
			})
		})
	})
}

// ListProducts serves GET /api/products.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := catalog.ParseFilter(catalog.FilterParams{
		Query:      q.Get("q"),
		Collection: q.Get("collection"),
		Category:   q.Get("category"),
		Group:      q.Get("group"),
		MinPrice:   q.Get("min_price"),
		MaxPrice:   q.Get("max_price"),
		Sort:       q.Get("sort"),
		Page:       q.Get("page"),
	})
	page, err := h.catalog.ListProducts(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	lang := requestLang(r)
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("products", func(e *jx.Encoder) { encodeProducts(e, page.Products, lang) })
			num(e, "page", int64(page.Number))
			num(e, "total_pages", int64(page.TotalPages))
			num(e, "total", int64(page.Total))
		})
	})
}

// GetProduct serves GET /api/products/{id}.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, r, catalog.ErrNotFound)
		return
	}
	p, err := h.catalog.GetProduct(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	lang := requestLang(r)
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			encodeProductFields(e, p, lang)
			e.Field("images", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, img := range p.Images {
						e.Str(img)
					}
				})
			})
			e.Field("categories", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, c := range p.Categories {
						e.Obj(func(e *jx.Encoder) {
							num(e, "id", c.ID)
							str(e, "name", c.Name.In(lang))
						})
					}
				})
			})
			e.Field("options", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for i := range p.Options {
						encodeOption(e, &p.Options[i], lang)
					}
				})
			})
		})
	})
}

// Categories serves GET /api/categories.
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	tree, err := h.catalog.CategoryTree(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	lang := requestLang(r)
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("groups", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, g := range tree.Groups {
						e.Obj(func(e *jx.Encoder) {
							num(e, "id", g.ID)
							str(e, "name", g.Name.In(lang))
							e.Field("categories", func(e *jx.Encoder) { encodeCategories(e, g.Categories, lang) })
						})
					}
				})
			})
			e.Field("ungrouped", func(e *jx.Encoder) { encodeCategories(e, tree.Ungrouped, lang) })
		})
	})
}

// GetCollection serves GET /api/collections/{code}.
func (h *Handler) GetCollection(w http.ResponseWriter, r *http.Request) {
	c, err := h.catalog.GetCollection(r.Context(), r.PathValue("code"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	lang := requestLang(r)
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeCollection(e, c, lang)
	})
}

// Scents serves GET /api/scents.
func (h *Handler) Scents(w http.ResponseWriter, r *http.Request) {
	var categoryID *int64
	if id, err := strconv.ParseInt(r.URL.Query().Get("category"), 10, 64); err == nil {
		categoryID = &id
	}
	list, err := h.catalog.ListScents(r.Context(), categoryID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	lang := requestLang(r)
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("scents", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, s := range list.Scents {
						e.Obj(func(e *jx.Encoder) {
							num(e, "id", s.ID)
							str(e, "name", s.Name.In(lang))
							str(e, "description", s.Description.In(lang))
							str(e, "image", s.Image)
						})
					}
				})
			})
			e.Field("groups", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, g := range list.Groups {
						e.Obj(func(e *jx.Encoder) {
							num(e, "id", g.ID)
							str(e, "name", g.Name.In(lang))
							e.Field("categories", func(e *jx.Encoder) { encodeScentCategories(e, g.Categories, lang) })
						})
					}
				})
			})
			e.Field("ungrouped", func(e *jx.Encoder) { encodeScentCategories(e, list.Ungrouped, lang) })
			if categoryID != nil {
				num(e, "selected_category", *categoryID)
			}
		})
	})
}

func encodeProducts(e *jx.Encoder, products []catalog.Product, lang catalog.Lang) {
	e.Arr(func(e *jx.Encoder) {
		for i := range products {
			e.Obj(func(e *jx.Encoder) { encodeProductFields(e, &products[i], lang) })
		}
	})
}

func encodeProductFields(e *jx.Encoder, p *catalog.Product, lang catalog.Lang) {
	num(e, "id", p.ID)
	str(e, "name", p.Name.In(lang))
	str(e, "description", p.Description.In(lang))
	e.Field("price", func(e *jx.Encoder) { money(e, p.Price) })
	e.Field("final_price", func(e *jx.Encoder) { money(e, pricing.DiscountedPrice(p)) })
	if p.DiscountPercent != nil {
		num(e, "discount_percent", int64(*p.DiscountPercent))
	}
	str(e, "image", p.Image)
	boolean(e, "available", p.Available)
	boolean(e, "hit", p.Hit)
	boolean(e, "on_sale", p.OnSale)
	boolean(e, "has_options", p.HasOptions || len(p.Options) > 0)
}

func encodeOption(e *jx.Encoder, o *catalog.Option, lang catalog.Lang) {
	e.Obj(func(e *jx.Encoder) {
		num(e, "id", o.ID)
		str(e, "name", o.Name.In(lang))
		boolean(e, "required", o.Required)
		str(e, "input_type", string(o.InputType))
		e.Field("values", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, v := range o.Values {
					e.Obj(func(e *jx.Encoder) {
						num(e, "id", v.ID)
						str(e, "value", v.Value.In(lang))
						e.Field("price_modifier", func(e *jx.Encoder) { money(e, v.PriceModifier) })
						str(e, "image", v.Image)
					})
				}
			})
		})
	})
}

func encodeCollection(e *jx.Encoder, c *catalog.Collection, lang catalog.Lang) {
	e.Obj(func(e *jx.Encoder) {
		num(e, "id", c.ID)
		str(e, "code", c.Code)
		str(e, "title", c.Title.In(lang))
		str(e, "description", c.Description.In(lang))
		if c.Items != nil {
			e.Field("items", func(e *jx.Encoder) { encodeProducts(e, c.Items, lang) })
		}
	})
}

func encodeCategories(e *jx.Encoder, cs []catalog.Category, lang catalog.Lang) {
	e.Arr(func(e *jx.Encoder) {
		for _, c := range cs {
			e.Obj(func(e *jx.Encoder) {
				num(e, "id", c.ID)
				str(e, "name", c.Name.In(lang))
				str(e, "description", c.Description)
			})
		}
	})
}

func encodeScentCategories(e *jx.Encoder, cs []catalog.ScentCategory, lang catalog.Lang) {
	e.Arr(func(e *jx.Encoder) {
		for _, c := range cs {
			e.Obj(func(e *jx.Encoder) {
				num(e, "id", c.ID)
				str(e, "name", c.Name.In(lang))
			})
		}
	})
}
