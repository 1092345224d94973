package handler

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/candle-shop/internal/domain/cart"
)

type addPayload struct {
	ProductID int64
	Quantity  int
	Options   map[string]string
	// badOptions is set when "options" is present but not an object.
	badOptions bool
}

type updatePayload struct {
	Key      string
	Action   cart.Action
	Quantity int
}

// intOrString decodes a JSON number or numeric string.
func intOrString(d *jx.Decoder) (int64, error) {
	switch d.Next() {
	case jx.Number:
		return d.Int64()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return 0, err
		}
		return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	default:
		return 0, errors.Errorf("unexpected %s", d.Next())
	}
}

// clampQuantity narrows a requested quantity to int. Anything above the cart
// limit maps to MaxQuantity+1 so the cart still rejects it.
func clampQuantity(n int64) int {
	return int(min(n, cart.MaxQuantity+1))
}

// scalarString decodes a JSON string, number or null as text.
func scalarString(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Num()
		return n.String(), err
	case jx.Null:
		return "", d.Null()
	default:
		return "", errors.Errorf("unexpected %s", d.Next())
	}
}

func decodeAdd(data []byte) (addPayload, error) {
	p := addPayload{Quantity: 1}
	var hasPK bool
	err := jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "pk":
			id, err := intOrString(d)
			p.ProductID, hasPK = id, err == nil
			return err
		case "qty":
			n, err := intOrString(d)
			p.Quantity = clampQuantity(n)
			return err
		case "options":
			if d.Next() != jx.Object {
				p.badOptions = d.Next() != jx.Null
				return d.Skip()
			}
			p.Options = make(map[string]string)
			return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
				v, err := scalarString(d)
				if err != nil {
					return err
				}
				p.Options[string(key)] = v
				return nil
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return p, errors.Wrap(errInvalidPayload, err.Error())
	}
	if !hasPK {
		return p, errors.Wrap(errInvalidPayload, "pk is required")
	}
	return p, nil
}

func decodeUpdate(data []byte) (updatePayload, error) {
	p := updatePayload{Quantity: 1}
	err := jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "pk":
			s, err := scalarString(d)
			p.Key = strings.TrimSpace(s)
			return err
		case "action":
			s, err := d.Str()
			p.Action = cart.Action(s)
			return err
		case "qty":
			n, err := intOrString(d)
			p.Quantity = clampQuantity(n)
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return p, errors.Wrap(errInvalidPayload, err.Error())
	}
	if p.Key == "" {
		return p, errors.Wrap(errInvalidPayload, "pk is required")
	}
	return p, nil
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return nil, errors.Wrap(errInvalidPayload, err.Error())
	}
	return data, nil
}

// AddToCart serves POST /cart/add.
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, err := decodeAdd(data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if req.badOptions {
		writeError(w, r, cart.ErrInvalidOptionFormat)
		return
	}

	p, err := h.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	sid, _ := h.sessionID(w, r, true)
	c, err := h.carts.Load(ctx, sid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	next, res, err := cart.AddItem(c, p, cart.AddRequest{
		Quantity: req.Quantity,
		Options:  req.Options,
		Lang:     requestLang(r),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.carts.Save(ctx, sid, next); err != nil {
		writeError(w, r, err)
		return
	}
	h.cartAdds.Add(ctx, 1)

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			boolean(e, "ok", true)
			num(e, "items", int64(res.Items))
			str(e, "cart_key", res.Key)
			e.Field("final_price", func(e *jx.Encoder) { money(e, res.FinalPrice) })
		})
	})
}

// UpdateCart serves POST /cart/update.
func (h *Handler) UpdateCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, err := decodeUpdate(data)
	if err != nil {
		writeError(w, r, err)
		return
	}

	sid, ok := h.sessionID(w, r, false)
	if !ok {
		writeError(w, r, cart.ErrItemNotFound)
		return
	}
	c, err := h.carts.Load(ctx, sid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	next, res, err := h.pricer.UpdateItem(ctx, c, req.Key, req.Action, req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.carts.Save(ctx, sid, next); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			boolean(e, "ok", true)
			num(e, "items", int64(res.Items))
			num(e, "item_qty", int64(res.Quantity))
			e.Field("item_subtotal", func(e *jx.Encoder) { money(e, res.Subtotal) })
			e.Field("total", func(e *jx.Encoder) { money(e, res.Total) })
		})
	})
}

// GetCart serves GET /cart with the cart resolved against current prices.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c := cart.New()
	if sid, ok := h.sessionID(w, r, false); ok {
		var err error
		if c, err = h.carts.Load(ctx, sid); err != nil {
			writeError(w, r, err)
			return
		}
	}
	items, total, err := h.pricer.BuildItems(ctx, c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	lang := requestLang(r)
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("items", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, it := range items {
						e.Obj(func(e *jx.Encoder) {
							str(e, "key", it.Key)
							num(e, "product_id", it.Product.ID)
							str(e, "name", it.Product.Name.In(lang))
							str(e, "image", it.Product.Image)
							num(e, "quantity", int64(it.Quantity))
							e.Field("unit_price", func(e *jx.Encoder) { money(e, it.UnitPrice) })
							e.Field("subtotal", func(e *jx.Encoder) { money(e, it.Subtotal) })
							e.Field("options", func(e *jx.Encoder) {
								e.Arr(func(e *jx.Encoder) {
									for _, l := range it.Labels {
										e.Obj(func(e *jx.Encoder) {
											str(e, "option", l.Option)
											str(e, "value", l.Value)
										})
									}
								})
							})
						})
					}
				})
			})
			e.Field("total", func(e *jx.Encoder) { money(e, total) })
			num(e, "count", int64(c.Count()))
		})
	})
}
