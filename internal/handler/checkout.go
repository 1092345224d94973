package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/candle-shop/internal/domain/cart"
	"github.com/xenking/candle-shop/internal/domain/order"
)

// checkboxOn reports whether an HTML checkbox value means "checked".
func checkboxOn(v string) bool {
	switch v {
	case "on", "true", "1", "yes":
		return true
	default:
		return false
	}
}

// Checkout serves POST /checkout with a form-encoded body.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := r.ParseForm(); err != nil {
		writeError(w, r, errors.Wrap(errInvalidPayload, err.Error()))
		return
	}
	form := order.CheckoutForm{
		FullName:      r.PostForm.Get("full_name"),
		Phone:         r.PostForm.Get("phone"),
		Email:         r.PostForm.Get("email"),
		City:          r.PostForm.Get("city"),
		PaymentMethod: r.PostForm.Get("payment_method"),
		Notes:         r.PostForm.Get("notes"),
		AgreeToTerms:  checkboxOn(r.PostForm.Get("agree_to_terms")),
		Warehouse:     r.PostForm.Get("warehouse"),
	}

	c := cart.New()
	sid, hasSession := h.sessionID(w, r, false)
	if hasSession {
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

	o, err := h.orders.Checkout(ctx, order.CheckoutRequest{
		Form:  form,
		Items: items,
		Lang:  requestLang(r),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if hasSession {
		// The order is committed; a stale cart is only an annoyance.
		if err := h.carts.Clear(ctx, sid); err != nil {
			zctx.From(ctx).Warn("Clear cart after checkout",
				zap.Int64("order_id", o.ID),
				zap.Error(err),
			)
		}
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			boolean(e, "ok", true)
			num(e, "order_id", o.ID)
			e.Field("total", func(e *jx.Encoder) { money(e, total) })
		})
	})
}
