package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/candle-shop/internal/domain/cart"
	"github.com/xenking/candle-shop/internal/domain/catalog"
	"github.com/xenking/candle-shop/internal/domain/order"
	"github.com/xenking/candle-shop/internal/session"
)

// errInvalidPayload is returned for request bodies that cannot be parsed.
var errInvalidPayload = errors.New("invalid payload")

func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	fn(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func money(e *jx.Encoder, d decimal.Decimal) {
	e.Str(d.StringFixed(2))
}

func str(e *jx.Encoder, name, v string) {
	e.Field(name, func(e *jx.Encoder) { e.Str(v) })
}

func num(e *jx.Encoder, name string, v int64) {
	e.Field(name, func(e *jx.Encoder) { e.Int64(v) })
}

func boolean(e *jx.Encoder, name string, v bool) {
	e.Field(name, func(e *jx.Encoder) { e.Bool(v) })
}

// apiError is a client visible failure.
type apiError struct {
	status int
	code   string
	msg    catalog.Text
	fields map[string]string
}

var (
	errNotFound = apiError{http.StatusNotFound, "not_found",
		catalog.Text{UK: "Не знайдено", RU: "Не найдено"}, nil}
	errPayload = apiError{http.StatusBadRequest, "invalid_payload",
		catalog.Text{UK: "Некоректний запит", RU: "Некорректный запрос"}, nil}
	errInternal = apiError{http.StatusInternalServerError, "internal",
		catalog.Text{UK: "Внутрішня помилка сервера", RU: "Внутренняя ошибка сервера"}, nil}
)

// classify maps domain errors to API errors. Unknown errors become 500.
func classify(err error) (apiError, bool) {
	var (
		missing      *cart.MissingOptionError
		invalidValue *cart.InvalidValueError
		form         *order.ValidationError
	)
	switch {
	case errors.Is(err, errInvalidPayload):
		return errPayload, true
	case errors.Is(err, catalog.ErrNotFound):
		return errNotFound, true
	case errors.As(err, &missing):
		return apiError{http.StatusBadRequest, "missing_required_option", catalog.Text{
			UK: fmt.Sprintf("Оберіть значення для «%s»", missing.Name.In(catalog.LangUK)),
			RU: fmt.Sprintf("Выберите значение для «%s»", missing.Name.In(catalog.LangRU)),
		}, nil}, true
	case errors.Is(err, cart.ErrInvalidOption):
		return apiError{http.StatusBadRequest, "invalid_option", catalog.Text{
			UK: "Опція не належить цьому товару",
			RU: "Опция не относится к этому товару",
		}, nil}, true
	case errors.As(err, &invalidValue):
		return apiError{http.StatusBadRequest, "invalid_value", catalog.Text{
			UK: fmt.Sprintf("Недійсне значення для «%s»", invalidValue.OptionName.In(catalog.LangUK)),
			RU: fmt.Sprintf("Недопустимое значение для «%s»", invalidValue.OptionName.In(catalog.LangRU)),
		}, nil}, true
	case errors.Is(err, cart.ErrInvalidOptionFormat):
		return apiError{http.StatusBadRequest, "invalid_option_format", catalog.Text{
			UK: "Некоректний формат опцій",
			RU: "Некорректный формат опций",
		}, nil}, true
	case errors.Is(err, cart.ErrOutOfStock):
		return apiError{http.StatusBadRequest, "out_of_stock", catalog.Text{
			UK: "Товару немає в наявності",
			RU: "Товара нет в наличии",
		}, nil}, true
	case errors.Is(err, cart.ErrQuantityTooLarge):
		return apiError{http.StatusBadRequest, "invalid_quantity", catalog.Text{
			UK: fmt.Sprintf("Не більше %d шт. однієї позиції", cart.MaxQuantity),
			RU: fmt.Sprintf("Не более %d шт. одной позиции", cart.MaxQuantity),
		}, nil}, true
	case errors.Is(err, cart.ErrItemNotFound):
		return apiError{http.StatusNotFound, "item_not_found", catalog.Text{
			UK: "Товар не знайдено в кошику",
			RU: "Товар не найден в корзине",
		}, nil}, true
	case errors.Is(err, cart.ErrUnknownAction):
		return apiError{http.StatusBadRequest, "unknown_action", catalog.Text{
			UK: "Невідома дія",
			RU: "Неизвестное действие",
		}, nil}, true
	case errors.As(err, &form):
		return apiError{http.StatusBadRequest, "invalid_form", catalog.Text{
			UK: "Перевірте правильність заповнення форми",
			RU: "Проверьте правильность заполнения формы",
		}, form.Fields}, true
	case errors.Is(err, order.ErrEmptyCart):
		return apiError{http.StatusBadRequest, "empty_cart", catalog.Text{
			UK: "Кошик порожній",
			RU: "Корзина пуста",
		}, nil}, true
	case errors.Is(err, order.ErrWarehouseRequired):
		return apiError{http.StatusBadRequest, "warehouse_required", catalog.Text{
			UK: "Оберіть відділення Нової Пошти",
			RU: "Выберите отделение Новой Почты",
		}, map[string]string{"warehouse": "required"}}, true
	default:
		return errInternal, false
	}
}

// writeError renders {ok:false, error, message[, fields]}.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ae, known := classify(err)
	if !known {
		zctx.From(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	lang := requestLang(r)
	writeJSON(w, ae.status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			boolean(e, "ok", false)
			str(e, "error", ae.code)
			str(e, "message", ae.msg.In(lang))
			if len(ae.fields) > 0 {
				e.Field("fields", func(e *jx.Encoder) {
					e.Obj(func(e *jx.Encoder) {
						for name, tag := range ae.fields {
							str(e, name, tag)
						}
					})
				})
			}
		})
	})
}

// requestLang picks the language from the lang query parameter, the lang
// cookie or Accept-Language, in that order.
func requestLang(r *http.Request) catalog.Lang {
	if lang, ok := catalog.ParseLang(r.URL.Query().Get("lang")); ok {
		return lang
	}
	if c, err := r.Cookie("lang"); err == nil {
		if lang, ok := catalog.ParseLang(c.Value); ok {
			return lang
		}
	}
	for _, tag := range strings.Split(r.Header.Get("Accept-Language"), ",") {
		tag, _, _ = strings.Cut(tag, ";")
		if lang, ok := catalog.ParseLang(tag); ok {
			return lang
		}
	}
	return catalog.DefaultLang
}

// sessionID returns the visitor session id. When create is set, a missing
// or malformed cookie is replaced by a new session.
func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request, create bool) (string, bool) {
	if c, err := r.Cookie(h.session.CookieName); err == nil && session.ValidID(c.Value) {
		return c.Value, true
	}
	if !create {
		return "", false
	}
	id := session.NewID()
	http.SetCookie(w, &http.Cookie{
		Name:     h.session.CookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(h.session.TTL.Seconds()),
		HttpOnly: true,
		Secure:   h.session.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return id, true
}
