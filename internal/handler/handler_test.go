package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/candle-shop/internal/delivery"
	"github.com/xenking/candle-shop/internal/domain/cart"
	"github.com/xenking/candle-shop/internal/domain/catalog"
	"github.com/xenking/candle-shop/internal/domain/order"
)

// --- Mock implementations ---

type noopTelemetry struct{}

func (noopTelemetry) MeterProvider() metric.MeterProvider  { return metricnoop.NewMeterProvider() }
func (noopTelemetry) TracerProvider() trace.TracerProvider { return tracenoop.NewTracerProvider() }

type mockCatalog struct {
	products   map[int64]*catalog.Product
	page       *catalog.Page
	lastFilter catalog.Filter
	err        error
}

var _ catalog.Repository = (*mockCatalog)(nil)

func (m *mockCatalog) GetProduct(_ context.Context, id int64) (*catalog.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.products[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return p, nil
}

func (m *mockCatalog) GetProducts(_ context.Context, ids []int64) ([]catalog.Product, error) {
	var out []catalog.Product
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out = append(out, *p)
		}
	}
	return out, m.err
}

func (m *mockCatalog) GetOption(context.Context, int64) (*catalog.Option, error) {
	return nil, catalog.ErrNotFound
}

func (m *mockCatalog) GetOptionValue(context.Context, int64) (*catalog.OptionValue, error) {
	return nil, catalog.ErrNotFound
}

func (m *mockCatalog) ListProducts(_ context.Context, f catalog.Filter) (*catalog.Page, error) {
	m.lastFilter = f
	if m.err != nil {
		return nil, m.err
	}
	return m.page, nil
}

func (m *mockCatalog) Home(context.Context) (*catalog.Home, error) {
	return &catalog.Home{}, m.err
}

func (m *mockCatalog) GetCollection(context.Context, string) (*catalog.Collection, error) {
	return nil, catalog.ErrNotFound
}

func (m *mockCatalog) CategoryTree(context.Context) (*catalog.CategoryTree, error) {
	return &catalog.CategoryTree{}, m.err
}

func (m *mockCatalog) ListScents(context.Context, *int64) (*catalog.ScentList, error) {
	return &catalog.ScentList{}, m.err
}

type memStore struct {
	carts   map[string]cart.Cart
	cleared []string
}

func (s *memStore) Load(_ context.Context, id string) (cart.Cart, error) {
	if c, ok := s.carts[id]; ok {
		return c, nil
	}
	return cart.New(), nil
}

func (s *memStore) Save(_ context.Context, id string, c cart.Cart) error {
	s.carts[id] = c
	return nil
}

func (s *memStore) Clear(_ context.Context, id string) error {
	delete(s.carts, id)
	s.cleared = append(s.cleared, id)
	return nil
}

type mockCheckouter struct {
	req   order.CheckoutRequest
	order *order.Order
	err   error
}

func (m *mockCheckouter) Checkout(_ context.Context, req order.CheckoutRequest) (*order.Order, error) {
	m.req = req
	return m.order, m.err
}

type stubLookup []delivery.Warehouse

func (s stubLookup) Warehouses(context.Context, string) []delivery.Warehouse { return s }

// --- Helpers ---

const sid = "0b6f3c7e-3f0a-4f7e-9c59-1a2b3c4d5e6f"

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func percent(n int) *int { return &n }

func scentedCandle() *catalog.Product {
	return &catalog.Product{
		ID:              12,
		Name:            catalog.Text{UK: "Свічка з ароматом", RU: "Свеча с ароматом"},
		Price:           dec("100"),
		OnSale:          true,
		DiscountPercent: percent(20),
		Available:       true,
		Options: []catalog.Option{
			{
				ID: 5, ProductID: 12, Required: true, InputType: catalog.InputButtons,
				Name: catalog.Text{UK: "Аромат", RU: "Аромат"},
				Values: []catalog.OptionValue{
					{ID: 9, OptionID: 5, Value: catalog.Text{UK: "Ваніль", RU: "Ваниль"}, PriceModifier: dec("15")},
					{ID: 10, OptionID: 5, Value: catalog.Text{UK: "Лаванда", RU: "Лаванда"}},
				},
			},
			{
				ID: 2, ProductID: 12, InputType: catalog.InputSelect,
				Name: catalog.Text{UK: "Гніт", RU: "Фитиль"},
				Values: []catalog.OptionValue{
					{ID: 7, OptionID: 2, Value: catalog.Text{UK: "Дерев'яний", RU: "Деревянный"}, PriceModifier: dec("20")},
				},
			},
		},
	}
}

type fixture struct {
	catalog  *mockCatalog
	store    *memStore
	checkout *mockCheckouter
	mux      *http.ServeMux
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		catalog: &mockCatalog{products: map[int64]*catalog.Product{
			12: scentedCandle(),
			30: {ID: 30, Name: catalog.Text{UK: "Розпродано"}, Price: dec("150"), Available: false},
		}},
		store:    &memStore{carts: map[string]cart.Cart{}},
		checkout: &mockCheckouter{},
		mux:      http.NewServeMux(),
	}
	h, err := New(Config{
		Catalog:   f.catalog,
		Carts:     f.store,
		Pricer:    cart.NewService(f.catalog),
		Orders:    f.checkout,
		Delivery:  stubLookup{{ID: "ref-1", Name: "Відділення №1"}},
		Session:   SessionConfig{TTL: time.Hour},
		Telemetry: noopTelemetry{},
	})
	require.NoError(t, err)
	h.Register(f.mux, func(next http.Handler) http.Handler { return next })
	return f
}

func (f *fixture) seedCart(t *testing.T, qty int) {
	t.Helper()
	c, _, err := cart.AddItem(cart.New(), scentedCandle(), cart.AddRequest{
		Quantity: qty,
		Options:  map[string]string{"5": "9"},
	})
	require.NoError(t, err)
	f.store.carts[sid] = c
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, req)
	return w
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func withSession(req *http.Request) *http.Request {
	req.AddCookie(&http.Cookie{Name: "sessionid", Value: sid})
	return req
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

// --- Tests ---

func TestAddToCart(t *testing.T) {
	f := newFixture(t)

	w := f.do(jsonRequest(http.MethodPost, "/cart/add", `{"pk": 12, "qty": 2, "options": {"5": "9", "2": ""}}`))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true,"items":2,"cart_key":"12_5:9","final_price":"95.00"}`, w.Body.String())

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "sessionid", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)

	c := f.store.carts[cookies[0].Value]
	line, ok := c.Line("12_5:9")
	require.True(t, ok)
	assert.Equal(t, 2, line.Quantity)
	assert.Equal(t, []cart.Label{{Option: "Аромат", Value: "Ваніль"}}, line.Labels)
}

func TestAddToCart_ReusesSession(t *testing.T) {
	f := newFixture(t)
	f.seedCart(t, 1)

	w := f.do(withSession(jsonRequest(http.MethodPost, "/cart/add", `{"pk": "12", "options": {"5": 9}}`)))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Result().Cookies())
	assert.Equal(t, 2, f.store.carts[sid].Count())
}

func TestAddToCart_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		lang    string
		status  int
		code    string
		message string
	}{
		{
			name: "missing required option", body: `{"pk": 12, "options": {"5": ""}}`,
			status: http.StatusBadRequest, code: "missing_required_option",
			message: "Оберіть значення для «Аромат»",
		},
		{
			name: "missing required option in russian", body: `{"pk": 12}`, lang: "ru-RU,ru;q=0.9",
			status: http.StatusBadRequest, code: "missing_required_option",
			message: "Выберите значение для «Аромат»",
		},
		{
			name: "foreign option", body: `{"pk": 12, "options": {"5": "9", "99": "1"}}`,
			status: http.StatusBadRequest, code: "invalid_option",
		},
		{
			name: "foreign value", body: `{"pk": 12, "options": {"5": "7"}}`,
			status: http.StatusBadRequest, code: "invalid_value",
			message: "Недійсне значення для «Аромат»",
		},
		{
			name: "options not an object", body: `{"pk": 12, "options": [9]}`,
			status: http.StatusBadRequest, code: "invalid_option_format",
		},
		{
			name: "out of stock", body: `{"pk": 30}`,
			status: http.StatusBadRequest, code: "out_of_stock",
		},
		{
			name: "quantity above the line limit", body: `{"pk": 12, "qty": 9223372036854775807, "options": {"5": "9"}}`,
			status: http.StatusBadRequest, code: "invalid_quantity",
			message: "Не більше 9999 шт. однієї позиції",
		},
		{
			name: "unknown product", body: `{"pk": 404}`,
			status: http.StatusNotFound, code: "not_found",
		},
		{
			name: "malformed body", body: `{"pk": `,
			status: http.StatusBadRequest, code: "invalid_payload",
		},
		{
			name: "missing pk", body: `{"qty": 1}`,
			status: http.StatusBadRequest, code: "invalid_payload",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := jsonRequest(http.MethodPost, "/cart/add", tt.body)
			if tt.lang != "" {
				req.Header.Set("Accept-Language", tt.lang)
			}

			w := f.do(req)

			assert.Equal(t, tt.status, w.Code)
			body := decodeBody(t, w)
			assert.Equal(t, false, body["ok"])
			assert.Equal(t, tt.code, body["error"])
			assert.NotEmpty(t, body["message"])
			if tt.message != "" {
				assert.Equal(t, tt.message, body["message"])
			}
			assert.Empty(t, f.store.carts, "failed add must not store a cart")
		})
	}
}

func TestUpdateCart(t *testing.T) {
	t.Run("increment", func(t *testing.T) {
		f := newFixture(t)
		f.seedCart(t, 2)

		w := f.do(withSession(jsonRequest(http.MethodPost, "/cart/update", `{"pk": "12_5:9", "action": "inc"}`)))

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"ok":true,"items":3,"item_qty":3,"item_subtotal":"285.00","total":"285.00"}`, w.Body.String())
		assert.Equal(t, 3, f.store.carts[sid].Count())
	})

	t.Run("set to zero removes line", func(t *testing.T) {
		f := newFixture(t)
		f.seedCart(t, 2)

		w := f.do(withSession(jsonRequest(http.MethodPost, "/cart/update", `{"pk": "12_5:9", "action": "set", "qty": 0}`)))

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"ok":true,"items":0,"item_qty":0,"item_subtotal":"0.00","total":"0.00"}`, w.Body.String())
		assert.Equal(t, 0, f.store.carts[sid].Len())
	})

	t.Run("stale key", func(t *testing.T) {
		f := newFixture(t)
		f.seedCart(t, 1)

		w := f.do(withSession(jsonRequest(http.MethodPost, "/cart/update", `{"pk": "12", "action": "inc"}`)))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "item_not_found", decodeBody(t, w)["error"])
	})

	t.Run("no session", func(t *testing.T) {
		f := newFixture(t)

		w := f.do(jsonRequest(http.MethodPost, "/cart/update", `{"pk": "12", "action": "inc"}`))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Empty(t, w.Result().Cookies())
	})

	t.Run("set above the line limit", func(t *testing.T) {
		f := newFixture(t)
		f.seedCart(t, 2)

		w := f.do(withSession(jsonRequest(http.MethodPost, "/cart/update", `{"pk": "12_5:9", "action": "set", "qty": "10000"}`)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid_quantity", decodeBody(t, w)["error"])
		assert.Equal(t, 2, f.store.carts[sid].Count())
	})

	t.Run("unknown action", func(t *testing.T) {
		f := newFixture(t)
		f.seedCart(t, 1)

		w := f.do(withSession(jsonRequest(http.MethodPost, "/cart/update", `{"pk": "12_5:9", "action": "double"}`)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "unknown_action", decodeBody(t, w)["error"])
	})
}

func TestGetCart(t *testing.T) {
	t.Run("no session", func(t *testing.T) {
		f := newFixture(t)

		w := f.do(httptest.NewRequest(http.MethodGet, "/cart", nil))

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"items":[],"total":"0.00","count":0}`, w.Body.String())
		assert.Empty(t, w.Result().Cookies())
	})

	t.Run("materialized", func(t *testing.T) {
		f := newFixture(t)
		f.seedCart(t, 2)

		w := f.do(withSession(httptest.NewRequest(http.MethodGet, "/cart?lang=ru", nil)))

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{
			"items": [{
				"key": "12_5:9",
				"product_id": 12,
				"name": "Свеча с ароматом",
				"image": "",
				"quantity": 2,
				"unit_price": "95.00",
				"subtotal": "190.00",
				"options": [{"option": "Аромат", "value": "Ваніль"}]
			}],
			"total": "190.00",
			"count": 2
		}`, w.Body.String())
	})
}

func checkoutForm() url.Values {
	return url.Values{
		"full_name":      {"Олена Коваль"},
		"phone":          {"+380501234567"},
		"email":          {"olena@example.com"},
		"city":           {"Київ"},
		"payment_method": {"cod"},
		"agree_to_terms": {"on"},
		"warehouse":      {"Відділення №1"},
	}
}

func formRequest(values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestCheckout(t *testing.T) {
	t.Run("success clears cart", func(t *testing.T) {
		f := newFixture(t)
		f.seedCart(t, 2)
		f.checkout.order = &order.Order{ID: 42}

		w := f.do(withSession(formRequest(checkoutForm())))

		require.Equal(t, http.StatusCreated, w.Code)
		assert.JSONEq(t, `{"ok":true,"order_id":42,"total":"190.00"}`, w.Body.String())
		assert.Equal(t, []string{sid}, f.store.cleared)

		req := f.checkout.req
		assert.True(t, req.Form.AgreeToTerms)
		assert.Equal(t, "cod", req.Form.PaymentMethod)
		assert.Equal(t, catalog.LangUK, req.Lang)
		require.Len(t, req.Items, 1)
		assert.True(t, req.Items[0].UnitPrice.Equal(dec("95")))
	})

	t.Run("validation errors", func(t *testing.T) {
		f := newFixture(t)
		f.seedCart(t, 1)
		f.checkout.err = &order.ValidationError{Fields: map[string]string{"email": "email"}}

		w := f.do(withSession(formRequest(checkoutForm())))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "invalid_form", body["error"])
		assert.Equal(t, map[string]any{"email": "email"}, body["fields"])
		assert.Empty(t, f.store.cleared)
	})

	t.Run("empty cart", func(t *testing.T) {
		f := newFixture(t)
		f.checkout.err = order.ErrEmptyCart

		w := f.do(formRequest(checkoutForm()))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "empty_cart", decodeBody(t, w)["error"])
		assert.Empty(t, f.checkout.req.Items)
	})

	t.Run("warehouse required", func(t *testing.T) {
		f := newFixture(t)
		f.checkout.err = order.ErrWarehouseRequired

		w := f.do(formRequest(checkoutForm()))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, map[string]any{"warehouse": "required"}, decodeBody(t, w)["fields"])
	})

	t.Run("persistence failure", func(t *testing.T) {
		f := newFixture(t)
		f.seedCart(t, 1)
		f.checkout.err = errors.New("connection reset")

		w := f.do(withSession(formRequest(checkoutForm())))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "internal", decodeBody(t, w)["error"])
		assert.NotContains(t, w.Body.String(), "connection reset")
		assert.Empty(t, f.store.cleared)
	})
}

func TestWarehouses(t *testing.T) {
	f := newFixture(t)

	w := f.do(httptest.NewRequest(http.MethodGet, "/api/nova-poshta-warehouses?city=Київ", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"warehouses":[{"id":"ref-1","name":"Відділення №1"}]}`, w.Body.String())
}

func TestListProducts(t *testing.T) {
	f := newFixture(t)
	f.catalog.page = &catalog.Page{
		Products:   []catalog.Product{*f.catalog.products[12]},
		Number:     2,
		TotalPages: 2,
		Total:      21,
	}

	w := f.do(httptest.NewRequest(http.MethodGet,
		"/api/products?q=%D0%B2%D0%B0%D0%BD%D1%96%D0%BB%D1%8C&page=2&sort=price_asc&min_price=abc&category=3", nil))

	require.Equal(t, http.StatusOK, w.Code)
	got := f.catalog.lastFilter
	assert.Equal(t, "ваніль", got.Query)
	assert.Equal(t, 2, got.Page)
	assert.Equal(t, catalog.SortPriceAsc, got.Sort)
	assert.Nil(t, got.MinPrice)
	require.NotNil(t, got.CategoryID)
	assert.Equal(t, int64(3), *got.CategoryID)

	body := decodeBody(t, w)
	assert.Equal(t, float64(21), body["total"])
	products := body["products"].([]any)
	require.Len(t, products, 1)
	p := products[0].(map[string]any)
	assert.Equal(t, "80.00", p["final_price"])
	assert.Equal(t, "100.00", p["price"])
	assert.Equal(t, true, p["has_options"])
}

func TestGetProduct(t *testing.T) {
	f := newFixture(t)

	t.Run("detail", func(t *testing.T) {
		w := f.do(httptest.NewRequest(http.MethodGet, "/api/products/12?lang=ru", nil))

		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "Свеча с ароматом", body["name"])
		options := body["options"].([]any)
		require.Len(t, options, 2)
		wick := options[1].(map[string]any)
		assert.Equal(t, "Фитиль", wick["name"])
		assert.Equal(t, "select", wick["input_type"])
		value := wick["values"].([]any)[0].(map[string]any)
		assert.Equal(t, "20.00", value["price_modifier"])
	})

	t.Run("not a number", func(t *testing.T) {
		w := f.do(httptest.NewRequest(http.MethodGet, "/api/products/abc", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("unknown", func(t *testing.T) {
		w := f.do(httptest.NewRequest(http.MethodGet, "/api/products/999", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestRequestLang(t *testing.T) {
	tests := []struct {
		name   string
		target string
		cookie string
		accept string
		want   catalog.Lang
	}{
		{name: "default", target: "/", want: catalog.LangUK},
		{name: "query", target: "/?lang=ru", cookie: "uk", want: catalog.LangRU},
		{name: "cookie", target: "/", cookie: "ru", accept: "uk", want: catalog.LangRU},
		{name: "accept language", target: "/", accept: "en-US,ru;q=0.8", want: catalog.LangRU},
		{name: "unknown query falls through", target: "/?lang=de", accept: "ru", want: catalog.LangRU},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "lang", Value: tt.cookie})
			}
			if tt.accept != "" {
				req.Header.Set("Accept-Language", tt.accept)
			}
			assert.Equal(t, tt.want, requestLang(req))
		})
	}
}

func TestCatalogFailure(t *testing.T) {
	f := newFixture(t)
	f.catalog.err = errors.New("pool closed")

	w := f.do(httptest.NewRequest(http.MethodGet, "/api/home", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal", decodeBody(t, w)["error"])
}
