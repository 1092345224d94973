// Package handler implements the storefront HTTP API on net/http.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"

	"github.com/xenking/candle-shop/internal/delivery"
	"github.com/xenking/candle-shop/internal/domain/cart"
	"github.com/xenking/candle-shop/internal/domain/catalog"
	"github.com/xenking/candle-shop/internal/domain/order"
)

// maxBodySize limits JSON request bodies.
const maxBodySize = 64 << 10

// CartStore loads and saves session carts.
type CartStore interface {
	Load(ctx context.Context, sessionID string) (cart.Cart, error)
	Save(ctx context.Context, sessionID string, c cart.Cart) error
	Clear(ctx context.Context, sessionID string) error
}

// CartPricer resolves carts against the live catalog.
type CartPricer interface {
	UpdateItem(ctx context.Context, c cart.Cart, key string, action cart.Action, qty int) (cart.Cart, *cart.UpdateResult, error)
	BuildItems(ctx context.Context, c cart.Cart) ([]cart.Item, decimal.Decimal, error)
}

// Checkouter places orders.
type Checkouter interface {
	Checkout(ctx context.Context, req order.CheckoutRequest) (*order.Order, error)
}

// SessionConfig describes the session cookie.
type SessionConfig struct {
	CookieName string
	Secure     bool
	TTL        time.Duration
}

// Config holds the Handler dependencies.
type Config struct {
	Catalog   catalog.Repository
	Carts     CartStore
	Pricer    CartPricer
	Orders    Checkouter
	Delivery  delivery.Lookup
	Session   SessionConfig
	Telemetry order.Telemetry
}

// Handler serves the storefront API.
type Handler struct {
	catalog  catalog.Repository
	carts    CartStore
	pricer   CartPricer
	orders   Checkouter
	delivery delivery.Lookup
	session  SessionConfig

	cartAdds metric.Int64Counter
}

// New creates a Handler.
func New(cfg Config) (*Handler, error) {
	if cfg.Session.CookieName == "" {
		cfg.Session.CookieName = "sessionid"
	}
	meter := cfg.Telemetry.MeterProvider().Meter("candle/handler")
	cartAdds, err := meter.Int64Counter("candle.cart.adds",
		metric.WithDescription("Successful add-to-cart requests"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "cart adds counter")
	}
	return &Handler{
		catalog:  cfg.Catalog,
		carts:    cfg.Carts,
		pricer:   cfg.Pricer,
		orders:   cfg.Orders,
		delivery: cfg.Delivery,
		session:  cfg.Session,
		cartAdds: cartAdds,
	}, nil
}

// Register mounts the storefront routes on mux. limit wraps the endpoints
// that mutate carts or call external services.
func (h *Handler) Register(mux *http.ServeMux, limit func(http.Handler) http.Handler) {
	mux.HandleFunc("GET /api/home", h.Home)
	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/products/{id}", h.GetProduct)
	mux.HandleFunc("GET /api/categories", h.Categories)
	mux.HandleFunc("GET /api/collections/{code}", h.GetCollection)
	mux.HandleFunc("GET /api/scents", h.Scents)

	mux.HandleFunc("GET /cart", h.GetCart)
	mux.Handle("POST /cart/add", limit(http.HandlerFunc(h.AddToCart)))
	mux.Handle("POST /cart/update", limit(http.HandlerFunc(h.UpdateCart)))
	mux.Handle("POST /checkout", limit(http.HandlerFunc(h.Checkout)))
	mux.Handle("GET /api/nova-poshta-warehouses", limit(http.HandlerFunc(h.Warehouses)))
}
