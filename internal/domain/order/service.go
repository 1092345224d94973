package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/candle-shop/internal/domain/cart"
	"github.com/xenking/candle-shop/internal/domain/catalog"
)

// Sentinel errors for checkout.
var (
	ErrInvalidForm       = errors.New("invalid checkout form")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrWarehouseRequired = errors.New("warehouse is required")
)

// DefaultNotifyTimeout bounds the operator notification sent after checkout.
const DefaultNotifyTimeout = 10 * time.Second

// Summary is what operators are told about a new order.
type Summary struct {
	Order *Order
	Items []SummaryItem
	Total decimal.Decimal
	Lang  catalog.Lang
}

// SummaryItem is one purchased product in a Summary.
type SummaryItem struct {
	Name     string
	Quantity int
	Subtotal decimal.Decimal
	Options  []cart.Label
}

// Notifier pushes an order summary to operators. Implementations report
// failure through the return value and never panic or block past ctx.
type Notifier interface {
	NotifyOrder(ctx context.Context, s *Summary) bool
}

// Telemetry provides metric and trace providers.
type Telemetry interface {
	MeterProvider() metric.MeterProvider
	TracerProvider() trace.TracerProvider
}

// CheckoutRequest holds the input for placing an order from a cart.
type CheckoutRequest struct {
	Form CheckoutForm
	// Items is the materialized cart; their unit prices become the order
	// line prices unchanged.
	Items []cart.Item
	Lang  catalog.Lang
}

// Service encapsulates order placement business logic.
type Service struct {
	orders   Repository
	options  OptionReader
	notifier Notifier

	tracer        trace.Tracer
	ordersCreated metric.Int64Counter
	notifyFailed  metric.Int64Counter
	notifyTimeout time.Duration
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	orders Repository,
	options OptionReader,
	notifier Notifier,
	tel Telemetry,
) (*Service, error) {
	meter := tel.MeterProvider().Meter("candle/order")
	ordersCreated, err := meter.Int64Counter("candle.orders.created",
		metric.WithDescription("Orders placed at checkout"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "orders counter")
	}
	notifyFailed, err := meter.Int64Counter("candle.notifications.failed",
		metric.WithDescription("Order notifications that could not be delivered"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "notifications counter")
	}
	return &Service{
		orders:        orders,
		options:       options,
		notifier:      notifier,
		tracer:        tel.TracerProvider().Tracer("candle/order"),
		ordersCreated: ordersCreated,
		notifyFailed:  notifyFailed,
		notifyTimeout: DefaultNotifyTimeout,
	}, nil
}

// Checkout validates the form and cart, persists the order and notifies
// operators. Notification failures are logged and never fail the checkout.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.Checkout")
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	form := req.Form
	form.Normalize()
	if err := form.Validate(); err != nil {
		return nil, err
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyCart
	}
	if form.Warehouse == "" {
		return nil, ErrWarehouseRequired
	}

	o, err := s.CreateOrder(ctx, form.Contact(), req.Items, form.Warehouse, req.Lang)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.Int64("order.id", o.ID),
		attribute.Int("order.lines", len(o.Lines)),
	)

	s.notify(ctx, summarize(o, req.Items, req.Lang))
	return o, nil
}

// CreateOrder persists an order for the resolved cart items using their
// already computed unit prices. Option snapshots are taken from the current
// catalog; options or values deleted since the item was added are skipped.
func (s *Service) CreateOrder(
	ctx context.Context,
	contact Contact,
	items []cart.Item,
	warehouse string,
	lang catalog.Lang,
) (*Order, error) {
	o := &Order{
		Contact:   contact,
		Warehouse: warehouse,
		Status:    StatusNew,
		Lines:     make([]Line, 0, len(items)),
	}
	for _, it := range items {
		productID := it.Product.ID
		line := Line{
			ProductID: &productID,
			Quantity:  it.Quantity,
			Price:     it.UnitPrice,
		}
		for _, sel := range it.Options {
			snap, ok, err := s.snapshot(ctx, sel, lang)
			if err != nil {
				return nil, errors.Wrapf(err, "snapshot option %d", sel.OptionID)
			}
			if ok {
				line.Options = append(line.Options, snap)
			}
		}
		o.Lines = append(o.Lines, line)
	}

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	s.ordersCreated.Add(ctx, 1)

	zctx.From(ctx).Info("Order created",
		zap.Int64("order_id", o.ID),
		zap.Int("lines", len(o.Lines)),
		zap.String("total", o.Total().StringFixed(2)),
	)
	return o, nil
}

func (s *Service) snapshot(ctx context.Context, sel cart.Selection, lang catalog.Lang) (LineOption, bool, error) {
	if sel.ValueID == 0 {
		return LineOption{}, false, nil
	}
	opt, err := s.options.GetOption(ctx, sel.OptionID)
	if errors.Is(err, catalog.ErrNotFound) {
		return LineOption{}, false, nil
	}
	if err != nil {
		return LineOption{}, false, err
	}
	val, err := s.options.GetOptionValue(ctx, sel.ValueID)
	if errors.Is(err, catalog.ErrNotFound) {
		return LineOption{}, false, nil
	}
	if err != nil {
		return LineOption{}, false, err
	}
	return LineOption{
		OptionName:    opt.Name.In(lang),
		ValueName:     val.Value.In(lang),
		PriceModifier: val.PriceModifier,
	}, true, nil
}

func (s *Service) notify(ctx context.Context, sum *Summary) {
	lg := zctx.From(ctx).With(zap.Int64("order_id", sum.Order.ID))

	// The order is committed; a cancelled request must not cut the
	// notification short.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()

	ok := func() (ok bool) {
		defer func() {
			if r := recover(); r != nil {
				lg.Error("Order notifier panicked", zap.Any("panic", r))
				ok = false
			}
		}()
		return s.notifier.NotifyOrder(ctx, sum)
	}()
	if !ok {
		s.notifyFailed.Add(ctx, 1)
		lg.Warn("Order notification failed")
		return
	}
	lg.Info("Order notification sent")
}

func summarize(o *Order, items []cart.Item, lang catalog.Lang) *Summary {
	sum := &Summary{
		Order: o,
		Items: make([]SummaryItem, len(items)),
		Total: o.Total(),
		Lang:  lang,
	}
	for i, it := range items {
		sum.Items[i] = SummaryItem{
			Name:     it.Product.Name.In(lang),
			Quantity: it.Quantity,
			Subtotal: it.Subtotal,
			Options:  it.Labels,
		}
	}
	return sum
}
