package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/candle-shop/internal/domain/catalog"
)

// Status is the back-office lifecycle state of an order.
type Status string

const (
	StatusNew        Status = "new"
	StatusProcessing Status = "processing"
	StatusSent       Status = "sent"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusProcessing, StatusSent, StatusDelivered, StatusCancelled:
		return true
	default:
		return false
	}
}

// PaymentMethod is how the customer pays for an order.
type PaymentMethod string

const (
	PaymentCard PaymentMethod = "card"
	// PaymentCOD is cash on delivery.
	PaymentCOD PaymentMethod = "cod"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	return m == PaymentCard || m == PaymentCOD
}

// Label returns the customer-facing name of m.
func (m PaymentMethod) Label(lang catalog.Lang) string {
	labels := map[PaymentMethod]catalog.Text{
		PaymentCard: {UK: "Оплата карткою", RU: "Оплата картой"},
		PaymentCOD:  {UK: "Оплата накладеним платежем", RU: "Оплата наложенным платежом"},
	}
	if t, ok := labels[m]; ok {
		return t.In(lang)
	}
	return string(m)
}

// Contact holds the customer and payment details collected at checkout.
type Contact struct {
	FullName      string
	Phone         string
	Email         string
	City          string
	PaymentMethod PaymentMethod
	Notes         string
}

// Order is a placed customer order.
type Order struct {
	ID        int64
	Contact   Contact
	Warehouse string
	Status    Status
	Lines     []Line
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Total sums line subtotals.
func (o *Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range o.Lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Line is one purchased product. Price is the unit price frozen at checkout.
type Line struct {
	ID int64
	// ProductID is nil once the product has been deleted from the catalog.
	ProductID *int64
	Quantity  int
	Price     decimal.Decimal
	Options   []LineOption
}

// Subtotal returns Price * Quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// LineOption is a snapshot of a chosen option value, independent of later
// catalog edits.
type LineOption struct {
	OptionName    string
	ValueName     string
	PriceModifier decimal.Decimal
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create stores o with its lines and option snapshots atomically and
	// fills in the generated ids and timestamps.
	Create(ctx context.Context, o *Order) error
}

// OptionReader resolves catalog options for order snapshots.
type OptionReader interface {
	GetOption(ctx context.Context, id int64) (*catalog.Option, error)
	GetOptionValue(ctx context.Context, id int64) (*catalog.OptionValue, error)
}
