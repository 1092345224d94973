// Package notify composes order notifiers.
package notify

import (
	"context"

	"github.com/xenking/candle-shop/internal/domain/order"
)

// Multi sends a summary to every notifier. It reports success only when all
// of them succeed; one failing notifier does not stop the others.
type Multi []order.Notifier

var _ order.Notifier = Multi(nil)

// NotifyOrder implements order.Notifier.
func (m Multi) NotifyOrder(ctx context.Context, s *order.Summary) bool {
	ok := true
	for _, n := range m {
		if !n.NotifyOrder(ctx, s) {
			ok = false
		}
	}
	return ok
}

// Nop accepts every summary without sending it anywhere.
type Nop struct{}

var _ order.Notifier = Nop{}

// NotifyOrder implements order.Notifier.
func (Nop) NotifyOrder(context.Context, *order.Summary) bool { return true }
