package telegram

import (
	"strconv"
	"strings"

	"github.com/xenking/candle-shop/internal/domain/catalog"
	"github.com/xenking/candle-shop/internal/domain/order"
)

// escaper replaces the three characters Telegram HTML reserves. Customer
// text such as "<Ann>" is kept verbatim instead of being dropped as a tag.
var escaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func esc(s string) string {
	return escaper.Replace(s)
}

var labels = map[string]catalog.Text{
	"title":     {UK: "Нове замовлення", RU: "Новый заказ"},
	"client":    {UK: "Клієнт", RU: "Клиент"},
	"phone":     {UK: "Телефон", RU: "Телефон"},
	"city":      {UK: "Місто", RU: "Город"},
	"warehouse": {UK: "Відділення", RU: "Отделение"},
	"payment":   {UK: "Оплата", RU: "Оплата"},
	"items":     {UK: "Товари", RU: "Товары"},
	"total":     {UK: "Разом", RU: "Итого"},
	"notes":     {UK: "Нотатки", RU: "Примечания"},
}

func label(key string, lang catalog.Lang) string {
	return labels[key].In(lang)
}

// Format renders an order summary as Telegram HTML.
func Format(s *order.Summary) string {
	var (
		o    = s.Order
		lang = s.Lang
		b    strings.Builder
	)
	line := func(parts ...string) {
		for _, p := range parts {
			b.WriteString(p)
		}
		b.WriteByte('\n')
	}
	field := func(key, value string) {
		line("<b>", label(key, lang), ":</b> ", esc(value))
	}

	line("🧾 <b>", label("title", lang), " #", strconv.FormatInt(o.ID, 10), "</b>")
	field("client", o.Contact.FullName)
	field("phone", o.Contact.Phone)
	line("<b>Email:</b> ", esc(o.Contact.Email))
	field("city", o.Contact.City)
	field("warehouse", o.Warehouse)
	if o.Contact.PaymentMethod != "" {
		field("payment", o.Contact.PaymentMethod.Label(lang))
	}

	line()
	line("<b>", label("items", lang), ":</b>")
	for _, it := range s.Items {
		line("• ", esc(it.Name), " × ", strconv.Itoa(it.Quantity), " — ", it.Subtotal.StringFixed(2))
		if len(it.Options) > 0 {
			opts := make([]string, len(it.Options))
			for i, l := range it.Options {
				opts[i] = l.Option + ": " + l.Value
			}
			line("  └ ", esc(strings.Join(opts, ", ")))
		}
	}

	line()
	b.WriteString("<b>" + label("total", lang) + ":</b> " + s.Total.StringFixed(2))

	if o.Contact.Notes != "" {
		b.WriteString("\n\n")
		b.WriteString("<b>" + label("notes", lang) + ":</b> " + esc(o.Contact.Notes))
	}
	return b.String()
}
