// Package email sends order notifications to the shop operator through
// SendGrid.
package email

import (
	"context"
	"html"
	"strconv"
	"strings"

	"github.com/go-faster/sdk/zctx"
	"github.com/microcosm-cc/bluemonday"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/xenking/candle-shop/internal/domain/catalog"
	"github.com/xenking/candle-shop/internal/domain/order"
)

// Config configures the operator e-mail.
type Config struct {
	APIKey    string
	FromEmail string
	FromName  string
	To        string
	// Host overrides the SendGrid API host, e.g. for tests.
	Host string
}

// Notifier e-mails order summaries to the operator.
type Notifier struct {
	cfg    Config
	client *sendgrid.Client
}

var _ order.Notifier = (*Notifier)(nil)

// New creates a Notifier.
func New(cfg Config) *Notifier {
	client := sendgrid.NewSendClient(cfg.APIKey)
	if cfg.Host != "" {
		client.Request.BaseURL = strings.TrimRight(cfg.Host, "/") + "/v3/mail/send"
	}
	return &Notifier{cfg: cfg, client: client}
}

// Enabled reports whether an API key and both addresses are configured.
func (n *Notifier) Enabled() bool {
	return n.cfg.APIKey != "" && n.cfg.FromEmail != "" && n.cfg.To != ""
}

// NotifyOrder implements order.Notifier.
func (n *Notifier) NotifyOrder(ctx context.Context, s *order.Summary) bool {
	lg := zctx.From(ctx).Named("email")
	if !n.Enabled() {
		lg.Warn("SendGrid is not configured, message dropped")
		return false
	}

	subject, plain, rich := render(s)
	message := mail.NewSingleEmail(
		mail.NewEmail(n.cfg.FromName, n.cfg.FromEmail),
		subject,
		mail.NewEmail("", n.cfg.To),
		plain,
		rich,
	)
	if s.Order.Contact.Email != "" {
		message.SetReplyTo(mail.NewEmail(s.Order.Contact.FullName, s.Order.Contact.Email))
	}

	resp, err := n.client.SendWithContext(ctx, message)
	if err != nil {
		lg.Error("SendGrid send failed", zap.Error(err))
		return false
	}
	if resp.StatusCode >= 400 {
		lg.Error("SendGrid rejected message",
			zap.Int("status", resp.StatusCode),
			zap.String("body", truncate(resp.Body, 500)),
		)
		return false
	}
	lg.Info("Order e-mail sent", zap.Int64("order_id", s.Order.ID))
	return true
}

// body limits the assembled HTML to the plain document markup render emits.
var body = bluemonday.UGCPolicy()

func esc(s string) string { return html.EscapeString(s) }

var subjects = catalog.Text{UK: "Нове замовлення", RU: "Новый заказ"}

// render builds the subject, plain-text and HTML bodies.
func render(s *order.Summary) (subject, plain, rich string) {
	o := s.Order
	subject = subjects.In(s.Lang) + " #" + strconv.FormatInt(o.ID, 10)

	rows := [][2]string{
		{"Name", o.Contact.FullName},
		{"Phone", o.Contact.Phone},
		{"Email", o.Contact.Email},
		{"City", o.Contact.City},
		{"Warehouse", o.Warehouse},
		{"Payment", o.Contact.PaymentMethod.Label(s.Lang)},
	}

	var p, h strings.Builder
	h.WriteString("<h2>" + esc(subject) + "</h2><table>")
	p.WriteString(subject + "\n\n")
	for _, r := range rows {
		p.WriteString(r[0] + ": " + r[1] + "\n")
		h.WriteString("<tr><th>" + r[0] + "</th><td>" + esc(r[1]) + "</td></tr>")
	}
	h.WriteString("</table><ul>")
	p.WriteString("\n")
	for _, it := range s.Items {
		item := it.Name + " × " + strconv.Itoa(it.Quantity) + " — " + it.Subtotal.StringFixed(2)
		if len(it.Options) > 0 {
			opts := make([]string, len(it.Options))
			for i, l := range it.Options {
				opts[i] = l.Option + ": " + l.Value
			}
			item += " (" + strings.Join(opts, ", ") + ")"
		}
		p.WriteString("- " + item + "\n")
		h.WriteString("<li>" + esc(item) + "</li>")
	}
	total := s.Total.StringFixed(2)
	p.WriteString("\nTotal: " + total + "\n")
	h.WriteString("</ul><p><b>Total:</b> " + total + "</p>")
	if o.Contact.Notes != "" {
		p.WriteString("\nNotes: " + o.Contact.Notes + "\n")
		h.WriteString("<p><b>Notes:</b> " + esc(o.Contact.Notes) + "</p>")
	}
	return subject, p.String(), body.Sanitize(h.String())
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
