package email

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/candle-shop/internal/domain/cart"
	"github.com/xenking/candle-shop/internal/domain/catalog"
	"github.com/xenking/candle-shop/internal/domain/order"
)

type sendgridV3Payload struct {
	Personalizations []struct {
		To      []map[string]string `json:"to"`
		Subject string              `json:"subject"`
	} `json:"personalizations"`
	From    map[string]string `json:"from"`
	ReplyTo map[string]string `json:"reply_to"`
	Content []struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	} `json:"content"`
}

func testSummary() *order.Summary {
	return &order.Summary{
		Order: &order.Order{
			ID: 7,
			Contact: order.Contact{
				FullName:      "Олена",
				Phone:         "+380501234567",
				Email:         "olena@example.com",
				City:          "Львів",
				PaymentMethod: order.PaymentCard,
				Notes:         "<script>x</script>",
			},
			Warehouse: "Відділення №3",
		},
		Items: []order.SummaryItem{{
			Name:     "Свічка",
			Quantity: 2,
			Subtotal: decimal.RequireFromString("190"),
			Options:  []cart.Label{{Option: "Аромат", Value: "Ваніль"}},
		}},
		Total: decimal.RequireFromString("190"),
		Lang:  catalog.LangUK,
	}
}

func TestNotifyOrder(t *testing.T) {
	var payload sendgridV3Payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v3/mail/send", r.URL.Path)
		assert.Equal(t, "Bearer SG.key", r.Header.Get("Authorization"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &payload))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := New(Config{APIKey: "SG.key", FromEmail: "shop@example.com", FromName: "Shop", To: "owner@example.com", Host: srv.URL})

	require.True(t, n.NotifyOrder(context.Background(), testSummary()))

	require.Len(t, payload.Personalizations, 1)
	assert.Equal(t, "Нове замовлення #7", payload.Personalizations[0].Subject)
	assert.Equal(t, "owner@example.com", payload.Personalizations[0].To[0]["email"])
	assert.Equal(t, "shop@example.com", payload.From["email"])
	assert.Equal(t, "olena@example.com", payload.ReplyTo["email"])

	require.Len(t, payload.Content, 2)
	assert.Equal(t, "text/plain", payload.Content[0].Type)
	assert.Contains(t, payload.Content[0].Value, "- Свічка × 2 — 190.00 (Аромат: Ваніль)")
	assert.Contains(t, payload.Content[0].Value, "Payment: Оплата карткою")
	assert.Equal(t, "text/html", payload.Content[1].Type)
	assert.NotContains(t, payload.Content[1].Value, "<script>")
}

func TestNotifyOrder_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	defer srv.Close()

	n := New(Config{APIKey: "SG.bad", FromEmail: "shop@example.com", To: "owner@example.com", Host: srv.URL})

	assert.False(t, n.NotifyOrder(context.Background(), testSummary()))
}

func TestNotifyOrder_NotConfigured(t *testing.T) {
	n := New(Config{FromEmail: "shop@example.com", To: "owner@example.com"})

	assert.False(t, n.Enabled())
	assert.False(t, n.NotifyOrder(context.Background(), testSummary()))
}

func TestRender_EscapesCustomerText(t *testing.T) {
	s := testSummary()
	s.Order.Contact.FullName = "<Ann>"

	_, plain, rich := render(s)

	assert.Contains(t, plain, "Name: <Ann>\n")
	assert.Contains(t, rich, "<td>&lt;Ann&gt;</td>")
	assert.Contains(t, rich, "&lt;script&gt;x&lt;/script&gt;")
	assert.NotContains(t, rich, "<script>")
	assert.Contains(t, rich, "<li>Свічка × 2 — 190.00 (Аромат: Ваніль)</li>")
}
