package telegram

import (
	"context"
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

func testSummary(lang catalog.Lang) *order.Summary {
	return &order.Summary{
		Order: &order.Order{
			ID: 42,
			Contact: order.Contact{
				FullName:      "Олена <b>Коваль</b>",
				Phone:         "+380501234567",
				Email:         "o@example.com",
				City:          "Київ",
				PaymentMethod: order.PaymentCOD,
				Notes:         "Дзвоніть & чекайте",
			},
			Warehouse: "Відділення №1",
		},
		Items: []order.SummaryItem{
			{
				Name:     "Свічка",
				Quantity: 3,
				Subtotal: decimal.RequireFromString("285"),
				Options:  []cart.Label{{Option: "Аромат", Value: "Ваніль"}, {Option: "Гніт", Value: "Бавовна"}},
			},
			{Name: "Тюльпан", Quantity: 1, Subtotal: decimal.RequireFromString("250")},
		},
		Total: decimal.RequireFromString("535"),
		Lang:  lang,
	}
}

func TestFormat(t *testing.T) {
	want := "🧾 <b>Нове замовлення #42</b>\n" +
		"<b>Клієнт:</b> Олена Коваль\n" +
		"<b>Телефон:</b> +380501234567\n" +
		"<b>Email:</b> o@example.com\n" +
		"<b>Місто:</b> Київ\n" +
		"<b>Відділення:</b> Відділення №1\n" +
		"<b>Оплата:</b> Оплата накладеним платежем\n" +
		"\n" +
		"<b>Товари:</b>\n" +
		"• Свічка × 3 — 285.00\n" +
		"  └ Аромат: Ваніль, Гніт: Бавовна\n" +
		"• Тюльпан × 1 — 250.00\n" +
		"\n" +
		"<b>Разом:</b> 535.00\n" +
		"\n" +
		"<b>Нотатки:</b> Дзвоніть &amp; чекайте"

	assert.Equal(t, want, Format(testSummary(catalog.LangUK)))
}

func TestFormat_Russian(t *testing.T) {
	s := testSummary(catalog.LangRU)
	s.Order.Contact.Notes = ""
	s.Order.Contact.PaymentMethod = ""

	got := Format(s)

	assert.Contains(t, got, "<b>Новый заказ #42</b>")
	assert.Contains(t, got, "<b>Город:</b> Київ")
	assert.Contains(t, got, "<b>Итого:</b> 535.00")
	assert.NotContains(t, got, "Оплата")
	assert.NotContains(t, got, "Примечания")
}

func TestSend(t *testing.T) {
	var (
		gotPath string
		gotForm map[string]string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotPath = r.URL.Path
		gotForm = map[string]string{
			"chat_id":                  r.PostForm.Get("chat_id"),
			"text":                     r.PostForm.Get("text"),
			"parse_mode":               r.PostForm.Get("parse_mode"),
			"disable_web_page_preview": r.PostForm.Get("disable_web_page_preview"),
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(Config{Token: "123:abc", ChatID: "-100500", BaseURL: srv.URL + "/"}, srv.Client())

	assert.True(t, c.Send(context.Background(), "<b>hi</b>"))
	assert.Equal(t, "/bot123:abc/sendMessage", gotPath)
	assert.Equal(t, map[string]string{
		"chat_id":                  "-100500",
		"text":                     "<b>hi</b>",
		"parse_mode":               "HTML",
		"disable_web_page_preview": "true",
	}, gotForm)
}

func TestSend_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"Bad Request: can't parse entities"}`))
	}))
	defer srv.Close()

	c := New(Config{Token: "t", ChatID: "1", BaseURL: srv.URL}, srv.Client())

	assert.False(t, c.NotifyOrder(context.Background(), testSummary(catalog.LangUK)))
}

func TestSend_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(Config{Token: "t", ChatID: "1", BaseURL: url}, nil)

	assert.False(t, c.Send(context.Background(), "hi"))
}

func TestSend_NotConfigured(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	defer srv.Close()

	for _, cfg := range []Config{
		{ChatID: "1", BaseURL: srv.URL},
		{Token: "t", BaseURL: srv.URL},
	} {
		c := New(cfg, srv.Client())
		assert.False(t, c.Enabled())
		assert.False(t, c.Send(context.Background(), "hi"))
	}
	assert.False(t, called)
}

func TestFormat_KeepsAngleBrackets(t *testing.T) {
	s := testSummary(catalog.LangUK)
	s.Order.Contact.FullName = "<Ann>"
	s.Order.Contact.Notes = "<b>терміново</b> & дякую"

	got := Format(s)

	assert.Contains(t, got, "<b>Клієнт:</b> &lt;Ann&gt;\n")
	assert.Contains(t, got, "<b>Нотатки:</b> &lt;b&gt;терміново&lt;/b&gt; &amp; дякую")
}
