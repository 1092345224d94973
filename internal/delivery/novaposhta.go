package delivery

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// DefaultNovaPoshtaURL is the Nova Poshta JSON API endpoint.
const DefaultNovaPoshtaURL = "https://api.novaposhta.ua/v2.0/json/"

const (
	settlementLimit = 50
	warehouseLimit  = 200
	// maxResponseSize bounds a single API response body.
	maxResponseSize = 8 << 20
)

// NovaPoshtaConfig configures the API client.
type NovaPoshtaConfig struct {
	APIKey string
	URL    string
}

// NovaPoshta resolves a city to its warehouses through the Nova Poshta API.
type NovaPoshta struct {
	cfg  NovaPoshtaConfig
	http *http.Client
}

var _ Lookup = (*NovaPoshta)(nil)

// NewNovaPoshta creates a client. The HTTP client's timeout bounds each call.
func NewNovaPoshta(cfg NovaPoshtaConfig, httpClient *http.Client) *NovaPoshta {
	if cfg.URL == "" {
		cfg.URL = DefaultNovaPoshtaURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &NovaPoshta{cfg: cfg, http: httpClient}
}

// Warehouses implements Lookup: the first settlement matching city is
// resolved to its delivery city, whose warehouses are listed.
func (n *NovaPoshta) Warehouses(ctx context.Context, city string) []Warehouse {
	city = strings.TrimSpace(city)
	if city == "" {
		return []Warehouse{}
	}
	lg := zctx.From(ctx).Named("novaposhta")
	if n.cfg.APIKey == "" {
		lg.Warn("Nova Poshta API key not configured")
		return []Warehouse{}
	}

	ref, err := n.deliveryCity(ctx, city)
	if err != nil {
		lg.Error("Search settlements", zap.String("city", city), zap.Error(err))
		return []Warehouse{}
	}
	if ref == "" {
		return []Warehouse{}
	}

	warehouses, err := n.warehouses(ctx, ref)
	if err != nil {
		lg.Error("Get warehouses", zap.String("city_ref", ref), zap.Error(err))
		return []Warehouse{}
	}
	return warehouses
}

func (n *NovaPoshta) deliveryCity(ctx context.Context, city string) (string, error) {
	var (
		ref   string
		first = true
	)
	ok, err := n.call(ctx, "searchSettlements", func(e *jx.Encoder) {
		e.FieldStart("CityName")
		e.Str(city)
		e.FieldStart("Limit")
		e.Int(settlementLimit)
	}, func(d *jx.Decoder) error {
		if !first {
			return d.Skip()
		}
		first = false
		return d.Obj(func(d *jx.Decoder, key string) error {
			if key != "Addresses" {
				return d.Skip()
			}
			i := 0
			return d.Arr(func(d *jx.Decoder) error {
				i++
				if i > 1 {
					return d.Skip()
				}
				return d.Obj(func(d *jx.Decoder, key string) error {
					if key != "DeliveryCity" {
						return d.Skip()
					}
					v, err := d.Str()
					ref = v
					return err
				})
			})
		})
	})
	if err != nil || !ok {
		return "", err
	}
	return ref, nil
}

func (n *NovaPoshta) warehouses(ctx context.Context, cityRef string) ([]Warehouse, error) {
	out := []Warehouse{}
	ok, err := n.call(ctx, "getWarehouses", func(e *jx.Encoder) {
		e.FieldStart("CityRef")
		e.Str(cityRef)
		e.FieldStart("Limit")
		e.Int(warehouseLimit)
	}, func(d *jx.Decoder) error {
		var w Warehouse
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "Ref":
				v, err := d.Str()
				w.ID = v
				return err
			case "Description":
				v, err := d.Str()
				w.Name = v
				return err
			default:
				return d.Skip()
			}
		}); err != nil {
			return err
		}
		out = append(out, w)
		return nil
	})
	if err != nil || !ok {
		return []Warehouse{}, err
	}
	return out, nil
}

// call posts an AddressGeneral request and feeds every element of the
// response "data" array to item. It reports the API "success" flag.
func (n *NovaPoshta) call(
	ctx context.Context,
	method string,
	props func(e *jx.Encoder),
	item func(d *jx.Decoder) error,
) (bool, error) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("apiKey")
	e.Str(n.cfg.APIKey)
	e.FieldStart("modelName")
	e.Str("AddressGeneral")
	e.FieldStart("calledMethod")
	e.Str(method)
	e.FieldStart("methodProperties")
	e.ObjStart()
	props(&e)
	e.ObjEnd()
	e.ObjEnd()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.URL, bytes.NewReader(e.Bytes()))
	if err != nil {
		return false, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		return false, errors.Wrap(err, "do request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return false, errors.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return false, errors.Wrap(err, "read response")
	}

	success := false
	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "success":
			if d.Next() != jx.Bool {
				return d.Skip()
			}
			v, err := d.Bool()
			success = v
			return err
		case "data":
			if d.Next() != jx.Array {
				return d.Skip()
			}
			return d.Arr(item)
		default:
			return d.Skip()
		}
	}); err != nil {
		return false, errors.Wrap(err, "decode response")
	}
	return success, nil
}
