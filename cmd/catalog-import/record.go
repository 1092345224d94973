package main

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/candle-shop/internal/domain/catalog"
)

// decodeProduct parses one dump line:
//
//	{"id":12,"name":{"uk":"...","ru":"..."},"price":"350.00","options":[...]}
//
// Labels may be given as a plain string, which is taken as Ukrainian.
func decodeProduct(data []byte) (*catalog.Product, error) {
	p := &catalog.Product{Available: true}
	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = d.Int64()
		case "name":
			p.Name, err = decodeText(d)
		case "description":
			p.Description, err = decodeText(d)
		case "price":
			p.Price, err = decodeDecimal(d)
		case "image":
			p.Image, err = d.Str()
		case "images":
			err = d.Arr(func(d *jx.Decoder) error {
				s, err := d.Str()
				if err == nil && s != "" {
					p.Images = append(p.Images, s)
				}
				return err
			})
		case "available":
			p.Available, err = d.Bool()
		case "hit":
			p.Hit, err = d.Bool()
		case "on_sale":
			p.OnSale, err = d.Bool()
		case "discount_percent":
			if d.Next() == jx.Null {
				return d.Null()
			}
			var v int
			v, err = d.Int()
			p.DiscountPercent = &v
		case "sort_order":
			p.SortOrder, err = d.Int()
		case "categories":
			err = d.Arr(func(d *jx.Decoder) error {
				id, err := d.Int64()
				p.Categories = append(p.Categories, catalog.Category{ID: id})
				return err
			})
		case "options":
			err = d.Arr(func(d *jx.Decoder) error {
				o, err := decodeOption(d)
				if err != nil {
					return err
				}
				o.ProductID = p.ID
				p.Options = append(p.Options, o)
				return nil
			})
		default:
			return d.Skip()
		}
		return errors.Wrap(err, key)
	})
	if err != nil {
		return nil, err
	}
	if err := validateProduct(p); err != nil {
		return nil, err
	}
	return p, nil
}

func decodeOption(d *jx.Decoder) (catalog.Option, error) {
	o := catalog.Option{InputType: catalog.InputSelect}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			o.ID, err = d.Int64()
		case "name":
			o.Name, err = decodeText(d)
		case "required":
			o.Required, err = d.Bool()
		case "input_type":
			var s string
			s, err = d.Str()
			o.InputType = catalog.InputType(s)
		case "sort_order":
			o.SortOrder, err = d.Int()
		case "values":
			err = d.Arr(func(d *jx.Decoder) error {
				v, err := decodeValue(d)
				if err != nil {
					return err
				}
				v.OptionID = o.ID
				o.Values = append(o.Values, v)
				return nil
			})
		default:
			return d.Skip()
		}
		return errors.Wrap(err, key)
	})
	if err != nil {
		return o, errors.Wrap(err, "option")
	}
	return o, nil
}

func decodeValue(d *jx.Decoder) (catalog.OptionValue, error) {
	var v catalog.OptionValue
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			v.ID, err = d.Int64()
		case "value":
			v.Value, err = decodeText(d)
		case "price_modifier":
			v.PriceModifier, err = decodeDecimal(d)
		case "image":
			v.Image, err = d.Str()
		case "sort_order":
			v.SortOrder, err = d.Int()
		default:
			return d.Skip()
		}
		return errors.Wrap(err, key)
	})
	if err != nil {
		return v, errors.Wrap(err, "value")
	}
	return v, nil
}

func decodeText(d *jx.Decoder) (catalog.Text, error) {
	var t catalog.Text
	if d.Next() == jx.String {
		s, err := d.Str()
		t.UK = s
		return t, err
	}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "uk", "ua":
			t.UK, err = d.Str()
		case "ru":
			t.RU, err = d.Str()
		default:
			return d.Skip()
		}
		return err
	})
	return t, err
}

// decodeDecimal accepts both "12.50" and 12.5.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	if d.Next() == jx.String {
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	}
	n, err := d.Num()
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(n.String())
}

func validateProduct(p *catalog.Product) error {
	switch {
	case p.ID <= 0:
		return errors.New("product id is required")
	case p.Name.UK == "":
		return errors.Errorf("product %d: name is required", p.ID)
	case p.Price.IsNegative():
		return errors.Errorf("product %d: negative price", p.ID)
	case p.DiscountPercent != nil && (*p.DiscountPercent < 0 || *p.DiscountPercent > 100):
		return errors.Errorf("product %d: discount out of range", p.ID)
	}
	for _, o := range p.Options {
		if o.ID <= 0 {
			return errors.Errorf("product %d: option id is required", p.ID)
		}
		for _, v := range o.Values {
			if v.ID <= 0 {
				return errors.Errorf("product %d: value id of option %d is required", p.ID, o.ID)
			}
		}
	}
	return nil
}
