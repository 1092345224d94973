package cart

import (
	"math"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// Session encoding of a cart:
//
//	{"12": 3}                                   legacy: product id -> quantity
//	{"12_5:9": {"pk": 12, "qty": 1,             current
//	            "options": {"5": 9},
//	            "options_display": {"Scent": "Vanilla"},
//	            "price_modifier": "15.00"}}
//
// Both shapes decode into the same Line; Encode writes only the current one.

// Encode serializes c in cart order.
func Encode(c Cart) []byte {
	var e jx.Encoder
	e.ObjStart()
	for _, key := range c.keys {
		line := c.lines[key]
		e.FieldStart(key)
		e.ObjStart()
		e.FieldStart("pk")
		e.Int64(line.ProductID)
		e.FieldStart("qty")
		e.Int(line.Quantity)
		e.FieldStart("options")
		e.ObjStart()
		for _, s := range line.Options {
			e.FieldStart(strconv.FormatInt(s.OptionID, 10))
			e.Int64(s.ValueID)
		}
		e.ObjEnd()
		e.FieldStart("options_display")
		e.ObjStart()
		for _, l := range line.Labels {
			e.FieldStart(l.Option)
			e.Str(l.Value)
		}
		e.ObjEnd()
		e.FieldStart("price_modifier")
		e.Str(line.PriceModifier.StringFixed(2))
		e.ObjEnd()
	}
	e.ObjEnd()
	return e.Bytes()
}

// Decode parses a session cart. Empty input and non-object JSON yield an
// empty cart. Lines with a non-positive or unreadable quantity are dropped;
// quantities above MaxQuantity are capped.
func Decode(data []byte) (Cart, error) {
	c := New()
	d := jx.DecodeBytes(data)
	if len(strings.TrimSpace(string(data))) == 0 {
		return c, nil
	}
	if d.Next() != jx.Object {
		if err := d.Skip(); err != nil {
			return New(), errors.Wrap(err, "decode cart")
		}
		return c, nil
	}

	err := d.Obj(func(d *jx.Decoder, key string) error {
		var (
			line Line
			ok   bool
			err  error
		)
		switch d.Next() {
		case jx.Number, jx.String:
			line, ok, err = decodeLegacyLine(d, key)
		case jx.Object:
			line, ok, err = decodeLine(d, key)
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "line %q", key)
		}
		if ok && line.Quantity > 0 {
			c.put(key, line)
		}
		return nil
	})
	if err != nil {
		return New(), errors.Wrap(err, "decode cart")
	}
	return c, nil
}

func decodeLegacyLine(d *jx.Decoder, key string) (Line, bool, error) {
	qty, ok, err := readQuantity(d)
	if err != nil || !ok {
		return Line{}, false, err
	}
	return Line{
		ProductID:     productIDFromKey(key),
		Quantity:      qty,
		PriceModifier: decimal.Zero,
	}, true, nil
}

func decodeLine(d *jx.Decoder, key string) (Line, bool, error) {
	line := Line{PriceModifier: decimal.Zero}
	hasQty, hasPK := false, false

	err := d.Obj(func(d *jx.Decoder, field string) error {
		switch field {
		case "pk":
			v, ok, err := readInt(d)
			if err != nil {
				return err
			}
			if ok {
				line.ProductID, hasPK = v, true
			}
		case "qty":
			v, ok, err := readQuantity(d)
			if err != nil {
				return err
			}
			if ok {
				line.Quantity, hasQty = v, true
			}
		case "options":
			return decodeSelections(d, &line)
		case "options_display":
			return decodeLabels(d, &line)
		case "price_modifier":
			s, ok, err := readText(d)
			if err != nil {
				return err
			}
			if m, perr := decimal.NewFromString(s); ok && perr == nil {
				line.PriceModifier = m
			}
		default:
			return d.Skip()
		}
		return nil
	})
	if err != nil {
		return Line{}, false, err
	}
	if !hasPK {
		line.ProductID = productIDFromKey(key)
	}
	if !hasQty {
		line.Quantity = 1
	}
	return line, true, nil
}

func decodeSelections(d *jx.Decoder, line *Line) error {
	if d.Next() != jx.Object {
		return d.Skip()
	}
	return d.Obj(func(d *jx.Decoder, key string) error {
		optID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return d.Skip()
		}
		valID, ok, err := readInt(d)
		if err != nil || !ok {
			return err
		}
		line.Options = append(line.Options, Selection{OptionID: optID, ValueID: valID})
		return nil
	})
}

func decodeLabels(d *jx.Decoder, line *Line) error {
	if d.Next() != jx.Object {
		return d.Skip()
	}
	return d.Obj(func(d *jx.Decoder, key string) error {
		v, ok, err := readText(d)
		if err != nil || !ok {
			return err
		}
		line.Labels = append(line.Labels, Label{Option: key, Value: v})
		return nil
	})
}

var (
	minInt64 = decimal.NewFromInt(math.MinInt64)
	maxInt64 = decimal.NewFromInt(math.MaxInt64)
)

// readInt reads an integer that fits int64; fractions are truncated.
func readInt(d *jx.Decoder) (int64, bool, error) {
	v, ok, err := readNumber(d)
	if err != nil || !ok {
		return 0, false, err
	}
	if v.LessThan(minInt64) || v.GreaterThan(maxInt64) {
		return 0, false, nil
	}
	return v.IntPart(), true, nil
}

// readQuantity reads a line quantity capped at MaxQuantity. Non-positive
// values are returned as 0.
func readQuantity(d *jx.Decoder) (int, bool, error) {
	v, ok, err := readNumber(d)
	if err != nil || !ok {
		return 0, false, err
	}
	switch {
	case v.GreaterThanOrEqual(decimal.NewFromInt(MaxQuantity)):
		return MaxQuantity, true, nil
	case v.LessThan(decimal.NewFromInt(1)):
		return 0, true, nil
	default:
		return int(v.IntPart()), true, nil
	}
}

// readNumber reads a JSON number or numeric string. Other values are skipped
// and reported as not ok.
func readNumber(d *jx.Decoder) (decimal.Decimal, bool, error) {
	var raw string
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, false, err
		}
		raw = n.String()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, false, err
		}
		raw = strings.TrimSpace(s)
	default:
		return decimal.Zero, false, d.Skip()
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false, nil
	}
	return v, true, nil
}

// readText reads a JSON string or number as text.
func readText(d *jx.Decoder) (string, bool, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		return s, err == nil, err
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", false, err
		}
		return n.String(), true, nil
	default:
		return "", false, d.Skip()
	}
}

// productIDFromKey extracts the product id prefix of a cart key. Unparsable
// keys map to 0, which never resolves to a product.
func productIDFromKey(key string) int64 {
	if i := strings.IndexByte(key, '_'); i >= 0 {
		key = key[:i]
	}
	id, err := strconv.ParseInt(key, 10, 64)
	if err != nil {
		return 0
	}
	return id
}
