package cart

import (
	"fmt"

	"github.com/go-faster/errors"

	"github.com/xenking/candle-shop/internal/domain/catalog"
)

var (
	ErrMissingRequiredOption = errors.New("missing required option")
	ErrInvalidOption         = errors.New("option does not belong to product")
	ErrInvalidValue          = errors.New("value does not belong to option")
	ErrInvalidOptionFormat   = errors.New("invalid option format")
	ErrItemNotFound          = errors.New("item not found")
	ErrUnknownAction         = errors.New("unknown action")
	ErrOutOfStock            = errors.New("product is out of stock")
	ErrQuantityTooLarge      = errors.New("quantity exceeds the line limit")
)

// MissingOptionError names the first option that needs a selection.
type MissingOptionError struct {
	OptionID int64
	Name     catalog.Text
}

func (e *MissingOptionError) Error() string {
	return fmt.Sprintf("missing required option %d", e.OptionID)
}

func (e *MissingOptionError) Unwrap() error { return ErrMissingRequiredOption }

// InvalidOptionError reports an option id that is not configured for the product.
type InvalidOptionError struct {
	OptionID int64
}

func (e *InvalidOptionError) Error() string {
	return fmt.Sprintf("option %d does not belong to product", e.OptionID)
}

func (e *InvalidOptionError) Unwrap() error { return ErrInvalidOption }

// InvalidValueError reports a value id that is not a choice of its option.
type InvalidValueError struct {
	OptionID   int64
	OptionName catalog.Text
	ValueID    int64
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("value %d does not belong to option %d", e.ValueID, e.OptionID)
}

func (e *InvalidValueError) Unwrap() error { return ErrInvalidValue }
