package order

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := f.Tag.Get("form")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// CheckoutForm is the checkout form as submitted by the customer.
type CheckoutForm struct {
	FullName      string `form:"full_name" validate:"required,max=200"`
	Phone         string `form:"phone" validate:"required,max=20"`
	Email         string `form:"email" validate:"required,email,max=254"`
	City          string `form:"city" validate:"required,max=100"`
	PaymentMethod string `form:"payment_method" validate:"required,oneof=card cod"`
	Notes         string `form:"notes" validate:"max=2000"`
	AgreeToTerms  bool   `form:"agree_to_terms" validate:"required"`
	// Warehouse is checked separately so an empty cart is reported first.
	Warehouse string `form:"warehouse" validate:"max=200"`
}

// Normalize trims surrounding whitespace from text fields.
func (f *CheckoutForm) Normalize() {
	for _, s := range []*string{&f.FullName, &f.Phone, &f.Email, &f.City, &f.PaymentMethod, &f.Notes, &f.Warehouse} {
		*s = strings.TrimSpace(*s)
	}
}

// Validate checks field constraints and returns a *ValidationError listing
// every failing field.
func (f *CheckoutForm) Validate() error {
	err := validate.Struct(f)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return errors.Wrap(err, "validate checkout form")
	}
	verr := &ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		verr.Fields[fe.Field()] = fe.Tag()
	}
	return verr
}

// Contact converts the form into order contact details.
func (f *CheckoutForm) Contact() Contact {
	return Contact{
		FullName:      f.FullName,
		Phone:         f.Phone,
		Email:         f.Email,
		City:          f.City,
		PaymentMethod: PaymentMethod(f.PaymentMethod),
		Notes:         f.Notes,
	}
}

// ValidationError maps form field names to the failed constraint
// ("required", "max", "email", "oneof").
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s: %s", name, e.Fields[name])
	}
	return "invalid checkout form: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidForm }
