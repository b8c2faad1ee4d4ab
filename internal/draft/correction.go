package draft

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnknownField means the text named a field the bot does not track.
	ErrUnknownField = errors.New("unknown field")

	// ErrNotCorrection means the text does not look like a correction at all.
	ErrNotCorrection = errors.New("not a correction")

	// ErrNotNumeric means an amount value could not be parsed as a number.
	ErrNotNumeric = errors.New("value is not a number")
)

// Correction is a single "field: value" edit parsed from user text.
type Correction struct {
	Field string
	Value string
}

// UnknownFieldError carries the field name the user actually typed.
type UnknownFieldError struct {
	Name string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field: %s", e.Name)
}

func (e *UnknownFieldError) Unwrap() error {
	return ErrUnknownField
}

// fieldAliases maps the spellings users actually type to canonical field
// names. Keys are lowercased with spaces collapsed to underscores.
var fieldAliases = map[string]string{
	"what":           FieldWhat,
	"description":    FieldWhat,
	"amount":         FieldAmount,
	"amount_(euros)": FieldAmount,
	"total":          FieldAmount,
	"total_amount":   FieldAmount,
	"vat":            FieldVAT,
	"iva":            FieldVAT,
	"iva_(euros)":    FieldVAT,
	"store":          FieldStore,
	"store_name":     FieldStore,
	"shop":           FieldStore,
	"payment":        FieldPaymentMethod,
	"payment_method": FieldPaymentMethod,
	"charge":         FieldChargeTo,
	"charge_to":      FieldChargeTo,
	"comment":        FieldComments,
	"comments":       FieldComments,
}

// canonicalField resolves a user-typed field name to its canonical form.
func canonicalField(name string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.Join(strings.Fields(key), "_")
	field, ok := fieldAliases[key]
	return field, ok
}

// ParseCorrection parses free text like "amount: 42.50" into a Correction.
// A colon or equals sign separates field from value; when loose is true,
// "amount 42.50" without a separator is accepted as well.
func ParseCorrection(text string, loose bool) (Correction, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Correction{}, ErrNotCorrection
	}

	if idx := strings.IndexAny(text, ":="); idx >= 0 {
		name := text[:idx]
		value := strings.TrimSpace(text[idx+1:])
		field, ok := canonicalField(name)
		if !ok {
			return Correction{}, &UnknownFieldError{Name: strings.TrimSpace(name)}
		}
		return Correction{Field: field, Value: value}, nil
	}

	if !loose {
		return Correction{}, ErrNotCorrection
	}

	// Without a separator the field name may span up to two words
	// ("store name acme"), so try the longer prefix first.
	words := strings.Fields(text)
	for take := 2; take >= 1; take-- {
		if len(words) <= take {
			continue
		}
		if field, ok := canonicalField(strings.Join(words[:take], " ")); ok {
			return Correction{Field: field, Value: strings.Join(words[take:], " ")}, nil
		}
	}
	return Correction{}, ErrNotCorrection
}

var nonNumeric = regexp.MustCompile(`[^\d.]+`)

// NormalizeAmount cleans up a user-typed monetary value: decimal commas
// become periods, currency symbols and stray text are stripped, and a
// thousands separator that survives as a second period is dropped.
func NormalizeAmount(value string) (string, error) {
	v := strings.ReplaceAll(strings.TrimSpace(value), ",", ".")
	v = nonNumeric.ReplaceAllString(v, "")
	v = strings.TrimSuffix(v, ".")
	if strings.Count(v, ".") == 2 {
		first := strings.Index(v, ".")
		v = v[:first] + v[first+1:]
	}
	if v == "" {
		return "", ErrNotNumeric
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrNotNumeric, value)
	}
	return d.String(), nil
}
