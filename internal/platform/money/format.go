// Package money renders decimal amounts for display in a given locale.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Formatter renders amounts of one currency in one locale. The zero value is not usable.
type Formatter struct {
	printer *message.Printer
	unit    currency.Unit
	scale   int
	locale  language.Tag
}

// NewFormatter parses the BCP 47 locale and ISO 4217 currency code.
func NewFormatter(locale, code string) (Formatter, error) {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		return Formatter{}, fmt.Errorf("money: parse locale %q: %w", locale, err)
	}
	unit, err := currency.ParseISO(strings.TrimSpace(code))
	if err != nil {
		return Formatter{}, fmt.Errorf("money: parse currency %q: %w", code, err)
	}
	scale, _ := currency.Standard.Rounding(unit)
	return Formatter{
		printer: message.NewPrinter(tag),
		unit:    unit,
		scale:   scale,
		locale:  tag,
	}, nil
}

// Locale returns the canonical locale tag.
func (f Formatter) Locale() string { return f.locale.String() }

// Currency returns the ISO code.
func (f Formatter) Currency() string { return f.unit.String() }

// Number renders amount with the locale's grouping and decimal separators and
// the currency's minor unit scale.
func (f Formatter) Number(amount decimal.Decimal) string {
	return f.printer.Sprint(number.Decimal(amount.Round(int32(f.scale)).InexactFloat64(), number.Scale(f.scale)))
}

// Format renders amount followed by the currency symbol, e.g. "1.234,50 €" for de-DE.
func (f Formatter) Format(amount decimal.Decimal) string {
	return f.Number(amount) + " " + f.printer.Sprint(currency.Symbol(f.unit))
}

// Percent renders a VAT rate such as 19 or 7.5 without trailing zeros.
func (f Formatter) Percent(rate decimal.Decimal) string {
	return f.printer.Sprint(number.Decimal(rate.InexactFloat64(), number.MaxFractionDigits(2))) + " %"
}
