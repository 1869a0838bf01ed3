// Package format renders optional listing values for digests and API
// responses. Every absent value renders as Placeholder.
package format

import (
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const Placeholder = "N/A"

var printer = message.NewPrinter(language.English)

// Optional renders v with f, or Placeholder when v is nil.
func Optional[T any](v *T, f func(T) string) string {
	if v == nil {
		return Placeholder
	}
	return f(*v)
}

// Money renders a dollar amount with thousands separators. Whole amounts
// drop the cents.
func Money(v float64) string {
	if v == float64(int64(v)) {
		return "$" + printer.Sprintf("%d", int64(v))
	}
	return "$" + printer.Sprintf("%.2f", v)
}

func Percent(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) + "%" }

func Number(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func Text(v string) string {
	if strings.TrimSpace(v) == "" {
		return Placeholder
	}
	return v
}

func OptionalMoney(v *float64) string  { return Optional(v, Money) }
func OptionalNumber(v *float64) string { return Optional(v, Number) }
func OptionalText(v *string) string    { return Optional(v, Text) }
