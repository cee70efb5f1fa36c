package classifieds

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// DefaultCurrency applies when an ad carries no currency code.
const DefaultCurrency = "EUR"

var priceUnitSuffix = map[string]string{
	"TOTAL": "",
	"MONTH": "/month",
	"WEEK":  "/week",
	"DAY":   "/day",
	"HOUR":  "/hour",
}

var priceUnitTitle = map[string]string{
	"TOTAL": "Total",
	"MONTH": "Per month",
	"WEEK":  "Per week",
	"DAY":   "Per day",
	"HOUR":  "Per hour",
}

// languages writing the currency symbol after the amount, separated by a
// no-break space
var symbolAfterAmount = map[string]bool{
	"cs": true, "da": true, "de": true, "es": true, "fi": true, "fr": true,
	"hu": true, "it": true, "nb": true, "pl": true, "ru": true, "sk": true,
	"sv": true, "uk": true,
}

func tagFor(locale string) language.Tag {
	tag, err := language.Parse(strings.ReplaceAll(strings.TrimSpace(locale), "_", "-"))
	if err != nil {
		return language.English
	}
	return tag
}

func printerFor(locale string) *message.Printer {
	return message.NewPrinter(tagFor(locale))
}

// FormatPrice renders amount in the currency of the locale followed by the
// price-unit suffix, e.g. "€19.50 /month", or "19,50 € /month" for German.
// Unknown currency codes fall back to "<amount> <CODE>". It reports false
// when amount is nil.
func FormatPrice(amount *float64, currencyCode, unit, locale string) (string, bool) {
	if amount == nil {
		return "", false
	}
	code := strings.ToUpper(strings.TrimSpace(currencyCode))
	if code == "" {
		code = DefaultCurrency
	}

	var label string
	if cur, err := currency.ParseISO(code); err == nil {
		tag := tagFor(locale)
		p := message.NewPrinter(tag)
		scale, _ := currency.Standard.Rounding(cur)
		symbol := p.Sprint(currency.Symbol(cur))
		value := p.Sprint(number.Decimal(*amount, number.Scale(scale)))
		if base, _ := tag.Base(); symbolAfterAmount[base.String()] {
			label = value + "\u00a0" + symbol
		} else {
			label = symbol + value
		}
	} else {
		label = strings.TrimSpace(strconv.FormatFloat(*amount, 'f', -1, 64) + " " + code)
	}

	suffix := ""
	if u := strings.ToUpper(strings.TrimSpace(unit)); u != "" {
		var ok bool
		if suffix, ok = priceUnitSuffix[u]; !ok {
			suffix = "/" + strings.ToLower(u)
		}
	}
	if suffix == "" {
		return label, true
	}
	return label + " " + suffix, true
}

// DescribePriceUnit returns a title such as "Per month", or the unit code
// itself when it is not a known unit.
func DescribePriceUnit(unit string) (string, bool) {
	u := strings.ToUpper(strings.TrimSpace(unit))
	if u == "" {
		return "", false
	}
	if title, ok := priceUnitTitle[u]; ok {
		return title, true
	}
	return u, true
}

// medium date layouts by base language
var dateLayouts = map[string]string{
	"en": "Jan 2, 2006",
	"de": "02.01.2006",
	"fr": "02/01/2006",
	"es": "02/01/2006",
	"it": "02/01/2006",
	"nl": "02-01-2006",
	"pt": "02/01/2006",
}

// FormatDate renders a medium-style date for the locale. Languages without a
// known layout get an ISO date.
func FormatDate(v any, locale string) (string, bool) {
	t, ok := ToTime(v)
	if !ok {
		return "", false
	}
	layout := time.DateOnly
	if tag, err := language.Parse(strings.ReplaceAll(locale, "_", "-")); err == nil {
		base, _ := tag.Base()
		if l, found := dateLayouts[base.String()]; found {
			layout = l
		}
	}
	return t.UTC().Format(layout), true
}

// FormatFilterPrice renders a filter bound with at most two fraction digits.
// Non-numeric input is returned trimmed.
func FormatFilterPrice(v any, locale string) (string, bool) {
	if f, ok := ParseNumber(v); ok {
		return printerFor(locale).Sprint(number.Decimal(f, number.MaxFractionDigits(2))), true
	}
	return NonEmptyString(v)
}

var (
	camelBoundary = regexp.MustCompile(`([a-z])([A-Z])`)
	whitespaceRun = regexp.MustCompile(`\s+`)
)

// NormalizeLabel turns identifiers like "usedLikeNew" or "out_of_stock" into
// readable text. Blank input yields "".
func NormalizeLabel(v string) string {
	s := camelBoundary.ReplaceAllString(strings.TrimSpace(v), "$1 $2")
	s = strings.ReplaceAll(s, "_", " ")
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}
