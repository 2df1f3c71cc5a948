// Package money provides an exact decimal amount with two decimal places and
// the Swedish locale formatting used by every human facing string.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Places is the number of fractional digits kept by a Money value.
const Places = 2

var hundred = decimal.NewFromInt(100)

var printer = message.NewPrinter(language.Swedish)

// ErrPrecision is returned when an amount has more than two decimals.
var ErrPrecision = errors.New("money more than two decimals")

// symbols are the locale's number symbols, read from a sample formatted by
// x/text. Digits always come from the exact decimal string.
type symbols struct {
	minus   string
	group   string
	decimal string
	percent string
}

var sv = localeSymbols()

func localeSymbols() symbols {
	s := symbols{minus: "\u2212", group: "\u00a0", decimal: ",", percent: "\u00a0%"}

	n := printer.Sprint(number.Decimal(-1234.5, number.Scale(1)))
	i1, i2 := strings.Index(n, "1"), strings.Index(n, "2")
	i4, i5 := strings.Index(n, "4"), strings.LastIndex(n, "5")
	if 0 <= i1 && i1 < i2 && i2 < i4 && i4 < i5 {
		s.minus = n[:i1]
		s.group = n[i1+1 : i2]
		s.decimal = n[i4+1 : i5]
	}

	p := printer.Sprint(number.Percent(0.5))
	if i := strings.Index(p, "50"); i == 0 {
		s.percent = p[2:]
	}
	return s
}

// localize rewrites a plain decimal string such as "-1234.50" with the
// locale's minus sign, grouping and decimal separator.
func localize(plain string) string {
	digits, neg := strings.CutPrefix(plain, "-")
	whole, frac, hasFrac := strings.Cut(digits, ".")

	var b strings.Builder
	if neg {
		b.WriteString(sv.minus)
	}
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteString(sv.group)
		}
		b.WriteRune(r)
	}
	if hasFrac {
		b.WriteString(sv.decimal)
		b.WriteString(frac)
	}
	return b.String()
}

// Money is an exact amount of kronor. The zero value is 0,00 kr.
type Money struct {
	d decimal.Decimal
}

// Zero is the zero amount.
var Zero = Money{}

// New returns a whole amount.
func New(whole int64) Money {
	return Money{d: decimal.NewFromInt(whole)}
}

// FromDecimal rounds d to two decimal places.
func FromDecimal(d decimal.Decimal) Money {
	return Money{d: d.Round(Places)}
}

// Parse reads a plain decimal string such as "-12.5". Amounts with more than
// two decimals are rejected with ErrPrecision.
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if !d.Equal(d.Round(Places)) {
		return Money{}, fmt.Errorf("parse amount %q: %w", s, ErrPrecision)
	}
	return FromDecimal(d), nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Decimal returns the underlying value.
func (m Money) Decimal() decimal.Decimal {
	return m.d
}

func (m Money) Add(o Money) Money {
	return Money{d: m.d.Add(o.d)}
}

func (m Money) Sub(o Money) Money {
	return Money{d: m.d.Sub(o.d)}
}

func (m Money) Neg() Money {
	return Money{d: m.d.Neg()}
}

// Mul multiplies by a rate and rounds the result to cents.
func (m Money) Mul(rate decimal.Decimal) Money {
	return FromDecimal(m.d.Mul(rate))
}

// Percent returns m * rate / 100 rounded to cents.
func (m Money) Percent(rate decimal.Decimal) Money {
	return FromDecimal(m.d.Mul(rate).Div(hundred))
}

// Cmp returns -1, 0 or +1.
func (m Money) Cmp(o Money) int {
	return m.d.Cmp(o.d)
}

func (m Money) Equal(o Money) bool {
	return m.d.Equal(o.d)
}

func (m Money) IsZero() bool {
	return m.d.IsZero()
}

func (m Money) IsPositive() bool {
	return m.d.IsPositive()
}

func (m Money) IsNegative() bool {
	return m.d.IsNegative()
}

// String returns the machine readable form, always with two decimals.
func (m Money) String() string {
	return m.d.StringFixed(Places)
}

// Format returns the amount as Swedish currency, for example "1 000,50 kr".
func (m Money) Format() string {
	return localize(m.d.StringFixed(Places)) + " kr"
}

// FormatPercent formats a rate given in percent with at most one decimal,
// for example 1.2 as "1,2 %".
func FormatPercent(rate decimal.Decimal) string {
	return localize(rate.Round(1).String()) + sv.percent
}

// MarshalText lets Money travel as a JSON string.
func (m Money) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Money) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
