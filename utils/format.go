package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatMoney renders v as dollars with cents and thousands separators.
func FormatMoney(v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	s := d.StringFixed(2)
	whole, frac, _ := strings.Cut(s, ".")
	return sign + "$" + groupThousands(whole) + "." + frac
}

// FormatPercent renders a fraction (0.0625) as a percentage ("6.25%").
func FormatPercent(ratio float64) string {
	return decimal.NewFromFloat(ratio).Mul(decimal.NewFromInt(100)).Round(2).StringFixed(2) + "%"
}

// FormatPoints renders a value already in percent points ("3.5" -> "3.50%").
func FormatPoints(v float64) string {
	return decimal.NewFromFloat(v).Round(2).StringFixed(2) + "%"
}

// FormatMultiple renders a coverage multiple ("1.25x").
func FormatMultiple(v float64) string {
	return decimal.NewFromFloat(v).Round(2).StringFixed(2) + "x"
}

// Round2 rounds to cents using decimal arithmetic.
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
