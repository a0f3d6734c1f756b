package market

import (
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// FormatPrice renders a price with thousands separators and tiered precision:
// 2 decimals from 1000 up, 2 to 4 decimals in [1, 1000) and 4 to 6 below 1.
func FormatPrice(p float64) string {
	abs := math.Abs(p)
	switch {
	case abs >= 1000:
		return formatFixed(p, 2, 2)
	case abs >= 1:
		return formatFixed(p, 2, 4)
	default:
		return formatFixed(p, 4, 6)
	}
}

// FormatLargeNumber abbreviates volumes and market caps with K/M/B/T
// suffixes, always to 2 decimals.
func FormatLargeNumber(m float64) string {
	abs := math.Abs(m)
	switch {
	case abs >= 1e12:
		return fixed2(m/1e12) + "T"
	case abs >= 1e9:
		return fixed2(m/1e9) + "B"
	case abs >= 1e6:
		return fixed2(m/1e6) + "M"
	case abs >= 1e3:
		return fixed2(m/1e3) + "K"
	default:
		return fixed2(m)
	}
}

// FormatChange renders a signed percent, e.g. "+2.35%" or "-0.40%". The
// sign follows the value rounded to 2 places, so -0.001 is "+0.00%".
func FormatChange(c float64) string {
	s := fixed2(c)
	if s != "N/A" && !changeNegative(c) {
		s = "+" + s
	}
	return s + "%"
}

// ChangeClass is the CSS class for a signed change. It agrees with the sign
// FormatChange prints.
func ChangeClass(c float64) string {
	if changeNegative(c) {
		return "negative"
	}
	return "positive"
}

func changeNegative(c float64) bool {
	if math.IsNaN(c) || math.IsInf(c, 0) {
		return c < 0
	}
	return decimal.NewFromFloat(c).Round(2).IsNegative()
}

func fixed2(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "N/A"
	}
	return decimal.NewFromFloat(v).StringFixed(2)
}

// formatFixed rounds v half away from zero to maxFrac places, trims trailing
// zeros down to minFrac places and groups the integer part.
func formatFixed(v float64, minFrac, maxFrac int32) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "N/A"
	}

	d := decimal.NewFromFloat(v).Round(maxFrac)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}

	whole, frac, _ := strings.Cut(d.StringFixed(maxFrac), ".")
	frac = strings.TrimRight(frac, "0")
	for len(frac) < int(minFrac) {
		frac += "0"
	}

	grouped := whole
	if n, err := strconv.ParseInt(whole, 10, 64); err == nil {
		grouped = humanize.Comma(n)
	}
	return sign + grouped + "." + frac
}
