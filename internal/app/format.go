package app

import (
	"cryptodash/internal/market"
	"fmt"
	"time"
)

// RelativeTime renders how long ago t was: "Nm ago" under an hour, "Nh ago"
// under a day, "Nd ago" under a week and a short absolute date after that.
// A nil time renders as "Recently".
func RelativeTime(t *time.Time, now time.Time) string {
	if t == nil || t.IsZero() {
		return "Recently"
	}

	d := now.Sub(*t)
	if d < 0 {
		d = 0
	}

	switch {
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d/(24*time.Hour)))
	default:
		return t.Format("Jan 2, 2006")
	}
}

// dollars prefixes a formatted amount with a dollar sign.
func dollars(s string) string {
	return "$" + s
}

func formatUSD(p float64) string {
	return dollars(market.FormatPrice(p))
}

func formatUSDLarge(m float64) string {
	return dollars(market.FormatLargeNumber(m))
}
