package notifier

import (
	"time"
)

// AlertReason indicates why an alert was triggered.
type AlertReason string

const (
	AlertReasonSentimentShift AlertReason = "sentiment_shift" // Sentiment category changed since the previous cycle
	AlertReasonPriceSwing     AlertReason = "price_swing"     // 24h change crossed the swing threshold
	AlertReasonForecastMove   AlertReason = "forecast_move"   // Last forecast day moves past the threshold
)

// MarketAlert contains all the data needed for a market alert notification.
type MarketAlert struct {
	// Coin info
	Coin  string
	Price float64

	// Price movement
	Change24h float64 // Percent, signed

	// Forecast info
	ForecastPrice  float64 // Price on the last forecast day
	ForecastChange float64 // Percent change on the last forecast day
	ForecastDays   int     // Number of forecast days
	HasForecast    bool    // True if the payload carried predictions

	// Sentiment info
	SentimentScore float64
	Category       string // Current sentiment category
	PrevCategory   string // Category seen on the previous cycle, empty on the first one

	// Alert metadata
	Reasons   []AlertReason
	Timestamp time.Time
}

// HasReason reports whether r is among the alert's reasons.
func (a MarketAlert) HasReason(r AlertReason) bool {
	for _, reason := range a.Reasons {
		if reason == r {
			return true
		}
	}
	return false
}

// Notifier is the interface for sending market alerts to various channels.
type Notifier interface {
	// SendMarketAlert sends a market alert notification.
	SendMarketAlert(alert MarketAlert)

	// Close cleans up any resources.
	Close() error
}

// MultiNotifier broadcasts alerts to multiple notifiers.
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier creates a new MultiNotifier with the given notifiers.
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	// Filter out nil notifiers
	var active []Notifier
	for _, n := range notifiers {
		if n != nil {
			active = append(active, n)
		}
	}
	return &MultiNotifier{notifiers: active}
}

// SendMarketAlert sends the alert to all registered notifiers.
func (m *MultiNotifier) SendMarketAlert(alert MarketAlert) {
	for _, n := range m.notifiers {
		n.SendMarketAlert(alert)
	}
}

// Close closes all registered notifiers.
func (m *MultiNotifier) Close() error {
	var lastErr error
	for _, n := range m.notifiers {
		if err := n.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Count returns the number of active notifiers.
func (m *MultiNotifier) Count() int {
	return len(m.notifiers)
}
