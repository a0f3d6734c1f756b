package app

import (
	"cryptodash/clients/notifier"
	"cryptodash/clients/predictapi"
	"cryptodash/config"
	"cryptodash/internal/market"
	"math"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const maxRecentAlerts = 10

// AlertStats counts alerts by reason.
type AlertStats struct {
	Total          int                    `json:"total"`
	SentimentShift int                    `json:"sentiment_shift"`
	PriceSwing     int                    `json:"price_swing"`
	ForecastMove   int                    `json:"forecast_move"`
	Suppressed     int                    `json:"suppressed"` // Reasons dropped by the cooldown
	LastAlertAt    time.Time              `json:"last_alert_at,omitempty"`
	Recent         []notifier.MarketAlert `json:"recent"`
}

// AlertTracker turns applied payloads into market alerts. Each coin and
// reason pair has its own cooldown.
type AlertTracker struct {
	logger          *zap.Logger
	notifier        notifier.Notifier
	priceSwingPct   float64
	forecastMovePct float64
	cooldown        time.Duration
	cooldowns       *cache.Cache
	now             func() time.Time

	mu           sync.Mutex
	lastCategory map[market.Asset]string
	stats        AlertStats
}

func NewAlertTracker(logger *zap.Logger, n notifier.Notifier, cfg *config.Config) *AlertTracker {
	if logger == nil {
		logger = zap.NewNop()
	}

	cooldown := cfg.Alerts.Cooldown
	if cooldown <= 0 {
		cooldown = time.Hour
	}

	return &AlertTracker{
		logger:          logger,
		notifier:        n,
		priceSwingPct:   cfg.Alerts.PriceSwingPct,
		forecastMovePct: cfg.Alerts.ForecastMovePct,
		cooldown:        cooldown,
		cooldowns:       cache.New(cooldown, 2*cooldown),
		now:             time.Now,
		lastCategory:    make(map[market.Asset]string),
	}
}

// Observe checks a payload and sends an alert if any trigger fires.
// Implements AlertSink.
func (a *AlertTracker) Observe(asset market.Asset, payload *predictapi.AllPayload) {
	alert, ok := a.Evaluate(asset, payload)
	if !ok {
		return
	}

	a.logger.Info("market alert triggered",
		zap.String("coin", alert.Coin),
		zap.Any("reasons", alert.Reasons),
		zap.Float64("change24h", alert.Change24h),
		zap.String("category", alert.Category),
	)

	if a.notifier != nil {
		a.notifier.SendMarketAlert(alert)
	}
}

// Evaluate builds the alert for a payload without sending it. Reasons still
// in cooldown are dropped; ok is false when nothing is left.
func (a *AlertTracker) Evaluate(asset market.Asset, payload *predictapi.AllPayload) (notifier.MarketAlert, bool) {
	if payload == nil {
		return notifier.MarketAlert{}, false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	score := clampScore(payload.Sentiment.Score)
	category := ScoreBand(score).Label
	prev, seen := a.lastCategory[asset]
	a.lastCategory[asset] = category

	alert := notifier.MarketAlert{
		Coin:           asset.String(),
		Price:          payload.Current.Price,
		Change24h:      payload.Current.Change24h,
		SentimentScore: score,
		Category:       category,
		PrevCategory:   prev,
		Timestamp:      now,
	}

	preds := payload.Prediction.Predictions
	if len(preds) > 0 {
		last := preds[len(preds)-1]
		alert.HasForecast = true
		alert.ForecastPrice = last.Price
		alert.ForecastChange = last.ChangePercent
		alert.ForecastDays = len(preds)
	}

	var candidates []notifier.AlertReason
	if seen && prev != category {
		candidates = append(candidates, notifier.AlertReasonSentimentShift)
	}
	if a.priceSwingPct > 0 && math.Abs(alert.Change24h) >= a.priceSwingPct {
		candidates = append(candidates, notifier.AlertReasonPriceSwing)
	}
	if alert.HasForecast && a.forecastMovePct > 0 && math.Abs(alert.ForecastChange) >= a.forecastMovePct {
		candidates = append(candidates, notifier.AlertReasonForecastMove)
	}

	for _, reason := range candidates {
		key := asset.String() + ":" + string(reason)
		if err := a.cooldowns.Add(key, now, a.cooldown); err != nil {
			a.stats.Suppressed++
			continue
		}
		alert.Reasons = append(alert.Reasons, reason)
	}

	if len(alert.Reasons) == 0 {
		return notifier.MarketAlert{}, false
	}

	a.record(alert)
	return alert, true
}

func (a *AlertTracker) record(alert notifier.MarketAlert) {
	a.stats.Total++
	a.stats.LastAlertAt = alert.Timestamp
	for _, r := range alert.Reasons {
		switch r {
		case notifier.AlertReasonSentimentShift:
			a.stats.SentimentShift++
		case notifier.AlertReasonPriceSwing:
			a.stats.PriceSwing++
		case notifier.AlertReasonForecastMove:
			a.stats.ForecastMove++
		}
	}

	a.stats.Recent = append([]notifier.MarketAlert{alert}, a.stats.Recent...)
	if len(a.stats.Recent) > maxRecentAlerts {
		a.stats.Recent = a.stats.Recent[:maxRecentAlerts]
	}
}

// Stats returns a copy of the alert counters.
func (a *AlertTracker) Stats() AlertStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := a.stats
	stats.Recent = append([]notifier.MarketAlert(nil), a.stats.Recent...)
	return stats
}

// AlertSnapshot is the part of the tracker that survives restarts.
type AlertSnapshot struct {
	SavedAt    time.Time              `json:"saved_at"`
	Categories map[string]string      `json:"categories"` // Coin -> last sentiment category
	Recent     []notifier.MarketAlert `json:"recent"`
}

// Export returns the tracker state for persistence.
func (a *AlertTracker) Export() *AlertSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snapshot := &AlertSnapshot{
		SavedAt:    a.now(),
		Categories: make(map[string]string, len(a.lastCategory)),
		Recent:     append([]notifier.MarketAlert(nil), a.stats.Recent...),
	}
	for asset, category := range a.lastCategory {
		snapshot.Categories[asset.String()] = category
	}
	return snapshot
}

// Import restores persisted state. Unknown coins and categories are skipped.
// Coins already seen in this process keep their live category. Returns the
// number of categories restored.
func (a *AlertTracker) Import(snapshot *AlertSnapshot) int {
	if snapshot == nil {
		return 0
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	imported := 0
	for coin, category := range snapshot.Categories {
		asset, err := market.ParseAsset(coin)
		if err != nil || BandRank(category) < 0 {
			a.logger.Debug("skipping persisted category",
				zap.String("coin", coin),
				zap.String("category", category),
			)
			continue
		}
		if _, ok := a.lastCategory[asset]; ok {
			continue
		}
		a.lastCategory[asset] = category
		imported++
	}

	if len(a.stats.Recent) == 0 && len(snapshot.Recent) > 0 {
		recent := snapshot.Recent
		if len(recent) > maxRecentAlerts {
			recent = recent[:maxRecentAlerts]
		}
		a.stats.Recent = append([]notifier.MarketAlert(nil), recent...)
	}

	return imported
}

// CategoryCount returns the number of coins with a known category.
func (a *AlertTracker) CategoryCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.lastCategory)
}
