package app

import (
	"context"
	"cryptodash/clients/predictapi"
	"cryptodash/config"
	"cryptodash/internal/market"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrorMessage is the single user-visible text for any failed refresh.
const ErrorMessage = "Failed to load data. Please make sure the backend server is running."

// View is the document the dashboard renders into.
type View interface {
	SetActive(asset market.Asset)
	SetLoading(loading bool)
	ShowError(msg string)
	ClearError()
	ShowPrice(panel PricePanel)
	ShowPredictions(cards []PredictionCard)
	ShowSentiment(panel SentimentPanel)
}

// Backend fetches the combined payload for a coin.
type Backend interface {
	GetAll(ctx context.Context, asset market.Asset) (*predictapi.AllPayload, error)
}

// AlertSink receives every applied payload.
type AlertSink interface {
	Observe(asset market.Asset, payload *predictapi.AllPayload)
}

// RefreshStats counts refresh outcomes.
type RefreshStats struct {
	Attempts      int           `json:"attempts"`
	Successes     int           `json:"successes"`
	Failures      int           `json:"failures"`
	Stale         int           `json:"stale"`          // Responses dropped because a newer refresh started
	SkippedTicks  int           `json:"skipped_ticks"`  // Timer ticks skipped while a refresh was in flight
	InFlight      int           `json:"in_flight"`
	LastError     string        `json:"last_error,omitempty"`
	LastErrorAt   time.Time     `json:"last_error_at,omitempty"`
	LastSuccessAt time.Time     `json:"last_success_at,omitempty"`
	LastDuration  time.Duration `json:"last_duration"`
}

// Dashboard owns the selected coin and runs refresh cycles. All view
// mutation happens under mu; network calls run outside it.
type Dashboard struct {
	logger    *zap.Logger
	backend   Backend
	view      View
	chart     *ChartRenderer
	alerts    AlertSink
	timeout   time.Duration
	newsLimit int
	now       func() time.Time

	mu         sync.Mutex
	current    market.Asset
	generation uint64
	inFlight   int
	stats      RefreshStats
}

func NewDashboard(logger *zap.Logger, backend Backend, view View, chart *ChartRenderer, cfg *config.Config) *Dashboard {
	if logger == nil {
		logger = zap.NewNop()
	}

	asset, err := market.ParseAsset(cfg.Dashboard.DefaultCoin)
	if err != nil {
		logger.Warn("invalid default coin, using BTC",
			zap.String("coin", cfg.Dashboard.DefaultCoin),
			zap.Error(err),
		)
		asset = market.BTC
	}

	timeout := cfg.Backend.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	newsLimit := cfg.Dashboard.NewsLimit
	if newsLimit <= 0 {
		newsLimit = 5
	}

	return &Dashboard{
		logger:    logger,
		backend:   backend,
		view:      view,
		chart:     chart,
		timeout:   timeout,
		newsLimit: newsLimit,
		now:       time.Now,
		current:   asset,
	}
}

// SetAlertSink wires market alerts into the refresh cycle.
func (d *Dashboard) SetAlertSink(sink AlertSink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.alerts = sink
}

// Current returns the selected coin.
func (d *Dashboard) Current() market.Asset {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// Stats returns a copy of the refresh counters.
func (d *Dashboard) Stats() RefreshStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	stats := d.stats
	stats.InFlight = d.inFlight
	return stats
}

// Select makes asset the active coin and refreshes. Selecting the active coin
// again refreshes again.
func (d *Dashboard) Select(ctx context.Context, asset market.Asset) error {
	d.mu.Lock()
	d.current = asset
	d.view.SetActive(asset)
	d.mu.Unlock()

	d.logger.Info("coin selected", zap.String("coin", asset.String()))

	_, err := d.refresh(ctx, false)
	return err
}

// Refresh fetches and renders the current coin.
func (d *Dashboard) Refresh(ctx context.Context) error {
	_, err := d.refresh(ctx, false)
	return err
}

// RefreshIfIdle refreshes only when no other refresh is in flight. It reports
// whether a refresh ran.
func (d *Dashboard) RefreshIfIdle(ctx context.Context) (bool, error) {
	return d.refresh(ctx, true)
}

func (d *Dashboard) refresh(ctx context.Context, idleOnly bool) (bool, error) {
	d.mu.Lock()
	if idleOnly && d.inFlight > 0 {
		d.stats.SkippedTicks++
		d.mu.Unlock()
		d.logger.Debug("refresh in flight, skipping tick")
		return false, nil
	}
	d.generation++
	gen := d.generation
	asset := d.current
	d.stats.Attempts++
	d.inFlight++
	if d.inFlight == 1 {
		d.view.SetLoading(true)
	}
	d.mu.Unlock()

	defer d.releaseLoading()

	fetchCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	payload, err := d.backend.GetAll(fetchCtx, asset)
	took := time.Since(start)

	applied, sink := d.apply(gen, asset, payload, err, took)
	if applied && sink != nil {
		sink.Observe(asset, payload)
	}
	return true, err
}

// apply renders a finished fetch if it is still the latest one.
func (d *Dashboard) apply(gen uint64, asset market.Asset, payload *predictapi.AllPayload, err error, took time.Duration) (bool, AlertSink) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stats.LastDuration = took

	if gen != d.generation {
		d.stats.Stale++
		d.logger.Debug("discarding stale response",
			zap.String("coin", asset.String()),
			zap.Uint64("generation", gen),
			zap.Uint64("latest", d.generation),
		)
		return false, nil
	}

	if err != nil {
		d.stats.Failures++
		d.stats.LastError = err.Error()
		d.stats.LastErrorAt = d.now()
		d.logger.Warn("refresh failed",
			zap.String("coin", asset.String()),
			zap.String("kind", errorKind(err)),
			zap.Duration("took", took),
			zap.Error(err),
		)
		d.view.ShowError(ErrorMessage)
		return false, nil
	}

	d.view.ClearError()
	d.view.ShowPrice(RenderPrice(payload.Current))
	d.view.ShowPredictions(RenderPredictions(payload.Prediction.Predictions))
	d.view.ShowSentiment(RenderSentiment(payload.Sentiment, d.now(), d.newsLimit))
	if d.chart != nil {
		if err := d.chart.Update(asset, payload.Historical, payload.Prediction.Predictions); err != nil {
			d.logger.Warn("chart update failed", zap.String("coin", asset.String()), zap.Error(err))
		}
	}

	d.stats.Successes++
	d.stats.LastSuccessAt = d.now()
	d.logger.Debug("refresh applied",
		zap.String("coin", asset.String()),
		zap.Float64("price", payload.Current.Price),
		zap.Duration("took", took),
	)
	return true, d.alerts
}

func (d *Dashboard) releaseLoading() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.inFlight--
	if d.inFlight == 0 {
		d.view.SetLoading(false)
	}
}

// errorKind names the failure class for logs.
func errorKind(err error) string {
	var (
		transportErr *predictapi.TransportError
		statusErr    *predictapi.StatusError
		decodeErr    *predictapi.DecodeError
		backendErr   *predictapi.BackendError
	)
	switch {
	case errors.As(err, &transportErr):
		return "transport"
	case errors.As(err, &statusErr):
		return "status"
	case errors.As(err, &decodeErr):
		return "decode"
	case errors.As(err, &backendErr):
		return "backend"
	default:
		return "unknown"
	}
}
