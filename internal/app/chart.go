package app

import (
	"cryptodash/clients/predictapi"
	"cryptodash/internal/market"
	"sync"

	"go.uber.org/zap"
)

const chartDateLayout = "2006-01-02"

// Candle is one OHLC bar keyed by calendar date.
type Candle struct {
	Time  string  `json:"time"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// LinePoint is one point of the forecast overlay.
type LinePoint struct {
	Time  string  `json:"time"`
	Value float64 `json:"value"`
}

// ChartSeries is everything a chart backend needs to draw one coin.
type ChartSeries struct {
	Coin     string      `json:"coin"`
	Candles  []Candle    `json:"candles"`
	Forecast []LinePoint `json:"forecast,omitempty"`
}

// ChartBackend draws a ChartSeries somewhere. Render creates the chart,
// Update replaces its data and Destroy releases it.
type ChartBackend interface {
	Render(series ChartSeries) error
	Update(series ChartSeries) error
	Destroy() error
}

// BuildSeries turns history and forecast into chart data. The forecast line
// starts at the last historical close and only keeps points dated strictly
// after the previous one, so there is no overlap at the seam.
func BuildSeries(asset market.Asset, hist []predictapi.HistoricalPoint, preds []predictapi.PredictionPoint) ChartSeries {
	series := ChartSeries{
		Coin:    asset.String(),
		Candles: make([]Candle, 0, len(hist)),
	}

	for _, h := range hist {
		series.Candles = append(series.Candles, Candle{
			Time:  h.Date.Format(chartDateLayout),
			Open:  h.Open,
			High:  h.High,
			Low:   h.Low,
			Close: h.Close,
		})
	}

	if len(hist) == 0 || len(preds) == 0 {
		return series
	}

	last := hist[len(hist)-1]
	lastDay := last.Date.Format(chartDateLayout)
	forecast := []LinePoint{{Time: lastDay, Value: last.Close}}

	for _, p := range preds {
		day := p.Date.Format(chartDateLayout)
		if day <= forecast[len(forecast)-1].Time {
			continue
		}
		forecast = append(forecast, LinePoint{Time: day, Value: p.Price})
	}

	if len(forecast) > 1 {
		series.Forecast = forecast
	}
	return series
}

// ChartRenderer owns the chart lifecycle on top of a backend: the chart is
// created on the first non-empty update and reused afterwards.
type ChartRenderer struct {
	logger  *zap.Logger
	backend ChartBackend

	mu      sync.Mutex
	created bool
}

func NewChartRenderer(logger *zap.Logger, backend ChartBackend) *ChartRenderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChartRenderer{
		logger:  logger,
		backend: backend,
	}
}

// Update draws the coin's history and forecast. Empty history is logged and
// skipped.
func (c *ChartRenderer) Update(asset market.Asset, hist []predictapi.HistoricalPoint, preds []predictapi.PredictionPoint) error {
	if len(hist) == 0 {
		c.logger.Warn("no historical data, skipping chart render",
			zap.String("coin", asset.String()),
		)
		return nil
	}

	series := BuildSeries(asset, hist, preds)

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.created {
		if err := c.backend.Render(series); err != nil {
			return err
		}
		c.created = true
		return nil
	}
	return c.backend.Update(series)
}

// Destroy releases the chart. It is safe to call more than once.
func (c *ChartRenderer) Destroy() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.created {
		return nil
	}
	c.created = false
	return c.backend.Destroy()
}
