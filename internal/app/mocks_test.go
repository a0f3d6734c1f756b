package app

import (
	"context"
	"cryptodash/clients/gist"
	"cryptodash/clients/notifier"
	"cryptodash/clients/predictapi"
	"cryptodash/internal/market"
	"encoding/json"
	"sync"
	"time"
)

// MockGistStorage is a mock implementation of gist.Storage for testing.
type MockGistStorage struct {
	mu      sync.RWMutex
	files   map[string][]byte
	gistID  string
	enabled bool
	loadErr error
	saveErr error
	saves   int

	saveDelay time.Duration
}

func NewMockGistStorage() *MockGistStorage {
	return &MockGistStorage{
		files:   make(map[string][]byte),
		gistID:  "mock-gist-id",
		enabled: true,
	}
}

func (m *MockGistStorage) IsEnabled() bool {
	return m.enabled
}

func (m *MockGistStorage) GetGistID() string {
	return m.gistID
}

func (m *MockGistStorage) LoadJSON(ctx context.Context, filename string, dest any) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.loadErr != nil {
		return m.loadErr
	}
	data, ok := m.files[filename]
	if !ok {
		return gist.ErrNotFound
	}
	return json.Unmarshal(data, dest)
}

func (m *MockGistStorage) SaveJSON(ctx context.Context, filename string, data any) error {
	if m.saveDelay > 0 {
		time.Sleep(m.saveDelay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.saveErr != nil {
		return m.saveErr
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	m.files[filename] = raw
	m.saves++
	return nil
}

func (m *MockGistStorage) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

// mockView records every call the dashboard makes.
type mockView struct {
	mu           sync.Mutex
	active       []market.Asset
	loading      []bool
	errors       []string
	clears       int
	prices       []PricePanel
	predictions  [][]PredictionCard
	sentiments   []SentimentPanel
	errorVisible bool
}

func (v *mockView) SetActive(asset market.Asset) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.active = append(v.active, asset)
}

func (v *mockView) SetLoading(loading bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.loading = append(v.loading, loading)
}

func (v *mockView) ShowError(msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.errors = append(v.errors, msg)
	v.errorVisible = true
}

func (v *mockView) ClearError() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.clears++
	v.errorVisible = false
}

func (v *mockView) ShowPrice(panel PricePanel) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.prices = append(v.prices, panel)
}

func (v *mockView) ShowPredictions(cards []PredictionCard) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.predictions = append(v.predictions, cards)
}

func (v *mockView) ShowSentiment(panel SentimentPanel) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sentiments = append(v.sentiments, panel)
}

func (v *mockView) lastLoading() (bool, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.loading) == 0 {
		return false, false
	}
	return v.loading[len(v.loading)-1], true
}

func (v *mockView) priceCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.prices)
}

// mockBackend serves per-coin payloads. A coin with a gate channel blocks
// until the channel is closed or the context ends.
type mockBackend struct {
	mu       sync.Mutex
	payloads map[market.Asset]*predictapi.AllPayload
	errs     map[market.Asset]error
	gates    map[market.Asset]chan struct{}
	started  chan market.Asset
	calls    []market.Asset
}

func newMockBackend() *mockBackend {
	return &mockBackend{
		payloads: make(map[market.Asset]*predictapi.AllPayload),
		errs:     make(map[market.Asset]error),
		gates:    make(map[market.Asset]chan struct{}),
		started:  make(chan market.Asset, 16),
	}
}

func (b *mockBackend) GetAll(ctx context.Context, asset market.Asset) (*predictapi.AllPayload, error) {
	b.mu.Lock()
	b.calls = append(b.calls, asset)
	gate := b.gates[asset]
	payload, err := b.payloads[asset], b.errs[asset]
	b.mu.Unlock()

	b.started <- asset

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, &predictapi.TransportError{Err: ctx.Err()}
		}
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (b *mockBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

// mockChartBackend counts lifecycle calls.
type mockChartBackend struct {
	mu       sync.Mutex
	renders  []ChartSeries
	updates  []ChartSeries
	destroys int
}

func (c *mockChartBackend) Render(series ChartSeries) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.renders = append(c.renders, series)
	return nil
}

func (c *mockChartBackend) Update(series ChartSeries) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates = append(c.updates, series)
	return nil
}

func (c *mockChartBackend) Destroy() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.destroys++
	return nil
}

// mockNotifier records sent alerts.
type mockNotifier struct {
	mu     sync.Mutex
	alerts []notifier.MarketAlert
	closed bool
}

func (n *mockNotifier) SendMarketAlert(alert notifier.MarketAlert) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, alert)
}

func (n *mockNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	return nil
}

func (n *mockNotifier) sent() []notifier.MarketAlert {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notifier.MarketAlert(nil), n.alerts...)
}

// mockAlertSink records observed payloads.
type mockAlertSink struct {
	mu       sync.Mutex
	observed []market.Asset
}

func (s *mockAlertSink) Observe(asset market.Asset, payload *predictapi.AllPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observed = append(s.observed, asset)
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// samplePayload is a complete valid response for asset.
func samplePayload(asset market.Asset, price, change float64) *predictapi.AllPayload {
	published := day("2024-01-14")
	return &predictapi.AllPayload{
		Coin: asset.BackendSymbol(),
		Current: predictapi.PriceSnapshot{
			Price:     price,
			Change24h: change,
			Volume:    35.2e9,
			MarketCap: 1.34e12,
		},
		Historical: []predictapi.HistoricalPoint{
			{Date: day("2024-01-13"), Open: price - 100, High: price + 50, Low: price - 150, Close: price - 20},
			{Date: day("2024-01-14"), Open: price - 20, High: price + 80, Low: price - 60, Close: price},
		},
		Prediction: predictapi.Prediction{
			Coin:         asset.BackendSymbol(),
			CurrentPrice: price,
			Predictions: []predictapi.PredictionPoint{
				{Date: day("2024-01-15"), Price: price * 1.01, ChangePercent: 1},
				{Date: day("2024-01-16"), Price: price * 1.02, ChangePercent: 2},
				{Date: day("2024-01-17"), Price: price * 1.03, ChangePercent: 3},
			},
		},
		Sentiment: predictapi.SentimentSnapshot{
			Score:    64.5,
			Positive: 6,
			Neutral:  3,
			Negative: 1,
			Summary:  "Mostly positive coverage",
			Articles: []predictapi.NewsArticle{
				{Title: "ETF inflows rise", Source: "CoinDesk", URL: "https://example.com/a", PublishedAt: &published, SentimentLabel: "positive"},
			},
		},
	}
}
