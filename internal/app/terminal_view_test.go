package app

import (
	"bytes"
	"context"
	"cryptodash/internal/market"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestTerminalView_RendersPanels(t *testing.T) {
	var out bytes.Buffer
	view := NewTerminalView(zap.NewNop(), &out)
	payload := samplePayload(market.BTC, 67890.12, -1.5)

	view.SetActive(market.BTC)
	view.ShowPrice(RenderPrice(payload.Current))
	view.ShowPredictions(RenderPredictions(payload.Prediction.Predictions))
	view.ShowSentiment(RenderSentiment(payload.Sentiment, day("2024-01-14").Add(time.Hour), 5))

	screen := view.Render()
	wants := []string{"$67,890.12", "-1.50%", "$35.20B", "Day 1", "Day 3", "Medium", "ETF inflows rise", "CoinDesk", "1h ago"}
	for _, want := range wants {
		if !strings.Contains(screen, want) {
			t.Errorf("expected screen to contain %q:\n%s", want, screen)
		}
	}

	if !strings.Contains(out.String(), clearScreen) {
		t.Error("expected updates to redraw the screen")
	}
}

func TestTerminalView_ErrorAndLoading(t *testing.T) {
	view := NewTerminalView(nil, nil)

	view.SetLoading(true)
	if !strings.Contains(view.Render(), "Loading...") {
		t.Error("expected loading indicator")
	}

	view.ShowError(ErrorMessage)
	screen := view.Render()
	if !strings.Contains(screen, ErrorMessage) {
		t.Error("expected error message")
	}
	if strings.Contains(screen, "Loading...") {
		t.Error("error replaces the loading indicator")
	}

	view.ClearError()
	view.SetLoading(false)
	screen = view.Render()
	if strings.Contains(screen, ErrorMessage) || strings.Contains(screen, "Loading...") {
		t.Errorf("expected clean screen:\n%s", screen)
	}
}

func TestTerminalView_StripsEscapeSequences(t *testing.T) {
	view := NewTerminalView(nil, nil)
	sentiment := samplePayload(market.BTC, 1, 1).Sentiment
	sentiment.Summary = "calm\x1b[2Jmarket"
	sentiment.Articles[0].Title = "pwn\x1b[2J\x1b]0;hijacked\x07 headline"
	sentiment.Articles[0].Source = "Coin\x1b[31mDesk\x00"

	view.ShowSentiment(RenderSentiment(sentiment, time.Now(), 5))
	screen := view.Render()

	for _, bad := range []string{"\x1b[2J", "\x1b]0;", "hijacked\x07", "\x00", "\x1b[31m"} {
		if strings.Contains(screen, bad) {
			t.Errorf("screen contains raw sequence %q", bad)
		}
	}
	for _, want := range []string{"pwn headline", "CoinDesk", "calmmarket"} {
		if !strings.Contains(screen, want) {
			t.Errorf("expected screen to contain %q:\n%s", want, screen)
		}
	}
}

func TestTermSafe(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"plain", "plain"},
		{"a\x1b[2Jb", "ab"},
		{"line\nbreak", "line break"},
		{"bell\x07", "bell"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := termSafe(tt.input); got != tt.expected {
			t.Errorf("termSafe(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestTerminalView_NoNews(t *testing.T) {
	view := NewTerminalView(nil, nil)
	sentiment := samplePayload(market.ETH, 1, 1).Sentiment
	sentiment.Articles = nil

	view.ShowSentiment(RenderSentiment(sentiment, time.Now(), 5))

	if !strings.Contains(view.Render(), noNewsText) {
		t.Error("expected no news placeholder")
	}
}

func TestTerminalChart(t *testing.T) {
	view := NewTerminalView(nil, nil)
	chart := view.ChartBackend()
	payload := samplePayload(market.SOL, 100, 1)

	chart.Render(BuildSeries(market.SOL, payload.Historical, payload.Prediction.Predictions))
	screen := view.Render()
	if !strings.Contains(screen, "SOL") || !strings.ContainsAny(screen, string(sparkBlocks)) {
		t.Errorf("expected sparkline:\n%s", screen)
	}

	chart.Destroy()
	if strings.ContainsAny(view.Render(), string(sparkBlocks)) {
		t.Error("expected sparkline to be removed")
	}
}

func TestRenderSparkline(t *testing.T) {
	series := ChartSeries{
		Coin: "BTC",
		Candles: []Candle{
			{Close: 1}, {Close: 2}, {Close: 3},
		},
		Forecast: []LinePoint{{Value: 3}, {Value: 4}},
	}

	got := renderSparkline(series, 10)
	lines := strings.Split(got, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header and sparkline, got %q", got)
	}
	if !strings.HasPrefix(lines[1], "▁") {
		t.Errorf("expected lowest close first, got %q", lines[1])
	}
	if !strings.Contains(lines[1], "█") {
		t.Errorf("expected forecast high point, got %q", lines[1])
	}
}

func TestRenderSparkline_Trims(t *testing.T) {
	candles := make([]Candle, 100)
	for i := range candles {
		candles[i] = Candle{Close: float64(i)}
	}

	got := renderSparkline(ChartSeries{Coin: "BTC", Candles: candles}, 20)
	lines := strings.Split(got, "\n")
	if n := len([]rune(lines[1])); n != 20 {
		t.Errorf("expected 20 blocks, got %d", n)
	}
}

func TestReadCommands(t *testing.T) {
	view := NewTerminalView(nil, nil)
	in := strings.NewReader("eth\n\nxrp\nsolana\nq\nbtc\n")

	var selected []market.Asset
	view.ReadCommands(context.Background(), in, func(a market.Asset) {
		selected = append(selected, a)
	})

	if len(selected) != 2 || selected[0] != market.ETH || selected[1] != market.SOL {
		t.Errorf("unexpected selections: %v", selected)
	}
}

func TestReadCommands_StopsOnContext(t *testing.T) {
	view := NewTerminalView(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		view.ReadCommands(ctx, blockingReader{}, func(market.Asset) {})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ReadCommands did not stop")
	}
}

type blockingReader struct{}

func (blockingReader) Read([]byte) (int, error) {
	select {}
}
