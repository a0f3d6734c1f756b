package discord

import (
	"cryptodash/clients/notifier"
	"cryptodash/config"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestNewDiscordClient_NoToken(t *testing.T) {
	cfg := &config.Config{
		IsProd: false,
		Discord: config.DiscordConfig{
			BotToken:      "",
			ProdChannelID: "prod-channel",
			BetaChannelID: "beta-channel",
		},
	}

	client := NewDiscordClient(zap.NewNop(), cfg)

	if client.session != nil {
		t.Error("expected nil session when no token provided")
	}
	if client.Enabled() {
		t.Error("expected client to be disabled without a token")
	}
	if client.channelID != "beta-channel" {
		t.Errorf("expected beta channel, got: %s", client.channelID)
	}
}

func TestNewDiscordClient_ProdChannel(t *testing.T) {
	cfg := &config.Config{
		IsProd: true,
		Discord: config.DiscordConfig{
			ProdChannelID: "prod-channel",
			BetaChannelID: "beta-channel",
		},
	}

	client := NewDiscordClient(nil, cfg)

	if !client.isProd {
		t.Error("expected isProd to be true")
	}
	if client.channelID != "prod-channel" {
		t.Errorf("expected prod channel, got: %s", client.channelID)
	}
}

func TestNewDiscordClient_WithToken(t *testing.T) {
	// The token is fake, so the session is created but never connected
	cfg := &config.Config{
		Discord: config.DiscordConfig{
			BotToken:      "fake-token-for-testing",
			BetaChannelID: "beta-channel",
		},
	}

	client := NewDiscordClient(zap.NewNop(), cfg)

	if !client.Enabled() {
		t.Error("expected session to be created")
	}
	if client.channelID != "beta-channel" {
		t.Errorf("expected beta channel, got: %s", client.channelID)
	}
}

func TestSendMessage_NoSession(t *testing.T) {
	client := &DiscordClient{logger: zap.NewNop()}

	// Should not panic
	client.SendMessage("test message")
}

func TestSendMarketAlert_NoSession(t *testing.T) {
	client := &DiscordClient{logger: zap.NewNop()}

	// Should not panic
	client.SendMarketAlert(notifier.MarketAlert{Coin: "BTC"})
}

func TestBuildMarketEmbed_PriceUp(t *testing.T) {
	client := &DiscordClient{logger: zap.NewNop()}

	alert := notifier.MarketAlert{
		Coin:           "BTC",
		Price:          67890.12,
		Change24h:      6.4,
		ForecastPrice:  70100,
		ForecastChange: 3.25,
		ForecastDays:   3,
		HasForecast:    true,
		SentimentScore: 72.5,
		Category:       "Medium",
		Reasons:        []notifier.AlertReason{notifier.AlertReasonPriceSwing},
		Timestamp:      time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
	}

	embed := client.buildMarketEmbed(alert)

	if embed.Title != "⚡ Price Swing BTC" {
		t.Errorf("unexpected title: %s", embed.Title)
	}
	if embed.Color != 0x2ECC71 {
		t.Errorf("unexpected color for up move: %d", embed.Color)
	}
	if len(embed.Fields) != 4 {
		t.Fatalf("expected 4 fields, got %d", len(embed.Fields))
	}
	if embed.Fields[0].Value != "$67,890.12" {
		t.Errorf("unexpected price field: %s", embed.Fields[0].Value)
	}
	if embed.Fields[1].Value != "🟢 +6.40%" {
		t.Errorf("unexpected change field: %s", embed.Fields[1].Value)
	}
	if embed.Fields[2].Value != "$70,100.00 (+3.25%) in 3 days" {
		t.Errorf("unexpected forecast field: %s", embed.Fields[2].Value)
	}
	if embed.Timestamp != "2024-01-15T10:30:00Z" {
		t.Errorf("unexpected timestamp: %s", embed.Timestamp)
	}
	for _, f := range embed.Fields {
		if !f.Inline {
			t.Errorf("expected field %s to be inline", f.Name)
		}
	}
}

func TestBuildMarketEmbed_PriceDown(t *testing.T) {
	client := &DiscordClient{logger: zap.NewNop()}

	alert := notifier.MarketAlert{
		Coin:      "DOGE",
		Price:     0.1234,
		Change24h: -8.1,
		Reasons:   []notifier.AlertReason{notifier.AlertReasonPriceSwing},
	}

	embed := client.buildMarketEmbed(alert)

	if embed.Color != 0xE74C3C {
		t.Errorf("unexpected color for down move: %d", embed.Color)
	}
	if embed.Fields[0].Value != "$0.1234" {
		t.Errorf("unexpected price field: %s", embed.Fields[0].Value)
	}
	if embed.Fields[1].Value != "🔴 -8.10%" {
		t.Errorf("unexpected change field: %s", embed.Fields[1].Value)
	}
	if embed.Fields[2].Value != "N/A" {
		t.Errorf("expected N/A forecast without predictions, got %s", embed.Fields[2].Value)
	}
}

func TestBuildMarketEmbed_SentimentShift(t *testing.T) {
	client := &DiscordClient{logger: zap.NewNop()}

	alert := notifier.MarketAlert{
		Coin:           "ETH",
		SentimentScore: 18,
		Category:       "Worst",
		PrevCategory:   "Average",
		Reasons:        []notifier.AlertReason{notifier.AlertReasonSentimentShift},
	}

	embed := client.buildMarketEmbed(alert)

	if embed.Title != "📰 Sentiment Shift ETH" {
		t.Errorf("unexpected title: %s", embed.Title)
	}
	if embed.Fields[3].Value != "Average → Worst (18.0/100)" {
		t.Errorf("unexpected sentiment field: %s", embed.Fields[3].Value)
	}
}

func TestBuildMarketEmbed_ZeroTimestamp(t *testing.T) {
	client := &DiscordClient{logger: zap.NewNop()}

	embed := client.buildMarketEmbed(notifier.MarketAlert{Coin: "SOL"})

	if embed.Timestamp == "" {
		t.Error("expected timestamp to default to now")
	}
	if !strings.HasPrefix(embed.Footer.Text, "cryptodash * ") {
		t.Errorf("unexpected footer: %s", embed.Footer.Text)
	}
}

func TestBuildAlertTitle(t *testing.T) {
	client := &DiscordClient{logger: zap.NewNop()}

	tests := []struct {
		name    string
		reasons []notifier.AlertReason
		want    string
	}{
		{"none", nil, "🚨 Market Alert"},
		{"price", []notifier.AlertReason{notifier.AlertReasonPriceSwing}, "⚡ Price Swing"},
		{"forecast", []notifier.AlertReason{notifier.AlertReasonForecastMove}, "🔮 Forecast Move"},
		{"sentiment", []notifier.AlertReason{notifier.AlertReasonSentimentShift}, "📰 Sentiment Shift"},
		{"price+forecast", []notifier.AlertReason{
			notifier.AlertReasonForecastMove, notifier.AlertReasonPriceSwing,
		}, "⚡ Price Swing + Forecast Move"},
		{"price+sentiment", []notifier.AlertReason{
			notifier.AlertReasonPriceSwing, notifier.AlertReasonSentimentShift,
		}, "⚡ Price Swing + Sentiment Shift"},
		{"forecast+sentiment", []notifier.AlertReason{
			notifier.AlertReasonSentimentShift, notifier.AlertReasonForecastMove,
		}, "🔮 Forecast Move + Sentiment Shift"},
		{"all", []notifier.AlertReason{
			notifier.AlertReasonSentimentShift, notifier.AlertReasonPriceSwing, notifier.AlertReasonForecastMove,
		}, "🚨 Multiple Alert Triggers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := client.buildAlertTitle(tt.reasons); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestClose_NoSession(t *testing.T) {
	client := &DiscordClient{logger: zap.NewNop()}

	if err := client.Close(); err != nil {
		t.Errorf("unexpected error on close: %v", err)
	}
}
