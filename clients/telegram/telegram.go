package telegram

import (
	"bytes"
	"cryptodash/clients/notifier"
	"cryptodash/config"
	"cryptodash/internal/market"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const telegramAPIBase = "https://api.telegram.org"

// TelegramClient sends alerts to Telegram.
// Implements notifier.Notifier interface.
type TelegramClient struct {
	logger   *zap.Logger
	botToken string
	chatID   string
	isProd   bool
	apiBase  string
	client   *http.Client
}

func NewTelegramClient(logger *zap.Logger, cfg *config.Config) *TelegramClient {
	if logger == nil {
		logger = zap.NewNop()
	}

	chatID := cfg.Telegram.BetaChatID
	if cfg.IsProd {
		chatID = cfg.Telegram.ProdChatID
	}

	token := cfg.Telegram.BotToken
	if token == "" {
		logger.Warn("TELEGRAM_BOT_KEY not set, Telegram alerts disabled")
		return &TelegramClient{
			logger:  logger,
			chatID:  chatID,
			isProd:  cfg.IsProd,
			apiBase: telegramAPIBase,
		}
	}

	logger.Info("telegram bot initialized",
		zap.Bool("isProd", cfg.IsProd),
		zap.String("chatID", chatID),
	)

	return &TelegramClient{
		logger:   logger,
		botToken: token,
		chatID:   chatID,
		isProd:   cfg.IsProd,
		apiBase:  telegramAPIBase,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether both a token and a chat are configured.
func (tc *TelegramClient) Enabled() bool {
	return tc.botToken != "" && tc.chatID != ""
}

// SendMarketAlert sends a market alert notification.
// Implements notifier.Notifier interface.
func (tc *TelegramClient) SendMarketAlert(alert notifier.MarketAlert) {
	if !tc.Enabled() {
		tc.logger.Warn("telegram not configured, skipping alert")
		return
	}

	message := tc.buildAlertMessage(alert)

	if err := tc.sendMessage(message); err != nil {
		tc.logger.Error("failed to send telegram message", zap.Error(err))
		return
	}

	tc.logger.Info("sent telegram market alert",
		zap.String("coin", alert.Coin),
		zap.Int("reasons", len(alert.Reasons)),
	)
}

func (tc *TelegramClient) buildAlertMessage(alert notifier.MarketAlert) string {
	var sb strings.Builder

	title := tc.buildAlertTitle(alert.Reasons)
	sb.WriteString(fmt.Sprintf("*%s %s*\n\n", escapeMarkdown(title), escapeMarkdown(alert.Coin)))

	// Price
	changeEmoji := "🟢"
	if alert.Change24h < 0 {
		changeEmoji = "🔴"
	}
	sb.WriteString(fmt.Sprintf("*Price:* $%s\n", market.FormatPrice(alert.Price)))
	sb.WriteString(fmt.Sprintf("*24h Change:* %s %s\n", changeEmoji, market.FormatChange(alert.Change24h)))

	// Forecast
	if alert.HasForecast {
		sb.WriteString(fmt.Sprintf("*Forecast:* $%s (%s) in %d days\n",
			market.FormatPrice(alert.ForecastPrice),
			market.FormatChange(alert.ForecastChange),
			alert.ForecastDays,
		))
	} else {
		sb.WriteString("*Forecast:* N/A\n")
	}

	// Sentiment
	if alert.PrevCategory != "" && alert.PrevCategory != alert.Category {
		sb.WriteString(fmt.Sprintf("*Sentiment:* %s → %s (%.1f/100)\n",
			escapeMarkdown(alert.PrevCategory), escapeMarkdown(alert.Category), alert.SentimentScore))
	} else {
		sb.WriteString(fmt.Sprintf("*Sentiment:* %s (%.1f/100)\n",
			escapeMarkdown(alert.Category), alert.SentimentScore))
	}

	ts := alert.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	sb.WriteString(fmt.Sprintf("\n_cryptodash • %s_", ts.UTC().Format("1/2/2006, 3:04:05PM (MST)")))

	return sb.String()
}

func (tc *TelegramClient) buildAlertTitle(reasons []notifier.AlertReason) string {
	var parts []string
	seen := make(map[notifier.AlertReason]bool)
	for _, r := range reasons {
		seen[r] = true
	}

	if seen[notifier.AlertReasonPriceSwing] {
		parts = append(parts, "Price Swing")
	}
	if seen[notifier.AlertReasonForecastMove] {
		parts = append(parts, "Forecast Move")
	}
	if seen[notifier.AlertReasonSentimentShift] {
		parts = append(parts, "Sentiment Shift")
	}

	switch len(parts) {
	case 0:
		return "🚨 Market Alert"
	case 3:
		return "🚨 Multiple Alert Triggers"
	default:
		return "📈 " + strings.Join(parts, " + ")
	}
}

func (tc *TelegramClient) sendMessage(text string) error {
	url := fmt.Sprintf("%s/bot%s/%s", tc.apiBase, tc.botToken, "sendMessage")

	payload := map[string]interface{}{
		"chat_id":    tc.chatID,
		"text":       text,
		"parse_mode": "Markdown",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	resp, err := tc.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}

	return nil
}

// Close cleans up resources. Implements notifier.Notifier interface.
func (tc *TelegramClient) Close() error {
	return nil
}

// escapeMarkdown escapes special characters for Telegram Markdown.
func escapeMarkdown(s string) string {
	replacer := strings.NewReplacer(
		"_", "\\_",
		"*", "\\*",
		"[", "\\[",
		"]", "\\]",
		"`", "\\`",
	)
	return replacer.Replace(s)
}
