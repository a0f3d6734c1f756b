package discord

import (
	"cryptodash/clients/notifier"
	"cryptodash/config"
	"cryptodash/internal/market"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// DiscordClient sends alerts to Discord.
// Implements notifier.Notifier interface.
type DiscordClient struct {
	logger    *zap.Logger
	session   *discordgo.Session
	channelID string
	isProd    bool
}

func NewDiscordClient(logger *zap.Logger, cfg *config.Config) *DiscordClient {
	if logger == nil {
		logger = zap.NewNop()
	}

	channelID := cfg.Discord.BetaChannelID
	if cfg.IsProd {
		channelID = cfg.Discord.ProdChannelID
	}

	token := cfg.Discord.BotToken
	if token == "" {
		logger.Warn("DISCORD_BOT_TOKEN not set, Discord alerts disabled")
		return &DiscordClient{
			logger:    logger,
			channelID: channelID,
			isProd:    cfg.IsProd,
		}
	}

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		logger.Error("failed to create discord session", zap.Error(err))
		return &DiscordClient{
			logger:    logger,
			channelID: channelID,
			isProd:    cfg.IsProd,
		}
	}

	logger.Info("discord bot initialized",
		zap.Bool("isProd", cfg.IsProd),
		zap.String("channelID", channelID),
	)

	return &DiscordClient{
		logger:    logger,
		session:   session,
		channelID: channelID,
		isProd:    cfg.IsProd,
	}
}

// Enabled reports whether the client has a live session.
func (dc *DiscordClient) Enabled() bool {
	return dc.session != nil
}

// SendMessage sends a plain text message.
func (dc *DiscordClient) SendMessage(message string) {
	if dc.session == nil {
		dc.logger.Warn("discord session not initialized, skipping message")
		return
	}

	_, err := dc.session.ChannelMessageSend(dc.channelID, message)
	if err != nil {
		dc.logger.Error("failed to send discord message", zap.Error(err))
		return
	}

	dc.logger.Info("sent discord message")
}

// SendMarketAlert sends a rich embedded market alert.
// Implements notifier.Notifier interface.
func (dc *DiscordClient) SendMarketAlert(alert notifier.MarketAlert) {
	if dc.session == nil {
		dc.logger.Warn("discord session not initialized, skipping alert")
		return
	}

	embed := dc.buildMarketEmbed(alert)

	_, err := dc.session.ChannelMessageSendEmbed(dc.channelID, embed)
	if err != nil {
		dc.logger.Error("failed to send discord embed", zap.Error(err))
		return
	}

	dc.logger.Info("sent discord market alert",
		zap.String("coin", alert.Coin),
		zap.Int("reasons", len(alert.Reasons)),
	)
}

func (dc *DiscordClient) buildMarketEmbed(alert notifier.MarketAlert) *discordgo.MessageEmbed {
	// Color follows the 24h direction
	color := 0x2ECC71 // Green for up
	changeEmoji := "🟢"
	if alert.Change24h < 0 {
		color = 0xE74C3C // Red for down
		changeEmoji = "🔴"
	}

	title := fmt.Sprintf("%s %s", dc.buildAlertTitle(alert.Reasons), alert.Coin)

	forecastStr := "N/A"
	if alert.HasForecast {
		forecastStr = fmt.Sprintf("$%s (%s) in %d days",
			market.FormatPrice(alert.ForecastPrice),
			market.FormatChange(alert.ForecastChange),
			alert.ForecastDays,
		)
	}

	sentimentStr := fmt.Sprintf("%s (%.1f/100)", alert.Category, alert.SentimentScore)
	if alert.PrevCategory != "" && alert.PrevCategory != alert.Category {
		sentimentStr = fmt.Sprintf("%s → %s (%.1f/100)", alert.PrevCategory, alert.Category, alert.SentimentScore)
	}

	fields := []*discordgo.MessageEmbedField{
		{
			Name:   "Price",
			Value:  "$" + market.FormatPrice(alert.Price),
			Inline: true,
		},
		{
			Name:   "24h Change",
			Value:  fmt.Sprintf("%s %s", changeEmoji, market.FormatChange(alert.Change24h)),
			Inline: true,
		},
		{
			Name:   "Forecast",
			Value:  forecastStr,
			Inline: true,
		},
		{
			Name:   "Sentiment",
			Value:  sentimentStr,
			Inline: true,
		},
	}

	ts := alert.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	footerText := fmt.Sprintf("cryptodash * %s", ts.UTC().Format("1/2/2006, 3:04:05PM (MST)"))

	return &discordgo.MessageEmbed{
		Title:  title,
		Color:  color,
		Fields: fields,
		Footer: &discordgo.MessageEmbedFooter{
			Text: footerText,
		},
		Timestamp: ts.Format(time.RFC3339),
	}
}

func (dc *DiscordClient) buildAlertTitle(reasons []notifier.AlertReason) string {
	hasSentimentShift := false
	hasPriceSwing := false
	hasForecastMove := false

	for _, r := range reasons {
		switch r {
		case notifier.AlertReasonSentimentShift:
			hasSentimentShift = true
		case notifier.AlertReasonPriceSwing:
			hasPriceSwing = true
		case notifier.AlertReasonForecastMove:
			hasForecastMove = true
		}
	}

	if hasSentimentShift && hasPriceSwing && hasForecastMove {
		return "🚨 Multiple Alert Triggers"
	}
	if hasPriceSwing && hasForecastMove {
		return "⚡ Price Swing + Forecast Move"
	}
	if hasPriceSwing && hasSentimentShift {
		return "⚡ Price Swing + Sentiment Shift"
	}
	if hasForecastMove && hasSentimentShift {
		return "🔮 Forecast Move + Sentiment Shift"
	}
	if hasPriceSwing {
		return "⚡ Price Swing"
	}
	if hasForecastMove {
		return "🔮 Forecast Move"
	}
	if hasSentimentShift {
		return "📰 Sentiment Shift"
	}
	return "🚨 Market Alert"
}

// Close closes the Discord session.
func (dc *DiscordClient) Close() error {
	if dc.session != nil {
		return dc.session.Close()
	}
	return nil
}
