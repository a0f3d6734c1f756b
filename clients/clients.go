package clients

import (
	"cryptodash/clients/discord"
	"cryptodash/clients/gist"
	"cryptodash/clients/notifier"
	"cryptodash/clients/predictapi"
	"cryptodash/clients/telegram"
	"cryptodash/config"

	"go.uber.org/zap"
)

type Clients struct {
	Logger *zap.Logger

	Backend  *predictapi.Client
	Discord  *discord.DiscordClient
	Telegram *telegram.TelegramClient
	Notifier *notifier.MultiNotifier // Combined notifier for configured channels
	Gist     *gist.Client            // Alert state persistence
}

func NewClients(logger *zap.Logger, cfg *config.Config) *Clients {
	discordClient := discord.NewDiscordClient(logger, cfg)
	telegramClient := telegram.NewTelegramClient(logger, cfg)

	// Only channels with credentials take part in alerting
	var channels []notifier.Notifier
	if discordClient.Enabled() {
		channels = append(channels, discordClient)
	}
	if telegramClient.Enabled() {
		channels = append(channels, telegramClient)
	}

	return &Clients{
		Logger:   logger,
		Backend:  predictapi.NewClient(logger, cfg),
		Discord:  discordClient,
		Telegram: telegramClient,
		Notifier: notifier.NewMultiNotifier(channels...),
		Gist:     gist.NewClient(logger, cfg),
	}
}

// Close releases notifier resources.
func (c *Clients) Close() error {
	return c.Notifier.Close()
}
