package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	// Environment
	IsProd bool `json:"is_prod" yaml:"is_prod"`

	// Discord
	Discord DiscordConfig `json:"discord" yaml:"discord"`

	// Telegram
	Telegram TelegramConfig `json:"telegram" yaml:"telegram"`

	// Prediction backend
	Backend BackendConfig `json:"backend" yaml:"backend"`

	// Dashboard refresh behaviour
	Dashboard DashboardConfig `json:"dashboard" yaml:"dashboard"`

	// Market alerts
	Alerts AlertsConfig `json:"alerts" yaml:"alerts"`

	// Web dashboard server
	Server ServerConfig `json:"server" yaml:"server"`

	// Alert state persistence
	Gist GistConfig `json:"gist" yaml:"gist"`
}

// DiscordConfig holds Discord-related configuration.
type DiscordConfig struct {
	BotToken      string `json:"-" yaml:"-"` // Excluded - env var only
	ProdChannelID string `json:"prod_channel_id" yaml:"prod_channel_id"`
	BetaChannelID string `json:"beta_channel_id" yaml:"beta_channel_id"`
}

// TelegramConfig holds Telegram-related configuration.
type TelegramConfig struct {
	BotToken   string `json:"-" yaml:"-"` // Excluded - env var only
	ProdChatID string `json:"prod_chat_id" yaml:"prod_chat_id"`
	BetaChatID string `json:"beta_chat_id" yaml:"beta_chat_id"`
}

// BackendConfig holds prediction backend API configuration.
type BackendConfig struct {
	BaseURL           string        `json:"base_url" yaml:"base_url"`
	Timeout           time.Duration `json:"timeout" yaml:"timeout"`                         // Cap on a single request, expiry is a transport failure
	RequestsPerSecond float64       `json:"requests_per_second" yaml:"requests_per_second"` // Outbound throttle
	Burst             int           `json:"burst" yaml:"burst"`
}

// DashboardConfig holds refresh and rendering configuration.
type DashboardConfig struct {
	DefaultCoin     string        `json:"default_coin" yaml:"default_coin"`
	RefreshInterval time.Duration `json:"refresh_interval" yaml:"refresh_interval"`
	NewsLimit       int           `json:"news_limit" yaml:"news_limit"`
}

// AlertsConfig holds market alert thresholds.
type AlertsConfig struct {
	PriceSwingPct   float64       `json:"price_swing_pct" yaml:"price_swing_pct"`     // |24h change| that triggers an alert (e.g., 5 = 5%)
	ForecastMovePct float64       `json:"forecast_move_pct" yaml:"forecast_move_pct"` // |last forecast change| that triggers an alert
	Cooldown        time.Duration `json:"cooldown" yaml:"cooldown"`                   // Min time between alerts per coin+reason
}

// ServerConfig holds web dashboard server configuration.
type ServerConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	Port    int  `json:"port" yaml:"port"`
}

// GistConfig holds GitHub Gist alert state persistence configuration.
type GistConfig struct {
	Token        string        `json:"-" yaml:"-"` // Excluded - env var only
	GistID       string        `json:"gist_id" yaml:"gist_id"`
	StateFile    string        `json:"state_file" yaml:"state_file"`
	SaveInterval time.Duration `json:"save_interval" yaml:"save_interval"`
}

// Clone creates a copy of the config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// ToJSON serializes the config to JSON.
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// Defaults returns a config with hardcoded default values.
func Defaults() *Config {
	return &Config{
		IsProd:   false,
		Discord:  DiscordConfig{},
		Telegram: TelegramConfig{},
		Backend: BackendConfig{
			BaseURL:           "http://localhost:5000/api",
			Timeout:           15 * time.Second,
			RequestsPerSecond: 5,
			Burst:             5,
		},
		Dashboard: DashboardConfig{
			DefaultCoin:     "BTC",
			RefreshInterval: 60 * time.Second,
			NewsLimit:       5,
		},
		Alerts: AlertsConfig{
			PriceSwingPct:   5.0,
			ForecastMovePct: 5.0,
			Cooldown:        1 * time.Hour,
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    8080,
		},
		Gist: GistConfig{
			StateFile:    "alert_state.json",
			SaveInterval: 10 * time.Minute,
		},
	}
}

// Load loads configuration from environment variables with defaults.
func Load() *Config {
	cfg := Defaults()
	applyEnv(cfg)
	return cfg
}

// LoadFile reads a YAML config file over the defaults, then applies
// environment variable overrides. A missing file is not an error.
func LoadFile(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyEnv overrides cfg with any environment variables that are set.
func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("STAGE")); v != "" {
		cfg.IsProd = strings.EqualFold(v, "PROD")
	}

	cfg.Discord.BotToken = envString("DISCORD_BOT_TOKEN", cfg.Discord.BotToken)
	cfg.Discord.ProdChannelID = envString("DISCORD_PROD_CHANNEL_ID", cfg.Discord.ProdChannelID)
	cfg.Discord.BetaChannelID = envString("DISCORD_BETA_CHANNEL_ID", cfg.Discord.BetaChannelID)

	cfg.Telegram.BotToken = envString("TELEGRAM_BOT_KEY", cfg.Telegram.BotToken)
	cfg.Telegram.ProdChatID = envString("TELEGRAM_PROD_CHAT_ID", cfg.Telegram.ProdChatID)
	cfg.Telegram.BetaChatID = envString("TELEGRAM_BETA_CHAT_ID", cfg.Telegram.BetaChatID)

	cfg.Backend.BaseURL = envString("BACKEND_API_URL", cfg.Backend.BaseURL)
	cfg.Backend.Timeout = envDuration("BACKEND_TIMEOUT", cfg.Backend.Timeout)
	cfg.Backend.RequestsPerSecond = envFloat("BACKEND_REQUESTS_PER_SECOND", cfg.Backend.RequestsPerSecond)
	cfg.Backend.Burst = envInt("BACKEND_BURST", cfg.Backend.Burst)

	cfg.Dashboard.DefaultCoin = strings.ToUpper(envString("DEFAULT_COIN", cfg.Dashboard.DefaultCoin))
	cfg.Dashboard.RefreshInterval = envDuration("REFRESH_INTERVAL", cfg.Dashboard.RefreshInterval)
	cfg.Dashboard.NewsLimit = envInt("NEWS_LIMIT", cfg.Dashboard.NewsLimit)

	cfg.Alerts.PriceSwingPct = envFloat("ALERT_PRICE_SWING_PCT", cfg.Alerts.PriceSwingPct)
	cfg.Alerts.ForecastMovePct = envFloat("ALERT_FORECAST_MOVE_PCT", cfg.Alerts.ForecastMovePct)
	cfg.Alerts.Cooldown = envDuration("ALERT_COOLDOWN", cfg.Alerts.Cooldown)

	cfg.Server.Enabled = envBoolDefault("SERVER_ENABLED", cfg.Server.Enabled)
	cfg.Server.Port = envInt("SERVER_PORT", cfg.Server.Port)

	cfg.Gist.Token = envString("GITHUB_TOKEN", cfg.Gist.Token)
	cfg.Gist.GistID = envString("GIST_ID", cfg.Gist.GistID)
	cfg.Gist.SaveInterval = envDuration("GIST_SAVE_INTERVAL", cfg.Gist.SaveInterval)
}

// Helper functions for parsing environment variables

func envString(key, defaultVal string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func envFloat(key string, defaultVal float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func envBoolDefault(key string, defaultVal bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	return strings.EqualFold(v, "true") || strings.EqualFold(v, "1") || strings.EqualFold(v, "yes")
}
