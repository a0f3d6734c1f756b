package app

import (
	"context"
	clts "cryptodash/clients"
	"cryptodash/config"
	"cryptodash/internal/market"
	"io"
	"net/http"
	"runtime"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
)

// Build info - populated from embedded VCS info at init time
var (
	BuildCommit = "dev"
	BuildTime   = "unknown"
)

func init() {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				if setting.Value != "" {
					BuildCommit = setting.Value
				}
			case "vcs.time":
				BuildTime = setting.Value
			}
		}
	}
}

const (
	shutdownTimeout = 5 * time.Second
	loadTimeout     = 30 * time.Second
)

// Runner wires the dashboard to a view, the refresh scheduler, market alerts
// and, in web mode, the HTTP server.
type Runner struct {
	clients   *clts.Clients
	cfg       *config.Config
	logger    *zap.Logger
	web       *WebView      // Web mode only
	term      *TerminalView // Terminal mode only
	input     io.Reader
	chart     *ChartRenderer
	dashboard *Dashboard
	scheduler *Scheduler
	alerts    *AlertTracker
	persister *AlertPersister
	persisted chan struct{} // closed when the persister's final save is done

	healthServer *http.Server
	startTime    time.Time
	baseCtx      context.Context
}

// ServiceStats holds service statistics for /stats.
type ServiceStats struct {
	// Build info
	Build struct {
		Commit    string `json:"commit"`
		Time      string `json:"time,omitempty"`
		GoVersion string `json:"go_version"`
	} `json:"build"`

	// Service info
	StartTime string `json:"start_time"`
	Uptime    string `json:"uptime"`
	UptimeSec int64  `json:"uptime_seconds"`

	// Dashboard state
	Dashboard struct {
		Coin            string       `json:"coin"`
		RefreshInterval string       `json:"refresh_interval"`
		Backend         string       `json:"backend"`
		Refresh         RefreshStats `json:"refresh"`
		LastSuccessAgo  string       `json:"last_success_ago,omitempty"`
		WebClients      int          `json:"web_clients"`
	} `json:"dashboard"`

	// Alert stats
	Alerts AlertStats `json:"alerts"`

	// Notification status
	Notifications struct {
		DiscordEnabled   bool   `json:"discord_enabled"`
		DiscordChannelID string `json:"discord_channel_id,omitempty"`
		TelegramEnabled  bool   `json:"telegram_enabled"`
		TelegramChatID   string `json:"telegram_chat_id,omitempty"`
		GistEnabled      bool   `json:"gist_enabled"`
	} `json:"notifications"`

	// Runtime stats
	Runtime struct {
		Goroutines int    `json:"goroutines"`
		HeapAlloc  uint64 `json:"heap_alloc_bytes"`
		HeapSys    uint64 `json:"heap_sys_bytes"`
		NumGC      uint32 `json:"num_gc"`
		GoVersion  string `json:"go_version"`
		NumCPU     int    `json:"num_cpu"`
		GOOS       string `json:"goos"`
		GOARCH     string `json:"goarch"`
	} `json:"runtime"`
}

// NewRunner builds a runner for the web dashboard.
func NewRunner(clients *clts.Clients, cfg *config.Config) *Runner {
	web := NewWebView(clients.Logger)
	r := newRunner(clients, cfg, web, web.ChartBackend())
	r.web = web
	return r
}

// NewTerminalRunner builds a runner that draws to out and reads coin
// selections from in.
func NewTerminalRunner(clients *clts.Clients, cfg *config.Config, in io.Reader, out io.Writer) *Runner {
	term := NewTerminalView(clients.Logger, out)
	r := newRunner(clients, cfg, term, term.ChartBackend())
	r.term = term
	r.input = in
	return r
}

func newRunner(clients *clts.Clients, cfg *config.Config, view View, chartBackend ChartBackend) *Runner {
	logger := clients.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	chart := NewChartRenderer(logger, chartBackend)
	dashboard := NewDashboard(logger, clients.Backend, view, chart, cfg)
	alerts := NewAlertTracker(logger, clients.Notifier, cfg)
	dashboard.SetAlertSink(alerts)

	r := &Runner{
		clients:   clients,
		cfg:       cfg,
		logger:    logger,
		chart:     chart,
		dashboard: dashboard,
		scheduler: NewScheduler(logger, cfg.Dashboard.RefreshInterval),
		alerts:    alerts,
		startTime: time.Now(),
		baseCtx:   context.Background(),
	}
	if clients.Gist != nil {
		r.persister = NewAlertPersister(logger, clients.Gist, alerts, cfg.Gist.SaveInterval, cfg.Gist.StateFile)
	}
	return r
}

// Run starts the dashboard and blocks until ctx is done or, in terminal
// mode, the user quits.
func (r *Runner) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.baseCtx = ctx

	r.logger.Info("starting dashboard",
		zap.String("coin", r.dashboard.Current().String()),
		zap.String("backend", r.cfg.Backend.BaseURL),
		zap.Duration("refreshInterval", r.cfg.Dashboard.RefreshInterval),
		zap.Bool("terminal", r.term != nil),
	)

	if err := r.scheduler.Every(ctx, "dashboard-refresh", r.tick); err != nil {
		return err
	}

	if r.persister != nil {
		loadCtx, loadCancel := context.WithTimeout(ctx, loadTimeout)
		if _, err := r.persister.Load(loadCtx); err != nil {
			r.logger.Warn("continuing without persisted alert state", zap.Error(err))
		}
		loadCancel()
		r.persisted = make(chan struct{})
		go func() {
			defer close(r.persisted)
			r.persister.Run(ctx)
		}()
	}

	if r.web != nil {
		r.web.OnSelect(r.selectAsync)
		r.web.OnRefresh(r.refreshAsync)
		if r.cfg.Server.Enabled {
			r.startHealthServer(r.cfg.Server.Port)
		}
	}

	r.scheduler.Start()

	// First paint
	r.selectAsync(r.dashboard.Current())

	if r.term != nil {
		r.term.ReadCommands(ctx, r.input, r.selectAsync)
		cancel()
	}

	<-ctx.Done()
	r.shutdown()
	return nil
}

// selectAsync runs a selection in its own goroutine. The fetch is bounded by
// the backend timeout.
func (r *Runner) selectAsync(asset market.Asset) {
	go func() {
		if err := r.dashboard.Select(r.baseCtx, asset); err != nil {
			r.logger.Debug("selection refresh failed", zap.String("coin", asset.String()), zap.Error(err))
		}
	}()
}

func (r *Runner) refreshAsync() {
	go func() {
		if err := r.dashboard.Refresh(r.baseCtx); err != nil {
			r.logger.Debug("manual refresh failed", zap.Error(err))
		}
	}()
}

func (r *Runner) tick(ctx context.Context) {
	ran, err := r.dashboard.RefreshIfIdle(ctx)
	if err != nil {
		r.logger.Debug("scheduled refresh failed", zap.Error(err))
		return
	}
	if !ran {
		r.logger.Debug("scheduled refresh skipped, previous still in flight")
	}
}

func (r *Runner) shutdown() {
	r.logger.Info("shutting down")

	r.scheduler.Stop()

	if err := r.chart.Destroy(); err != nil {
		r.logger.Warn("failed to destroy chart", zap.Error(err))
	}

	if r.web != nil {
		r.web.Close()
	}

	if r.healthServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := r.healthServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("health server shutdown failed", zap.Error(err))
		}
		cancel()
	}

	if r.persisted != nil {
		<-r.persisted
	}

	if err := r.clients.Close(); err != nil {
		r.logger.Warn("failed to close notifiers", zap.Error(err))
	}
}

// GetStats returns service statistics.
func (r *Runner) GetStats() ServiceStats {
	var stats ServiceStats

	// Build info
	stats.Build.Commit = BuildCommit
	stats.Build.Time = BuildTime
	stats.Build.GoVersion = runtime.Version()

	// Service info
	stats.StartTime = r.startTime.UTC().Format(time.RFC3339)
	uptime := time.Since(r.startTime)
	stats.Uptime = uptime.Round(time.Second).String()
	stats.UptimeSec = int64(uptime.Seconds())

	// Dashboard state
	refresh := r.dashboard.Stats()
	stats.Dashboard.Coin = r.dashboard.Current().String()
	stats.Dashboard.RefreshInterval = r.cfg.Dashboard.RefreshInterval.String()
	stats.Dashboard.Backend = r.cfg.Backend.BaseURL
	stats.Dashboard.Refresh = refresh
	if !refresh.LastSuccessAt.IsZero() {
		stats.Dashboard.LastSuccessAgo = time.Since(refresh.LastSuccessAt).Round(time.Second).String()
	}
	if r.web != nil {
		stats.Dashboard.WebClients = r.web.ClientCount()
	}

	stats.Alerts = r.alerts.Stats()

	// Notification status
	if r.clients.Discord != nil && r.clients.Discord.Enabled() {
		stats.Notifications.DiscordEnabled = true
		stats.Notifications.DiscordChannelID = r.cfg.Discord.BetaChannelID
		if r.cfg.IsProd {
			stats.Notifications.DiscordChannelID = r.cfg.Discord.ProdChannelID
		}
	}
	if r.clients.Telegram != nil && r.clients.Telegram.Enabled() {
		stats.Notifications.TelegramEnabled = true
		stats.Notifications.TelegramChatID = r.cfg.Telegram.BetaChatID
		if r.cfg.IsProd {
			stats.Notifications.TelegramChatID = r.cfg.Telegram.ProdChatID
		}
	}
	stats.Notifications.GistEnabled = r.clients.Gist != nil && r.clients.Gist.IsEnabled()

	// Runtime stats
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats.Runtime.Goroutines = runtime.NumGoroutine()
	stats.Runtime.HeapAlloc = memStats.HeapAlloc
	stats.Runtime.HeapSys = memStats.HeapSys
	stats.Runtime.NumGC = memStats.NumGC
	stats.Runtime.GoVersion = runtime.Version()
	stats.Runtime.NumCPU = runtime.NumCPU()
	stats.Runtime.GOOS = runtime.GOOS
	stats.Runtime.GOARCH = runtime.GOARCH

	return stats
}
