package app

import (
	"context"
	"cryptodash/clients/gist"
	"errors"
	"time"

	"go.uber.org/zap"
)

// AlertPersister keeps alert tracker state in a GitHub Gist so sentiment
// shifts are detected across restarts.
type AlertPersister struct {
	logger       *zap.Logger
	storage      gist.Storage
	tracker      *AlertTracker
	saveInterval time.Duration
	fileName     string
}

func NewAlertPersister(
	logger *zap.Logger,
	storage gist.Storage,
	tracker *AlertTracker,
	saveInterval time.Duration,
	fileName string,
) *AlertPersister {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fileName == "" {
		fileName = "alert_state.json"
	}
	if saveInterval <= 0 {
		saveInterval = 10 * time.Minute
	}

	return &AlertPersister{
		logger:       logger,
		storage:      storage,
		tracker:      tracker,
		saveInterval: saveInterval,
		fileName:     fileName,
	}
}

// Load restores tracker state from the gist. Returns the number of categories
// restored, or 0 if nothing was stored yet.
func (p *AlertPersister) Load(ctx context.Context) (int, error) {
	if !p.storage.IsEnabled() {
		p.logger.Info("gist client not configured, skipping alert state load")
		return 0, nil
	}

	var snapshot AlertSnapshot
	if err := p.storage.LoadJSON(ctx, p.fileName, &snapshot); err != nil {
		if errors.Is(err, gist.ErrNotFound) {
			p.logger.Info("no persisted alert state, starting fresh",
				zap.String("fileName", p.fileName),
			)
			return 0, nil
		}
		p.logger.Warn("failed to load alert state from gist",
			zap.String("gistID", shortID(p.storage.GetGistID())),
			zap.String("fileName", p.fileName),
			zap.Error(err),
		)
		return 0, err
	}

	imported := p.tracker.Import(&snapshot)

	p.logger.Info("loaded alert state from gist",
		zap.Int("imported", imported),
		zap.Time("savedAt", snapshot.SavedAt),
	)
	return imported, nil
}

// Save writes the current tracker state to the gist.
func (p *AlertPersister) Save(ctx context.Context) error {
	if !p.storage.IsEnabled() {
		return nil
	}

	if p.tracker.CategoryCount() == 0 {
		p.logger.Debug("no alert state yet, skipping save")
		return nil
	}

	snapshot := p.tracker.Export()
	if err := p.storage.SaveJSON(ctx, p.fileName, snapshot); err != nil {
		return err
	}

	p.logger.Info("saved alert state to gist",
		zap.String("gistID", shortID(p.storage.GetGistID())),
		zap.Int("coins", len(snapshot.Categories)),
		zap.Int("recent", len(snapshot.Recent)),
	)
	return nil
}

// Run saves periodically until ctx is done, then saves once more.
func (p *AlertPersister) Run(ctx context.Context) {
	if !p.storage.IsEnabled() {
		p.logger.Info("gist client not configured, alert persistence disabled")
		return
	}

	ticker := time.NewTicker(p.saveInterval)
	defer ticker.Stop()

	p.logger.Info("alert persister started",
		zap.Duration("saveInterval", p.saveInterval),
	)

	for {
		select {
		case <-ctx.Done():
			// Final save on shutdown
			saveCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := p.Save(saveCtx); err != nil {
				p.logger.Error("failed to save alert state on shutdown", zap.Error(err))
			}
			cancel()
			p.logger.Info("alert persister stopped")
			return

		case <-ticker.C:
			if err := p.Save(ctx); err != nil {
				p.logger.Warn("failed to save alert state", zap.Error(err))
			}
		}
	}
}
