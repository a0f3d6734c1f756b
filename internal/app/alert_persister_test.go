package app

import (
	"context"
	"cryptodash/internal/market"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestAlertPersister_Defaults(t *testing.T) {
	p := NewAlertPersister(nil, NewMockGistStorage(), newTestAlertTracker(nil), 0, "")

	if p.fileName != "alert_state.json" {
		t.Errorf("unexpected file name: %s", p.fileName)
	}
	if p.saveInterval != 10*time.Minute {
		t.Errorf("unexpected interval: %v", p.saveInterval)
	}
}

func TestAlertPersister_SaveAndLoad(t *testing.T) {
	storage := NewMockGistStorage()
	source := newTestAlertTracker(nil)
	source.Evaluate(market.ETH, samplePayload(market.ETH, 100, 0))

	if err := NewAlertPersister(zap.NewNop(), storage, source, time.Minute, "state.json").Save(context.Background()); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if storage.Saves() != 1 {
		t.Errorf("expected 1 save, got %d", storage.Saves())
	}

	target := newTestAlertTracker(nil)
	imported, err := NewAlertPersister(zap.NewNop(), storage, target, time.Minute, "state.json").Load(context.Background())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if imported != 1 || target.CategoryCount() != 1 {
		t.Errorf("expected 1 category restored, got %d", imported)
	}
}

func TestAlertPersister_SaveSkipsEmptyState(t *testing.T) {
	storage := NewMockGistStorage()
	p := NewAlertPersister(zap.NewNop(), storage, newTestAlertTracker(nil), time.Minute, "")

	if err := p.Save(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if storage.Saves() != 0 {
		t.Error("expected no save for empty state")
	}
}

func TestAlertPersister_Disabled(t *testing.T) {
	storage := NewMockGistStorage()
	storage.enabled = false
	tracker := newTestAlertTracker(nil)
	tracker.Evaluate(market.BTC, samplePayload(market.BTC, 100, 0))
	p := NewAlertPersister(zap.NewNop(), storage, tracker, time.Minute, "")

	if n, err := p.Load(context.Background()); n != 0 || err != nil {
		t.Errorf("expected disabled load to be a no-op, got %d %v", n, err)
	}
	if err := p.Save(context.Background()); err != nil || storage.Saves() != 0 {
		t.Errorf("expected disabled save to be a no-op, got %v", err)
	}

	// Run returns immediately when disabled
	done := make(chan struct{})
	go func() {
		p.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("Run should return when storage is disabled")
	}
}

func TestAlertPersister_LoadNothingStored(t *testing.T) {
	p := NewAlertPersister(zap.NewNop(), NewMockGistStorage(), newTestAlertTracker(nil), time.Minute, "")

	n, err := p.Load(context.Background())
	if n != 0 || err != nil {
		t.Errorf("expected fresh start, got %d %v", n, err)
	}
}

func TestAlertPersister_LoadError(t *testing.T) {
	storage := NewMockGistStorage()
	storage.loadErr = errors.New("boom")
	p := NewAlertPersister(zap.NewNop(), storage, newTestAlertTracker(nil), time.Minute, "")

	if _, err := p.Load(context.Background()); err == nil {
		t.Error("expected load error")
	}
}

func TestAlertPersister_RunSavesOnShutdown(t *testing.T) {
	storage := NewMockGistStorage()
	tracker := newTestAlertTracker(nil)
	tracker.Evaluate(market.BTC, samplePayload(market.BTC, 100, 0))
	p := NewAlertPersister(zap.NewNop(), storage, tracker, time.Hour, "")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}

	if storage.Saves() != 1 {
		t.Errorf("expected final save on shutdown, got %d", storage.Saves())
	}
}
