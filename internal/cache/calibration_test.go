package cache

import (
	"context"
	"testing"
	"time"

	"quantcore/internal/domain/models"
)

func TestMemoryCacheHit(t *testing.T) {
	c := NewMemoryCalibrationCache(time.Minute)
	ctx := context.Background()

	if _, ok := c.Get(ctx, "SBER"); ok {
		t.Fatalf("unexpected hit on empty cache")
	}

	cal := &models.Calibration{Ticker: "SBER", Alpha: 0.44, R2: 0.95}
	c.Put(ctx, "SBER", cal)

	got, ok := c.Get(ctx, "SBER")
	if !ok {
		t.Fatalf("expected hit")
	}
	if got.Alpha != 0.44 || got.Ticker != "SBER" {
		t.Fatalf("cached calibration = %+v", got)
	}

	if _, ok := c.Get(ctx, "GAZP"); ok {
		t.Fatalf("unexpected hit for another ticker")
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCalibrationCache(time.Nanosecond)
	ctx := context.Background()

	c.Put(ctx, "SBER", &models.Calibration{Ticker: "SBER"})
	time.Sleep(time.Millisecond)

	if _, ok := c.Get(ctx, "SBER"); ok {
		t.Fatalf("expected expired entry to miss")
	}
	// Expired entries are evicted on read.
	c.mu.RLock()
	_, present := c.m["SBER"]
	c.mu.RUnlock()
	if present {
		t.Fatalf("expired entry not evicted")
	}
}

func TestMemoryCacheOverwrite(t *testing.T) {
	c := NewMemoryCalibrationCache(time.Minute)
	ctx := context.Background()

	c.Put(ctx, "SBER", &models.Calibration{Ticker: "SBER", Alpha: 0.4})
	c.Put(ctx, "SBER", &models.Calibration{Ticker: "SBER", Alpha: 0.5})

	got, ok := c.Get(ctx, "SBER")
	if !ok {
		t.Fatalf("expected hit")
	}
	if got.Alpha != 0.5 {
		t.Fatalf("alpha = %v, want the newer snapshot", got.Alpha)
	}
}
