package store

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/figmp/figmarket/internal/market"
)

// Saver writes a registry snapshot. Implemented by SnapshotStore.
type Saver interface {
	Save(state map[string]market.State) error
}

// Flusher coalesces persistence writes: mutating events mark the
// registry dirty without blocking, and a background loop flushes the
// then-current state on a bounded interval. Each flush is an idempotent
// full snapshot, so intermediate states collapse without loss.
type Flusher struct {
	interval time.Duration
	registry *market.Registry
	saver    Saver
	logger   *slog.Logger
	dirty    atomic.Bool
}

// NewFlusher creates a Flusher writing registry snapshots via saver.
func NewFlusher(interval time.Duration, registry *market.Registry, saver Saver, logger *slog.Logger) *Flusher {
	return &Flusher{
		interval: interval,
		registry: registry,
		saver:    saver,
		logger:   logger,
	}
}

// MarkDirty schedules a write. Multiple calls within one interval
// produce a single flush. Never blocks.
func (f *Flusher) MarkDirty() {
	f.dirty.Store(true)
}

// Start launches the background flush loop. It stops when ctx is
// cancelled; callers must still Flush once after that to guarantee the
// last mutation reaches disk before process exit.
func (f *Flusher) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(f.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				f.Flush()
			}
		}
	}()
}

// Flush writes a snapshot now if there are unpersisted mutations. A
// write failure is logged and the dirty mark restored; the in-memory
// registry remains the source of truth until the next successful flush.
func (f *Flusher) Flush() {
	if !f.dirty.CompareAndSwap(true, false) {
		return
	}
	if err := f.saver.Save(f.registry.Snapshot()); err != nil {
		f.dirty.Store(true)
		f.logger.Error("market store flush failed", slog.String("error", err.Error()))
	}
}
