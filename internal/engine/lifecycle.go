package engine

import (
	"context"
	"log/slog"

	"github.com/figmp/figmarket/internal/market"
	"github.com/figmp/figmarket/internal/scales"
)

// Lifecycle handles external cancellation of escrow holds: when a user
// reclaims their own pending order (or the escrow expires it), the
// backing resting order must leave the book.
type Lifecycle struct {
	registry *market.Registry
	writes   WriteScheduler
	logger   *slog.Logger
}

// NewLifecycle creates a Lifecycle handler.
func NewLifecycle(registry *market.Registry, writes WriteScheduler, logger *slog.Logger) *Lifecycle {
	return &Lifecycle{
		registry: registry,
		writes:   writes,
		logger:   logger,
	}
}

// HandleHoldRevoked removes the resting order backed by holdID. The
// hold's descriptor identifies the side and figurine. A revocation for
// an order that no longer exists is logged and ignored: it may race
// with a match that already consumed the order.
func (l *Lifecycle) HandleHoldRevoked(_ context.Context, holdID, descriptor string) error {
	side, fig, err := scales.ParseDescriptor(descriptor)
	if err != nil {
		l.logger.Warn("hold revoked with unrecognized descriptor",
			slog.String("hold_id", holdID),
			slog.String("descriptor", descriptor))
		return nil
	}

	m := l.registry.GetOrCreate(fig)
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if side == scales.HoldSideBuy {
		_, err = m.Book().RemoveBuyByHold(holdID)
	} else {
		_, err = m.Book().RemoveSellByHold(holdID)
	}
	if err != nil {
		l.logger.Info("revoked hold had no resting order, ignoring",
			slog.String("hold_id", holdID),
			slog.String("figurine", fig.Key()))
		return nil
	}

	l.writes.MarkDirty()
	return nil
}
