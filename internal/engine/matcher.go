package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/figmp/figmarket/internal/domain"
	"github.com/figmp/figmarket/internal/market"
	"github.com/figmp/figmarket/internal/scales"
)

// Notifier tells a user their resting order went live. Delivery is
// fire-and-forget; the engine never blocks on it.
type Notifier interface {
	NotifyOrderPlaced(userID, text string)
}

// WriteScheduler schedules a debounced persistence write after a
// mutation. Implemented by store.Flusher.
type WriteScheduler interface {
	MarkDirty()
}

// Matcher is the matching engine. Each deposit event either executes at
// most one immediate trade against the best resting opposite order or
// parks a new resting order backed by an escrow hold.
//
// The per-market mutex is held for the whole event, external transfer
// calls included, so the multi-step trade sequence appears atomic to
// other in-process readers.
type Matcher struct {
	registry *market.Registry
	transfer scales.Transfer
	notifier Notifier
	writes   WriteScheduler
	logger   *slog.Logger
}

// NewMatcher creates a Matcher with the given dependencies.
func NewMatcher(
	registry *market.Registry,
	transfer scales.Transfer,
	notifier Notifier,
	writes WriteScheduler,
	logger *slog.Logger,
) *Matcher {
	return &Matcher{
		registry: registry,
		transfer: transfer,
		notifier: notifier,
		writes:   writes,
		logger:   logger,
	}
}

// HandleFundsDeposited processes a funds deposit: payerID sent cents
// wanting the figurine referenced by figText. An unparseable figurine
// reference refunds the deposit in full and mutates nothing.
func (e *Matcher) HandleFundsDeposited(ctx context.Context, payerID string, cents int64, figText string) error {
	if cents < 0 {
		return &domain.BadInputError{Message: fmt.Sprintf("negative deposit of %d cents", cents)}
	}

	fig, err := domain.ParseFigurine(figText)
	if err != nil {
		var badInput *domain.BadInputError
		if !errors.As(err, &badInput) {
			return err
		}
		// Input error: send the money back with a note, no state change.
		if _, payErr := e.transfer.Pay(ctx, scales.PayRequest{
			ReceiverID: payerID,
			Cents:      cents,
			Note:       "couldn't tell what figurine that is: " + figText,
		}); payErr != nil {
			e.logger.Error("refund of unmatched deposit failed",
				slog.String("payer", payerID),
				slog.Int64("cents", cents),
				slog.String("error", payErr.Error()))
			return payErr
		}
		return nil
	}

	m := e.registry.GetOrCreate(fig)
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if best, ok := m.Book().BestSell(); ok && cents >= best.DemandedCents {
		return e.executeBuy(ctx, m, payerID, cents, best)
	}

	// No match: re-issue the funds to the payer under a hold so they can
	// be reclaimed when an incoming sell matches this order.
	receipt, err := e.transfer.Pay(ctx, scales.PayRequest{
		ReceiverID:     payerID,
		Cents:          cents,
		HoldDescriptor: scales.BuyingDescriptor(fig),
	})
	if err != nil {
		e.logger.Error("escrowing buy order funds failed",
			slog.String("payer", payerID),
			slog.String("figurine", fig.Key()),
			slog.String("error", err.Error()))
		return err
	}
	// A resting order without a hold id could never be matched or
	// revoked, and would collide with other id-less orders in the book
	// index. Treat a receipt without one as a failed escrow.
	if receipt.HoldID == "" {
		e.logger.Error("escrow receipt missing hold id",
			slog.String("payer", payerID),
			slog.String("figurine", fig.Key()))
		return errors.New("escrowing buy order funds: no hold id returned")
	}

	m.Book().InsertBuy(domain.BuyOrder{
		Buyer:        payerID,
		OfferedCents: cents,
		HoldID:       receipt.HoldID,
		CreatedAt:    time.Now(),
	})
	e.writes.MarkDirty()

	e.notifier.NotifyOrderPlaced(payerID, fmt.Sprintf(
		"Your buy order to purchase a %s at %s is now up!",
		fig.Display(), domain.FormatCents(cents)))
	return nil
}

// executeBuy runs the buyer-initiated immediate trade sequence:
// reclaim the seller's figurine hold, give the figurine to the payer,
// pay the seller their ask, remove the consumed order, append history.
// The payer pays exactly what they deposited; the seller receives only
// the ask. Order of the external calls matters: later steps depend on
// earlier ones having completed.
func (e *Matcher) executeBuy(ctx context.Context, m *market.Market, payerID string, cents int64, best domain.SellOrder) error {
	fig := m.Figurine()

	if err := e.transfer.ReclaimHold(ctx, best.HoldID); err != nil {
		// Nothing has moved yet: leave the book untouched.
		e.logger.Error("reclaiming sell hold failed, trade aborted",
			slog.String("hold_id", best.HoldID),
			slog.String("figurine", fig.Key()),
			slog.String("error", err.Error()))
		return err
	}

	_, err := e.transfer.GiveFigurine(ctx, scales.GiveFigurineRequest{
		ReceiverID: payerID,
		Figurine:   fig,
		Note:       domain.FormatCents(cents),
	})
	if err == nil {
		_, err = e.transfer.Pay(ctx, scales.PayRequest{
			ReceiverID: best.Seller,
			Cents:      best.DemandedCents,
			Note:       fig.Display(),
		})
	}

	// The hold is reclaimed, so the order must never match again: remove
	// it even when a later call failed. Already-completed transfers are
	// not locally reversible, so a mid-sequence failure is logged as an
	// inconsistency and no history is recorded.
	if _, rmErr := m.Book().RemoveSellByHold(best.HoldID); rmErr != nil {
		e.logger.Error("matched sell order missing from book",
			slog.String("hold_id", best.HoldID),
			slog.String("figurine", fig.Key()))
	}
	e.writes.MarkDirty()

	if err != nil {
		e.logger.Error("trade sequence failed mid-flight, assets may be inconsistent",
			slog.String("figurine", fig.Key()),
			slog.String("buyer", payerID),
			slog.String("seller", best.Seller),
			slog.String("error", err.Error()))
		return err
	}

	m.AppendHistory(domain.HistoryEntry{
		Buyer:          payerID,
		Seller:         best.Seller,
		Cents:          cents,
		StartedAt:      best.CreatedAt,
		FinishedAt:     time.Now(),
		BuyerInitiated: true,
	})
	return nil
}

// HandleFigurineDeposited processes a figurine deposit: ownerID sent a
// figurine wanting askText in funds. An unparseable price returns the
// figurine in full and mutates nothing.
func (e *Matcher) HandleFigurineDeposited(ctx context.Context, ownerID string, fig domain.Figurine, askText string) error {
	cents, err := domain.ParsePrice(askText)
	if err != nil {
		var badInput *domain.BadInputError
		if !errors.As(err, &badInput) {
			return err
		}
		// Input error: send the figurine back with a note, no state change.
		if _, giveErr := e.transfer.GiveFigurine(ctx, scales.GiveFigurineRequest{
			ReceiverID: ownerID,
			Figurine:   fig,
			Note:       "expected a price, found: " + askText,
		}); giveErr != nil {
			e.logger.Error("returning figurine for bad price failed",
				slog.String("owner", ownerID),
				slog.String("figurine", fig.Key()),
				slog.String("error", giveErr.Error()))
			return giveErr
		}
		return nil
	}

	m := e.registry.GetOrCreate(fig)
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if best, ok := m.Book().BestBuy(); ok && cents <= best.OfferedCents {
		return e.executeSell(ctx, m, ownerID, cents, best)
	}

	// No match: escrow the figurine under a hold so it can be delivered
	// when an incoming buy matches this order.
	receipt, err := e.transfer.GiveFigurine(ctx, scales.GiveFigurineRequest{
		ReceiverID:     ownerID,
		Figurine:       fig,
		HoldDescriptor: scales.SellingDescriptor(fig, cents),
	})
	if err != nil {
		e.logger.Error("escrowing sell order figurine failed",
			slog.String("owner", ownerID),
			slog.String("figurine", fig.Key()),
			slog.String("error", err.Error()))
		return err
	}
	if receipt.HoldID == "" {
		e.logger.Error("escrow receipt missing hold id",
			slog.String("owner", ownerID),
			slog.String("figurine", fig.Key()))
		return errors.New("escrowing sell order figurine: no hold id returned")
	}

	m.Book().InsertSell(domain.SellOrder{
		Seller:        ownerID,
		DemandedCents: cents,
		HoldID:        receipt.HoldID,
		CreatedAt:     time.Now(),
	})
	e.writes.MarkDirty()

	e.notifier.NotifyOrderPlaced(ownerID, fmt.Sprintf(
		"Your %s is now up for sale at %s!",
		fig.Display(), domain.FormatCents(cents)))
	return nil
}

// executeSell runs the seller-initiated immediate trade sequence:
// reclaim the buyer's funds hold, pay the owner the full resting offer,
// give the figurine to the buyer, remove the consumed order, append
// history. The recorded settlement price is the seller's ask.
func (e *Matcher) executeSell(ctx context.Context, m *market.Market, ownerID string, cents int64, best domain.BuyOrder) error {
	fig := m.Figurine()

	if err := e.transfer.ReclaimHold(ctx, best.HoldID); err != nil {
		e.logger.Error("reclaiming buy hold failed, trade aborted",
			slog.String("hold_id", best.HoldID),
			slog.String("figurine", fig.Key()),
			slog.String("error", err.Error()))
		return err
	}

	_, err := e.transfer.Pay(ctx, scales.PayRequest{
		ReceiverID: ownerID,
		Cents:      best.OfferedCents,
		Note:       fig.Display(),
	})
	if err == nil {
		_, err = e.transfer.GiveFigurine(ctx, scales.GiveFigurineRequest{
			ReceiverID: best.Buyer,
			Figurine:   fig,
			Note:       domain.FormatCents(best.OfferedCents),
		})
	}

	if _, rmErr := m.Book().RemoveBuyByHold(best.HoldID); rmErr != nil {
		e.logger.Error("matched buy order missing from book",
			slog.String("hold_id", best.HoldID),
			slog.String("figurine", fig.Key()))
	}
	e.writes.MarkDirty()

	if err != nil {
		e.logger.Error("trade sequence failed mid-flight, assets may be inconsistent",
			slog.String("figurine", fig.Key()),
			slog.String("buyer", best.Buyer),
			slog.String("seller", ownerID),
			slog.String("error", err.Error()))
		return err
	}

	m.AppendHistory(domain.HistoryEntry{
		Buyer:          best.Buyer,
		Seller:         ownerID,
		Cents:          cents,
		StartedAt:      best.CreatedAt,
		FinishedAt:     time.Now(),
		BuyerInitiated: false,
	})
	return nil
}
