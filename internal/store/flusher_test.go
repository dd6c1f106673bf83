package store

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/figmp/figmarket/internal/domain"
	"github.com/figmp/figmarket/internal/market"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type recordingSaver struct {
	saves []map[string]market.State
	err   error
}

func (r *recordingSaver) Save(state map[string]market.State) error {
	r.saves = append(r.saves, state)
	return r.err
}

func TestFlushCoalescesMarks(t *testing.T) {
	reg := market.NewRegistry()
	saver := &recordingSaver{}
	f := NewFlusher(time.Minute, reg, saver, discard)

	f.MarkDirty()
	f.MarkDirty()
	f.MarkDirty()
	f.Flush()

	if len(saver.saves) != 1 {
		t.Fatalf("expected 1 save for coalesced marks, got %d", len(saver.saves))
	}
}

func TestFlushWithoutMarkIsNoop(t *testing.T) {
	reg := market.NewRegistry()
	saver := &recordingSaver{}
	f := NewFlusher(time.Minute, reg, saver, discard)

	f.Flush()
	f.Flush()

	if len(saver.saves) != 0 {
		t.Fatalf("expected no saves without a dirty mark, got %d", len(saver.saves))
	}
}

func TestFlushSnapshotsCurrentState(t *testing.T) {
	reg := market.NewRegistry()
	m := reg.GetOrCreate(domain.Figurine{Kind: domain.FigKindEmoji, ID: "yay"})
	m.Mu.Lock()
	m.Book().InsertSell(domain.SellOrder{
		Seller: "S1", DemandedCents: 300, HoldID: "h1",
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	m.Mu.Unlock()

	saver := &recordingSaver{}
	f := NewFlusher(time.Minute, reg, saver, discard)
	f.MarkDirty()
	f.Flush()

	if len(saver.saves) != 1 {
		t.Fatalf("expected 1 save, got %d", len(saver.saves))
	}
	st, ok := saver.saves[0]["emoji:yay"]
	if !ok {
		t.Fatal("expected the yay market in the snapshot")
	}
	if len(st.Sells) != 1 || st.Sells[0].HoldID != "h1" {
		t.Errorf("unexpected snapshot sells %+v", st.Sells)
	}
}

func TestFlushFailureRestoresDirty(t *testing.T) {
	reg := market.NewRegistry()
	saver := &recordingSaver{err: errors.New("disk full")}
	f := NewFlusher(time.Minute, reg, saver, discard)

	f.MarkDirty()
	f.Flush()
	if len(saver.saves) != 1 {
		t.Fatalf("expected the failing save attempted, got %d", len(saver.saves))
	}

	// The mark survives a failed save so the next flush retries.
	saver.err = nil
	f.Flush()
	if len(saver.saves) != 2 {
		t.Fatalf("expected a retry after failure, got %d saves", len(saver.saves))
	}

	// A further flush with nothing new stays quiet.
	f.Flush()
	if len(saver.saves) != 2 {
		t.Fatalf("expected no extra save, got %d", len(saver.saves))
	}
}
