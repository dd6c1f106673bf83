package market

import (
	"errors"
	"testing"
	"time"

	"github.com/figmp/figmarket/internal/domain"
)

var baseTime = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func makeSell(cents int64, createdAt time.Time, holdID string) domain.SellOrder {
	return domain.SellOrder{
		Seller:        "seller-" + holdID,
		DemandedCents: cents,
		HoldID:        holdID,
		CreatedAt:     createdAt,
	}
}

func makeBuy(cents int64, createdAt time.Time, holdID string) domain.BuyOrder {
	return domain.BuyOrder{
		Buyer:        "buyer-" + holdID,
		OfferedCents: cents,
		HoldID:       holdID,
		CreatedAt:    createdAt,
	}
}

func TestSellLess_PriceAscending(t *testing.T) {
	a := makeSell(100, baseTime, "a")
	b := makeSell(200, baseTime, "b")
	if !sellLess(a, b) {
		t.Error("expected cheaper sell to be less")
	}
	if sellLess(b, a) {
		t.Error("expected pricier sell to not be less")
	}
}

func TestSellLess_TimeAscending(t *testing.T) {
	a := makeSell(100, baseTime, "a")
	b := makeSell(100, baseTime.Add(time.Second), "b")
	if !sellLess(a, b) {
		t.Error("expected earlier sell to be less at same price")
	}
}

func TestBuyLess_PriceDescending(t *testing.T) {
	a := makeBuy(200, baseTime, "a")
	b := makeBuy(100, baseTime, "b")
	if !buyLess(a, b) {
		t.Error("expected more generous buy to be less")
	}
	if buyLess(b, a) {
		t.Error("expected stingier buy to not be less")
	}
}

func TestBuyLess_TimeAscending(t *testing.T) {
	a := makeBuy(100, baseTime, "a")
	b := makeBuy(100, baseTime.Add(time.Second), "b")
	if !buyLess(a, b) {
		t.Error("expected earlier buy to be less at same price")
	}
}

func TestOrderBook_BestSell(t *testing.T) {
	ob := NewOrderBook()
	ob.InsertSell(makeSell(500, baseTime, "h1"))
	ob.InsertSell(makeSell(300, baseTime.Add(time.Second), "h2"))
	ob.InsertSell(makeSell(300, baseTime.Add(2*time.Second), "h3"))

	best, ok := ob.BestSell()
	if !ok {
		t.Fatal("expected best sell to exist")
	}
	// Cheapest, then oldest among ties.
	if best.HoldID != "h2" {
		t.Errorf("expected best sell h2, got %s (%d cents)", best.HoldID, best.DemandedCents)
	}
}

func TestOrderBook_BestBuy(t *testing.T) {
	ob := NewOrderBook()
	ob.InsertBuy(makeBuy(100, baseTime, "h1"))
	ob.InsertBuy(makeBuy(400, baseTime.Add(time.Second), "h2"))
	ob.InsertBuy(makeBuy(400, baseTime.Add(2*time.Second), "h3"))

	best, ok := ob.BestBuy()
	if !ok {
		t.Fatal("expected best buy to exist")
	}
	// Most generous, then oldest among ties.
	if best.HoldID != "h2" {
		t.Errorf("expected best buy h2, got %s (%d cents)", best.HoldID, best.OfferedCents)
	}
}

func TestOrderBook_EmptyBest(t *testing.T) {
	ob := NewOrderBook()
	if _, ok := ob.BestSell(); ok {
		t.Error("expected no best sell on empty book")
	}
	if _, ok := ob.BestBuy(); ok {
		t.Error("expected no best buy on empty book")
	}
}

func TestOrderBook_RemoveSellByHold(t *testing.T) {
	ob := NewOrderBook()
	ob.InsertSell(makeSell(100, baseTime, "h1"))
	ob.InsertSell(makeSell(200, baseTime, "h2"))

	removed, err := ob.RemoveSellByHold("h1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed.HoldID != "h1" {
		t.Errorf("expected removed order h1, got %s", removed.HoldID)
	}
	if ob.SellCount() != 1 {
		t.Errorf("expected 1 sell left, got %d", ob.SellCount())
	}
	best, _ := ob.BestSell()
	if best.HoldID != "h2" {
		t.Errorf("expected remaining order h2, got %s", best.HoldID)
	}
}

func TestOrderBook_RemoveSellByHold_NotFound(t *testing.T) {
	ob := NewOrderBook()
	if _, err := ob.RemoveSellByHold("nope"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderBook_RemoveBuyByHold_RemovesExactlyOne(t *testing.T) {
	ob := NewOrderBook()
	ob.InsertBuy(makeBuy(100, baseTime, "h1"))
	ob.InsertBuy(makeBuy(100, baseTime, "h2"))

	if _, err := ob.RemoveBuyByHold("h2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ob.BuyCount() != 1 {
		t.Errorf("expected 1 buy left, got %d", ob.BuyCount())
	}
	best, _ := ob.BestBuy()
	if best.HoldID != "h1" {
		t.Errorf("expected h1 untouched, got %s", best.HoldID)
	}
	// Removing again is a not-found.
	if _, err := ob.RemoveBuyByHold("h2"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound on second removal, got %v", err)
	}
}

func TestOrderBook_WalkSellsInPriorityOrder(t *testing.T) {
	ob := NewOrderBook()
	ob.InsertSell(makeSell(300, baseTime.Add(time.Second), "h1"))
	ob.InsertSell(makeSell(100, baseTime, "h2"))
	ob.InsertSell(makeSell(300, baseTime, "h3"))

	var holds []string
	ob.WalkSells(func(o domain.SellOrder) bool {
		holds = append(holds, o.HoldID)
		return true
	})

	want := []string{"h2", "h3", "h1"}
	if len(holds) != len(want) {
		t.Fatalf("expected %d sells, got %d", len(want), len(holds))
	}
	for i := range want {
		if holds[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], holds[i])
		}
	}
}
