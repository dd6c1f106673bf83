package market

import (
	"github.com/google/btree"

	"github.com/figmp/figmarket/internal/domain"
)

// sellLess defines ordering for the sell side: demanded price ascending,
// then created_at ascending, then hold id ascending. Min() returns the
// best sell (cheapest, earliest).
func sellLess(a, b domain.SellOrder) bool {
	if a.DemandedCents != b.DemandedCents {
		return a.DemandedCents < b.DemandedCents
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.HoldID < b.HoldID
}

// buyLess defines ordering for the buy side: offered price descending,
// then created_at ascending, then hold id ascending. Min() returns the
// best buy (most generous, earliest).
func buyLess(a, b domain.BuyOrder) bool {
	if a.OfferedCents != b.OfferedCents {
		return a.OfferedCents > b.OfferedCents
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.HoldID < b.HoldID
}

// OrderBook maintains the resting sell and buy orders for a single
// figurine using B-trees with secondary indexes for removal by hold id.
// Orders are single-unit: one figurine per order, no partial fills.
type OrderBook struct {
	sells     *btree.BTreeG[domain.SellOrder]
	buys      *btree.BTreeG[domain.BuyOrder]
	sellIndex map[string]domain.SellOrder // hold_id → order
	buyIndex  map[string]domain.BuyOrder  // hold_id → order
}

// NewOrderBook creates an empty order book.
func NewOrderBook() *OrderBook {
	const degree = 32
	return &OrderBook{
		sells:     btree.NewG[domain.SellOrder](degree, sellLess),
		buys:      btree.NewG[domain.BuyOrder](degree, buyLess),
		sellIndex: make(map[string]domain.SellOrder),
		buyIndex:  make(map[string]domain.BuyOrder),
	}
}

// InsertSell adds a resting sell order to the book.
func (ob *OrderBook) InsertSell(o domain.SellOrder) {
	ob.sells.ReplaceOrInsert(o)
	ob.sellIndex[o.HoldID] = o
}

// InsertBuy adds a resting buy order to the book.
func (ob *OrderBook) InsertBuy(o domain.BuyOrder) {
	ob.buys.ReplaceOrInsert(o)
	ob.buyIndex[o.HoldID] = o
}

// BestSell returns the resting sell with the lowest demanded price,
// ties broken by earliest creation time.
func (ob *OrderBook) BestSell() (domain.SellOrder, bool) {
	return ob.sells.Min()
}

// BestBuy returns the resting buy with the highest offered price,
// ties broken by earliest creation time.
func (ob *OrderBook) BestBuy() (domain.BuyOrder, bool) {
	return ob.buys.Min()
}

// RemoveSellByHold removes the unique sell order escrowed under holdID.
// It returns domain.ErrOrderNotFound if no such order rests on the book;
// callers treat that as log-and-continue since revocations may race with
// a match that already consumed the order.
func (ob *OrderBook) RemoveSellByHold(holdID string) (domain.SellOrder, error) {
	o, ok := ob.sellIndex[holdID]
	if !ok {
		return domain.SellOrder{}, domain.ErrOrderNotFound
	}
	delete(ob.sellIndex, holdID)
	ob.sells.Delete(o)
	return o, nil
}

// RemoveBuyByHold removes the unique buy order escrowed under holdID.
// It returns domain.ErrOrderNotFound if no such order rests on the book.
func (ob *OrderBook) RemoveBuyByHold(holdID string) (domain.BuyOrder, error) {
	o, ok := ob.buyIndex[holdID]
	if !ok {
		return domain.BuyOrder{}, domain.ErrOrderNotFound
	}
	delete(ob.buyIndex, holdID)
	ob.buys.Delete(o)
	return o, nil
}

// WalkSells iterates sells in priority order (cheapest first). The
// callback returns true to continue, false to stop.
func (ob *OrderBook) WalkSells(fn func(domain.SellOrder) bool) {
	ob.sells.Ascend(fn)
}

// WalkBuys iterates buys in priority order (most generous first). The
// callback returns true to continue, false to stop.
func (ob *OrderBook) WalkBuys(fn func(domain.BuyOrder) bool) {
	ob.buys.Ascend(fn)
}

// SellCount returns the number of resting sell orders.
func (ob *OrderBook) SellCount() int {
	return ob.sells.Len()
}

// BuyCount returns the number of resting buy orders.
func (ob *OrderBook) BuyCount() int {
	return ob.buys.Len()
}
