package market

import (
	"sync"

	"github.com/figmp/figmarket/internal/domain"
)

// Market is the per-figurine aggregate: the order book of resting sells
// and buys plus the append-only trade history. Each mutating event holds
// Mu for its full duration (external transfer calls included) so that
// the multi-step trade sequence appears atomic to in-process readers.
type Market struct {
	Mu sync.RWMutex

	fig  domain.Figurine
	book *OrderBook
	hist []domain.HistoryEntry
}

// NewMarket creates an empty market for the given figurine.
func NewMarket(fig domain.Figurine) *Market {
	return &Market{
		fig:  fig,
		book: NewOrderBook(),
	}
}

// Figurine returns the figurine this market trades.
func (m *Market) Figurine() domain.Figurine {
	return m.fig
}

// Book returns the market's order book. Callers must hold Mu.
func (m *Market) Book() *OrderBook {
	return m.book
}

// AppendHistory records a completed trade. Callers must hold Mu.
func (m *Market) AppendHistory(h domain.HistoryEntry) {
	m.hist = append(m.hist, h)
}

// History returns a copy of the trade history in chronological order.
// Callers must hold at least a read lock on Mu.
func (m *Market) History() []domain.HistoryEntry {
	out := make([]domain.HistoryEntry, len(m.hist))
	copy(out, m.hist)
	return out
}

// HistoryLen returns the number of completed trades. Callers must hold
// at least a read lock on Mu.
func (m *Market) HistoryLen() int {
	return len(m.hist)
}

// State captures the market's persisted shape: sells and buys in
// priority order, history in chronological order.
type State struct {
	Sells []domain.SellOrder    `json:"sells"`
	Buys  []domain.BuyOrder     `json:"buys"`
	Hist  []domain.HistoryEntry `json:"hist"`
}

// Snapshot converts the market to its persisted state. Callers must hold
// at least a read lock on Mu.
func (m *Market) Snapshot() State {
	st := State{
		Sells: make([]domain.SellOrder, 0, m.book.SellCount()),
		Buys:  make([]domain.BuyOrder, 0, m.book.BuyCount()),
		Hist:  make([]domain.HistoryEntry, len(m.hist)),
	}
	m.book.WalkSells(func(o domain.SellOrder) bool {
		st.Sells = append(st.Sells, o)
		return true
	})
	m.book.WalkBuys(func(o domain.BuyOrder) bool {
		st.Buys = append(st.Buys, o)
		return true
	})
	copy(st.Hist, m.hist)
	return st
}

// restore loads a persisted state into an empty market.
func (m *Market) restore(st State) {
	for _, o := range st.Sells {
		m.book.InsertSell(o)
	}
	for _, o := range st.Buys {
		m.book.InsertBuy(o)
	}
	m.hist = append(m.hist[:0], st.Hist...)
}
