package service

import (
	"sort"
	"time"

	"github.com/figmp/figmarket/internal/domain"
	"github.com/figmp/figmarket/internal/market"
)

// topN is how many entries the shop rankings and price lists show.
const topN = 5

// TraderShare is a user's participation in a figurine's trade history.
type TraderShare struct {
	UserID string
	Trades int
	Share  float64 // fraction of trade slots (two per trade)
}

// MarketPage summarizes one figurine's market for the shop page.
type MarketPage struct {
	Figurine          string
	SellCount         int
	TopSellPrices     []int64 // cheapest first
	BuyCount          int
	TopBuyPrices      []int64 // most generous first
	TradeCount        int
	AveragePriceCents *int64 // nil when never traded
	TotalVolumeCents  int64
	FrequentTraders   []TraderShare
	SnapshotAt        time.Time
}

// FrontPage aggregates every market for the shop's landing page.
type FrontPage struct {
	SellOrderCount     int
	TotalDemandedCents int64
	BuyOrderCount      int
	TotalOfferedCents  int64
	TradeCount         int
	TotalTradedCents   int64
	CheapestForSale    []string // figurine display strings
	RecentlyListed     []string
	HighestOffers      []string
	RecentlyBid        []string
	MostTraded         []string
	HighestVolume      []string
	SnapshotAt         time.Time
}

// ShopService answers the read-only market queries behind the shop
// pages. It only ever takes point-in-time snapshots and never blocks
// mutating events on other markets.
type ShopService struct {
	registry *market.Registry
}

// NewShopService creates a ShopService over the given registry.
func NewShopService(registry *market.Registry) *ShopService {
	return &ShopService{registry: registry}
}

// GetMarketPage builds the per-figurine shop page summary.
func (s *ShopService) GetMarketPage(fig domain.Figurine) *MarketPage {
	m := s.registry.GetOrCreate(fig)

	m.Mu.RLock()
	defer m.Mu.RUnlock()

	page := &MarketPage{
		Figurine:   fig.Display(),
		SellCount:  m.Book().SellCount(),
		BuyCount:   m.Book().BuyCount(),
		TradeCount: m.HistoryLen(),
		SnapshotAt: time.Now(),
	}

	m.Book().WalkSells(func(o domain.SellOrder) bool {
		page.TopSellPrices = append(page.TopSellPrices, o.DemandedCents)
		return len(page.TopSellPrices) < topN
	})
	m.Book().WalkBuys(func(o domain.BuyOrder) bool {
		page.TopBuyPrices = append(page.TopBuyPrices, o.OfferedCents)
		return len(page.TopBuyPrices) < topN
	})

	hist := m.History()
	if len(hist) == 0 {
		return page
	}

	for _, h := range hist {
		page.TotalVolumeCents += h.Cents
	}
	avg := page.TotalVolumeCents / int64(len(hist))
	page.AveragePriceCents = &avg
	page.FrequentTraders = frequentTraders(hist, 3)

	return page
}

// frequentTraders ranks users by how many of the history's trade slots
// (buyer or seller, two per trade) they filled.
func frequentTraders(hist []domain.HistoryEntry, n int) []TraderShare {
	counts := make(map[string]int)
	for _, h := range hist {
		counts[h.Buyer]++
		counts[h.Seller]++
	}

	shares := make([]TraderShare, 0, len(counts))
	for user, c := range counts {
		shares = append(shares, TraderShare{
			UserID: user,
			Trades: c,
			Share:  float64(c) / float64(len(hist)*2),
		})
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].Trades != shares[j].Trades {
			return shares[i].Trades > shares[j].Trades
		}
		return shares[i].UserID < shares[j].UserID
	})

	if len(shares) > n {
		shares = shares[:n]
	}
	return shares
}

// marketStats is the per-market digest the front-page rankings sort on.
type marketStats struct {
	display       string
	sellCount     int
	demandedCents int64
	minDemand     int64
	lastListedAt  time.Time
	buyCount      int
	offeredCents  int64
	maxOffer      int64
	lastBidAt     time.Time
	tradeCount    int
	volumeCents   int64
}

// GetFrontPage builds the aggregate landing-page summary across all
// markets.
func (s *ShopService) GetFrontPage() *FrontPage {
	page := &FrontPage{SnapshotAt: time.Now()}

	entries := s.registry.Entries()
	stats := make([]marketStats, 0, len(entries))

	for _, m := range entries {
		m.Mu.RLock()
		st := marketStats{display: m.Figurine().Display()}

		m.Book().WalkSells(func(o domain.SellOrder) bool {
			if st.sellCount == 0 {
				st.minDemand = o.DemandedCents
			}
			st.sellCount++
			st.demandedCents += o.DemandedCents
			if o.CreatedAt.After(st.lastListedAt) {
				st.lastListedAt = o.CreatedAt
			}
			return true
		})
		m.Book().WalkBuys(func(o domain.BuyOrder) bool {
			if st.buyCount == 0 {
				st.maxOffer = o.OfferedCents
			}
			st.buyCount++
			st.offeredCents += o.OfferedCents
			if o.CreatedAt.After(st.lastBidAt) {
				st.lastBidAt = o.CreatedAt
			}
			return true
		})
		for _, h := range m.History() {
			st.tradeCount++
			st.volumeCents += h.Cents
		}
		m.Mu.RUnlock()

		page.SellOrderCount += st.sellCount
		page.TotalDemandedCents += st.demandedCents
		page.BuyOrderCount += st.buyCount
		page.TotalOfferedCents += st.offeredCents
		page.TradeCount += st.tradeCount
		page.TotalTradedCents += st.volumeCents
		stats = append(stats, st)
	}

	page.CheapestForSale = rank(stats,
		func(st marketStats) bool { return st.sellCount > 0 },
		func(a, b marketStats) bool { return a.minDemand < b.minDemand })
	page.RecentlyListed = rank(stats,
		func(st marketStats) bool { return st.sellCount > 0 },
		func(a, b marketStats) bool { return a.lastListedAt.After(b.lastListedAt) })
	page.HighestOffers = rank(stats,
		func(st marketStats) bool { return st.buyCount > 0 },
		func(a, b marketStats) bool { return a.maxOffer > b.maxOffer })
	page.RecentlyBid = rank(stats,
		func(st marketStats) bool { return st.buyCount > 0 },
		func(a, b marketStats) bool { return a.lastBidAt.After(b.lastBidAt) })
	page.MostTraded = rank(stats,
		func(st marketStats) bool { return st.tradeCount > 0 },
		func(a, b marketStats) bool { return a.tradeCount > b.tradeCount })
	page.HighestVolume = rank(stats,
		func(st marketStats) bool { return st.tradeCount > 0 },
		func(a, b marketStats) bool { return a.volumeCents > b.volumeCents })

	return page
}

// rank filters markets, sorts them by the given criterion (ties broken
// by display string for determinism), and returns up to topN displays.
func rank(stats []marketStats, keep func(marketStats) bool, less func(a, b marketStats) bool) []string {
	kept := make([]marketStats, 0, len(stats))
	for _, st := range stats {
		if keep(st) {
			kept = append(kept, st)
		}
	}
	sort.Slice(kept, func(i, j int) bool {
		if less(kept[i], kept[j]) {
			return true
		}
		if less(kept[j], kept[i]) {
			return false
		}
		return kept[i].display < kept[j].display
	})

	out := make([]string, 0, topN)
	for _, st := range kept {
		out = append(out, st.display)
		if len(out) == topN {
			break
		}
	}
	return out
}
