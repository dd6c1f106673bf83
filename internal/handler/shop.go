package handler

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/figmp/figmarket/internal/domain"
	"github.com/figmp/figmarket/internal/service"
)

// ShopHandler serves the read-only market queries.
type ShopHandler struct {
	shopSvc *service.ShopService
}

// NewShopHandler creates a ShopHandler.
func NewShopHandler(shopSvc *service.ShopService) *ShopHandler {
	return &ShopHandler{shopSvc: shopSvc}
}

// traderResponse is a single frequent trader in the market page response.
type traderResponse struct {
	UserID string  `json:"user_id"`
	Trades int     `json:"trades"`
	Share  float64 `json:"share"`
}

// marketPageResponse is the JSON response for GET /markets/{figurine}.
type marketPageResponse struct {
	Figurine        string           `json:"figurine"`
	SellCount       int              `json:"sell_count"`
	TopSellPrices   []float64        `json:"top_sell_prices"`
	BuyCount        int              `json:"buy_count"`
	TopBuyPrices    []float64        `json:"top_buy_prices"`
	TradeCount      int              `json:"trade_count"`
	AveragePrice    *float64         `json:"average_price"`
	TotalVolume     float64          `json:"total_volume"`
	FrequentTraders []traderResponse `json:"frequent_traders"`
	SnapshotAt      string           `json:"snapshot_at"`
}

// frontPageResponse is the JSON response for GET /markets.
type frontPageResponse struct {
	SellOrderCount  int      `json:"sell_order_count"`
	TotalDemanded   float64  `json:"total_demanded"`
	BuyOrderCount   int      `json:"buy_order_count"`
	TotalOffered    float64  `json:"total_offered"`
	TradeCount      int      `json:"trade_count"`
	TotalTraded     float64  `json:"total_traded"`
	CheapestForSale []string `json:"cheapest_for_sale"`
	RecentlyListed  []string `json:"recently_listed"`
	HighestOffers   []string `json:"highest_offers"`
	RecentlyBid     []string `json:"recently_bid"`
	MostTraded      []string `json:"most_traded"`
	HighestVolume   []string `json:"highest_volume"`
	SnapshotAt      string   `json:"snapshot_at"`
}

// GetMarketPage handles GET /markets/{figurine}. The path parameter is
// the URL-escaped display reference, e.g. ":yay:" or "<@U123>".
func (h *ShopHandler) GetMarketPage(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "figurine")
	figText, err := url.PathUnescape(raw)
	if err != nil {
		figText = raw
	}

	fig, err := domain.ParseFigurine(figText)
	if err != nil {
		var badInput *domain.BadInputError
		if errors.As(err, &badInput) {
			WriteError(w, http.StatusBadRequest, "bad_input", badInput.Message)
			return
		}
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
		return
	}

	page := h.shopSvc.GetMarketPage(fig)

	resp := marketPageResponse{
		Figurine:        page.Figurine,
		SellCount:       page.SellCount,
		TopSellPrices:   centsToDollarsList(page.TopSellPrices),
		BuyCount:        page.BuyCount,
		TopBuyPrices:    centsToDollarsList(page.TopBuyPrices),
		TradeCount:      page.TradeCount,
		TotalVolume:     domain.CentsToDollars(page.TotalVolumeCents),
		FrequentTraders: make([]traderResponse, len(page.FrequentTraders)),
		SnapshotAt:      page.SnapshotAt.UTC().Format(time.RFC3339),
	}
	if page.AveragePriceCents != nil {
		v := domain.CentsToDollars(*page.AveragePriceCents)
		resp.AveragePrice = &v
	}
	for i, tr := range page.FrequentTraders {
		resp.FrequentTraders[i] = traderResponse{
			UserID: tr.UserID,
			Trades: tr.Trades,
			Share:  tr.Share,
		}
	}

	WriteJSON(w, http.StatusOK, resp)
}

// GetFrontPage handles GET /markets.
func (h *ShopHandler) GetFrontPage(w http.ResponseWriter, r *http.Request) {
	page := h.shopSvc.GetFrontPage()

	WriteJSON(w, http.StatusOK, frontPageResponse{
		SellOrderCount:  page.SellOrderCount,
		TotalDemanded:   domain.CentsToDollars(page.TotalDemandedCents),
		BuyOrderCount:   page.BuyOrderCount,
		TotalOffered:    domain.CentsToDollars(page.TotalOfferedCents),
		TradeCount:      page.TradeCount,
		TotalTraded:     domain.CentsToDollars(page.TotalTradedCents),
		CheapestForSale: page.CheapestForSale,
		RecentlyListed:  page.RecentlyListed,
		HighestOffers:   page.HighestOffers,
		RecentlyBid:     page.RecentlyBid,
		MostTraded:      page.MostTraded,
		HighestVolume:   page.HighestVolume,
		SnapshotAt:      page.SnapshotAt.UTC().Format(time.RFC3339),
	})
}

// centsToDollarsList converts a cents slice to display dollars.
func centsToDollarsList(cents []int64) []float64 {
	out := make([]float64, len(cents))
	for i, c := range cents {
		out[i] = domain.CentsToDollars(c)
	}
	return out
}
