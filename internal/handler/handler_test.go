package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/figmp/figmarket/internal/domain"
	"github.com/figmp/figmarket/internal/engine"
	"github.com/figmp/figmarket/internal/market"
	"github.com/figmp/figmarket/internal/scales"
	"github.com/figmp/figmarket/internal/service"
	"github.com/figmp/figmarket/internal/store"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// stubTransfer fulfils every transfer with a fresh hold id, or fails
// everything when err is set.
type stubTransfer struct {
	nextHold int
	err      error
}

func (s *stubTransfer) Pay(context.Context, scales.PayRequest) (*scales.Receipt, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.nextHold++
	return &scales.Receipt{HoldID: fmt.Sprintf("hold-%d", s.nextHold)}, nil
}

func (s *stubTransfer) GiveFigurine(context.Context, scales.GiveFigurineRequest) (*scales.Receipt, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.nextHold++
	return &scales.Receipt{HoldID: fmt.Sprintf("hold-%d", s.nextHold)}, nil
}

func (s *stubTransfer) ReclaimHold(context.Context, string) error {
	return s.err
}

type noopNotifier struct{}

func (noopNotifier) NotifyOrderPlaced(string, string) {}

// testStack wires the full HTTP surface over in-memory state.
type testStack struct {
	registry *market.Registry
	transfer *stubTransfer
	flusher  *store.Flusher
	server   *httptest.Server
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	s := &testStack{
		registry: market.NewRegistry(),
		transfer: &stubTransfer{},
	}
	saver := store.NewSnapshotStore(t.TempDir() + "/marketfile.json")
	s.flusher = store.NewFlusher(time.Minute, s.registry, saver, discard)
	matcher := engine.NewMatcher(s.registry, s.transfer, noopNotifier{}, s.flusher, discard)
	lifecycle := engine.NewLifecycle(s.registry, s.flusher, discard)
	shopSvc := service.NewShopService(s.registry)
	s.server = httptest.NewServer(NewRouter(matcher, lifecycle, shopSvc, discard))
	t.Cleanup(s.server.Close)
	return s
}

func (s *testStack) postEvent(t *testing.T, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(s.server.URL+"/events", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

func TestHealthz(t *testing.T) {
	s := newTestStack(t)

	resp, err := http.Get(s.server.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]string
	decode(t, resp, &body)
	if body["status"] != "ok" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestFundsDepositedEvent(t *testing.T) {
	s := newTestStack(t)

	resp := s.postEvent(t, `{"kind":"funds_deposited","from":"U1","cents":200,"for":":yay:"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	yay := domain.Figurine{Kind: domain.FigKindEmoji, ID: "yay"}
	if s.registry.GetOrCreate(yay).Book().BuyCount() != 1 {
		t.Error("expected a resting buy order")
	}
}

func TestFigurineDepositedEvent(t *testing.T) {
	s := newTestStack(t)

	resp := s.postEvent(t, `{"kind":"figurine_deposited","from":"U1","for":"3.50","fig":{"kind":"emoji","id":"yay"}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	yay := domain.Figurine{Kind: domain.FigKindEmoji, ID: "yay"}
	m := s.registry.GetOrCreate(yay)
	if m.Book().SellCount() != 1 {
		t.Fatal("expected a resting sell order")
	}
	best, _ := m.Book().BestSell()
	if best.DemandedCents != 350 {
		t.Errorf("expected ask 350, got %d", best.DemandedCents)
	}
}

func TestFigurineDepositedEventRequiresFig(t *testing.T) {
	s := newTestStack(t)

	resp := s.postEvent(t, `{"kind":"figurine_deposited","from":"U1","for":"3.50"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	var body map[string]string
	decode(t, resp, &body)
	if body["error"] != "invalid_request" {
		t.Errorf("unexpected error code %q", body["error"])
	}
}

func TestFigurineDepositedEventRejectsUnknownKind(t *testing.T) {
	s := newTestStack(t)

	resp := s.postEvent(t, `{"kind":"figurine_deposited","from":"U1","for":"3.50","fig":{"kind":"gremlin","id":"x"}}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	var body map[string]string
	decode(t, resp, &body)
	if body["error"] != "invalid_request" {
		t.Errorf("unexpected error code %q", body["error"])
	}

	// The bad figurine never reached the registry, so the persisted
	// snapshot stays fully restorable.
	if len(s.registry.Entries()) != 0 {
		t.Error("expected no market created for an invalid figurine")
	}
	if _, skipped := market.Restore(s.registry.Snapshot()); len(skipped) != 0 {
		t.Errorf("snapshot not restorable, skipped %v", skipped)
	}
}

func TestFigurineDepositedEventRejectsEmptyID(t *testing.T) {
	s := newTestStack(t)

	resp := s.postEvent(t, `{"kind":"figurine_deposited","from":"U1","for":"3.50","fig":{"kind":"emoji","id":""}}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if len(s.registry.Entries()) != 0 {
		t.Error("expected no market created for an invalid figurine")
	}
}

func TestHoldRevokedEvent(t *testing.T) {
	s := newTestStack(t)

	// Rest a sell, then revoke its hold.
	resp := s.postEvent(t, `{"kind":"figurine_deposited","from":"U1","for":"3.50","fig":{"kind":"emoji","id":"yay"}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	resp = s.postEvent(t, `{"kind":"hold_revoked","hookId":"hold-1","desc":"selling :yay: for 350"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	yay := domain.Figurine{Kind: domain.FigKindEmoji, ID: "yay"}
	if s.registry.GetOrCreate(yay).Book().SellCount() != 0 {
		t.Error("expected the revoked order removed")
	}
}

func TestUnknownEventKind(t *testing.T) {
	s := newTestStack(t)

	resp := s.postEvent(t, `{"kind":"money_printed"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestMalformedEventBody(t *testing.T) {
	s := newTestStack(t)

	resp := s.postEvent(t, `{not json`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestEventRejectsUnknownFields(t *testing.T) {
	s := newTestStack(t)

	resp := s.postEvent(t, `{"kind":"funds_deposited","from":"U1","cents":200,"for":":yay:","extra":true}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestEventRequiresJSONContentType(t *testing.T) {
	s := newTestStack(t)

	resp, err := http.Post(s.server.URL+"/events", "text/plain",
		strings.NewReader(`{"kind":"funds_deposited","from":"U1","cents":200,"for":":yay:"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestNegativeDepositRejected(t *testing.T) {
	s := newTestStack(t)

	resp := s.postEvent(t, `{"kind":"funds_deposited","from":"U1","cents":-5,"for":":yay:"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	var body map[string]string
	decode(t, resp, &body)
	if body["error"] != "bad_input" {
		t.Errorf("unexpected error code %q", body["error"])
	}
}

func TestTransferFailureMapsTo502(t *testing.T) {
	s := newTestStack(t)
	s.transfer.err = fmt.Errorf("scales down")

	resp := s.postEvent(t, `{"kind":"funds_deposited","from":"U1","cents":200,"for":":yay:"}`)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}
	var body map[string]string
	decode(t, resp, &body)
	if body["error"] != "transfer_failed" {
		t.Errorf("unexpected error code %q", body["error"])
	}
}

func TestGetMarketPage(t *testing.T) {
	s := newTestStack(t)

	resp := s.postEvent(t, `{"kind":"figurine_deposited","from":"U1","for":"3.50","fig":{"kind":"emoji","id":"yay"}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("seeding sell: got %d", resp.StatusCode)
	}

	getResp, err := http.Get(s.server.URL + "/markets/%3Ayay%3A")
	if err != nil {
		t.Fatal(err)
	}
	defer getResp.Body.Close()
	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", getResp.StatusCode)
	}

	var page struct {
		Figurine      string    `json:"figurine"`
		SellCount     int       `json:"sell_count"`
		TopSellPrices []float64 `json:"top_sell_prices"`
		AveragePrice  *float64  `json:"average_price"`
	}
	decode(t, getResp, &page)
	if page.Figurine != ":yay:" || page.SellCount != 1 {
		t.Errorf("unexpected page %+v", page)
	}
	if len(page.TopSellPrices) != 1 || page.TopSellPrices[0] != 3.5 {
		t.Errorf("expected sell price in dollars, got %v", page.TopSellPrices)
	}
	if page.AveragePrice != nil {
		t.Errorf("expected null average for an untraded market, got %v", *page.AveragePrice)
	}
}

func TestGetMarketPageBadFigurine(t *testing.T) {
	s := newTestStack(t)

	resp, err := http.Get(s.server.URL + "/markets/garbage")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestGetFrontPage(t *testing.T) {
	s := newTestStack(t)

	resp := s.postEvent(t, `{"kind":"figurine_deposited","from":"U1","for":"1.00","fig":{"kind":"emoji","id":"yay"}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("seeding sell: got %d", resp.StatusCode)
	}
	// A second deposit at the ask trades immediately.
	resp = s.postEvent(t, `{"kind":"funds_deposited","from":"U2","cents":100,"for":":yay:"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("matching buy: got %d", resp.StatusCode)
	}

	getResp, err := http.Get(s.server.URL + "/markets")
	if err != nil {
		t.Fatal(err)
	}
	defer getResp.Body.Close()
	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", getResp.StatusCode)
	}

	var page struct {
		SellOrderCount int      `json:"sell_order_count"`
		TradeCount     int      `json:"trade_count"`
		TotalTraded    float64  `json:"total_traded"`
		MostTraded     []string `json:"most_traded"`
	}
	decode(t, getResp, &page)
	if page.SellOrderCount != 0 || page.TradeCount != 1 {
		t.Errorf("unexpected aggregates %+v", page)
	}
	if page.TotalTraded != 1.0 {
		t.Errorf("expected traded volume 1.00, got %v", page.TotalTraded)
	}
	if len(page.MostTraded) != 1 || page.MostTraded[0] != ":yay:" {
		t.Errorf("unexpected most-traded %v", page.MostTraded)
	}
}
