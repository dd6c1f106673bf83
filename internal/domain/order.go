package domain

import "time"

// SellOrder is a resting offer to sell one figurine. The figurine itself
// is escrowed by the transfer service under HoldID until the order is
// matched or the hold is revoked.
type SellOrder struct {
	Seller        string    `json:"seller"`
	DemandedCents int64     `json:"demanded_cents"`
	HoldID        string    `json:"hold_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// BuyOrder is a resting offer to buy one figurine, mirroring SellOrder
// with escrowed funds instead of an escrowed figurine.
type BuyOrder struct {
	Buyer        string    `json:"buyer"`
	OfferedCents int64     `json:"offered_cents"`
	HoldID       string    `json:"hold_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// HistoryEntry records one completed trade. Entries are append-only and
// never mutated.
type HistoryEntry struct {
	Buyer          string    `json:"buyer"`
	Seller         string    `json:"seller"`
	Cents          int64     `json:"cents"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	BuyerInitiated bool      `json:"buyer_initiated"`
}
