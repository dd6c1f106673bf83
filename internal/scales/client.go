// Package scales is the client for the external ledger/escrow service
// that owns user balances and figurines. The engine only ever moves
// assets through this API; it never tracks balances itself.
package scales

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/figmp/figmarket/internal/domain"
)

// Receipt is returned by transfers that requested a hold: the asset is
// escrowed under HoldID rather than delivered, and can be reclaimed
// later with ReclaimHold.
type Receipt struct {
	HoldID string
}

// PayRequest transfers funds to a user. If HoldDescriptor is non-empty
// the funds are escrowed under a reclaimable hold tagged with it.
type PayRequest struct {
	ReceiverID     string
	Cents          int64
	Note           string
	HoldDescriptor string
}

// GiveFigurineRequest transfers a figurine to a user, with the same
// hold semantics as PayRequest.
type GiveFigurineRequest struct {
	ReceiverID     string
	Figurine       domain.Figurine
	Note           string
	HoldDescriptor string
}

// Transfer is the escrow-service surface the engine consumes. Tests
// substitute a recording fake.
type Transfer interface {
	Pay(ctx context.Context, req PayRequest) (*Receipt, error)
	GiveFigurine(ctx context.Context, req GiveFigurineRequest) (*Receipt, error)
	ReclaimHold(ctx context.Context, holdID string) error
}

// Client talks to the scales HTTP API.
type Client struct {
	baseURL  string
	apiToken string
	client   *http.Client
}

// NewClient creates a scales client for the given API base URL.
func NewClient(baseURL, apiToken string, timeout time.Duration) *Client {
	return &Client{
		baseURL:  baseURL,
		apiToken: apiToken,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// wire types for the scales API.

type hookBody struct {
	Desc string `json:"desc"`
}

type figBody struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

type payBody struct {
	APIToken   string    `json:"apiToken"`
	ReceiverID string    `json:"receiverId"`
	Cents      int64     `json:"cents"`
	For        string    `json:"for,omitempty"`
	Hook       *hookBody `json:"hook,omitempty"`
}

type giveFigBody struct {
	APIToken   string    `json:"apiToken"`
	ReceiverID string    `json:"receiverId"`
	Fig        figBody   `json:"fig"`
	For        string    `json:"for,omitempty"`
	Hook       *hookBody `json:"hook,omitempty"`
}

type pullHookBody struct {
	APIToken string `json:"apiToken"`
	HookID   string `json:"hookId"`
}

type apiResponse struct {
	OK     bool   `json:"ok"`
	HookID string `json:"hookId"`
	Error  string `json:"error"`
}

// Pay transfers funds via POST /pay.
func (c *Client) Pay(ctx context.Context, req PayRequest) (*Receipt, error) {
	body := payBody{
		APIToken:   c.apiToken,
		ReceiverID: req.ReceiverID,
		Cents:      req.Cents,
		For:        req.Note,
	}
	if req.HoldDescriptor != "" {
		body.Hook = &hookBody{Desc: req.HoldDescriptor}
	}
	return c.post(ctx, "pay", body)
}

// GiveFigurine transfers a figurine via POST /givefig.
func (c *Client) GiveFigurine(ctx context.Context, req GiveFigurineRequest) (*Receipt, error) {
	body := giveFigBody{
		APIToken:   c.apiToken,
		ReceiverID: req.ReceiverID,
		Fig:        figBody{Kind: string(req.Figurine.Kind), ID: req.Figurine.ID},
		For:        req.Note,
	}
	if req.HoldDescriptor != "" {
		body.Hook = &hookBody{Desc: req.HoldDescriptor}
	}
	return c.post(ctx, "givefig", body)
}

// ReclaimHold pulls back a previously held transfer via POST /pullhook.
func (c *Client) ReclaimHold(ctx context.Context, holdID string) error {
	_, err := c.post(ctx, "pullhook", pullHookBody{APIToken: c.apiToken, HookID: holdID})
	return err
}

func (c *Client) post(ctx context.Context, endpoint string, body any) (*Receipt, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s request: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling scales %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scales %s: unexpected status %d", endpoint, resp.StatusCode)
	}

	var parsed apiResponse
	// Some scales endpoints answer with an empty body on success.
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return &Receipt{}, nil
	}
	if !parsed.OK && parsed.Error != "" {
		return nil, fmt.Errorf("scales %s: %s", endpoint, parsed.Error)
	}
	return &Receipt{HoldID: parsed.HookID}, nil
}
