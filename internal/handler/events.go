package handler

import (
	"errors"
	"net/http"

	"github.com/figmp/figmarket/internal/domain"
	"github.com/figmp/figmarket/internal/engine"
)

// EventHandler receives the transfer service's inbound callbacks and
// routes them to the matching engine or the lifecycle handler.
type EventHandler struct {
	matcher   *engine.Matcher
	lifecycle *engine.Lifecycle
}

// NewEventHandler creates an EventHandler.
func NewEventHandler(matcher *engine.Matcher, lifecycle *engine.Lifecycle) *EventHandler {
	return &EventHandler{matcher: matcher, lifecycle: lifecycle}
}

// transferEvent is the JSON body of POST /events. Kind selects which of
// the optional field groups is populated.
type transferEvent struct {
	Kind string `json:"kind"`

	// funds_deposited and figurine_deposited
	From  string    `json:"from,omitempty"`
	Cents int64     `json:"cents,omitempty"`
	For   string    `json:"for,omitempty"`
	Fig   *figEvent `json:"fig,omitempty"`

	// hold_revoked
	HookID string `json:"hookId,omitempty"`
	Desc   string `json:"desc,omitempty"`
}

type figEvent struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// HandleEvent handles POST /events.
func (h *EventHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	var ev transferEvent
	if err := ParseJSON(r, &ev); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	var err error
	switch ev.Kind {
	case "funds_deposited":
		err = h.matcher.HandleFundsDeposited(r.Context(), ev.From, ev.Cents, ev.For)
	case "figurine_deposited":
		if ev.Fig == nil {
			WriteError(w, http.StatusBadRequest, "invalid_request", "fig is required for figurine_deposited")
			return
		}
		fig := domain.Figurine{Kind: domain.FigKind(ev.Fig.Kind), ID: ev.Fig.ID}
		if !fig.Valid() {
			WriteError(w, http.StatusBadRequest, "invalid_request",
				"fig must have kind emoji or hacker and a non-empty id")
			return
		}
		err = h.matcher.HandleFigurineDeposited(r.Context(), ev.From, fig, ev.For)
	case "hold_revoked":
		err = h.lifecycle.HandleHoldRevoked(r.Context(), ev.HookID, ev.Desc)
	default:
		WriteError(w, http.StatusBadRequest, "invalid_request", "unknown event kind: "+ev.Kind)
		return
	}

	if err != nil {
		mapEventError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// mapEventError maps engine errors to HTTP responses. Input errors are
// normally consumed inside the engine (the asset is refunded); anything
// surfacing here is either a precondition violation or an external
// transfer failure.
func mapEventError(w http.ResponseWriter, err error) {
	var badInput *domain.BadInputError
	if errors.As(err, &badInput) {
		WriteError(w, http.StatusBadRequest, "bad_input", badInput.Message)
		return
	}
	WriteError(w, http.StatusBadGateway, "transfer_failed", err.Error())
}
