package service

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Notifier posts order-placed notices to the presentation layer's
// notification endpoint. Delivery is fire-and-forget: errors are
// silently dropped, the same as a missed chat message would be.
type Notifier struct {
	url    string
	client *http.Client
}

// NewNotifier creates a Notifier posting to url. An empty url disables
// delivery entirely.
func NewNotifier(url string, timeout time.Duration) *Notifier {
	return &Notifier{
		url: url,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// notifyPayload is the JSON body of a notification.
type notifyPayload struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

// NotifyOrderPlaced tells userID their resting order is live.
func (n *Notifier) NotifyOrderPlaced(userID, text string) {
	if n.url == "" {
		return
	}
	go n.deliver(notifyPayload{UserID: userID, Text: text})
}

// deliver sends the payload via HTTP POST. Errors are intentionally
// ignored.
func (n *Notifier) deliver(payload notifyPayload) {
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}

	req, err := http.NewRequest(http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Delivery-Id", uuid.New().String())

	resp, err := n.client.Do(req)
	if err != nil {
		return
	}
	resp.Body.Close()
}
