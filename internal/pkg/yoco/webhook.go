package yoco

import (
	"encoding/json"
	"errors"
	"io"
	"strings"
)

var ErrInvalidWebhook = errors.New("invalid yoco webhook payload")

// WebhookEvent is the notification body posted by Yoco. Nothing in it is
// trusted until the checkout is fetched back from the API.
type WebhookEvent struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Metadata struct {
		PaymentID string `json:"paymentId"`
	} `json:"metadata"`
}

// ParseWebhook decodes a webhook body.
func ParseWebhook(body io.Reader) (*WebhookEvent, error) {
	var ev WebhookEvent
	if err := json.NewDecoder(io.LimitReader(body, 1<<20)).Decode(&ev); err != nil {
		return nil, ErrInvalidWebhook
	}
	ev.ID = strings.TrimSpace(ev.ID)
	if ev.ID == "" {
		return nil, ErrInvalidWebhook
	}
	return &ev, nil
}
