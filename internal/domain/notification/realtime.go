package notification

import (
	"context"

	"github.com/google/uuid"
)

// RealtimePublisher pushes events to a user's live connections.
type RealtimePublisher interface {
	SendToUser(ctx context.Context, userID uuid.UUID, payload interface{}) error
}

type realtimeEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func newNotificationEvent(n *NotificationResponse, unreadCount int) realtimeEvent {
	return realtimeEvent{
		Type: "notification:new",
		Data: map[string]interface{}{
			"notification": n,
			"unread_count": unreadCount,
		},
	}
}
