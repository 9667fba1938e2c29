package messaging

import "context"

// Broker publishes engine events for downstream consumers (analytics,
// in-app inbox refresh). Delivery is fire-and-forget.
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Channels the engine publishes on.
const (
	ChannelNotificationSent = "notification.sent"
	ChannelCycleCompleted   = "cycle.completed"
)
