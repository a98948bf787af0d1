package policies

import (
	"context"
	"time"
)

type Notification struct {
	Renter    string
	Message   string
	CreatedAt time.Time
}

// NotificationSink delivers one outcome message to a renter.
type NotificationSink interface {
	Notify(ctx context.Context, renter, message string) error
}

type NotificationReader interface {
	Notifications(ctx context.Context, renter string) ([]Notification, error)
}
