package notifications

import (
	"context"

	"carrental/internal/app/dto"
	"carrental/internal/app/policies"
	"carrental/internal/app/queries"
)

const renterNotificationsKey = "notifications.by_renter"

type RenterNotificationsQuery struct {
	Renter string
}

func (RenterNotificationsQuery) Key() string { return renterNotificationsKey }

type RenterNotificationsHandler struct {
	Reader policies.NotificationReader
}

// Handle returns the renter's notifications, newest first.
func (h *RenterNotificationsHandler) Handle(ctx context.Context, q RenterNotificationsQuery) ([]dto.Notification, error) {
	items, err := h.Reader.Notifications(ctx, q.Renter)
	if err != nil {
		return nil, err
	}
	out := make([]dto.Notification, 0, len(items))
	for _, n := range items {
		out = append(out, dto.Notification{Message: n.Message, CreatedAt: n.CreatedAt})
	}
	return out, nil
}

var _ queries.Handler[RenterNotificationsQuery, []dto.Notification] = (*RenterNotificationsHandler)(nil)
