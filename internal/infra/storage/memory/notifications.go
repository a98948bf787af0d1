package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"carrental/internal/app/policies"
)

// Notifications is an in-memory renter mailbox.
type Notifications struct {
	mu    sync.RWMutex
	items map[string][]policies.Notification
	now   func() time.Time
}

func NewNotifications() *Notifications {
	return &Notifications{items: make(map[string][]policies.Notification), now: time.Now}
}

func (n *Notifications) Notify(ctx context.Context, renter, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items[renter] = append(n.items[renter], policies.Notification{
		Renter:    renter,
		Message:   message,
		CreatedAt: n.now().UTC(),
	})
	return nil
}

// Notifications returns the renter's messages, newest first.
func (n *Notifications) Notifications(ctx context.Context, renter string) ([]policies.Notification, error) {
	n.mu.RLock()
	out := append([]policies.Notification(nil), n.items[renter]...)
	n.mu.RUnlock()
	slices.Reverse(out)
	return out, nil
}

var (
	_ policies.NotificationSink   = (*Notifications)(nil)
	_ policies.NotificationReader = (*Notifications)(nil)
)
