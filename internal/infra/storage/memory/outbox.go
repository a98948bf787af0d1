package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	appoutbox "carrental/internal/app/outbox"
)

const (
	stateNew     = "NEW"
	stateClaimed = "CLAIMED"
	stateSent    = "SENT"
	stateFailed  = "FAILED"
)

// Outbox keeps committed event records until the relay marks them sent.
type Outbox struct {
	mu      sync.Mutex
	records map[string]*outboxEntry
	now     func() time.Time
}

type outboxEntry struct {
	msg         appoutbox.Message
	state       string
	nextAttempt time.Time
	lastError   string
}

func NewOutbox() *Outbox {
	return &Outbox{records: make(map[string]*outboxEntry), now: time.Now}
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, exists := o.records[record.ID]; exists {
		return nil
	}
	o.records[record.ID] = &outboxEntry{
		msg:         appoutbox.Message{EventRecord: record},
		state:       stateNew,
		nextAttempt: o.now().UTC(),
	}
	return nil
}

// Claim hands out the oldest due record.
func (o *Outbox) Claim(ctx context.Context, workerID string) (*appoutbox.Message, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := o.now().UTC()
	var due []*outboxEntry
	for _, e := range o.records {
		if (e.state == stateNew || e.state == stateFailed) && !e.nextAttempt.After(now) {
			due = append(due, e)
		}
	}
	if len(due) == 0 {
		return nil, nil
	}
	sort.Slice(due, func(i, j int) bool { return due[i].msg.OccurredAt.Before(due[j].msg.OccurredAt) })
	due[0].state = stateClaimed
	msg := due[0].msg
	return &msg, nil
}

func (o *Outbox) MarkSent(ctx context.Context, id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if e, ok := o.records[id]; ok {
		e.state = stateSent
	}
	return nil
}

func (o *Outbox) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if e, ok := o.records[id]; ok {
		e.state = stateFailed
		e.nextAttempt = next
		e.lastError = errMsg
		e.msg.Attempts++
	}
	return nil
}

// Pending returns the records not yet sent, oldest first.
func (o *Outbox) Pending() []appoutbox.EventRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]appoutbox.EventRecord, 0, len(o.records))
	for _, e := range o.records {
		if e.state != stateSent {
			out = append(out, e.msg.EventRecord)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out
}

var (
	_ appoutbox.Outbox = (*Outbox)(nil)
	_ appoutbox.Store  = (*Outbox)(nil)
)
