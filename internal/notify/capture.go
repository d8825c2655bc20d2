package notify

import (
	"context"
	"sync"
)

// Capture is a Notifier that records every notification. Test double.
type Capture struct {
	mu   sync.Mutex
	sent []Sent
}

// Sent is one recorded notification.
type Sent struct {
	EventType    string
	Notification Notification
}

var _ Notifier = (*Capture)(nil)

// Notify records the notification.
func (c *Capture) Notify(_ context.Context, eventType string, n Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, Sent{EventType: eventType, Notification: n})
	return nil
}

// All returns a copy of everything recorded so far.
func (c *Capture) All() []Sent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Sent, len(c.sent))
	copy(out, c.sent)
	return out
}
