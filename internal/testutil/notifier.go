package testutil

import (
	"context"
	"sync"
)

// Notifier records user-facing notices. Notify returns immediately, as if
// the user acknowledged every notice at once.
type Notifier struct {
	mu       sync.Mutex
	messages []string
}

// NewNotifier returns an empty Notifier.
func NewNotifier() *Notifier {
	return &Notifier{}
}

// Notify records msg.
func (n *Notifier) Notify(_ context.Context, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
}

// Messages returns a copy of all recorded notices.
func (n *Notifier) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.messages))
	copy(out, n.messages)
	return out
}
