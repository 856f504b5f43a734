// Package servicetest holds fakes for code built on the service package.
package servicetest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/householdhq/budget/internal/service"
)

// Notifier records notifications instead of sending them.
type Notifier struct {
	Fail bool

	mu   sync.Mutex
	sent []service.Notification
}

func NewNotifier() *Notifier {
	return &Notifier{}
}

func (n *Notifier) Notify(ctx context.Context, notification service.Notification) error {
	if n.Fail {
		return errors.New("notification dispatch failed")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
	return nil
}

func (n *Notifier) Sent() []service.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]service.Notification(nil), n.sent...)
}

func (n *Notifier) SentCount() int {
	return len(n.Sent())
}

// Last returns the most recent notification, failing t when nothing was sent.
func (n *Notifier) Last(t testing.TB) service.Notification {
	t.Helper()
	sent := n.Sent()
	if len(sent) == 0 {
		t.Fatal("no notifications sent")
	}
	return sent[len(sent)-1]
}
