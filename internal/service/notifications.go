package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/target/grant-portal/internal/ports"
)

// DefaultFlashCapacity bounds the pending notifications kept per client.
const DefaultFlashCapacity = 20

// FlashQueue buffers user-facing notifications for one client until the browser drains them.
// When full, the oldest notification is dropped.
type FlashQueue struct {
	mu       sync.Mutex
	items    []ports.Notification
	capacity int
	logger   *slog.Logger
}

var _ ports.Notifier = (*FlashQueue)(nil)

// NewFlashQueue creates a FlashQueue. A non-positive capacity uses DefaultFlashCapacity.
func NewFlashQueue(capacity int, logger *slog.Logger) *FlashQueue {
	if capacity <= 0 {
		capacity = DefaultFlashCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FlashQueue{capacity: capacity, logger: logger}
}

// Notify implements ports.Notifier.
func (q *FlashQueue) Notify(ctx context.Context, n ports.Notification) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= q.capacity {
		q.logger.DebugContext(ctx, "flash queue full, dropping oldest", "title", q.items[0].Title)
		q.items = q.items[1:]
	}
	q.items = append(q.items, n)
}

// Drain returns and removes every pending notification.
func (q *FlashQueue) Drain() []ports.Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	if out == nil {
		return []ports.Notification{}
	}
	return out
}

// Len reports the number of pending notifications.
func (q *FlashQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
