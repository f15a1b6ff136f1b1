package api

import (
	"sync"

	"weather-dashboard/dashboard"
)

// NotificationHub keeps the most recent notifications and fans new ones out
// to stream subscribers
type NotificationHub struct {
	recent []dashboard.Notification
	limit  int
	subs   map[chan dashboard.Notification]struct{}
	mutex  sync.RWMutex
}

// NewNotificationHub creates a hub that remembers up to limit notifications
func NewNotificationHub(limit int) *NotificationHub {
	if limit < 1 {
		limit = 1
	}
	return &NotificationHub{
		recent: make([]dashboard.Notification, 0, limit),
		limit:  limit,
		subs:   make(map[chan dashboard.Notification]struct{}),
	}
}

// Notify records n and delivers it to every subscriber without blocking.
// A subscriber whose buffer is full misses the notification.
func (h *NotificationHub) Notify(n dashboard.Notification) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if len(h.recent) == h.limit {
		copy(h.recent, h.recent[1:])
		h.recent = h.recent[:h.limit-1]
	}
	h.recent = append(h.recent, n)

	for ch := range h.subs {
		select {
		case ch <- n:
		default:
		}
	}
}

// Recent returns the remembered notifications, oldest first
func (h *NotificationHub) Recent() []dashboard.Notification {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	out := make([]dashboard.Notification, len(h.recent))
	copy(out, h.recent)
	return out
}

// Subscribe registers a new listener. The returned function unregisters it.
func (h *NotificationHub) Subscribe() (<-chan dashboard.Notification, func()) {
	ch := make(chan dashboard.Notification, 16)

	h.mutex.Lock()
	h.subs[ch] = struct{}{}
	h.mutex.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mutex.Lock()
			delete(h.subs, ch)
			h.mutex.Unlock()
		})
	}
}

// Subscribers returns the number of active listeners
func (h *NotificationHub) Subscribers() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.subs)
}

var _ dashboard.Notifier = (*NotificationHub)(nil)
