package httpx

import (
	"net/http"

	"github.com/target/grant-portal/internal/ports"
	"github.com/target/grant-portal/internal/service"
)

// FlashSource hands out a client's pending notification queue.
type FlashSource interface {
	Flash(clientID string) *service.FlashQueue
}

// NotificationsHandler drains the client's flash notifications.
// GET /api/notifications.
func NotificationsHandler(src FlashSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out := []ports.Notification{}
		if clientID, ok := ClientIDFromContext(r.Context()); ok && src != nil {
			if q := src.Flash(clientID); q != nil {
				out = q.Drain()
			}
		}
		w.Header().Set("Cache-Control", "no-store")
		WriteJSON(w, http.StatusOK, map[string]any{"notifications": out})
	}
}
