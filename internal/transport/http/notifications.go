package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gurmukh6912/token-entry/internal/domain"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 500
)

// NotificationFeed returns recently committed notifications, oldest first.
type NotificationFeed interface {
	Recent(n int) []domain.Notification
}

func HandleListNotifications(feed NotificationFeed) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultNotificationLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
				return
			}
			limit = min(n, maxNotificationLimit)
		}

		notes := feed.Recent(limit)
		resp := listNotificationsResponse{Notifications: make([]notificationResponse, 0, len(notes))}
		for _, n := range notes {
			resp.Notifications = append(resp.Notifications, notificationResponse{
				ID:           n.ID,
				Kind:         string(n.Kind),
				Source:       n.Source,
				EventID:      n.EventID,
				TicketID:     n.TicketID,
				Account:      n.Account,
				Counterparty: n.Counterparty,
				Amount:       n.Amount,
				Role:         n.Role,
				Flag:         n.Flag,
				At:           n.At,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type notificationResponse struct {
	ID           string         `json:"id"`
	Kind         string         `json:"kind"`
	Source       domain.Account `json:"source"`
	EventID      int64          `json:"event_id,omitempty"`
	TicketID     int64          `json:"ticket_id,omitempty"`
	Account      domain.Account `json:"account,omitempty"`
	Counterparty domain.Account `json:"counterparty,omitempty"`
	Amount       domain.Amount  `json:"amount,omitempty"`
	Role         domain.Role    `json:"role,omitempty"`
	Flag         bool           `json:"flag,omitempty"`
	At           time.Time      `json:"at"`
}

type listNotificationsResponse struct {
	Notifications []notificationResponse `json:"notifications"`
}
