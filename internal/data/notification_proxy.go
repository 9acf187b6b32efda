package data

import (
	"encoding/json"
	"fmt"
	"time"

	"stellar_server/internal/game"
	"stellar_server/pkg/db"
	"stellar_server/pkg/logger"
)

// NotificationProxy :
// Intended as a wrapper to access the persisted durable
// notifications.
type NotificationProxy struct {
	dbase *db.DB
	proxy db.Proxy
	log   logger.Logger
}

// NewNotificationProxy :
// Creates a new proxy on the input database.
//
// Returns the created proxy.
func NewNotificationProxy(dbase *db.DB, log logger.Logger) NotificationProxy {
	return NotificationProxy{
		dbase: dbase,
		proxy: db.NewProxy(dbase),
		log:   log,
	}
}

// notificationDTO :
// Facet of a notification matching the payload expected by
// the `save_notification` function.
type notificationDTO struct {
	ID        int                    `json:"id"`
	UserID    int                    `json:"user_id"`
	Type      string                 `json:"type"`
	Payload   map[string]interface{} `json:"payload"`
	Priority  string                 `json:"priority"`
	CreatedAt string                 `json:"created_at"`
	ReadAt    string                 `json:"read_at,omitempty"`
}

// Convert :
// Implementation of the `db.Convertible` interface.
func (n notificationDTO) Convert() interface{} {
	return n
}

// Save :
// Stores a durable notification.
//
// Returns any error.
func (p NotificationProxy) Save(notif game.Notification) error {
	dto := notificationDTO{
		ID:        notif.ID,
		UserID:    notif.UserID,
		Type:      notif.Type,
		Payload:   notif.Payload,
		Priority:  notif.Priority,
		CreatedAt: game.FormatTime(notif.CreatedAt),
	}
	if notif.ReadAt != nil {
		dto.ReadAt = game.FormatTime(*notif.ReadAt)
	}

	return p.proxy.InsertToDB(db.InsertReq{
		Script:     "save_notification",
		Args:       []interface{}{dto},
		SkipReturn: true,
	})
}

// Delete :
// Removes the input notification.
//
// Returns any error.
func (p NotificationProxy) Delete(id int) error {
	return p.proxy.InsertToDB(db.InsertReq{
		Script:     "delete_notification",
		Args:       []interface{}{id},
		SkipReturn: true,
	})
}

// FetchAll :
// Loads every persisted notification in chronological
// order, used by the startup hydration.
//
// Returns the notifications along with any error.
func (p NotificationProxy) FetchAll() ([]game.Notification, error) {
	rows, err := p.dbase.DBQuery(
		"select id, user_id, type, payload, priority, created_at, read_at from notifications order by id",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]game.Notification, 0)
	for rows.Next() {
		var notif game.Notification
		var rawPayload []byte
		var readAt *time.Time

		err = rows.Scan(&notif.ID, &notif.UserID, &notif.Type, &rawPayload, &notif.Priority, &notif.CreatedAt, &readAt)
		if err != nil {
			return nil, fmt.Errorf("unable to fetch notification: %v", err)
		}

		notif.Payload = map[string]interface{}{}
		if err = json.Unmarshal(rawPayload, &notif.Payload); err != nil {
			notif.Payload = map[string]interface{}{}
		}
		notif.ReadAt = readAt

		out = append(out, notif)
	}

	return out, nil
}
