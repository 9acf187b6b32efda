package game

import (
	"sync"
	"time"
)

// maxNotificationsPerUser :
// Size of the per-user ring buffer holding the most recent
// notifications in memory.
const maxNotificationsPerUser = 100

// Notification :
// A message produced by the simulation for a given player,
// kept in memory and persisted when a database is plugged
// in.
type Notification struct {
	ID        int                    `json:"id"`
	UserID    int                    `json:"user_id"`
	Type      string                 `json:"type"`
	Payload   map[string]interface{} `json:"payload"`
	Priority  string                 `json:"priority"`
	CreatedAt time.Time              `json:"created_at"`
	ReadAt    *time.Time             `json:"read_at,omitempty"`
}

// NotificationCenter :
// Stores the notifications of all players in per-user ring
// buffers and tracks cooldowns for the recurring alerts so
// that a planet stuck in an energy deficit does not flood
// its owner every tick.
type NotificationCenter struct {
	lock      sync.Mutex
	nextID    int
	perUser   map[int][]Notification
	cooldowns map[string]time.Time
}

// NewNotificationCenter :
// Creates an empty notification center.
func NewNotificationCenter() *NotificationCenter {
	return &NotificationCenter{
		nextID:    1,
		perUser:   make(map[int][]Notification),
		cooldowns: make(map[string]time.Time),
	}
}

// Create :
// Stores a new notification for the input user and returns
// it with its identifier assigned.
func (nc *NotificationCenter) Create(userID int, ntype string, payload map[string]interface{}, priority string) Notification {
	nc.lock.Lock()
	defer nc.lock.Unlock()

	if len(priority) == 0 {
		priority = "normal"
	}
	if payload == nil {
		payload = map[string]interface{}{}
	}

	notif := Notification{
		ID:        nc.nextID,
		UserID:    userID,
		Type:      ntype,
		Payload:   payload,
		Priority:  priority,
		CreatedAt: Now(),
	}
	nc.nextID++

	bucket := append(nc.perUser[userID], notif)
	if len(bucket) > maxNotificationsPerUser {
		bucket = bucket[len(bucket)-maxNotificationsPerUser:]
	}
	nc.perUser[userID] = bucket

	return notif
}

// List :
// Returns a page of the notifications of the input user,
// newest first.
func (nc *NotificationCenter) List(userID int, limit int, offset int) []Notification {
	nc.lock.Lock()
	defer nc.lock.Unlock()

	bucket := nc.perUser[userID]
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || offset >= len(bucket) {
		return []Notification{}
	}

	end := offset + limit
	if end > len(bucket) {
		end = len(bucket)
	}

	out := make([]Notification, end-offset)
	for i := range out {
		out[i] = bucket[len(bucket)-1-offset-i]
	}

	return out
}

// Delete :
// Removes the notification with the input identifier from
// the user's buffer.
//
// Returns `true` when a notification was removed.
func (nc *NotificationCenter) Delete(userID int, id int) bool {
	nc.lock.Lock()
	defer nc.lock.Unlock()

	bucket := nc.perUser[userID]
	for i, notif := range bucket {
		if notif.ID == id {
			nc.perUser[userID] = append(bucket[:i], bucket[i+1:]...)
			return true
		}
	}

	return false
}

// Clear :
// Removes all the notifications of the input user.
func (nc *NotificationCenter) Clear(userID int) {
	nc.lock.Lock()
	defer nc.lock.Unlock()

	delete(nc.perUser, userID)
}

// Allow :
// Checks the cooldown identified by the input key. When
// the cooldown expired (or was never armed) the method
// arms it again and returns `true`; otherwise the caller
// should skip the alert.
func (nc *NotificationCenter) Allow(key string, now time.Time, cooldown time.Duration) bool {
	nc.lock.Lock()
	defer nc.lock.Unlock()

	last, ok := nc.cooldowns[key]
	if ok && now.Sub(last) < cooldown {
		return false
	}

	nc.cooldowns[key] = now

	return true
}

// RestoreID :
// Makes sure the next assigned identifier is strictly
// greater than the input one. Used when rehydrating the
// buffers from persisted rows.
func (nc *NotificationCenter) RestoreID(id int) {
	nc.lock.Lock()
	defer nc.lock.Unlock()

	if id >= nc.nextID {
		nc.nextID = id + 1
	}
}

// Restore :
// Appends an already identified notification to the user's
// buffer, typically when reloading persisted rows during
// startup.
func (nc *NotificationCenter) Restore(notif Notification) {
	nc.lock.Lock()
	defer nc.lock.Unlock()

	bucket := append(nc.perUser[notif.UserID], notif)
	if len(bucket) > maxNotificationsPerUser {
		bucket = bucket[len(bucket)-maxNotificationsPerUser:]
	}
	nc.perUser[notif.UserID] = bucket

	if notif.ID >= nc.nextID {
		nc.nextID = notif.ID + 1
	}
}
