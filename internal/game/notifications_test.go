package game

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationRingCapsPerUser(t *testing.T) {
	nc := NewNotificationCenter()

	for i := 0; i < maxNotificationsPerUser+20; i++ {
		nc.Create(1, "test", map[string]interface{}{"seq": i}, "normal")
	}

	notifs := nc.List(1, maxNotificationsPerUser*2, 0)
	require.Len(t, notifs, maxNotificationsPerUser)

	// The listing starts with the most recent entry and the
	// oldest surviving one closes the page: everything before
	// it was evicted.
	assert.Equal(t, maxNotificationsPerUser+19, notifs[0].Payload["seq"])
	assert.Equal(t, 20, notifs[len(notifs)-1].Payload["seq"])
}

func TestNotificationListNewestFirstAndPaged(t *testing.T) {
	nc := NewNotificationCenter()

	for i := 0; i < 5; i++ {
		nc.Create(1, "test", map[string]interface{}{"seq": i}, "normal")
	}

	page := nc.List(1, 2, 0)
	require.Len(t, page, 2)
	assert.Equal(t, 4, page[0].Payload["seq"])
	assert.Equal(t, 3, page[1].Payload["seq"])

	// The offset walks backwards in time.
	page = nc.List(1, 2, 2)
	require.Len(t, page, 2)
	assert.Equal(t, 2, page[0].Payload["seq"])

	assert.Len(t, nc.List(1, 2, 4), 1)
}

func TestNotificationDefaultsAndDelete(t *testing.T) {
	nc := NewNotificationCenter()

	notif := nc.Create(1, "energy_deficit", nil, "")
	assert.Equal(t, "normal", notif.Priority)
	assert.NotNil(t, notif.Payload)

	assert.True(t, nc.Delete(1, notif.ID))
	assert.False(t, nc.Delete(1, notif.ID))
	assert.Empty(t, nc.List(1, 10, 0))
}

func TestNotificationListIsolatesUsers(t *testing.T) {
	nc := NewNotificationCenter()

	nc.Create(1, "a", nil, "normal")
	nc.Create(2, "b", nil, "normal")

	require.Len(t, nc.List(1, 10, 0), 1)
	assert.Equal(t, "a", nc.List(1, 10, 0)[0].Type)

	nc.Clear(1)
	assert.Empty(t, nc.List(1, 10, 0))
	assert.Len(t, nc.List(2, 10, 0), 1)
}

func TestNotificationCooldown(t *testing.T) {
	nc := NewNotificationCenter()

	now := Now()
	key := fmt.Sprintf("energy_deficit:%d", 4)

	assert.True(t, nc.Allow(key, now, 5*time.Minute))
	assert.False(t, nc.Allow(key, now.Add(time.Minute), 5*time.Minute))
	assert.True(t, nc.Allow(key, now.Add(6*time.Minute), 5*time.Minute))

	// Independent keys do not share a cooldown.
	assert.True(t, nc.Allow("storage_full:4", now, 5*time.Minute))
}

func TestNotificationRestoreReconcilesSequence(t *testing.T) {
	nc := NewNotificationCenter()

	nc.Restore(Notification{ID: 41, UserID: 1, Type: "battle_report"})

	fresh := nc.Create(1, "building_complete", nil, "normal")
	assert.Equal(t, 42, fresh.ID)

	nc.RestoreID(100)
	assert.Equal(t, 101, nc.Create(1, "building_complete", nil, "normal").ID)
}
