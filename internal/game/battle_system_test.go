package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSink :
// Event sink capturing everything the simulation sends so
// that tests can inspect the traffic per user.
type recordingSink struct {
	events map[int][]map[string]interface{}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{events: make(map[int][]map[string]interface{})}
}

func (s *recordingSink) Send(userID int, event map[string]interface{}) {
	s.events[userID] = append(s.events[userID], event)
}

func (s *recordingSink) ofType(userID int, kind string) []map[string]interface{} {
	out := make([]map[string]interface{}, 0)
	for _, event := range s.events[userID] {
		if event["type"] == kind {
			out = append(out, event)
		}
	}
	return out
}

// runRaid :
// Sends `atk` light fighters of user 1 against the planet
// of user 2 which stations `def` of them, and ticks until
// the battle resolved.
//
// Returns the world, the sink and the resolution outcome.
func runRaid(t *testing.T, atk int, def int) (*World, *recordingSink, map[string]interface{}) {
	w := newTestWorld()
	sink := newRecordingSink()
	w.WithSink(sink)

	attacker := addTestPlanet(w, 1, Position{Galaxy: 1, System: 1, Planet: 1})
	defender := addTestPlanet(w, 2, Position{Galaxy: 1, System: 2, Planet: 1})

	w.store.Fleets.Get(attacker).Ships["light_fighter"] = atk
	w.store.Fleets.Get(defender).Ships["light_fighter"] = def

	now := Now()
	dispatchFleet(w, 1, Position{Galaxy: 1, System: 2, Planet: 1}, "attack", map[string]int{"light_fighter": atk})
	w.Tick(now)

	arrival := w.store.Movements.Get(attacker).ArrivalTime
	w.Tick(arrival.Add(time.Second))

	reports := w.reports.List(BattleReportKind, 1, 10, 0)
	require.Len(t, reports, 1)

	outcome, ok := reports[0].Payload["outcome"].(map[string]interface{})
	require.True(t, ok)

	return w, sink, outcome
}

func TestBattleOutnumberedDefenderLoses(t *testing.T) {
	_, _, outcome := runRaid(t, 2, 1)

	assert.Equal(t, "attacker", outcome["winner"])
	assert.Equal(t, 100, outcome["attacker_power"])
	assert.Equal(t, 50, outcome["defender_power"])

	// Damage 50-20 against 90 hull points destroys a third of
	// the attacking pair, rounded down to zero losses.
	losses, ok := outcome["attacker_losses"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 0, losses["light_fighter"])

	losses, ok = outcome["defender_losses"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 1, losses["light_fighter"])

	remaining, ok := outcome["defender_remaining"].(map[string]interface{})
	require.True(t, ok)
	assert.Empty(t, remaining)
}

func TestBattleEvenMatchIsADraw(t *testing.T) {
	_, _, outcome := runRaid(t, 1, 1)

	assert.Equal(t, "draw", outcome["winner"])
	assert.Equal(t, outcome["attacker_remaining_power"], outcome["defender_remaining_power"])
}

func TestBattleNotifiesBothParticipants(t *testing.T) {
	w, sink, _ := runRaid(t, 2, 1)

	require.Len(t, sink.ofType(1, "battle_report"), 1)
	require.Len(t, sink.ofType(2, "battle_report"), 1)

	// The report is visible from both sides and carries the
	// same identifier as the events.
	reportID := sink.ofType(1, "battle_report")[0]["report_id"].(int)
	require.NotNil(t, w.reports.Get(BattleReportKind, 2, reportID))

	for _, userID := range []int{1, 2} {
		found := false
		for _, notif := range w.notifications.List(userID, 50, 0) {
			if notif.Type == "battle_report" && notif.Priority == "critical" {
				found = true
			}
		}
		assert.True(t, found, "user %d misses the battle notification", userID)
	}
}

func TestBattleIsDeterministic(t *testing.T) {
	_, _, first := runRaid(t, 5, 3)
	_, _, second := runRaid(t, 5, 3)

	for _, key := range []string{
		"winner",
		"attacker_power",
		"defender_power",
		"attacker_remaining_power",
		"defender_remaining_power",
		"attacker_losses",
		"defender_losses",
	} {
		assert.Equal(t, first[key], second[key], "diverging %s", key)
	}
}

func TestBattleAgainstEmptyGarrison(t *testing.T) {
	_, _, outcome := runRaid(t, 2, 0)

	assert.Equal(t, "attacker", outcome["winner"])
	assert.Equal(t, 0, outcome["defender_power"])

	losses, ok := outcome["attacker_losses"].(map[string]interface{})
	require.True(t, ok)
	assert.Empty(t, losses)
}

func TestBattleResolvedOnlyOnce(t *testing.T) {
	w, _, _ := runRaid(t, 2, 1)

	// Further ticks must not resolve the same battle again.
	w.Tick(Now().Add(time.Hour))

	assert.Len(t, w.reports.List(BattleReportKind, 1, 10, 0), 1)
}
