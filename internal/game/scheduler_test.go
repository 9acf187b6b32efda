package game

import (
	"sync/atomic"
	"testing"
	"time"

	"stellar_server/pkg/background"
	"stellar_server/pkg/metrics"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerTicksAndStops(t *testing.T) {
	viper.Set("Scheduler.TickIntervalMs", 5)
	viper.Set("Scheduler.SaveIntervalS", 3600)
	defer viper.Reset()

	w := newTestWorld()
	collector := metrics.NewCollector()

	var saves atomic.Int32

	s := NewScheduler(w, collector, noopLogger{}).WithSave(func() error {
		saves.Add(1)
		return nil
	})

	require.NoError(t, s.Start())
	assert.Equal(t, background.ErrAlreadyRunning, s.Start())

	time.Sleep(100 * time.Millisecond)
	s.Stop()

	assert.Greater(t, collector.Snapshot().Ticks, uint64(0))

	// The shutdown sequence runs a final save.
	assert.GreaterOrEqual(t, saves.Load(), int32(1))

	// Stopping twice is harmless.
	s.Stop()
}

func TestSchedulerAdvancesTheWorld(t *testing.T) {
	viper.Set("Scheduler.TickIntervalMs", 5)
	defer viper.Reset()

	w := newTestWorld()
	addTestPlanet(w, 1, Position{Galaxy: 1, System: 1, Planet: 1})

	s := NewScheduler(w, nil, noopLogger{})
	require.NoError(t, s.Start())

	// A command buffered while the loop runs is drained by one
	// of the next ticks.
	w.Enqueue(Command{Type: CmdBuildBuilding, UserID: 1, BuildingKind: "metal_mine"})

	deadline := time.Now().Add(2 * time.Second)
	for w.commands.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	s.Stop()

	assert.Zero(t, w.commands.Len())
}
