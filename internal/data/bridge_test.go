package data

import (
	"sync"
	"testing"

	"stellar_server/internal/game"
	"stellar_server/internal/locker"
	"stellar_server/pkg/db"
	"stellar_server/pkg/logger"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

// noopLogger :
// Discards every trace, keeping the tests quiet.
type noopLogger struct{}

func (noopLogger) Trace(level logger.Severity, module string, message string) {}

// newTestBridge :
// Creates a bridge on an enabled database that points to a
// closed port: every write path is exercised but each query
// fails fast without a server to talk to.
func newTestBridge() (*Bridge, *db.DB) {
	viper.Set("Database.Enabled", true)
	viper.Set("Database.Name", "nowhere")
	viper.Set("Database.User", "nobody")
	viper.Set("Database.Password", "nothing")
	viper.Set("Database.Port", 59999)
	viper.Set("Persistence.WaitTimeoutMs", 50)

	dbase := db.NewPool(noopLogger{})

	return NewBridge(dbase, locker.NewConcurrentLocker(noopLogger{}), noopLogger{}), dbase
}

func TestBridgeSubmitSurvivesConcurrentStop(t *testing.T) {
	defer viper.Reset()

	bridge, dbase := newTestBridge()
	defer dbase.Stop()

	bridge.Start()

	// Hammer the write queue while the worker shuts down: a
	// submission racing the stop must be dropped, never panic
	// on the closing queue.
	var waiter sync.WaitGroup
	for i := 0; i < 8; i++ {
		waiter.Add(1)
		go func() {
			defer waiter.Done()
			for j := 0; j < 200; j++ {
				bridge.SaveOffer(game.TradeOffer{ID: j, Status: "open"})
			}
		}()
	}

	bridge.Stop()
	waiter.Wait()

	// Late submissions are silently dropped and a bounded
	// wait answers its timeout instead of hanging.
	bridge.SaveOffer(game.TradeOffer{ID: 1, Status: "open"})
	assert.Error(t, bridge.SubmitWait(func() error { return nil }))

	// Stopping twice is harmless.
	bridge.Stop()
}

func TestBridgeStartIsIdempotent(t *testing.T) {
	defer viper.Reset()

	bridge, dbase := newTestBridge()
	defer dbase.Stop()

	bridge.Start()
	bridge.Start()

	bridge.Stop()
}
