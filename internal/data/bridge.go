package data

import (
	"fmt"
	"sync"
	"time"

	"stellar_server/internal/game"
	"stellar_server/internal/locker"
	"stellar_server/pkg/db"
	"stellar_server/pkg/logger"

	"github.com/spf13/viper"
)

// saveResource :
// Name of the resource guarding the periodic save in the
// concurrent locker.
const saveResource = "world_save"

// bridgeConfiguration :
// Regroups the variables that can be used to customize the
// behavior of the persistence bridge.
//
// The `QueueSize` defines the capacity of the write queue.
// Writes submitted while the queue is full are dropped.
// The default value is `256`.
//
// The `PersistInterval` defines the minimal duration
// between two writes of the same planet. More frequent
// updates are elided; the periodic save covers the elided
// state.
// The default value is `60` seconds.
//
// The `WaitTimeout` defines how long a bounded synchronous
// operation may block before returning a default.
// The default value is `2` seconds.
type bridgeConfiguration struct {
	QueueSize       int
	PersistInterval time.Duration
	WaitTimeout     time.Duration
}

// parseBridgeConfiguration :
// Used to parse the configuration file and environment
// variables provided when executing this server to get the
// values of the bridge properties.
//
// Returns the parsed configuration where all non-set
// properties have their default values.
func parseBridgeConfiguration() bridgeConfiguration {
	config := bridgeConfiguration{
		QueueSize:       256,
		PersistInterval: 60 * time.Second,
		WaitTimeout:     2 * time.Second,
	}

	if viper.IsSet("Persistence.QueueSize") {
		config.QueueSize = viper.GetInt("Persistence.QueueSize")
	}
	if viper.IsSet("Persistence.IntervalS") {
		config.PersistInterval = time.Duration(viper.GetInt("Persistence.IntervalS")) * time.Second
	}
	if viper.IsSet("Persistence.WaitTimeoutMs") {
		config.WaitTimeout = time.Duration(viper.GetInt("Persistence.WaitTimeoutMs")) * time.Millisecond
	}

	return config
}

// Bridge :
// Connects the synchronous simulation to the database. The
// simulation submits fire-and-forget writes which a single
// worker drains in the background; the simulation thread
// never blocks on the database and any error is logged and
// swallowed.
//
// Per planet writes are throttled: at most one write per
// planet per configured interval, the periodic save making
// up for the elided updates.
type Bridge struct {
	config bridgeConfiguration

	dbase         *db.DB
	planets       PlanetProxy
	users         UserProxy
	market        MarketProxy
	reports       ReportProxy
	notifications NotificationProxy

	cl  *locker.ConcurrentLocker
	log logger.Logger

	jobs   chan func()
	waiter sync.WaitGroup

	lock      sync.Mutex
	running   bool
	lastWrite map[game.Entity]time.Time
}

// NewBridge :
// Creates a bridge on the input database.
//
// The `cl` is used to serialize the periodic save runs.
//
// Returns the created bridge.
func NewBridge(dbase *db.DB, cl *locker.ConcurrentLocker, log logger.Logger) *Bridge {
	config := parseBridgeConfiguration()

	return &Bridge{
		config: config,

		dbase:         dbase,
		planets:       NewPlanetProxy(dbase, log),
		users:         NewUserProxy(dbase, log),
		market:        NewMarketProxy(dbase, log),
		reports:       NewReportProxy(dbase, log),
		notifications: NewNotificationProxy(dbase, log),

		cl:  cl,
		log: log,

		jobs:      make(chan func(), config.QueueSize),
		lastWrite: make(map[game.Entity]time.Time),
	}
}

// Users :
// Returns the users proxy of this bridge.
func (b *Bridge) Users() UserProxy {
	return b.users
}

// Planets :
// Returns the planets proxy of this bridge.
func (b *Bridge) Planets() PlanetProxy {
	return b.planets
}

// Market :
// Returns the market proxy of this bridge.
func (b *Bridge) Market() MarketProxy {
	return b.market
}

// Reports :
// Returns the reports proxy of this bridge.
func (b *Bridge) Reports() ReportProxy {
	return b.reports
}

// Notifications :
// Returns the notifications proxy of this bridge.
func (b *Bridge) Notifications() NotificationProxy {
	return b.notifications
}

// Enabled :
// Returns `true` when the underlying database is enabled.
func (b *Bridge) Enabled() bool {
	return b.dbase != nil && b.dbase.Enabled()
}

// Start :
// Launches the background worker draining the write queue.
func (b *Bridge) Start() {
	b.lock.Lock()
	defer b.lock.Unlock()

	if b.running {
		return
	}
	b.running = true

	b.waiter.Add(1)
	go b.drain()
}

// Stop :
// Terminates the background worker after draining the
// pending writes. The queue closes under the bridge lock so
// that a concurrent submit can never reach a closed channel.
func (b *Bridge) Stop() {
	b.lock.Lock()
	if !b.running {
		b.lock.Unlock()
		return
	}
	b.running = false
	close(b.jobs)
	b.lock.Unlock()

	b.waiter.Wait()
}

// drain :
// Executes the queued writes until the queue closes.
func (b *Bridge) drain() {
	defer b.waiter.Done()

	for job := range b.jobs {
		b.run(job)
	}
}

// run :
// Executes a single write, isolating the worker from any
// panic raised by the database layer.
func (b *Bridge) run(job func()) {
	defer func() {
		if err := recover(); err != nil {
			b.log.Trace(logger.Error, module, fmt.Sprintf("Recovered from error in persistence job (err: %v)", err))
		}
	}()

	job()
}

// submit :
// Queues a write without waiting. The write is dropped when
// the database is disabled, the worker is stopped or the
// queue is full. The send happens under the same lock as
// the close in `Stop` to rule out a send on a closed
// channel.
func (b *Bridge) submit(job func()) {
	if !b.Enabled() {
		return
	}

	b.lock.Lock()
	defer b.lock.Unlock()

	if !b.running {
		return
	}

	select {
	case b.jobs <- job:
	default:
		b.log.Trace(logger.Warning, module, "Dropping persistence job (queue full)")
	}
}

// SubmitWait :
// Queues an operation and waits for its completion up to
// the configured timeout.
//
// Returns the operation's error, or a timeout error.
func (b *Bridge) SubmitWait(job func() error) error {
	if !b.Enabled() {
		return nil
	}

	done := make(chan error, 1)
	b.submit(func() {
		done <- job()
	})

	select {
	case err := <-done:
		return err
	case <-time.After(b.config.WaitTimeout):
		return fmt.Errorf("persistence operation timed out after %v", b.config.WaitTimeout)
	}
}

// UpsertPlanet :
// Implementation of the `game.Persister` interface. The
// write is elided when the same planet was written less
// than the configured interval ago.
func (b *Bridge) UpsertPlanet(snap game.PlanetSnapshot) {
	b.lock.Lock()
	last, ok := b.lastWrite[snap.Entity]
	now := time.Now()
	if ok && now.Sub(last) < b.config.PersistInterval {
		b.lock.Unlock()
		return
	}
	b.lastWrite[snap.Entity] = now
	b.lock.Unlock()

	b.submit(func() {
		if err := b.planets.Upsert(snap); err != nil {
			b.log.Trace(logger.Warning, module, fmt.Sprintf("Unable to persist planet %d (err: %v)", snap.Entity, err))
		}
	})
}

// DeletePlanet :
// Implementation of the `game.Persister` interface.
func (b *Bridge) DeletePlanet(ent game.Entity) {
	b.lock.Lock()
	delete(b.lastWrite, ent)
	b.lock.Unlock()

	b.submit(func() {
		if err := b.planets.Delete(ent); err != nil {
			b.log.Trace(logger.Warning, module, fmt.Sprintf("Unable to delete planet %d (err: %v)", ent, err))
		}
	})
}

// DeleteMission :
// Implementation of the `game.Persister` interface.
func (b *Bridge) DeleteMission(ent game.Entity) {
	b.submit(func() {
		if err := b.planets.DeleteMission(ent); err != nil {
			b.log.Trace(logger.Warning, module, fmt.Sprintf("Unable to delete mission of planet %d (err: %v)", ent, err))
		}
	})
}

// SaveOffer :
// Implementation of the `game.Persister` interface.
func (b *Bridge) SaveOffer(offer game.TradeOffer) {
	b.submit(func() {
		if err := b.market.SaveOffer(offer); err != nil {
			b.log.Trace(logger.Warning, module, fmt.Sprintf("Unable to persist offer %d (err: %v)", offer.ID, err))
		}
	})
}

// SaveTradeEvent :
// Implementation of the `game.Persister` interface.
func (b *Bridge) SaveTradeEvent(event map[string]interface{}) {
	b.submit(func() {
		if err := b.market.SaveEvent(event); err != nil {
			b.log.Trace(logger.Warning, module, fmt.Sprintf("Unable to persist trade event (err: %v)", err))
		}
	})
}

// SaveNotification :
// Implementation of the `game.Persister` interface.
func (b *Bridge) SaveNotification(notif game.Notification) {
	b.submit(func() {
		if err := b.notifications.Save(notif); err != nil {
			b.log.Trace(logger.Warning, module, fmt.Sprintf("Unable to persist notification %d (err: %v)", notif.ID, err))
		}
	})
}

// SaveReport :
// Implementation of the `game.Persister` interface.
func (b *Bridge) SaveReport(report game.Report) {
	b.submit(func() {
		if err := b.reports.Save(report); err != nil {
			b.log.Trace(logger.Warning, module, fmt.Sprintf("Unable to persist report %d (err: %v)", report.ID, err))
		}
	})
}

// SaveAll :
// Writes every input snapshot synchronously, bypassing the
// per planet throttle. Runs are serialized by the locker:
// when a previous run is still in flight the new one is
// skipped instead of piling up.
//
// Returns any error.
func (b *Bridge) SaveAll(snaps []game.PlanetSnapshot) error {
	if !b.Enabled() {
		return nil
	}

	guard := b.cl.Acquire(saveResource)
	defer b.cl.Release(guard)

	if !guard.TryLock() {
		b.log.Trace(logger.Verbose, module, "Skipping periodic save (previous run still in flight)")
		return nil
	}
	defer func() {
		if err := guard.Release(); err != nil {
			b.log.Trace(logger.Warning, module, fmt.Sprintf("Unable to release save guard (err: %v)", err))
		}
	}()

	start := time.Now()
	saved := 0
	var firstErr error

	for _, snap := range snaps {
		if err := b.planets.Upsert(snap); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			b.log.Trace(logger.Warning, module, fmt.Sprintf("Unable to save planet %d (err: %v)", snap.Entity, err))
			continue
		}

		b.lock.Lock()
		b.lastWrite[snap.Entity] = time.Now()
		b.lock.Unlock()

		saved++
	}

	b.log.Trace(logger.Debug, module, fmt.Sprintf("Saved %d/%d planet(s) in %v", saved, len(snaps), time.Since(start)))

	return firstErr
}
