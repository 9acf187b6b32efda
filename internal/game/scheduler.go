package game

import (
	"fmt"
	"sync"
	"time"

	"stellar_server/pkg/background"
	"stellar_server/pkg/logger"
	"stellar_server/pkg/metrics"

	"github.com/spf13/viper"
)

// schedulerModule :
// Identifier used by the scheduler when producing logs.
const schedulerModule = "scheduler"

// SaveFunc :
// Operation invoked by the periodic save job, typically
// flushing the world snapshots to the database.
type SaveFunc func() error

// schedulerConfiguration :
// Regroups the variables that can be used to customize the
// pacing of the simulation loop and of its side jobs.
//
// The `TickInterval` defines the duration between two
// simulation ticks.
// The default value is `1` second.
//
// The `SaveInterval` defines the duration between two runs
// of the periodic save job.
// The default value is `60` seconds.
//
// The `CleanupInterval` defines the duration between two
// runs of the inactivity cleanup job.
// The default value is `24` hours.
//
// The `CleanupAfterDays` defines the number of days of
// inactivity after which a player is removed.
// The default value is `30`.
type schedulerConfiguration struct {
	TickInterval     time.Duration
	SaveInterval     time.Duration
	CleanupInterval  time.Duration
	CleanupAfterDays int
}

// parseSchedulerConfiguration :
// Used to parse the configuration file and environment
// variables provided when executing this server to get the
// values of the scheduler properties.
//
// Returns the parsed configuration where all non-set
// properties have their default values.
func parseSchedulerConfiguration() schedulerConfiguration {
	config := schedulerConfiguration{
		TickInterval:     1 * time.Second,
		SaveInterval:     60 * time.Second,
		CleanupInterval:  24 * time.Hour,
		CleanupAfterDays: 30,
	}

	if viper.IsSet("Scheduler.TickIntervalMs") {
		config.TickInterval = time.Duration(viper.GetInt("Scheduler.TickIntervalMs")) * time.Millisecond
	}
	if viper.IsSet("Scheduler.SaveIntervalS") {
		config.SaveInterval = time.Duration(viper.GetInt("Scheduler.SaveIntervalS")) * time.Second
	}
	if viper.IsSet("Scheduler.CleanupIntervalS") {
		config.CleanupInterval = time.Duration(viper.GetInt("Scheduler.CleanupIntervalS")) * time.Second
	}
	if viper.IsSet("Scheduler.CleanupAfterDays") {
		config.CleanupAfterDays = viper.GetInt("Scheduler.CleanupAfterDays")
	}

	return config
}

// Scheduler :
// Drives the simulation: a drift corrected loop advances
// the world at a fixed rate while two background processes
// handle the periodic save and the inactivity cleanup. The
// save also runs once during the shutdown sequence so that
// no progress is lost.
type Scheduler struct {
	config schedulerConfiguration

	world   *World
	metrics *metrics.Collector
	save    SaveFunc
	log     logger.Logger

	saveJob    *background.Process
	cleanupJob *background.Process

	lock        sync.Mutex
	running     bool
	termination chan bool
	waiter      sync.WaitGroup
}

// NewScheduler :
// Creates a scheduler for the input world with configuration
// values retrieved from the environment variables and conf
// file provided to the server.
//
// Returns the created scheduler.
func NewScheduler(world *World, collector *metrics.Collector, log logger.Logger) *Scheduler {
	return &Scheduler{
		config:  parseSchedulerConfiguration(),
		world:   world,
		metrics: collector,
		log:     log,

		termination: make(chan bool, 1),
	}
}

// WithSave :
// Assigns the operation executed by the periodic save job.
//
// Returns this scheduler to allow chain calling.
func (s *Scheduler) WithSave(save SaveFunc) *Scheduler {
	s.save = save
	return s
}

// Start :
// Launches the simulation loop and the side jobs.
//
// Returns an error in case the scheduler is already running.
func (s *Scheduler) Start() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.running {
		return background.ErrAlreadyRunning
	}

	if s.save != nil {
		s.saveJob = background.NewProcess(s.config.SaveInterval, s.log).
			WithModule("save").
			WithOperation(func() (bool, error) {
				err := s.save()
				return err == nil, err
			})

		if err := s.saveJob.Start(); err != nil {
			return err
		}
	}

	s.cleanupJob = background.NewProcess(s.config.CleanupInterval, s.log).
		WithModule("cleanup").
		WithOperation(func() (bool, error) {
			removed := s.world.CleanupInactive(time.Duration(s.config.CleanupAfterDays) * 24 * time.Hour)
			if removed > 0 {
				s.log.Trace(logger.Info, schedulerModule, fmt.Sprintf("Removed %d inactive player(s)", removed))
			}
			return true, nil
		})

	if err := s.cleanupJob.Start(); err != nil {
		s.saveJob.Stop()
		return err
	}

	s.running = true
	s.waiter.Add(1)

	go s.activeLoop()

	s.log.Trace(logger.Info, schedulerModule, fmt.Sprintf("Started simulation loop (tick: %v, save: %v)", s.config.TickInterval, s.config.SaveInterval))

	return nil
}

// Stop :
// Terminates the simulation loop and the side jobs, then
// performs a final save.
func (s *Scheduler) Stop() {
	s.lock.Lock()

	if !s.running {
		s.lock.Unlock()
		return
	}

	s.running = false
	s.termination <- true
	s.lock.Unlock()

	s.waiter.Wait()

	if s.saveJob != nil {
		s.saveJob.Stop()
	}
	if s.cleanupJob != nil {
		s.cleanupJob.Stop()
	}

	if s.save != nil {
		if err := s.save(); err != nil {
			s.log.Trace(logger.Error, schedulerModule, fmt.Sprintf("Caught error during final save (err: %v)", err))
		}
	}

	s.log.Trace(logger.Info, schedulerModule, "Stopped simulation loop")
}

// activeLoop :
// Main processing loop: each tick is anchored to an absolute
// deadline so that the processing time of one tick does not
// delay the next ones. When the loop falls too far behind it
// re-anchors instead of bursting.
func (s *Scheduler) activeLoop() {
	defer func() {
		if err := recover(); err != nil {
			s.log.Trace(logger.Critical, schedulerModule, fmt.Sprintf("Recovered from error in simulation loop (err: %v)", err))
		}

		s.waiter.Done()
	}()

	interval := s.config.TickInterval
	deadline := time.Now().Add(interval)

	for {
		select {
		case <-s.termination:
			return
		case fired := <-time.After(time.Until(deadline)):
			jitter := fired.Sub(deadline)
			if jitter < 0 {
				jitter = 0
			}

			start := time.Now()
			s.world.Tick(Now())
			elapsed := time.Since(start)

			if s.metrics != nil {
				s.metrics.RecordTick(elapsed, jitter)
			}

			deadline = deadline.Add(interval)
			if time.Until(deadline) < 0 {
				deadline = time.Now().Add(interval)
			}
		}
	}
}
