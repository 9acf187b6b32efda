package metrics

import (
	"sync"
	"time"

	"stellar_server/pkg/duration"
)

// windowSize :
// Number of samples kept in the rolling windows used to
// compute recent averages for tick statistics.
const windowSize = 120

// Collector :
// Gathers runtime statistics about the simulation loop and
// the HTTP layer. All the facets are protected by a mutex so
// that the loop and the request handlers can publish samples
// concurrently.
//
// The `startedAt` marks the creation of the collector and is
// used to report the uptime.
//
// The `ticks` counts the total number of simulation ticks
// processed so far while `tickDurations` and `tickJitters`
// keep a rolling window of the most recent samples.
//
// The `requests` counts the HTTP requests served, with the
// `requestErrors` fraction of them that answered with a
// status of 500 or above.
type Collector struct {
	lock sync.Mutex

	startedAt time.Time

	ticks         uint64
	lastTick      time.Duration
	maxTick       time.Duration
	tickDurations []time.Duration
	tickJitters   []time.Duration

	requests      uint64
	requestErrors uint64
}

// Snapshot :
// JSON-friendly view of the statistics gathered by the
// collector at a given point in time.
type Snapshot struct {
	Uptime           duration.Duration `json:"uptime"`
	Ticks            uint64            `json:"ticks"`
	LastTickDuration duration.Duration `json:"last_tick_duration"`
	MaxTickDuration  duration.Duration `json:"max_tick_duration"`
	AvgTickDuration  duration.Duration `json:"avg_tick_duration"`
	AvgTickJitter    duration.Duration `json:"avg_tick_jitter"`
	Requests         uint64            `json:"requests"`
	RequestErrors    uint64            `json:"request_errors"`
}

// NewCollector :
// Creates a new empty collector anchored at the current
// time.
func NewCollector() *Collector {
	return &Collector{
		startedAt: time.Now(),
	}
}

// RecordTick :
// Publishes a new sample for the simulation loop.
//
// The `elapsed` defines how long the tick took to process.
//
// The `jitter` defines by how much the tick missed its
// scheduled deadline.
func (c *Collector) RecordTick(elapsed time.Duration, jitter time.Duration) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.ticks++
	c.lastTick = elapsed
	if elapsed > c.maxTick {
		c.maxTick = elapsed
	}

	c.tickDurations = appendBounded(c.tickDurations, elapsed)
	c.tickJitters = appendBounded(c.tickJitters, jitter)
}

// RecordRequest :
// Publishes a new sample for the HTTP layer.
//
// The `status` defines the HTTP status code answered to the
// client.
func (c *Collector) RecordRequest(status int) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.requests++
	if status >= 500 {
		c.requestErrors++
	}
}

// Ticks :
// Returns the total number of processed ticks.
func (c *Collector) Ticks() uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.ticks
}

// Snapshot :
// Produces a consistent view of the gathered statistics.
func (c *Collector) Snapshot() Snapshot {
	c.lock.Lock()
	defer c.lock.Unlock()

	return Snapshot{
		Uptime:           duration.NewDuration(time.Since(c.startedAt)),
		Ticks:            c.ticks,
		LastTickDuration: duration.NewDuration(c.lastTick),
		MaxTickDuration:  duration.NewDuration(c.maxTick),
		AvgTickDuration:  duration.NewDuration(average(c.tickDurations)),
		AvgTickJitter:    duration.NewDuration(average(c.tickJitters)),
		Requests:         c.requests,
		RequestErrors:    c.requestErrors,
	}
}

// appendBounded :
// Appends a sample to the input window, discarding the
// oldest sample once the window is full.
func appendBounded(window []time.Duration, sample time.Duration) []time.Duration {
	window = append(window, sample)
	if len(window) > windowSize {
		window = window[len(window)-windowSize:]
	}
	return window
}

// average :
// Computes the mean of the input samples. An empty input
// yields a zero duration.
func average(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}

	var total time.Duration
	for _, s := range samples {
		total += s
	}

	return total / time.Duration(len(samples))
}
