package game

import (
	"math/rand"
	"sort"
	"sync"
)

// Galaxy :
// Pool of empty planet coordinates seeded at startup and
// offered to players as starting or colonization targets.
// The pool is kept in memory and sorted so that pagination
// stays deterministic.
type Galaxy struct {
	lock   sync.Mutex
	seeded []Position
}

// NewGalaxy :
// Creates an unseeded galaxy. Call `Initialize` before
// listing available slots.
func NewGalaxy() *Galaxy {
	return &Galaxy{}
}

// Initialize :
// Seeds the pool of empty coordinates according to the
// input balance values. Idempotent: a pool that is already
// seeded is kept as is.
func (g *Galaxy) Initialize(rules *Rules, rng *rand.Rand) {
	g.lock.Lock()
	defer g.lock.Unlock()

	if g.seeded != nil {
		return
	}

	total := rules.GalaxyCount * rules.SystemsPerGalaxy * rules.PositionsPerSystem
	target := rules.InitialPlanets
	if target < 0 {
		target = 0
	}
	if target > total {
		target = total
	}

	coords := make(map[Position]struct{}, target)

	// When most slots get seeded anyway, enumerating and
	// shuffling beats rejection sampling.
	if target > total/2 {
		all := make([]Position, 0, total)
		for galaxy := 1; galaxy <= rules.GalaxyCount; galaxy++ {
			for system := 1; system <= rules.SystemsPerGalaxy; system++ {
				for planet := 1; planet <= rules.PositionsPerSystem; planet++ {
					all = append(all, Position{Galaxy: galaxy, System: system, Planet: planet})
				}
			}
		}
		rng.Shuffle(len(all), func(i, j int) {
			all[i], all[j] = all[j], all[i]
		})
		for _, pos := range all[:target] {
			coords[pos] = struct{}{}
		}
	} else {
		for len(coords) < target {
			pos := Position{
				Galaxy: 1 + rng.Intn(rules.GalaxyCount),
				System: 1 + rng.Intn(rules.SystemsPerGalaxy),
				Planet: 1 + rng.Intn(rules.PositionsPerSystem),
			}
			coords[pos] = struct{}{}
		}
	}

	g.seeded = make([]Position, 0, len(coords))
	for pos := range coords {
		g.seeded = append(g.seeded, pos)
	}

	sort.Slice(g.seeded, func(i, j int) bool {
		lhs, rhs := g.seeded[i], g.seeded[j]
		if lhs.Galaxy != rhs.Galaxy {
			return lhs.Galaxy < rhs.Galaxy
		}
		if lhs.System != rhs.System {
			return lhs.System < rhs.System
		}
		return lhs.Planet < rhs.Planet
	})
}

// Seeded :
// Returns `true` once the pool holds at least one slot.
func (g *Galaxy) Seeded() bool {
	g.lock.Lock()
	defer g.lock.Unlock()

	return len(g.seeded) > 0
}

// Available :
// Returns a page of the seeded coordinates that are not
// occupied, optionally filtered by galaxy and system. A
// `0` filter value means no filtering.
func (g *Galaxy) Available(occupied map[Position]struct{}, galaxy int, system int, limit int, offset int) []Position {
	g.lock.Lock()
	defer g.lock.Unlock()

	filtered := make([]Position, 0)
	for _, pos := range g.seeded {
		if galaxy != 0 && pos.Galaxy != galaxy {
			continue
		}
		if system != 0 && pos.System != system {
			continue
		}
		if _, ok := occupied[pos]; ok {
			continue
		}
		filtered = append(filtered, pos)
	}

	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}
	if offset >= len(filtered) {
		return []Position{}
	}
	end := offset + limit
	if end > len(filtered) {
		end = len(filtered)
	}

	return filtered[offset:end]
}
