package game

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGalaxy(initialPlanets int) (*Galaxy, *Rules) {
	rules := DefaultRules()
	rules.InitialPlanets = initialPlanets

	g := NewGalaxy()
	g.Initialize(rules, rand.New(rand.NewSource(42)))

	return g, rules
}

func TestGalaxySeedingStaysInBounds(t *testing.T) {
	g, rules := newTestGalaxy(200)

	require.True(t, g.Seeded())

	slots := g.Available(nil, 0, 0, 500, 0)
	assert.Len(t, slots, 200)

	seen := make(map[Position]struct{})
	for _, pos := range slots {
		assert.True(t, rules.ValidCoordinates(pos))

		_, dup := seen[pos]
		assert.False(t, dup, "duplicate slot %v", pos)
		seen[pos] = struct{}{}
	}
}

func TestGalaxyInitializeIsIdempotent(t *testing.T) {
	g, rules := newTestGalaxy(50)

	before := g.Available(nil, 0, 0, 100, 0)
	g.Initialize(rules, rand.New(rand.NewSource(7)))
	after := g.Available(nil, 0, 0, 100, 0)

	assert.Equal(t, before, after)
}

func TestGalaxyAvailableFilters(t *testing.T) {
	g, _ := newTestGalaxy(500)

	all := g.Available(nil, 0, 0, 1000, 0)
	require.NotEmpty(t, all)

	galaxy := all[0].Galaxy
	for _, pos := range g.Available(nil, galaxy, 0, 1000, 0) {
		assert.Equal(t, galaxy, pos.Galaxy)
	}

	system := all[0].System
	for _, pos := range g.Available(nil, galaxy, system, 1000, 0) {
		assert.Equal(t, galaxy, pos.Galaxy)
		assert.Equal(t, system, pos.System)
	}
}

func TestGalaxyAvailableSkipsOccupied(t *testing.T) {
	g, _ := newTestGalaxy(100)

	all := g.Available(nil, 0, 0, 1000, 0)
	require.NotEmpty(t, all)

	occupied := map[Position]struct{}{all[0]: {}}

	remaining := g.Available(occupied, 0, 0, 1000, 0)
	assert.Len(t, remaining, len(all)-1)
	assert.NotContains(t, remaining, all[0])
}

func TestGalaxyAvailablePaging(t *testing.T) {
	g, _ := newTestGalaxy(100)

	first := g.Available(nil, 0, 0, 10, 0)
	second := g.Available(nil, 0, 0, 10, 10)

	require.Len(t, first, 10)
	require.Len(t, second, 10)
	assert.NotEqual(t, first, second)

	// Past the end of the pool, the page is empty.
	assert.Empty(t, g.Available(nil, 0, 0, 10, 100000))
}
