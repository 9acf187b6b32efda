package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableEntitiesSorted(t *testing.T) {
	table := NewTable[Player]()

	table.Set(5, &Player{UserID: 1})
	table.Set(2, &Player{UserID: 2})
	table.Set(9, &Player{UserID: 3})

	assert.Equal(t, []Entity{2, 5, 9}, table.Entities())
	assert.Equal(t, 3, table.Len())

	table.Remove(5)
	assert.Equal(t, []Entity{2, 9}, table.Entities())
	assert.False(t, table.Has(5))
	assert.Nil(t, table.Get(5))
}

func TestStoreEntityAllocation(t *testing.T) {
	s := NewStore()

	first := s.NewEntity()
	second := s.NewEntity()

	assert.Equal(t, Entity(1), first)
	assert.Equal(t, Entity(2), second)

	// Reserving skips past restored identifiers.
	s.Reserve(10)
	assert.Equal(t, Entity(11), s.NewEntity())

	// Reserving a lower identifier changes nothing.
	s.Reserve(3)
	assert.Equal(t, Entity(12), s.NewEntity())
}

func TestStoreFindByUserIsSorted(t *testing.T) {
	s := NewStore()

	colony := s.NewEntity()
	s.Players.Set(colony, &Player{UserID: 1})
	home := s.NewEntity()
	s.Players.Set(home, &Player{UserID: 1})
	other := s.NewEntity()
	s.Players.Set(other, &Player{UserID: 2})

	owned := s.FindByUser(1)
	require.Len(t, owned, 2)
	assert.Equal(t, colony, owned[0])
	assert.Equal(t, home, owned[1])

	assert.Empty(t, s.FindByUser(99))
}

func TestStoreFindAtRequiresOwner(t *testing.T) {
	s := NewStore()

	pos := Position{Galaxy: 1, System: 2, Planet: 3}

	// A positioned entity without an owner is not a planet.
	ghost := s.NewEntity()
	s.Positions.Set(ghost, &Position{Galaxy: 1, System: 2, Planet: 3})
	assert.Zero(t, s.FindAt(pos))

	planet := s.NewEntity()
	s.Positions.Set(planet, &Position{Galaxy: 1, System: 2, Planet: 3})
	s.Players.Set(planet, &Player{UserID: 1})
	assert.Equal(t, planet, s.FindAt(pos))

	assert.Zero(t, s.FindAt(Position{Galaxy: 9, System: 9, Planet: 9}))
}

func TestStoreDestroyEntityDetachesEverything(t *testing.T) {
	s := NewStore()

	ent := s.NewEntity()
	s.Players.Set(ent, &Player{UserID: 1})
	s.Positions.Set(ent, &Position{Galaxy: 1, System: 1, Planet: 1})
	s.Resources.Set(ent, &Resources{Metal: 100})
	s.Fleets.Set(ent, &Fleet{Ships: map[string]int{"light_fighter": 1}})

	s.DestroyEntity(ent)

	assert.False(t, s.Players.Has(ent))
	assert.False(t, s.Positions.Has(ent))
	assert.False(t, s.Resources.Has(ent))
	assert.False(t, s.Fleets.Has(ent))
}
