package game

import (
	"sort"
)

// Entity :
// Identifier of an object managed by the store. Entities
// are plain integers handed out sequentially; an entity
// only exists through the components attached to it.
type Entity int

// Table :
// Holds the components of a given type, indexed by the
// entity they are attached to. Tables are not safe for
// concurrent use on their own: the world mutex guards
// all accesses.
type Table[T any] struct {
	rows map[Entity]*T
}

// NewTable :
// Creates an empty component table.
func NewTable[T any]() *Table[T] {
	return &Table[T]{
		rows: make(map[Entity]*T),
	}
}

// Get :
// Returns the component attached to the input entity, or
// `nil` in case the entity does not carry one.
func (t *Table[T]) Get(ent Entity) *T {
	return t.rows[ent]
}

// Set :
// Attaches a component to the input entity, replacing any
// existing one.
func (t *Table[T]) Set(ent Entity, component *T) {
	t.rows[ent] = component
}

// Remove :
// Detaches the component of the input entity. Removing a
// component that does not exist is a no-op.
func (t *Table[T]) Remove(ent Entity) {
	delete(t.rows, ent)
}

// Has :
// Returns `true` in case the input entity carries a
// component of this type.
func (t *Table[T]) Has(ent Entity) bool {
	_, ok := t.rows[ent]
	return ok
}

// Len :
// Returns the number of components in this table.
func (t *Table[T]) Len() int {
	return len(t.rows)
}

// Entities :
// Returns the entities carrying a component of this type,
// sorted by identifier. The deterministic order matters:
// the systems traverse tables every tick and two servers
// replaying the same commands must visit planets in the
// same order.
func (t *Table[T]) Entities() []Entity {
	out := make([]Entity, 0, len(t.rows))
	for ent := range t.rows {
		out = append(out, ent)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i] < out[j]
	})

	return out
}

// Store :
// Regroups all the component tables of the simulation in
// a single place. One entity usually represents a planet
// with its owner, stockpile, infrastructure and fleet
// attached as components.
type Store struct {
	next Entity

	Players     *Table[Player]
	Positions   *Table[Position]
	Resources   *Table[Resources]
	Production  *Table[ResourceProduction]
	Buildings   *Table[Buildings]
	BuildQueues *Table[BuildQueue]
	ShipQueues  *Table[ShipBuildQueue]
	Fleets      *Table[Fleet]
	Movements   *Table[FleetMovement]
	Research    *Table[Research]
	ResearchQs  *Table[ResearchQueue]
	Planets     *Table[Planet]
	Battles     *Table[Battle]
}

// NewStore :
// Creates an empty store with all tables allocated.
func NewStore() *Store {
	return &Store{
		next: 1,

		Players:     NewTable[Player](),
		Positions:   NewTable[Position](),
		Resources:   NewTable[Resources](),
		Production:  NewTable[ResourceProduction](),
		Buildings:   NewTable[Buildings](),
		BuildQueues: NewTable[BuildQueue](),
		ShipQueues:  NewTable[ShipBuildQueue](),
		Fleets:      NewTable[Fleet](),
		Movements:   NewTable[FleetMovement](),
		Research:    NewTable[Research](),
		ResearchQs:  NewTable[ResearchQueue](),
		Planets:     NewTable[Planet](),
		Battles:     NewTable[Battle](),
	}
}

// NewEntity :
// Allocates a fresh entity identifier.
func (s *Store) NewEntity() Entity {
	ent := s.next
	s.next++

	return ent
}

// Reserve :
// Makes sure that the next allocated entity is strictly
// greater than the input identifier. Used when restoring
// entities from the database so that new allocations do
// not collide with persisted ones.
func (s *Store) Reserve(ent Entity) {
	if ent >= s.next {
		s.next = ent + 1
	}
}

// DestroyEntity :
// Removes all the components attached to the input entity.
func (s *Store) DestroyEntity(ent Entity) {
	s.Players.Remove(ent)
	s.Positions.Remove(ent)
	s.Resources.Remove(ent)
	s.Production.Remove(ent)
	s.Buildings.Remove(ent)
	s.BuildQueues.Remove(ent)
	s.ShipQueues.Remove(ent)
	s.Fleets.Remove(ent)
	s.Movements.Remove(ent)
	s.Research.Remove(ent)
	s.ResearchQs.Remove(ent)
	s.Planets.Remove(ent)
	s.Battles.Remove(ent)
}

// FindByUser :
// Returns the entities owned by the input user, sorted by
// identifier. The first element corresponds to the home
// planet as it is always created first.
func (s *Store) FindByUser(userID int) []Entity {
	out := make([]Entity, 0)

	for _, ent := range s.Players.Entities() {
		player := s.Players.Get(ent)
		if player != nil && player.UserID == userID {
			out = append(out, ent)
		}
	}

	return out
}

// FindAt :
// Returns the first entity located at the input position
// which carries an owner, or `0` when the slot is empty.
func (s *Store) FindAt(pos Position) Entity {
	for _, ent := range s.Positions.Entities() {
		cur := s.Positions.Get(ent)
		if cur != nil && cur.SameAs(pos) && s.Players.Has(ent) {
			return ent
		}
	}

	return 0
}
