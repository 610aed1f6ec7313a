/*
Package strata provides a data-oriented Entity-Component-System (ECS) runtime
for games and simulations, built around archetype storage with fixed-size
columnar chunks.

Strata keeps entities with the same component composition together in 16 KiB
chunks laid out column-wise (Struct-of-Arrays), so systems iterate dense,
cache-friendly memory. On top of the storage core it provides a conflict-aware
parallel system scheduler, spatial partitioning with one entity manager per
partition cell, and deferred cross-cell entity migration.

Core Concepts:

  - EntityID: a (index, generation) pair identifying an entity; generations
    make stale identifiers detectable.
  - Component: a plain value type registered with the runtime. Dense
    components live in chunk columns; sparse components live in keyed maps.
  - Archetype: the set of entities sharing an identical dense component
    composition, owning an ordered list of chunks.
  - EntityManager: the transactional façade for creating, destroying and
    mutating entities.
  - Query: finds chunks holding specific component combinations.
  - System: a unit of per-frame work declaring Read/Write component access;
    the Scheduler runs non-conflicting systems in parallel.
  - Level: a scene owning a spatial partition, a scheduler and a mover.

Basic Usage:

	// Create a runtime and register components
	rt := strata.NewRuntime(strata.RuntimeOptions{})
	posID := strata.RegisterComponent[Position](rt)
	velID := strata.RegisterComponent[Velocity](rt)

	// Create entities
	em := strata.NewEntityManager(rt)
	id := em.AddEntity(Position{X: 1}, Velocity{X: 2})

	// Query entities and process them
	query := strata.NewQuery(rt).With(posID, velID)
	cursor := strata.NewCursor(query, em)
	for cursor.Next() {
		pos := strata.GetFromCursor[Position](cursor)
		vel := strata.GetFromCursor[Velocity](cursor)
		pos.X += vel.X
	}

Strata works as a standalone library; the cmd/stratasim binary exercises the
full runtime over a grid-partitioned level.
*/
package strata
