package strata

import (
	"reflect"
	"sync"

	"github.com/TheBitDrifter/mask"
)

// EntityManager is the transactional façade over archetype storage: it
// creates, destroys and mutates entities, routes sparse components to keyed
// stores, performs archetype transitions and moves entities between
// managers.
//
// The EntityID → EntityLocation map is guarded by a reader-writer lock.
// Readers take the shared lock; structural mutations take the exclusive lock
// only around row reservation and the final swap-pop re-binding, keeping the
// heavy column copies outside the exclusive section.
type EntityManager struct {
	rt         *Runtime
	archetypes archetypeManager

	locMu     sync.RWMutex
	locations map[EntityID]EntityLocation

	sparseMu     sync.Mutex
	sparseStores map[TypeID]*sparseStore
}

// NewEntityManager creates an empty manager drawing IDs from the runtime's
// shared allocator.
func NewEntityManager(rt *Runtime) *EntityManager {
	return &EntityManager{
		rt:           rt,
		archetypes:   newArchetypeManager(rt),
		locations:    make(map[EntityID]EntityLocation),
		sparseStores: make(map[TypeID]*sparseStore),
	}
}

// Runtime returns the runtime this manager was created from.
func (em *EntityManager) Runtime() *Runtime {
	return em.rt
}

// Archetypes returns the manager's archetypes in creation order.
func (em *EntityManager) Archetypes() []*Archetype {
	return em.archetypes.All()
}

// AddEntity creates an entity holding the given component values. The dense
// mask is derived from the values' types; sparse values go to their keyed
// stores and do not influence the mask. Returns InvalidEntity when the ID
// space is exhausted; the caller must check.
func (em *EntityManager) AddEntity(values ...any) EntityID {
	var m mask.Mask
	for _, v := range values {
		setMask(em.rt, &m, em.rt.types.idFor(reflect.TypeOf(v)))
	}
	return em.AddEntityWithMask(m, values...)
}

// AddEntityWithMask creates an entity in the archetype named by mask, which
// must be a superset of the values' dense component bits. Extra columns stay
// zeroed.
func (em *EntityManager) AddEntityWithMask(m mask.Mask, values ...any) EntityID {
	id := em.rt.alloc.Create()
	if !id.Valid() {
		logger.Debug("entity ID space exhausted")
		return id
	}

	if len(em.rt.denseIDs(m)) > 0 {
		arch := em.archetypes.GetOrCreate(m)

		em.locMu.Lock()
		chunk := arch.GetOrCreateChunk()
		row := chunk.AddEntity(id)
		em.locations[id] = EntityLocation{Chunk: chunk, Row: row}
		em.locMu.Unlock()

		// A reused row still holds the bytes of the row swap-popped out of it.
		for _, cid := range chunk.layout.order {
			for _, p := range chunk.layout.columns[cid] {
				clear(chunk.rowBytes(p, row))
			}
		}

		for _, v := range values {
			tid := em.rt.types.idFor(reflect.TypeOf(v))
			meta, ok := em.rt.types.meta(tid)
			if !ok {
				logger.Debug("unregistered component in AddEntity", "type", tid)
				continue
			}
			if meta.Sparse {
				em.sparseForID(tid, meta.Type).insert(id, v)
			} else {
				storeReflected(chunk, meta, row, v)
			}
		}
		return id
	}

	// Sparse-only entity: no dense row, no location entry.
	for _, v := range values {
		tid := em.rt.types.idFor(reflect.TypeOf(v))
		meta, ok := em.rt.types.meta(tid)
		if ok && meta.Sparse {
			em.sparseForID(tid, meta.Type).insert(id, v)
		}
	}
	return id
}

// storeReflected writes an any-typed dense value into the chunk.
func storeReflected(chunk *Chunk, meta ComponentMeta, row int, value any) {
	rv := reflect.ValueOf(value)
	if rv.Type() != meta.Type {
		logger.Debug("dense value type mismatch", "want", meta.Type.String())
		return
	}
	boxed := reflect.New(meta.Type)
	boxed.Elem().Set(rv)
	chunk.storeValue(meta, row, boxed.UnsafePointer())
}

// Destroy removes the entity from its chunk with swap-pop, purges its sparse
// entries and returns the ID to the allocator. Destroying a dead ID is a
// no-op.
func (em *EntityManager) Destroy(id EntityID) {
	if !em.rt.alloc.IsAlive(id) {
		return
	}

	for _, s := range em.sparseSnapshot() {
		s.remove(id)
	}

	em.locMu.Lock()
	if loc, ok := em.locations[id]; ok {
		em.popRowLocked(loc)
		delete(em.locations, id)
	}
	em.locMu.Unlock()

	em.rt.alloc.Destroy(id)
}

// popRowLocked swap-pops a row and re-binds the swapped-in neighbour's
// location. Caller holds the exclusive lock.
func (em *EntityManager) popRowLocked(loc EntityLocation) {
	chunk := loc.Chunk
	last := chunk.entityCount - 1
	if loc.Row < last {
		swapped := chunk.entities[last]
		if _, ok := em.locations[swapped]; ok {
			em.locations[swapped] = EntityLocation{Chunk: chunk, Row: loc.Row}
		}
	}
	chunk.RemoveEntitySwapPop(loc.Row)
}

// TryGetLocation returns the entity's dense location under the shared lock.
func (em *EntityManager) TryGetLocation(id EntityID) (EntityLocation, bool) {
	em.locMu.RLock()
	defer em.locMu.RUnlock()
	loc, ok := em.locations[id]
	return loc, ok
}

// MaskOf returns the entity's dense component mask. Sparse-only and unknown
// entities report an empty mask and ok=false.
func (em *EntityManager) MaskOf(id EntityID) (mask.Mask, bool) {
	loc, ok := em.TryGetLocation(id)
	if !ok {
		return mask.Mask{}, false
	}
	return loc.Chunk.componentMask, true
}

// EntityCount returns the number of entities with dense rows.
func (em *EntityManager) EntityCount() int {
	em.locMu.RLock()
	defer em.locMu.RUnlock()
	return len(em.locations)
}

// AllIDs returns a snapshot of every entity known to the manager: the union
// of the location table and the chunk entity arrays.
func (em *EntityManager) AllIDs() []EntityID {
	seen := make(map[EntityID]struct{})
	em.locMu.RLock()
	for id := range em.locations {
		seen[id] = struct{}{}
	}
	em.locMu.RUnlock()

	for _, arch := range em.archetypes.All() {
		for _, chunk := range arch.Chunks() {
			for _, id := range chunk.Entities() {
				seen[id] = struct{}{}
			}
		}
	}

	out := make([]EntityID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	return out
}

// Has reports whether the entity currently holds component T, checking the
// dense mask for located entities and the sparse store otherwise.
func Has[T any](em *EntityManager, id EntityID) bool {
	tid := TypeIDOf[T](em.rt)
	if loc, ok := em.TryGetLocation(id); ok {
		if maskHas(loc.Chunk.componentMask, tid) {
			return true
		}
	}
	meta, ok := em.rt.types.meta(tid)
	if ok && meta.Sparse {
		return em.sparseForID(tid, meta.Type).has(id)
	}
	return false
}

// Get returns a pointer to the entity's component T, or nil when the entity
// is unknown or lacks the component. Dense reads take the shared lock for the
// location snapshot only; the returned pointer stays valid until the next
// structural mutation touching the row. SoA components cannot be read
// through Get; use SubColumn over the entity's chunk.
func Get[T any](em *EntityManager, id EntityID) *T {
	tid := TypeIDOf[T](em.rt)
	meta, ok := em.rt.types.meta(tid)
	if ok && meta.Sparse {
		v := em.sparseForID(tid, meta.Type).get(id)
		if v == nil {
			return nil
		}
		return v.(*T)
	}

	em.locMu.RLock()
	loc, ok := em.locations[id]
	em.locMu.RUnlock()
	if !ok {
		return nil
	}
	col := Column[T](loc.Chunk)
	if col == nil {
		return nil
	}
	return &col[loc.Row]
}

// SetComponent attaches component T with the given value, performing an
// archetype transition when the entity does not already hold it. Setting a
// component the entity already has overwrites the value in place. Unknown
// entities are a no-op.
func SetComponent[T any](em *EntityManager, id EntityID, value T) {
	tid := TypeIDOf[T](em.rt)
	meta, ok := em.rt.types.meta(tid)
	if !ok {
		logger.Debug("SetComponent on unregistered type", "type", tid)
		return
	}
	if meta.Sparse {
		if !em.rt.alloc.IsAlive(id) {
			return
		}
		em.sparseForID(tid, meta.Type).insert(id, value)
		return
	}

	em.locMu.RLock()
	oldLoc, ok := em.locations[id]
	em.locMu.RUnlock()
	if !ok {
		return
	}

	oldMask := oldLoc.Chunk.componentMask
	if maskHas(oldMask, tid) {
		em.locMu.RLock()
		loc := em.locations[id]
		em.locMu.RUnlock()
		storePtr(loc.Chunk, meta, loc.Row, &value)
		return
	}

	newMask := maskWith(oldMask, tid)
	newChunk, newRow := em.transition(id, oldLoc, newMask, invalidTypeID)
	storePtr(newChunk, meta, newRow, &value)
}

// RemoveComponent detaches component T, transitioning the entity to the
// archetype without it. Sparse components are erased from their store; the
// sparse/dense split follows the type's registered flag. Unknown entities
// and absent components are no-ops.
func RemoveComponent[T any](em *EntityManager, id EntityID) {
	tid := TypeIDOf[T](em.rt)
	meta, ok := em.rt.types.meta(tid)
	if !ok {
		return
	}
	if meta.Sparse {
		em.sparseForID(tid, meta.Type).remove(id)
		return
	}

	em.locMu.RLock()
	oldLoc, ok := em.locations[id]
	em.locMu.RUnlock()
	if !ok {
		return
	}
	oldMask := oldLoc.Chunk.componentMask
	if !maskHas(oldMask, tid) {
		return
	}

	newMask := em.rt.maskWithout(oldMask, tid)
	em.transition(id, oldLoc, newMask, tid)
}

// transition moves the entity's row into the archetype named by newMask,
// copying every surviving column. The destination row is reserved under a
// brief exclusive section, the column copy runs outside any lock, and the
// source swap-pop plus both location re-bindings happen under one exclusive
// section.
func (em *EntityManager) transition(id EntityID, oldLoc EntityLocation, newMask mask.Mask, skip TypeID) (*Chunk, int) {
	arch := em.archetypes.GetOrCreate(newMask)

	em.locMu.Lock()
	newChunk := arch.GetOrCreateChunk()
	newRow := newChunk.AddEntity(id)
	em.locMu.Unlock()

	copyCommonColumns(oldLoc.Chunk, oldLoc.Row, newChunk, newRow, skip)

	em.locMu.Lock()
	em.popRowLocked(oldLoc)
	em.locations[id] = EntityLocation{Chunk: newChunk, Row: newRow}
	em.locMu.Unlock()

	return newChunk, newRow
}

// storePtr writes *value into the chunk's column(s) for meta at row.
func storePtr[T any](chunk *Chunk, meta ComponentMeta, row int, value *T) {
	chunk.storeValue(meta, row, reflect.ValueOf(value).UnsafePointer())
}

// InsertWithIDForManagerMove reserves a row in dst for an entity living in
// src and copies all dense columns, preserving the ID. The source row is
// removed; sparse entries are not touched (see MoveSparseIDsTo). Returns
// false when the ID is dead, has no dense row in src, or already exists in
// dst.
func InsertWithIDForManagerMove(id EntityID, src, dst *EntityManager) bool {
	if src == dst || !src.rt.alloc.IsAlive(id) {
		return false
	}
	if _, exists := dst.TryGetLocation(id); exists {
		return false
	}
	srcLoc, ok := src.TryGetLocation(id)
	if !ok {
		return false
	}

	arch := dst.archetypes.GetOrCreate(srcLoc.Chunk.componentMask)

	dst.locMu.Lock()
	newChunk := arch.GetOrCreateChunk()
	newRow := newChunk.AddEntity(id)
	dst.locations[id] = EntityLocation{Chunk: newChunk, Row: newRow}
	dst.locMu.Unlock()

	copyCommonColumns(srcLoc.Chunk, srcLoc.Row, newChunk, newRow, invalidTypeID)

	src.locMu.Lock()
	if cur, ok := src.locations[id]; ok {
		src.popRowLocked(cur)
		delete(src.locations, id)
	}
	src.locMu.Unlock()
	return true
}

// MoveSparseIDsTo migrates the listed entities' entries for every sparse
// type from this manager to dst.
func (em *EntityManager) MoveSparseIDsTo(dst *EntityManager, ids []EntityID) {
	if em == dst || len(ids) == 0 {
		return
	}
	for tid, s := range em.sparseSnapshot() {
		s.moveManyTo(tid, dst, ids)
	}
}

// MoveAllSparseTo merges every sparse store into dst.
func (em *EntityManager) MoveAllSparseTo(dst *EntityManager) {
	if em == dst {
		return
	}
	for tid, s := range em.sparseSnapshot() {
		s.moveAllTo(tid, dst)
	}
}

// MergeFromAll pulls every entity of src into this manager: sparse stores
// first, then each dense row is reserved here, column-copied and removed
// from src. Returns the number of dense rows moved.
func (em *EntityManager) MergeFromAll(src *EntityManager) int {
	if em == src {
		return 0
	}
	src.MoveAllSparseTo(em)
	moved := 0
	for _, id := range src.AllIDs() {
		if InsertWithIDForManagerMove(id, src, em) {
			moved++
		}
	}
	return moved
}

// SplitByAll routes every entity that has a dense row through router and
// batch-moves them to the returned managers. Sparse-only entities are not
// routed and stay in this manager. Entities routed back to this manager stay put. Returns
// the number of dense rows moved.
func (em *EntityManager) SplitByAll(router func(EntityID, mask.Mask) *EntityManager) int {
	buckets := make(map[*EntityManager][]EntityID)
	moved := 0
	for _, id := range em.AllIDs() {
		loc, ok := em.TryGetLocation(id)
		if !ok {
			continue
		}
		dst := router(id, loc.Chunk.componentMask)
		if dst == nil || dst == em {
			continue
		}
		if InsertWithIDForManagerMove(id, em, dst) {
			buckets[dst] = append(buckets[dst], id)
			moved++
		}
	}
	for dst, ids := range buckets {
		em.MoveSparseIDsTo(dst, ids)
	}
	return moved
}

// Clear destroys every entity known to the manager.
func (em *EntityManager) Clear() {
	for _, id := range em.AllIDs() {
		em.Destroy(id)
	}
}
