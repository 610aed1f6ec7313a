package strata

import "sync/atomic"

// IDAllocator is a lock-free pool of entity IDs over a fixed index space.
// Fresh indices come from a monotonic counter; destroyed indices are recycled
// through an MPMC free queue. Each index carries an atomic generation that is
// bumped on destruction.
type IDAllocator struct {
	maxEntities uint32
	nextIndex   atomic.Uint32
	generations []atomic.Uint32
	free        chan uint32
	leaked      atomic.Uint64
}

// NewIDAllocator creates an allocator for up to maxEntities live IDs.
func NewIDAllocator(maxEntities uint32) *IDAllocator {
	return &IDAllocator{
		maxEntities: maxEntities,
		generations: make([]atomic.Uint32, maxEntities),
		free:        make(chan uint32, maxEntities),
	}
}

// Create issues an ID unique among all currently-live IDs. Recycled indices
// are preferred; otherwise the next fresh index is claimed. Returns
// InvalidEntity once the index space is exhausted.
func (a *IDAllocator) Create() EntityID {
	select {
	case index := <-a.free:
		return EntityID{Index: index, Generation: a.generations[index].Load()}
	default:
	}

	index := a.nextIndex.Add(1) - 1
	if index >= a.maxEntities {
		return InvalidEntity
	}
	return EntityID{Index: index, Generation: a.generations[index].Load()}
}

// Destroy invalidates the ID by bumping its generation and returns the index
// to the free queue. If the queue is full the index leaks silently; this is
// the documented policy, counted for observability.
func (a *IDAllocator) Destroy(id EntityID) {
	if id.Index >= a.maxEntities {
		return
	}
	a.generations[id.Index].Add(1)

	select {
	case a.free <- id.Index:
	default:
		a.leaked.Add(1)
		logger.Debug("free queue full, leaking entity index", "index", id.Index)
	}
}

// IsAlive reports whether the ID's generation matches the slot's live
// generation.
func (a *IDAllocator) IsAlive(id EntityID) bool {
	if id.Index >= a.maxEntities {
		return false
	}
	return a.generations[id.Index].Load() == id.Generation
}

// Capacity returns the fixed index space size.
func (a *IDAllocator) Capacity() uint32 {
	return a.maxEntities
}

// NextIndex returns the high-water mark of fresh index allocation.
func (a *IDAllocator) NextIndex() uint32 {
	return a.nextIndex.Load()
}

// Leaked returns how many indices were lost to a full free queue.
func (a *IDAllocator) Leaked() uint64 {
	return a.leaked.Load()
}
