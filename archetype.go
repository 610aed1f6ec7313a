package strata

import (
	"sync"

	"github.com/TheBitDrifter/mask"
)

// Archetype owns the chunks of every entity sharing one dense component
// mask. Chunks are appended on demand and never reordered or reclaimed
// within the archetype's lifetime.
type Archetype struct {
	rt            *Runtime
	componentMask mask.Mask
	chunks        []*Chunk
}

func newArchetype(rt *Runtime, m mask.Mask) *Archetype {
	return &Archetype{rt: rt, componentMask: m}
}

// Mask returns the archetype's component mask.
func (a *Archetype) Mask() mask.Mask {
	return a.componentMask
}

// Chunks returns the archetype's chunk list in append order.
func (a *Archetype) Chunks() []*Chunk {
	return a.chunks
}

// GetOrCreateChunk returns the first chunk with a free row, allocating and
// appending a new chunk when all existing ones are full.
func (a *Archetype) GetOrCreateChunk() *Chunk {
	for _, c := range a.chunks {
		if c.entityCount < c.layout.Capacity {
			return c
		}
	}
	c := newChunk(a.rt, a.componentMask)
	a.chunks = append(a.chunks, c)
	return c
}

// archetypeManager maps masks to archetypes within one entity manager.
type archetypeManager struct {
	rt         *Runtime
	mu         sync.RWMutex
	byMask     map[mask.Mask]*Archetype
	archetypes []*Archetype
}

func newArchetypeManager(rt *Runtime) archetypeManager {
	return archetypeManager{
		rt:     rt,
		byMask: make(map[mask.Mask]*Archetype),
	}
}

// GetOrCreate returns the archetype for a mask, creating it on first use.
// The mask must not contain sparse component bits.
func (am *archetypeManager) GetOrCreate(m mask.Mask) *Archetype {
	am.mu.RLock()
	arch, ok := am.byMask[m]
	am.mu.RUnlock()
	if ok {
		return arch
	}

	am.mu.Lock()
	defer am.mu.Unlock()
	if arch, ok := am.byMask[m]; ok {
		return arch
	}
	arch = newArchetype(am.rt, m)
	am.byMask[m] = arch
	am.archetypes = append(am.archetypes, arch)
	return arch
}

// All returns every archetype in creation order.
func (am *archetypeManager) All() []*Archetype {
	am.mu.RLock()
	defer am.mu.RUnlock()
	out := make([]*Archetype, len(am.archetypes))
	copy(out, am.archetypes)
	return out
}
