package strata

import "sync"

// LevelID identifies one level within a runtime. IDs start at 1; zero means
// unassigned.
type LevelID uint32

// SpatialChunkKey is the stable identity of a partition cell, independent of
// pointer stability across partition reorganisations. Code zero marks an
// invalid key.
type SpatialChunkKey struct {
	Level     LevelID
	Code      uint64
	TreeLevel uint8
}

// Valid reports whether the key names a cell at all.
func (k SpatialChunkKey) Valid() bool {
	return k.Code != 0
}

// SpatialChunk is one cell of a spatial partition, owning its own entity
// manager and carrying the key assigned when the partition registered with
// the chunk registry.
type SpatialChunk struct {
	key    SpatialChunkKey
	bounds AABB
	em     *EntityManager
}

// NewSpatialChunk creates a cell with a fresh entity manager.
func NewSpatialChunk(rt *Runtime) *SpatialChunk {
	return &SpatialChunk{em: NewEntityManager(rt)}
}

// EntityManager returns the cell's entity manager.
func (c *SpatialChunk) EntityManager() *EntityManager {
	return c.em
}

// Key returns the cell's registered key; invalid until registration.
func (c *SpatialChunk) Key() SpatialChunkKey {
	return c.key
}

// Bounds returns the cell's world-space box.
func (c *SpatialChunk) Bounds() AABB {
	return c.bounds
}

// SetBounds assigns the cell's world-space box.
func (c *SpatialChunk) SetBounds(b AABB) {
	c.bounds = b
}

// ChunkRegistry resolves spatial chunk keys to their owners. Pointers
// resolved through the registry may be invalidated when a partition
// reorganises; callers should re-resolve each frame. The owning entity
// manager is the source of truth for identity even when pointers move.
type ChunkRegistry struct {
	mu     sync.RWMutex
	chunks map[SpatialChunkKey]*SpatialChunk
}

// NewChunkRegistry creates an empty registry.
func NewChunkRegistry() *ChunkRegistry {
	return &ChunkRegistry{chunks: make(map[SpatialChunkKey]*SpatialChunk)}
}

// Register binds a key to a chunk and stamps the key onto the chunk.
func (r *ChunkRegistry) Register(key SpatialChunkKey, chunk *SpatialChunk) {
	chunk.key = key
	r.mu.Lock()
	r.chunks[key] = chunk
	r.mu.Unlock()
}

// Unregister removes a key binding.
func (r *ChunkRegistry) Unregister(key SpatialChunkKey) {
	r.mu.Lock()
	delete(r.chunks, key)
	r.mu.Unlock()
}

// ResolveChunk returns the chunk bound to key, or nil.
func (r *ChunkRegistry) ResolveChunk(key SpatialChunkKey) *SpatialChunk {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.chunks[key]
}

// ResolveOwnerEM returns the entity manager owning the cell named by key, or
// nil.
func (r *ChunkRegistry) ResolveOwnerEM(key SpatialChunkKey) *EntityManager {
	c := r.ResolveChunk(key)
	if c == nil {
		return nil
	}
	return c.em
}
