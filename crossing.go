package strata

import "github.com/go-gl/mathgl/mgl32"

// ChunkHandle tracks which cell an entity belongs to: the key is the source
// of truth, the cached pointer is an optional fast path that may go stale.
type ChunkHandle struct {
	Key    SpatialChunkKey
	Cached *SpatialChunk
}

// Valid reports whether the handle refers to anything.
func (h ChunkHandle) Valid() bool {
	return h.Key.Valid() || h.Cached != nil
}

// Resolve refreshes the cached pointer from the registry.
func (h *ChunkHandle) Resolve(reg *ChunkRegistry) *SpatialChunk {
	if !h.Key.Valid() {
		h.Cached = nil
		return nil
	}
	h.Cached = reg.ResolveChunk(h.Key)
	return h.Cached
}

// RelocateEntity moves one entity between managers immediately: the dense
// row is re-inserted with its ID preserved, then the entity's sparse entries
// follow. Returns false when the managers are the same or the dense insert
// failed.
func RelocateEntity(id EntityID, src, dst *EntityManager) bool {
	if src == dst {
		return false
	}
	if !InsertWithIDForManagerMove(id, src, dst) {
		return false
	}
	src.MoveSparseIDsTo(dst, []EntityID{id})
	return true
}

// MoveIfCrossed checks whether newPos lands the entity in a different cell
// and, if so, relocates it immediately and updates the handle. Partitions
// with stable pointers short-circuit on pointer equality; others compare
// keys. Returns whether the handle changed cells.
func MoveIfCrossed(id EntityID, newPos mgl32.Vec3, p Partition, reg *ChunkRegistry, level LevelID, h *ChunkHandle, policy OutOfBoundsPolicy) bool {
	dst := p.GetChunk(newPos, reg, level, policy)
	if dst == nil {
		return false
	}

	if p.StablePointers() {
		if dst == h.Cached {
			return false
		}
		if h.Cached != nil {
			srcEM := h.Cached.EntityManager()
			dstEM := dst.EntityManager()
			if srcEM != dstEM {
				RelocateEntity(id, srcEM, dstEM)
			}
		}
		h.Cached = dst
		h.Key = dst.Key()
		return true
	}

	dstKey := dst.Key()
	if dstKey.Code == h.Key.Code && dstKey.TreeLevel == h.Key.TreeLevel {
		h.Cached = dst
		return false
	}
	srcEM := reg.ResolveOwnerEM(h.Key)
	dstEM := reg.ResolveOwnerEM(dstKey)
	if srcEM != nil && dstEM != nil && srcEM != dstEM {
		RelocateEntity(id, srcEM, dstEM)
	}
	h.Key = dstKey
	h.Cached = dst
	return true
}

// MoveIfCrossedDeferred is MoveIfCrossed without the immediate relocation:
// the (src, dst) key pair is buffered into the batch and the actual move
// happens when the level flushes its mover.
func MoveIfCrossedDeferred(id EntityID, newPos mgl32.Vec3, p Partition, reg *ChunkRegistry, level LevelID, h *ChunkHandle, batch *LocalBatch, policy OutOfBoundsPolicy) bool {
	dst := p.GetChunk(newPos, reg, level, policy)
	if dst == nil {
		return false
	}

	if p.StablePointers() {
		if dst == h.Cached {
			return false
		}
		if h.Cached != nil {
			batch.Add(id, h.Key, dst.Key())
		}
		h.Cached = dst
		h.Key = dst.Key()
		return true
	}

	dstKey := dst.Key()
	if dstKey.Code == h.Key.Code && dstKey.TreeLevel == h.Key.TreeLevel {
		h.Cached = dst
		return false
	}
	if h.Key.Valid() {
		batch.Add(id, h.Key, dstKey)
	}
	h.Key = dstKey
	h.Cached = dst
	return true
}

// SpatialState tracks whether a moving entity is bound to a cell or parked
// in the float manager.
type SpatialState uint8

const (
	Attached SpatialState = iota
	Detached
)

// SpatialMotionTag is the per-entity state for cell-crossing detection with
// a settle rule.
type SpatialMotionTag struct {
	Handle       ChunkHandle
	PendingKey   SpatialChunkKey
	StableFrames uint16
	State        SpatialState
}

// SettleRule controls when a detached entity re-attaches: its speed must
// stay below VThreshold for Frames consecutive frames.
type SettleRule struct {
	VThreshold float32
	Frames     uint16
}

// UpdateSpatialAttachment advances the attach/detach state machine for one
// entity. Fast entities are parked in floatEM so they do not churn cell
// managers every frame; once they settle, they re-attach to the cell under
// their position.
func UpdateSpatialAttachment(id EntityID, pos, vel mgl32.Vec3, p Partition, reg *ChunkRegistry, level LevelID, tag *SpatialMotionTag, floatEM *EntityManager, rule SettleRule) {
	dst := p.GetChunk(pos, reg, level, ClampToEdge)
	var dstKey SpatialChunkKey
	if dst != nil {
		dstKey = dst.Key()
	}
	moving := vel.Len() > rule.VThreshold

	if tag.State == Attached {
		if moving {
			if srcEM := reg.ResolveOwnerEM(tag.Handle.Key); srcEM != nil && srcEM != floatEM {
				RelocateEntity(id, srcEM, floatEM)
			}
			tag.State = Detached
			tag.PendingKey = dstKey
			tag.StableFrames = 0
			return
		}
		MoveIfCrossed(id, pos, p, reg, level, &tag.Handle, ClampToEdge)
		return
	}

	tag.PendingKey = dstKey
	if moving {
		tag.StableFrames = 0
		return
	}
	tag.StableFrames++
	if tag.StableFrames < rule.Frames || !dstKey.Valid() {
		return
	}
	if dstEM := reg.ResolveOwnerEM(dstKey); dstEM != nil && dstEM != floatEM {
		RelocateEntity(id, floatEM, dstEM)
		tag.Handle.Key = dstKey
		tag.Handle.Cached = dst
		tag.State = Attached
	}
}
