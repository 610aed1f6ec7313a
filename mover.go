package strata

import "sync"

// PendingMove records one deferred cross-chunk migration: the entity and the
// keys of the cells it left and entered.
type PendingMove struct {
	ID  EntityID
	Src SpatialChunkKey
	Dst SpatialChunkKey
}

// Mover is the per-level queue of pending migrations. Systems enqueue moves
// while they run; the level flushes the queue under a frame budget after the
// scheduler finishes. The mover never destroys IDs; it only rebinds
// ownership between entity managers.
type Mover struct {
	mu    sync.Mutex
	queue []PendingMove
}

// Enqueue adds one pending move. Moves within the same cell are dropped.
func (m *Mover) Enqueue(id EntityID, src, dst SpatialChunkKey) {
	if src == dst {
		return
	}
	m.mu.Lock()
	m.queue = append(m.queue, PendingMove{ID: id, Src: src, Dst: dst})
	m.mu.Unlock()
}

// EnqueueBulk adds many moves under one lock acquisition.
func (m *Mover) EnqueueBulk(moves []PendingMove) {
	if len(moves) == 0 {
		return
	}
	m.mu.Lock()
	m.queue = append(m.queue, moves...)
	m.mu.Unlock()
}

// Len returns the number of queued moves.
func (m *Mover) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Clear drops every queued move.
func (m *Mover) Clear() {
	m.mu.Lock()
	m.queue = nil
	m.mu.Unlock()
}

// Flush processes up to budget queued moves and returns how many entities
// actually moved. Moves are bucketed by (source manager, destination
// manager) so each bucket's sparse migration happens in one call. Entries
// whose keys no longer resolve, or that resolve to the same manager, are
// dropped. Remaining entries stay queued for the next frame.
func (m *Mover) Flush(reg *ChunkRegistry, budget int) int {
	if budget <= 0 {
		return 0
	}

	m.mu.Lock()
	n := min(len(m.queue), budget)
	if n == 0 {
		m.mu.Unlock()
		return 0
	}
	taken := make([]PendingMove, n)
	copy(taken, m.queue[:n])
	m.queue = append(m.queue[:0], m.queue[n:]...)
	m.mu.Unlock()

	type emPair struct {
		src *EntityManager
		dst *EntityManager
	}
	buckets := make(map[emPair][]EntityID, len(taken))
	for _, pm := range taken {
		src := reg.ResolveOwnerEM(pm.Src)
		dst := reg.ResolveOwnerEM(pm.Dst)
		if src == nil || dst == nil {
			logger.Debug("dropping move with unresolved key",
				"entity", pm.ID.Index, "src", pm.Src.Code, "dst", pm.Dst.Code)
			continue
		}
		if src == dst {
			continue
		}
		buckets[emPair{src, dst}] = append(buckets[emPair{src, dst}], pm.ID)
	}

	moved := 0
	for pair, ids := range buckets {
		for _, id := range ids {
			if InsertWithIDForManagerMove(id, pair.src, pair.dst) {
				moved++
			}
		}
		pair.src.MoveSparseIDsTo(pair.dst, ids)
	}
	return moved
}

// LocalBatch collects moves on one goroutine and publishes them in bulk,
// amortising the queue lock. Close (or Flush) publishes the buffer; use
// defer batch.Close() for scope-bound publication.
type LocalBatch struct {
	owner *Mover
	buf   []PendingMove
}

// NewLocalBatch creates a batch bound to the mover, optionally reserving
// buffer space.
func NewLocalBatch(owner *Mover, reserve int) *LocalBatch {
	b := &LocalBatch{owner: owner}
	if reserve > 0 {
		b.buf = make([]PendingMove, 0, reserve)
	}
	return b
}

// Add buffers one move, dropping same-cell moves.
func (b *LocalBatch) Add(id EntityID, src, dst SpatialChunkKey) {
	if src == dst {
		return
	}
	b.buf = append(b.buf, PendingMove{ID: id, Src: src, Dst: dst})
}

// AddRange buffers many moves.
func (b *LocalBatch) AddRange(moves []PendingMove) {
	b.buf = append(b.buf, moves...)
}

// Flush publishes the buffer to the owning mover and clears it, keeping
// capacity.
func (b *LocalBatch) Flush() {
	if b.owner == nil || len(b.buf) == 0 {
		return
	}
	b.owner.EnqueueBulk(b.buf)
	b.buf = b.buf[:0]
}

// Close publishes any buffered moves.
func (b *LocalBatch) Close() {
	b.Flush()
}

// Cancel detaches the batch from its mover and drops the buffer.
func (b *LocalBatch) Cancel() {
	b.owner = nil
	b.buf = nil
}

// Size returns the number of buffered moves.
func (b *LocalBatch) Size() int {
	return len(b.buf)
}
