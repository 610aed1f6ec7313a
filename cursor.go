package strata

import "iter"

// Cursor provides row-by-row iteration over the entities matching a query
// within one entity manager. The matched chunk set is captured on first
// advance and released on reset.
type Cursor struct {
	query        *Query
	em           *EntityManager
	currentChunk *Chunk
	chunkIndex   int
	entityIndex  int
	remaining    int

	initialized bool
	matched     []*Chunk
}

// NewCursor creates a cursor for the given query and manager.
func NewCursor(query *Query, em *EntityManager) *Cursor {
	return &Cursor{
		query: query,
		em:    em,
	}
}

// Next advances to the next entity and reports whether one exists. When the
// matched set is exhausted the cursor resets itself for reuse.
func (c *Cursor) Next() bool {
	if c.entityIndex < c.remaining {
		c.entityIndex++
		return true
	}
	return c.advance()
}

// advance moves to the next chunk with rows left.
func (c *Cursor) advance() bool {
	if !c.initialized {
		c.initialize()
	}

	for c.chunkIndex < len(c.matched) {
		c.currentChunk = c.matched[c.chunkIndex]
		c.remaining = c.currentChunk.Count()
		if c.entityIndex < c.remaining {
			c.entityIndex++
			return true
		}
		c.chunkIndex++
		c.entityIndex = 0
	}

	c.Reset()
	return false
}

// Entities returns an iterator over (row, chunk) pairs for every matching
// entity.
func (c *Cursor) Entities() iter.Seq2[int, *Chunk] {
	return func(yield func(int, *Chunk) bool) {
		c.initialize()

		for c.chunkIndex < len(c.matched) {
			c.currentChunk = c.matched[c.chunkIndex]
			c.remaining = c.currentChunk.Count()

			for c.entityIndex < c.remaining {
				if !yield(c.entityIndex, c.currentChunk) {
					c.Reset()
					return
				}
				c.entityIndex++
			}

			c.entityIndex = 0
			c.chunkIndex++
		}

		c.Reset()
	}
}

// initialize captures the matching chunk set.
func (c *Cursor) initialize() {
	if c.initialized {
		return
	}
	c.matched = c.query.MatchingChunks(c.em)
	if len(c.matched) > 0 {
		c.chunkIndex = 0
		c.currentChunk = c.matched[0]
		c.remaining = c.currentChunk.Count()
	}
	c.initialized = true
}

// Reset clears iteration state so the cursor can run again.
func (c *Cursor) Reset() {
	c.chunkIndex = 0
	c.entityIndex = 0
	c.remaining = 0
	c.matched = nil
	c.currentChunk = nil
	c.initialized = false
}

// CurrentEntity returns the ID at the current cursor position.
func (c *Cursor) CurrentEntity() EntityID {
	return c.currentChunk.entities[c.entityIndex-1]
}

// EntityIndex returns the 1-based index within the current chunk.
func (c *Cursor) EntityIndex() int {
	return c.entityIndex
}

// Chunk returns the chunk at the current cursor position.
func (c *Cursor) Chunk() *Chunk {
	return c.currentChunk
}

// RemainingInChunk returns the rows left in the current chunk.
func (c *Cursor) RemainingInChunk() int {
	return c.remaining - c.entityIndex
}

// TotalMatched returns the number of entities matching the query right now.
func (c *Cursor) TotalMatched() int {
	if !c.initialized {
		c.initialize()
	}
	total := 0
	for _, chunk := range c.matched {
		total += chunk.Count()
	}
	c.Reset()
	return total
}
