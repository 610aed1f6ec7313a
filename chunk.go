package strata

import (
	"unsafe"

	"github.com/TheBitDrifter/bark"
	"github.com/TheBitDrifter/mask"
)

// Chunk is a fixed-size columnar buffer holding up to Capacity rows of entity
// data for one archetype. Row i of every column belongs to the entity at
// Entities()[i]. Rows are kept dense; removal swaps the last row into the
// vacated slot.
type Chunk struct {
	rt            *Runtime
	buffer        []byte
	entityCount   int
	entities      []EntityID
	componentMask mask.Mask
	layout        *ChunkLayout
}

func newChunk(rt *Runtime, m mask.Mask) *Chunk {
	layout := rt.layouts.get(m)
	if layout.Capacity == 0 {
		panic(bark.AddTrace(LayoutOversubscribedError{}))
	}
	return &Chunk{
		rt:            rt,
		buffer:        make([]byte, ChunkSizeBytes),
		entities:      make([]EntityID, layout.Capacity),
		componentMask: m,
		layout:        layout,
	}
}

// AddEntity appends id at the next free row and returns that row. The caller
// must not call AddEntity on a full chunk.
func (c *Chunk) AddEntity(id EntityID) int {
	if c.entityCount >= c.layout.Capacity {
		panic(bark.AddTrace(ChunkFullError{Capacity: c.layout.Capacity}))
	}
	row := c.entityCount
	c.entities[row] = id
	c.entityCount++
	return row
}

// RemoveEntitySwapPop removes the row by copying the last row's column bytes
// and entity ID into its place, then decrementing the count. Removing the
// last row is a plain decrement. The caller must re-bind the swapped-in
// entity's location under the same critical section.
func (c *Chunk) RemoveEntitySwapPop(row int) {
	last := c.entityCount - 1
	if row < 0 || last < 0 || row > last {
		return
	}
	if row < last {
		for _, id := range c.layout.order {
			for _, p := range c.layout.columns[id] {
				dst := c.buffer[p.Offset+uintptr(row)*p.Stride:]
				src := c.buffer[p.Offset+uintptr(last)*p.Stride:]
				copy(dst[:p.Stride], src[:p.Stride])
			}
		}
		c.entities[row] = c.entities[last]
	}
	c.entityCount--
}

// Count returns the number of live rows.
func (c *Chunk) Count() int {
	return c.entityCount
}

// Capacity returns the maximum rows this chunk can hold.
func (c *Chunk) Capacity() int {
	return c.layout.Capacity
}

// Mask returns the chunk's component mask, fixed at creation.
func (c *Chunk) Mask() mask.Mask {
	return c.componentMask
}

// Layout returns the chunk's layout, shared with every chunk of the same
// mask.
func (c *Chunk) Layout() *ChunkLayout {
	return c.layout
}

// Entities returns the IDs of the live rows, index-aligned with the columns.
func (c *Chunk) Entities() []EntityID {
	return c.entities[:c.entityCount]
}

// Column returns component T's column as a slice of length Capacity. Rows
// beyond Count are uninitialised. Returns nil when T is not part of the
// chunk's mask, or when T is a SoA component (use SubColumn per field).
func Column[T any](c *Chunk) []T {
	id := TypeIDOf[T](c.rt)
	meta, ok := c.rt.types.meta(id)
	if !ok || meta.SoA {
		if meta.SoA {
			logger.Debug("Column on SoA component, use SubColumn", "type", id)
		}
		return nil
	}
	parts := c.layout.Parts(id)
	if parts == nil {
		logger.Debug("component not in chunk layout", "type", id)
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&c.buffer[parts[0].Offset])), c.layout.Capacity)
}

// SubColumn returns sub-field `field` of SoA component id as a slice of F,
// length Capacity. F must match the registered sub-field type.
func SubColumn[F any](c *Chunk, id TypeID, field int) []F {
	parts := c.layout.Parts(id)
	if field < 0 || field >= len(parts) {
		logger.Debug("sub-column out of range", "type", id, "field", field)
		return nil
	}
	return unsafe.Slice((*F)(unsafe.Pointer(&c.buffer[parts[field].Offset])), c.layout.Capacity)
}

// rowBytes returns the raw bytes of one sub-column element.
func (c *Chunk) rowBytes(p ColumnPart, row int) []byte {
	off := p.Offset + uintptr(row)*p.Stride
	return c.buffer[off : off+p.Stride]
}

// copyCommonColumns copies every sub-column of the components present in both
// chunks from srcRow to dstRow, skipping the component named by skip (pass
// invalidTypeID to copy everything). Copies are byte-wise; components must be
// plain values.
func copyCommonColumns(src *Chunk, srcRow int, dst *Chunk, dstRow int, skip TypeID) {
	for _, id := range src.layout.order {
		if id == skip {
			continue
		}
		dstParts := dst.layout.Parts(id)
		if dstParts == nil {
			continue
		}
		srcParts := src.layout.Parts(id)
		for i := range srcParts {
			copy(dst.rowBytes(dstParts[i], dstRow), src.rowBytes(srcParts[i], srcRow))
		}
	}
}

// invalidTypeID is a sentinel that matches no registered component.
const invalidTypeID = TypeID(^uint32(0))

// storeValue writes a component value into its column(s) at row. SoA values
// are scattered per sub-field. value must point at a T matching meta.Type.
func (c *Chunk) storeValue(meta ComponentMeta, row int, value unsafe.Pointer) {
	parts := c.layout.Parts(meta.ID)
	if parts == nil {
		logger.Debug("component not in chunk layout", "type", meta.ID)
		return
	}
	src := unsafe.Slice((*byte)(value), meta.Type.Size())
	for i, f := range meta.Structure {
		copy(c.rowBytes(parts[i], row), src[f.srcOffset:f.srcOffset+f.Size])
	}
}
