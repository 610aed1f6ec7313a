package strata

import (
	"sync"

	"github.com/TheBitDrifter/bark"
	"github.com/TheBitDrifter/mask"
)

// ColumnPart locates one sub-column inside the chunk buffer. A non-SoA
// component has exactly one part; a SoA component has one part per sub-field.
// Stride is the element size, so element i of the part lives at
// Offset + i*Stride.
type ColumnPart struct {
	Offset uintptr
	Stride uintptr
}

// ChunkLayout is the derived placement of every dense component of a mask
// within the fixed chunk buffer. Layouts are computed once per mask and never
// change.
type ChunkLayout struct {
	// Capacity is the maximum number of rows that fit the chunk budget.
	Capacity int

	columns map[TypeID][]ColumnPart
	order   []TypeID
}

// Parts returns the sub-column placements for a component, or nil when the
// component is not part of the layout's mask.
func (l *ChunkLayout) Parts(id TypeID) []ColumnPart {
	return l.columns[id]
}

// ComponentIDs returns the dense component IDs of the layout in ID order.
func (l *ChunkLayout) ComponentIDs() []TypeID {
	return l.order
}

func alignTo(offset, align uintptr) uintptr {
	if align == 0 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}

// layoutRegistry derives and caches one ChunkLayout per mask. Lookup takes a
// read lock; first-time derivation takes the write lock. Returned pointers
// are stable for the registry's lifetime.
type layoutRegistry struct {
	rt      *Runtime
	mu      sync.RWMutex
	layouts map[mask.Mask]*ChunkLayout
}

func newLayoutRegistry(rt *Runtime) layoutRegistry {
	return layoutRegistry{
		rt:      rt,
		layouts: make(map[mask.Mask]*ChunkLayout),
	}
}

func (r *layoutRegistry) get(m mask.Mask) *ChunkLayout {
	r.mu.RLock()
	layout, ok := r.layouts[m]
	r.mu.RUnlock()
	if ok {
		return layout
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if layout, ok := r.layouts[m]; ok {
		return layout
	}
	layout = deriveLayout(r.rt, m)
	r.layouts[m] = layout
	return layout
}

// layoutEntry pairs a component with its metadata during derivation.
type layoutEntry struct {
	id   TypeID
	meta ComponentMeta
}

// deriveLayout computes the layout for a mask. Without SoA components the
// capacity is the chunk budget divided by the packed row size, corrected
// downwards until the aligned columns fit. With SoA components the capacity
// is found by binary search over the aligned total size.
func deriveLayout(rt *Runtime, m mask.Mask) *ChunkLayout {
	var entries []layoutEntry
	hasSoA := false
	for _, id := range rt.denseIDs(m) {
		meta, ok := rt.types.meta(id)
		if !ok {
			panic(bark.AddTrace(UnregisteredComponentError{TypeID: id}))
		}
		if meta.Sparse {
			continue
		}
		if meta.SoA {
			hasSoA = true
		}
		entries = append(entries, layoutEntry{id: id, meta: meta})
	}

	layout := &ChunkLayout{columns: make(map[TypeID][]ColumnPart, len(entries))}
	if len(entries) == 0 {
		return layout
	}

	if hasSoA {
		low, high := 0, ChunkSizeBytes
		for low < high {
			mid := (low + high + 1) / 2
			if totalAlignedSize(entries, mid) <= ChunkSizeBytes {
				low = mid
			} else {
				high = mid - 1
			}
		}
		layout.Capacity = low
	} else {
		var perRow uintptr
		for _, e := range entries {
			for _, f := range e.meta.Structure {
				perRow += f.Size
			}
		}
		capacity := 0
		if perRow > 0 {
			capacity = ChunkSizeBytes / int(perRow)
		}
		for capacity > 0 && totalAlignedSize(entries, capacity) > ChunkSizeBytes {
			capacity--
		}
		layout.Capacity = capacity
	}

	if layout.Capacity == 0 {
		perRow := 0
		for _, e := range entries {
			perRow += int(e.meta.rowBytes())
		}
		panic(bark.AddTrace(LayoutOversubscribedError{PerRow: perRow}))
	}

	var offset uintptr
	for _, e := range entries {
		parts := make([]ColumnPart, 0, len(e.meta.Structure))
		for _, f := range e.meta.Structure {
			offset = alignTo(offset, f.Align)
			parts = append(parts, ColumnPart{Offset: offset, Stride: f.Size})
			offset += f.Size * uintptr(layout.Capacity)
		}
		layout.columns[e.id] = parts
		layout.order = append(layout.order, e.id)
	}
	return layout
}

// totalAlignedSize returns the bytes consumed by all sub-columns when the
// chunk holds count rows.
func totalAlignedSize(entries []layoutEntry, count int) int {
	var offset uintptr
	for _, e := range entries {
		for _, f := range e.meta.Structure {
			offset = alignTo(offset, f.Align)
			offset += f.Size * uintptr(count)
		}
	}
	return int(offset)
}
