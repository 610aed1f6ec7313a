package strata

import "github.com/TheBitDrifter/mask"

// Access declares the component sets a system reads and writes. The
// scheduler uses the declaration to place systems into conflict-free
// batches; queries derive their required mask from it.
type Access struct {
	rt       *Runtime
	reads    mask.Mask
	writes   mask.Mask
	required mask.Mask
}

// NewAccess creates an empty access declaration.
func NewAccess(rt *Runtime) *Access {
	return &Access{rt: rt}
}

// Read declares read access to component T.
func Read[T any](a *Access) *Access {
	return a.ReadID(TypeIDOf[T](a.rt))
}

// Write declares write access to component T.
func Write[T any](a *Access) *Access {
	return a.WriteID(TypeIDOf[T](a.rt))
}

// ReadID declares read access by component ID.
func (a *Access) ReadID(id TypeID) *Access {
	a.reads.Mark(uint32(id))
	a.required.Mark(uint32(id))
	return a
}

// WriteID declares write access by component ID.
func (a *Access) WriteID(id TypeID) *Access {
	a.writes.Mark(uint32(id))
	a.required.Mark(uint32(id))
	return a
}

// Reads returns the declared read mask.
func (a *Access) Reads() mask.Mask {
	return a.reads
}

// Writes returns the declared write mask.
func (a *Access) Writes() mask.Mask {
	return a.writes
}

// RequiredMask returns the union of the read and write sets.
func (a *Access) RequiredMask() mask.Mask {
	return a.required
}

// Query builds a query requiring every declared component.
func (a *Access) Query() *Query {
	q := NewQuery(a.rt)
	q.required = a.required
	return q
}

// ConflictsWith reports whether two declarations cannot run concurrently:
// either one writes a component the other reads or writes.
func (a *Access) ConflictsWith(b *Access) bool {
	if a.writes.ContainsAny(b.reads) || a.writes.ContainsAny(b.writes) {
		return true
	}
	return b.writes.ContainsAny(a.reads)
}
