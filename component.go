package strata

import (
	"errors"
	"reflect"
	"sync"

	"github.com/TheBitDrifter/bark"
	"github.com/TheBitDrifter/mask"
)

// TypeID is the dense integer identifier assigned to a component type.
type TypeID uint32

// SubField describes one stored field of a component. Non-SoA components have
// exactly one entry covering the whole value; SoA components have one entry
// per struct field, each stored in its own sub-column.
type SubField struct {
	Size  uintptr
	Align uintptr

	// srcOffset is the field's offset inside the Go value, used when
	// scattering a value into its sub-columns.
	srcOffset uintptr
}

// ComponentMeta records everything the storage layer needs to know about a
// registered component type.
type ComponentMeta struct {
	ID        TypeID
	Type      reflect.Type
	Sparse    bool
	SoA       bool
	Structure []SubField
}

// registered reports whether Register* has been called for the type; an ID
// may exist without metadata when TypeIDOf ran first.
func (m ComponentMeta) registered() bool {
	return len(m.Structure) > 0 || m.Sparse
}

// rowBytes returns the per-row storage cost of the component.
func (m ComponentMeta) rowBytes() uintptr {
	var total uintptr
	for _, f := range m.Structure {
		total += f.Size
	}
	return total
}

// typeRegistry assigns dense IDs and holds metadata per component type.
// IDs are assigned on first sight, deterministic within a run.
type typeRegistry struct {
	mu      sync.RWMutex
	indices map[reflect.Type]TypeID
	metas   []ComponentMeta
}

func newTypeRegistry() typeRegistry {
	return typeRegistry{
		indices: make(map[reflect.Type]TypeID, MaxComponentTypes),
		metas:   make([]ComponentMeta, 0, MaxComponentTypes),
	}
}

// idFor returns the ID for a type, assigning the next integer on first call.
func (r *typeRegistry) idFor(t reflect.Type) TypeID {
	r.mu.RLock()
	id, ok := r.indices[t]
	r.mu.RUnlock()
	if ok {
		return id
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.indices[t]; ok {
		return id
	}
	if len(r.metas) >= MaxComponentTypes {
		panic(bark.AddTrace(TooManyComponentTypesError{Limit: MaxComponentTypes}))
	}
	id = TypeID(len(r.metas))
	r.indices[t] = id
	r.metas = append(r.metas, ComponentMeta{ID: id, Type: t})
	return id
}

func (r *typeRegistry) setMeta(id TypeID, meta ComponentMeta) {
	r.mu.Lock()
	r.metas[id] = meta
	r.mu.Unlock()
}

func (r *typeRegistry) meta(id TypeID) (ComponentMeta, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.metas) {
		return ComponentMeta{}, false
	}
	m := r.metas[id]
	return m, m.registered()
}

func (r *typeRegistry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.metas)
}

// RegisterComponent records T as a dense component and returns its ID.
// T must be a plain value type; column relocation is a byte copy, so types
// holding pointers to their own interior are not supported.
func RegisterComponent[T any](rt *Runtime) TypeID {
	t := reflect.TypeFor[T]()
	id := rt.types.idFor(t)
	rt.types.setMeta(id, ComponentMeta{
		ID:        id,
		Type:      t,
		Structure: []SubField{{Size: t.Size(), Align: uintptr(t.Align())}},
	})
	return id
}

// RegisterSparseComponent records T as a sparse component. Sparse components
// live in keyed maps outside the archetype machinery and never appear in
// masks.
func RegisterSparseComponent[T any](rt *Runtime) TypeID {
	t := reflect.TypeFor[T]()
	id := rt.types.idFor(t)
	rt.types.setMeta(id, ComponentMeta{
		ID:     id,
		Type:   t,
		Sparse: true,
	})
	return id
}

// RegisterSoAComponent records struct type T as a dense component stored
// split per field: each exported or unexported field of T with a non-zero
// size gets its own sub-column sharing the chunk row capacity; zero-size
// fields are not stored.
func RegisterSoAComponent[T any](rt *Runtime) TypeID {
	t := reflect.TypeFor[T]()
	if t.Kind() != reflect.Struct || t.NumField() == 0 {
		panic(bark.AddTrace(errors.New("SoA component must be a struct with at least one field: " + t.String())))
	}
	structure := make([]SubField, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Type.Size() == 0 {
			continue
		}
		structure = append(structure, SubField{
			Size:      f.Type.Size(),
			Align:     uintptr(f.Type.Align()),
			srcOffset: f.Offset,
		})
	}
	id := rt.types.idFor(t)
	rt.types.setMeta(id, ComponentMeta{
		ID:        id,
		Type:      t,
		SoA:       true,
		Structure: structure,
	})
	return id
}

// TypeIDOf returns the ID for T, assigning the next integer on first call.
// Assignment is deterministic within a single run but not across runs.
func TypeIDOf[T any](rt *Runtime) TypeID {
	return rt.types.idFor(reflect.TypeFor[T]())
}

// IsSparse reports whether T was registered as a sparse component.
func IsSparse[T any](rt *Runtime) bool {
	meta, ok := rt.types.meta(TypeIDOf[T](rt))
	return ok && meta.Sparse
}

// MetaOf is a read-only metadata lookup; ok is false for IDs that were never
// registered.
func MetaOf(rt *Runtime, id TypeID) (ComponentMeta, bool) {
	return rt.types.meta(id)
}

// maskHas reports whether bit id is set in m.
func maskHas(m mask.Mask, id TypeID) bool {
	var single mask.Mask
	single.Mark(uint32(id))
	return m.ContainsAll(single)
}

// maskWith returns m with the component's bit set.
func maskWith(m mask.Mask, id TypeID) mask.Mask {
	m.Mark(uint32(id))
	return m
}

// maskWithout returns m rebuilt without the component's bit. Masks are always
// rebuilt from the surviving bits rather than cleared in place.
func (rt *Runtime) maskWithout(m mask.Mask, id TypeID) mask.Mask {
	var out mask.Mask
	for _, other := range rt.denseIDs(m) {
		if other != id {
			out.Mark(uint32(other))
		}
	}
	return out
}

// denseIDs returns the registered component IDs present in m, in ID order.
func (rt *Runtime) denseIDs(m mask.Mask) []TypeID {
	n := rt.types.count()
	ids := make([]TypeID, 0, n)
	for id := TypeID(0); int(id) < n; id++ {
		if maskHas(m, id) {
			ids = append(ids, id)
		}
	}
	return ids
}

// setMask marks the component's bit unless the type is sparse.
func setMask(rt *Runtime, m *mask.Mask, id TypeID) {
	meta, ok := rt.types.meta(id)
	if ok && meta.Sparse {
		return
	}
	m.Mark(uint32(id))
}
