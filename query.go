package strata

import (
	"github.com/TheBitDrifter/bark"
	"github.com/TheBitDrifter/mask"
)

// Query filters chunks by component composition: a chunk matches when its
// mask contains every required component and none of the excluded ones.
// Sparse components cannot appear in queries.
type Query struct {
	rt       *Runtime
	required mask.Mask
	excluded mask.Mask
}

// NewQuery creates an empty query; an empty query matches every archetype.
func NewQuery(rt *Runtime) *Query {
	return &Query{rt: rt}
}

// With adds required components. Passing a sparse component is a programmer
// error.
func (q *Query) With(ids ...TypeID) *Query {
	for _, id := range ids {
		q.requireDense(id)
		q.required.Mark(uint32(id))
	}
	return q
}

// Without adds excluded components.
func (q *Query) Without(ids ...TypeID) *Query {
	for _, id := range ids {
		q.requireDense(id)
		q.excluded.Mark(uint32(id))
	}
	return q
}

func (q *Query) requireDense(id TypeID) {
	meta, ok := q.rt.types.meta(id)
	if ok && meta.Sparse {
		panic(bark.AddTrace(SparseComponentInQueryError{TypeID: id}))
	}
}

// WithComponent adds T to the query's required set.
func WithComponent[T any](q *Query) *Query {
	return q.With(TypeIDOf[T](q.rt))
}

// WithoutComponent adds T to the query's excluded set.
func WithoutComponent[T any](q *Query) *Query {
	return q.Without(TypeIDOf[T](q.rt))
}

// Required returns the query's required mask.
func (q *Query) Required() mask.Mask {
	return q.required
}

// Matches evaluates the query against an archetype mask.
func (q *Query) Matches(m mask.Mask) bool {
	return m.ContainsAll(q.required) && m.ContainsNone(q.excluded)
}

// MatchingChunks returns every chunk of the manager whose archetype matches
// the query, in archetype creation then chunk append order.
func (q *Query) MatchingChunks(em *EntityManager) []*Chunk {
	var result []*Chunk
	for _, arch := range em.Archetypes() {
		if !q.Matches(arch.Mask()) {
			continue
		}
		result = append(result, arch.Chunks()...)
	}
	return result
}

// MatchingChunksIn returns the matching chunks across every entity manager
// of a partition, cell managers first, global manager last.
func (q *Query) MatchingChunksIn(p Partition) []*Chunk {
	var result []*Chunk
	for _, em := range p.Managers() {
		result = append(result, q.MatchingChunks(em)...)
	}
	return result
}
