package strata

import (
	"testing"

	"github.com/TheBitDrifter/mask"
)

func TestCreateQueryDestroy(t *testing.T) {
	rt := NewRuntime(RuntimeOptions{})
	RegisterComponent[Position](rt)
	RegisterComponent[Velocity](rt)
	em := NewEntityManager(rt)

	id := em.AddEntity(Position{X: 1}, Velocity{X: 2})
	if id != (EntityID{Index: 0, Generation: 0}) {
		t.Fatalf("first entity = %+v, want (0,0)", id)
	}

	if p := Get[Position](em, id); p == nil || p.X != 1 {
		t.Errorf("Get[Position] = %+v, want X=1", p)
	}
	if v := Get[Velocity](em, id); v == nil || v.X != 2 {
		t.Errorf("Get[Velocity] = %+v, want X=2", v)
	}

	em.Destroy(id)
	if rt.alloc.IsAlive(id) {
		t.Error("destroyed ID is still alive")
	}
	if Get[Position](em, id) != nil {
		t.Error("Get after destroy returned a component")
	}
	// Destroy is idempotent.
	em.Destroy(id)
}

func TestTransitionPreservesData(t *testing.T) {
	rt := NewRuntime(RuntimeOptions{})
	RegisterComponent[Position](rt)
	RegisterComponent[Velocity](rt)
	RegisterComponent[Health](rt)
	em := NewEntityManager(rt)

	e := em.AddEntity(Position{X: 7}, Velocity{X: 11})
	before, _ := em.MaskOf(e)

	SetComponent(em, e, Health{Current: 42})
	if !Has[Health](em, e) {
		t.Fatal("added component missing")
	}
	if p := Get[Position](em, e); p == nil || p.X != 7 {
		t.Errorf("Position lost in transition: %+v", p)
	}
	if v := Get[Velocity](em, e); v == nil || v.X != 11 {
		t.Errorf("Velocity lost in transition: %+v", v)
	}
	if h := Get[Health](em, e); h == nil || h.Current != 42 {
		t.Errorf("Health = %+v, want Current=42", h)
	}

	RemoveComponent[Velocity](em, e)
	if Has[Velocity](em, e) {
		t.Error("removed component still present")
	}
	if p := Get[Position](em, e); p == nil || p.X != 7 {
		t.Errorf("Position lost on removal: %+v", p)
	}
	if h := Get[Health](em, e); h == nil || h.Current != 42 {
		t.Errorf("Health lost on removal: %+v", h)
	}

	// Round trip: removing what was added restores the original mask.
	RemoveComponent[Health](em, e)
	SetComponent(em, e, Velocity{X: 11})
	after, _ := em.MaskOf(e)
	if before != after {
		t.Error("add/remove round trip changed the mask")
	}
}

func TestSwapPopRebindsNeighbour(t *testing.T) {
	rt := NewRuntime(RuntimeOptions{})
	RegisterComponent[Counter](rt)
	em := NewEntityManager(rt)

	e0 := em.AddEntity(Counter{Value: 0})
	e1 := em.AddEntity(Counter{Value: 1})
	e2 := em.AddEntity(Counter{Value: 2})

	loc0, _ := em.TryGetLocation(e0)
	chunk := loc0.Chunk

	em.Destroy(e0)

	loc2, ok := em.TryGetLocation(e2)
	if !ok || loc2.Chunk != chunk || loc2.Row != 0 {
		t.Errorf("e2 location = %+v, want row 0 of the original chunk", loc2)
	}
	loc1, _ := em.TryGetLocation(e1)
	if loc1.Row != 1 {
		t.Errorf("e1 row = %d, want 1", loc1.Row)
	}
	if chunk.Count() != 2 {
		t.Errorf("chunk count = %d, want 2", chunk.Count())
	}
	if chunk.Entities()[0] != e2 {
		t.Errorf("entities[0] = %+v, want e2", chunk.Entities()[0])
	}
	if c := Get[Counter](em, e2); c == nil || c.Value != 2 {
		t.Errorf("e2 value = %+v, want 2", c)
	}
}

func TestLocationInvariant(t *testing.T) {
	rt := NewRuntime(RuntimeOptions{})
	RegisterComponent[Position](rt)
	RegisterComponent[Health](rt)
	em := NewEntityManager(rt)

	var ids []EntityID
	for i := 0; i < 100; i++ {
		ids = append(ids, em.AddEntity(Position{X: float32(i)}))
	}
	for i := 0; i < 100; i += 3 {
		em.Destroy(ids[i])
	}
	for i := 1; i < 100; i += 3 {
		SetComponent(em, ids[i], Health{Current: int32(i)})
	}

	em.locMu.RLock()
	defer em.locMu.RUnlock()
	for id, loc := range em.locations {
		if loc.Row >= loc.Chunk.Count() {
			t.Errorf("entity %+v row %d beyond count %d", id, loc.Row, loc.Chunk.Count())
			continue
		}
		if loc.Chunk.Entities()[loc.Row] != id {
			t.Errorf("entity %+v not at its recorded row", id)
		}
	}
}

func TestSparseComponents(t *testing.T) {
	rt := NewRuntime(RuntimeOptions{})
	RegisterComponent[Position](rt)
	RegisterSparseComponent[Aura](rt)
	em := NewEntityManager(rt)

	id := em.AddEntity(Position{}, Aura{Radius: 3})
	if !Has[Aura](em, id) {
		t.Fatal("sparse component missing after AddEntity")
	}
	if a := Get[Aura](em, id); a == nil || a.Radius != 3 {
		t.Errorf("sparse Get = %+v, want Radius=3", a)
	}

	SetComponent(em, id, Aura{Radius: 9})
	if a := Get[Aura](em, id); a == nil || a.Radius != 9 {
		t.Errorf("sparse overwrite = %+v, want Radius=9", a)
	}

	RemoveComponent[Aura](em, id)
	if Has[Aura](em, id) {
		t.Error("sparse component present after removal")
	}

	// Sparse-only entities carry no dense location.
	ghost := em.AddEntity(Aura{Radius: 1})
	if _, ok := em.TryGetLocation(ghost); ok {
		t.Error("sparse-only entity has a dense location")
	}
	if !Has[Aura](em, ghost) {
		t.Error("sparse-only entity lost its component")
	}

	// Destroy purges sparse entries.
	em.Destroy(ghost)
	if Has[Aura](em, ghost) {
		t.Error("sparse entry survived destroy")
	}
}

func TestInsertWithIDForManagerMove(t *testing.T) {
	rt := NewRuntime(RuntimeOptions{})
	RegisterComponent[Position](rt)
	RegisterComponent[Health](rt)
	src := NewEntityManager(rt)
	dst := NewEntityManager(rt)

	id := src.AddEntity(Position{X: 5, Y: 6, Z: 7}, Health{Current: 3, Max: 10})

	if !InsertWithIDForManagerMove(id, src, dst) {
		t.Fatal("manager move failed")
	}
	if _, ok := src.TryGetLocation(id); ok {
		t.Error("entity still located in source")
	}
	if p := Get[Position](dst, id); p == nil || (*p != Position{X: 5, Y: 6, Z: 7}) {
		t.Errorf("moved Position = %+v", p)
	}
	if h := Get[Health](dst, id); h == nil || (*h != Health{Current: 3, Max: 10}) {
		t.Errorf("moved Health = %+v", h)
	}
	if !rt.alloc.IsAlive(id) {
		t.Error("manager move destroyed the ID")
	}

	// The reverse move restores byte-identical values.
	if !InsertWithIDForManagerMove(id, dst, src) {
		t.Fatal("reverse move failed")
	}
	if p := Get[Position](src, id); p == nil || (*p != Position{X: 5, Y: 6, Z: 7}) {
		t.Errorf("round-tripped Position = %+v", p)
	}

	// Moving a dead or absent ID fails.
	if InsertWithIDForManagerMove(EntityID{Index: 999, Generation: 3}, src, dst) {
		t.Error("moving an unknown ID succeeded")
	}
}

func TestMergeFromAll(t *testing.T) {
	rt := NewRuntime(RuntimeOptions{})
	RegisterComponent[Position](rt)
	RegisterSparseComponent[Aura](rt)
	a := NewEntityManager(rt)
	b := NewEntityManager(rt)

	var ids []EntityID
	for i := 0; i < 10; i++ {
		id := a.AddEntity(Position{X: float32(i)}, Aura{Radius: float32(i)})
		ids = append(ids, id)
	}

	moved := b.MergeFromAll(a)
	if moved != 10 {
		t.Fatalf("moved %d entities, want 10", moved)
	}
	if a.EntityCount() != 0 {
		t.Errorf("source still holds %d entities", a.EntityCount())
	}
	for i, id := range ids {
		if p := Get[Position](b, id); p == nil || p.X != float32(i) {
			t.Errorf("entity %d Position = %+v", i, p)
		}
		if au := Get[Aura](b, id); au == nil || au.Radius != float32(i) {
			t.Errorf("entity %d Aura = %+v", i, au)
		}
	}
}

func TestSplitByAll(t *testing.T) {
	rt := NewRuntime(RuntimeOptions{})
	RegisterComponent[Health](rt)
	src := NewEntityManager(rt)
	even := NewEntityManager(rt)
	odd := NewEntityManager(rt)

	for i := 0; i < 20; i++ {
		src.AddEntity(Health{Current: int32(i)})
	}

	moved := src.SplitByAll(func(id EntityID, _ mask.Mask) *EntityManager {
		if h := Get[Health](src, id); h != nil && h.Current%2 == 0 {
			return even
		}
		return odd
	})
	if moved != 20 {
		t.Fatalf("moved %d, want 20", moved)
	}
	if even.EntityCount()+odd.EntityCount() != 20 {
		t.Errorf("destinations hold %d entities, want 20", even.EntityCount()+odd.EntityCount())
	}
	for _, id := range even.AllIDs() {
		if h := Get[Health](even, id); h == nil || h.Current%2 != 0 {
			t.Errorf("even bucket got %+v", h)
		}
	}
}

func TestUnknownEntityOps(t *testing.T) {
	rt := NewRuntime(RuntimeOptions{})
	RegisterComponent[Position](rt)
	em := NewEntityManager(rt)

	ghost := EntityID{Index: 12, Generation: 1}
	if Has[Position](em, ghost) {
		t.Error("Has on unknown entity")
	}
	if Get[Position](em, ghost) != nil {
		t.Error("Get on unknown entity")
	}
	// No-ops, must not panic.
	SetComponent(em, ghost, Position{X: 1})
	RemoveComponent[Position](em, ghost)
}
