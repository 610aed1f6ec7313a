package strata

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

// Transform is the test component that places entities in the world.
type Transform struct {
	Location mgl32.Vec3
}

func (t Transform) Position() mgl32.Vec3 {
	return t.Location
}

func levelFixture(t *testing.T) (*Runtime, *ChunkRegistry, *Grid2DPartition, *Level) {
	t.Helper()
	rt := NewRuntime(RuntimeOptions{})
	RegisterComponent[Transform](rt)
	RegisterComponent[Velocity](rt)
	RegisterComponent[Counter](rt)
	reg := NewChunkRegistry()
	p := NewGrid2DPartition(rt, 4, 4, 10)
	level := NewLevel("overworld", rt, reg, p, LevelMain)
	return rt, reg, p, level
}

func TestLevelRoutesBySpatialPosition(t *testing.T) {
	_, _, p, level := levelFixture(t)

	id, err := level.AddEntity(Transform{Location: vec3(25, 35, 0)}, Velocity{})
	if err != nil {
		t.Fatalf("AddEntity: %v", err)
	}
	cell := p.Cell(2, 3)
	if _, ok := cell.EntityManager().TryGetLocation(id); !ok {
		t.Error("positioned entity not routed to cell (2,3)")
	}

	// Out-of-bounds positions clamp to the edge cell.
	edge, err := level.AddEntity(Transform{Location: vec3(-100, 999, 0)})
	if err != nil {
		t.Fatalf("AddEntity: %v", err)
	}
	if _, ok := p.Cell(0, 3).EntityManager().TryGetLocation(edge); !ok {
		t.Error("out-of-bounds entity not clamped to the edge cell")
	}

	// Entities without a position land in the global manager.
	plain, err := level.AddEntity(Counter{Value: 1})
	if err != nil {
		t.Fatalf("AddEntity: %v", err)
	}
	if _, ok := p.GlobalEntityManager().TryGetLocation(plain); !ok {
		t.Error("non-spatial entity not in the global manager")
	}

	if level.EntityNum() != 3 {
		t.Errorf("EntityNum = %d, want 3", level.EntityNum())
	}
}

func TestLevelUpdateFlushesMover(t *testing.T) {
	rt, _, p, level := levelFixture(t)

	k1, k2 := p.Cell(0, 0), p.Cell(1, 0)
	id, err := level.AddEntity(Transform{Location: vec3(5, 5, 0)})
	if err != nil {
		t.Fatalf("AddEntity: %v", err)
	}

	sys := SystemFunc{
		Declared: Read[Transform](NewAccess(rt)),
		Fn: func(ctx *SystemContext) error {
			ctx.Level.Mover.Enqueue(id, k1.Key(), k2.Key())
			return nil
		},
	}
	services := NewServiceLocator()
	level.AddSystem(sys, services, nil)

	if err := level.Update(services, 1.0/60, nil); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, ok := k2.EntityManager().TryGetLocation(id); !ok {
		t.Error("mover did not flush during Update")
	}
}

func TestLevelStartAndEndHooks(t *testing.T) {
	rt, _, _, level := levelFixture(t)

	var events []string
	sys := &hookedSystem{
		access: Read[Counter](NewAccess(rt)),
		onStart: func() {
			events = append(events, "start")
		},
		onUpdate: func() {
			events = append(events, "update")
		},
		onEnd: func() {
			events = append(events, "end")
		},
	}

	services := NewServiceLocator()
	level.AddSystem(sys, services, nil)
	if err := level.Update(services, 0.016, nil); err != nil {
		t.Fatalf("Update: %v", err)
	}
	level.Clean(services, nil)

	want := []string{"start", "update", "end"}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("events = %v, want %v", events, want)
		}
	}
}

type hookedSystem struct {
	access   *Access
	onStart  func()
	onUpdate func()
	onEnd    func()
}

func (s *hookedSystem) Access() *Access {
	return s.access
}

func (s *hookedSystem) Start(*SystemContext) {
	s.onStart()
}

func (s *hookedSystem) Update(*SystemContext) error {
	s.onUpdate()
	return nil
}

func (s *hookedSystem) End(*SystemContext) {
	s.onEnd()
}

func TestLevelIDsAreDistinct(t *testing.T) {
	rt := NewRuntime(RuntimeOptions{})
	reg := NewChunkRegistry()
	a := NewLevel("a", rt, reg, NewVoidPartition(rt), LevelMain)
	b := NewLevel("b", rt, reg, NewVoidPartition(rt), LevelSub)
	if a.ID() == b.ID() {
		t.Errorf("levels share ID %d", a.ID())
	}
	if a.ID() == 0 || b.ID() == 0 {
		t.Error("level ID zero is reserved for unassigned")
	}
}

func TestSpatialAttachmentSettles(t *testing.T) {
	rt, reg, p, _ := levelFixture(t)

	floatEM := NewEntityManager(rt)
	k1 := p.Cell(0, 0)
	id := k1.EntityManager().AddEntity(Transform{Location: vec3(5, 5, 0)})

	tag := SpatialMotionTag{Handle: ChunkHandle{Key: k1.Key(), Cached: k1}}
	rule := SettleRule{VThreshold: 0.2, Frames: 3}

	// A fast entity detaches into the float manager.
	UpdateSpatialAttachment(id, vec3(5, 5, 0), vec3(10, 0, 0), p, reg, 1, &tag, floatEM, rule)
	if tag.State != Detached {
		t.Fatal("moving entity did not detach")
	}
	if _, ok := floatEM.TryGetLocation(id); !ok {
		t.Fatal("detached entity not in the float manager")
	}

	// After settling below the threshold for enough frames it re-attaches.
	for i := 0; i < 3; i++ {
		UpdateSpatialAttachment(id, vec3(15, 5, 0), vec3(0, 0, 0), p, reg, 1, &tag, floatEM, rule)
	}
	if tag.State != Attached {
		t.Fatal("settled entity did not re-attach")
	}
	if _, ok := p.Cell(1, 0).EntityManager().TryGetLocation(id); !ok {
		t.Error("re-attached entity not in the cell under its position")
	}
}
