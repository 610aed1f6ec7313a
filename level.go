package strata

import (
	"reflect"

	"github.com/TheBitDrifter/mask"
	"github.com/go-gl/mathgl/mgl32"
)

// LevelState selects how much of a level runs each frame.
type LevelState uint8

const (
	// LevelMain levels run their full scheduler.
	LevelMain LevelState = iota
	// LevelSub levels are updated in a limited fashion by the application.
	LevelSub
)

// Positioned is implemented by components that place an entity in the world;
// the level routes entities carrying one through its partition.
type Positioned interface {
	Position() mgl32.Vec3
}

// LevelContext is the per-level state handed to systems: the level's ID and
// its deferred cross-chunk mover.
type LevelContext struct {
	id    LevelID
	Mover Mover
}

// ID returns the level's ID.
func (lc *LevelContext) ID() LevelID {
	return lc.id
}

// Level is one scene: a spatial partition whose cells each own an entity
// manager, a scheduler running the level's systems, and a mover flushed
// under budget at the end of every frame.
type Level struct {
	name       string
	state      LevelState
	rt         *Runtime
	registry   *ChunkRegistry
	partition  Partition
	scheduler  Scheduler
	ctx        LevelContext
	moveBudget int
}

// NewLevel creates a level over the partition and registers every cell with
// the chunk registry under the level's freshly assigned ID.
func NewLevel(name string, rt *Runtime, reg *ChunkRegistry, partition Partition, state LevelState) *Level {
	l := &Level{
		name:       name,
		state:      state,
		rt:         rt,
		registry:   reg,
		partition:  partition,
		moveBudget: Config.DefaultMoveBudget,
	}
	l.ctx.id = rt.nextLevel()
	partition.RegisterAllChunks(reg, l.ctx.id)
	return l
}

// ID returns the level's ID.
func (l *Level) ID() LevelID {
	return l.ctx.id
}

// Name returns the level's name.
func (l *Level) Name() string {
	return l.name
}

// State returns the level's update state.
func (l *Level) State() LevelState {
	return l.state
}

// Partition returns the level's spatial partition.
func (l *Level) Partition() Partition {
	return l.partition
}

// Context returns the level context handed to systems.
func (l *Level) Context() *LevelContext {
	return &l.ctx
}

// Scheduler returns the level's system scheduler.
func (l *Level) Scheduler() *Scheduler {
	return &l.scheduler
}

// SetMoveBudget overrides the per-frame mover flush budget.
func (l *Level) SetMoveBudget(n int) {
	l.moveBudget = n
}

func (l *Level) systemContext(services *ServiceLocator, exec Executor) *SystemContext {
	return &SystemContext{
		Partition: l.partition,
		Level:     &l.ctx,
		Services:  services,
		Executor:  exec,
		Runtime:   l.rt,
	}
}

// AddSystem registers a system with the level's scheduler. The system's
// Start hook runs immediately; the system itself joins the schedule at the
// next Update.
func (l *Level) AddSystem(sys System, services *ServiceLocator, exec Executor) {
	l.scheduler.AddSystem(sys, l.systemContext(services, exec))
}

// Update runs one frame: the partition's own update hook if it has one, then
// every system batch, then the mover flush under the level's budget. The
// first system error or panic is returned after its batch joined; later
// batches still run so the frame stays structurally consistent.
func (l *Level) Update(services *ServiceLocator, dt float64, exec Executor) error {
	if u, ok := l.partition.(PartitionUpdater); ok {
		u.Update(dt)
	}

	err := l.scheduler.UpdateAll(l.systemContext(services, exec))

	l.ctx.Mover.Flush(l.registry, l.moveBudget)
	return err
}

// Clean runs every system's End hook.
func (l *Level) Clean(services *ServiceLocator, exec Executor) {
	l.scheduler.Clean(l.systemContext(services, exec))
}

// AddEntity creates an entity in the level. Values carrying a Positioned
// component are routed through the partition (clamped to its edge) into the
// owning cell's manager; everything else lands in the global manager.
// Returns an IDExhaustedError when the allocator is dry.
func (l *Level) AddEntity(values ...any) (EntityID, error) {
	var m mask.Mask
	for _, v := range values {
		setMask(l.rt, &m, l.rt.types.idFor(reflect.TypeOf(v)))
	}

	em := l.partition.GlobalEntityManager()
	if pos, ok := firstPositioned(values); ok {
		if chunk := l.partition.GetChunk(pos, l.registry, l.ctx.id, ClampToEdge); chunk != nil {
			em = chunk.EntityManager()
		}
	}

	id := em.AddEntityWithMask(m, values...)
	if !id.Valid() {
		return id, IDExhaustedError{Max: l.rt.alloc.Capacity()}
	}
	return id, nil
}

// EntityNum returns the total entity count across the level's managers.
func (l *Level) EntityNum() int {
	return l.partition.EntityNum()
}

func firstPositioned(values []any) (mgl32.Vec3, bool) {
	for _, v := range values {
		if p, ok := v.(Positioned); ok {
			return p.Position(), true
		}
	}
	return mgl32.Vec3{}, false
}
