package strata

// SystemContext bundles everything a system sees during one frame: the
// level's partition, the level context (ID and mover), the service locator
// and the executor driving parallel work.
type SystemContext struct {
	Partition Partition
	Level     *LevelContext
	Services  *ServiceLocator
	Executor  Executor
	Runtime   *Runtime
}

// System is a unit of per-frame work. Access is consulted when the scheduler
// builds its conflict-free batches; Update runs once per frame within the
// system's batch.
type System interface {
	Access() *Access
	Update(ctx *SystemContext) error
}

// Starter is implemented by systems wanting a hook when they are added to a
// scheduler.
type Starter interface {
	Start(ctx *SystemContext)
}

// Ender is implemented by systems wanting a hook when the level is cleaned.
type Ender interface {
	End(ctx *SystemContext)
}

// ParallelHinted marks a system whose per-chunk iteration may be split
// across executor workers. The scheduler and ForEachChunk do not read the
// hint: chunks are split only when ForEachChunk or ForEachChunkOf is called
// with parallel set, whether or not the system implements this interface.
type ParallelHinted interface {
	ParallelUpdate() bool
}

func wantsParallel(sys System) bool {
	if p, ok := sys.(ParallelHinted); ok {
		return p.ParallelUpdate()
	}
	return false
}

// ForEachChunk runs fn over every chunk in the partition matching the query.
// With parallel set, chunks are split into blocks of about
// Config.ChunksPerTask across the executor's workers; the first panic or
// error wins and is returned after all blocks join. Systems must not rely on
// any ordering among chunks in the parallel case.
func ForEachChunk(ctx *SystemContext, q *Query, parallel bool, fn func(*Chunk) error) error {
	return ForEachChunkOf(ctx, q.MatchingChunksIn(ctx.Partition), parallel, fn)
}

// ForEachChunkOf is ForEachChunk over a pre-computed chunk list, for systems
// that enumerate chunks through culling instead of a query.
func ForEachChunkOf(ctx *SystemContext, chunks []*Chunk, parallel bool, fn func(*Chunk) error) error {
	var exec Executor
	if ctx != nil {
		exec = ctx.Executor
	}
	return runIndexRange(len(chunks), parallel, exec, func(i int) error {
		return fn(chunks[i])
	})
}

// SystemFunc adapts a function and an access declaration into a System.
type SystemFunc struct {
	Declared *Access
	Parallel bool
	Fn       func(ctx *SystemContext) error
}

func (s SystemFunc) Access() *Access {
	return s.Declared
}

func (s SystemFunc) Update(ctx *SystemContext) error {
	return s.Fn(ctx)
}

func (s SystemFunc) ParallelUpdate() bool {
	return s.Parallel
}
