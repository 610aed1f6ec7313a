package strata

import "sync/atomic"

// Runtime holds the process-wide registries: component types, chunk layouts
// and the shared entity ID allocator. Entity managers created from the same
// runtime draw from one ID space, which is what makes cross-manager moves
// with preserved IDs possible.
//
// Tearing down a runtime releases every registry and all entity state at
// once; there are no package-level singletons to reset.
type Runtime struct {
	types       typeRegistry
	layouts     layoutRegistry
	alloc       *IDAllocator
	nextLevelID atomic.Uint32
}

// RuntimeOptions configures a Runtime.
type RuntimeOptions struct {
	// MaxEntities caps the ID allocator. Zero means Config.MaxEntities.
	MaxEntities uint32
}

// NewRuntime creates a runtime with empty registries.
func NewRuntime(opts RuntimeOptions) *Runtime {
	max := opts.MaxEntities
	if max == 0 {
		max = Config.MaxEntities
	}
	rt := &Runtime{
		types: newTypeRegistry(),
	}
	rt.layouts = newLayoutRegistry(rt)
	rt.alloc = NewIDAllocator(max)
	return rt
}

// Allocator returns the runtime's shared entity ID allocator.
func (rt *Runtime) Allocator() *IDAllocator {
	return rt.alloc
}

// nextLevel hands out level IDs, starting at 1 so the zero LevelID stays
// recognisably unassigned.
func (rt *Runtime) nextLevel() LevelID {
	return LevelID(rt.nextLevelID.Add(1))
}
