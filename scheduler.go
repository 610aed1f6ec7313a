package strata

import "sync"

// Scheduler owns a level's systems and runs them in conflict-free parallel
// batches. Systems added mid-frame are parked on a pending list and merged
// at the top of the next UpdateAll; batches are rebuilt only when the system
// set changes, so the greedy colouring stays deterministic for a given
// insertion order.
type Scheduler struct {
	systems []System
	access  []*Access

	pendingMu sync.Mutex
	pending   []System

	batches       [][]int
	scheduleDirty bool
}

// AddSystem parks a system for merging at the next frame. The Start hook, if
// any, runs immediately with the given context.
func (s *Scheduler) AddSystem(sys System, ctx *SystemContext) {
	if starter, ok := sys.(Starter); ok {
		starter.Start(ctx)
	}
	s.pendingMu.Lock()
	s.pending = append(s.pending, sys)
	s.pendingMu.Unlock()
}

// Len returns the number of merged systems.
func (s *Scheduler) Len() int {
	return len(s.systems)
}

// Batches returns the current batch partition as index lists into the merged
// system order. Valid after the last UpdateAll or RebuildBatches.
func (s *Scheduler) Batches() [][]int {
	return s.batches
}

// UpdateAll merges pending systems, rebuilds batches when the set changed,
// then executes each batch in parallel on the executor, joining before the
// next batch starts. All writes of batch k are visible to batch k+1. Within
// a batch the first system error or panic wins; remaining systems in the
// batch still complete.
func (s *Scheduler) UpdateAll(ctx *SystemContext) error {
	s.mergePending()
	if s.scheduleDirty {
		s.RebuildBatches()
	}

	var firstErr error
	for _, batch := range s.batches {
		err := runTasks(len(batch), ctx.Executor, func(i int) error {
			return s.systems[batch[i]].Update(ctx)
		})
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Clean runs the End hook of every merged system.
func (s *Scheduler) Clean(ctx *SystemContext) {
	s.mergePending()
	for _, sys := range s.systems {
		if ender, ok := sys.(Ender); ok {
			ender.End(ctx)
		}
	}
}

func (s *Scheduler) mergePending() {
	s.pendingMu.Lock()
	newly := s.pending
	s.pending = nil
	s.pendingMu.Unlock()
	if len(newly) == 0 {
		return
	}
	for _, sys := range newly {
		s.systems = append(s.systems, sys)
		s.access = append(s.access, sys.Access())
	}
	s.scheduleDirty = true
}

// RebuildBatches greedily colours the systems: each system joins the first
// batch it does not conflict with, in insertion order, or opens a new one.
func (s *Scheduler) RebuildBatches() {
	s.batches = s.batches[:0]
	for i := range s.systems {
		ai := s.access[i]
		placed := false
		for bi, batch := range s.batches {
			ok := true
			for _, j := range batch {
				if ai.ConflictsWith(s.access[j]) {
					ok = false
					break
				}
			}
			if ok {
				s.batches[bi] = append(batch, i)
				placed = true
				break
			}
		}
		if !placed {
			s.batches = append(s.batches, []int{i})
		}
	}
	s.scheduleDirty = false
}
