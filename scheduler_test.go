package strata

import (
	"errors"
	"strings"
	"sync/atomic"
	"testing"
)

func testContext(rt *Runtime, exec Executor) *SystemContext {
	reg := NewChunkRegistry()
	p := NewVoidPartition(rt)
	level := NewLevel("test", rt, reg, p, LevelMain)
	return &SystemContext{
		Partition: p,
		Level:     level.Context(),
		Services:  NewServiceLocator(),
		Executor:  exec,
		Runtime:   rt,
	}
}

func TestSchedulerBatchesByConflict(t *testing.T) {
	rt := NewRuntime(RuntimeOptions{})
	RegisterComponent[Position](rt)
	RegisterComponent[Velocity](rt)

	s1 := SystemFunc{Declared: Write[Position](NewAccess(rt)), Fn: func(*SystemContext) error { return nil }}
	s2 := SystemFunc{Declared: Read[Position](NewAccess(rt)), Fn: func(*SystemContext) error { return nil }}
	s3 := SystemFunc{Declared: Write[Velocity](NewAccess(rt)), Fn: func(*SystemContext) error { return nil }}

	var sched Scheduler
	ctx := testContext(rt, nil)
	sched.AddSystem(s1, ctx)
	sched.AddSystem(s2, ctx)
	sched.AddSystem(s3, ctx)

	if err := sched.UpdateAll(ctx); err != nil {
		t.Fatalf("UpdateAll: %v", err)
	}

	batches := sched.Batches()
	if len(batches) != 2 {
		t.Fatalf("got %d batches, want 2: %v", len(batches), batches)
	}
	// Greedy colouring in insertion order: S1 and S3 share batch 0 (write
	// sets disjoint); S2 conflicts with S1 and opens batch 1.
	if len(batches[0]) != 2 || batches[0][0] != 0 || batches[0][1] != 2 {
		t.Errorf("batch 0 = %v, want [0 2]", batches[0])
	}
	if len(batches[1]) != 1 || batches[1][0] != 1 {
		t.Errorf("batch 1 = %v, want [1]", batches[1])
	}

	// Every system appears in exactly one batch, and no batch conflicts.
	seen := make(map[int]int)
	for _, batch := range batches {
		for _, i := range batch {
			seen[i]++
		}
		for _, i := range batch {
			for _, j := range batch {
				if i != j && sched.access[i].ConflictsWith(sched.access[j]) {
					t.Errorf("systems %d and %d conflict within one batch", i, j)
				}
			}
		}
	}
	for i := 0; i < sched.Len(); i++ {
		if seen[i] != 1 {
			t.Errorf("system %d appears %d times", i, seen[i])
		}
	}
}

func TestSchedulerBarrierBetweenBatches(t *testing.T) {
	rt := NewRuntime(RuntimeOptions{})
	RegisterComponent[Position](rt)

	var order []string
	writer := SystemFunc{
		Declared: Write[Position](NewAccess(rt)),
		Fn: func(*SystemContext) error {
			order = append(order, "write")
			return nil
		},
	}
	reader := SystemFunc{
		Declared: Read[Position](NewAccess(rt)),
		Fn: func(*SystemContext) error {
			order = append(order, "read")
			return nil
		},
	}

	pool := NewWorkerPool(4)
	defer pool.Close()

	var sched Scheduler
	ctx := testContext(rt, pool)
	sched.AddSystem(writer, ctx)
	sched.AddSystem(reader, ctx)
	if err := sched.UpdateAll(ctx); err != nil {
		t.Fatalf("UpdateAll: %v", err)
	}

	// The two systems conflict, so they landed in consecutive batches and
	// the appends cannot race.
	if len(order) != 2 || order[0] != "write" || order[1] != "read" {
		t.Errorf("execution order = %v, want [write read]", order)
	}
}

func TestSchedulerPendingMergedNextFrame(t *testing.T) {
	rt := NewRuntime(RuntimeOptions{})
	RegisterComponent[Position](rt)

	var ran atomic.Int32
	sys := SystemFunc{
		Declared: Read[Position](NewAccess(rt)),
		Fn: func(*SystemContext) error {
			ran.Add(1)
			return nil
		},
	}

	var sched Scheduler
	ctx := testContext(rt, nil)
	if err := sched.UpdateAll(ctx); err != nil {
		t.Fatalf("empty UpdateAll: %v", err)
	}
	sched.AddSystem(sys, ctx)
	if sched.Len() != 0 {
		t.Error("pending system merged before UpdateAll")
	}
	if err := sched.UpdateAll(ctx); err != nil {
		t.Fatalf("UpdateAll: %v", err)
	}
	if sched.Len() != 1 || ran.Load() != 1 {
		t.Errorf("len=%d ran=%d, want 1 and 1", sched.Len(), ran.Load())
	}
}

func TestSchedulerFirstErrorWins(t *testing.T) {
	rt := NewRuntime(RuntimeOptions{})
	RegisterComponent[Position](rt)
	RegisterComponent[Velocity](rt)

	wantErr := errors.New("boom")
	var otherRan atomic.Bool

	failing := SystemFunc{
		Declared: Write[Position](NewAccess(rt)),
		Fn:       func(*SystemContext) error { return wantErr },
	}
	panicking := SystemFunc{
		Declared: Write[Velocity](NewAccess(rt)),
		Fn: func(*SystemContext) error {
			otherRan.Store(true)
			panic("kaput")
		},
	}

	var sched Scheduler
	ctx := testContext(rt, nil)
	sched.AddSystem(failing, ctx)
	sched.AddSystem(panicking, ctx)

	err := sched.UpdateAll(ctx)
	if err == nil {
		t.Fatal("UpdateAll swallowed the failure")
	}
	if !errors.Is(err, wantErr) && !strings.Contains(err.Error(), "kaput") {
		t.Errorf("unexpected error: %v", err)
	}
	if !otherRan.Load() {
		t.Error("second system in the batch did not complete")
	}
}

func TestParallelPerChunkIteration(t *testing.T) {
	rt := NewRuntime(RuntimeOptions{})
	cID := RegisterComponent[Counter](rt)

	reg := NewChunkRegistry()
	p := NewVoidPartition(rt)
	level := NewLevel("counters", rt, reg, p, LevelMain)

	em := p.GlobalEntityManager()
	const n = 25600
	for i := 0; i < n; i++ {
		em.AddEntity(Counter{Value: 1})
	}

	pool := NewWorkerPool(4)
	defer pool.Close()

	sys := SystemFunc{
		Declared: Write[Counter](NewAccess(rt)),
		Parallel: true,
		Fn: func(ctx *SystemContext) error {
			q := NewQuery(ctx.Runtime).With(cID)
			return ForEachChunk(ctx, q, true, func(chunk *Chunk) error {
				col := Column[Counter](chunk)
				for i := 0; i < chunk.Count(); i++ {
					col[i].Value++
				}
				return nil
			})
		},
	}

	services := NewServiceLocator()
	level.AddSystem(sys, services, pool)
	if err := level.Update(services, 1.0/60, pool); err != nil {
		t.Fatalf("Update: %v", err)
	}

	cursor := NewCursor(NewQuery(rt).With(cID), em)
	for cursor.Next() {
		if c := GetFromCursor[Counter](cursor); c.Value != 2 {
			t.Fatalf("counter = %d after one frame, want 2", c.Value)
		}
	}
}
