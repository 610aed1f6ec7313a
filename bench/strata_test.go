package bench

import (
	"testing"

	strata "github.com/strata-ecs/strata"
)

const (
	nPos    = 9000
	nPosVel = 1000
)

type Position struct {
	X float64
	Y float64
}

type Velocity struct {
	X float64
	Y float64
}

type Health struct {
	Current, Max int32
}

func BenchmarkIterStrataGet(b *testing.B) {
	b.StopTimer()

	rt := strata.NewRuntime(strata.RuntimeOptions{})
	posID := strata.RegisterComponent[Position](rt)
	velID := strata.RegisterComponent[Velocity](rt)
	em := strata.NewEntityManager(rt)

	for i := 0; i < nPosVel; i++ {
		em.AddEntity(Position{}, Velocity{X: 1, Y: 1})
	}
	for i := 0; i < nPos; i++ {
		em.AddEntity(Position{})
	}

	query := strata.NewQuery(rt).With(posID, velID)
	cursor := strata.NewCursor(query, em)

	b.StartTimer()

	for i := 0; i < b.N; i++ {
		for cursor.Next() {
			pos := strata.GetFromCursor[Position](cursor)
			vel := strata.GetFromCursor[Velocity](cursor)
			pos.X += vel.X
			pos.Y += vel.Y
		}
	}
}

func BenchmarkIterStrataColumns(b *testing.B) {
	b.StopTimer()

	rt := strata.NewRuntime(strata.RuntimeOptions{})
	posID := strata.RegisterComponent[Position](rt)
	velID := strata.RegisterComponent[Velocity](rt)
	em := strata.NewEntityManager(rt)

	for i := 0; i < nPosVel; i++ {
		em.AddEntity(Position{}, Velocity{X: 1, Y: 1})
	}
	for i := 0; i < nPos; i++ {
		em.AddEntity(Position{})
	}

	query := strata.NewQuery(rt).With(posID, velID)

	b.StartTimer()

	for i := 0; i < b.N; i++ {
		for _, chunk := range query.MatchingChunks(em) {
			pos := strata.Column[Position](chunk)
			vel := strata.Column[Velocity](chunk)
			for r := 0; r < chunk.Count(); r++ {
				pos[r].X += vel[r].X
				pos[r].Y += vel[r].Y
			}
		}
	}
}

func BenchmarkCreateEntities(b *testing.B) {
	rt := strata.NewRuntime(strata.RuntimeOptions{MaxEntities: 1 << 22})
	strata.RegisterComponent[Position](rt)
	strata.RegisterComponent[Velocity](rt)
	em := strata.NewEntityManager(rt)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if id := em.AddEntity(Position{}, Velocity{}); !id.Valid() {
			b.Fatal("ID space exhausted; raise MaxEntities")
		}
	}
}

func BenchmarkArchetypeTransition(b *testing.B) {
	rt := strata.NewRuntime(strata.RuntimeOptions{})
	strata.RegisterComponent[Position](rt)
	strata.RegisterComponent[Health](rt)
	em := strata.NewEntityManager(rt)
	id := em.AddEntity(Position{})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		strata.SetComponent(em, id, Health{Current: 1})
		strata.RemoveComponent[Health](em, id)
	}
}

func BenchmarkParallelFrame(b *testing.B) {
	rt := strata.NewRuntime(strata.RuntimeOptions{})
	posID := strata.RegisterComponent[Position](rt)
	velID := strata.RegisterComponent[Velocity](rt)

	reg := strata.NewChunkRegistry()
	part := strata.NewVoidPartition(rt)
	level := strata.NewLevel("bench", rt, reg, part, strata.LevelMain)
	em := part.GlobalEntityManager()
	for i := 0; i < 100_000; i++ {
		em.AddEntity(Position{}, Velocity{X: 1})
	}

	pool := strata.NewWorkerPool(0)
	defer pool.Close()
	services := strata.NewServiceLocator()

	move := strata.SystemFunc{
		Declared: strata.Write[Position](strata.Read[Velocity](strata.NewAccess(rt))),
		Parallel: true,
		Fn: func(ctx *strata.SystemContext) error {
			q := strata.NewQuery(ctx.Runtime).With(posID, velID)
			return strata.ForEachChunk(ctx, q, true, func(chunk *strata.Chunk) error {
				pos := strata.Column[Position](chunk)
				vel := strata.Column[Velocity](chunk)
				for r := 0; r < chunk.Count(); r++ {
					pos[r].X += vel[r].X
				}
				return nil
			})
		},
	}
	level.AddSystem(move, services, pool)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := level.Update(services, 1.0/60, pool); err != nil {
			b.Fatal(err)
		}
	}
}
