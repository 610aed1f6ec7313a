// Profiling:
// go build ./profile/entities
// go tool pprof -http=":8000" -nodefraction=0.001 ./entities mem.pprof

package main

import (
	"github.com/pkg/profile"
	strata "github.com/strata-ecs/strata"
)

type comp1 struct {
	V int64
	W int64
}

type comp2 struct {
	V int64
	W int64
}

func main() {
	rounds := 50
	iters := 200
	entities := 1000
	p := profile.Start(profile.MemProfileAllocs, profile.ProfilePath("."), profile.NoShutdownHook)
	run(rounds, iters, entities)
	p.Stop()
}

func run(rounds, iters, numEntities int) {
	for range rounds {
		rt := strata.NewRuntime(strata.RuntimeOptions{})
		c1 := strata.RegisterComponent[comp1](rt)
		c2 := strata.RegisterComponent[comp2](rt)
		em := strata.NewEntityManager(rt)
		query := strata.NewQuery(rt).With(c1, c2)

		for range iters {
			for i := 0; i < numEntities; i++ {
				em.AddEntity(comp1{V: 1}, comp2{V: 2})
			}
			cursor := strata.NewCursor(query, em)
			ids := make([]strata.EntityID, 0, numEntities)
			for cursor.Next() {
				a := strata.GetFromCursor[comp1](cursor)
				b := strata.GetFromCursor[comp2](cursor)
				a.V += b.V
				a.W += b.W
				ids = append(ids, cursor.CurrentEntity())
			}
			for _, id := range ids {
				em.Destroy(id)
			}
		}
	}
}
