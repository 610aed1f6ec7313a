// Profiling:
// go build ./profile/iterate
// go tool pprof -http=":8000" -nodefraction=0.001 ./iterate cpu.pprof

package main

import (
	"github.com/pkg/profile"
	strata "github.com/strata-ecs/strata"
)

type position struct {
	X, Y, Z float32
}

type velocity struct {
	X, Y, Z float32
}

func main() {
	p := profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook)
	run(1000, 100_000)
	p.Stop()
}

func run(frames, numEntities int) {
	rt := strata.NewRuntime(strata.RuntimeOptions{})
	posID := strata.RegisterComponent[position](rt)
	velID := strata.RegisterComponent[velocity](rt)
	em := strata.NewEntityManager(rt)
	for i := 0; i < numEntities; i++ {
		em.AddEntity(position{}, velocity{X: 1, Y: 2, Z: 3})
	}

	query := strata.NewQuery(rt).With(posID, velID)
	for range frames {
		for _, chunk := range query.MatchingChunks(em) {
			pos := strata.Column[position](chunk)
			vel := strata.Column[velocity](chunk)
			for r := 0; r < chunk.Count(); r++ {
				pos[r].X += vel[r].X
				pos[r].Y += vel[r].Y
				pos[r].Z += vel[r].Z
			}
		}
	}
}
