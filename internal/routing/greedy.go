package routing

import (
	"gpsr-simulation/internal/geometry"
	"gpsr-simulation/internal/neighbor"
)

// Greedy returns the neighbor closest to dest, provided it is strictly closer
// than self. ok is false at a local minimum, including an empty neighborhood.
func Greedy(self geometry.Point, neighbors []neighbor.Record, dest geometry.Point) (nextHop uint32, ok bool) {
	best := geometry.Distance(self, dest)
	for _, n := range neighbors {
		if d := geometry.Distance(n.Position, dest); d < best {
			best = d
			nextHop = n.ID
			ok = true
		}
	}
	return nextHop, ok
}
