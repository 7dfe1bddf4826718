package routing

import (
	"errors"
	"fmt"
	"math"

	"gpsr-simulation/internal/geometry"
	"gpsr-simulation/internal/neighbor"
)

var (
	// ErrNoRoute means no next hop exists; the packet should be dropped.
	ErrNoRoute = errors.New("routing: no route to destination")

	// ErrPerimeterLoop is returned when the face walk keeps switching faces
	// without settling on a next hop.
	ErrPerimeterLoop = fmt.Errorf("%w: perimeter walk did not settle", ErrNoRoute)
)

// Query is the state of a single perimeter decision.
type Query struct {
	Destination geometry.Point
	Mode        Mode
	LastHop     uint32
	HasLastHop  bool
	// Origin is where perimeter mode was entered.
	Origin geometry.Point
}

// Perimeter applies the right-hand rule on the planarized neighborhood of
// self. Each time the chosen edge crosses the Origin->Destination line the
// walk moves to the next face by treating that edge as the incoming one.
// A face switch onto an edge already used in this decision ends the walk with
// ErrPerimeterLoop. steps counts the edges examined.
func Perimeter(self geometry.Point, neighbors []neighbor.Record, q Query) (nextHop uint32, steps int, err error) {
	planar := Planarize(q.Mode, self, neighbors)
	if len(planar) == 0 {
		return 0, 0, ErrNoRoute
	}

	last, hasLast := q.LastHop, q.HasLastHop
	lastPos, known := lookup(neighbors, last)
	if hasLast && !known {
		// stale last hop: fall back to the destination bearing
		hasLast = false
	}

	crossed := make(map[uint32]bool, len(planar))
	for steps < len(planar)+1 {
		alpha := geometry.PolarAngle(self, q.Destination)
		if hasLast {
			alpha = geometry.PolarAngle(self, lastPos)
		}
		if !geometry.ValidAngle(alpha) {
			alpha = 0
		}

		chosen, found := sweep(self, planar, alpha, last, hasLast)
		steps++
		if !found {
			return 0, steps, ErrNoRoute
		}

		if len(planar) > 1 && geometry.SegmentsIntersect(self, chosen.Position, q.Origin, q.Destination) {
			if crossed[chosen.ID] {
				return 0, steps, ErrPerimeterLoop
			}
			crossed[chosen.ID] = true
			last, lastPos, hasLast = chosen.ID, chosen.Position, true
			continue
		}
		return chosen.ID, steps, nil
	}
	return 0, steps, ErrPerimeterLoop
}

// sweep picks the first planar edge met when rotating counter-clockwise from
// alpha, skipping the incoming edge and neighbors sharing self's position.
func sweep(self geometry.Point, planar []neighbor.Record, alpha float64, last uint32, hasLast bool) (neighbor.Record, bool) {
	var (
		best     neighbor.Record
		found    bool
		minDelta = math.MaxFloat64
	)
	for _, n := range planar {
		if hasLast && n.ID == last {
			continue
		}
		a := geometry.PolarAngle(self, n.Position)
		if !geometry.ValidAngle(a) {
			continue
		}
		delta := a - alpha
		if delta < 0 {
			delta += 2 * math.Pi
		}
		if delta < minDelta {
			minDelta = delta
			best = n
			found = true
		}
	}
	return best, found
}

func lookup(neighbors []neighbor.Record, id uint32) (geometry.Point, bool) {
	for _, n := range neighbors {
		if n.ID == id {
			return n.Position, true
		}
	}
	return geometry.Point{}, false
}
