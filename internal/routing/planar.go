package routing

import (
	"fmt"
	"strings"

	"gpsr-simulation/internal/geometry"
	"gpsr-simulation/internal/neighbor"
)

// Mode selects the planar subgraph construction used by perimeter forwarding.
type Mode uint8

const (
	GG  Mode = iota // Gabriel Graph
	RNG             // Relative Neighborhood Graph
)

func (m Mode) String() string {
	switch m {
	case GG:
		return "GG"
	case RNG:
		return "RNG"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// ParseMode accepts "gg" or "rng" in any case. An empty string means GG.
func ParseMode(s string) (Mode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "GG":
		return GG, nil
	case "RNG":
		return RNG, nil
	default:
		return GG, fmt.Errorf("unknown planarization mode %q", s)
	}
}

// UnmarshalText lets a Mode be decoded straight from scenario files.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Planarize keeps the edges (self, n) that pass the mode's witness test
// against every other neighbor. The result is always recomputed from the
// given records; its order follows the input.
func Planarize(mode Mode, self geometry.Point, neighbors []neighbor.Record) []neighbor.Record {
	keep := ggEdge
	if mode == RNG {
		keep = rngEdge
	}

	out := make([]neighbor.Record, 0, len(neighbors))
	for i, n := range neighbors {
		if keep(self, i, neighbors) {
			out = append(out, n)
		}
	}
	return out
}

// rngEdge: no witness may lie in the lune of the two circles of radius
// |self-n| centred on self and n.
func rngEdge(self geometry.Point, idx int, neighbors []neighbor.Record) bool {
	n := neighbors[idx]
	mdis := geometry.Distance(self, n.Position)
	for j, o := range neighbors {
		if j == idx || o.ID == n.ID {
			continue
		}
		if geometry.Distance(self, o.Position) < mdis && geometry.Distance(n.Position, o.Position) < mdis {
			return false
		}
	}
	return true
}

// ggEdge: no witness may lie strictly inside the circle whose diameter is
// self-n.
func ggEdge(self geometry.Point, idx int, neighbors []neighbor.Record) bool {
	n := neighbors[idx]
	mid := geometry.Midpoint(self, n.Position)
	mdis := geometry.Distance(self, mid)
	for j, o := range neighbors {
		if j == idx || o.ID == n.ID {
			continue
		}
		if geometry.Distance(mid, o.Position) < mdis {
			return false
		}
	}
	return true
}
