package routing

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"gpsr-simulation/internal/geometry"
	"gpsr-simulation/internal/neighbor"
)

// IRouter is what a node needs from its routing engine.
type IRouter interface {
	// beacon and timer entry points
	UpsertNeighbor(id uint32, x, y, ts float64) error
	ExpireNeighbors(now, timeout float64) []uint32
	ClearNeighbors()

	// Called once per outbound or relayed packet
	SelectNextHop(destX, destY float64, mode Mode) (uint32, error)
	Decide(dest geometry.Point, mode Mode) (Decision, error)

	Neighbors() []neighbor.Record
	PrintRoutingTable()
}

// Forwarding is the mode a decision ended in.
type Forwarding uint8

const (
	ForwardGreedy Forwarding = iota
	ForwardPerimeter
)

func (f Forwarding) String() string {
	if f == ForwardPerimeter {
		return "perimeter"
	}
	return "greedy"
}

// Decision describes how a next hop was chosen.
type Decision struct {
	NextHop    uint32
	Forwarding Forwarding
	// PerimeterSteps is the number of edges examined by the face walk.
	PerimeterSteps int
}

// Context is a node's own identity and position.
type Context struct {
	ID       uint32
	Position geometry.Point
}

// GPSRRouter is a per-node GPSR engine.
type GPSRRouter struct {
	ownerID uint32

	posMu    sync.RWMutex
	position geometry.Point

	table *neighbor.Table
}

// NewGPSRRouter constructs a router for a specific node.
func NewGPSRRouter(ctx Context) *GPSRRouter {
	return &GPSRRouter{
		ownerID:  ctx.ID,
		position: ctx.Position,
		table:    neighbor.NewTable(ctx.ID),
	}
}

func (r *GPSRRouter) Context() Context {
	r.posMu.RLock()
	defer r.posMu.RUnlock()
	return Context{ID: r.ownerID, Position: r.position}
}

// SetPosition moves the owning node. Neighbor records are left alone; they
// age out or get refreshed by the next beacons.
func (r *GPSRRouter) SetPosition(p geometry.Point) {
	r.posMu.Lock()
	r.position = p
	r.posMu.Unlock()
}

func (r *GPSRRouter) UpsertNeighbor(id uint32, x, y, ts float64) error {
	if err := r.table.Upsert(id, geometry.Pt(x, y), ts); err != nil {
		return fmt.Errorf("node %d: upsert neighbor %d: %w", r.ownerID, id, err)
	}
	return nil
}

func (r *GPSRRouter) ExpireNeighbors(now, timeout float64) []uint32 {
	return r.table.Expire(now, timeout)
}

func (r *GPSRRouter) ClearNeighbors() {
	r.table.Clear()
}

// Neighbor returns the current record for id.
func (r *GPSRRouter) Neighbor(id uint32) (neighbor.Record, bool) {
	return r.table.Get(id)
}

func (r *GPSRRouter) Neighbors() []neighbor.Record {
	return r.table.Snapshot()
}

// SelectNextHop returns the neighbor to hand the packet to, or ErrNoRoute.
func (r *GPSRRouter) SelectNextHop(destX, destY float64, mode Mode) (uint32, error) {
	d, err := r.Decide(geometry.Pt(destX, destY), mode)
	if err != nil {
		return 0, err
	}
	return d.NextHop, nil
}

// Decide runs greedy forwarding and falls back to a perimeter walk from the
// current position when greedy is stuck. The whole decision works on one
// snapshot of the neighbor table.
func (r *GPSRRouter) Decide(dest geometry.Point, mode Mode) (Decision, error) {
	self := r.Context().Position
	snapshot := r.table.Snapshot()

	if next, ok := Greedy(self, snapshot, dest); ok {
		return Decision{NextHop: next, Forwarding: ForwardGreedy}, nil
	}

	log.Debug().
		Uint32("node", r.ownerID).
		Int("neighbors", len(snapshot)).
		Str("mode", mode.String()).
		Msg("local minimum, entering perimeter mode")

	next, steps, err := Perimeter(self, snapshot, Query{
		Destination: dest,
		Mode:        mode,
		Origin:      self,
	})
	if err != nil {
		return Decision{Forwarding: ForwardPerimeter, PerimeterSteps: steps}, err
	}
	return Decision{NextHop: next, Forwarding: ForwardPerimeter, PerimeterSteps: steps}, nil
}

// PrintRoutingTable prints the neighbor table in a nicely formatted way.
func (r *GPSRRouter) PrintRoutingTable() {
	ctx := r.Context()
	fmt.Printf("Neighbor table for node %d at (%.2f, %.2f):\n", ctx.ID, ctx.Position.X, ctx.Position.Y)
	for _, rec := range r.table.Snapshot() {
		fmt.Printf("  %d -> (%.2f, %.2f) last seen %.2f\n", rec.ID, rec.Position.X, rec.Position.Y, rec.LastSeen)
	}
}
