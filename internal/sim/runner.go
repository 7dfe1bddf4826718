package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	eb "gpsr-simulation/internal/eventBus"
	"gpsr-simulation/internal/mesh"
	"gpsr-simulation/internal/metrics"
	"gpsr-simulation/internal/network"
	"gpsr-simulation/internal/node"
)

// Runner plays the external scheduler: it places nodes, triggers beacons
// and expiry sweeps on fixed cadences and injects traffic.
type Runner struct {
	sc   *Scenario
	bus  *eb.EventBus
	net  *network.NetworkImpl
	coll *metrics.Collector
	rng  *rand.Rand

	start time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewRunner(sc *Scenario, bus *eb.EventBus, net *network.NetworkImpl, coll *metrics.Collector) *Runner {
	return &Runner{sc: sc, bus: bus, net: net, coll: coll, rng: rand.New(rand.NewSource(sc.Seed))}
}

// Clock returns seconds since the run started.
func (r *Runner) Clock() float64 {
	return time.Since(r.start).Seconds()
}

// Run blocks until the scenario duration elapses, ctx is cancelled or Stop
// is called.
func (r *Runner) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.sc.Duration)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
	defer cancel()

	r.start = time.Now()
	go r.net.Run()
	defer r.net.Close()

	sub := r.bus.Subscribe()
	defer r.bus.Unsubscribe(sub)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.consumeEvents(ctx, sub) })

	if err := r.placeNodes(ctx); err != nil {
		return err
	}

	if d := r.sc.StartupDelay; d > 0 {
		log.Info().Dur("delay", d).Msg("waiting before traffic")
		select {
		case <-time.After(d):
		case <-ctx.Done():
		}
	}

	g.Go(func() error {
		return every(ctx, r.sc.Beacon.Interval, func() {
			for _, n := range r.net.Nodes() {
				n.BroadcastBeacon(r.net)
			}
		})
	})
	g.Go(func() error {
		return every(ctx, r.sc.Beacon.ExpiryInterval, func() {
			for _, n := range r.net.Nodes() {
				n.ExpireNeighbors()
			}
		})
	})
	if rate := r.sc.Traffic.MsgPerNodePerMin; rate > 0 {
		perSec := rate / 60.0 * float64(r.sc.Nodes.Count)
		interval := time.Duration(float64(time.Second) / perSec)
		g.Go(func() error { return every(ctx, interval, r.emitRandomTraffic) })
	}

	err := g.Wait()
	r.net.LeaveAll()
	r.drain(sub)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Stop asks a running scenario to wind down.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
	}
}

func every(ctx context.Context, interval time.Duration, fn func()) error {
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
			fn()
		}
	}
}

func (r *Runner) nodeConfig() node.Config {
	return node.Config{
		Planarization:   r.sc.Routing.Planarization,
		NeighborTimeout: r.sc.Routing.NeighborTimeout,
		MaxHops:         r.sc.Routing.MaxHops,
		Clock:           r.Clock,
	}
}

func (r *Runner) placeNodes(ctx context.Context) error {
	for _, p := range r.positions() {
		if err := r.net.Join(node.NewNodeWithID(p.ID, p.X, p.Y, r.bus, r.nodeConfig())); err != nil {
			if errors.Is(err, network.ErrClosed) {
				return nil
			}
			return fmt.Errorf("place node %d: %w", p.ID, err)
		}
		if d := r.sc.Nodes.JoinDelay; d > 0 {
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return nil
			}
		}
	}
	return nil
}

// positions lays out the scenario's nodes. IDs start at 1.
func (r *Runner) positions() []NodePosition {
	switch r.sc.Nodes.Placement {
	case "explicit":
		return r.sc.Nodes.Positions
	case "grid":
		return gridPositions(r.sc.Nodes.Count, r.sc.AreaSide)
	default:
		out := make([]NodePosition, 0, r.sc.Nodes.Count)
		for i := 0; i < r.sc.Nodes.Count; i++ {
			out = append(out, NodePosition{
				ID: uint32(i + 1),
				X:  r.rng.Float64() * r.sc.AreaSide,
				Y:  r.rng.Float64() * r.sc.AreaSide,
			})
		}
		return out
	}
}

func gridPositions(count int, side float64) []NodePosition {
	rows := int(math.Ceil(math.Sqrt(float64(count))))
	cols := rows
	step := side
	if rows > 1 {
		step = side / float64(rows-1)
	}

	out := make([]NodePosition, 0, count)
	for row := 0; row < rows && len(out) < count; row++ {
		for col := 0; col < cols && len(out) < count; col++ {
			out = append(out, NodePosition{
				ID: uint32(len(out) + 1),
				X:  float64(col) * step,
				Y:  float64(row) * step,
			})
		}
	}
	return out
}

func (r *Runner) consumeEvents(ctx context.Context, ch chan eb.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			r.coll.Record(ev)
		}
	}
}

// drain records events still queued when the run ends.
func (r *Runner) drain(ch chan eb.Event) {
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			r.coll.Record(ev)
		default:
			return
		}
	}
}

func (r *Runner) emitRandomTraffic() {
	nodes := r.net.Nodes()
	if len(nodes) < 2 {
		return
	}
	from := nodes[r.rng.Intn(len(nodes))]
	to := nodes[r.rng.Intn(len(nodes))]
	if from.GetID() == to.GetID() {
		return
	}
	send(r.net, from, to, r.sc.Traffic.Payload)
}

func send(net mesh.INetwork, from, to mesh.INode, payload string) {
	if err := from.SendData(net, to.GetID(), to.GetPosition(), payload); err != nil {
		log.Debug().Err(err).Uint32("from", from.GetID()).Uint32("to", to.GetID()).Msg("send failed")
	}
}
