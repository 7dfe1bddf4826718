package sim

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	eb "gpsr-simulation/internal/eventBus"
	"gpsr-simulation/internal/metrics"
	"gpsr-simulation/internal/network"
)

func TestRunnerLineTopology(t *testing.T) {
	sc := &Scenario{
		Duration: 600 * time.Millisecond,
		Nodes: NodeCfg{
			Placement: "explicit",
			Positions: []NodePosition{{1, 0, 0}, {2, 100, 0}, {3, 200, 0}},
		},
		Beacon:  BeaconCfg{Interval: 50 * time.Millisecond},
		Traffic: TrafficCfg{MsgPerNodePerMin: 600},
	}
	sc.applyDefaults()
	if err := sc.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	bus := eb.NewEventBus()
	net := network.NewNetwork(bus, 150)
	coll, err := metrics.NewCollector(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}

	if err := NewRunner(sc, bus, net, coll).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := coll.Snapshot()
	if got.BeaconsSent == 0 {
		t.Fatalf("no beacons recorded: %+v", got)
	}
	if got.TotalSent == 0 {
		t.Fatalf("no traffic recorded: %+v", got)
	}
	if got.TotalDelivered == 0 {
		t.Fatalf("nothing delivered on a connected line: %+v", got)
	}
	if len(net.Nodes()) != 0 {
		t.Fatalf("nodes still joined after run")
	}
}

func TestRunnerStop(t *testing.T) {
	sc := &Scenario{Duration: time.Minute, Nodes: NodeCfg{Count: 2, Placement: "grid"}}
	sc.applyDefaults()

	bus := eb.NewEventBus()
	coll, _ := metrics.NewCollector(prometheus.NewRegistry())
	r := NewRunner(sc, bus, network.NewNetwork(bus, 0), coll)

	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			return
		case <-tick.C:
			// Run may not have installed its cancel func yet
			r.Stop()
		case <-timeout:
			t.Fatalf("runner did not stop")
		}
	}
}
