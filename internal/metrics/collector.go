package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	eb "gpsr-simulation/internal/eventBus"
)

type Counters struct {
	TotalSent        uint64 `json:"total_sent"`
	TotalDelivered   uint64 `json:"total_delivered"`
	GreedyHops       uint64 `json:"greedy_hops"`
	PerimeterHops    uint64 `json:"perimeter_hops"`
	NoRoute          uint64 `json:"no_route"`
	HopLimit         uint64 `json:"hop_limit"`
	BeaconsSent      uint64 `json:"beacons_sent"`
	NeighborsExpired uint64 `json:"neighbors_expired"`
	HopSum           uint64 `json:"hop_sum"`
	HopCount         uint64 `json:"hop_samples"`
}

// DeliveryRatio is delivered over sent, or 0 before anything was sent.
func (c Counters) DeliveryRatio() float64 {
	if c.TotalSent == 0 {
		return 0
	}
	return float64(c.TotalDelivered) / float64(c.TotalSent)
}

type Collector struct {
	mu sync.Mutex
	Counters

	packets   *prometheus.CounterVec
	decisions *prometheus.CounterVec
	beacons   prometheus.Counter
	expired   prometheus.Counter
	hops      prometheus.Histogram
}

// NewCollector registers the simulation metrics against reg, defaulting to
// the global Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		packets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gpsr_packets_total",
			Help: "Data packets by outcome (sent, delivered, no_route, hop_limit).",
		}, []string{"outcome"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gpsr_forwarding_decisions_total",
			Help: "Next-hop decisions by forwarding mode.",
		}, []string{"mode"}),
		beacons: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gpsr_beacons_sent_total",
			Help: "Position beacons broadcast by all nodes.",
		}),
		expired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gpsr_neighbors_expired_total",
			Help: "Neighbor records dropped for staleness.",
		}),
		hops: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gpsr_delivery_hops",
			Help:    "Hop count of delivered data packets.",
			Buckets: prometheus.LinearBuckets(1, 1, 16),
		}),
	}
	for _, col := range []prometheus.Collector{c.packets, c.decisions, c.beacons, c.expired, c.hops} {
		if err := reg.Register(col); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return c, nil
}

// Record updates the counters for a single simulation event.
func (c *Collector) Record(ev eb.Event) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev.Type {
	case eb.EventMessageSent:
		c.TotalSent++
		c.packets.WithLabelValues("sent").Inc()
	case eb.EventMessageDelivered:
		c.TotalDelivered++
		c.packets.WithLabelValues("delivered").Inc()
		c.HopSum += uint64(ev.Hops)
		c.HopCount++
		c.hops.Observe(float64(ev.Hops))
	case eb.EventMessageForwarded:
		c.GreedyHops++
		c.decisions.WithLabelValues("greedy").Inc()
	case eb.EventPerimeterEntered:
		c.PerimeterHops++
		c.decisions.WithLabelValues("perimeter").Inc()
	case eb.EventNoRoute:
		c.NoRoute++
		c.packets.WithLabelValues("no_route").Inc()
	case eb.EventHopLimit:
		c.HopLimit++
		c.packets.WithLabelValues("hop_limit").Inc()
	case eb.EventBeaconSent:
		c.BeaconsSent++
		c.beacons.Inc()
	case eb.EventNeighborExpired:
		c.NeighborsExpired++
		c.expired.Inc()
	}
}

// Snapshot returns a copy of the plain counters.
func (c *Collector) Snapshot() Counters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Counters
}

func (c *Collector) Flush(file string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, err := os.Create(file)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c.Counters)
}
