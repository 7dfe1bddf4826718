package sim

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"gpsr-simulation/internal/neighbor"
	"gpsr-simulation/internal/network"
	"gpsr-simulation/internal/packet"
	"gpsr-simulation/internal/routing"
)

type NodePosition struct {
	ID uint32  `yaml:"id" json:"id"`
	X  float64 `yaml:"x" json:"x"`
	Y  float64 `yaml:"y" json:"y"`
}

type NodeCfg struct {
	Count     int            `yaml:"count" json:"count"`
	Placement string         `yaml:"placement" json:"placement"` // uniform | grid | explicit
	Positions []NodePosition `yaml:"positions" json:"positions"`
	JoinDelay time.Duration  `yaml:"join_delay" json:"join_delay"`
}

type RadioCfg struct {
	Range float64 `yaml:"range" json:"range"`
}

type RoutingCfg struct {
	Planarization   routing.Mode `yaml:"planarization" json:"planarization"`
	NeighborTimeout float64      `yaml:"neighbor_timeout" json:"neighbor_timeout"` // seconds
	MaxHops         uint8        `yaml:"max_hops" json:"max_hops"`
}

type BeaconCfg struct {
	Interval       time.Duration `yaml:"interval" json:"interval"`
	ExpiryInterval time.Duration `yaml:"expiry_interval" json:"expiry_interval"`
}

type TrafficCfg struct {
	MsgPerNodePerMin float64 `yaml:"msg_per_node_per_min" json:"msg_per_node_per_min"`
	Payload          string  `yaml:"payload" json:"payload"`
}

type LogCfg struct {
	MetricsFile string `yaml:"metrics_file" json:"metrics_file"`
	Level       string `yaml:"level" json:"level"`
}

type Scenario struct {
	Duration     time.Duration `yaml:"duration" json:"duration"`
	Seed         int64         `yaml:"seed" json:"seed"`
	AreaSide     float64       `yaml:"area_side" json:"area_side"`
	Nodes        NodeCfg       `yaml:"nodes" json:"nodes"`
	Radio        RadioCfg      `yaml:"radio" json:"radio"`
	Routing      RoutingCfg    `yaml:"routing" json:"routing"`
	Beacon       BeaconCfg     `yaml:"beacon" json:"beacon"`
	StartupDelay time.Duration `yaml:"startup_delay" json:"startup_delay"`
	Traffic      TrafficCfg    `yaml:"traffic" json:"traffic"`
	Logging      LogCfg        `yaml:"logging" json:"logging"`
}

func LoadScenario(path string) (*Scenario, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sc := &Scenario{}
	if yerr := yaml.Unmarshal(f, sc); yerr != nil {
		// fallback JSON
		sc = &Scenario{}
		if err := decodeJSON(f, sc); err != nil {
			return nil, fmt.Errorf("parse scenario %s: %w", path, err)
		}
	}
	sc.applyDefaults()
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return sc, nil
}

// decodeJSON re-encodes a JSON document as YAML before decoding, so
// durations are written as strings like "30s" in both formats.
func decodeJSON(data []byte, sc *Scenario) error {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	y, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(y, sc)
}

func (sc *Scenario) applyDefaults() {
	if sc.Duration <= 0 {
		sc.Duration = 30 * time.Second
	}
	if sc.AreaSide <= 0 {
		sc.AreaSide = 1000
	}
	if sc.Nodes.Placement == "" {
		sc.Nodes.Placement = "uniform"
		if len(sc.Nodes.Positions) > 0 {
			sc.Nodes.Placement = "explicit"
		}
	}
	if sc.Nodes.Placement == "explicit" {
		sc.Nodes.Count = len(sc.Nodes.Positions)
	}
	if sc.Radio.Range <= 0 {
		sc.Radio.Range = network.DefaultRange
	}
	if sc.Routing.NeighborTimeout <= 0 {
		sc.Routing.NeighborTimeout = neighbor.DefaultTimeout
	}
	if sc.Routing.MaxHops == 0 {
		sc.Routing.MaxHops = packet.MAX_HOPS
	}
	if sc.Beacon.Interval <= 0 {
		sc.Beacon.Interval = time.Second
	}
	if sc.Beacon.ExpiryInterval <= 0 {
		sc.Beacon.ExpiryInterval = sc.Beacon.Interval
	}
	if sc.Traffic.Payload == "" {
		sc.Traffic.Payload = "hello"
	}
	if sc.Logging.MetricsFile == "" {
		sc.Logging.MetricsFile = "stats.json"
	}
}

// Validate reports settings the runner cannot work with.
func (sc *Scenario) Validate() error {
	switch sc.Nodes.Placement {
	case "uniform", "grid", "explicit":
	default:
		return fmt.Errorf("unknown placement %q", sc.Nodes.Placement)
	}
	if sc.Nodes.Count <= 0 {
		return fmt.Errorf("scenario needs at least one node")
	}
	seen := make(map[uint32]bool, len(sc.Nodes.Positions))
	for _, p := range sc.Nodes.Positions {
		if seen[p.ID] {
			return fmt.Errorf("duplicate node id %d", p.ID)
		}
		seen[p.ID] = true
	}
	return nil
}
