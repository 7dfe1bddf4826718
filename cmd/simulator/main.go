package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	eb "gpsr-simulation/internal/eventBus"
	"gpsr-simulation/internal/metrics"
	"gpsr-simulation/internal/mqtt"
	"gpsr-simulation/internal/network"
	"gpsr-simulation/internal/node"
	"gpsr-simulation/internal/routing"
	"gpsr-simulation/internal/server"
	"gpsr-simulation/internal/utils"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	radioRange := flag.Float64("range", network.DefaultRange, "radio range")
	planar := flag.String("planarization", "GG", "perimeter planarization: RNG or GG")
	beaconEvery := flag.Duration("beacon", 5*time.Second, "beacon interval")
	expireEvery := flag.Duration("expire", time.Second, "neighbor expiry sweep interval")
	timeout := flag.Float64("neighbor-timeout", 20, "seconds before a silent neighbor is dropped")
	broker := flag.String("mqtt", "", "MQTT broker URL for device beacons (empty disables)")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	mode, err := routing.ParseMode(*planar)
	if err != nil {
		log.Fatal().Err(err).Msg("planarization")
	}
	nodeCfg := node.Config{Planarization: mode, NeighborTimeout: *timeout}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := eb.NewEventBus()
	net := network.NewNetwork(bus, *radioRange)
	go net.Run()
	defer func() {
		net.LeaveAll()
		net.Close()
	}()

	reg := prometheus.NewRegistry()
	coll, err := metrics.NewCollector(reg)
	if err != nil {
		log.Fatal().Err(err).Msg("metrics")
	}
	events := bus.Subscribe()
	go func() {
		for ev := range events {
			coll.Record(ev)
		}
	}()

	if *broker != "" {
		m, err := mqtt.New(*broker, "gpsr-simulator")
		if err != nil {
			log.Fatal().Err(err).Msg("mqtt")
		}
		defer m.Disconnect()
		if err := m.Bridge(net, bus, nodeCfg); err != nil {
			log.Fatal().Err(err).Msg("mqtt bridge")
		}
	}

	go schedule(ctx, *beaconEvery, func() {
		for _, n := range net.Nodes() {
			n.BroadcastBeacon(net)
		}
	})
	go schedule(ctx, *expireEvery, func() {
		for _, n := range net.Nodes() {
			n.ExpireNeighbors()
		}
	})
	if *debug {
		utils.MonitorResources(ctx, 30*time.Second)
	}

	if err := server.StartServer(ctx, bus, net, server.Options{Addr: *addr, Gatherer: reg, NodeCfg: nodeCfg}); err != nil {
		log.Fatal().Err(err).Msg("server")
	}
	log.Info().Msg("shutting down simulation")
}

func schedule(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}
