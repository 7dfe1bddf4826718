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
	"gpsr-simulation/internal/network"
	"gpsr-simulation/internal/sim"
	"gpsr-simulation/internal/utils"
)

func main() {
	cfg := flag.String("scenario", "scenario.yaml", "YAML or JSON scenario description")
	logDir := flag.String("logs", "logs", "directory for the run log")
	monitor := flag.Duration("monitor", 0, "log resource usage at this interval (0 disables)")
	flag.Parse()

	if err := os.MkdirAll(*logDir, 0755); err != nil {
		log.Fatal().Err(err).Msg("failed to create logs directory")
	}

	// Create log file with timestamp in name
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	logFile, err := os.OpenFile(*logDir+"/log_"+timestamp+".log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open log file")
	}
	defer logFile.Close()

	console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05.000000"}
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(console, logFile)).With().Timestamp().Logger()

	sc, err := sim.LoadScenario(*cfg)
	if err != nil {
		log.Fatal().Err(err).Str("file", *cfg).Msg("scenario")
	}
	if sc.Logging.Level != "" {
		lvl, err := zerolog.ParseLevel(sc.Logging.Level)
		if err != nil {
			log.Fatal().Err(err).Msg("scenario log level")
		}
		zerolog.SetGlobalLevel(lvl)
	}

	log.Info().
		Str("scenario", *cfg).
		Int("nodes", sc.Nodes.Count).
		Str("planarization", sc.Routing.Planarization.String()).
		Dur("duration", sc.Duration).
		Msg("starting simulation")

	bus := eb.NewEventBus()
	net := network.NewNetwork(bus, sc.Radio.Range)
	coll, err := metrics.NewCollector(prometheus.NewRegistry())
	if err != nil {
		log.Fatal().Err(err).Msg("metrics")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	if *monitor > 0 {
		utils.MonitorResources(ctx, *monitor)
	}

	runner := sim.NewRunner(sc, bus, net, coll)
	if err := runner.Run(ctx); err != nil {
		log.Error().Err(err).Msg("runner stopped with error")
	}
	if ctx.Err() != nil {
		log.Warn().Msg("received signal: shut down early")
	}

	// always flush metrics before exit
	if err := coll.Flush(sc.Logging.MetricsFile); err != nil {
		log.Error().Err(err).Msg("flush metrics")
		return
	}
	c := coll.Snapshot()
	log.Info().
		Uint64("sent", c.TotalSent).
		Uint64("delivered", c.TotalDelivered).
		Float64("delivery_ratio", c.DeliveryRatio()).
		Str("file", sc.Logging.MetricsFile).
		Msg("run complete, stats written")
}
