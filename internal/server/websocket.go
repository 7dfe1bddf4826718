package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"gpsr-simulation/internal/commands"
	"gpsr-simulation/internal/eventBus"
	"gpsr-simulation/internal/mesh"
	"gpsr-simulation/internal/node"
)

// Define a WebSocket upgrader.
var upgrader = websocket.Upgrader{
	// Allow any origin, the front end is served separately.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const writeWait = 5 * time.Second

// wsHandler upgrades the connection to WebSocket and pushes events from the EventBus.
func wsHandler(eb *eventBus.EventBus, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	eventCh := eb.Subscribe()
	defer eb.Unsubscribe(eventCh)

	// The client never sends anything useful; reading only detects the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				log.Warn().Err(err).Msg("websocket write failed")
				return
			}
		case <-closed:
			return
		}
	}
}

// Options configures the HTTP surface.
type Options struct {
	Addr     string
	Gatherer prometheus.Gatherer
	NodeCfg  node.Config
}

// NewHandler wires the websocket stream, the node API and /metrics.
func NewHandler(eb *eventBus.EventBus, net mesh.INetwork, opts Options) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		wsHandler(eb, w, r)
	})

	mux.HandleFunc("/nodeAPI/create", commands.CreateNodeHandler(net, eb, opts.NodeCfg))
	mux.HandleFunc("/nodeAPI/remove", commands.RemoveNodeHandler(net))
	mux.HandleFunc("/nodeAPI/sendMessage", commands.SendMessageHandler(net))
	mux.HandleFunc("/nodeAPI/move", commands.MoveNodeHandler(net, eb))
	mux.HandleFunc("/nodeAPI/neighbors", commands.NeighborsHandler(net))
	mux.HandleFunc("/nodeAPI/nextHop", commands.NextHopHandler(net))

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return mux
}

// StartServer serves until ctx is cancelled.
func StartServer(ctx context.Context, eb *eventBus.EventBus, net mesh.INetwork, opts Options) error {
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}
	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           NewHandler(eb, net, opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", opts.Addr).Msg("server started")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
