package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"gpsr-simulation/internal/eventBus"
	"gpsr-simulation/internal/mesh"
	"gpsr-simulation/internal/node"
	"gpsr-simulation/internal/routing"
)

// CreateNodePayload defines the expected JSON payload for node creation.
type CreateNodePayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type CreateNodeResponse struct {
	NodeID uint32 `json:"node_id"`
}

// CreateNodeHandler creates a new node and adds it to the network.
func CreateNodeHandler(net mesh.INetwork, bus *eventBus.EventBus, cfg node.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload CreateNodePayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		newNode := node.NewNode(net, payload.X, payload.Y, bus, cfg)
		if err := net.Join(newNode); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}

		writeJSON(w, CreateNodeResponse{NodeID: newNode.GetID()})
	}
}

// RemoveNodePayload defines the expected JSON payload for removing a node.
type RemoveNodePayload struct {
	NodeID uint32 `json:"node_id"`
}

// RemoveNodeHandler removes a node from the network.
func RemoveNodeHandler(net mesh.INetwork) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload RemoveNodePayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if _, err := net.GetNode(payload.NodeID); err != nil {
			http.Error(w, "node_id not found", http.StatusNotFound)
			return
		}

		net.Leave(payload.NodeID)
		w.Write([]byte("Node removed from the network"))
	}
}

type SendMessagePayload struct {
	SenderNodeID      uint32 `json:"node_id"`
	DestinationNodeID uint32 `json:"dest_node_id"`
	Message           string `json:"message"`
}

// SendMessageHandler originates a DATA packet. The destination's position is
// taken from the network, standing in for a location service.
func SendMessageHandler(net mesh.INetwork) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload SendMessagePayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		sender, err := net.GetNode(payload.SenderNodeID)
		if err != nil {
			http.Error(w, "Sender node_id not found", http.StatusNotFound)
			return
		}
		dest, err := net.GetNode(payload.DestinationNodeID)
		if err != nil {
			http.Error(w, "dest_node_id not found", http.StatusNotFound)
			return
		}

		if err := sender.SendData(net, dest.GetID(), dest.GetPosition(), payload.Message); err != nil {
			status := http.StatusBadGateway
			if errors.Is(err, routing.ErrNoRoute) {
				status = http.StatusServiceUnavailable
			}
			http.Error(w, err.Error(), status)
			return
		}
		w.Write([]byte("Sending Data ..."))
	}
}

type MoveNodePayload struct {
	NodeID uint32  `json:"node_id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// MoveNodeHandler moves a node; neighbors learn about it on the next beacon.
func MoveNodeHandler(net mesh.INetwork, bus *eventBus.EventBus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload MoveNodePayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		nd, err := net.GetNode(payload.NodeID)
		if err != nil {
			http.Error(w, "node_id not found", http.StatusNotFound)
			return
		}
		nd.SetPosition(mesh.CreateCoordinates(payload.X, payload.Y))

		bus.Publish(eventBus.Event{
			Type:    eventBus.EventMovedNode,
			NodeID:  payload.NodeID,
			Payload: fmt.Sprintf("Moved Node %d", payload.NodeID),
			X:       payload.X,
			Y:       payload.Y,
		})
		w.Write([]byte("Moving Node ..."))
	}
}

type NeighborView struct {
	ID       uint32  `json:"id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	LastSeen float64 `json:"last_seen"`
}

// NeighborsHandler lists the neighbor table of ?node_id=.
func NeighborsHandler(net mesh.INetwork) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		nd, ok := nodeFromQuery(w, r, net)
		if !ok {
			return
		}
		out := make([]NeighborView, 0)
		for _, rec := range nd.Neighbors() {
			out = append(out, NeighborView{ID: rec.ID, X: rec.Position.X, Y: rec.Position.Y, LastSeen: rec.LastSeen})
		}
		writeJSON(w, out)
	}
}

type NextHopResponse struct {
	NextHop    uint32 `json:"next_hop"`
	Forwarding string `json:"forwarding"`
	Steps      int    `json:"perimeter_steps,omitempty"`
}

// NextHopHandler answers ?node_id=&x=&y=&mode= with the routing decision the
// node would take right now, without sending anything.
func NextHopHandler(net mesh.INetwork) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		nd, ok := nodeFromQuery(w, r, net)
		if !ok {
			return
		}
		q := r.URL.Query()
		x, errX := strconv.ParseFloat(q.Get("x"), 64)
		y, errY := strconv.ParseFloat(q.Get("y"), 64)
		if errX != nil || errY != nil {
			http.Error(w, "x and y are required", http.StatusBadRequest)
			return
		}
		mode, err := routing.ParseMode(q.Get("mode"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		rg, ok := nd.(interface{ GetRouter() routing.IRouter })
		if !ok {
			http.Error(w, "node has no router", http.StatusInternalServerError)
			return
		}

		d, err := rg.GetRouter().Decide(mesh.CreateCoordinates(x, y).Point(), mode)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, NextHopResponse{NextHop: d.NextHop, Forwarding: d.Forwarding.String(), Steps: d.PerimeterSteps})
	}
}

func nodeFromQuery(w http.ResponseWriter, r *http.Request, net mesh.INetwork) (mesh.INode, bool) {
	id, err := strconv.ParseUint(r.URL.Query().Get("node_id"), 10, 32)
	if err != nil {
		http.Error(w, "Invalid node_id", http.StatusBadRequest)
		return nil, false
	}
	nd, err := net.GetNode(uint32(id))
	if err != nil {
		http.Error(w, "node_id not found", http.StatusNotFound)
		return nil, false
	}
	return nd, true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
