package routing

import (
	"errors"
	"testing"

	"gpsr-simulation/internal/geometry"
)

func TestSelectNextHopGreedy(t *testing.T) {
	r := NewGPSRRouter(Context{ID: 1, Position: geometry.Pt(0, 0)})
	if err := r.UpsertNeighbor(2, 10, 0, 0); err != nil {
		t.Fatalf("UpsertNeighbor: %v", err)
	}
	if err := r.UpsertNeighbor(3, 0, 10, 0); err != nil {
		t.Fatalf("UpsertNeighbor: %v", err)
	}

	next, err := r.SelectNextHop(20, 0, GG)
	if err != nil {
		t.Fatalf("SelectNextHop: %v", err)
	}
	if next != 2 {
		t.Fatalf("next = %d, want 2", next)
	}
}

func TestSelectNextHopEmptyTable(t *testing.T) {
	r := NewGPSRRouter(Context{ID: 1, Position: geometry.Pt(5, 5)})
	for _, mode := range []Mode{GG, RNG} {
		if _, err := r.SelectNextHop(100, 100, mode); !errors.Is(err, ErrNoRoute) {
			t.Fatalf("%s: err = %v, want ErrNoRoute", mode, err)
		}
	}
}

func TestDecideFallsBackToPerimeter(t *testing.T) {
	r := NewGPSRRouter(Context{ID: 1, Position: geometry.Pt(0, 0)})
	_ = r.UpsertNeighbor(2, -5, 0, 0)
	_ = r.UpsertNeighbor(3, 0, -5, 0)

	d, err := r.Decide(geometry.Pt(20, 0), RNG)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.Forwarding != ForwardPerimeter {
		t.Fatalf("forwarding = %s, want perimeter", d.Forwarding)
	}
	if d.NextHop != 2 {
		t.Fatalf("next = %d, want 2", d.NextHop)
	}
}

func TestRouterRejectsSelfBeacon(t *testing.T) {
	r := NewGPSRRouter(Context{ID: 4, Position: geometry.Pt(0, 0)})
	if err := r.UpsertNeighbor(4, 1, 1, 0); err == nil {
		t.Fatalf("UpsertNeighbor(self) returned no error")
	}
}

func TestRouterExpireAndClear(t *testing.T) {
	r := NewGPSRRouter(Context{ID: 1})
	_ = r.UpsertNeighbor(7, 1, 1, 0)

	if removed := r.ExpireNeighbors(15, 20); len(removed) != 0 {
		t.Fatalf("ExpireNeighbors(15) removed %v", removed)
	}
	if removed := r.ExpireNeighbors(25, 20); len(removed) != 1 || removed[0] != 7 {
		t.Fatalf("ExpireNeighbors(25) removed %v, want [7]", removed)
	}

	_ = r.UpsertNeighbor(8, 1, 1, 30)
	r.ClearNeighbors()
	if n := len(r.Neighbors()); n != 0 {
		t.Fatalf("neighbors after clear = %d, want 0", n)
	}
}

func TestSetPositionAffectsDecisions(t *testing.T) {
	r := NewGPSRRouter(Context{ID: 1, Position: geometry.Pt(0, 0)})
	_ = r.UpsertNeighbor(2, 10, 0, 0)

	if next, err := r.SelectNextHop(20, 0, GG); err != nil || next != 2 {
		t.Fatalf("SelectNextHop = (%d, %v), want (2, nil)", next, err)
	}

	// next to the destination 2 is no longer an improvement; it is the only
	// planar neighbor, so the perimeter walk still picks it
	r.SetPosition(geometry.Pt(19, 0))
	d, err := r.Decide(geometry.Pt(20, 0), GG)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.Forwarding != ForwardPerimeter || d.NextHop != 2 {
		t.Fatalf("decision = %+v, want perimeter via 2", d)
	}
}
