package routing

import (
	"math/rand"
	"testing"

	"gpsr-simulation/internal/geometry"
	"gpsr-simulation/internal/neighbor"
)

func TestGreedyPicksClosestNeighbor(t *testing.T) {
	self := geometry.Pt(0, 0)
	nbrs := []neighbor.Record{rec(2, 10, 0), rec(3, 0, 10)}

	next, ok := Greedy(self, nbrs, geometry.Pt(20, 0))
	if !ok || next != 2 {
		t.Fatalf("Greedy = (%d, %v), want (2, true)", next, ok)
	}
}

func TestGreedyRequiresStrictProgress(t *testing.T) {
	self := geometry.Pt(0, 0)
	dest := geometry.Pt(10, 0)
	// 2 is exactly as far from dest as self
	nbrs := []neighbor.Record{rec(2, 10, 10), rec(3, -5, 0)}

	if next, ok := Greedy(self, nbrs, dest); ok {
		t.Fatalf("Greedy = %d, want local minimum", next)
	}
}

func TestGreedyEmptyTable(t *testing.T) {
	if _, ok := Greedy(geometry.Pt(5, 5), nil, geometry.Pt(100, 100)); ok {
		t.Fatalf("Greedy with no neighbors reported progress")
	}
}

func TestGreedyNeverMovesAway(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for trial := 0; trial < 500; trial++ {
		self := geometry.Pt(r.Float64()*50, r.Float64()*50)
		dest := geometry.Pt(r.Float64()*50, r.Float64()*50)
		var nbrs []neighbor.Record
		for i := 0; i < r.Intn(8); i++ {
			nbrs = append(nbrs, rec(uint32(i+1), r.Float64()*50, r.Float64()*50))
		}

		next, ok := Greedy(self, nbrs, dest)
		if !ok {
			continue
		}
		pos, _ := lookup(nbrs, next)
		if geometry.Distance(pos, dest) >= geometry.Distance(self, dest) {
			t.Fatalf("trial %d: greedy hop %d does not get closer to %v", trial, next, dest)
		}
	}
}
