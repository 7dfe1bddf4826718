package mesh

import "testing"

func TestCoordinatesDistance(t *testing.T) {
	a := CreateCoordinates(0, 0)
	b := CreateCoordinates(6, 8)
	if d := a.DistanceTo(b); d != 10 {
		t.Fatalf("DistanceTo = %v, want 10", d)
	}
	if !a.Equals(CreateCoordinates(0, 0)) || a.Equals(b) {
		t.Fatalf("Equals mismatch")
	}
}
