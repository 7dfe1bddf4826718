package utils

import "testing"

func TestReadResourceUsage(t *testing.T) {
	u := ReadResourceUsage()
	if u.Goroutines < 1 {
		t.Fatalf("goroutines = %d", u.Goroutines)
	}
	if u.HeapAllocKB <= 0 || u.HeapObjects == 0 {
		t.Fatalf("heap stats not populated: %+v", u)
	}
}
