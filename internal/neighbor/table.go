package neighbor

import (
	"errors"
	"sync"

	"gpsr-simulation/internal/geometry"
)

// DefaultTimeout is how long a neighbor survives without a fresh beacon.
const DefaultTimeout = 20.0

// ErrSelfNeighbor is returned when a node is asked to record itself.
var ErrSelfNeighbor = errors.New("neighbor: node cannot be its own neighbor")

// Record is what a node knows about one of its one-hop neighbors.
type Record struct {
	ID       uint32
	Position geometry.Point
	LastSeen float64
}

// Table holds the one-hop neighbors observed by a single node.
type Table struct {
	ownerID uint32

	mu      sync.RWMutex
	records map[uint32]Record
}

func NewTable(ownerID uint32) *Table {
	return &Table{
		ownerID: ownerID,
		records: make(map[uint32]Record),
	}
}

// Upsert inserts a neighbor or refreshes its position and timestamp.
func (t *Table) Upsert(id uint32, pos geometry.Point, ts float64) error {
	if id == t.ownerID {
		return ErrSelfNeighbor
	}
	t.mu.Lock()
	t.records[id] = Record{ID: id, Position: pos, LastSeen: ts}
	t.mu.Unlock()
	return nil
}

// Expire drops every record last seen more than timeout before now and
// returns the ids it removed.
func (t *Table) Expire(now, timeout float64) []uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()

	var removed []uint32
	for id, rec := range t.records {
		if now-rec.LastSeen > timeout {
			delete(t.records, id)
			removed = append(removed, id)
		}
	}
	return removed
}

// Clear empties the table, used when the owner rebuilds its neighborhood from
// a fresh position snapshot.
func (t *Table) Clear() {
	t.mu.Lock()
	t.records = make(map[uint32]Record)
	t.mu.Unlock()
}

// Get returns the record for id, if present.
func (t *Table) Get(id uint32) (Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[id]
	return rec, ok
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}

// Snapshot copies the current records. Later mutations of the table are not
// visible through the returned slice. Order is unspecified.
func (t *Table) Snapshot() []Record {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Record, 0, len(t.records))
	for _, rec := range t.records {
		out = append(out, rec)
	}
	return out
}
