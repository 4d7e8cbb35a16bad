package storage

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/uhyunpark/metaexchange/pkg/app/core/allocation"
	"github.com/uhyunpark/metaexchange/pkg/util"
)

// MemoryJournal keeps records in process memory. Selected with the
// ":memory:" journal path and used by tests.
type MemoryJournal struct {
	mu      sync.Mutex
	clock   util.Clock
	records []Record
	byID    map[uuid.UUID]int
}

func NewMemoryJournal(clock util.Clock) *MemoryJournal {
	if clock == nil {
		clock = util.RealClock{}
	}
	return &MemoryJournal{clock: clock, byID: make(map[uuid.UUID]int)}
}

func (m *MemoryJournal) Append(res allocation.Result) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := newRecord(res, uint64(len(m.records))+1, m.clock.Now())
	m.byID[rec.ID] = len(m.records)
	m.records = append(m.records, rec)
	return rec, nil
}

func (m *MemoryJournal) Get(id uuid.UUID) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.byID[id]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	return m.records[i], nil
}

func (m *MemoryJournal) Recent(limit int) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Record
	for i := len(m.records) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, m.records[i])
	}
	return out, nil
}

func (m *MemoryJournal) Close() error { return nil }

// MemoryPath selects MemoryJournal in Open
const MemoryPath = ":memory:"

// Open returns the Store for path: nil for "", MemoryJournal for
// MemoryPath, a pebble Journal otherwise.
func Open(path string, clock util.Clock) (Store, error) {
	switch path {
	case "":
		return nil, nil
	case MemoryPath:
		return NewMemoryJournal(clock), nil
	default:
		return OpenJournal(path, clock)
	}
}

var _ Store = (*MemoryJournal)(nil)
