// Package storage journals completed allocations. The journal is an audit
// trail only; balances are never restored from it.
package storage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"

	"github.com/uhyunpark/metaexchange/pkg/app/core/allocation"
	"github.com/uhyunpark/metaexchange/pkg/util"
)

// Journal is a pebble-backed Store
type Journal struct {
	db    *pebble.DB
	clock util.Clock

	mu      sync.Mutex // serializes sequence assignment
	lastSeq uint64
}

// OpenJournal opens or creates a journal at path and resumes its sequence
// from the last stored record.
func OpenJournal(path string, clock util.Clock) (*Journal, error) {
	if clock == nil {
		clock = util.RealClock{}
	}
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	j := &Journal{db: db, clock: clock}
	if j.lastSeq, err = j.loadLastSeq(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) Close() error { return j.db.Close() }

func (j *Journal) newIter() (*pebble.Iterator, error) {
	prefix := []byte(prefixRecord)
	return j.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
}

func (j *Journal) loadLastSeq() (uint64, error) {
	iter, err := j.newIter()
	if err != nil {
		return 0, fmt.Errorf("scan journal: %w", err)
	}
	defer iter.Close()

	if !iter.Last() {
		return 0, nil
	}
	return seqFromKey(iter.Key())
}

// Append stores res under the next sequence number
func (j *Journal) Append(res allocation.Result) (Record, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rec := newRecord(res, j.lastSeq+1, j.clock.Now())
	val, err := encodeRecord(rec)
	if err != nil {
		return Record{}, fmt.Errorf("failed to marshal record: %w", err)
	}

	b := j.db.NewBatch()
	defer b.Close()
	if err := b.Set(recordKey(rec.Seq), val, nil); err != nil {
		return Record{}, fmt.Errorf("failed to stage record: %w", err)
	}
	if err := b.Set(idKey(rec.ID), seqBytes(rec.Seq), nil); err != nil {
		return Record{}, fmt.Errorf("failed to stage record index: %w", err)
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return Record{}, fmt.Errorf("failed to save record: %w", err)
	}

	j.lastSeq = rec.Seq
	return rec, nil
}

// Get loads one record by id
func (j *Journal) Get(id uuid.UUID) (Record, error) {
	seq, closer, err := j.db.Get(idKey(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return Record{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to get record index: %w", err)
	}
	key := append([]byte(prefixRecord), seq...)
	closer.Close()

	data, closer, err := j.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return Record{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to get record: %w", err)
	}
	defer closer.Close()

	rec, err := decodeRecord(data)
	if err != nil {
		return Record{}, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return rec, nil
}

// Recent returns up to limit records, newest first. limit <= 0 returns all.
func (j *Journal) Recent(limit int) ([]Record, error) {
	iter, err := j.newIter()
	if err != nil {
		return nil, fmt.Errorf("scan journal: %w", err)
	}
	defer iter.Close()

	var out []Record
	for iter.Last(); iter.Valid() && (limit <= 0 || len(out) < limit); iter.Prev() {
		rec, err := decodeRecord(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal record %x: %w", iter.Key(), err)
		}
		out = append(out, rec)
	}
	return out, iter.Error()
}

var _ Store = (*Journal)(nil)
