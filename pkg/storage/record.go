package storage

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/uhyunpark/metaexchange/pkg/app/core/allocation"
	"github.com/uhyunpark/metaexchange/pkg/app/core/orderbook"
)

var ErrRecordNotFound = errors.New("allocation record not found")

// Record is the journaled form of one allocation
type Record struct {
	ID        uuid.UUID             `json:"id"`
	Seq       uint64                `json:"seq"`
	At        time.Time             `json:"at"`
	Side      orderbook.Side        `json:"side"`
	Requested decimal.Decimal       `json:"requested"`
	Filled    decimal.Decimal       `json:"filled"`
	Unfilled  decimal.Decimal       `json:"unfilled"`
	Notional  decimal.Decimal       `json:"notional"`
	Digest    string                `json:"digest"`
	Fills     []allocation.FillView `json:"fills"`
}

func newRecord(res allocation.Result, seq uint64, at time.Time) Record {
	return Record{
		ID:        uuid.New(),
		Seq:       seq,
		At:        at.UTC(),
		Side:      res.Side,
		Requested: res.Requested,
		Filled:    res.Filled,
		Unfilled:  res.Unfilled,
		Notional:  res.Notional,
		Digest:    res.Digest,
		Fills:     allocation.Views(res.Fills),
	}
}

func encodeRecord(r Record) ([]byte, error) { return json.Marshal(r) }

func decodeRecord(b []byte) (Record, error) {
	var r Record
	err := json.Unmarshal(b, &r)
	return r, err
}

// Store is what the API reads and the exchange hook writes
type Store interface {
	Append(allocation.Result) (Record, error)
	Get(id uuid.UUID) (Record, error)
	Recent(limit int) ([]Record, error)
	Close() error
}
