// Package ingest reads venue order book snapshots and turns them into
// exchange accounts.
package ingest

import "github.com/pkg/errors"

var (
	ErrSourceNotFound   = errors.New("snapshot source not found")
	ErrMalformedArchive = errors.New("malformed snapshot archive")
	ErrMalformedRecord  = errors.New("malformed snapshot record")
)
