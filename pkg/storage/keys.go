package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// Key schema:
//
//	alloc:<8-byte big-endian seq> → Record (JSON)
//	id:<16-byte uuid>             → 8-byte big-endian seq
//
// Big-endian sequence numbers keep records in append order under pebble's
// bytewise comparer.
const (
	prefixRecord = "alloc:"
	prefixID     = "id:"
)

func seqBytes(seq uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], seq)
	return k[:]
}

func recordKey(seq uint64) []byte {
	return append([]byte(prefixRecord), seqBytes(seq)...)
}

func idKey(id uuid.UUID) []byte {
	return append([]byte(prefixID), id[:]...)
}

// seqFromKey parses a record key back to its sequence number
func seqFromKey(key []byte) (uint64, error) {
	if len(key) != len(prefixRecord)+8 || string(key[:len(prefixRecord)]) != prefixRecord {
		return 0, fmt.Errorf("not a record key: %q", key)
	}
	return binary.BigEndian.Uint64(key[len(prefixRecord):]), nil
}

// keyUpperBound returns the exclusive upper bound for a prefix scan
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
