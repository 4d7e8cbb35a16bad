package storage

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/metaexchange/pkg/app/core/account"
	"github.com/uhyunpark/metaexchange/pkg/app/core/allocation"
	"github.com/uhyunpark/metaexchange/pkg/app/core/orderbook"
	"github.com/uhyunpark/metaexchange/pkg/util"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func buyResult(qty string) allocation.Result {
	book := &orderbook.OrderBook{Asks: []orderbook.Order{
		{ID: "a0", Side: orderbook.Sell, Price: decimal.NewFromInt(3040), Quantity: decimal.NewFromInt(3)},
		{Side: orderbook.Sell, Price: decimal.NewFromInt(3050), Quantity: decimal.NewFromInt(2)},
	}}
	acc := account.NewExchangeAccount(1, decimal.NewFromInt(100000), decimal.Zero, book)
	return allocation.Allocate(orderbook.Buy, []*account.ExchangeAccount{acc}, decimal.RequireFromString(qty))
}

// stores runs a test against both Store implementations
func stores(t *testing.T, fn func(t *testing.T, s Store, clock *util.ManualClock)) {
	t.Run("pebble", func(t *testing.T) {
		clock := util.NewManualClock(epoch)
		j, err := OpenJournal(filepath.Join(t.TempDir(), "journal"), clock)
		require.NoError(t, err)
		defer j.Close()
		fn(t, j, clock)
	})
	t.Run("memory", func(t *testing.T) {
		clock := util.NewManualClock(epoch)
		fn(t, NewMemoryJournal(clock), clock)
	})
}

func TestAppendAndGet(t *testing.T) {
	stores(t, func(t *testing.T, s Store, clock *util.ManualClock) {
		res := buyResult("4")
		rec, err := s.Append(res)
		require.NoError(t, err)

		assert.Equal(t, uint64(1), rec.Seq)
		assert.NotEqual(t, uuid.Nil, rec.ID)
		assert.True(t, rec.At.Equal(epoch))
		assert.Equal(t, res.Digest, rec.Digest)
		require.Len(t, rec.Fills, 2)
		assert.Equal(t, orderbook.OrderID("a0"), rec.Fills[0].OrderID)

		got, err := s.Get(rec.ID)
		require.NoError(t, err)
		assert.Equal(t, rec.ID, got.ID)
		assert.Equal(t, orderbook.Buy, got.Side)
		assert.True(t, decimal.NewFromInt(4).Equal(got.Filled))
		assert.True(t, decimal.NewFromInt(12170).Equal(got.Notional))
		assert.True(t, got.At.Equal(epoch))
		assert.False(t, got.Fills[1].OrderID.Valid())

		_, err = s.Get(uuid.New())
		assert.True(t, errors.Is(err, ErrRecordNotFound), "err = %v", err)
	})
}

func TestRecentNewestFirst(t *testing.T) {
	stores(t, func(t *testing.T, s Store, clock *util.ManualClock) {
		for _, q := range []string{"1", "2", "3"} {
			_, err := s.Append(buyResult(q))
			require.NoError(t, err)
			clock.Advance(time.Second)
		}

		recent, err := s.Recent(2)
		require.NoError(t, err)
		require.Len(t, recent, 2)
		assert.Equal(t, uint64(3), recent[0].Seq)
		assert.Equal(t, uint64(2), recent[1].Seq)
		assert.True(t, recent[0].At.After(recent[1].At))

		all, err := s.Recent(0)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})
}

func TestJournalResumesSequence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal")

	j, err := OpenJournal(path, nil)
	require.NoError(t, err)
	first, err := j.Append(buyResult("1"))
	require.NoError(t, err)
	_, err = j.Append(buyResult("2"))
	require.NoError(t, err)
	require.NoError(t, j.Close())

	j, err = OpenJournal(path, nil)
	require.NoError(t, err)
	defer j.Close()

	rec, err := j.Append(buyResult("3"))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), rec.Seq)

	got, err := j.Get(first.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.Seq)
}

func TestOpenSelectsStore(t *testing.T) {
	s, err := Open("", nil)
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = Open(MemoryPath, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryJournal{}, s)

	s, err = Open(filepath.Join(t.TempDir(), "j"), nil)
	require.NoError(t, err)
	assert.IsType(t, &Journal{}, s)
	require.NoError(t, s.Close())
}

func TestRecordKeys(t *testing.T) {
	for _, seq := range []uint64{0, 1, 255, 256, 1 << 40} {
		got, err := seqFromKey(recordKey(seq))
		if err != nil || got != seq {
			t.Errorf("seqFromKey(recordKey(%d)) = %d, %v", seq, got, err)
		}
	}
	if _, err := seqFromKey([]byte("id:whatever")); err == nil {
		t.Error("expected error for foreign key")
	}
	if string(recordKey(1)) >= string(recordKey(256)) {
		t.Error("record keys must sort by sequence")
	}
}
