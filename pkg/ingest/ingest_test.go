package ingest

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/zip"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/metaexchange/pkg/app/core/orderbook"
)

const venueLine = "1548759600.25189\t" +
	`{"AcqTime":"2019-01-29T11:00:00.2518854Z",` +
	`"Bids":[{"Order":{"Id":null,"Time":"0001-01-01T00:00:00","Type":"Buy","Kind":"Limit","Amount":0.01,"Price":2960.64}},` +
	`{"Order":{"Id":null,"Time":"0001-01-01T00:00:00","Type":"Buy","Kind":"Limit","Amount":0.5,"Price":2960.63}}],` +
	`"Asks":[{"Order":{"Id":null,"Time":"0001-01-01T00:00:00","Type":"Sell","Kind":"Limit","Amount":0.405,"Price":2964.29}}]}`

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func writeZip(t *testing.T, entries map[string]string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return writeFile(t, "books.zip", buf.Bytes())
}

func TestOpenErrors(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
		want error
	}{
		{"missing file", func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.zip") }, ErrSourceNotFound},
		{"directory", func(t *testing.T) string { return t.TempDir() }, ErrSourceNotFound},
		{"two zip entries", func(t *testing.T) string {
			return writeZip(t, map[string]string{"a": venueLine, "b": venueLine})
		}, ErrMalformedArchive},
		{"empty zip", func(t *testing.T) string { return writeZip(t, nil) }, ErrMalformedArchive},
		{"corrupt zip", func(t *testing.T) string { return writeFile(t, "x.zip", []byte("not a zip")) }, ErrMalformedArchive},
		{"corrupt gzip", func(t *testing.T) string { return writeFile(t, "x.gz", []byte("not gzip")) }, ErrMalformedArchive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc, err := Open(tt.path(t))
			if rc != nil {
				rc.Close()
			}
			assert.True(t, errors.Is(err, tt.want), "err = %v, want %v", err, tt.want)
		})
	}
}

func TestOpenZipReadsSingleEntryInPlace(t *testing.T) {
	path := writeZip(t, map[string]string{"order_books_data": venueLine + "\n"})

	rc, err := Open(path)
	require.NoError(t, err)
	defer rc.Close()

	books, err := ReadBooks(rc, 0)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Len(t, books[0].Bids, 2)
	assert.Len(t, books[0].Asks, 1)

	entries, _ := filepath.Glob(filepath.Join(filepath.Dir(path), "*"))
	assert.Len(t, entries, 1, "nothing extracted next to the archive")
}

func TestReadBooksVenueLine(t *testing.T) {
	books, err := ReadBooks(strings.NewReader(venueLine), 0)
	require.NoError(t, err)
	require.Len(t, books, 1)

	ob := books[0]
	assert.Equal(t, orderbook.Buy, ob.Bids[0].Side)
	assert.Equal(t, orderbook.Limit, ob.Bids[0].Kind)
	assert.False(t, ob.Bids[0].ID.Valid())
	assert.True(t, decimal.RequireFromString("2960.64").Equal(ob.Bids[0].Price))
	assert.True(t, decimal.RequireFromString("0.405").Equal(ob.Asks[0].Quantity))
	assert.Equal(t, 2019, ob.AcqTime.Year())
}

func TestReadBooksLimitAndBlankLines(t *testing.T) {
	input := strings.Join([]string{venueLine, "", "   ", venueLine, venueLine}, "\n")

	all, err := ReadBooks(strings.NewReader(input), 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	two, err := ReadBooks(strings.NewReader(input), 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
}

func TestReadBooksStopsBeforeBadLinePastLimit(t *testing.T) {
	input := venueLine + "\nthis line is never read\n"

	books, err := ReadBooks(strings.NewReader(input), 1)
	require.NoError(t, err)
	assert.Len(t, books, 1)
}

func TestReadBooksMalformed(t *testing.T) {
	tests := []struct {
		name, line string
	}{
		{"no object", "1548759600.25189\tnothing here"},
		{"only closing brace", "} {"},
		{"bad json", `{"Bids": [}`},
		{"unknown side", strings.Replace(venueLine, `"Type":"Sell"`, `"Type":"Hold"`, 1)},
		{"bid on ask side", strings.Replace(venueLine, `"Type":"Sell"`, `"Type":"Buy"`, 1)},
		{"zero price", strings.Replace(venueLine, `"Price":2964.29`, `"Price":0`, 1)},
		{"negative amount", strings.Replace(venueLine, `"Amount":0.405`, `"Amount":-1`, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadBooks(strings.NewReader(venueLine+"\n"+tt.line), 0)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedRecord), "err = %v", err)
			assert.Contains(t, err.Error(), "line 2")
		})
	}
}

func TestLoaderFixedBalances(t *testing.T) {
	path := writeFile(t, "books.txt", []byte(strings.Repeat(venueLine+"\n", 4)))
	l := &Loader{
		Source:      path,
		MaxAccounts: 3,
		Balances:    BalancePolicy{Money: decimal.NewFromInt(9000), Asset: decimal.NewFromInt(3)},
	}

	accounts, err := l.Load()
	require.NoError(t, err)
	require.Len(t, accounts, 3)
	for i, acc := range accounts {
		assert.Equal(t, i+1, acc.ID)
		assert.True(t, decimal.NewFromInt(9000).Equal(acc.Money))
		assert.True(t, decimal.NewFromInt(3).Equal(acc.Asset))
		assert.NoError(t, acc.Validate())
	}
}

func TestLoaderMissingSource(t *testing.T) {
	l := &Loader{Source: filepath.Join(t.TempDir(), "order_books_data.zip")}
	_, err := l.Load()
	assert.True(t, errors.Is(err, ErrSourceNotFound), "err = %v", err)
}

func TestLoaderRandomBalancesDeterministic(t *testing.T) {
	books := make([]*orderbook.OrderBook, 6)
	for i := range books {
		books[i] = &orderbook.OrderBook{}
	}
	policy := BalancePolicy{
		Random:   true,
		Seed:     7,
		MaxMoney: decimal.NewFromInt(10000),
		MaxAsset: decimal.NewFromInt(5),
	}

	a := (&Loader{Balances: policy}).Accounts(books)
	b := (&Loader{Balances: policy}).Accounts(books)

	for i := range a {
		assert.True(t, a[i].Money.Equal(b[i].Money), "account %d money differs", i+1)
		assert.True(t, a[i].Asset.Equal(b[i].Asset), "account %d asset differs", i+1)
		assert.False(t, a[i].Money.IsNegative())
		assert.True(t, a[i].Money.LessThanOrEqual(policy.MaxMoney))
		assert.True(t, a[i].Asset.LessThanOrEqual(policy.MaxAsset))
		assert.LessOrEqual(t, -a[i].Money.Exponent(), int32(2))
		assert.LessOrEqual(t, -a[i].Asset.Exponent(), int32(4))
	}

	policy.Seed = 8
	c := (&Loader{Balances: policy}).Accounts(books)
	differs := false
	for i := range a {
		if !a[i].Money.Equal(c[i].Money) {
			differs = true
		}
	}
	assert.True(t, differs, "different seeds produced identical balances")
}

func TestGeneratorBooksAreOrdered(t *testing.T) {
	g := NewGenerator(1, 8)
	for n := 0; n < 20; n++ {
		ob := g.Book()
		require.NoError(t, ob.Validate())
		require.Len(t, ob.Bids, 8)
		require.Len(t, ob.Asks, 8)

		bid, _ := ob.BestBid()
		ask, _ := ob.BestAsk()
		assert.True(t, bid.LessThan(ask), "crossed book: bid %s ask %s", bid, ask)
		for i := 1; i < len(ob.Bids); i++ {
			assert.True(t, ob.Bids[i].Price.LessThan(ob.Bids[i-1].Price))
			assert.True(t, ob.Asks[i].Price.GreaterThan(ob.Asks[i-1].Price))
		}
	}
}

func TestGeneratorRoundTrip(t *testing.T) {
	for _, name := range []string{"books.zip", "books.zst", "books.gz", "books.txt"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, NewGenerator(42, 5).WriteFile(path, 3))

			rc, err := Open(path)
			require.NoError(t, err)
			defer rc.Close()
			got, err := ReadBooks(rc, 0)
			require.NoError(t, err)

			ref := NewGenerator(42, 5)
			want := []*orderbook.OrderBook{ref.Book(), ref.Book(), ref.Book()}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
