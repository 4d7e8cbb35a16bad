package ingest

import (
	"bufio"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/uhyunpark/metaexchange/pkg/app/core/orderbook"
)

// Generator creates random venue snapshots for fixtures and demos
type Generator struct {
	Depth int             // orders per side
	Mid   decimal.Decimal // current mid price, random-walks between books
	Tick  decimal.Decimal // minimum gap between neighbouring levels

	rng  *rand.Rand
	at   time.Time // acquisition time of the next book
	book int       // counter for unique order IDs
}

// NewGenerator creates a generator. The same seed always yields the same books.
func NewGenerator(seed int64, depth int) *Generator {
	if depth < 0 {
		depth = 0
	}
	return &Generator{
		Depth: depth,
		Mid:   decimal.NewFromInt(3000),
		Tick:  decimal.NewFromInt(1),
		rng:   rand.New(rand.NewSource(seed)),
		at:    time.Date(2019, 1, 29, 11, 0, 0, 0, time.UTC),
	}
}

// cents returns a random amount in [0, n) hundredths
func (g *Generator) cents(n int) decimal.Decimal {
	return decimal.New(int64(g.rng.Intn(n)), -2)
}

// Book creates the next snapshot.
// Bids sit strictly below mid in descending price, asks strictly above in
// ascending price. Each level is one Tick plus under one Tick of jitter from
// its neighbour, so prices never repeat within a side.
func (g *Generator) Book() *orderbook.OrderBook {
	// Random walk: mid moves by up to ±5 between books
	g.Mid = g.Mid.Add(decimal.NewFromInt(int64(g.rng.Intn(11) - 5)))
	half := g.Tick.Div(decimal.NewFromInt(2))
	jitterRange := int(g.Tick.Mul(decimal.NewFromInt(100)).IntPart())
	if jitterRange < 1 {
		jitterRange = 1
	}

	ob := orderbook.NewOrderBook(g.at)
	for i := 0; i < g.Depth; i++ {
		offset := half.Add(g.Tick.Mul(decimal.NewFromInt(int64(i))))
		ob.Bids = append(ob.Bids, orderbook.Order{
			ID:       orderbook.OrderID(fmt.Sprintf("g%d-b%d", g.book, i)),
			Side:     orderbook.Buy,
			Kind:     orderbook.Limit,
			Price:    g.Mid.Sub(offset).Sub(g.cents(jitterRange)),
			Quantity: decimal.New(int64(g.rng.Intn(500)+1), -2), // 0.01 to 5.00
		})
		ob.Asks = append(ob.Asks, orderbook.Order{
			ID:       orderbook.OrderID(fmt.Sprintf("g%d-a%d", g.book, i)),
			Side:     orderbook.Sell,
			Kind:     orderbook.Limit,
			Price:    g.Mid.Add(offset).Add(g.cents(jitterRange)),
			Quantity: decimal.New(int64(g.rng.Intn(500)+1), -2),
		})
	}

	g.book++
	g.at = g.at.Add(time.Second)
	return ob
}

// WriteSnapshot writes n books in venue dump format:
// "<unix>.<micros>\t{json}" per line
func (g *Generator) WriteSnapshot(w io.Writer, n int) error {
	bw := bufio.NewWriter(w)
	for i := 0; i < n; i++ {
		book := g.Book()
		data, err := sonic.Marshal(book)
		if err != nil {
			return errors.Wrapf(err, "encode book %d", i)
		}
		if _, err := fmt.Fprintf(bw, "%d.%06d\t%s\n", book.AcqTime.Unix(), book.AcqTime.Nanosecond()/1000, data); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteArchive writes n books as the single entry of a zip archive. The
// entry is named after the archive without its extension.
func (g *Generator) WriteArchive(path string, n int) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	zw := zip.NewWriter(f)
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	entry, err := zw.Create(name)
	if err != nil {
		return errors.Wrapf(err, "create entry %s", name)
	}
	if err := g.WriteSnapshot(entry, n); err != nil {
		return err
	}
	return zw.Close()
}

// WriteFile writes n books to path, compressed to match its extension the
// same way Open reads it back.
func (g *Generator) WriteFile(path string, n int) (err error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".zip" {
		return g.WriteArchive(path, n)
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	switch ext {
	case ".zst", ".zstd":
		enc, err := zstd.NewWriter(f)
		if err != nil {
			return err
		}
		if err := g.WriteSnapshot(enc, n); err != nil {
			enc.Close()
			return err
		}
		return enc.Close()
	case ".gz":
		zw := gzip.NewWriter(f)
		if err := g.WriteSnapshot(zw, n); err != nil {
			zw.Close()
			return err
		}
		return zw.Close()
	default:
		return g.WriteSnapshot(f, n)
	}
}
