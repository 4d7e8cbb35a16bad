package ingest

import (
	"bufio"
	"bytes"
	"io"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"github.com/uhyunpark/metaexchange/pkg/app/core/orderbook"
)

// maxLineSize bounds a single snapshot line; full-depth books run to a few MB
const maxLineSize = 64 << 20

// extractObject returns the bytes from the first '{' to the last '}'.
// Venue dumps prefix each object with a timestamp and a tab.
func extractObject(line []byte) ([]byte, bool) {
	first := bytes.IndexByte(line, '{')
	last := bytes.LastIndexByte(line, '}')
	if first < 0 || last < first {
		return nil, false
	}
	return line[first : last+1], true
}

// ReadBooks decodes one book per non-blank line, stopping after limit books
// (limit <= 0 reads everything).
func ReadBooks(r io.Reader, limit int) ([]*orderbook.OrderBook, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var books []*orderbook.OrderBook
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		obj, ok := extractObject(raw)
		if !ok {
			return nil, errors.Wrapf(ErrMalformedRecord, "line %d: no JSON object", line)
		}
		book, err := orderbook.Decode(obj, sonic.Unmarshal)
		if err != nil {
			return nil, errors.Wrapf(ErrMalformedRecord, "line %d: %v", line, err)
		}
		if err := book.Validate(); err != nil {
			return nil, errors.Wrapf(ErrMalformedRecord, "line %d: %v", line, err)
		}
		books = append(books, book)
		if limit > 0 && len(books) == limit {
			return books, nil
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrapf(err, "read line %d", line+1)
	}
	return books, nil
}
