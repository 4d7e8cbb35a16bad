package orderbook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot wire format, one object per line:
//
//	{"AcqTime":"2019-01-29T11:00:00.2518854Z",
//	 "Bids":[{"Order":{"Id":null,"Time":"0001-01-01T00:00:00","Type":"Buy","Kind":"Limit","Amount":0.01,"Price":2960.64}}],
//	 "Asks":[...]}

type bookRecord struct {
	AcqTime timestamp    `json:"AcqTime"`
	Bids    []orderEntry `json:"Bids"`
	Asks    []orderEntry `json:"Asks"`
}

type orderEntry struct {
	Order orderRecord `json:"Order"`
}

type orderRecord struct {
	ID     OrderID         `json:"Id"`
	Time   timestamp       `json:"Time"`
	Type   Side            `json:"Type"`
	Kind   Kind            `json:"Kind"`
	Amount decimal.Decimal `json:"Amount"`
	Price  decimal.Decimal `json:"Price"`
}

// UnmarshalFunc matches json.Unmarshal so faster decoders can be plugged in
type UnmarshalFunc func(data []byte, v any) error

// Decode parses one snapshot object with the given unmarshaler
func Decode(data []byte, unmarshal UnmarshalFunc) (*OrderBook, error) {
	var rec bookRecord
	if err := unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return rec.book(), nil
}

func (r bookRecord) book() *OrderBook {
	ob := &OrderBook{
		AcqTime: r.AcqTime.Time,
		Bids:    make([]Order, 0, len(r.Bids)),
		Asks:    make([]Order, 0, len(r.Asks)),
	}
	for _, e := range r.Bids {
		ob.Bids = append(ob.Bids, e.Order.order())
	}
	for _, e := range r.Asks {
		ob.Asks = append(ob.Asks, e.Order.order())
	}
	return ob
}

func (r orderRecord) order() Order {
	return Order{
		ID:       r.ID,
		Time:     r.Time.Time,
		Side:     r.Type,
		Kind:     r.Kind,
		Quantity: r.Amount,
		Price:    r.Price,
	}
}

func recordOf(o Order) orderEntry {
	return orderEntry{Order: orderRecord{
		ID:     o.ID,
		Time:   timestamp{o.Time},
		Type:   o.Side,
		Kind:   o.Kind,
		Amount: o.Quantity,
		Price:  o.Price,
	}}
}

// UnmarshalJSON decodes the snapshot wire format
func (ob *OrderBook) UnmarshalJSON(data []byte) error {
	decoded, err := Decode(data, json.Unmarshal)
	if err != nil {
		return err
	}
	*ob = *decoded
	return nil
}

// MarshalJSON encodes the snapshot wire format
func (ob OrderBook) MarshalJSON() ([]byte, error) {
	rec := bookRecord{
		AcqTime: timestamp{ob.AcqTime},
		Bids:    make([]orderEntry, 0, len(ob.Bids)),
		Asks:    make([]orderEntry, 0, len(ob.Asks)),
	}
	for _, o := range ob.Bids {
		rec.Bids = append(rec.Bids, recordOf(o))
	}
	for _, o := range ob.Asks {
		rec.Asks = append(rec.Asks, recordOf(o))
	}
	return json.Marshal(rec)
}

var null = []byte("null")

// UnmarshalJSON accepts "buy"/"Buy" as well as the numeric values 0/1
func (s *Side) UnmarshalJSON(data []byte) error {
	if n, ok := enumNumber(data); ok {
		if n != int64(Buy) && n != int64(Sell) {
			return fmt.Errorf("unknown side %d", n)
		}
		*s = Side(n)
		return nil
	}
	str, err := enumString(data)
	if err != nil {
		return err
	}
	*s, err = ParseSide(str)
	return err
}

func (s Side) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts "limit"/"Limit" and the numeric value 0
func (k *Kind) UnmarshalJSON(data []byte) error {
	if n, ok := enumNumber(data); ok {
		if n != int64(Limit) {
			return fmt.Errorf("unknown kind %d", n)
		}
		*k = Kind(n)
		return nil
	}
	str, err := enumString(data)
	if err != nil {
		return err
	}
	*k, err = ParseKind(str)
	return err
}

func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func enumNumber(data []byte) (int64, bool) {
	n, err := strconv.ParseInt(string(bytes.TrimSpace(data)), 10, 8)
	return n, err == nil
}

func enumString(data []byte) (string, error) {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return "", err
	}
	return s, nil
}

// UnmarshalJSON accepts null, strings and bare numbers
func (id *OrderID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, null) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = OrderID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("order id must be string, number or null: %w", err)
	}
	*id = OrderID(n.String())
	return nil
}

func (id OrderID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return null, nil
	}
	return json.Marshal(string(id))
}

// timestamp tolerates venue formats without zone and with 7 fractional digits
type timestamp struct {
	time.Time
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}

func (t *timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), null) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := parseTime(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func (t timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}
