package orderbook

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of a resting order
type Side int8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return fmt.Sprintf("side(%d)", int8(s))
	}
}

// Opposite returns the side a taker crosses against
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// ParseSide accepts "buy"/"sell" in any case
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy", "b":
		return Buy, nil
	case "sell", "s":
		return Sell, nil
	}
	return 0, fmt.Errorf("unknown side %q", s)
}

// Kind is the execution style of an order. Snapshots only carry limit orders
// today; the enum stays closed so new kinds are added here explicitly.
type Kind int8

const (
	Limit Kind = iota
)

func (k Kind) String() string {
	switch k {
	case Limit:
		return "limit"
	default:
		return fmt.Sprintf("kind(%d)", int8(k))
	}
}

// ParseKind accepts "limit" in any case
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "limit":
		return Limit, nil
	}
	return 0, fmt.Errorf("unknown kind %q", s)
}

// OrderID is the venue's identifier for a resting order.
// Empty means the record carried no id (synthetic or anonymised orders).
type OrderID string

// Valid reports whether the order carries an id
func (id OrderID) Valid() bool { return id != "" }

func (id OrderID) String() string {
	if id == "" {
		return "-"
	}
	return string(id)
}

// Order is one resting order of a snapshot. Orders are never mutated after
// decoding; partial consumption is tracked by the allocation engine only.
type Order struct {
	ID       OrderID
	Time     time.Time
	Side     Side
	Kind     Kind
	Quantity decimal.Decimal
	Price    decimal.Decimal
}

// Notional returns price × quantity
func (o Order) Notional() decimal.Decimal {
	return o.Price.Mul(o.Quantity)
}

// Validate checks the order fields that ingestion relies on
func (o Order) Validate() error {
	if o.Quantity.IsNegative() {
		return fmt.Errorf("negative quantity: %s", o.Quantity)
	}
	if !o.Price.IsPositive() {
		return fmt.Errorf("price must be positive: %s", o.Price)
	}
	if o.Kind != Limit {
		return fmt.Errorf("unsupported kind: %s", o.Kind)
	}
	return nil
}
