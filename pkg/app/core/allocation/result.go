package allocation

import (
	"github.com/shopspring/decimal"

	"github.com/uhyunpark/metaexchange/pkg/app/core/orderbook"
)

// Result is the outcome of one allocation call
type Result struct {
	Side      orderbook.Side
	Requested decimal.Decimal
	Filled    decimal.Decimal // sum of fill amounts, never above Requested
	Unfilled  decimal.Decimal // Requested - Filled, floored at zero
	Notional  decimal.Decimal // sum of fill values, i.e. money moved
	Fills     []Fill
	Digest    string
}

// AveragePrice returns Notional / Filled, or zero when nothing filled
func (r Result) AveragePrice() decimal.Decimal {
	if !r.Filled.IsPositive() {
		return decimal.Zero
	}
	return r.Notional.Div(r.Filled)
}

// Complete reports whether the full requested quantity was filled
func (r Result) Complete() bool {
	return r.Requested.IsPositive() && !r.Unfilled.IsPositive()
}

// Summarize totals a fill sequence produced for requested
func Summarize(side orderbook.Side, requested decimal.Decimal, fills []Fill) Result {
	r := Result{
		Side:      side,
		Requested: requested,
		Fills:     fills,
		Digest:    Digest(fills),
	}
	for _, f := range fills {
		r.Filled = r.Filled.Add(f.Amount)
		r.Notional = r.Notional.Add(f.Cost())
	}
	if unfilled := requested.Sub(r.Filled); unfilled.IsPositive() {
		r.Unfilled = unfilled
	}
	return r
}
