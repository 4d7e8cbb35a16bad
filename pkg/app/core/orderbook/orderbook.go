package orderbook

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// PriceLevel aggregates all orders resting at one price
type PriceLevel struct {
	Price  decimal.Decimal
	Qty    decimal.Decimal // total qty at this price level
	Orders int
}

// OrderBook is a fixed-in-time snapshot of one venue's resting orders.
// Bids hold Buy orders and Asks hold Sell orders, in the order they were
// recorded by the venue. The book is read-only once loaded.
type OrderBook struct {
	AcqTime time.Time
	Bids    []Order
	Asks    []Order
}

// NewOrderBook creates an empty snapshot acquired at t
func NewOrderBook(t time.Time) *OrderBook {
	return &OrderBook{AcqTime: t}
}

// Side returns the resting orders a taker of the given side trades against:
// asks for a buyer, bids for a seller.
func (ob *OrderBook) Side(taker Side) []Order {
	if taker == Buy {
		return ob.Asks
	}
	return ob.Bids
}

// Validate checks side consistency and per-order fields
func (ob *OrderBook) Validate() error {
	for i, o := range ob.Bids {
		if o.Side != Buy {
			return fmt.Errorf("bid %d has side %s", i, o.Side)
		}
		if err := o.Validate(); err != nil {
			return fmt.Errorf("bid %d: %w", i, err)
		}
	}
	for i, o := range ob.Asks {
		if o.Side != Sell {
			return fmt.Errorf("ask %d has side %s", i, o.Side)
		}
		if err := o.Validate(); err != nil {
			return fmt.Errorf("ask %d: %w", i, err)
		}
	}
	return nil
}

// Depth returns the total quantity on each side
func (ob *OrderBook) Depth() (bids, asks decimal.Decimal) {
	for _, o := range ob.Bids {
		bids = bids.Add(o.Quantity)
	}
	for _, o := range ob.Asks {
		asks = asks.Add(o.Quantity)
	}
	return bids, asks
}

// BidLevels returns all bid price levels sorted high to low (best bid first).
func (ob *OrderBook) BidLevels() []PriceLevel {
	levels := aggregate(ob.Bids)
	sort.Slice(levels, func(i, j int) bool {
		return levels[i].Price.GreaterThan(levels[j].Price)
	})
	return levels
}

// AskLevels returns all ask price levels sorted low to high (best ask first).
func (ob *OrderBook) AskLevels() []PriceLevel {
	levels := aggregate(ob.Asks)
	sort.Slice(levels, func(i, j int) bool {
		return levels[i].Price.LessThan(levels[j].Price)
	})
	return levels
}

func aggregate(orders []Order) []PriceLevel {
	// keyed by canonical string so 3040 and 3040.00 share a level
	index := make(map[string]int, len(orders))
	var levels []PriceLevel
	for _, o := range orders {
		key := o.Price.String()
		i, ok := index[key]
		if !ok {
			i = len(levels)
			index[key] = i
			levels = append(levels, PriceLevel{Price: o.Price})
		}
		levels[i].Qty = levels[i].Qty.Add(o.Quantity)
		levels[i].Orders++
	}
	return levels
}

// BestBid returns the highest bid price
// Returns false if there are no bids
func (ob *OrderBook) BestBid() (decimal.Decimal, bool) {
	if len(ob.Bids) == 0 {
		return decimal.Zero, false
	}
	best := ob.Bids[0].Price
	for _, o := range ob.Bids[1:] {
		if o.Price.GreaterThan(best) {
			best = o.Price
		}
	}
	return best, true
}

// BestAsk returns the lowest ask price
// Returns false if there are no asks
func (ob *OrderBook) BestAsk() (decimal.Decimal, bool) {
	if len(ob.Asks) == 0 {
		return decimal.Zero, false
	}
	best := ob.Asks[0].Price
	for _, o := range ob.Asks[1:] {
		if o.Price.LessThan(best) {
			best = o.Price
		}
	}
	return best, true
}

// MidPrice returns the average of best bid and best ask.
// Returns false if the book is empty or one-sided.
func (ob *OrderBook) MidPrice() (decimal.Decimal, bool) {
	bid, okBid := ob.BestBid()
	ask, okAsk := ob.BestAsk()
	if !okBid || !okAsk {
		return decimal.Zero, false
	}
	return bid.Add(ask).Div(decimal.NewFromInt(2)), true
}
