// Package core owns the shared account collection and serializes every
// allocation over it. Types from the subpackages are re-exported so callers
// outside the core tree can depend on one import.
package core

import (
	"github.com/uhyunpark/metaexchange/pkg/app/core/account"
	"github.com/uhyunpark/metaexchange/pkg/app/core/allocation"
	"github.com/uhyunpark/metaexchange/pkg/app/core/orderbook"
)

// From orderbook package
type (
	Side       = orderbook.Side
	Order      = orderbook.Order
	OrderID    = orderbook.OrderID
	OrderBook  = orderbook.OrderBook
	PriceLevel = orderbook.PriceLevel
)

const (
	Buy  = orderbook.Buy
	Sell = orderbook.Sell
)

// From account package
type (
	ExchangeAccount = account.ExchangeAccount
	Balances        = account.Balances
)

var ErrNegativeBalance = account.ErrNegativeBalance

// From allocation package
type (
	Fill     = allocation.Fill
	FillView = allocation.FillView
	Result   = allocation.Result
)
