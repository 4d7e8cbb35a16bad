// Package allocation routes a requested volume across several venues.
//
// The engine is a single greedy pass: every resting order on the opposite
// side of every account's book is merged into one stream, stably sorted by
// price (best first), and walked until the target is met or the account
// reached in price order has no balance left to trade with. Balances are
// mutated in place as each fill is produced.
//
// Callers must hold exclusive access to the account slice for the duration
// of a call; the engine does no locking of its own.
package allocation

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/uhyunpark/metaexchange/pkg/app/core/account"
	"github.com/uhyunpark/metaexchange/pkg/app/core/orderbook"
)

// candidate pairs a resting order with the account whose book holds it
type candidate struct {
	account *account.ExchangeAccount
	order   *orderbook.Order
	index   int
}

// stream flattens the taker's opposite side across accounts in enumeration
// order, then stably sorts it best price first. Equal prices keep account
// order, then book order.
func stream(accounts []*account.ExchangeAccount, taker orderbook.Side) []candidate {
	var cands []candidate
	for _, acc := range accounts {
		if acc == nil || acc.Book == nil {
			continue
		}
		orders := acc.Book.Side(taker)
		for i := range orders {
			cands = append(cands, candidate{account: acc, order: &orders[i], index: i})
		}
	}

	if taker == orderbook.Buy {
		sort.SliceStable(cands, func(i, j int) bool {
			return cands[i].order.Price.LessThan(cands[j].order.Price)
		})
	} else {
		sort.SliceStable(cands, func(i, j int) bool {
			return cands[i].order.Price.GreaterThan(cands[j].order.Price)
		})
	}
	return cands
}

// Buy acquires up to target of the asset from the cheapest asks first,
// spending each account's money balance.
//
// The walk stops at the first candidate whose account has no money left,
// even if later candidates belong to funded accounts.
func Buy(accounts []*account.ExchangeAccount, target decimal.Decimal) []Fill {
	var fills []Fill
	remaining := target

	for _, c := range stream(accounts, orderbook.Buy) {
		acc := c.account
		if !acc.Money.IsPositive() || !remaining.IsPositive() {
			break
		}

		price := c.order.Price
		affordable := decimal.Min(remaining, c.order.Quantity)
		spent := affordable.Mul(price)

		if price.IsPositive() {
			// truncate so that affordable × price never exceeds money
			budget, _ := acc.Money.QuoRem(price, int32(decimal.DivisionPrecision))
			if budget.LessThan(affordable) {
				affordable = budget
				spent = acc.Money
			}
		}

		remaining = remaining.Sub(affordable)
		acc.Asset = acc.Asset.Add(affordable)
		acc.Money = acc.Money.Sub(spent)

		fills = append(fills, Fill{Account: acc, Order: c.order, Index: c.index, Amount: affordable, Value: spent})
	}
	return fills
}

// Sell disposes of up to target of the asset into the highest bids first,
// drawing on each account's asset balance.
//
// The walk stops at the first candidate whose account has no asset left,
// even if later candidates belong to accounts that still hold some.
func Sell(accounts []*account.ExchangeAccount, target decimal.Decimal) []Fill {
	var fills []Fill
	remaining := target

	for _, c := range stream(accounts, orderbook.Sell) {
		acc := c.account
		if !acc.Asset.IsPositive() || !remaining.IsPositive() {
			break
		}

		affordable := decimal.Min(remaining, c.order.Quantity, acc.Asset)
		proceeds := affordable.Mul(c.order.Price)

		remaining = remaining.Sub(affordable)
		acc.Money = acc.Money.Add(proceeds)
		acc.Asset = acc.Asset.Sub(affordable)

		fills = append(fills, Fill{Account: acc, Order: c.order, Index: c.index, Amount: affordable, Value: proceeds})
	}
	return fills
}

// Allocate runs Buy or Sell and summarises the outcome
func Allocate(side orderbook.Side, accounts []*account.ExchangeAccount, target decimal.Decimal) Result {
	var fills []Fill
	if side == orderbook.Buy {
		fills = Buy(accounts, target)
	} else {
		fills = Sell(accounts, target)
	}
	return Summarize(side, target, fills)
}
