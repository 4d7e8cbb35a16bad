package account

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/uhyunpark/metaexchange/pkg/app/core/orderbook"
)

// ErrNegativeBalance is returned when a balance update would go below zero
var ErrNegativeBalance = errors.New("balance must not be negative")

// ExchangeAccount is one venue the meta exchange can route to.
// Tracks the money (quote) and asset (base) balances available at that venue
// together with the venue's order book snapshot.
type ExchangeAccount struct {
	ID int // Assigned at load time in snapshot order, stable for the process lifetime

	// Balances are mutated in place by every allocation that fills against this venue
	Money decimal.Decimal
	Asset decimal.Decimal

	Book *orderbook.OrderBook
}

// Balances is a point-in-time copy of an account's balances
type Balances struct {
	ID    int             `json:"accountId"`
	Money decimal.Decimal `json:"money"`
	Asset decimal.Decimal `json:"asset"`
}

// NewExchangeAccount creates an account owning book.
// A nil book is replaced with an empty one.
func NewExchangeAccount(id int, money, asset decimal.Decimal, book *orderbook.OrderBook) *ExchangeAccount {
	if book == nil {
		book = &orderbook.OrderBook{}
	}
	return &ExchangeAccount{
		ID:    id,
		Money: money,
		Asset: asset,
		Book:  book,
	}
}

// Snapshot returns a copy of the current balances
func (a *ExchangeAccount) Snapshot() Balances {
	return Balances{ID: a.ID, Money: a.Money, Asset: a.Asset}
}

// SetBalances replaces both balances
// Returns ErrNegativeBalance without modifying the account if either is negative
func (a *ExchangeAccount) SetBalances(money, asset decimal.Decimal) error {
	if money.IsNegative() || asset.IsNegative() {
		return fmt.Errorf("account %d: money=%s asset=%s: %w", a.ID, money, asset, ErrNegativeBalance)
	}
	a.Money = money
	a.Asset = asset
	return nil
}

// Equity values the account at the given price: money + asset × price
func (a *ExchangeAccount) Equity(price decimal.Decimal) decimal.Decimal {
	return a.Money.Add(a.Asset.Mul(price))
}

// Validate checks account invariants
func (a *ExchangeAccount) Validate() error {
	if a.Money.IsNegative() {
		return fmt.Errorf("account %d: negative money balance: %s", a.ID, a.Money)
	}
	if a.Asset.IsNegative() {
		return fmt.Errorf("account %d: negative asset balance: %s", a.ID, a.Asset)
	}
	if a.Book == nil {
		return fmt.Errorf("account %d: missing order book", a.ID)
	}
	return nil
}
