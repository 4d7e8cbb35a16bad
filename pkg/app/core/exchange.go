package core

import (
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/uhyunpark/metaexchange/pkg/app/core/account"
	"github.com/uhyunpark/metaexchange/pkg/app/core/allocation"
	"github.com/uhyunpark/metaexchange/pkg/app/core/orderbook"
)

// ErrAccountNotFound is returned for an id no account carries
var ErrAccountNotFound = errors.New("account not found")

// AllocationHook observes completed allocations. Hooks run on the caller's
// goroutine after the exchange lock is released.
type AllocationHook func(allocation.Result)

// Exchange manages the ordered account collection in a thread-safe manner.
// Every read and write of balances goes through one mutex, so allocations
// are atomic with respect to each other.
type Exchange struct {
	mu       sync.Mutex
	accounts []*account.ExchangeAccount // enumeration order drives tie-breaks
	byID     map[int]*account.ExchangeAccount

	hooksMu sync.RWMutex
	hooks   []AllocationHook

	logger *zap.SugaredLogger
}

// NewExchange takes ownership of accounts. Callers must not touch them
// afterwards except through the Exchange.
func NewExchange(accounts []*account.ExchangeAccount, logger *zap.Logger) (*Exchange, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ex := &Exchange{
		accounts: make([]*account.ExchangeAccount, 0, len(accounts)),
		byID:     make(map[int]*account.ExchangeAccount, len(accounts)),
		logger:   logger.Sugar(),
	}
	for i, acc := range accounts {
		if acc == nil {
			return nil, fmt.Errorf("account %d is nil", i)
		}
		if err := acc.Validate(); err != nil {
			return nil, err
		}
		if _, dup := ex.byID[acc.ID]; dup {
			return nil, fmt.Errorf("duplicate account id %d", acc.ID)
		}
		ex.accounts = append(ex.accounts, acc)
		ex.byID[acc.ID] = acc
	}
	return ex, nil
}

// OnAllocation registers a hook. Hooks fire in registration order.
func (ex *Exchange) OnAllocation(h AllocationHook) {
	ex.hooksMu.Lock()
	defer ex.hooksMu.Unlock()
	ex.hooks = append(ex.hooks, h)
}

// Buy allocates quantity against the cheapest asks across all accounts
func (ex *Exchange) Buy(quantity decimal.Decimal) allocation.Result {
	return ex.Allocate(orderbook.Buy, quantity)
}

// Sell allocates quantity against the highest bids across all accounts
func (ex *Exchange) Sell(quantity decimal.Decimal) allocation.Result {
	return ex.Allocate(orderbook.Sell, quantity)
}

// Allocate runs one allocation under the lock, logs it and notifies hooks.
// Fill.Account in the result points at live accounts; read balances through
// Accounts rather than through the fills.
func (ex *Exchange) Allocate(side orderbook.Side, quantity decimal.Decimal) allocation.Result {
	ex.mu.Lock()
	res := allocation.Allocate(side, ex.accounts, quantity)
	ex.mu.Unlock()

	ex.logger.Infow("allocation_completed",
		"side", side.String(),
		"requested", res.Requested.String(),
		"filled", res.Filled.String(),
		"unfilled", res.Unfilled.String(),
		"fills", len(res.Fills),
		"digest", res.Digest,
	)

	ex.hooksMu.RLock()
	hooks := append([]AllocationHook(nil), ex.hooks...)
	ex.hooksMu.RUnlock()
	for _, h := range hooks {
		h(res)
	}
	return res
}

// Len returns the number of accounts
func (ex *Exchange) Len() int {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return len(ex.accounts)
}

// Accounts returns balance snapshots in enumeration order
func (ex *Exchange) Accounts() []account.Balances {
	ex.mu.Lock()
	defer ex.mu.Unlock()

	out := make([]account.Balances, len(ex.accounts))
	for i, acc := range ex.accounts {
		out[i] = acc.Snapshot()
	}
	return out
}

// Totals sums money and asset across all accounts
func (ex *Exchange) Totals() (money, asset decimal.Decimal) {
	ex.mu.Lock()
	defer ex.mu.Unlock()

	for _, acc := range ex.accounts {
		money = money.Add(acc.Money)
		asset = asset.Add(acc.Asset)
	}
	return money, asset
}

// Account returns a balance snapshot for id
func (ex *Exchange) Account(id int) (account.Balances, error) {
	ex.mu.Lock()
	defer ex.mu.Unlock()

	acc, ok := ex.byID[id]
	if !ok {
		return account.Balances{}, fmt.Errorf("%w: %d", ErrAccountNotFound, id)
	}
	return acc.Snapshot(), nil
}

// Book returns the account's order book. Books are never mutated after
// load, so the pointer is safe to share.
func (ex *Exchange) Book(id int) (*orderbook.OrderBook, error) {
	ex.mu.Lock()
	defer ex.mu.Unlock()

	acc, ok := ex.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrAccountNotFound, id)
	}
	return acc.Book, nil
}

// SetBalances overwrites every account's balances. Nothing changes if the
// values are rejected.
func (ex *Exchange) SetBalances(money, asset decimal.Decimal) error {
	if money.IsNegative() || asset.IsNegative() {
		return fmt.Errorf("%w: money=%s asset=%s", account.ErrNegativeBalance, money, asset)
	}

	ex.mu.Lock()
	defer ex.mu.Unlock()

	for _, acc := range ex.accounts {
		if err := acc.SetBalances(money, asset); err != nil {
			return err
		}
	}
	ex.logger.Infow("balances_set", "accounts", len(ex.accounts), "money", money.String(), "asset", asset.String())
	return nil
}

// SetAccountBalances overwrites one account's balances
func (ex *Exchange) SetAccountBalances(id int, money, asset decimal.Decimal) error {
	ex.mu.Lock()
	defer ex.mu.Unlock()

	acc, ok := ex.byID[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrAccountNotFound, id)
	}
	if err := acc.SetBalances(money, asset); err != nil {
		return err
	}
	ex.logger.Infow("balances_set", "account", id, "money", money.String(), "asset", asset.String())
	return nil
}
