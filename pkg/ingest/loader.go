package ingest

import (
	"math/rand"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/uhyunpark/metaexchange/params"
	"github.com/uhyunpark/metaexchange/pkg/app/core/account"
	"github.com/uhyunpark/metaexchange/pkg/app/core/orderbook"
)

// BalancePolicy assigns starting balances to loaded accounts
type BalancePolicy struct {
	Money decimal.Decimal
	Asset decimal.Decimal

	// Random draws money in [0, MaxMoney] (2 dp) and asset in [0, MaxAsset]
	// (4 dp) per account. The same Seed always yields the same balances.
	Random   bool
	Seed     int64
	MaxMoney decimal.Decimal
	MaxAsset decimal.Decimal
}

type Loader struct {
	Source      string
	MaxAccounts int
	Balances    BalancePolicy
	Logger      *zap.Logger
}

// NewLoader builds a loader from configuration
func NewLoader(cfg params.Config, logger *zap.Logger) *Loader {
	b := cfg.Balances
	return &Loader{
		Source:      cfg.Ingest.SourcePath,
		MaxAccounts: cfg.Ingest.MaxAccounts,
		Balances: BalancePolicy{
			Money:    b.Money,
			Asset:    b.Asset,
			Random:   b.Random,
			Seed:     b.Seed,
			MaxMoney: b.MaxMoney,
			MaxAsset: b.MaxAsset,
		},
		Logger: logger,
	}
}

// Load reads Source and returns one account per book, ids from 1 in file order
func (l *Loader) Load() ([]*account.ExchangeAccount, error) {
	rc, err := Open(l.Source)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	books, err := ReadBooks(rc, l.MaxAccounts)
	if err != nil {
		return nil, errors.WithMessagef(err, "load %s", l.Source)
	}
	accounts := l.Accounts(books)

	if l.Logger != nil {
		l.Logger.Sugar().Infow("snapshot_loaded",
			"source", l.Source,
			"accounts", len(accounts),
			"random_balances", l.Balances.Random,
		)
	}
	return accounts, nil
}

// Accounts wraps books into accounts under the balance policy
func (l *Loader) Accounts(books []*orderbook.OrderBook) []*account.ExchangeAccount {
	var rng *rand.Rand
	if l.Balances.Random {
		rng = rand.New(rand.NewSource(l.Balances.Seed))
	}

	accounts := make([]*account.ExchangeAccount, len(books))
	for i, book := range books {
		money, asset := l.Balances.Money, l.Balances.Asset
		if rng != nil {
			money = uniform(rng, l.Balances.MaxMoney, 2)
			asset = uniform(rng, l.Balances.MaxAsset, 4)
		}
		accounts[i] = account.NewExchangeAccount(i+1, money, asset, book)
	}
	return accounts
}

func uniform(rng *rand.Rand, bound decimal.Decimal, places int32) decimal.Decimal {
	if !bound.IsPositive() {
		return decimal.Zero
	}
	v := bound.Mul(decimal.NewFromFloat(rng.Float64())).Round(places)
	if v.GreaterThan(bound) {
		return bound
	}
	return v
}
