package account

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// TestAccountCreation tests basic account creation
func TestAccountCreation(t *testing.T) {
	acc := NewExchangeAccount(1, d("9000"), d("3"), nil)

	if acc.ID != 1 {
		t.Errorf("id = %d, want 1", acc.ID)
	}
	if !acc.Money.Equal(d("9000")) {
		t.Errorf("money = %s, want 9000", acc.Money)
	}
	if acc.Book == nil {
		t.Fatal("expected empty book, got nil")
	}
	if len(acc.Book.Bids) != 0 || len(acc.Book.Asks) != 0 {
		t.Errorf("expected no orders, got %d bids %d asks", len(acc.Book.Bids), len(acc.Book.Asks))
	}
	if err := acc.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestSetBalancesRejectsNegative(t *testing.T) {
	acc := NewExchangeAccount(2, d("100"), d("1"), nil)

	err := acc.SetBalances(d("-1"), d("5"))
	if !errors.Is(err, ErrNegativeBalance) {
		t.Fatalf("err = %v, want ErrNegativeBalance", err)
	}
	if !acc.Money.Equal(d("100")) || !acc.Asset.Equal(d("1")) {
		t.Errorf("balances changed on rejected update: money=%s asset=%s", acc.Money, acc.Asset)
	}

	if err := acc.SetBalances(d("0"), d("0.5")); err != nil {
		t.Fatalf("set balances: %v", err)
	}
	snap := acc.Snapshot()
	if snap.ID != 2 || !snap.Money.IsZero() || !snap.Asset.Equal(d("0.5")) {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		acc     *ExchangeAccount
		wantErr bool
	}{
		{"valid", NewExchangeAccount(1, d("1"), d("1"), nil), false},
		{"zero balances", NewExchangeAccount(1, decimal.Zero, decimal.Zero, nil), false},
		{"negative money", &ExchangeAccount{ID: 1, Money: d("-0.01"), Book: NewExchangeAccount(1, d("0"), d("0"), nil).Book}, true},
		{"negative asset", &ExchangeAccount{ID: 1, Asset: d("-3"), Book: NewExchangeAccount(1, d("0"), d("0"), nil).Book}, true},
		{"missing book", &ExchangeAccount{ID: 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.acc.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEquity(t *testing.T) {
	acc := NewExchangeAccount(1, d("5960"), d("4"), nil)
	if got := acc.Equity(d("3040")); !got.Equal(d("18120")) {
		t.Errorf("equity = %s, want 18120", got)
	}
}
