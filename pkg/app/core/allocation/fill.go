package allocation

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/sha3"

	"github.com/uhyunpark/metaexchange/pkg/app/core/account"
	"github.com/uhyunpark/metaexchange/pkg/app/core/orderbook"
)

// Fill records one matched quantity against one resting order.
// Balance effects have already been applied to Account when a Fill is returned.
type Fill struct {
	Account *account.ExchangeAccount
	Order   *orderbook.Order
	Index   int // position of Order within the account's bid or ask list
	Amount  decimal.Decimal
	Value   decimal.Decimal // money moved: debited on a buy, credited on a sell
}

// Price is the resting order's limit price, which is the execution price
func (f Fill) Price() decimal.Decimal { return f.Order.Price }

// Cost returns the money the fill moved. For a buy capped by the account's
// money this is the whole balance, which Amount × Price never exceeds.
func (f Fill) Cost() decimal.Decimal { return f.Value }

// FillView is the caller-facing shape of a fill
type FillView struct {
	AccountID    int               `json:"accountId"`
	OrderPrice   decimal.Decimal   `json:"orderPrice"`
	OrderID      orderbook.OrderID `json:"orderId"`
	OrderIndex   int               `json:"orderIndex"`
	FilledAmount decimal.Decimal   `json:"filledAmount"`
}

// View flattens the fill for reporting layers
func (f Fill) View() FillView {
	return FillView{
		AccountID:    f.Account.ID,
		OrderPrice:   f.Order.Price,
		OrderID:      f.Order.ID,
		OrderIndex:   f.Index,
		FilledAmount: f.Amount,
	}
}

// Views flattens a fill sequence, keeping its order
func Views(fills []Fill) []FillView {
	out := make([]FillView, len(fills))
	for i, f := range fills {
		out[i] = f.View()
	}
	return out
}

// Digest returns a hex SHA3-256 over the fill sequence.
// Two allocations over the same input collection produce the same digest.
func Digest(fills []Fill) string {
	h := sha3.New256()
	var buf [8]byte
	writeString := func(s string) {
		binary.BigEndian.PutUint64(buf[:], uint64(len(s)))
		h.Write(buf[:])
		h.Write([]byte(s))
	}
	for _, f := range fills {
		binary.BigEndian.PutUint64(buf[:], uint64(f.Account.ID))
		h.Write(buf[:])
		binary.BigEndian.PutUint64(buf[:], uint64(f.Index))
		h.Write(buf[:])
		writeString(string(f.Order.ID))
		writeString(f.Order.Price.String())
		writeString(f.Amount.String())
	}
	return hex.EncodeToString(h.Sum(nil))
}
