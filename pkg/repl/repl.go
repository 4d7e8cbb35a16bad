// Package repl is the interactive console over an Exchange.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/uhyunpark/metaexchange/pkg/app/core"
	"github.com/uhyunpark/metaexchange/pkg/app/core/orderbook"
)

const menu = `Press Q or Escape to quit
Press C to enter balance constraints
Press B to buy
Press S to sell
Press A to list accounts
`

type REPL struct {
	ex  *core.Exchange
	in  *bufio.Reader
	out io.Writer
}

func New(ex *core.Exchange, in io.Reader, out io.Writer) *REPL {
	return &REPL{ex: ex, in: bufio.NewReader(in), out: out}
}

// readLine returns the next input line without its terminator.
// io.EOF is returned only when no data precedes it.
func (r *REPL) readLine() (string, error) {
	line, err := r.in.ReadString('\n')
	if err == io.EOF && line != "" {
		err = nil
	}
	return strings.TrimRight(line, "\r\n"), err
}

func (r *REPL) prompt(text string) (string, error) {
	fmt.Fprintln(r.out, text)
	return r.readLine()
}

// Run loops until quit, end of input or ctx cancellation
func (r *REPL) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		money, asset := r.ex.Totals()
		fmt.Fprintf(r.out, "Money: %s, Cryptocurrency %s\n", money, asset)
		fmt.Fprint(r.out, menu)

		line, err := r.readLine()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		cmd := strings.ToUpper(strings.TrimSpace(line))
		switch {
		case cmd == "Q" || cmd == "ESC" || strings.HasPrefix(cmd, "\x1b"):
			return nil
		case cmd == "C":
			err = r.constraints()
		case cmd == "B":
			err = r.allocate(orderbook.Buy)
		case cmd == "S":
			err = r.allocate(orderbook.Sell)
		case cmd == "A":
			r.accounts()
		case cmd == "":
		default:
			fmt.Fprintf(r.out, "unknown command %q\n", line)
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// constraints sets every account's balances. An unparsable answer keeps
// each account's current value for that balance.
func (r *REPL) constraints() error {
	moneyLine, err := r.prompt("Enter money balance:")
	if err != nil {
		return err
	}
	assetLine, err := r.prompt("Enter cryptocurrency balance:")
	if err != nil {
		return err
	}
	money, moneyErr := decimal.NewFromString(strings.TrimSpace(moneyLine))
	asset, assetErr := decimal.NewFromString(strings.TrimSpace(assetLine))

	if moneyErr == nil && assetErr == nil {
		if err := r.ex.SetBalances(money, asset); err != nil {
			fmt.Fprintf(r.out, "rejected: %v\n", err)
		}
		return nil
	}
	for _, b := range r.ex.Accounts() {
		m, a := b.Money, b.Asset
		if moneyErr == nil {
			m = money
		}
		if assetErr == nil {
			a = asset
		}
		if err := r.ex.SetAccountBalances(b.ID, m, a); err != nil {
			fmt.Fprintf(r.out, "rejected: %v\n", err)
			return nil
		}
	}
	return nil
}

func (r *REPL) allocate(side orderbook.Side) error {
	line, err := r.prompt(fmt.Sprintf("Enter quantity to %s:", side))
	if err != nil {
		return err
	}
	qty, err := decimal.NewFromString(strings.TrimSpace(line))
	if err != nil {
		fmt.Fprintf(r.out, "invalid quantity %q\n", line)
		return nil
	}

	res := r.ex.Allocate(side, qty)
	for _, f := range res.Fills {
		fmt.Fprintf(r.out, "account=%d price=%s order=%s amount=%s\n",
			f.Account.ID, f.Price(), f.Order.ID, f.Amount)
	}
	fmt.Fprintf(r.out, "%s filled %s of %s (unfilled %s) notional %s avg price %s\n",
		side, res.Filled, res.Requested, res.Unfilled, res.Notional, res.AveragePrice())
	return nil
}

func (r *REPL) accounts() {
	for _, b := range r.ex.Accounts() {
		bid, ask := "-", "-"
		if book, err := r.ex.Book(b.ID); err == nil {
			if p, ok := book.BestBid(); ok {
				bid = p.String()
			}
			if p, ok := book.BestAsk(); ok {
				ask = p.String()
			}
		}
		fmt.Fprintf(r.out, "account=%d money=%s asset=%s best_bid=%s best_ask=%s\n", b.ID, b.Money, b.Asset, bid, ask)
	}
}
