// Package ledger provides an in-memory account ledger with free and reserved
// balances. It implements core.Ledger for the auction engine.
package ledger

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/cloudx-io/assetauction/core"
)

// Balance holds an account's funds.
type Balance struct {
	Free     decimal.Decimal `json:"free"`
	Reserved decimal.Decimal `json:"reserved"`
}

// Total returns free plus reserved funds.
func (b Balance) Total() decimal.Decimal {
	return b.Free.Add(b.Reserved)
}

// Ledger is a map of balances. It is not safe for concurrent use; the engine's
// sequencer serializes access.
type Ledger struct {
	accounts map[core.AccountID]*Balance
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{accounts: make(map[core.AccountID]*Balance)}
}

func (l *Ledger) account(who core.AccountID) *Balance {
	b, ok := l.accounts[who]
	if !ok {
		b = &Balance{}
		l.accounts[who] = b
	}
	return b
}

// Deposit credits amount to who's free balance.
func (l *Ledger) Deposit(who core.AccountID, amount decimal.Decimal) error {
	if who == "" {
		return fmt.Errorf("%w: account is required", core.ErrInvalidInput)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: deposit must be positive, got %s", core.ErrInvalidInput, amount)
	}
	b := l.account(who)
	b.Free = b.Free.Add(amount)
	return nil
}

// Balance returns a copy of who's balance. Unknown accounts have zero balance.
func (l *Ledger) Balance(who core.AccountID) Balance {
	if b, ok := l.accounts[who]; ok {
		return *b
	}
	return Balance{}
}

// Reserve moves amount from free to reserved.
func (l *Ledger) Reserve(who core.AccountID, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: reserve amount %s is negative", core.ErrInvalidInput, amount)
	}
	b := l.account(who)
	if b.Free.LessThan(amount) {
		return fmt.Errorf("%w: %s has %s free, needs %s", core.ErrInsufficientFunds, who, b.Free, amount)
	}
	b.Free = b.Free.Sub(amount)
	b.Reserved = b.Reserved.Add(amount)
	return nil
}

// Unreserve moves up to amount from reserved to free and returns the part of
// amount that was not reserved.
func (l *Ledger) Unreserve(who core.AccountID, amount decimal.Decimal) decimal.Decimal {
	if !amount.IsPositive() {
		return decimal.Zero
	}
	b, ok := l.accounts[who]
	if !ok {
		return amount
	}
	released := decimal.Min(amount, b.Reserved)
	b.Reserved = b.Reserved.Sub(released)
	b.Free = b.Free.Add(released)
	return amount.Sub(released)
}

// Transfer moves amount between free balances.
func (l *Ledger) Transfer(from, to core.AccountID, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: transfer amount %s is negative", core.ErrInvalidInput, amount)
	}
	src := l.account(from)
	if src.Free.LessThan(amount) {
		return fmt.Errorf("%w: %s has %s free, needs %s", core.ErrInsufficientFunds, from, src.Free, amount)
	}
	dst := l.account(to)
	src.Free = src.Free.Sub(amount)
	dst.Free = dst.Free.Add(amount)
	return nil
}

// AccountBalance is one row of a ledger snapshot.
type AccountBalance struct {
	Account core.AccountID `json:"account"`
	Balance
}

// Snapshot lists every account, sorted by id.
func (l *Ledger) Snapshot() []AccountBalance {
	rows := make([]AccountBalance, 0, len(l.accounts))
	for who, b := range l.accounts {
		rows = append(rows, AccountBalance{Account: who, Balance: *b})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Account < rows[j].Account })
	return rows
}

// Restore builds a ledger from snapshot rows.
func Restore(rows []AccountBalance) *Ledger {
	l := New()
	l.Reset(rows)
	return l
}

// Reset replaces every balance with rows.
func (l *Ledger) Reset(rows []AccountBalance) {
	l.accounts = make(map[core.AccountID]*Balance, len(rows))
	for _, row := range rows {
		b := row.Balance
		l.accounts[row.Account] = &b
	}
}

var _ core.Ledger = (*Ledger)(nil)
