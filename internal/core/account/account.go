// Package account implements the savings and credit accounts: balance,
// transaction log, interest and withdrawal rules.
package account

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rschio/bank/internal/core/money"
	"github.com/rschio/bank/internal/web"
	"github.com/shopspring/decimal"
)

// Set of errors for account API.
var (
	ErrInvalidAmount = errors.New("account invalid amount")
	ErrDenied        = errors.New("account withdrawal denied")
	ErrCorrupted     = errors.New("account state corrupted")
)

// policy holds the rules that differ between kinds.
type policy struct {
	rate func(balance money.Money) decimal.Decimal
	// charge returns the amount debited for a withdrawal of amount, or an
	// error if the withdrawal is not allowed. It must not mutate a.
	charge func(a *Account, amount money.Money) (money.Money, error)
	// charged runs after a successful debit.
	charged func(a *Account)
}

var policies = map[Kind]policy{
	Savings: savingsPolicy,
	Credit:  creditPolicy,
}

// Account is a customer account. It is not safe for concurrent use, the bank
// serialises access.
type Account struct {
	id           int
	kind         Kind
	balance      money.Money
	transactions []Transaction
	feeFreeUsed  bool
	policy       policy
}

// New opens an empty account of the given kind.
func New(id int, kind Kind) (*Account, error) {
	p, ok := policies[kind]
	if !ok {
		return nil, fmt.Errorf("new account: unknown kind %d", int(kind))
	}
	return &Account{id: id, kind: kind, policy: p}, nil
}

// Restore rebuilds an account from persisted state. The balance must match
// the transaction log.
func Restore(s State) (*Account, error) {
	a, err := New(s.ID, s.Kind)
	if err != nil {
		return nil, err
	}

	sum := money.Zero
	for _, t := range s.Transactions {
		sum = sum.Add(t.Amount)
		if !sum.Equal(t.Balance) {
			return nil, fmt.Errorf("account %d transaction %s: %w", s.ID, t.ID, ErrCorrupted)
		}
	}
	if !sum.Equal(s.Balance) {
		return nil, fmt.Errorf("account %d balance %s log %s: %w", s.ID, s.Balance, sum, ErrCorrupted)
	}

	a.balance = s.Balance
	a.feeFreeUsed = s.FeeFreeUsed
	a.transactions = slices.Clone(s.Transactions)
	return a, nil
}

func (a *Account) ID() int              { return a.id }
func (a *Account) Kind() Kind           { return a.kind }
func (a *Account) Balance() money.Money { return a.balance }

// Transactions returns a copy of the log in booking order.
func (a *Account) Transactions() []Transaction {
	return slices.Clone(a.transactions)
}

// State returns a copy of the persistent state.
func (a *Account) State() State {
	return State{
		ID:           a.id,
		Kind:         a.kind,
		Balance:      a.balance,
		FeeFreeUsed:  a.feeFreeUsed,
		Transactions: a.Transactions(),
	}
}

// Deposit adds amount to the balance. Callers validate the amount.
func (a *Account) Deposit(ctx context.Context, amount money.Money) money.Money {
	a.book(ctx, amount)
	return a.balance
}

// Withdraw applies the withdrawal rules of the account kind. On error neither
// the balance nor the log change.
func (a *Account) Withdraw(ctx context.Context, amount money.Money) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	debit, err := a.policy.charge(a, amount)
	if err != nil {
		return err
	}

	a.book(ctx, debit.Neg())
	if a.policy.charged != nil {
		a.policy.charged(a)
	}
	return nil
}

// InterestRate returns the current rate in percent.
func (a *Account) InterestRate() decimal.Decimal {
	return a.policy.rate(a.balance)
}

// Interest returns the interest on the current balance. It is never booked.
func (a *Account) Interest() money.Money {
	return a.balance.Percent(a.InterestRate())
}

// Summary is the account line shown in customer listings.
func (a *Account) Summary() string {
	return fmt.Sprintf("%d %s %s %s", a.id, a.balance.Format(), a.kind, money.FormatPercent(a.InterestRate()))
}

// Closing is the account line reported when the account is closed.
func (a *Account) Closing() string {
	return fmt.Sprintf("%d %s %s %s", a.id, a.balance.Format(), a.kind, a.Interest().Format())
}

func (a *Account) book(ctx context.Context, amount money.Money) {
	a.balance = a.balance.Add(amount)
	a.transactions = append(a.transactions, Transaction{
		ID:      uuid.New(),
		Date:    web.GetTime(ctx).Round(time.Microsecond),
		Amount:  amount,
		Balance: a.balance,
	})
}
