// Package customer implements the customer aggregate that owns accounts.
package customer

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/rschio/bank/internal/core/account"
	"github.com/rschio/bank/internal/core/money"
)

// ErrAccountNotFound is returned when the customer does not own the account.
var ErrAccountNotFound = errors.New("customer account not found")

// Customer owns an ordered list of accounts.
type Customer struct {
	personalID string
	firstName  string
	lastName   string
	accounts   []*account.Account
}

func New(firstName, lastName, personalID string) *Customer {
	return &Customer{
		personalID: personalID,
		firstName:  firstName,
		lastName:   lastName,
	}
}

func (c *Customer) PersonalID() string { return c.personalID }
func (c *Customer) FirstName() string  { return c.firstName }
func (c *Customer) LastName() string   { return c.lastName }

// String is the header line used in listings: personal id, first and last name.
func (c *Customer) String() string {
	return fmt.Sprintf("%s %s %s", c.personalID, c.firstName, c.lastName)
}

// Rename updates each non empty name.
func (c *Customer) Rename(firstName, lastName string) {
	if firstName != "" {
		c.firstName = firstName
	}
	if lastName != "" {
		c.lastName = lastName
	}
}

// Accounts returns the accounts in opening order.
func (c *Customer) Accounts() []*account.Account {
	return slices.Clone(c.accounts)
}

func (c *Customer) AddAccount(a *account.Account) {
	c.accounts = append(c.accounts, a)
}

// Account finds an owned account by id.
func (c *Customer) Account(id int) (*account.Account, error) {
	i := c.index(id)
	if i < 0 {
		return nil, fmt.Errorf("account %d: %w", id, ErrAccountNotFound)
	}
	return c.accounts[i], nil
}

// RemoveAccount closes the account and returns its closing line, taken
// before removal. The order of the remaining accounts is kept.
func (c *Customer) RemoveAccount(id int) (string, error) {
	i := c.index(id)
	if i < 0 {
		return "", fmt.Errorf("account %d: %w", id, ErrAccountNotFound)
	}

	line := c.accounts[i].Closing()
	c.accounts = slices.Delete(c.accounts, i, i+1)
	return line, nil
}

func (c *Customer) Deposit(ctx context.Context, id int, amount money.Money) error {
	a, err := c.Account(id)
	if err != nil {
		return err
	}
	a.Deposit(ctx, amount)
	return nil
}

func (c *Customer) Withdraw(ctx context.Context, id int, amount money.Money) error {
	a, err := c.Account(id)
	if err != nil {
		return err
	}
	return a.Withdraw(ctx, amount)
}

// Transactions returns the log of an owned account.
func (c *Customer) Transactions(id int) ([]account.Transaction, error) {
	a, err := c.Account(id)
	if err != nil {
		return nil, err
	}
	return a.Transactions(), nil
}

func (c *Customer) index(id int) int {
	return slices.IndexFunc(c.accounts, func(a *account.Account) bool {
		return a.ID() == id
	})
}
