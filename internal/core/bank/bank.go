// Package bank is the entry point to the customers and accounts of a bank.
package bank

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"sync"

	"github.com/rschio/bank/internal/core/account"
	"github.com/rschio/bank/internal/core/customer"
	"github.com/rschio/bank/internal/core/money"
	"github.com/rschio/bank/internal/web"
	"go.opentelemetry.io/otel/attribute"
)

// Set of errors for bank API.
var (
	ErrNotFound          = errors.New("bank not found")
	ErrInvalidArgument   = errors.New("bank invalid argument")
	ErrTransactionDenied = errors.New("bank transaction denied")
	ErrAlreadyExists     = errors.New("bank customer already exists")
	ErrNothingToExport   = errors.New("bank has no customers to export")
	ErrNoSnapshot        = errors.New("bank snapshot not found")
)

// NoAccount is the account id returned when an account could not be opened.
const NoAccount = -1

// Store is used to persist the whole bank.
type Store interface {
	Save(ctx context.Context, s Snapshot) error
	Load(ctx context.Context) (Snapshot, error)
}

// Bank owns the customers. All operations are serialised, an export or import
// holds the bank for its whole duration.
type Bank struct {
	mu        sync.Mutex
	ids       *IDAllocator
	customers []*customer.Customer
}

// New returns an empty bank with its own id allocator.
func New() *Bank {
	return NewWithIDs(NewIDAllocator())
}

// NewWithIDs returns an empty bank that issues account ids from ids.
func NewWithIDs(ids *IDAllocator) *Bank {
	return &Bank{ids: ids}
}

func (b *Bank) begin(ctx context.Context, op string, kv ...attribute.KeyValue) (context.Context, func()) {
	ctx, span := web.AddSpan(ctx, "core.bank."+op, kv...)
	b.mu.Lock()
	return ctx, func() {
		b.mu.Unlock()
		span.End()
	}
}

// CreateCustomer registers a new customer. The personal id must be unused.
func (b *Bank) CreateCustomer(ctx context.Context, firstName, lastName, personalID string) error {
	_, end := b.begin(ctx, "CreateCustomer", attribute.String("personal_id", personalID))
	defer end()

	if personalID == "" {
		return fmt.Errorf("empty personal id: %w", ErrInvalidArgument)
	}
	if b.find(personalID) != nil {
		return fmt.Errorf("customer %s: %w", personalID, ErrAlreadyExists)
	}

	b.customers = append(b.customers, customer.New(firstName, lastName, personalID))
	return nil
}

// Customers lists the customers in registration order. Every iteration reads
// the current state.
func (b *Bank) Customers(ctx context.Context) iter.Seq[CustomerSummary] {
	return func(yield func(CustomerSummary) bool) {
		_, end := b.begin(ctx, "Customers")
		list := make([]CustomerSummary, len(b.customers))
		for i, c := range b.customers {
			list[i] = CustomerSummary{
				PersonalID: c.PersonalID(),
				FirstName:  c.FirstName(),
				LastName:   c.LastName(),
			}
		}
		end()

		for _, s := range list {
			if !yield(s) {
				return
			}
		}
	}
}

// Customer returns the customer header and one summary line per account.
func (b *Bank) Customer(ctx context.Context, personalID string) (Statement, error) {
	_, end := b.begin(ctx, "Customer", attribute.String("personal_id", personalID))
	defer end()

	c, err := b.customer(personalID)
	if err != nil {
		return Statement{}, err
	}

	s := Statement{PersonalID: c.PersonalID(), Header: c.String()}
	for _, a := range c.Accounts() {
		s.Accounts = append(s.Accounts, a.Summary())
	}
	return s, nil
}

// RenameCustomer changes the non empty names. At least one must be given.
func (b *Bank) RenameCustomer(ctx context.Context, firstName, lastName, personalID string) error {
	_, end := b.begin(ctx, "RenameCustomer", attribute.String("personal_id", personalID))
	defer end()

	c, err := b.customer(personalID)
	if err != nil {
		return err
	}
	if firstName == "" && lastName == "" {
		return fmt.Errorf("both names empty: %w", ErrInvalidArgument)
	}

	c.Rename(firstName, lastName)
	return nil
}

// DeleteCustomer closes every account of the customer and removes it. The
// returned statement holds the closing line of each account.
func (b *Bank) DeleteCustomer(ctx context.Context, personalID string) (Statement, error) {
	_, end := b.begin(ctx, "DeleteCustomer", attribute.String("personal_id", personalID))
	defer end()

	c, err := b.customer(personalID)
	if err != nil {
		return Statement{}, err
	}

	s := Statement{PersonalID: c.PersonalID(), Header: c.String()}

	// Close whatever account is first until none is left.
	for accounts := c.Accounts(); len(accounts) > 0; accounts = c.Accounts() {
		line, err := c.RemoveAccount(accounts[0].ID())
		if err != nil {
			return Statement{}, fmt.Errorf("closing account %d: %w", accounts[0].ID(), err)
		}
		s.Accounts = append(s.Accounts, line)
	}

	b.customers = slices.DeleteFunc(b.customers, func(cc *customer.Customer) bool {
		return cc == c
	})
	return s, nil
}

// CreateSavingsAccount opens a savings account and returns its id.
func (b *Bank) CreateSavingsAccount(ctx context.Context, personalID string) (int, error) {
	return b.openAccount(ctx, personalID, account.Savings)
}

// CreateCreditAccount opens a credit account and returns its id.
func (b *Bank) CreateCreditAccount(ctx context.Context, personalID string) (int, error) {
	return b.openAccount(ctx, personalID, account.Credit)
}

// OpenAccount opens an account of any kind and returns its id.
func (b *Bank) OpenAccount(ctx context.Context, personalID string, kind account.Kind) (int, error) {
	return b.openAccount(ctx, personalID, kind)
}

func (b *Bank) openAccount(ctx context.Context, personalID string, kind account.Kind) (int, error) {
	_, end := b.begin(ctx, "OpenAccount",
		attribute.String("personal_id", personalID),
		attribute.String("kind", kind.String()),
	)
	defer end()

	c, err := b.customer(personalID)
	if err != nil {
		return NoAccount, err
	}
	if !kind.Valid() {
		return NoAccount, fmt.Errorf("account kind %d: %w", int(kind), ErrInvalidArgument)
	}

	a, err := account.New(b.ids.Next(), kind)
	if err != nil {
		return NoAccount, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	c.AddAccount(a)
	return a.ID(), nil
}

// Account returns the summary line of an account owned by the customer.
func (b *Bank) Account(ctx context.Context, personalID string, accountID int) (string, error) {
	_, end := b.begin(ctx, "Account", accountAttrs(personalID, accountID)...)
	defer end()

	a, err := b.account(personalID, accountID)
	if err != nil {
		return "", err
	}
	return a.Summary(), nil
}

// Transactions returns the log of an account owned by the customer.
func (b *Bank) Transactions(ctx context.Context, personalID string, accountID int) ([]account.Transaction, error) {
	_, end := b.begin(ctx, "Transactions", accountAttrs(personalID, accountID)...)
	defer end()

	c, err := b.customer(personalID)
	if err != nil {
		return nil, err
	}

	txs, err := c.Transactions(accountID)
	if err != nil {
		return nil, classify(err)
	}
	return txs, nil
}

// TransactionReport builds the transaction export of an account.
func (b *Bank) TransactionReport(ctx context.Context, personalID string, accountID int) (Report, error) {
	ctx, end := b.begin(ctx, "TransactionReport", accountAttrs(personalID, accountID)...)
	defer end()

	a, err := b.account(personalID, accountID)
	if err != nil {
		return Report{}, err
	}

	r := Report{
		Generated: web.GetTime(ctx),
		AccountID: a.ID(),
		Balance:   a.Balance(),
	}
	for _, t := range a.Transactions() {
		r.Transactions = append(r.Transactions, t.String())
	}
	return r, nil
}

// Deposit puts a positive amount into an account owned by the customer.
func (b *Bank) Deposit(ctx context.Context, personalID string, accountID int, amount money.Money) error {
	ctx, end := b.begin(ctx, "Deposit", accountAttrs(personalID, accountID)...)
	defer end()

	c, err := b.customer(personalID)
	if err != nil {
		return err
	}
	if !amount.IsPositive() {
		return fmt.Errorf("deposit %s: %w", amount, ErrInvalidArgument)
	}

	return classify(c.Deposit(ctx, accountID, amount))
}

// Withdraw takes amount from an account owned by the customer. The amount is
// checked by the account rules only.
func (b *Bank) Withdraw(ctx context.Context, personalID string, accountID int, amount money.Money) error {
	ctx, end := b.begin(ctx, "Withdraw", accountAttrs(personalID, accountID)...)
	defer end()

	c, err := b.customer(personalID)
	if err != nil {
		return err
	}

	return classify(c.Withdraw(ctx, accountID, amount))
}

// CloseAccount removes an account from the customer and returns its closing
// line.
func (b *Bank) CloseAccount(ctx context.Context, personalID string, accountID int) (string, error) {
	_, end := b.begin(ctx, "CloseAccount", accountAttrs(personalID, accountID)...)
	defer end()

	c, err := b.customer(personalID)
	if err != nil {
		return "", err
	}

	line, err := c.RemoveAccount(accountID)
	if err != nil {
		return "", classify(err)
	}
	return line, nil
}

// =============================================================================

func (b *Bank) find(personalID string) *customer.Customer {
	i := slices.IndexFunc(b.customers, func(c *customer.Customer) bool {
		return c.PersonalID() == personalID
	})
	if i < 0 {
		return nil
	}
	return b.customers[i]
}

func (b *Bank) customer(personalID string) (*customer.Customer, error) {
	c := b.find(personalID)
	if c == nil {
		return nil, fmt.Errorf("customer %s: %w", personalID, ErrNotFound)
	}
	return c, nil
}

func (b *Bank) account(personalID string, accountID int) (*account.Account, error) {
	c, err := b.customer(personalID)
	if err != nil {
		return nil, err
	}
	a, err := c.Account(accountID)
	if err != nil {
		return nil, classify(err)
	}
	return a, nil
}

// classify maps errors of the lower layers to the bank error set.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, customer.ErrAccountNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, account.ErrInvalidAmount):
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	case errors.Is(err, account.ErrDenied):
		return fmt.Errorf("%w: %w", ErrTransactionDenied, err)
	}
	return err
}

func accountAttrs(personalID string, accountID int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("personal_id", personalID),
		attribute.Int("account_id", accountID),
	}
}
