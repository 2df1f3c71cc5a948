package bank

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rschio/bank/internal/core/account"
	"github.com/rschio/bank/internal/core/money"
)

// CustomerSummary is one entry of the customer listing.
type CustomerSummary struct {
	PersonalID string
	FirstName  string
	LastName   string
}

// Statement is a customer header line followed by one line per account. It
// is returned both by the customer detail and by a customer deletion, where
// the account lines are the closing lines.
type Statement struct {
	PersonalID string
	Header     string
	Accounts   []string
}

// Lines returns the header followed by the account lines.
func (s Statement) Lines() []string {
	return append([]string{s.Header}, s.Accounts...)
}

// Report is the transaction export of one account.
type Report struct {
	Generated    time.Time
	AccountID    int
	Transactions []string
	Balance      money.Money
}

// WriteTo writes the plain text report.
func (r Report) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Transactions saved: %s\n", r.Generated.Format(time.DateTime))
	fmt.Fprintf(&b, "Account: %d\n", r.AccountID)
	for _, t := range r.Transactions {
		b.WriteString(t)
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "Current balance: %s\n", r.Balance.Format())

	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

// Snapshot is the complete state of a bank handed to a Store.
type Snapshot struct {
	LastAccountID int
	Customers     []CustomerRecord
}

// CustomerRecord is the persistent state of a customer and its accounts.
type CustomerRecord struct {
	PersonalID string
	FirstName  string
	LastName   string
	Accounts   []account.State
}
