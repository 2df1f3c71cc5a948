package account

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rschio/bank/internal/core/money"
)

// Kind is the account variant. It is fixed when the account is opened.
type Kind int

const (
	Savings Kind = iota + 1
	Credit
)

// String returns the display name of the kind.
func (k Kind) String() string {
	switch k {
	case Savings:
		return "Sparkonto"
	case Credit:
		return "Kreditkonto"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	_, ok := policies[k]
	return ok
}

// ParseKind accepts the API names of the kinds.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "savings":
		return Savings, nil
	case "credit":
		return Credit, nil
	}
	return 0, fmt.Errorf("unknown account kind %q", s)
}

// Transaction is one entry of the account log. Amount is signed: deposits
// are positive, withdrawals negative.
type Transaction struct {
	ID      uuid.UUID
	Date    time.Time
	Amount  money.Money
	Balance money.Money
}

const dateLayout = "2006-01-02 15:04:05"

// String renders the line used by listings and transaction exports.
func (t Transaction) String() string {
	return t.Date.Format(dateLayout) + " " + t.Amount.Format() + " " + t.Balance.Format()
}

// State is the full persistent state of an account.
type State struct {
	ID           int
	Kind         Kind
	Balance      money.Money
	FeeFreeUsed  bool
	Transactions []Transaction
}
