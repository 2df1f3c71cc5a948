package bankdb

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rschio/bank/internal/core/account"
	"github.com/rschio/bank/internal/core/money"
)

// Amounts travel as text and are cast in SQL so no float ever touches them.

type dbMeta struct {
	LastAccountID int `db:"last_account_id"`
}

type dbCustomer struct {
	PersonalID string `db:"personal_id"`
	FirstName  string `db:"first_name"`
	LastName   string `db:"last_name"`
	Position   int    `db:"position"`
}

type dbAccount struct {
	ID          int    `db:"id"`
	PersonalID  string `db:"personal_id"`
	Kind        int    `db:"kind"`
	Balance     string `db:"balance"`
	FeeFreeUsed bool   `db:"fee_free_used"`
	Position    int    `db:"position"`
}

type dbTransaction struct {
	ID        uuid.UUID `db:"id"`
	AccountID int       `db:"account_id"`
	Seq       int       `db:"seq"`
	Amount    string    `db:"amount"`
	Balance   string    `db:"balance"`
	Date      time.Time `db:"date_created"`
}

func toDBAccount(personalID string, pos int, a account.State) dbAccount {
	return dbAccount{
		ID:          a.ID,
		PersonalID:  personalID,
		Kind:        int(a.Kind),
		Balance:     a.Balance.String(),
		FeeFreeUsed: a.FeeFreeUsed,
		Position:    pos,
	}
}

func toDBTransaction(accountID, seq int, t account.Transaction) dbTransaction {
	return dbTransaction{
		ID:        t.ID,
		AccountID: accountID,
		Seq:       seq,
		Amount:    t.Amount.String(),
		Balance:   t.Balance.String(),
		Date:      t.Date,
	}
}

func toAccountState(a dbAccount, ts []dbTransaction) (account.State, error) {
	balance, err := money.Parse(a.Balance)
	if err != nil {
		return account.State{}, fmt.Errorf("account %d: %w", a.ID, err)
	}

	st := account.State{
		ID:          a.ID,
		Kind:        account.Kind(a.Kind),
		Balance:     balance,
		FeeFreeUsed: a.FeeFreeUsed,
	}
	for _, t := range ts {
		tx, err := toTransaction(t)
		if err != nil {
			return account.State{}, err
		}
		st.Transactions = append(st.Transactions, tx)
	}
	return st, nil
}

func toTransaction(t dbTransaction) (account.Transaction, error) {
	amount, err := money.Parse(t.Amount)
	if err != nil {
		return account.Transaction{}, fmt.Errorf("transaction %s: %w", t.ID, err)
	}
	balance, err := money.Parse(t.Balance)
	if err != nil {
		return account.Transaction{}, fmt.Errorf("transaction %s: %w", t.ID, err)
	}

	return account.Transaction{
		ID:      t.ID,
		Date:    t.Date.UTC(),
		Amount:  amount,
		Balance: balance,
	}, nil
}
