// Package bankdb stores a bank snapshot in PostgreSQL.
package bankdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rschio/bank/internal/core/bank"
	db "github.com/rschio/bank/internal/data/dbsql/pgx"
	"github.com/rschio/bank/internal/web"
)

type Store struct {
	log *slog.Logger
	db  db.DB
}

func NewStore(log *slog.Logger, database db.DB) *Store {
	return &Store{
		log: log,
		db:  database,
	}
}

// Save replaces the stored bank with snap in a single transaction. A
// snapshot repeating a personal id, account id or transaction id is rejected
// with bank.ErrInvalidArgument and the stored bank is kept.
func (s *Store) Save(ctx context.Context, snap bank.Snapshot) error {
	ctx, span := web.AddSpan(ctx, "core.bank.store.bankdb.Save")
	defer span.End()

	err := db.WithinTx(ctx, s.db, func(tx db.DB) error {
		// Accounts and transactions go with their customer.
		if err := db.Exec(ctx, s.log, tx, `DELETE FROM customers`); err != nil {
			return fmt.Errorf("clear customers: %w", err)
		}

		const qMeta = `
		INSERT INTO bank_meta
			(id, last_account_id)
		VALUES
			(1, @last_account_id)
		ON CONFLICT (id) DO UPDATE SET
			last_account_id = EXCLUDED.last_account_id`

		if err := db.NamedExec(ctx, s.log, tx, qMeta, dbMeta{LastAccountID: snap.LastAccountID}); err != nil {
			return fmt.Errorf("save meta: %w", err)
		}

		for i, c := range snap.Customers {
			if err := s.saveCustomer(ctx, tx, i, c); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, db.ErrDBDuplicatedEntry) {
		return fmt.Errorf("%w: %w", bank.ErrInvalidArgument, err)
	}
	return err
}

func (s *Store) saveCustomer(ctx context.Context, tx db.DB, pos int, c bank.CustomerRecord) error {
	const qCustomer = `
	INSERT INTO customers
		(personal_id, first_name, last_name, position)
	VALUES
		(@personal_id, @first_name, @last_name, @position)`

	const qAccount = `
	INSERT INTO accounts
		(id, personal_id, kind, balance, fee_free_used, position)
	VALUES
		(@id, @personal_id, @kind, @balance::numeric, @fee_free_used, @position)`

	const qTransaction = `
	INSERT INTO transactions
		(id, account_id, seq, amount, balance, date_created)
	VALUES
		(@id, @account_id, @seq, @amount::numeric, @balance::numeric, @date_created)`

	dbc := dbCustomer{
		PersonalID: c.PersonalID,
		FirstName:  c.FirstName,
		LastName:   c.LastName,
		Position:   pos,
	}
	if err := db.NamedExec(ctx, s.log, tx, qCustomer, dbc); err != nil {
		return fmt.Errorf("save customer %s: %w", c.PersonalID, err)
	}

	for j, a := range c.Accounts {
		if err := db.NamedExec(ctx, s.log, tx, qAccount, toDBAccount(c.PersonalID, j, a)); err != nil {
			return fmt.Errorf("save account %d: %w", a.ID, err)
		}

		for k, t := range a.Transactions {
			if err := db.NamedExec(ctx, s.log, tx, qTransaction, toDBTransaction(a.ID, k, t)); err != nil {
				return fmt.Errorf("save transaction %s: %w", t.ID, err)
			}
		}
	}
	return nil
}

// Load reads the stored bank.
func (s *Store) Load(ctx context.Context) (bank.Snapshot, error) {
	ctx, span := web.AddSpan(ctx, "core.bank.store.bankdb.Load")
	defer span.End()

	const qMeta = `
	SELECT
		last_account_id
	FROM
		bank_meta
	WHERE
		id = 1`

	const qCustomers = `
	SELECT
		personal_id, first_name, last_name, position
	FROM
		customers
	ORDER BY
		position`

	const qAccounts = `
	SELECT
		id, personal_id, kind, balance::text AS balance, fee_free_used, position
	FROM
		accounts
	ORDER BY
		personal_id, position`

	const qTransactions = `
	SELECT
		id, account_id, seq, amount::text AS amount, balance::text AS balance, date_created
	FROM
		transactions
	ORDER BY
		account_id, seq`

	var snap bank.Snapshot
	err := db.WithinTx(ctx, s.db, func(tx db.DB) error {
		meta, err := db.NamedQueryStruct[dbMeta](ctx, s.log, tx, qMeta, struct{}{})
		if err != nil {
			if errors.Is(err, db.ErrDBNotFound) {
				return bank.ErrNoSnapshot
			}
			return fmt.Errorf("load meta: %w", err)
		}

		customers, err := db.NamedQuerySlice[dbCustomer](ctx, s.log, tx, qCustomers, struct{}{})
		if err != nil {
			return fmt.Errorf("load customers: %w", err)
		}
		if len(customers) == 0 {
			return bank.ErrNoSnapshot
		}

		accounts, err := db.NamedQuerySlice[dbAccount](ctx, s.log, tx, qAccounts, struct{}{})
		if err != nil {
			return fmt.Errorf("load accounts: %w", err)
		}

		transactions, err := db.NamedQuerySlice[dbTransaction](ctx, s.log, tx, qTransactions, struct{}{})
		if err != nil {
			return fmt.Errorf("load transactions: %w", err)
		}

		snap, err = assemble(meta, customers, accounts, transactions)
		return err
	})
	if err != nil {
		return bank.Snapshot{}, err
	}

	return snap, nil
}

// assemble groups the rows, already sorted by the queries, into a snapshot.
func assemble(meta dbMeta, customers []dbCustomer, accounts []dbAccount, transactions []dbTransaction) (bank.Snapshot, error) {
	txByAccount := make(map[int][]dbTransaction)
	for _, t := range transactions {
		txByAccount[t.AccountID] = append(txByAccount[t.AccountID], t)
	}

	accByCustomer := make(map[string][]dbAccount)
	for _, a := range accounts {
		accByCustomer[a.PersonalID] = append(accByCustomer[a.PersonalID], a)
	}

	snap := bank.Snapshot{
		LastAccountID: meta.LastAccountID,
		Customers:     make([]bank.CustomerRecord, 0, len(customers)),
	}
	for _, c := range customers {
		r := bank.CustomerRecord{
			PersonalID: c.PersonalID,
			FirstName:  c.FirstName,
			LastName:   c.LastName,
		}
		for _, a := range accByCustomer[c.PersonalID] {
			st, err := toAccountState(a, txByAccount[a.ID])
			if err != nil {
				return bank.Snapshot{}, err
			}
			r.Accounts = append(r.Accounts, st)
		}
		snap.Customers = append(snap.Customers, r)
	}

	return snap, nil
}
