package bank

import (
	"context"
	"fmt"

	"github.com/rschio/bank/internal/core/account"
	"github.com/rschio/bank/internal/core/customer"
)

// Snapshot returns a copy of the current state.
func (b *Bank) Snapshot(ctx context.Context) Snapshot {
	_, end := b.begin(ctx, "Snapshot")
	defer end()

	return b.snapshot()
}

// Export saves every customer to the store. A bank without customers is not
// exported.
func (b *Bank) Export(ctx context.Context, store Store) error {
	ctx, end := b.begin(ctx, "Export")
	defer end()

	if len(b.customers) == 0 {
		return ErrNothingToExport
	}

	if err := store.Save(ctx, b.snapshot()); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return nil
}

// Import replaces every customer with the ones in the store and resets the
// account id allocator. On error the bank is left as it was.
func (b *Bank) Import(ctx context.Context, store Store) error {
	ctx, end := b.begin(ctx, "Import")
	defer end()

	snap, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}

	customers, lastID, err := restore(snap)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}

	b.customers = customers
	b.ids.ResetTo(lastID)
	return nil
}

func (b *Bank) snapshot() Snapshot {
	s := Snapshot{
		LastAccountID: b.ids.Last(),
		Customers:     make([]CustomerRecord, len(b.customers)),
	}
	for i, c := range b.customers {
		r := CustomerRecord{
			PersonalID: c.PersonalID(),
			FirstName:  c.FirstName(),
			LastName:   c.LastName(),
		}
		for _, a := range c.Accounts() {
			r.Accounts = append(r.Accounts, a.State())
		}
		s.Customers[i] = r
	}
	return s
}

// restore builds the customers of a snapshot without touching the bank. The
// returned id is the highest of the stored counter and every loaded account.
func restore(snap Snapshot) ([]*customer.Customer, int, error) {
	if len(snap.Customers) == 0 {
		return nil, 0, ErrNoSnapshot
	}

	lastID := max(snap.LastAccountID, idSeed)
	seenCustomers := make(map[string]bool, len(snap.Customers))
	seenAccounts := make(map[int]bool)

	customers := make([]*customer.Customer, 0, len(snap.Customers))
	for _, r := range snap.Customers {
		if r.PersonalID == "" || seenCustomers[r.PersonalID] {
			return nil, 0, fmt.Errorf("customer %q: %w", r.PersonalID, ErrInvalidArgument)
		}
		seenCustomers[r.PersonalID] = true

		c := customer.New(r.FirstName, r.LastName, r.PersonalID)
		for _, st := range r.Accounts {
			if seenAccounts[st.ID] {
				return nil, 0, fmt.Errorf("account %d duplicated: %w", st.ID, ErrInvalidArgument)
			}
			seenAccounts[st.ID] = true

			a, err := account.Restore(st)
			if err != nil {
				return nil, 0, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
			}
			c.AddAccount(a)
			lastID = max(lastID, a.ID())
		}
		customers = append(customers, c)
	}

	return customers, lastID, nil
}
