package bankcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/google/go-cmp/cmp"
	"github.com/rschio/bank/internal/core/bank"
	"github.com/rschio/bank/internal/core/bank/store/stream"
	"github.com/rschio/bank/internal/core/money"
	"github.com/rschio/bank/internal/data/dbtest"
)

func TestSaveLoad(t *testing.T) {
	ctx := context.Background()
	log, client, teardown := dbtest.NewRedis(t)
	t.Cleanup(teardown)

	store := NewStore(log, client, "bank:test")

	if _, err := store.Load(ctx); !errors.Is(err, bank.ErrNoSnapshot) {
		t.Fatalf("got %v want %v", err, bank.ErrNoSnapshot)
	}

	b := bank.New()
	if err := b.CreateCustomer(ctx, "Ann", "Lee", "9001011234"); err != nil {
		t.Fatal(err)
	}
	id, _ := b.CreateCreditAccount(ctx, "9001011234")
	if err := b.Withdraw(ctx, "9001011234", id, money.MustParse("10")); err != nil {
		t.Fatal(err)
	}

	if err := b.Export(ctx, store); err != nil {
		t.Fatalf("export: %v", err)
	}

	loaded := bank.New()
	if err := loaded.Import(ctx, store); err != nil {
		t.Fatalf("import: %v", err)
	}
	if diff := cmp.Diff(b.Snapshot(ctx), loaded.Snapshot(ctx), cmp.Comparer(money.Money.Equal)); diff != "" {
		t.Fatalf("imported bank differs: %s", diff)
	}

	if exists := client.Exists(ctx, store.lockKey()).Val(); exists != 0 {
		t.Fatal("lock was not released")
	}
}

func TestLoadCorrupt(t *testing.T) {
	ctx := context.Background()
	log, client, teardown := dbtest.NewRedis(t)
	t.Cleanup(teardown)

	store := NewStore(log, client, "bank:corrupt")
	if err := client.Set(ctx, "bank:corrupt", "garbage", 0).Err(); err != nil {
		t.Fatal(err)
	}

	if _, err := store.Load(ctx); !errors.Is(err, stream.ErrFormat) {
		t.Fatalf("got %v want %v", err, stream.ErrFormat)
	}
}

func TestLocked(t *testing.T) {
	ctx := context.Background()
	log, client, teardown := dbtest.NewRedis(t)
	t.Cleanup(teardown)

	store := NewStore(log, client, "bank:locked")

	other := store.rs.NewMutex(store.lockKey(), redsync.WithExpiry(time.Minute))
	if err := other.LockContext(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { other.UnlockContext(ctx) })

	err := store.Save(ctx, bank.Snapshot{LastAccountID: 1000, Customers: []bank.CustomerRecord{{PersonalID: "x"}}})
	if !errors.Is(err, ErrLocked) {
		t.Fatalf("got %v want %v", err, ErrLocked)
	}
}
