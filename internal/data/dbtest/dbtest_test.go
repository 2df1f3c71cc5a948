package dbtest

import (
	"context"
	"testing"

	db "github.com/rschio/bank/internal/data/dbsql/pgx"
)

func TestNewUnit(t *testing.T) {
	ctx := context.Background()
	log, database, teardown := NewUnit(t, WithMigrations())
	t.Cleanup(teardown)
	log.Info("Hello")

	if err := db.StatusCheck(ctx, database); err != nil {
		t.Fatal(err)
	}

	var n int
	if err := database.QueryRow(ctx, `SELECT count(*) FROM customers`).Scan(&n); err != nil {
		t.Fatalf("customers table missing: %v", err)
	}
}

func TestNewRedis(t *testing.T) {
	_, client, teardown := NewRedis(t)
	t.Cleanup(teardown)

	if err := client.Set(context.Background(), "k", "v", 0).Err(); err != nil {
		t.Fatal(err)
	}
}
