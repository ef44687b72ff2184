package repository

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
)

// Set CALIBRATE_TEST_POSTGRES_DSN to run against PostgreSQL.
func TestPostgresStore_Contract(t *testing.T) {
	dsn := os.Getenv("CALIBRATE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CALIBRATE_TEST_POSTGRES_DSN not set; skipping integration test")
	}

	ctx := context.Background()
	db, err := OpenPostgres(ctx, dsn)
	if err != nil {
		t.Fatalf("OpenPostgres: %v", err)
	}
	store := NewPostgresStore(db)
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	// Migrate is idempotent.
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}

	owner := "owner-" + uuid.NewString()
	t.Cleanup(func() {
		_, _ = db.ExecContext(ctx, `DELETE FROM rated_items WHERE owner_id LIKE $1`, owner+"%")
		_ = store.Close()
	})

	runStoreContract(t, store, owner)
}
