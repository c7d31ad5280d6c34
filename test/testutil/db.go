package testutil

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/xxxsen/pdfqa/internal/config"
	"github.com/xxxsen/pdfqa/internal/db"
)

const pgvectorImage = "pgvector/pgvector:pg16"

// OpenTestDB returns a migrated postgres database with the vector
// extension. TEST_DB_DSN points at an existing server, otherwise a
// container is started. The test is skipped in short mode or when no
// container runtime is reachable.
func OpenTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("short mode, skipping postgres test")
	}
	ctx := context.Background()
	dsn := os.Getenv("TEST_DB_DSN")
	var terminate func()
	if dsn == "" {
		testcontainers.SkipIfProviderIsNotHealthy(t)
		ctr, err := postgres.Run(ctx, pgvectorImage,
			postgres.WithDatabase("pdfqa_test"),
			postgres.WithUsername("pdfqa"),
			postgres.WithPassword("pdfqa_pass"),
			postgres.BasicWaitStrategies(),
		)
		if err != nil {
			t.Fatalf("start postgres container: %v", err)
		}
		terminate = func() { _ = testcontainers.TerminateContainer(ctr) }
		dsn, err = ctr.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			terminate()
			t.Fatalf("connection string: %v", err)
		}
	}
	conn, err := db.Open(ctx, config.DatabaseConfig{DSN: dsn})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.ApplyMigrations(ctx, conn); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return conn, func() {
		_ = conn.Close()
		if terminate != nil {
			terminate()
		}
	}
}
