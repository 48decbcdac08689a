package rbac

import (
	"database/sql"
	"os"
	"testing"

	_ "github.com/lib/pq"
)

// RequirePostgres connects to the database named by TEST_POSTGRES_PRIMARY, or
// skips the test when the variable is unset or the database is unreachable.
// Unit tests use in-memory SQLite; this is for integration runs against a
// real Postgres.
func RequirePostgres(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := os.Getenv("TEST_POSTGRES_PRIMARY")
	if dbURL == "" {
		t.Skip("Skipping test: TEST_POSTGRES_PRIMARY not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Skipf("Failed to connect to database: %v", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("Database not reachable: %v", err)
	}

	return db
}
