package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"testing"
	"time"
)

func TestMigrationsRoundTripPostgres(t *testing.T) {
	dsn := strings.TrimSpace(os.Getenv("JOURNEY_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("JOURNEY_TEST_DATABASE_URL is not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := Open(ctx, dsn, Pool{MaxOpen: 2})
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	defer db.Close()
	if err := resetPublicSchema(ctx, db); err != nil {
		t.Fatalf("reset schema: %v", err)
	}
	dir := filepath.FromSlash(migrationsPath)

	first, err := ApplyMigrations(ctx, db, dir)
	if err != nil {
		t.Fatalf("apply up migrations: %v", err)
	}
	ups, _ := filepath.Glob(filepath.Join(dir, "*.up.sql"))
	if len(first) != len(ups) {
		t.Fatalf("applied %v, want all %d migrations", first, len(ups))
	}
	if again, err := ApplyMigrations(ctx, db, dir); err != nil || len(again) != 0 {
		t.Fatalf("second apply = %v, %v; want nothing pending", again, err)
	}
	requireColumn(t, ctx, db, "sheets_connections", "claimed_until", true)

	if err := applyDownMigrations(ctx, db, dir); err != nil {
		t.Fatalf("apply down migrations: %v", err)
	}
	for _, table := range []string{"users", "boards", "blocks", "sheets_connections"} {
		var exists bool
		if err := db.QueryRowContext(ctx, `SELECT to_regclass($1) IS NOT NULL`, table).Scan(&exists); err != nil {
			t.Fatalf("check %s: %v", table, err)
		}
		if exists {
			t.Fatalf("table %s survived the down migrations", table)
		}
	}

	if _, err := db.ExecContext(ctx, `DELETE FROM schema_migrations`); err != nil {
		t.Fatalf("clear schema_migrations: %v", err)
	}
	if _, err := ApplyMigrations(ctx, db, dir); err != nil {
		t.Fatalf("re-apply up migrations: %v", err)
	}
	requireColumn(t, ctx, db, "sheets_connections", "claimed_until", true)
}

func requireColumn(t *testing.T, ctx context.Context, db *sql.DB, table, column string, want bool) {
	t.Helper()
	var exists bool
	err := db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.columns
			WHERE table_schema = 'public' AND table_name = $1 AND column_name = $2
		)
	`, table, column).Scan(&exists)
	if err != nil {
		t.Fatalf("inspect %s.%s: %v", table, column, err)
	}
	if exists != want {
		t.Fatalf("%s.%s exists = %v, want %v", table, column, exists, want)
	}
}

func resetPublicSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `DROP SCHEMA IF EXISTS public CASCADE; CREATE SCHEMA public;`)
	return err
}

// applyDownMigrations runs every *.down.sql file, newest version first.
func applyDownMigrations(ctx context.Context, db *sql.DB, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	pattern := regexp.MustCompile(`^(\d+)_.*\.down\.sql$`)
	var downs []string
	for _, entry := range entries {
		if !entry.IsDir() && pattern.MatchString(entry.Name()) {
			downs = append(downs, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(downs)))

	for _, path := range downs {
		contents, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if text := strings.TrimSpace(string(contents)); text != "" {
			if _, err := db.ExecContext(ctx, text); err != nil {
				return err
			}
		}
	}
	return nil
}
