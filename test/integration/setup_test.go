//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/telerx/rxadmin/internal/platform/db"
	"github.com/telerx/rxadmin/migrations"
)

// globalPool is shared by every test and initialized once in TestMain.
var globalPool *pgxpool.Pool

func TestMain(m *testing.M) {
	ctx := context.Background()

	connStr := os.Getenv("INTEGRATION_DATABASE_URL")
	cleanup := func() {}
	if connStr == "" {
		var err error
		connStr, cleanup, err = startPostgres(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start postgres: %v\n", err)
			os.Exit(1)
		}
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		cleanup()
		fmt.Fprintf(os.Stderr, "create pool: %v\n", err)
		os.Exit(1)
	}

	globalPool = pool
	code := m.Run()
	pool.Close()
	cleanup()
	os.Exit(code)
}

// newTenant creates a migrated schema for one test and drops it afterwards.
func newTenant(t *testing.T, prefix string) string {
	t.Helper()
	ctx := context.Background()
	tenantID := fmt.Sprintf("%s_%s", prefix, strings.ReplaceAll(uuid.New().String()[:8], "-", ""))
	if err := db.CreateTenantSchema(ctx, globalPool, tenantID, migrations.FS); err != nil {
		t.Fatalf("create tenant schema %s: %v", tenantID, err)
	}
	t.Cleanup(func() {
		schema := db.SchemaName(tenantID)
		if _, err := globalPool.Exec(ctx, fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schema)); err != nil {
			t.Logf("warning: failed to drop schema %s: %v", schema, err)
		}
	})
	return tenantID
}

// inTenant runs fn on a connection scoped to tenantID.
func inTenant(t *testing.T, tenantID string, fn func(ctx context.Context) error) {
	t.Helper()
	if err := db.WithTenant(context.Background(), globalPool, tenantID, fn); err != nil {
		t.Fatalf("tenant %s: %v", tenantID, err)
	}
}

func nopLogger() zerolog.Logger { return zerolog.Nop() }
