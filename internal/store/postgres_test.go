package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/franciscoquinteros/landing-anto/internal/testutil"
)

func TestPostgres(t *testing.T) {
	databaseURL := testutil.RequireEnv(t, "TEST_DATABASE_URL")
	ctx := context.Background()

	require.NoError(t, Migrate(databaseURL, discardLogger()))
	// Second run must be a no-op.
	require.NoError(t, Migrate(databaseURL, discardLogger()))

	b, err := NewPostgres(ctx, databaseURL)
	require.NoError(t, err)
	defer b.Close()

	prefix := "test-" + uuid.NewString() + "-"
	t.Cleanup(func() {
		db, err := sql.Open("postgres", databaseURL)
		if err != nil {
			t.Logf("cleanup: %v", err)
			return
		}
		defer db.Close()
		if _, err := db.Exec(`DELETE FROM kv_entries WHERE namespace LIKE $1`, prefix+"%"); err != nil {
			t.Logf("cleanup: %v", err)
		}
	})

	exerciseBackend(t, b, prefix)
}
