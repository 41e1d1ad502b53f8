//go:build integration

package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tech-news-daily/apptrack/internal/testutil"
)

func TestDatabaseConnection(t *testing.T) {
	testutil.LoadTestEnv(t)

	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	s, err := InitFromEnv()
	require.NoError(t, err, "Failed to connect to test database")
	defer s.Close()

	ctx := context.Background()
	var result int
	err = s.client.QueryRowContext(ctx, "SELECT 1").Scan(&result)
	require.NoError(t, err, "Failed to execute test query")
	assert.Equal(t, 1, result)

	// Probe warns about missing snapshot tables; it must never fail the run.
	s.Probe(ctx)
}
