// Package testing allows for spinning up a real bolt-db instance for unit
// tests throughout the coordinator packages.
package testing

import (
	"context"
	"testing"

	"github.com/cryptocole01/p0tion/coordinator/db"
	"github.com/cryptocole01/p0tion/coordinator/db/kv"
	"github.com/cryptocole01/p0tion/coordinator/startup"
	"github.com/cryptocole01/p0tion/testing/require"
)

// SetupDB instantiates and returns a database backed by a real bolt instance
// in a temporary directory, closed and removed at the end of the test.
func SetupDB(t testing.TB) db.Database {
	return SetupDBWithClock(t, startup.NewClock())
}

// SetupDBWithClock is SetupDB with a caller-controlled clock so tests can
// pin document timestamps.
func SetupDBWithClock(t testing.TB, clock *startup.Clock) db.Database {
	s, err := kv.NewKVStore(context.Background(), t.TempDir(), kv.WithClock(clock))
	require.NoError(t, err, "Failed to instantiate DB")
	t.Cleanup(func() {
		require.NoError(t, s.Close(), "Failed to close database")
	})
	return s
}
