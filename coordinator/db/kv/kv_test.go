package kv

import (
	"context"
	"testing"
	"time"

	"github.com/cryptocole01/p0tion/coordinator/startup"
	"github.com/cryptocole01/p0tion/testing/require"
)

const testNowMillis = int64(1700000000000)

func setupStore(t testing.TB) *Store {
	clock := startup.NewClock(startup.WithNower(func() time.Time {
		return time.UnixMilli(testNowMillis)
	}))
	s, err := NewKVStore(context.Background(), t.TempDir(), WithClock(clock))
	require.NoError(t, err, "Failed to instantiate DB")
	t.Cleanup(func() {
		require.NoError(t, s.Close(), "Failed to close database")
	})
	return s
}
