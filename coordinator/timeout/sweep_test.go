package timeout

import (
	"context"
	"testing"
	"time"

	"github.com/cryptocole01/p0tion/config/params"
	"github.com/cryptocole01/p0tion/coordinator/db"
	dbtest "github.com/cryptocole01/p0tion/coordinator/db/testing"
	"github.com/cryptocole01/p0tion/coordinator/startup"
	"github.com/cryptocole01/p0tion/coordinator/types"
	vmtest "github.com/cryptocole01/p0tion/coordinator/vm/testing"
	"github.com/cryptocole01/p0tion/testing/assert"
	"github.com/cryptocole01/p0tion/testing/require"
)

const testNowMillis = int64(1700000000000)

type testEnv struct {
	service *Service
	store   db.Database
	pool    *vmtest.MockPool
}

func setupSweeper(t *testing.T) *testEnv {
	params.SetupTestConfigCleanup(t)
	c := params.CoordinatorConfig().Copy()
	c.ContributionTimeout = 5 * time.Second
	c.TimeoutSweepInterval = 10 * time.Millisecond
	params.OverrideCoordinatorConfig(c)

	clock := startup.NewClock(startup.WithNower(func() time.Time {
		return time.UnixMilli(testNowMillis)
	}))
	store := dbtest.SetupDBWithClock(t, clock)
	pool := vmtest.NewMockPool("")
	service := NewService(context.Background(), &Config{Database: store, Workers: pool, Clock: clock})
	t.Cleanup(func() {
		require.NoError(t, service.Stop())
	})
	return &testEnv{service: service, store: store, pool: pool}
}

// seedQueue creates an open ceremony with one circuit whose head contributor
// started contributing at startedAt.
func seedQueue(t *testing.T, env *testEnv, avgFull, startedAt int64, contributors ...string) {
	ctx := context.Background()
	require.NoError(t, env.store.SaveCeremony(ctx, &types.Ceremony{ID: "cer", State: types.CeremonyOpened}))
	queue := types.WaitingQueue{Contributors: contributors}
	if len(contributors) > 0 {
		queue.CurrentContributor = contributors[0]
	}
	require.NoError(t, env.store.SaveCircuit(ctx, "cer", &types.Circuit{
		ID:           "c0",
		Prefix:       "small",
		InstanceID:   "i-123",
		WaitingQueue: queue,
		AvgTimings:   types.AvgTimings{FullContribution: avgFull},
	}))
	for i, userID := range contributors {
		p := &types.Participant{UserID: userID, Status: types.StatusWaiting, ContributionProgress: 1}
		if i == 0 {
			p.Status = types.StatusContributing
			p.ContributionStep = types.StepComputing
			p.ContributionStartedAt = startedAt
		}
		require.NoError(t, env.store.SaveParticipant(ctx, "cer", p))
	}
}

func TestSweep_EvictsContributorOverFixedBudget(t *testing.T) {
	env := setupSweeper(t)
	seedQueue(t, env, 0, testNowMillis-10000, "alice", "bob")
	ctx := context.Background()

	env.service.sweepAll()

	alice, err := env.store.Participant(ctx, "cer", "alice")
	require.NoError(t, err)
	assert.Equal(t, types.StatusTimedOut, alice.Status)
	require.Equal(t, 1, len(alice.Timeouts))
	assert.Equal(t, testNowMillis, alice.Timeouts[0].StartDate)
	assert.Equal(t, testNowMillis+params.CoordinatorConfig().TimeoutPenalty.Milliseconds(), alice.Timeouts[0].EndDate)

	bob, err := env.store.Participant(ctx, "cer", "bob")
	require.NoError(t, err)
	assert.Equal(t, types.StatusContributing, bob.Status)
	assert.Equal(t, types.StepDownloading, bob.ContributionStep)
	assert.Equal(t, testNowMillis, bob.ContributionStartedAt)

	circuit, err := env.store.Circuit(ctx, "cer", "c0")
	require.NoError(t, err)
	assert.Equal(t, "bob", circuit.WaitingQueue.CurrentContributor)
	require.DeepEqual(t, []string{"bob"}, circuit.WaitingQueue.Contributors)

	require.DeepEqual(t, []string{"i-123"}, env.pool.Stopped)
}

func TestSweep_KeepsContributorWithinDynamicBudget(t *testing.T) {
	env := setupSweeper(t)
	// Average 1000ms, default threshold doubles it: 1500ms elapsed is fine.
	seedQueue(t, env, 1000, testNowMillis-1500, "alice")
	ctx := context.Background()

	env.service.sweepAll()

	alice, err := env.store.Participant(ctx, "cer", "alice")
	require.NoError(t, err)
	assert.Equal(t, types.StatusContributing, alice.Status)
	assert.Equal(t, 0, len(alice.Timeouts))
	circuit, err := env.store.Circuit(ctx, "cer", "c0")
	require.NoError(t, err)
	assert.Equal(t, "alice", circuit.WaitingQueue.CurrentContributor)
	assert.Equal(t, 0, len(env.pool.Stopped))
}

func TestSweep_DynamicBudgetOverridesFixedTimeout(t *testing.T) {
	env := setupSweeper(t)
	// 2500ms elapsed is under the 5s fixed timeout but over the 2000ms
	// dynamic budget derived from the 1000ms average.
	seedQueue(t, env, 1000, testNowMillis-2500, "alice")
	ctx := context.Background()

	env.service.sweepAll()

	alice, err := env.store.Participant(ctx, "cer", "alice")
	require.NoError(t, err)
	assert.Equal(t, types.StatusTimedOut, alice.Status)
}

func TestSweep_LastContributorEmptiesQueue(t *testing.T) {
	env := setupSweeper(t)
	seedQueue(t, env, 0, testNowMillis-10000, "alice")
	ctx := context.Background()

	env.service.sweepAll()

	circuit, err := env.store.Circuit(ctx, "cer", "c0")
	require.NoError(t, err)
	assert.Equal(t, "", circuit.WaitingQueue.CurrentContributor)
	assert.Equal(t, 0, len(circuit.WaitingQueue.Contributors))
	require.DeepEqual(t, []string{"i-123"}, env.pool.Stopped)
}

func TestSweep_SkipsClosedCeremony(t *testing.T) {
	env := setupSweeper(t)
	seedQueue(t, env, 0, testNowMillis-10000, "alice")
	ctx := context.Background()
	require.NoError(t, env.store.SaveCeremony(ctx, &types.Ceremony{ID: "cer", State: types.CeremonyClosed}))

	env.service.sweepAll()

	alice, err := env.store.Participant(ctx, "cer", "alice")
	require.NoError(t, err)
	assert.Equal(t, types.StatusContributing, alice.Status)
	assert.Equal(t, 0, len(env.pool.Stopped))
}

func TestContributionBudget(t *testing.T) {
	params.SetupTestConfigCleanup(t)
	c := params.CoordinatorConfig().Copy()
	c.ContributionTimeout = time.Hour
	c.DynamicTimeoutThreshold = 100
	params.OverrideCoordinatorConfig(c)

	assert.Equal(t, time.Hour.Milliseconds(), contributionBudget(0))
	assert.Equal(t, int64(2000), contributionBudget(1000))
	assert.Equal(t, int64(700), contributionBudget(350))
}
