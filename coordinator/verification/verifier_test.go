package verification

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cryptocole01/p0tion/config/params"
	blobtest "github.com/cryptocole01/p0tion/coordinator/blob/testing"
	"github.com/cryptocole01/p0tion/coordinator/db"
	dbtest "github.com/cryptocole01/p0tion/coordinator/db/testing"
	"github.com/cryptocole01/p0tion/coordinator/startup"
	"github.com/cryptocole01/p0tion/coordinator/types"
	"github.com/cryptocole01/p0tion/coordinator/vm"
	vmtest "github.com/cryptocole01/p0tion/coordinator/vm/testing"
	"github.com/cryptocole01/p0tion/testing/assert"
	"github.com/cryptocole01/p0tion/testing/require"
	"github.com/pkg/errors"
	logTest "github.com/sirupsen/logrus/hooks/test"
)

const testNowMillis = int64(1700000000000)

type testEnv struct {
	verifier *Verifier
	store    db.Database
	pool     *vmtest.MockPool
	blobs    *blobtest.MockStore
}

func setupVerifier(t *testing.T, pool *vmtest.MockPool) *testEnv {
	params.SetupTestConfigCleanup(t)
	c := params.CoordinatorConfig().Copy()
	c.WorkerStartupDeadline = 50 * time.Millisecond
	c.WorkerPollInterval = time.Millisecond
	c.CommandPollInterval = time.Millisecond
	c.CommandDeadline = 200 * time.Millisecond
	c.TranscriptSettleDelay = time.Millisecond
	params.OverrideCoordinatorConfig(c)

	clock := startup.NewClock(startup.WithNower(func() time.Time {
		return time.UnixMilli(testNowMillis)
	}))
	store := dbtest.SetupDBWithClock(t, clock)
	blobs := blobtest.NewMockStore()
	v, err := NewVerifier(&Config{
		Database: store,
		Blob:     blobs,
		Workers:  pool,
		Clock:    clock,
		Software: &types.VerificationSoftware{Name: "snarkjs", Version: "0.7.0", CommitHash: "abc123"},
	})
	require.NoError(t, err)
	return &testEnv{verifier: v, store: store, pool: pool, blobs: blobs}
}

func seedCeremonyFixtures(t *testing.T, env *testEnv, state types.CeremonyState) {
	ctx := context.Background()
	require.NoError(t, env.store.SaveCeremony(ctx, &types.Ceremony{
		ID:     "cer",
		State:  state,
		Prefix: "test-ceremony",
	}))
	require.NoError(t, env.store.SaveCircuit(ctx, "cer", &types.Circuit{
		ID:               "c0",
		Prefix:           "small",
		SequencePosition: 0,
		InstanceID:       "i-123",
		WaitingQueue: types.WaitingQueue{
			Contributors:       []string{"alice"},
			CurrentContributor: "alice",
		},
	}))
	require.NoError(t, env.store.SaveParticipant(ctx, "cer", &types.Participant{
		UserID:               "alice",
		Status:               types.StatusContributing,
		ContributionStep:     types.StepVerifying,
		ContributionProgress: 1,
		Contributions: []types.ParticipantContribution{
			{Hash: "0xaaa", ComputationTime: 1500},
		},
		ContributionStartedAt: 1000,
		VerificationStartedAt: 4000,
	}))
}

func verifyRequest() *Request {
	return &Request{
		CeremonyID: "cer",
		CircuitID:  "c0",
		UserID:     "alice",
		BucketName: "ceremony-bucket",
	}
}

func TestVerifyContribution_ValidRecordsEverything(t *testing.T) {
	pool := vmtest.NewMockPool("[INFO] snarkjs: ZKey Ok!\n")
	env := setupVerifier(t, pool)
	seedCeremonyFixtures(t, env, types.CeremonyOpened)
	ctx := context.Background()

	require.NoError(t, env.verifier.VerifyContribution(ctx, verifyRequest()))

	contribution, err := env.store.ContributionByZkeyIndex(ctx, "cer", "c0", "00001")
	require.NoError(t, err)
	assert.Equal(t, true, contribution.Valid)
	assert.Equal(t, "alice", contribution.ParticipantID)
	assert.Equal(t, int64(1500), contribution.ContributionComputationTime)
	require.NotNil(t, contribution.Files)
	assert.Equal(t, "small_00001.zkey", contribution.Files.LastZkeyFilename)
	assert.Equal(t, "circuits/small/contributions/small_00001.zkey", contribution.Files.LastZkeyStoragePath)
	assert.Equal(t, "small_00001_alice_verification_transcript.log", contribution.Files.TranscriptFilename)
	assert.Equal(t, "circuits/small/transcripts/small_00001_alice_verification_transcript.log", contribution.Files.TranscriptStoragePath)
	assert.Equal(t, "", contribution.Files.TranscriptBlake2bHash)
	assert.Equal(t, "0xaaa", contribution.Files.LastZkeyBlake2bHash)
	require.NotNil(t, contribution.VerificationSoftware)
	assert.Equal(t, "snarkjs", contribution.VerificationSoftware.Name)

	circuit, err := env.store.Circuit(ctx, "cer", "c0")
	require.NoError(t, err)
	assert.Equal(t, 1, circuit.WaitingQueue.CompletedContributions)
	assert.Equal(t, 0, circuit.WaitingQueue.FailedContributions)
	assert.Equal(t, int64(1500), circuit.AvgTimings.ContributionComputation)
	assert.Equal(t, int64(3000), circuit.AvgTimings.FullContribution)

	// The worker ran the script against the right artifacts and was stopped.
	require.DeepEqual(t, []string{"i-123"}, env.pool.Started)
	require.DeepEqual(t, []string{"i-123"}, env.pool.Stopped)
	require.Equal(t, 1, len(env.pool.Commands))
	script := strings.Join(env.pool.Commands[0], "\n")
	assert.StringContains(t, "s3://ceremony-bucket/circuits/small/contributions/small_00001.zkey", script)
	assert.StringContains(t, "s3://ceremony-bucket/circuits/small/transcripts/small_00001_alice_verification_transcript.log", script)
	assert.Equal(t, 0, len(env.blobs.Deleted))
}

func TestVerifyContribution_InvalidDeletesCandidateZkey(t *testing.T) {
	pool := vmtest.NewMockPool("[ERROR] snarkjs: invalid contribution\n")
	env := setupVerifier(t, pool)
	seedCeremonyFixtures(t, env, types.CeremonyOpened)
	ctx := context.Background()

	require.NoError(t, env.verifier.VerifyContribution(ctx, verifyRequest()))

	contribution, err := env.store.ContributionByZkeyIndex(ctx, "cer", "c0", "00001")
	require.NoError(t, err)
	assert.Equal(t, false, contribution.Valid)
	assert.Equal(t, int64(0), contribution.ContributionComputationTime)
	if contribution.Files != nil {
		t.Fatal("invalid contribution must not carry a files block")
	}

	circuit, err := env.store.Circuit(ctx, "cer", "c0")
	require.NoError(t, err)
	assert.Equal(t, 0, circuit.WaitingQueue.CompletedContributions)
	assert.Equal(t, 1, circuit.WaitingQueue.FailedContributions)
	assert.Equal(t, int64(0), circuit.AvgTimings.FullContribution)

	require.DeepEqual(t, []string{"ceremony-bucket/circuits/small/contributions/small_00001.zkey"}, env.blobs.Deleted)
	require.DeepEqual(t, []string{"i-123"}, env.pool.Stopped)
}

func TestVerifyContribution_WorkerStartFailureRecordsInvalid(t *testing.T) {
	pool := vmtest.NewMockPool("unused")
	pool.StartErr = errors.New("insufficient capacity")
	env := setupVerifier(t, pool)
	seedCeremonyFixtures(t, env, types.CeremonyOpened)
	ctx := context.Background()

	require.NoError(t, env.verifier.VerifyContribution(ctx, verifyRequest()))

	contribution, err := env.store.ContributionByZkeyIndex(ctx, "cer", "c0", "00001")
	require.NoError(t, err)
	assert.Equal(t, false, contribution.Valid)

	circuit, err := env.store.Circuit(ctx, "cer", "c0")
	require.NoError(t, err)
	assert.Equal(t, 1, circuit.WaitingQueue.FailedContributions)

	// Stop is attempted even though the worker never started.
	require.DeepEqual(t, []string{"i-123"}, env.pool.Stopped)
}

func TestVerifyContribution_CommandFailureRecordsInvalid(t *testing.T) {
	pool := &vmtest.MockPool{
		Outputs: []vm.CommandOutput{{State: vm.StateFailed, Output: "killed"}},
	}
	env := setupVerifier(t, pool)
	seedCeremonyFixtures(t, env, types.CeremonyOpened)
	ctx := context.Background()

	require.NoError(t, env.verifier.VerifyContribution(ctx, verifyRequest()))

	contribution, err := env.store.ContributionByZkeyIndex(ctx, "cer", "c0", "00001")
	require.NoError(t, err)
	assert.Equal(t, false, contribution.Valid)
	require.DeepEqual(t, []string{"i-123"}, env.pool.Stopped)
}

func TestVerifyContribution_SlowWorkerOnlyLogs(t *testing.T) {
	hook := logTest.NewGlobal()
	pool := vmtest.NewMockPool("ZKey Ok!")
	pool.NeverRunning = true
	env := setupVerifier(t, pool)
	seedCeremonyFixtures(t, env, types.CeremonyOpened)
	ctx := context.Background()

	require.NoError(t, env.verifier.VerifyContribution(ctx, verifyRequest()))

	require.LogsContain(t, hook, "Worker still not running after startup deadline")
	contribution, err := env.store.ContributionByZkeyIndex(ctx, "cer", "c0", "00001")
	require.NoError(t, err)
	assert.Equal(t, true, contribution.Valid)
}

func TestVerifyContribution_NotContributingFails(t *testing.T) {
	pool := vmtest.NewMockPool("ZKey Ok!")
	env := setupVerifier(t, pool)
	seedCeremonyFixtures(t, env, types.CeremonyOpened)
	ctx := context.Background()

	p, err := env.store.Participant(ctx, "cer", "alice")
	require.NoError(t, err)
	p.Status = types.StatusWaiting
	require.NoError(t, env.store.SaveParticipant(ctx, "cer", p))

	err = env.verifier.VerifyContribution(ctx, verifyRequest())
	var precondition *PreconditionError
	require.Equal(t, true, errors.As(err, &precondition))

	// Nothing was recorded and no worker ran.
	contributions, err := env.store.Contributions(ctx, "cer", "c0")
	require.NoError(t, err)
	assert.Equal(t, 0, len(contributions))
	assert.Equal(t, 0, len(pool.Started))
}

func TestVerifyContribution_NotCurrentContributorFails(t *testing.T) {
	pool := vmtest.NewMockPool("ZKey Ok!")
	env := setupVerifier(t, pool)
	seedCeremonyFixtures(t, env, types.CeremonyOpened)
	ctx := context.Background()

	// Alice is CONTRIBUTING, but on another circuit: c0's slot belongs to bob.
	require.NoError(t, env.store.SaveCircuit(ctx, "cer", &types.Circuit{
		ID:               "c0",
		Prefix:           "small",
		SequencePosition: 0,
		InstanceID:       "i-123",
		WaitingQueue: types.WaitingQueue{
			Contributors:       []string{"bob", "alice"},
			CurrentContributor: "bob",
		},
	}))

	err := env.verifier.VerifyContribution(ctx, verifyRequest())
	var precondition *PreconditionError
	require.Equal(t, true, errors.As(err, &precondition))
	require.ErrorContains(t, "not the current contributor", err)

	// Nothing was recorded, no worker ran, and the counters are untouched.
	contributions, err := env.store.Contributions(ctx, "cer", "c0")
	require.NoError(t, err)
	assert.Equal(t, 0, len(contributions))
	assert.Equal(t, 0, len(pool.Started))
	circuit, err := env.store.Circuit(ctx, "cer", "c0")
	require.NoError(t, err)
	assert.Equal(t, 0, circuit.WaitingQueue.CompletedContributions)
	assert.Equal(t, 0, circuit.WaitingQueue.FailedContributions)
}

func TestVerifyContribution_FinalizingSkipsCountersAndTimings(t *testing.T) {
	pool := vmtest.NewMockPool("ZKey Ok!")
	env := setupVerifier(t, pool)
	seedCeremonyFixtures(t, env, types.CeremonyClosed)
	ctx := context.Background()

	require.NoError(t, env.store.SaveParticipant(ctx, "cer", &types.Participant{
		UserID:               "coordinator",
		Status:               types.StatusFinalizing,
		ContributionProgress: 1,
		Contributions: []types.ParticipantContribution{
			{Hash: "0xfff", ComputationTime: 9000},
		},
	}))

	req := verifyRequest()
	req.UserID = "coordinator"
	req.IsCoordinator = true
	require.NoError(t, env.verifier.VerifyContribution(ctx, req))

	contribution, err := env.store.ContributionByZkeyIndex(ctx, "cer", "c0", "final")
	require.NoError(t, err)
	assert.Equal(t, true, contribution.Valid)
	assert.Equal(t, "final", contribution.ZkeyIndex)
	require.NotNil(t, contribution.Files)
	assert.Equal(t, "small_final.zkey", contribution.Files.LastZkeyFilename)
	assert.Equal(t, "small_coordinator_final_verification_transcript.log", contribution.Files.TranscriptFilename)

	circuit, err := env.store.Circuit(ctx, "cer", "c0")
	require.NoError(t, err)
	assert.Equal(t, 0, circuit.WaitingQueue.CompletedContributions)
	assert.Equal(t, int64(0), circuit.AvgTimings.FullContribution)
}

func TestVerifyContribution_AmbiguousPendingEntryFails(t *testing.T) {
	pool := vmtest.NewMockPool("ZKey Ok!")
	env := setupVerifier(t, pool)
	seedCeremonyFixtures(t, env, types.CeremonyOpened)
	ctx := context.Background()

	p, err := env.store.Participant(ctx, "cer", "alice")
	require.NoError(t, err)
	p.Contributions = append(p.Contributions, types.ParticipantContribution{Hash: "0xbbb", ComputationTime: 2000})
	require.NoError(t, env.store.SaveParticipant(ctx, "cer", p))

	err = env.verifier.VerifyContribution(ctx, verifyRequest())
	var precondition *PreconditionError
	require.Equal(t, true, errors.As(err, &precondition))
	require.ErrorContains(t, "found 2", err)

	// The aborted transaction left no trace.
	contributions, err := env.store.Contributions(ctx, "cer", "c0")
	require.NoError(t, err)
	assert.Equal(t, 0, len(contributions))
	circuit, err := env.store.Circuit(ctx, "cer", "c0")
	require.NoError(t, err)
	assert.Equal(t, 0, circuit.WaitingQueue.CompletedContributions)
}

func TestVerifyContribution_MissingCeremonyFails(t *testing.T) {
	pool := vmtest.NewMockPool("ZKey Ok!")
	env := setupVerifier(t, pool)

	err := env.verifier.VerifyContribution(context.Background(), verifyRequest())
	require.ErrorIs(t, err, db.ErrNotFound)
}

func TestVerifyContribution_RollingAverageSequence(t *testing.T) {
	pool := vmtest.NewMockPool("ZKey Ok!")
	env := setupVerifier(t, pool)
	seedCeremonyFixtures(t, env, types.CeremonyOpened)
	ctx := context.Background()

	// Full contribution samples 100, 300, 500 must average to 100, 200, 350.
	for i, span := range []int64{100, 300, 500} {
		require.NoError(t, env.store.SaveParticipant(ctx, "cer", &types.Participant{
			UserID:                "alice",
			Status:                types.StatusContributing,
			ContributionStep:      types.StepVerifying,
			ContributionProgress:  1,
			Contributions:         []types.ParticipantContribution{{Hash: "0xaaa", ComputationTime: 1500}},
			ContributionStartedAt: 1000,
			VerificationStartedAt: 1000 + span,
		}))
		require.NoError(t, env.verifier.VerifyContribution(ctx, verifyRequest()), "contribution %d", i+1)
	}

	circuit, err := env.store.Circuit(ctx, "cer", "c0")
	require.NoError(t, err)
	assert.Equal(t, int64(350), circuit.AvgTimings.FullContribution)
	assert.Equal(t, 3, circuit.WaitingQueue.CompletedContributions)
}

func TestNewVerifier_RequiresSoftwareIdentity(t *testing.T) {
	_, err := NewVerifier(&Config{Software: &types.VerificationSoftware{Name: "snarkjs"}})
	require.ErrorContains(t, "verification software identity", err)
}

func TestSoftwareFromEnv(t *testing.T) {
	t.Setenv(SoftwareNameEnv, "snarkjs")
	t.Setenv(SoftwareVersionEnv, "0.7.0")
	t.Setenv(SoftwareCommitHashEnv, "abc123")

	sw, err := SoftwareFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "snarkjs", sw.Name)
	assert.Equal(t, "0.7.0", sw.Version)
	assert.Equal(t, "abc123", sw.CommitHash)

	t.Setenv(SoftwareCommitHashEnv, "")
	_, err = SoftwareFromEnv()
	require.ErrorContains(t, SoftwareCommitHashEnv, err)
}
