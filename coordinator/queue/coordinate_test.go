package queue

import (
	"context"
	"testing"
	"time"

	dbtest "github.com/cryptocole01/p0tion/coordinator/db/testing"
	"github.com/cryptocole01/p0tion/coordinator/startup"
	"github.com/cryptocole01/p0tion/coordinator/types"
	"github.com/cryptocole01/p0tion/testing/assert"
	"github.com/cryptocole01/p0tion/testing/require"
)

const testNowMillis = int64(1700000000000)

func setupService(t *testing.T) *Service {
	clock := startup.NewClock(startup.WithNower(func() time.Time {
		return time.UnixMilli(testNowMillis)
	}))
	store := dbtest.SetupDBWithClock(t, clock)
	return NewService(context.Background(), &Config{Database: store, Clock: clock})
}

func seedCircuit(t *testing.T, s *Service, queue types.WaitingQueue) {
	require.NoError(t, s.cfg.Database.SaveCircuit(context.Background(), "cer", &types.Circuit{
		ID:               "c0",
		Prefix:           "small",
		SequencePosition: 0,
		WaitingQueue:     queue,
	}))
}

func seedParticipant(t *testing.T, s *Service, p *types.Participant) {
	require.NoError(t, s.cfg.Database.SaveParticipant(context.Background(), "cer", p))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		before *types.Participant
		after  *types.Participant
		want   eventClass
	}{
		{
			name:   "first time ready",
			before: &types.Participant{Status: types.StatusWaiting, ContributionProgress: 0},
			after:  &types.Participant{Status: types.StatusReady, ContributionProgress: 1},
			want:   readyForFirst,
		},
		{
			name:   "ready for next circuit",
			before: &types.Participant{Status: types.StatusContributed, ContributionProgress: 1},
			after:  &types.Participant{Status: types.StatusReady, ContributionProgress: 2},
			want:   readyForNext,
		},
		{
			name:   "resuming after timeout",
			before: &types.Participant{Status: types.StatusTimedOut, ContributionProgress: 2},
			after:  &types.Participant{Status: types.StatusReady, ContributionProgress: 2},
			want:   resumingAfterTimeout,
		},
		{
			name: "completed contribution",
			before: &types.Participant{
				Status:               types.StatusContributing,
				ContributionStep:     types.StepVerifying,
				ContributionProgress: 1,
			},
			after: &types.Participant{
				Status:               types.StatusContributed,
				ContributionStep:     types.StepCompleted,
				ContributionProgress: 1,
			},
			want: completedContribution,
		},
		{
			name: "completed everything",
			before: &types.Participant{
				Status:               types.StatusContributing,
				ContributionStep:     types.StepVerifying,
				ContributionProgress: 3,
			},
			after: &types.Participant{
				Status:               types.StatusDone,
				ContributionStep:     types.StepCompleted,
				ContributionProgress: 3,
			},
			want: completedEverything,
		},
		{
			name:   "step change only is ignored",
			before: &types.Participant{Status: types.StatusContributing, ContributionStep: types.StepDownloading, ContributionProgress: 1},
			after:  &types.Participant{Status: types.StatusContributing, ContributionStep: types.StepComputing, ContributionProgress: 1},
			want:   ignored,
		},
		{
			name: "completion without verifying step is ignored",
			before: &types.Participant{
				Status:               types.StatusContributing,
				ContributionStep:     types.StepUploading,
				ContributionProgress: 1,
			},
			after: &types.Participant{
				Status:               types.StatusContributed,
				ContributionStep:     types.StepCompleted,
				ContributionProgress: 1,
			},
			want: ignored,
		},
		{
			name:   "already done is ignored",
			before: &types.Participant{Status: types.StatusDone, ContributionProgress: 3},
			after:  &types.Participant{Status: types.StatusDone, ContributionProgress: 3},
			want:   ignored,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.before, tt.after))
		})
	}
}

func TestCoordinateSingle_EmptyQueueSeatsContributor(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()
	seedCircuit(t, s, types.WaitingQueue{})
	seedParticipant(t, s, &types.Participant{
		UserID:               "alice",
		Status:               types.StatusReady,
		ContributionProgress: 1,
	})

	require.NoError(t, s.coordinateSingle(ctx, "cer", "alice", 0))

	circuit, err := s.cfg.Database.Circuit(ctx, "cer", "c0")
	require.NoError(t, err)
	assert.Equal(t, "alice", circuit.WaitingQueue.CurrentContributor)
	require.DeepEqual(t, []string{"alice"}, circuit.WaitingQueue.Contributors)

	p, err := s.cfg.Database.Participant(ctx, "cer", "alice")
	require.NoError(t, err)
	assert.Equal(t, types.StatusContributing, p.Status)
	assert.Equal(t, types.StepDownloading, p.ContributionStep)
	assert.Equal(t, testNowMillis, p.ContributionStartedAt)
}

func TestCoordinateSingle_ResumeKeepsStartTime(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()
	seedCircuit(t, s, types.WaitingQueue{
		Contributors:       []string{"alice"},
		CurrentContributor: "alice",
	})
	seedParticipant(t, s, &types.Participant{
		UserID:                "alice",
		Status:                types.StatusReady,
		ContributionProgress:  1,
		ContributionStartedAt: 42,
	})

	require.NoError(t, s.coordinateSingle(ctx, "cer", "alice", 0))

	circuit, err := s.cfg.Database.Circuit(ctx, "cer", "c0")
	require.NoError(t, err)
	require.DeepEqual(t, []string{"alice"}, circuit.WaitingQueue.Contributors)

	p, err := s.cfg.Database.Participant(ctx, "cer", "alice")
	require.NoError(t, err)
	assert.Equal(t, types.StatusContributing, p.Status)
	assert.Equal(t, types.StepDownloading, p.ContributionStep)
	assert.Equal(t, int64(42), p.ContributionStartedAt)
}

func TestCoordinateSingle_BusyCircuitQueuesContributor(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()
	seedCircuit(t, s, types.WaitingQueue{
		Contributors:       []string{"bob"},
		CurrentContributor: "bob",
	})
	seedParticipant(t, s, &types.Participant{
		UserID:                "alice",
		Status:                types.StatusReady,
		ContributionProgress:  1,
		ContributionStartedAt: 99,
	})

	require.NoError(t, s.coordinateSingle(ctx, "cer", "alice", 0))

	circuit, err := s.cfg.Database.Circuit(ctx, "cer", "c0")
	require.NoError(t, err)
	assert.Equal(t, "bob", circuit.WaitingQueue.CurrentContributor)
	require.DeepEqual(t, []string{"bob", "alice"}, circuit.WaitingQueue.Contributors)

	p, err := s.cfg.Database.Participant(ctx, "cer", "alice")
	require.NoError(t, err)
	assert.Equal(t, types.StatusWaiting, p.Status)
	assert.Equal(t, int64(0), p.ContributionStartedAt)

	// Redelivering the same transition must not queue the participant twice.
	require.NoError(t, s.coordinateSingle(ctx, "cer", "alice", 0))
	circuit, err = s.cfg.Database.Circuit(ctx, "cer", "c0")
	require.NoError(t, err)
	require.DeepEqual(t, []string{"bob", "alice"}, circuit.WaitingQueue.Contributors)
}

func TestCoordinateMulti_PromotesNextContributor(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()
	seedCircuit(t, s, types.WaitingQueue{
		Contributors:       []string{"alice", "bob"},
		CurrentContributor: "alice",
	})
	seedParticipant(t, s, &types.Participant{
		UserID:               "bob",
		Status:               types.StatusWaiting,
		ContributionProgress: 1,
	})

	require.NoError(t, s.coordinateMulti(ctx, "cer", "alice", 0))

	circuit, err := s.cfg.Database.Circuit(ctx, "cer", "c0")
	require.NoError(t, err)
	assert.Equal(t, "bob", circuit.WaitingQueue.CurrentContributor)
	require.DeepEqual(t, []string{"bob"}, circuit.WaitingQueue.Contributors)

	p, err := s.cfg.Database.Participant(ctx, "cer", "bob")
	require.NoError(t, err)
	assert.Equal(t, types.StatusContributing, p.Status)
	assert.Equal(t, types.StepDownloading, p.ContributionStep)
	assert.Equal(t, testNowMillis, p.ContributionStartedAt)
}

func TestCoordinateMulti_LastContributorEmptiesQueue(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()
	seedCircuit(t, s, types.WaitingQueue{
		Contributors:       []string{"alice"},
		CurrentContributor: "alice",
	})

	require.NoError(t, s.coordinateMulti(ctx, "cer", "alice", 0))

	circuit, err := s.cfg.Database.Circuit(ctx, "cer", "c0")
	require.NoError(t, err)
	assert.Equal(t, "", circuit.WaitingQueue.CurrentContributor)
	assert.Equal(t, 0, len(circuit.WaitingQueue.Contributors))
}

func TestCoordinateMulti_NotHeadLeavesQueueUntouched(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()
	seedCircuit(t, s, types.WaitingQueue{
		Contributors:       []string{"bob", "carol"},
		CurrentContributor: "bob",
	})

	err := s.coordinateMulti(ctx, "cer", "alice", 0)
	require.ErrorIs(t, err, errNotQueueHead)

	circuit, err := s.cfg.Database.Circuit(ctx, "cer", "c0")
	require.NoError(t, err)
	assert.Equal(t, "bob", circuit.WaitingQueue.CurrentContributor)
	require.DeepEqual(t, []string{"bob", "carol"}, circuit.WaitingQueue.Contributors)
}
