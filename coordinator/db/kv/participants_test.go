package kv

import (
	"context"
	"testing"
	"time"

	"github.com/cryptocole01/p0tion/coordinator/core/feed"
	participantfeed "github.com/cryptocole01/p0tion/coordinator/core/feed/participant"
	"github.com/cryptocole01/p0tion/coordinator/types"
	"github.com/cryptocole01/p0tion/testing/assert"
	"github.com/cryptocole01/p0tion/testing/require"
)

func TestStore_SaveParticipant_FeedFiresOnUpdateOnly(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	ch := make(chan *feed.Event, 2)
	sub := s.ParticipantFeed().Subscribe(ch)
	defer sub.Unsubscribe()

	// First save creates the document and must not trigger coordination.
	p := &types.Participant{
		UserID:        "alice",
		Status:        types.StatusWaiting,
		Contributions: []types.ParticipantContribution{},
	}
	require.NoError(t, s.SaveParticipant(ctx, "cer", p))
	select {
	case evt := <-ch:
		t.Fatalf("unexpected event on create: %+v", evt)
	default:
	}

	// Second save updates the document and carries before/after images.
	p.Status = types.StatusReady
	p.ContributionProgress = 1
	require.NoError(t, s.SaveParticipant(ctx, "cer", p))

	select {
	case evt := <-ch:
		require.Equal(t, participantfeed.Updated, evt.Type)
		data, ok := evt.Data.(*participantfeed.UpdatedData)
		require.Equal(t, true, ok)
		assert.Equal(t, "cer", data.CeremonyID)
		assert.Equal(t, "alice", data.UserID)
		assert.Equal(t, types.StatusWaiting, data.Before.Status)
		assert.Equal(t, 0, data.Before.ContributionProgress)
		assert.Equal(t, types.StatusReady, data.After.Status)
		assert.Equal(t, 1, data.After.ContributionProgress)
	case <-time.After(time.Second):
		t.Fatal("no participant update event received")
	}
}

func TestStore_SaveParticipant_EventSnapshotsDetached(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	ch := make(chan *feed.Event, 1)
	sub := s.ParticipantFeed().Subscribe(ch)
	defer sub.Unsubscribe()

	p := &types.Participant{UserID: "bob", Status: types.StatusWaiting}
	require.NoError(t, s.SaveParticipant(ctx, "cer", p))
	p.Status = types.StatusReady
	require.NoError(t, s.SaveParticipant(ctx, "cer", p))

	// Mutating the caller's struct after the save must not leak into the
	// delivered snapshots.
	p.Status = types.StatusDone

	select {
	case evt := <-ch:
		data := evt.Data.(*participantfeed.UpdatedData)
		assert.Equal(t, types.StatusReady, data.After.Status)
	case <-time.After(time.Second):
		t.Fatal("no participant update event received")
	}
}

func TestStore_ParticipantRoundTrip(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	p := &types.Participant{
		UserID:               "carol",
		Status:               types.StatusContributing,
		ContributionStep:     types.StepDownloading,
		ContributionProgress: 1,
		Contributions: []types.ParticipantContribution{
			{Hash: "0xabc", ComputationTime: 1200},
		},
		ContributionStartedAt: 42,
	}
	require.NoError(t, s.SaveParticipant(ctx, "cer", p))

	got, err := s.Participant(ctx, "cer", "carol")
	require.NoError(t, err)
	assert.Equal(t, types.StatusContributing, got.Status)
	assert.Equal(t, types.StepDownloading, got.ContributionStep)
	require.Equal(t, 1, len(got.Contributions))
	assert.Equal(t, "0xabc", got.Contributions[0].Hash)
	assert.Equal(t, int64(1200), got.Contributions[0].ComputationTime)
	assert.Equal(t, int64(42), got.ContributionStartedAt)
	assert.Equal(t, testNowMillis, got.LastUpdated)

	all, err := s.Participants(ctx, "cer")
	require.NoError(t, err)
	require.Equal(t, 1, len(all))
}
