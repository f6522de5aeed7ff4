package progress

import (
	"context"
	"fmt"
	"testing"

	contributionfeed "github.com/cryptocole01/p0tion/coordinator/core/feed/contribution"
	dbtest "github.com/cryptocole01/p0tion/coordinator/db/testing"
	"github.com/cryptocole01/p0tion/coordinator/types"
	"github.com/cryptocole01/p0tion/testing/assert"
	"github.com/cryptocole01/p0tion/testing/require"
)

func setupService(t *testing.T) *Service {
	store := dbtest.SetupDB(t)
	return NewService(context.Background(), &Config{Database: store})
}

func seedCircuits(t *testing.T, s *Service, count int) {
	ctx := context.Background()
	for i := 0; i < count; i++ {
		require.NoError(t, s.cfg.Database.SaveCircuit(ctx, "cer", &types.Circuit{
			ID:               fmt.Sprintf("circuit-%d", i),
			SequencePosition: i,
		}))
	}
}

func createdEvent(userID string) *contributionfeed.CreatedData {
	return &contributionfeed.CreatedData{
		CeremonyID:     "cer",
		CircuitID:      "circuit-0",
		ContributionID: "contribution-1",
		Contribution: &types.Contribution{
			ID:            "contribution-1",
			ParticipantID: userID,
			ZkeyIndex:     "00001",
			Valid:         true,
		},
	}
}

func TestRefresh_AttachesDocAndAdvances(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()
	seedCircuits(t, s, 2)
	require.NoError(t, s.cfg.Database.SaveParticipant(ctx, "cer", &types.Participant{
		UserID:               "alice",
		Status:               types.StatusContributing,
		ContributionStep:     types.StepVerifying,
		ContributionProgress: 1,
		Contributions: []types.ParticipantContribution{
			{Hash: "0xaaa", ComputationTime: 1500},
		},
		TempContributionData: &types.TempContributionData{UploadID: "upload-1"},
	}))

	require.NoError(t, s.refresh(ctx, createdEvent("alice")))

	p, err := s.cfg.Database.Participant(ctx, "cer", "alice")
	require.NoError(t, err)
	assert.Equal(t, "contribution-1", p.Contributions[0].Doc)
	assert.Equal(t, types.StatusContributed, p.Status)
	assert.Equal(t, types.StepCompleted, p.ContributionStep)
	if p.TempContributionData != nil {
		t.Fatal("temporary contribution data was not cleared")
	}
}

func TestRefresh_LastCircuitMarksDone(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()
	seedCircuits(t, s, 1)
	require.NoError(t, s.cfg.Database.SaveParticipant(ctx, "cer", &types.Participant{
		UserID:               "alice",
		Status:               types.StatusContributing,
		ContributionStep:     types.StepVerifying,
		ContributionProgress: 1,
		Contributions: []types.ParticipantContribution{
			{Hash: "0xaaa", ComputationTime: 1500},
		},
	}))

	require.NoError(t, s.refresh(ctx, createdEvent("alice")))

	p, err := s.cfg.Database.Participant(ctx, "cer", "alice")
	require.NoError(t, err)
	assert.Equal(t, types.StatusDone, p.Status)
	assert.Equal(t, types.StepCompleted, p.ContributionStep)
}

func TestRefresh_AttachesOnlyPendingEntry(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()
	seedCircuits(t, s, 3)
	require.NoError(t, s.cfg.Database.SaveParticipant(ctx, "cer", &types.Participant{
		UserID:               "alice",
		Status:               types.StatusContributing,
		ContributionStep:     types.StepVerifying,
		ContributionProgress: 2,
		Contributions: []types.ParticipantContribution{
			{Hash: "0xaaa", ComputationTime: 1500, Doc: "earlier-doc"},
			{Hash: "0xbbb", ComputationTime: 2500},
		},
	}))

	require.NoError(t, s.refresh(ctx, createdEvent("alice")))

	p, err := s.cfg.Database.Participant(ctx, "cer", "alice")
	require.NoError(t, err)
	assert.Equal(t, "earlier-doc", p.Contributions[0].Doc)
	assert.Equal(t, "contribution-1", p.Contributions[1].Doc)
	assert.Equal(t, types.StatusContributed, p.Status)
}

func TestRefresh_FinalizingCoordinatorKeepsStatus(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()
	seedCircuits(t, s, 1)
	require.NoError(t, s.cfg.Database.SaveParticipant(ctx, "cer", &types.Participant{
		UserID:               "coordinator",
		Status:               types.StatusFinalizing,
		ContributionProgress: 1,
		Contributions: []types.ParticipantContribution{
			{Hash: "0xfff", ComputationTime: 9000},
		},
	}))

	require.NoError(t, s.refresh(ctx, createdEvent("coordinator")))

	p, err := s.cfg.Database.Participant(ctx, "cer", "coordinator")
	require.NoError(t, err)
	assert.Equal(t, types.StatusFinalizing, p.Status)
	assert.Equal(t, "contribution-1", p.Contributions[0].Doc)
}

func TestRefresh_MissingParticipantFails(t *testing.T) {
	s := setupService(t)
	seedCircuits(t, s, 1)

	err := s.refresh(context.Background(), createdEvent("ghost"))
	require.ErrorContains(t, "could not get participant", err)
}
