package services

import (
	"testing"

	"github.com/fenilmodi00/govdash-backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64 { return &v }

func TestBuildVoterParticipation(t *testing.T) {
	dreps := []models.DRep{
		{DRepID: testDRep105, GivenName: strPtr("Alice")},
		{DRepID: testDRep2105},
	}
	pools := []models.StakePool{
		{PoolID: testPoolBech32, Ticker: strPtr("POOL")},
	}
	committee := []models.CommitteeMember{
		{ColdCredential: "cc_cold_unused", HotCredential: strPtr(testCCHot)},
	}
	records := []models.ActionVoteRecord{
		// CIP-129 spelling of the first DRep, re-cast later
		{VoterIdentifier: testDRep129, VoterType: "DREP_KEY_HASH", Vote: "NO", BlockTime: int64Ptr(200), VotingPower: strPtr("5")},
		{VoterIdentifier: testDRep105, VoterType: "drep", Vote: "Yes", BlockTime: int64Ptr(100), VotingPower: strPtr("4")},
		{VoterIdentifier: testPoolHex, VoterType: "STAKING_POOL_KEY_HASH", Vote: "abstain", BlockTime: int64Ptr(150)},
		{VoterIdentifier: testCCHex, VoterType: "CONSTITUTIONAL_COMMITTEE_HOT_KEY_HASH", Vote: "yes", BlockTime: int64Ptr(160)},
		{VoterIdentifier: "pool1unknown", VoterType: "spo", Vote: "yes"},
		{VoterIdentifier: "x", VoterType: "alien", Vote: "yes"},
		{VoterIdentifier: "y", VoterType: "drep", Vote: "maybe"},
	}

	out := BuildVoterParticipation("tx#0", dreps, pools, committee, records)
	assert.Equal(t, "tx#0", out.ProposalID)

	alice := out.DReps[0]
	assert.True(t, alice.HasVoted)
	require.NotNil(t, alice.Vote)
	assert.Equal(t, models.VoteNo, *alice.Vote)
	assert.Equal(t, "5", *alice.VotingPower)
	assert.Equal(t, int64(200), *alice.VotedAt)
	assert.Equal(t, "Alice", *alice.Name)
	assert.False(t, out.DReps[1].HasVoted)

	// an unparsable choice still counts as a cast vote
	require.Len(t, out.DReps, 3)
	odd := out.DReps[2]
	assert.Equal(t, "y", odd.Identifier)
	assert.True(t, odd.HasVoted)
	assert.True(t, odd.Synthesized)
	assert.Nil(t, odd.Vote)
	require.NotNil(t, odd.RawVote)
	assert.Equal(t, "maybe", *odd.RawVote)
	assert.Equal(t, models.ParticipationSummary{Voted: 2, Total: 3, Percentage: 66.67}, out.DRepSummary)

	require.Len(t, out.SPOs, 2)
	assert.True(t, out.SPOs[0].HasVoted)
	assert.False(t, out.SPOs[0].Synthesized)
	assert.True(t, out.SPOs[1].Synthesized)
	assert.Equal(t, "pool1unknown", out.SPOs[1].Identifier)
	assert.Equal(t, models.ParticipationSummary{Voted: 2, Total: 2, Percentage: 100}, out.SPOSummary)

	require.Len(t, out.Committee, 1)
	assert.True(t, out.Committee[0].HasVoted)
	assert.Equal(t, testCCHot, out.Committee[0].Identifier)

	require.Len(t, out.Unclassified, 1)
	assert.Equal(t, "x", out.Unclassified[0].Identifier)
	assert.True(t, out.Unclassified[0].HasVoted)
	assert.Equal(t, "alien", *out.Unclassified[0].VoterType)
	assert.Equal(t, models.VoteYes, *out.Unclassified[0].Vote)

	assert.Len(t, out.Notes, 2)
}

func TestBuildVoterParticipationEmpty(t *testing.T) {
	out := BuildVoterParticipation("tx#1", nil, nil, nil, nil)
	assert.NotNil(t, out.DReps)
	assert.NotNil(t, out.SPOs)
	assert.NotNil(t, out.Committee)
	assert.Equal(t, models.ParticipationSummary{}, out.CCSummary)
}

func TestParticipationPercentageRounding(t *testing.T) {
	assert.Equal(t, 33.33, participationPercentage(1, 3))
	assert.Equal(t, 66.67, participationPercentage(2, 3))
	assert.Equal(t, 0.0, participationPercentage(0, 0))
	assert.Equal(t, 100.0, participationPercentage(7, 7))
}
