// Package providers holds the upstream data sources: the Koios and Blockfrost
// REST backends, the router that composes them with per-operation fallback,
// the indexer database source and the GovTools enrichment client.
package providers

import (
	"context"
	"encoding/json"

	"github.com/fenilmodi00/govdash-backend/models"
)

// Source is the query surface the orchestrator reads from. Lookups of a
// single entity return (nil, nil) when it does not exist.
type Source interface {
	GetDRepsPage(ctx context.Context, query models.DRepsQuery) (*models.DRepsPage, error)
	GetDRep(ctx context.Context, drepID string) (*models.DRep, error)
	GetDRepDelegators(ctx context.Context, drepID string) ([]models.DRepDelegator, error)
	GetDRepVotingHistory(ctx context.Context, drepID string) ([]models.DRepVotingHistory, error)
	GetDRepMetadata(ctx context.Context, drepID string) (json.RawMessage, error)
	GetTotalActiveDReps(ctx context.Context) (*uint32, error)

	GetGovernanceActionsPage(ctx context.Context, page, count int) (*models.ActionsPage, error)
	GetGovernanceAction(ctx context.Context, proposalID string) (*models.GovernanceAction, error)
	GetActionVotingResults(ctx context.Context, proposalID string) (*models.ActionVotingBreakdown, error)
	GetActionVoteRecords(ctx context.Context, proposalID string) ([]models.ActionVoteRecord, error)

	GetStakeDelegation(ctx context.Context, stakeAddress string) (*models.StakeDelegation, error)
	GetStakePoolsPage(ctx context.Context, page, count int) (*models.StakePoolPage, error)
	GetCommitteeMembers(ctx context.Context) ([]models.CommitteeMember, error)
	GetEpochStartTime(ctx context.Context, epoch uint32) (*uint64, error)

	HealthCheck(ctx context.Context) (bool, error)
}

// Backend is one REST provider taking part in fallback composition.
type Backend interface {
	Source
	Name() string
}
