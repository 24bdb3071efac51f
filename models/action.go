package models

import "encoding/json"

type GovernanceAction struct {
	ProposalID      string  `json:"proposal_id"`
	GovActionID     *string `json:"gov_action_id,omitempty"`
	TxHash          string  `json:"tx_hash"`
	CertIndex       uint32  `json:"cert_index"`
	Type            string  `json:"type"`
	Status          *string `json:"status,omitempty"`
	Deposit         *string `json:"deposit,omitempty"`
	ReturnAddress   *string `json:"return_address,omitempty"`
	Title           *string `json:"title,omitempty"`
	Description     *string `json:"description,omitempty"`
	BlockTime       *int64  `json:"block_time,omitempty"`
	ProposedEpoch   *uint32 `json:"proposed_epoch,omitempty"`
	VotingEpoch     *uint32 `json:"voting_epoch,omitempty"`
	RatifiedEpoch   *uint32 `json:"ratified_epoch,omitempty"`
	EnactedEpoch    *uint32 `json:"enacted_epoch,omitempty"`
	ExpiredEpoch    *uint32 `json:"expired_epoch,omitempty"`
	DroppedEpoch    *uint32 `json:"dropped_epoch,omitempty"`
	ExpirationEpoch *uint32 `json:"expiration,omitempty"`

	// Wall-clock start of each milestone epoch, unix seconds
	ProposedEpochStartTime   *uint64 `json:"proposed_epoch_start_time,omitempty"`
	VotingEpochStartTime     *uint64 `json:"voting_epoch_start_time,omitempty"`
	RatifiedEpochStartTime   *uint64 `json:"ratified_epoch_start_time,omitempty"`
	EnactedEpochStartTime    *uint64 `json:"enacted_epoch_start_time,omitempty"`
	ExpiredEpochStartTime    *uint64 `json:"expired_epoch_start_time,omitempty"`
	DroppedEpochStartTime    *uint64 `json:"dropped_epoch_start_time,omitempty"`
	ExpirationEpochStartTime *uint64 `json:"expiration_start_time,omitempty"`

	MetaURL        *string              `json:"meta_url,omitempty"`
	MetaHash       *string              `json:"meta_hash,omitempty"`
	MetaJSON       json.RawMessage      `json:"meta_json,omitempty"`
	MetaIsValid    *bool                `json:"meta_is_valid,omitempty"`
	MetadataChecks *MetadataCheckResult `json:"metadata_checks,omitempty"`

	Withdrawal  []TreasuryWithdrawal `json:"withdrawal,omitempty"`
	ParamChange json.RawMessage      `json:"param_proposal,omitempty"`
}

type TreasuryWithdrawal struct {
	StakeAddress string `json:"stake_address"`
	Amount       string `json:"amount"`
}

// EpochMilestone pairs a milestone epoch with its start time field.
type EpochMilestone struct {
	Name      string
	Epoch     *uint32
	StartTime **uint64
}

// EpochMilestones lists the epoch markers of the action in lifecycle order.
func (a *GovernanceAction) EpochMilestones() []EpochMilestone {
	return []EpochMilestone{
		{Name: "proposed", Epoch: a.ProposedEpoch, StartTime: &a.ProposedEpochStartTime},
		{Name: "voting", Epoch: a.VotingEpoch, StartTime: &a.VotingEpochStartTime},
		{Name: "ratified", Epoch: a.RatifiedEpoch, StartTime: &a.RatifiedEpochStartTime},
		{Name: "enacted", Epoch: a.EnactedEpoch, StartTime: &a.EnactedEpochStartTime},
		{Name: "expired", Epoch: a.ExpiredEpoch, StartTime: &a.ExpiredEpochStartTime},
		{Name: "dropped", Epoch: a.DroppedEpoch, StartTime: &a.DroppedEpochStartTime},
		{Name: "expiration", Epoch: a.ExpirationEpoch, StartTime: &a.ExpirationEpochStartTime},
	}
}

type ActionsPage struct {
	Actions []GovernanceAction `json:"actions"`
	HasMore bool               `json:"has_more"`
	Total   *uint64            `json:"total,omitempty"`
}

// VoteCounts tallies one voter class.
type VoteCounts struct {
	Yes            uint32 `json:"yes"`
	No             uint32 `json:"no"`
	Abstain        uint32 `json:"abstain"`
	YesVotingPower string `json:"yes_voting_power"`
	NoVotingPower  string `json:"no_voting_power"`
	AbstainPower   string `json:"abstain_voting_power"`
}

type ActionVotingBreakdown struct {
	ProposalID       string     `json:"proposal_id"`
	DRepVotes        VoteCounts `json:"drep_votes"`
	SPOVotes         VoteCounts `json:"spo_votes"`
	CCVotes          VoteCounts `json:"cc_votes"`
	TotalVotingPower string     `json:"total_voting_power"`
}

// VoteCount is the number of votes tallied across every class.
func (b *ActionVotingBreakdown) VoteCount() uint32 {
	var n uint32
	for _, c := range []VoteCounts{b.DRepVotes, b.SPOVotes, b.CCVotes} {
		n += c.Yes + c.No + c.Abstain
	}
	return n
}

// IsEmpty reports a tally with neither voting power nor counted votes.
func (b *ActionVotingBreakdown) IsEmpty() bool {
	if b == nil {
		return true
	}
	noPower := b.TotalVotingPower == "" || b.TotalVotingPower == "0"
	return noPower && b.VoteCount() == 0
}
