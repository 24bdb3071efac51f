package models

import "strings"

// VoterClass is the kind of governance body a voter belongs to.
type VoterClass string

const (
	VoterClassDRep      VoterClass = "drep"
	VoterClassSPO       VoterClass = "spo"
	VoterClassCommittee VoterClass = "cc"
)

// ParseVoterClass accepts the short forms, the role names used by REST
// providers (DRep, SPO, ConstitutionalCommittee) and the credential-typed
// forms reported by indexers (DREP_KEY_HASH, STAKING_POOL_KEY_HASH,
// CONSTITUTIONAL_COMMITTEE_HOT_KEY_HASH and their script variants).
func ParseVoterClass(raw string) (VoterClass, bool) {
	v := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "_", "")
	switch {
	case strings.HasPrefix(v, "drep"):
		return VoterClassDRep, true
	case v == "spo" || v == "pool" || strings.HasPrefix(v, "stakingpool"):
		return VoterClassSPO, true
	case v == "cc" || v == "committee" || strings.HasPrefix(v, "constitutionalcommittee"):
		return VoterClassCommittee, true
	}
	return "", false
}

// VoteChoice is a normalized vote.
type VoteChoice string

const (
	VoteYes     VoteChoice = "yes"
	VoteNo      VoteChoice = "no"
	VoteAbstain VoteChoice = "abstain"
)

// ParseVoteChoice normalizes "Yes", "YES", "no", "Abstain" and similar.
func ParseVoteChoice(raw string) (VoteChoice, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes":
		return VoteYes, true
	case "no":
		return VoteNo, true
	case "abstain":
		return VoteAbstain, true
	}
	return "", false
}

// ActionVoteRecord is one cast vote on a governance action.
type ActionVoteRecord struct {
	VoterIdentifier string  `json:"voter_identifier"`
	VoterType       string  `json:"voter_type"`
	Vote            string  `json:"vote"`
	VotingPower     *string `json:"voting_power,omitempty"`
	TxHash          *string `json:"tx_hash,omitempty"`
	CertIndex       *uint32 `json:"cert_index,omitempty"`
	BlockTime       *int64  `json:"block_time,omitempty"`
}

type VoterParticipant struct {
	Identifier  string      `json:"identifier"`
	Name        *string     `json:"name,omitempty"`
	HasVoted    bool        `json:"has_voted"`
	Vote        *VoteChoice `json:"vote,omitempty"`
	VotingPower *string     `json:"voting_power,omitempty"`
	TxHash      *string     `json:"tx_hash,omitempty"`
	VotedAt     *int64      `json:"voted_at,omitempty"`

	// RawVote holds a choice that did not parse as yes, no or abstain
	RawVote *string `json:"raw_vote,omitempty"`

	// VoterType is the reported type of a voter in no known class
	VoterType *string `json:"voter_type,omitempty"`

	// Synthesized is set for voters present in vote records but in no roster
	Synthesized bool `json:"synthesized,omitempty"`
}

type ParticipationSummary struct {
	Voted      int     `json:"voted"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

type VoterParticipation struct {
	ProposalID  string               `json:"proposal_id"`
	DReps       []VoterParticipant   `json:"dreps"`
	SPOs        []VoterParticipant   `json:"spos"`
	Committee   []VoterParticipant   `json:"committee"`
	DRepSummary ParticipationSummary `json:"drep_summary"`
	SPOSummary  ParticipationSummary `json:"spo_summary"`
	CCSummary   ParticipationSummary `json:"cc_summary"`
	Notes       []string             `json:"notes,omitempty"`

	// Unclassified holds votes whose voter type matches no class
	Unclassified []VoterParticipant `json:"unclassified,omitempty"`
}
