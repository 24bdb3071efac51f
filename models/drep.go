package models

import (
	"encoding/json"
	"sort"
	"strings"
)

type DRep struct {
	// Identification
	DRepID   string  `json:"drep_id"`
	HexID    *string `json:"hex,omitempty"`
	IsScript *bool   `json:"has_script,omitempty"`

	// Registration state
	Status                 *string `json:"status,omitempty"`
	Registered             *bool   `json:"registered,omitempty"`
	Retired                *bool   `json:"retired,omitempty"`
	Expired                *bool   `json:"expired,omitempty"`
	Active                 *bool   `json:"active,omitempty"`
	Deposit                *string `json:"deposit,omitempty"`
	RegistrationEpoch      *uint32 `json:"registration_epoch,omitempty"`
	LastActiveEpoch        *uint32 `json:"last_active_epoch,omitempty"`
	ExpiresEpoch           *uint32 `json:"expires_epoch_no,omitempty"`
	LatestRegistrationDate *string `json:"latest_registration_date,omitempty"`
	LatestTxHash           *string `json:"latest_tx_hash,omitempty"`

	// Voting power as a lovelace decimal string, it may exceed 64 bits
	VotingPower    *string `json:"voting_power,omitempty"`
	DelegatorCount *uint32 `json:"delegator_count,omitempty"`

	// Anchor
	MetaURL  *string `json:"meta_url,omitempty"`
	MetaHash *string `json:"meta_hash,omitempty"`

	// Profile fields, filled from the primary source or by enrichment
	GivenName          *string                 `json:"given_name,omitempty"`
	Objectives         *string                 `json:"objectives,omitempty"`
	Motivations        *string                 `json:"motivations,omitempty"`
	Qualifications     *string                 `json:"qualifications,omitempty"`
	PaymentAddress     *string                 `json:"payment_address,omitempty"`
	ImageURL           *string                 `json:"image_url,omitempty"`
	ImageHash          *string                 `json:"image_hash,omitempty"`
	VotesLastYear      *uint32                 `json:"votes_last_year,omitempty"`
	MetadataError      *string                 `json:"metadata_error,omitempty"`
	IdentityReferences []DRepExternalReference `json:"identity_references,omitempty"`
	LinkReferences     []DRepExternalReference `json:"link_references,omitempty"`
}

type DRepExternalReference struct {
	Type  *string `json:"@type,omitempty"`
	Label *string `json:"label,omitempty"`
	URI   string  `json:"uri"`
}

// DRepEnrichment is the profile data returned by the enrichment service.
type DRepEnrichment struct {
	GivenName              *string
	Objectives             *string
	Motivations            *string
	Qualifications         *string
	PaymentAddress         *string
	ImageURL               *string
	ImageHash              *string
	VotesLastYear          *uint32
	MetadataError          *string
	LatestRegistrationDate *string
	LatestTxHash           *string
	IsScript               *bool
	IdentityReferences     []DRepExternalReference
	LinkReferences         []DRepExternalReference
}

type DRepDelegator struct {
	StakeAddress string  `json:"stake_address"`
	Amount       string  `json:"amount"`
	EpochNo      *uint32 `json:"epoch_no,omitempty"`
}

type DRepVotingHistory struct {
	ProposalTxHash string  `json:"proposal_tx_hash"`
	ProposalIndex  uint32  `json:"proposal_index"`
	ProposalID     *string `json:"proposal_id,omitempty"`
	VoteTxHash     string  `json:"vote_tx_hash"`
	BlockTime      *int64  `json:"block_time,omitempty"`
	Vote           string  `json:"vote"`
	MetaURL        *string `json:"meta_url,omitempty"`
	MetaHash       *string `json:"meta_hash,omitempty"`
}

type DRepsPage struct {
	DReps   []DRep  `json:"dreps"`
	HasMore bool    `json:"has_more"`
	Total   *uint64 `json:"total,omitempty"`
}

// DRepMetadata is the raw anchor document of a DRep.
type DRepMetadata struct {
	DRepID   string          `json:"drep_id"`
	MetaURL  *string         `json:"meta_url,omitempty"`
	MetaHash *string         `json:"meta_hash,omitempty"`
	MetaJSON json.RawMessage `json:"meta_json,omitempty"`
}

type DRepStats struct {
	ActiveDReps *uint32 `json:"active_dreps_count,omitempty"`
	TotalDReps  *uint32 `json:"total_dreps_count,omitempty"`
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// DRepsQuery carries list parameters for DReps.
type DRepsQuery struct {
	Page      int      `json:"page"`
	Count     int      `json:"count"`
	Statuses  []string `json:"statuses,omitempty"`
	Search    string   `json:"search,omitempty"`
	Sort      string   `json:"sort,omitempty"`
	Direction string   `json:"direction,omitempty"`
	Enrich    bool     `json:"enrich,omitempty"`
}

// Normalize clamps paging and canonicalizes the filters.
func (q DRepsQuery) Normalize() DRepsQuery {
	q.Page, q.Count = NormalizePaging(q.Page, q.Count)

	statuses := make([]string, 0, len(q.Statuses))
	seen := make(map[string]struct{}, len(q.Statuses))
	for _, s := range q.Statuses {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)
	q.Statuses = statuses
	q.Search = strings.TrimSpace(q.Search)
	q.Sort = strings.ToLower(strings.TrimSpace(q.Sort))
	q.Direction = strings.ToLower(strings.TrimSpace(q.Direction))
	return q
}

// FilterDescriptor is an order-independent encoding of every filter that
// affects the result, empty when no filter is set.
func (q DRepsQuery) FilterDescriptor() string {
	n := q.Normalize()
	var parts []string
	if len(n.Statuses) > 0 {
		parts = append(parts, "status="+strings.Join(n.Statuses, ","))
	}
	if n.Search != "" {
		parts = append(parts, "search="+n.Search)
	}
	if n.Sort != "" {
		parts = append(parts, "sort="+n.Sort)
	}
	if n.Direction != "" {
		parts = append(parts, "dir="+n.Direction)
	}
	if n.Enrich {
		parts = append(parts, "enrich")
	}
	return strings.Join(parts, ";")
}

// NormalizePaging applies the page (default 1) and count (default 20, at most
// 100) rules shared by every list operation.
func NormalizePaging(page, count int) (int, int) {
	if page < 1 {
		page = 1
	}
	if count < 1 {
		count = DefaultPageSize
	}
	if count > MaxPageSize {
		count = MaxPageSize
	}
	return page, count
}
