package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/fenilmodi00/govdash-backend/models"
	"github.com/fenilmodi00/govdash-backend/shared"
	"github.com/sirupsen/logrus"
)

const (
	blockfrostUserAgent = "govdash-backend/blockfrost"
	// Blockfrost caps page size at 100
	blockfrostMaxCount = 100
	// delegator and vote listings are paged through up to this many pages
	blockfrostMaxPages = 10
)

// BlockfrostProvider reads from the Blockfrost API, authenticated with a
// project id.
type BlockfrostProvider struct {
	baseURL   string
	projectID string
	client    *http.Client
	logger    *logrus.Entry
}

func NewBlockfrostProvider(baseURL, projectID string, client *http.Client) *BlockfrostProvider {
	return &BlockfrostProvider{
		baseURL:   strings.TrimRight(baseURL, "/"),
		projectID: projectID,
		client:    client,
		logger:    logrus.WithField("component", "BlockfrostProvider"),
	}
}

func (b *BlockfrostProvider) Name() string { return "blockfrost" }

// get fetches path into out. It reports found=false for 404s and for the
// 400 "Invalid path" answer Blockfrost gives for unknown identifiers.
func (b *BlockfrostProvider) get(ctx context.Context, operation, path string, params url.Values, out interface{}) (bool, error) {
	target := b.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	err := shared.DoJSON(ctx, b.client, shared.JSONRequest{
		Backend:   b.Name(),
		Operation: operation,
		URL:       target,
		Headers:   map[string]string{"project_id": b.projectID},
		UserAgent: blockfrostUserAgent,
	}, out)
	if err == nil {
		return true, nil
	}

	var statusErr *shared.HTTPStatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode == http.StatusNotFound ||
			(statusErr.StatusCode == http.StatusBadRequest && strings.Contains(statusErr.Body, "Invalid path")) {
			return false, nil
		}
	}
	return false, err
}

func blockfrostPage(page, count int) url.Values {
	page, count = models.NormalizePaging(page, count)
	return url.Values{
		"page":  {strconv.Itoa(page)},
		"count": {strconv.Itoa(count)},
		"order": {"desc"},
	}
}

type blockfrostDRep struct {
	DRepID          string     `json:"drep_id"`
	Hex             string     `json:"hex"`
	Amount          flexString `json:"amount"`
	Active          *bool      `json:"active"`
	ActiveEpoch     *int64     `json:"active_epoch"`
	HasScript       *bool      `json:"has_script"`
	Retired         *bool      `json:"retired"`
	Expired         *bool      `json:"expired"`
	LastActiveEpoch *int64     `json:"last_active_epoch"`
}

func (d blockfrostDRep) toModel() models.DRep {
	return models.DRep{
		DRepID:            d.DRepID,
		HexID:             strPtr(d.Hex),
		IsScript:          d.HasScript,
		Active:            d.Active,
		Retired:           d.Retired,
		Expired:           d.Expired,
		Status:            drepStatus(nil, d.Retired, d.Expired, d.Active),
		VotingPower:       d.Amount.ptr(),
		RegistrationEpoch: optU32(d.ActiveEpoch),
		LastActiveEpoch:   optU32(d.LastActiveEpoch),
	}
}

// GetDRepsPage lists DReps. Blockfrost cannot filter, so filters are applied
// to the fetched page and may shorten it.
func (b *BlockfrostProvider) GetDRepsPage(ctx context.Context, query models.DRepsQuery) (*models.DRepsPage, error) {
	query = query.Normalize()
	var rows []blockfrostDRep
	if _, err := b.get(ctx, "get_dreps_page", "/governance/dreps", blockfrostPage(query.Page, query.Count), &rows); err != nil {
		return nil, err
	}
	page := &models.DRepsPage{
		DReps:   make([]models.DRep, 0, len(rows)),
		HasMore: len(rows) == query.Count,
	}
	for _, row := range rows {
		d := row.toModel()
		if matchesDRepFilters(d, query) {
			page.DReps = append(page.DReps, d)
		}
	}
	return page, nil
}

func (b *BlockfrostProvider) GetDRep(ctx context.Context, drepID string) (*models.DRep, error) {
	var row blockfrostDRep
	found, err := b.get(ctx, "get_drep", "/governance/dreps/"+url.PathEscape(drepID), nil, &row)
	if err != nil || !found {
		return nil, err
	}
	d := row.toModel()
	return &d, nil
}

func (b *BlockfrostProvider) GetDRepDelegators(ctx context.Context, drepID string) ([]models.DRepDelegator, error) {
	var out []models.DRepDelegator
	for page := 1; page <= blockfrostMaxPages; page++ {
		var rows []struct {
			Address string     `json:"address"`
			Amount  flexString `json:"amount"`
		}
		params := url.Values{"page": {strconv.Itoa(page)}, "count": {strconv.Itoa(blockfrostMaxCount)}}
		found, err := b.get(ctx, "get_drep_delegators", "/governance/dreps/"+url.PathEscape(drepID)+"/delegators", params, &rows)
		if err != nil {
			return nil, err
		}
		if !found {
			break
		}
		for _, row := range rows {
			out = append(out, models.DRepDelegator{StakeAddress: row.Address, Amount: string(row.Amount)})
		}
		if len(rows) < blockfrostMaxCount {
			break
		}
	}
	return out, nil
}

func (b *BlockfrostProvider) GetDRepVotingHistory(ctx context.Context, drepID string) ([]models.DRepVotingHistory, error) {
	var out []models.DRepVotingHistory
	for page := 1; page <= blockfrostMaxPages; page++ {
		var rows []struct {
			TxHash            string `json:"tx_hash"`
			CertIndex         uint32 `json:"cert_index"`
			ProposalID        string `json:"proposal_id"`
			ProposalTxHash    string `json:"proposal_tx_hash"`
			ProposalCertIndex uint32 `json:"proposal_cert_index"`
			Vote              string `json:"vote"`
		}
		params := url.Values{"page": {strconv.Itoa(page)}, "count": {strconv.Itoa(blockfrostMaxCount)}, "order": {"desc"}}
		found, err := b.get(ctx, "get_drep_voting_history", "/governance/dreps/"+url.PathEscape(drepID)+"/votes", params, &rows)
		if err != nil {
			return nil, err
		}
		if !found {
			break
		}
		for _, row := range rows {
			out = append(out, models.DRepVotingHistory{
				ProposalTxHash: row.ProposalTxHash,
				ProposalIndex:  row.ProposalCertIndex,
				ProposalID:     strPtr(row.ProposalID),
				VoteTxHash:     row.TxHash,
				Vote:           row.Vote,
			})
		}
		if len(rows) < blockfrostMaxCount {
			break
		}
	}
	return out, nil
}

func (b *BlockfrostProvider) GetDRepMetadata(ctx context.Context, drepID string) (json.RawMessage, error) {
	var row struct {
		JSONMetadata json.RawMessage `json:"json_metadata"`
	}
	found, err := b.get(ctx, "get_drep_metadata", "/governance/dreps/"+url.PathEscape(drepID)+"/metadata", nil, &row)
	if err != nil || !found {
		return nil, err
	}
	return rawJSON(row.JSONMetadata), nil
}

func (b *BlockfrostProvider) GetTotalActiveDReps(ctx context.Context) (*uint32, error) {
	return nil, shared.ErrUnsupported
}

type blockfrostProposal struct {
	ID                    string          `json:"id"`
	TxHash                string          `json:"tx_hash"`
	CertIndex             uint32          `json:"cert_index"`
	GovernanceType        string          `json:"governance_type"`
	Deposit               flexString      `json:"deposit"`
	ReturnAddress         string          `json:"return_address"`
	GovernanceDescription json.RawMessage `json:"governance_description"`
	RatifiedEpoch         *int64          `json:"ratified_epoch"`
	EnactedEpoch          *int64          `json:"enacted_epoch"`
	DroppedEpoch          *int64          `json:"dropped_epoch"`
	ExpiredEpoch          *int64          `json:"expired_epoch"`
	Expiration            *int64          `json:"expiration"`
}

func (p blockfrostProposal) toModel() models.GovernanceAction {
	action := models.GovernanceAction{
		ProposalID:      shared.ProposalID{TxHash: p.TxHash, Index: p.CertIndex}.String(),
		GovActionID:     strPtr(p.ID),
		TxHash:          p.TxHash,
		CertIndex:       p.CertIndex,
		Type:            blockfrostActionType(p.GovernanceType),
		Deposit:         p.Deposit.ptr(),
		ReturnAddress:   strPtr(p.ReturnAddress),
		RatifiedEpoch:   optU32(p.RatifiedEpoch),
		EnactedEpoch:    optU32(p.EnactedEpoch),
		DroppedEpoch:    optU32(p.DroppedEpoch),
		ExpiredEpoch:    optU32(p.ExpiredEpoch),
		ExpirationEpoch: optU32(p.Expiration),
	}
	action.Status = actionStatus(&action)
	return action
}

// blockfrostActionType maps snake_case governance types onto the
// PascalCase names used by the other sources.
func blockfrostActionType(t string) string {
	parts := strings.Split(t, "_")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, "")
}

func (b *BlockfrostProvider) GetGovernanceActionsPage(ctx context.Context, page, count int) (*models.ActionsPage, error) {
	_, count = models.NormalizePaging(page, count)
	var rows []blockfrostProposal
	if _, err := b.get(ctx, "get_actions_page", "/governance/proposals", blockfrostPage(page, count), &rows); err != nil {
		return nil, err
	}
	out := &models.ActionsPage{
		Actions: make([]models.GovernanceAction, 0, len(rows)),
		HasMore: len(rows) == count,
	}
	for _, row := range rows {
		out.Actions = append(out.Actions, row.toModel())
	}
	return out, nil
}

func proposalPath(proposalID string) (string, error) {
	id, err := shared.ParseProposalID(proposalID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("/governance/proposals/%s/%d", id.TxHash, id.Index), nil
}

func (b *BlockfrostProvider) GetGovernanceAction(ctx context.Context, proposalID string) (*models.GovernanceAction, error) {
	path, err := proposalPath(proposalID)
	if err != nil {
		return nil, err
	}
	var row blockfrostProposal
	found, err := b.get(ctx, "get_action", path, nil, &row)
	if err != nil || !found {
		return nil, err
	}
	action := row.toModel()

	var meta struct {
		URL          *string         `json:"url"`
		Hash         *string         `json:"hash"`
		JSONMetadata json.RawMessage `json:"json_metadata"`
	}
	// the anchor lives on a separate resource; a failure here only loses it
	if found, err := b.get(ctx, "get_action_metadata", path+"/metadata", nil, &meta); err != nil {
		b.logger.WithField("proposal_id", proposalID).WithError(err).Debug("Proposal metadata unavailable")
	} else if found {
		action.MetaURL = meta.URL
		action.MetaHash = meta.Hash
		action.MetaJSON = rawJSON(meta.JSONMetadata)
		applyAnchorText(&action)
	}
	return &action, nil
}

// GetActionVotingResults counts votes from the vote listing; Blockfrost does
// not expose voting power per vote.
func (b *BlockfrostProvider) GetActionVotingResults(ctx context.Context, proposalID string) (*models.ActionVotingBreakdown, error) {
	records, err := b.GetActionVoteRecords(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return TallyFromRecords(proposalID, records), nil
}

func (b *BlockfrostProvider) GetActionVoteRecords(ctx context.Context, proposalID string) ([]models.ActionVoteRecord, error) {
	path, err := proposalPath(proposalID)
	if err != nil {
		return nil, err
	}
	var out []models.ActionVoteRecord
	for page := 1; page <= blockfrostMaxPages; page++ {
		var rows []struct {
			TxHash    string `json:"tx_hash"`
			CertIndex uint32 `json:"cert_index"`
			VoterRole string `json:"voter_role"`
			Voter     string `json:"voter"`
			Vote      string `json:"vote"`
		}
		params := url.Values{"page": {strconv.Itoa(page)}, "count": {strconv.Itoa(blockfrostMaxCount)}}
		found, err := b.get(ctx, "get_action_vote_records", path+"/votes", params, &rows)
		if err != nil {
			return nil, err
		}
		if !found {
			break
		}
		for _, row := range rows {
			certIndex := row.CertIndex
			out = append(out, models.ActionVoteRecord{
				VoterIdentifier: row.Voter,
				VoterType:       row.VoterRole,
				Vote:            row.Vote,
				TxHash:          strPtr(row.TxHash),
				CertIndex:       &certIndex,
			})
		}
		if len(rows) < blockfrostMaxCount {
			break
		}
	}
	return out, nil
}

func (b *BlockfrostProvider) GetStakeDelegation(ctx context.Context, stakeAddress string) (*models.StakeDelegation, error) {
	var row struct {
		StakeAddress       string     `json:"stake_address"`
		Active             bool       `json:"active"`
		ControlledAmount   flexString `json:"controlled_amount"`
		WithdrawableAmount flexString `json:"withdrawable_amount"`
		PoolID             *string    `json:"pool_id"`
		DRepID             *string    `json:"drep_id"`
	}
	found, err := b.get(ctx, "get_stake_delegation", "/accounts/"+url.PathEscape(stakeAddress), nil, &row)
	if err != nil || !found {
		return nil, err
	}
	status := "not registered"
	if row.Active {
		status = "registered"
	}
	return &models.StakeDelegation{
		StakeAddress:   row.StakeAddress,
		DelegatedDRep:  row.DRepID,
		DelegatedPool:  row.PoolID,
		TotalBalance:   row.ControlledAmount.ptr(),
		RewardsBalance: row.WithdrawableAmount.ptr(),
		Status:         &status,
	}, nil
}

func (b *BlockfrostProvider) GetStakePoolsPage(ctx context.Context, page, count int) (*models.StakePoolPage, error) {
	_, count = models.NormalizePaging(page, count)
	var rows []struct {
		PoolID      string     `json:"pool_id"`
		Hex         string     `json:"hex"`
		ActiveStake flexString `json:"active_stake"`
		Metadata    *struct {
			Ticker *string `json:"ticker"`
			Name   *string `json:"name"`
		} `json:"metadata"`
	}
	if _, err := b.get(ctx, "get_stake_pools_page", "/pools/extended", blockfrostPage(page, count), &rows); err != nil {
		return nil, err
	}
	out := &models.StakePoolPage{
		Pools:   make([]models.StakePool, 0, len(rows)),
		HasMore: len(rows) == count,
	}
	for _, row := range rows {
		pool := models.StakePool{
			PoolID:      row.PoolID,
			HexID:       strPtr(row.Hex),
			ActiveStake: row.ActiveStake.ptr(),
		}
		if row.Metadata != nil {
			pool.Ticker = row.Metadata.Ticker
			pool.Name = row.Metadata.Name
		}
		out.Pools = append(out.Pools, pool)
	}
	return out, nil
}

func (b *BlockfrostProvider) GetCommitteeMembers(ctx context.Context) ([]models.CommitteeMember, error) {
	return nil, shared.ErrUnsupported
}

func (b *BlockfrostProvider) GetEpochStartTime(ctx context.Context, epoch uint32) (*uint64, error) {
	var row struct {
		StartTime *int64 `json:"start_time"`
	}
	found, err := b.get(ctx, "get_epoch_start_time", "/epochs/"+strconv.FormatUint(uint64(epoch), 10), nil, &row)
	if err != nil || !found || row.StartTime == nil || *row.StartTime < 0 {
		return nil, err
	}
	start := uint64(*row.StartTime)
	return &start, nil
}

func (b *BlockfrostProvider) HealthCheck(ctx context.Context) (bool, error) {
	var row struct {
		IsHealthy bool `json:"is_healthy"`
	}
	if _, err := b.get(ctx, "health_check", "/health", nil, &row); err != nil {
		return false, err
	}
	return row.IsHealthy, nil
}
