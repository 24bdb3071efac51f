package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/fenilmodi00/govdash-backend/models"
	"github.com/fenilmodi00/govdash-backend/shared"
	"github.com/sirupsen/logrus"
)

const koiosUserAgent = "govdash-backend/koios"

// KoiosProvider reads from the Koios PostgREST API. It is unauthenticated by
// default, so every call passes through a rate limiter.
type KoiosProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *shared.HTTPRequestRateLimiter
	logger  *logrus.Entry
}

func NewKoiosProvider(baseURL, apiKey string, client *http.Client, limiter *shared.HTTPRequestRateLimiter) *KoiosProvider {
	return &KoiosProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
		limiter: limiter,
		logger:  logrus.WithField("component", "KoiosProvider"),
	}
}

func (k *KoiosProvider) Name() string { return "koios" }

func (k *KoiosProvider) get(ctx context.Context, operation, path string, params url.Values, out interface{}) error {
	target := k.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	return k.do(ctx, operation, http.MethodGet, target, nil, out)
}

func (k *KoiosProvider) post(ctx context.Context, operation, path string, body, out interface{}) error {
	return k.do(ctx, operation, http.MethodPost, k.baseURL+path, body, out)
}

func (k *KoiosProvider) do(ctx context.Context, operation, method, target string, body, out interface{}) error {
	if err := k.limiter.Wait(ctx); err != nil {
		return err
	}
	headers := map[string]string{}
	if k.apiKey != "" {
		headers["Authorization"] = "Bearer " + k.apiKey
	}
	err := shared.DoJSON(ctx, k.client, shared.JSONRequest{
		Backend:   k.Name(),
		Operation: operation,
		Method:    method,
		URL:       target,
		Body:      body,
		Headers:   headers,
		UserAgent: koiosUserAgent,
	}, out)
	if err != nil && shared.StatusCodeOf(err) == http.StatusTooManyRequests {
		k.logger.WithField("operation", operation).Warn("Koios rate limited the request")
	}
	return err
}

func pageParams(page, count int) url.Values {
	page, count = models.NormalizePaging(page, count)
	params := url.Values{}
	params.Set("offset", strconv.Itoa((page-1)*count))
	// one extra row tells whether another page exists
	params.Set("limit", strconv.Itoa(count+1))
	return params
}

type koiosDRep struct {
	DRepID         string     `json:"drep_id"`
	Hex            string     `json:"hex"`
	HasScript      *bool      `json:"has_script"`
	Registered     *bool      `json:"registered"`
	Deposit        flexString `json:"deposit"`
	Active         *bool      `json:"active"`
	ExpiresEpochNo *int64     `json:"expires_epoch_no"`
	Amount         flexString `json:"amount"`
	MetaURL        *string    `json:"meta_url"`
	MetaHash       *string    `json:"meta_hash"`
}

func (d koiosDRep) toModel() models.DRep {
	return models.DRep{
		DRepID:       d.DRepID,
		HexID:        strPtr(d.Hex),
		IsScript:     d.HasScript,
		Registered:   d.Registered,
		Active:       d.Active,
		Status:       drepStatus(d.Registered, nil, nil, d.Active),
		Deposit:      d.Deposit.ptr(),
		ExpiresEpoch: optU32(d.ExpiresEpochNo),
		VotingPower:  d.Amount.ptr(),
		MetaURL:      d.MetaURL,
		MetaHash:     d.MetaHash,
	}
}

var likeTermEscaper = strings.NewReplacer("*", "", `\`, `\\`, `"`, `\"`)

// likeFilterValue quotes a search term as a PostgREST contains-pattern, so
// reserved characters stay literal inside an or=() tree. '*' is dropped
// because PostgREST reads it as a wildcard even when quoted. An empty result
// means no filter.
func likeFilterValue(search string) string {
	term := likeTermEscaper.Replace(search)
	if term == "" {
		return ""
	}
	return `"*` + term + `*"`
}

func (k *KoiosProvider) GetDRepsPage(ctx context.Context, query models.DRepsQuery) (*models.DRepsPage, error) {
	query = query.Normalize()
	params := pageParams(query.Page, query.Count)

	wantRegistered, wantRetired := false, false
	for _, s := range query.Statuses {
		switch s {
		case "retired":
			wantRetired = true
		case "active", "registered", "inactive":
			wantRegistered = true
		}
	}
	if wantRegistered != wantRetired {
		params.Set("registered", "eq."+strconv.FormatBool(wantRegistered))
	}
	if term := likeFilterValue(query.Search); term != "" {
		params.Set("or", fmt.Sprintf("(drep_id.ilike.%s,hex.ilike.%s)", term, term))
	}

	var rows []koiosDRep
	if err := k.get(ctx, "get_dreps_page", "/drep_list", params, &rows); err != nil {
		return nil, err
	}

	page := &models.DRepsPage{DReps: make([]models.DRep, 0, len(rows))}
	if len(rows) > query.Count {
		rows = rows[:query.Count]
		page.HasMore = true
	}
	for _, row := range rows {
		page.DReps = append(page.DReps, row.toModel())
	}
	return page, nil
}

func (k *KoiosProvider) GetDRep(ctx context.Context, drepID string) (*models.DRep, error) {
	var rows []koiosDRep
	body := map[string][]string{"_drep_ids": {drepID}}
	if err := k.post(ctx, "get_drep", "/drep_info", body, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	d := rows[0].toModel()
	return &d, nil
}

func (k *KoiosProvider) GetDRepDelegators(ctx context.Context, drepID string) ([]models.DRepDelegator, error) {
	var rows []struct {
		StakeAddress string     `json:"stake_address"`
		EpochNo      *int64     `json:"epoch_no"`
		Amount       flexString `json:"amount"`
	}
	params := url.Values{"_drep_id": {drepID}}
	if err := k.get(ctx, "get_drep_delegators", "/drep_delegators", params, &rows); err != nil {
		return nil, err
	}
	out := make([]models.DRepDelegator, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.DRepDelegator{
			StakeAddress: row.StakeAddress,
			Amount:       string(row.Amount),
			EpochNo:      optU32(row.EpochNo),
		})
	}
	return out, nil
}

func (k *KoiosProvider) GetDRepVotingHistory(ctx context.Context, drepID string) ([]models.DRepVotingHistory, error) {
	var rows []struct {
		ProposalID     string  `json:"proposal_id"`
		ProposalTxHash string  `json:"proposal_tx_hash"`
		ProposalIndex  uint32  `json:"proposal_index"`
		VoteTxHash     string  `json:"vote_tx_hash"`
		BlockTime      *int64  `json:"block_time"`
		Vote           string  `json:"vote"`
		MetaURL        *string `json:"meta_url"`
		MetaHash       *string `json:"meta_hash"`
	}
	params := url.Values{"_drep_id": {drepID}}
	if err := k.get(ctx, "get_drep_voting_history", "/drep_votes", params, &rows); err != nil {
		return nil, err
	}
	out := make([]models.DRepVotingHistory, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.DRepVotingHistory{
			ProposalTxHash: row.ProposalTxHash,
			ProposalIndex:  row.ProposalIndex,
			ProposalID:     strPtr(row.ProposalID),
			VoteTxHash:     row.VoteTxHash,
			BlockTime:      row.BlockTime,
			Vote:           row.Vote,
			MetaURL:        row.MetaURL,
			MetaHash:       row.MetaHash,
		})
	}
	return out, nil
}

func (k *KoiosProvider) GetDRepMetadata(ctx context.Context, drepID string) (json.RawMessage, error) {
	var rows []struct {
		MetaJSON json.RawMessage `json:"meta_json"`
	}
	body := map[string][]string{"_drep_ids": {drepID}}
	if err := k.post(ctx, "get_drep_metadata", "/drep_metadata", body, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rawJSON(rows[0].MetaJSON), nil
}

func (k *KoiosProvider) GetTotalActiveDReps(ctx context.Context) (*uint32, error) {
	var rows []struct {
		EpochNo int64      `json:"epoch_no"`
		DReps   flexString `json:"dreps"`
	}
	params := url.Values{"order": {"epoch_no.desc"}, "limit": {"1"}}
	if err := k.get(ctx, "get_total_active_dreps", "/drep_epoch_summary", params, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].DReps.uint32Ptr(), nil
}

type koiosProposal struct {
	BlockTime           *int64            `json:"block_time"`
	ProposalID          string            `json:"proposal_id"`
	ProposalTxHash      string            `json:"proposal_tx_hash"`
	ProposalIndex       uint32            `json:"proposal_index"`
	ProposalType        string            `json:"proposal_type"`
	ProposalDescription json.RawMessage   `json:"proposal_description"`
	Deposit             flexString        `json:"deposit"`
	ReturnAddress       string            `json:"return_address"`
	ProposedEpoch       *int64            `json:"proposed_epoch"`
	RatifiedEpoch       *int64            `json:"ratified_epoch"`
	EnactedEpoch        *int64            `json:"enacted_epoch"`
	DroppedEpoch        *int64            `json:"dropped_epoch"`
	ExpiredEpoch        *int64            `json:"expired_epoch"`
	Expiration          *int64            `json:"expiration"`
	MetaURL             *string           `json:"meta_url"`
	MetaHash            *string           `json:"meta_hash"`
	MetaJSON            json.RawMessage   `json:"meta_json"`
	MetaIsValid         *bool             `json:"meta_is_valid"`
	Withdrawal          []koiosWithdrawal `json:"withdrawal"`
	ParamProposal       json.RawMessage   `json:"param_proposal"`
}

type koiosWithdrawal struct {
	StakeAddress string     `json:"stake_address"`
	Amount       flexString `json:"amount"`
}

func (p koiosProposal) toModel() models.GovernanceAction {
	action := models.GovernanceAction{
		ProposalID:      shared.ProposalID{TxHash: p.ProposalTxHash, Index: p.ProposalIndex}.String(),
		GovActionID:     strPtr(p.ProposalID),
		TxHash:          p.ProposalTxHash,
		CertIndex:       p.ProposalIndex,
		Type:            p.ProposalType,
		Deposit:         p.Deposit.ptr(),
		ReturnAddress:   strPtr(p.ReturnAddress),
		BlockTime:       p.BlockTime,
		ProposedEpoch:   optU32(p.ProposedEpoch),
		RatifiedEpoch:   optU32(p.RatifiedEpoch),
		EnactedEpoch:    optU32(p.EnactedEpoch),
		DroppedEpoch:    optU32(p.DroppedEpoch),
		ExpiredEpoch:    optU32(p.ExpiredEpoch),
		ExpirationEpoch: optU32(p.Expiration),
		MetaURL:         p.MetaURL,
		MetaHash:        p.MetaHash,
		MetaJSON:        rawJSON(p.MetaJSON),
		MetaIsValid:     p.MetaIsValid,
		ParamChange:     rawJSON(p.ParamProposal),
	}
	// voting opens the epoch after submission
	if action.ProposedEpoch != nil {
		action.VotingEpoch = u32Ptr(*action.ProposedEpoch + 1)
	}
	action.Status = actionStatus(&action)
	for _, w := range p.Withdrawal {
		action.Withdrawal = append(action.Withdrawal, models.TreasuryWithdrawal{
			StakeAddress: w.StakeAddress,
			Amount:       string(w.Amount),
		})
	}
	applyAnchorText(&action)
	return action
}

// actionStatus derives the lifecycle status from the epoch markers.
func actionStatus(a *models.GovernanceAction) *string {
	status := "active"
	switch {
	case a.EnactedEpoch != nil:
		status = "enacted"
	case a.RatifiedEpoch != nil:
		status = "ratified"
	case a.DroppedEpoch != nil:
		status = "dropped"
	case a.ExpiredEpoch != nil:
		status = "expired"
	}
	return &status
}

// applyAnchorText pulls title and abstract out of CIP-108 anchor JSON.
func applyAnchorText(a *models.GovernanceAction) {
	if len(a.MetaJSON) == 0 {
		return
	}
	var doc struct {
		Body struct {
			Title    *string `json:"title"`
			Abstract *string `json:"abstract"`
		} `json:"body"`
	}
	if err := json.Unmarshal(a.MetaJSON, &doc); err != nil {
		return
	}
	if a.Title == nil {
		a.Title = doc.Body.Title
	}
	if a.Description == nil {
		a.Description = doc.Body.Abstract
	}
}

func (k *KoiosProvider) GetGovernanceActionsPage(ctx context.Context, page, count int) (*models.ActionsPage, error) {
	_, count = models.NormalizePaging(page, count)
	params := pageParams(page, count)
	params.Set("order", "block_time.desc")

	var rows []koiosProposal
	if err := k.get(ctx, "get_actions_page", "/proposal_list", params, &rows); err != nil {
		return nil, err
	}
	out := &models.ActionsPage{Actions: make([]models.GovernanceAction, 0, len(rows))}
	if len(rows) > count {
		rows = rows[:count]
		out.HasMore = true
	}
	for _, row := range rows {
		out.Actions = append(out.Actions, row.toModel())
	}
	return out, nil
}

func (k *KoiosProvider) GetGovernanceAction(ctx context.Context, proposalID string) (*models.GovernanceAction, error) {
	id, err := shared.ParseProposalID(proposalID)
	if err != nil {
		return nil, err
	}
	params := url.Values{
		"proposal_tx_hash": {"eq." + id.TxHash},
		"proposal_index":   {"eq." + strconv.FormatUint(uint64(id.Index), 10)},
	}
	var rows []koiosProposal
	if err := k.get(ctx, "get_action", "/proposal_list", params, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	action := rows[0].toModel()
	return &action, nil
}

func (k *KoiosProvider) govActionParam(proposalID string) (url.Values, error) {
	id, err := shared.ParseProposalID(proposalID)
	if err != nil {
		return nil, err
	}
	govAction, err := id.GovActionID()
	if err != nil {
		return nil, shared.NewInvalidIdentifierError("encode_gov_action_id", proposalID, err)
	}
	return url.Values{"_proposal_id": {govAction}}, nil
}

func (k *KoiosProvider) GetActionVotingResults(ctx context.Context, proposalID string) (*models.ActionVotingBreakdown, error) {
	params, err := k.govActionParam(proposalID)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		DRepYesVotesCast      uint32     `json:"drep_yes_votes_cast"`
		DRepYesVotePower      flexString `json:"drep_yes_vote_power"`
		DRepNoVotesCast       uint32     `json:"drep_no_votes_cast"`
		DRepNoVotePower       flexString `json:"drep_no_vote_power"`
		DRepAbstainVotesCast  uint32     `json:"drep_abstain_votes_cast"`
		DRepAbstainVotePower  flexString `json:"drep_active_abstain_vote_power"`
		PoolYesVotesCast      uint32     `json:"pool_yes_votes_cast"`
		PoolYesVotePower      flexString `json:"pool_yes_vote_power"`
		PoolNoVotesCast       uint32     `json:"pool_no_votes_cast"`
		PoolNoVotePower       flexString `json:"pool_no_vote_power"`
		PoolAbstainVotesCast  uint32     `json:"pool_abstain_votes_cast"`
		PoolAbstainVotePower  flexString `json:"pool_active_abstain_vote_power"`
		CommitteeYesVotesCast uint32     `json:"committee_yes_votes_cast"`
		CommitteeNoVotesCast  uint32     `json:"committee_no_votes_cast"`
		CommitteeAbstainCast  uint32     `json:"committee_abstain_votes_cast"`
	}
	if err := k.get(ctx, "get_action_voting_results", "/proposal_voting_summary", params, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	r := rows[0]
	orZero := func(f flexString) string {
		if f == "" {
			return "0"
		}
		return string(f)
	}
	return &models.ActionVotingBreakdown{
		ProposalID: proposalID,
		DRepVotes: models.VoteCounts{
			Yes: r.DRepYesVotesCast, No: r.DRepNoVotesCast, Abstain: r.DRepAbstainVotesCast,
			YesVotingPower: orZero(r.DRepYesVotePower), NoVotingPower: orZero(r.DRepNoVotePower),
			AbstainPower: orZero(r.DRepAbstainVotePower),
		},
		SPOVotes: models.VoteCounts{
			Yes: r.PoolYesVotesCast, No: r.PoolNoVotesCast, Abstain: r.PoolAbstainVotesCast,
			YesVotingPower: orZero(r.PoolYesVotePower), NoVotingPower: orZero(r.PoolNoVotePower),
			AbstainPower: orZero(r.PoolAbstainVotePower),
		},
		CCVotes: models.VoteCounts{
			Yes: r.CommitteeYesVotesCast, No: r.CommitteeNoVotesCast, Abstain: r.CommitteeAbstainCast,
			YesVotingPower: "0", NoVotingPower: "0", AbstainPower: "0",
		},
		TotalVotingPower: sumDecimalStrings(
			string(r.DRepYesVotePower), string(r.DRepNoVotePower), string(r.DRepAbstainVotePower),
			string(r.PoolYesVotePower), string(r.PoolNoVotePower), string(r.PoolAbstainVotePower),
		),
	}, nil
}

func (k *KoiosProvider) GetActionVoteRecords(ctx context.Context, proposalID string) ([]models.ActionVoteRecord, error) {
	params, err := k.govActionParam(proposalID)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		BlockTime *int64 `json:"block_time"`
		VoterRole string `json:"voter_role"`
		VoterID   string `json:"voter_id"`
		Vote      string `json:"vote"`
		VoteTx    string `json:"vote_tx_hash"`
	}
	if err := k.get(ctx, "get_action_vote_records", "/proposal_votes", params, &rows); err != nil {
		return nil, err
	}
	out := make([]models.ActionVoteRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.ActionVoteRecord{
			VoterIdentifier: row.VoterID,
			VoterType:       row.VoterRole,
			Vote:            row.Vote,
			TxHash:          strPtr(row.VoteTx),
			BlockTime:       row.BlockTime,
		})
	}
	return out, nil
}

func (k *KoiosProvider) GetStakeDelegation(ctx context.Context, stakeAddress string) (*models.StakeDelegation, error) {
	var rows []struct {
		StakeAddress     string     `json:"stake_address"`
		Status           string     `json:"status"`
		DelegatedDRep    *string    `json:"delegated_drep"`
		DelegatedPool    *string    `json:"delegated_pool"`
		TotalBalance     flexString `json:"total_balance"`
		UTXO             flexString `json:"utxo"`
		RewardsAvailable flexString `json:"rewards_available"`
	}
	body := map[string][]string{"_stake_addresses": {stakeAddress}}
	if err := k.post(ctx, "get_stake_delegation", "/account_info", body, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	r := rows[0]
	return &models.StakeDelegation{
		StakeAddress:   r.StakeAddress,
		DelegatedDRep:  r.DelegatedDRep,
		DelegatedPool:  r.DelegatedPool,
		TotalBalance:   r.TotalBalance.ptr(),
		UTXOBalance:    r.UTXO.ptr(),
		RewardsBalance: r.RewardsAvailable.ptr(),
		Status:         strPtr(r.Status),
	}, nil
}

func (k *KoiosProvider) GetStakePoolsPage(ctx context.Context, page, count int) (*models.StakePoolPage, error) {
	_, count = models.NormalizePaging(page, count)
	params := pageParams(page, count)
	params.Set("pool_status", "eq.registered")

	var rows []struct {
		PoolIDBech32 string     `json:"pool_id_bech32"`
		PoolIDHex    string     `json:"pool_id_hex"`
		Ticker       *string    `json:"ticker"`
		PoolStatus   string     `json:"pool_status"`
		ActiveStake  flexString `json:"active_stake"`
	}
	if err := k.get(ctx, "get_stake_pools_page", "/pool_list", params, &rows); err != nil {
		return nil, err
	}
	out := &models.StakePoolPage{Pools: make([]models.StakePool, 0, len(rows))}
	if len(rows) > count {
		rows = rows[:count]
		out.HasMore = true
	}
	for _, row := range rows {
		out.Pools = append(out.Pools, models.StakePool{
			PoolID:      row.PoolIDBech32,
			HexID:       strPtr(row.PoolIDHex),
			Ticker:      row.Ticker,
			ActiveStake: row.ActiveStake.ptr(),
			Status:      strPtr(row.PoolStatus),
		})
	}
	return out, nil
}

func (k *KoiosProvider) GetCommitteeMembers(ctx context.Context) ([]models.CommitteeMember, error) {
	var rows []struct {
		Members []struct {
			Status          string  `json:"status"`
			CCHotID         *string `json:"cc_hot_id"`
			CCColdID        string  `json:"cc_cold_id"`
			CCHotHex        *string `json:"cc_hot_hex"`
			CCColdHex       *string `json:"cc_cold_hex"`
			ExpirationEpoch *int64  `json:"expiration_epoch"`
		} `json:"members"`
	}
	if err := k.get(ctx, "get_committee_members", "/committee_info", nil, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	out := make([]models.CommitteeMember, 0, len(rows[0].Members))
	for _, m := range rows[0].Members {
		out = append(out, models.CommitteeMember{
			HotCredential:   m.CCHotID,
			ColdCredential:  m.CCColdID,
			HotHex:          m.CCHotHex,
			ColdHex:         m.CCColdHex,
			Status:          strPtr(m.Status),
			ExpirationEpoch: optU32(m.ExpirationEpoch),
		})
	}
	return out, nil
}

func (k *KoiosProvider) GetEpochStartTime(ctx context.Context, epoch uint32) (*uint64, error) {
	var rows []struct {
		StartTime *int64 `json:"start_time"`
	}
	params := url.Values{"_epoch_no": {strconv.FormatUint(uint64(epoch), 10)}}
	if err := k.get(ctx, "get_epoch_start_time", "/epoch_info", params, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 || rows[0].StartTime == nil || *rows[0].StartTime < 0 {
		return nil, nil
	}
	start := uint64(*rows[0].StartTime)
	return &start, nil
}

func (k *KoiosProvider) HealthCheck(ctx context.Context) (bool, error) {
	var rows []json.RawMessage
	if err := k.get(ctx, "health_check", "/tip", nil, &rows); err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}
