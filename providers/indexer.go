package providers

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/fenilmodi00/govdash-backend/database"
	"github.com/fenilmodi00/govdash-backend/models"
	"github.com/fenilmodi00/govdash-backend/shared"
	"github.com/sirupsen/logrus"
)

// Tables the indexer source cannot work without.
var indexerCoreTables = []string{"block", "drep_registration", "gov_action_proposal", "voting_procedure"}

// IndexerSource answers every query from a Yaci Store database. It has no
// alternative to fall back to, so its errors go straight to the caller.
type IndexerSource struct {
	db      *sql.DB
	timeout time.Duration
	now     func() time.Time
	logger  *logrus.Entry
}

// NewIndexerSource bounds every operation by timeout; zero leaves the
// caller's context as it is.
func NewIndexerSource(db *sql.DB, timeout time.Duration) *IndexerSource {
	return &IndexerSource{
		db:      db,
		timeout: timeout,
		now:     time.Now,
		logger:  logrus.WithField("component", "IndexerSource"),
	}
}

func (s *IndexerSource) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *IndexerSource) fail(operation string, err error) error {
	return shared.NewUpstreamUnavailableError("indexer", operation, err)
}

// SyncStatus reports how far behind the chain tip the indexer is.
func (s *IndexerSource) SyncStatus(ctx context.Context) (*models.IndexerSyncStatus, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	return database.GetIndexerSyncStatus(ctx, s.db, s.now())
}

// PoolStats reports the connection pool of the indexer database.
func (s *IndexerSource) PoolStats() models.DatabasePoolStats {
	stats := database.GetConnectionStats(s.db)
	return models.DatabasePoolStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDurationMs:     stats.WaitDuration.Milliseconds(),
	}
}

type indexerDRepRow struct {
	hash       string
	credType   sql.NullString
	certType   sql.NullString
	deposit    sql.NullString
	anchorURL  sql.NullString
	anchorHash sql.NullString
	epoch      sql.NullInt64
	txHash     sql.NullString
	blockTime  sql.NullInt64
	amount     sql.NullString
}

func (r *indexerDRepRow) scan(rows *sql.Rows) error {
	return rows.Scan(&r.hash, &r.credType, &r.certType, &r.deposit, &r.anchorURL,
		&r.anchorHash, &r.epoch, &r.txHash, &r.blockTime, &r.amount)
}

func nullString(v sql.NullString) *string {
	if !v.Valid || v.String == "" {
		return nil
	}
	s := v.String
	return &s
}

func nullU32(v sql.NullInt64) *uint32 {
	if !v.Valid {
		return nil
	}
	return optU32(&v.Int64)
}

func (r indexerDRepRow) toModel() models.DRep {
	isScript := strings.EqualFold(r.credType.String, "SCRIPTHASH")
	registered := !strings.EqualFold(r.certType.String, "UNREG_DREP_CERT")
	d := models.DRep{
		DRepID:            r.hash,
		HexID:             strPtr(r.hash),
		IsScript:          &isScript,
		Registered:        &registered,
		Status:            drepStatus(&registered, nil, nil, nil),
		Deposit:           nullString(r.deposit),
		RegistrationEpoch: nullU32(r.epoch),
		LatestTxHash:      nullString(r.txHash),
		VotingPower:       nullString(r.amount),
		MetaURL:           nullString(r.anchorURL),
		MetaHash:          nullString(r.anchorHash),
	}
	if raw, err := hex.DecodeString(r.hash); err == nil {
		if id, err := (shared.DRepCredential{Hash: raw, IsScript: isScript}).CIP129(); err == nil {
			d.DRepID = id
		}
	}
	if r.blockTime.Valid {
		date := time.Unix(database.NormalizeUnixSeconds(r.blockTime.Int64), 0).UTC().Format(time.RFC3339)
		d.LatestRegistrationDate = &date
	}
	return d
}

const drepLatestCTE = `
	WITH latest AS (
		SELECT DISTINCT ON (drep_hash) drep_hash, cred_type, type, deposit, anchor_url,
			anchor_hash, epoch, tx_hash, block_time
		FROM drep_registration
		ORDER BY drep_hash, slot DESC, cert_index DESC
	)`

// drepListVariants builds the list query with and without the drep_dist
// voting power table. $1 search term, $2 registration filter, $3 limit,
// $4 offset.
func drepListVariants(query models.DRepsQuery) []string {
	where := `
		WHERE ($1 = '' OR l.drep_hash ILIKE '%' || $1 || '%')
		AND ($2 = '' OR ($2 = 'registered') = (l.type <> 'UNREG_DREP_CERT'))`
	withPower := drepLatestCTE + `,
	power AS (
		SELECT DISTINCT ON (drep_hash) drep_hash, amount
		FROM drep_dist
		ORDER BY drep_hash, epoch DESC
	)
	SELECT l.drep_hash, l.cred_type, l.type, l.deposit::text, l.anchor_url, l.anchor_hash,
		l.epoch, l.tx_hash, l.block_time, p.amount::text
	FROM latest l
	LEFT JOIN power p ON p.drep_hash = l.drep_hash` + where + `
	ORDER BY ` + drepOrder(query, true) + `
	LIMIT $3 OFFSET $4`
	withoutPower := drepLatestCTE + `
	SELECT l.drep_hash, l.cred_type, l.type, l.deposit::text, l.anchor_url, l.anchor_hash,
		l.epoch, l.tx_hash, l.block_time, NULL::text
	FROM latest l` + where + `
	ORDER BY ` + drepOrder(query, false) + `
	LIMIT $3 OFFSET $4`
	return []string{withPower, withoutPower}
}

// drepOrder maps the caller's sort onto a fixed set of ORDER BY clauses.
func drepOrder(query models.DRepsQuery, withPower bool) string {
	dir := "DESC"
	if d := strings.ToLower(query.Direction); d == "asc" || d == "ascending" {
		dir = "ASC"
	}
	switch strings.ToLower(query.Sort) {
	case "epoch", "registrationdate", "registration_date":
		return "l.epoch " + dir + " NULLS LAST, l.drep_hash"
	}
	if withPower {
		return "p.amount " + dir + " NULLS LAST, l.drep_hash"
	}
	return "l.epoch " + dir + " NULLS LAST, l.drep_hash"
}

func (s *IndexerSource) GetDRepsPage(ctx context.Context, query models.DRepsQuery) (*models.DRepsPage, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	query = query.Normalize()
	search := query.Search
	if cred, err := shared.ParseDRepID(search); err == nil {
		search = cred.Hex()
	}
	registration := ""
	wantRegistered, wantRetired := false, false
	for _, st := range query.Statuses {
		switch st {
		case "retired":
			wantRetired = true
		case "active", "registered", "inactive":
			wantRegistered = true
		}
	}
	if wantRegistered != wantRetired {
		registration = "retired"
		if wantRegistered {
			registration = "registered"
		}
	}

	rows, err := database.QueryFirst(ctx, s.db, drepListVariants(query),
		search, registration, query.Count+1, (query.Page-1)*query.Count)
	if err != nil {
		return nil, s.fail("get_dreps_page", err)
	}
	defer rows.Close()

	page := &models.DRepsPage{DReps: make([]models.DRep, 0, query.Count)}
	for rows.Next() {
		var row indexerDRepRow
		if err := row.scan(rows); err != nil {
			return nil, s.fail("get_dreps_page", err)
		}
		if len(page.DReps) == query.Count {
			page.HasMore = true
			continue
		}
		page.DReps = append(page.DReps, row.toModel())
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("get_dreps_page", err)
	}
	return page, nil
}

// drepHash resolves any DRep identifier to its credential hex. Special
// DReps have no registration and resolve to "".
func drepHash(operation, drepID string) (string, error) {
	if shared.IsSpecialDRepID(drepID) {
		return "", nil
	}
	cred, err := shared.ParseDRepID(drepID)
	if err != nil {
		if raw, hexErr := hex.DecodeString(drepID); hexErr == nil && len(raw) == 28 {
			return strings.ToLower(drepID), nil
		}
		return "", shared.NewInvalidIdentifierError(operation, drepID, err)
	}
	return cred.Hex(), nil
}

func (s *IndexerSource) latestRegistration(ctx context.Context, operation, hash string) (*indexerDRepRow, error) {
	variants := []string{
		drepLatestCTE + `,
		power AS (
			SELECT amount FROM drep_dist WHERE drep_hash = $1 ORDER BY epoch DESC LIMIT 1
		)
		SELECT l.drep_hash, l.cred_type, l.type, l.deposit::text, l.anchor_url, l.anchor_hash,
			l.epoch, l.tx_hash, l.block_time, (SELECT amount::text FROM power)
		FROM latest l WHERE l.drep_hash = $1`,
		drepLatestCTE + `
		SELECT l.drep_hash, l.cred_type, l.type, l.deposit::text, l.anchor_url, l.anchor_hash,
			l.epoch, l.tx_hash, l.block_time, NULL::text
		FROM latest l WHERE l.drep_hash = $1`,
	}
	rows, err := database.QueryFirst(ctx, s.db, variants, hash)
	if err != nil {
		return nil, s.fail(operation, err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	var row indexerDRepRow
	if err := row.scan(rows); err != nil {
		return nil, s.fail(operation, err)
	}
	return &row, rows.Err()
}

func (s *IndexerSource) GetDRep(ctx context.Context, drepID string) (*models.DRep, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	hash, err := drepHash("get_drep", drepID)
	if err != nil || hash == "" {
		return nil, err
	}
	row, err := s.latestRegistration(ctx, "get_drep", hash)
	if err != nil || row == nil {
		return nil, err
	}
	d := row.toModel()
	return &d, nil
}

func (s *IndexerSource) GetDRepDelegators(ctx context.Context, drepID string) ([]models.DRepDelegator, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	hash, err := drepHash("get_drep_delegators", drepID)
	if err != nil || hash == "" {
		return nil, err
	}
	latestVote := `
		SELECT DISTINCT ON (address) address, drep_hash, epoch, slot
		FROM delegation_vote
		ORDER BY address, slot DESC, cert_index DESC`
	variants := []string{
		`SELECT d.address, COALESCE(b.quantity::text, '0'), d.epoch
		FROM (` + latestVote + `) d
		LEFT JOIN LATERAL (
			SELECT quantity FROM stake_address_balance sb
			WHERE sb.address = d.address ORDER BY sb.slot DESC LIMIT 1
		) b ON true
		WHERE d.drep_hash = $1
		ORDER BY b.quantity DESC NULLS LAST`,
		`SELECT d.address, '0', d.epoch
		FROM (` + latestVote + `) d
		WHERE d.drep_hash = $1
		ORDER BY d.slot DESC`,
	}
	rows, err := database.QueryFirst(ctx, s.db, variants, hash)
	if err != nil {
		return nil, s.fail("get_drep_delegators", err)
	}
	defer rows.Close()

	var out []models.DRepDelegator
	for rows.Next() {
		var (
			d     models.DRepDelegator
			epoch sql.NullInt64
		)
		if err := rows.Scan(&d.StakeAddress, &d.Amount, &epoch); err != nil {
			return nil, s.fail("get_drep_delegators", err)
		}
		d.EpochNo = nullU32(epoch)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("get_drep_delegators", err)
	}
	return out, nil
}

func (s *IndexerSource) GetDRepVotingHistory(ctx context.Context, drepID string) ([]models.DRepVotingHistory, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	hash, err := drepHash("get_drep_voting_history", drepID)
	if err != nil || hash == "" {
		return nil, err
	}
	variants := []string{
		`SELECT vp.gov_action_tx_hash, vp.gov_action_index, vp.tx_hash, vp.block_time, vp.vote,
			g.anchor_url, g.anchor_hash
		FROM voting_procedure vp
		LEFT JOIN gov_action_proposal g ON g.tx_hash = vp.gov_action_tx_hash AND g.idx = vp.gov_action_index
		WHERE vp.voter_hash = $1 AND vp.voter_type LIKE 'DREP%'
		ORDER BY vp.block_time DESC`,
		`SELECT vp.gov_action_tx_hash, vp.gov_action_index, vp.tx_hash, vp.block_time, vp.vote,
			NULL::text, NULL::text
		FROM voting_procedure vp
		WHERE vp.voter_hash = $1 AND vp.voter_type LIKE 'DREP%'
		ORDER BY vp.block_time DESC`,
	}
	rows, err := database.QueryFirst(ctx, s.db, variants, hash)
	if err != nil {
		return nil, s.fail("get_drep_voting_history", err)
	}
	defer rows.Close()

	var out []models.DRepVotingHistory
	for rows.Next() {
		var (
			h                   models.DRepVotingHistory
			blockTime           sql.NullInt64
			anchorURL, anchorHs sql.NullString
		)
		if err := rows.Scan(&h.ProposalTxHash, &h.ProposalIndex, &h.VoteTxHash, &blockTime,
			&h.Vote, &anchorURL, &anchorHs); err != nil {
			return nil, s.fail("get_drep_voting_history", err)
		}
		id := shared.ProposalID{TxHash: h.ProposalTxHash, Index: h.ProposalIndex}.String()
		h.ProposalID = &id
		h.Vote = strings.ToLower(h.Vote)
		if blockTime.Valid {
			t := database.NormalizeUnixSeconds(blockTime.Int64)
			h.BlockTime = &t
		}
		h.MetaURL = nullString(anchorURL)
		h.MetaHash = nullString(anchorHs)
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("get_drep_voting_history", err)
	}
	return out, nil
}

// GetDRepMetadata returns the registration anchor. The indexer does not
// store anchor bodies.
func (s *IndexerSource) GetDRepMetadata(ctx context.Context, drepID string) (json.RawMessage, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	hash, err := drepHash("get_drep_metadata", drepID)
	if err != nil || hash == "" {
		return nil, err
	}
	row, err := s.latestRegistration(ctx, "get_drep_metadata", hash)
	if err != nil || row == nil || !row.anchorURL.Valid {
		return nil, err
	}
	return json.Marshal(map[string]*string{
		"url":  nullString(row.anchorURL),
		"hash": nullString(row.anchorHash),
	})
}

func (s *IndexerSource) GetTotalActiveDReps(ctx context.Context) (*uint32, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	var count sql.NullInt64
	_, err := database.QueryRowFirst(ctx, s.db, []string{
		`SELECT COUNT(*) FROM (
			SELECT DISTINCT ON (drep_hash) type FROM drep_registration
			ORDER BY drep_hash, slot DESC, cert_index DESC
		) t WHERE t.type <> 'UNREG_DREP_CERT'`,
	}, []interface{}{&count})
	if err != nil {
		return nil, s.fail("get_total_active_dreps", err)
	}
	return nullU32(count), nil
}

var indexerActionTypes = map[string]string{
	"PARAMETER_CHANGE_ACTION":     "ParameterChange",
	"HARD_FORK_INITIATION_ACTION": "HardForkInitiation",
	"TREASURY_WITHDRAWALS_ACTION": "TreasuryWithdrawals",
	"NO_CONFIDENCE":               "NoConfidence",
	"UPDATE_COMMITTEE":            "NewCommittee",
	"NEW_CONSTITUTION":            "NewConstitution",
	"INFO_ACTION":                 "InfoAction",
}

type indexerActionRow struct {
	txHash        string
	idx           uint32
	actionType    sql.NullString
	deposit       sql.NullString
	returnAddress sql.NullString
	anchorURL     sql.NullString
	anchorHash    sql.NullString
	details       sql.NullString
	epoch         sql.NullInt64
	blockTime     sql.NullInt64
	status        sql.NullString
	statusEpoch   sql.NullInt64
}

func (r *indexerActionRow) scan(rows *sql.Rows) error {
	return rows.Scan(&r.txHash, &r.idx, &r.actionType, &r.deposit, &r.returnAddress,
		&r.anchorURL, &r.anchorHash, &r.details, &r.epoch, &r.blockTime, &r.status, &r.statusEpoch)
}

func (r indexerActionRow) toModel() models.GovernanceAction {
	id := shared.ProposalID{TxHash: r.txHash, Index: r.idx}
	action := models.GovernanceAction{
		ProposalID:    id.String(),
		TxHash:        r.txHash,
		CertIndex:     r.idx,
		Type:          r.actionType.String,
		Deposit:       nullString(r.deposit),
		ReturnAddress: nullString(r.returnAddress),
		ProposedEpoch: nullU32(r.epoch),
		MetaURL:       nullString(r.anchorURL),
		MetaHash:      nullString(r.anchorHash),
	}
	if mapped, ok := indexerActionTypes[strings.ToUpper(r.actionType.String)]; ok {
		action.Type = mapped
	}
	if govID, err := id.GovActionID(); err == nil {
		action.GovActionID = &govID
	}
	if r.blockTime.Valid {
		t := database.NormalizeUnixSeconds(r.blockTime.Int64)
		action.BlockTime = &t
	}
	if action.ProposedEpoch != nil {
		action.VotingEpoch = u32Ptr(*action.ProposedEpoch + 1)
	}
	if r.details.Valid && action.Type == "ParameterChange" {
		action.ParamChange = json.RawMessage(r.details.String)
	}
	statusEpoch := nullU32(r.statusEpoch)
	switch strings.ToUpper(r.status.String) {
	case "RATIFIED":
		action.RatifiedEpoch = statusEpoch
	case "ENACTED":
		action.EnactedEpoch = statusEpoch
	case "EXPIRED":
		action.ExpiredEpoch = statusEpoch
	case "DROPPED":
		action.DroppedEpoch = statusEpoch
	}
	action.Status = actionStatus(&action)
	return action
}

const actionColumns = `g.tx_hash, g.idx, g.type, g.deposit::text, g.return_address, g.anchor_url,
	g.anchor_hash, g.details::text, g.epoch, g.block_time`

// actionVariants builds a proposal query with and without the
// gov_action_proposal_status table, appending tail after the FROM clause.
func actionVariants(tail string) []string {
	return []string{
		`SELECT ` + actionColumns + `, st.status, st.epoch
		FROM gov_action_proposal g
		LEFT JOIN LATERAL (
			SELECT status, epoch FROM gov_action_proposal_status s
			WHERE s.gov_action_tx_hash = g.tx_hash AND s.gov_action_index = g.idx
			ORDER BY s.epoch DESC LIMIT 1
		) st ON true ` + tail,
		`SELECT ` + actionColumns + `, NULL::text, NULL::bigint
		FROM gov_action_proposal g ` + tail,
	}
}

func (s *IndexerSource) queryActions(ctx context.Context, operation, tail string, args ...interface{}) ([]models.GovernanceAction, error) {
	rows, err := database.QueryFirst(ctx, s.db, actionVariants(tail), args...)
	if err != nil {
		return nil, s.fail(operation, err)
	}
	defer rows.Close()

	var out []models.GovernanceAction
	for rows.Next() {
		var row indexerActionRow
		if err := row.scan(rows); err != nil {
			return nil, s.fail(operation, err)
		}
		out = append(out, row.toModel())
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail(operation, err)
	}
	return out, nil
}

func (s *IndexerSource) GetGovernanceActionsPage(ctx context.Context, page, count int) (*models.ActionsPage, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	page, count = models.NormalizePaging(page, count)
	actions, err := s.queryActions(ctx, "get_actions_page",
		`ORDER BY g.slot DESC, g.idx DESC LIMIT $1 OFFSET $2`, count+1, (page-1)*count)
	if err != nil {
		return nil, err
	}
	out := &models.ActionsPage{Actions: actions}
	if len(actions) > count {
		out.Actions = actions[:count]
		out.HasMore = true
	}
	if out.Actions == nil {
		out.Actions = []models.GovernanceAction{}
	}
	return out, nil
}

func (s *IndexerSource) GetGovernanceAction(ctx context.Context, proposalID string) (*models.GovernanceAction, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	id, err := shared.ParseProposalID(proposalID)
	if err != nil {
		return nil, err
	}
	actions, err := s.queryActions(ctx, "get_action",
		`WHERE g.tx_hash = $1 AND g.idx = $2 LIMIT 1`, id.TxHash, id.Index)
	if err != nil || len(actions) == 0 {
		return nil, err
	}
	return &actions[0], nil
}

// GetActionVotingResults tallies the vote records; the indexer keeps no
// precomputed summary.
func (s *IndexerSource) GetActionVotingResults(ctx context.Context, proposalID string) (*models.ActionVotingBreakdown, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	records, err := s.GetActionVoteRecords(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return TallyFromRecords(proposalID, records), nil
}

func (s *IndexerSource) GetActionVoteRecords(ctx context.Context, proposalID string) ([]models.ActionVoteRecord, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	id, err := shared.ParseProposalID(proposalID)
	if err != nil {
		return nil, err
	}
	variants := []string{
		`SELECT vp.voter_hash, vp.voter_type, vp.vote, dd.amount::text, vp.tx_hash, vp.idx, vp.block_time
		FROM voting_procedure vp
		LEFT JOIN drep_dist dd ON dd.drep_hash = vp.voter_hash AND dd.epoch = vp.epoch
		WHERE vp.gov_action_tx_hash = $1 AND vp.gov_action_index = $2
		ORDER BY vp.block_time DESC`,
		`SELECT vp.voter_hash, vp.voter_type, vp.vote, NULL::text, vp.tx_hash, vp.idx, vp.block_time
		FROM voting_procedure vp
		WHERE vp.gov_action_tx_hash = $1 AND vp.gov_action_index = $2
		ORDER BY vp.block_time DESC`,
	}
	rows, err := database.QueryFirst(ctx, s.db, variants, id.TxHash, id.Index)
	if err != nil {
		return nil, s.fail("get_action_vote_records", err)
	}
	defer rows.Close()

	var out []models.ActionVoteRecord
	for rows.Next() {
		var (
			rec       models.ActionVoteRecord
			power     sql.NullString
			txHash    sql.NullString
			certIndex sql.NullInt64
			blockTime sql.NullInt64
		)
		if err := rows.Scan(&rec.VoterIdentifier, &rec.VoterType, &rec.Vote, &power,
			&txHash, &certIndex, &blockTime); err != nil {
			return nil, s.fail("get_action_vote_records", err)
		}
		rec.VotingPower = nullString(power)
		rec.TxHash = nullString(txHash)
		rec.CertIndex = nullU32(certIndex)
		if blockTime.Valid {
			t := database.NormalizeUnixSeconds(blockTime.Int64)
			rec.BlockTime = &t
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("get_action_vote_records", err)
	}
	return out, nil
}

// optionalLookup runs a single-row query whose table may be absent from
// this deployment; a schema mismatch is logged and treated as no row.
func (s *IndexerSource) optionalLookup(ctx context.Context, variants []string, dest []interface{}, args ...interface{}) (bool, error) {
	found, err := database.QueryRowFirst(ctx, s.db, variants, dest, args...)
	if err != nil && database.IsSchemaMismatch(err) {
		s.logger.WithError(err).Debug("Optional indexer table unavailable")
		return false, nil
	}
	return found, err
}

func (s *IndexerSource) GetStakeDelegation(ctx context.Context, stakeAddress string) (*models.StakeDelegation, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	const op = "get_stake_delegation"
	out := &models.StakeDelegation{StakeAddress: stakeAddress}
	seen := false

	var drepID, drepHashCol, drepType sql.NullString
	found, err := s.optionalLookup(ctx, []string{
		`SELECT drep_id, drep_hash, drep_type FROM delegation_vote
		WHERE address = $1 ORDER BY slot DESC, cert_index DESC LIMIT 1`,
		`SELECT NULL::text, drep_hash, drep_type FROM delegation_vote
		WHERE address = $1 ORDER BY slot DESC, cert_index DESC LIMIT 1`,
	}, []interface{}{&drepID, &drepHashCol, &drepType}, stakeAddress)
	if err != nil {
		return nil, s.fail(op, err)
	}
	if found {
		seen = true
		out.DelegatedDRep = delegatedDRep(drepID, drepHashCol, drepType)
	}

	var poolID sql.NullString
	found, err = s.optionalLookup(ctx, []string{
		`SELECT pool_id FROM delegation WHERE address = $1 ORDER BY slot DESC, cert_index DESC LIMIT 1`,
	}, []interface{}{&poolID}, stakeAddress)
	if err != nil {
		return nil, s.fail(op, err)
	}
	if found && poolID.Valid {
		seen = true
		variants := shared.PoolIDVariants(poolID.String)
		pool := variants[len(variants)-1]
		out.DelegatedPool = &pool
	}

	var balance sql.NullString
	found, err = s.optionalLookup(ctx, []string{
		`SELECT quantity::text FROM stake_address_balance WHERE address = $1 ORDER BY slot DESC LIMIT 1`,
	}, []interface{}{&balance}, stakeAddress)
	if err != nil {
		return nil, s.fail(op, err)
	}
	if found {
		seen = true
		out.TotalBalance = nullString(balance)
	}

	var regType sql.NullString
	found, err = s.optionalLookup(ctx, []string{
		`SELECT type FROM stake_registration WHERE address = $1 ORDER BY slot DESC, cert_index DESC LIMIT 1`,
	}, []interface{}{&regType}, stakeAddress)
	if err != nil {
		return nil, s.fail(op, err)
	}
	if found {
		seen = true
		status := "not registered"
		if strings.EqualFold(regType.String, "STAKE_REGISTRATION") {
			status = "registered"
		}
		out.Status = &status
	}

	if !seen {
		return nil, nil
	}
	return out, nil
}

// delegatedDRep names the delegation target, mapping the abstain and
// no-confidence pseudo DReps onto their sentinel identifiers.
func delegatedDRep(id, hash, drepType sql.NullString) *string {
	var out string
	switch strings.ToUpper(drepType.String) {
	case "ABSTAIN":
		out = shared.DRepAlwaysAbstain
	case "NO_CONFIDENCE":
		out = shared.DRepAlwaysNoConfidence
	default:
		if id.Valid && id.String != "" {
			out = id.String
		} else if raw, err := hex.DecodeString(hash.String); err == nil && len(raw) > 0 {
			cred := shared.DRepCredential{Hash: raw, IsScript: strings.EqualFold(drepType.String, "SCRIPTHASH")}
			if encoded, err := cred.CIP129(); err == nil {
				out = encoded
			}
		}
	}
	return strPtr(out)
}

func (s *IndexerSource) GetStakePoolsPage(ctx context.Context, page, count int) (*models.StakePoolPage, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	page, count = models.NormalizePaging(page, count)
	latest := `SELECT DISTINCT ON (pool_id) pool_id, status, slot FROM pool ORDER BY pool_id, slot DESC`
	variants := []string{
		`SELECT p.pool_id, p.status, o.ticker, o.name
		FROM (` + latest + `) p
		LEFT JOIN LATERAL (
			SELECT ticker, name FROM pool_offline_data od
			WHERE od.pool_id = p.pool_id ORDER BY od.slot DESC LIMIT 1
		) o ON true
		ORDER BY p.slot DESC LIMIT $1 OFFSET $2`,
		`SELECT p.pool_id, p.status, NULL::text, NULL::text
		FROM (` + latest + `) p
		ORDER BY p.slot DESC LIMIT $1 OFFSET $2`,
	}
	rows, err := database.QueryFirst(ctx, s.db, variants, count+1, (page-1)*count)
	if err != nil {
		return nil, s.fail("get_stake_pools_page", err)
	}
	defer rows.Close()

	out := &models.StakePoolPage{Pools: make([]models.StakePool, 0, count)}
	for rows.Next() {
		var (
			hexID                string
			status, ticker, name sql.NullString
		)
		if err := rows.Scan(&hexID, &status, &ticker, &name); err != nil {
			return nil, s.fail("get_stake_pools_page", err)
		}
		if len(out.Pools) == count {
			out.HasMore = true
			continue
		}
		pool := models.StakePool{
			PoolID: hexID,
			HexID:  strPtr(hexID),
			Ticker: nullString(ticker),
			Name:   nullString(name),
		}
		if variants := shared.PoolIDVariants(hexID); len(variants) > 1 {
			pool.PoolID = variants[1]
		}
		if status.Valid {
			st := strings.ToLower(status.String)
			pool.Status = &st
		}
		out.Pools = append(out.Pools, pool)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("get_stake_pools_page", err)
	}
	return out, nil
}

func (s *IndexerSource) GetCommitteeMembers(ctx context.Context) ([]models.CommitteeMember, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	latest := `SELECT DISTINCT ON (hash) hash, cred_type, start_epoch, expired_epoch
		FROM committee_member ORDER BY hash, slot DESC`
	variants := []string{
		`SELECT m.hash, m.expired_epoch, r.hot_key
		FROM (` + latest + `) m
		LEFT JOIN LATERAL (
			SELECT hot_key FROM committee_registration cr
			WHERE cr.cold_key = m.hash ORDER BY cr.slot DESC LIMIT 1
		) r ON true`,
		`SELECT m.hash, m.expired_epoch, NULL::text FROM (` + latest + `) m`,
	}
	rows, err := database.QueryFirst(ctx, s.db, variants)
	if err != nil {
		return nil, s.fail("get_committee_members", err)
	}
	defer rows.Close()

	var out []models.CommitteeMember
	for rows.Next() {
		var (
			cold    string
			expires sql.NullInt64
			hot     sql.NullString
		)
		if err := rows.Scan(&cold, &expires, &hot); err != nil {
			return nil, s.fail("get_committee_members", err)
		}
		status := "not_authorized"
		if hot.Valid && hot.String != "" {
			status = "authorized"
		}
		out = append(out, models.CommitteeMember{
			ColdCredential:  cold,
			ColdHex:         strPtr(cold),
			HotHex:          nullString(hot),
			Status:          &status,
			ExpirationEpoch: nullU32(expires),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("get_committee_members", err)
	}
	return out, nil
}

func (s *IndexerSource) GetEpochStartTime(ctx context.Context, epoch uint32) (*uint64, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	var start sql.NullInt64
	found, err := database.QueryRowFirst(ctx, s.db, []string{
		`SELECT start_time FROM epoch WHERE number = $1`,
		`SELECT MIN(block_time) FROM block WHERE epoch = $1`,
	}, []interface{}{&start}, epoch)
	if err != nil {
		return nil, s.fail("get_epoch_start_time", err)
	}
	if !found || !start.Valid || start.Int64 < 0 {
		return nil, nil
	}
	v := uint64(database.NormalizeUnixSeconds(start.Int64))
	return &v, nil
}

// HealthCheck pings the database and checks the core tables exist.
func (s *IndexerSource) HealthCheck(ctx context.Context) (bool, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	if err := database.HealthCheck(ctx, s.db); err != nil {
		return false, s.fail("health_check", err)
	}
	missing, err := database.MissingTables(ctx, s.db, indexerCoreTables...)
	if err != nil {
		return false, s.fail("health_check", err)
	}
	if len(missing) > 0 {
		s.logger.WithField("missing_tables", strings.Join(missing, ",")).Warn("Indexer schema is incomplete")
		return false, nil
	}
	return true, nil
}

var _ Source = (*IndexerSource)(nil)
