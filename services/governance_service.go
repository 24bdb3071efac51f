package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fenilmodi00/govdash-backend/models"
	"github.com/fenilmodi00/govdash-backend/providers"
	"github.com/fenilmodi00/govdash-backend/shared"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	rosterPageSize = models.MaxPageSize
	// upper bound on roster pages fetched for one participation report
	rosterMaxPages = 50
)

// SyncStatusReporter is implemented by sources that can report indexer lag
// and the state of their database pool.
type SyncStatusReporter interface {
	SyncStatus(ctx context.Context) (*models.IndexerSyncStatus, error)
	PoolStats() models.DatabasePoolStats
}

// GovernanceService is the read layer behind the HTTP handlers. Every read is
// cache-aside over a Source; DRep reads are merged with enrichment data and
// governance actions get epoch start times and metadata checks attached.
type GovernanceService struct {
	source         providers.Source
	enricher       providers.Enricher
	cache          *CacheService
	validator      *MetadataValidator
	syncReporter   SyncStatusReporter
	dataSource     string
	epochDuration  int64
	enrichTimeout  time.Duration
	maxConcurrency int
	now            func() time.Time
	logger         *logrus.Entry
}

// NewGovernanceService wires the orchestrator. enricher and validator may be
// nil.
func NewGovernanceService(source providers.Source, enricher providers.Enricher, cache *CacheService, validator *MetadataValidator, cfg shared.ServiceConfig, dataSource string) *GovernanceService {
	duration := cfg.EpochDurationSeconds
	if duration <= 0 {
		duration = shared.DefaultEpochDuration
	}
	limit := cfg.MaxConcurrency
	if limit <= 0 {
		limit = 8
	}
	return &GovernanceService{
		source:         source,
		enricher:       enricher,
		cache:          cache,
		validator:      validator,
		dataSource:     dataSource,
		epochDuration:  duration,
		enrichTimeout:  cfg.EnrichmentTimeout,
		maxConcurrency: limit,
		now:            time.Now,
		logger:         logrus.WithField("component", "GovernanceService"),
	}
}

// SetSyncStatusReporter adds indexer lag to health reports.
func (s *GovernanceService) SetSyncStatusReporter(r SyncStatusReporter) {
	s.syncReporter = r
}

// readThrough returns the value cached under key, or loads and caches it.
// A loader reporting ok=false has nothing worth caching.
func readThrough[T any](s *GovernanceService, key CacheKey, load func() (T, bool, error)) (T, error) {
	var cached T
	if s.cache.GetJSON(key, &cached) {
		return cached, nil
	}
	v, ok, err := load()
	if err != nil || !ok {
		return v, err
	}
	s.cache.SetJSON(key, v)
	return v, nil
}

func (s *GovernanceService) enrichmentContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.enrichTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.enrichTimeout)
}

// GetDRepsPage lists DReps. When the query asks for enrichment and an
// enricher is configured, the enricher's list is tried first and returned
// as-is. Otherwise, or when it fails or comes back empty, the source answers
// and each DRep is enriched individually.
func (s *GovernanceService) GetDRepsPage(ctx context.Context, query models.DRepsQuery) (*models.DRepsPage, error) {
	query = query.Normalize()
	key := DRepsPageKey(query.Page, query.Count, query.FilterDescriptor())
	return readThrough(s, key, func() (*models.DRepsPage, bool, error) {
		enrich := query.Enrich && s.enricher != nil
		if enrich {
			ectx, cancel := s.enrichmentContext(ctx)
			page, err := s.enricher.ListDReps(ectx, query)
			cancel()
			if err == nil && page != nil && len(page.DReps) > 0 {
				return page, true, nil
			}
			s.logger.WithFields(logrus.Fields{
				"page":  query.Page,
				"count": query.Count,
			}).WithError(err).Debug("Enrichment list unavailable, using primary source")
		}

		page, err := s.source.GetDRepsPage(ctx, query)
		if err != nil {
			return nil, false, err
		}
		if page == nil {
			page = &models.DRepsPage{DReps: []models.DRep{}}
		}
		if enrich {
			s.enrichAll(ctx, page.DReps)
		}
		return page, true, nil
	})
}

func (s *GovernanceService) enrichAll(ctx context.Context, dreps []models.DRep) {
	var g errgroup.Group
	g.SetLimit(s.maxConcurrency)
	for i := range dreps {
		d := &dreps[i]
		g.Go(func() error {
			s.enrichDRep(ctx, d)
			return nil
		})
	}
	_ = g.Wait()
}

// enrichDRep applies the enricher's profile to d. Failures leave d as it
// was.
func (s *GovernanceService) enrichDRep(ctx context.Context, d *models.DRep) {
	if s.enricher == nil || d == nil {
		return
	}
	hexID := ""
	if d.HexID != nil {
		hexID = *d.HexID
	} else if cred, err := shared.ParseDRepID(d.DRepID); err == nil {
		hexID = cred.Hex()
	}
	if hexID == "" {
		return
	}

	ectx, cancel := s.enrichmentContext(ctx)
	defer cancel()
	profile, err := s.enricher.GetDRepProfile(ectx, hexID)
	if err != nil {
		s.logger.WithField("drep_id", d.DRepID).WithError(err).Debug("DRep enrichment failed")
		return
	}
	ApplyEnrichment(d, profile)
}

func validateDRepID(operation, id string) error {
	if err := shared.ValidateDRepID(id); err != nil {
		return shared.NewInvalidIdentifierError(operation, id, err)
	}
	return nil
}

// GetDRep returns one DRep, or nil when no source knows it.
func (s *GovernanceService) GetDRep(ctx context.Context, id string) (*models.DRep, error) {
	if err := validateDRepID("get_drep", id); err != nil {
		return nil, err
	}
	return readThrough(s, DRepKey(id), func() (*models.DRep, bool, error) {
		d, err := s.source.GetDRep(ctx, id)
		if err != nil || d == nil {
			return nil, false, err
		}
		s.enrichDRep(ctx, d)
		return d, true, nil
	})
}

func (s *GovernanceService) GetDRepDelegators(ctx context.Context, id string) ([]models.DRepDelegator, error) {
	if err := validateDRepID("get_drep_delegators", id); err != nil {
		return nil, err
	}
	return readThrough(s, DRepDelegatorsKey(id), func() ([]models.DRepDelegator, bool, error) {
		out, err := s.source.GetDRepDelegators(ctx, id)
		if err != nil {
			return nil, false, err
		}
		if out == nil {
			out = []models.DRepDelegator{}
		}
		return out, true, nil
	})
}

func (s *GovernanceService) GetDRepVotingHistory(ctx context.Context, id string) ([]models.DRepVotingHistory, error) {
	if err := validateDRepID("get_drep_voting_history", id); err != nil {
		return nil, err
	}
	return readThrough(s, DRepVotingHistoryKey(id), func() ([]models.DRepVotingHistory, bool, error) {
		out, err := s.source.GetDRepVotingHistory(ctx, id)
		if err != nil {
			return nil, false, err
		}
		if out == nil {
			out = []models.DRepVotingHistory{}
		}
		return out, true, nil
	})
}

// GetDRepMetadata returns the DRep's metadata document, or nil.
func (s *GovernanceService) GetDRepMetadata(ctx context.Context, id string) (json.RawMessage, error) {
	if err := validateDRepID("get_drep_metadata", id); err != nil {
		return nil, err
	}
	return readThrough(s, DRepMetadataKey(id), func() (json.RawMessage, bool, error) {
		meta, err := s.source.GetDRepMetadata(ctx, id)
		if err != nil || len(meta) == 0 {
			return nil, false, err
		}
		return meta, true, nil
	})
}

func (s *GovernanceService) GetDRepStats(ctx context.Context) (*models.DRepStats, error) {
	return readThrough(s, DRepStatsKey(), func() (*models.DRepStats, bool, error) {
		active, err := s.source.GetTotalActiveDReps(ctx)
		if err != nil {
			return nil, false, err
		}
		return &models.DRepStats{ActiveDReps: active}, true, nil
	})
}

// GetGovernanceActionsPage lists actions with epoch times and metadata
// checks attached.
func (s *GovernanceService) GetGovernanceActionsPage(ctx context.Context, page, count int) (*models.ActionsPage, error) {
	page, count = models.NormalizePaging(page, count)
	return readThrough(s, ActionsPageKey(page, count), func() (*models.ActionsPage, bool, error) {
		out, err := s.source.GetGovernanceActionsPage(ctx, page, count)
		if err != nil {
			return nil, false, err
		}
		if out == nil {
			out = &models.ActionsPage{Actions: []models.GovernanceAction{}}
		}

		var g errgroup.Group
		g.SetLimit(s.maxConcurrency)
		for i := range out.Actions {
			action := &out.Actions[i]
			g.Go(func() error {
				s.decorateAction(ctx, action)
				return nil
			})
		}
		_ = g.Wait()
		return out, true, nil
	})
}

func canonicalProposalID(id string) (string, error) {
	parsed, err := shared.ParseProposalID(id)
	if err != nil {
		return "", err
	}
	return parsed.String(), nil
}

// GetGovernanceAction returns one action, or nil when it does not exist.
func (s *GovernanceService) GetGovernanceAction(ctx context.Context, id string) (*models.GovernanceAction, error) {
	canonical, err := canonicalProposalID(id)
	if err != nil {
		return nil, err
	}
	return readThrough(s, ActionKey(canonical), func() (*models.GovernanceAction, bool, error) {
		action, err := s.source.GetGovernanceAction(ctx, canonical)
		if err != nil || action == nil {
			return nil, false, err
		}
		s.decorateAction(ctx, action)
		return action, true, nil
	})
}

func (s *GovernanceService) decorateAction(ctx context.Context, action *models.GovernanceAction) {
	s.ResolveEpochStartTimes(ctx, action)
	if s.validator != nil {
		s.validator.AttachChecks(ctx, action)
	}
}

// GetActionVotingResults returns the vote tally, or nil without votes.
func (s *GovernanceService) GetActionVotingResults(ctx context.Context, id string) (*models.ActionVotingBreakdown, error) {
	canonical, err := canonicalProposalID(id)
	if err != nil {
		return nil, err
	}
	return readThrough(s, ActionVotesKey(canonical), func() (*models.ActionVotingBreakdown, bool, error) {
		tally, err := s.source.GetActionVotingResults(ctx, canonical)
		if err != nil || tally == nil {
			return nil, false, err
		}
		return tally, true, nil
	})
}

func (s *GovernanceService) GetStakeDelegation(ctx context.Context, stakeAddress string) (*models.StakeDelegation, error) {
	if err := shared.ValidateStakeAddress(stakeAddress); err != nil {
		return nil, err
	}
	return readThrough(s, StakeDelegationKey(stakeAddress), func() (*models.StakeDelegation, bool, error) {
		d, err := s.source.GetStakeDelegation(ctx, stakeAddress)
		if err != nil || d == nil {
			return nil, false, err
		}
		return d, true, nil
	})
}

// GetEpochStartTime resolves an epoch start from cache or the source. It
// reports false when neither knows it.
func (s *GovernanceService) GetEpochStartTime(ctx context.Context, epoch uint32) (uint64, bool) {
	key := EpochStartTimeKey(epoch)
	var cached uint64
	if s.cache.GetJSON(key, &cached) {
		return cached, true
	}
	start, err := s.source.GetEpochStartTime(ctx, epoch)
	if err != nil {
		s.logger.WithField("epoch", epoch).WithError(err).Debug("Epoch start time unavailable")
		return 0, false
	}
	if start == nil {
		return 0, false
	}
	s.cache.SetJSON(key, *start)
	return *start, true
}

// ResolveEpochStartTimes fills the start time of every epoch milestone of
// action. Epochs no source knows are inferred from the nearest resolved one.
func (s *GovernanceService) ResolveEpochStartTimes(ctx context.Context, action *models.GovernanceAction) {
	milestones := action.EpochMilestones()
	var epochs []uint32
	seen := make(map[uint32]struct{})
	for _, m := range milestones {
		if m.Epoch == nil {
			continue
		}
		if _, ok := seen[*m.Epoch]; !ok {
			seen[*m.Epoch] = struct{}{}
			epochs = append(epochs, *m.Epoch)
		}
	}
	if len(epochs) == 0 {
		return
	}

	var (
		mu    sync.Mutex
		known = make(map[uint32]uint64, len(epochs))
		g     errgroup.Group
	)
	g.SetLimit(s.maxConcurrency)
	for _, epoch := range epochs {
		epoch := epoch
		g.Go(func() error {
			if start, ok := s.GetEpochStartTime(ctx, epoch); ok {
				mu.Lock()
				known[epoch] = start
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, m := range milestones {
		if m.Epoch == nil {
			continue
		}
		start, ok := known[*m.Epoch]
		if !ok {
			start, ok = InferEpochStartTime(*m.Epoch, known, s.epochDuration)
			if ok {
				s.logger.WithFields(logrus.Fields{
					"proposal_id": action.ProposalID,
					"milestone":   m.Name,
					"epoch":       *m.Epoch,
				}).Debug("Inferred epoch start time")
			}
		}
		if ok {
			v := start
			*m.StartTime = &v
		}
	}
}

// GetVoterParticipation reports who voted on an action against the full
// rosters. A roster that cannot be fetched is left empty with a note, so
// votes from its class appear as synthesized entries.
func (s *GovernanceService) GetVoterParticipation(ctx context.Context, id string) (*models.VoterParticipation, error) {
	canonical, err := canonicalProposalID(id)
	if err != nil {
		return nil, err
	}
	return readThrough(s, ActionParticipationKey(canonical), func() (*models.VoterParticipation, bool, error) {
		var (
			records   []models.ActionVoteRecord
			dreps     []models.DRep
			pools     []models.StakePool
			committee []models.CommitteeMember
			notes     []string
			mu        sync.Mutex
		)
		degrade := func(roster string, err error) {
			s.logger.WithFields(logrus.Fields{
				"proposal_id": canonical,
				"roster":      roster,
			}).WithError(err).Warn("Participation roster unavailable")
			mu.Lock()
			notes = append(notes, fmt.Sprintf("%s roster unavailable: %v", roster, err))
			mu.Unlock()
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			records, err = s.source.GetActionVoteRecords(gctx, canonical)
			return err
		})
		g.Go(func() error {
			var err error
			if dreps, err = s.allDReps(gctx); err != nil {
				degrade("DRep", err)
			}
			return nil
		})
		g.Go(func() error {
			var err error
			if pools, err = s.allPools(gctx); err != nil {
				degrade("stake pool", err)
			}
			return nil
		})
		g.Go(func() error {
			var err error
			if committee, err = s.source.GetCommitteeMembers(gctx); err != nil {
				degrade("committee", err)
			}
			return nil
		})
		if err := g.Wait(); err != nil {
			return nil, false, err
		}

		out := BuildVoterParticipation(canonical, dreps, pools, committee, records)
		out.Notes = append(notes, out.Notes...)
		return out, true, nil
	})
}

func (s *GovernanceService) allDReps(ctx context.Context) ([]models.DRep, error) {
	var out []models.DRep
	for page := 1; page <= rosterMaxPages; page++ {
		p, err := s.source.GetDRepsPage(ctx, models.DRepsQuery{Page: page, Count: rosterPageSize})
		if err != nil {
			return out, err
		}
		if p == nil {
			break
		}
		out = append(out, p.DReps...)
		if !p.HasMore {
			break
		}
	}
	return out, nil
}

func (s *GovernanceService) allPools(ctx context.Context) ([]models.StakePool, error) {
	var out []models.StakePool
	for page := 1; page <= rosterMaxPages; page++ {
		p, err := s.source.GetStakePoolsPage(ctx, page, rosterPageSize)
		if err != nil {
			return out, err
		}
		if p == nil {
			break
		}
		out = append(out, p.Pools...)
		if !p.HasMore {
			break
		}
	}
	return out, nil
}

// CacheStats returns the cache counters.
func (s *GovernanceService) CacheStats() models.CacheStats {
	return s.cache.Stats()
}

// HealthReport probes the source and, for the indexer, its sync lag.
func (s *GovernanceService) HealthReport(ctx context.Context) *models.HealthReport {
	report := &models.HealthReport{
		DataSource: s.dataSource,
		Timestamp:  s.now().Unix(),
		Cache:      s.cache.Stats(),
	}
	healthy, err := s.source.HealthCheck(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Source health check failed")
	}
	report.Healthy = healthy && err == nil
	report.Status = "healthy"
	if !report.Healthy {
		report.Status = "unhealthy"
	}

	if s.syncReporter != nil {
		pool := s.syncReporter.PoolStats()
		report.Database = &pool
		status, err := s.syncReporter.SyncStatus(ctx)
		if err != nil {
			s.logger.WithError(err).Warn("Indexer sync status unavailable")
		} else {
			report.Indexer = status
			if report.Healthy && !strings.EqualFold(status.Health, "Active") {
				report.Status = "degraded"
			}
		}
	}
	return report
}
