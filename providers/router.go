package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fenilmodi00/govdash-backend/models"
	"github.com/fenilmodi00/govdash-backend/shared"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"
)

// FallbackEvent describes one transition from a backend to the next.
type FallbackEvent struct {
	Operation string
	From      string
	To        string
	Reason    string
}

// ProviderRouter answers every Source operation from the Koios and
// Blockfrost backends in a fixed per-operation order. The first backend
// with a non-empty answer wins; results are never blended.
type ProviderRouter struct {
	koios      Backend
	blockfrost Backend
	breakers   map[string]*gobreaker.CircuitBreaker
	timeout    time.Duration
	metrics    *shared.ServiceMetrics
	observer   func(FallbackEvent)
	logger     *logrus.Entry
}

// NewProviderRouter composes the two backends. timeout bounds each backend
// call separately.
func NewProviderRouter(koios, blockfrost Backend, timeout time.Duration, metrics *shared.ServiceMetrics) *ProviderRouter {
	r := &ProviderRouter{
		koios:      koios,
		blockfrost: blockfrost,
		breakers:   make(map[string]*gobreaker.CircuitBreaker, 2),
		timeout:    timeout,
		metrics:    metrics,
		logger:     logrus.WithField("component", "ProviderRouter"),
	}
	for _, b := range []Backend{koios, blockfrost} {
		r.breakers[b.Name()] = newBreaker(b.Name(), r.logger)
	}
	return r
}

func newBreaker(name string, logger *logrus.Entry) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"backend": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Backend circuit breaker changed state")
		},
	})
}

// SetFallbackObserver registers fn to be called on every fallback transition.
func (r *ProviderRouter) SetFallbackObserver(fn func(FallbackEvent)) {
	r.observer = fn
}

func (r *ProviderRouter) recordFallback(event FallbackEvent) {
	r.logger.WithFields(logrus.Fields{
		"operation": event.Operation,
		"from":      event.From,
		"to":        event.To,
		"reason":    event.Reason,
	}).Warn("Falling back to next backend")
	r.metrics.RecordFallback(event.Operation, event.From, event.To)
	if r.observer != nil {
		r.observer(event)
	}
}

// invoke runs one backend call under its breaker and timeout. Unsupported
// operations and caller cancellations do not count as backend failures.
func invoke[T any](ctx context.Context, r *ProviderRouter, backend Backend, operation string, call func(context.Context, Backend) (T, error)) (T, error) {
	var zero T
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	var passthrough error
	out, err := r.breakers[backend.Name()].Execute(func() (interface{}, error) {
		v, err := call(callCtx, backend)
		if err != nil && (errors.Is(err, shared.ErrUnsupported) || errors.Is(err, context.Canceled)) {
			passthrough = err
			return v, nil
		}
		return v, err
	})
	if passthrough != nil {
		err = passthrough
	}
	elapsed := time.Since(start).Seconds()

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = shared.NewUpstreamUnavailableError(backend.Name(), operation, err)
		}
		r.metrics.RecordUpstreamCall(backend.Name(), operation, "error", elapsed)
		return zero, err
	}
	r.metrics.RecordUpstreamCall(backend.Name(), operation, "ok", elapsed)
	v, _ := out.(T)
	return v, nil
}

// route tries each backend in order and returns the first non-empty result.
// If some backend answered empty, that empty answer is returned once every
// backend has been tried; if all of them failed the errors are aggregated.
func route[T any](ctx context.Context, r *ProviderRouter, operation string, order []Backend, empty func(T) bool, call func(context.Context, Backend) (T, error)) (T, error) {
	var (
		zero      T
		errs      *multierror.Error
		failed    []string
		emptyRes  T
		haveEmpty bool
	)
	for i, backend := range order {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := invoke(ctx, r, backend, operation, call)
		var reason string
		switch {
		case err != nil:
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
			failed = append(failed, backend.Name())
			reason = err.Error()
		case empty(result):
			if !haveEmpty {
				emptyRes, haveEmpty = result, true
			}
			reason = "empty result"
		default:
			return result, nil
		}

		if i+1 < len(order) {
			r.recordFallback(FallbackEvent{
				Operation: operation,
				From:      backend.Name(),
				To:        order[i+1].Name(),
				Reason:    reason,
			})
		}
	}

	if haveEmpty {
		return emptyRes, nil
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	return zero, shared.NewAllBackendsFailedError(operation, errs).WithDetails(failed)
}

func isNil[T any](v *T) bool { return v == nil }

func isEmptySlice[T any](v []T) bool { return len(v) == 0 }

func (r *ProviderRouter) koiosFirst() []Backend      { return []Backend{r.koios, r.blockfrost} }
func (r *ProviderRouter) blockfrostFirst() []Backend { return []Backend{r.blockfrost, r.koios} }

func (r *ProviderRouter) GetDRepsPage(ctx context.Context, query models.DRepsQuery) (*models.DRepsPage, error) {
	return route(ctx, r, "get_dreps_page", r.koiosFirst(),
		func(p *models.DRepsPage) bool { return p == nil || len(p.DReps) == 0 },
		func(ctx context.Context, b Backend) (*models.DRepsPage, error) {
			return b.GetDRepsPage(ctx, query)
		})
}

func (r *ProviderRouter) GetDRep(ctx context.Context, drepID string) (*models.DRep, error) {
	return route(ctx, r, "get_drep", r.blockfrostFirst(), isNil[models.DRep],
		func(ctx context.Context, b Backend) (*models.DRep, error) {
			return b.GetDRep(ctx, drepID)
		})
}

func (r *ProviderRouter) GetDRepDelegators(ctx context.Context, drepID string) ([]models.DRepDelegator, error) {
	return route(ctx, r, "get_drep_delegators", r.koiosFirst(), isEmptySlice[models.DRepDelegator],
		func(ctx context.Context, b Backend) ([]models.DRepDelegator, error) {
			return b.GetDRepDelegators(ctx, drepID)
		})
}

func (r *ProviderRouter) GetDRepVotingHistory(ctx context.Context, drepID string) ([]models.DRepVotingHistory, error) {
	return route(ctx, r, "get_drep_voting_history", r.koiosFirst(), isEmptySlice[models.DRepVotingHistory],
		func(ctx context.Context, b Backend) ([]models.DRepVotingHistory, error) {
			return b.GetDRepVotingHistory(ctx, drepID)
		})
}

func (r *ProviderRouter) GetDRepMetadata(ctx context.Context, drepID string) (json.RawMessage, error) {
	return route(ctx, r, "get_drep_metadata", r.blockfrostFirst(),
		func(m json.RawMessage) bool { return len(m) == 0 || string(m) == "null" },
		func(ctx context.Context, b Backend) (json.RawMessage, error) {
			return b.GetDRepMetadata(ctx, drepID)
		})
}

func (r *ProviderRouter) GetTotalActiveDReps(ctx context.Context) (*uint32, error) {
	return route(ctx, r, "get_total_active_dreps", r.koiosFirst(), isNil[uint32],
		func(ctx context.Context, b Backend) (*uint32, error) {
			return b.GetTotalActiveDReps(ctx)
		})
}

func (r *ProviderRouter) GetGovernanceActionsPage(ctx context.Context, page, count int) (*models.ActionsPage, error) {
	return route(ctx, r, "get_actions_page", r.koiosFirst(),
		func(p *models.ActionsPage) bool { return p == nil || len(p.Actions) == 0 },
		func(ctx context.Context, b Backend) (*models.ActionsPage, error) {
			return b.GetGovernanceActionsPage(ctx, page, count)
		})
}

func (r *ProviderRouter) GetGovernanceAction(ctx context.Context, proposalID string) (*models.GovernanceAction, error) {
	return route(ctx, r, "get_action", r.koiosFirst(), isNil[models.GovernanceAction],
		func(ctx context.Context, b Backend) (*models.GovernanceAction, error) {
			return b.GetGovernanceAction(ctx, proposalID)
		})
}

func (r *ProviderRouter) GetActionVotingResults(ctx context.Context, proposalID string) (*models.ActionVotingBreakdown, error) {
	return route(ctx, r, "get_action_voting_results", r.koiosFirst(),
		func(b *models.ActionVotingBreakdown) bool { return b.IsEmpty() },
		func(ctx context.Context, b Backend) (*models.ActionVotingBreakdown, error) {
			return b.GetActionVotingResults(ctx, proposalID)
		})
}

func (r *ProviderRouter) GetActionVoteRecords(ctx context.Context, proposalID string) ([]models.ActionVoteRecord, error) {
	return route(ctx, r, "get_action_vote_records", r.koiosFirst(), isEmptySlice[models.ActionVoteRecord],
		func(ctx context.Context, b Backend) ([]models.ActionVoteRecord, error) {
			return b.GetActionVoteRecords(ctx, proposalID)
		})
}

func (r *ProviderRouter) GetStakeDelegation(ctx context.Context, stakeAddress string) (*models.StakeDelegation, error) {
	return route(ctx, r, "get_stake_delegation", r.koiosFirst(), isNil[models.StakeDelegation],
		func(ctx context.Context, b Backend) (*models.StakeDelegation, error) {
			return b.GetStakeDelegation(ctx, stakeAddress)
		})
}

func (r *ProviderRouter) GetStakePoolsPage(ctx context.Context, page, count int) (*models.StakePoolPage, error) {
	return route(ctx, r, "get_stake_pools_page", r.koiosFirst(),
		func(p *models.StakePoolPage) bool { return p == nil || len(p.Pools) == 0 },
		func(ctx context.Context, b Backend) (*models.StakePoolPage, error) {
			return b.GetStakePoolsPage(ctx, page, count)
		})
}

func (r *ProviderRouter) GetCommitteeMembers(ctx context.Context) ([]models.CommitteeMember, error) {
	return route(ctx, r, "get_committee_members", r.koiosFirst(), isEmptySlice[models.CommitteeMember],
		func(ctx context.Context, b Backend) ([]models.CommitteeMember, error) {
			return b.GetCommitteeMembers(ctx)
		})
}

func (r *ProviderRouter) GetEpochStartTime(ctx context.Context, epoch uint32) (*uint64, error) {
	return route(ctx, r, "get_epoch_start_time", r.blockfrostFirst(), isNil[uint64],
		func(ctx context.Context, b Backend) (*uint64, error) {
			return b.GetEpochStartTime(ctx, epoch)
		})
}

// HealthCheck probes both backends concurrently; the router is usable while
// at least one of them is.
func (r *ProviderRouter) HealthCheck(ctx context.Context) (bool, error) {
	backends := r.koiosFirst()
	healthy := make([]bool, len(backends))
	g, gctx := errgroup.WithContext(ctx)
	for i, b := range backends {
		i, b := i, b
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, r.timeout)
			defer cancel()
			ok, err := b.HealthCheck(callCtx)
			if err != nil {
				r.logger.WithField("backend", b.Name()).WithError(err).Debug("Backend health check failed")
			}
			healthy[i] = ok && err == nil
			return nil
		})
	}
	_ = g.Wait()

	for _, ok := range healthy {
		if ok {
			return true, nil
		}
	}
	return false, nil
}
