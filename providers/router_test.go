package providers

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fenilmodi00/govdash-backend/models"
	"github.com/fenilmodi00/govdash-backend/shared"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubBackend answers the operations it has a function for and reports
// everything else as unsupported.
type stubBackend struct {
	name string

	mu    sync.Mutex
	calls map[string]int

	drep       func(ctx context.Context, id string) (*models.DRep, error)
	delegators func(ctx context.Context, id string) ([]models.DRepDelegator, error)
	epoch      func(ctx context.Context, epoch uint32) (*uint64, error)
	healthy    bool
}

func newStubBackend(name string) *stubBackend {
	return &stubBackend{name: name, calls: make(map[string]int)}
}

func (s *stubBackend) Name() string { return s.name }

func (s *stubBackend) hit(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[op]++
}

func (s *stubBackend) count(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *stubBackend) GetDRepsPage(ctx context.Context, query models.DRepsQuery) (*models.DRepsPage, error) {
	return nil, shared.ErrUnsupported
}

func (s *stubBackend) GetDRep(ctx context.Context, drepID string) (*models.DRep, error) {
	s.hit("drep")
	if s.drep == nil {
		return nil, shared.ErrUnsupported
	}
	return s.drep(ctx, drepID)
}

func (s *stubBackend) GetDRepDelegators(ctx context.Context, drepID string) ([]models.DRepDelegator, error) {
	s.hit("delegators")
	if s.delegators == nil {
		return nil, shared.ErrUnsupported
	}
	return s.delegators(ctx, drepID)
}

func (s *stubBackend) GetDRepVotingHistory(ctx context.Context, drepID string) ([]models.DRepVotingHistory, error) {
	return nil, shared.ErrUnsupported
}

func (s *stubBackend) GetDRepMetadata(ctx context.Context, drepID string) (json.RawMessage, error) {
	return nil, shared.ErrUnsupported
}

func (s *stubBackend) GetTotalActiveDReps(ctx context.Context) (*uint32, error) {
	return nil, shared.ErrUnsupported
}

func (s *stubBackend) GetGovernanceActionsPage(ctx context.Context, page, count int) (*models.ActionsPage, error) {
	return nil, shared.ErrUnsupported
}

func (s *stubBackend) GetGovernanceAction(ctx context.Context, proposalID string) (*models.GovernanceAction, error) {
	return nil, shared.ErrUnsupported
}

func (s *stubBackend) GetActionVotingResults(ctx context.Context, proposalID string) (*models.ActionVotingBreakdown, error) {
	return nil, shared.ErrUnsupported
}

func (s *stubBackend) GetActionVoteRecords(ctx context.Context, proposalID string) ([]models.ActionVoteRecord, error) {
	return nil, shared.ErrUnsupported
}

func (s *stubBackend) GetStakeDelegation(ctx context.Context, stakeAddress string) (*models.StakeDelegation, error) {
	return nil, shared.ErrUnsupported
}

func (s *stubBackend) GetStakePoolsPage(ctx context.Context, page, count int) (*models.StakePoolPage, error) {
	return nil, shared.ErrUnsupported
}

func (s *stubBackend) GetCommitteeMembers(ctx context.Context) ([]models.CommitteeMember, error) {
	return nil, shared.ErrUnsupported
}

func (s *stubBackend) GetEpochStartTime(ctx context.Context, epoch uint32) (*uint64, error) {
	s.hit("epoch")
	if s.epoch == nil {
		return nil, shared.ErrUnsupported
	}
	return s.epoch(ctx, epoch)
}

func (s *stubBackend) HealthCheck(ctx context.Context) (bool, error) {
	return s.healthy, nil
}

func newTestRouter(t *testing.T) (*ProviderRouter, *stubBackend, *stubBackend, *shared.ServiceMetrics) {
	t.Helper()
	koios := newStubBackend("koios")
	blockfrost := newStubBackend("blockfrost")
	metrics := shared.NewServiceMetrics(prometheus.NewRegistry())
	return NewProviderRouter(koios, blockfrost, time.Second, metrics), koios, blockfrost, metrics
}

var errBoom = errors.New("boom")

func TestRouterPrimaryAnswerWins(t *testing.T) {
	router, koios, blockfrost, _ := newTestRouter(t)
	koios.delegators = func(ctx context.Context, id string) ([]models.DRepDelegator, error) {
		return []models.DRepDelegator{{StakeAddress: "stake1a"}}, nil
	}
	blockfrost.delegators = func(ctx context.Context, id string) ([]models.DRepDelegator, error) {
		return []models.DRepDelegator{{StakeAddress: "stake1b"}}, nil
	}

	out, err := router.GetDRepDelegators(context.Background(), "drep1x")
	require.NoError(t, err)
	assert.Equal(t, "stake1a", out[0].StakeAddress)
	assert.Equal(t, 0, blockfrost.count("delegators"))
}

func TestRouterFallsBackOnceOnError(t *testing.T) {
	router, koios, blockfrost, metrics := newTestRouter(t)
	var events []FallbackEvent
	router.SetFallbackObserver(func(e FallbackEvent) { events = append(events, e) })

	koios.delegators = func(ctx context.Context, id string) ([]models.DRepDelegator, error) {
		return nil, shared.NewUpstreamUnavailableError("koios", "get_drep_delegators", errBoom)
	}
	blockfrost.delegators = func(ctx context.Context, id string) ([]models.DRepDelegator, error) {
		return []models.DRepDelegator{{StakeAddress: "stake1b"}}, nil
	}

	out, err := router.GetDRepDelegators(context.Background(), "drep1x")
	require.NoError(t, err)
	assert.Equal(t, "stake1b", out[0].StakeAddress)
	assert.Equal(t, 1, koios.count("delegators"))
	assert.Equal(t, 1, blockfrost.count("delegators"))

	require.Len(t, events, 1)
	assert.Equal(t, FallbackEvent{
		Operation: "get_drep_delegators",
		From:      "koios",
		To:        "blockfrost",
		Reason:    events[0].Reason,
	}, events[0])
	assert.Contains(t, events[0].Reason, "boom")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Fallbacks.WithLabelValues("get_drep_delegators", "koios", "blockfrost")))
}

func TestRouterFallsBackOnEmptyResult(t *testing.T) {
	router, koios, blockfrost, _ := newTestRouter(t)
	blockfrost.drep = func(ctx context.Context, id string) (*models.DRep, error) { return nil, nil }
	koios.drep = func(ctx context.Context, id string) (*models.DRep, error) {
		return &models.DRep{DRepID: id}, nil
	}

	d, err := router.GetDRep(context.Background(), "drep1x")
	require.NoError(t, err)
	assert.Equal(t, "drep1x", d.DRepID)
	assert.Equal(t, 1, blockfrost.count("drep"))
}

func TestRouterEmptyFromAllIsNotAnError(t *testing.T) {
	router, koios, blockfrost, _ := newTestRouter(t)
	blockfrost.drep = func(ctx context.Context, id string) (*models.DRep, error) { return nil, nil }
	koios.drep = func(ctx context.Context, id string) (*models.DRep, error) { return nil, errBoom }

	d, err := router.GetDRep(context.Background(), "drep1x")
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestRouterAggregatesWhenAllFail(t *testing.T) {
	router, koios, blockfrost, _ := newTestRouter(t)
	koios.delegators = func(ctx context.Context, id string) ([]models.DRepDelegator, error) {
		return nil, errors.New("koios down")
	}
	blockfrost.delegators = func(ctx context.Context, id string) ([]models.DRepDelegator, error) {
		return nil, errors.New("blockfrost down")
	}

	_, err := router.GetDRepDelegators(context.Background(), "drep1x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrAllBackendsFailed))
	assert.Equal(t, 502, shared.HTTPStatusFor(err))
	assert.Contains(t, err.Error(), "koios down")
	assert.Contains(t, err.Error(), "blockfrost down")

	var serviceErr *shared.ServiceError
	require.True(t, errors.As(err, &serviceErr))
	assert.Equal(t, []string{"koios", "blockfrost"}, serviceErr.Details)
}

func TestRouterUnsupportedCountsAsFailure(t *testing.T) {
	router, _, _, _ := newTestRouter(t)

	_, err := router.GetCommitteeMembers(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrAllBackendsFailed))
	assert.True(t, errors.Is(err, shared.ErrUnsupported))
}

func TestRouterUnsupportedDoesNotTripBreaker(t *testing.T) {
	router, koios, blockfrost, _ := newTestRouter(t)
	blockfrost.delegators = func(ctx context.Context, id string) ([]models.DRepDelegator, error) {
		return []models.DRepDelegator{{StakeAddress: "stake1b"}}, nil
	}

	for i := 0; i < 8; i++ {
		_, err := router.GetDRepDelegators(context.Background(), "drep1x")
		require.NoError(t, err)
	}
	assert.Equal(t, 8, koios.count("delegators"))
}

func TestRouterBreakerSkipsFailingBackend(t *testing.T) {
	router, koios, blockfrost, _ := newTestRouter(t)
	koios.delegators = func(ctx context.Context, id string) ([]models.DRepDelegator, error) {
		return nil, errBoom
	}
	blockfrost.delegators = func(ctx context.Context, id string) ([]models.DRepDelegator, error) {
		return []models.DRepDelegator{{StakeAddress: "stake1b"}}, nil
	}

	for i := 0; i < 8; i++ {
		out, err := router.GetDRepDelegators(context.Background(), "drep1x")
		require.NoError(t, err)
		assert.Len(t, out, 1)
	}
	assert.Equal(t, 5, koios.count("delegators"))
	assert.Equal(t, 8, blockfrost.count("delegators"))
}

func TestRouterBoundsEachBackendCall(t *testing.T) {
	koios := newStubBackend("koios")
	blockfrost := newStubBackend("blockfrost")
	router := NewProviderRouter(koios, blockfrost, 50*time.Millisecond, nil)

	start := uint64(1_600_000_000)
	blockfrost.epoch = func(ctx context.Context, epoch uint32) (*uint64, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	koios.epoch = func(ctx context.Context, epoch uint32) (*uint64, error) { return &start, nil }

	got, err := router.GetEpochStartTime(context.Background(), 400)
	require.NoError(t, err)
	assert.Equal(t, start, *got)
}

func TestRouterStopsOnCallerCancellation(t *testing.T) {
	router, koios, blockfrost, _ := newTestRouter(t)
	ctx, cancel := context.WithCancel(context.Background())
	blockfrost.epoch = func(c context.Context, epoch uint32) (*uint64, error) {
		cancel()
		return nil, c.Err()
	}

	_, err := router.GetEpochStartTime(ctx, 400)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, koios.count("epoch"))
}

func TestRouterHealthCheck(t *testing.T) {
	router, koios, blockfrost, _ := newTestRouter(t)

	ok, err := router.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	blockfrost.healthy = true
	ok, _ = router.HealthCheck(context.Background())
	assert.True(t, ok)

	koios.healthy = true
	blockfrost.healthy = false
	ok, _ = router.HealthCheck(context.Background())
	assert.True(t, ok)
}
