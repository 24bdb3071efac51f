package shared

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterCountsAndAborts(t *testing.T) {
	limiter := NewHTTPRequestRateLimiter("koios", 1)
	require.NoError(t, limiter.Wait(context.Background()))
	assert.Equal(t, int64(1), limiter.GetRequestCount())

	// the single burst token is spent, so a short deadline cannot be met
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := limiter.Wait(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstreamUnavailable))
	assert.Equal(t, int64(1), limiter.GetRequestCount())

	var nilLimiter *HTTPRequestRateLimiter
	assert.NoError(t, nilLimiter.Wait(context.Background()))
}

func TestServiceMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewServiceMetrics(reg)

	m.RecordCacheLookup(true)
	m.RecordCacheLookup(false)
	m.RecordCacheLookup(false)
	m.RecordFallback("get_drep", "koios", "blockfrost")
	m.RecordValidationOutcome("hash", "pass")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Fallbacks.WithLabelValues("get_drep", "koios", "blockfrost")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ValidationOutcomes.WithLabelValues("hash", "pass")))

	var nilMetrics *ServiceMetrics
	assert.NotPanics(t, func() {
		nilMetrics.RecordCacheLookup(true)
		nilMetrics.RecordUpstreamCall("koios", "op", "ok", 0.1)
	})
}

func TestUnifiedConfigurationDefaults(t *testing.T) {
	cfg := &UnifiedConfiguration{}
	cfg.Validator.MaxBytes = 1024
	cfg.ValidateAndApplyDefaults()

	defaults := NewDefaultUnifiedConfiguration()
	assert.Equal(t, defaults.Service, cfg.Service)
	assert.Equal(t, defaults.Cache.MaxEntries, cfg.Cache.MaxEntries)
	assert.Equal(t, int64(1024), cfg.Validator.MaxBytes)
	assert.Equal(t, DefaultIPFSGateway, cfg.Validator.IPFSGateway)
	assert.False(t, cfg.Cache.Enabled)
}
