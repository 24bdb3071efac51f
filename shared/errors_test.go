package shared

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusFor(t *testing.T) {
	var causes *multierror.Error
	causes = multierror.Append(causes,
		NewUpstreamUnavailableError("koios", "get_drep", errors.New("timeout")),
		NewUpstreamUnavailableError("blockfrost", "get_drep", errors.New("429")),
	)

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"invalid identifier", NewInvalidIdentifierError("get_drep", "x", nil), http.StatusBadRequest},
		{"not found", NewNotFoundError("drep", "drep1x"), http.StatusNotFound},
		{"all backends failed", NewAllBackendsFailedError("get_drep", causes), http.StatusBadGateway},
		{"upstream unavailable", NewUpstreamUnavailableError("indexer", "get_drep", errors.New("down")), http.StatusServiceUnavailable},
		{"wrapped", fmt.Errorf("loading: %w", NewNotFoundError("action", "a")), http.StatusNotFound},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HTTPStatusFor(tc.err))
		})
	}
}

func TestServiceErrorMatchesOnlyItsSentinel(t *testing.T) {
	err := NewInvalidIdentifierError("op", "id", errors.New("bad"))
	assert.True(t, errors.Is(err, ErrInvalidIdentifier))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrUpstreamUnavailable))
	assert.False(t, err.Retryable)
	assert.Contains(t, err.Error(), "bad")
}

func TestUpstreamUnavailableCategorizesTimeouts(t *testing.T) {
	timeout := NewUpstreamUnavailableError("koios", "get_drep", context.DeadlineExceeded)
	assert.Equal(t, ErrorCategoryTimeout, timeout.Category)
	assert.True(t, IsRetryableError(timeout))

	network := NewUpstreamUnavailableError("koios", "get_drep", errors.New("refused"))
	assert.Equal(t, ErrorCategoryNetwork, network.Category)
}

func TestAllBackendsFailedKeepsEveryCause(t *testing.T) {
	var causes *multierror.Error
	causes = multierror.Append(causes, errors.New("koios: 503"), errors.New("blockfrost: 429"))
	err := NewAllBackendsFailedError("get_dreps_page", causes)

	assert.True(t, errors.Is(err, ErrAllBackendsFailed))
	assert.Contains(t, err.Error(), "koios: 503")
	assert.Contains(t, err.Error(), "blockfrost: 429")
}
