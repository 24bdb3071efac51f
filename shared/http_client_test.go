package shared

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoJSONDecodesAndSendsHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "secret", r.Header.Get("project_id"))
		assert.Equal(t, "govdash-test", r.Header.Get("User-Agent"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "v", body["k"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	var out struct {
		OK bool `json:"ok"`
	}
	err := DoJSON(context.Background(), server.Client(), JSONRequest{
		Backend:   "test",
		Operation: "probe",
		Method:    http.MethodPost,
		URL:       server.URL,
		Body:      map[string]string{"k": "v"},
		Headers:   map[string]string{"project_id": "secret"},
		UserAgent: "govdash-test",
	}, &out)
	require.NoError(t, err)
	assert.True(t, out.OK)
}

func TestDoJSONStatusErrors(t *testing.T) {
	status := http.StatusTooManyRequests
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte("slow down"))
	}))
	defer server.Close()

	err := DoJSON(context.Background(), server.Client(), JSONRequest{Backend: "koios", Operation: "get", URL: server.URL}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstreamUnavailable))
	assert.Equal(t, http.StatusTooManyRequests, StatusCodeOf(err))
	assert.Contains(t, err.Error(), "slow down")

	status = http.StatusNotFound
	err = DoJSON(context.Background(), server.Client(), JSONRequest{Backend: "koios", Operation: "get", URL: server.URL}, nil)
	assert.Equal(t, http.StatusNotFound, StatusCodeOf(err))
}

func TestDoJSONMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer server.Close()

	var out map[string]interface{}
	err := DoJSON(context.Background(), server.Client(), JSONRequest{Backend: "b", Operation: "op", URL: server.URL}, &out)
	assert.True(t, errors.Is(err, ErrUpstreamUnavailable))
	assert.Equal(t, 0, StatusCodeOf(err))
}

func TestDoJSONHonorsContextDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := DoJSON(ctx, server.Client(), JSONRequest{Backend: "b", Operation: "op", URL: server.URL}, nil)
	var serviceErr *ServiceError
	require.True(t, errors.As(err, &serviceErr))
	assert.Equal(t, ErrorCategoryTimeout, serviceErr.Category)
}
