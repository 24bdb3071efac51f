package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fenilmodi00/govdash-backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const govToolsRow = `{
	"drepId":"101112131415161718191a1b1c1d1e1f202122232425262728292a2b",
	"view":"drep1zqg3yyc5z5tpwxqergd3c8g7ruszzg3rysjjvfeg9y4zk32vpvn",
	"status":"Active",
	"votingPower":1234,
	"givenName":"Alice",
	"objectives":"Transparency",
	"isScriptBased":false,
	"identityReferences":[{"@type":"Identity","label":"X","uri":"https://x.example/alice"},{"label":"empty","uri":""}]
}`

func newGovTools(t *testing.T, handler http.HandlerFunc) *GovToolsClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGovToolsClient(srv.URL+"/", &http.Client{Timeout: 2 * time.Second})
}

func TestGovToolsProfileLookup(t *testing.T) {
	client := newGovTools(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/drep/list", r.URL.Path)
		assert.Equal(t, "0", r.URL.Query().Get("page"))
		assert.Equal(t, "1", r.URL.Query().Get("pageSize"))
		writeJSON(w, `{"elements":[`+govToolsRow+`],"page":0,"pageSize":1,"total":1}`)
	})

	profile, err := client.GetDRepProfile(context.Background(), "101112131415161718191A1B1C1D1E1F202122232425262728292A2B")
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, "Alice", *profile.GivenName)
	assert.False(t, *profile.IsScript)
	require.Len(t, profile.IdentityReferences, 1)
	assert.Equal(t, "https://x.example/alice", profile.IdentityReferences[0].URI)
}

func TestGovToolsProfileUnknownDRep(t *testing.T) {
	client := newGovTools(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"elements":[],"page":0,"pageSize":1,"total":0}`)
	})

	profile, err := client.GetDRepProfile(context.Background(), "ff")
	require.NoError(t, err)
	assert.Nil(t, profile)
}

func TestGovToolsListDReps(t *testing.T) {
	client := newGovTools(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "1", q.Get("page"))
		assert.Equal(t, "10", q.Get("pageSize"))
		assert.Equal(t, []string{"Active", "Retired"}, q["status[]"])
		assert.Equal(t, "VotingPower", q.Get("sort"))
		writeJSON(w, `{"elements":[`+govToolsRow+`],"page":1,"pageSize":10,"total":25}`)
	})

	page, err := client.ListDReps(context.Background(), models.DRepsQuery{
		Page:     2,
		Count:    10,
		Statuses: []string{"retired", "ACTIVE"},
		Sort:     "votingPower",
	})
	require.NoError(t, err)
	require.Len(t, page.DReps, 1)
	assert.True(t, page.HasMore)
	assert.Equal(t, uint64(25), *page.Total)

	d := page.DReps[0]
	assert.Equal(t, "drep1zqg3yyc5z5tpwxqergd3c8g7ruszzg3rysjjvfeg9y4zk32vpvn", d.DRepID)
	assert.Equal(t, "101112131415161718191a1b1c1d1e1f202122232425262728292a2b", *d.HexID)
	assert.Equal(t, "active", *d.Status)
	assert.Equal(t, "1234", *d.VotingPower)
	assert.Equal(t, "Transparency", *d.Objectives)
}

func TestGovToolsErrorPropagates(t *testing.T) {
	client := newGovTools(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.ListDReps(context.Background(), models.DRepsQuery{})
	assert.Error(t, err)
}
