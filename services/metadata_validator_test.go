package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fenilmodi00/govdash-backend/models"
	"github.com/fenilmodi00/govdash-backend/shared"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCID = "bafkreigh2akiscaildcqabsyg3dfr6chu3fgpregiymsck7e7aqa4s52zy"

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func newTestValidator(t *testing.T, gateway, verifier string, verifierEnabled bool) *MetadataValidator {
	t.Helper()
	return NewMetadataValidator(shared.ValidatorConfig{
		IPFSGateway:      gateway,
		MaxBytes:         1024,
		Timeout:          2 * time.Second,
		VerifierEnabled:  verifierEnabled,
		VerifierEndpoint: verifier,
	}, &http.Client{Timeout: 2 * time.Second}, newTestCache(t, nil), nil)
}

func TestValidateWithoutAnchor(t *testing.T) {
	v := newTestValidator(t, "", "", false)
	result := v.Validate(context.Background(), &models.GovernanceAction{ProposalID: "tx#0", MetaURL: strPtr("  ")})

	assert.Equal(t, models.CheckStatusUnknown, result.Hosting.Status)
	assert.Equal(t, models.CheckStatusUnknown, result.Hash.Status)
	assert.Equal(t, models.CheckStatusUnknown, result.OnChain.Status)
	assert.Equal(t, models.CheckStatusUnknown, result.AuthorWitness.Status)
	assert.Contains(t, result.Notes, "Governance action lacks metadata URL or hash")
}

func TestValidateHTTPSAnchorWithoutHash(t *testing.T) {
	v := newTestValidator(t, "", "", false)
	result := v.Validate(context.Background(), &models.GovernanceAction{
		ProposalID:  "tx#1",
		MetaURL:     strPtr("https://example.com/meta.json"),
		MetaIsValid: boolPtr(false),
	})

	assert.Equal(t, models.CheckStatusFail, result.Hosting.Status)
	assert.Contains(t, *result.Hosting.Message, "'https' scheme")
	assert.Equal(t, models.CheckStatusUnknown, result.Hash.Status)
	assert.Equal(t, models.CheckStatusUnknown, result.OnChain.Status)
	assert.Equal(t, models.CheckStatusPending, result.AuthorWitness.Status)
	assert.Contains(t, result.Notes, "Provider flagged metadata anchor as invalid (meta_is_valid=false)")
}

func TestValidateIPFSAnchorHashMatch(t *testing.T) {
	body := []byte(`{"body":{"title":"Budget","onChain":{"reference":"x"}},"authors":[]}`)
	var requests atomic.Int32
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, "/ipfs/"+testCID, r.URL.Path)
		_, _ = w.Write(body)
	}))
	defer gateway.Close()

	v := newTestValidator(t, gateway.URL+"/ipfs", "", false)
	action := &models.GovernanceAction{
		ProposalID: "tx#2",
		MetaURL:    strPtr("ipfs://" + testCID),
		MetaHash:   strPtr(strings.ToUpper(BlakeHex(body))),
	}
	result := v.Validate(context.Background(), action)

	assert.Equal(t, models.CheckStatusPass, result.Hosting.Status)
	assert.Equal(t, models.CheckStatusPass, result.Hash.Status)
	assert.Equal(t, models.CheckStatusPass, result.OnChain.Status)
	require.NotNil(t, result.ResolvedURL)
	assert.Equal(t, gateway.URL+"/ipfs/"+testCID, *result.ResolvedURL)
	assert.Contains(t, result.Notes, "IPFS content identifier is a CIDv1")

	// second call is served from cache
	again := v.Validate(context.Background(), action)
	assert.Equal(t, result.Hash, again.Hash)
	assert.Equal(t, int32(1), requests.Load())
}

func TestValidateHashMismatchAndLimits(t *testing.T) {
	payload := strings.Repeat("a", 2000)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/big":
			_, _ = w.Write([]byte(payload))
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		default:
			_, _ = w.Write([]byte(`{"a":1}`))
		}
	}))
	defer server.Close()

	v := newTestValidator(t, "", "", false)
	otherHash := BlakeHex([]byte("something else"))

	cases := []struct {
		name    string
		url     string
		hash    string
		message string
	}{
		{"mismatch", server.URL + "/doc", otherHash, "Hash mismatch"},
		{"too large", server.URL + "/big", otherHash, "exceeds configured limit"},
		{"http error", server.URL + "/missing", otherHash, "HTTP 404"},
		{"bad hash", server.URL + "/doc", "xyz", "not a valid blake2b-256"},
	}
	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := v.Validate(context.Background(), &models.GovernanceAction{
				ProposalID: "tx#" + string(rune('a'+i)),
				MetaURL:    strPtr(tc.url),
				MetaHash:   strPtr(tc.hash),
			})
			assert.Equal(t, models.CheckStatusFail, result.Hash.Status)
			assert.Contains(t, *result.Hash.Message, tc.message)
		})
	}
}

func TestHashMatchesDetectsAnyMutation(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("flipping one byte breaks the hash", prop.ForAll(
		func(body []byte, pos int, flip byte) bool {
			if len(body) == 0 || flip == 0 {
				return true
			}
			expected := BlakeHex(body)
			if !HashMatches(body, expected) {
				return false
			}
			mutated := append([]byte(nil), body...)
			mutated[pos%len(mutated)] ^= flip
			return !HashMatches(mutated, expected)
		},
		gen.SliceOf(gen.UInt8()), gen.IntRange(0, 1<<16), gen.UInt8(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestEvaluateOnChain(t *testing.T) {
	decode := func(s string) interface{} {
		var doc interface{}
		require.NoError(t, json.Unmarshal([]byte(s), &doc))
		return doc
	}
	assert.Equal(t, models.CheckStatusUnknown, evaluateOnChain(nil).Status)
	assert.Equal(t, models.CheckStatusPass, evaluateOnChain(decode(`{"onChain":{}}`)).Status)
	assert.Equal(t, models.CheckStatusPass, evaluateOnChain(decode(`{"body":{"onChain":{"a":1}}}`)).Status)
	assert.Equal(t, models.CheckStatusWarning, evaluateOnChain(decode(`{"onChain":null}`)).Status)
	assert.Equal(t, models.CheckStatusWarning, evaluateOnChain(decode(`{"onChain":"x"}`)).Status)
	assert.Equal(t, models.CheckStatusWarning, evaluateOnChain(decode(`{"body":{}}`)).Status)
	assert.Equal(t, models.CheckStatusWarning, evaluateOnChain(decode(`[1,2]`)).Status)
}

func TestNormalizeMetadataDecodesStringifiedJSON(t *testing.T) {
	doc := normalizeMetadata(json.RawMessage(`"{\"onChain\":{}}"`))
	assert.Equal(t, models.CheckStatusPass, evaluateOnChain(doc).Status)
	assert.Nil(t, normalizeMetadata(json.RawMessage(`"not json"`)))
	assert.Nil(t, normalizeMetadata(nil))
}

func witnessAction(id string) *models.GovernanceAction {
	return &models.GovernanceAction{
		ProposalID: id,
		MetaURL:    strPtr("https://example.com/a.json"),
		MetaJSON:   json.RawMessage(`{"authors":[{"name":"alice","witness":{}}],"body":{}}`),
	}
}

func TestAuthorWitnessVerification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   models.CheckStatus
		note   string
	}{
		{"valid", http.StatusOK, `{"success":true,"data":{"result":true,"authors":[{"valid":true,"name":"alice"}]}}`, models.CheckStatusPass, "Author witness signatures valid"},
		{"invalid author", http.StatusOK, `{"success":true,"data":{"result":false,"authors":[{"valid":false,"name":"alice"}]}}`, models.CheckStatusFail, "Invalid witnesses reported for: alice"},
		{"no authors", http.StatusOK, `{"success":true,"data":{"authors":[]}}`, models.CheckStatusWarning, "No author witnesses returned by verifier."},
		{"failure", http.StatusOK, `{"success":false,"error":"bad signature"}`, models.CheckStatusFail, "Verifier message: bad signature"},
		{"rate limited", http.StatusTooManyRequests, ``, models.CheckStatusWarning, "Verifier rate limit encountered; author witness verification deferred."},
		{"server error", http.StatusBadGateway, ``, models.CheckStatusWarning, "Verifier responded with HTTP status 502."},
		{"garbage", http.StatusOK, `<html>`, models.CheckStatusWarning, "Verifier returned an unexpected payload."},
	}
	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			verifier := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var req map[string]interface{}
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Contains(t, req, "metadata")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer verifier.Close()

			v := newTestValidator(t, "", verifier.URL, true)
			result := v.Validate(context.Background(), witnessAction("tx#"+string(rune('a'+i))))
			assert.Equal(t, tc.want, result.AuthorWitness.Status)
			assert.Contains(t, result.Notes, tc.note)
		})
	}
}

func TestAuthorWitnessWithoutAuthors(t *testing.T) {
	v := newTestValidator(t, "", "http://127.0.0.1:1", true)
	action := witnessAction("tx#z")
	action.MetaJSON = json.RawMessage(`{"authors":[null],"body":{}}`)
	result := v.Validate(context.Background(), action)
	assert.Equal(t, models.CheckStatusFail, result.AuthorWitness.Status)
}

func TestAuthorWitnessUnreachableVerifier(t *testing.T) {
	v := newTestValidator(t, "", "http://127.0.0.1:1", true)
	result := v.Validate(context.Background(), witnessAction("tx#y"))
	assert.Equal(t, models.CheckStatusWarning, result.AuthorWitness.Status)
	assert.Contains(t, result.Notes, "Verifier unreachable; author witness verification deferred.")
}

func TestTruncateVerifierMessage(t *testing.T) {
	assert.Equal(t, "Verifier message: short", truncateVerifierMessage("short"))
	long := strings.Repeat("é", 150)
	got := truncateVerifierMessage(long)
	assert.True(t, strings.HasSuffix(got, "…"))
	assert.Equal(t, len([]rune("Verifier message: "))+verifierMessageLimit+1, len([]rune(got)))
}

func TestCacheKeyDependsOnVerifierSetting(t *testing.T) {
	hash := BlakeHex([]byte("x"))
	off := ActionMetadataValidationKey("tx#0", &hash, false, MetadataResultVersion)
	on := ActionMetadataValidationKey("tx#0", &hash, true, MetadataResultVersion)
	assert.NotEqual(t, off.String(), on.String())
}
