package services

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fenilmodi00/govdash-backend/models"
	"github.com/fenilmodi00/govdash-backend/shared"
	"github.com/ipfs/go-cid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"
)

const (
	metadataUserAgent    = "govdash-backend/metadata-validator"
	metadataAccept       = "application/json, text/plain;q=0.9, */*;q=0.1"
	ipfsScheme           = "ipfs://"
	verifierMessageLimit = 120

	// MetadataResultVersion is bumped whenever the shape or meaning of a
	// MetadataCheckResult changes, retiring cached results.
	MetadataResultVersion = 2
)

// MetadataValidator checks the off-chain anchor of governance actions.
// Results are cached per action, anchor hash and verifier setting.
type MetadataValidator struct {
	client           *http.Client
	cache            *CacheService
	gateway          string
	maxBytes         int64
	verifierEnabled  bool
	verifierEndpoint string
	metrics          *shared.ServiceMetrics
	logger           *logrus.Entry
}

func NewMetadataValidator(cfg shared.ValidatorConfig, client *http.Client, cache *CacheService, metrics *shared.ServiceMetrics) *MetadataValidator {
	gateway := cfg.IPFSGateway
	if gateway == "" {
		gateway = shared.DefaultIPFSGateway
	}
	if !strings.HasSuffix(gateway, "/") {
		gateway += "/"
	}
	endpoint := cfg.VerifierEndpoint
	if endpoint == "" {
		endpoint = shared.DefaultVerifierEndpoint
	}
	return &MetadataValidator{
		client:           client,
		cache:            cache,
		gateway:          gateway,
		maxBytes:         cfg.MaxBytes,
		verifierEnabled:  cfg.VerifierEnabled,
		verifierEndpoint: endpoint,
		metrics:          metrics,
		logger:           logrus.WithField("component", "MetadataValidator"),
	}
}

// AttachChecks validates the action's anchor unless it already carries a
// result.
func (v *MetadataValidator) AttachChecks(ctx context.Context, action *models.GovernanceAction) {
	if action == nil || action.MetadataChecks != nil {
		return
	}
	action.MetadataChecks = v.Validate(ctx, action)
}

// Validate returns the anchor checks of action, from cache when possible.
// It never fails: every problem is recorded in the result.
func (v *MetadataValidator) Validate(ctx context.Context, action *models.GovernanceAction) *models.MetadataCheckResult {
	if isBlank(action.MetaURL) && isBlank(action.MetaHash) {
		return noMetadataResult(action.MetaIsValid)
	}

	key := ActionMetadataValidationKey(action.ProposalID, action.MetaHash, v.verifierEnabled, MetadataResultVersion)
	var cached models.MetadataCheckResult
	if v.cache != nil && v.cache.GetJSON(key, &cached) {
		return &cached
	}

	result := v.compute(ctx, action)
	v.metrics.RecordValidationOutcome("hosting", string(result.Hosting.Status))
	v.metrics.RecordValidationOutcome("hash", string(result.Hash.Status))
	v.metrics.RecordValidationOutcome("on_chain", string(result.OnChain.Status))
	v.metrics.RecordValidationOutcome("author_witness", string(result.AuthorWitness.Status))

	if v.cache != nil {
		v.cache.SetJSON(key, result)
	}
	return result
}

func isBlank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

func pendingResult(metaIsValid *bool) *models.MetadataCheckResult {
	result := &models.MetadataCheckResult{
		Hosting:       models.NewCheckOutcome(models.CheckStatusUnknown, "Hosting validation pending"),
		Hash:          models.NewCheckOutcome(models.CheckStatusUnknown, "Hash validation pending"),
		OnChain:       models.NewCheckOutcome(models.CheckStatusUnknown, "On-chain metadata extension validation pending"),
		AuthorWitness: models.NewCheckOutcome(models.CheckStatusPending, "Author witness verification pending"),
		Notes:         []string{},
	}
	if metaIsValid != nil && !*metaIsValid {
		result.AddNote("Provider flagged metadata anchor as invalid (meta_is_valid=false)")
	}
	return result
}

func noMetadataResult(metaIsValid *bool) *models.MetadataCheckResult {
	result := pendingResult(metaIsValid)
	result.Hosting = models.NewCheckOutcome(models.CheckStatusUnknown, "No metadata anchor provided")
	result.Hash = models.NewCheckOutcome(models.CheckStatusUnknown, "No metadata anchor provided")
	result.OnChain = models.NewCheckOutcome(models.CheckStatusUnknown, "No metadata available for on-chain validation")
	result.AuthorWitness = models.NewCheckOutcome(models.CheckStatusUnknown, "No metadata available for author witness verification")
	result.AddNote("Governance action lacks metadata URL or hash")
	return result
}

func (v *MetadataValidator) compute(ctx context.Context, action *models.GovernanceAction) *models.MetadataCheckResult {
	result := pendingResult(action.MetaIsValid)

	hosting, hostingNote := evaluateHosting(action.MetaURL)
	result.Hosting = hosting
	if hosting.Message != nil {
		result.AddNote(*hosting.Message)
	}
	if hostingNote != "" {
		result.AddNote(hostingNote)
	}

	document := normalizeMetadata(action.MetaJSON)

	hash, fetched := v.evaluateHash(ctx, action.MetaURL, action.MetaHash)
	result.Hash = hash
	if fetched != nil {
		resolved := fetched.url
		result.ResolvedURL = &resolved
		result.AddNote(fmt.Sprintf("Fetched %d bytes of metadata for hash validation", fetched.bytesRead))
		if document == nil {
			document = fetched.document
		}
	}

	result.OnChain = evaluateOnChain(document)
	if s := result.OnChain.Status; (s == models.CheckStatusFail || s == models.CheckStatusWarning) && result.OnChain.Message != nil {
		result.AddNote(*result.OnChain.Message)
	}

	if v.verifierEnabled {
		payload := witnessPayload(document)
		if payload == nil {
			result.AuthorWitness = models.NewCheckOutcome(models.CheckStatusFail, "Metadata contains no author witness data")
		} else {
			outcome, notes, err := v.verifyAuthorWitness(ctx, payload)
			if err != nil {
				degraded := shared.NewValidationDegradedError("author_witness", err)
				v.logger.WithFields(logrus.Fields{
					"proposal_id": action.ProposalID,
					"endpoint":    v.verifierEndpoint,
				}).WithError(degraded).Warn("Author witness verification degraded")
				var verr *verifierError
				if !errors.As(err, &verr) {
					verr = &verifierError{kind: verifierNetwork, cause: err}
				}
				outcome = verr.outcome()
				notes = []string{verr.note()}
			}
			result.AuthorWitness = outcome
			result.Notes = append(result.Notes, notes...)
		}
	}

	return result
}

// evaluateHosting passes only content-addressed ipfs:// anchors. The second
// value is an informational note about the content identifier.
func evaluateHosting(metaURL *string) (models.CheckOutcome, string) {
	if metaURL == nil {
		return models.NewCheckOutcome(models.CheckStatusUnknown, "No metadata URL provided"), ""
	}
	u := strings.TrimSpace(*metaURL)
	if u == "" {
		return models.NewCheckOutcome(models.CheckStatusUnknown, "Metadata URL is empty or whitespace"), ""
	}
	if strings.HasPrefix(u, ipfsScheme) {
		return models.NewCheckOutcome(models.CheckStatusPass, "Metadata hosted on IPFS"), cidNote(u)
	}
	scheme := "unknown"
	if i := strings.Index(u, ":"); i > 0 {
		scheme = u[:i]
	}
	return models.NewCheckOutcome(models.CheckStatusFail,
		fmt.Sprintf("Metadata URI uses '%s' scheme; expected ipfs://", scheme)), ""
}

func cidNote(ipfsURL string) string {
	root := strings.TrimPrefix(ipfsURL, ipfsScheme)
	root = strings.TrimPrefix(root, "ipfs/")
	if i := strings.IndexAny(root, "/?#"); i >= 0 {
		root = root[:i]
	}
	c, err := cid.Decode(root)
	if err != nil {
		return "IPFS content identifier could not be parsed as a CID"
	}
	return fmt.Sprintf("IPFS content identifier is a CIDv%d", c.Version())
}

type fetchedMetadata struct {
	url       string
	bytesRead int
	document  interface{}
}

func (v *MetadataValidator) evaluateHash(ctx context.Context, metaURL, metaHash *string) (models.CheckOutcome, *fetchedMetadata) {
	if isBlank(metaURL) {
		return models.NewCheckOutcome(models.CheckStatusUnknown, "No metadata URL available for hashing"), nil
	}
	if isBlank(metaHash) {
		return models.NewCheckOutcome(models.CheckStatusUnknown, "On-chain metadata hash missing; cannot validate"), nil
	}

	fetched, body, err := v.fetch(ctx, strings.TrimSpace(*metaURL), strings.TrimSpace(*metaHash))
	if err != nil {
		return models.NewCheckOutcome(models.CheckStatusFail, fmt.Sprintf("Failed to validate metadata hash: %v", err)), nil
	}
	if !HashMatches(body, *metaHash) {
		v.logger.WithFields(logrus.Fields{
			"url":      fetched.url,
			"expected": strings.ToLower(*metaHash),
			"computed": BlakeHex(body),
		}).Debug("Metadata hash mismatch")
		return models.NewCheckOutcome(models.CheckStatusFail, "Hash mismatch between fetched metadata and on-chain anchor"), fetched
	}
	return models.NewCheckOutcome(models.CheckStatusPass, "Metadata hash matches on-chain anchor"), fetched
}

func validHashHex(h string) bool {
	h = strings.TrimPrefix(strings.TrimSpace(h), "0x")
	if len(h) != 2*blake2b.Size256 {
		return false
	}
	_, err := hex.DecodeString(h)
	return err == nil
}

// BlakeHex is the lowercase hex BLAKE2b-256 digest of body.
func BlakeHex(body []byte) string {
	sum := blake2b.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// HashMatches compares the BLAKE2b-256 digest of body with an expected hex
// digest, case-insensitively.
func HashMatches(body []byte, expected string) bool {
	expected = strings.TrimPrefix(strings.TrimSpace(expected), "0x")
	return validHashHex(expected) && strings.EqualFold(BlakeHex(body), expected)
}

func (v *MetadataValidator) fetch(ctx context.Context, metaURL, expectedHash string) (*fetchedMetadata, []byte, error) {
	if !validHashHex(expectedHash) {
		return nil, nil, fmt.Errorf("expected metadata hash is not a valid blake2b-256 hex string")
	}
	resolved, err := v.resolveURL(metaURL)
	if err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resolved, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid metadata URL %s: %w", resolved, err)
	}
	req.Header.Set("Accept", metadataAccept)
	req.Header.Set("User-Agent", metadataUserAgent)

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request failed for %s: %w", resolved, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil, fmt.Errorf("HTTP %d while fetching %s", resp.StatusCode, resolved)
	}

	limit := v.maxBytes
	if limit <= 0 {
		limit = shared.NewDefaultUnifiedConfiguration().Validator.MaxBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, nil, fmt.Errorf("failed reading body from %s: %w", resolved, err)
	}
	if int64(len(body)) > limit {
		return nil, nil, fmt.Errorf("metadata exceeds configured limit (more than %d bytes)", limit)
	}

	fetched := &fetchedMetadata{url: resolved, bytesRead: len(body)}
	var doc interface{}
	if err := json.Unmarshal(body, &doc); err == nil {
		fetched.document = doc
	}
	return fetched, body, nil
}

// resolveURL rewrites ipfs:// anchors through the gateway and passes plain
// HTTP(S) URLs through.
func (v *MetadataValidator) resolveURL(u string) (string, error) {
	switch {
	case strings.HasPrefix(u, ipfsScheme):
		contentID := strings.TrimPrefix(strings.TrimPrefix(u, ipfsScheme), "ipfs/")
		if contentID == "" {
			return "", fmt.Errorf("ipfs:// URI missing content identifier")
		}
		return v.gateway + contentID, nil
	case strings.HasPrefix(u, "http://"), strings.HasPrefix(u, "https://"):
		return u, nil
	}
	return "", fmt.Errorf("unsupported metadata URI scheme (expected ipfs:// or https://): %s", u)
}

// normalizeMetadata decodes provider-supplied anchor JSON. A JSON string
// holding a document is decoded a second time.
func normalizeMetadata(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil || doc == nil {
		return nil
	}
	if s, ok := doc.(string); ok {
		var inner interface{}
		if err := json.Unmarshal([]byte(s), &inner); err != nil {
			return nil
		}
		return inner
	}
	return doc
}

// evaluateOnChain looks for an onChain object at the top level or under
// body.
func evaluateOnChain(doc interface{}) models.CheckOutcome {
	root, ok := doc.(map[string]interface{})
	if doc == nil {
		return models.NewCheckOutcome(models.CheckStatusUnknown, "On-chain metadata extension not evaluated")
	}
	if !ok {
		return models.NewCheckOutcome(models.CheckStatusWarning, "On-chain metadata extension not provided")
	}
	value, present := root["onChain"]
	if !present {
		if body, ok := root["body"].(map[string]interface{}); ok {
			value, present = body["onChain"]
		}
	}
	if !present {
		return models.NewCheckOutcome(models.CheckStatusWarning, "On-chain metadata extension not provided")
	}
	switch value.(type) {
	case map[string]interface{}:
		return models.NewCheckOutcome(models.CheckStatusPass, "On-chain metadata extension detected")
	case nil:
		return models.NewCheckOutcome(models.CheckStatusWarning, "On-chain metadata extension is null")
	}
	return models.NewCheckOutcome(models.CheckStatusWarning, "On-chain metadata extension is present but not an object")
}

// witnessPayload returns the metadata object to send to the verifier, or
// nil when it carries no non-null authors.
func witnessPayload(doc interface{}) map[string]interface{} {
	if s, ok := doc.(string); ok {
		var parsed interface{}
		if err := json.Unmarshal([]byte(s), &parsed); err != nil {
			return nil
		}
		doc = parsed
	}
	object, ok := doc.(map[string]interface{})
	if !ok {
		return nil
	}
	authors, _ := object["authors"].([]interface{})
	for _, a := range authors {
		if a != nil {
			return object
		}
	}
	return nil
}

type verifierErrorKind int

const (
	verifierRateLimited verifierErrorKind = iota
	verifierNetwork
	verifierInvalidResponse
	verifierAPIFailure
)

type verifierError struct {
	kind   verifierErrorKind
	status int
	cause  error
}

func (e *verifierError) Error() string {
	switch e.kind {
	case verifierRateLimited:
		return "verifier rate limited"
	case verifierNetwork:
		return fmt.Sprintf("verifier unreachable: %v", e.cause)
	case verifierInvalidResponse:
		return fmt.Sprintf("verifier returned an invalid payload: %v", e.cause)
	}
	return fmt.Sprintf("verifier returned HTTP %d", e.status)
}

func (e *verifierError) Unwrap() error { return e.cause }

func (e *verifierError) outcome() models.CheckOutcome {
	switch e.kind {
	case verifierRateLimited:
		return models.NewCheckOutcome(models.CheckStatusWarning, "Author witness verification temporarily rate limited")
	case verifierNetwork:
		return models.NewCheckOutcome(models.CheckStatusWarning, "Unable to reach the author witness verifier")
	case verifierInvalidResponse:
		return models.NewCheckOutcome(models.CheckStatusWarning, "Unexpected response from the author witness verifier")
	}
	return models.NewCheckOutcome(models.CheckStatusWarning,
		fmt.Sprintf("Author witness verifier returned status %d", e.status))
}

func (e *verifierError) note() string {
	switch e.kind {
	case verifierRateLimited:
		return "Verifier rate limit encountered; author witness verification deferred."
	case verifierNetwork:
		return "Verifier unreachable; author witness verification deferred."
	case verifierInvalidResponse:
		return "Verifier returned an unexpected payload."
	}
	return fmt.Sprintf("Verifier responded with HTTP status %d.", e.status)
}

type verifierResponse struct {
	Success bool          `json:"success"`
	Data    *verifierData `json:"data"`
	Error   *string       `json:"error"`
}

type verifierData struct {
	Result   *bool  `json:"result"`
	ErrorMsg string `json:"errorMsg"`
	Authors  []struct {
		Valid bool    `json:"valid"`
		Name  *string `json:"name"`
	} `json:"authors"`
}

func (v *MetadataValidator) verifyAuthorWitness(ctx context.Context, metadata map[string]interface{}) (models.CheckOutcome, []string, error) {
	payload, err := json.Marshal(map[string]interface{}{"metadata": metadata})
	if err != nil {
		return models.CheckOutcome{}, nil, &verifierError{kind: verifierInvalidResponse, cause: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifierEndpoint, bytes.NewReader(payload))
	if err != nil {
		return models.CheckOutcome{}, nil, &verifierError{kind: verifierNetwork, cause: err}
	}
	shared.SetJSONHeaders(req, metadataUserAgent)

	resp, err := v.client.Do(req)
	if err != nil {
		return models.CheckOutcome{}, nil, &verifierError{kind: verifierNetwork, cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return models.CheckOutcome{}, nil, &verifierError{kind: verifierRateLimited, status: resp.StatusCode}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.CheckOutcome{}, nil, &verifierError{kind: verifierAPIFailure, status: resp.StatusCode}
	}

	var body verifierResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return models.CheckOutcome{}, nil, &verifierError{kind: verifierInvalidResponse, cause: err}
	}
	outcome, notes := classifyVerifierResponse(body)
	return outcome, notes, nil
}

func classifyVerifierResponse(body verifierResponse) (models.CheckOutcome, []string) {
	if !body.Success {
		notes := []string{"Verifier reported failure."}
		if body.Error != nil {
			notes = append(notes, truncateVerifierMessage(*body.Error))
		}
		return models.NewCheckOutcome(models.CheckStatusFail, "Verifier could not validate author witnesses"), notes
	}
	if body.Data == nil {
		return models.NewCheckOutcome(models.CheckStatusWarning, "Verifier returned no data payload"),
			[]string{"Verifier response missing data field."}
	}

	data := body.Data
	var notes []string
	if data.ErrorMsg != "" {
		notes = append(notes, truncateVerifierMessage(data.ErrorMsg))
	}
	reportedFailure := data.Result != nil && !*data.Result
	if reportedFailure {
		notes = append(notes, "Verifier reported witness verification failure.")
	}

	total := len(data.Authors)
	if total == 0 {
		notes = append(notes, "No author witnesses returned by verifier.")
		return models.NewCheckOutcome(models.CheckStatusWarning, "No author witnesses provided"), notes
	}

	invalid := 0
	var invalidNames []string
	for _, a := range data.Authors {
		if a.Valid {
			continue
		}
		invalid++
		if a.Name != nil && *a.Name != "" {
			invalidNames = append(invalidNames, *a.Name)
		}
	}
	if invalid == 0 && !reportedFailure {
		notes = append(notes, "Author witness signatures valid")
		return models.NewCheckOutcome(models.CheckStatusPass, "Author witnesses verified via CIP-100 verifier"), notes
	}

	notes = append(notes, fmt.Sprintf("%d of %d author witnesses failed verification", invalid, total))
	if len(invalidNames) > 0 {
		notes = append(notes, "Invalid witnesses reported for: "+strings.Join(invalidNames, ", "))
	}
	return models.NewCheckOutcome(models.CheckStatusFail, "Verifier reported invalid author witnesses"), notes
}

func truncateVerifierMessage(msg string) string {
	runes := []rune(msg)
	if len(runes) <= verifierMessageLimit {
		return "Verifier message: " + msg
	}
	return "Verifier message: " + strings.TrimRight(string(runes[:verifierMessageLimit]), " ") + "…"
}
