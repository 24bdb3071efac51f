package providers

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/fenilmodi00/govdash-backend/models"
	"github.com/fenilmodi00/govdash-backend/shared"
	"github.com/sirupsen/logrus"
)

const govToolsUserAgent = "govdash-backend/govtools"

// Enricher supplies DRep profile data that the chain sources lack.
type Enricher interface {
	GetDRepProfile(ctx context.Context, drepHex string) (*models.DRepEnrichment, error)
	ListDReps(ctx context.Context, query models.DRepsQuery) (*models.DRepsPage, error)
}

// GovToolsClient reads DRep profiles from the GovTools backend.
type GovToolsClient struct {
	baseURL string
	client  *http.Client
	logger  *logrus.Entry
}

func NewGovToolsClient(baseURL string, client *http.Client) *GovToolsClient {
	return &GovToolsClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logrus.WithField("component", "GovToolsClient"),
	}
}

type govToolsReference struct {
	Type  *string `json:"@type"`
	Label *string `json:"label"`
	URI   string  `json:"uri"`
}

type govToolsDRep struct {
	DRepID                 string              `json:"drepId"`
	View                   string              `json:"view"`
	IsScriptBased          *bool               `json:"isScriptBased"`
	Status                 *string             `json:"status"`
	VotingPower            flexString          `json:"votingPower"`
	Deposit                flexString          `json:"deposit"`
	MetadataHash           *string             `json:"metadataHash"`
	URL                    *string             `json:"url"`
	GivenName              *string             `json:"givenName"`
	Objectives             *string             `json:"objectives"`
	Motivations            *string             `json:"motivations"`
	Qualifications         *string             `json:"qualifications"`
	PaymentAddress         *string             `json:"paymentAddress"`
	ImageURL               *string             `json:"imageUrl"`
	ImageHash              *string             `json:"imageHash"`
	VotesLastYear          *uint32             `json:"votesLastYear"`
	MetadataError          *string             `json:"metadataError"`
	LatestRegistrationDate *string             `json:"latestRegistrationDate"`
	LatestTxHash           *string             `json:"latestTxHash"`
	IdentityReferences     []govToolsReference `json:"identityReferences"`
	LinkReferences         []govToolsReference `json:"linkReferences"`
}

type govToolsListResponse struct {
	Elements []govToolsDRep `json:"elements"`
	Page     int            `json:"page"`
	PageSize int            `json:"pageSize"`
	Total    *uint64        `json:"total"`
}

func convertReferences(in []govToolsReference) []models.DRepExternalReference {
	if len(in) == 0 {
		return nil
	}
	out := make([]models.DRepExternalReference, 0, len(in))
	for _, r := range in {
		if r.URI == "" {
			continue
		}
		out = append(out, models.DRepExternalReference{Type: r.Type, Label: r.Label, URI: r.URI})
	}
	return out
}

func (g govToolsDRep) enrichment() *models.DRepEnrichment {
	return &models.DRepEnrichment{
		GivenName:              g.GivenName,
		Objectives:             g.Objectives,
		Motivations:            g.Motivations,
		Qualifications:         g.Qualifications,
		PaymentAddress:         g.PaymentAddress,
		ImageURL:               g.ImageURL,
		ImageHash:              g.ImageHash,
		VotesLastYear:          g.VotesLastYear,
		MetadataError:          g.MetadataError,
		LatestRegistrationDate: g.LatestRegistrationDate,
		LatestTxHash:           g.LatestTxHash,
		IsScript:               g.IsScriptBased,
		IdentityReferences:     convertReferences(g.IdentityReferences),
		LinkReferences:         convertReferences(g.LinkReferences),
	}
}

// toModel converts a listing row. GovTools reports the DRep by its credential
// hex in drepId and the bech32 id in view.
func (g govToolsDRep) toModel() models.DRep {
	d := models.DRep{
		DRepID:      g.View,
		HexID:       strPtr(g.DRepID),
		IsScript:    g.IsScriptBased,
		VotingPower: g.VotingPower.ptr(),
		Deposit:     g.Deposit.ptr(),
		MetaURL:     g.URL,
		MetaHash:    g.MetadataHash,
	}
	if d.DRepID == "" {
		d.DRepID = g.DRepID
	}
	if g.Status != nil {
		status := strings.ToLower(*g.Status)
		d.Status = &status
	}
	e := g.enrichment()
	d.GivenName = e.GivenName
	d.Objectives = e.Objectives
	d.Motivations = e.Motivations
	d.Qualifications = e.Qualifications
	d.PaymentAddress = e.PaymentAddress
	d.ImageURL = e.ImageURL
	d.ImageHash = e.ImageHash
	d.VotesLastYear = e.VotesLastYear
	d.MetadataError = e.MetadataError
	d.LatestRegistrationDate = e.LatestRegistrationDate
	d.LatestTxHash = e.LatestTxHash
	d.IdentityReferences = e.IdentityReferences
	d.LinkReferences = e.LinkReferences
	return d
}

func (g *GovToolsClient) list(ctx context.Context, operation string, params url.Values) (*govToolsListResponse, error) {
	var resp govToolsListResponse
	err := shared.DoJSON(ctx, g.client, shared.JSONRequest{
		Backend:   "govtools",
		Operation: operation,
		URL:       g.baseURL + "/drep/list?" + params.Encode(),
		UserAgent: govToolsUserAgent,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetDRepProfile looks a DRep up by credential hex. A DRep GovTools does not
// know yields (nil, nil).
func (g *GovToolsClient) GetDRepProfile(ctx context.Context, drepHex string) (*models.DRepEnrichment, error) {
	params := url.Values{
		"page":     {"0"},
		"pageSize": {"1"},
		"search":   {drepHex},
	}
	resp, err := g.list(ctx, "get_drep_profile", params)
	if err != nil {
		return nil, err
	}
	for _, row := range resp.Elements {
		if strings.EqualFold(row.DRepID, drepHex) {
			return row.enrichment(), nil
		}
	}
	g.logger.WithField("drep_hex", drepHex).Debug("No GovTools profile for DRep")
	return nil, nil
}

// ListDReps returns a page of DReps with profiles already merged. GovTools
// pages are zero-based.
func (g *GovToolsClient) ListDReps(ctx context.Context, query models.DRepsQuery) (*models.DRepsPage, error) {
	query = query.Normalize()
	params := url.Values{
		"page":     {strconv.Itoa(query.Page - 1)},
		"pageSize": {strconv.Itoa(query.Count)},
		"search":   {query.Search},
	}
	for _, s := range query.Statuses {
		params.Add("status[]", govToolsStatus(s))
	}
	if sort, ok := govToolsSorts[query.Sort]; ok {
		params.Set("sort", sort)
	}

	resp, err := g.list(ctx, "list_dreps", params)
	if err != nil {
		return nil, err
	}
	page := &models.DRepsPage{
		DReps: make([]models.DRep, 0, len(resp.Elements)),
		Total: resp.Total,
	}
	for _, row := range resp.Elements {
		page.DReps = append(page.DReps, row.toModel())
	}
	if resp.Total != nil {
		page.HasMore = uint64(query.Page*query.Count) < *resp.Total
	} else {
		page.HasMore = len(resp.Elements) == query.Count
	}
	return page, nil
}

// sort keys GovTools understands, by their normalized spelling
var govToolsSorts = map[string]string{
	"votingpower":      "VotingPower",
	"registrationdate": "RegistrationDate",
	"status":           "Status",
	"random":           "Random",
}

// govToolsStatus maps lower-case status names onto the capitalized values
// the GovTools filter expects.
func govToolsStatus(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
