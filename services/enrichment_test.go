package services

import (
	"testing"

	"github.com/fenilmodi00/govdash-backend/models"
	"github.com/stretchr/testify/assert"
)

func uint32Ptr(v uint32) *uint32 { return &v }

func TestApplyEnrichmentFillsOnlyGaps(t *testing.T) {
	drep := &models.DRep{
		DRepID:    testDRep105,
		GivenName: strPtr("On-chain name"),
		LinkReferences: []models.DRepExternalReference{
			{Label: strPtr("site"), URI: "https://primary.example"},
		},
	}
	enrichment := &models.DRepEnrichment{
		GivenName:     strPtr("Enriched name"),
		Objectives:    strPtr("Transparency"),
		VotesLastYear: uint32Ptr(12),
		IsScript:      boolPtr(false),
		ImageURL:      strPtr("https://img.example/a.png"),
		LinkReferences: []models.DRepExternalReference{
			{Label: strPtr("other"), URI: "https://enriched.example"},
		},
		IdentityReferences: []models.DRepExternalReference{
			{Label: strPtr("x"), URI: "https://x.example"},
		},
	}

	ApplyEnrichment(drep, enrichment)

	assert.Equal(t, "On-chain name", *drep.GivenName)
	assert.Equal(t, "Transparency", *drep.Objectives)
	assert.Equal(t, uint32(12), *drep.VotesLastYear)
	assert.False(t, *drep.IsScript)
	assert.Equal(t, "https://img.example/a.png", *drep.ImageURL)
	assert.Equal(t, "https://primary.example", drep.LinkReferences[0].URI)
	assert.Len(t, drep.IdentityReferences, 1)

	// the merged DRep does not alias the enrichment record
	*enrichment.Objectives = "changed"
	assert.Equal(t, "Transparency", *drep.Objectives)
}

func TestApplyEnrichmentNilSafe(t *testing.T) {
	assert.NotPanics(t, func() {
		ApplyEnrichment(nil, &models.DRepEnrichment{})
		ApplyEnrichment(&models.DRep{}, nil)
	})
}
