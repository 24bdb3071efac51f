package services

import "github.com/fenilmodi00/govdash-backend/models"

// ApplyEnrichment copies profile fields onto drep where drep has none. Values
// already present, whatever their source, are never replaced.
func ApplyEnrichment(drep *models.DRep, e *models.DRepEnrichment) {
	if drep == nil || e == nil {
		return
	}
	fillString(&drep.GivenName, e.GivenName)
	fillString(&drep.Objectives, e.Objectives)
	fillString(&drep.Motivations, e.Motivations)
	fillString(&drep.Qualifications, e.Qualifications)
	fillString(&drep.PaymentAddress, e.PaymentAddress)
	fillString(&drep.ImageURL, e.ImageURL)
	fillString(&drep.ImageHash, e.ImageHash)
	fillString(&drep.MetadataError, e.MetadataError)
	fillString(&drep.LatestRegistrationDate, e.LatestRegistrationDate)
	fillString(&drep.LatestTxHash, e.LatestTxHash)
	if drep.VotesLastYear == nil && e.VotesLastYear != nil {
		v := *e.VotesLastYear
		drep.VotesLastYear = &v
	}
	if drep.IsScript == nil && e.IsScript != nil {
		v := *e.IsScript
		drep.IsScript = &v
	}
	if len(drep.IdentityReferences) == 0 && len(e.IdentityReferences) > 0 {
		drep.IdentityReferences = append([]models.DRepExternalReference(nil), e.IdentityReferences...)
	}
	if len(drep.LinkReferences) == 0 && len(e.LinkReferences) > 0 {
		drep.LinkReferences = append([]models.DRepExternalReference(nil), e.LinkReferences...)
	}
}

func fillString(dst **string, src *string) {
	if *dst != nil || src == nil {
		return
	}
	v := *src
	*dst = &v
}
