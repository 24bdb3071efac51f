package models

// CheckStatus is the verdict of one metadata check.
type CheckStatus string

const (
	CheckStatusPass    CheckStatus = "pass"
	CheckStatusFail    CheckStatus = "fail"
	CheckStatusWarning CheckStatus = "warning"
	CheckStatusPending CheckStatus = "pending"
	CheckStatusUnknown CheckStatus = "unknown"
)

type CheckOutcome struct {
	Status  CheckStatus `json:"status"`
	Message *string     `json:"message,omitempty"`
}

// NewCheckOutcome builds an outcome with an optional message.
func NewCheckOutcome(status CheckStatus, message string) CheckOutcome {
	outcome := CheckOutcome{Status: status}
	if message != "" {
		outcome.Message = &message
	}
	return outcome
}

// MetadataCheckResult holds the four independent anchor checks of an action.
type MetadataCheckResult struct {
	Hosting       CheckOutcome `json:"ipfs"`
	Hash          CheckOutcome `json:"hash"`
	OnChain       CheckOutcome `json:"on_chain"`
	AuthorWitness CheckOutcome `json:"author_witness"`
	ResolvedURL   *string      `json:"resolved_url,omitempty"`
	Notes         []string     `json:"notes"`
}

// AddNote appends a human-readable note.
func (r *MetadataCheckResult) AddNote(note string) {
	r.Notes = append(r.Notes, note)
}
