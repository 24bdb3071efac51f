package providers

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/fenilmodi00/govdash-backend/models"
	"github.com/shopspring/decimal"
)

// flexString decodes JSON strings and numbers alike. Upstreams disagree on
// whether lovelace amounts are quoted.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(data)
	return nil
}

func (f flexString) ptr() *string {
	if f == "" {
		return nil
	}
	s := string(f)
	return &s
}

func (f flexString) uint32Ptr() *uint32 {
	if f == "" {
		return nil
	}
	v, err := strconv.ParseUint(string(f), 10, 32)
	if err != nil {
		return nil
	}
	u := uint32(v)
	return &u
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func boolPtr(b bool) *bool { return &b }

func u32Ptr(v uint32) *uint32 { return &v }

func optU32(v *int64) *uint32 {
	if v == nil || *v < 0 {
		return nil
	}
	u := uint32(*v)
	return &u
}

func rawJSON(v json.RawMessage) json.RawMessage {
	if len(v) == 0 || string(v) == "null" {
		return nil
	}
	return v
}

// drepStatus derives the display status used by every backend.
func drepStatus(registered, retired, expired, active *bool) *string {
	status := "active"
	switch {
	case retired != nil && *retired, registered != nil && !*registered:
		status = "retired"
	case expired != nil && *expired:
		status = "inactive"
	case active != nil && !*active:
		status = "inactive"
	}
	return &status
}

// matchesDRepFilters applies status and search filters in memory for
// backends that cannot filter server-side.
func matchesDRepFilters(d models.DRep, query models.DRepsQuery) bool {
	if len(query.Statuses) > 0 && d.Status != nil {
		found := false
		for _, s := range query.Statuses {
			if strings.EqualFold(s, *d.Status) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if query.Search != "" {
		needle := strings.ToLower(query.Search)
		hay := strings.ToLower(d.DRepID)
		if d.HexID != nil {
			hay += " " + strings.ToLower(*d.HexID)
		}
		if d.GivenName != nil {
			hay += " " + strings.ToLower(*d.GivenName)
		}
		if !strings.Contains(hay, needle) {
			return false
		}
	}
	return true
}

// TallyFromRecords builds a voting breakdown from individual votes. Voting
// power is summed with arbitrary precision; records without power add to
// the counts only.
func TallyFromRecords(proposalID string, records []models.ActionVoteRecord) *models.ActionVotingBreakdown {
	type acc struct {
		counts           *models.VoteCounts
		yes, no, abstain decimal.Decimal
	}
	breakdown := &models.ActionVotingBreakdown{ProposalID: proposalID}
	classes := map[models.VoterClass]*acc{
		models.VoterClassDRep:      {counts: &breakdown.DRepVotes},
		models.VoterClassSPO:       {counts: &breakdown.SPOVotes},
		models.VoterClassCommittee: {counts: &breakdown.CCVotes},
	}

	total := decimal.Zero
	for _, rec := range records {
		class, ok := models.ParseVoterClass(rec.VoterType)
		if !ok {
			continue
		}
		choice, ok := models.ParseVoteChoice(rec.Vote)
		if !ok {
			continue
		}
		power := decimal.Zero
		if rec.VotingPower != nil {
			if p, err := decimal.NewFromString(*rec.VotingPower); err == nil {
				power = p
			}
		}
		a := classes[class]
		switch choice {
		case models.VoteYes:
			a.counts.Yes++
			a.yes = a.yes.Add(power)
		case models.VoteNo:
			a.counts.No++
			a.no = a.no.Add(power)
		case models.VoteAbstain:
			a.counts.Abstain++
			a.abstain = a.abstain.Add(power)
		}
		total = total.Add(power)
	}

	for _, a := range classes {
		a.counts.YesVotingPower = a.yes.String()
		a.counts.NoVotingPower = a.no.String()
		a.counts.AbstainPower = a.abstain.String()
	}
	breakdown.TotalVotingPower = total.String()
	return breakdown
}

// sumDecimalStrings adds decimal strings, skipping unparsable values.
func sumDecimalStrings(values ...string) string {
	total := decimal.Zero
	for _, v := range values {
		if v == "" {
			continue
		}
		if d, err := decimal.NewFromString(v); err == nil {
			total = total.Add(d)
		}
	}
	return total.String()
}
