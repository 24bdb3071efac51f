package services

import (
	"fmt"
	"sort"

	"github.com/fenilmodi00/govdash-backend/models"
	"github.com/fenilmodi00/govdash-backend/shared"
	"github.com/shopspring/decimal"
)

// roster is one voter class: its participants and every identifier
// spelling that points at each of them.
type roster struct {
	participants []models.VoterParticipant
	index        map[string]int
	variantsOf   func(string) []string
}

func newRoster(variantsOf func(string) []string) *roster {
	return &roster{index: make(map[string]int), variantsOf: variantsOf}
}

func (r *roster) add(p models.VoterParticipant, ids ...string) {
	pos := len(r.participants)
	r.participants = append(r.participants, p)
	for _, id := range ids {
		for _, v := range r.variantsOf(id) {
			if _, taken := r.index[v]; !taken {
				r.index[v] = pos
			}
		}
	}
}

func (r *roster) find(id string) (int, bool) {
	for _, v := range r.variantsOf(id) {
		if pos, ok := r.index[v]; ok {
			return pos, true
		}
	}
	return 0, false
}

func (r *roster) summary() models.ParticipationSummary {
	s := models.ParticipationSummary{Total: len(r.participants)}
	for _, p := range r.participants {
		if p.HasVoted {
			s.Voted++
		}
	}
	s.Percentage = participationPercentage(s.Voted, s.Total)
	return s
}

// participationPercentage is voted/total as a percentage rounded to two
// places, zero for an empty roster.
func participationPercentage(voted, total int) float64 {
	if total == 0 {
		return 0
	}
	pct := decimal.NewFromInt(int64(voted)).
		Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromInt(int64(total)), 2)
	f, _ := pct.Float64()
	return f
}

// BuildVoterParticipation lays the vote records of a proposal over the full
// rosters of DReps, stake pools and committee members. A voter that
// re-cast keeps only its latest vote by block time. Votes from voters on
// no roster are kept as synthesized entries.
func BuildVoterParticipation(
	proposalID string,
	dreps []models.DRep,
	pools []models.StakePool,
	committee []models.CommitteeMember,
	records []models.ActionVoteRecord,
) *models.VoterParticipation {
	drepRoster := newRoster(shared.DRepIDVariants)
	for _, d := range dreps {
		ids := []string{d.DRepID}
		if d.HexID != nil {
			ids = append(ids, *d.HexID)
		}
		drepRoster.add(models.VoterParticipant{Identifier: d.DRepID, Name: d.GivenName}, ids...)
	}

	poolRoster := newRoster(shared.PoolIDVariants)
	for _, p := range pools {
		ids := []string{p.PoolID}
		if p.HexID != nil {
			ids = append(ids, *p.HexID)
		}
		name := p.Ticker
		if name == nil {
			name = p.Name
		}
		poolRoster.add(models.VoterParticipant{Identifier: p.PoolID, Name: name}, ids...)
	}

	ccRoster := newRoster(shared.CredentialVariants)
	for _, m := range committee {
		ids := []string{m.ColdCredential}
		for _, id := range []*string{m.HotCredential, m.HotHex, m.ColdHex} {
			if id != nil {
				ids = append(ids, *id)
			}
		}
		identifier := m.ColdCredential
		if m.HotCredential != nil {
			identifier = *m.HotCredential
		}
		ccRoster.add(models.VoterParticipant{Identifier: identifier}, ids...)
	}

	rosters := map[models.VoterClass]*roster{
		models.VoterClassDRep:      drepRoster,
		models.VoterClassSPO:       poolRoster,
		models.VoterClassCommittee: ccRoster,
	}
	out := &models.VoterParticipation{ProposalID: proposalID}

	// oldest first so a later vote from the same voter overwrites
	ordered := append([]models.ActionVoteRecord(nil), records...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return blockTimeOf(ordered[i]) < blockTimeOf(ordered[j])
	})

	for _, rec := range ordered {
		if _, ok := models.ParseVoteChoice(rec.Vote); !ok {
			out.Notes = append(out.Notes, fmt.Sprintf("Vote from %s has unrecognized choice %q", rec.VoterIdentifier, rec.Vote))
		}
		class, ok := models.ParseVoterClass(rec.VoterType)
		if !ok {
			out.Notes = append(out.Notes, fmt.Sprintf("Vote from %s has unrecognized voter type %q", rec.VoterIdentifier, rec.VoterType))
			voterType := rec.VoterType
			p := models.VoterParticipant{Identifier: rec.VoterIdentifier, VoterType: &voterType, Synthesized: true}
			applyVote(&p, rec)
			out.Unclassified = append(out.Unclassified, p)
			continue
		}
		r := rosters[class]
		pos, found := r.find(rec.VoterIdentifier)
		if !found {
			r.add(models.VoterParticipant{Identifier: rec.VoterIdentifier, Synthesized: true}, rec.VoterIdentifier)
			pos = len(r.participants) - 1
		}
		applyVote(&r.participants[pos], rec)
	}

	out.DReps = nonNil(drepRoster.participants)
	out.SPOs = nonNil(poolRoster.participants)
	out.Committee = nonNil(ccRoster.participants)
	out.DRepSummary = drepRoster.summary()
	out.SPOSummary = poolRoster.summary()
	out.CCSummary = ccRoster.summary()
	return out
}

// applyVote marks p as having cast rec. A choice that does not parse is kept
// verbatim in RawVote.
func applyVote(p *models.VoterParticipant, rec models.ActionVoteRecord) {
	p.HasVoted = true
	p.Vote, p.RawVote = nil, nil
	if choice, ok := models.ParseVoteChoice(rec.Vote); ok {
		p.Vote = &choice
	} else {
		raw := rec.Vote
		p.RawVote = &raw
	}
	p.TxHash = rec.TxHash
	p.VotedAt = rec.BlockTime
	if rec.VotingPower != nil {
		p.VotingPower = rec.VotingPower
	}
}

func blockTimeOf(rec models.ActionVoteRecord) int64 {
	if rec.BlockTime == nil {
		return 0
	}
	return *rec.BlockTime
}

func nonNil(p []models.VoterParticipant) []models.VoterParticipant {
	if p == nil {
		return []models.VoterParticipant{}
	}
	return p
}
