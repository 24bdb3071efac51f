package shared

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

const (
	GovActionHRP   = "gov_action"
	PoolHRP        = "pool"
	StakeHRP       = "stake"
	StakeTestHRP   = "stake_test"
	txHashHexSize  = 64
	poolHashSize   = 28
	stakeAddrBytes = 29
)

// ProposalID identifies a governance action by its submitting transaction.
type ProposalID struct {
	TxHash string
	Index  uint32
}

// String renders the canonical {txhash}#{index} form.
func (p ProposalID) String() string {
	return fmt.Sprintf("%s#%d", p.TxHash, p.Index)
}

// GovActionID renders the CIP-129 bech32 form: the 32-byte transaction hash
// followed by the index as a single byte (two for indexes above 255).
func (p ProposalID) GovActionID() (string, error) {
	raw, err := hex.DecodeString(p.TxHash)
	if err != nil {
		return "", err
	}
	if p.Index > 0xff {
		raw = append(raw, byte(p.Index>>8), byte(p.Index))
	} else {
		raw = append(raw, byte(p.Index))
	}
	return encodeBech32(GovActionHRP, raw)
}

// ParseProposalID accepts "{txhash}#{index}", a bare transaction hash
// (index 0) or a CIP-129 gov_action identifier.
func ParseProposalID(id string) (ProposalID, error) {
	id = strings.TrimSpace(id)
	if strings.HasPrefix(strings.ToLower(id), GovActionHRP+"1") {
		return parseGovActionID(id)
	}

	hash, indexPart, hasIndex := strings.Cut(id, "#")
	hash = strings.ToLower(hash)
	if len(hash) != txHashHexSize {
		return ProposalID{}, NewInvalidIdentifierError("parse_proposal_id", id,
			fmt.Errorf("transaction hash must be %d hex characters", txHashHexSize))
	}
	if _, err := hex.DecodeString(hash); err != nil {
		return ProposalID{}, NewInvalidIdentifierError("parse_proposal_id", id, err)
	}
	var index uint64
	if hasIndex {
		var err error
		index, err = strconv.ParseUint(indexPart, 10, 32)
		if err != nil {
			return ProposalID{}, NewInvalidIdentifierError("parse_proposal_id", id, err)
		}
	}
	return ProposalID{TxHash: hash, Index: uint32(index)}, nil
}

func parseGovActionID(id string) (ProposalID, error) {
	hrp, payload, err := decodeBech32(id)
	if err != nil {
		return ProposalID{}, NewInvalidIdentifierError("parse_proposal_id", id, err)
	}
	if hrp != GovActionHRP || len(payload) < 33 || len(payload) > 34 {
		return ProposalID{}, NewInvalidIdentifierError("parse_proposal_id", id,
			fmt.Errorf("unexpected gov_action payload"))
	}
	var index uint32
	for _, b := range payload[32:] {
		index = index<<8 | uint32(b)
	}
	return ProposalID{TxHash: hex.EncodeToString(payload[:32]), Index: index}, nil
}

// PoolIDVariants returns the bech32 and hex spellings of a pool identifier.
func PoolIDVariants(id string) []string {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return nil
	}
	variants := []string{id}
	if hrp, payload, err := decodeBech32(id); err == nil && hrp == PoolHRP && len(payload) == poolHashSize {
		variants = append(variants, hex.EncodeToString(payload))
	} else if raw, err := hex.DecodeString(id); err == nil && len(raw) == poolHashSize {
		if encoded, err := encodeBech32(PoolHRP, raw); err == nil {
			variants = append(variants, encoded)
		}
	}
	return dedupe(variants)
}

// CredentialVariants returns an identifier in lowercase and, when it is
// bech32 of any prefix, its hex payload too. Committee credentials use it.
func CredentialVariants(id string) []string {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return nil
	}
	variants := []string{id}
	if _, payload, err := decodeBech32(id); err == nil {
		h := hex.EncodeToString(payload)
		variants = append(variants, h)
		if len(payload) == credentialHashSize+1 {
			variants = append(variants, h[2:])
		}
	}
	return dedupe(variants)
}

// ValidateStakeAddress checks that addr is a bech32 reward address.
func ValidateStakeAddress(addr string) error {
	hrp, payload, err := decodeBech32(addr)
	if err != nil {
		return NewInvalidIdentifierError("validate_stake_address", addr, err)
	}
	if hrp != StakeHRP && hrp != StakeTestHRP {
		return NewInvalidIdentifierError("validate_stake_address", addr,
			fmt.Errorf("unrecognized prefix %q", hrp))
	}
	if len(payload) != stakeAddrBytes {
		return NewInvalidIdentifierError("validate_stake_address", addr,
			fmt.Errorf("unexpected payload length %d", len(payload)))
	}
	return nil
}
