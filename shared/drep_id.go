package shared

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// Bech32 human-readable parts used for DRep identifiers.
const (
	DRepKeyHRP    = "drep"
	DRepVKeyHRP   = "drep_vkh"
	DRepScriptHRP = "drep_script"
)

// Header bytes prefixed to the credential hash by the CIP-129 encoding.
const (
	cip129KeyHeader    byte = 0x22
	cip129ScriptHeader byte = 0x23
)

const credentialHashSize = 28

// Sentinel DReps standing for protocol-level default votes. They are not
// bech32 and are valid in every format.
const (
	DRepAlwaysAbstain      = "drep_always_abstain"
	DRepAlwaysNoConfidence = "drep_always_no_confidence"
	DRepAlwaysYes          = "drep_always_yes"
	DRepAlwaysNo           = "drep_always_no"
)

var specialDRepIDs = map[string]struct{}{
	DRepAlwaysAbstain:      {},
	DRepAlwaysNoConfidence: {},
	DRepAlwaysYes:          {},
	DRepAlwaysNo:           {},
}

// DRepCredential is a decoded DRep identifier.
type DRepCredential struct {
	Hash     []byte
	IsScript bool
}

// Hex returns the credential hash as lowercase hex.
func (c DRepCredential) Hex() string {
	return hex.EncodeToString(c.Hash)
}

// IsSpecialDRepID reports whether id is one of the predefined system DReps.
func IsSpecialDRepID(id string) bool {
	_, ok := specialDRepIDs[strings.ToLower(strings.TrimSpace(id))]
	return ok
}

// ParseDRepID decodes either a CIP-105 or a CIP-129 DRep identifier.
func ParseDRepID(id string) (DRepCredential, error) {
	hrp, data, err := bech32.DecodeNoLimit(strings.TrimSpace(id))
	if err != nil {
		return DRepCredential{}, NewInvalidIdentifierError("decode_drep_id", id, err)
	}
	payload, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return DRepCredential{}, NewInvalidIdentifierError("decode_drep_id", id, err)
	}

	switch hrp {
	case DRepKeyHRP:
		switch len(payload) {
		case credentialHashSize:
			return DRepCredential{Hash: payload}, nil
		case credentialHashSize + 1:
			switch payload[0] {
			case cip129KeyHeader:
				return DRepCredential{Hash: payload[1:]}, nil
			case cip129ScriptHeader:
				return DRepCredential{Hash: payload[1:], IsScript: true}, nil
			}
			return DRepCredential{}, NewInvalidIdentifierError("decode_drep_id", id,
				fmt.Errorf("unknown CIP-129 header 0x%02x", payload[0]))
		}
	case DRepVKeyHRP, DRepScriptHRP:
		if len(payload) == credentialHashSize {
			return DRepCredential{Hash: payload, IsScript: hrp == DRepScriptHRP}, nil
		}
	default:
		return DRepCredential{}, NewInvalidIdentifierError("decode_drep_id", id,
			fmt.Errorf("unrecognized prefix %q", hrp))
	}
	return DRepCredential{}, NewInvalidIdentifierError("decode_drep_id", id,
		fmt.Errorf("unexpected payload length %d", len(payload)))
}

// DecodeDRepID returns the raw credential hash of a DRep identifier.
func DecodeDRepID(id string) ([]byte, error) {
	cred, err := ParseDRepID(id)
	if err != nil {
		return nil, err
	}
	return cred.Hash, nil
}

// ValidateDRepID accepts special system DReps and any decodable identifier.
func ValidateDRepID(id string) error {
	if IsSpecialDRepID(id) {
		return nil
	}
	_, err := ParseDRepID(id)
	return err
}

// ToCIP105 converts a DRep identifier to the CIP-105 encoding
// (drep1... for keys, drep_script1... for scripts).
func ToCIP105(id string) (string, error) {
	if IsSpecialDRepID(id) {
		return id, nil
	}
	cred, err := ParseDRepID(id)
	if err != nil {
		return "", err
	}
	hrp := DRepKeyHRP
	if cred.IsScript {
		hrp = DRepScriptHRP
	}
	return encodeBech32(hrp, cred.Hash)
}

// ToCIP129 converts a DRep identifier to the CIP-129 encoding, where the
// credential type is carried in a header byte under the drep prefix.
func ToCIP129(id string) (string, error) {
	if IsSpecialDRepID(id) {
		return id, nil
	}
	cred, err := ParseDRepID(id)
	if err != nil {
		return "", err
	}
	return cred.CIP129()
}

// CIP129 encodes the credential in the CIP-129 format.
func (c DRepCredential) CIP129() (string, error) {
	header := cip129KeyHeader
	if c.IsScript {
		header = cip129ScriptHeader
	}
	payload := make([]byte, 0, len(c.Hash)+1)
	payload = append(payload, header)
	payload = append(payload, c.Hash...)
	return encodeBech32(DRepKeyHRP, payload)
}

// DRepIDVariants lists every equivalent spelling of a DRep identifier,
// lowercased: the input, both bech32 encodings and the raw hex hash.
func DRepIDVariants(id string) []string {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	variants := []string{strings.ToLower(id)}
	if IsSpecialDRepID(id) {
		return variants
	}
	cred, err := ParseDRepID(id)
	if err != nil {
		// raw hex hashes carry no key/script flag, so they only match themselves
		return variants
	}
	variants = append(variants, cred.Hex())
	if cip105, err := ToCIP105(id); err == nil {
		variants = append(variants, cip105)
	}
	if cip129, err := cred.CIP129(); err == nil {
		variants = append(variants, cip129)
	}
	return dedupe(variants)
}

func encodeBech32(hrp string, payload []byte) (string, error) {
	converted, err := bech32.ConvertBits(payload, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("failed to convert payload bits: %w", err)
	}
	return bech32.Encode(hrp, converted)
}

func decodeBech32(id string) (string, []byte, error) {
	hrp, data, err := bech32.DecodeNoLimit(strings.TrimSpace(id))
	if err != nil {
		return "", nil, err
	}
	payload, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return "", nil, err
	}
	return hrp, payload, nil
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
