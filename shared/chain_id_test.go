package shared

import (
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTxHash = strings.Repeat("ab", 32)

func TestParseProposalID(t *testing.T) {
	p, err := ParseProposalID(testTxHash + "#3")
	require.NoError(t, err)
	assert.Equal(t, ProposalID{TxHash: testTxHash, Index: 3}, p)
	assert.Equal(t, testTxHash+"#3", p.String())

	p, err = ParseProposalID(strings.ToUpper(testTxHash))
	require.NoError(t, err)
	assert.Equal(t, uint32(0), p.Index)
	assert.Equal(t, testTxHash, p.TxHash)
}

func TestProposalIDGovActionRoundTrip(t *testing.T) {
	for _, index := range []uint32{0, 1, 255, 300} {
		original := ProposalID{TxHash: testTxHash, Index: index}
		bech, err := original.GovActionID()
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(bech, GovActionHRP+"1"))

		parsed, err := ParseProposalID(bech)
		require.NoError(t, err)
		assert.Equal(t, original, parsed)
	}
}

func TestParseProposalIDRejectsMalformed(t *testing.T) {
	for _, id := range []string{
		"",
		"abc#1",
		strings.Repeat("zz", 32) + "#0",
		testTxHash + "#x",
		testTxHash + "#-1",
		"gov_action1qqqq",
	} {
		_, err := ParseProposalID(id)
		require.Error(t, err, id)
		assert.True(t, errors.Is(err, ErrInvalidIdentifier), id)
	}
}

func TestPoolIDVariants(t *testing.T) {
	raw := testHash(9)
	bech := mustEncode(t, PoolHRP, raw)
	hexID := hex.EncodeToString(raw)

	assert.ElementsMatch(t, []string{bech, hexID}, PoolIDVariants(bech))
	assert.ElementsMatch(t, []string{hexID, bech}, PoolIDVariants(strings.ToUpper(hexID)))
	assert.Equal(t, []string{"pool-x"}, PoolIDVariants("pool-x"))
}

func TestCredentialVariantsStripsHeader(t *testing.T) {
	raw := testHash(2)
	withHeader := mustEncode(t, "cc_hot", append([]byte{0x02}, raw...))
	variants := CredentialVariants(withHeader)
	assert.Contains(t, variants, hex.EncodeToString(raw))
	assert.Contains(t, variants, withHeader)
}

func TestValidateStakeAddress(t *testing.T) {
	payload := append([]byte{0xe1}, testHash(4)...)
	assert.NoError(t, ValidateStakeAddress(mustEncode(t, StakeHRP, payload)))
	assert.NoError(t, ValidateStakeAddress(mustEncode(t, StakeTestHRP, payload)))

	err := ValidateStakeAddress(mustEncode(t, "addr", payload))
	assert.True(t, errors.Is(err, ErrInvalidIdentifier))
	err = ValidateStakeAddress(mustEncode(t, StakeHRP, payload[:10]))
	assert.True(t, errors.Is(err, ErrInvalidIdentifier))
	err = ValidateStakeAddress("stake1nope")
	assert.True(t, errors.Is(err, ErrInvalidIdentifier))
}
