package shared

import (
	"bytes"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHash(seed byte) []byte {
	h := make([]byte, credentialHashSize)
	for i := range h {
		h[i] = seed + byte(i)
	}
	return h
}

func mustEncode(t *testing.T, hrp string, payload []byte) string {
	t.Helper()
	s, err := encodeBech32(hrp, payload)
	require.NoError(t, err)
	return s
}

func TestParseDRepIDFormats(t *testing.T) {
	hash := testHash(1)

	cip105 := mustEncode(t, DRepKeyHRP, hash)
	cred, err := ParseDRepID(cip105)
	require.NoError(t, err)
	assert.Equal(t, hash, cred.Hash)
	assert.False(t, cred.IsScript)

	cip129Key := mustEncode(t, DRepKeyHRP, append([]byte{0x22}, hash...))
	cred, err = ParseDRepID(cip129Key)
	require.NoError(t, err)
	assert.Equal(t, hash, cred.Hash)
	assert.False(t, cred.IsScript)

	cip129Script := mustEncode(t, DRepKeyHRP, append([]byte{0x23}, hash...))
	cred, err = ParseDRepID(cip129Script)
	require.NoError(t, err)
	assert.True(t, cred.IsScript)

	script105 := mustEncode(t, DRepScriptHRP, hash)
	cred, err = ParseDRepID(script105)
	require.NoError(t, err)
	assert.True(t, cred.IsScript)

	vkh := mustEncode(t, DRepVKeyHRP, hash)
	cred, err = ParseDRepID(vkh)
	require.NoError(t, err)
	assert.False(t, cred.IsScript)
}

func TestParseDRepIDRejectsMalformed(t *testing.T) {
	hash := testHash(7)
	cases := map[string]string{
		"garbage":        "not-a-drep",
		"wrong prefix":   mustEncode(t, "pool", hash),
		"unknown header": mustEncode(t, DRepKeyHRP, append([]byte{0x99}, hash...)),
		"short payload":  mustEncode(t, DRepKeyHRP, hash[:20]),
		"empty":          "",
	}
	for name, id := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseDRepID(id)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidIdentifier))
		})
	}
}

func TestSpecialDRepsAreValidInEveryFormat(t *testing.T) {
	for _, id := range []string{DRepAlwaysAbstain, DRepAlwaysNoConfidence, DRepAlwaysYes, DRepAlwaysNo} {
		assert.NoError(t, ValidateDRepID(id))
		got105, err := ToCIP105(id)
		require.NoError(t, err)
		assert.Equal(t, id, got105)
		got129, err := ToCIP129(id)
		require.NoError(t, err)
		assert.Equal(t, id, got129)
		assert.Equal(t, []string{id}, DRepIDVariants(id))
	}
	assert.True(t, IsSpecialDRepID("  DRep_Always_Abstain "))
}

func TestDRepConversionRoundTripProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	hashGen := gen.SliceOfN(credentialHashSize, gen.UInt8())

	properties.Property("CIP-105 to CIP-129 and back returns the original identifier", prop.ForAll(
		func(hash []byte, script bool) bool {
			hrp := DRepKeyHRP
			if script {
				hrp = DRepScriptHRP
			}
			original, err := encodeBech32(hrp, hash)
			if err != nil {
				return false
			}
			cip129, err := ToCIP129(original)
			if err != nil {
				return false
			}
			back, err := ToCIP105(cip129)
			return err == nil && back == original
		},
		hashGen, gen.Bool(),
	))

	properties.Property("conversion is idempotent", prop.ForAll(
		func(hash []byte) bool {
			id, err := encodeBech32(DRepKeyHRP, hash)
			if err != nil {
				return false
			}
			once, err1 := ToCIP129(id)
			twice, err2 := ToCIP129(once)
			again, err3 := ToCIP105(id)
			againTwice, err4 := ToCIP105(again)
			return err1 == nil && err2 == nil && err3 == nil && err4 == nil &&
				once == twice && again == againTwice
		},
		hashGen,
	))

	properties.Property("decoding preserves the credential hash", prop.ForAll(
		func(hash []byte) bool {
			id, err := encodeBech32(DRepKeyHRP, append([]byte{cip129KeyHeader}, hash...))
			if err != nil {
				return false
			}
			decoded, err := DecodeDRepID(id)
			return err == nil && bytes.Equal(decoded, hash)
		},
		hashGen,
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestDRepIDVariants(t *testing.T) {
	hash := testHash(3)
	cip105 := mustEncode(t, DRepKeyHRP, hash)
	cip129 := mustEncode(t, DRepKeyHRP, append([]byte{0x22}, hash...))

	variants := DRepIDVariants(strings.ToUpper(cip105))
	assert.Contains(t, variants, cip105)
	assert.Contains(t, variants, cip129)
	assert.Contains(t, variants, hex.EncodeToString(hash))

	// both encodings expand to the same set
	assert.ElementsMatch(t, DRepIDVariants(cip105), DRepIDVariants(cip129))

	assert.Nil(t, DRepIDVariants("   "))
	assert.Equal(t, []string{"abcdef"}, DRepIDVariants("ABCDEF"))
}
