package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashRoundTrip(t *testing.T) {
	var h Hasher

	hash, err := h.Hash("Sup3r!secret")
	require.NoError(t, err)

	salt, digest, ok := strings.Cut(hash, ":")
	require.True(t, ok, "expected salt:digest format, got %q", hash)
	assert.Len(t, salt, saltLength*2)
	assert.Len(t, digest, keyLength*2)

	assert.True(t, h.Verify("Sup3r!secret", hash))
	assert.False(t, h.Verify("Sup3r!secre", hash))
	assert.False(t, h.Verify("", hash))
}

func TestHashIsSalted(t *testing.T) {
	var h Hasher

	first, err := h.Hash("Sup3r!secret")
	require.NoError(t, err)
	second, err := h.Hash("Sup3r!secret")
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "two hashes of the same password must differ")
	assert.True(t, h.Verify("Sup3r!secret", first))
	assert.True(t, h.Verify("Sup3r!secret", second))
}

func TestVerifyMalformed(t *testing.T) {
	var h Hasher

	for _, stored := range []string{
		"",
		"no-separator",
		":missingsalt",
		"missingdigest:",
		"salt:not-hex",
		"salt:abcd", // digest too short
	} {
		assert.False(t, h.Verify("whatever", stored), "stored=%q", stored)
	}
}

func TestIsStrong(t *testing.T) {
	var h Hasher

	cases := []struct {
		password string
		strong   bool
	}{
		{"Str0ng!Pass", true},
		{"aB3$efgh", true},
		{"short1!", false},        // under minimum length
		{"alllowercase1!", false}, // no upper
		{"ALLUPPERCASE1!", false}, // no lower
		{"NoDigitsHere!", false},
		{"NoPunct123ab", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.strong, h.IsStrong(tc.password), "password=%q", tc.password)
	}
}

func TestGenerate(t *testing.T) {
	var h Hasher

	pw, err := h.Generate(24)
	require.NoError(t, err)
	assert.Len(t, pw, 24)
	for _, c := range pw {
		assert.Contains(t, generateAlphabet, string(c))
	}

	_, err = h.Generate(0)
	assert.Error(t, err)
}
