package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "mediashare/pkg/domain-errors"
)

// TestParseIdentifiers_Invariants validates the parsing invariant:
// "identifiers are trimmed, non-empty, bounded and printable".
func TestParseIdentifiers_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseAssetID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("trims surrounding whitespace", func(t *testing.T) {
		id, err := ParseAssetID("  m1 ")
		require.NoError(t, err)
		assert.Equal(t, AssetID("m1"), id)
	})

	t.Run("keeps interior spaces", func(t *testing.T) {
		owner, err := ParseOwnerID("  alice smith ")
		require.NoError(t, err)
		assert.Equal(t, OwnerID("alice smith"), owner)
	})

	t.Run("accepts base58 account keys as owners", func(t *testing.T) {
		key := "2mBqyTHjXrqfk7gikAsbD8evVzUmAuKBmVK2pq2uHCaz"
		owner, err := ParseOwnerID(key)
		require.NoError(t, err)
		assert.Equal(t, key, owner.String())
	})
}

func TestParseIdentifiers_SecurityInvariants(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"Null byte injection", "m1\x00suffix", true},
		{"Oversized input", strings.Repeat("a", MaxIDLength+1), true},
		{"Unicode zero-width space", "m\u200B1", true},
		{"Embedded tab", "media\tone", true},
		{"Line separator", "media\u2028one", true},
		{"Whitespace only", "   ", true},
		{"Invalid UTF-8", string([]byte{0xff, 0xfe}), true},

		{"Max length", strings.Repeat("a", MaxIDLength), false},
		{"Path-like id", "catalog/2024/m1", false},
		{"Interior space", "alice smith", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errAsset := ParseAssetID(tt.input)
			_, errOwner := ParseOwnerID(tt.input)
			if tt.wantErr {
				require.Error(t, errAsset)
				require.Error(t, errOwner)
				assert.True(t, dErrors.HasCode(errAsset, dErrors.CodeInvalidInput))
				return
			}
			require.NoError(t, errAsset)
			require.NoError(t, errOwner)
		})
	}
}

func TestParseTitle(t *testing.T) {
	title, err := ParseTitle("  Night Drive  ")
	require.NoError(t, err)
	assert.Equal(t, "Night Drive", title)

	_, err = ParseTitle(" ")
	require.Error(t, err)

	_, err = ParseTitle(strings.Repeat("x", MaxTitleLength+1))
	require.Error(t, err)

	// spaces are fine inside titles
	_, err = ParseTitle("Title With Spaces")
	require.NoError(t, err)
}
