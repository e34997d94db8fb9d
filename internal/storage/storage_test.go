package storage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/parlcrawl/internal/crawler"
)

func TestProfileFileNameRoundTrip(t *testing.T) {
	t.Parallel()

	cases := []struct {
		key  crawler.ProfileKey
		name string
	}{
		{crawler.ProfileKey{EntityID: "1234", DisplayName: "Macdonald,John_A."}, "1234-Macdonald,John_A..json"},
		{crawler.ProfileKey{EntityID: "doe-jane", DisplayName: "Doe, Jane"}, "doe%2Djane-Doe, Jane.json"},
		{crawler.ProfileKey{EntityID: "R36", DisplayName: "a/b"}, "R36-a_b.json"},
	}
	for _, tc := range cases {
		name, err := ProfileFileName(tc.key)
		require.NoError(t, err)
		require.Equal(t, tc.name, name)

		parsed, ok := ParseProfileFileName(name)
		require.True(t, ok)
		require.Equal(t, tc.key.EntityID, parsed.EntityID)
	}
}

func TestProfileFileNameDefaultsDisplay(t *testing.T) {
	t.Parallel()

	name, err := ProfileFileName(crawler.ProfileKey{EntityID: "42"})
	require.NoError(t, err)
	require.Equal(t, "42-42.json", name)

	_, err = ProfileFileName(crawler.ProfileKey{DisplayName: "x"})
	require.Error(t, err)
}

func TestParseProfileFileNameRejectsOtherFiles(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"notes.txt", "1234.json", "-x.json", "12-x.json.tmp", "%zz-x.json"} {
		_, ok := ParseProfileFileName(name)
		require.False(t, ok, name)
	}
}

func TestIDPrefixDoesNotCollide(t *testing.T) {
	t.Parallel()

	require.Equal(t, "12-", IDPrefix("12"))
	require.NotEqual(t, IDPrefix("12"), IDPrefix("12-3")[:3])
}

func TestSortKeys(t *testing.T) {
	t.Parallel()

	keys := []crawler.ProfileKey{{EntityID: "2", DisplayName: "B"}, {EntityID: "3", DisplayName: "A"}, {EntityID: "1", DisplayName: "B"}}
	SortKeys(keys)
	require.Equal(t, []crawler.ProfileKey{{EntityID: "3", DisplayName: "A"}, {EntityID: "1", DisplayName: "B"}, {EntityID: "2", DisplayName: "B"}}, keys)
}

func TestProfileFileNameScopedByType(t *testing.T) {
	t.Parallel()

	id := crawler.ProfileID(crawler.DocAUBiography, "00AMV")
	name, err := ProfileFileName(crawler.ProfileKey{EntityID: id, DisplayName: "Abbott, Tony"})
	require.NoError(t, err)
	require.Equal(t, "au.biography/00AMV-Abbott, Tony.json", name)

	parsed, ok := ParseProfileFileName(name)
	require.True(t, ok)
	require.Equal(t, id, parsed.EntityID)
	require.Equal(t, crawler.DocAUBiography, parsed.Type())
	require.Equal(t, "00AMV", parsed.Entity())

	other, err := ProfileFileName(crawler.ProfileKey{EntityID: crawler.ProfileID(crawler.DocAUParliamentarian, "00AMV")})
	require.NoError(t, err)
	require.NotEqual(t, name, other)
	require.Equal(t, "au.parliamentarian/00AMV-00AMV.json", other)

	_, ok = ParseProfileFileName("au.members/00AMV-x.json")
	require.False(t, ok, "listing types are not profile directories")
}

func TestClaimNameIsNotAProfile(t *testing.T) {
	t.Parallel()

	claim := ClaimName(crawler.ProfileID(crawler.DocCAProfile, "42"))
	require.Equal(t, "ca.profile/42-.claim", claim)
	_, ok := ParseProfileFileName(claim)
	require.False(t, ok)
}
