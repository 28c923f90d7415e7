package bulletin

import (
	"testing"

	"visabulletin/lib/textutil"

	"github.com/stretchr/testify/require"
)

func TestNormalizeHeader(t *testing.T) {
	cases := []struct {
		header   string
		expected string
	}{
		{header: "Preference Level", expected: FieldPreferenceLevel},
		{header: "  PREFERENCE   LEVEL ", expected: FieldPreferenceLevel},
		{header: "Visa Category", expected: FieldVisaCategory},
		{header: "Category", expected: FieldCategory},
		{header: "Family Preference", expected: FieldFamilyPreference},
		{header: "Family-Sponsored", expected: FieldFamilySponsored},
		{header: "Employment-based", expected: FieldEmploymentBased},
		{header: "Employment  Preference", expected: FieldEmploymentPreference},
		{header: "Final Action Date", expected: FieldFinalActionDate},
		{header: "Action Date", expected: FieldActionDate},
		{header: "Cutoff Date", expected: FieldCutoffDate},
		{header: "Cut-off Date", expected: FieldCutoffDate},
		{header: "Dates for Filing", expected: FieldFilingDate},
		{header: "All Chargeability Areas Except Those Listed", expected: FieldAllChargeability},
		{header: "CHINA-mainland born", expected: FieldChina},
		{header: "INDIA", expected: FieldIndia},
		{header: "EL SALVADOR GUATEMALA HONDURAS", expected: FieldElSalvador},
		{header: "Region", expected: FieldRegion},
		{header: "Some Custom Header", expected: FieldUnrecognized},
		{header: "", expected: FieldUnrecognized},
	}

	for _, c := range cases {
		require.Equal(t, c.expected, NormalizeHeader(c.header), c.header)
	}
}

// A phrase that is contained in a later phrase would shadow it, the later one
// could never match.
func TestHeaderPatternsMostSpecificFirst(t *testing.T) {
	for i, earlier := range headerPatterns {
		for _, later := range headerPatterns[i+1:] {
			require.False(
				t,
				textutil.ContainsPhrase(later.phrase, earlier.phrase),
				"%q shadows %q", earlier.phrase, later.phrase,
			)
		}
	}
}

func TestHeaderPatternsMatchThemselves(t *testing.T) {
	for _, p := range headerPatterns {
		require.Equal(t, p.key, NormalizeHeader(p.phrase), p.phrase)
		require.Equal(t, p.phrase, textutil.Normalize(p.phrase), "phrase must be normalized")
	}
}

func TestColumnKeyFallback(t *testing.T) {
	key, ok := columnKey("Some Custom Header")
	require.False(t, ok)
	require.Equal(t, "some_custom_header", key)

	key, ok = columnKey("China")
	require.True(t, ok)
	require.Equal(t, FieldChina, key)
}
