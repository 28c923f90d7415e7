package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in  string
		out string
	}{
		{in: "  Preference Level  ", out: "preference level"},
		{in: "CHINA-mainland born", out: "china mainland born"},
		{in: "Employment\n\t  Preference", out: "employment preference"},
		{in: "Date(s) for Filing", out: "date s for filing"},
		{in: "---", out: ""},
	}

	for _, c := range cases {
		require.Equal(t, c.out, Normalize(c.in), c.in)
	}
}

func TestContainsPhrase(t *testing.T) {
	cases := []struct {
		haystack string
		phrase   string
		expected bool
	}{
		{haystack: "Final Action Date", phrase: "action date", expected: true},
		{haystack: "Final Action Dates", phrase: "action date", expected: false},
		{haystack: "CHINA-mainland born", phrase: "china", expected: true},
		{haystack: "Chinatown", phrase: "china", expected: false},
		{haystack: "anything", phrase: "  ", expected: false},
	}

	for _, c := range cases {
		require.Equal(t, c.expected, ContainsPhrase(c.haystack, c.phrase), "%q in %q", c.phrase, c.haystack)
	}
}

func TestSlug(t *testing.T) {
	require.Equal(t, "some_custom_header", Slug("Some Custom Header"))
	require.Equal(t, "rank_cut_off", Slug(" Rank Cut-Off "))
	require.True(t, MatchAny("Dates for Filing", []string{"final action", "for filing"}))
}
