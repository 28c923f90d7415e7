package bulletin

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractVisaType(t *testing.T) {
	cases := []struct {
		text     string
		expected PreferenceGroup
	}{
		{text: "EB-1", expected: GROUP_EMPLOYMENT},
		{text: "EB2", expected: GROUP_EMPLOYMENT},
		{text: "Employment-based", expected: GROUP_EMPLOYMENT},
		// "EB-" labels share the "-" with the family pattern
		{text: "EB-4 Certain Religious Workers", expected: GROUP_EMPLOYMENT},
		{text: "F1", expected: GROUP_FAMILY},
		{text: "F2A", expected: GROUP_FAMILY},
		{text: "Family-Sponsored", expected: GROUP_FAMILY},
		{text: "DV", expected: GROUP_DIVERSITY},
		{text: "DV-AFRICA", expected: GROUP_DIVERSITY},
		{text: "Diversity Immigrant Category", expected: GROUP_DIVERSITY},
		{text: "1st", expected: GROUP_UNKNOWN},
		{text: "Other Workers", expected: GROUP_UNKNOWN},
		{text: "Chief", expected: GROUP_UNKNOWN},
		{text: "", expected: GROUP_UNKNOWN},
	}

	for _, c := range cases {
		require.Equal(t, c.expected, ExtractVisaType(c.text), c.text)
	}
}

func TestCanonicalLabel(t *testing.T) {
	cases := []struct {
		raw      string
		group    PreferenceGroup
		expected string
	}{
		{raw: "EB-2", group: GROUP_EMPLOYMENT, expected: "EB-2"},
		{raw: "eb2", group: GROUP_EMPLOYMENT, expected: "EB-2"},
		{raw: "1st", group: GROUP_EMPLOYMENT, expected: "EB-1"},
		{raw: "5th Set Aside: Rural (20%)", group: GROUP_EMPLOYMENT, expected: "EB-5 Set Aside: Rural (20%)"},
		{raw: "5th  Unreserved (including C5, T5, I5, R5, NU, RU)", group: GROUP_EMPLOYMENT, expected: "EB-5 Unreserved (including C5, T5, I5, R5, NU, RU)"},
		{raw: "Other Workers", group: GROUP_EMPLOYMENT, expected: "Other Workers"},
		{raw: "1st", group: GROUP_UNKNOWN, expected: "1st"},
		{raw: "F-1", group: GROUP_FAMILY, expected: "F1"},
		{raw: "f2a", group: GROUP_FAMILY, expected: "F2A"},
		{raw: "AFRICA", group: GROUP_DIVERSITY, expected: "DV-AFRICA"},
		{raw: "DV-Asia", group: GROUP_DIVERSITY, expected: "DV-ASIA"},
		{raw: "DV", group: GROUP_DIVERSITY, expected: "DV"},
		{raw: "  ", group: GROUP_UNKNOWN, expected: ""},
	}

	for _, c := range cases {
		require.Equal(t, c.expected, CanonicalLabel(c.raw, c.group), c.raw)
	}
}

func TestSubscriptionCode(t *testing.T) {
	cases := []struct {
		label    string
		expected string
	}{
		{label: "EB-5 Set Aside: Rural (20%)", expected: "EB-5"},
		{label: "EB-2", expected: "EB-2"},
		{label: "DV-AFRICA", expected: "DV"},
		{label: "F2A", expected: "F2A"},
		{label: "Other Workers", expected: "Other Workers"},
	}

	for _, c := range cases {
		require.Equal(t, c.expected, SubscriptionCode(c.label), c.label)
	}
}
