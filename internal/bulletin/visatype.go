package bulletin

import (
	"regexp"
	"strings"

	"visabulletin/lib/textutil"
)

type PreferenceGroup string

const (
	GROUP_EMPLOYMENT PreferenceGroup = "Employment-Based"
	GROUP_FAMILY     PreferenceGroup = "Family-Based"
	GROUP_DIVERSITY  PreferenceGroup = "Diversity Visa"
	GROUP_UNKNOWN    PreferenceGroup = "Unknown"
)

// checked in this order, "EB-" labels and the word employment are matched
// before the family pattern so employment rows never fall into family.
var visaTypePatterns = []struct {
	pattern *regexp.Regexp
	group   PreferenceGroup
}{
	{pattern: regexp.MustCompile(`(?i)\b(?:eb[- ]?[1-5]|employment)`), group: GROUP_EMPLOYMENT},
	{pattern: regexp.MustCompile(`(?i)\b(?:dv|diversity)\b`), group: GROUP_DIVERSITY},
	{pattern: regexp.MustCompile(`(?i)\b(?:f-?[1-4][ab]?|family)\b`), group: GROUP_FAMILY},
}

// ExtractVisaType classifies a block of text into exactly one preference
// group, GROUP_UNKNOWN when nothing matches.
func ExtractVisaType(text string) PreferenceGroup {
	for _, p := range visaTypePatterns {
		if p.pattern.MatchString(text) {
			return p.group
		}
	}
	return GROUP_UNKNOWN
}

var (
	ordinalRegex = regexp.MustCompile(`(?i)^([1-5])(?:st|nd|rd|th)\b\s*(.*)$`)
	ebRegex      = regexp.MustCompile(`(?i)^eb[- ]?([1-5])\b\s*(.*)$`)
	familyRegex  = regexp.MustCompile(`(?i)^f-?\s?([1-4][ab]?)$`)
	dvRegex      = regexp.MustCompile(`(?i)^dv(?:[- ](.+))?$`)
)

// CanonicalLabel turns a raw category cell into the label used to align
// snapshots. Spellings are unified ("EB2" and "eb-2" become "EB-2", "F-2a"
// becomes "F2A"), employment ordinals become EB codes while keeping their
// suffix ("5th Set Aside: Rural (20%)" becomes "EB-5 Set Aside: Rural (20%)")
// and diversity region rows become "DV-<REGION>".
func CanonicalLabel(raw string, group PreferenceGroup) string {
	label := textutil.CollapseSpace(raw)
	if label == "" {
		return ""
	}

	if m := ebRegex.FindStringSubmatch(label); m != nil {
		return joinLabel("EB-"+m[1], m[2])
	}
	if m := familyRegex.FindStringSubmatch(label); m != nil {
		return "F" + strings.ToUpper(m[1])
	}
	if group == GROUP_EMPLOYMENT {
		if m := ordinalRegex.FindStringSubmatch(label); m != nil {
			return joinLabel("EB-"+m[1], m[2])
		}
	}
	if m := dvRegex.FindStringSubmatch(label); m != nil {
		if m[1] == "" {
			return "DV"
		}
		return "DV-" + strings.ToUpper(textutil.CollapseSpace(m[1]))
	}
	if group == GROUP_DIVERSITY {
		return "DV-" + strings.ToUpper(label)
	}
	return label
}

func joinLabel(code, suffix string) string {
	suffix = strings.TrimSpace(suffix)
	if suffix == "" {
		return code
	}
	return code + " " + suffix
}

// SubscriptionCode returns the coarse code a subscriber picks for a label,
// "EB-5 Set Aside: Rural (20%)" is "EB-5" and every "DV-<REGION>" is "DV".
// Labels that have no code are returned as is.
func SubscriptionCode(label string) string {
	if m := ebRegex.FindStringSubmatch(label); m != nil {
		return "EB-" + m[1]
	}
	if m := familyRegex.FindStringSubmatch(label); m != nil {
		return "F" + strings.ToUpper(m[1])
	}
	if dvRegex.MatchString(label) {
		return "DV"
	}
	return label
}

// SubscriptionCodes lists every code a subscriber can pick.
var SubscriptionCodes = []string{
	"DV", "EB-1", "EB-2", "EB-3", "EB-4", "EB-5",
	"F1", "F2A", "F2B", "F3", "F4",
}
