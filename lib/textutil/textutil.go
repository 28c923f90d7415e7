package textutil

import (
	"regexp"
	"strings"
	"unicode"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// CollapseSpace trims the string and replaces every run of whitespace with a
// single space.
func CollapseSpace(s string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(s, " "))
}

// Normalize lowercases the string, turns every rune that is not a letter or a
// digit into a space and collapses the result.
//
// ex. "  CHINA-mainland  born" -> "china mainland born"
func Normalize(s string) string {
	var out strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			out.WriteRune(r)
			continue
		}
		out.WriteRune(' ')
	}
	return CollapseSpace(out.String())
}

// ContainsPhrase reports whether the normalized haystack contains the
// normalized phrase on word boundaries, "action date" is contained in
// "final action date" but "date" is not contained in "dates".
func ContainsPhrase(haystack, phrase string) bool {
	phrase = Normalize(phrase)
	if phrase == "" {
		return false
	}
	return strings.Contains(" "+Normalize(haystack)+" ", " "+phrase+" ")
}

// Slug turns a string into a lowercase identifier with underscores.
//
// ex. "Some Custom Header" -> "some_custom_header"
func Slug(s string) string {
	return strings.ReplaceAll(Normalize(s), " ", "_")
}

// MatchAny reports whether any of the phrases is contained in s, see
// ContainsPhrase.
func MatchAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if ContainsPhrase(s, p) {
			return true
		}
	}
	return false
}
