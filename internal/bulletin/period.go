package bulletin

import (
	"fmt"
	"regexp"
	"strings"
)

const monthAlternatives = `January|February|March|April|May|June|July|August|September|October|November|December|` +
	`Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sept|Sep|Oct|Nov|Dec`

const monthYear = `\b(` + monthAlternatives + `)\.?,?\s+(\d{4})\b`

// tried in order, the first pattern that matches anywhere wins.
var periodPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)\bvisa\s+bulletin\s+for\s+` + monthYear),
	regexp.MustCompile(`(?is)\bcurrent\s+(?:visa\s+)?bulletin\b.*?` + monthYear),
	regexp.MustCompile(`(?i)` + monthYear),
}

var monthNames = map[string]string{
	"jan": "January", "feb": "February", "mar": "March", "apr": "April",
	"may": "May", "jun": "June", "jul": "July", "aug": "August",
	"sep": "September", "oct": "October", "nov": "November", "dec": "December",
}

// ExtractBulletinDate finds the bulletin period in the text of a document and
// normalizes it to "<Month> <Year>", ok is false when no month-year is found.
//
// A "Visa Bulletin For <month> <year>" title is preferred, then a month-year
// following a "current bulletin" marker, then the first month-year anywhere.
func ExtractBulletinDate(text string) (period string, ok bool) {
	for _, pattern := range periodPatterns {
		m := pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		month, found := monthNames[strings.ToLower(m[1][:3])]
		if !found {
			continue
		}
		return fmt.Sprintf("%s %s", month, m[2]), true
	}
	return "", false
}
