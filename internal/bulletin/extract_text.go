package bulletin

import (
	"regexp"
	"strings"

	"visabulletin/internal/components/assert"
	"visabulletin/internal/components/telemetry"
	"visabulletin/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

const report_text_line = "extract.text"

var (
	lineLabelRegex = regexp.MustCompile(`\b(EB-?\s?[1-5]|F-?[1-4][AB]?|DV)\b`)
	countryRegex   = regexp.MustCompile(
		`(?i)\b(all chargeability(?: areas)?|china(?:[- ]mainland born)?|india|mexico|philippines|el salvador(?:[ ,]+guatemala)?(?:[ ,]+(?:and )?honduras)?|vietnam)\s*[:\-]?\s*(` +
			dateTokenRegex.String() + `)`,
	)
)

// TextTier is the last resort, it matches category labels followed by dates
// line by line over the text of the page.
type TextTier struct {
	tel telemetry.API
}

func NewTextTier(tel telemetry.API) TextTier {
	assert.NotNil(tel)
	return TextTier{tel: tel}
}

func (TextTier) Name() TierName {
	return TIER_TEXT
}

func (t TextTier) Extract(doc *goquery.Document) ([]CategoryRecord, bool) {
	var records []CategoryRecord
	for _, line := range htmlutil.GetBlockText(doc.Get(0)) {
		record, ok := extractLine(strings.ReplaceAll(line, "\t", " "))
		if !ok {
			continue
		}
		t.tel.ReportDebug(report_text_line, record.Category, line)
		records = append(records, record)
	}
	return records, len(records) > 0
}

func extractLine(line string) (CategoryRecord, bool) {
	loc := lineLabelRegex.FindStringSubmatchIndex(line)
	if loc == nil {
		return CategoryRecord{}, false
	}
	rawLabel := line[loc[2]:loc[3]]
	rest := line[loc[1]:]

	dates := map[string]DateValue{}
	for _, m := range countryRegex.FindAllStringSubmatch(rest, -1) {
		value := ParseDateValue(m[2])
		if value.IsUnparsed() {
			continue
		}
		key := NormalizeHeader(m[1])
		if _, exists := dates[key]; !exists {
			dates[key] = value
		}
	}
	if len(dates) == 0 {
		n := 0
		for _, token := range dateTokenRegex.FindAllString(rest, -1) {
			value := ParseDateValue(token)
			if value.IsUnparsed() {
				continue
			}
			dates[positionalKey(n)] = value
			n++
		}
	}
	if len(dates) == 0 {
		return CategoryRecord{}, false
	}

	group := ExtractVisaType(rawLabel)
	return CategoryRecord{
		Category: CanonicalLabel(rawLabel, group),
		Group:    group,
		Dates:    dates,
	}, true
}
