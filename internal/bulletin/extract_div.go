package bulletin

import (
	"fmt"
	"regexp"
	"strings"

	"visabulletin/internal/components/assert"
	"visabulletin/internal/components/telemetry"
	"visabulletin/lib/textutil"

	"github.com/PuerkitoBio/goquery"
)

const report_div_block = "extract.div"

const (
	blockSelector  = "div, span, p, li, dt, dd, strong, b, label, h3, h4, h5, h6"
	maxLabelLength = 80
)

var (
	blockLabelRegex = regexp.MustCompile(
		`(?i)^(?:eb[- ]?[1-5]\b.*|f-?\s?[1-4][ab]?|dv(?:[- ].+)?|[1-5](?:st|nd|rd|th)\b.*|other workers.*)$`,
	)
	dateTokenRegex = regexp.MustCompile(`\b\d{1,2}\s?[A-Za-z]{3}\s?\d{2}(?:\d{2})?\b|(?i:\bcurrent\b)|\bC\b`)
	keyValueRegex  = regexp.MustCompile(`^(.+?)\s*:\s*(.+)$`)
)

// keyAttributes are checked in order on value blocks that name their own
// column.
var keyAttributes = []string{"data-country", "data-field", "data-key", "data-label"}

// DivTier extracts records from block markup where a category label block is
// followed by sibling value blocks:
//
//	<div class="row"><div>EB-2</div><div>01 SEP 21</div></div>
//	<dl><dt>EB-2</dt><dd>China: 01 SEP 21</dd></dl>
//
// Value blocks are keyed by a data attribute, a "key: value" text, a header row
// of blocks preceding the row, or their position in that order.
type DivTier struct {
	tel telemetry.API
}

func NewDivTier(tel telemetry.API) DivTier {
	assert.NotNil(tel)
	return DivTier{tel: tel}
}

func (DivTier) Name() TierName {
	return TIER_DIV
}

func (t DivTier) Extract(doc *goquery.Document) ([]CategoryRecord, bool) {
	var records []CategoryRecord
	doc.Find(blockSelector).Each(func(_ int, block *goquery.Selection) {
		if !isLabelBlock(block) {
			return
		}
		record, ok := t.extractBlock(block)
		if ok {
			records = append(records, record)
		}
	})
	return records, len(records) > 0
}

func blockText(sel *goquery.Selection) string {
	return textutil.CollapseSpace(sel.Text())
}

func looksLikeLabel(sel *goquery.Selection) bool {
	text := blockText(sel)
	return text != "" &&
		len(text) <= maxLabelLength &&
		blockLabelRegex.MatchString(text) &&
		!dateTokenRegex.MatchString(text)
}

// isLabelBlock reports whether the block holds only a category label and is
// followed by at least one sibling carrying a date.
func isLabelBlock(sel *goquery.Selection) bool {
	if !looksLikeLabel(sel) {
		return false
	}
	found := false
	sel.NextAll().EachWithBreak(func(_ int, sibling *goquery.Selection) bool {
		if looksLikeLabel(sibling) {
			return false
		}
		if dateTokenRegex.MatchString(blockText(sibling)) {
			found = true
			return false
		}
		return true
	})
	return found
}

// headerKeys looks for a header row of blocks before the row containing the
// label, ok is false when there is none.
func headerKeys(row *goquery.Selection) (keys []string, text string, ok bool) {
	width := row.Children().Length()
	row.PrevAll().EachWithBreak(func(_ int, prev *goquery.Selection) bool {
		children := prev.Children()
		if children.Length() != width {
			return true
		}
		candidate := make([]string, width)
		recognized := 0
		children.Each(func(i int, child *goquery.Selection) {
			key := NormalizeHeader(blockText(child))
			if key != FieldUnrecognized {
				recognized++
			}
			candidate[i] = key
		})
		if recognized == 0 {
			return true
		}
		keys, text, ok = candidate, blockText(prev), true
		return false
	})
	return keys, text, ok
}

func (t DivTier) extractBlock(label *goquery.Selection) (CategoryRecord, bool) {
	rawLabel := blockText(label)
	row := label.Parent()
	header, headerText, hasHeader := headerKeys(row)

	group := ExtractVisaType(rawLabel)
	if group == GROUP_UNKNOWN && hasHeader {
		group = ExtractVisaType(headerText)
	}

	dates := map[string]DateValue{}
	positional := 0
	label.NextAll().EachWithBreak(func(_ int, value *goquery.Selection) bool {
		if looksLikeLabel(value) {
			return false
		}
		text := blockText(value)
		if text == "" {
			return true
		}

		key, cell := valueKey(value, text)
		if key == "" && hasHeader {
			idx := value.Index()
			if idx >= 0 && idx < len(header) && header[idx] != FieldUnrecognized && !IsLabelField(header[idx]) {
				key = header[idx]
			}
		}

		parsed := ParseDateValue(cell)
		if key == "" {
			// without a key only blocks that are clearly dates are kept
			if parsed.IsUnparsed() {
				return true
			}
			key = positionalKey(positional)
			positional++
		}
		if _, exists := dates[key]; !exists {
			dates[key] = parsed
		}
		return true
	})

	if len(dates) == 0 {
		t.tel.ReportDebug(report_div_block, rawLabel, "no values")
		return CategoryRecord{}, false
	}
	return CategoryRecord{
		Category: CanonicalLabel(rawLabel, group),
		Group:    group,
		Dates:    dates,
	}, true
}

// valueKey returns the key a value block names itself with and the text of
// its value, key is empty when the block does not name one.
func valueKey(value *goquery.Selection, text string) (key string, cell string) {
	for _, attr := range keyAttributes {
		name, ok := value.Attr(attr)
		if !ok || strings.TrimSpace(name) == "" {
			continue
		}
		key, _ = columnKey(name)
		if key != "" {
			return key, text
		}
	}
	m := keyValueRegex.FindStringSubmatch(text)
	if m != nil && !ParseDateValue(m[2]).IsUnparsed() {
		key, _ = columnKey(m[1])
		if key != "" {
			return key, m[2]
		}
	}
	return "", text
}

// apart from the two charts every bulletin has, positional values are
// numbered.
func positionalKey(n int) string {
	switch n {
	case 0:
		return FieldFinalActionDate
	case 1:
		return FieldFilingDate
	}
	return fmt.Sprintf("date_%d", n+1)
}
