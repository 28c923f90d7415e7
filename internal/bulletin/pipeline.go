package bulletin

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"visabulletin/internal/components/assert"
	"visabulletin/internal/components/chrono"
	"visabulletin/internal/components/telemetry"
	"visabulletin/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

const (
	report_parse      = "extract.parse"
	report_period     = "extract.period"
	report_tier       = "extract.tier"
	report_dedupe     = "extract.dedupe"
	report_categories = "extract.categories"
)

// MalformedInputError is returned when a document cannot be parsed as markup
// at all.
type MalformedInputError struct {
	Reason string
	Cause  error
}

func (e *MalformedInputError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("malformed input: %s: %s", e.Reason, e.Cause)
	}
	return fmt.Sprintf("malformed input: %s", e.Reason)
}

func (e *MalformedInputError) Unwrap() error {
	return e.Cause
}

// IsMalformedInput reports whether err is, or wraps, a MalformedInputError.
func IsMalformedInput(err error) bool {
	var target *MalformedInputError
	return errors.As(err, &target)
}

// Tier is one extraction strategy, ok is true when it found at least one
// record.
type Tier interface {
	Name() TierName
	Extract(doc *goquery.Document) (records []CategoryRecord, ok bool)
}

// Extractor runs the tiers in priority order over a document and keeps the
// records of the first tier that finds any, tiers are never merged.
//
// An Extractor holds no state between calls and is safe for concurrent use.
type Extractor struct {
	tel   telemetry.API
	time  chrono.API
	tiers []Tier
}

// NewExtractor creates an Extractor with the table, div and text tiers.
func NewExtractor(tel telemetry.API, time chrono.API) Extractor {
	assert.NotNil(tel)
	return NewExtractorWithTiers(
		tel,
		time,
		NewTableTier(tel),
		NewDivTier(tel),
		NewTextTier(tel),
	)
}

// NewExtractorWithTiers creates an Extractor with a custom tier order.
func NewExtractorWithTiers(tel telemetry.API, time chrono.API, tiers ...Tier) Extractor {
	assert.NotNil(tel)
	assert.NotNil(time)
	return Extractor{
		tel:   tel,
		time:  time,
		tiers: tiers,
	}
}

// Extract turns a raw document into a snapshot. The only error returned is a
// *MalformedInputError, a document without bulletin data yields a snapshot
// with NotBulletin set and no categories.
func (e Extractor) Extract(raw RawDocument) (Snapshot, error) {
	if strings.TrimSpace(raw.Content) == "" {
		return Snapshot{}, &MalformedInputError{Reason: "empty document"}
	}
	if !utf8.ValidString(raw.Content) {
		return Snapshot{}, &MalformedInputError{Reason: "document is not valid utf-8"}
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw.Content))
	if err != nil {
		e.tel.ReportBroken(report_parse, err, raw.SourceURL)
		return Snapshot{}, &MalformedInputError{Reason: "parse markup", Cause: err}
	}

	snapshot := Snapshot{
		ExtractedAt: e.time.Now(),
		SourceURL:   raw.SourceURL,
		Categories:  []CategoryRecord{},
	}

	period, ok := ExtractBulletinDate(strings.Join(htmlutil.GetBlockText(doc.Get(0)), "\n"))
	if !ok {
		e.tel.ReportDebug(report_period, "no bulletin period found", raw.SourceURL)
		snapshot.NotBulletin = true
		e.tel.ReportCount(report_categories, 0)
		return snapshot, nil
	}

	tier, records := e.runTiers(doc)
	if len(records) == 0 {
		e.tel.ReportDebug(report_tier, "no tier found any records", raw.SourceURL)
		snapshot.NotBulletin = true
		e.tel.ReportCount(report_categories, 0)
		return snapshot, nil
	}

	snapshot.BulletinDate = period
	snapshot.Tier = tier
	snapshot.Categories = e.dedupe(tier, records)
	e.tel.ReportCount(report_categories, int64(len(snapshot.Categories)))
	return snapshot, nil
}

func (e Extractor) runTiers(doc *goquery.Document) (TierName, []CategoryRecord) {
	for _, tier := range e.tiers {
		records, ok := tier.Extract(doc)
		if ok && len(records) > 0 {
			e.tel.ReportDebug(report_tier, string(tier.Name()), len(records))
			return tier.Name(), records
		}
		e.tel.ReportDebug(report_tier, string(tier.Name()), "no records")
	}
	return TIER_NONE, nil
}

// dedupe keeps the first record of every label, the first chart of a
// bulletin is the final action chart.
func (e Extractor) dedupe(tier TierName, records []CategoryRecord) []CategoryRecord {
	seen := map[string]bool{}
	out := make([]CategoryRecord, 0, len(records))
	for _, r := range records {
		if seen[r.Category] {
			e.tel.ReportWarning(report_dedupe, r.Category, string(tier))
			continue
		}
		seen[r.Category] = true
		out = append(out, r)
	}
	return out
}
