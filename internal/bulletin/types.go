package bulletin

import (
	"sort"
	"time"
)

// RawDocument is the input of one extraction call.
type RawDocument struct {
	Content    string
	SourceURL  string
	CapturedAt time.Time
}

// CategoryRecord is one visa category of one snapshot. Dates is keyed by
// lowercase country or slot keys ("china", "all_chargeability",
// "final_action_date").
type CategoryRecord struct {
	Category string
	Group    PreferenceGroup
	Dates    map[string]DateValue
}

// Keys returns the date keys of the record in sorted order.
func (r CategoryRecord) Keys() []string {
	keys := make([]string, 0, len(r.Dates))
	for k := range r.Dates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type TierName string

const (
	TIER_NONE  TierName = ""
	TIER_TABLE TierName = "table"
	TIER_DIV   TierName = "div"
	TIER_TEXT  TierName = "text"
)

// Snapshot is the result of one extraction.
type Snapshot struct {
	// BulletinDate is the bulletin period ("January 2026"), empty when the
	// document is not a bulletin.
	BulletinDate string
	ExtractedAt  time.Time
	SourceURL    string
	// NotBulletin is set when the document has no bulletin data, usually
	// because the landing page was fetched instead of a bulletin.
	NotBulletin bool
	// Tier is the extraction tier that produced Categories.
	Tier       TierName
	Categories []CategoryRecord
}

// Category returns the record with the given label.
func (s Snapshot) Category(label string) (CategoryRecord, bool) {
	for _, c := range s.Categories {
		if c.Category == label {
			return c, true
		}
	}
	return CategoryRecord{}, false
}

// Labels returns the category labels in extraction order.
func (s Snapshot) Labels() []string {
	labels := make([]string, len(s.Categories))
	for i, c := range s.Categories {
		labels[i] = c.Category
	}
	return labels
}
