package bulletin

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"visabulletin/lib/textutil"
)

type DateKind int

const (
	// DATE_UNPARSED holds cell text that is neither a date nor "Current".
	DATE_UNPARSED DateKind = iota
	DATE_SPECIFIC
	DATE_CURRENT
)

// DateValue is a normalized cutoff value. The zero value is an empty Unparsed
// value.
type DateValue struct {
	kind  DateKind
	year  int
	month time.Month
	day   int
	raw   string
}

func Specific(year int, month time.Month, day int) DateValue {
	return DateValue{kind: DATE_SPECIFIC, year: year, month: month, day: day}
}

func Current() DateValue {
	return DateValue{kind: DATE_CURRENT}
}

func Unparsed(raw string) DateValue {
	return DateValue{kind: DATE_UNPARSED, raw: raw}
}

// layouts accepted for cutoff cells, the month abbreviation is matched
// case-insensitively by time.Parse.
var dateLayouts = []string{
	"2 Jan 06",
	"2Jan06",
	"2 Jan 2006",
	"2Jan2006",
}

// ParseDateValue parses a bulletin cell. "C" and "Current" in any case are
// CurrentlyAvailable, dates in any of the accepted layouts are Specific and
// anything else is kept verbatim (whitespace collapsed) as Unparsed.
func ParseDateValue(text string) DateValue {
	text = textutil.CollapseSpace(text)
	if strings.EqualFold(text, "c") || strings.EqualFold(text, "current") {
		return Current()
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, text)
		if err == nil {
			return Specific(t.Year(), t.Month(), t.Day())
		}
	}
	return Unparsed(text)
}

func (d DateValue) Kind() DateKind {
	return d.kind
}

func (d DateValue) IsSpecific() bool {
	return d.kind == DATE_SPECIFIC
}

func (d DateValue) IsCurrent() bool {
	return d.kind == DATE_CURRENT
}

func (d DateValue) IsUnparsed() bool {
	return d.kind == DATE_UNPARSED
}

// Time returns the date at midnight UTC, ok is false for anything that is not
// Specific.
func (d DateValue) Time() (time.Time, bool) {
	if d.kind != DATE_SPECIFIC {
		return time.Time{}, false
	}
	return time.Date(d.year, d.month, d.day, 0, 0, 0, 0, time.UTC), true
}

// Raw returns the original text of an Unparsed value.
func (d DateValue) Raw() string {
	return d.raw
}

// String serializes the value as "DD MON YY", "Current" or the raw text.
func (d DateValue) String() string {
	switch d.kind {
	case DATE_SPECIFIC:
		return fmt.Sprintf(
			"%02d %s %02d",
			d.day,
			strings.ToUpper(d.month.String()[:3]),
			d.year%100,
		)
	case DATE_CURRENT:
		return "Current"
	default:
		return d.raw
	}
}

// Compare orders two values, ok is false when the pair has no ordering. Only
// Specific/Specific (chronological) and pairs involving CurrentlyAvailable with
// a Specific or another CurrentlyAvailable are ordered, CurrentlyAvailable is
// always the later one.
func (d DateValue) Compare(o DateValue) (ord int, ok bool) {
	switch {
	case d.kind == DATE_SPECIFIC && o.kind == DATE_SPECIFIC:
		a, _ := d.Time()
		b, _ := o.Time()
		return a.Compare(b), true
	case d.kind == DATE_CURRENT && o.kind == DATE_CURRENT:
		return 0, true
	case d.kind == DATE_SPECIFIC && o.kind == DATE_CURRENT:
		return -1, true
	case d.kind == DATE_CURRENT && o.kind == DATE_SPECIFIC:
		return 1, true
	}
	return 0, false
}

// Equal reports whether both values are the same variant with the same
// content.
func (d DateValue) Equal(o DateValue) bool {
	return d == o
}

func (d DateValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *DateValue) UnmarshalJSON(data []byte) error {
	var text string
	err := json.Unmarshal(data, &text)
	if err != nil {
		return fmt.Errorf("date value: %w", err)
	}
	*d = ParseDateValue(text)
	return nil
}
