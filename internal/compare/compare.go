package compare

import (
	"errors"
	"time"

	"visabulletin/internal/bulletin"
	"visabulletin/internal/components/assert"
	"visabulletin/internal/components/chrono"
	"visabulletin/internal/components/telemetry"
)

const (
	report_compare_changes = "compare.changes"
	report_compare_added   = "compare.added"
	report_compare_removed = "compare.removed"
)

// ErrMissingSnapshot is returned when either snapshot given to Compare is nil.
var ErrMissingSnapshot = errors.New("compare: missing snapshot")

type Direction string

const (
	ADVANCED       Direction = "ADVANCED"
	RETROGRESSED   Direction = "RETROGRESSED"
	BECAME_CURRENT Direction = "BECAME_CURRENT"
	LOST_CURRENT   Direction = "LOST_CURRENT"
	CHANGED        Direction = "CHANGED"
)

// Label returns the direction in title case, for display.
func (d Direction) Label() string {
	switch d {
	case ADVANCED:
		return "Advanced"
	case RETROGRESSED:
		return "Retrogressed"
	case BECAME_CURRENT:
		return "Became Current"
	case LOST_CURRENT:
		return "Lost Current"
	}
	return "Changed"
}

// Favorable reports whether the direction means more visas are available.
func (d Direction) Favorable() bool {
	return d == ADVANCED || d == BECAME_CURRENT
}

// Classify returns the direction of the change from p to c, changed is false
// when the values are the same.
//
// Ordered pairs are classified by their ordering. A pair with an Unparsed
// side cannot be ordered, it is CHANGED when the serialized values differ.
func Classify(p, c bulletin.DateValue) (direction Direction, changed bool) {
	ord, ok := p.Compare(c)
	if !ok {
		if p.String() == c.String() {
			return "", false
		}
		return CHANGED, true
	}
	if ord == 0 {
		return "", false
	}

	switch {
	case p.IsSpecific() && c.IsSpecific():
		if ord < 0 {
			return ADVANCED, true
		}
		return RETROGRESSED, true
	case c.IsCurrent():
		return BECAME_CURRENT, true
	default:
		return LOST_CURRENT, true
	}
}

// FieldChange is one cell that differs between two snapshots.
type FieldChange struct {
	Category  string
	Country   string
	Previous  bulletin.DateValue
	Current   bulletin.DateValue
	Direction Direction
}

// Result is the difference between two snapshots.
type Result struct {
	PreviousPeriod string
	CurrentPeriod  string
	ComparedAt     time.Time
	// Added and Removed list the labels only present in the current or in the
	// previous snapshot, they never have FieldChange entries.
	Added             []string
	Removed           []string
	ChangedCategories int
	Changes           []FieldChange
}

// HasChanges is true when any field changed or any category was added or
// removed.
func (r Result) HasChanges() bool {
	return len(r.Changes) > 0 || len(r.Added) > 0 || len(r.Removed) > 0
}

func (r Result) TotalFieldChanges() int {
	return len(r.Changes)
}

// ChangesFor returns the changes of one category label.
func (r Result) ChangesFor(category string) []FieldChange {
	var out []FieldChange
	for _, c := range r.Changes {
		if c.Category == category {
			out = append(out, c)
		}
	}
	return out
}

// ChangedLabels returns every label that differs in any way, in the order
// changed, added, removed.
func (r Result) ChangedLabels() []string {
	seen := map[string]bool{}
	var out []string
	add := func(label string) {
		if !seen[label] {
			seen[label] = true
			out = append(out, label)
		}
	}
	for _, c := range r.Changes {
		add(c.Category)
	}
	for _, l := range r.Added {
		add(l)
	}
	for _, l := range r.Removed {
		add(l)
	}
	return out
}

// Empty returns the result of comparing a snapshot with nothing, used to
// announce the first bulletin ever fetched.
func Empty(current bulletin.Snapshot, at time.Time) Result {
	return Result{
		CurrentPeriod: current.BulletinDate,
		ComparedAt:    at,
	}
}

// Engine aligns two snapshots by category label and diffs every country key
// they share.
type Engine struct {
	tel  telemetry.API
	time chrono.API
}

func NewEngine(tel telemetry.API, time chrono.API) Engine {
	assert.NotNil(tel)
	assert.NotNil(time)
	return Engine{tel: tel, time: time}
}

// Compare diffs previous against current. Changes are ordered by the category
// order of current, then by country key.
func (e Engine) Compare(previous, current *bulletin.Snapshot) (Result, error) {
	if previous == nil || current == nil {
		return Result{}, ErrMissingSnapshot
	}

	result := Result{
		PreviousPeriod: previous.BulletinDate,
		CurrentPeriod:  current.BulletinDate,
		ComparedAt:     e.time.Now(),
	}

	previousIndex := make(map[string]bulletin.CategoryRecord, len(previous.Categories))
	for _, record := range previous.Categories {
		if _, exists := previousIndex[record.Category]; !exists {
			previousIndex[record.Category] = record
		}
	}
	currentLabels := make(map[string]bool, len(current.Categories))

	for _, cur := range current.Categories {
		if currentLabels[cur.Category] {
			continue
		}
		currentLabels[cur.Category] = true

		prev, shared := previousIndex[cur.Category]
		if !shared {
			result.Added = append(result.Added, cur.Category)
			continue
		}

		changes := diffRecord(prev, cur)
		if len(changes) > 0 {
			result.ChangedCategories++
			result.Changes = append(result.Changes, changes...)
		}
	}

	for _, prev := range previous.Categories {
		if currentLabels[prev.Category] {
			continue
		}
		// mark so a duplicate label in previous is only removed once
		currentLabels[prev.Category] = true
		result.Removed = append(result.Removed, prev.Category)
	}

	if len(result.Added) > 0 {
		e.tel.ReportDebug(report_compare_added, result.Added)
	}
	if len(result.Removed) > 0 {
		e.tel.ReportDebug(report_compare_removed, result.Removed)
	}
	e.tel.ReportCount(report_compare_changes, int64(len(result.Changes)))
	return result, nil
}

// diffRecord compares the country keys both records have.
func diffRecord(prev, cur bulletin.CategoryRecord) []FieldChange {
	var changes []FieldChange
	for _, country := range cur.Keys() {
		p, ok := prev.Dates[country]
		if !ok {
			continue
		}
		c := cur.Dates[country]
		direction, changed := Classify(p, c)
		if !changed {
			continue
		}
		changes = append(changes, FieldChange{
			Category:  cur.Category,
			Country:   country,
			Previous:  p,
			Current:   c,
			Direction: direction,
		})
	}
	return changes
}
