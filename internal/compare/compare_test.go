package compare

import (
	"encoding/json"
	"testing"
	"time"

	"visabulletin/internal/bulletin"
	"visabulletin/internal/components/chrono"
	"visabulletin/internal/components/telemetry"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

var comparedAt = time.Date(2026, time.February, 1, 9, 0, 0, 0, time.UTC)

func newTestEngine() Engine {
	return NewEngine(telemetry.NewRecorder(), chrono.FixedImpl{Instant: comparedAt})
}

func snapshot(period string, records ...bulletin.CategoryRecord) *bulletin.Snapshot {
	return &bulletin.Snapshot{BulletinDate: period, Categories: records}
}

func record(label string, dates map[string]string) bulletin.CategoryRecord {
	r := bulletin.CategoryRecord{
		Category: label,
		Group:    bulletin.ExtractVisaType(label),
		Dates:    map[string]bulletin.DateValue{},
	}
	for k, v := range dates {
		r.Dates[k] = bulletin.ParseDateValue(v)
	}
	return r
}

func requireChanges(t *testing.T, expected, actual []FieldChange) {
	diff := cmp.Diff(expected, actual, cmp.Comparer(func(a, b bulletin.DateValue) bool {
		return a.Equal(b)
	}))
	if diff != "" {
		t.Fatalf("changes differ (-expected +actual):\n%s", diff)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		previous  string
		current   string
		direction Direction
		changed   bool
	}{
		{previous: "01 JAN 15", current: "01 DEC 15", direction: ADVANCED, changed: true},
		{previous: "01 JAN 15", current: "01 DEC 14", direction: RETROGRESSED, changed: true},
		{previous: "01 JAN 15", current: "01JAN15", changed: false},
		{previous: "22 JUN 09", current: "Current", direction: BECAME_CURRENT, changed: true},
		{previous: "C", current: "01 JUN 09", direction: LOST_CURRENT, changed: true},
		{previous: "C", current: "Current", changed: false},
		{previous: "U", current: "01 JUN 09", direction: CHANGED, changed: true},
		{previous: "Current", current: "U", direction: CHANGED, changed: true},
		{previous: "U", current: "Unavailable", direction: CHANGED, changed: true},
		{previous: "U", current: "U", changed: false},
	}

	for _, c := range cases {
		direction, changed := Classify(bulletin.ParseDateValue(c.previous), bulletin.ParseDateValue(c.current))
		require.Equal(t, c.changed, changed, "%s -> %s", c.previous, c.current)
		require.Equal(t, c.direction, direction, "%s -> %s", c.previous, c.current)
	}
}

func TestClassifyAntiSymmetric(t *testing.T) {
	start := time.Date(2010, time.January, 1, 0, 0, 0, 0, time.UTC)
	var dates []bulletin.DateValue
	for i := 0; i < 40; i++ {
		d := start.AddDate(0, i*5, i%28)
		dates = append(dates, bulletin.Specific(d.Year(), d.Month(), d.Day()))
	}

	for _, p := range dates {
		for _, c := range dates {
			forward, changed := Classify(p, c)
			backward, _ := Classify(c, p)
			pt, _ := p.Time()
			ct, _ := c.Time()

			require.Equal(t, ct.After(pt), forward == ADVANCED)
			require.Equal(t, ct.Before(pt), forward == RETROGRESSED)
			require.Equal(t, !ct.Equal(pt), changed)
			if forward == ADVANCED {
				require.Equal(t, RETROGRESSED, backward)
			}
		}
	}
}

func TestCompareRetrogressed(t *testing.T) {
	result, err := newTestEngine().Compare(
		snapshot("December 2025", record("EB-3", map[string]string{"china": "01 JAN 15"})),
		snapshot("January 2026", record("EB-3", map[string]string{"china": "01 DEC 14"})),
	)
	require.NoError(t, err)
	require.True(t, result.HasChanges())
	require.Equal(t, "December 2025", result.PreviousPeriod)
	require.Equal(t, "January 2026", result.CurrentPeriod)
	require.Equal(t, comparedAt, result.ComparedAt)
	require.Equal(t, 1, result.ChangedCategories)
	requireChanges(t, []FieldChange{
		{
			Category:  "EB-3",
			Country:   "china",
			Previous:  bulletin.Specific(2015, time.January, 1),
			Current:   bulletin.Specific(2014, time.December, 1),
			Direction: RETROGRESSED,
		},
	}, result.Changes)
}

func TestCompareBecameCurrent(t *testing.T) {
	result, err := newTestEngine().Compare(
		snapshot("December 2025", record("EB-3", map[string]string{"india": "22 JUN 09"})),
		snapshot("January 2026", record("EB-3", map[string]string{"india": "Current"})),
	)
	require.NoError(t, err)
	require.Len(t, result.Changes, 1)
	require.Equal(t, BECAME_CURRENT, result.Changes[0].Direction)
}

func TestCompareRemovedCategory(t *testing.T) {
	result, err := newTestEngine().Compare(
		snapshot("December 2025",
			record("F1", map[string]string{"india": "08NOV16"}),
			record("F2A", map[string]string{"india": "01FEB24"}),
		),
		snapshot("January 2026",
			record("F2A", map[string]string{"india": "01FEB24"}),
			record("EB-1", map[string]string{"india": "C"}),
		),
	)
	require.NoError(t, err)
	require.True(t, result.HasChanges())
	require.Equal(t, []string{"F1"}, result.Removed)
	require.Equal(t, []string{"EB-1"}, result.Added)
	require.Empty(t, result.ChangesFor("F1"))
	require.Empty(t, result.Changes)
	require.Equal(t, 0, result.ChangedCategories)
	require.Equal(t, []string{"EB-1", "F1"}, result.ChangedLabels())
}

func TestCompareSharedKeysOnly(t *testing.T) {
	result, err := newTestEngine().Compare(
		snapshot("December 2025", record("EB-2", map[string]string{
			"china":  "01 JAN 20",
			"mexico": "01 JAN 20",
			"india":  "01 JAN 12",
		})),
		snapshot("January 2026", record("EB-2", map[string]string{
			"india":       "01 MAR 12",
			"china":       "01 FEB 20",
			"philippines": "01 JAN 20",
		})),
	)
	require.NoError(t, err)
	requireChanges(t, []FieldChange{
		{
			Category:  "EB-2",
			Country:   "china",
			Previous:  bulletin.Specific(2020, time.January, 1),
			Current:   bulletin.Specific(2020, time.February, 1),
			Direction: ADVANCED,
		},
		{
			Category:  "EB-2",
			Country:   "india",
			Previous:  bulletin.Specific(2012, time.January, 1),
			Current:   bulletin.Specific(2012, time.March, 1),
			Direction: ADVANCED,
		},
	}, result.Changes)
}

func TestCompareIdempotent(t *testing.T) {
	s := snapshot("January 2026",
		record("EB-1", map[string]string{"all_chargeability": "C", "china": "15FEB23"}),
		record("F4", map[string]string{"india": "22AUG06", "mexico": "U"}),
		record("DV-AFRICA", map[string]string{"all_chargeability": "45,000"}),
	)
	clone := *s
	clone.Categories = append([]bulletin.CategoryRecord(nil), s.Categories...)

	result, err := newTestEngine().Compare(s, &clone)
	require.NoError(t, err)
	require.False(t, result.HasChanges())
	require.Empty(t, result.Changes)
	require.Empty(t, result.Added)
	require.Empty(t, result.Removed)
}

func TestCompareMissingSnapshot(t *testing.T) {
	_, err := newTestEngine().Compare(nil, snapshot("January 2026"))
	require.ErrorIs(t, err, ErrMissingSnapshot)
	_, err = newTestEngine().Compare(snapshot("January 2026"), nil)
	require.ErrorIs(t, err, ErrMissingSnapshot)
}

func TestResultJSON(t *testing.T) {
	result, err := newTestEngine().Compare(
		snapshot("December 2025",
			record("EB-3", map[string]string{"india": "22 JUN 09"}),
			record("F1", map[string]string{"india": "08NOV16"}),
		),
		snapshot("January 2026", record("EB-3", map[string]string{"india": "Current"})),
	)
	require.NoError(t, err)

	encoded, err := json.Marshal(result)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"previous_bulletin_date": "December 2025",
		"current_bulletin_date": "January 2026",
		"compared_at": "2026-02-01T09:00:00Z",
		"has_changes": true,
		"categories_added": 0,
		"categories_removed": 1,
		"categories_changed": 1,
		"total_field_changes": 1,
		"added_categories": [],
		"removed_categories": ["F1"],
		"diff": [
			{"category": "EB-3", "country": "india", "previous": "22 JUN 09", "current": "Current", "direction": "BECAME_CURRENT"}
		]
	}`, string(encoded))

	var decoded Result
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	require.Equal(t, result, decoded)
}

func TestFormatReport(t *testing.T) {
	result, err := newTestEngine().Compare(
		snapshot("December 2025", record("EB-3", map[string]string{"china": "01 JAN 15"})),
		snapshot("January 2026",
			record("EB-3", map[string]string{"china": "01 DEC 14"}),
			record("EB-5 Set Aside: Rural (20%)", map[string]string{"china": "C"}),
		),
	)
	require.NoError(t, err)

	report := FormatReport(result)
	require.Contains(t, report, "Previous: December 2025")
	require.Contains(t, report, "Categories added:    1")
	require.Contains(t, report, "[ADDED]   EB-5 Set Aside: Rural (20%)")
	require.Contains(t, report, "[RETROGRESSED]")
	require.Contains(t, report, "01 DEC 14")

	unchanged, err := newTestEngine().Compare(snapshot("January 2026"), snapshot("January 2026"))
	require.NoError(t, err)
	require.Contains(t, FormatReport(unchanged), "No changes detected")
}
