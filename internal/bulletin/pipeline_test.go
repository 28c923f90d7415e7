package bulletin

import (
	"errors"
	"testing"
	"time"

	"visabulletin/internal/components/chrono"
	"visabulletin/internal/components/telemetry"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

var extractedAt = time.Date(2026, time.January, 5, 12, 0, 0, 0, time.UTC)

type spyTier struct {
	name    TierName
	records []CategoryRecord
	calls   *int
}

func (s spyTier) Name() TierName {
	return s.name
}

func (s spyTier) Extract(*goquery.Document) ([]CategoryRecord, bool) {
	*s.calls++
	return s.records, len(s.records) > 0
}

func newTestExtractor(rec telemetry.Recorder) Extractor {
	return NewExtractor(rec, chrono.FixedImpl{Instant: extractedAt})
}

const bulletinPage = `<html><body>
	<h1>Visa Bulletin For January 2026</h1>
	<p>Number 110, Volume XI</p>
	<table>
		<tr><th>Family-Sponsored</th><th>All Chargeability Areas Except Those Listed</th><th>INDIA</th></tr>
		<tr><td>F1</td><td>08NOV16</td><td>08NOV16</td></tr>
		<tr><td>F2A</td><td>01FEB24</td><td>01FEB24</td></tr>
	</table>
	<p>B. DATES FOR FILING FAMILY-SPONSORED VISA APPLICATIONS</p>
	<table>
		<tr><th>Family-Sponsored</th><th>All Chargeability Areas Except Those Listed</th><th>INDIA</th></tr>
		<tr><td>F1</td><td>01SEP17</td><td>01SEP17</td></tr>
	</table>
</body></html>`

func TestExtractorTables(t *testing.T) {
	rec := telemetry.NewRecorder()
	snapshot, err := newTestExtractor(rec).Extract(RawDocument{
		Content:   bulletinPage,
		SourceURL: "https://travel.state.gov/visa-bulletin-for-january-2026.html",
	})
	require.NoError(t, err)

	require.Equal(t, "January 2026", snapshot.BulletinDate)
	require.False(t, snapshot.NotBulletin)
	require.Equal(t, TIER_TABLE, snapshot.Tier)
	require.Equal(t, extractedAt, snapshot.ExtractedAt)
	require.Equal(t, []string{"F1", "F2A"}, snapshot.Labels())

	f1, ok := snapshot.Category("F1")
	require.True(t, ok)
	require.Equal(t, Specific(2016, time.November, 8), f1.Dates[FieldIndia])

	dupes := rec.Find(telemetry.REPORT_WARNING, report_dedupe)
	require.Len(t, dupes, 1)
	require.Equal(t, []any{"F1", string(TIER_TABLE)}, dupes[0].Params)

	counts := rec.Find(telemetry.REPORT_COUNT, report_categories)
	require.Len(t, counts, 1)
	require.Equal(t, int64(2), counts[0].Count)
}

func TestExtractorLandingPage(t *testing.T) {
	snapshot, err := newTestExtractor(telemetry.NewRecorder()).Extract(RawDocument{
		Content: `<html><body>
			<ul>
				<li><h2>Current Visa Bulletin</h2><a class="btn" href="/visa-bulletin-for-january-2026.html">January 2026</a></li>
				<li><h2>Upcoming Visa Bulletin</h2><a class="btn" href="/visa-bulletin-for-february-2026.html">February 2026</a></li>
			</ul>
			<table><tr><td>Home</td><td>Contact</td></tr><tr><td>a</td><td>b</td></tr></table>
		</body></html>`,
	})
	require.NoError(t, err)
	require.True(t, snapshot.NotBulletin)
	require.Empty(t, snapshot.BulletinDate)
	require.Empty(t, snapshot.Categories)
	require.Equal(t, TIER_NONE, snapshot.Tier)
}

func TestExtractorNoPeriod(t *testing.T) {
	snapshot, err := newTestExtractor(telemetry.NewRecorder()).Extract(RawDocument{
		Content: `<table><tr><th>Employment-based</th><th>China</th></tr><tr><td>EB-2</td><td>01 SEP 21</td></tr></table>`,
	})
	require.NoError(t, err)
	require.True(t, snapshot.NotBulletin)
	require.Empty(t, snapshot.Categories)
}

func TestExtractorMalformed(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{name: "empty", content: ""},
		{name: "whitespace", content: " \n\t "},
		{name: "invalid utf-8", content: "<p>Visa Bulletin For January 2026 \xff\xfe</p>"},
	}

	for _, c := range cases {
		_, err := newTestExtractor(telemetry.NewRecorder()).Extract(RawDocument{Content: c.content})
		require.Error(t, err, c.name)
		require.True(t, IsMalformedInput(err), c.name)

		var malformed *MalformedInputError
		require.True(t, errors.As(err, &malformed), c.name)
	}
}

func TestExtractorTierFallback(t *testing.T) {
	divRecords := []CategoryRecord{
		{Category: "EB-2", Group: GROUP_EMPLOYMENT, Dates: map[string]DateValue{FieldChina: Current()}},
	}

	var tableCalls, divCalls, textCalls int
	extractor := NewExtractorWithTiers(
		telemetry.NewRecorder(),
		chrono.FixedImpl{Instant: extractedAt},
		spyTier{name: TIER_TABLE, calls: &tableCalls},
		spyTier{name: TIER_DIV, records: divRecords, calls: &divCalls},
		spyTier{
			name:    TIER_TEXT,
			records: []CategoryRecord{{Category: "F1", Dates: map[string]DateValue{FieldChina: Current()}}},
			calls:   &textCalls,
		},
	)

	snapshot, err := extractor.Extract(RawDocument{Content: "<p>Visa Bulletin For March 2026</p>"})
	require.NoError(t, err)
	require.Equal(t, TIER_DIV, snapshot.Tier)
	require.Equal(t, divRecords, snapshot.Categories)
	require.Equal(t, 1, tableCalls)
	require.Equal(t, 1, divCalls)
	require.Equal(t, 0, textCalls)
}

func TestExtractorDivLayout(t *testing.T) {
	content := `<html><body>
		<h1>Visa Bulletin For March 2026</h1>
		<div class="chart">
			<div class="row"><div>Employment-based</div><div>China</div><div>India</div></div>
			<div class="row"><div>EB-2</div><div>01 SEP 21</div><div>01 JAN 13</div></div>
			<div class="row"><div>EB-3</div><div>01 MAY 21</div><div>Current</div></div>
		</div>
		<p>EB-5 Current</p>
	</body></html>`

	rec := telemetry.NewRecorder()
	snapshot, err := newTestExtractor(rec).Extract(RawDocument{Content: content})
	require.NoError(t, err)

	doc := parseDoc(t, content)
	divOnly, ok := NewDivTier(telemetry.NewRecorder()).Extract(doc)
	require.True(t, ok)

	require.Equal(t, TIER_DIV, snapshot.Tier)
	diffRecords(t, divOnly, snapshot.Categories)
	require.Equal(t, []string{"EB-2", "EB-3"}, snapshot.Labels())
}

func TestExtractorNavigationTableFallsThrough(t *testing.T) {
	snapshot, err := newTestExtractor(telemetry.NewRecorder()).Extract(RawDocument{
		Content: `<html><body>
		<h1>Visa Bulletin For January 2026</h1>
		<table>
			<tr><th>Current Bulletin</th><th>Archive</th></tr>
			<tr><td>January</td><td>December</td></tr>
		</table>
		<div class="chart">
			<div class="chart-row header">
				<div>Employment-based</div>
				<div>CHINA-mainland born</div>
			</div>
			<div class="chart-row">
				<div class="label">EB-2</div>
				<div>01SEP21</div>
			</div>
		</div>
		</body></html>`,
	})
	require.NoError(t, err)
	require.False(t, snapshot.NotBulletin)
	require.Equal(t, TIER_DIV, snapshot.Tier)
	require.Equal(t, []string{"EB-2"}, snapshot.Labels())

	record, ok := snapshot.Category("EB-2")
	require.True(t, ok)
	require.True(t, record.Dates[FieldChina].Equal(Specific(2021, time.September, 1)))
}
