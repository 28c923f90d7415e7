package bulletin

import (
	"testing"
	"time"

	"visabulletin/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

func TestTextTier(t *testing.T) {
	doc := parseDoc(t, `<html><body>
		<p>EB-1 China: 15 FEB 23 India: 15 FEB 22<br>EB-2   01 SEP 21   Current</p>
		<p>F2A: the cutoff for Mexico - 01FEB23</p>
		<p>DV applicants should read section D.</p>
		<p>EB-3 numbers are unavailable.</p>
	</body></html>`)

	records, ok := NewTextTier(telemetry.NewRecorder()).Extract(doc)
	require.True(t, ok)
	diffRecords(t, []CategoryRecord{
		{
			Category: "EB-1",
			Group:    GROUP_EMPLOYMENT,
			Dates: map[string]DateValue{
				FieldChina: Specific(2023, time.February, 15),
				FieldIndia: Specific(2022, time.February, 15),
			},
		},
		{
			Category: "EB-2",
			Group:    GROUP_EMPLOYMENT,
			Dates: map[string]DateValue{
				FieldFinalActionDate: Specific(2021, time.September, 1),
				FieldFilingDate:      Current(),
			},
		},
		{
			Category: "F2A",
			Group:    GROUP_FAMILY,
			Dates: map[string]DateValue{
				FieldMexico: Specific(2023, time.February, 1),
			},
		},
	}, records)
}

func TestTextTierNothing(t *testing.T) {
	doc := parseDoc(t, `<p>Nothing to see here, 12 items in 2026.</p>`)

	records, ok := NewTextTier(telemetry.NewRecorder()).Extract(doc)
	require.False(t, ok)
	require.Empty(t, records)
}
