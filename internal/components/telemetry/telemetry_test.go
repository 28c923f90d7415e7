package telemetry

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScopedRecorder(t *testing.T) {
	rec := NewRecorder()
	tel := NewScopedAPI("bulletin", rec)

	tel.ReportWarning("extract.dedupe", "EB-2")
	tel.ReportBroken("extract.parse", "bad markup")
	tel.ReportCount("extract.categories", 12)
	tel.ReportDebug("selected tier", "table")

	reports := rec.Reports()
	require.Len(t, reports, 4)
	require.Equal(t, "bulletin: extract.dedupe", reports[0].ID)
	require.Equal(t, []any{"EB-2"}, reports[0].Params)
	require.Equal(t, int64(12), reports[2].Count)

	require.Len(t, rec.Find(REPORT_WARNING, "extract.dedupe"), 1)
	require.Len(t, rec.Find(REPORT_WARNING, "extract.parse"), 0)
	require.Len(t, rec.Find(REPORT_BROKEN, "extract.parse"), 1)
}

func TestSlogAPI(t *testing.T) {
	var out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&out, &slog.HandlerOptions{Level: slog.LevelDebug}))
	tel := NewScopedAPI("fetch", NewSlogAPI(logger))

	tel.ReportBroken("fetch.page", "connection refused")
	require.Contains(t, out.String(), `id="fetch: fetch.page"`)
	require.Contains(t, out.String(), `params.0="connection refused"`)
	require.Contains(t, out.String(), "level=ERROR")
}
