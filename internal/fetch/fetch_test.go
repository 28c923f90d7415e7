package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"visabulletin/internal/components/chrono"
	"visabulletin/internal/components/telemetry"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

var fetchNow = time.Date(2026, time.January, 5, 12, 0, 0, 0, time.UTC)

const currentSectionLanding = `<html><body><ul>
<li><h2>Upcoming Visa Bulletin</h2><a class="btn" href="/next.html">February</a></li>
<li><h2>Current Visa Bulletin</h2><p>January 2026</p>
	<a class="btn btn-lg btn-success" href="/content/travel/en/legal/visa-law0/visa-bulletin/2026/visa-bulletin-for-january-2026.html">View</a></li>
</ul>
<ul id="recent_bulletins"><li><a href="/older.html">December 2025</a></li></ul>
</body></html>`

const recentListLanding = `<html><body>
<ul id="recent_bulletins">
	<li><a href="https://travel.state.gov/december-2025.html">December 2025</a></li>
	<li><a href="/november-2025.html">November 2025</a></li>
</ul>
</body></html>`

func TestFindBulletinURL(t *testing.T) {
	base, err := url.Parse("https://travel.state.gov")
	require.NoError(t, err)

	cases := []struct {
		name     string
		html     string
		expected string
		strategy Strategy
	}{
		{
			name:     "current section",
			html:     currentSectionLanding,
			expected: "https://travel.state.gov/content/travel/en/legal/visa-law0/visa-bulletin/2026/visa-bulletin-for-january-2026.html",
			strategy: STRATEGY_CURRENT_SECTION,
		},
		{
			name:     "recent list",
			html:     recentListLanding,
			expected: "https://travel.state.gov/december-2025.html",
			strategy: STRATEGY_RECENT_LIST,
		},
		{
			name:     "current section without a button",
			html:     `<ul><li><h2>Current Visa Bulletin</h2><a href="/plain.html">x</a></li></ul>`,
			expected: "https://travel.state.gov/content/travel/en/legal/visa-law0/visa-bulletin/2026/visa-bulletin-for-january-2026.html",
			strategy: STRATEGY_CONSTRUCTED,
		},
		{
			name:     "nothing",
			html:     `<p>maintenance</p>`,
			expected: "https://travel.state.gov/content/travel/en/legal/visa-law0/visa-bulletin/2026/visa-bulletin-for-january-2026.html",
			strategy: STRATEGY_CONSTRUCTED,
		},
	}

	for _, c := range cases {
		doc, err := goquery.NewDocumentFromReader(bytes.NewBufferString(c.html))
		require.NoError(t, err, c.name)

		link, strategy := FindBulletinURL(context.Background(), doc, base, fetchNow)
		require.Equal(t, c.expected, link, c.name)
		require.Equal(t, c.strategy, strategy, c.name)
	}
}

func TestConstructedURL(t *testing.T) {
	base, err := url.Parse("https://travel.state.gov/some/page.html")
	require.NoError(t, err)
	require.Equal(
		t,
		"https://travel.state.gov/content/travel/en/legal/visa-law0/visa-bulletin/2025/visa-bulletin-for-september-2025.html",
		ConstructedURL(base, time.Date(2025, time.September, 30, 0, 0, 0, 0, time.UTC)),
	)
}

func newTestServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/landing.html", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<ul><li><h2>Current Visa Bulletin</h2><a class="btn" href="/bulletin/january-2026.html">View</a></li></ul>`)
	})
	mux.HandleFunc("/bulletin/january-2026.html", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><h1>Visa Bulletin For January 2026</h1></body></html>`)
	})
	mux.HandleFunc("/down.html", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestClientCurrent(t *testing.T) {
	server := newTestServer(t)
	rec := telemetry.NewRecorder()

	client, err := NewClient(Config{
		SourceURL:         server.URL + "/landing.html",
		RequestsPerSecond: 100,
	}, rec, chrono.FixedImpl{Instant: fetchNow})
	require.NoError(t, err)

	link, strategy, err := client.CurrentURL(context.Background())
	require.NoError(t, err)
	require.Equal(t, server.URL+"/bulletin/january-2026.html", link)
	require.Equal(t, STRATEGY_CURRENT_SECTION, strategy)

	doc, err := client.Current(context.Background())
	require.NoError(t, err)
	require.Equal(t, server.URL+"/bulletin/january-2026.html", doc.SourceURL)
	require.Equal(t, fetchNow, doc.CapturedAt)
	require.Contains(t, doc.Content, "Visa Bulletin For January 2026")

	require.NotEmpty(t, rec.Find(telemetry.REPORT_COUNT, "resty.status"))
	require.Empty(t, rec.Find(telemetry.REPORT_BROKEN, ""))
}

func TestClientStatusError(t *testing.T) {
	server := newTestServer(t)
	rec := telemetry.NewRecorder()

	client, err := NewClient(Config{
		SourceURL:         server.URL + "/down.html",
		RequestsPerSecond: 100,
	}, rec, chrono.FixedImpl{Instant: fetchNow})
	require.NoError(t, err)

	_, err = client.Current(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "503")

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusServiceUnavailable, statusErr.Code)
	require.Len(t, rec.Find(telemetry.REPORT_BROKEN, "client.page"), 1)
}

func TestNewClientDefaults(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		timeout time.Duration
	}{
		{name: "zero timeout", cfg: Config{}, timeout: DefaultTimeout},
		{name: "configured timeout", cfg: Config{Timeout: 5 * time.Second}, timeout: 5 * time.Second},
	}

	for _, c := range cases {
		client, err := NewClient(c.cfg, telemetry.NewRecorder(), chrono.FixedImpl{Instant: fetchNow})
		require.NoError(t, err, c.name)
		require.Equal(t, c.timeout, client.http.GetClient().Timeout, c.name)
		require.Equal(t, DefaultSourceURL, client.source.String(), c.name)
		require.Equal(t, "https://travel.state.gov", client.base.String(), c.name)
	}
}
