package fetch

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"net/url"
	"time"

	"visabulletin/internal/bulletin"
	"visabulletin/internal/components/assert"
	"visabulletin/internal/components/chrono"
	"visabulletin/internal/components/telemetry"
	libtelemetry "visabulletin/lib/telemetry"
	"visabulletin/lib/timezone"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("visabulletin.internal.fetch")

const (
	report_client_page    = "client.page"
	report_client_current = "client.current"
)

const (
	DefaultSourceURL = "https://travel.state.gov/content/travel/en/legal/visa-law0/visa-bulletin.html"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
	DefaultTimeout   = 30 * time.Second
)

type Config struct {
	// SourceURL is the landing page listing the current bulletin.
	SourceURL string
	// BaseURL resolves relative bulletin links, it defaults to the scheme and
	// host of SourceURL.
	BaseURL           string
	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// StatusError is returned for responses outside of the 2xx range.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("get %s: unexpected status %d", e.URL, e.Code)
}

// Client retrieves the landing page and the current bulletin page.
type Client struct {
	http   *resty.Client
	source *url.URL
	base   *url.URL
	tel    telemetry.API
	time   chrono.API
}

func NewClient(cfg Config, tel telemetry.API, clock chrono.API) (Client, error) {
	assert.NotNil(tel)
	assert.NotNil(clock)

	tel = telemetry.NewScopedAPI("fetch", tel)

	if cfg.SourceURL == "" {
		cfg.SourceURL = DefaultSourceURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}

	source, err := url.Parse(cfg.SourceURL)
	if err != nil {
		return Client{}, fmt.Errorf("fetch: source url: %w", err)
	}
	base := &url.URL{Scheme: source.Scheme, Host: source.Host}
	if cfg.BaseURL != "" {
		base, err = url.Parse(cfg.BaseURL)
		if err != nil {
			return Client{}, fmt.Errorf("fetch: base url: %w", err)
		}
	}

	httpClient := resty.New()
	httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	httpClient.SetHeader("user-agent", cfg.UserAgent)
	httpClient.SetHeader("accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	httpClient.SetHeader("accept-language", "en-US,en;q=0.5")
	httpClient.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(source.Hostname(), base.Hostname()))
	httpClient.SetTimeout(cfg.Timeout)

	burst := int(math.Max(1, math.Ceil(cfg.RequestsPerSecond)))
	rateLimiter := rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(httpClient, tel)
	libtelemetry.TraceResty(httpClient, "visabulletin.internal.fetch")

	return Client{
		http:   httpClient,
		source: source,
		base:   base,
		tel:    tel,
		time:   clock,
	}, nil
}

// Page fetches a single page. SourceURL of the result is the final url after
// redirects.
func (c Client) Page(ctx context.Context, pageURL string) (bulletin.RawDocument, error) {
	ctx, span := tracer.Start(ctx, "Page")
	defer span.End()
	span.SetAttributes(attribute.String("url", pageURL))

	res, err := c.http.R().
		SetContext(ctx).
		Get(pageURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		c.tel.ReportBroken(report_client_page, fmt.Errorf("get %s: %w", pageURL, err))
		return bulletin.RawDocument{}, fmt.Errorf("fetch: %w", err)
	}
	if res.StatusCode() < 200 || res.StatusCode() > 299 {
		err := &StatusError{URL: pageURL, Code: res.StatusCode()}
		span.RecordError(err)
		span.SetStatus(codes.Error, "unexpected status")
		c.tel.ReportBroken(report_client_page, err)
		return bulletin.RawDocument{}, fmt.Errorf("fetch: %w", err)
	}

	finalURL := pageURL
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		finalURL = res.RawResponse.Request.URL.String()
	}
	return bulletin.RawDocument{
		Content:    string(res.Body()),
		SourceURL:  finalURL,
		CapturedAt: c.time.Now(),
	}, nil
}

// CurrentURL fetches the landing page and finds the url of the current
// bulletin on it.
func (c Client) CurrentURL(ctx context.Context) (string, Strategy, error) {
	landing, err := c.Page(ctx, c.source.String())
	if err != nil {
		return "", "", fmt.Errorf("landing page: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBufferString(landing.Content))
	if err != nil {
		c.tel.ReportBroken(report_client_current, fmt.Errorf("parse landing page: %w", err))
		return "", "", fmt.Errorf("landing page: %w", err)
	}

	link, strategy := FindBulletinURL(ctx, doc, c.base, timezone.In(c.time.Now()))
	if strategy == STRATEGY_CONSTRUCTED {
		c.tel.ReportWarning(report_client_current, "no bulletin link on landing page, constructed url", link)
	}
	c.tel.ReportDebug("current bulletin url", link, strategy)
	return link, strategy, nil
}

// Current fetches the current bulletin page.
func (c Client) Current(ctx context.Context) (bulletin.RawDocument, error) {
	ctx, span := tracer.Start(ctx, "Current")
	defer span.End()

	link, _, err := c.CurrentURL(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not resolve current bulletin")
		return bulletin.RawDocument{}, err
	}
	doc, err := c.Page(ctx, link)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not fetch current bulletin")
		return bulletin.RawDocument{}, fmt.Errorf("bulletin page: %w", err)
	}
	return doc, nil
}
