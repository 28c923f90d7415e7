package fetch

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"visabulletin/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// Strategy names how the current bulletin url was found.
type Strategy string

const (
	STRATEGY_CURRENT_SECTION Strategy = "current-section"
	STRATEGY_RECENT_LIST     Strategy = "recent-list"
	STRATEGY_CONSTRUCTED     Strategy = "constructed"
)

// FindBulletinURL locates the current bulletin on the landing page. It tries
// the "current visa bulletin" section, then the first recent bulletin, and
// falls back to the url the current month's bulletin is published at.
func FindBulletinURL(ctx context.Context, doc *goquery.Document, base *url.URL, now time.Time) (string, Strategy) {
	var found string
	doc.Find("li").EachWithBreak(func(_ int, li *goquery.Selection) bool {
		heading := strings.ToLower(li.Find("h2").First().Text())
		if !strings.Contains(heading, "current") || !strings.Contains(heading, "bulletin") {
			return true
		}
		anchors := htmlutil.GetAnchors(ctx, base, li.Find("a.btn"))
		if len(anchors) == 0 {
			return true
		}
		found = anchors[0].Href
		return false
	})
	if found != "" {
		return found, STRATEGY_CURRENT_SECTION
	}

	anchors := htmlutil.GetAnchors(ctx, base, doc.Find("ul#recent_bulletins a"))
	if len(anchors) > 0 {
		return anchors[0].Href, STRATEGY_RECENT_LIST
	}

	return ConstructedURL(base, now), STRATEGY_CONSTRUCTED
}

// ConstructedURL returns where the bulletin of the month of `at` is published.
func ConstructedURL(base *url.URL, at time.Time) string {
	month := strings.ToLower(at.Month().String())
	path := fmt.Sprintf(
		"/content/travel/en/legal/visa-law0/visa-bulletin/%d/visa-bulletin-for-%s-%d.html",
		at.Year(), month, at.Year(),
	)
	ref := &url.URL{Path: path}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}
