package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"golang.org/x/time/rate"

	"github.com/regwatch/regwatch/internal/listing"
)

// AirbnbAdapter drives a headless browser through Airbnb search results
// for a city. Airbnb renders cards client-side, so plain HTTP fetching
// returns nothing useful.
type AirbnbAdapter struct {
	limiter *rate.Limiter
}

// NewAirbnbAdapter creates an adapter paced at ratePerSec page loads per
// second.
func NewAirbnbAdapter(ratePerSec float64) *AirbnbAdapter {
	if ratePerSec <= 0 {
		ratePerSec = 0.5
	}
	return &AirbnbAdapter{limiter: rate.NewLimiter(rate.Limit(ratePerSec), 1)}
}

func (a *AirbnbAdapter) Platform() listing.Platform { return listing.PlatformAirbnb }

// card is the raw shape extracted from one search result.
type card struct {
	Title    string `json:"title"`
	Price    string `json:"price"`
	Location string `json:"location"`
	Rating   string `json:"rating"`
	URL      string `json:"url"`
}

// extractCardsJS pulls listing cards out of a rendered search page.
// Airbnb's class names are obfuscated and churn, so it tries data-testid
// hooks first and falls back to room links.
const extractCardsJS = `
(function() {
	var results = [];
	var seen = {};
	var selectors = [
		'[data-testid="card-container"]',
		'[itemprop="itemListElement"]'
	];
	var cards = [];
	for (var si = 0; si < selectors.length; si++) {
		cards = document.querySelectorAll(selectors[si]);
		if (cards.length > 0) break;
	}
	for (var i = 0; i < cards.length; i++) {
		var c = cards[i];
		var linkEl = c.querySelector('a[href*="/rooms/"]');
		var url = linkEl ? linkEl.href : '';
		if (!url || seen[url]) continue;
		seen[url] = true;

		var titleEl = c.querySelector('[data-testid="listing-card-title"]');
		var subEl = c.querySelector('[data-testid="listing-card-subtitle"]');
		var priceEl = c.querySelector('[data-testid="price-availability-row"]');
		var ratingEl = c.querySelector('[aria-label*="rating"]');

		results.push({
			title:    titleEl ? titleEl.innerText.trim() : '',
			location: subEl ? subEl.innerText.trim() : '',
			price:    priceEl ? priceEl.innerText : '',
			rating:   ratingEl ? (ratingEl.innerText || ratingEl.getAttribute('aria-label') || '') : '',
			url:      url
		});
	}
	if (results.length === 0) {
		var links = document.querySelectorAll('a[href*="/rooms/"]');
		for (var j = 0; j < links.length; j++) {
			var href = links[j].href;
			if (!href || seen[href]) continue;
			seen[href] = true;
			var parent = links[j].closest('[role="group"]') || links[j];
			var lines = (parent.innerText || '').split('\n')
				.map(function(l){ return l.trim(); }).filter(Boolean);
			results.push({
				title:    lines[0] || '',
				location: lines[1] || '',
				price:    lines.find(function(l){ return /FCFA|XOF|\$|€/.test(l); }) || '',
				rating:   lines.find(function(l){ return /^\d\.\d/.test(l); }) || '',
				url:      href
			});
		}
	}
	return results;
})()`

const nextPageJS = `
(function() {
	var next = document.querySelector('a[aria-label="Next"]') ||
		document.querySelector('[data-testid="pagination-next-button"]');
	return next && next.href ? next.href : '';
})()`

func (a *AirbnbAdapter) Scrape(ctx context.Context, params TargetParams) ([]*listing.Listing, error) {
	city := params.City
	if city == "" {
		city = "Dakar"
	}
	maxPages := params.MaxPages
	if maxPages <= 0 {
		maxPages = 5
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	if bin := findChromeBinary(); bin != "" {
		opts = append(opts, chromedp.ExecPath(bin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelBrowser()

	pageURL := fmt.Sprintf("https://www.airbnb.com/s/%s--Senegal/homes",
		strings.ReplaceAll(listing.NormalizeCity(city), " ", "-"))

	var listings []*listing.Listing
	seen := make(map[string]bool)

	for page := 1; page <= maxPages; page++ {
		if err := a.limiter.Wait(ctx); err != nil {
			return listings, err
		}

		cards, nextURL, err := a.scrapePage(browserCtx, pageURL)
		if err != nil {
			if ctx.Err() != nil {
				return listings, ctx.Err()
			}
			return listings, &AdapterError{
				Platform: listing.PlatformAirbnb,
				Reason:   fmt.Sprintf("page %d failed", page),
				Err:      err,
			}
		}

		slog.Debug("scraped search page", "platform", "airbnb", "page", page, "cards", len(cards))
		if len(cards) == 0 {
			break
		}

		for _, c := range cards {
			l := cardToListing(c, city)
			if l == nil || seen[l.PlatformID] {
				continue
			}
			seen[l.PlatformID] = true
			listings = append(listings, l)
		}

		if nextURL == "" {
			break
		}
		pageURL = nextURL
	}

	return listings, nil
}

func (a *AirbnbAdapter) scrapePage(browserCtx context.Context, pageURL string) ([]card, string, error) {
	ctx, cancel := context.WithTimeout(browserCtx, 90*time.Second)
	defer cancel()

	var cards []card
	var nextURL string

	err := chromedp.Run(ctx,
		chromedp.Navigate(pageURL),
		chromedp.Sleep(5*time.Second),
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
		chromedp.Sleep(2*time.Second),
		chromedp.Evaluate(extractCardsJS, &cards),
		chromedp.Evaluate(nextPageJS, &nextURL),
	)
	if err != nil {
		return nil, "", fmt.Errorf("rendering %s: %w", pageURL, err)
	}
	return cards, nextURL, nil
}

var (
	roomIDPattern = regexp.MustCompile(`/rooms/(\d+)`)
	pricePattern  = regexp.MustCompile(`([\d\s,.]+)\s*(?:FCFA|XOF)`)
	ratingPattern = regexp.MustCompile(`(\d\.\d+)`)
)

// cardToListing converts a raw search card to a listing record. Cards
// without a parseable room ID are dropped.
func cardToListing(c card, city string) *listing.Listing {
	m := roomIDPattern.FindStringSubmatch(c.URL)
	if m == nil {
		return nil
	}

	l := &listing.Listing{
		Platform:     listing.PlatformAirbnb,
		PlatformID:   m[1],
		URL:          c.URL,
		Title:        c.Title,
		LocationText: c.Location,
		City:         listing.NormalizeCity(city),
		PropertyType: listing.NormalizePropertyType(c.Title),
	}

	if pm := pricePattern.FindStringSubmatch(c.Price); pm != nil {
		digits := strings.NewReplacer(" ", "", ",", "", ".", "", " ", "").Replace(pm[1])
		if v, err := strconv.ParseFloat(digits, 64); err == nil && v > 0 {
			l.PricePerNight = &v
		}
	}
	if rm := ratingPattern.FindStringSubmatch(c.Rating); rm != nil {
		if v, err := strconv.ParseFloat(rm[1], 64); err == nil {
			l.Rating = &v
		}
	}

	return l
}

// findChromeBinary locates an installed Chrome or Chromium.
func findChromeBinary() string {
	candidates := []string{
		"google-chrome", "google-chrome-stable", "chromium", "chromium-browser",
	}
	for _, name := range candidates {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}
