package tracklist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly"
	"github.com/jpillora/backoff"

	"github.com/jaki95/slsk-fetcher/internal/domain"
)

type tracklists1001Importer struct {
	maxRetries     int
	baseDelay      time.Duration
	requestTimeout time.Duration
	userAgents     []string
}

func New1001TracklistsImporter() *tracklists1001Importer {
	return &tracklists1001Importer{
		maxRetries:     4,
		baseDelay:      2 * time.Second,
		requestTimeout: 30 * time.Second,
		userAgents: []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
	}
}

func (t *tracklists1001Importer) Name() string {
	return Source1001Tracklists
}

// Import scrapes the tracklist page at url. Unidentified ("ID - ID") and
// unparseable lines are skipped.
func (t *tracklists1001Importer) Import(ctx context.Context, url string) ([]*domain.TrackRequest, error) {
	var (
		tracks  []*domain.TrackRequest
		skipped int
		setName string
	)

	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.MaxDepth(1),
		colly.UserAgent(t.userAgents[rand.Intn(len(t.userAgents))]),
	)
	c.SetRequestTimeout(t.requestTimeout)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.5")
		r.Headers.Set("Referer", "https://www.1001tracklists.com/")
	})

	c.OnHTML("div#pageTitle h1", func(e *colly.HTMLElement) {
		setName = strings.TrimSpace(e.Text)
	})

	c.OnHTML("div.tlpTog", func(e *colly.HTMLElement) {
		value := strings.TrimSpace(e.ChildText("span.trackValue"))
		if value == "" {
			return
		}
		track, err := ParseTrackValue(value)
		if err != nil {
			if !errors.Is(err, ErrIDTrack) {
				slog.Debug("Skipping tracklist line", "value", value, "error", err)
			}
			skipped++
			return
		}
		// the artist links are the most reliable credit when the page has them
		if artists := linkedArtists(e.DOM); len(artists) > 0 && strings.EqualFold(artists[0], track.MainArtist) {
			track.Artists = artists
		}
		tracks = append(tracks, track)
	})

	slog.Info("Fetching tracklist", "url", url)
	if err := t.visitWithRetries(ctx, c, url); err != nil {
		return nil, err
	}

	slog.Info("Scraped tracklist", "set", setName, "tracks", len(tracks), "skipped", skipped)
	if len(tracks) == 0 {
		return nil, fmt.Errorf("no tracks found in tracklist")
	}
	return tracks, nil
}

func linkedArtists(s *goquery.Selection) []string {
	var artists []string
	s.Find("span.trackValue a[href*='/artist/']").Each(func(_ int, a *goquery.Selection) {
		if name := strings.TrimSpace(a.Text()); name != "" {
			artists = append(artists, name)
		}
	})
	return artists
}

func (t *tracklists1001Importer) visitWithRetries(ctx context.Context, c *colly.Collector, url string) error {
	b := &backoff.Backoff{
		Min:    t.baseDelay,
		Max:    t.baseDelay * 16,
		Factor: 2,
		Jitter: true,
	}

	var lastErr error
	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		if attempt > 0 {
			delay := b.Duration()
			slog.Info("Retrying request", "attempt", attempt+1, "delay", delay.String(), "url", url)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = c.Visit(url)
		if lastErr == nil {
			return nil
		}
		slog.Warn("Request failed", "attempt", attempt+1, "error", lastErr)
	}
	return fmt.Errorf("failed after %d attempts: %w", t.maxRetries+1, lastErr)
}
