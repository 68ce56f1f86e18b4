package tracklist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"

	"github.com/jaki95/slsk-fetcher/internal/domain"
)

const SourceSearch = "search"

var ErrNoTracklistFound = errors.New("no tracklist page found")

type SearchResult struct {
	Title string
	Link  string
}

// WebSearcher finds web pages for a free-text query.
type WebSearcher interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// GoogleClient queries a Programmable Search Engine restricted to
// 1001tracklists.com.
type GoogleClient struct {
	service  *customsearch.Service
	engineID string
}

func NewGoogleClient(ctx context.Context, apiKey, engineID string, opts ...option.ClientOption) (*GoogleClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google search api key is required")
	}
	if engineID == "" {
		return nil, fmt.Errorf("google search engine id is required")
	}

	svc, err := customsearch.NewService(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create custom search client: %w", err)
	}
	return &GoogleClient{service: svc, engineID: engineID}, nil
}

func (c *GoogleClient) Search(ctx context.Context, query string) ([]SearchResult, error) {
	resp, err := c.service.Cse.List().Cx(c.engineID).Q(query).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("custom search failed: %w", err)
	}

	results := make([]SearchResult, 0, len(resp.Items))
	for _, item := range resp.Items {
		results = append(results, SearchResult{Title: item.Title, Link: item.Link})
	}
	return results, nil
}

// searchImporter resolves a free-text query such as "Bicep Printworks 2023"
// to a 1001tracklists page and imports it.
type searchImporter struct {
	searcher WebSearcher
	pages    Importer
}

func NewSearchImporter(searcher WebSearcher) *searchImporter {
	return &searchImporter{searcher: searcher, pages: New1001TracklistsImporter()}
}

func (s *searchImporter) Name() string {
	return SourceSearch
}

func (s *searchImporter) Import(ctx context.Context, query string) ([]*domain.TrackRequest, error) {
	results, err := s.searcher.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	for _, r := range results {
		u, err := url.Parse(r.Link)
		if err != nil || !is1001Host(u.Hostname()) || !strings.Contains(u.Path, "/tracklist/") {
			continue
		}
		slog.Info("Found tracklist", "query", query, "title", r.Title, "url", r.Link)
		return s.pages.Import(ctx, r.Link)
	}
	return nil, fmt.Errorf("%w for %q", ErrNoTracklistFound, query)
}
