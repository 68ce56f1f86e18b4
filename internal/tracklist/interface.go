// Package tracklist builds work lists of track requests from external
// sources.
package tracklist

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/jaki95/slsk-fetcher/internal/domain"
)

// Importer imports track requests from a given source.
type Importer interface {
	Import(ctx context.Context, source string) ([]*domain.TrackRequest, error)
	Name() string
}

const (
	Source1001Tracklists = "1001tracklists"
	SourceCSV            = "csv"
)

var ErrUnsupportedSource = errors.New("unsupported tracklist source")

// NewImporter picks the importer for source: an existing .csv file, a
// 1001tracklists.com URL or, when searcher is not nil, a free-text query for
// a tracklist page.
func NewImporter(source string, searcher WebSearcher) (Importer, error) {
	if strings.EqualFold(filepath.Ext(source), ".csv") {
		if _, err := os.Stat(source); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnsupportedSource, err)
		}
		return NewCSVImporter(), nil
	}

	u, err := url.Parse(source)
	isWeb := err == nil && (u.Scheme == "http" || u.Scheme == "https")
	if isWeb && is1001Host(u.Hostname()) {
		return New1001TracklistsImporter(), nil
	}

	if !isWeb && searcher != nil && strings.TrimSpace(source) != "" {
		return NewSearchImporter(searcher), nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, source)
}

func is1001Host(host string) bool {
	host = strings.ToLower(host)
	return host == "1001tracklists.com" || strings.HasSuffix(host, ".1001tracklists.com")
}
