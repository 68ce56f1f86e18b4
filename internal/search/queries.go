package search

import (
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/jaki95/slsk-fetcher/internal/domain"
)

// Queries returns the search strings for a track, most specific first.
func Queries(track *domain.TrackRequest) []string {
	full := joinFields(track.MainArtist, track.FeatArtist, track.Title, track.Remixer, track.RemixType)
	remix := joinFields(track.MainArtist, track.Title, track.Remixer)
	plain := joinFields(track.MainArtist, track.Title)

	queries := lo.Uniq(lo.Compact([]string{full, remix, plain}))
	sort.Slice(queries, func(i, j int) bool {
		wi, wj := len(strings.Fields(queries[i])), len(strings.Fields(queries[j]))
		if wi != wj {
			return wi > wj
		}
		return queries[i] < queries[j]
	})
	return queries
}

func joinFields(parts ...string) string {
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}
