// Package matcher filters and ranks search candidates for a track.
package matcher

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/jaki95/slsk-fetcher/internal/domain"
)

// DefaultDisallowed are the extensions rejected when none are configured.
var DefaultDisallowed = []string{"m4a"}

// bitDepthMultiplier converts a lossless bit depth to a comparable bit rate.
const bitDepthMultiplier = 44

// minDescriptiveFields is how many of filename, length, extension, bitRate and
// bitDepth a candidate must carry.
const minDescriptiveFields = 4

// Matcher is safe for concurrent use; it holds no mutable state.
type Matcher struct {
	disallowed map[string]struct{}
}

// New builds a matcher rejecting the given extensions. A nil slice selects
// DefaultDisallowed; an empty non-nil slice allows every extension.
func New(disallowed []string) *Matcher {
	if disallowed == nil {
		disallowed = DefaultDisallowed
	}
	set := make(map[string]struct{}, len(disallowed))
	for _, ext := range disallowed {
		set[normalizeExt(ext)] = struct{}{}
	}
	return &Matcher{disallowed: set}
}

// Rank returns the candidates acceptable for track, best first. Equal bit
// rates are ordered by peer, filename and size rather than discovery order, so
// the result only depends on the set of candidates, not on their input order.
func (m *Matcher) Rank(candidates []domain.SearchCandidate, track *domain.TrackRequest) []domain.RankedMatch {
	kept := lo.Filter(candidates, func(c domain.SearchCandidate, _ int) bool {
		if _, bad := m.disallowed[c.Ext()]; bad {
			slog.Debug("Rejected candidate", "reason", "disallowed extension", "peer", c.Peer, "file", c.Filename)
			return false
		}
		return true
	})

	kept = lo.Filter(kept, func(c domain.SearchCandidate, _ int) bool {
		if c.Locked {
			slog.Debug("Rejected candidate", "reason", "locked", "peer", c.Peer, "file", c.Filename)
			return false
		}
		return true
	})

	kept = lo.Filter(kept, func(c domain.SearchCandidate, _ int) bool {
		if !hasDescriptiveFields(c) {
			slog.Debug("Rejected candidate", "reason", "missing attributes", "peer", c.Peer, "file", c.Filename)
			return false
		}
		return true
	})

	required := []string{track.MainArtist, track.Title}
	if track.Remixer != "" {
		required = append(required, track.Remixer)
	}
	if track.FeatArtist != "" {
		required = append(required, track.FeatArtist)
	}

	kept = lo.Filter(kept, func(c domain.SearchCandidate, _ int) bool {
		name := strings.ToLower(c.Filename)
		for _, want := range required {
			if !strings.Contains(name, strings.ToLower(want)) {
				slog.Debug("Rejected candidate", "reason", "name mismatch", "missing", want, "peer", c.Peer, "file", c.Filename)
				return false
			}
		}
		return true
	})

	matches := lo.Map(kept, func(c domain.SearchCandidate, _ int) domain.RankedMatch {
		return domain.RankedMatch{Candidate: c, BitRate: EffectiveBitRate(c)}
	})

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.BitRate != b.BitRate {
			return a.BitRate > b.BitRate
		}
		if a.Candidate.Peer != b.Candidate.Peer {
			return a.Candidate.Peer < b.Candidate.Peer
		}
		if a.Candidate.Filename != b.Candidate.Filename {
			return a.Candidate.Filename < b.Candidate.Filename
		}
		return a.Candidate.Size < b.Candidate.Size
	})

	slog.Debug("Ranked candidates", "track", track.ID, "candidates", len(candidates), "matches", len(matches))
	return matches
}

// EffectiveBitRate is the reported bit rate, or the bit depth scaled to a rate
// when no bit rate was reported.
func EffectiveBitRate(c domain.SearchCandidate) int {
	if c.BitRate != nil {
		return *c.BitRate
	}
	if c.BitDepth != nil {
		return *c.BitDepth * bitDepthMultiplier
	}
	return 0
}

func hasDescriptiveFields(c domain.SearchCandidate) bool {
	if c.BitRate == nil && c.BitDepth == nil {
		return false
	}
	present := lo.Count([]bool{
		c.Filename != "",
		c.Length != nil,
		c.Extension != "",
		c.BitRate != nil,
		c.BitDepth != nil,
	}, true)
	return present >= minDescriptiveFields
}

func normalizeExt(ext string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
}
