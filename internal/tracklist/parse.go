package tracklist

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/samber/lo"

	"github.com/jaki95/slsk-fetcher/internal/domain"
)

var (
	ErrUnparseable = errors.New("track value cannot be parsed")
	ErrIDTrack     = errors.New("track is unidentified")
)

var bracketPattern = regexp.MustCompile(`\(([^()]*)\)|\[([^\[\]]*)\]`)

// Longest first so "extended mix" wins over "mix".
var remixIndicators = []string{
	"extended mix", "bootleg mix", "radio edit", "club mix", "vip mix", "dub mix",
	"re-edit", "rework", "bootleg", "remix", "refix", "edit", "rmx", "dub", "vip", "mix", "version",
}

var featIndicators = regexp.MustCompile(`(?i)\s*\b(?:feat\.?|ft\.?|featuring)\s+`)

var ignoredBrackets = []string{"original mix", "original", "official video", "videoclip"}

// ParseTrackValue parses a tracklist line such as
// "A & B ft. C - Title (D Remix)" into a track request.
func ParseTrackValue(value string) (*domain.TrackRequest, error) {
	value = strings.Join(strings.Fields(value), " ")
	if strings.Count(value, " - ") != 1 {
		return nil, fmt.Errorf("%w: %q", ErrUnparseable, value)
	}
	artistPart, titlePart, _ := strings.Cut(value, " - ")

	t := &domain.TrackRequest{}
	for _, m := range bracketPattern.FindAllStringSubmatch(value, -1) {
		content := strings.TrimSpace(m[1] + m[2])
		lower := strings.ToLower(content)

		switch {
		case lo.Contains(ignoredBrackets, lower):
		case featIndicators.MatchString(" " + content):
			t.FeatArtist = strings.TrimSpace(featIndicators.ReplaceAllString(" "+content, ""))
		default:
			remixer, remixType, ok := splitRemix(content)
			if !ok {
				return nil, fmt.Errorf("%w: unrecognised annotation %q", ErrUnparseable, content)
			}
			t.Remixer, t.RemixType = remixer, remixType
		}
	}

	artistPart = strings.TrimSpace(bracketPattern.ReplaceAllString(artistPart, ""))
	t.Title = strings.TrimSpace(bracketPattern.ReplaceAllString(titlePart, ""))

	if loc := featIndicators.FindStringIndex(artistPart); loc != nil {
		t.FeatArtist = strings.TrimSpace(artistPart[loc[1]:])
		artistPart = strings.TrimSpace(artistPart[:loc[0]])
	}

	t.Artists = splitArtists(artistPart)
	if len(t.Artists) == 0 || t.Title == "" {
		return nil, fmt.Errorf("%w: %q", ErrUnparseable, value)
	}
	t.MainArtist = t.Artists[0]

	if strings.EqualFold(t.MainArtist, "ID") || strings.EqualFold(t.Title, "ID") {
		return nil, ErrIDTrack
	}
	return t, nil
}

func splitRemix(content string) (remixer, remixType string, ok bool) {
	lower := strings.ToLower(content)
	for _, ind := range remixIndicators {
		if !strings.HasSuffix(lower, ind) {
			continue
		}
		rest := content[:len(content)-len(ind)]
		if rest != "" && !strings.HasSuffix(rest, " ") {
			continue
		}
		return strings.TrimSpace(rest), content[len(content)-len(ind):], true
	}
	return "", "", false
}

func splitArtists(s string) []string {
	var artists []string
	for _, part := range strings.Split(s, ",") {
		artists = append(artists, strings.Split(part, " & ")...)
	}
	artists = lo.Map(artists, func(a string, _ int) string { return strings.TrimSpace(a) })
	return lo.Uniq(lo.Compact(artists))
}
