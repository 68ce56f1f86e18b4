package domain

import (
	"fmt"
	"strings"
)

// TrackRequest identifies one song to retrieve from the network.
type TrackRequest struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	MainArtist string   `json:"main_artist"`
	Artists    []string `json:"artists,omitempty"`
	FeatArtist string   `json:"feat_artist,omitempty"`
	Remixer    string   `json:"remixer,omitempty"`
	RemixType  string   `json:"remix_type,omitempty"`

	// Path is set once the file has been placed in the library.
	Path string `json:"path,omitempty"`
}

// Validate reports whether the request carries enough information to be searched.
func (t *TrackRequest) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("track has no id")
	}
	if strings.TrimSpace(t.MainArtist) == "" {
		return fmt.Errorf("track %s has no main artist", t.ID)
	}
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("track %s has no title", t.ID)
	}
	return nil
}

// CreditedArtists returns the main artist followed by every collaborating artist
// that is not also credited as feature or remix artist.
func (t *TrackRequest) CreditedArtists() []string {
	special := map[string]bool{
		strings.ToLower(t.MainArtist): true,
	}
	if t.FeatArtist != "" {
		special[strings.ToLower(t.FeatArtist)] = true
	}
	if t.Remixer != "" {
		special[strings.ToLower(t.Remixer)] = true
	}

	artists := []string{t.MainArtist}
	for _, a := range t.Artists {
		a = strings.TrimSpace(a)
		key := strings.ToLower(a)
		if a == "" || special[key] {
			continue
		}
		special[key] = true
		artists = append(artists, a)
	}
	return artists
}

// DisplayName formats the track as "A, B & C feat. D - Title (E Remix)".
func (t *TrackRequest) DisplayName() string {
	var b strings.Builder
	b.WriteString(JoinArtists(t.CreditedArtists()))
	if t.FeatArtist != "" {
		b.WriteString(" feat. ")
		b.WriteString(t.FeatArtist)
	}
	b.WriteString(" - ")
	b.WriteString(t.Title)
	if t.Remixer != "" {
		b.WriteString(" (")
		b.WriteString(t.Remixer)
		if t.RemixType != "" {
			b.WriteString(" ")
			b.WriteString(t.RemixType)
		}
		b.WriteString(")")
	}
	return b.String()
}

// FileName returns the canonical library filename for the track.
func (t *TrackRequest) FileName(ext string) string {
	name := sanitizeFilename(t.DisplayName())
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		return name
	}
	return name + "." + ext
}

// JoinArtists joins names as "A", "A & B" or "A, B & C".
func JoinArtists(artists []string) string {
	switch len(artists) {
	case 0:
		return ""
	case 1:
		return artists[0]
	default:
		return strings.Join(artists[:len(artists)-1], ", ") + " & " + artists[len(artists)-1]
	}
}

func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer("/", "-", "\\", "-", ":", "-", "\"", "'", "?", "", "*", "", "<", "", ">", "", "|", "-")
	return strings.TrimSpace(replacer.Replace(name))
}
