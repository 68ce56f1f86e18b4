package domain

import (
	"path"
	"strings"
)

// SearchCandidate is one file offered by one peer in response to a search.
type SearchCandidate struct {
	Peer      string `json:"peer"`
	Filename  string `json:"filename"`
	Size      int64  `json:"size"`
	Length    *int   `json:"length,omitempty"`
	BitRate   *int   `json:"bit_rate,omitempty"`
	BitDepth  *int   `json:"bit_depth,omitempty"`
	Extension string `json:"extension,omitempty"`
	Locked    bool   `json:"locked"`
}

// BaseName returns the last component of the remote filename. Peers report
// Windows-style paths, so both separators are honoured.
func (c SearchCandidate) BaseName() string {
	name := c.Filename
	if i := strings.LastIndexAny(name, `\/`); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// Directory returns the last directory component of the remote filename.
func (c SearchCandidate) Directory() string {
	parts := strings.FieldsFunc(c.Filename, func(r rune) bool { return r == '\\' || r == '/' })
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-2]
}

// Ext returns the lower-case file extension without the leading dot, falling
// back to the filename when the peer did not report one.
func (c SearchCandidate) Ext() string {
	ext := c.Extension
	if ext == "" {
		ext = path.Ext(c.BaseName())
	}
	return strings.TrimPrefix(strings.ToLower(ext), ".")
}

// RankedMatch is a candidate that survived filtering, with the bit rate used to
// order it.
type RankedMatch struct {
	Candidate SearchCandidate `json:"candidate"`
	BitRate   int             `json:"bit_rate"`
}

// Peer is a shorthand for the candidate's peer.
func (m RankedMatch) Peer() string {
	return m.Candidate.Peer
}
