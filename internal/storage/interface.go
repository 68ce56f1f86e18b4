package storage

import (
	"context"
)

// Storage is the music library the pipeline places finished downloads into.
// Names are library-relative file names such as "Bicep - Glue.flac".
type Storage interface {
	// Exists reports whether the library already holds name.
	Exists(ctx context.Context, name string) (bool, error)

	// Place moves the local file at src into the library under name and
	// returns its final location. src no longer exists afterwards.
	Place(ctx context.Context, src, name string) (string, error)

	// Path returns the location name has, or would have, in the library.
	Path(name string) string

	Close() error
}
