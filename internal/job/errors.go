package job

import "errors"

var (
	ErrNoTracks     = errors.New("no tracks requested")
	ErrNotFound     = errors.New("run not found")
	ErrInvalidState = errors.New("invalid run state")
)
