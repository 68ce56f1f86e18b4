package coordinator

import "errors"

var (
	// ErrStopped is returned by Enqueue once the pool has been stopped.
	ErrStopped = errors.New("coordinator stopped")
	// ErrRunning is returned by Start when workers are already running.
	ErrRunning = errors.New("coordinator already running")
	// ErrDuplicateTrack is returned when a track id was already enqueued.
	ErrDuplicateTrack = errors.New("track already enqueued")
	ErrInvalidTrack   = errors.New("invalid track")
)
