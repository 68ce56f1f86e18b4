package downloader

import "errors"

var (
	// ErrDownloadTimeout means the transfer did not finish before the deadline.
	ErrDownloadTimeout = errors.New("download timeout")
	// ErrDownloadFailed means slskd reported a terminal, unsuccessful state.
	ErrDownloadFailed = errors.New("download failed")
	// ErrPlacementFailed wraps filesystem and storage errors raised while
	// moving a finished download into the library.
	ErrPlacementFailed = errors.New("placement failed")
)
