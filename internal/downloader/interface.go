package downloader

import (
	"context"

	"github.com/jaki95/slsk-fetcher/internal/slskd"
)

// TransferClient is the part of the slskd API the downloader needs.
type TransferClient interface {
	EnqueueDownload(ctx context.Context, peer string, file slskd.DownloadRequest) error
	ListDownloads(ctx context.Context, peer string) (slskd.UserTransfers, error)
}

// Library receives finished downloads. storage.Storage satisfies it.
type Library interface {
	Exists(ctx context.Context, name string) (bool, error)
	Place(ctx context.Context, src, name string) (string, error)
	Path(name string) string
}
