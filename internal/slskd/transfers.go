package slskd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/hashicorp/go-multierror"
)

// EnqueueDownload asks slskd to download one file from peer.
func (c *Client) EnqueueDownload(ctx context.Context, peer string, file DownloadRequest) error {
	path := "/transfers/downloads/" + url.PathEscape(peer)
	if err := c.do(ctx, http.MethodPost, path, []DownloadRequest{file}, nil); err != nil {
		return fmt.Errorf("failed to enqueue %s from %s: %w", file.Filename, peer, err)
	}
	return nil
}

// ListDownloads returns the transfers with one peer. A peer with no transfers
// yields ErrNotFound.
func (c *Client) ListDownloads(ctx context.Context, peer string) (UserTransfers, error) {
	var transfers UserTransfers
	err := c.do(ctx, http.MethodGet, "/transfers/downloads/"+url.PathEscape(peer), nil, &transfers)
	return transfers, err
}

func (c *Client) ListAllDownloads(ctx context.Context) ([]UserTransfers, error) {
	var transfers []UserTransfers
	if err := c.do(ctx, http.MethodGet, "/transfers/downloads", nil, &transfers); err != nil {
		return nil, err
	}
	return transfers, nil
}

// RemoveCompletedDownloads clears every finished transfer from the slskd queue.
func (c *Client) RemoveCompletedDownloads(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/transfers/downloads/all/completed", nil, nil)
}

// Clean removes completed transfers and deletes every search so a run starts
// from an empty slskd state. All failures are collected.
func (c *Client) Clean(ctx context.Context) error {
	var result *multierror.Error

	if err := c.RemoveCompletedDownloads(ctx); err != nil {
		result = multierror.Append(result, err)
	}

	searches, err := c.ListSearches(ctx)
	if err != nil {
		result = multierror.Append(result, err)
		return result.ErrorOrNil()
	}

	deleted := 0
	for _, s := range searches {
		if err := c.DeleteSearch(ctx, s.ID); err != nil && !errors.Is(err, ErrNotFound) {
			result = multierror.Append(result, err)
			continue
		}
		deleted++
	}
	slog.Info("Cleaned slskd state", "searches_deleted", deleted)

	return result.ErrorOrNil()
}
