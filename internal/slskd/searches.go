package slskd

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"
)

type searchRequest struct {
	ID         string `json:"id"`
	SearchText string `json:"searchText"`
}

// SubmitSearch starts a network search and returns its id.
func (c *Client) SubmitSearch(ctx context.Context, text string) (string, error) {
	id := uuid.NewString()
	if err := c.do(ctx, http.MethodPost, "/searches", searchRequest{ID: id, SearchText: text}, nil); err != nil {
		return "", err
	}
	return id, nil
}

// IsSearchComplete reports whether slskd has finished collecting responses.
func (c *Client) IsSearchComplete(ctx context.Context, id string) (bool, error) {
	var s Search
	if err := c.do(ctx, http.MethodGet, "/searches/"+url.PathEscape(id), nil, &s); err != nil {
		return false, err
	}
	return s.IsComplete, nil
}

// FetchResults returns every peer response gathered for the search so far.
func (c *Client) FetchResults(ctx context.Context, id string) ([]SearchResponse, error) {
	var responses []SearchResponse
	if err := c.do(ctx, http.MethodGet, "/searches/"+url.PathEscape(id)+"/responses", nil, &responses); err != nil {
		return nil, fmt.Errorf("failed to fetch responses for search %s: %w", id, err)
	}
	return responses, nil
}

func (c *Client) ListSearches(ctx context.Context) ([]Search, error) {
	var searches []Search
	if err := c.do(ctx, http.MethodGet, "/searches", nil, &searches); err != nil {
		return nil, err
	}
	return searches, nil
}

// CancelSearch stops a running search; collected responses stay available.
func (c *Client) CancelSearch(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPut, "/searches/"+url.PathEscape(id), nil, nil)
}

func (c *Client) DeleteSearch(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/searches/"+url.PathEscape(id), nil, nil)
}
