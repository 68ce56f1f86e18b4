package search

import (
	"context"

	"github.com/jaki95/slsk-fetcher/internal/slskd"
)

// MockClient is a mock implementation of Client for testing
type MockClient struct {
	SubmitSearchFunc     func(ctx context.Context, text string) (string, error)
	IsSearchCompleteFunc func(ctx context.Context, id string) (bool, error)
	FetchResultsFunc     func(ctx context.Context, id string) ([]slskd.SearchResponse, error)
	CancelSearchFunc     func(ctx context.Context, id string) error
}

// SubmitSearch implements the Client interface. Without a func it echoes the
// text back as the search id.
func (m *MockClient) SubmitSearch(ctx context.Context, text string) (string, error) {
	if m.SubmitSearchFunc != nil {
		return m.SubmitSearchFunc(ctx, text)
	}
	return text, nil
}

func (m *MockClient) IsSearchComplete(ctx context.Context, id string) (bool, error) {
	if m.IsSearchCompleteFunc != nil {
		return m.IsSearchCompleteFunc(ctx, id)
	}
	return true, nil
}

func (m *MockClient) FetchResults(ctx context.Context, id string) ([]slskd.SearchResponse, error) {
	if m.FetchResultsFunc != nil {
		return m.FetchResultsFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockClient) CancelSearch(ctx context.Context, id string) error {
	if m.CancelSearchFunc != nil {
		return m.CancelSearchFunc(ctx, id)
	}
	return nil
}
