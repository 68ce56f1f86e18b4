package tracklist

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/samber/lo"

	"github.com/jaki95/slsk-fetcher/internal/domain"
)

var csvColumns = []string{"title", "main_artist", "artists", "feat_artist", "remixer", "remix_type"}

type CSVImporter struct {
}

func NewCSVImporter() *CSVImporter {
	return &CSVImporter{}
}

func (c *CSVImporter) Name() string {
	return SourceCSV
}

// Import reads a CSV file with a header row naming the track columns. Columns
// may appear in any order; title and main_artist are required. Multiple
// artists are separated by ";".
func (c *CSVImporter) Import(ctx context.Context, filePath string) ([]*domain.TrackRequest, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	tracks, err := c.parse(file)
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, fmt.Errorf("no tracks found in CSV file")
	}
	return tracks, nil
}

func (c *CSVImporter) parse(r io.Reader) ([]*domain.TrackRequest, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		if lo.Contains(csvColumns, name) {
			index[name] = i
		}
	}
	for _, required := range []string{"title", "main_artist"} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("CSV header is missing column %q", required)
		}
	}
	slog.Debug("CSV header", "columns", header)

	field := func(record []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var tracks []*domain.TrackRequest
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}

		t := &domain.TrackRequest{
			Title:      field(record, "title"),
			MainArtist: field(record, "main_artist"),
			FeatArtist: field(record, "feat_artist"),
			Remixer:    field(record, "remixer"),
			RemixType:  field(record, "remix_type"),
		}
		if t.Title == "" || t.MainArtist == "" {
			slog.Warn("Skipping CSV row without title or artist", "line", line)
			continue
		}

		artists := lo.Map(strings.Split(field(record, "artists"), ";"), func(a string, _ int) string {
			return strings.TrimSpace(a)
		})
		t.Artists = lo.Compact(artists)
		if len(t.Artists) == 0 {
			t.Artists = []string{t.MainArtist}
		}

		tracks = append(tracks, t)
	}
	return tracks, nil
}
