// Package scraped reads scraper output files: a JSON array of records or
// JSON Lines with one record per line.
package scraped

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/custodia-labs/sercha-digest/internal/core/domain"
	"github.com/custodia-labs/sercha-digest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-digest/internal/logger"
)

// Ensure Reader implements the interface.
var _ driven.SourceReader = (*Reader)(nil)

// maxLineBytes bounds a single JSON Lines record.
const maxLineBytes = 4 << 20

// record is the on-disk shape. Several field names are accepted because the
// scrapers grew independently.
type record struct {
	Title          string          `json:"title"`
	URL            string          `json:"url"`
	Link           string          `json:"link"`
	Source         string          `json:"source"`
	SourceID       string          `json:"source_id"`
	Excerpt        string          `json:"excerpt"`
	ContentSnippet string          `json:"content_snippet"`
	Summary        string          `json:"summary"`
	Language       string          `json:"language"`
	SourceType     string          `json:"source_type"`
	PublishedAt    string          `json:"published_at"`
	PublishedDate  string          `json:"published_date"`
	Views          json.RawMessage `json:"views"`
	VideoViews     json.RawMessage `json:"video_views"`
}

// Reader reads scraper output from the local filesystem.
type Reader struct{}

// NewReader creates a scraper output reader.
func NewReader() *Reader {
	return &Reader{}
}

// Read parses the file at source.Path. A file that cannot be opened, or a
// JSON array that does not decode, fails the whole source; a malformed JSON
// Lines record is skipped.
func (r *Reader) Read(ctx context.Context, source domain.SourceConfig) ([]domain.RawRecord, error) {
	data, err := os.ReadFile(resolvePath(source.Path))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", source.Path, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	var recs []record
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &recs); err != nil {
			return nil, fmt.Errorf("decode %s: %w", source.Path, err)
		}
	} else {
		recs, err = readLines(trimmed, source.ID)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", source.Path, err)
		}
	}

	out := make([]domain.RawRecord, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.toRaw())
	}
	return out, nil
}

func readLines(data []byte, sourceID string) ([]record, error) {
	var recs []record
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		var rec record
		if err := json.Unmarshal(text, &rec); err != nil {
			logger.Warn("source %s: skipping malformed line %d: %v", sourceID, line, err)
			continue
		}
		recs = append(recs, rec)
	}
	return recs, scanner.Err()
}

func (rec record) toRaw() domain.RawRecord {
	raw := domain.RawRecord{
		Title:      rec.Title,
		URL:        firstNonEmpty(rec.URL, rec.Link),
		SourceID:   rec.SourceID,
		Excerpt:    firstNonEmpty(rec.Excerpt, rec.ContentSnippet, rec.Summary),
		Language:   rec.Language,
		SourceType: domain.SourceType(strings.ToLower(rec.SourceType)),
	}
	if t, ok := parseTime(firstNonEmpty(rec.PublishedAt, rec.PublishedDate)); ok {
		raw.PublishedAt = &t
	}
	if v, ok := parseViews(rec.Views); ok {
		raw.Views = &v
	} else if v, ok := parseViews(rec.VideoViews); ok {
		raw.Views = &v
	}
	return raw
}

// parseTime accepts whatever date shape a scraper emitted: RFC 3339, RSS
// style RFC 1123, bare dates, written-out months or unix seconds. Values
// without a zone are taken as UTC.
func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// parseViews accepts a number or a numeric string such as "12,345".
func parseViews(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	n, err := strconv.Atoi(strings.NewReplacer(",", "", ".", "", " ", "").Replace(s))
	if err != nil {
		return 0, false
	}
	return n, true
}

// resolvePath accepts file:// URIs as well as bare paths.
func resolvePath(uri string) string {
	return strings.TrimPrefix(uri, "file://")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
