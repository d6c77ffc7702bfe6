// Package notion delivers digest items as pages in a Notion database.
package notion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/jomei/notionapi"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/sercha-digest/internal/core/domain"
	"github.com/custodia-labs/sercha-digest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-digest/internal/logger"
)

// Name is the channel name profiles use to select this deliverer.
const Name = "notion"

// Database property names.
const (
	PropTitle    = "Name"
	PropCategory = "Category"
	PropSummary  = "Summary"
	PropCoreTech = "Core Tech"
	PropSource   = "Source"
	PropURL      = "URL"
	PropDate     = "Date"
	PropTools    = "Tool Stack"
	PropProfile  = "Profile"
	PropScore    = "Score"
)

// Notion rejects rich text longer than this.
const maxText = 2000

// requestsPerSecond is Notion's documented average rate limit.
const requestsPerSecond = 3

// PageCreator is the part of notionapi.PageService the deliverer uses.
type PageCreator interface {
	Create(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error)
}

// DatabaseQuerier is the part of notionapi.DatabaseService the deliverer uses.
type DatabaseQuerier interface {
	Query(ctx context.Context, id notionapi.DatabaseID, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
}

// Deliverer creates one page per primary item, skipping items whose URL is
// already in the database.
type Deliverer struct {
	pages      PageCreator
	databases  DatabaseQuerier
	databaseID string
	limiter    *rate.Limiter
}

var _ driven.Deliverer = (*Deliverer)(nil)

// New creates a deliverer authenticated with token. A profile destination,
// when set, replaces databaseID for that profile.
func New(token, databaseID string) *Deliverer {
	client := notionapi.NewClient(notionapi.Token(token))
	return NewWithServices(client.Page, client.Database, databaseID)
}

// NewWithServices creates a deliverer over explicit services.
func NewWithServices(pages PageCreator, databases DatabaseQuerier, databaseID string) *Deliverer {
	return &Deliverer{
		pages:      pages,
		databases:  databases,
		databaseID: databaseID,
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

// Name returns the channel name.
func (d *Deliverer) Name() string {
	return Name
}

// Deliver pushes the payload's primary items. Authentication and schema
// errors abort immediately; other per-page failures are collected so the
// remaining items are still attempted.
func (d *Deliverer) Deliver(ctx context.Context, profile domain.RecipientProfile, payload domain.DeliveryPayload) error {
	dbID := d.databaseID
	if own := profile.Destination(Name); own != "" {
		dbID = own
	}
	if dbID == "" {
		return fmt.Errorf("%w: no notion database for profile %s", domain.ErrMissingField, profile.ID)
	}

	existing, err := d.existingURLs(ctx, notionapi.DatabaseID(dbID))
	if err != nil {
		if isFatal(err) {
			return fmt.Errorf("querying notion database: %w", err)
		}
		logger.Warn("notion: could not fetch existing urls: %v", err)
	}

	day := payload.Run.StartedAt
	if day.IsZero() {
		day = time.Now()
	}

	var errs []error
	pushed := 0
	seen := make(map[string]bool, len(payload.Primary))
	for _, item := range payload.Primary {
		if u := NormalizeURL(item.URL); u != "" && existing[u] {
			logger.Debug("notion: skip %s, url already in database", item.ID)
			continue
		}
		key := dedupeKey(item.AnalyzedDocument)
		if seen[key] {
			continue
		}
		seen[key] = true

		if err := d.limiter.Wait(ctx); err != nil {
			return err
		}
		req := PageRequest(dbID, profile, item, day)
		if _, err := d.pages.Create(ctx, req); err != nil {
			if isFatal(err) {
				return fmt.Errorf("creating notion page: %w", err)
			}
			logger.Warn("notion: failed to push %s: %v", item.ID, err)
			errs = append(errs, fmt.Errorf("page for %s: %w", item.ID, err))
			continue
		}
		pushed++
	}

	logger.Info("notion: %d pages created for %s (%d skipped)", pushed, profile.ID, len(payload.Primary)-pushed-len(errs))
	return errors.Join(errs...)
}

// existingURLs pages through the database collecting normalised URLs.
func (d *Deliverer) existingURLs(ctx context.Context, id notionapi.DatabaseID) (map[string]bool, error) {
	urls := make(map[string]bool)
	seenCursors := make(map[notionapi.Cursor]bool)
	var cursor notionapi.Cursor

	for {
		if seenCursors[cursor] {
			logger.Warn("notion: cursor loop detected, stopping pagination")
			return urls, nil
		}
		seenCursors[cursor] = true

		if err := d.limiter.Wait(ctx); err != nil {
			return urls, err
		}
		resp, err := d.databases.Query(ctx, id, &notionapi.DatabaseQueryRequest{
			StartCursor: cursor,
			PageSize:    100,
		})
		if err != nil {
			return urls, err
		}

		for _, page := range resp.Results {
			if u := NormalizeURL(urlProperty(page.Properties[PropURL])); u != "" {
				urls[u] = true
			}
		}
		if !resp.HasMore || resp.NextCursor == "" {
			return urls, nil
		}
		cursor = resp.NextCursor
	}
}

func urlProperty(p notionapi.Property) string {
	switch v := p.(type) {
	case *notionapi.URLProperty:
		return v.URL
	case notionapi.URLProperty:
		return v.URL
	}
	return ""
}

// isFatal reports whether retrying other pages is pointless.
func isFatal(err error) bool {
	var apiErr *notionapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return true
	case http.StatusBadRequest:
		return apiErr.Code == "validation_error"
	}
	return false
}

func dedupeKey(d domain.AnalyzedDocument) string {
	raw := strings.Join([]string{
		NormalizeURL(d.URL),
		strings.ToLower(strings.TrimSpace(d.SourceName)),
		strings.ToLower(strings.TrimSpace(d.TitleIn("en"))),
	}, "|")
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

var tagSplit = regexp.MustCompile(`[,;，；、/]`)

// Tags splits a free-text list into at most ten multi-select options.
func Tags(text string) []notionapi.Option {
	var out []notionapi.Option
	for _, part := range tagSplit.Split(text, -1) {
		tag := strings.TrimSpace(part)
		if tag == "" || len(tag) >= 100 {
			continue
		}
		out = append(out, notionapi.Option{Name: tag})
		if len(out) == 10 {
			break
		}
	}
	return out
}
