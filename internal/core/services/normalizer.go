package services

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/custodia-labs/sercha-digest/internal/core/domain"
	"github.com/custodia-labs/sercha-digest/internal/core/ports/driven"
)

// MaxExcerptRunes bounds the excerpt kept for scoring and analysis.
const MaxExcerptRunes = 800

// trackingParams are query parameters dropped during URL normalisation.
var trackingParams = map[string]bool{
	"fbclid": true, "gclid": true, "mc_cid": true, "mc_eid": true, "ref": true,
}

// Normalizer converts raw scraper records into Documents.
type Normalizer struct {
	detector driven.LanguageDetector
}

// NewNormalizer creates a normaliser. detector may be nil.
func NewNormalizer(detector driven.LanguageDetector) *Normalizer {
	return &Normalizer{detector: detector}
}

// Normalize builds a Document from one raw record. Missing optional fields
// are substituted; a missing title or URL fails the record.
func (n *Normalizer) Normalize(raw domain.RawRecord, src domain.SourceConfig, seq int) (domain.Document, error) {
	title := collapseSpace(cleanText(raw.Title))
	link := strings.TrimSpace(raw.URL)
	if title == "" {
		return domain.Document{}, fmt.Errorf("%w: title (source %s, url %q)", domain.ErrMissingField, src.ID, link)
	}
	if link == "" {
		return domain.Document{}, fmt.Errorf("%w: url (source %s, title %q)", domain.ErrMissingField, src.ID, title)
	}

	var id string
	normURL, err := NormalizeURL(link)
	if err != nil {
		id = DocumentID(link + "\n" + title)
		normURL = link
	} else {
		id = DocumentID(normURL)
	}

	sourceType := src.Type
	if raw.SourceType.IsValid() {
		sourceType = raw.SourceType
	}

	excerpt := truncateRunes(collapseSpace(cleanText(raw.Excerpt)), MaxExcerptRunes)

	lang := strings.ToLower(strings.TrimSpace(raw.Language))
	if lang == "" {
		lang = strings.ToLower(src.Language)
	}
	if lang == "" && n.detector != nil {
		lang = n.detector.Detect(title + " " + excerpt)
	}

	sourceID := src.ID
	if raw.SourceID != "" {
		sourceID = raw.SourceID
	}

	return domain.Document{
		ID:               id,
		Title:            title,
		URL:              normURL,
		SourceID:         sourceID,
		SourceName:       src.DisplayName(),
		SourceType:       sourceType,
		SourcePriority:   src.Priority,
		PublishedAt:      raw.PublishedAt,
		Excerpt:          excerpt,
		DeclaredLanguage: lang,
		Category:         src.Category,
		Views:            raw.Views,
		Seq:              seq,
	}, nil
}

// NormalizeAll normalises a batch, numbering documents from startSeq.
// Failed records are reported and skipped.
func (n *Normalizer) NormalizeAll(raws []domain.RawRecord, src domain.SourceConfig, startSeq int) ([]domain.Document, []error) {
	docs := make([]domain.Document, 0, len(raws))
	var errs []error
	for _, raw := range raws {
		d, err := n.Normalize(raw, src, startSeq+len(docs))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		docs = append(docs, d)
	}
	return docs, errs
}

// NormalizeURL canonicalises a URL: lower-case scheme and host, default
// ports removed, fragment and tracking parameters dropped, query sorted,
// trailing slash trimmed.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: url %q is not absolute", domain.ErrInvalidInput, raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		host = host + ":" + port
	}
	u.Host = host
	u.Fragment = ""
	u.RawFragment = ""

	query := u.Query()
	for key := range query {
		if strings.HasPrefix(strings.ToLower(key), "utm_") || trackingParams[strings.ToLower(key)] {
			query.Del(key)
		}
	}
	keys := make([]string, 0, len(query))
	for key := range query {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		values := query[key]
		sort.Strings(values)
		for _, v := range values {
			parts = append(parts, url.QueryEscape(key)+"="+url.QueryEscape(v))
		}
	}
	u.RawQuery = strings.Join(parts, "&")

	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), nil
}

// DocumentID hashes a key into a stable identifier.
func DocumentID(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:16])
}

// cleanText strips markup and decodes entities.
func cleanText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	doc.Find("script, style, noscript").Remove()
	return doc.Text()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return strings.TrimSpace(string(r[:limit]))
}
