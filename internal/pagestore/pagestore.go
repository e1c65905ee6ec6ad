// Package pagestore persists one directory per crawled URL under the run's
// output root: extracted markdown, rendered HTML, a raw-HTML compatibility
// copy, and a small metadata document.
package pagestore

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/demomirror/crawler/internal/model"
)

// Meta is the contents of a page's meta.json.
type Meta struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	FetchedAt   time.Time `json:"fetched_at"`
	ContentType string    `json:"content_type"`
	BytesHTML   int       `json:"bytes_html"`
	HTMLFlavor  model.HTMLFlavor `json:"html_flavor"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
}

// Store writes page directories under root.
type Store struct {
	root string
}

// New returns a Store rooted at outputRoot.
func New(outputRoot string) *Store {
	return &Store{root: outputRoot}
}

const maxSegmentLen = 40
const maxTotalPathLen = 250

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9]+`)

func sanitizeSegment(s string) string {
	s = strings.ToLower(s)
	s = nonAlnumRe.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		s = "root"
	}
	if len(s) > maxSegmentLen {
		s = s[:maxSegmentLen]
	}
	return s
}

// PagePath computes the directory a URL's page is persisted under:
// <root>/<host>/<path-segments>/_q_<sorted-query>/, sanitized per segment
// and falling back to a SHA-1-named directory when the assembled path would
// exceed maxTotalPathLen (the Windows path-length ceiling this system
// targets).
func (s *Store) PagePath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return filepath.Join(s.root, "_invalid", sha1Hex(rawURL))
	}

	segments := []string{sanitizeSegment(u.Host)}
	for _, seg := range strings.Split(strings.Trim(u.Path, "/"), "/") {
		if seg == "" {
			continue
		}
		segments = append(segments, sanitizeSegment(seg))
	}

	if u.RawQuery != "" {
		segments = append(segments, "_q_"+sanitizeSegment(sortedQuery(u.RawQuery)))
	}

	full := filepath.Join(append([]string{s.root}, segments...)...)
	if len(full) > maxTotalPathLen {
		return filepath.Join(s.root, "_overflow", sha1Hex(rawURL))
	}
	return full
}

func sortedQuery(rawQuery string) string {
	pairs := strings.Split(rawQuery, "&")
	sort.Strings(pairs)
	return strings.Join(pairs, "-")
}

func sha1Hex(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Save writes index.md, index.html, raw.html, and meta.json for one page.
// A filesystem write failure is logged by the caller and must never abort
// the crawl; Save returns the error so the orchestrator can do exactly that.
func (s *Store) Save(page model.PageRecord) error {
	dir := s.PagePath(page.CanonicalURL)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("pagestore: creating %s: %w", dir, err)
	}

	html := page.RenderedHTML
	if html == "" {
		html = page.RawHTML
	}

	if err := writeFileAtomic(filepath.Join(dir, "index.md"), []byte(page.ExtractedMarkdown)); err != nil {
		return fmt.Errorf("pagestore: writing index.md: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(dir, "index.html"), []byte(html)); err != nil {
		return fmt.Errorf("pagestore: writing index.html: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(dir, "raw.html"), []byte(html)); err != nil {
		return fmt.Errorf("pagestore: writing raw.html: %w", err)
	}

	meta := Meta{
		URL:         page.FinalURL,
		Title:       page.Title,
		FetchedAt:   page.FetchedAt.UTC(),
		ContentType: page.ContentType,
		BytesHTML:   len(html),
		HTMLFlavor:  page.HTMLFlavor,
		Success:     page.HTTPStatus >= 200 && page.HTTPStatus < 400,
	}
	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("pagestore: marshaling meta.json: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(dir, "meta.json"), metaJSON); err != nil {
		return fmt.Errorf("pagestore: writing meta.json: %w", err)
	}

	return nil
}

// writeFileAtomic writes to a temp file in the same directory and renames
// it into place, so a page is never observed half-written (spec's
// per-URL-atomic persistence guarantee).
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// SaveFailure records a failed fetch's meta.json only (no page content
// exists to persist).
func (s *Store) SaveFailure(rawURL string, fetchedAt time.Time, errMsg string) error {
	dir := s.PagePath(rawURL)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("pagestore: creating %s: %w", dir, err)
	}

	meta := Meta{URL: rawURL, FetchedAt: fetchedAt.UTC(), Success: false, Error: errMsg}
	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(dir, "meta.json"), metaJSON)
}
