package urlutil

import (
	"net/url"
	"regexp"
	"strings"
)

// RejectReason is one of the C1 cheap structural filters. The first
// matching reason wins; rejections are counted per reason for reporting.
type RejectReason string

const (
	ReasonBinaryFile        RejectReason = "binary_file"
	ReasonExternalDomain    RejectReason = "external_domain"
	ReasonPathTooLong       RejectReason = "path_too_long"
	ReasonComplexQuery      RejectReason = "complex_query"
	ReasonNonContentPath    RejectReason = "non_content_path"
	ReasonTrackingParams    RejectReason = "tracking_params"
	ReasonUselessFileType   RejectReason = "useless_file_type"
	ReasonTooDeepNesting    RejectReason = "too_deep_nesting"
	ReasonTooManySpecial    RejectReason = "too_many_special_chars"
)

var binaryExtensions = []string{
	".png", ".jpg", ".jpeg", ".gif", ".bmp", ".ico", ".svg", ".webp",
	".pdf", ".zip", ".rar", ".7z", ".tar", ".gz",
	".woff", ".woff2", ".ttf", ".eot", ".otf",
	".mp3", ".mp4", ".avi", ".mov", ".wmv", ".flv",
	".exe", ".dmg", ".apk", ".iso",
}

var uselessExtensions = []string{
	".xml", ".json", ".csv", ".map", ".woff2",
}

var nonContentPathFragments = []string{
	"/api/", "/admin/", "/_", "/tracking/", "/oauth/", "/login/",
	"/wp-admin/", "/wp-json/", "/cgi-bin/", "/.well-known/",
}

var trackingQueryKeys = []string{
	"session=", "token=", "timestamp=", "sid=", "sessionid=",
}

var specialCharPattern = regexp.MustCompile(`[-_=&%?#]`)

// Filter applies the C1 cheap reject filters to a canonical URL. SiteDomain
// is the configured crawl target; a host not ending with it is rejected as
// external_domain (empty SiteDomain disables that check).
type Filter struct {
	SiteDomain string

	counts map[RejectReason]int
}

// NewFilter returns a Filter scoped to a site domain (may be empty to skip
// the external_domain check).
func NewFilter(siteDomain string) *Filter {
	return &Filter{
		SiteDomain: strings.ToLower(siteDomain),
		counts:     make(map[RejectReason]int),
	}
}

// Check evaluates rawURL against the filter table. ok is false iff a reason
// fired; the reason is returned either way it fired (zero value otherwise).
func (f *Filter) Check(rawURL string) (ok bool, reason RejectReason) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, ReasonNonContentPath
	}

	path := strings.ToLower(u.Path)
	query := strings.ToLower(u.RawQuery)

	switch {
	case hasAnySuffix(path, binaryExtensions):
		reason = ReasonBinaryFile
	case f.SiteDomain != "" && !strings.HasSuffix(strings.ToLower(u.Host), f.SiteDomain):
		reason = ReasonExternalDomain
	case len(u.Path) > 300:
		reason = ReasonPathTooLong
	case len(u.RawQuery) > 100:
		reason = ReasonComplexQuery
	case hasAnySubstring(path, nonContentPathFragments):
		reason = ReasonNonContentPath
	case hasAnySubstring(query, trackingQueryKeys):
		reason = ReasonTrackingParams
	case hasAnySuffix(path, uselessExtensions):
		reason = ReasonUselessFileType
	case pathDepth(u.Path) > 8:
		reason = ReasonTooDeepNesting
	case len(specialCharPattern.FindAllString(u.Path, -1)) > 15:
		reason = ReasonTooManySpecial
	default:
		return true, ""
	}

	f.record(reason)
	return false, reason
}

func (f *Filter) record(reason RejectReason) {
	if f.counts == nil {
		f.counts = make(map[RejectReason]int)
	}
	f.counts[reason]++
}

// Counts returns a snapshot of rejections observed so far, keyed by reason.
func (f *Filter) Counts() map[RejectReason]int {
	out := make(map[RejectReason]int, len(f.counts))
	for k, v := range f.counts {
		out[k] = v
	}
	return out
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}

func hasAnySubstring(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func pathDepth(path string) int {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) == 1 && segments[0] == "" {
		return 0
	}
	return len(segments)
}
