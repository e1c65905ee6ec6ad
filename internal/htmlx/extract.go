// Package htmlx provides shared HTML tree-walking helpers used by both the
// crawl orchestrator (link extraction) and the content deduplicator
// (meaningful-text extraction, redirect-stub detection).
package htmlx

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Link is a single anchor discovered on a page.
type Link struct {
	URL  string
	Text string
}

// ExtractLinks walks the document and returns every <a href> resolved
// against baseURL, skipping javascript:/mailto:/tel:/fragment-only hrefs.
func ExtractLinks(baseURL string, htmlBytes []byte) ([]Link, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}

	doc, err := html.Parse(bytes.NewReader(htmlBytes))
	if err != nil {
		return nil, err
	}

	var links []Link
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			href := attr(n, "href")
			if href != "" && !strings.HasPrefix(href, "javascript:") &&
				!strings.HasPrefix(href, "mailto:") && !strings.HasPrefix(href, "tel:") &&
				!strings.HasPrefix(href, "#") {
				if ref, err := url.Parse(href); err == nil {
					links = append(links, Link{
						URL:  base.ResolveReference(ref).String(),
						Text: strings.TrimSpace(textContent(n)),
					})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return links, nil
}

// meaningfulTags are the elements whose text is considered meaningful
// content for deduplication purposes.
var meaningfulTags = map[string]bool{
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"p": true, "li": true, "td": true, "th": true, "figcaption": true,
	"caption": true, "blockquote": true, "dd": true, "dt": true,
}

var skippedTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
}

// MeaningfulText extracts the page title plus the visible text of its
// main/article region (falling back to body), focused on heading,
// paragraph, list, table, and figure elements, with whitespace collapsed.
func MeaningfulText(htmlBytes []byte) (title, text string) {
	doc, err := html.Parse(bytes.NewReader(htmlBytes))
	if err != nil {
		return "", ""
	}

	var titleNode *html.Node
	var mainNode, articleNode, bodyNode *html.Node

	var find func(*html.Node)
	find = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if titleNode == nil {
					titleNode = n
				}
			case "main":
				if mainNode == nil {
					mainNode = n
				}
			case "article":
				if articleNode == nil {
					articleNode = n
				}
			case "body":
				if bodyNode == nil {
					bodyNode = n
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			find(c)
		}
	}
	find(doc)

	if titleNode != nil {
		title = strings.TrimSpace(textContent(titleNode))
	}

	root := mainNode
	if root == nil {
		root = articleNode
	}
	if root == nil {
		root = bodyNode
	}
	if root == nil {
		root = doc
	}

	var buf strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.ElementNode && skippedTags[n.Data] {
			return
		}
		if n.Type == html.ElementNode && meaningfulTags[n.Data] {
			buf.WriteString(strings.TrimSpace(textContent(n)))
			buf.WriteString(" ")
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(root)

	text = collapseWhitespace(buf.String())
	return title, text
}

var whitespaceRe = regexp.MustCompile(`\s+`)

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// CanonicalLink returns the href of <link rel="canonical">, if present.
func CanonicalLink(htmlBytes []byte) (string, bool) {
	doc, err := html.Parse(bytes.NewReader(htmlBytes))
	if err != nil {
		return "", false
	}
	var found string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "link" {
			if strings.EqualFold(attr(n, "rel"), "canonical") {
				found = attr(n, "href")
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return found, found != ""
}

var metaRefreshURLRe = regexp.MustCompile(`(?i)url\s*=\s*['"]?([^'">]+)`)

// MetaRefreshTarget returns the redirect target of a
// <meta http-equiv="refresh" content="N; url=..."> tag, if present.
func MetaRefreshTarget(htmlBytes []byte) (string, bool) {
	doc, err := html.Parse(bytes.NewReader(htmlBytes))
	if err != nil {
		return "", false
	}
	var target string
	var found bool
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found {
			return
		}
		if n.Type == html.ElementNode && n.Data == "meta" {
			if strings.EqualFold(attr(n, "http-equiv"), "refresh") {
				content := attr(n, "content")
				if m := metaRefreshURLRe.FindStringSubmatch(content); m != nil {
					target = m[1]
				}
				found = true
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return target, found
}

var jsRedirectRe = regexp.MustCompile(`(?i)window\.location|location\.replace`)

// HasJSRedirectHint reports whether any <script> body contains a
// window.location/location.replace assignment, a lightweight signal used by
// the redirect-stub dedup tier.
func HasJSRedirectHint(htmlBytes []byte) bool {
	doc, err := html.Parse(bytes.NewReader(htmlBytes))
	if err != nil {
		return false
	}
	found := false
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found {
			return
		}
		if n.Type == html.ElementNode && n.Data == "script" {
			if jsRedirectRe.MatchString(textContent(n)) {
				found = true
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return found
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var buf bytes.Buffer
	var collect func(*html.Node, bool)
	collect = func(n *html.Node, isRoot bool) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		if !isRoot && n.Type == html.ElementNode && skippedTags[n.Data] {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c, false)
		}
	}
	collect(n, true)
	return buf.String()
}
