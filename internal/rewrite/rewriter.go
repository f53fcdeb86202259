// Package rewrite turns raw source HTML into a servable clone by resolving
// asset references against the source origin and stripping tracking scripts.
package rewrite

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// trackerHosts matches script sources that are stripped from clones. This is
// a best-effort privacy/stability measure, not a security boundary: third
// party analytics tend to break or phone home from replicated pages.
var trackerHosts = []string{
	"google-analytics.com",
	"googletagmanager.com",
	"gtag/js",
	"connect.facebook.net",
	"facebook.com/tr",
	"hotjar.com",
	"mc.yandex.ru",
	"segment.com",
	"mixpanel.com",
	"clarity.ms",
}

// Rewriter resolves relative asset URLs and strips tracking scripts.
// The zero value is ready to use.
type Rewriter struct{}

// New returns a Rewriter.
func New() *Rewriter {
	return &Rewriter{}
}

// Rewrite parses rawHTML, resolves every relative img/stylesheet/script
// reference against baseURL, removes denylisted tracking scripts, and
// serializes the result. The parser recovers from arbitrary malformed input,
// so errors only surface when baseURL itself is unusable.
func (Rewriter) Rewrite(rawHTML []byte, baseURL string) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url %q: %w", baseURL, err)
	}

	doc, err := html.Parse(bytes.NewReader(rawHTML))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	var drop []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script":
				if src, ok := attr(n, "src"); ok && isTracker(src) {
					drop = append(drop, n)
				} else if ok {
					setAttr(n, "src", resolveRef(base, src))
				}
			case "img":
				if src, ok := attr(n, "src"); ok {
					setAttr(n, "src", resolveRef(base, src))
				}
			case "link":
				if rel, ok := attr(n, "rel"); ok && strings.EqualFold(rel, "stylesheet") {
					if href, ok := attr(n, "href"); ok {
						setAttr(n, "href", resolveRef(base, href))
					}
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	for _, n := range drop {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return buf.String(), nil
}

// resolveRef makes ref absolute against base. Already-absolute URLs and
// data URIs pass through untouched, which keeps rewriting idempotent.
func resolveRef(base *url.URL, ref string) string {
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" || strings.HasPrefix(trimmed, "data:") {
		return ref
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return ref
	}
	if parsed.IsAbs() {
		return ref
	}
	return base.ResolveReference(parsed).String()
}

func isTracker(src string) bool {
	lowered := strings.ToLower(src)
	for _, host := range trackerHosts {
		if strings.Contains(lowered, host) {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}
