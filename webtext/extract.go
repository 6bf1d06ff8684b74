// Package webtext turns raw HTML into clean text suitable for chunking and
// embedding, and scans pages for outbound links.
package webtext

import (
	"strings"

	"golang.org/x/net/html"
)

// minFragmentLen filters out stray labels, icons and menu crumbs.
const minFragmentLen = 10

var skipTags = map[string]struct{}{
	"script":   {},
	"style":    {},
	"noscript": {},
	"iframe":   {},
	"nav":      {},
	"footer":   {},
	"header":   {},
	"aside":    {},
}

var contentTags = map[string]struct{}{
	"h1": {}, "h2": {}, "h3": {}, "h4": {}, "h5": {}, "h6": {},
	"p":       {},
	"li":      {},
	"article": {},
	"section": {},
	"div":     {},
}

// Extract returns the visible text of content-bearing elements, one fragment
// per line. Boilerplate elements (script, style, nav, header, footer, aside)
// are removed before extraction, and fragments shorter than minFragmentLen
// are dropped. Returns "" when no qualifying content is found.
func Extract(rawHTML string) string {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}

	var fragments []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if _, skip := skipTags[n.Data]; skip {
				return
			}
			if _, ok := contentTags[n.Data]; ok {
				text := collapseSpaces(nodeText(n))
				if len(text) > minFragmentLen {
					fragments = append(fragments, text)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return strings.TrimSpace(strings.Join(fragments, "\n"))
}

// Links returns the href attribute of every anchor in the document, in
// document order. Resolution against a base URL is left to the caller.
func Links(rawHTML string) []string {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil
	}

	var hrefs []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key == "href" && attr.Val != "" {
					hrefs = append(hrefs, attr.Val)
					break
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return hrefs
}

// nodeText flattens the text nodes under n, ignoring boilerplate subtrees.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode {
			if _, skip := skipTags[node.Data]; skip {
				return
			}
		}
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
			sb.WriteString(" ")
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
