// Package crawler walks the link graph of a set of company sites breadth
// first and hands each page's extracted text back to the caller.
package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/HelloJC24/BNGCIA/logger"
	"github.com/HelloJC24/BNGCIA/webtext"
)

// minPageTextLen is the shortest extracted text worth keeping; anything under
// it is navigation residue rather than content.
const minPageTextLen = 100

// maxBodyBytes caps how much of a response body is read per page.
const maxBodyBytes = 4 << 20

var skipExtensions = []string{".pdf", ".jpg", ".jpeg", ".png", ".gif", ".svg", ".css", ".js", ".ico", ".zip", ".mp4", ".webp"}

// Fetcher retrieves the raw HTML of a single URL. The default implementation
// uses plain HTTP; a headless-browser renderer can be substituted for
// JavaScript-heavy sites.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

func NewHTTPFetcher(timeout time.Duration, userAgent string) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPFetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: HTTP %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read body of %s: %w", pageURL, err)
	}

	return string(body), nil
}

var _ Fetcher = (*HTTPFetcher)(nil)

type Options struct {
	SameHostOnly bool
	MaxPages     int
}

type Crawler struct {
	fetcher Fetcher
	log     *logger.Logger
}

func New(fetcher Fetcher, log *logger.Logger) *Crawler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Crawler{fetcher: fetcher, log: log}
}

// Crawl visits up to opts.MaxPages distinct URLs breadth first, starting from
// seeds, and returns a map from URL to extracted page text. A page only
// enters the result when its text is substantial enough to index. Per-URL
// failures are logged and skipped; only context cancellation aborts the
// crawl as a whole.
func (c *Crawler) Crawl(ctx context.Context, seeds []string, opts Options) (map[string]string, error) {
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = 300
	}

	allowedHosts := make(map[string]struct{}, len(seeds))
	for _, seed := range seeds {
		if parsed, err := url.Parse(seed); err == nil && parsed.Host != "" {
			allowedHosts[parsed.Host] = struct{}{}
		}
	}

	visited := make(map[string]struct{})
	queued := make(map[string]struct{}, len(seeds))
	frontier := make([]string, 0, len(seeds))
	for _, seed := range seeds {
		if _, ok := queued[seed]; ok {
			continue
		}
		queued[seed] = struct{}{}
		frontier = append(frontier, seed)
	}

	results := make(map[string]string)
	c.log.Info("starting crawl", "seeds", len(seeds), "max_pages", maxPages)

	for len(frontier) > 0 && len(visited) < maxPages {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		pageURL := frontier[0]
		frontier = frontier[1:]
		if _, seen := visited[pageURL]; seen {
			continue
		}
		visited[pageURL] = struct{}{}

		c.log.Info("crawling page", "url", pageURL, "visited", len(visited), "max_pages", maxPages)

		rawHTML, err := c.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			c.log.Warn("page fetch failed", "url", pageURL, "error", err)
			continue
		}

		text := webtext.Extract(rawHTML)
		if len(strings.TrimSpace(text)) > minPageTextLen {
			results[pageURL] = text
			c.log.Info("extracted page text", "url", pageURL, "chars", len(text))
		}

		for _, href := range webtext.Links(rawHTML) {
			next, ok := canonicalLink(pageURL, href, allowedHosts, opts.SameHostOnly)
			if !ok {
				continue
			}
			if _, seen := visited[next]; seen {
				continue
			}
			if _, inQueue := queued[next]; inQueue {
				continue
			}
			queued[next] = struct{}{}
			frontier = append(frontier, next)
		}
	}

	c.log.Info("crawl complete", "pages_with_content", len(results), "pages_visited", len(visited))
	return results, nil
}

// canonicalLink resolves href against the current page, strips fragment and
// query components, and applies the scheme, host and file-extension filters.
func canonicalLink(pageURL, href string, allowedHosts map[string]struct{}, sameHostOnly bool) (string, bool) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false
	}

	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}
	if sameHostOnly {
		if _, ok := allowedHosts[resolved.Host]; !ok {
			return "", false
		}
	}

	resolved.Fragment = ""
	resolved.RawQuery = ""
	clean := resolved.String()

	lower := strings.ToLower(clean)
	for _, ext := range skipExtensions {
		if strings.HasSuffix(lower, ext) {
			return "", false
		}
	}

	return clean, true
}
