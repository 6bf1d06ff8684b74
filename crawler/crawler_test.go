package crawler_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/HelloJC24/BNGCIA/crawler"
)

// page wraps body text in enough markup to pass the minimum-content filter.
func page(body string, links ...string) string {
	var sb strings.Builder
	sb.WriteString("<html><body>")
	for _, href := range links {
		fmt.Fprintf(&sb, `<a href=%q>link</a>`, href)
	}
	fmt.Fprintf(&sb, "<p>%s</p>", body)
	sb.WriteString("</body></html>")
	return sb.String()
}

func longText(label string) string {
	return strings.Repeat(label+" paragraph text with enough words to clear the minimum page length. ", 3)
}

func TestCrawlFollowsSameHostLinks(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			fmt.Fprint(w, page(longText("home"), "/about", "/team"))
		case "/about":
			fmt.Fprint(w, page(longText("about")))
		case "/team":
			fmt.Fprint(w, page(longText("team")))
		default:
			http.NotFound(w, r)
		}
	})

	c := crawler.New(crawler.NewHTTPFetcher(0, "test-agent"), nil)
	pages, err := c.Crawl(context.Background(), []string{server.URL + "/"}, crawler.Options{SameHostOnly: true, MaxPages: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(pages) != 3 {
		t.Fatalf("expected 3 pages, got %d: %v", len(pages), keys(pages))
	}
	for _, path := range []string{"/", "/about", "/team"} {
		if _, ok := pages[server.URL+path]; !ok {
			t.Fatalf("missing page %s", path)
		}
	}
}

func TestCrawlRespectsMaxPages(t *testing.T) {
	var fetched int
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fetched++
		next := fmt.Sprintf("/page-%d", fetched)
		fmt.Fprint(w, page(longText(r.URL.Path), next))
	})

	c := crawler.New(crawler.NewHTTPFetcher(0, ""), nil)
	pages, err := c.Crawl(context.Background(), []string{server.URL + "/"}, crawler.Options{SameHostOnly: true, MaxPages: 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if fetched > 4 {
		t.Fatalf("fetched %d pages, limit was 4", fetched)
	}
	if len(pages) == 0 {
		t.Fatal("expected some pages")
	}
}

func TestCrawlSkipsOtherHostsWhenRestricted(t *testing.T) {
	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("off-host URL was fetched: %s", r.URL)
	}))
	defer other.Close()

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page(longText("home"), other.URL+"/external"))
	})

	c := crawler.New(crawler.NewHTTPFetcher(0, ""), nil)
	pages, err := c.Crawl(context.Background(), []string{server.URL + "/"}, crawler.Options{SameHostOnly: true, MaxPages: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("expected only the seed page, got %d", len(pages))
	}
}

func TestCrawlSkipsFailingAndThinPages(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			fmt.Fprint(w, page(longText("home"), "/missing", "/thin"))
		case "/thin":
			fmt.Fprint(w, page("Too short to index here."))
		default:
			http.NotFound(w, r)
		}
	})

	c := crawler.New(crawler.NewHTTPFetcher(0, ""), nil)
	pages, err := c.Crawl(context.Background(), []string{server.URL + "/"}, crawler.Options{SameHostOnly: true, MaxPages: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(pages) != 1 {
		t.Fatalf("expected only the seed page to yield content, got %v", keys(pages))
	}
	if _, ok := pages[server.URL+"/"]; !ok {
		t.Fatal("seed page missing from results")
	}
}

func TestCrawlNormalizesLinkVariants(t *testing.T) {
	var aboutFetches int
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			fmt.Fprint(w, page(longText("home"),
				"/about", "/about#team", "/about?utm_source=x",
				"/brochure.pdf", "/logo.png",
				"mailto:hello@example.com"))
		case "/about":
			aboutFetches++
			fmt.Fprint(w, page(longText("about")))
		default:
			t.Errorf("unexpected fetch of %s", r.URL.Path)
			http.NotFound(w, r)
		}
	})

	c := crawler.New(crawler.NewHTTPFetcher(0, ""), nil)
	if _, err := c.Crawl(context.Background(), []string{server.URL + "/"}, crawler.Options{SameHostOnly: true, MaxPages: 10}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if aboutFetches != 1 {
		t.Fatalf("fragment and query variants should collapse to one fetch, got %d", aboutFetches)
	}
}

func TestCrawlStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page(longText("home")))
	}))
	defer server.Close()

	c := crawler.New(crawler.NewHTTPFetcher(0, ""), nil)
	if _, err := c.Crawl(ctx, []string{server.URL + "/"}, crawler.Options{MaxPages: 10}); err == nil {
		t.Fatal("expected context error")
	}
}

func keys(pages map[string]string) []string {
	out := make([]string, 0, len(pages))
	for url := range pages {
		out = append(out, url)
	}
	return out
}
