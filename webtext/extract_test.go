package webtext_test

import (
	"strings"
	"testing"

	"github.com/HelloJC24/BNGCIA/webtext"
)

func TestExtractKeepsContentText(t *testing.T) {
	page := `<html><body>
		<h1>About Our Company</h1>
		<p>We build software for small businesses across the region.</p>
		<ul><li>Consulting and custom development services</li></ul>
	</body></html>`

	text := webtext.Extract(page)
	for _, want := range []string{
		"About Our Company",
		"We build software for small businesses across the region.",
		"Consulting and custom development services",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected extracted text to contain %q, got:\n%s", want, text)
		}
	}
}

func TestExtractStripsBoilerplate(t *testing.T) {
	page := `<html><body>
		<nav><p>Home | Products | Contact page navigation links</p></nav>
		<script>var tracking = "should never appear in output";</script>
		<style>.hidden { display: none; } /* style text must not leak */</style>
		<p>Only this paragraph carries real page content worth keeping.</p>
		<footer><p>Copyright notice hidden in the page footer area</p></footer>
	</body></html>`

	text := webtext.Extract(page)
	if !strings.Contains(text, "Only this paragraph carries real page content worth keeping.") {
		t.Fatalf("content paragraph missing from:\n%s", text)
	}
	for _, banned := range []string{"tracking", "display: none", "navigation links", "footer area"} {
		if strings.Contains(text, banned) {
			t.Fatalf("boilerplate %q leaked into extracted text:\n%s", banned, text)
		}
	}
}

func TestExtractDropsShortFragments(t *testing.T) {
	page := `<html><body>
		<p>OK</p>
		<p>This sentence is comfortably longer than the fragment cutoff.</p>
	</body></html>`

	text := webtext.Extract(page)
	if strings.Contains(text, "OK") {
		t.Fatalf("short fragment should be dropped, got:\n%s", text)
	}
	if !strings.Contains(text, "comfortably longer") {
		t.Fatalf("long fragment missing from:\n%s", text)
	}
}

func TestExtractEmptyPage(t *testing.T) {
	if text := webtext.Extract("<html><body></body></html>"); text != "" {
		t.Fatalf("expected empty result, got %q", text)
	}
}

func TestLinksReturnsAnchorsInOrder(t *testing.T) {
	page := `<html><body>
		<a href="/about">About</a>
		<a href="https://other.example.com/page">External</a>
		<a>No href here</a>
		<a href="#section">Fragment</a>
	</body></html>`

	links := webtext.Links(page)
	want := []string{"/about", "https://other.example.com/page", "#section"}
	if len(links) != len(want) {
		t.Fatalf("expected %d links, got %d: %v", len(want), len(links), links)
	}
	for i, href := range want {
		if links[i] != href {
			t.Fatalf("link %d: expected %q, got %q", i, href, links[i])
		}
	}
}
