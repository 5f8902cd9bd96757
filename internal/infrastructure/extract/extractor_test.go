package extract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func serve(t *testing.T, html string) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(html))
	}))
	t.Cleanup(server.Close)
	return server
}

func longParagraph() string {
	return strings.Repeat("meaningful article sentence about search analytics. ", 10)
}

func TestExtractFromArticleContainer(t *testing.T) {
	t.Parallel()

	server := serve(t, `<html><body>
		<nav>Site navigation</nav>
		<article>
			<p>First paragraph of the story.</p>
			<p>`+longParagraph()+`</p>
		</article>
		<footer>Copyright footer</footer>
	</body></html>`)

	e := New(server.Client(), nil)
	text := e.Extract(context.Background(), server.URL)

	if !strings.Contains(text, "First paragraph of the story.") {
		t.Fatalf("expected article paragraphs, got %q", text)
	}
	if strings.Contains(text, "Site navigation") || strings.Contains(text, "Copyright footer") {
		t.Fatalf("page chrome must be stripped, got %q", text)
	}
}

func TestExtractFallsBackToDensestBlock(t *testing.T) {
	t.Parallel()

	server := serve(t, `<html><body>
		<div><p>Sidebar teaser.</p></div>
		<div id="content">
			<p>`+longParagraph()+`</p>
			<p>Closing thoughts on the topic.</p>
		</div>
	</body></html>`)

	e := New(server.Client(), nil)
	text := e.Extract(context.Background(), server.URL)

	if !strings.Contains(text, "Closing thoughts on the topic.") {
		t.Fatalf("expected densest block content, got %q", text)
	}
}

func TestExtractShortArticleContainerTriggersFallback(t *testing.T) {
	t.Parallel()

	server := serve(t, `<html><body>
		<article><p>Teaser.</p></article>
		<div><p>`+longParagraph()+`</p></div>
	</body></html>`)

	e := New(server.Client(), nil)
	text := e.Extract(context.Background(), server.URL)

	if !strings.Contains(text, "meaningful article sentence") {
		t.Fatalf("near-empty semantic container must fall back, got %q", text)
	}
}

func TestExtractStripsBoilerplate(t *testing.T) {
	t.Parallel()

	server := serve(t, `<html><body><article>
		<p>Advertisement</p>
		<p>`+longParagraph()+`</p>
		<p>Subscribe to our weekly newsletter for updates!</p>
	</article></body></html>`)

	e := New(server.Client(), nil)
	text := e.Extract(context.Background(), server.URL)

	lower := strings.ToLower(text)
	if strings.Contains(lower, "advertisement") {
		t.Fatalf("advertisement marker must be removed, got %q", text)
	}
	if strings.Contains(lower, "newsletter") {
		t.Fatalf("newsletter plug must be removed, got %q", text)
	}
	if !strings.Contains(text, "meaningful article sentence") {
		t.Fatalf("real content must survive cleaning, got %q", text)
	}
}

func TestExtractCollapsesWhitespace(t *testing.T) {
	t.Parallel()

	server := serve(t, `<html><body><article>
		<p>Spaced     out

		text</p>
		<p>`+longParagraph()+`</p>
	</article></body></html>`)

	e := New(server.Client(), nil)
	text := e.Extract(context.Background(), server.URL)

	if strings.Contains(text, "  ") {
		t.Fatalf("whitespace runs must collapse, got %q", text)
	}
	if !strings.Contains(text, "Spaced out text") {
		t.Fatalf("expected normalized text, got %q", text)
	}
}

func TestExtractNonOKStatusReturnsEmpty(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	e := New(server.Client(), nil)
	if text := e.Extract(context.Background(), server.URL); text != "" {
		t.Fatalf("expected empty text for 404, got %q", text)
	}
}

func TestExtractUnreachableHostReturnsEmpty(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	e := New(nil, nil)
	if text := e.Extract(context.Background(), url); text != "" {
		t.Fatalf("expected empty text for unreachable host, got %q", text)
	}
}

func TestExtractSendsBrowserUserAgent(t *testing.T) {
	t.Parallel()

	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(`<html><body><article><p>` + longParagraph() + `</p></article></body></html>`))
	}))
	t.Cleanup(server.Close)

	e := New(server.Client(), nil)
	_ = e.Extract(context.Background(), server.URL)

	if !strings.Contains(gotUA, "Mozilla/5.0") {
		t.Fatalf("expected browser user agent, got %q", gotUA)
	}
}

func TestCleanText(t *testing.T) {
	t.Parallel()

	got := cleanText("  leftover <b>tags</b>   and\n\nspace  ")
	if got != "leftover tags and space" {
		t.Fatalf("unexpected cleaned text: %q", got)
	}

	if cleanText("") != "" {
		t.Fatal("empty input stays empty")
	}
}
