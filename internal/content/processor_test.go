package content

import (
	"strings"
	"testing"
)

func TestProcessExtractsTitleAndPrunesScripts(t *testing.T) {
	html := `<html><head><title>  My Page  </title>
		<meta name="author" content="Jane Doe">
	</head><body>
		<nav>skip this nav</nav>
		<script>var x = 1;</script>
		<p>Real content goes here.</p>
		<a href="https://a.test">link</a>
		<img src="https://a.test/img.png">
	</body></html>`

	p := NewProcessor()
	out := p.Process("https://example.com", []byte(html))

	if out.Title != "My Page" {
		t.Fatalf("want title 'My Page', got %q", out.Title)
	}
	if out.Author != "Jane Doe" {
		t.Fatalf("want author 'Jane Doe', got %q", out.Author)
	}
	if got := out.Body; !contains(got, "Real content goes here.") {
		t.Fatalf("body missing real content: %q", got)
	}
	if contains(out.Body, "skip this nav") || contains(out.Body, "var x") {
		t.Fatalf("body leaked pruned content: %q", out.Body)
	}
	if len(out.Links) != 1 || out.Links[0] != "https://a.test" {
		t.Fatalf("want 1 link, got %v", out.Links)
	}
	if len(out.Images) != 1 {
		t.Fatalf("want 1 image, got %v", out.Images)
	}
}

func TestProcessTruncatesAtSentenceBoundary(t *testing.T) {
	sentence := "This is a sentence. "
	var body strings.Builder
	for i := 0; i < 3000; i++ {
		body.WriteString(sentence)
	}
	html := "<html><body><p>" + body.String() + "</p></body></html>"

	p := NewProcessor()
	out := p.Process("https://example.com", []byte(html))

	if !out.Truncated {
		t.Fatalf("expected truncation for long body")
	}
	trimmed := out.Body
	if trimmed == "" || (trimmed[len(trimmed)-1] != '.' ) {
		t.Fatalf("expected truncation to end at a sentence boundary, got tail %q", trimmed[max(0, len(trimmed)-20):])
	}
}

func contains(s, sub string) bool {
	return len(s) >= len(sub) && indexOf(s, sub) >= 0
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
