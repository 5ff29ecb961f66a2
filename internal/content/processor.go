// Package content implements the Content Processor and Content Chunker
// (SPEC_FULL.md §4.5, §4.6), the two stages between raw HTTP bytes and a
// models.SourceDocument ready for Analysis.
package content

import (
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"

	"deepresearch/internal/models"
)

const (
	maxBodyRunes = 20000
	maxLinks     = 100
	maxImages    = 50
)

// prunedTags are removed along with their subtree before text extraction:
// script/style/noscript carry no readable text, nav/header/footer/aside are
// boilerplate, and HTML comments are dropped by the parser's node walk
// itself (SPEC_FULL.md §4.5 "prune boilerplate").
var prunedTags = map[string]bool{
	"script": true, "style": true, "noscript": true,
	"nav": true, "header": true, "footer": true, "aside": true,
}

// Processor turns raw HTML into a models.ExtractedContent: title/author/
// date metadata, pruned body text, and capped link/image lists. Grounded on
// the earlier internal/tools.FetchTool's extractText DOM walk, generalized
// from "strip everything but text" to structured extraction.
type Processor struct{}

// NewProcessor returns a stateless Content Processor.
func NewProcessor() *Processor {
	return &Processor{}
}

// Process parses rawHTML fetched from sourceURL into an ExtractedContent.
func (p *Processor) Process(sourceURL string, rawHTML []byte) models.ExtractedContent {
	doc, err := html.Parse(strings.NewReader(string(rawHTML)))
	if err != nil {
		return p.fallback(sourceURL, string(rawHTML))
	}

	out := models.ExtractedContent{SourceURL: sourceURL}
	var textBuf strings.Builder
	var links, images []string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && prunedTags[n.Data] {
			return
		}
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if out.Title == "" {
					out.Title = strings.TrimSpace(textOf(n))
				}
			case "meta":
				applyMeta(n, &out)
			case "a":
				if href, ok := attr(n, "href"); ok && len(links) < maxLinks {
					links = append(links, href)
				}
			case "img":
				if src, ok := attr(n, "src"); ok && len(images) < maxImages {
					images = append(images, src)
				}
			}
		}
		if n.Type == html.TextNode {
			textBuf.WriteString(n.Data)
			textBuf.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	out.Links = links
	out.Images = images
	out.Body, out.Truncated = truncateAtSentence(cleanWhitespace(textBuf.String()), maxBodyRunes)
	return out
}

func (p *Processor) fallback(sourceURL, raw string) models.ExtractedContent {
	re := regexp.MustCompile(`<[^>]*>`)
	body, truncated := truncateAtSentence(cleanWhitespace(re.ReplaceAllString(raw, "")), maxBodyRunes)
	return models.ExtractedContent{SourceURL: sourceURL, Body: body, Truncated: truncated}
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func applyMeta(n *html.Node, out *models.ExtractedContent) {
	name, _ := attr(n, "name")
	property, _ := attr(n, "property")
	content, hasContent := attr(n, "content")
	if !hasContent {
		return
	}
	if name == "author" && out.Author == "" {
		out.Author = content
	}
	if (property == "article:published_time" || name == "article:published_time") && out.PublishedAt.IsZero() {
		if t, err := time.Parse(time.RFC3339, content); err == nil {
			out.PublishedAt = t
		}
	}
}

// cleanWhitespace normalizes runs of whitespace, matching the prior
// tools.cleanWhitespace (no templating/sanitization library in the pack for
// this narrower job, DESIGN.md).
func cleanWhitespace(s string) string {
	re := regexp.MustCompile(`\s+`)
	return strings.TrimSpace(re.ReplaceAllString(s, " "))
}

// truncateAtSentence caps body at maxRunes, preferring to cut at the last
// sentence boundary found past 70% of the limit (SPEC_FULL.md §4.5 "truncate
// ... at a sentence boundary where possible").
func truncateAtSentence(s string, maxRunes int) (string, bool) {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s, false
	}
	cut := string(runes[:maxRunes])
	floor := int(float64(maxRunes) * 0.7)
	best := -1
	for i, r := range []rune(cut) {
		if i < floor {
			continue
		}
		if r == '.' || r == '!' || r == '?' {
			best = i
		}
	}
	if best == -1 {
		return cut, true
	}
	return string([]rune(cut)[:best+1]), true
}
