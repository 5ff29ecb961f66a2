package content

import (
	"math"
	"strings"

	"deepresearch/internal/models"
)

const (
	defaultChunkTokens   = 500
	defaultOverlapTokens = 50
)

// EstimateTokens is the resolved token-count heuristic (SPEC_FULL.md §9 Open
// Question 1): Korean (Hangul) runs roughly 0.5 tokens/char under common
// BPE tokenizers, everything else roughly 0.25 tokens/char, with the sum
// rounded up. The Chunker uses it for its token budgets; no other component
// calls it.
func EstimateTokens(s string) int {
	var total float64
	for _, r := range s {
		if isHangul(r) {
			total += 0.5
		} else {
			total += 0.25
		}
	}
	return int(math.Ceil(total))
}

func isHangul(r rune) bool {
	return (r >= 0xAC00 && r <= 0xD7A3) || (r >= 0x1100 && r <= 0x11FF) || (r >= 0x3130 && r <= 0x318F)
}

// Chunker splits an ExtractedContent's body into token-bounded
// ContentChunks with overlap, grounded on the clglavan example's
// splitContextIntoChunks break-point search, generalized from a byte-length
// budget to the token estimate above and given paragraph/sentence-aware
// splitting plus a second force-split pass for any oversize segment
// (SPEC_FULL.md §4.6).
type Chunker struct {
	ChunkTokens   int
	OverlapTokens int
}

// NewChunker returns a Chunker with SPEC_FULL.md's default budget.
func NewChunker() *Chunker {
	return &Chunker{ChunkTokens: defaultChunkTokens, OverlapTokens: defaultOverlapTokens}
}

// Chunk splits body into ContentChunks, packing at most c.ChunkTokens tokens
// of new segments into each, with c.OverlapTokens of trailing context
// repeated at the start of the next chunk so no fact spans a chunk boundary
// entirely unseen. A chunk that starts with carried overlap can therefore
// exceed c.ChunkTokens by up to c.OverlapTokens.
func (c *Chunker) Chunk(body string) []models.ContentChunk {
	if EstimateTokens(body) <= c.ChunkTokens {
		return []models.ContentChunk{{Index: 0, Text: body, TokenCount: EstimateTokens(body)}}
	}

	segments := splitIntoSegments(body)
	var chunks []models.ContentChunk
	var current strings.Builder
	currentTokens := 0

	flush := func() {
		if current.Len() == 0 {
			return
		}
		text := strings.TrimSpace(current.String())
		chunks = append(chunks, models.ContentChunk{
			Index:      len(chunks),
			Text:       text,
			TokenCount: EstimateTokens(text),
			Overlap:    len(chunks) > 0,
		})
		current.Reset()
		currentTokens = 0
	}

	for _, seg := range segments {
		segTokens := EstimateTokens(seg)
		if segTokens > c.ChunkTokens {
			flush()
			chunks = append(chunks, forceSplit(seg, c.ChunkTokens, len(chunks))...)
			continue
		}
		if currentTokens+segTokens > c.ChunkTokens {
			flush()
			if overlap := tailOverlap(chunks, c.OverlapTokens); overlap != "" {
				current.WriteString(overlap)
				current.WriteString(" ")
				currentTokens = EstimateTokens(overlap)
			}
		}
		current.WriteString(seg)
		current.WriteString(" ")
		currentTokens += segTokens
	}
	flush()

	return chunks
}

// splitIntoSegments breaks body at paragraph boundaries, then sentence
// boundaries within any paragraph still larger than a sentence.
func splitIntoSegments(body string) []string {
	paragraphs := strings.Split(body, "\n\n")
	var segments []string
	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		segments = append(segments, splitIntoSentences(p)...)
	}
	return segments
}

func splitIntoSentences(p string) []string {
	var sentences []string
	start := 0
	runes := []rune(p)
	for i, r := range runes {
		if r == '.' || r == '!' || r == '?' {
			if i+1 >= len(runes) || runes[i+1] == ' ' {
				sentences = append(sentences, strings.TrimSpace(string(runes[start:i+1])))
				start = i + 1
			}
		}
	}
	if start < len(runes) {
		if rest := strings.TrimSpace(string(runes[start:])); rest != "" {
			sentences = append(sentences, rest)
		}
	}
	if len(sentences) == 0 {
		return []string{p}
	}
	return sentences
}

// forceSplit handles a single segment (e.g. one giant sentence with no
// punctuation) that alone exceeds maxTokens: it falls back to a
// rune-budget break-point search preferring whitespace in the last 30% of
// the window, the clglavan example's own break-point strategy.
func forceSplit(seg string, maxTokens, startIndex int) []models.ContentChunk {
	maxRunes := maxTokens * 4 // ~0.25 tokens/char inverse, matches EstimateTokens's non-Hangul rate
	runes := []rune(seg)
	var out []models.ContentChunk
	for len(runes) > 0 {
		if len(runes) <= maxRunes {
			out = append(out, models.ContentChunk{
				Index:      startIndex + len(out),
				Text:       string(runes),
				TokenCount: EstimateTokens(string(runes)),
				Overlap:    len(out) > 0,
			})
			break
		}
		window := runes[:maxRunes]
		breakAt := maxRunes
		searchFrom := int(float64(maxRunes) * 0.7)
		if idx := lastIndexRune(window[searchFrom:], ' '); idx != -1 {
			breakAt = searchFrom + idx + 1
		}
		chunk := string(runes[:breakAt])
		out = append(out, models.ContentChunk{
			Index:      startIndex + len(out),
			Text:       chunk,
			TokenCount: EstimateTokens(chunk),
			Overlap:    len(out) > 0,
		})
		runes = runes[breakAt:]
	}
	return out
}

func lastIndexRune(s []rune, target rune) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == target {
			return i
		}
	}
	return -1
}

// tailOverlap returns the trailing text of the last produced chunk, capped
// to approximately overlapTokens, so the next chunk restates it.
func tailOverlap(chunks []models.ContentChunk, overlapTokens int) string {
	if len(chunks) == 0 {
		return ""
	}
	last := chunks[len(chunks)-1].Text
	runes := []rune(last)
	maxRunes := overlapTokens * 4
	if len(runes) <= maxRunes {
		return last
	}
	return string(runes[len(runes)-maxRunes:])
}
