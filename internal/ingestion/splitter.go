// Package ingestion turns laws and articles into bounded, context-enriched
// chunks and loads them into the vector store.
package ingestion

import (
	"strings"
	"unicode"
)

// Boundary lookback distances, in characters, when a window's raw cut point
// falls inside the text.
const (
	newlineLookback = 100
	spaceLookback   = 50
)

// Splitter slides a fixed-size character window over text with overlap,
// preferring to cut at a newline or space near the raw cut point. Sizes are
// in characters (runes), not bytes; the corpus is Arabic.
type Splitter struct {
	MaxChars     int
	OverlapChars int
}

// NewSplitter creates a Splitter, applying defaults for non-positive sizes.
func NewSplitter(maxChars, overlapChars int) Splitter {
	if maxChars <= 0 {
		maxChars = 1500
	}
	if overlapChars < 0 {
		overlapChars = 0
	}
	return Splitter{MaxChars: maxChars, OverlapChars: overlapChars}
}

// Split returns the overlapping windows covering text. Text at most MaxChars
// long comes back as a single window. Each window is trimmed; windows that
// trim to empty are dropped. The next window starts OverlapChars before the
// previous window's actual cut, so a boundary cut pulled back from the raw
// point never strands text between windows. An overlap of MaxChars or more
// degenerates to no overlap so the window always moves forward.
func (s Splitter) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= s.MaxChars {
		return []string{text}
	}

	var windows []string
	for start := 0; start < len(runes); {
		end := start + s.MaxChars
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = cutPoint(runes, start, end)
		}

		if w := strings.TrimSpace(string(runes[start:end])); w != "" {
			windows = append(windows, w)
		}

		next := end - s.OverlapChars
		if next <= start {
			next = end
		}
		start = next
	}

	return windows
}

// cutPoint searches backward from the raw cut point for a newline (up to 100
// characters), then for a space (up to 50), so windows avoid splitting
// mid-word. With no boundary in range it cuts at the raw point.
func cutPoint(runes []rune, start, rawEnd int) int {
	low := rawEnd - newlineLookback
	if low <= start {
		low = start + 1
	}
	for i := rawEnd - 1; i >= low; i-- {
		if runes[i] == '\n' {
			return i
		}
	}

	low = rawEnd - spaceLookback
	if low <= start {
		low = start + 1
	}
	for i := rawEnd - 1; i >= low; i-- {
		if unicode.IsSpace(runes[i]) {
			return i
		}
	}

	return rawEnd
}
