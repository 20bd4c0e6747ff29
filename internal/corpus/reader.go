package corpus

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
)

// ReadStats summarizes one pass over a corpus file.
type ReadStats struct {
	Laws      int // laws decoded and handed to the callback
	Malformed int // elements skipped because they could not be decoded
}

// ReadLaws streams a corpus file (a single large JSON array of law objects)
// and invokes fn for each decoded law. Elements that fail to decode are
// counted as malformed and skipped; the stream continues. A non-nil error from
// fn stops the read.
func ReadLaws(r io.Reader, fn func(Law) error) (ReadStats, error) {
	var stats ReadStats

	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return stats, fmt.Errorf("failed to read corpus: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return stats, fmt.Errorf("%w: corpus root is not a JSON array", ErrMalformedRecord)
	}

	for dec.More() {
		// Decode to raw first so one structurally bad element cannot poison
		// the stream for its neighbors.
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return stats, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}

		var law Law
		if err := json.Unmarshal(raw, &law); err != nil {
			stats.Malformed++
			continue
		}

		stats.Laws++
		if err := fn(law); err != nil {
			return stats, err
		}
	}

	return stats, nil
}

// UniqueCategories streams a corpus file and returns the distinct trimmed
// category labels across all laws, sorted.
func UniqueCategories(r io.Reader) ([]string, error) {
	seen := make(map[string]struct{})

	_, err := ReadLaws(r, func(law Law) error {
		for _, cat := range law.Categories {
			cat = strings.TrimSpace(cat)
			if cat != "" {
				seen[cat] = struct{}{}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(seen))
	for cat := range seen {
		out = append(out, cat)
	}
	sort.Strings(out)
	return out, nil
}
