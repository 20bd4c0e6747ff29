package retrieval

import (
	"sort"

	"github.com/qanoonhub/lawrag/internal/corpus"
)

// GroupedResult collapses all candidate chunks of one logical article into a
// single result: the best-scoring representative chunk and a count of the
// sibling chunks that contributed.
type GroupedResult struct {
	GroupKey string
	Score    float32
	Payload  corpus.ChunkPayload
	Count    int
}

// Group partitions candidates by group key and emits one result per article,
// ordered by best score descending. The representative is the candidate with
// the maximum effective score; exactly equal scores keep the first-seen
// candidate, which is the store's native order. A candidate without a group
// key (stores written by older tooling) becomes its own singleton group keyed
// by chunk id.
func Group(candidates []Candidate) []GroupedResult {
	type partition struct {
		best  Candidate
		count int
	}

	byKey := make(map[string]*partition)
	var order []string

	for _, cand := range candidates {
		key := cand.Payload.GroupKey
		if key == "" {
			key = cand.ID
		}

		part, ok := byKey[key]
		if !ok {
			byKey[key] = &partition{best: cand, count: 1}
			order = append(order, key)
			continue
		}

		part.count++
		if cand.EffectiveScore() > part.best.EffectiveScore() {
			part.best = cand
		}
	}

	grouped := make([]GroupedResult, 0, len(order))
	for _, key := range order {
		part := byKey[key]
		grouped = append(grouped, GroupedResult{
			GroupKey: key,
			Score:    part.best.EffectiveScore(),
			Payload:  part.best.Payload,
			Count:    part.count,
		})
	}

	// The pipeline's single externally visible ordering guarantee.
	sort.SliceStable(grouped, func(i, j int) bool {
		return grouped[i].Score > grouped[j].Score
	})

	return grouped
}
