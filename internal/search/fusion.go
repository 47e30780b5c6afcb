package search

import (
	"sort"

	"github.com/hyperjump/tansaku/internal/solr"
	"github.com/hyperjump/tansaku/pkg/utils"
)

type fusedCandidate struct {
	id      string
	doc     solr.Document
	keyword float64
	vector  float64
	fused   float64
}

// fuse combines the keyword and vector candidate sets into one deterministic
// ranking. Both signals are min-max scaled onto [0,1] (cosine similarity is
// first mapped from [-1,1]) and combined as alpha*vector + (1-alpha)*keyword.
// A document missing from one set contributes zero for that signal. Ties
// break on document id ascending so identical inputs always produce an
// identical ordering.
func fuse(kw, vec []solr.Document, alpha float64) []fusedCandidate {
	kwScores := make(map[string]float64, len(kw))
	vecScores := make(map[string]float64, len(vec))
	docs := make(map[string]solr.Document, len(kw)+len(vec))

	for _, d := range kw {
		id := d.ID()
		if id == "" {
			continue
		}
		s, _ := d.Score()
		kwScores[id] = s
		docs[id] = d
	}
	for _, d := range vec {
		id := d.ID()
		if id == "" {
			continue
		}
		s, _ := d.Score()
		vecScores[id] = normalizeCosine(s)
		if _, seen := docs[id]; !seen {
			docs[id] = d
		}
	}

	utils.MinMaxScale(kwScores)
	utils.MinMaxScale(vecScores)

	out := make([]fusedCandidate, 0, len(docs))
	for id, d := range docs {
		kwS := kwScores[id]
		vecS := vecScores[id]
		out = append(out, fusedCandidate{
			id:      id,
			doc:     d,
			keyword: kwS,
			vector:  vecS,
			fused:   alpha*vecS + (1-alpha)*kwS,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].fused != out[j].fused {
			return out[i].fused > out[j].fused
		}
		return out[i].id < out[j].id
	})
	return out
}

// normalizeCosine maps a cosine similarity from [-1,1] onto [0,1], clamping
// values the engine reports slightly outside the range.
func normalizeCosine(s float64) float64 {
	v := (s + 1) / 2
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
