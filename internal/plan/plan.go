// Package plan lowers a parsed statement and/or vector clause into the
// cluster-native query plan sent to the search engine. A plan is built once
// per request and never mutated after compilation.
package plan

import (
	"strconv"
	"strings"
)

// Limits holds compile-time maxima and thresholds, supplied from config.
type Limits struct {
	DefaultRows          int
	MaxRows              int
	MaxOffset            int
	InExpansionThreshold int
}

// KNNClause is the compiled vector-similarity clause. TopK is always at
// least Start+Rows of the owning plan so offset paging never truncates the
// fused candidate set.
type KNNClause struct {
	Field  string
	Vector []float32
	TopK   int
	Alpha  float64
}

// Query renders the clause in the engine's KNN query-parser syntax.
func (k *KNNClause) Query() string {
	var sb strings.Builder
	sb.WriteString("{!knn f=")
	sb.WriteString(k.Field)
	sb.WriteString(" topK=")
	sb.WriteString(strconv.Itoa(k.TopK))
	sb.WriteString("}[")
	for i, v := range k.Vector {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}

// QueryPlan is the compiled, engine-native request: a main query, an ordered
// list of filter expressions applied as a pre-filter, sort, and paging.
type QueryPlan struct {
	Collection string
	// Fields is the client-requested projection; empty means all stored fields.
	Fields  []string
	Query   string
	Filters []string
	Sort    string
	Start   int
	Rows    int
	// CountOnly plans fetch no documents, only the match count.
	CountOnly bool
	KNN       *KNNClause
}

// filtersAsQuery joins the filter list into one scored main query.
func (p *QueryPlan) filtersAsQuery() string {
	if len(p.Filters) == 0 {
		return "*:*"
	}
	if len(p.Filters) == 1 {
		return p.Filters[0]
	}
	return "(" + strings.Join(p.Filters, " AND ") + ")"
}

// KeywordCandidates derives the plan that collects the keyword-scored
// candidate set for fusion: the filters become the scored main query and
// paging widens to the KNN candidate count.
func (p *QueryPlan) KeywordCandidates() *QueryPlan {
	return &QueryPlan{
		Collection: p.Collection,
		Fields:     p.Fields,
		Query:      p.filtersAsQuery(),
		Start:      0,
		Rows:       p.KNN.TopK,
	}
}

// VectorCandidates derives the plan that collects the vector candidate set:
// the KNN clause is the main query and the filters stay as pre-filters, so
// the engine filters first and ranks the filtered set (never the reverse).
func (p *QueryPlan) VectorCandidates() *QueryPlan {
	return &QueryPlan{
		Collection: p.Collection,
		Fields:     p.Fields,
		Query:      p.KNN.Query(),
		Filters:    append([]string(nil), p.Filters...),
		Start:      0,
		Rows:       p.KNN.TopK,
	}
}
