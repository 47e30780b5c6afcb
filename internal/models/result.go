package models

// ResultDocument is one normalized hit. VectorScore is nil when the request
// carried no vector clause.
type ResultDocument struct {
	ID           string                 `json:"id"`
	Fields       map[string]interface{} `json:"fields"`
	Rank         int                    `json:"rank"`
	KeywordScore float64                `json:"keyword_score"`
	VectorScore  *float64               `json:"vector_score,omitempty"`
	FusedScore   float64                `json:"fused_score"`
}

// ResultPage is the normalized response for one query. NextOffset is present
// iff more matches exist beyond this page.
type ResultPage struct {
	Documents    []*ResultDocument `json:"documents"`
	TotalMatched int               `json:"total_matched"`
	NextOffset   *int              `json:"next_offset,omitempty"`
	QueryTimeMS  int64             `json:"query_time_ms"`
	RequestID    string            `json:"request_id,omitempty"`
}
