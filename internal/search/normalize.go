package search

import "github.com/hyperjump/tansaku/internal/solr"

// internalFields never surface in normalized results.
var internalFields = map[string]bool{
	"score":     true,
	"_version_": true,
}

// projectFields enforces the requested projection. With an explicit field
// list only those fields survive; with none, all stored fields minus the
// engine's internal ones.
func projectFields(doc solr.Document, requested []string) map[string]any {
	fields := make(map[string]any)
	if len(requested) > 0 {
		for _, f := range requested {
			if v, ok := doc[f]; ok {
				fields[f] = v
			}
		}
		return fields
	}
	for k, v := range doc {
		if internalFields[k] {
			continue
		}
		fields[k] = v
	}
	return fields
}

// nextOffset returns the offset of the next page, or nil when this page
// exhausts the matches.
func nextOffset(total, start, rows int) *int {
	if total > start+rows {
		n := start + rows
		return &n
	}
	return nil
}
