// Package cli provides CLI utilities for Tansaku.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/hyperjump/tansaku/internal/models"
	"github.com/hyperjump/tansaku/pkg/utils"
)

// OutputFormat is the format for query result output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
	// OutputCompact is one result per line.
	OutputCompact OutputFormat = "compact"
)

// ParseOutputFormat validates a format name from a flag value.
func ParseOutputFormat(name string) (OutputFormat, error) {
	switch name {
	case "text":
		return OutputText, nil
	case "json":
		return OutputJSON, nil
	case "compact":
		return OutputCompact, nil
	}
	return "", fmt.Errorf("unknown output format %q; use text, compact, or json", name)
}

// WriteResultPage writes a result page to w in the given format.
func WriteResultPage(w io.Writer, page *models.ResultPage, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(page)
	case OutputCompact:
		for _, doc := range page.Documents {
			fmt.Fprintf(w, "%d\t%s\t%.4f\n", doc.Rank, doc.ID, doc.FusedScore)
		}
		return nil
	default:
		writeResultPageText(w, page)
		return nil
	}
}

func writeResultPageText(w io.Writer, page *models.ResultPage) {
	fmt.Fprintf(w, "\nMatched %d documents in %dms\n\n", page.TotalMatched, page.QueryTimeMS)
	for _, doc := range page.Documents {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		if doc.VectorScore != nil {
			fmt.Fprintf(w, "Rank: %d | Score: %.4f (Keyword: %.4f, Vector: %.4f)\n",
				doc.Rank, doc.FusedScore, doc.KeywordScore, *doc.VectorScore)
		} else {
			fmt.Fprintf(w, "Rank: %d | Score: %.4f\n", doc.Rank, doc.FusedScore)
		}
		fmt.Fprintf(w, "ID: %s\n", doc.ID)
		for _, k := range sortedFieldNames(doc.Fields) {
			if k == "id" {
				continue
			}
			fmt.Fprintf(w, "%s: %s\n", k, formatFieldValue(doc.Fields[k]))
		}
		fmt.Fprintln(w)
	}
	if page.NextOffset != nil {
		fmt.Fprintf(w, "More matches available; continue with OFFSET %d\n", *page.NextOffset)
	}
}

func sortedFieldNames(fields map[string]interface{}) []string {
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func formatFieldValue(v interface{}) string {
	switch x := v.(type) {
	case string:
		return utils.Truncate(x, 200)
	case []interface{}:
		parts := make([]string, 0, len(x))
		for _, e := range x {
			parts = append(parts, fmt.Sprint(e))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(x)
	}
}
