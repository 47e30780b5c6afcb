package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hyperjump/tansaku/internal/models"
)

func samplePage() *models.ResultPage {
	vs := 0.8
	next := 10
	return &models.ResultPage{
		Documents: []*models.ResultDocument{
			{
				ID:           "doc-1",
				Fields:       map[string]interface{}{"id": "doc-1", "title": "Getting Started", "views": float64(42)},
				Rank:         1,
				KeywordScore: 0.6,
				VectorScore:  &vs,
				FusedScore:   0.7,
			},
			{
				ID:         "doc-2",
				Fields:     map[string]interface{}{"id": "doc-2", "title": "Advanced Topics"},
				Rank:       2,
				FusedScore: 0.4,
			},
		},
		TotalMatched: 12,
		NextOffset:   &next,
		QueryTimeMS:  7,
	}
}

func TestWriteResultPage_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteResultPage(&buf, samplePage(), OutputJSON); err != nil {
		t.Fatalf("WriteResultPage() error: %v", err)
	}
	var page models.ResultPage
	if err := json.Unmarshal(buf.Bytes(), &page); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if page.TotalMatched != 12 || len(page.Documents) != 2 {
		t.Errorf("page = %+v", page)
	}
	if page.NextOffset == nil || *page.NextOffset != 10 {
		t.Errorf("NextOffset = %v", page.NextOffset)
	}
}

func TestWriteResultPage_text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteResultPage(&buf, samplePage(), OutputText); err != nil {
		t.Fatalf("WriteResultPage() error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"Matched 12 documents in 7ms",
		"ID: doc-1",
		"Vector: 0.8000",
		"title: Getting Started",
		"continue with OFFSET 10",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteResultPage_compact(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteResultPage(&buf, samplePage(), OutputCompact); err != nil {
		t.Fatalf("WriteResultPage() error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "1\tdoc-1\t") {
		t.Errorf("first line = %q", lines[0])
	}
}

func TestParseOutputFormat(t *testing.T) {
	for name, want := range map[string]OutputFormat{
		"text":    OutputText,
		"json":    OutputJSON,
		"compact": OutputCompact,
	} {
		got, err := ParseOutputFormat(name)
		if err != nil || got != want {
			t.Errorf("ParseOutputFormat(%q) = %v, %v", name, got, err)
		}
	}
	if _, err := ParseOutputFormat("yaml"); err == nil {
		t.Error("unknown format should fail")
	}
}
