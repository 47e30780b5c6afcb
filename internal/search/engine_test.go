package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/hyperjump/tansaku/internal/embedding"
	"github.com/hyperjump/tansaku/internal/models"
	"github.com/hyperjump/tansaku/internal/plan"
	"github.com/hyperjump/tansaku/internal/schema"
	"github.com/hyperjump/tansaku/internal/solr"
	"go.uber.org/zap"
)

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	sch, err := schema.New("docs", []schema.Field{
		{Name: "id", Type: schema.TypeString, Indexed: true, Stored: true},
		{Name: "title", Type: schema.TypeString, Indexed: true, Stored: true},
		{Name: "section", Type: schema.TypeString, Indexed: true, Stored: true},
		{Name: "views", Type: schema.TypeInt, Indexed: true, Stored: true},
		{Name: "embedding", Type: schema.TypeVector, Indexed: true, Dimension: 3, Similarity: "cosine"},
	})
	if err != nil {
		t.Fatalf("schema.New() error: %v", err)
	}
	return sch
}

var testLimits = plan.Limits{DefaultRows: 10, MaxRows: 1000, MaxOffset: 10000, InExpansionThreshold: 32}

// fakeSearcher serves canned keyword and vector responses and records every
// plan it receives.
type fakeSearcher struct {
	plans   []*plan.QueryPlan
	keyword *solr.Response
	vector  *solr.Response
	err     error
}

func (f *fakeSearcher) Select(ctx context.Context, p *plan.QueryPlan) (*solr.Response, error) {
	f.plans = append(f.plans, p)
	if f.err != nil {
		return nil, f.err
	}
	if p.KNN != nil || strings.HasPrefix(p.Query, "{!knn") {
		return f.vector, nil
	}
	return f.keyword, nil
}

func doc(id string, score float64, extra map[string]any) solr.Document {
	d := solr.Document{"id": id, "score": score}
	for k, v := range extra {
		d[k] = v
	}
	return d
}

func newTestEngine(t *testing.T, searcher Searcher) *Engine {
	t.Helper()
	return NewEngine(testSchema(t), searcher, embedding.NewMockEmbedder(3), testLimits, zap.NewNop())
}

func TestRunSQLQuery(t *testing.T) {
	fake := &fakeSearcher{keyword: &solr.Response{
		NumFound: 3,
		Docs: []solr.Document{
			doc("a", 3.0, map[string]any{"title": "Intro A", "_version_": 17}),
			doc("b", 2.0, map[string]any{"title": "Intro B"}),
			doc("c", 1.0, map[string]any{"title": "Intro C"}),
		},
	}}
	e := newTestEngine(t, fake)

	page, err := e.Run(context.Background(), &models.Request{
		SQL: "SELECT id, title FROM docs WHERE section = 'intro' ORDER BY id LIMIT 5",
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if len(fake.plans) != 1 {
		t.Fatalf("got %d executions, want 1", len(fake.plans))
	}
	p := fake.plans[0]
	if len(p.Filters) != 1 || p.Filters[0] != `section:"intro"` {
		t.Errorf("filters = %v", p.Filters)
	}
	if p.Sort != "id asc" || p.Rows != 5 || p.Start != 0 {
		t.Errorf("plan = %+v", p)
	}

	if page.TotalMatched != 3 || len(page.Documents) != 3 {
		t.Fatalf("page = %+v", page)
	}
	if page.NextOffset != nil {
		t.Error("NextOffset should be absent when the page exhausts matches")
	}
	first := page.Documents[0]
	if first.ID != "a" || first.Rank != 1 || first.KeywordScore != 3.0 {
		t.Errorf("first = %+v", first)
	}
	if first.VectorScore != nil {
		t.Error("pure keyword result should carry no vector score")
	}
	if _, ok := first.Fields["_version_"]; ok {
		t.Error("internal field leaked into projection")
	}
	if first.Fields["title"] != "Intro A" {
		t.Errorf("fields = %v", first.Fields)
	}
	if page.Documents[2].Rank != 3 {
		t.Errorf("rank = %d", page.Documents[2].Rank)
	}
}

func TestRunCount(t *testing.T) {
	fake := &fakeSearcher{keyword: &solr.Response{NumFound: 42}}
	e := newTestEngine(t, fake)

	page, err := e.Run(context.Background(), &models.Request{SQL: "SELECT COUNT(*) FROM docs WHERE views > 10"})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if page.TotalMatched != 42 || len(page.Documents) != 0 || page.NextOffset != nil {
		t.Errorf("page = %+v", page)
	}
	if !fake.plans[0].CountOnly || fake.plans[0].Rows != 0 {
		t.Errorf("plan = %+v", fake.plans[0])
	}
}

func TestRunVectorOnly(t *testing.T) {
	fake := &fakeSearcher{vector: &solr.Response{
		NumFound: 2,
		Docs: []solr.Document{
			doc("a", 0.8, nil),
			doc("b", 0.4, nil),
		},
	}}
	e := newTestEngine(t, fake)

	page, err := e.Run(context.Background(), &models.Request{
		Vector:     &models.VectorSpec{Field: "embedding", Vector: []float32{1, 0, 0}, TopK: 10, Alpha: 1},
		Collection: "docs",
		Limit:      2,
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(fake.plans) != 1 || fake.plans[0].KNN == nil {
		t.Fatalf("plans = %+v", fake.plans)
	}
	if page.TotalMatched != 2 || len(page.Documents) != 2 {
		t.Fatalf("page = %+v", page)
	}
	first := page.Documents[0]
	if first.VectorScore == nil || *first.VectorScore != 0.9 {
		t.Errorf("vector score = %v, want 0.9", first.VectorScore)
	}
	if first.FusedScore != 0.9 || first.KeywordScore != 0 {
		t.Errorf("first = %+v", first)
	}
}

func TestRunHybrid(t *testing.T) {
	fake := &fakeSearcher{
		keyword: &solr.Response{NumFound: 2, Docs: []solr.Document{
			doc("a", 2.0, map[string]any{"title": "A"}),
			doc("b", 1.0, map[string]any{"title": "B"}),
		}},
		vector: &solr.Response{NumFound: 2, Docs: []solr.Document{
			doc("b", 0.9, map[string]any{"title": "B"}),
			doc("c", 0.5, map[string]any{"title": "C"}),
		}},
	}
	e := newTestEngine(t, fake)

	page, err := e.Run(context.Background(), &models.Request{
		SQL:    "SELECT id, title FROM docs WHERE section = 'intro' LIMIT 10",
		Vector: &models.VectorSpec{Field: "embedding", Vector: []float32{1, 0, 0}, TopK: 10, Alpha: 0.5},
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if len(fake.plans) != 2 {
		t.Fatalf("got %d executions, want 2", len(fake.plans))
	}
	// keyword candidates: filters become the scored query, paging widens to topK
	kwPlan := fake.plans[0]
	if kwPlan.Query != `section:"intro"` || kwPlan.Rows != 10 || kwPlan.Start != 0 {
		t.Errorf("keyword plan = %+v", kwPlan)
	}
	// vector candidates keep the filter as a pre-filter
	vecPlan := fake.plans[1]
	if !strings.HasPrefix(vecPlan.Query, "{!knn f=embedding topK=10}") {
		t.Errorf("vector plan query = %q", vecPlan.Query)
	}
	if len(vecPlan.Filters) != 1 || vecPlan.Filters[0] != `section:"intro"` {
		t.Errorf("vector plan filters = %v", vecPlan.Filters)
	}

	// min-max scaled: a kw=1 vec=0, b kw=0 vec=1, c kw=0 vec=0;
	// at alpha 0.5 a and b tie at 0.5 and break on id
	if page.TotalMatched != 3 || len(page.Documents) != 3 {
		t.Fatalf("page = %+v", page)
	}
	ids := []string{page.Documents[0].ID, page.Documents[1].ID, page.Documents[2].ID}
	if ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
		t.Errorf("order = %v", ids)
	}
	if page.Documents[0].FusedScore != 0.5 || page.Documents[2].FusedScore != 0 {
		t.Errorf("fused = %v, %v", page.Documents[0].FusedScore, page.Documents[2].FusedScore)
	}
	if page.Documents[0].VectorScore == nil {
		t.Error("hybrid result should carry a vector score")
	}
}

func TestHybridPagination(t *testing.T) {
	var kwDocs []solr.Document
	for i := 0; i < 35; i++ {
		kwDocs = append(kwDocs, doc(fmt.Sprintf("d%02d", i), float64(35-i), nil))
	}
	fake := &fakeSearcher{
		keyword: &solr.Response{NumFound: 35, Docs: kwDocs},
		vector:  &solr.Response{},
	}
	e := newTestEngine(t, fake)

	run := func(offset int) *models.ResultPage {
		t.Helper()
		page, err := e.Run(context.Background(), &models.Request{
			SQL:    fmt.Sprintf("SELECT id FROM docs WHERE section = 'x' LIMIT 10 OFFSET %d", offset),
			Vector: &models.VectorSpec{Field: "embedding", Vector: []float32{1, 0, 0}, TopK: 50, Alpha: 0.3},
		})
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
		return page
	}

	page := run(20)
	if page.TotalMatched != 35 || len(page.Documents) != 10 {
		t.Fatalf("page = %+v", page)
	}
	if page.NextOffset == nil || *page.NextOffset != 30 {
		t.Errorf("NextOffset = %v, want 30", page.NextOffset)
	}
	if page.Documents[0].ID != "d20" || page.Documents[0].Rank != 21 {
		t.Errorf("first = %+v", page.Documents[0])
	}

	page = run(30)
	if len(page.Documents) != 5 || page.NextOffset != nil {
		t.Errorf("last page = %+v", page)
	}
	if page.Documents[4].ID != "d34" || page.Documents[4].Rank != 35 {
		t.Errorf("last = %+v", page.Documents[4])
	}
}

func TestRunEmbedsQueryText(t *testing.T) {
	fake := &fakeSearcher{vector: &solr.Response{}}
	e := newTestEngine(t, fake)

	_, err := e.Run(context.Background(), &models.Request{
		Vector:     &models.VectorSpec{Field: "embedding", Text: "database indexing", TopK: 5, Alpha: 1},
		Collection: "docs",
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	knn := fake.plans[0].KNN
	if knn == nil || len(knn.Vector) != 3 {
		t.Fatalf("plan = %+v", fake.plans[0])
	}
}

func TestRunCountWithVectorRejected(t *testing.T) {
	e := newTestEngine(t, &fakeSearcher{})
	_, err := e.Run(context.Background(), &models.Request{
		SQL:    "SELECT COUNT(*) FROM docs WHERE section = 'x'",
		Vector: &models.VectorSpec{Field: "embedding", Vector: []float32{1, 0, 0}, TopK: 5, Alpha: 0.5},
	})
	var ce *models.CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("want CompileError, got %v", err)
	}
}

func TestRunOrderByWithVectorRejected(t *testing.T) {
	e := newTestEngine(t, &fakeSearcher{})
	_, err := e.Run(context.Background(), &models.Request{
		SQL:    "SELECT id FROM docs WHERE section = 'x' ORDER BY views LIMIT 10",
		Vector: &models.VectorSpec{Field: "embedding", Vector: []float32{1, 0, 0}, TopK: 5, Alpha: 0.5},
	})
	var ce *models.CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("want CompileError, got %v", err)
	}
}

func TestRunErrorClassification(t *testing.T) {
	e := newTestEngine(t, &fakeSearcher{})
	cases := []struct {
		name string
		req  *models.Request
		kind models.ErrorKind
	}{
		{"empty request", &models.Request{}, models.KindCompile},
		{"bad sql", &models.Request{SQL: "SELECT FROM docs"}, models.KindSyntax},
		{"unknown field", &models.Request{SQL: "SELECT id FROM docs WHERE bogus = 1"}, models.KindSyntax},
		{"join", &models.Request{SQL: "SELECT id FROM docs JOIN other ON 1"}, models.KindUnsupported},
		{"dimension mismatch", &models.Request{
			Vector:     &models.VectorSpec{Field: "embedding", Vector: []float32{1, 0}, TopK: 5, Alpha: 1},
			Collection: "docs",
		}, models.KindCompile},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.Run(context.Background(), tc.req)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := models.KindOf(err); got != tc.kind {
				t.Errorf("kind = %v, want %v (%v)", got, tc.kind, err)
			}
		})
	}
}

func TestRunPropagatesExecutionError(t *testing.T) {
	fake := &fakeSearcher{err: &models.ExecutionError{Attempts: 3, LastCause: errors.New("boom")}}
	e := newTestEngine(t, fake)
	_, err := e.Run(context.Background(), &models.Request{SQL: "SELECT id FROM docs"})
	if models.KindOf(err) != models.KindExecution {
		t.Errorf("kind = %v", models.KindOf(err))
	}
}
