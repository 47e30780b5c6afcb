package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/tansaku/internal/cluster"
	"github.com/hyperjump/tansaku/internal/embedding"
	"github.com/hyperjump/tansaku/internal/models"
	"github.com/hyperjump/tansaku/internal/plan"
	"github.com/hyperjump/tansaku/internal/schema"
	"github.com/hyperjump/tansaku/internal/search"
	"github.com/hyperjump/tansaku/internal/solr"
	"go.uber.org/zap"
)

// fakeSolrNode emulates one cluster member's /select endpoint: vector queries
// and keyword queries get distinct canned candidate sets.
func fakeSolrNode(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/solr/docs/select" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Query  string   `json:"query"`
			Filter []string `json:"filter"`
			Limit  int      `json:"limit"`
			Offset int      `json:"offset"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var docs []map[string]any
		if strings.HasPrefix(req.Query, "{!knn") {
			docs = []map[string]any{
				{"id": "b", "title": "Vector Databases", "score": 0.92},
				{"id": "c", "title": "Embedding Models", "score": 0.55},
			}
		} else {
			docs = []map[string]any{
				{"id": "a", "title": "Keyword Search", "score": 3.1},
				{"id": "b", "title": "Vector Databases", "score": 1.4},
				{"id": "d", "title": "Query Planning", "score": 0.2},
			}
		}
		numFound := len(docs)
		if req.Limit == 0 {
			docs = nil
		}
		json.NewEncoder(w).Encode(map[string]any{
			"response": map[string]any{
				"numFound": numFound,
				"start":    req.Offset,
				"docs":     docs,
			},
		})
	}))
}

func newEngine(t *testing.T, addrs []string) *search.Engine {
	t.Helper()
	sch, err := schema.New("docs", []schema.Field{
		{Name: "id", Type: schema.TypeString, Indexed: true, Stored: true},
		{Name: "title", Type: schema.TypeString, Indexed: true, Stored: true},
		{Name: "section", Type: schema.TypeString, Indexed: true, Stored: true},
		{Name: "embedding", Type: schema.TypeVector, Indexed: true, Dimension: 4, Similarity: "cosine"},
	})
	if err != nil {
		t.Fatalf("schema.New() error: %v", err)
	}

	coord, err := cluster.NewStaticCoordinator(addrs, nil)
	if err != nil {
		t.Fatalf("NewStaticCoordinator() error: %v", err)
	}
	resolver := cluster.NewResolver(coord, time.Minute, zap.NewNop())
	if err := resolver.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	t.Cleanup(resolver.Close)

	client := solr.NewClient(resolver, http.DefaultClient, 3, zap.NewNop())
	limits := plan.Limits{DefaultRows: 10, MaxRows: 1000, MaxOffset: 10000, InExpansionThreshold: 32}
	return search.NewEngine(sch, client, embedding.NewMockEmbedder(4), limits, zap.NewNop())
}

func TestHybridQueryOverHTTP(t *testing.T) {
	node := fakeSolrNode(t)
	defer node.Close()
	addr := strings.TrimPrefix(node.URL, "http://")

	engine := newEngine(t, []string{addr})
	page, err := engine.Run(context.Background(), &models.Request{
		SQL:    "SELECT id, title FROM docs WHERE section = 'intro' LIMIT 10",
		Vector: &models.VectorSpec{Field: "embedding", Text: "vector databases", TopK: 10, Alpha: 0.5},
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	// b appears in both candidate sets and wins the fused ranking
	if page.TotalMatched != 4 || len(page.Documents) != 4 {
		t.Fatalf("page = %+v", page)
	}
	if page.Documents[0].ID != "b" {
		t.Errorf("top document = %s, want b", page.Documents[0].ID)
	}
	if page.Documents[0].VectorScore == nil {
		t.Error("hybrid hit should carry a vector score")
	}
	for i, doc := range page.Documents {
		if doc.Rank != i+1 {
			t.Errorf("rank[%d] = %d", i, doc.Rank)
		}
	}
}

func TestQueryFailsOverToSecondNode(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()
	good := fakeSolrNode(t)
	defer good.Close()

	engine := newEngine(t, []string{
		strings.TrimPrefix(bad.URL, "http://"),
		strings.TrimPrefix(good.URL, "http://"),
	})
	page, err := engine.Run(context.Background(), &models.Request{
		SQL: "SELECT id, title FROM docs WHERE section = 'intro' LIMIT 10",
	})
	if err != nil {
		t.Fatalf("Run() should fail over, got error: %v", err)
	}
	if page.TotalMatched != 3 || page.Documents[0].ID != "a" {
		t.Errorf("page = %+v", page)
	}
}

func TestCountQueryOverHTTP(t *testing.T) {
	node := fakeSolrNode(t)
	defer node.Close()

	engine := newEngine(t, []string{strings.TrimPrefix(node.URL, "http://")})
	page, err := engine.Run(context.Background(), &models.Request{
		SQL: "SELECT COUNT(*) FROM docs WHERE section = 'intro'",
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if page.TotalMatched != 3 || len(page.Documents) != 0 {
		t.Errorf("page = %+v", page)
	}
}
