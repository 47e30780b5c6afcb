package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

func TestCacheSetGet(t *testing.T) {
	c := NewCache(2)
	c.Set("a", []float32{1})
	c.Set("b", []float32{2})

	if v, ok := c.Get("a"); !ok || v[0] != 1 {
		t.Errorf("Get(a) = %v, %v", v, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("Get(missing) should miss")
	}
}

func TestCacheEvictsOldest(t *testing.T) {
	c := NewCache(2)
	c.Set("a", []float32{1})
	c.Set("b", []float32{2})
	c.Get("a") // refresh a, making b the eviction candidate
	c.Set("c", []float32{3})

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("a should survive eviction")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("c should be present")
	}
}

func TestCacheConcurrentHits(t *testing.T) {
	c := NewCache(4)
	c.Set("a", []float32{1})
	c.Set("b", []float32{2})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				// hits update recency, so concurrent readers exercise the
				// same list mutation path as writers
				c.Get("a")
				c.Get("b")
				if i%2 == 0 {
					c.Set("c", []float32{3})
				}
			}
		}(i)
	}
	wg.Wait()

	if v, ok := c.Get("a"); !ok || v[0] != 1 {
		t.Errorf("Get(a) = %v, %v after concurrent access", v, ok)
	}
}

func TestMockEmbedderDeterministic(t *testing.T) {
	e := NewMockEmbedder(16)
	a, err := e.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
	b, _ := e.Embed(context.Background(), "hello world")
	other, _ := e.Embed(context.Background(), "something else")

	if len(a) != 16 {
		t.Fatalf("got %d dimensions", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("same text must give the same embedding")
		}
	}
	same := true
	for i := range a {
		if a[i] != other[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different texts should give different embeddings")
	}

	var sum float64
	for _, v := range a {
		sum += float64(v * v)
	}
	if math.Abs(sum-1.0) > 1e-5 {
		t.Errorf("embedding not unit length: %v", sum)
	}
}

func TestCachedEmbedderHitsBackendOnce(t *testing.T) {
	calls := 0
	inner := &countingEmbedder{inner: NewMockEmbedder(8), calls: &calls}
	e := NewCachedEmbedder(inner, 10)

	if _, err := e.Embed(context.Background(), "query"); err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
	if _, err := e.Embed(context.Background(), "query"); err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
	if calls != 1 {
		t.Errorf("backend called %d times, want 1", calls)
	}
}

type countingEmbedder struct {
	inner Embedder
	calls *int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	*c.calls++
	return c.inner.Embed(ctx, text)
}

func (c *countingEmbedder) Dimensions() int { return c.inner.Dimensions() }
func (c *countingEmbedder) Close() error    { return c.inner.Close() }

func TestOllamaEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "nomic-embed-text" || req.Prompt != "hello" {
			t.Errorf("request = %+v", req)
		}
		json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	e, err := NewOllamaEmbedder(srv.URL, "nomic-embed-text", 3, srv.Client())
	if err != nil {
		t.Fatalf("NewOllamaEmbedder() error: %v", err)
	}
	emb, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
	if len(emb) != 3 || emb[1] != 0.2 {
		t.Errorf("embedding = %v", emb)
	}
}

func TestOllamaEmbedderDimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{0.1, 0.2}})
	}))
	defer srv.Close()

	e, err := NewOllamaEmbedder(srv.URL, "nomic-embed-text", 768, srv.Client())
	if err != nil {
		t.Fatalf("NewOllamaEmbedder() error: %v", err)
	}
	if _, err := e.Embed(context.Background(), "hello"); err == nil {
		t.Error("dimension mismatch should fail")
	}
}

func TestOllamaEmbedderValidation(t *testing.T) {
	if _, err := NewOllamaEmbedder("", "m", 3, nil); err == nil {
		t.Error("empty URL should fail")
	}
	if _, err := NewOllamaEmbedder("http://localhost:11434", "", 3, nil); err == nil {
		t.Error("empty model should fail")
	}
	if _, err := NewOllamaEmbedder("http://localhost:11434", "m", 0, nil); err == nil {
		t.Error("zero dimensions should fail")
	}
}
