// Package search runs the full query pipeline: parse, compile, execute, and
// normalize. Hybrid requests fan out into keyword and vector candidate
// executions whose results are fused locally with a deterministic weighted
// combination.
package search

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/tansaku/internal/embedding"
	"github.com/hyperjump/tansaku/internal/models"
	"github.com/hyperjump/tansaku/internal/plan"
	"github.com/hyperjump/tansaku/internal/schema"
	"github.com/hyperjump/tansaku/internal/solr"
	"github.com/hyperjump/tansaku/internal/sqlparser"
	"go.uber.org/zap"
)

// Searcher executes one compiled plan against the cluster.
type Searcher interface {
	Select(ctx context.Context, p *plan.QueryPlan) (*solr.Response, error)
}

// Engine ties the pipeline together. It is safe for concurrent use; every
// query builds its own plan and shares nothing mutable.
type Engine struct {
	schema   *schema.Schema
	parser   *sqlparser.Parser
	searcher Searcher
	embedder embedding.Embedder
	limits   plan.Limits
	logger   *zap.Logger
}

// NewEngine creates an engine over sch. embedder may be nil when semantic
// text queries are disabled.
func NewEngine(sch *schema.Schema, searcher Searcher, embedder embedding.Embedder, limits plan.Limits, logger *zap.Logger) *Engine {
	return &Engine{
		schema:   sch,
		parser:   sqlparser.New(sch),
		searcher: searcher,
		embedder: embedder,
		limits:   limits,
		logger:   logger,
	}
}

// Run executes req and returns the normalized result page.
func (e *Engine) Run(ctx context.Context, req *models.Request) (*models.ResultPage, error) {
	started := time.Now()
	requestID := uuid.NewString()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	var stmt *sqlparser.Statement
	if req.SQL != "" {
		var err error
		stmt, err = e.parser.Parse(req.SQL)
		if err != nil {
			return nil, err
		}
	}

	vec := req.Vector
	if vec != nil && vec.Text != "" {
		if e.embedder == nil {
			return nil, &models.CompileError{Field: vec.Field, Reason: "semantic text queries require an embedding backend"}
		}
		emb, err := e.embedder.Embed(ctx, vec.Text)
		if err != nil {
			return nil, fmt.Errorf("embed query text: %w", err)
		}
		v := *vec
		v.Vector = emb
		v.Text = ""
		vec = &v
	}

	p, err := plan.Compile(plan.Input{
		Statement:  stmt,
		Vector:     vec,
		Collection: req.Collection,
		Limit:      req.Limit,
		Offset:     req.Offset,
	}, e.schema, e.limits)
	if err != nil {
		return nil, err
	}
	if p.KNN != nil && p.Sort != "" {
		return nil, &models.CompileError{Reason: "ORDER BY cannot be combined with a vector clause; hybrid results are ordered by fused score"}
	}
	if p.KNN != nil && p.CountOnly {
		// the fused candidate set is bounded by topK, so a hybrid count would
		// misreport the match count
		return nil, &models.CompileError{Reason: "COUNT(*) cannot be combined with a vector clause"}
	}

	var page *models.ResultPage
	switch {
	case p.KNN == nil:
		page, err = e.runKeyword(ctx, p)
	case stmt == nil:
		page, err = e.runVector(ctx, p)
	default:
		page, err = e.runHybrid(ctx, p)
	}
	if err != nil {
		return nil, err
	}

	page.QueryTimeMS = time.Since(started).Milliseconds()
	page.RequestID = requestID
	e.logger.Info("query completed",
		zap.String("request_id", requestID),
		zap.String("collection", p.Collection),
		zap.Bool("hybrid", p.KNN != nil && stmt != nil),
		zap.Int("documents", len(page.Documents)),
		zap.Int("total_matched", page.TotalMatched),
		zap.Int64("query_time_ms", page.QueryTimeMS),
	)
	return page, nil
}

// runKeyword executes a pure keyword/filter plan with server-side paging.
func (e *Engine) runKeyword(ctx context.Context, p *plan.QueryPlan) (*models.ResultPage, error) {
	resp, err := e.searcher.Select(ctx, p)
	if err != nil {
		return nil, err
	}
	docs := make([]*models.ResultDocument, 0, len(resp.Docs))
	for i, d := range resp.Docs {
		score, _ := d.Score()
		docs = append(docs, &models.ResultDocument{
			ID:           d.ID(),
			Fields:       projectFields(d, p.Fields),
			Rank:         p.Start + i + 1,
			KeywordScore: score,
			FusedScore:   score,
		})
	}
	next := nextOffset(resp.NumFound, p.Start, p.Rows)
	if p.CountOnly {
		next = nil
	}
	return &models.ResultPage{
		Documents:    docs,
		TotalMatched: resp.NumFound,
		NextOffset:   next,
	}, nil
}

// runVector executes a vector-only plan. Scores come back as cosine
// similarity and are mapped onto [0,1].
func (e *Engine) runVector(ctx context.Context, p *plan.QueryPlan) (*models.ResultPage, error) {
	resp, err := e.searcher.Select(ctx, p)
	if err != nil {
		return nil, err
	}
	docs := make([]*models.ResultDocument, 0, len(resp.Docs))
	for i, d := range resp.Docs {
		score, _ := d.Score()
		vs := normalizeCosine(score)
		docs = append(docs, &models.ResultDocument{
			ID:          d.ID(),
			Fields:      projectFields(d, p.Fields),
			Rank:        p.Start + i + 1,
			VectorScore: &vs,
			FusedScore:  vs,
		})
	}
	return &models.ResultPage{
		Documents:    docs,
		TotalMatched: resp.NumFound,
		NextOffset:   nextOffset(resp.NumFound, p.Start, p.Rows),
	}, nil
}

// runHybrid collects keyword and vector candidate sets, fuses them, and pages
// locally over the fused ranking. TotalMatched counts the fused candidate
// set, not the server-side match count, so pagination stays consistent with
// the ordering the client actually sees.
func (e *Engine) runHybrid(ctx context.Context, p *plan.QueryPlan) (*models.ResultPage, error) {
	kwResp, err := e.searcher.Select(ctx, p.KeywordCandidates())
	if err != nil {
		return nil, err
	}
	vecResp, err := e.searcher.Select(ctx, p.VectorCandidates())
	if err != nil {
		return nil, err
	}

	fused := fuse(kwResp.Docs, vecResp.Docs, p.KNN.Alpha)
	total := len(fused)

	lo := p.Start
	if lo > total {
		lo = total
	}
	hi := lo + p.Rows
	if hi > total {
		hi = total
	}

	docs := make([]*models.ResultDocument, 0, hi-lo)
	for i, c := range fused[lo:hi] {
		vs := c.vector
		docs = append(docs, &models.ResultDocument{
			ID:           c.id,
			Fields:       projectFields(c.doc, p.Fields),
			Rank:         lo + i + 1,
			KeywordScore: c.keyword,
			VectorScore:  &vs,
			FusedScore:   c.fused,
		})
	}
	return &models.ResultPage{
		Documents:    docs,
		TotalMatched: total,
		NextOffset:   nextOffset(total, p.Start, p.Rows),
	}, nil
}
