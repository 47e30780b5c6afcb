// Package solr sends compiled query plans to the search cluster over its
// JSON query DSL and consumes the raw responses. Transient failures are
// retried against freshly resolved endpoints; 4xx rejections of a compiled
// plan are surfaced verbatim and never retried.
package solr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/hyperjump/tansaku/internal/cluster"
	"github.com/hyperjump/tansaku/internal/models"
	"github.com/hyperjump/tansaku/internal/plan"
	"github.com/hyperjump/tansaku/pkg/utils"
	"go.uber.org/zap"
)

// Client executes plans against resolved cluster endpoints. The HTTP client
// is shared and pooled; no query holds a connection beyond one
// request/response cycle.
type Client struct {
	resolver   *cluster.Resolver
	httpClient *http.Client
	maxRetries int
	logger     *zap.Logger
}

// NewClient creates a client over resolver. maxRetries bounds how many
// endpoints one query may try before failing with ExecutionError.
func NewClient(resolver *cluster.Resolver, httpClient *http.Client, maxRetries int, logger *zap.Logger) *Client {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Client{
		resolver:   resolver,
		httpClient: httpClient,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// selectRequest is the engine's JSON query DSL body for a /select call.
type selectRequest struct {
	Query  string   `json:"query"`
	Filter []string `json:"filter,omitempty"`
	Fields string   `json:"fields,omitempty"`
	Sort   string   `json:"sort,omitempty"`
	Limit  int      `json:"limit"`
	Offset int      `json:"offset,omitempty"`
}

// Select executes p and returns the raw engine response. Cancellation always
// propagates before any retry decision.
func (c *Client) Select(ctx context.Context, p *plan.QueryPlan) (*Response, error) {
	body, err := json.Marshal(buildRequest(p))
	if err != nil {
		return nil, fmt.Errorf("encode select request: %w", err)
	}
	requestID := uuid.NewString()

	var lastCause error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		endpoint, err := c.resolver.Resolve(ctx)
		if err != nil {
			return nil, err
		}
		resp, err := c.trySelect(ctx, endpoint, p.Collection, body)
		if err == nil {
			return resp, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var rejected *models.PlanRejectedError
		if errors.As(err, &rejected) {
			c.logger.Error("engine rejected compiled plan",
				zap.String("request_id", requestID),
				zap.String("collection", p.Collection),
				zap.Int("status", rejected.Status),
				zap.String("query", utils.Truncate(string(body), 512)),
			)
			return nil, err
		}
		c.logger.Warn("select attempt failed; retrying on another endpoint",
			zap.String("request_id", requestID),
			zap.String("endpoint", endpoint.Addr()),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		c.resolver.MarkUnhealthy(endpoint)
		lastCause = err
	}
	return nil, &models.ExecutionError{Attempts: c.maxRetries, LastCause: lastCause}
}

func (c *Client) trySelect(ctx context.Context, endpoint cluster.Endpoint, collection string, body []byte) (*Response, error) {
	url := fmt.Sprintf("http://%s/solr/%s/select", endpoint.Addr(), collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("select request failed: %w", err)
	}
	defer httpResp.Body.Close()

	switch {
	case httpResp.StatusCode == http.StatusOK:
		return decodeResponse(httpResp.Body)
	case httpResp.StatusCode >= 400 && httpResp.StatusCode < 500:
		detail, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
		return nil, &models.PlanRejectedError{Status: httpResp.StatusCode, Body: strings.TrimSpace(string(detail))}
	default:
		return nil, fmt.Errorf("engine returned status %d", httpResp.StatusCode)
	}
}

func buildRequest(p *plan.QueryPlan) selectRequest {
	query := p.Query
	if p.KNN != nil {
		query = p.KNN.Query()
	}
	return selectRequest{
		Query:  query,
		Filter: p.Filters,
		Fields: fieldList(p.Fields),
		Sort:   p.Sort,
		Limit:  p.Rows,
		Offset: p.Start,
	}
}

// fieldList renders the projection, always including id and score so the
// normalizer can identify and rank documents.
func fieldList(fields []string) string {
	if len(fields) == 0 {
		return "*,score"
	}
	out := make([]string, 0, len(fields)+2)
	hasID := false
	for _, f := range fields {
		if f == "id" {
			hasID = true
		}
		out = append(out, f)
	}
	if !hasID {
		out = append(out, "id")
	}
	out = append(out, "score")
	return strings.Join(out, ",")
}
