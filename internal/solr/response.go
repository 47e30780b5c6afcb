package solr

import (
	"encoding/json"
	"fmt"
	"io"
)

// Document is one raw result row. Field values keep the engine's JSON types.
type Document map[string]any

// ID returns the document's unique key, or "" when missing.
func (d Document) ID() string {
	if id, ok := d["id"].(string); ok {
		return id
	}
	return ""
}

// Score returns the engine relevance score for this row.
func (d Document) Score() (float64, bool) {
	s, ok := d["score"].(float64)
	return s, ok
}

// Response is the decoded body of a /select call.
type Response struct {
	NumFound int
	Start    int
	Docs     []Document
}

type rawResponse struct {
	Response struct {
		NumFound int        `json:"numFound"`
		Start    int        `json:"start"`
		Docs     []Document `json:"docs"`
	} `json:"response"`
	Error *struct {
		Msg  string `json:"msg"`
		Code int    `json:"code"`
	} `json:"error"`
}

func decodeResponse(r io.Reader) (*Response, error) {
	var raw rawResponse
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode select response: %w", err)
	}
	if raw.Error != nil {
		return nil, fmt.Errorf("engine error %d: %s", raw.Error.Code, raw.Error.Msg)
	}
	return &Response{
		NumFound: raw.Response.NumFound,
		Start:    raw.Response.Start,
		Docs:     raw.Response.Docs,
	}, nil
}
