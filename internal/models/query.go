// Package models defines request/response types and the query error taxonomy.
package models

// VectorSpec is a caller-supplied vector-similarity clause. Exactly one of
// Vector and Text must be set; Text is embedded via the embedding service
// before compilation. TopK and Alpha carry no defaults: the transport
// collaborator must supply both.
type VectorSpec struct {
	// Field is the dense-vector field to search against.
	Field string `json:"field"`
	// Vector is the query vector; its length must match the field's declared
	// dimensionality.
	Vector []float32 `json:"vector,omitempty"`
	// Text is free text to embed in place of an explicit vector.
	Text string `json:"text,omitempty"`
	// TopK is the number of nearest candidates the engine ranks.
	TopK int `json:"top_k"`
	// Alpha is the fusion weight in [0,1]: 0 = pure keyword, 1 = pure vector.
	Alpha float64 `json:"alpha"`
}

// Request is the single inbound call from the transport layer. SQL, Vector,
// or both may be set; both together is a hybrid query whose WHERE clause
// pre-filters the candidate set the vector search ranks.
type Request struct {
	SQL    string      `json:"sql,omitempty"`
	Vector *VectorSpec `json:"vector,omitempty"`
	// Collection names the target collection for vector-only requests; SQL
	// requests carry the collection in the FROM clause.
	Collection string `json:"collection,omitempty"`
	// Limit and Offset page vector-only requests; SQL requests use LIMIT/OFFSET.
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// Validate checks the request shape. Field/type validation against the
// schema happens later, at parse and compile.
func (r *Request) Validate() error {
	if r.SQL == "" && r.Vector == nil {
		return &CompileError{Reason: "request must carry sql, a vector clause, or both"}
	}
	if r.Vector != nil {
		v := r.Vector
		if v.Field == "" {
			return &CompileError{Reason: "vector clause requires a field"}
		}
		if len(v.Vector) == 0 && v.Text == "" {
			return &CompileError{Field: v.Field, Reason: "vector clause requires a vector or text"}
		}
		if len(v.Vector) > 0 && v.Text != "" {
			return &CompileError{Field: v.Field, Reason: "vector clause cannot carry both a vector and text"}
		}
		if v.TopK <= 0 {
			return &CompileError{Field: v.Field, Reason: "top_k is required and must be positive"}
		}
		if v.Alpha < 0 || v.Alpha > 1 {
			return &CompileError{Field: v.Field, Reason: "alpha is required and must be in [0,1]"}
		}
	}
	if r.SQL == "" && r.Collection == "" {
		return &CompileError{Reason: "vector-only request requires a collection"}
	}
	if r.Limit < 0 || r.Offset < 0 {
		return &CompileError{Reason: "limit and offset must be non-negative"}
	}
	return nil
}
