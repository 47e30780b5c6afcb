package models

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies query failures so the transport layer can map them to
// a response without inspecting internal state.
type ErrorKind string

const (
	KindSyntax             ErrorKind = "syntax_error"
	KindUnsupported        ErrorKind = "unsupported_construct"
	KindCompile            ErrorKind = "compile_error"
	KindClusterUnavailable ErrorKind = "cluster_unavailable"
	KindExecution          ErrorKind = "execution_error"
	KindPlanRejected       ErrorKind = "plan_rejected"
	KindCancelled          ErrorKind = "cancelled"
	KindInternal           ErrorKind = "internal"
)

// SyntaxError reports malformed query text with the byte position of the problem.
type SyntaxError struct {
	Position int
	Reason   string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at position %d: %s", e.Position, e.Reason)
}

// UnsupportedConstructError reports SQL that is recognized but outside the
// supported subset (joins, subqueries, aggregates beyond COUNT).
type UnsupportedConstructError struct {
	Construct string
}

func (e *UnsupportedConstructError) Error() string {
	return fmt.Sprintf("unsupported construct: %s", e.Construct)
}

// CompileError reports a query that parsed but cannot be lowered to a native
// plan, typically a type or arity mismatch against the schema.
type CompileError struct {
	Field  string
	Reason string
}

func (e *CompileError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("compile error: %s", e.Reason)
	}
	return fmt.Sprintf("compile error on field %q: %s", e.Field, e.Reason)
}

// ClusterUnavailableError means no healthy endpoint exists even after a
// forced membership refresh. The caller may retry.
type ClusterUnavailableError struct {
	Reason string
}

func (e *ClusterUnavailableError) Error() string {
	return fmt.Sprintf("cluster unavailable: %s", e.Reason)
}

// ExecutionError means the request failed against the cluster after
// exhausting the retry bound. The caller may retry with backoff.
type ExecutionError struct {
	Attempts  int
	LastCause error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution failed after %d attempts: %v", e.Attempts, e.LastCause)
}

func (e *ExecutionError) Unwrap() error { return e.LastCause }

// PlanRejectedError means the engine rejected a compiled plan with a 4xx.
// A well-formed plan should never be rejected, so this is treated as a latent
// compiler bug: logged at high severity and never retried.
type PlanRejectedError struct {
	Status int
	Body   string
}

func (e *PlanRejectedError) Error() string {
	return fmt.Sprintf("plan rejected by engine (status %d): %s", e.Status, e.Body)
}

// KindOf classifies err into an ErrorKind. Cancellation takes precedence over
// every other classification.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}
	var (
		syn  *SyntaxError
		uns  *UnsupportedConstructError
		cmp  *CompileError
		clu  *ClusterUnavailableError
		exe  *ExecutionError
		plan *PlanRejectedError
	)
	switch {
	case errors.As(err, &syn):
		return KindSyntax
	case errors.As(err, &uns):
		return KindUnsupported
	case errors.As(err, &cmp):
		return KindCompile
	case errors.As(err, &clu):
		return KindClusterUnavailable
	case errors.As(err, &plan):
		return KindPlanRejected
	case errors.As(err, &exe):
		return KindExecution
	}
	return KindInternal
}
