// Package sqlparser parses the supported SQL subset into an AST, validating
// field references against the collection schema so errors carry a source
// position. Grammar:
//
//	SELECT <fieldlist|*|COUNT(*)> FROM <collection>
//	  [WHERE <predicate>] [ORDER BY <field> [ASC|DESC]] [LIMIT <n> [OFFSET <m>]]
//
// Predicates support =, !=, <, <=, >, >=, IN, BETWEEN, AND, OR, NOT and
// string/numeric/boolean literals (dates are string literals).
package sqlparser

// Statement is a parsed SELECT statement.
type Statement struct {
	// Fields is the projection list; empty when Star or Count is set.
	Fields     []string
	Star       bool
	Count      bool
	Collection string
	Where      Predicate
	OrderBy    *OrderBy
	Limit      *Limit
}

// OrderBy is a single-field sort clause.
type OrderBy struct {
	Field string
	Desc  bool
}

// Limit is a LIMIT [OFFSET] clause.
type Limit struct {
	Rows      int
	Offset    int
	HasOffset bool
}

// CompareOp is a binary comparison operator.
type CompareOp string

const (
	OpEq  CompareOp = "="
	OpNeq CompareOp = "!="
	OpLt  CompareOp = "<"
	OpLte CompareOp = "<="
	OpGt  CompareOp = ">"
	OpGte CompareOp = ">="
)

// Ordering reports whether the operator requires an orderable operand type.
func (op CompareOp) Ordering() bool {
	switch op {
	case OpLt, OpLte, OpGt, OpGte:
		return true
	}
	return false
}

// BoolOp is a boolean connective.
type BoolOp string

const (
	OpAnd BoolOp = "AND"
	OpOr  BoolOp = "OR"
)

// Predicate is a node of the WHERE predicate tree. It is a closed set:
// Compare, In, Range, Not, and Bool, matched exhaustively by the compiler.
type Predicate interface {
	isPredicate()
}

// Compare is `field op value`.
type Compare struct {
	Field string
	Op    CompareOp
	Value Literal
	Pos   int
}

// In is `field IN (v1, v2, ...)`.
type In struct {
	Field  string
	Values []Literal
	Pos    int
}

// Range is `field BETWEEN lo AND hi` (inclusive on both ends).
type Range struct {
	Field string
	Lo    Literal
	Hi    Literal
	Pos   int
}

// Not negates its operand.
type Not struct {
	Operand Predicate
	Pos     int
}

// Bool is a chain of operands joined by one connective. Mixed is set when the
// source mixed AND and OR at one level without parentheses; the compiler
// rejects such chains rather than guessing precedence.
type Bool struct {
	Op       BoolOp
	Operands []Predicate
	Mixed    bool
	Pos      int
}

func (*Compare) isPredicate() {}
func (*In) isPredicate()      {}
func (*Range) isPredicate()   {}
func (*Not) isPredicate()     {}
func (*Bool) isPredicate()    {}

// LiteralKind tags a literal value.
type LiteralKind int

const (
	LitString LiteralKind = iota
	LitNumber
	LitBool
)

// Literal is a string, numeric, or boolean literal. IsInt is set for numeric
// literals written without a fractional part.
type Literal struct {
	Kind  LiteralKind
	Str   string
	Num   float64
	IsInt bool
	Bool  bool
}
