package sqlparser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hyperjump/tansaku/internal/models"
	"github.com/hyperjump/tansaku/internal/schema"
)

// Recognized keywords that are outside the supported subset. Seeing one
// anywhere yields UnsupportedConstructError instead of a bare syntax error.
var unsupportedKeywords = map[string]string{
	"JOIN":     "JOIN",
	"INNER":    "JOIN",
	"OUTER":    "JOIN",
	"LEFT":     "JOIN",
	"RIGHT":    "JOIN",
	"GROUP":    "GROUP BY",
	"HAVING":   "HAVING",
	"UNION":    "UNION",
	"DISTINCT": "DISTINCT",
	"LIKE":     "LIKE",
	"EXISTS":   "subquery",
}

var unsupportedAggregates = map[string]bool{
	"SUM": true, "AVG": true, "MIN": true, "MAX": true,
}

// Parser parses SQL against a fixed schema. Field and collection references
// are validated during parse so errors carry a source position.
type Parser struct {
	schema *schema.Schema
}

// New returns a parser bound to sch.
func New(sch *schema.Schema) *Parser {
	return &Parser{schema: sch}
}

// Parse parses sql into a Statement. Malformed input fails with
// models.SyntaxError; recognized-but-unsupported SQL fails with
// models.UnsupportedConstructError.
func (p *Parser) Parse(sql string) (*Statement, error) {
	toks, err := lex(sql)
	if err != nil {
		return nil, err
	}
	ps := &parseState{toks: toks, schema: p.schema}
	stmt, err := ps.parseSelect()
	if err != nil {
		return nil, err
	}
	if tok := ps.peek(); tok.kind != tokEOF {
		if construct, ok := unsupportedKeywords[strings.ToUpper(tok.text)]; ok && tok.kind == tokIdent {
			return nil, &models.UnsupportedConstructError{Construct: construct}
		}
		return nil, ps.errorf(tok, "unexpected %q after statement", tok.text)
	}
	return stmt, nil
}

type parseState struct {
	toks   []token
	i      int
	schema *schema.Schema
}

func (ps *parseState) peek() token { return ps.toks[ps.i] }

func (ps *parseState) next() token {
	t := ps.toks[ps.i]
	if t.kind != tokEOF {
		ps.i++
	}
	return t
}

func (ps *parseState) errorf(t token, format string, args ...interface{}) error {
	return &models.SyntaxError{Position: t.pos, Reason: fmt.Sprintf(format, args...)}
}

func (ps *parseState) expectKeyword(kw string) (token, error) {
	t := ps.next()
	if !t.keyword(kw) {
		return t, ps.errorf(t, "expected %s, got %q", kw, t.text)
	}
	return t, nil
}

func (ps *parseState) parseSelect() (*Statement, error) {
	if _, err := ps.expectKeyword("SELECT"); err != nil {
		return nil, err
	}
	stmt := &Statement{}

	if err := ps.parseFieldList(stmt); err != nil {
		return nil, err
	}

	if _, err := ps.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	collTok := ps.next()
	if collTok.kind != tokIdent {
		return nil, ps.errorf(collTok, "expected collection name, got %q", collTok.text)
	}
	if ps.peek().kind == tokComma {
		return nil, &models.UnsupportedConstructError{Construct: "multiple collections in FROM"}
	}
	if ps.peek().kind == tokLParen {
		return nil, &models.UnsupportedConstructError{Construct: "subquery"}
	}
	if collTok.text != ps.schema.Collection() {
		return nil, ps.errorf(collTok, "unknown collection %q", collTok.text)
	}
	stmt.Collection = collTok.text

	if ps.peek().keyword("WHERE") {
		ps.next()
		pred, err := ps.parsePredicate()
		if err != nil {
			return nil, err
		}
		stmt.Where = pred
	}

	if ps.peek().keyword("ORDER") {
		ps.next()
		if _, err := ps.expectKeyword("BY"); err != nil {
			return nil, err
		}
		fieldTok := ps.next()
		if fieldTok.kind != tokIdent {
			return nil, ps.errorf(fieldTok, "expected field name in ORDER BY, got %q", fieldTok.text)
		}
		if err := ps.checkField(fieldTok); err != nil {
			return nil, err
		}
		ob := &OrderBy{Field: fieldTok.text}
		if ps.peek().keyword("DESC") {
			ps.next()
			ob.Desc = true
		} else if ps.peek().keyword("ASC") {
			ps.next()
		}
		stmt.OrderBy = ob
		if ps.peek().kind == tokComma {
			return nil, &models.UnsupportedConstructError{Construct: "multi-field ORDER BY"}
		}
	}

	if ps.peek().keyword("LIMIT") {
		ps.next()
		rows, err := ps.parseNonNegativeInt("LIMIT")
		if err != nil {
			return nil, err
		}
		lim := &Limit{Rows: rows}
		if ps.peek().keyword("OFFSET") {
			ps.next()
			off, err := ps.parseNonNegativeInt("OFFSET")
			if err != nil {
				return nil, err
			}
			lim.Offset = off
			lim.HasOffset = true
		}
		stmt.Limit = lim
	}

	return stmt, nil
}

func (ps *parseState) parseFieldList(stmt *Statement) error {
	if ps.peek().kind == tokStar {
		ps.next()
		stmt.Star = true
		return nil
	}
	for {
		t := ps.next()
		if t.kind != tokIdent {
			return ps.errorf(t, "expected field name, got %q", t.text)
		}
		upper := strings.ToUpper(t.text)
		if ps.peek().kind == tokLParen {
			if upper == "COUNT" {
				ps.next()
				if ps.peek().kind != tokStar {
					return &models.UnsupportedConstructError{Construct: "COUNT over a field (only COUNT(*) is supported)"}
				}
				ps.next()
				if tok := ps.next(); tok.kind != tokRParen {
					return ps.errorf(tok, "expected ')' to close COUNT(*), got %q", tok.text)
				}
				if len(stmt.Fields) > 0 || ps.peek().kind == tokComma {
					return &models.UnsupportedConstructError{Construct: "COUNT(*) combined with other select fields"}
				}
				stmt.Count = true
				return nil
			}
			if unsupportedAggregates[upper] {
				return &models.UnsupportedConstructError{Construct: "aggregate function " + upper}
			}
			return &models.UnsupportedConstructError{Construct: "function " + t.text}
		}
		if err := ps.checkField(t); err != nil {
			return err
		}
		stmt.Fields = append(stmt.Fields, t.text)
		if ps.peek().kind != tokComma {
			return nil
		}
		ps.next()
	}
}

// parsePredicate parses a chain of operands joined by AND/OR. The chain is
// kept flat; a chain mixing both connectives is marked Mixed so the compiler
// can reject it with a pointer at the offending clause.
func (ps *parseState) parsePredicate() (Predicate, error) {
	pos := ps.peek().pos
	first, err := ps.parseUnary()
	if err != nil {
		return nil, err
	}
	operands := []Predicate{first}
	var conns []BoolOp
	for {
		t := ps.peek()
		var op BoolOp
		switch {
		case t.keyword("AND"):
			op = OpAnd
		case t.keyword("OR"):
			op = OpOr
		default:
			if len(operands) == 1 {
				return first, nil
			}
			mixed := false
			for _, c := range conns {
				if c != conns[0] {
					mixed = true
					break
				}
			}
			return &Bool{Op: conns[0], Operands: operands, Mixed: mixed, Pos: pos}, nil
		}
		ps.next()
		operand, err := ps.parseUnary()
		if err != nil {
			return nil, err
		}
		operands = append(operands, operand)
		conns = append(conns, op)
	}
}

func (ps *parseState) parseUnary() (Predicate, error) {
	t := ps.peek()
	switch {
	case t.keyword("NOT"):
		ps.next()
		operand, err := ps.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Not{Operand: operand, Pos: t.pos}, nil
	case t.kind == tokLParen:
		ps.next()
		if ps.peek().keyword("SELECT") {
			return nil, &models.UnsupportedConstructError{Construct: "subquery"}
		}
		inner, err := ps.parsePredicate()
		if err != nil {
			return nil, err
		}
		if tok := ps.next(); tok.kind != tokRParen {
			return nil, ps.errorf(tok, "expected ')', got %q", tok.text)
		}
		return inner, nil
	default:
		return ps.parseComparison()
	}
}

func (ps *parseState) parseComparison() (Predicate, error) {
	fieldTok := ps.next()
	if fieldTok.kind != tokIdent {
		return nil, ps.errorf(fieldTok, "expected field name, got %q", fieldTok.text)
	}
	if err := ps.checkField(fieldTok); err != nil {
		return nil, err
	}

	t := ps.peek()
	switch {
	case t.keyword("IN"):
		ps.next()
		if tok := ps.next(); tok.kind != tokLParen {
			return nil, ps.errorf(tok, "expected '(' after IN, got %q", tok.text)
		}
		if ps.peek().keyword("SELECT") {
			return nil, &models.UnsupportedConstructError{Construct: "subquery"}
		}
		var values []Literal
		for {
			lit, err := ps.parseLiteral()
			if err != nil {
				return nil, err
			}
			values = append(values, lit)
			tok := ps.next()
			if tok.kind == tokRParen {
				break
			}
			if tok.kind != tokComma {
				return nil, ps.errorf(tok, "expected ',' or ')' in IN list, got %q", tok.text)
			}
		}
		return &In{Field: fieldTok.text, Values: values, Pos: fieldTok.pos}, nil

	case t.keyword("BETWEEN"):
		ps.next()
		lo, err := ps.parseLiteral()
		if err != nil {
			return nil, err
		}
		if _, err := ps.expectKeyword("AND"); err != nil {
			return nil, err
		}
		hi, err := ps.parseLiteral()
		if err != nil {
			return nil, err
		}
		return &Range{Field: fieldTok.text, Lo: lo, Hi: hi, Pos: fieldTok.pos}, nil

	case t.kind == tokOp:
		ps.next()
		lit, err := ps.parseLiteral()
		if err != nil {
			return nil, err
		}
		return &Compare{Field: fieldTok.text, Op: CompareOp(t.text), Value: lit, Pos: fieldTok.pos}, nil
	}
	if construct, ok := unsupportedKeywords[strings.ToUpper(t.text)]; ok && t.kind == tokIdent {
		return nil, &models.UnsupportedConstructError{Construct: construct}
	}
	return nil, ps.errorf(t, "expected comparison operator, IN, or BETWEEN, got %q", t.text)
}

func (ps *parseState) parseLiteral() (Literal, error) {
	t := ps.next()
	switch t.kind {
	case tokString:
		return Literal{Kind: LitString, Str: t.text}, nil
	case tokNumber:
		num, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return Literal{}, ps.errorf(t, "invalid number %q", t.text)
		}
		return Literal{Kind: LitNumber, Num: num, IsInt: !strings.Contains(t.text, ".")}, nil
	case tokIdent:
		if t.keyword("TRUE") {
			return Literal{Kind: LitBool, Bool: true}, nil
		}
		if t.keyword("FALSE") {
			return Literal{Kind: LitBool}, nil
		}
	}
	return Literal{}, ps.errorf(t, "expected literal value, got %q", t.text)
}

func (ps *parseState) parseNonNegativeInt(clause string) (int, error) {
	t := ps.next()
	if t.kind != tokNumber {
		return 0, ps.errorf(t, "expected integer after %s, got %q", clause, t.text)
	}
	n, err := strconv.Atoi(t.text)
	if err != nil || n < 0 {
		return 0, ps.errorf(t, "%s must be a non-negative integer, got %q", clause, t.text)
	}
	return n, nil
}

func (ps *parseState) checkField(t token) error {
	if _, ok := ps.schema.Field(t.text); !ok {
		return ps.errorf(t, "unknown field %q", t.text)
	}
	return nil
}
