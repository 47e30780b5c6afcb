package plan

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/tansaku/internal/models"
	"github.com/hyperjump/tansaku/internal/schema"
	"github.com/hyperjump/tansaku/internal/sqlparser"
)

// Input carries everything Compile needs for one request. Statement and
// Vector are each optional but at least one must be present; Collection,
// Limit, and Offset apply only when there is no statement to carry them.
type Input struct {
	Statement  *sqlparser.Statement
	Vector     *models.VectorSpec
	Collection string
	Limit      int
	Offset     int
}

// Compile lowers in to a QueryPlan, failing with models.CompileError when a
// predicate is incompatible with the field's declared type or paging exceeds
// the configured maxima. Every field reference was already resolved by the
// parser; Compile re-resolves them only to read the declared types.
func Compile(in Input, sch *schema.Schema, limits Limits) (*QueryPlan, error) {
	c := &compiler{schema: sch, limits: limits}
	return c.compile(in)
}

type compiler struct {
	schema *schema.Schema
	limits Limits
}

func (c *compiler) compile(in Input) (*QueryPlan, error) {
	p := &QueryPlan{Query: "*:*"}

	stmt := in.Statement
	if stmt != nil {
		p.Collection = stmt.Collection
		p.Fields = append([]string(nil), stmt.Fields...)
		p.CountOnly = stmt.Count
	} else {
		p.Collection = in.Collection
	}
	if p.Collection == "" {
		return nil, &models.CompileError{Reason: "no collection resolved"}
	}

	if stmt != nil && stmt.Where != nil {
		filters, err := c.compileRoot(stmt.Where)
		if err != nil {
			return nil, err
		}
		p.Filters = filters
	}

	if stmt != nil && stmt.OrderBy != nil {
		f, _ := c.schema.Field(stmt.OrderBy.Field)
		if f.Type == schema.TypeVector {
			return nil, &models.CompileError{Field: f.Name, Reason: "vector fields cannot be sorted; use a vector clause for similarity ranking"}
		}
		if !f.Orderable() {
			return nil, &models.CompileError{Field: f.Name, Reason: "field is not orderable"}
		}
		dir := "asc"
		if stmt.OrderBy.Desc {
			dir = "desc"
		}
		p.Sort = f.Name + " " + dir
	}

	rows := c.limits.DefaultRows
	start := 0
	if stmt != nil && stmt.Limit != nil {
		rows = stmt.Limit.Rows
		start = stmt.Limit.Offset
	} else if stmt == nil {
		if in.Limit > 0 {
			rows = in.Limit
		}
		start = in.Offset
	}
	if rows > c.limits.MaxRows {
		return nil, &models.CompileError{Reason: fmt.Sprintf("LIMIT %d exceeds maximum %d", rows, c.limits.MaxRows)}
	}
	if start > c.limits.MaxOffset {
		return nil, &models.CompileError{Reason: fmt.Sprintf("OFFSET %d exceeds maximum %d", start, c.limits.MaxOffset)}
	}
	p.Rows = rows
	p.Start = start
	if p.CountOnly {
		p.Rows = 0
	}

	if in.Vector != nil {
		knn, err := c.compileVector(in.Vector, start+rows)
		if err != nil {
			return nil, err
		}
		p.KNN = knn
	}

	return p, nil
}

func (c *compiler) compileVector(v *models.VectorSpec, pageDepth int) (*KNNClause, error) {
	f, err := c.schema.VectorField(v.Field)
	if err != nil {
		return nil, &models.CompileError{Field: v.Field, Reason: err.Error()}
	}
	if len(v.Vector) != f.Dimension {
		return nil, &models.CompileError{
			Field:  v.Field,
			Reason: fmt.Sprintf("vector dimension %d does not match declared dimension %d", len(v.Vector), f.Dimension),
		}
	}
	topK := v.TopK
	// offset paging must not truncate fused results below the requested rows
	if topK < pageDepth {
		topK = pageDepth
	}
	return &KNNClause{Field: f.Name, Vector: v.Vector, TopK: topK, Alpha: v.Alpha}, nil
}

// compileRoot flattens a top-level AND chain into the plan's ordered filter
// list; any other root becomes a single filter expression.
func (c *compiler) compileRoot(pred sqlparser.Predicate) ([]string, error) {
	if b, ok := pred.(*sqlparser.Bool); ok && !b.Mixed && b.Op == sqlparser.OpAnd {
		filters := make([]string, 0, len(b.Operands))
		for _, op := range b.Operands {
			s, err := c.render(op)
			if err != nil {
				return nil, err
			}
			filters = append(filters, s)
		}
		return filters, nil
	}
	s, err := c.render(pred)
	if err != nil {
		return nil, err
	}
	return []string{s}, nil
}

func (c *compiler) render(pred sqlparser.Predicate) (string, error) {
	switch n := pred.(type) {
	case *sqlparser.Compare:
		return c.renderCompare(n)
	case *sqlparser.In:
		return c.renderIn(n)
	case *sqlparser.Range:
		return c.renderRange(n)
	case *sqlparser.Not:
		inner, err := c.render(n.Operand)
		if err != nil {
			return "", err
		}
		return "(*:* -" + inner + ")", nil
	case *sqlparser.Bool:
		if n.Mixed {
			return "", &models.CompileError{Reason: "mixed AND/OR requires parentheses"}
		}
		parts := make([]string, 0, len(n.Operands))
		for _, op := range n.Operands {
			s, err := c.render(op)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return "(" + strings.Join(parts, " "+string(n.Op)+" ") + ")", nil
	}
	return "", &models.CompileError{Reason: fmt.Sprintf("unhandled predicate %T", pred)}
}

func (c *compiler) renderCompare(n *sqlparser.Compare) (string, error) {
	f, _ := c.schema.Field(n.Field)
	if f.Type == schema.TypeVector {
		return "", &models.CompileError{Field: f.Name, Reason: "vector fields cannot appear in predicates"}
	}
	if n.Op.Ordering() && !f.Comparable() {
		return "", &models.CompileError{Field: f.Name, Reason: fmt.Sprintf("range comparison on non-orderable type %s", f.Type)}
	}
	val, err := c.renderValue(f, n.Value)
	if err != nil {
		return "", err
	}
	switch n.Op {
	case sqlparser.OpEq:
		return f.Name + ":" + val, nil
	case sqlparser.OpNeq:
		return "(*:* -" + f.Name + ":" + val + ")", nil
	case sqlparser.OpLt:
		return f.Name + ":{* TO " + val + "}", nil
	case sqlparser.OpLte:
		return f.Name + ":[* TO " + val + "]", nil
	case sqlparser.OpGt:
		return f.Name + ":{" + val + " TO *}", nil
	case sqlparser.OpGte:
		return f.Name + ":[" + val + " TO *]", nil
	}
	return "", &models.CompileError{Field: f.Name, Reason: fmt.Sprintf("unhandled operator %s", n.Op)}
}

func (c *compiler) renderIn(n *sqlparser.In) (string, error) {
	f, _ := c.schema.Field(n.Field)
	if f.Type == schema.TypeVector {
		return "", &models.CompileError{Field: f.Name, Reason: "vector fields cannot appear in predicates"}
	}
	if len(n.Values) == 0 {
		return "", &models.CompileError{Field: f.Name, Reason: "IN requires at least one value"}
	}
	if len(n.Values) <= c.limits.InExpansionThreshold {
		parts := make([]string, 0, len(n.Values))
		for _, lit := range n.Values {
			val, err := c.renderValue(f, lit)
			if err != nil {
				return "", err
			}
			parts = append(parts, f.Name+":"+val)
		}
		if len(parts) == 1 {
			return parts[0], nil
		}
		return "(" + strings.Join(parts, " OR ") + ")", nil
	}
	// large lists use the engine's native set-membership filter
	raw := make([]string, 0, len(n.Values))
	for _, lit := range n.Values {
		if err := c.checkValue(f, lit); err != nil {
			return "", err
		}
		raw = append(raw, rawValue(lit))
	}
	return "{!terms f=" + f.Name + "}" + strings.Join(raw, ","), nil
}

func (c *compiler) renderRange(n *sqlparser.Range) (string, error) {
	f, _ := c.schema.Field(n.Field)
	if !f.Comparable() {
		return "", &models.CompileError{Field: f.Name, Reason: fmt.Sprintf("range comparison on non-orderable type %s", f.Type)}
	}
	lo, err := c.renderValue(f, n.Lo)
	if err != nil {
		return "", err
	}
	hi, err := c.renderValue(f, n.Hi)
	if err != nil {
		return "", err
	}
	return f.Name + ":[" + lo + " TO " + hi + "]", nil
}

// checkValue validates a literal against the field's declared type.
func (c *compiler) checkValue(f schema.Field, lit sqlparser.Literal) error {
	switch f.Type {
	case schema.TypeString:
		if lit.Kind != sqlparser.LitString {
			return &models.CompileError{Field: f.Name, Reason: "expected string literal"}
		}
	case schema.TypeInt:
		if lit.Kind != sqlparser.LitNumber || !lit.IsInt {
			return &models.CompileError{Field: f.Name, Reason: "expected integer literal"}
		}
	case schema.TypeFloat:
		if lit.Kind != sqlparser.LitNumber {
			return &models.CompileError{Field: f.Name, Reason: "expected numeric literal"}
		}
	case schema.TypeDate:
		if lit.Kind != sqlparser.LitString {
			return &models.CompileError{Field: f.Name, Reason: "expected date literal"}
		}
		if _, err := parseDate(lit.Str); err != nil {
			return &models.CompileError{Field: f.Name, Reason: fmt.Sprintf("invalid date literal %q", lit.Str)}
		}
	case schema.TypeBoolean:
		if lit.Kind != sqlparser.LitBool {
			return &models.CompileError{Field: f.Name, Reason: "expected boolean literal"}
		}
	}
	return nil
}

func (c *compiler) renderValue(f schema.Field, lit sqlparser.Literal) (string, error) {
	if err := c.checkValue(f, lit); err != nil {
		return "", err
	}
	switch f.Type {
	case schema.TypeString:
		return quote(lit.Str), nil
	case schema.TypeInt:
		return strconv.FormatInt(int64(lit.Num), 10), nil
	case schema.TypeFloat:
		return strconv.FormatFloat(lit.Num, 'f', -1, 64), nil
	case schema.TypeDate:
		d, _ := parseDate(lit.Str)
		return quote(d.UTC().Format(time.RFC3339)), nil
	case schema.TypeBoolean:
		return strconv.FormatBool(lit.Bool), nil
	}
	return "", &models.CompileError{Field: f.Name, Reason: fmt.Sprintf("unhandled field type %s", f.Type)}
}

// rawValue renders a literal without quoting, for set-membership filters.
func rawValue(lit sqlparser.Literal) string {
	switch lit.Kind {
	case sqlparser.LitString:
		return lit.Str
	case sqlparser.LitNumber:
		if lit.IsInt {
			return strconv.FormatInt(int64(lit.Num), 10)
		}
		return strconv.FormatFloat(lit.Num, 'f', -1, 64)
	case sqlparser.LitBool:
		return strconv.FormatBool(lit.Bool)
	}
	return ""
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
