package sqlparser

import (
	"strings"
	"unicode"

	"github.com/hyperjump/tansaku/internal/models"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokOp     // = != <> < <= > >=
	tokComma
	tokLParen
	tokRParen
	tokStar
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// keyword reports whether the token is an identifier matching kw
// (SQL keywords are case-insensitive).
func (t token) keyword(kw string) bool {
	return t.kind == tokIdent && strings.EqualFold(t.text, kw)
}

// lex tokenizes sql. Positions are byte offsets into the input.
func lex(sql string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(sql) {
		c := sql[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == ',':
			toks = append(toks, token{tokComma, ",", i})
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "(", i})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")", i})
			i++
		case c == '*':
			toks = append(toks, token{tokStar, "*", i})
			i++
		case c == '=':
			toks = append(toks, token{tokOp, "=", i})
			i++
		case c == '!':
			if i+1 < len(sql) && sql[i+1] == '=' {
				toks = append(toks, token{tokOp, "!=", i})
				i += 2
			} else {
				return nil, &models.SyntaxError{Position: i, Reason: "unexpected '!'"}
			}
		case c == '<':
			switch {
			case i+1 < len(sql) && sql[i+1] == '=':
				toks = append(toks, token{tokOp, "<=", i})
				i += 2
			case i+1 < len(sql) && sql[i+1] == '>':
				toks = append(toks, token{tokOp, "!=", i})
				i += 2
			default:
				toks = append(toks, token{tokOp, "<", i})
				i++
			}
		case c == '>':
			if i+1 < len(sql) && sql[i+1] == '=' {
				toks = append(toks, token{tokOp, ">=", i})
				i += 2
			} else {
				toks = append(toks, token{tokOp, ">", i})
				i++
			}
		case c == '\'':
			start := i
			i++
			var sb strings.Builder
			closed := false
			for i < len(sql) {
				if sql[i] == '\'' {
					// '' escapes a single quote inside the literal
					if i+1 < len(sql) && sql[i+1] == '\'' {
						sb.WriteByte('\'')
						i += 2
						continue
					}
					closed = true
					i++
					break
				}
				sb.WriteByte(sql[i])
				i++
			}
			if !closed {
				return nil, &models.SyntaxError{Position: start, Reason: "unterminated string literal"}
			}
			toks = append(toks, token{tokString, sb.String(), start})
		case c >= '0' && c <= '9' || c == '-' && i+1 < len(sql) && sql[i+1] >= '0' && sql[i+1] <= '9':
			start := i
			if c == '-' {
				i++
			}
			seenDot := false
			for i < len(sql) && (sql[i] >= '0' && sql[i] <= '9' || sql[i] == '.' && !seenDot) {
				if sql[i] == '.' {
					seenDot = true
				}
				i++
			}
			toks = append(toks, token{tokNumber, sql[start:i], start})
		case isIdentStart(rune(c)):
			start := i
			for i < len(sql) && isIdentPart(rune(sql[i])) {
				i++
			}
			toks = append(toks, token{tokIdent, sql[start:i], start})
		default:
			return nil, &models.SyntaxError{Position: i, Reason: "unexpected character " + string(c)}
		}
	}
	toks = append(toks, token{tokEOF, "", len(sql)})
	return toks, nil
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isIdentPart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.'
}
