// Package parser turns the textual query language into AST lines. It is
// the trusted producer boundary: the query package validates structure and
// references, the parser only deals with syntax.
//
// The language is line oriented:
//
//	s bar.a,bar.b          select
//	j foo on bar.foo       join (bar.foo values are foo entity ids)
//	w bar.a>4              where; = > < >= <= against int, bool or "string"
//	w foo.a<2 or foo.a>8   or-combination on one column
//	l 10                   limit, at most once, last
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kartikbazzad/triq/internal/data"
	"github.com/kartikbazzad/triq/internal/query"
)

// ParseError reports the first syntactically invalid line.
type ParseError struct {
	Line int
	Text string
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Msg, e.Text)
}

// Parse converts a full query text into AST lines. Blank lines are skipped;
// line numbers in errors are one-based positions in the input text.
func Parse(text string) ([]query.QueryLine, error) {
	var lines []query.QueryLine

	for i, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		fail := func(msg string) error {
			return &ParseError{Line: i + 1, Text: line, Msg: msg}
		}

		verb, rest, _ := strings.Cut(line, " ")
		rest = strings.TrimSpace(rest)

		switch verb {
		case "s":
			cols, err := parseColumnList(rest)
			if err != nil {
				return nil, fail(err.Error())
			}
			lines = append(lines, query.SelectLine(cols...))
		case "j":
			table, onExpr, ok := strings.Cut(rest, " on ")
			if !ok {
				return nil, fail("expected `j TABLE on table.column`")
			}
			table = strings.TrimSpace(table)
			on, err := parseColumn(strings.TrimSpace(onExpr))
			if err != nil || table == "" {
				return nil, fail("expected `j TABLE on table.column`")
			}
			lines = append(lines, query.JoinLine(table, on))
		case "w":
			col, pred, err := parseWhere(rest)
			if err != nil {
				return nil, fail(err.Error())
			}
			lines = append(lines, query.WhereLine(col, pred))
		case "l":
			count, err := strconv.ParseUint(rest, 10, 64)
			if err != nil {
				return nil, fail("limit expects a non-negative integer")
			}
			lines = append(lines, query.LimitLine(count))
		default:
			return nil, fail("unknown clause (want s, j, w or l)")
		}
	}

	return lines, nil
}

func parseColumnList(s string) ([]data.ColumnName, error) {
	if s == "" {
		return nil, fmt.Errorf("select expects at least one column")
	}
	var cols []data.ColumnName
	for _, part := range strings.Split(s, ",") {
		col, err := parseColumn(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	return cols, nil
}

func parseColumn(s string) (data.ColumnName, error) {
	table, name, ok := strings.Cut(s, ".")
	if !ok || table == "" || name == "" {
		return data.ColumnName{}, fmt.Errorf("expected table.column, got %q", s)
	}
	return data.NewColumnName(table, name), nil
}

// parseWhere parses one or more `column op value` comparisons joined by
// ` or `. Every comparison must reference the same column.
func parseWhere(s string) (data.ColumnName, query.Predicate, error) {
	parts := splitOr(s)

	var col data.ColumnName
	var preds []query.Predicate

	for _, part := range parts {
		c, p, err := parseComparison(strings.TrimSpace(part))
		if err != nil {
			return data.ColumnName{}, query.Predicate{}, err
		}
		if len(preds) == 0 {
			col = c
		} else if c != col {
			return data.ColumnName{}, query.Predicate{}, fmt.Errorf("or-predicates must reference one column, got %s and %s", col, c)
		}
		preds = append(preds, p)
	}

	return col, query.OrPredicate(preds...), nil
}

// splitOr splits on ` or ` separators outside double-quoted string
// literals, so `w t.c="a or b"` stays one comparison.
func splitOr(s string) []string {
	var parts []string
	start := 0
	inQuote := false

	for i := 0; i < len(s); i++ {
		switch {
		case inQuote:
			if s[i] == '\\' {
				i++
			} else if s[i] == '"' {
				inQuote = false
			}
		case s[i] == '"':
			inQuote = true
		case strings.HasPrefix(s[i:], " or "):
			parts = append(parts, s[start:i])
			start = i + len(" or ")
			i = start - 1
		}
	}

	return append(parts, s[start:])
}

func parseComparison(s string) (data.ColumnName, query.Predicate, error) {
	// Two-character operators first so `>=` is not read as `>` `=`.
	ops := []struct {
		token string
		cmp   query.Comparator
	}{
		{">=", query.GreaterOrEqual},
		{"<=", query.LessOrEqual},
		{"=", query.Equal},
		{">", query.Greater},
		{"<", query.Less},
	}

	for _, op := range ops {
		idx := strings.Index(s, op.token)
		if idx < 0 {
			continue
		}
		col, err := parseColumn(strings.TrimSpace(s[:idx]))
		if err != nil {
			return data.ColumnName{}, query.Predicate{}, err
		}
		val, err := parseValue(strings.TrimSpace(s[idx+len(op.token):]))
		if err != nil {
			return data.ColumnName{}, query.Predicate{}, err
		}
		return col, query.Constant(op.cmp, val), nil
	}

	return data.ColumnName{}, query.Predicate{}, fmt.Errorf("expected comparison, got %q", s)
}

func parseValue(s string) (data.Value, error) {
	switch {
	case s == "":
		return data.Value{}, fmt.Errorf("missing value")
	case s == "true":
		return data.BoolValue(true), nil
	case s == "false":
		return data.BoolValue(false), nil
	case s[0] == '"':
		unq, err := strconv.Unquote(s)
		if err != nil {
			return data.Value{}, fmt.Errorf("bad string literal %s", s)
		}
		return data.StringValue(unq), nil
	default:
		i, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return data.Value{}, fmt.Errorf("bad value %q", s)
		}
		return data.IntValue(i), nil
	}
}
