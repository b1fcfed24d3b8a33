package query

import (
	"github.com/kartikbazzad/triq/internal/data"
)

// Resolver is the read-only catalog view validation needs.
type Resolver interface {
	HasColumn(name data.ColumnName) bool
	HasTable(table string) bool
}

// Validate checks clause ordering and referential validity of a query.
//
// The accepted shape is: at most one Select line, then zero or more Join
// lines, then zero or more Where lines, then at most one terminal Limit
// line. Every referenced column must resolve against the catalog (joined
// tables have their columns there too), and a table may be joined at most
// once.
func Validate(lines []QueryLine, res Resolver) error {
	rank := func(k LineKind) int {
		switch k {
		case LineSelect:
			return 0
		case LineJoin:
			return 1
		case LineWhere:
			return 2
		default:
			return 3
		}
	}

	last := -1
	seenSelect := false
	seenLimit := false
	joined := map[string]bool{}

	for i, line := range lines {
		r := rank(line.Kind)
		if r < last || seenLimit {
			return &ValidationError{Code: OutOfOrderClause, Line: i, Subject: line.Kind.String()}
		}
		last = r

		switch line.Kind {
		case LineSelect:
			// A query has exactly one effective select set; a repeated
			// Select line is a redundant declaration and is rejected.
			if seenSelect {
				return &ValidationError{Code: OutOfOrderClause, Line: i, Subject: "select"}
			}
			seenSelect = true
			for _, col := range line.Select {
				if !res.HasColumn(col) {
					return &ValidationError{Code: UnknownColumn, Line: i, Subject: col.String()}
				}
			}
		case LineJoin:
			if joined[line.Table] {
				return &ValidationError{Code: DuplicateJoin, Line: i, Subject: line.Table}
			}
			if !res.HasTable(line.Table) {
				return &ValidationError{Code: UnknownColumn, Line: i, Subject: line.Table}
			}
			if !res.HasColumn(line.On) {
				return &ValidationError{Code: UnknownColumn, Line: i, Subject: line.On.String()}
			}
			joined[line.Table] = true
		case LineWhere:
			if !res.HasColumn(line.Column) {
				return &ValidationError{Code: UnknownColumn, Line: i, Subject: line.Column.String()}
			}
		case LineLimit:
			seenLimit = true
		}
	}

	return nil
}
