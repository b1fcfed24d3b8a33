// Package query holds the validated query AST, the plan builder and the
// stage grouper. It consumes QueryLine values from a trusted parser and
// produces an executable, staged node graph.
package query

import (
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/kartikbazzad/triq/internal/data"
)

type Comparator byte

const (
	Equal Comparator = iota + 1
	Greater
	GreaterOrEqual
	Less
	LessOrEqual
)

func (c Comparator) String() string {
	switch c {
	case Equal:
		return "="
	case Greater:
		return ">"
	case GreaterOrEqual:
		return ">="
	case Less:
		return "<"
	case LessOrEqual:
		return "<="
	default:
		return "?"
	}
}

// Test applies the comparison with the query constant on the right.
// Values of different kinds never match.
func (c Comparator) Test(left, right data.Value) bool {
	if left.Kind != right.Kind {
		return false
	}
	switch c {
	case Equal:
		return left.Equal(right)
	case Greater:
		return right.Less(left)
	case GreaterOrEqual:
		return !left.Less(right)
	case Less:
		return left.Less(right)
	case LessOrEqual:
		return !right.Less(left)
	default:
		return false
	}
}

// Predicate is either a single constant comparison or an or-combination of
// several of them (produced by `or` on one where line). Or is non-empty for
// the combined form; Cmp/Val are meaningful otherwise.
type Predicate struct {
	Cmp Comparator
	Val data.Value

	Or []Predicate
}

func Constant(cmp Comparator, val data.Value) Predicate {
	return Predicate{Cmp: cmp, Val: val}
}

// OrPredicate combines constant predicates; a single element collapses to
// itself.
func OrPredicate(preds ...Predicate) Predicate {
	if len(preds) == 1 {
		return preds[0]
	}
	return Predicate{Or: preds}
}

// Test evaluates the predicate against one stored value.
func (p Predicate) Test(v data.Value) bool {
	if len(p.Or) > 0 {
		for _, q := range p.Or {
			if q.Test(v) {
				return true
			}
		}
		return false
	}
	return p.Cmp.Test(v, p.Val)
}

// Fingerprint returns a stable hash of the canonical serialization of the
// predicate, used with the column identity as the cache key for filtered
// entity sets.
func (p Predicate) Fingerprint() uint64 {
	var b strings.Builder
	p.canonical(&b)
	return xxhash.Sum64String(b.String())
}

func (p Predicate) canonical(b *strings.Builder) {
	if len(p.Or) > 0 {
		b.WriteString("or(")
		for i, q := range p.Or {
			if i > 0 {
				b.WriteByte(',')
			}
			q.canonical(b)
		}
		b.WriteByte(')')
		return
	}
	b.WriteString(p.Cmp.String())
	b.WriteString(p.Val.Kind.String())
	b.WriteByte(':')
	b.WriteString(p.Val.String())
}

func (p Predicate) String() string {
	var b strings.Builder
	if len(p.Or) > 0 {
		for i, q := range p.Or {
			if i > 0 {
				b.WriteString(" or ")
			}
			b.WriteString(q.String())
		}
		return b.String()
	}
	b.WriteString(p.Cmp.String())
	b.WriteString(p.Val.String())
	return b.String()
}

type LineKind byte

const (
	LineSelect LineKind = iota + 1
	LineJoin
	LineWhere
	LineLimit
)

func (k LineKind) String() string {
	switch k {
	case LineSelect:
		return "select"
	case LineJoin:
		return "join"
	case LineWhere:
		return "where"
	case LineLimit:
		return "limit"
	default:
		return "?"
	}
}

// QueryLine is one validated AST line. The populated fields depend on Kind.
type QueryLine struct {
	Kind LineKind

	Select []data.ColumnName // LineSelect
	Table  string            // LineJoin: target table
	On     data.ColumnName   // LineJoin: on column
	Column data.ColumnName   // LineWhere
	Pred   Predicate         // LineWhere
	Count  uint64            // LineLimit
}

func SelectLine(cols ...data.ColumnName) QueryLine {
	return QueryLine{Kind: LineSelect, Select: cols}
}

func JoinLine(table string, on data.ColumnName) QueryLine {
	return QueryLine{Kind: LineJoin, Table: table, On: on}
}

func WhereLine(col data.ColumnName, pred Predicate) QueryLine {
	return QueryLine{Kind: LineWhere, Column: col, Pred: pred}
}

func LimitLine(count uint64) QueryLine {
	return QueryLine{Kind: LineLimit, Count: count}
}
