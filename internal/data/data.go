// Package data defines the storage data model: typed values, triplets and
// column identities shared by the catalog, cache and executor.
package data

import (
	"fmt"
	"strconv"
)

type ValueKind byte

const (
	KindBool ValueKind = iota + 1
	KindInt
	KindString
)

func (k ValueKind) String() string {
	switch k {
	case KindBool:
		return "Bool"
	case KindInt:
		return "Int"
	case KindString:
		return "String"
	default:
		return "?"
	}
}

// Value is a closed variant over the three storable types. Exactly one of
// the payload fields is meaningful, selected by Kind.
type Value struct {
	Kind ValueKind
	Bool bool
	Int  uint64
	Str  string
}

func BoolValue(b bool) Value     { return Value{Kind: KindBool, Bool: b} }
func IntValue(i uint64) Value    { return Value{Kind: KindInt, Int: i} }
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

func (v Value) String() string {
	switch v.Kind {
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindInt:
		return strconv.FormatUint(v.Int, 10)
	case KindString:
		return strconv.Quote(v.Str)
	default:
		return "<invalid>"
	}
}

// Equal reports whether two values have the same kind and payload.
func (v Value) Equal(o Value) bool {
	return v == o
}

// Less orders values of the same kind: false < true for bools, numeric for
// ints, lexicographic for strings. Values of different kinds are unordered
// and Less returns false.
func (v Value) Less(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindBool:
		return !v.Bool && o.Bool
	case KindInt:
		return v.Int < o.Int
	case KindString:
		return v.Str < o.Str
	default:
		return false
	}
}

// ColumnName identifies one column as (table, name). It is comparable and
// serves as the cache key root.
type ColumnName struct {
	Table string
	Name  string
}

func NewColumnName(table, name string) ColumnName {
	return ColumnName{Table: table, Name: name}
}

func (c ColumnName) String() string {
	return fmt.Sprintf("%s.%s", c.Table, c.Name)
}

// Triplet is the atomic storage unit of one column. Triplets within a
// column are kept ordered by Time ascending.
type Triplet struct {
	EID   uint64
	Value Value
	Time  uint64
}

func (t Triplet) String() string {
	return fmt.Sprintf("(%d, %s, %d)", t.EID, t.Value, t.Time)
}

// ColumnType declares the value kind a column stores.
type ColumnType byte

const (
	TypeBool ColumnType = iota + 1
	TypeInt
	TypeString
)

func (t ColumnType) Kind() ValueKind {
	switch t {
	case TypeBool:
		return KindBool
	case TypeInt:
		return KindInt
	case TypeString:
		return KindString
	default:
		return 0
	}
}

func (t ColumnType) String() string {
	return t.Kind().String()
}

// ParseColumnType maps a schema type name to a ColumnType.
func ParseColumnType(s string) (ColumnType, error) {
	switch s {
	case "Bool":
		return TypeBool, nil
	case "Int":
		return TypeInt, nil
	case "String":
		return TypeString, nil
	default:
		return 0, fmt.Errorf("invalid column type: %q", s)
	}
}
