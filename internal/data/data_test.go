package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueLess(t *testing.T) {
	cases := []struct {
		name  string
		left  Value
		right Value
		want  bool
	}{
		{"int less", IntValue(1), IntValue(2), true},
		{"int equal", IntValue(2), IntValue(2), false},
		{"int greater", IntValue(3), IntValue(2), false},
		{"bool false true", BoolValue(false), BoolValue(true), true},
		{"bool true false", BoolValue(true), BoolValue(false), false},
		{"string lexicographic", StringValue("a"), StringValue("b"), true},
		{"kind mismatch unordered", IntValue(1), StringValue("2"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.left.Less(tc.right))
		})
	}
}

func TestValueEqualAcrossKinds(t *testing.T) {
	assert.True(t, IntValue(1).Equal(IntValue(1)))
	assert.False(t, IntValue(1).Equal(StringValue("1")))
	assert.False(t, BoolValue(true).Equal(IntValue(1)))
}

func TestColumnNameString(t *testing.T) {
	assert.Equal(t, "bar.a", NewColumnName("bar", "a").String())
}

func TestParseColumnType(t *testing.T) {
	for name, want := range map[string]ColumnType{
		"Bool":   TypeBool,
		"Int":    TypeInt,
		"String": TypeString,
	} {
		got, err := ParseColumnType(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseColumnType("Float")
	assert.Error(t, err)
}

func TestEIDSetIntersect(t *testing.T) {
	a := NewEIDSet(1, 2, 3)
	b := NewEIDSet(2, 3, 4)

	got := a.Intersect(b)
	assert.True(t, got.Equal(NewEIDSet(2, 3)))

	// Inputs are untouched.
	assert.True(t, a.Equal(NewEIDSet(1, 2, 3)))
	assert.True(t, b.Equal(NewEIDSet(2, 3, 4)))

	// Commutative.
	assert.True(t, b.Intersect(a).Equal(got))
}

func TestEIDSetClone(t *testing.T) {
	a := NewEIDSet(1, 2)
	c := a.Clone()
	c.Add(3)

	assert.Equal(t, 2, a.Len())
	assert.Equal(t, 3, c.Len())
	assert.True(t, c.Contains(3))
	assert.False(t, a.Contains(3))
}
