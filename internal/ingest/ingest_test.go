package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kartikbazzad/triq/internal/catalog"
	"github.com/kartikbazzad/triq/internal/data"
	"github.com/kartikbazzad/triq/internal/logging"
)

const barSchema = `
table = "bar"
time_column = "t"
csv_ordering = ["a", "b", "t"]

[columns]
a = "Int"
b = "Bool"
t = "Int"
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSchema(t *testing.T) {
	s, err := LoadSchema(writeFile(t, "bar.toml", barSchema))
	require.NoError(t, err)

	assert.Equal(t, "bar", s.Table)
	assert.Equal(t, "t", s.TimeColumn)
	assert.Equal(t, []string{"a", "b", "t"}, s.CSVOrdering)
	assert.Equal(t, map[string]string{"a": "Int", "b": "Bool", "t": "Int"}, s.Columns)
}

func TestLoadSchemaRejectsMissingTimeColumn(t *testing.T) {
	bad := `
table = "bar"
time_column = "missing"
csv_ordering = ["a"]

[columns]
a = "Int"
`
	_, err := LoadSchema(writeFile(t, "bad.toml", bad))
	assert.Error(t, err)
}

func TestLoadSchemaRejectsEmptyOrdering(t *testing.T) {
	bad := `
table = "bar"
time_column = "t"

[columns]
t = "Int"
`
	_, err := LoadSchema(writeFile(t, "bad.toml", bad))
	assert.Error(t, err)
}

func TestFromCSV(t *testing.T) {
	schema, err := LoadSchema(writeFile(t, "bar.toml", barSchema))
	require.NoError(t, err)

	// Rows arrive out of time order on purpose.
	csvPath := writeFile(t, "bar.csv", "22,true,22\n11,true,11\n33,false,33\n")

	cat := catalog.New(logging.NewNop())
	count, err := FromCSV(cat, schema, csvPath, logging.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 9, count)

	// One entity per row, ids allocated in reading order.
	assert.True(t, cat.Entities("bar").Equal(data.NewEIDSet(0, 1, 2)))

	// Columns come back time-ascending regardless of input order.
	triplets, err := cat.Fetch(data.NewColumnName("bar", "a"))
	require.NoError(t, err)
	require.Len(t, triplets, 3)
	assert.Equal(t, data.Triplet{EID: 1, Value: data.IntValue(11), Time: 11}, triplets[0])
	assert.Equal(t, data.Triplet{EID: 0, Value: data.IntValue(22), Time: 22}, triplets[1])
	assert.Equal(t, data.Triplet{EID: 2, Value: data.IntValue(33), Time: 33}, triplets[2])

	bools, err := cat.Fetch(data.NewColumnName("bar", "b"))
	require.NoError(t, err)
	assert.Equal(t, data.BoolValue(true), bools[0].Value)
	assert.Equal(t, data.BoolValue(false), bools[2].Value)
}

func TestFromCSVRejectsRaggedRows(t *testing.T) {
	schema, err := LoadSchema(writeFile(t, "bar.toml", barSchema))
	require.NoError(t, err)

	csvPath := writeFile(t, "bar.csv", "11,true\n")

	cat := catalog.New(logging.NewNop())
	_, err = FromCSV(cat, schema, csvPath, logging.NewNop())
	assert.Error(t, err)
}

func TestFromCSVRejectsBadCell(t *testing.T) {
	schema, err := LoadSchema(writeFile(t, "bar.toml", barSchema))
	require.NoError(t, err)

	csvPath := writeFile(t, "bar.csv", "eleven,true,11\n")

	cat := catalog.New(logging.NewNop())
	_, err = FromCSV(cat, schema, csvPath, logging.NewNop())
	assert.Error(t, err)
}

func TestParseCell(t *testing.T) {
	tests := []struct {
		cell string
		typ  data.ColumnType
		want data.Value
		ok   bool
	}{
		{"42", data.TypeInt, data.IntValue(42), true},
		{"x", data.TypeInt, data.Value{}, false},
		{"true", data.TypeBool, data.BoolValue(true), true},
		{"1", data.TypeBool, data.BoolValue(true), true},
		{"0", data.TypeBool, data.BoolValue(false), true},
		{"yes", data.TypeBool, data.Value{}, false},
		{"anything", data.TypeString, data.StringValue("anything"), true},
	}

	for _, tt := range tests {
		got, err := parseCell(tt.cell, tt.typ)
		if tt.ok {
			require.NoError(t, err, tt.cell)
			assert.Equal(t, tt.want, got)
		} else {
			assert.Error(t, err, tt.cell)
		}
	}
}
