package exec

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kartikbazzad/triq/internal/cache"
	"github.com/kartikbazzad/triq/internal/catalog"
	"github.com/kartikbazzad/triq/internal/data"
	"github.com/kartikbazzad/triq/internal/logging"
	"github.com/kartikbazzad/triq/internal/parser"
	"github.com/kartikbazzad/triq/internal/query"
)

// newFixture builds a two-table catalog: bar rows reference foo rows
// through the bar.foo column.
//
//	bar.a   (4,11) (5,22) (6,33)
//	bar.b   (4,true) (5,true) (6,false)
//	bar.foo (4,1) (5,2) (6,3)
//	foo.a   (1,0) (2,1) (3,5)
//	foo.c   (1,"first") (2,"first") (3,"third")
func newFixture(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat := catalog.New(logging.NewNop())

	cols := []struct {
		name data.ColumnName
		typ  data.ColumnType
	}{
		{data.NewColumnName("bar", "a"), data.TypeInt},
		{data.NewColumnName("bar", "b"), data.TypeBool},
		{data.NewColumnName("bar", "foo"), data.TypeInt},
		{data.NewColumnName("foo", "a"), data.TypeInt},
		{data.NewColumnName("foo", "c"), data.TypeString},
	}
	for _, c := range cols {
		require.NoError(t, cat.AddColumn(c.name, c.typ))
	}

	rows := []struct {
		col data.ColumnName
		t   data.Triplet
	}{
		{cols[0].name, data.Triplet{EID: 4, Value: data.IntValue(11), Time: 11}},
		{cols[0].name, data.Triplet{EID: 5, Value: data.IntValue(22), Time: 22}},
		{cols[0].name, data.Triplet{EID: 6, Value: data.IntValue(33), Time: 33}},
		{cols[1].name, data.Triplet{EID: 4, Value: data.BoolValue(true), Time: 11}},
		{cols[1].name, data.Triplet{EID: 5, Value: data.BoolValue(true), Time: 22}},
		{cols[1].name, data.Triplet{EID: 6, Value: data.BoolValue(false), Time: 33}},
		{cols[2].name, data.Triplet{EID: 4, Value: data.IntValue(1), Time: 11}},
		{cols[2].name, data.Triplet{EID: 5, Value: data.IntValue(2), Time: 22}},
		{cols[2].name, data.Triplet{EID: 6, Value: data.IntValue(3), Time: 33}},
		{cols[3].name, data.Triplet{EID: 1, Value: data.IntValue(0), Time: 1}},
		{cols[3].name, data.Triplet{EID: 2, Value: data.IntValue(1), Time: 2}},
		{cols[3].name, data.Triplet{EID: 3, Value: data.IntValue(5), Time: 3}},
		{cols[4].name, data.Triplet{EID: 1, Value: data.StringValue("first"), Time: 1}},
		{cols[4].name, data.Triplet{EID: 2, Value: data.StringValue("first"), Time: 2}},
		{cols[4].name, data.Triplet{EID: 3, Value: data.StringValue("third"), Time: 3}},
	}
	for _, r := range rows {
		require.NoError(t, cat.Append(r.col, r.t))
	}
	return cat
}

func newExecutor(t *testing.T, cat *catalog.Catalog) *Executor {
	t.Helper()
	cc, err := cache.New(cat, cache.Config{}, logging.NewNop())
	require.NoError(t, err)
	ex, err := New(cat, cc, Config{Workers: 4}, logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(ex.Close)
	return ex
}

func compile(t *testing.T, cat *catalog.Catalog, text string) *query.Plan {
	t.Helper()
	lines, err := parser.Parse(text)
	require.NoError(t, err)
	require.NoError(t, query.Validate(lines, cat))
	plan, err := query.Build(lines)
	require.NoError(t, err)
	return plan
}

func eids(col ResultColumn) []uint64 {
	out := make([]uint64, 0, len(col.Triplets))
	for _, tr := range col.Triplets {
		out = append(out, tr.EID)
	}
	return out
}

func TestExecuteSelectWithSatisfiedWhere(t *testing.T) {
	cat := newFixture(t)
	ex := newExecutor(t, cat)

	plan := compile(t, cat, "s bar.a,bar.b\nw bar.a>4")
	res, err := ex.Execute(context.Background(), plan)
	require.NoError(t, err)

	require.Len(t, res.Columns, 2)
	assert.Equal(t, data.NewColumnName("bar", "a"), res.Columns[0].Name)
	assert.Equal(t, data.NewColumnName("bar", "b"), res.Columns[1].Name)

	// Every bar.a value clears the predicate, so all three rows survive,
	// in time order.
	assert.Equal(t, []uint64{4, 5, 6}, eids(res.Columns[0]))
	assert.Equal(t, []uint64{4, 5, 6}, eids(res.Columns[1]))
	assert.Equal(t, 3, res.Rows)
}

func TestExecuteWhereFilters(t *testing.T) {
	cat := newFixture(t)
	ex := newExecutor(t, cat)

	plan := compile(t, cat, "s bar.a\nw bar.a>=22")
	res, err := ex.Execute(context.Background(), plan)
	require.NoError(t, err)

	require.Len(t, res.Columns, 1)
	assert.Equal(t, []uint64{5, 6}, eids(res.Columns[0]))
	assert.Equal(t, data.IntValue(22), res.Columns[0].Triplets[0].Value)
}

func TestExecuteJoinPropagatesFilters(t *testing.T) {
	cat := newFixture(t)
	ex := newExecutor(t, cat)

	plan := compile(t, cat, "s bar.b\nj foo on bar.foo\nw foo.a<2\nw foo.c=\"first\"")
	res, err := ex.Execute(context.Background(), plan)
	require.NoError(t, err)

	// foo entities 1 and 2 survive both where lines; bar rows 4 and 5
	// point at them via bar.foo.
	require.Len(t, res.Columns, 1)
	col := res.Columns[0]
	assert.Equal(t, data.NewColumnName("bar", "b"), col.Name)
	require.Equal(t, []uint64{4, 5}, eids(col))
	assert.Equal(t, data.BoolValue(true), col.Triplets[0].Value)
	assert.Equal(t, uint64(11), col.Triplets[0].Time)
	assert.Equal(t, data.BoolValue(true), col.Triplets[1].Value)
	assert.Equal(t, uint64(22), col.Triplets[1].Time)
	assert.Equal(t, 2, res.Rows)
}

func TestExecuteJoinKeepsEntityWithAnyMatchingTriplet(t *testing.T) {
	cat := newFixture(t)
	// bar entity 4's foo reference changes over time: first foo 1, later
	// foo 3. foo 3 is filtered out below, foo 1 survives, so the later
	// triplet must not shadow the earlier one.
	require.NoError(t, cat.Append(data.NewColumnName("bar", "foo"), data.Triplet{EID: 4, Value: data.IntValue(3), Time: 12}))
	ex := newExecutor(t, cat)

	plan := compile(t, cat, "s bar.b\nj foo on bar.foo\nw foo.a<2")
	res, err := ex.Execute(context.Background(), plan)
	require.NoError(t, err)

	require.Len(t, res.Columns, 1)
	assert.Equal(t, []uint64{4, 5}, eids(res.Columns[0]))
}

func TestExecuteJoinDropsUnresolvedForeignIDs(t *testing.T) {
	cat := newFixture(t)
	// bar entity 7 references a foo entity that does not exist.
	require.NoError(t, cat.Append(data.NewColumnName("bar", "b"), data.Triplet{EID: 7, Value: data.BoolValue(true), Time: 44}))
	require.NoError(t, cat.Append(data.NewColumnName("bar", "foo"), data.Triplet{EID: 7, Value: data.IntValue(99), Time: 44}))
	ex := newExecutor(t, cat)

	plan := compile(t, cat, "s bar.b\nj foo on bar.foo")
	res, err := ex.Execute(context.Background(), plan)
	require.NoError(t, err)

	require.Len(t, res.Columns, 1)
	assert.Equal(t, []uint64{4, 5, 6}, eids(res.Columns[0]))
}

func TestExecuteWhereOrderIrrelevant(t *testing.T) {
	cat := newFixture(t)
	ex := newExecutor(t, cat)

	forward := compile(t, cat, "s bar.b\nj foo on bar.foo\nw foo.a<2\nw foo.c=\"first\"")
	reversed := compile(t, cat, "s bar.b\nj foo on bar.foo\nw foo.c=\"first\"\nw foo.a<2")

	a, err := ex.Execute(context.Background(), forward)
	require.NoError(t, err)
	b, err := ex.Execute(context.Background(), reversed)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestExecuteWhereIdempotent(t *testing.T) {
	cat := newFixture(t)
	ex := newExecutor(t, cat)

	once := compile(t, cat, "s bar.a\nw bar.a>=22")
	twice := compile(t, cat, "s bar.a\nw bar.a>=22\nw bar.a>=22")

	a, err := ex.Execute(context.Background(), once)
	require.NoError(t, err)
	b, err := ex.Execute(context.Background(), twice)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestExecuteOrPredicate(t *testing.T) {
	cat := newFixture(t)
	ex := newExecutor(t, cat)

	plan := compile(t, cat, "s bar.a\nw bar.a=11 or bar.a=33")
	res, err := ex.Execute(context.Background(), plan)
	require.NoError(t, err)

	require.Len(t, res.Columns, 1)
	assert.Equal(t, []uint64{4, 6}, eids(res.Columns[0]))
}

func TestExecuteLimitTruncates(t *testing.T) {
	cat := newFixture(t)
	ex := newExecutor(t, cat)

	full, err := ex.Execute(context.Background(), compile(t, cat, "s bar.a"))
	require.NoError(t, err)
	limited, err := ex.Execute(context.Background(), compile(t, cat, "s bar.a\nl 2"))
	require.NoError(t, err)

	require.Len(t, limited.Columns, 1)
	assert.Equal(t, 2, limited.Rows)
	// The limited result is a prefix of the unlimited one.
	assert.Equal(t, full.Columns[0].Triplets[:2], limited.Columns[0].Triplets)
}

func TestExecuteLimitAfterWhere(t *testing.T) {
	cat := newFixture(t)
	ex := newExecutor(t, cat)

	plan := compile(t, cat, "s bar.a\nw bar.a>=22\nl 1")
	res, err := ex.Execute(context.Background(), plan)
	require.NoError(t, err)

	// Filter first, then truncate: the first surviving row, not the
	// first raw row.
	require.Len(t, res.Columns, 1)
	assert.Equal(t, []uint64{5}, eids(res.Columns[0]))
}

func TestExecuteLimitLargerThanResult(t *testing.T) {
	cat := newFixture(t)
	ex := newExecutor(t, cat)

	res, err := ex.Execute(context.Background(), compile(t, cat, "s bar.a\nl 100"))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Rows)
}

func TestExecuteWithUnboundedWorkers(t *testing.T) {
	cat := newFixture(t)
	cc, err := cache.New(cat, cache.Config{}, logging.NewNop())
	require.NoError(t, err)

	// Workers <= 0 selects an unbounded pool.
	ex, err := New(cat, cc, Config{}, logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(ex.Close)

	res, err := ex.Execute(context.Background(), compile(t, cat, "s bar.a"))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Rows)
}

func TestExecuteFailureCarriesStage(t *testing.T) {
	cat := newFixture(t)
	ex := newExecutor(t, cat)

	// Bypass validation to point a node at a missing column.
	plan := &query.Plan{
		Nodes: []query.Node{{
			ID:     0,
			Kind:   query.NodeSelect,
			Column: data.NewColumnName("bar", "missing"),
		}},
		Stages: [][]int{{0}},
	}

	_, err := ex.Execute(context.Background(), plan)
	require.Error(t, err)

	var exErr *ExecutionError
	require.True(t, errors.As(err, &exErr))
	assert.Equal(t, 0, exErr.Stage)
	assert.ErrorIs(t, err, cache.ErrCompute)
}

func TestExecuteCancelledContext(t *testing.T) {
	cat := newFixture(t)
	ex := newExecutor(t, cat)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ex.Execute(ctx, compile(t, cat, "s bar.a"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
