package exec

import (
	"github.com/kartikbazzad/triq/internal/data"
)

// ResultColumn is one output column: the surviving triplets for one select
// target, in time-ascending order.
type ResultColumn struct {
	Name     data.ColumnName
	Triplets []data.Triplet
}

// Result is the ordered tabular outcome of a query. Row i of every column
// corresponds to the same position in the surviving row set; Rows is the
// effective row count after any limit.
type Result struct {
	Columns []ResultColumn
	Rows    int
}
