package repl

import (
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/kartikbazzad/triq/internal/exec"
)

// PrintResult renders a result as a bordered table, one (eid, value, time)
// cell per column per row, up to limit rows.
func PrintResult(w io.Writer, res *exec.Result, limit int) {
	table := tablewriter.NewWriter(w)

	headers := make([]string, len(res.Columns))
	for i, col := range res.Columns {
		headers[i] = col.Name.String()
	}
	table.SetHeader(headers)

	rows := res.Rows
	if limit > 0 && rows > limit {
		rows = limit
	}

	for i := 0; i < rows; i++ {
		row := make([]string, len(res.Columns))
		for j, col := range res.Columns {
			if i < len(col.Triplets) {
				row[j] = col.Triplets[i].String()
			}
		}
		table.Append(row)
	}

	table.Render()
}
