package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kartikbazzad/triq/internal/data"
)

type NodeKind byte

const (
	NodeSelect NodeKind = iota + 1
	NodeJoin
	NodeWhere
	NodeLimit
)

func (k NodeKind) String() string {
	switch k {
	case NodeSelect:
		return "select"
	case NodeJoin:
		return "join"
	case NodeWhere:
		return "where"
	case NodeLimit:
		return "limit"
	default:
		return "?"
	}
}

// Node is one planning unit. Nodes are arena-indexed: ID is the node's
// position in Plan.Nodes and Deps holds predecessor IDs, so stage grouping
// is a pure function over indices.
type Node struct {
	ID   int
	Kind NodeKind
	Line int // original line position, used for deterministic ordering

	Column data.ColumnName // NodeSelect, NodeWhere
	Pred   Predicate       // NodeWhere
	Table  string          // NodeJoin: target table
	On     data.ColumnName // NodeJoin: on column
	Count  uint64          // NodeLimit

	Deps []int
}

func (n Node) String() string {
	switch n.Kind {
	case NodeSelect:
		return fmt.Sprintf("Select(%s)", n.Column)
	case NodeJoin:
		return fmt.Sprintf("Join(%s on %s)", n.Table, n.On)
	case NodeWhere:
		return fmt.Sprintf("Where(%s %s)", n.Column, n.Pred)
	case NodeLimit:
		return fmt.Sprintf("Limit(%d)", n.Count)
	default:
		return "?"
	}
}

// Plan is the staged node graph for one query. Stages hold node IDs; nodes
// sharing a stage have no dependency edge between them and may execute
// concurrently, and stages run strictly in index order.
type Plan struct {
	Nodes  []Node
	Stages [][]int
}

// Build converts validated query lines into a staged plan.
//
// Select nodes are roots sourcing directly from the catalog. A join depends
// on whichever node owns its on column (a select of the same column, or the
// join that introduced the column's table). A where depends on the join
// that introduced its table when there is one, otherwise on a select of the
// same column. A limit depends on every where node, or on all select and
// join nodes when the query has no wheres.
func Build(lines []QueryLine) (*Plan, error) {
	var nodes []Node

	colOwner := map[data.ColumnName]int{} // column -> select node fetching it
	tableJoin := map[string]int{}         // table -> join node that introduced it
	var selectIDs, joinIDs, whereIDs []int

	add := func(n Node) int {
		n.ID = len(nodes)
		nodes = append(nodes, n)
		return n.ID
	}

	for li, line := range lines {
		switch line.Kind {
		case LineSelect:
			for _, col := range line.Select {
				if _, ok := colOwner[col]; ok {
					continue // one node per distinct column
				}
				id := add(Node{Kind: NodeSelect, Line: li, Column: col})
				colOwner[col] = id
				selectIDs = append(selectIDs, id)
			}
		case LineJoin:
			var deps []int
			if owner, ok := colOwner[line.On]; ok {
				deps = append(deps, owner)
			}
			if prev, ok := tableJoin[line.On.Table]; ok {
				deps = append(deps, prev)
			}
			id := add(Node{Kind: NodeJoin, Line: li, Table: line.Table, On: line.On, Deps: deps})
			tableJoin[line.Table] = id
			joinIDs = append(joinIDs, id)
		case LineWhere:
			var deps []int
			if jn, ok := tableJoin[line.Column.Table]; ok {
				deps = append(deps, jn)
			} else if owner, ok := colOwner[line.Column]; ok {
				deps = append(deps, owner)
			}
			id := add(Node{Kind: NodeWhere, Line: li, Column: line.Column, Pred: line.Pred, Deps: deps})
			whereIDs = append(whereIDs, id)
		case LineLimit:
			deps := whereIDs
			if len(deps) == 0 {
				deps = append(append([]int{}, selectIDs...), joinIDs...)
			}
			add(Node{Kind: NodeLimit, Line: li, Count: line.Count, Deps: deps})
		}
	}

	stages, err := groupStages(nodes)
	if err != nil {
		return nil, err
	}

	return &Plan{Nodes: nodes, Stages: stages}, nil
}

// groupStages performs topological leveling: a node's stage is one past the
// maximum stage of its predecessors, roots sit at stage zero. Construction
// only produces backward edges; a forward edge means the acyclicity
// invariant was bypassed and is rejected.
func groupStages(nodes []Node) ([][]int, error) {
	levels := make([]int, len(nodes))

	for i, n := range nodes {
		lvl := 0
		for _, dep := range n.Deps {
			if dep < 0 || dep >= i {
				return nil, dependencyCycle(i)
			}
			if levels[dep]+1 > lvl {
				lvl = levels[dep] + 1
			}
		}
		levels[i] = lvl
	}

	max := -1
	for _, lvl := range levels {
		if lvl > max {
			max = lvl
		}
	}

	stages := make([][]int, max+1)
	for i := range nodes {
		stages[levels[i]] = append(stages[levels[i]], i)
	}

	// Deterministic in-stage order: original line position, then node id.
	for _, stage := range stages {
		sort.Slice(stage, func(a, b int) bool {
			na, nb := nodes[stage[a]], nodes[stage[b]]
			if na.Line != nb.Line {
				return na.Line < nb.Line
			}
			return na.ID < nb.ID
		})
	}

	return stages, nil
}

// SelectColumns returns the select targets in declaration order.
func (p *Plan) SelectColumns() []data.ColumnName {
	var cols []data.ColumnName
	for _, n := range p.Nodes {
		if n.Kind == NodeSelect {
			cols = append(cols, n.Column)
		}
	}
	return cols
}

// Limit returns the declared row ceiling, if any.
func (p *Plan) Limit() (uint64, bool) {
	for _, n := range p.Nodes {
		if n.Kind == NodeLimit {
			return n.Count, true
		}
	}
	return 0, false
}

func (p *Plan) String() string {
	var b strings.Builder
	for i, stage := range p.Stages {
		if i > 0 {
			b.WriteString(" -> ")
		}
		b.WriteString("[ ")
		for j, id := range stage {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(p.Nodes[id].String())
		}
		b.WriteString(" ]")
	}
	return b.String()
}
