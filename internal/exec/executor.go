// Package exec runs staged query plans against the column cache and
// catalog, fanning nodes of one stage out to a bounded worker pool and
// assembling the ordered result table.
package exec

import (
	"context"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"

	"github.com/kartikbazzad/triq/internal/cache"
	"github.com/kartikbazzad/triq/internal/catalog"
	"github.com/kartikbazzad/triq/internal/data"
	"github.com/kartikbazzad/triq/internal/query"
)

// Config controls the worker pool backing stage execution.
type Config struct {
	Workers      int           // pool size; <= 0 means an unbounded pool
	WorkerExpiry time.Duration // idle goroutine expiry
	PreAlloc     bool          // pre-allocate the pool's ring buffer
}

// Executor executes plans. It is safe for concurrent use; concurrent
// queries share the worker pool and the column cache.
type Executor struct {
	catalog *catalog.Catalog
	cache   *cache.ColumnCache
	pool    *ants.Pool
	logger  log.Logger
}

func New(cat *catalog.Catalog, cc *cache.ColumnCache, cfg Config, logger log.Logger) (*Executor, error) {
	size := cfg.Workers
	if size <= 0 {
		size = -1 // ants: unlimited
	}

	opts := []ants.Option{ants.WithPreAlloc(cfg.PreAlloc && size > 0)}
	if cfg.WorkerExpiry > 0 {
		opts = append(opts, ants.WithExpiryDuration(cfg.WorkerExpiry))
	}

	pool, err := ants.NewPool(size, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create worker pool")
	}

	return &Executor{
		catalog: cat,
		cache:   cc,
		pool:    pool,
		logger:  logger,
	}, nil
}

// Close releases the worker pool.
func (e *Executor) Close() {
	e.pool.Release()
}

// run is the per-query mutable state. The allowed map and join edges are
// the only state written concurrently, guarded by mu; the stage barrier
// orders everything else.
type run struct {
	mu       sync.Mutex
	selected map[data.ColumnName][]data.Triplet
	allowed  map[string]data.EIDSet // per-table surviving entities; absent = all
	joins    []joinEdge
	limit    uint64
	hasLimit bool
}

// joinEdge records a value-as-foreign-key join: mapping holds, per source
// entity, every entity it resolves to in the target table (one per triplet
// of the on column). Foreign ids that resolve to nothing are absent
// (inner-join semantics).
type joinEdge struct {
	node    int
	source  string
	target  string
	mapping map[uint64][]uint64
}

// restrict intersects a table's surviving set with s.
func (r *run) restrict(table string, s data.EIDSet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.allowed[table]; ok {
		r.allowed[table] = cur.Intersect(s)
	} else {
		r.allowed[table] = s
	}
}

// Execute runs the plan stage by stage. Nodes within a stage are dispatched
// to the worker pool and the stage acts as a barrier: a later stage never
// starts before every node of the earlier one finished. A node failure lets
// its siblings finish, discards the stage's results and aborts the query
// with the first observed error and the stage index.
func (e *Executor) Execute(ctx context.Context, plan *query.Plan) (*Result, error) {
	start := time.Now()
	defer func() { queryDuration.Observe(time.Since(start).Seconds()) }()

	st := &run{
		selected: make(map[data.ColumnName][]data.Triplet),
		allowed:  make(map[string]data.EIDSet),
	}

	for k, stage := range plan.Stages {
		if err := ctx.Err(); err != nil {
			return nil, &ExecutionError{Stage: k, Err: err}
		}
		if err := e.runStage(plan, stage, st); err != nil {
			level.Warn(e.logger).Log("msg", "stage failed", "stage", k, "err", err)
			return nil, &ExecutionError{Stage: k, Err: err}
		}
	}

	res := e.assemble(plan, st)
	level.Debug(e.logger).Log("msg", "query executed", "stages", len(plan.Stages), "rows", res.Rows, "took", time.Since(start))
	return res, nil
}

func (e *Executor) runStage(plan *query.Plan, stage []int, st *run) error {
	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)

	setErr := func(err error) {
		errMu.Lock()
		defer errMu.Unlock()
		if firstErr == nil {
			firstErr = err
		}
	}

	for _, id := range stage {
		node := plan.Nodes[id]
		wg.Add(1)

		task := func() {
			defer wg.Done()
			defer func() {
				if v := recover(); v != nil {
					setErr(errors.Wrapf(ErrWorkerPanicked, "node %s: %v", node, v))
				}
			}()

			nodeStart := time.Now()
			err := e.runNode(node, st)
			nodeDuration.WithLabelValues(node.Kind.String()).Observe(time.Since(nodeStart).Seconds())
			if err != nil {
				setErr(errors.Wrapf(err, "node %s", node))
			}
		}

		if err := e.pool.Submit(task); err != nil {
			wg.Done()
			setErr(errors.Wrap(err, "submit node"))
		}
	}

	wg.Wait()

	errMu.Lock()
	defer errMu.Unlock()
	return firstErr
}

func (e *Executor) runNode(node query.Node, st *run) error {
	switch node.Kind {
	case query.NodeSelect:
		triplets, err := e.cache.Column(node.Column)
		if err != nil {
			return err
		}
		st.mu.Lock()
		st.selected[node.Column] = triplets
		st.mu.Unlock()
		return nil

	case query.NodeJoin:
		triplets, err := e.cache.Column(node.On)
		if err != nil {
			return err
		}
		mapping := make(map[uint64][]uint64, len(triplets))
		resolved := data.NewEIDSet()
		for _, t := range triplets {
			// The stored value is itself an entity id in the target table.
			if t.Value.Kind != data.KindInt {
				continue
			}
			if !e.catalog.HasEntity(node.Table, t.Value.Int) {
				continue // no row for unresolved foreign ids
			}
			mapping[t.EID] = append(mapping[t.EID], t.Value.Int)
			resolved.Add(t.EID)
		}
		st.mu.Lock()
		st.joins = append(st.joins, joinEdge{
			node:    node.ID,
			source:  node.On.Table,
			target:  node.Table,
			mapping: mapping,
		})
		st.mu.Unlock()
		st.restrict(node.On.Table, resolved)
		return nil

	case query.NodeWhere:
		pred := node.Pred
		set, err := e.cache.Filtered(node.Column, pred.Fingerprint(), func(triplets []data.Triplet) data.EIDSet {
			out := data.NewEIDSet()
			for _, t := range triplets {
				if pred.Test(t.Value) {
					out.Add(t.EID)
				}
			}
			return out
		})
		if err != nil {
			return err
		}
		st.restrict(node.Column.Table, set)
		return nil

	case query.NodeLimit:
		st.mu.Lock()
		st.limit = node.Count
		st.hasLimit = true
		st.mu.Unlock()
		return nil

	default:
		return errors.Errorf("unknown node kind %d", node.Kind)
	}
}

// assemble builds the ordered result table. Join filters are propagated
// back from target to source tables (an entity survives only if its foreign
// entity does), then every select column is reduced to its table's
// survivors in time order and truncated to the limit.
func (e *Executor) assemble(plan *query.Plan, st *run) *Result {
	survivors := make(map[string]data.EIDSet, len(st.allowed))
	for table, set := range st.allowed {
		survivors[table] = set
	}

	tableSet := func(table string) data.EIDSet {
		if set, ok := survivors[table]; ok {
			return set
		}
		set := e.catalog.Entities(table)
		survivors[table] = set
		return set
	}

	// Joins were appended in execution order; walking them in reverse
	// finalizes targets before their sources for chained joins. A source
	// entity survives when any of its foreign entities does.
	for i := len(st.joins) - 1; i >= 0; i-- {
		edge := st.joins[i]
		target := tableSet(edge.target)
		keep := data.NewEIDSet()
		for src, dsts := range edge.mapping {
			for _, dst := range dsts {
				if target.Contains(dst) {
					keep.Add(src)
					break
				}
			}
		}
		survivors[edge.source] = tableSet(edge.source).Intersect(keep)
	}

	res := &Result{}
	maxRows := 0

	for _, col := range plan.SelectColumns() {
		surv := tableSet(col.Table)
		var out []data.Triplet
		for _, t := range st.selected[col] {
			if surv.Contains(t.EID) {
				out = append(out, t)
			}
		}
		if st.hasLimit && uint64(len(out)) > st.limit {
			out = out[:st.limit]
		}
		if len(out) > maxRows {
			maxRows = len(out)
		}
		res.Columns = append(res.Columns, ResultColumn{Name: col, Triplets: out})
	}

	res.Rows = maxRows
	return res
}
