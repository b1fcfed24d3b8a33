// Package catalog implements the in-memory column store: typed triplet
// columns addressed by (table, name), plus a per-table entity index used by
// joins. The catalog is read-only during query execution; mutation happens
// through ingestion, which invalidates the column cache via the registered
// hook.
package catalog

import (
	"sort"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"github.com/kartikbazzad/triq/internal/data"
)

var (
	ErrColumnExists   = errors.New("column already exists")
	ErrColumnNotFound = errors.New("column not found")
	ErrTableNotFound  = errors.New("table not found")
	ErrTypeMismatch   = errors.New("value type does not match column type")
)

// Column is one triplet sequence, kept ordered by time ascending.
type Column struct {
	Name     data.ColumnName
	Type     data.ColumnType
	Triplets []data.Triplet
}

type tableIndex struct {
	EIDs    data.EIDSet
	NextEID uint64
}

type Catalog struct {
	mu       sync.RWMutex
	cols     map[data.ColumnName]*Column
	tables   map[string]*tableIndex
	onMutate func()
	logger   log.Logger
}

func New(logger log.Logger) *Catalog {
	return &Catalog{
		cols:   make(map[data.ColumnName]*Column),
		tables: make(map[string]*tableIndex),
		logger: logger,
	}
}

// OnMutate registers the invalidation hook, called whenever the catalog
// contents change.
func (c *Catalog) OnMutate(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMutate = fn
}

// mutated is called with c.mu held.
func (c *Catalog) mutated() {
	if c.onMutate != nil {
		c.onMutate()
	}
}

func (c *Catalog) AddColumn(name data.ColumnName, typ data.ColumnType) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.cols[name]; exists {
		return errors.Wrap(ErrColumnExists, name.String())
	}

	c.cols[name] = &Column{Name: name, Type: typ}
	if _, ok := c.tables[name.Table]; !ok {
		c.tables[name.Table] = &tableIndex{EIDs: data.NewEIDSet()}
	}

	c.mutated()
	return nil
}

// Append adds one triplet to a column and registers its entity in the
// table index.
func (c *Catalog) Append(name data.ColumnName, t data.Triplet) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	col, ok := c.cols[name]
	if !ok {
		return errors.Wrap(ErrColumnNotFound, name.String())
	}
	if t.Value.Kind != col.Type.Kind() {
		return errors.Wrapf(ErrTypeMismatch, "%s expects %s, got %s", name, col.Type, t.Value.Kind)
	}

	col.Triplets = append(col.Triplets, t)

	idx := c.tables[name.Table]
	idx.EIDs.Add(t.EID)
	if t.EID >= idx.NextEID {
		idx.NextEID = t.EID + 1
	}

	c.mutated()
	return nil
}

// NextEID allocates the next entity id for a table.
func (c *Catalog) NextEID(table string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx, ok := c.tables[table]
	if !ok {
		idx = &tableIndex{EIDs: data.NewEIDSet()}
		c.tables[table] = idx
	}
	eid := idx.NextEID
	idx.NextEID++
	return eid
}

// SortByTime restores the time-ascending invariant after bulk ingestion.
// The sort is stable so same-time triplets keep insertion order.
func (c *Catalog) SortByTime() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, col := range c.cols {
		sort.SliceStable(col.Triplets, func(i, j int) bool {
			return col.Triplets[i].Time < col.Triplets[j].Time
		})
	}

	c.mutated()
	level.Debug(c.logger).Log("msg", "columns sorted", "columns", len(c.cols))
}

// Resolve maps a (table, name) pair to its column identity.
func (c *Catalog) Resolve(table, name string) (data.ColumnName, error) {
	cn := data.NewColumnName(table, name)
	c.mu.RLock()
	defer c.mu.RUnlock()

	if _, ok := c.cols[cn]; !ok {
		return data.ColumnName{}, errors.Wrap(ErrColumnNotFound, cn.String())
	}
	return cn, nil
}

// Fetch returns the triplet sequence for a column. The slice is owned by
// the catalog; callers must treat it as read-only.
func (c *Catalog) Fetch(name data.ColumnName) ([]data.Triplet, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	col, ok := c.cols[name]
	if !ok {
		return nil, errors.Wrap(ErrColumnNotFound, name.String())
	}
	return col.Triplets, nil
}

func (c *Catalog) HasColumn(name data.ColumnName) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.cols[name]
	return ok
}

func (c *Catalog) HasTable(table string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.tables[table]
	return ok
}

// HasEntity reports whether a table knows an entity id; joins use it to
// resolve foreign ids.
func (c *Catalog) HasEntity(table string, eid uint64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	idx, ok := c.tables[table]
	return ok && idx.EIDs.Contains(eid)
}

// Entities returns a copy of a table's entity set.
func (c *Catalog) Entities(table string) data.EIDSet {
	c.mu.RLock()
	defer c.mu.RUnlock()

	idx, ok := c.tables[table]
	if !ok {
		return data.NewEIDSet()
	}
	return idx.EIDs.Clone()
}

// Columns returns every column identity, ordered by name; used for
// introspection and snapshotting.
func (c *Catalog) Columns() []data.ColumnName {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]data.ColumnName, 0, len(c.cols))
	for name := range c.cols {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if names[i].Table != names[j].Table {
			return names[i].Table < names[j].Table
		}
		return names[i].Name < names[j].Name
	})
	return names
}
