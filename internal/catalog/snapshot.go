package catalog

import (
	"bufio"
	"encoding/gob"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/golang/snappy"
	"github.com/pkg/errors"

	"github.com/kartikbazzad/triq/internal/data"
)

// snapshot is the on-disk form of the whole catalog: snappy-compressed gob.
// This is a convenience snapshot, not a durability mechanism; there is no
// write-ahead log and a crash mid-Save loses the file.
type snapshot struct {
	Columns []Column
	Tables  map[string]tableSnapshot
}

type tableSnapshot struct {
	EIDs    []uint64
	NextEID uint64
}

// Create writes an empty catalog snapshot; it fails if the file exists.
func Create(path string, logger log.Logger) error {
	if _, err := os.Stat(path); err == nil {
		return errors.Errorf("store already exists: %s", path)
	}
	return New(logger).Save(path)
}

// Load reads a catalog snapshot from disk.
func Load(path string, logger log.Logger) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open store")
	}
	defer f.Close()

	var snap snapshot
	dec := gob.NewDecoder(snappy.NewReader(bufio.NewReader(f)))
	if err := dec.Decode(&snap); err != nil {
		return nil, errors.Wrap(err, "decode store")
	}

	c := New(logger)
	for i := range snap.Columns {
		col := snap.Columns[i]
		c.cols[col.Name] = &col
		if _, ok := c.tables[col.Name.Table]; !ok {
			c.tables[col.Name.Table] = &tableIndex{EIDs: data.NewEIDSet()}
		}
	}
	for table, ts := range snap.Tables {
		idx, ok := c.tables[table]
		if !ok {
			idx = &tableIndex{EIDs: data.NewEIDSet()}
			c.tables[table] = idx
		}
		idx.NextEID = ts.NextEID
		for _, eid := range ts.EIDs {
			idx.EIDs.Add(eid)
		}
	}

	level.Info(logger).Log("msg", "store loaded", "path", path, "columns", len(c.cols), "tables", len(c.tables))
	return c, nil
}

// Save writes the catalog snapshot, replacing the file atomically via a
// temp file rename.
func (c *Catalog) Save(path string) error {
	c.mu.RLock()
	snap := snapshot{Tables: make(map[string]tableSnapshot, len(c.tables))}
	for _, col := range c.cols {
		snap.Columns = append(snap.Columns, *col)
	}
	for table, idx := range c.tables {
		ts := tableSnapshot{NextEID: idx.NextEID, EIDs: make([]uint64, 0, idx.EIDs.Len())}
		for eid := range idx.EIDs {
			ts.EIDs = append(ts.EIDs, eid)
		}
		snap.Tables[table] = ts
	}
	c.mu.RUnlock()

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return errors.Wrap(err, "create store")
	}

	bw := bufio.NewWriter(f)
	sw := snappy.NewBufferedWriter(bw)
	if err := gob.NewEncoder(sw).Encode(&snap); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.Wrap(err, "encode store")
	}
	if err := sw.Close(); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.Wrap(err, "flush store")
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.Wrap(err, "flush store")
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "close store")
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "rename store")
	}

	level.Debug(c.logger).Log("msg", "store saved", "path", path)
	return nil
}
