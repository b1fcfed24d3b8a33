// Package ingest populates the catalog from external sources: TOML schema +
// CSV pairs, and SQLite tables. Every ingestion path sorts columns by time
// afterwards and relies on the catalog's mutation hook to invalidate the
// column cache.
package ingest

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"

	"github.com/kartikbazzad/triq/internal/catalog"
	"github.com/kartikbazzad/triq/internal/data"
)

// Schema describes one table's CSV layout.
type Schema struct {
	Table       string            `toml:"table"`
	Columns     map[string]string `toml:"columns"`
	TimeColumn  string            `toml:"time_column"`
	CSVOrdering []string          `toml:"csv_ordering"`
}

func LoadSchema(path string) (*Schema, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read schema")
	}

	var s Schema
	if err := toml.Unmarshal(raw, &s); err != nil {
		return nil, errors.Wrap(err, "parse schema")
	}

	if s.Table == "" || len(s.Columns) == 0 || len(s.CSVOrdering) == 0 {
		return nil, errors.New("schema needs table, columns and csv_ordering")
	}
	if err := s.timeIndexCheck(); err != nil {
		return nil, err
	}

	return &s, nil
}

func (s *Schema) timeIndex() int {
	for i, name := range s.CSVOrdering {
		if name == s.TimeColumn {
			return i
		}
	}
	return -1
}

func (s *Schema) timeIndexCheck() error {
	if s.timeIndex() < 0 {
		return errors.Errorf("time_column %q not in csv_ordering", s.TimeColumn)
	}
	return nil
}

// FromCSV reads headerless CSV rows, allocating one entity per row and one
// triplet per schema column. Returns the number of triplets added.
func FromCSV(cat *catalog.Catalog, schema *Schema, csvPath string, logger log.Logger) (int, error) {
	if err := addColumns(cat, schema); err != nil {
		return 0, err
	}

	f, err := os.Open(csvPath)
	if err != nil {
		return 0, errors.Wrap(err, "open csv")
	}
	defer f.Close()

	timeIdx := schema.timeIndex()
	reader := csv.NewReader(f)
	reader.FieldsPerRecord = len(schema.CSVOrdering)

	count := 0
	for {
		record, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return count, errors.Wrap(err, "read csv")
		}

		eid := cat.NextEID(schema.Table)
		time, err := strconv.ParseUint(record[timeIdx], 10, 64)
		if err != nil {
			return count, errors.Wrapf(err, "bad time value %q", record[timeIdx])
		}

		for i, colName := range schema.CSVOrdering {
			name := data.NewColumnName(schema.Table, colName)
			typ, err := data.ParseColumnType(schema.Columns[colName])
			if err != nil {
				return count, err
			}
			value, err := parseCell(record[i], typ)
			if err != nil {
				return count, errors.Wrapf(err, "column %s", name)
			}
			if err := cat.Append(name, data.Triplet{EID: eid, Value: value, Time: time}); err != nil {
				return count, err
			}
			count++
		}
	}

	cat.SortByTime()
	level.Info(logger).Log("msg", "csv ingested", "table", schema.Table, "triplets", count)
	return count, nil
}

func addColumns(cat *catalog.Catalog, schema *Schema) error {
	for colName, typeName := range schema.Columns {
		typ, err := data.ParseColumnType(typeName)
		if err != nil {
			return err
		}
		name := data.NewColumnName(schema.Table, colName)
		if err := cat.AddColumn(name, typ); err != nil {
			return err
		}
	}
	return nil
}

func parseCell(cell string, typ data.ColumnType) (data.Value, error) {
	switch typ {
	case data.TypeBool:
		switch cell {
		case "true", "1":
			return data.BoolValue(true), nil
		case "false", "0":
			return data.BoolValue(false), nil
		default:
			return data.Value{}, errors.Errorf("bad bool %q", cell)
		}
	case data.TypeInt:
		i, err := strconv.ParseUint(cell, 10, 64)
		if err != nil {
			return data.Value{}, errors.Errorf("bad int %q", cell)
		}
		return data.IntValue(i), nil
	default:
		return data.StringValue(cell), nil
	}
}
