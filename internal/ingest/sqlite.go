package ingest

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/kartikbazzad/triq/internal/catalog"
	"github.com/kartikbazzad/triq/internal/data"
)

// FromSQLite ingests one SQLite table. INTEGER columns map to Int, BOOLEAN
// to Bool, everything else to String; timeColumn must be an INTEGER column
// and provides each row's time. Returns the number of triplets added.
func FromSQLite(cat *catalog.Catalog, dbPath, table, timeColumn string, logger log.Logger) (int, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return 0, errors.Wrap(err, "open sqlite")
	}
	defer db.Close()

	rows, err := db.Query(fmt.Sprintf("SELECT * FROM %q", table))
	if err != nil {
		return 0, errors.Wrapf(err, "query table %s", table)
	}
	defer rows.Close()

	colNames, err := rows.Columns()
	if err != nil {
		return 0, errors.Wrap(err, "column names")
	}
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return 0, errors.Wrap(err, "column types")
	}

	timeIdx := -1
	types := make([]data.ColumnType, len(colNames))
	for i, name := range colNames {
		types[i] = sqliteColumnType(colTypes[i].DatabaseTypeName())
		if name == timeColumn {
			timeIdx = i
		}

		cn := data.NewColumnName(table, name)
		if err := cat.AddColumn(cn, types[i]); err != nil {
			return 0, err
		}
	}
	if timeIdx < 0 {
		return 0, errors.Errorf("time column %q not found in table %s", timeColumn, table)
	}

	count := 0
	values := make([]any, len(colNames))
	for i := range values {
		values[i] = new(any)
	}

	for rows.Next() {
		if err := rows.Scan(values...); err != nil {
			return count, errors.Wrap(err, "scan row")
		}

		time, ok := asUint(*values[timeIdx].(*any))
		if !ok {
			return count, errors.Errorf("time column %q is not an unsigned integer", timeColumn)
		}

		eid := cat.NextEID(table)
		for i, name := range colNames {
			value, err := sqliteValue(*values[i].(*any), types[i])
			if err != nil {
				return count, errors.Wrapf(err, "column %s.%s", table, name)
			}
			cn := data.NewColumnName(table, name)
			if err := cat.Append(cn, data.Triplet{EID: eid, Value: value, Time: time}); err != nil {
				return count, err
			}
			count++
		}
	}
	if err := rows.Err(); err != nil {
		return count, errors.Wrap(err, "iterate rows")
	}

	cat.SortByTime()
	level.Info(logger).Log("msg", "sqlite ingested", "table", table, "triplets", count)
	return count, nil
}

func sqliteColumnType(dbType string) data.ColumnType {
	switch strings.ToUpper(dbType) {
	case "INTEGER", "INT", "BIGINT":
		return data.TypeInt
	case "BOOLEAN", "BOOL":
		return data.TypeBool
	default:
		return data.TypeString
	}
}

func sqliteValue(v any, typ data.ColumnType) (data.Value, error) {
	switch typ {
	case data.TypeInt:
		i, ok := asUint(v)
		if !ok {
			return data.Value{}, errors.Errorf("expected integer, got %T", v)
		}
		return data.IntValue(i), nil
	case data.TypeBool:
		switch b := v.(type) {
		case bool:
			return data.BoolValue(b), nil
		case int64:
			return data.BoolValue(b != 0), nil
		default:
			return data.Value{}, errors.Errorf("expected bool, got %T", v)
		}
	default:
		switch s := v.(type) {
		case string:
			return data.StringValue(s), nil
		case []byte:
			return data.StringValue(string(s)), nil
		default:
			return data.StringValue(fmt.Sprint(v)), nil
		}
	}
}

func asUint(v any) (uint64, bool) {
	switch i := v.(type) {
	case int64:
		if i < 0 {
			return 0, false
		}
		return uint64(i), true
	case uint64:
		return i, true
	default:
		return 0, false
	}
}
