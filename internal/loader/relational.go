package loader

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"

	"github.com/odisha-policy-lab/sams-pipeline/internal/catalog"
	"github.com/odisha-policy-lab/sams-pipeline/pkg/table"
)

// Query is the fixed filter shape for relational loads: one source table,
// one module, an inclusive academic-year range.
type Query struct {
	Table   string
	Module  string
	YearMin int
	YearMax int
}

// LoadRelational opens the sqlite file behind entry, runs the module/year
// query and returns the rows as a table. The connection lives only for the
// duration of the call; it is never shared across stages. Column types are
// inferred from the values, with hints forcing identifier columns to stay
// strings.
func LoadRelational(ctx context.Context, c *catalog.Catalog, entry catalog.DatasetEntry, q Query, hints map[string]table.Kind) (*table.Table, error) {
	if entry.Type != catalog.TypeRelational {
		return nil, &LoadError{
			Dataset: entry.Name,
			Err:     fmt.Errorf("dataset type %q is not relational", entry.Type),
		}
	}
	if q.Table == "" {
		return nil, &LoadError{Dataset: entry.Name, Err: fmt.Errorf("query table is required")}
	}

	path := c.AbsPath(entry.Path)
	if _, err := os.Stat(path); err != nil {
		// sql.Open would create an empty database here.
		return nil, &LoadError{Dataset: entry.Name, Err: err}
	}

	db, err := sql.Open("sqlite3", path+"?mode=ro&_busy_timeout=5000")
	if err != nil {
		return nil, &LoadError{Dataset: entry.Name, Err: fmt.Errorf("open sqlite: %w", err)}
	}
	defer db.Close()

	stmt := fmt.Sprintf(
		"SELECT * FROM %s WHERE module = ? AND academic_year BETWEEN ? AND ?", q.Table)
	rows, err := db.QueryContext(ctx, stmt, q.Module, q.YearMin, q.YearMax)
	if err != nil {
		return nil, &LoadError{Dataset: entry.Name, Err: fmt.Errorf("query %s: %w", q.Table, err)}
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, &LoadError{Dataset: entry.Name, Err: err}
	}

	var records [][]string
	cells := make([]sql.NullString, len(names))
	dest := make([]any, len(names))
	for i := range cells {
		dest[i] = &cells[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, &LoadError{Dataset: entry.Name, Err: fmt.Errorf("scan row %d: %w", len(records)+1, err)}
		}
		rec := make([]string, len(names))
		for i, c := range cells {
			if c.Valid {
				rec[i] = c.String
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &LoadError{Dataset: entry.Name, Err: err}
	}

	t, err := table.FromRecords(names, records, hints)
	if err != nil {
		return nil, &LoadError{Dataset: entry.Name, Err: err}
	}
	return t, nil
}
