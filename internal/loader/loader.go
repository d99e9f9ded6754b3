// Package loader materializes catalog entries into in-memory tables,
// dispatching on the declared dataset type.
package loader

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/odisha-policy-lab/sams-pipeline/internal/catalog"
	"github.com/odisha-policy-lab/sams-pipeline/pkg/table"
)

// LoadError wraps a per-dataset failure. One dataset failing to load never
// aborts sibling datasets in the same stage.
type LoadError struct {
	Dataset string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load dataset %q: %v", e.Dataset, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Load reads the dataset behind entry into a table. Relational entries need a
// query filter and go through LoadRelational instead.
func Load(ctx context.Context, c *catalog.Catalog, entry catalog.DatasetEntry) (*table.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := c.AbsPath(entry.Path)

	switch entry.Type {
	case catalog.TypeDelimitedText:
		return loadFile(entry.Name, path, func(r io.Reader) (*table.Table, error) {
			return table.ReadCSV(r, nil)
		})
	case catalog.TypeGeometry:
		return loadFile(entry.Name, path, table.ReadGeoJSON)
	case catalog.TypeColumnar:
		t, err := table.ReadParquet(path)
		if err != nil {
			return nil, &LoadError{Dataset: entry.Name, Err: err}
		}
		return t, nil
	case catalog.TypeRelational:
		return nil, &LoadError{
			Dataset: entry.Name,
			Err:     fmt.Errorf("relational datasets require a query; use LoadRelational"),
		}
	default:
		return nil, &LoadError{
			Dataset: entry.Name,
			Err:     fmt.Errorf("unsupported dataset type %q", entry.Type),
		}
	}
}

func loadFile(name, path string, parse func(io.Reader) (*table.Table, error)) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Dataset: name, Err: err}
	}
	defer f.Close()
	t, err := parse(f)
	if err != nil {
		return nil, &LoadError{Dataset: name, Err: err}
	}
	return t, nil
}
