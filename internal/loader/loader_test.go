package loader_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/odisha-policy-lab/sams-pipeline/internal/catalog"
	"github.com/odisha-policy-lab/sams-pipeline/internal/loader"
	"github.com/odisha-policy-lab/sams-pipeline/pkg/table"
)

func testCatalog(t *testing.T, manifest string) *catalog.Catalog {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, catalog.ManifestFile)
	if err := os.WriteFile(path, []byte(manifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	c, err := catalog.Load(path)
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	return c
}

func TestLoadDelimitedText(t *testing.T) {
	c := testCatalog(t, `
datasets:
  geocodes:
    type: delimited-text
    path: geocodes.csv
    layer: external
`)
	csv := "block,latitude,longitude,district\nAthamallik,20.72,84.53,Angul\n"
	if err := os.WriteFile(filepath.Join(c.Root, "geocodes.csv"), []byte(csv), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	entry, err := c.Resolve("geocodes")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	got, err := loader.Load(context.Background(), c, entry)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.NumRows() != 1 {
		t.Fatalf("rows = %d, want 1", got.NumRows())
	}
	if v, ok := got.Column("latitude").FloatAt(0); !ok || v != 20.72 {
		t.Fatalf("latitude = %v, %v", v, ok)
	}
}

func TestLoadMissingFileIsLoadError(t *testing.T) {
	c := testCatalog(t, `
datasets:
  geocodes:
    type: delimited-text
    path: absent.csv
    layer: external
`)
	entry, _ := c.Resolve("geocodes")
	_, err := loader.Load(context.Background(), c, entry)
	var le *loader.LoadError
	if !errors.As(err, &le) {
		t.Fatalf("err = %v, want LoadError", err)
	}
	if le.Dataset != "geocodes" {
		t.Fatalf("LoadError dataset = %q", le.Dataset)
	}
}

func TestLoadRelational(t *testing.T) {
	c := testCatalog(t, `
datasets:
  sams:
    type: relational
    path: sams.db
    layer: raw
`)
	dbPath := filepath.Join(c.Root, "sams.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	_, err = db.Exec(`
CREATE TABLE students (aadhar_no TEXT, module TEXT, academic_year INTEGER, district TEXT);
INSERT INTO students VALUES
  ('111122223333', 'ITI', 2019, 'Angul'),
  ('444455556666', 'ITI', 2021, 'Cuttack'),
  ('777788889999', 'Diploma', 2019, 'Puri'),
  ('000011112222', 'ITI', 2016, 'Ganjam');
`)
	if err != nil {
		t.Fatalf("seed db: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close db: %v", err)
	}

	entry, _ := c.Resolve("sams")
	hints := map[string]table.Kind{"aadhar_no": table.KindString}

	t.Run("filters by module and year range", func(t *testing.T) {
		got, err := loader.LoadRelational(context.Background(), c, entry,
			loader.Query{Table: "students", Module: "ITI", YearMin: 2017, YearMax: 2024}, hints)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if got.NumRows() != 2 {
			t.Fatalf("rows = %d, want 2", got.NumRows())
		}
		if got.Column("aadhar_no").Kind() != table.KindString {
			t.Fatalf("aadhar_no kind = %v, want string", got.Column("aadhar_no").Kind())
		}
	})

	t.Run("missing database file is LoadError", func(t *testing.T) {
		bad := catalog.DatasetEntry{Name: "sams", Type: catalog.TypeRelational, Path: "missing.db", Layer: catalog.LayerRaw}
		_, err := loader.LoadRelational(context.Background(), c, bad,
			loader.Query{Table: "students", Module: "ITI", YearMin: 2017, YearMax: 2024}, nil)
		var le *loader.LoadError
		if !errors.As(err, &le) {
			t.Fatalf("err = %v, want LoadError", err)
		}
	})

	t.Run("relational entry through Load errors", func(t *testing.T) {
		_, err := loader.Load(context.Background(), c, entry)
		var le *loader.LoadError
		if !errors.As(err, &le) {
			t.Fatalf("err = %v, want LoadError", err)
		}
	})
}
