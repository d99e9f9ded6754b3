package exhibit_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/odisha-policy-lab/sams-pipeline/internal/catalog"
	"github.com/odisha-policy-lab/sams-pipeline/internal/exhibit"
	"github.com/odisha-policy-lab/sams-pipeline/internal/report"
	"github.com/odisha-policy-lab/sams-pipeline/pkg/table"
)

const manifest = `
datasets:
  iti_institutes_strength:
    type: columnar
    path: data/interim/iti_institutes_strength.parquet
    layer: interim
  iti_institutes_cutoffs:
    type: columnar
    path: data/interim/iti_institutes_cutoffs.parquet
    layer: interim

exhibits:
  institutes_basics:
    type: workbook
    path: output/tables/institutes_basics.xlsx
  cutoffs:
    type: workbook
    path: output/tables/cutoffs.xlsx
`

func seed(t *testing.T) *catalog.Catalog {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, catalog.ManifestFile), []byte(manifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	c, err := catalog.Load(filepath.Join(dir, catalog.ManifestFile))
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}

	strength, err := table.New(
		table.MustSeries("sams_code", []string{"14001", "14001", "14002"}, nil),
		table.MustSeries("institute_name", []string{"Govt ITI Angul", "Govt ITI Angul", "Pvt ITI Cuttack"}, nil),
		table.MustSeries("district", []string{"Angul", "Angul", "Cuttack"}, nil),
		table.MustSeries("type_of_institute", []string{"Govt.", "Govt.", "Pvt."}, nil),
		table.MustSeries("academic_year", []int64{2023, 2023, 2023}, nil),
		table.MustSeries("trade", []string{"Fitter", "Welder", "Fitter"}, nil),
		table.MustSeries("category", []string{"Total", "Total", "Total"}, nil),
		table.MustSeries("strength", []int64{40, 20, 30}, nil),
	)
	if err != nil {
		t.Fatalf("build strength: %v", err)
	}
	entry, _ := c.Resolve("iti_institutes_strength")
	if err := table.WriteParquet(c.AbsPath(entry.Path), strength); err != nil {
		t.Fatalf("write strength: %v", err)
	}
	return c
}

func TestStageRun(t *testing.T) {
	c := seed(t)
	rep := report.New()
	stage := &exhibit.Stage{Catalog: c, Report: rep, Log: zap.NewNop()}
	if err := stage.Run(context.Background(), []string{"institutes_basics", "cutoffs"}); err != nil {
		t.Fatalf("run: %v", err)
	}

	t.Run("workbook rows equal distinct institutes", func(t *testing.T) {
		entry, err := c.ResolveExhibit("institutes_basics")
		if err != nil {
			t.Fatalf("resolve exhibit: %v", err)
		}
		f, err := excelize.OpenFile(c.AbsPath(entry.Path))
		if err != nil {
			t.Fatalf("open workbook: %v", err)
		}
		defer f.Close()

		rows, err := f.GetRows("Institutes")
		if err != nil {
			t.Fatalf("read sheet: %v", err)
		}
		// Header plus one row per distinct institute.
		if len(rows) != 3 {
			t.Fatalf("sheet rows = %d, want 3", len(rows))
		}
		if rows[1][0] != "14001" || rows[1][4] != "2" {
			t.Fatalf("unexpected first institute row: %v", rows[1])
		}
	})

	t.Run("missing upstream skips and reports the exhibit", func(t *testing.T) {
		skipped := rep.SkippedExhibits()
		if skipped["cutoffs"] != "iti_institutes_cutoffs" {
			t.Fatalf("cutoffs exhibit not reported as skipped: %v", skipped)
		}
		entry, _ := c.ResolveExhibit("cutoffs")
		if _, err := os.Stat(c.AbsPath(entry.Path)); !os.IsNotExist(err) {
			t.Fatalf("skipped exhibit must not write a workbook")
		}
	})
}

func TestDriftedUpstreamFailsOnlyItsExhibit(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, catalog.ManifestFile), []byte(manifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	c, err := catalog.Load(filepath.Join(dir, catalog.ManifestFile))
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}

	// The strength table lost its sams_code column.
	drifted, err := table.New(
		table.MustSeries("institute_name", []string{"Govt ITI Angul"}, nil),
		table.MustSeries("district", []string{"Angul"}, nil),
		table.MustSeries("type_of_institute", []string{"Govt."}, nil),
		table.MustSeries("trade", []string{"Fitter"}, nil),
	)
	if err != nil {
		t.Fatalf("build table: %v", err)
	}
	entry, _ := c.Resolve("iti_institutes_strength")
	if err := table.WriteParquet(c.AbsPath(entry.Path), drifted); err != nil {
		t.Fatalf("write strength: %v", err)
	}

	rep := report.New()
	stage := &exhibit.Stage{Catalog: c, Report: rep, Log: zap.NewNop()}
	if err := stage.Run(context.Background(), []string{"institutes_basics"}); err != nil {
		t.Fatalf("run: %v", err)
	}

	failures := rep.Failures()
	if failures["exhibit institutes_basics"] == nil {
		t.Fatalf("drifted upstream not recorded as exhibit failure: %v", failures)
	}
	ex, _ := c.ResolveExhibit("institutes_basics")
	if _, err := os.Stat(c.AbsPath(ex.Path)); !os.IsNotExist(err) {
		t.Fatalf("failed exhibit must not write a workbook")
	}
}

func TestWriteWorkbookSheetOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	sheets := []exhibit.Sheet{
		{Name: "First", Columns: []string{"a"}, Rows: [][]any{{int64(1)}}},
		{Name: "Second", Columns: []string{"b"}, Rows: [][]any{{int64(2)}}},
	}
	if err := exhibit.WriteWorkbook(path, sheets); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	got := f.GetSheetList()
	if len(got) != 2 || got[0] != "First" || got[1] != "Second" {
		t.Fatalf("sheet order = %v", got)
	}
}
