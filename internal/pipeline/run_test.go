package pipeline_test

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/xuri/excelize/v2"

	"github.com/odisha-policy-lab/sams-pipeline/internal/catalog"
	"github.com/odisha-policy-lab/sams-pipeline/internal/modules"
	"github.com/odisha-policy-lab/sams-pipeline/internal/pipeline"
	"github.com/odisha-policy-lab/sams-pipeline/pkg/table"
)

const manifest = `
datasets:
  sams:
    type: relational
    path: data/raw/sams.db
    layer: raw
  geocodes:
    type: delimited-text
    path: data/external/geocodes.csv
    layer: external
  institute_geocodes:
    type: delimited-text
    path: data/external/institute_geocodes.csv
    layer: external
  iti_enrollments:
    type: columnar
    path: data/interim/iti_enrollments.parquet
    layer: interim
  iti_marks:
    type: columnar
    path: data/interim/iti_marks.parquet
    layer: interim
  iti_institutes_strength:
    type: columnar
    path: data/interim/iti_institutes_strength.parquet
    layer: interim
  iti_institutes_cutoffs:
    type: columnar
    path: data/interim/iti_institutes_cutoffs.parquet
    layer: interim
  iti_institutes_enrollments:
    type: columnar
    path: data/interim/iti_institutes_enrollments.parquet
    layer: interim
  iti_geocoded_enrollments:
    type: columnar
    path: data/processed/iti_geocoded_enrollments.parquet
    layer: processed
  iti_vacancies:
    type: columnar
    path: data/processed/iti_vacancies.parquet
    layer: processed
  iti_marks_and_cutoffs:
    type: columnar
    path: data/processed/iti_marks_and_cutoffs.parquet
    layer: processed

exhibits:
  institutes_basics:
    type: workbook
    path: output/tables/institutes_basics.xlsx
`

const rawDDL = `
CREATE TABLE students (
  barcode TEXT, aadhar_no TEXT, student_name TEXT, gender TEXT,
  district TEXT, block TEXT, pin_code TEXT, social_category TEXT,
  annual_income TEXT, highest_qualification TEXT, mark_data TEXT,
  sams_code TEXT, reported_institute TEXT, reported_branch_or_trade TEXT,
  institute_district TEXT, type_of_institute TEXT, phase TEXT,
  admission_status TEXT, enrollment_status TEXT, applied_status TEXT,
  application_status TEXT, gc TEXT, ph TEXT, es TEXT, ews TEXT, orphan TEXT,
  module TEXT, academic_year INTEGER
);
CREATE TABLE institutes (
  sams_code TEXT, ncvtmis_code TEXT, academic_year INTEGER, module TEXT,
  institute_name TEXT, district TEXT, type_of_institute TEXT,
  admission_type TEXT, branch TEXT, trade TEXT,
  strength TEXT, cutoff TEXT, enrollment TEXT
);
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

	for _, sub := range []string{"raw", "external"} {
		if err := os.MkdirAll(filepath.Join(dir, "data", sub), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}

	db, err := sql.Open("sqlite3", filepath.Join(dir, "data", "raw", "sams.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(rawDDL); err != nil {
		t.Fatalf("create tables: %v", err)
	}

	marks := `[{"ExamName":"10th","SecuredMarks":"76","TotalMarks":"100","ExamType":"Annual","YearofPassing":"2021","Board":"BSE"}]`
	_, err = db.Exec(`INSERT INTO students (aadhar_no, student_name, gender, district,
		pin_code, social_category, mark_data, sams_code, reported_branch_or_trade,
		institute_district, type_of_institute, phase, admission_status,
		enrollment_status, applied_status, application_status,
		gc, ph, es, ews, orphan, module, academic_year)
		VALUES ('111122223333', 'A Student', 'Male', 'Anugul', '759122', 'General',
		?, '14001', 'Fitter', 'Cuttack', 'Govt.', '1', 'Yes', 'Yes', 'Yes', 'Yes',
		'No', 'No', 'No', 'No', 'No', 'ITI', 2023)`, marks)
	if err != nil {
		t.Fatalf("insert student: %v", err)
	}

	_, err = db.Exec(`INSERT INTO institutes (sams_code, academic_year, module, institute_name,
		district, type_of_institute, trade, strength, cutoff, enrollment)
		VALUES ('14001', 2023, 'ITI', 'Govt ITI Angul', 'Anugul', 'Govt.', 'Fitter',
		'[{"Total":40}]',
		'[{"SelectionStage":"Stage1","Qual":"10th","UR_Male":64.5}]',
		'[{"Total":38}]')`)
	if err != nil {
		t.Fatalf("insert institute: %v", err)
	}

	geocodes := "address,latitude,longitude\n759122,20.84,85.10\n"
	if err := os.WriteFile(filepath.Join(dir, "data", "external", "geocodes.csv"), []byte(geocodes), 0o644); err != nil {
		t.Fatalf("write geocodes: %v", err)
	}
	instGeo := "sams_code,latitude,longitude\n14001,20.85,85.12\n"
	if err := os.WriteFile(filepath.Join(dir, "data", "external", "institute_geocodes.csv"), []byte(instGeo), 0o644); err != nil {
		t.Fatalf("write institute geocodes: %v", err)
	}
	return c
}

func TestRunEndToEnd(t *testing.T) {
	c := seed(t)
	rep, err := pipeline.Run(context.Background(), c, pipeline.Options{
		Modules:  []modules.Module{modules.ITI},
		Exhibits: []string{"institutes_basics"},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Failed() {
		t.Fatalf("run recorded failures: %v", rep.Failures())
	}

	t.Run("processed layer is materialized", func(t *testing.T) {
		entry, _ := c.Resolve("iti_geocoded_enrollments")
		geocoded, err := table.ReadParquet(c.AbsPath(entry.Path))
		if err != nil {
			t.Fatalf("read geocoded: %v", err)
		}
		if geocoded.NumRows() != 1 {
			t.Fatalf("geocoded rows = %d, want 1", geocoded.NumRows())
		}
		if got := geocoded.Column("district").StringAt(0); got != "Angul" {
			t.Fatalf("district = %q, want canonical Angul", got)
		}
		if d, ok := geocoded.Column("distance_km").FloatAt(0); !ok || d <= 0 || d > 10 {
			t.Fatalf("distance_km = %v, %v", d, ok)
		}

		entry, _ = c.Resolve("iti_marks_and_cutoffs")
		mc, err := table.ReadParquet(c.AbsPath(entry.Path))
		if err != nil {
			t.Fatalf("read marks_and_cutoffs: %v", err)
		}
		// 76% beats the 64.5 UR_Male cutoff, so the single row survives.
		if mc.NumRows() != 1 {
			t.Fatalf("marks_and_cutoffs rows = %d, want 1", mc.NumRows())
		}

		entry, _ = c.Resolve("iti_vacancies")
		vac, err := table.ReadParquet(c.AbsPath(entry.Path))
		if err != nil {
			t.Fatalf("read vacancies: %v", err)
		}
		if vac.NumRows() != 1 {
			t.Fatalf("vacancies rows = %d, want 1", vac.NumRows())
		}
		if v, ok := vac.Column("vacancies").IntAt(0); !ok || v != 39 {
			t.Fatalf("vacancies = %v, %v (strength 40 minus 1 enrolled)", v, ok)
		}
	})

	t.Run("exhibit workbook is written", func(t *testing.T) {
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
		if len(rows) != 2 {
			t.Fatalf("sheet rows = %d, want header plus one institute", len(rows))
		}
	})
}
