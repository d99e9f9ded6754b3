package enrich_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/odisha-policy-lab/sams-pipeline/internal/catalog"
	"github.com/odisha-policy-lab/sams-pipeline/internal/enrich"
	"github.com/odisha-policy-lab/sams-pipeline/internal/modules"
	"github.com/odisha-policy-lab/sams-pipeline/internal/report"
	"github.com/odisha-policy-lab/sams-pipeline/pkg/table"
)

const manifest = `
datasets:
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
  iti_geocoded_enrollments:
    type: columnar
    path: data/processed/iti_geocoded_enrollments.parquet
    layer: processed
  iti_marks_and_cutoffs:
    type: columnar
    path: data/processed/iti_marks_and_cutoffs.parquet
    layer: processed
  iti_vacancies:
    type: columnar
    path: data/processed/iti_vacancies.parquet
    layer: processed
`

// seedInterim builds 100 enrollment rows of which only 80 pin codes appear in
// the geocode reference.
func seedInterim(t *testing.T) *catalog.Catalog {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, catalog.ManifestFile), []byte(manifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	c, err := catalog.Load(filepath.Join(dir, catalog.ManifestFile))
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "data", "external"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	const n = 100
	var (
		aadhar   = make([]string, n)
		year     = make([]int64, n)
		pin      = make([]string, n)
		district = make([]string, n)
		instDist = make([]string, n)
		sams     = make([]string, n)
		trade    = make([]string, n)
		category = make([]string, n)
		gender   = make([]string, n)
		phase    = make([]int64, n)
		flags    = make([]bool, n)
	)
	for i := 0; i < n; i++ {
		aadhar[i] = fmt.Sprintf("%012d", i)
		year[i] = 2023
		pin[i] = fmt.Sprintf("7591%02d", i)
		district[i] = "Anugul"
		instDist[i] = "Angul"
		sams[i] = "14001"
		trade[i] = "Fitter"
		category[i] = "General"
		gender[i] = "Male"
		phase[i] = 1
	}
	enrollments, err := table.New(
		table.MustSeries("aadhar_no", aadhar, nil),
		table.MustSeries("academic_year", year, nil),
		table.MustSeries("pin_code", pin, nil),
		table.MustSeries("district", district, nil),
		table.MustSeries("institute_district", instDist, nil),
		table.MustSeries("sams_code", sams, nil),
		table.MustSeries("reported_branch_or_trade", trade, nil),
		table.MustSeries("social_category", category, nil),
		table.MustSeries("gender", gender, nil),
		table.MustSeries("phase", phase, nil),
		table.MustSeries("gc", flags, nil),
		table.MustSeries("pwd", flags, nil),
		table.MustSeries("es", flags, nil),
		table.MustSeries("ews", flags, nil),
		table.MustSeries("orphan", flags, nil),
	)
	if err != nil {
		t.Fatalf("build enrollments: %v", err)
	}
	writeParquet(t, c, "iti_enrollments", enrollments)

	// Geocodes for the first 80 pin codes only.
	csv := "address,latitude,longitude\n"
	for i := 0; i < 80; i++ {
		csv += fmt.Sprintf("7591%02d,20.8,85.1\n", i)
	}
	if err := os.WriteFile(filepath.Join(dir, "data", "external", "geocodes.csv"), []byte(csv), 0o644); err != nil {
		t.Fatalf("write geocodes: %v", err)
	}
	ig := "sams_code,latitude,longitude\n14001,20.9,85.2\n"
	if err := os.WriteFile(filepath.Join(dir, "data", "external", "institute_geocodes.csv"), []byte(ig), 0o644); err != nil {
		t.Fatalf("write institute geocodes: %v", err)
	}

	strength, err := table.New(
		table.MustSeries("sams_code", []string{"14001", "14001"}, nil),
		table.MustSeries("institute_name", []string{"Govt ITI Angul", "Govt ITI Angul"}, nil),
		table.MustSeries("district", []string{"Anugul", "Anugul"}, nil),
		table.MustSeries("type_of_institute", []string{"Govt.", "Govt."}, nil),
		table.MustSeries("academic_year", []int64{2023, 2023}, nil),
		table.MustSeries("trade", []string{"Fitter", "Fitter"}, nil),
		table.MustSeries("branch", []string{"", ""}, nil),
		table.MustSeries("category", []string{"SC", "Total"}, nil),
		table.MustSeries("strength", []int64{10, 120}, nil),
	)
	if err != nil {
		t.Fatalf("build strength: %v", err)
	}
	writeParquet(t, c, "iti_institutes_strength", strength)

	marks, err := table.New(
		table.MustSeries("aadhar_no", []string{"000000000000", "000000000001"}, nil),
		table.MustSeries("academic_year", []int64{2023, 2023}, nil),
		table.MustSeries("exam_name", []string{"10th", "10th"}, nil),
		table.MustSeries("percentage", []float64{80.0, 50.0}, nil),
	)
	if err != nil {
		t.Fatalf("build marks: %v", err)
	}
	writeParquet(t, c, "iti_marks", marks)

	cutoffs, err := table.New(
		table.MustSeries("sams_code", []string{"14001"}, nil),
		table.MustSeries("academic_year", []int64{2023}, nil),
		table.MustSeries("trade", []string{"Fitter"}, nil),
		table.MustSeries("selection_stage", []int64{1}, nil),
		table.MustSeries("social_category", []string{"UR"}, nil),
		table.MustSeries("gender", []string{"Male"}, nil),
		table.MustSeries("local", []bool{true}, nil),
		table.MustSeries("qual", []string{"10th"}, nil),
		table.MustSeries("cutoff", []float64{64.5}, nil),
	)
	if err != nil {
		t.Fatalf("build cutoffs: %v", err)
	}
	writeParquet(t, c, "iti_institutes_cutoffs", cutoffs)

	return c
}

func writeParquet(t *testing.T, c *catalog.Catalog, name string, tab *table.Table) {
	t.Helper()
	entry, err := c.Resolve(name)
	if err != nil {
		t.Fatalf("resolve %s: %v", name, err)
	}
	if err := table.WriteParquet(c.AbsPath(entry.Path), tab); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func readProcessed(t *testing.T, c *catalog.Catalog, name string) *table.Table {
	t.Helper()
	entry, err := c.Resolve(name)
	if err != nil {
		t.Fatalf("resolve %s: %v", name, err)
	}
	got, err := table.ReadParquet(c.AbsPath(entry.Path))
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return got
}

func TestStageRun(t *testing.T) {
	c := seedInterim(t)
	rep := report.New()
	stage := &enrich.Stage{Catalog: c, Report: rep, Log: zap.NewNop(), CoverageThreshold: 0.15}
	if err := stage.Run(context.Background(), []modules.Module{modules.ITI}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Failed() {
		t.Fatalf("stage recorded failures: %v", rep.Failures())
	}

	t.Run("left join keeps unmatched fact rows", func(t *testing.T) {
		geocoded := readProcessed(t, c, "iti_geocoded_enrollments")
		if geocoded.NumRows() != 100 {
			t.Fatalf("rows = %d, want 100", geocoded.NumRows())
		}
		missing := 0
		for i := 0; i < geocoded.NumRows(); i++ {
			if geocoded.Column("student_lat").IsMissing(i) {
				missing++
			}
		}
		if missing != 20 {
			t.Fatalf("missing enrichment rows = %d, want 20", missing)
		}
		if geocoded.Column("district").StringAt(0) != "Angul" {
			t.Fatalf("district not canonicalized: %q", geocoded.Column("district").StringAt(0))
		}
		if rep.CountByKind()[report.KindJoinCoverage] == 0 {
			t.Fatalf("expected a join coverage warning at 20%% unmatched")
		}
	})

	t.Run("vacancies compare enrollment against total strength", func(t *testing.T) {
		vacancies := readProcessed(t, c, "iti_vacancies")
		if vacancies.NumRows() != 1 {
			t.Fatalf("rows = %d, want 1", vacancies.NumRows())
		}
		if v, _ := vacancies.Column("enrollment").FloatAt(0); v != 100 {
			t.Fatalf("enrollment = %v, want 100", v)
		}
		if v, _ := vacancies.Column("vacancies").FloatAt(0); v != 20 {
			t.Fatalf("vacancies = %v, want 20", v)
		}
	})

	t.Run("only attempts above cutoff survive", func(t *testing.T) {
		mc := readProcessed(t, c, "iti_marks_and_cutoffs")
		if mc.NumRows() != 1 {
			t.Fatalf("rows = %d, want 1", mc.NumRows())
		}
		if mc.Column("aadhar_no").StringAt(0) != "000000000000" {
			t.Fatalf("wrong row survived: %q", mc.Column("aadhar_no").StringAt(0))
		}
		if mc.Column("social_category").StringAt(0) != "UR" {
			t.Fatalf("category not refactored: %q", mc.Column("social_category").StringAt(0))
		}
	})
}

func TestCanonicalDistrict(t *testing.T) {
	cases := map[string]string{
		"Anugul":        "Angul",
		"Baleswar":      "Balasore",
		"Jagatsingpur":  "Jagatsinghpur",
		" Cuttack ":     "Cuttack",
		"Angul":         "Angul",
		"Jagatsinghpur": "Jagatsinghpur",
	}
	for in, want := range cases {
		if got := enrich.CanonicalDistrict(in); got != want {
			t.Fatalf("CanonicalDistrict(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRefactorSocialCategory(t *testing.T) {
	cases := []struct {
		name     string
		category string
		orphan   bool
		gc       bool
		pwd      bool
		es       bool
		ews      bool
		want     string
	}{
		{"orphan beats everything", "SC", true, true, true, true, true, "ORPHAN"},
		{"gc beats pwd", "ST", false, true, true, false, false, "GC"},
		{"pwd beats es", "General", false, false, true, true, false, "PWD"},
		{"es beats ews", "General", false, false, false, true, true, "ES"},
		{"ews", "General", false, false, false, false, true, "EWS"},
		{"general folds to UR", "General", false, false, false, false, false, "UR"},
		{"obc folds to UR", "OBC/SEBC", false, false, false, false, false, "UR"},
		{"sc", "SC (Scheduled Caste)", false, false, false, false, false, "SC"},
		{"st", "ST (Scheduled Tribe)", false, false, false, false, false, "ST"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := enrich.RefactorSocialCategory(tc.category, tc.orphan, tc.gc, tc.pwd, tc.es, tc.ews)
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}
