// Package extract implements the raw → interim stage: it pulls student and
// institute rows for each module out of the sqlite mirror, reconciles status
// fields, parses embedded mark payloads and writes the interim parquet tables
// declared in the catalog.
package extract

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/odisha-policy-lab/sams-pipeline/internal/catalog"
	"github.com/odisha-policy-lab/sams-pipeline/internal/loader"
	"github.com/odisha-policy-lab/sams-pipeline/internal/modules"
	"github.com/odisha-policy-lab/sams-pipeline/internal/report"
	"github.com/odisha-policy-lab/sams-pipeline/pkg/table"
)

// RawDataset is the catalog name of the sqlite mirror every extraction reads.
const RawDataset = "sams"

// identifier columns that must never be inferred as numbers.
var columnHints = map[string]table.Kind{
	"aadhar_no":    table.KindString,
	"barcode":      table.KindString,
	"pin_code":     table.KindString,
	"sams_code":    table.KindString,
	"ncvtmis_code": table.KindString,
}

// Stage runs raw → interim extraction. Each module writes a disjoint set of
// interim datasets, so modules fail independently.
type Stage struct {
	Catalog *catalog.Catalog
	Report  *report.Report
	Log     *zap.Logger

	// Years overrides the per-module default window when Max is non-zero.
	Years modules.Window
}

func (s *Stage) window(m modules.Module) modules.Window {
	if s.Years.Max != 0 {
		return s.Years
	}
	return m.Years()
}

// Run extracts every requested module. Failures are recorded against the
// dataset that broke and do not abort siblings; Run errors only when the
// catalog itself is unusable.
func (s *Stage) Run(ctx context.Context, mods []modules.Module) error {
	entry, err := s.Catalog.Resolve(RawDataset)
	if err != nil {
		return err
	}

	for _, m := range mods {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.runModule(ctx, entry, m)
	}
	return nil
}

func (s *Stage) fail(dataset string, err error) {
	s.Report.AddFailure(dataset, err)
	s.Log.Error("interim dataset failed", zap.String("dataset", dataset), zap.Error(err))
}

func (s *Stage) runModule(ctx context.Context, entry catalog.DatasetEntry, m modules.Module) {
	w := s.window(m)
	students, err := loader.LoadRelational(ctx, s.Catalog, entry, loader.Query{
		Table:   "students",
		Module:  m.String(),
		YearMin: w.Min,
		YearMax: w.Max,
	}, columnHints)
	if err != nil {
		s.fail(m.Key()+"_enrollments", err)
		s.fail(m.Key()+"_marks", err)
		return
	}

	rows := s.decodeStudents(students, m)
	deduped, groups := Dedupe(rows)
	if groups > 0 {
		s.Report.Add(report.Warning{
			Kind:   report.KindDataQuality,
			Source: m.Key() + "_enrollments",
			Detail: "duplicate (aadhar_no, academic_year) groups",
			Count:  groups,
		})
	}
	s.Log.Info("students extracted",
		zap.String("module", m.String()),
		zap.Int("raw_rows", len(rows)),
		zap.Int("rows", len(deduped)),
		zap.Int("duplicate_groups", groups),
	)

	if enrollments, err := enrollmentTable(deduped); err != nil {
		s.fail(m.Key()+"_enrollments", err)
	} else if err := s.writeDataset(m.Key()+"_enrollments", enrollments); err != nil {
		s.fail(m.Key()+"_enrollments", err)
	}

	if marks, err := s.marksTable(deduped, m); err != nil {
		s.fail(m.Key()+"_marks", err)
	} else if err := s.writeDataset(m.Key()+"_marks", marks); err != nil {
		s.fail(m.Key()+"_marks", err)
	}

	s.runInstitutes(ctx, entry, m)
}

// decodeStudents coerces the loosely-typed raw table into Enrollment rows,
// reconciling status fields and recording anomalies as it goes.
func (s *Stage) decodeStudents(t *table.Table, m modules.Module) []Enrollment {
	str := func(col string, i int) string {
		c := t.Column(col)
		if c == nil {
			return ""
		}
		return c.StringAt(i)
	}
	integer := func(col string, i int) int64 {
		c := t.Column(col)
		if c == nil {
			return 0
		}
		if v, ok := c.IntAt(i); ok {
			return v
		}
		if v, ok := c.FloatAt(i); ok {
			return int64(v)
		}
		return 0
	}

	anomalies := 0
	rows := make([]Enrollment, 0, t.NumRows())
	for i := 0; i < t.NumRows(); i++ {
		status := ReconcileStatus(
			str("applied_status", i),
			str("application_status", i),
			str("admission_status", i),
			str("enrollment_status", i),
		)
		if len(status.Anomalies) > 0 {
			anomalies++
		}
		rows = append(rows, Enrollment{
			AadharNo:              str("aadhar_no", i),
			Barcode:               str("barcode", i),
			StudentName:           str("student_name", i),
			Gender:                str("gender", i),
			District:              str("district", i),
			Block:                 str("block", i),
			PinCode:               str("pin_code", i),
			SocialCategory:        str("social_category", i),
			AnnualIncome:          str("annual_income", i),
			HighestQualification:  NormalizeQualification(str("highest_qualification", i)),
			SAMSCode:              str("sams_code", i),
			ReportedInstitute:     str("reported_institute", i),
			ReportedBranchOrTrade: str("reported_branch_or_trade", i),
			InstituteDistrict:     str("institute_district", i),
			TypeOfInstitute:       str("type_of_institute", i),
			Phase:                 integer("phase", i),
			AcademicYear:          integer("academic_year", i),
			Applied:               status.Applied,
			Admitted:              status.Admitted,
			GC:                    yes(str("gc", i)),
			PWD:                   yes(str("ph", i)),
			ES:                    yes(str("es", i)),
			EWS:                   yes(str("ews", i)),
			Orphan:                yes(str("orphan", i)),
			Anomalies:             status.Anomalies,
			markData:              str("mark_data", i),
		})
	}
	if anomalies > 0 {
		s.Report.Add(report.Warning{
			Kind:   report.KindDataQuality,
			Source: m.Key() + "_enrollments",
			Detail: "status reconciliation anomalies",
			Count:  anomalies,
		})
	}
	return rows
}

func enrollmentTable(rows []Enrollment) (*table.Table, error) {
	n := len(rows)
	var (
		aadhar    = make([]string, n)
		barcode   = make([]string, n)
		name      = make([]string, n)
		gender    = make([]string, n)
		district  = make([]string, n)
		block     = make([]string, n)
		pin       = make([]string, n)
		category  = make([]string, n)
		income    = make([]string, n)
		qual      = make([]string, n)
		sams      = make([]string, n)
		inst      = make([]string, n)
		trade     = make([]string, n)
		instDist  = make([]string, n)
		instType  = make([]string, n)
		phase     = make([]int64, n)
		year      = make([]int64, n)
		applied   = make([]bool, n)
		admitted  = make([]bool, n)
		gc        = make([]bool, n)
		pwd       = make([]bool, n)
		es        = make([]bool, n)
		ews       = make([]bool, n)
		orphan    = make([]bool, n)
		anomaly   = make([]string, n)
		anomalyNA = make([]bool, n)
	)
	for i, r := range rows {
		aadhar[i] = r.AadharNo
		barcode[i] = r.Barcode
		name[i] = r.StudentName
		gender[i] = r.Gender
		district[i] = r.District
		block[i] = r.Block
		pin[i] = r.PinCode
		category[i] = r.SocialCategory
		income[i] = r.AnnualIncome
		qual[i] = r.HighestQualification
		sams[i] = r.SAMSCode
		inst[i] = r.ReportedInstitute
		trade[i] = r.ReportedBranchOrTrade
		instDist[i] = r.InstituteDistrict
		instType[i] = r.TypeOfInstitute
		phase[i] = r.Phase
		year[i] = r.AcademicYear
		applied[i] = r.Applied
		admitted[i] = r.Admitted
		gc[i] = r.GC
		pwd[i] = r.PWD
		es[i] = r.ES
		ews[i] = r.EWS
		orphan[i] = r.Orphan
		anomaly[i] = r.AnomalyTag()
		anomalyNA[i] = anomaly[i] == ""
	}
	return table.New(
		table.MustSeries("aadhar_no", aadhar, nil),
		table.MustSeries("barcode", barcode, nil),
		table.MustSeries("student_name", name, nil),
		table.MustSeries("gender", gender, nil),
		table.MustSeries("district", district, nil),
		table.MustSeries("block", block, nil),
		table.MustSeries("pin_code", pin, nil),
		table.MustSeries("social_category", category, nil),
		table.MustSeries("annual_income", income, nil),
		table.MustSeries("highest_qualification", qual, nil),
		table.MustSeries("sams_code", sams, nil),
		table.MustSeries("reported_institute", inst, nil),
		table.MustSeries("reported_branch_or_trade", trade, nil),
		table.MustSeries("institute_district", instDist, nil),
		table.MustSeries("type_of_institute", instType, nil),
		table.MustSeries("phase", phase, nil),
		table.MustSeries("academic_year", year, nil),
		table.MustSeries("applied", applied, nil),
		table.MustSeries("is_admitted", admitted, nil),
		table.MustSeries("gc", gc, nil),
		table.MustSeries("pwd", pwd, nil),
		table.MustSeries("es", es, nil),
		table.MustSeries("ews", ews, nil),
		table.MustSeries("orphan", orphan, nil),
		table.MustSeries("anomaly", anomaly, anomalyNA),
	)
}

// marksTable parses every student's embedded mark payload into one row per
// exam. Unparseable payloads and out-of-range marks become data quality
// warnings, never fatal errors.
func (s *Stage) marksTable(rows []Enrollment, m modules.Module) (*table.Table, error) {
	var (
		aadhar  []string
		year    []int64
		exam    []string
		etype   []string
		board   []string
		passing []int64
		passNA  []bool
		secured []float64
		total   []float64
		pct     []float64
	)
	badPayloads, droppedMarks := 0, 0
	for _, r := range rows {
		recs, dropped, err := ParseMarkData(r.markData)
		droppedMarks += dropped
		if err != nil {
			badPayloads++
			continue
		}
		for _, rec := range recs {
			aadhar = append(aadhar, r.AadharNo)
			year = append(year, r.AcademicYear)
			exam = append(exam, NormalizeQualification(rec.ExamName))
			etype = append(etype, rec.ExamType)
			board = append(board, rec.Board)
			passing = append(passing, int64(rec.YearOfPassing))
			passNA = append(passNA, rec.YearOfPassing == 0)
			secured = append(secured, rec.SecuredMarks)
			total = append(total, rec.TotalMarks)
			pct = append(pct, rec.Percentage)
		}
	}
	if badPayloads > 0 {
		s.Report.Add(report.Warning{
			Kind:   report.KindDataQuality,
			Source: m.Key() + "_marks",
			Detail: "unparseable mark_data payloads",
			Count:  badPayloads,
		})
	}
	if droppedMarks > 0 {
		s.Report.Add(report.Warning{
			Kind:   report.KindDataQuality,
			Source: m.Key() + "_marks",
			Detail: "mark records with invalid or out-of-range marks",
			Count:  droppedMarks,
		})
	}
	return table.New(
		table.MustSeries("aadhar_no", aadhar, nil),
		table.MustSeries("academic_year", year, nil),
		table.MustSeries("exam_name", exam, nil),
		table.MustSeries("exam_type", etype, nil),
		table.MustSeries("board", board, nil),
		table.MustSeries("year_of_passing", passing, passNA),
		table.MustSeries("secured_marks", secured, nil),
		table.MustSeries("total_marks", total, nil),
		table.MustSeries("percentage", pct, nil),
	)
}

// writeDataset resolves name in the catalog and overwrites its parquet file.
func (s *Stage) writeDataset(name string, t *table.Table) error {
	entry, err := s.Catalog.Resolve(name)
	if err != nil {
		return err
	}
	if entry.Type != catalog.TypeColumnar {
		return fmt.Errorf("dataset %q: stage writes columnar outputs, catalog declares %q", name, entry.Type)
	}
	if err := table.WriteParquet(s.Catalog.AbsPath(entry.Path), t); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	s.Log.Info("interim dataset written",
		zap.String("dataset", name),
		zap.Int("rows", t.NumRows()),
	)
	return nil
}
