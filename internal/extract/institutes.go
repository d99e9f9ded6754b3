package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/odisha-policy-lab/sams-pipeline/internal/catalog"
	"github.com/odisha-policy-lab/sams-pipeline/internal/loader"
	"github.com/odisha-policy-lab/sams-pipeline/internal/modules"
	"github.com/odisha-policy-lab/sams-pipeline/internal/report"
	"github.com/odisha-policy-lab/sams-pipeline/pkg/table"
)

// runInstitutes extracts the institute-side interim tables from the JSON
// columns of the raw institutes table. Only ITI publishes cutoffs. Failures
// are recorded per dataset; the student-side tables are unaffected.
func (s *Stage) runInstitutes(ctx context.Context, entry catalog.DatasetEntry, m modules.Module) {
	if m == modules.PDIS {
		// The portal has no institute-side data for PDIS.
		return
	}

	w := s.window(m)
	institutes, err := loader.LoadRelational(ctx, s.Catalog, entry, loader.Query{
		Table:   "institutes",
		Module:  m.String(),
		YearMin: w.Min,
		YearMax: w.Max,
	}, columnHints)
	if err != nil {
		// One source table feeds every institute-side dataset.
		s.fail(m.Key()+"_institutes_strength", err)
		s.fail(m.Key()+"_institutes_enrollments", err)
		if m == modules.ITI {
			s.fail("iti_institutes_cutoffs", err)
		}
		return
	}

	strength, badStrength := decodeStrength(institutes)
	enrollment, badEnrollment := decodeInstituteEnrollments(institutes)
	if badStrength+badEnrollment > 0 {
		s.Report.Add(report.Warning{
			Kind:   report.KindDataQuality,
			Source: m.Key() + "_institutes_strength",
			Detail: "unparseable strength/enrollment payloads",
			Count:  badStrength + badEnrollment,
		})
	}
	s.Log.Info("institutes extracted",
		zap.String("module", m.String()),
		zap.Int("strength_rows", len(strength)),
		zap.Int("enrollment_rows", len(enrollment)),
	)

	if st, err := strengthTable(strength); err != nil {
		s.fail(m.Key()+"_institutes_strength", err)
	} else if err := s.writeDataset(m.Key()+"_institutes_strength", st); err != nil {
		s.fail(m.Key()+"_institutes_strength", err)
	}
	if et, err := instituteEnrollmentTable(enrollment); err != nil {
		s.fail(m.Key()+"_institutes_enrollments", err)
	} else if err := s.writeDataset(m.Key()+"_institutes_enrollments", et); err != nil {
		s.fail(m.Key()+"_institutes_enrollments", err)
	}

	if m == modules.ITI {
		cutoffs, badCutoffs := decodeCutoffs(institutes)
		if badCutoffs > 0 {
			s.Report.Add(report.Warning{
				Kind:   report.KindDataQuality,
				Source: "iti_institutes_cutoffs",
				Detail: "unparseable cutoff payloads",
				Count:  badCutoffs,
			})
		}
		if ct, err := cutoffTable(cutoffs); err != nil {
			s.fail("iti_institutes_cutoffs", err)
		} else if err := s.writeDataset("iti_institutes_cutoffs", ct); err != nil {
			s.fail("iti_institutes_cutoffs", err)
		}
	}
}

// decodeStrength expands the per-row strength payload, an array of objects
// mapping seat category to count, into one row per (trade, category).
func decodeStrength(t *table.Table) ([]StrengthRow, int) {
	var out []StrengthRow
	bad := 0
	forEachInstitute(t, func(i int, str func(string) string, year int64) {
		payload := str("strength")
		if payload == "" {
			return
		}
		var objs []map[string]any
		if err := json.Unmarshal([]byte(payload), &objs); err != nil {
			bad++
			return
		}
		for _, obj := range objs {
			for _, category := range sortedKeys(obj) {
				seats, ok := asInt(obj[category])
				if !ok {
					continue
				}
				out = append(out, StrengthRow{
					SAMSCode:        str("sams_code"),
					InstituteName:   str("institute_name"),
					District:        str("district"),
					TypeOfInstitute: str("type_of_institute"),
					AcademicYear:    year,
					Trade:           str("trade"),
					Branch:          str("branch"),
					Category:        category,
					Strength:        seats,
				})
			}
		}
	})
	return out, bad
}

// decodeCutoffs expands the cutoff payload: each element carries a
// SelectionStage plus applicant-type keys whose values are cutoff marks.
// Applicant types encode category, gender and locality separated by
// underscores ("UR_Male_Local"); a Qual key scopes the element to one
// qualification ladder rung.
func decodeCutoffs(t *table.Table) ([]CutoffRow, int) {
	var out []CutoffRow
	bad := 0
	forEachInstitute(t, func(i int, str func(string) string, year int64) {
		payload := str("cutoff")
		if payload == "" {
			return
		}
		var objs []map[string]any
		if err := json.Unmarshal([]byte(payload), &objs); err != nil {
			bad++
			return
		}
		for _, obj := range objs {
			stage := stageNumber(fmt.Sprint(obj["SelectionStage"]))
			qual := ""
			if q, ok := obj["Qual"].(string); ok {
				qual = NormalizeQualification(q)
			}
			for _, key := range sortedKeys(obj) {
				if key == "SelectionStage" || key == "Qual" {
					continue
				}
				cutoff, ok := asFloat(obj[key])
				if !ok {
					continue
				}
				row := CutoffRow{
					SAMSCode:       str("sams_code"),
					AcademicYear:   year,
					Trade:          str("trade"),
					SelectionStage: stage,
					ApplicantType:  key,
					Qualification:  qual,
					Cutoff:         cutoff,
				}
				row.SocialCategory, row.Gender, row.Local = splitApplicantType(key)
				out = append(out, row)
			}
		}
	})
	return out, bad
}

// decodeInstituteEnrollments expands the enrollment payload, shaped like the
// strength payload, into one row per (trade, category).
func decodeInstituteEnrollments(t *table.Table) ([]InstituteEnrollmentRow, int) {
	var out []InstituteEnrollmentRow
	bad := 0
	forEachInstitute(t, func(i int, str func(string) string, year int64) {
		payload := str("enrollment")
		if payload == "" {
			return
		}
		var objs []map[string]any
		if err := json.Unmarshal([]byte(payload), &objs); err != nil {
			bad++
			return
		}
		for _, obj := range objs {
			for _, category := range sortedKeys(obj) {
				n, ok := asInt(obj[category])
				if !ok {
					continue
				}
				out = append(out, InstituteEnrollmentRow{
					SAMSCode:     str("sams_code"),
					AcademicYear: year,
					Trade:        str("trade"),
					Category:     category,
					Enrollment:   n,
				})
			}
		}
	})
	return out, bad
}

func forEachInstitute(t *table.Table, fn func(i int, str func(string) string, year int64)) {
	for i := 0; i < t.NumRows(); i++ {
		str := func(col string) string {
			c := t.Column(col)
			if c == nil {
				return ""
			}
			return c.StringAt(i)
		}
		var year int64
		if c := t.Column("academic_year"); c != nil {
			if v, ok := c.IntAt(i); ok {
				year = v
			}
		}
		fn(i, str, year)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func asInt(v any) (int64, bool) {
	switch x := v.(type) {
	case float64:
		return int64(x), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		return n, err == nil
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}

// stageNumber pulls the trailing digits out of values like "Stage2" or "2".
func stageNumber(s string) int64 {
	end := len(s)
	start := end
	for start > 0 && s[start-1] >= '0' && s[start-1] <= '9' {
		start--
	}
	if start == end {
		return -1
	}
	n, err := strconv.ParseInt(s[start:end], 10, 64)
	if err != nil {
		return -1
	}
	return n
}

func splitApplicantType(s string) (category, gender string, local bool) {
	parts := strings.Split(s, "_")
	if len(parts) > 0 {
		category = parts[0]
	}
	for _, p := range parts[1:] {
		switch strings.ToLower(p) {
		case "male":
			gender = "Male"
		case "female":
			gender = "Female"
		case "local":
			local = true
		case "nonlocal", "non-local":
			local = false
		}
	}
	return category, gender, local
}

func strengthTable(rows []StrengthRow) (*table.Table, error) {
	n := len(rows)
	var (
		sams     = make([]string, n)
		name     = make([]string, n)
		district = make([]string, n)
		itype    = make([]string, n)
		year     = make([]int64, n)
		trade    = make([]string, n)
		branch   = make([]string, n)
		category = make([]string, n)
		strength = make([]int64, n)
	)
	for i, r := range rows {
		sams[i] = r.SAMSCode
		name[i] = r.InstituteName
		district[i] = r.District
		itype[i] = r.TypeOfInstitute
		year[i] = r.AcademicYear
		trade[i] = r.Trade
		branch[i] = r.Branch
		category[i] = r.Category
		strength[i] = r.Strength
	}
	return table.New(
		table.MustSeries("sams_code", sams, nil),
		table.MustSeries("institute_name", name, nil),
		table.MustSeries("district", district, nil),
		table.MustSeries("type_of_institute", itype, nil),
		table.MustSeries("academic_year", year, nil),
		table.MustSeries("trade", trade, nil),
		table.MustSeries("branch", branch, nil),
		table.MustSeries("category", category, nil),
		table.MustSeries("strength", strength, nil),
	)
}

func cutoffTable(rows []CutoffRow) (*table.Table, error) {
	n := len(rows)
	var (
		sams      = make([]string, n)
		year      = make([]int64, n)
		trade     = make([]string, n)
		stage     = make([]int64, n)
		applicant = make([]string, n)
		category  = make([]string, n)
		gender    = make([]string, n)
		local     = make([]bool, n)
		qual      = make([]string, n)
		cutoff    = make([]float64, n)
	)
	for i, r := range rows {
		sams[i] = r.SAMSCode
		year[i] = r.AcademicYear
		trade[i] = r.Trade
		stage[i] = r.SelectionStage
		applicant[i] = r.ApplicantType
		category[i] = r.SocialCategory
		gender[i] = r.Gender
		local[i] = r.Local
		qual[i] = r.Qualification
		cutoff[i] = r.Cutoff
	}
	return table.New(
		table.MustSeries("sams_code", sams, nil),
		table.MustSeries("academic_year", year, nil),
		table.MustSeries("trade", trade, nil),
		table.MustSeries("selection_stage", stage, nil),
		table.MustSeries("applicant_type", applicant, nil),
		table.MustSeries("social_category", category, nil),
		table.MustSeries("gender", gender, nil),
		table.MustSeries("local", local, nil),
		table.MustSeries("qual", qual, nil),
		table.MustSeries("cutoff", cutoff, nil),
	)
}

func instituteEnrollmentTable(rows []InstituteEnrollmentRow) (*table.Table, error) {
	n := len(rows)
	var (
		sams       = make([]string, n)
		year       = make([]int64, n)
		trade      = make([]string, n)
		category   = make([]string, n)
		enrollment = make([]int64, n)
	)
	for i, r := range rows {
		sams[i] = r.SAMSCode
		year[i] = r.AcademicYear
		trade[i] = r.Trade
		category[i] = r.Category
		enrollment[i] = r.Enrollment
	}
	return table.New(
		table.MustSeries("sams_code", sams, nil),
		table.MustSeries("academic_year", year, nil),
		table.MustSeries("trade", trade, nil),
		table.MustSeries("category", category, nil),
		table.MustSeries("enrollment", enrollment, nil),
	)
}
