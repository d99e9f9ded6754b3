package exhibit

import (
	"fmt"
	"math"
	"sort"

	"github.com/odisha-policy-lab/sams-pipeline/pkg/table"
)

// Registry lists every exhibit in materialization order. Sheet names inside
// each builder are part of the downstream contract and must not change.
func Registry() []Builder {
	return []Builder{
		{
			Name:  "students_enrollments",
			Deps:  []string{"iti_enrollments", "diploma_enrollments"},
			Build: buildStudentsEnrollments,
		},
		{
			Name:  "institutes_basics",
			Deps:  []string{"iti_institutes_strength"},
			Build: buildInstitutesBasics,
		},
		{
			Name:  "vacancies",
			Deps:  []string{"iti_vacancies", "diploma_vacancies"},
			Build: buildVacancies,
		},
		{
			Name:  "cutoffs",
			Deps:  []string{"iti_institutes_cutoffs"},
			Build: buildCutoffs,
		},
	}
}

// requireColumns rejects an upstream table whose schema drifted away from the
// columns a builder reads, so one bad parquet fails its exhibit through the
// report instead of panicking the stage.
func requireColumns(dataset string, t *table.Table, names ...string) error {
	for _, name := range names {
		if t.Column(name) == nil {
			return fmt.Errorf("dataset %s: missing column %q", dataset, name)
		}
	}
	return nil
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }

func sortedYears[T any](m map[int64]T) []int64 {
	years := make([]int64, 0, len(m))
	for y := range m {
		years = append(years, y)
	}
	sort.Slice(years, func(i, j int) bool { return years[i] < years[j] })
	return years
}

func countByYear(t *table.Table) map[int64]int64 {
	out := make(map[int64]int64)
	for i := 0; i < t.NumRows(); i++ {
		c := t.Column("academic_year")
		if c == nil {
			break
		}
		if y, ok := c.IntAt(i); ok {
			out[y]++
		} else if v, ok := c.FloatAt(i); ok {
			out[int64(v)]++
		}
	}
	return out
}

func buildStudentsEnrollments(deps map[string]*table.Table) ([]Sheet, error) {
	iti := countByYear(deps["iti_enrollments"])
	diploma := countByYear(deps["diploma_enrollments"])

	merged := make(map[int64]bool)
	for y := range iti {
		merged[y] = true
	}
	for y := range diploma {
		merged[y] = true
	}
	overTime := Sheet{
		Name:    "Enrollments over time",
		Columns: []string{"Year", "ITI", "Diploma"},
	}
	for _, y := range sortedYears(merged) {
		if y <= 2017 {
			continue
		}
		overTime.Rows = append(overTime.Rows, []any{y, iti[y], diploma[y]})
	}

	sheets := []Sheet{overTime}
	for _, mod := range []struct {
		sheet   string
		dataset string
	}{
		{"ITI Enrollments over time by type (%)", "iti_enrollments"},
		{"Diploma Enrollments over time by type (%)", "diploma_enrollments"},
	} {
		sheets = append(sheets, enrollmentsByType(mod.sheet, deps[mod.dataset]))
	}
	return sheets, nil
}

// enrollmentsByType renders Govt/Pvt shares of enrollment per year.
func enrollmentsByType(name string, t *table.Table) Sheet {
	type split struct{ govt, pvt int64 }
	byYear := make(map[int64]*split)
	for i := 0; i < t.NumRows(); i++ {
		yc := t.Column("academic_year")
		if yc == nil {
			break
		}
		y, ok := yc.IntAt(i)
		if !ok {
			if v, okF := yc.FloatAt(i); okF {
				y = int64(v)
			} else {
				continue
			}
		}
		if y <= 2017 {
			continue
		}
		s := byYear[y]
		if s == nil {
			s = &split{}
			byYear[y] = s
		}
		switch {
		case t.Column("type_of_institute") == nil:
		case t.Column("type_of_institute").StringAt(i) == "Govt.":
			s.govt++
		case t.Column("type_of_institute").StringAt(i) == "Pvt.":
			s.pvt++
		}
	}

	sheet := Sheet{
		Name:    name,
		Columns: []string{"Year", "Pvt (%)", "Govt (%)", "Num. students"},
	}
	for _, y := range sortedYears(byYear) {
		s := byYear[y]
		total := s.govt + s.pvt
		if total == 0 {
			continue
		}
		sheet.Rows = append(sheet.Rows, []any{
			y,
			round1(float64(s.pvt) / float64(total) * 100),
			round1(float64(s.govt) / float64(total) * 100),
			total,
		})
	}
	return sheet
}

// buildInstitutesBasics renders one row per distinct institute with its
// district, type and number of trades offered.
func buildInstitutesBasics(deps map[string]*table.Table) ([]Sheet, error) {
	t := deps["iti_institutes_strength"]
	if err := requireColumns("iti_institutes_strength", t,
		"sams_code", "institute_name", "district", "type_of_institute", "trade"); err != nil {
		return nil, err
	}
	type info struct {
		name     string
		district string
		itype    string
		trades   map[string]bool
	}
	institutes := make(map[string]*info)
	for i := 0; i < t.NumRows(); i++ {
		code := t.Column("sams_code").StringAt(i)
		if code == "" {
			continue
		}
		in := institutes[code]
		if in == nil {
			in = &info{
				name:     t.Column("institute_name").StringAt(i),
				district: t.Column("district").StringAt(i),
				itype:    t.Column("type_of_institute").StringAt(i),
				trades:   make(map[string]bool),
			}
			institutes[code] = in
		}
		if trade := t.Column("trade").StringAt(i); trade != "" {
			in.trades[trade] = true
		}
	}

	codes := make([]string, 0, len(institutes))
	for code := range institutes {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	sheet := Sheet{
		Name:    "Institutes",
		Columns: []string{"SAMS code", "Institute", "District", "Type", "Num. trades"},
	}
	for _, code := range codes {
		in := institutes[code]
		sheet.Rows = append(sheet.Rows, []any{
			code, in.name, in.district, in.itype, int64(len(in.trades)),
		})
	}
	return []Sheet{sheet}, nil
}

// buildVacancies renders aggregate vacancy ratios by institute type and year,
// one sheet per module.
func buildVacancies(deps map[string]*table.Table) ([]Sheet, error) {
	var sheets []Sheet
	for _, mod := range []struct {
		sheet   string
		dataset string
	}{
		{"ITI vacancies by type", "iti_vacancies"},
		{"Diploma vacancies by type", "diploma_vacancies"},
	} {
		t := deps[mod.dataset]
		if err := requireColumns(mod.dataset, t,
			"academic_year", "type_of_institute", "vacancies", "strength"); err != nil {
			return nil, err
		}
		type key struct {
			year  int64
			itype string
		}
		type agg struct{ vacancies, strength int64 }
		byKey := make(map[key]*agg)
		for i := 0; i < t.NumRows(); i++ {
			y, _ := t.Column("academic_year").IntAt(i)
			k := key{year: y, itype: t.Column("type_of_institute").StringAt(i)}
			a := byKey[k]
			if a == nil {
				a = &agg{}
				byKey[k] = a
			}
			if v, ok := t.Column("vacancies").IntAt(i); ok {
				a.vacancies += v
			}
			if v, ok := t.Column("strength").IntAt(i); ok {
				a.strength += v
			}
		}

		keys := make([]key, 0, len(byKey))
		for k := range byKey {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			if keys[i].year != keys[j].year {
				return keys[i].year < keys[j].year
			}
			return keys[i].itype < keys[j].itype
		})

		sheet := Sheet{
			Name:    mod.sheet,
			Columns: []string{"Year", "Type", "Vacancies", "Strength", "Vacancy ratio"},
		}
		for _, k := range keys {
			a := byKey[k]
			ratio := 0.0
			if a.strength > 0 {
				ratio = round3(float64(a.vacancies) / float64(a.strength))
			}
			sheet.Rows = append(sheet.Rows, []any{k.year, k.itype, a.vacancies, a.strength, ratio})
		}
		sheets = append(sheets, sheet)
	}
	return sheets, nil
}

// buildCutoffs renders mean published cutoffs by social category and gender.
func buildCutoffs(deps map[string]*table.Table) ([]Sheet, error) {
	t := deps["iti_institutes_cutoffs"]
	if err := requireColumns("iti_institutes_cutoffs", t,
		"cutoff", "social_category", "gender"); err != nil {
		return nil, err
	}
	type key struct {
		category string
		gender   string
	}
	type agg struct {
		sum float64
		n   int
	}
	byKey := make(map[key]*agg)
	for i := 0; i < t.NumRows(); i++ {
		v, ok := t.Column("cutoff").FloatAt(i)
		if !ok {
			continue
		}
		k := key{
			category: t.Column("social_category").StringAt(i),
			gender:   t.Column("gender").StringAt(i),
		}
		a := byKey[k]
		if a == nil {
			a = &agg{}
			byKey[k] = a
		}
		a.sum += v
		a.n++
	}

	keys := make([]key, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].category != keys[j].category {
			return keys[i].category < keys[j].category
		}
		return keys[i].gender < keys[j].gender
	})

	sheet := Sheet{
		Name:    "ITI cutoffs by category and gender",
		Columns: []string{"Social category", "Gender", "Mean cutoff", "Num. cutoffs"},
	}
	for _, k := range keys {
		a := byKey[k]
		sheet.Rows = append(sheet.Rows, []any{
			k.category, k.gender, round1(a.sum / float64(a.n)), int64(a.n),
		})
	}
	return []Sheet{sheet}, nil
}
