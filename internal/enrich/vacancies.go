package enrich

import (
	"context"
	"sort"

	"github.com/odisha-policy-lab/sams-pipeline/internal/modules"
	"github.com/odisha-policy-lab/sams-pipeline/pkg/table"
)

type tradeKey struct {
	samsCode string
	year     int64
	trade    string
}

// vacancies compares enrollment counts against total seat strength per
// (institute, year, trade). Counts are recomputed from the interim tables on
// every run, never carried over.
func (s *Stage) vacancies(ctx context.Context, m modules.Module) error {
	enrollments, err := s.loadDataset(ctx, m.Key()+"_enrollments")
	if err != nil {
		return err
	}
	strength, err := s.loadDataset(ctx, m.Key()+"_institutes_strength")
	if err != nil {
		return err
	}

	counts := make(map[tradeKey]int64)
	for i := 0; i < enrollments.NumRows(); i++ {
		k := tradeKey{
			samsCode: colStr(enrollments, "sams_code", i),
			year:     colInt(enrollments, "academic_year", i),
			trade:    colStr(enrollments, "reported_branch_or_trade", i),
		}
		if k.samsCode == "" {
			continue
		}
		counts[k]++
	}

	type vacancyRow struct {
		key             tradeKey
		instituteName   string
		district        string
		typeOfInstitute string
		enrollment      int64
		strength        int64
	}
	var rows []vacancyRow
	for i := 0; i < strength.NumRows(); i++ {
		if colStr(strength, "category", i) != "Total" {
			continue
		}
		k := tradeKey{
			samsCode: colStr(strength, "sams_code", i),
			year:     colInt(strength, "academic_year", i),
			trade:    colStr(strength, "trade", i),
		}
		enrolled, ok := counts[k]
		if !ok {
			// Inner join: only trades with observed enrollments are reported.
			continue
		}
		rows = append(rows, vacancyRow{
			key:             k,
			instituteName:   colStr(strength, "institute_name", i),
			district:        CanonicalDistrict(colStr(strength, "district", i)),
			typeOfInstitute: colStr(strength, "type_of_institute", i),
			enrollment:      enrolled,
			strength:        colInt(strength, "strength", i),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i].key, rows[j].key
		if a.year != b.year {
			return a.year < b.year
		}
		if a.samsCode != b.samsCode {
			return a.samsCode < b.samsCode
		}
		return a.trade < b.trade
	})

	n := len(rows)
	var (
		sams       = make([]string, n)
		year       = make([]int64, n)
		trade      = make([]string, n)
		name       = make([]string, n)
		district   = make([]string, n)
		itype      = make([]string, n)
		enrollment = make([]int64, n)
		seats      = make([]int64, n)
		vacancies  = make([]int64, n)
		ratio      = make([]float64, n)
		ratioNA    = make([]bool, n)
	)
	for i, r := range rows {
		sams[i] = r.key.samsCode
		year[i] = r.key.year
		trade[i] = r.key.trade
		name[i] = r.instituteName
		district[i] = r.district
		itype[i] = r.typeOfInstitute
		enrollment[i] = r.enrollment
		seats[i] = r.strength
		vacancies[i] = r.strength - r.enrollment
		if r.strength > 0 {
			ratio[i] = float64(vacancies[i]) / float64(r.strength)
		} else {
			ratioNA[i] = true
		}
	}
	out, err := table.New(
		table.MustSeries("sams_code", sams, nil),
		table.MustSeries("academic_year", year, nil),
		table.MustSeries("trade", trade, nil),
		table.MustSeries("institute_name", name, nil),
		table.MustSeries("district", district, nil),
		table.MustSeries("type_of_institute", itype, nil),
		table.MustSeries("enrollment", enrollment, nil),
		table.MustSeries("strength", seats, nil),
		table.MustSeries("vacancies", vacancies, nil),
		table.MustSeries("vacancy_ratio", ratio, ratioNA),
	)
	if err != nil {
		return err
	}
	return s.writeDataset(m.Key()+"_vacancies", out)
}
