package enrich

import (
	"context"
	"sort"

	"github.com/odisha-policy-lab/sams-pipeline/pkg/table"
)

// cutoffKey is the full join key between a student's exam attempt and an
// institute's published cutoff cell.
type cutoffKey struct {
	samsCode string
	year     int64
	trade    string
	category string
	gender   string
	stage    int64
	local    bool
	qual     string
}

type marksCutoffRow struct {
	aadharNo   string
	year       int64
	samsCode   string
	trade      string
	category   string
	gender     string
	local      bool
	qual       string
	percentage float64
	cutoff     float64
	hasCutoff  bool
}

// marksAndCutoffs joins ITI marks with enrollment demographics, then
// left-joins the institute cutoffs on the full admission key and keeps the
// attempts that cleared their cutoff.
func (s *Stage) marksAndCutoffs(ctx context.Context) error {
	marks, err := s.loadDataset(ctx, "iti_marks")
	if err != nil {
		return err
	}
	enrollments, err := s.loadDataset(ctx, "iti_enrollments")
	if err != nil {
		return err
	}
	cutoffs, err := s.loadDataset(ctx, "iti_institutes_cutoffs")
	if err != nil {
		return err
	}

	// Demographics per (aadhar_no, academic_year); interim data is already
	// deduplicated on that key.
	type demo struct {
		samsCode string
		trade    string
		category string
		gender   string
		phase    int64
		local    bool
	}
	type studentKey struct {
		aadhar string
		year   int64
	}
	demos := make(map[studentKey]demo, enrollments.NumRows())
	for i := 0; i < enrollments.NumRows(); i++ {
		k := studentKey{
			aadhar: colStr(enrollments, "aadhar_no", i),
			year:   colInt(enrollments, "academic_year", i),
		}
		demos[k] = demo{
			samsCode: colStr(enrollments, "sams_code", i),
			trade:    colStr(enrollments, "reported_branch_or_trade", i),
			category: RefactorSocialCategory(
				colStr(enrollments, "social_category", i),
				colBool(enrollments, "orphan", i),
				colBool(enrollments, "gc", i),
				colBool(enrollments, "pwd", i),
				colBool(enrollments, "es", i),
				colBool(enrollments, "ews", i),
			),
			gender: colStr(enrollments, "gender", i),
			phase:  colInt(enrollments, "phase", i),
			local: CanonicalDistrict(colStr(enrollments, "district", i)) ==
				CanonicalDistrict(colStr(enrollments, "institute_district", i)),
		}
	}

	cutoffIdx := make(map[cutoffKey]float64, cutoffs.NumRows())
	for i := 0; i < cutoffs.NumRows(); i++ {
		k := cutoffKey{
			samsCode: colStr(cutoffs, "sams_code", i),
			year:     colInt(cutoffs, "academic_year", i),
			trade:    colStr(cutoffs, "trade", i),
			category: colStr(cutoffs, "social_category", i),
			gender:   colStr(cutoffs, "gender", i),
			stage:    colInt(cutoffs, "selection_stage", i),
			local:    colBool(cutoffs, "local", i),
			qual:     colStr(cutoffs, "qual", i),
		}
		if v, ok := colFloat(cutoffs, "cutoff", i); ok {
			cutoffIdx[k] = v
		}
	}

	var rows []marksCutoffRow
	seen := make(map[cutoffKey]map[string]bool)
	unmatched, total := 0, 0
	for i := 0; i < marks.NumRows(); i++ {
		sk := studentKey{
			aadhar: colStr(marks, "aadhar_no", i),
			year:   colInt(marks, "academic_year", i),
		}
		d, ok := demos[sk]
		if !ok {
			continue
		}
		pct, ok := colFloat(marks, "percentage", i)
		if !ok {
			continue
		}
		total++

		k := cutoffKey{
			samsCode: d.samsCode,
			year:     sk.year,
			trade:    d.trade,
			category: d.category,
			gender:   d.gender,
			stage:    d.phase,
			local:    d.local,
			qual:     colStr(marks, "exam_name", i),
		}
		// Dedupe on the full join key per student.
		if seen[k] == nil {
			seen[k] = make(map[string]bool)
		}
		if seen[k][sk.aadhar] {
			continue
		}
		seen[k][sk.aadhar] = true

		row := marksCutoffRow{
			aadharNo:   sk.aadhar,
			year:       sk.year,
			samsCode:   d.samsCode,
			trade:      d.trade,
			category:   d.category,
			gender:     d.gender,
			local:      d.local,
			qual:       k.qual,
			percentage: pct,
		}
		if cutoff, ok := cutoffIdx[k]; ok {
			row.cutoff, row.hasCutoff = cutoff, true
		} else {
			unmatched++
		}
		rows = append(rows, row)
	}
	s.checkCoverage("iti_marks->iti_institutes_cutoffs", unmatched, total)

	// Keep attempts that cleared their published cutoff.
	cleared := rows[:0]
	for _, r := range rows {
		if r.hasCutoff && r.percentage > r.cutoff {
			cleared = append(cleared, r)
		}
	}
	sort.Slice(cleared, func(i, j int) bool {
		if cleared[i].year != cleared[j].year {
			return cleared[i].year < cleared[j].year
		}
		if cleared[i].aadharNo != cleared[j].aadharNo {
			return cleared[i].aadharNo < cleared[j].aadharNo
		}
		return cleared[i].qual < cleared[j].qual
	})

	n := len(cleared)
	var (
		aadhar   = make([]string, n)
		year     = make([]int64, n)
		sams     = make([]string, n)
		trade    = make([]string, n)
		category = make([]string, n)
		gender   = make([]string, n)
		local    = make([]bool, n)
		qual     = make([]string, n)
		pct      = make([]float64, n)
		cutoff   = make([]float64, n)
	)
	for i, r := range cleared {
		aadhar[i] = r.aadharNo
		year[i] = r.year
		sams[i] = r.samsCode
		trade[i] = r.trade
		category[i] = r.category
		gender[i] = r.gender
		local[i] = r.local
		qual[i] = r.qual
		pct[i] = r.percentage
		cutoff[i] = r.cutoff
	}
	out, err := table.New(
		table.MustSeries("aadhar_no", aadhar, nil),
		table.MustSeries("academic_year", year, nil),
		table.MustSeries("sams_code", sams, nil),
		table.MustSeries("trade", trade, nil),
		table.MustSeries("social_category", category, nil),
		table.MustSeries("gender", gender, nil),
		table.MustSeries("local", local, nil),
		table.MustSeries("qual", qual, nil),
		table.MustSeries("percentage", pct, nil),
		table.MustSeries("cutoff", cutoff, nil),
	)
	if err != nil {
		return err
	}
	return s.writeDataset("iti_marks_and_cutoffs", out)
}
