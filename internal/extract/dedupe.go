package extract

import "sort"

type dedupeKey struct {
	aadhar string
	year   int64
}

// Dedupe collapses rows sharing (aadhar_no, academic_year) to the last
// occurrence in input order, matching the portal's resubmission semantics.
// Output order is (academic_year, aadhar_no) so reruns are byte-stable.
// The second return is the number of duplicate groups found.
func Dedupe(rows []Enrollment) ([]Enrollment, int) {
	last := make(map[dedupeKey]int, len(rows))
	counts := make(map[dedupeKey]int, len(rows))
	for i, r := range rows {
		k := dedupeKey{aadhar: r.AadharNo, year: r.AcademicYear}
		last[k] = i
		counts[k]++
	}

	groups := 0
	for _, n := range counts {
		if n > 1 {
			groups++
		}
	}

	out := make([]Enrollment, 0, len(last))
	for _, i := range last {
		out = append(out, rows[i])
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AcademicYear != out[j].AcademicYear {
			return out[i].AcademicYear < out[j].AcademicYear
		}
		return out[i].AadharNo < out[j].AadharNo
	})
	return out, groups
}
