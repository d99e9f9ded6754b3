package enrich

import (
	"context"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/odisha-policy-lab/sams-pipeline/internal/modules"
	"github.com/odisha-policy-lab/sams-pipeline/pkg/table"
)

type latLong struct {
	lat, long float64
}

// geocodeIndex builds address → coordinates from a geocodes table.
func geocodeIndex(t *table.Table, keyCol string) map[string]latLong {
	idx := make(map[string]latLong, t.NumRows())
	for i := 0; i < t.NumRows(); i++ {
		key := colStr(t, keyCol, i)
		if key == "" {
			continue
		}
		lat, ok1 := colFloat(t, "latitude", i)
		long, ok2 := colFloat(t, "longitude", i)
		if !ok1 || !ok2 {
			continue
		}
		idx[key] = latLong{lat: lat, long: long}
	}
	return idx
}

// geocodedEnrollments joins enrollments against the geocode references and,
// for ITI, computes the student-to-institute distance. Left joins: fact rows
// with no geocode keep missing coordinates.
func (s *Stage) geocodedEnrollments(ctx context.Context, m modules.Module) error {
	enrollments, err := s.loadDataset(ctx, m.Key()+"_enrollments")
	if err != nil {
		return err
	}
	geocodes, err := s.loadDataset(ctx, "geocodes")
	if err != nil {
		return err
	}
	students := geocodeIndex(geocodes, "address")

	var institutes map[string]latLong
	if m == modules.ITI {
		ig, err := s.loadDataset(ctx, "institute_geocodes")
		if err != nil {
			return err
		}
		institutes = geocodeIndex(ig, "sams_code")
	}

	n := enrollments.NumRows()
	var (
		studentLat  = make([]float64, n)
		studentLong = make([]float64, n)
		studentNA   = make([]bool, n)
		instLat     = make([]float64, n)
		instLong    = make([]float64, n)
		instNA      = make([]bool, n)
		distance    = make([]float64, n)
		distanceNA  = make([]bool, n)
		district    = make([]string, n)
		unmatched   = 0
	)
	for i := 0; i < n; i++ {
		district[i] = CanonicalDistrict(colStr(enrollments, "district", i))

		st, ok := students[colStr(enrollments, "pin_code", i)]
		if !ok {
			studentNA[i] = true
			unmatched++
		} else {
			studentLat[i], studentLong[i] = st.lat, st.long
		}

		if institutes == nil {
			instNA[i], distanceNA[i] = true, true
			continue
		}
		in, ok := institutes[colStr(enrollments, "sams_code", i)]
		if !ok {
			instNA[i], distanceNA[i] = true, true
			continue
		}
		instLat[i], instLong[i] = in.lat, in.long
		if studentNA[i] {
			distanceNA[i] = true
			continue
		}
		distance[i] = geo.Distance(
			orb.Point{studentLong[i], studentLat[i]},
			orb.Point{in.long, in.lat},
		) / 1000.0
	}
	s.checkCoverage(m.Key()+"_enrollments->geocodes", unmatched, n)

	cols := make([]*table.Series, 0, enrollments.NumCols()+5)
	for _, c := range enrollments.Columns() {
		if c.Name == "district" {
			cols = append(cols, table.MustSeries("district", district, nil))
			continue
		}
		cols = append(cols, c)
	}
	cols = append(cols,
		table.MustSeries("student_lat", studentLat, studentNA),
		table.MustSeries("student_long", studentLong, studentNA),
	)
	if m == modules.ITI {
		cols = append(cols,
			table.MustSeries("institute_lat", instLat, instNA),
			table.MustSeries("institute_long", instLong, instNA),
			table.MustSeries("distance_km", distance, distanceNA),
		)
	}
	out, err := table.New(cols...)
	if err != nil {
		return err
	}
	return s.writeDataset(m.Key()+"_geocoded_enrollments", out)
}
