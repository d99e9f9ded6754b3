package table

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
)

// MetaCRS is the metadata key under which ReadGeoJSON preserves the source
// file's CRS member, verbatim. Reprojection is the caller's concern.
const MetaCRS = "crs"

// ReadGeoJSON parses a GeoJSON FeatureCollection into a table of geometries
// plus attributes. The geometry column holds WKT; feature properties become
// columns in sorted name order.
func ReadGeoJSON(r io.Reader) (*Table, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read geojson: %w", err)
	}

	// The geojson package drops foreign members, so probe for crs separately.
	var envelope struct {
		CRS json.RawMessage `json:"crs"`
	}
	_ = json.Unmarshal(b, &envelope)

	fc, err := geojson.UnmarshalFeatureCollection(b)
	if err != nil {
		return nil, fmt.Errorf("parse feature collection: %w", err)
	}

	n := len(fc.Features)
	keys := map[string]bool{}
	for _, f := range fc.Features {
		for k := range f.Properties {
			keys[k] = true
		}
	}
	names := make([]string, 0, len(keys))
	for k := range keys {
		names = append(names, k)
	}
	sort.Strings(names)

	geoms := make([]string, n)
	geomMissing := make([]bool, n)
	for i, f := range fc.Features {
		if f.Geometry == nil {
			geomMissing[i] = true
			continue
		}
		geoms[i] = wkt.MarshalString(f.Geometry)
	}
	cols := []*Series{MustSeries("geometry", geoms, geomMissing)}

	for _, name := range names {
		vals := make([]string, n)
		missing := make([]bool, n)
		for i, f := range fc.Features {
			v, ok := f.Properties[name]
			if !ok || v == nil {
				missing[i] = true
				continue
			}
			vals[i] = fmt.Sprint(v)
		}
		cols = append(cols, attributeColumn(name, vals, missing))
	}

	t, err := New(cols...)
	if err != nil {
		return nil, err
	}
	if len(envelope.CRS) > 0 {
		t.SetMeta(MetaCRS, string(envelope.CRS))
	}
	return t, nil
}

func attributeColumn(name string, vals []string, missing []bool) *Series {
	kind := inferKind(vals, missing)
	anyMissing := false
	for _, m := range missing {
		if m {
			anyMissing = true
			break
		}
	}
	var mask []bool
	if anyMissing {
		mask = missing
	}
	col, err := buildColumn(name, kind, vals, missing, mask)
	if err != nil {
		// Inference already validated every cell; fall back to strings.
		col = MustSeries(name, vals, mask)
	}
	return col
}
