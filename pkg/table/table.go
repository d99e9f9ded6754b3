package table

import (
	"fmt"
	"strconv"
	"strings"
)

// A Table is an ordered collection of equal-length Series plus free-form
// metadata (used, for example, to carry CRS declarations from geometry files).
type Table struct {
	cols []*Series
	meta map[string]string
}

// New builds a Table from columns, enforcing equal lengths and unique names.
func New(cols ...*Series) (*Table, error) {
	if len(cols) == 0 {
		return &Table{}, nil
	}
	n := cols[0].Len()
	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		if c.Len() != n {
			return nil, fmt.Errorf("column %q has %d rows, want %d", c.Name, c.Len(), n)
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("duplicate column %q", c.Name)
		}
		seen[c.Name] = true
	}
	return &Table{cols: cols}, nil
}

// NumRows returns the row count (0 for an empty table).
func (t *Table) NumRows() int {
	if len(t.cols) == 0 {
		return 0
	}
	return t.cols[0].Len()
}

// NumCols returns the column count.
func (t *Table) NumCols() int { return len(t.cols) }

// Names returns the column names in declaration order.
func (t *Table) Names() []string {
	out := make([]string, len(t.cols))
	for i, c := range t.cols {
		out[i] = c.Name
	}
	return out
}

// Column returns the named column, or nil when absent.
func (t *Table) Column(name string) *Series {
	for _, c := range t.cols {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Columns returns the column slice in declaration order.
func (t *Table) Columns() []*Series { return t.cols }

// SetMeta records a metadata key; the table owns the map lazily.
func (t *Table) SetMeta(key, value string) {
	if t.meta == nil {
		t.meta = make(map[string]string)
	}
	t.meta[key] = value
}

// Meta returns the metadata value for key, or "".
func (t *Table) Meta(key string) string { return t.meta[key] }

// nullLike reports whether a raw cell should be treated as missing. These are
// the sentinel strings the SAMS portal emits for absent values.
func nullLike(s string) bool {
	switch strings.TrimSpace(s) {
	case "", "NA", "-", "--":
		return true
	}
	return false
}

// FromRecords builds a typed Table from string records, inferring each
// column's type: all-integer columns become int64, all-numeric become
// float64, everything else stays string. Null-like cells become missing.
// Hints force a column to a given kind regardless of inference.
func FromRecords(names []string, records [][]string, hints map[string]Kind) (*Table, error) {
	nrows := len(records)
	cols := make([]*Series, 0, len(names))

	for j, name := range names {
		raw := make([]string, nrows)
		missing := make([]bool, nrows)
		anyMissing := false
		for i, rec := range records {
			if j >= len(rec) || nullLike(rec[j]) {
				missing[i] = true
				anyMissing = true
				continue
			}
			raw[i] = strings.TrimSpace(rec[j])
		}

		kind, forced := hints[name]
		if !forced {
			kind = inferKind(raw, missing)
		}

		var mask []bool
		if anyMissing {
			mask = missing
		}

		col, err := buildColumn(name, kind, raw, missing, mask)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}

	return New(cols...)
}

func inferKind(raw []string, missing []bool) Kind {
	allInt, allFloat := true, true
	seen := false
	for i, v := range raw {
		if missing[i] {
			continue
		}
		seen = true
		if allInt {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				allInt = false
			}
		}
		if allFloat {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				allFloat = false
			}
		}
		if !allInt && !allFloat {
			return KindString
		}
	}
	if !seen {
		return KindString
	}
	if allInt {
		return KindInt
	}
	if allFloat {
		return KindFloat
	}
	return KindString
}

func buildColumn(name string, kind Kind, raw []string, missing []bool, mask []bool) (*Series, error) {
	n := len(raw)
	switch kind {
	case KindInt:
		data := make([]int64, n)
		for i, v := range raw {
			if missing[i] {
				continue
			}
			x, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("column %q row %d: %q is not an integer", name, i, v)
			}
			data[i] = x
		}
		return NewSeries(name, data, mask)
	case KindFloat:
		data := make([]float64, n)
		for i, v := range raw {
			if missing[i] {
				continue
			}
			x, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("column %q row %d: %q is not a number", name, i, v)
			}
			data[i] = x
		}
		return NewSeries(name, data, mask)
	case KindBool:
		data := make([]bool, n)
		for i, v := range raw {
			if missing[i] {
				continue
			}
			x, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("column %q row %d: %q is not a bool", name, i, v)
			}
			data[i] = x
		}
		return NewSeries(name, data, mask)
	default:
		data := make([]string, n)
		copy(data, raw)
		return NewSeries(name, data, mask)
	}
}
