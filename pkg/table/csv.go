package table

import (
	"encoding/csv"
	"fmt"
	"io"
)

// ReadCSV parses delimited text into a Table. The first record is the header.
// Column types are inferred unless overridden by hints.
func ReadCSV(r io.Reader, hints map[string]Kind) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	var records [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(records)+2, err)
		}
		records = append(records, rec)
	}

	return FromRecords(header, records, hints)
}

// WriteCSV writes the table with a header row. Missing values render as
// empty cells. Output is deterministic for identical tables.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Names()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	rec := make([]string, t.NumCols())
	for i := 0; i < t.NumRows(); i++ {
		for j, col := range t.Columns() {
			rec[j] = col.StringAt(i)
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
