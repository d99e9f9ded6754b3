package table

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"
)

const parquetRoot = "table"

type parquetSchemaNode struct {
	Tag    string              `json:"Tag"`
	Fields []parquetSchemaNode `json:"Fields,omitempty"`
}

func parquetFieldTag(c *Series) string {
	var typ string
	switch c.Kind() {
	case KindInt:
		typ = "type=INT64"
	case KindFloat:
		typ = "type=DOUBLE"
	case KindBool:
		typ = "type=BOOLEAN"
	default:
		typ = "type=BYTE_ARRAY, convertedtype=UTF8"
	}
	return fmt.Sprintf("name=%s, %s, repetitiontype=OPTIONAL", c.Name, typ)
}

// WriteParquet writes the table as a SNAPPY-compressed parquet file,
// replacing any existing file at path. A single writer goroutine keeps the
// output byte-stable for identical input tables.
func WriteParquet(path string, t *Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	schema := parquetSchemaNode{
		Tag: fmt.Sprintf("name=%s, repetitiontype=REQUIRED", parquetRoot),
	}
	for _, c := range t.Columns() {
		schema.Fields = append(schema.Fields, parquetSchemaNode{Tag: parquetFieldTag(c)})
	}
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	pw, err := writer.NewJSONWriter(string(schemaJSON), fw, 1)
	if err != nil {
		_ = fw.Close()
		return fmt.Errorf("create parquet writer: %w", err)
	}
	pw.RowGroupSize = 128 * 1024 * 1024
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	row := make(map[string]any, t.NumCols())
	for i := 0; i < t.NumRows(); i++ {
		for k := range row {
			delete(row, k)
		}
		for _, c := range t.Columns() {
			if v := c.Value(i); v != nil {
				row[c.Name] = v
			}
		}
		b, err := json.Marshal(row)
		if err != nil {
			_ = fw.Close()
			return fmt.Errorf("marshal row %d: %w", i, err)
		}
		if err := pw.Write(string(b)); err != nil {
			_ = fw.Close()
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		_ = fw.Close()
		return fmt.Errorf("finish parquet write: %w", err)
	}
	return fw.Close()
}

// ReadParquet loads a parquet file written by WriteParquet back into a Table.
func ReadParquet(path string) (*Table, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() {
		_ = fr.Close()
	}()

	pr, err := reader.NewParquetColumnReader(fr, 1)
	if err != nil {
		return nil, fmt.Errorf("open parquet reader: %w", err)
	}
	defer pr.ReadStop()

	num := int(pr.GetNumRows())
	var cols []*Series
	for _, inPath := range pr.SchemaHandler.ValueColumns {
		vals, _, dls, err := pr.ReadColumnByPath(inPath, int64(num))
		if err != nil {
			return nil, fmt.Errorf("read column %s: %w", inPath, err)
		}
		name := columnName(pr.SchemaHandler.InPathToExPath[inPath], inPath)
		col, err := seriesFromParquet(name, num, vals, dls)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}

	return New(cols...)
}

func columnName(exPath, inPath string) string {
	p := exPath
	if p == "" {
		p = inPath
	}
	if i := strings.LastIndex(p, "\x01"); i >= 0 {
		return p[i+1:]
	}
	if i := strings.LastIndex(p, "."); i >= 0 {
		return p[i+1:]
	}
	return p
}

func seriesFromParquet(name string, num int, vals []any, dls []int32) (*Series, error) {
	missing := make([]bool, num)
	cells := make([]any, num)
	vi := 0
	for i := 0; i < num; i++ {
		defined := i < len(dls) && dls[i] > 0
		if !defined {
			missing[i] = true
			if len(vals) == len(dls) {
				vi++
			}
			continue
		}
		if vi >= len(vals) {
			missing[i] = true
			continue
		}
		if vals[vi] == nil {
			missing[i] = true
		} else {
			cells[i] = vals[vi]
		}
		vi++
	}

	var sample any
	for _, c := range cells {
		if c != nil {
			sample = c
			break
		}
	}

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

	switch sample.(type) {
	case int64, int32:
		data := make([]int64, num)
		for i, c := range cells {
			switch v := c.(type) {
			case int64:
				data[i] = v
			case int32:
				data[i] = int64(v)
			}
		}
		return NewSeries(name, data, mask)
	case float64, float32:
		data := make([]float64, num)
		for i, c := range cells {
			switch v := c.(type) {
			case float64:
				data[i] = v
			case float32:
				data[i] = float64(v)
			}
		}
		return NewSeries(name, data, mask)
	case bool:
		data := make([]bool, num)
		for i, c := range cells {
			if v, ok := c.(bool); ok {
				data[i] = v
			}
		}
		return NewSeries(name, data, mask)
	default:
		data := make([]string, num)
		for i, c := range cells {
			if v, ok := c.(string); ok {
				data[i] = v
			} else if c != nil {
				data[i] = fmt.Sprint(c)
			}
		}
		return NewSeries(name, data, mask)
	}
}
