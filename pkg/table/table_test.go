package table_test

import (
	"strings"
	"testing"

	"github.com/odisha-policy-lab/sams-pipeline/pkg/table"
)

func TestFromRecords(t *testing.T) {
	t.Run("infers integer columns", func(t *testing.T) {
		got, err := table.FromRecords(
			[]string{"year", "district"},
			[][]string{{"2019", "Angul"}, {"2020", "Cuttack"}},
			nil,
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.NumRows() != 2 || got.NumCols() != 2 {
			t.Fatalf("unexpected shape: %dx%d", got.NumRows(), got.NumCols())
		}
		if got.Column("year").Kind() != table.KindInt {
			t.Fatalf("year kind = %v, want int", got.Column("year").Kind())
		}
		if v, ok := got.Column("year").IntAt(1); !ok || v != 2020 {
			t.Fatalf("year[1] = %v, %v", v, ok)
		}
	})

	t.Run("mixed numerics become float", func(t *testing.T) {
		got, err := table.FromRecords(
			[]string{"marks"},
			[][]string{{"76"}, {"81.5"}},
			nil,
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Column("marks").Kind() != table.KindFloat {
			t.Fatalf("marks kind = %v, want float", got.Column("marks").Kind())
		}
	})

	t.Run("null-like cells become missing", func(t *testing.T) {
		got, err := table.FromRecords(
			[]string{"income"},
			[][]string{{"48000"}, {"NA"}, {" "}, {"--"}},
			nil,
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		col := got.Column("income")
		if col.Kind() != table.KindInt {
			t.Fatalf("income kind = %v, want int", col.Kind())
		}
		for i, want := range []bool{false, true, true, true} {
			if col.IsMissing(i) != want {
				t.Fatalf("IsMissing(%d) = %v, want %v", i, col.IsMissing(i), want)
			}
		}
	})

	t.Run("hints override inference", func(t *testing.T) {
		got, err := table.FromRecords(
			[]string{"pin_code"},
			[][]string{{"751001"}, {"759122"}},
			map[string]table.Kind{"pin_code": table.KindString},
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Column("pin_code").Kind() != table.KindString {
			t.Fatalf("pin_code kind = %v, want string", got.Column("pin_code").Kind())
		}
	})
}

func TestNew(t *testing.T) {
	t.Run("rejects unequal lengths", func(t *testing.T) {
		a := table.MustSeries("a", []string{"x", "y"}, nil)
		b := table.MustSeries("b", []string{"x"}, nil)
		if _, err := table.New(a, b); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("rejects duplicate names", func(t *testing.T) {
		a := table.MustSeries("a", []string{"x"}, nil)
		b := table.MustSeries("a", []string{"y"}, nil)
		if _, err := table.New(a, b); err == nil {
			t.Fatalf("expected error")
		}
	})
}

func TestCSVRoundTrip(t *testing.T) {
	in := "sams_code,district,strength\n14001,Angul,120\n14002,Cuttack,NA\n"
	got, err := table.ReadCSV(strings.NewReader(in), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var out strings.Builder
	if err := table.WriteCSV(&out, got); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "sams_code,district,strength\n14001,Angul,120\n14002,Cuttack,\n"
	if out.String() != want {
		t.Fatalf("round trip mismatch:\n got %q\nwant %q", out.String(), want)
	}
}

func TestSeriesAccessors(t *testing.T) {
	s := table.MustSeries("pct", []float64{76, 0}, []bool{false, true})
	if v, ok := s.FloatAt(0); !ok || v != 76 {
		t.Fatalf("FloatAt(0) = %v, %v", v, ok)
	}
	if _, ok := s.FloatAt(1); ok {
		t.Fatalf("FloatAt(1) should report missing")
	}
	if s.StringAt(1) != "" {
		t.Fatalf("missing value should render empty, got %q", s.StringAt(1))
	}
}
