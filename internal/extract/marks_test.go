package extract

import (
	"testing"
)

func TestPercentage(t *testing.T) {
	cases := []struct {
		name    string
		secured float64
		total   float64
		want    float64
		wantErr bool
	}{
		{"cgpa scale", 8, 10, 76.0, false},
		{"plain marks", 76, 100, 76.0, false},
		{"out of 500", 450, 500, 90.0, false},
		{"cgpa overflow", 11, 10, 0, true},
		{"over total", 120, 100, 0, true},
		{"zero total", 50, 0, 0, true},
		{"negative secured", -5, 100, 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Percentage(tc.secured, tc.total)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("Percentage(%v, %v) = %v, want %v", tc.secured, tc.total, got, tc.want)
			}
		})
	}
}

func TestParseMarkData(t *testing.T) {
	t.Run("parses string-encoded numbers", func(t *testing.T) {
		payload := `[{"ExamName":"10th","SecuredMarks":"450","TotalMarks":"500","ExamType":"Annual","YearofPassing":"2018","Board":"BSE"},
			{"ExamName":"12th","SecuredMarks":"8","TotalMarks":"10"}]`
		recs, dropped, err := ParseMarkData(payload)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if dropped != 0 || len(recs) != 2 {
			t.Fatalf("recs=%d dropped=%d", len(recs), dropped)
		}
		if recs[0].Percentage != 90.0 {
			t.Fatalf("percentage[0] = %v", recs[0].Percentage)
		}
		if recs[0].YearOfPassing != 2018 || recs[0].Board != "BSE" {
			t.Fatalf("record[0] = %+v", recs[0])
		}
		if recs[1].Percentage != 76.0 {
			t.Fatalf("cgpa record percentage = %v", recs[1].Percentage)
		}
	})

	t.Run("bad elements are dropped and counted", func(t *testing.T) {
		payload := `[{"ExamName":"10th","SecuredMarks":"abc","TotalMarks":"500"},
			{"ExamName":"12th","SecuredMarks":"600","TotalMarks":"500"},
			{"ExamName":"ITI","SecuredMarks":"380","TotalMarks":"400"}]`
		recs, dropped, err := ParseMarkData(payload)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(recs) != 1 || dropped != 2 {
			t.Fatalf("recs=%d dropped=%d", len(recs), dropped)
		}
	})

	t.Run("invalid json errors", func(t *testing.T) {
		if _, _, err := ParseMarkData("{not json"); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("empty payloads are fine", func(t *testing.T) {
		for _, payload := range []string{"", "[]", "  "} {
			recs, dropped, err := ParseMarkData(payload)
			if err != nil || len(recs) != 0 || dropped != 0 {
				t.Fatalf("payload %q: recs=%d dropped=%d err=%v", payload, len(recs), dropped, err)
			}
		}
	})
}

func TestNormalizeQualification(t *testing.T) {
	cases := map[string]string{
		"BA":             "Graduate and above",
		"b.tech":         "Graduate and above",
		"diploma":        "Diploma",
		"Diploma in Eng": "Diploma",
		"matric":         "10th",
		"10th":           "10th",
		"12th":           "12th",
		"iti":            "ITI",
		"":               "",
	}
	for in, want := range cases {
		if got := NormalizeQualification(in); got != want {
			t.Fatalf("NormalizeQualification(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHighestQualification(t *testing.T) {
	marks := []MarksRecord{
		{ExamName: "10th"},
		{ExamName: "iti"},
	}
	if got := HighestQualification(marks); got != "ITI" {
		t.Fatalf("HighestQualification = %q, want ITI", got)
	}
	marks = []MarksRecord{
		{ExamName: "10th"},
		{ExamName: "12th"},
	}
	if got := HighestQualification(marks); got != "12th" {
		t.Fatalf("HighestQualification = %q, want 12th", got)
	}
}
