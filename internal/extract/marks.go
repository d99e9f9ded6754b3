package extract

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// cgpaTotal is the sentinel total_marks value marking a CGPA-scale record.
// A CGPA point converts to 9.5 percent under the CBSE equivalence.
const cgpaTotal = 10

// Percentage converts secured/total marks to a percentage. total == 10 means
// the record is on the CGPA scale and converts as secured * 9.5. The result
// must land in [0, 100]; anything else is a data quality problem, not a value.
func Percentage(secured, total float64) (float64, error) {
	if total <= 0 {
		return 0, fmt.Errorf("total marks %v is not positive", total)
	}
	var pct float64
	if total == cgpaTotal {
		pct = secured * 9.5
	} else {
		pct = secured / total * 100
	}
	if pct < 0 || pct > 100 {
		return 0, fmt.Errorf("percentage %v out of range [0,100] (secured=%v total=%v)", pct, secured, total)
	}
	return pct, nil
}

// MarksRecord is one exam result parsed out of a student's mark_data payload.
type MarksRecord struct {
	ExamName      string
	ExamType      string
	Board         string
	YearOfPassing int
	SecuredMarks  float64
	TotalMarks    float64
	Percentage    float64
}

// rawMark mirrors one element of the portal's mark_data JSON array. All
// numeric fields arrive string-encoded.
type rawMark struct {
	ExamName      string `json:"ExamName"`
	SecuredMarks  string `json:"SecuredMarks"`
	TotalMarks    string `json:"TotalMarks"`
	ExamType      string `json:"ExamType"`
	YearOfPassing string `json:"YearofPassing"`
	Board         string `json:"Board"`
}

// ParseMarkData parses a student's embedded mark_data payload into typed
// records. Elements with unparseable or out-of-range marks are dropped and
// counted in the second return; a payload that is not valid JSON errors.
func ParseMarkData(payload string) ([]MarksRecord, int, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" || payload == "[]" {
		return nil, 0, nil
	}
	var raws []rawMark
	if err := json.Unmarshal([]byte(payload), &raws); err != nil {
		return nil, 0, fmt.Errorf("parse mark_data: %w", err)
	}

	var out []MarksRecord
	dropped := 0
	for _, r := range raws {
		secured, err1 := strconv.ParseFloat(strings.TrimSpace(r.SecuredMarks), 64)
		total, err2 := strconv.ParseFloat(strings.TrimSpace(r.TotalMarks), 64)
		if err1 != nil || err2 != nil {
			dropped++
			continue
		}
		pct, err := Percentage(secured, total)
		if err != nil {
			dropped++
			continue
		}
		rec := MarksRecord{
			ExamName:     strings.TrimSpace(r.ExamName),
			ExamType:     strings.TrimSpace(r.ExamType),
			Board:        strings.TrimSpace(r.Board),
			SecuredMarks: secured,
			TotalMarks:   total,
			Percentage:   pct,
		}
		if y, err := strconv.Atoi(strings.TrimSpace(r.YearOfPassing)); err == nil && y >= 1970 && y <= 2025 {
			rec.YearOfPassing = y
		}
		out = append(out, rec)
	}
	return out, dropped, nil
}

// NormalizeQualification folds the portal's free-text qualification names
// into the fixed ladder used for cutoff matching.
func NormalizeQualification(s string) string {
	q := strings.ToLower(strings.TrimSpace(s))
	switch {
	case q == "":
		return ""
	case strings.Contains(q, "diploma"):
		return "Diploma"
	case q == "iti":
		return "ITI"
	case q == "matric", q == "10th":
		return "10th"
	case q == "12th", q == "+2", q == "hsc":
		return "12th"
	case q == "ba", q == "ma", q == "bsc", q == "msc", q == "bcom", q == "mcom",
		strings.HasPrefix(q, "b."), strings.HasPrefix(q, "m."),
		strings.Contains(q, "graduate"):
		return "Graduate and above"
	}
	return strings.TrimSpace(s)
}

// qualificationRank orders the qualification ladder; higher outranks lower.
func qualificationRank(q string) int {
	switch q {
	case "10th":
		return 1
	case "12th":
		return 2
	case "ITI":
		return 3
	case "Diploma":
		return 4
	case "Graduate and above":
		return 5
	}
	return 0
}

// HighestQualification returns the top-ranked exam name across a student's
// parsed marks, after normalization. Empty when no exam is recognized.
func HighestQualification(marks []MarksRecord) string {
	best := ""
	bestRank := 0
	for _, m := range marks {
		q := NormalizeQualification(m.ExamName)
		if r := qualificationRank(q); r > bestRank {
			best, bestRank = q, r
		}
	}
	return best
}
