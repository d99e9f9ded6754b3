package extract

import "strings"

// Enrollment is one cleaned student application/enrollment row headed for the
// interim layer. One row per (aadhar_no, academic_year) after deduplication.
type Enrollment struct {
	AadharNo              string
	Barcode               string
	StudentName           string
	Gender                string
	District              string
	Block                 string
	PinCode               string
	SocialCategory        string
	AnnualIncome          string
	HighestQualification  string
	SAMSCode              string
	ReportedInstitute     string
	ReportedBranchOrTrade string
	InstituteDistrict     string
	TypeOfInstitute       string
	Phase                 int64
	AcademicYear          int64
	Applied               bool
	Admitted              bool
	GC                    bool
	PWD                   bool
	ES                    bool
	EWS                   bool
	Orphan                bool
	Anomalies             []string

	// markData carries the raw payload to marks extraction; it never reaches
	// the interim tables.
	markData string
}

// AnomalyTag renders the anomaly list for the interim table, empty when the
// record reconciled cleanly.
func (e *Enrollment) AnomalyTag() string {
	return strings.Join(e.Anomalies, ";")
}

// StrengthRow is one (institute, trade, category) seat count.
type StrengthRow struct {
	SAMSCode        string
	InstituteName   string
	District        string
	TypeOfInstitute string
	AcademicYear    int64
	Trade           string
	Branch          string
	Category        string
	Strength        int64
}

// CutoffRow is one admission cutoff cell for an institute/trade.
type CutoffRow struct {
	SAMSCode       string
	AcademicYear   int64
	Trade          string
	SelectionStage int64
	ApplicantType  string
	SocialCategory string
	Gender         string
	Local          bool
	Qualification  string
	Cutoff         float64
}

// InstituteEnrollmentRow is one reported enrollment count per category.
type InstituteEnrollmentRow struct {
	SAMSCode     string
	AcademicYear int64
	Trade        string
	Category     string
	Enrollment   int64
}
