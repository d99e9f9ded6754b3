package mirror

// The mirror schema keeps every portal field as text except academic_year,
// which the loader filters on. Interpretation happens downstream in the
// extract stage, never at mirror time.
const mirrorDDL = `
CREATE TABLE IF NOT EXISTS students (
  barcode TEXT,
  aadhar_no TEXT,
  student_name TEXT,
  gender TEXT,
  district TEXT,
  block TEXT,
  pin_code TEXT,
  social_category TEXT,
  annual_income TEXT,
  highest_qualification TEXT,
  mark_data TEXT,
  sams_code TEXT,
  reported_institute TEXT,
  reported_branch_or_trade TEXT,
  institute_district TEXT,
  type_of_institute TEXT,
  phase TEXT,
  admission_status TEXT,
  enrollment_status TEXT,
  applied_status TEXT,
  application_status TEXT,
  gc TEXT,
  ph TEXT,
  es TEXT,
  ews TEXT,
  orphan TEXT,
  module TEXT,
  academic_year INTEGER
);

CREATE TABLE IF NOT EXISTS institutes (
  sams_code TEXT,
  ncvtmis_code TEXT,
  academic_year INTEGER,
  module TEXT,
  institute_name TEXT,
  district TEXT,
  type_of_institute TEXT,
  admission_type TEXT,
  branch TEXT,
  trade TEXT,
  strength TEXT,
  cutoff TEXT,
  enrollment TEXT
);

CREATE INDEX IF NOT EXISTS idx_students_slice ON students (module, academic_year);
CREATE INDEX IF NOT EXISTS idx_institutes_slice ON institutes (module, academic_year);
`

var studentColumns = []string{
	"barcode", "aadhar_no", "student_name", "gender",
	"district", "block", "pin_code", "social_category",
	"annual_income", "highest_qualification", "mark_data",
	"sams_code", "reported_institute", "reported_branch_or_trade",
	"institute_district", "type_of_institute", "phase",
	"admission_status", "enrollment_status", "applied_status",
	"application_status", "gc", "ph", "es", "ews", "orphan",
	"module", "academic_year",
}

var instituteColumns = []string{
	"sams_code", "ncvtmis_code", "academic_year", "module",
	"institute_name", "district", "type_of_institute",
	"admission_type", "branch", "trade",
	"strength", "cutoff", "enrollment",
}
