package extract

import "strings"

// Anomaly tags attached to records whose admission-related fields disagree.
// Tagged records stay in the interim tables for audit; they are never dropped
// or silently corrected.
const (
	AnomalyEnrollmentMismatch    = "enrollment_mismatch"
	AnomalyAdmittedWithoutApply  = "admitted_without_application"
	AnomalyAppliedStatusConflict = "applied_status_conflict"
)

// StatusResult is the reconciled view of the four admission-related fields.
type StatusResult struct {
	Applied   bool
	Admitted  bool
	Anomalies []string
}

func yes(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "Yes")
}

// ReconcileStatus folds applied_status/application_status into one applied
// boolean and admission_status/enrollment_status into is_admitted.
// admission_status is authoritative for admission; every disagreement is
// tagged rather than resolved.
func ReconcileStatus(appliedStatus, applicationStatus, admissionStatus, enrollmentStatus string) StatusResult {
	res := StatusResult{
		Admitted: yes(admissionStatus),
	}

	// applied_status and application_status encode the same fact twice.
	a1, a2 := yes(appliedStatus), yes(applicationStatus)
	res.Applied = a1 || a2
	if appliedStatus != "" && applicationStatus != "" && a1 != a2 {
		res.Anomalies = append(res.Anomalies, AnomalyAppliedStatusConflict)
	}

	if enrollmentStatus != "" && yes(enrollmentStatus) != res.Admitted {
		res.Anomalies = append(res.Anomalies, AnomalyEnrollmentMismatch)
	}
	if res.Admitted && !res.Applied {
		res.Anomalies = append(res.Anomalies, AnomalyAdmittedWithoutApply)
	}
	return res
}
