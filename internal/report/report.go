// Package report collects the non-fatal outcomes of a pipeline run: data
// quality warnings, join coverage warnings, per-dataset failures and skipped
// exhibits. Stages append; the run logs one summary at the end.
package report

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WarningKind classifies a non-fatal finding.
type WarningKind string

const (
	// KindDataQuality covers reconciliation mismatches, unparseable mark
	// payloads, duplicate groups and out-of-range values.
	KindDataQuality WarningKind = "data_quality"

	// KindJoinCoverage reports a reference join whose unmatched fraction
	// exceeded the configured threshold.
	KindJoinCoverage WarningKind = "join_coverage"
)

// Warning is one recorded finding. Count carries the number of affected rows
// when a single finding covers many records.
type Warning struct {
	Kind   WarningKind
	Source string
	Detail string
	Count  int
}

// Report accumulates findings across stages. Safe for concurrent use; module
// extractions within a stage may run in parallel.
type Report struct {
	RunID string

	mu       sync.Mutex
	warnings []Warning
	failures map[string]error
	skipped  map[string]string
}

func New() *Report {
	return &Report{
		RunID:    uuid.NewString(),
		failures: make(map[string]error),
		skipped:  make(map[string]string),
	}
}

// Add records a warning.
func (r *Report) Add(w Warning) {
	if w.Count == 0 {
		w.Count = 1
	}
	r.mu.Lock()
	r.warnings = append(r.warnings, w)
	r.mu.Unlock()
}

// AddFailure records a dataset whose materialization failed. Sibling datasets
// keep running; the run exits non-zero.
func (r *Report) AddFailure(dataset string, err error) {
	r.mu.Lock()
	r.failures[dataset] = err
	r.mu.Unlock()
}

// AddSkippedExhibit records an exhibit skipped because an upstream dependency
// is missing or failed.
func (r *Report) AddSkippedExhibit(exhibit, dependency string) {
	r.mu.Lock()
	r.skipped[exhibit] = dependency
	r.mu.Unlock()
}

// Warnings returns a copy of all recorded warnings.
func (r *Report) Warnings() []Warning {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Warning, len(r.warnings))
	copy(out, r.warnings)
	return out
}

// CountByKind sums warning row counts per kind.
func (r *Report) CountByKind() map[WarningKind]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[WarningKind]int)
	for _, w := range r.warnings {
		out[w.Kind] += w.Count
	}
	return out
}

// Failed reports whether any dataset failed.
func (r *Report) Failed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.failures) > 0
}

// Failures returns the failed datasets and their errors.
func (r *Report) Failures() map[string]error {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]error, len(r.failures))
	for k, v := range r.failures {
		out[k] = v
	}
	return out
}

// SkippedExhibits returns exhibit name to missing dependency.
func (r *Report) SkippedExhibits() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.skipped))
	for k, v := range r.skipped {
		out[k] = v
	}
	return out
}

// Log writes the run summary. Every warning category, failure and skipped
// exhibit appears by name; nothing is silently omitted.
func (r *Report) Log(log *zap.Logger) {
	counts := r.CountByKind()
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		log.Info("warnings recorded",
			zap.String("run_id", r.RunID),
			zap.String("kind", k),
			zap.Int("rows", counts[WarningKind(k)]),
		)
	}

	for dataset, err := range r.Failures() {
		log.Error("dataset failed",
			zap.String("run_id", r.RunID),
			zap.String("dataset", dataset),
			zap.Error(err),
		)
	}
	for exhibit, dep := range r.SkippedExhibits() {
		log.Warn("exhibit skipped",
			zap.String("run_id", r.RunID),
			zap.String("exhibit", exhibit),
			zap.String("missing_dependency", dep),
		)
	}
}

// Summary renders a short human-readable digest for CLI output.
func (r *Report) Summary() string {
	counts := r.CountByKind()
	return fmt.Sprintf("run %s: %d data quality, %d join coverage, %d failures, %d skipped exhibits",
		r.RunID,
		counts[KindDataQuality],
		counts[KindJoinCoverage],
		len(r.Failures()),
		len(r.SkippedExhibits()),
	)
}
