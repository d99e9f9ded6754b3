package enrich

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/odisha-policy-lab/sams-pipeline/internal/catalog"
	"github.com/odisha-policy-lab/sams-pipeline/internal/loader"
	"github.com/odisha-policy-lab/sams-pipeline/internal/modules"
	"github.com/odisha-policy-lab/sams-pipeline/internal/report"
	"github.com/odisha-policy-lab/sams-pipeline/pkg/table"
)

// DefaultCoverageThreshold is the unmatched-fraction above which a reference
// join raises a coverage warning.
const DefaultCoverageThreshold = 0.20

// Stage runs interim → processed enrichment. Every output is a full
// overwrite of its catalog-declared parquet path.
type Stage struct {
	Catalog *catalog.Catalog
	Report  *report.Report
	Log     *zap.Logger

	// CoverageThreshold defaults to DefaultCoverageThreshold when zero.
	CoverageThreshold float64
}

func (s *Stage) threshold() float64 {
	if s.CoverageThreshold > 0 {
		return s.CoverageThreshold
	}
	return DefaultCoverageThreshold
}

// Run materializes the processed tables for the requested modules. Each
// output fails independently: a broken upstream aborts only the datasets
// derived from it.
func (s *Stage) Run(ctx context.Context, mods []modules.Module) error {
	for _, m := range mods {
		if err := ctx.Err(); err != nil {
			return err
		}
		if m == modules.PDIS {
			// No processed-layer outputs are defined for PDIS.
			continue
		}

		if err := s.geocodedEnrollments(ctx, m); err != nil {
			s.fail(m.Key()+"_geocoded_enrollments", err)
		}
		if err := s.vacancies(ctx, m); err != nil {
			s.fail(m.Key()+"_vacancies", err)
		}
		if m == modules.ITI {
			if err := s.marksAndCutoffs(ctx); err != nil {
				s.fail("iti_marks_and_cutoffs", err)
			}
		}
	}
	return nil
}

func (s *Stage) fail(dataset string, err error) {
	s.Report.AddFailure(dataset, err)
	s.Log.Error("processed dataset failed", zap.String("dataset", dataset), zap.Error(err))
}

// loadDataset resolves and loads an interim or external dataset by name.
func (s *Stage) loadDataset(ctx context.Context, name string) (*table.Table, error) {
	entry, err := s.Catalog.Resolve(name)
	if err != nil {
		return nil, err
	}
	return loader.Load(ctx, s.Catalog, entry)
}

func (s *Stage) writeDataset(name string, t *table.Table) error {
	entry, err := s.Catalog.Resolve(name)
	if err != nil {
		return err
	}
	if entry.Layer != catalog.LayerProcessed {
		return fmt.Errorf("dataset %q: stage writes processed outputs, catalog declares layer %q", name, entry.Layer)
	}
	if err := table.WriteParquet(s.Catalog.AbsPath(entry.Path), t); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	s.Log.Info("processed dataset written",
		zap.String("dataset", name),
		zap.Int("rows", t.NumRows()),
	)
	return nil
}

// checkCoverage records a coverage warning when too many fact rows found no
// match in the named reference join. Unmatched rows are always retained.
func (s *Stage) checkCoverage(join string, unmatched, total int) {
	if total == 0 {
		return
	}
	ratio := float64(unmatched) / float64(total)
	if ratio > s.threshold() {
		s.Report.Add(report.Warning{
			Kind:   report.KindJoinCoverage,
			Source: join,
			Detail: fmt.Sprintf("%.0f%% of fact rows unmatched", ratio*100),
			Count:  unmatched,
		})
		s.Log.Warn("low join coverage",
			zap.String("join", join),
			zap.Int("unmatched", unmatched),
			zap.Int("total", total),
		)
	}
}

func colStr(t *table.Table, name string, i int) string {
	c := t.Column(name)
	if c == nil {
		return ""
	}
	return c.StringAt(i)
}

func colInt(t *table.Table, name string, i int) int64 {
	c := t.Column(name)
	if c == nil {
		return 0
	}
	if v, ok := c.IntAt(i); ok {
		return v
	}
	if v, ok := c.FloatAt(i); ok {
		return int64(v)
	}
	return 0
}

func colFloat(t *table.Table, name string, i int) (float64, bool) {
	c := t.Column(name)
	if c == nil {
		return 0, false
	}
	return c.FloatAt(i)
}

func colBool(t *table.Table, name string, i int) bool {
	c := t.Column(name)
	if c == nil || c.IsMissing(i) {
		return false
	}
	d, ok := c.Bools()
	if !ok {
		return false
	}
	return d[i]
}
