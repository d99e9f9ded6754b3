// Package exhibit materializes the named report workbooks from processed and
// interim tables. Sheet names and order are fixed so downstream report
// renderers can address them by position.
package exhibit

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/odisha-policy-lab/sams-pipeline/internal/catalog"
	"github.com/odisha-policy-lab/sams-pipeline/internal/loader"
	"github.com/odisha-policy-lab/sams-pipeline/internal/report"
	"github.com/odisha-policy-lab/sams-pipeline/pkg/table"
)

// Sheet is one worksheet of an exhibit workbook: a header row plus data rows.
type Sheet struct {
	Name    string
	Columns []string
	Rows    [][]any
}

// Builder produces the sheets of one exhibit from its upstream datasets.
type Builder struct {
	Name  string
	Deps  []string
	Build func(deps map[string]*table.Table) ([]Sheet, error)
}

// Stage writes every registered exhibit whose upstream datasets exist. A
// missing dependency skips only that exhibit and is reported by name.
type Stage struct {
	Catalog *catalog.Catalog
	Report  *report.Report
	Log     *zap.Logger
}

// Run materializes the named exhibits, or all registered exhibits when names
// is empty. Registry order is preserved.
func (s *Stage) Run(ctx context.Context, names []string) error {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}

	for _, b := range Registry() {
		if len(names) > 0 && !want[b.Name] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.runExhibit(ctx, b); err != nil {
			s.Report.AddFailure("exhibit "+b.Name, err)
			s.Log.Error("exhibit failed", zap.String("exhibit", b.Name), zap.Error(err))
		}
	}
	return nil
}

func (s *Stage) runExhibit(ctx context.Context, b Builder) error {
	entry, err := s.Catalog.ResolveExhibit(b.Name)
	if err != nil {
		return err
	}

	deps := make(map[string]*table.Table, len(b.Deps))
	for _, dep := range b.Deps {
		t, err := s.loadDep(ctx, dep)
		if err != nil {
			s.Report.AddSkippedExhibit(b.Name, dep)
			s.Log.Warn("exhibit skipped",
				zap.String("exhibit", b.Name),
				zap.String("missing_dependency", dep),
				zap.Error(err),
			)
			return nil
		}
		deps[dep] = t
	}

	sheets, err := b.Build(deps)
	if err != nil {
		return fmt.Errorf("build %s: %w", b.Name, err)
	}
	path := s.Catalog.AbsPath(entry.Path)
	if err := WriteWorkbook(path, sheets); err != nil {
		return fmt.Errorf("write %s: %w", b.Name, err)
	}
	s.Log.Info("exhibit written",
		zap.String("exhibit", b.Name),
		zap.String("path", entry.Path),
		zap.Int("sheets", len(sheets)),
	)
	return nil
}

func (s *Stage) loadDep(ctx context.Context, name string) (*table.Table, error) {
	entry, err := s.Catalog.Resolve(name)
	if err != nil {
		return nil, err
	}
	return loader.Load(ctx, s.Catalog, entry)
}
