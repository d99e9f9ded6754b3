// Package pipeline orders the materialization stages and carries one shared
// run report through them.
package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/odisha-policy-lab/sams-pipeline/internal/catalog"
	"github.com/odisha-policy-lab/sams-pipeline/internal/enrich"
	"github.com/odisha-policy-lab/sams-pipeline/internal/exhibit"
	"github.com/odisha-policy-lab/sams-pipeline/internal/extract"
	"github.com/odisha-policy-lab/sams-pipeline/internal/modules"
	"github.com/odisha-policy-lab/sams-pipeline/internal/report"
)

// Options selects what a run materializes.
type Options struct {
	// Modules defaults to all supported modules when empty.
	Modules []modules.Module
	// Years clips the per-module academic-year windows when Max is non-zero.
	Years modules.Window
	// CoverageThreshold is the unmatched-join fraction above which a
	// coverage warning is raised; zero selects the enrich default.
	CoverageThreshold float64
	// Exhibits names the exhibits to build; empty builds all of them.
	Exhibits []string

	Log *zap.Logger
}

// Run materializes raw → interim → processed → exhibits in order. Dataset
// failures are recorded in the returned report rather than aborting the run;
// Run itself errors only on catalog problems or cancellation.
func Run(ctx context.Context, c *catalog.Catalog, opts Options) (*report.Report, error) {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	mods := opts.Modules
	if len(mods) == 0 {
		mods = modules.All()
	}
	rep := report.New()
	log.Info("pipeline run starting",
		zap.String("run_id", rep.RunID),
		zap.Int("modules", len(mods)),
	)

	ex := &extract.Stage{Catalog: c, Report: rep, Log: log, Years: opts.Years}
	if err := ex.Run(ctx, mods); err != nil {
		return rep, err
	}

	en := &enrich.Stage{Catalog: c, Report: rep, Log: log, CoverageThreshold: opts.CoverageThreshold}
	if err := en.Run(ctx, mods); err != nil {
		return rep, err
	}

	xb := &exhibit.Stage{Catalog: c, Report: rep, Log: log}
	if err := xb.Run(ctx, opts.Exhibits); err != nil {
		return rep, err
	}

	rep.Log(log)
	return rep, nil
}
