// samspipe drives the SAMS research pipeline: mirroring the portal into the
// raw layer and materializing the interim, processed and exhibit layers.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/odisha-policy-lab/sams-pipeline/internal/catalog"
	"github.com/odisha-policy-lab/sams-pipeline/internal/enrich"
	"github.com/odisha-policy-lab/sams-pipeline/internal/exhibit"
	"github.com/odisha-policy-lab/sams-pipeline/internal/extract"
	"github.com/odisha-policy-lab/sams-pipeline/internal/mirror"
	"github.com/odisha-policy-lab/sams-pipeline/internal/modules"
	"github.com/odisha-policy-lab/sams-pipeline/internal/pipeline"
	"github.com/odisha-policy-lab/sams-pipeline/internal/report"
	"github.com/odisha-policy-lab/sams-pipeline/internal/samsapi"
	"github.com/odisha-policy-lab/sams-pipeline/internal/util"
	"github.com/odisha-policy-lab/sams-pipeline/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: %s\n", util.RedactSecrets(err.Error()))
		os.Exit(1)
	}
}

type cli struct {
	catalogPath string
	verbose     bool

	moduleNames []string
	yearMin     int
	yearMax     int

	log *zap.Logger
	cat *catalog.Catalog
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "samspipe",
		Short:         "Materialize the SAMS research datasets and exhibits",
		Version:       version.Current,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.log != nil {
				_ = c.log.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&c.catalogPath, "catalog", "",
		"Path to catalog.yaml (default: search parent directories)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false,
		"Enable debug logging")
	root.PersistentFlags().StringSliceVar(&c.moduleNames, "modules", nil,
		"Modules to process (iti, diploma, pdis; default all)")
	root.PersistentFlags().IntVar(&c.yearMin, "year-min", 0,
		"Clip the academic-year window lower bound")
	root.PersistentFlags().IntVar(&c.yearMax, "year-max", 0,
		"Clip the academic-year window upper bound")

	root.AddCommand(
		c.newRunCmd(),
		c.newMirrorCmd(),
		c.newExtractCmd(),
		c.newEnrichCmd(),
		c.newExhibitsCmd(),
	)
	return root
}

func (c *cli) setup() error {
	cfg := zap.NewProductionConfig()
	if c.verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	log, err := cfg.Build()
	if err != nil {
		return err
	}
	c.log = log

	path := c.catalogPath
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		path, err = catalog.FindRoot(wd)
		if err != nil {
			return err
		}
	}
	cat, err := catalog.Load(path)
	if err != nil {
		return err
	}
	c.cat = cat
	c.log.Debug("catalog loaded", zap.String("path", path))
	return nil
}

func (c *cli) selectedModules() ([]modules.Module, error) {
	if len(c.moduleNames) == 0 {
		return modules.All(), nil
	}
	out := make([]modules.Module, 0, len(c.moduleNames))
	for _, name := range c.moduleNames {
		m, err := modules.Parse(name)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// finish prints the run summary and turns recorded failures into a non-zero
// exit without aborting sibling datasets mid-run.
func (c *cli) finish(rep *report.Report) error {
	fmt.Println(rep.Summary())
	if rep.Failed() {
		return fmt.Errorf("%d dataset(s) failed", len(rep.Failures()))
	}
	return nil
}

func (c *cli) newRunCmd() *cobra.Command {
	var coverageThreshold float64
	var exhibits []string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run extract, enrich and exhibits end to end",
		RunE: func(cmd *cobra.Command, args []string) error {
			mods, err := c.selectedModules()
			if err != nil {
				return err
			}
			rep, err := pipeline.Run(cmd.Context(), c.cat, pipeline.Options{
				Modules:           mods,
				Years:             modules.Window{Min: c.yearMin, Max: c.yearMax},
				CoverageThreshold: coverageThreshold,
				Exhibits:          exhibits,
				Log:               c.log,
			})
			if err != nil {
				return err
			}
			return c.finish(rep)
		},
	}
	cmd.Flags().Float64Var(&coverageThreshold, "coverage-threshold", 0,
		"Unmatched-join fraction that raises a coverage warning (default 0.20)")
	cmd.Flags().StringSliceVar(&exhibits, "exhibits", nil,
		"Exhibits to build (default all)")
	return cmd
}

func (c *cli) newMirrorCmd() *cobra.Command {
	var credentialsPath string
	var baseURL string
	var workers int
	var maxRetries int
	var rateLimitRPS float64

	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Refresh the raw sqlite mirror from the SAMS portal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if credentialsPath == "" {
				return fmt.Errorf("--credentials or SAMS_CREDENTIALS is required")
			}
			creds, err := samsapi.LoadCredentials(credentialsPath)
			if err != nil {
				return err
			}
			client, err := samsapi.NewClient(baseURL, creds)
			if err != nil {
				return err
			}
			mods, err := c.selectedModules()
			if err != nil {
				return err
			}

			rep := report.New()
			stage := &mirror.Stage{
				Client:       client,
				Catalog:      c.cat,
				Report:       rep,
				Log:          c.log,
				Workers:      workers,
				MaxRetries:   maxRetries,
				RateLimitRPS: rateLimitRPS,
			}
			if err := stage.Run(cmd.Context(), mods, c.yearMin, c.yearMax); err != nil {
				return err
			}
			rep.Log(c.log)
			return c.finish(rep)
		},
	}
	cmd.Flags().StringVar(&credentialsPath, "credentials",
		strings.TrimSpace(os.Getenv("SAMS_CREDENTIALS")),
		"Path to the portal credentials JSON file (env: SAMS_CREDENTIALS)")
	cmd.Flags().StringVar(&baseURL, "base-url",
		strings.TrimSpace(os.Getenv("SAMS_API_URL")),
		"Portal API base URL override (env: SAMS_API_URL)")
	cmd.Flags().IntVar(&workers, "workers", envInt("WORKERS", 4),
		"Concurrent portal fetches (env: WORKERS)")
	cmd.Flags().IntVar(&maxRetries, "max-retries", envInt("MAX_RETRIES", 3),
		"Retries per slice for transient portal failures (env: MAX_RETRIES)")
	cmd.Flags().Float64Var(&rateLimitRPS, "rate-limit-rps", envFloat("RATE_LIMIT_RPS", 2),
		"Portal request rate limit, 0 disables (env: RATE_LIMIT_RPS)")
	return cmd
}

func (c *cli) newExtractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract",
		Short: "Materialize the interim layer from the raw mirror",
		RunE: func(cmd *cobra.Command, args []string) error {
			mods, err := c.selectedModules()
			if err != nil {
				return err
			}
			rep := report.New()
			stage := &extract.Stage{
				Catalog: c.cat,
				Report:  rep,
				Log:     c.log,
				Years:   modules.Window{Min: c.yearMin, Max: c.yearMax},
			}
			if err := stage.Run(cmd.Context(), mods); err != nil {
				return err
			}
			rep.Log(c.log)
			return c.finish(rep)
		},
	}
}

func (c *cli) newEnrichCmd() *cobra.Command {
	var coverageThreshold float64

	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Materialize the processed layer from interim tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			mods, err := c.selectedModules()
			if err != nil {
				return err
			}
			rep := report.New()
			stage := &enrich.Stage{
				Catalog:           c.cat,
				Report:            rep,
				Log:               c.log,
				CoverageThreshold: coverageThreshold,
			}
			if err := stage.Run(cmd.Context(), mods); err != nil {
				return err
			}
			rep.Log(c.log)
			return c.finish(rep)
		},
	}
	cmd.Flags().Float64Var(&coverageThreshold, "coverage-threshold", 0,
		"Unmatched-join fraction that raises a coverage warning (default 0.20)")
	return cmd
}

func (c *cli) newExhibitsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exhibits [name...]",
		Short: "Write the exhibit workbooks from processed and interim tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			rep := report.New()
			stage := &exhibit.Stage{Catalog: c.cat, Report: rep, Log: c.log}
			if err := stage.Run(cmd.Context(), args); err != nil {
				return err
			}
			rep.Log(c.log)
			return c.finish(rep)
		},
	}
}

func envInt(varName string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback
	}
	out, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return out
}

func envFloat(varName string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback
	}
	out, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return out
}
