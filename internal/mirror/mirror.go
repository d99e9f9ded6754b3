// Package mirror maintains the raw-layer sqlite mirror of the SAMS portal.
// Each run re-fetches the requested module/year slices and replaces them in
// place, so the mirror can be refreshed incrementally without drift.
package mirror

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/odisha-policy-lab/sams-pipeline/internal/catalog"
	"github.com/odisha-policy-lab/sams-pipeline/internal/modules"
	"github.com/odisha-policy-lab/sams-pipeline/internal/report"
	"github.com/odisha-policy-lab/sams-pipeline/internal/samsapi"
	"github.com/odisha-policy-lab/sams-pipeline/pkg/worker"
)

// RawDataset is the catalog name of the sqlite mirror.
const RawDataset = "sams"

// API is the portal surface the mirror needs. *samsapi.Client satisfies it.
type API interface {
	GetStudents(ctx context.Context, q samsapi.StudentQuery) ([]map[string]any, error)
	GetInstitutes(ctx context.Context, m modules.Module, year int) ([]map[string]any, error)
}

// Stage fetches portal records concurrently and writes them to the mirror
// serially. sqlite has a single writer, so all inserts go through one
// goroutine after the fetches complete.
type Stage struct {
	Client  API
	Catalog *catalog.Catalog
	Report  *report.Report
	Log     *zap.Logger

	// Workers bounds concurrent portal fetches; zero means the worker
	// pool default.
	Workers int
	// RateLimitRPS throttles portal requests; zero disables throttling.
	RateLimitRPS float64
	// MaxRetries retries transient portal failures per fetch unit.
	MaxRetries int
}

// fetchUnit is one portal slice: the student pages or the institute list for
// a single module and year (and funding source, for paginated modules).
type fetchUnit struct {
	module modules.Module
	year   int
	fund   samsapi.SourceOfFund
	kind   string // "students" or "institutes"
}

func (u fetchUnit) label() string {
	if u.kind == "students" && u.module != modules.PDIS {
		return fmt.Sprintf("%s/%d/%s students", u.module.Key(), u.year, u.fund)
	}
	return fmt.Sprintf("%s/%d %s", u.module.Key(), u.year, u.kind)
}

type fetchResult struct {
	unit    fetchUnit
	records []map[string]any
}

// Run mirrors the given modules over their portal year windows, clipped to
// [yearMin, yearMax] when either bound is non-zero.
func (s *Stage) Run(ctx context.Context, mods []modules.Module, yearMin, yearMax int) error {
	entry, err := s.Catalog.Resolve(RawDataset)
	if err != nil {
		return err
	}
	if entry.Type != catalog.TypeRelational {
		return fmt.Errorf("dataset %s: mirror target must be relational, got %s", RawDataset, entry.Type)
	}

	units := s.plan(mods, yearMin, yearMax)
	if len(units) == 0 {
		return fmt.Errorf("no module/year slices selected")
	}

	results, err := worker.Map(ctx, units, s.fetch, worker.Options{
		Workers:      s.Workers,
		MaxRetries:   s.MaxRetries,
		RateLimitRPS: s.RateLimitRPS,
	})
	if err != nil {
		return err
	}

	db, err := s.openMirror(entry)
	if err != nil {
		return err
	}
	defer func() {
		_ = db.Close()
	}()

	for _, r := range results {
		if r.Err != nil {
			s.Report.AddFailure("mirror "+r.Input.label(), r.Err)
			s.Log.Error("fetch failed", zap.String("slice", r.Input.label()), zap.Error(r.Err))
			continue
		}
		if err := s.write(ctx, db, r.Output); err != nil {
			return fmt.Errorf("write %s: %w", r.Input.label(), err)
		}
		s.Log.Info("slice mirrored",
			zap.String("slice", r.Input.label()),
			zap.Int("records", len(r.Output.records)),
		)
	}
	return nil
}

func (s *Stage) plan(mods []modules.Module, yearMin, yearMax int) []fetchUnit {
	var units []fetchUnit
	for _, m := range mods {
		w := m.Years()
		lo, hi := w.Min, w.Max
		if yearMin > lo {
			lo = yearMin
		}
		if yearMax != 0 && yearMax < hi {
			hi = yearMax
		}
		for y := lo; y <= hi; y++ {
			if m == modules.PDIS {
				units = append(units, fetchUnit{module: m, year: y, kind: "students"})
				continue
			}
			for _, fund := range []samsapi.SourceOfFund{samsapi.FundGovt, samsapi.FundPvt} {
				units = append(units, fetchUnit{module: m, year: y, fund: fund, kind: "students"})
			}
			units = append(units, fetchUnit{module: m, year: y, kind: "institutes"})
		}
	}
	return units
}

func (s *Stage) fetch(ctx context.Context, u fetchUnit) (fetchResult, error) {
	if u.kind == "institutes" {
		records, err := s.Client.GetInstitutes(ctx, u.module, u.year)
		if err != nil {
			return fetchResult{}, err
		}
		return fetchResult{unit: u, records: records}, nil
	}

	if u.module == modules.PDIS {
		records, err := s.Client.GetStudents(ctx, samsapi.StudentQuery{Module: u.module, Year: u.year})
		if err != nil {
			return fetchResult{}, err
		}
		return fetchResult{unit: u, records: records}, nil
	}

	var all []map[string]any
	for page := 1; ; page++ {
		records, err := s.Client.GetStudents(ctx, samsapi.StudentQuery{
			Module: u.module, Year: u.year, Fund: u.fund, Page: page,
		})
		if err != nil {
			return fetchResult{}, fmt.Errorf("page %d: %w", page, err)
		}
		if len(records) == 0 {
			break
		}
		all = append(all, records...)
	}
	return fetchResult{unit: u, records: all}, nil
}

func (s *Stage) openMirror(entry catalog.DatasetEntry) (*sql.DB, error) {
	path := s.Catalog.AbsPath(entry.Path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(mirrorDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return db, nil
}

// write replaces one (module, year) slice of the mirror inside a transaction.
// Student slices for the same module and year arrive per funding source, so
// the delete is scoped to the type of institute the source maps to.
func (s *Stage) write(ctx context.Context, db *sql.DB, r fetchResult) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	table, cols := "institutes", instituteColumns
	if r.unit.kind == "students" {
		table, cols = "students", studentColumns
	}

	del := fmt.Sprintf("DELETE FROM %s WHERE module = ? AND academic_year = ?", table)
	args := []any{r.unit.module.String(), r.unit.year}
	if r.unit.kind == "students" && r.unit.module != modules.PDIS {
		del += " AND type_of_institute = ?"
		args = append(args, fundInstituteType(r.unit.fund))
	}
	if _, err := tx.ExecContext(ctx, del, args...); err != nil {
		return err
	}

	placeholders := strings.TrimRight(strings.Repeat("?, ", len(cols)), ", ")
	ins, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), placeholders,
	))
	if err != nil {
		return err
	}
	defer func() {
		_ = ins.Close()
	}()

	for _, rec := range r.records {
		vals := rowValues(cols, rec, r.unit)
		if _, err := ins.ExecContext(ctx, vals...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func fundInstituteType(f samsapi.SourceOfFund) string {
	if f == samsapi.FundPvt {
		return "Pvt."
	}
	return "Govt."
}

// rowValues orders a portal record's fields into the mirror's column order.
// module and academic_year always come from the fetch unit so a slice can be
// deleted and re-inserted consistently even when the portal omits them.
func rowValues(cols []string, rec map[string]any, u fetchUnit) []any {
	norm := make(map[string]any, len(rec))
	for k, v := range rec {
		norm[normalizeKey(k)] = v
	}
	vals := make([]any, len(cols))
	for i, col := range cols {
		switch col {
		case "module":
			vals[i] = u.module.String()
		case "academic_year":
			vals[i] = u.year
		case "type_of_institute":
			if v, ok := norm[col]; ok && v != nil {
				vals[i] = asText(v)
			} else if u.kind == "students" && u.module != modules.PDIS {
				vals[i] = fundInstituteType(u.fund)
			}
		default:
			if v, ok := norm[col]; ok && v != nil {
				vals[i] = asText(v)
			}
		}
	}
	return vals
}

func normalizeKey(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	k = strings.ReplaceAll(k, " ", "_")
	return strings.ReplaceAll(k, "-", "_")
}

func asText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "Yes"
		}
		return "No"
	default:
		return fmt.Sprint(t)
	}
}
