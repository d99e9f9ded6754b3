// mock-sams serves a local stand-in for the SAMS portal API, seeded from a
// JSON fixture file, so the mirror stage can be exercised without credentials.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/odisha-policy-lab/sams-pipeline/pkg/mocksams"
)

// fixture is the on-disk seed format: one entry per portal slice.
type fixture struct {
	Students []struct {
		Module       string           `json:"module"`
		AcademicYear int              `json:"academic_year"`
		SourceOfFund string           `json:"source_of_fund"`
		Records      []map[string]any `json:"records"`
	} `json:"students"`
	Institutes []struct {
		Module       string           `json:"module"`
		AcademicYear int              `json:"academic_year"`
		Records      []map[string]any `json:"records"`
	} `json:"institutes"`
}

func main() {
	addr := defaultString("MOCK_SAMS_ADDR", ":8080")
	username := defaultString("MOCK_SAMS_USERNAME", "sams")
	password := defaultString("MOCK_SAMS_PASSWORD", "sams")
	token := defaultString("MOCK_SAMS_TOKEN", "mock-token")

	fs := flag.NewFlagSet("mock-sams", flag.ExitOnError)
	fs.StringVar(&addr, "addr", addr, "Listen address")
	fs.StringVar(&username, "username", username, "Accepted portal username")
	fs.StringVar(&password, "password", password, "Accepted portal password")
	fs.StringVar(&token, "token", token, "Bearer token issued to authenticated clients")
	fixturePath := fs.String("fixture", "", "JSON fixture file seeding the portal data")
	pageSize := fs.Int("page-size", 100, "Student records per page")
	_ = fs.Parse(os.Args[1:])

	srv := mocksams.New(username, password, token, *pageSize)
	if *fixturePath != "" {
		if err := seed(srv, *fixturePath); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "fixture error: %v\n", err)
			os.Exit(2)
		}
	}

	_, _ = fmt.Fprintf(os.Stdout, "mock-sams listening on %s\n", addr)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func seed(srv *mocksams.Server, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var f fixture
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	for _, s := range f.Students {
		srv.AddStudents(s.Module, s.AcademicYear, s.SourceOfFund, s.Records)
	}
	for _, i := range f.Institutes {
		srv.AddInstitutes(i.Module, i.AcademicYear, i.Records)
	}
	return nil
}

func defaultString(envVar string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(envVar))
	if v == "" {
		return fallback
	}
	return v
}
