// Package samsapi is the HTTP client for the SAMS portal API. It fetches the
// paginated student and institute records the mirror stage loads into the
// raw-layer sqlite database.
package samsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/odisha-policy-lab/sams-pipeline/internal/modules"
	"github.com/odisha-policy-lab/sams-pipeline/pkg/worker"
)

// DefaultBaseURL is the production portal API root.
const DefaultBaseURL = "https://api.samsodisha.gov.in/api"

// SourceOfFund selects the institute funding filter on student queries.
type SourceOfFund int

const (
	FundGovt SourceOfFund = 1
	FundPvt  SourceOfFund = 5
)

func (f SourceOfFund) String() string {
	switch f {
	case FundGovt:
		return "Govt"
	case FundPvt:
		return "Pvt"
	}
	return strconv.Itoa(int(f))
}

// Credentials holds the portal account used to obtain a bearer token.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoadCredentials reads a credentials JSON file.
func LoadCredentials(path string) (Credentials, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Credentials{}, fmt.Errorf("read credentials: %w", err)
	}
	var c Credentials
	if err := json.Unmarshal(b, &c); err != nil {
		return Credentials{}, fmt.Errorf("parse credentials: %w", err)
	}
	if c.Username == "" || c.Password == "" {
		return Credentials{}, fmt.Errorf("credentials file must set username and password")
	}
	return c, nil
}

// Client talks to the portal API. The bearer token is fetched lazily on the
// first request and kept for the client's lifetime. Safe for concurrent use;
// the mirror stage shares one client across its fetch workers.
type Client struct {
	baseURL *url.URL
	creds   Credentials
	http    *http.Client

	mu    sync.Mutex
	token string
}

// NewClient constructs a client for the given API root; an empty baseURL
// selects the production portal.
func NewClient(baseURL string, creds Credentials) (*Client, error) {
	raw := strings.TrimSpace(baseURL)
	if raw == "" {
		raw = DefaultBaseURL
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base URL must include a host (got %q)", baseURL)
	}
	u.Path = strings.TrimRight(u.Path, "/")

	return &Client{
		baseURL: u,
		creds:   creds,
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

type tokenResponse struct {
	Token string `json:"Token_No"`
}

// bearer returns the cached token, authenticating on first use. The mutex
// serializes the initial token fetch so concurrent fetch workers authenticate
// once.
func (c *Client) bearer(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" {
		return c.token, nil
	}

	b, err := json.Marshal(c.creds)
	if err != nil {
		return "", err
	}
	u := c.resolve("/getDPICtoken")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &worker.TransientError{Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	rb, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode/100 != 2 {
		return "", newHTTPError("getToken", resp, rb)
	}

	var out tokenResponse
	if err := json.Unmarshal(rb, &out); err != nil {
		return "", fmt.Errorf("parse token response: %w", err)
	}
	token := strings.TrimSpace(out.Token)
	if token == "" {
		return "", fmt.Errorf("token response missing Token_No")
	}
	c.token = token
	return token, nil
}

// StudentQuery addresses one page of student records.
type StudentQuery struct {
	Module modules.Module
	Year   int
	Fund   SourceOfFund
	Page   int
}

// GetStudents fetches one page of student records. PDIS has no pagination or
// funding split; the portal returns the whole year in one response.
func (c *Client) GetStudents(ctx context.Context, q StudentQuery) ([]map[string]any, error) {
	params := url.Values{}
	params.Set("Module", q.Module.String())
	params.Set("AcademicYear", strconv.Itoa(q.Year))
	if q.Module != modules.PDIS {
		params.Set("SourceOfFund", strconv.Itoa(int(q.Fund)))
		params.Set("PageNumber", strconv.Itoa(q.Page))
	}
	return c.getRecords(ctx, "GetDPICStudentData", params)
}

// GetInstitutes fetches the institute records for one module and year.
func (c *Client) GetInstitutes(ctx context.Context, m modules.Module, year int) ([]map[string]any, error) {
	params := url.Values{}
	params.Set("Module", m.String())
	params.Set("AcademicYear", strconv.Itoa(year))
	return c.getRecords(ctx, "GetDPICInstituteData", params)
}

func (c *Client) getRecords(ctx context.Context, endpoint string, params url.Values) ([]map[string]any, error) {
	token, err := c.bearer(ctx)
	if err != nil {
		return nil, err
	}

	u := c.resolve("/" + endpoint)
	u.RawQuery = params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// Network failures are worth retrying; the page loop backs off.
		return nil, &worker.TransientError{Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	rb, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		herr := newHTTPError(endpoint, resp, rb)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode/100 == 5 {
			return nil, &worker.TransientError{Err: herr}
		}
		return nil, herr
	}

	var records []map[string]any
	if err := json.Unmarshal(rb, &records); err != nil {
		return nil, fmt.Errorf("parse %s response: %w", endpoint, err)
	}
	return records, nil
}

func (c *Client) resolve(p string) *url.URL {
	rel := &url.URL{Path: c.baseURL.Path + p}
	return c.baseURL.ResolveReference(rel)
}
